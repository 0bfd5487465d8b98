package api

// Node is an administrable ledger endpoint.
type Node struct {
	Name    string `json:"name" cbor:"name" toml:"name"`
	Address string `json:"address" cbor:"address" toml:"address"`
	// MSPID is the organization the node was provisioned under.
	MSPID string `json:"msp_id" cbor:"msp_id" toml:"msp_id"`
	// AdminMSPs lists the organizations allowed to administer the node, in preference order.
	AdminMSPs []string `json:"admin_msps" cbor:"admin_msps" toml:"admin_msps"`
}

func (n Node) IsAdministrableBy(mspId string) bool {
	for _, v := range n.AdminMSPs {
		if v == mspId {
			return true
		}
	}
	return false
}

func (n Node) String() string {
	if n.Name != "" {
		return n.Name
	}
	return n.Address
}
