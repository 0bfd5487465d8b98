package api

// Wire bodies of the organization agent HTTP API. They are CBOR encoded.

type IdentityResponse struct {
	MSPID string `cbor:"msp_id" json:"msp_id"`
	// Nodes are the nodes the organization administers.
	Nodes []Node `cbor:"nodes" json:"nodes"`
}

type TxIDResponse struct {
	TxID string `cbor:"tx_id" json:"tx_id"`
}

type ProposalResponses struct {
	TxID      string              `cbor:"tx_id" json:"tx_id"`
	Responses []*ProposalResponse `cbor:"responses" json:"responses"`
}

type GenesisResponse struct {
	Channel string `cbor:"channel" json:"channel"`
	Block   []byte `cbor:"block" json:"block"`
}

type NodesResponse struct {
	Nodes []Node `cbor:"nodes" json:"nodes"`
}

type QueryResponse struct {
	Payloads [][]byte `cbor:"payloads" json:"payloads"`
}

// CommitStatus is delivered once a transaction has been written to a block.
type CommitStatus struct {
	TxID        string `cbor:"tx_id" json:"tx_id"`
	Valid       bool   `cbor:"valid" json:"valid"`
	Code        string `cbor:"code" json:"code"`
	BlockNumber int    `cbor:"block_number" json:"block_number"`
}

const (
	CommitCodeValid                    = "VALID"
	CommitCodeEndorsementPolicyFailure = "ENDORSEMENT_POLICY_FAILURE"
	CommitCodeChaincodeNotFound        = "CHAINCODE_NOT_FOUND"
)
