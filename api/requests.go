package api

// Targeted is implemented by requests whose targets can be narrowed to the
// nodes owned by one organization.
type Targeted[R any] interface {
	TargetNodes() []Node
	WithTargets(targets []Node) R
}

type JoinChannelRequest struct {
	Channel string `json:"channel" cbor:"channel"`
	Targets []Node `json:"targets" cbor:"targets"`
	Block   []byte `json:"block" cbor:"block"`
	TxID    string `json:"tx_id" cbor:"tx_id"`
}

func (r *JoinChannelRequest) TargetNodes() []Node {
	return r.Targets
}

func (r *JoinChannelRequest) WithTargets(targets []Node) *JoinChannelRequest {
	c := *r
	c.Targets = targets
	return &c
}

type InstallChaincodeRequest struct {
	Targets     []Node `json:"targets" cbor:"targets"`
	ChaincodeID string `json:"chaincode_id" cbor:"chaincode_id"`
	Version     string `json:"version" cbor:"version"`
	Path        string `json:"path" cbor:"path"`
	Type        string `json:"type" cbor:"type"`
	// Package is the raw code package. It is compressed on the wire.
	Package []byte `json:"package" cbor:"package"`
	TxID    string `json:"tx_id" cbor:"tx_id"`
}

func (r *InstallChaincodeRequest) TargetNodes() []Node {
	return r.Targets
}

func (r *InstallChaincodeRequest) WithTargets(targets []Node) *InstallChaincodeRequest {
	c := *r
	c.Targets = targets
	return &c
}

type ChannelRequest struct {
	Channel    string   `json:"channel" cbor:"channel"`
	Config     []byte   `json:"config" cbor:"config"`
	Signatures [][]byte `json:"signatures" cbor:"signatures"`
	Orderer    string   `json:"orderer" cbor:"orderer"`
	TxID       string   `json:"tx_id" cbor:"tx_id"`
}

type ChaincodeDeployRequest struct {
	Channel           string   `json:"channel" cbor:"channel"`
	Targets           []Node   `json:"targets" cbor:"targets"`
	ChaincodeID       string   `json:"chaincode_id" cbor:"chaincode_id"`
	Version           string   `json:"version" cbor:"version"`
	Fcn               string   `json:"fcn" cbor:"fcn"`
	Args              [][]byte `json:"args" cbor:"args"`
	EndorsementPolicy string   `json:"endorsement_policy" cbor:"endorsement_policy"`
	TxID              string   `json:"tx_id" cbor:"tx_id"`
}

type TransactionRequest struct {
	Channel     string   `json:"channel" cbor:"channel"`
	Targets     []Node   `json:"targets" cbor:"targets"`
	ChaincodeID string   `json:"chaincode_id" cbor:"chaincode_id"`
	Fcn         string   `json:"fcn" cbor:"fcn"`
	Args        [][]byte `json:"args" cbor:"args"`
	TxID        string   `json:"tx_id" cbor:"tx_id"`
	// Endorsements carries the proposal responses when submitting a transaction.
	Endorsements []*ProposalResponse `json:"endorsements" cbor:"endorsements"`
}
