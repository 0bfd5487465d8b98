package api

import "context"

type ClientKind int

const (
	KindSingleOrg ClientKind = iota + 1
	KindMultiOrg
)

func (k ClientKind) String() string {
	switch k {
	case KindSingleOrg:
		return "single-org"
	case KindMultiOrg:
		return "multi-org"
	default:
		return "unknown"
	}
}

// LedgerClient is the set of administrative operations shared by a
// single-organization client and the multi-organization facade. Kind tells
// callers which of the two they hold.
type LedgerClient interface {
	Kind() ClientKind

	Initialize(ctx context.Context) error
	NewTxID() (string, error)
	GenesisBlock(ctx context.Context, channel string) ([]byte, error)
	ChannelNodes(ctx context.Context, channel string) ([]Node, error)

	JoinChannel(ctx context.Context, req *JoinChannelRequest) (*Outcome, error)
	InstallChaincode(ctx context.Context, req *InstallChaincodeRequest) (*Outcome, error)

	CreateChannel(ctx context.Context, req *ChannelRequest) (*Outcome, error)
	UpdateChannel(ctx context.Context, req *ChannelRequest) (*Outcome, error)
	InstantiateChaincode(ctx context.Context, req *ChaincodeDeployRequest) (*Outcome, error)
	UpgradeChaincode(ctx context.Context, req *ChaincodeDeployRequest) (*Outcome, error)

	SendTransactionProposal(ctx context.Context, req *TransactionRequest) (*Outcome, error)
	SendTransaction(ctx context.Context, req *TransactionRequest) (*Outcome, error)
	QueryByChaincode(ctx context.Context, req *TransactionRequest) ([][]byte, error)
	Invoke(ctx context.Context, req *TransactionRequest) (*Outcome, error)
}

// OrgClient is bound to exactly one organization.
type OrgClient interface {
	LedgerClient
	MSPID() string
}
