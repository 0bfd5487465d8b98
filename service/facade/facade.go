// Package facade presents several organization clients as one ledger client.
// Operations every organization performs on its own nodes are fanned out,
// everything else goes through the primary organization.
package facade

import (
	"context"
	"errors"
	"sync"

	"github.com/meidoworks/orgsync/api"
	"github.com/meidoworks/orgsync/service/dispatch"
	"github.com/meidoworks/orgsync/shared/logging"
)

var _facadeLogger = logging.NewLogger("Facade")

var ErrNoPrimary = errors.New("facade requires a primary organization client")

const (
	OpJoinChannel      = "JoinChannel"
	OpInstallChaincode = "InstallChaincode"
)

type Facade struct {
	primary api.OrgClient
	clients []api.OrgClient

	bindLock sync.RWMutex
	bindings map[string][]api.Node
}

var _ api.LedgerClient = new(Facade)

// New builds a facade. The primary is appended to clients when missing.
func New(primary api.OrgClient, clients ...api.OrgClient) (*Facade, error) {
	if primary == nil {
		return nil, ErrNoPrimary
	}
	f := &Facade{
		primary:  primary,
		bindings: map[string][]api.Node{},
	}
	found := false
	for _, c := range clients {
		if c == nil {
			continue
		}
		if c == primary {
			found = true
		}
		f.clients = append(f.clients, c)
	}
	if !found {
		f.clients = append(f.clients, primary)
	}
	_facadeLogger.Infof("facade over organizations %v, primary [%s]", f.MSPIDs(), primary.MSPID())
	return f, nil
}

func (f *Facade) Kind() api.ClientKind {
	return api.KindMultiOrg
}

func (f *Facade) Primary() api.OrgClient {
	return f.primary
}

func (f *Facade) Clients() []api.OrgClient {
	return append([]api.OrgClient(nil), f.clients...)
}

func (f *Facade) MSPIDs() []string {
	r := make([]string, 0, len(f.clients))
	for _, c := range f.clients {
		r = append(r, c.MSPID())
	}
	return r
}

// Bind records the nodes a channel is served by, across all organizations.
func (f *Facade) Bind(channel string, targets []api.Node) {
	f.bindLock.Lock()
	f.bindings[channel] = append([]api.Node(nil), targets...)
	f.bindLock.Unlock()
}

// Bound returns the nodes recorded by Bind.
func (f *Facade) Bound(channel string) []api.Node {
	f.bindLock.RLock()
	defer f.bindLock.RUnlock()
	return f.bindings[channel]
}

func (f *Facade) Initialize(ctx context.Context) error {
	return f.primary.Initialize(ctx)
}

func (f *Facade) NewTxID() (string, error) {
	return f.primary.NewTxID()
}

func (f *Facade) GenesisBlock(ctx context.Context, channel string) ([]byte, error) {
	return f.primary.GenesisBlock(ctx, channel)
}

func (f *Facade) ChannelNodes(ctx context.Context, channel string) ([]api.Node, error) {
	return f.primary.ChannelNodes(ctx, channel)
}

func (f *Facade) JoinChannelAggregate(ctx context.Context, req *api.JoinChannelRequest) (*dispatch.AggregateResult, error) {
	return dispatch.Dispatch(ctx, OpJoinChannel, req, f.clients, func(ctx context.Context, client api.OrgClient, req *api.JoinChannelRequest) (*api.Outcome, error) {
		return client.JoinChannel(ctx, req)
	})
}

func (f *Facade) JoinChannel(ctx context.Context, req *api.JoinChannelRequest) (*api.Outcome, error) {
	agg, err := f.JoinChannelAggregate(ctx, req)
	if err != nil {
		return nil, err
	}
	return agg.Outcome(), nil
}

func (f *Facade) InstallChaincodeAggregate(ctx context.Context, req *api.InstallChaincodeRequest) (*dispatch.AggregateResult, error) {
	return dispatch.Dispatch(ctx, OpInstallChaincode, req, f.clients, func(ctx context.Context, client api.OrgClient, req *api.InstallChaincodeRequest) (*api.Outcome, error) {
		return client.InstallChaincode(ctx, req)
	})
}

func (f *Facade) InstallChaincode(ctx context.Context, req *api.InstallChaincodeRequest) (*api.Outcome, error) {
	agg, err := f.InstallChaincodeAggregate(ctx, req)
	if err != nil {
		return nil, err
	}
	return agg.Outcome(), nil
}

func (f *Facade) CreateChannel(ctx context.Context, req *api.ChannelRequest) (*api.Outcome, error) {
	return f.primary.CreateChannel(ctx, req)
}

func (f *Facade) UpdateChannel(ctx context.Context, req *api.ChannelRequest) (*api.Outcome, error) {
	return f.primary.UpdateChannel(ctx, req)
}

func (f *Facade) InstantiateChaincode(ctx context.Context, req *api.ChaincodeDeployRequest) (*api.Outcome, error) {
	return f.primary.InstantiateChaincode(ctx, req)
}

func (f *Facade) UpgradeChaincode(ctx context.Context, req *api.ChaincodeDeployRequest) (*api.Outcome, error) {
	return f.primary.UpgradeChaincode(ctx, req)
}

func (f *Facade) SendTransactionProposal(ctx context.Context, req *api.TransactionRequest) (*api.Outcome, error) {
	return f.primary.SendTransactionProposal(ctx, req)
}

func (f *Facade) SendTransaction(ctx context.Context, req *api.TransactionRequest) (*api.Outcome, error) {
	return f.primary.SendTransaction(ctx, req)
}

func (f *Facade) QueryByChaincode(ctx context.Context, req *api.TransactionRequest) ([][]byte, error) {
	return f.primary.QueryByChaincode(ctx, req)
}

func (f *Facade) Invoke(ctx context.Context, req *api.TransactionRequest) (*api.Outcome, error) {
	return f.primary.Invoke(ctx, req)
}
