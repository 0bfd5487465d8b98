package testlib

import (
	"context"
	"fmt"
	"sync"

	"github.com/meidoworks/orgsync/api"
)

type Call struct {
	Op      string
	Targets []api.Node
}

// FakeOrgClient is an in-memory api.OrgClient. Every operation is recorded;
// OnCall, when set, decides the outcome, otherwise every target answers 200
// and the completion is already resolved.
type FakeOrgClient struct {
	Msp     string
	Nodes   []api.Node
	Genesis []byte

	OnCall func(op string, targets []api.Node) (*api.Outcome, error)

	lock  sync.Mutex
	calls []Call
	txSeq int
}

var _ api.OrgClient = new(FakeOrgClient)

func NewFakeOrgClient(msp string) *FakeOrgClient {
	return &FakeOrgClient{Msp: msp}
}

func (f *FakeOrgClient) Calls() []Call {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]Call(nil), f.calls...)
}

func (f *FakeOrgClient) CallsOf(op string) []Call {
	var r []Call
	for _, c := range f.Calls() {
		if c.Op == op {
			r = append(r, c)
		}
	}
	return r
}

func (f *FakeOrgClient) record(op string, targets []api.Node) (*api.Outcome, error) {
	f.lock.Lock()
	f.calls = append(f.calls, Call{Op: op, Targets: targets})
	f.lock.Unlock()
	if f.OnCall != nil {
		return f.OnCall(op, targets)
	}
	o := &api.Outcome{Completion: api.Resolved}
	for _, n := range targets {
		o.Responses = append(o.Responses, &api.ProposalResponse{
			Node:   n.Name,
			MSPID:  f.Msp,
			Status: api.StatusSuccess,
		})
	}
	return o, nil
}

func (f *FakeOrgClient) Kind() api.ClientKind {
	return api.KindSingleOrg
}

func (f *FakeOrgClient) MSPID() string {
	return f.Msp
}

func (f *FakeOrgClient) Initialize(ctx context.Context) error {
	_, err := f.record("Initialize", nil)
	return err
}

func (f *FakeOrgClient) NewTxID() (string, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.txSeq++
	f.calls = append(f.calls, Call{Op: "NewTxID"})
	return fmt.Sprintf("%s-tx-%d", f.Msp, f.txSeq), nil
}

func (f *FakeOrgClient) GenesisBlock(ctx context.Context, channel string) ([]byte, error) {
	if _, err := f.record("GenesisBlock", nil); err != nil {
		return nil, err
	}
	return f.Genesis, nil
}

func (f *FakeOrgClient) ChannelNodes(ctx context.Context, channel string) ([]api.Node, error) {
	if _, err := f.record("ChannelNodes", nil); err != nil {
		return nil, err
	}
	return f.Nodes, nil
}

func (f *FakeOrgClient) JoinChannel(ctx context.Context, req *api.JoinChannelRequest) (*api.Outcome, error) {
	return f.record("JoinChannel", req.Targets)
}

func (f *FakeOrgClient) InstallChaincode(ctx context.Context, req *api.InstallChaincodeRequest) (*api.Outcome, error) {
	return f.record("InstallChaincode", req.Targets)
}

func (f *FakeOrgClient) CreateChannel(ctx context.Context, req *api.ChannelRequest) (*api.Outcome, error) {
	return f.record("CreateChannel", nil)
}

func (f *FakeOrgClient) UpdateChannel(ctx context.Context, req *api.ChannelRequest) (*api.Outcome, error) {
	return f.record("UpdateChannel", nil)
}

func (f *FakeOrgClient) InstantiateChaincode(ctx context.Context, req *api.ChaincodeDeployRequest) (*api.Outcome, error) {
	return f.record("InstantiateChaincode", req.Targets)
}

func (f *FakeOrgClient) UpgradeChaincode(ctx context.Context, req *api.ChaincodeDeployRequest) (*api.Outcome, error) {
	return f.record("UpgradeChaincode", req.Targets)
}

func (f *FakeOrgClient) SendTransactionProposal(ctx context.Context, req *api.TransactionRequest) (*api.Outcome, error) {
	return f.record("SendTransactionProposal", req.Targets)
}

func (f *FakeOrgClient) SendTransaction(ctx context.Context, req *api.TransactionRequest) (*api.Outcome, error) {
	return f.record("SendTransaction", req.Targets)
}

func (f *FakeOrgClient) QueryByChaincode(ctx context.Context, req *api.TransactionRequest) ([][]byte, error) {
	o, err := f.record("QueryByChaincode", req.Targets)
	if err != nil {
		return nil, err
	}
	var r [][]byte
	for _, v := range o.Responses {
		r = append(r, v.Payload)
	}
	return r, nil
}

func (f *FakeOrgClient) Invoke(ctx context.Context, req *api.TransactionRequest) (*api.Outcome, error) {
	return f.record("Invoke", req.Targets)
}
