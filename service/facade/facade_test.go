package facade_test

import (
	"context"
	"errors"
	"testing"

	"github.com/meidoworks/orgsync/api"
	"github.com/meidoworks/orgsync/service/dispatch"
	"github.com/meidoworks/orgsync/service/facade"
	"github.com/meidoworks/orgsync/shared/testlib"
)

var (
	peerA = api.Node{Name: "peer0.orga", MSPID: "OrgAMSP", AdminMSPs: []string{"OrgAMSP"}}
	peerB = api.Node{Name: "peer0.orgb", MSPID: "OrgBMSP", AdminMSPs: []string{"OrgBMSP"}}
	peerC = api.Node{Name: "peer0.orgc", MSPID: "OrgCMSP", AdminMSPs: []string{"OrgCMSP"}}
)

func newFacade(t *testing.T) (*facade.Facade, *testlib.FakeOrgClient, *testlib.FakeOrgClient) {
	orgA := testlib.NewFakeOrgClient("OrgAMSP")
	orgB := testlib.NewFakeOrgClient("OrgBMSP")
	f, err := facade.New(orgA, orgB)
	testlib.AssertError(t, err)
	return f, orgA, orgB
}

func TestNewRequiresPrimary(t *testing.T) {
	if _, err := facade.New(nil); !errors.Is(err, facade.ErrNoPrimary) {
		t.Fatal("expect ErrNoPrimary, got", err)
	}
}

func TestNewIncludesPrimaryOnce(t *testing.T) {
	orgA := testlib.NewFakeOrgClient("OrgAMSP")
	orgB := testlib.NewFakeOrgClient("OrgBMSP")
	f, err := facade.New(orgA, orgA, orgB)
	testlib.AssertError(t, err)
	if msps := f.MSPIDs(); len(msps) != 2 {
		t.Fatal("unexpected organizations:", msps)
	}
	f, err = facade.New(orgA, orgB)
	testlib.AssertError(t, err)
	if msps := f.MSPIDs(); len(msps) != 2 || msps[1] != "OrgAMSP" {
		t.Fatal("primary should be appended:", msps)
	}
}

func TestPassThroughToPrimary(t *testing.T) {
	f, orgA, orgB := newFacade(t)
	ctx := context.Background()

	txid, err := f.NewTxID()
	testlib.AssertError(t, err)
	if txid != "OrgAMSP-tx-1" {
		t.Fatal("tx id should come from primary:", txid)
	}
	_, err = f.CreateChannel(ctx, &api.ChannelRequest{Channel: "mychannel"})
	testlib.AssertError(t, err)
	_, err = f.InstantiateChaincode(ctx, &api.ChaincodeDeployRequest{Channel: "mychannel", Targets: []api.Node{peerA, peerB}})
	testlib.AssertError(t, err)
	_, err = f.SendTransactionProposal(ctx, &api.TransactionRequest{Targets: []api.Node{peerA, peerB}})
	testlib.AssertError(t, err)

	if len(orgB.Calls()) != 0 {
		t.Fatal("non primary must not be used:", orgB.Calls())
	}
	calls := orgA.CallsOf("InstantiateChaincode")
	if len(calls) != 1 || len(calls[0].Targets) != 2 {
		t.Fatal("request must reach primary unchanged:", calls)
	}
}

func TestJoinChannelFansOut(t *testing.T) {
	f, orgA, orgB := newFacade(t)

	outcome, err := f.JoinChannel(context.Background(), &api.JoinChannelRequest{
		Channel: "mychannel",
		Targets: []api.Node{peerA, peerB, peerC},
	})
	testlib.AssertError(t, err)
	if len(outcome.Responses) != 2 {
		t.Fatal("expect a response per owned node, got", len(outcome.Responses))
	}
	testlib.AssertError(t, outcome.Wait(context.Background()))

	if c := orgA.CallsOf("JoinChannel"); len(c) != 1 || len(c[0].Targets) != 1 || c[0].Targets[0].Name != peerA.Name {
		t.Fatal("OrgAMSP scope wrong:", c)
	}
	if c := orgB.CallsOf("JoinChannel"); len(c) != 1 || len(c[0].Targets) != 1 || c[0].Targets[0].Name != peerB.Name {
		t.Fatal("OrgBMSP scope wrong:", c)
	}
}

func TestInstallChaincodeFailure(t *testing.T) {
	f, _, orgB := newFacade(t)
	orgB.OnCall = func(op string, targets []api.Node) (*api.Outcome, error) {
		return nil, errors.New("disk full")
	}
	_, err := f.InstallChaincode(context.Background(), &api.InstallChaincodeRequest{
		ChaincodeID: "mycc",
		Targets:     []api.Node{peerA, peerB},
	})
	var pe *dispatch.PartitionError
	if !errors.As(err, &pe) || pe.MSPID != "OrgBMSP" || pe.Op != facade.OpInstallChaincode {
		t.Fatal("unexpected error:", err)
	}
}

func TestKindDiscriminant(t *testing.T) {
	f, orgA, _ := newFacade(t)
	if !facade.IsFacade(f) || facade.IsFacade(orgA) {
		t.Fatal("kind discriminant mismatch")
	}
	if msps := facade.LocalMSPIDs(orgA); len(msps) != 1 || msps[0] != "OrgAMSP" {
		t.Fatal("unexpected local organizations:", msps)
	}
	if msps := facade.LocalMSPIDs(f); len(msps) != 2 {
		t.Fatal("unexpected local organizations:", msps)
	}
}

func TestBind(t *testing.T) {
	f, _, _ := newFacade(t)
	targets := []api.Node{peerA, peerB}
	f.Bind("mychannel", targets)
	targets[0] = peerC
	if b := f.Bound("mychannel"); len(b) != 2 || b[0].Name != peerA.Name {
		t.Fatal("bound nodes must be copied:", b)
	}
}
