package registry_test

import (
	"reflect"
	"testing"

	"github.com/meidoworks/orgsync/api"
	"github.com/meidoworks/orgsync/service/registry"
)

type mspOnlyClient struct {
	api.OrgClient
	msp string
}

func (m *mspOnlyClient) MSPID() string {
	return m.msp
}

func (m *mspOnlyClient) Kind() api.ClientKind {
	return api.KindSingleOrg
}

func clients(msps ...string) []api.OrgClient {
	var r []api.OrgClient
	for _, v := range msps {
		r = append(r, &mspOnlyClient{msp: v})
	}
	return r
}

func node(name string, admins ...string) api.Node {
	return api.Node{Name: name, MSPID: admins[0], AdminMSPs: admins}
}

func TestClassifyFirstMatchWins(t *testing.T) {
	nodes := []api.Node{
		node("peer0.org1", "Org1MSP"),
		node("peer0.org2", "Org2MSP", "Org1MSP"),
		node("peer1.org2", "Org2MSP"),
		node("peer0.org3", "Org3MSP"),
		node("shared", "Org3MSP", "Org1MSP", "Org2MSP"),
	}
	p := registry.Classify(nodes, clients("Org1MSP", "Org2MSP"))

	if !reflect.DeepEqual(p.MSPIDs(), []string{"Org1MSP", "Org2MSP"}) {
		t.Fatal("unexpected partitions:", p.MSPIDs())
	}
	names := func(ns []api.Node) (r []string) {
		for _, v := range ns {
			r = append(r, v.Name)
		}
		return
	}
	if got := names(p["Org1MSP"]); !reflect.DeepEqual(got, []string{"peer0.org1", "shared"}) {
		t.Fatal("unexpected Org1MSP partition:", got)
	}
	if got := names(p["Org2MSP"]); !reflect.DeepEqual(got, []string{"peer0.org2", "peer1.org2"}) {
		t.Fatal("unexpected Org2MSP partition:", got)
	}
	if p.Len() != 4 {
		t.Fatal("expect 4 classified nodes, got", p.Len())
	}

	unowned := registry.Unowned(nodes, clients("Org1MSP", "Org2MSP"))
	if len(unowned) != 1 || unowned[0].Name != "peer0.org3" {
		t.Fatal("unexpected unowned nodes:", unowned)
	}
}

func TestClassifyDisjointAndComplete(t *testing.T) {
	msps := []string{"A", "B", "C", "D"}
	var nodes []api.Node
	// every non-empty admin-owner combination over msps, in several orders
	for mask := 1; mask < 1<<len(msps); mask++ {
		var admins []string
		for i, m := range msps {
			if mask&(1<<i) != 0 {
				admins = append(admins, m)
			}
		}
		nodes = append(nodes, api.Node{Name: string(rune('a'+mask)) + "0", AdminMSPs: admins})
		reversed := make([]string, len(admins))
		for i := range admins {
			reversed[len(admins)-1-i] = admins[i]
		}
		nodes = append(nodes, api.Node{Name: string(rune('a'+mask)) + "1", AdminMSPs: reversed})
	}

	for _, present := range [][]string{{}, {"A"}, {"B", "D"}, {"A", "B", "C", "D"}} {
		p := registry.Classify(nodes, clients(present...))
		seen := map[string]string{}
		for msp, part := range p {
			for _, n := range part {
				if prev, ok := seen[n.Name]; ok {
					t.Fatalf("node %s in both %s and %s", n.Name, prev, msp)
				}
				if !n.IsAdministrableBy(msp) {
					t.Fatalf("node %s is not administrable by %s", n.Name, msp)
				}
				seen[n.Name] = msp
			}
		}
		for _, n := range nodes {
			reachable := false
			for _, m := range present {
				reachable = reachable || n.IsAdministrableBy(m)
			}
			if _, ok := seen[n.Name]; ok != reachable {
				t.Fatalf("node %s classified=%v reachable=%v", n.Name, ok, reachable)
			}
		}
	}
}

func TestClassifyDoesNotMutateInput(t *testing.T) {
	nodes := []api.Node{node("peer0.org1", "Org1MSP"), node("peer0.org2", "Org2MSP")}
	before := append([]api.Node(nil), nodes...)
	_ = registry.Classify(nodes, clients("Org2MSP"))
	if !reflect.DeepEqual(before, nodes) {
		t.Fatal("input must not be mutated")
	}
	if len(registry.Classify(nil, clients("Org1MSP"))) != 0 {
		t.Fatal("no nodes, no partitions")
	}
}
