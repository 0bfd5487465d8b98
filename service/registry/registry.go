// Package registry classifies target nodes by the organization able to administer them.
package registry

import (
	"github.com/meidoworks/orgsync/api"
	"github.com/meidoworks/orgsync/shared/utils"
)

// Partition maps an MSP id to the nodes that organization's client will handle.
// Partitions are pairwise disjoint.
type Partition map[string][]api.Node

func (p Partition) MSPIDs() []string {
	return utils.SortedKeys(p)
}

func (p Partition) Len() int {
	n := 0
	for _, v := range p {
		n += len(v)
	}
	return n
}

// ClientIndex maps MSP ids to clients. The first client wins on duplicates.
func ClientIndex(clients []api.OrgClient) map[string]api.OrgClient {
	idx := make(map[string]api.OrgClient, len(clients))
	for _, c := range clients {
		if c == nil {
			continue
		}
		if _, ok := idx[c.MSPID()]; !ok {
			idx[c.MSPID()] = c
		}
	}
	return idx
}

// Classify assigns every node to the first organization in its admin-owner set
// that has a client present. Nodes no present client can administer are left
// out: they are expected to be handled by a remote coordinator.
func Classify(nodes []api.Node, clients []api.OrgClient) Partition {
	idx := ClientIndex(clients)
	result := Partition{}
	for _, node := range nodes {
		if msp, ok := owner(node, idx); ok {
			result[msp] = append(result[msp], node)
		}
	}
	return result
}

// Unowned returns the nodes Classify drops.
func Unowned(nodes []api.Node, clients []api.OrgClient) []api.Node {
	idx := ClientIndex(clients)
	var result []api.Node
	for _, node := range nodes {
		if _, ok := owner(node, idx); !ok {
			result = append(result, node)
		}
	}
	return result
}

func owner(node api.Node, idx map[string]api.OrgClient) (string, bool) {
	for _, msp := range node.AdminMSPs {
		if _, ok := idx[msp]; ok {
			return msp, true
		}
	}
	return "", false
}
