package inproc

import "github.com/meidoworks/orgsync/api"

// AgentTrafficIndex is the local switch traffic of the i-th in-process agent.
func AgentTrafficIndex(i int) uint8 {
	return uint8(api.LocalSwitchAgentBase + i)
}
