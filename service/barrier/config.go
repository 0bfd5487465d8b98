package barrier

import (
	"context"
	"fmt"
	"strings"

	"github.com/meidoworks/orgsync/api"
	"github.com/meidoworks/orgsync/service/facade"
	"github.com/meidoworks/orgsync/shared/utils"
)

const DefaultMaxParticipants = 256

type Config struct {
	// Listen defaults to :45207
	Listen    string
	Delimiter string
	// MaxParticipants caps concurrently accepted connections.
	MaxParticipants int

	// Expected is used as is when not empty. Otherwise it is derived from the
	// nodes of Channel that Client cannot administer.
	Expected []string
	Client   api.LedgerClient
	Channel  string
}

func (c *Config) mergeDefault() {
	if c.Listen == "" {
		c.Listen = fmt.Sprintf(":%d", api.DefaultBarrierPort)
	}
	if c.Delimiter == "" {
		c.Delimiter = api.DefaultBarrierDelimiter
	}
	if c.MaxParticipants <= 0 {
		c.MaxParticipants = DefaultMaxParticipants
	}
}

func (c *Config) resolveExpected(ctx context.Context) (map[string]struct{}, error) {
	if len(c.Expected) > 0 {
		expected := make(map[string]struct{}, len(c.Expected))
		for _, v := range c.Expected {
			if v = strings.TrimSpace(v); v != "" {
				expected[v] = struct{}{}
			}
		}
		if len(expected) == 0 {
			return nil, &ConfigurationError{Reason: "expected organizations are all blank"}
		}
		return expected, nil
	}
	if c.Client == nil || c.Channel == "" {
		return nil, &ConfigurationError{Reason: "neither expected organizations nor a client and channel to derive them from"}
	}
	nodes, err := c.Client.ChannelNodes(ctx, c.Channel)
	if err != nil {
		return nil, fmt.Errorf("list nodes of channel [%s]: %w", c.Channel, err)
	}
	return RemoteOrganizations(nodes, facade.LocalMSPIDs(c.Client)), nil
}

// RemoteOrganizations returns the distinct provisioning MSP ids of the nodes
// none of the local organizations can administer.
func RemoteOrganizations(nodes []api.Node, local []string) map[string]struct{} {
	result := map[string]struct{}{}
NodeLoop:
	for _, n := range nodes {
		for _, msp := range local {
			if n.IsAdministrableBy(msp) {
				continue NodeLoop
			}
		}
		result[n.MSPID] = struct{}{}
	}
	return result
}

func sortedSet(m map[string]struct{}) []string {
	return utils.SortedKeys(m)
}
