package inproc

import (
	"context"
	"errors"
	"fmt"

	"github.com/meidoworks/orgsync/api"
	"github.com/meidoworks/orgsync/clients/orgclient"
	"github.com/meidoworks/orgsync/config"
	"github.com/meidoworks/orgsync/service/agent"
	"github.com/meidoworks/orgsync/shared/logging"
	"github.com/meidoworks/orgsync/shared/netaddons/localswitch"
)

var _inprocLogger = logging.NewLogger("Inproc")

var ErrTooManyAgents = errors.New("too many in-process agents")

// Organizations holds the clients of the configured organizations and the
// agents started in this process for the inproc ones.
type Organizations struct {
	Primary api.OrgClient
	Clients []api.OrgClient
	Agents  []*agent.ServiceAgent
}

// StartOrganizations builds a client per configured organization. Agents of
// inproc organizations are served on lswitch.
func StartOrganizations(ctx context.Context, cfg *config.OrgSyncConfig, lswitch *localswitch.LocalSwitch) (*Organizations, error) {
	orgs := new(Organizations)
	primary := cfg.PrimaryOrganization()
	for _, org := range cfg.Organizations {
		var client *orgclient.OrgClient
		if org.Agent == api.DefaultConfigLocalSwitchAgentAddress {
			idx := len(orgs.Agents)
			if api.LocalSwitchAgentBase+idx > 255 {
				_ = orgs.Close()
				return nil, ErrTooManyAgents
			}
			a, err := agent.NewServiceAgent(agent.Config{
				MSPID:       org.MSPID,
				NodeId:      cfg.Shared.NodeId,
				Network:     cfg.Nodes,
				CommitDelay: cfg.Agent.CommitDelay(),
			})
			if err != nil {
				_ = orgs.Close()
				return nil, err
			}
			orgs.Agents = append(orgs.Agents, a)
			if _, err := a.ServeLocalSwitch(lswitch, AgentTrafficIndex(idx)); err != nil {
				_ = orgs.Close()
				return nil, err
			}
			client = orgclient.NewLocalSwitchOrgClient(org.MSPID, lswitch, AgentTrafficIndex(idx))
			_inprocLogger.Infof("organization [%s] served in process on traffic %d", org.MSPID, AgentTrafficIndex(idx))
		} else {
			client = orgclient.NewOrgClient(org.MSPID, org.Agent)
		}
		if err := client.Initialize(ctx); err != nil {
			_ = orgs.Close()
			return nil, fmt.Errorf("initialize organization [%s]: %w", org.MSPID, err)
		}
		orgs.Clients = append(orgs.Clients, client)
		if org.MSPID == primary.MSPID {
			orgs.Primary = client
		}
	}
	return orgs, nil
}

func (o *Organizations) Close() error {
	var errs []error
	for _, a := range o.Agents {
		if err := a.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
