// Package coordinator drives channel setup for the local organizations and
// synchronizes with remote organizations through the barrier.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/meidoworks/orgsync/api"
	"github.com/meidoworks/orgsync/service/barrier"
	"github.com/meidoworks/orgsync/service/dispatch"
	"github.com/meidoworks/orgsync/service/facade"
	"github.com/meidoworks/orgsync/shared/logging"
	"github.com/meidoworks/orgsync/shared/thirdpartyshared/ginshared"

	"github.com/gin-gonic/gin"
)

var _coordinatorLogger = logging.NewLogger("Coordinator")

var (
	ErrNoBarrier   = errors.New("barrier is disabled")
	ErrUnknownNode = errors.New("unknown node")
)

type Config struct {
	Channel string
	// Nodes are all nodes of the consortium, local and remote.
	Nodes       []api.Node
	WaitTimeout time.Duration
}

type PartitionView struct {
	MSPID     string                  `json:"msp_id"`
	Nodes     []string                `json:"nodes"`
	Responses []*api.ProposalResponse `json:"responses"`
}

type OperationView struct {
	Op         string          `json:"op"`
	Partitions []PartitionView `json:"partitions"`
	// Rendezvous is set when remote organizations were waited for.
	Rendezvous bool `json:"rendezvous"`
}

type Coordinator struct {
	cfg     Config
	client  api.LedgerClient
	barrier *barrier.Server
	engine  *gin.Engine
}

// NewCoordinator works with a single organization client or a facade. The
// barrier may be nil when no remote organization takes part.
func NewCoordinator(client api.LedgerClient, b *barrier.Server, cfg Config) *Coordinator {
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = time.Minute
	}
	c := &Coordinator{
		cfg:     cfg,
		client:  client,
		barrier: b,
		engine:  ginshared.NewEngine(),
	}
	if f, ok := client.(*facade.Facade); ok {
		f.Bind(cfg.Channel, cfg.Nodes)
	}
	c.registerRoutes()
	return c
}

func (c *Coordinator) Handler() http.Handler {
	return c.engine
}

func (c *Coordinator) Serve(l net.Listener) <-chan error {
	_, errCh := ginshared.StartBareMetalGinServer(l, c.engine)
	_coordinatorLogger.Infof("coordinator api listening on %s", l.Addr())
	return errCh
}

// resolve maps node names to configured nodes, all nodes when names is empty.
func (c *Coordinator) resolve(names []string) ([]api.Node, error) {
	if len(names) == 0 {
		return c.cfg.Nodes, nil
	}
	idx := make(map[string]api.Node, len(c.cfg.Nodes))
	for _, n := range c.cfg.Nodes {
		idx[n.Name] = n
	}
	var r []api.Node
	for _, name := range names {
		n, ok := idx[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownNode, name)
		}
		r = append(r, n)
	}
	return r, nil
}

// view runs a partitioned operation and waits for its completion. A facade
// reports every organization it dispatched to.
func (c *Coordinator) view(ctx context.Context, op string, aggregate func() (*dispatch.AggregateResult, error), single func() (*api.Outcome, error), targets []api.Node) (*OperationView, error) {
	if facade.IsFacade(c.client) {
		agg, err := aggregate()
		if err != nil {
			return nil, err
		}
		if err := agg.Wait(ctx); err != nil {
			return nil, err
		}
		v := &OperationView{Op: op}
		for _, p := range agg.Partitions {
			pv := PartitionView{MSPID: p.MSPID, Responses: p.Outcome.Responses}
			for _, n := range p.Targets {
				pv.Nodes = append(pv.Nodes, n.Name)
			}
			v.Partitions = append(v.Partitions, pv)
		}
		return v, nil
	}

	outcome, err := single()
	if err != nil {
		return nil, err
	}
	if err := outcome.Wait(ctx); err != nil {
		return nil, err
	}
	pv := PartitionView{Responses: outcome.Responses}
	if msps := facade.LocalMSPIDs(c.client); len(msps) > 0 {
		pv.MSPID = msps[0]
	}
	for _, n := range targets {
		pv.Nodes = append(pv.Nodes, n.Name)
	}
	return &OperationView{Op: op, Partitions: []PartitionView{pv}}, nil
}

// JoinChannel joins the local nodes among names to the channel. With
// rendezvous it then waits until every remote organization has reported and
// announces completion.
func (c *Coordinator) JoinChannel(ctx context.Context, channel string, names []string, rendezvous bool) (*OperationView, error) {
	targets, err := c.resolve(names)
	if err != nil {
		return nil, err
	}
	block, err := c.client.GenesisBlock(ctx, channel)
	if err != nil {
		return nil, err
	}
	txid, err := c.client.NewTxID()
	if err != nil {
		return nil, err
	}
	req := &api.JoinChannelRequest{Channel: channel, Targets: targets, Block: block, TxID: txid}

	v, err := c.view(ctx, facade.OpJoinChannel, func() (*dispatch.AggregateResult, error) {
		return c.client.(*facade.Facade).JoinChannelAggregate(ctx, req)
	}, func() (*api.Outcome, error) {
		return c.client.JoinChannel(ctx, req)
	}, targets)
	if err != nil {
		return nil, err
	}
	if rendezvous {
		if err := c.Rendezvous(c.cfg.WaitTimeout); err != nil {
			return nil, err
		}
		v.Rendezvous = true
	}
	return v, nil
}

func (c *Coordinator) InstallChaincode(ctx context.Context, req *api.InstallChaincodeRequest, names []string) (*OperationView, error) {
	targets, err := c.resolve(names)
	if err != nil {
		return nil, err
	}
	req = req.WithTargets(targets)
	if req.TxID == "" {
		if req.TxID, err = c.client.NewTxID(); err != nil {
			return nil, err
		}
	}
	return c.view(ctx, facade.OpInstallChaincode, func() (*dispatch.AggregateResult, error) {
		return c.client.(*facade.Facade).InstallChaincodeAggregate(ctx, req)
	}, func() (*api.Outcome, error) {
		return c.client.InstallChaincode(ctx, req)
	}, targets)
}

// Rendezvous waits for the remote organizations and announces completion.
func (c *Coordinator) Rendezvous(timeout time.Duration) error {
	if c.barrier == nil {
		return ErrNoBarrier
	}
	if err := c.barrier.RequestResponses(timeout); err != nil {
		return err
	}
	c.barrier.SendCompleted()
	_coordinatorLogger.Infof("remote organizations reported, completion announced")
	return nil
}
