// Package dispatch fans an operation out to the organizations owning its
// targets and merges the per-organization results.
package dispatch

import (
	"context"

	"github.com/meidoworks/orgsync/api"
	"github.com/meidoworks/orgsync/service/registry"
	"github.com/meidoworks/orgsync/shared/logging"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var _dispatchLogger = logging.NewLogger("Dispatch")

// Invoker runs the single-organization implementation of an operation.
// The context passed in is only valid for the immediate phase; the returned
// Completion is waited with the context given to AggregateResult.Wait.
type Invoker[R any] func(ctx context.Context, client api.OrgClient, req R) (*api.Outcome, error)

type PartitionResult struct {
	MSPID   string
	Targets []api.Node
	Outcome *api.Outcome
}

// AggregateResult holds the immediate results of every partition, ordered by MSP id.
type AggregateResult struct {
	Op         string
	Partitions []PartitionResult
}

func (a *AggregateResult) Responses() []*api.ProposalResponse {
	var r []*api.ProposalResponse
	for _, p := range a.Partitions {
		r = append(r, p.Outcome.Responses...)
	}
	return r
}

// Wait concurrently waits for the completion of every partition and returns
// the first failure.
func (a *AggregateResult) Wait(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range a.Partitions {
		p := p
		g.Go(func() error {
			if err := p.Outcome.Wait(gctx); err != nil {
				return &PartitionError{Op: a.Op, MSPID: p.MSPID, Phase: PhaseWait, Err: err}
			}
			return nil
		})
	}
	return g.Wait()
}

// Outcome flattens the aggregate so it can be returned where a single
// organization's result is expected.
func (a *AggregateResult) Outcome() *api.Outcome {
	return &api.Outcome{
		Responses:  a.Responses(),
		Completion: a,
	}
}

// Dispatch classifies the request targets by owning organization, invokes each
// organization's client concurrently with its own subset and waits for all
// immediate results. Any failure fails the whole call.
func Dispatch[R api.Targeted[R]](ctx context.Context, op string, req R, clients []api.OrgClient, invoke Invoker[R]) (*AggregateResult, error) {
	targets := req.TargetNodes()
	partition := registry.Classify(targets, clients)
	index := registry.ClientIndex(clients)

	if _dispatchLogger.IsLevelEnabled(logrus.InfoLevel) && partition.Len() != len(targets) {
		for _, n := range registry.Unowned(targets, clients) {
			_dispatchLogger.Infof("%s: node [%s] has no local administrator, leaving it to remote organizations", op, n)
		}
	}

	msps := partition.MSPIDs()
	results := make([]PartitionResult, len(msps))
	g, gctx := errgroup.WithContext(ctx)
	for i, msp := range msps {
		i, msp := i, msp
		g.Go(func() error {
			scoped := partition[msp]
			outcome, err := invoke(gctx, index[msp], req.WithTargets(scoped))
			if err != nil {
				return &PartitionError{Op: op, MSPID: msp, Phase: PhaseImmediate, Err: err}
			}
			if outcome == nil {
				outcome = &api.Outcome{}
			}
			if outcome.Completion == nil {
				outcome.Completion = api.Resolved
			}
			results[i] = PartitionResult{
				MSPID:   msp,
				Targets: scoped,
				Outcome: outcome,
			}
			_dispatchLogger.Debugf("%s: organization [%s] answered for %d node(s)", op, msp, len(scoped))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		_dispatchLogger.Errorf("%s failed: %s", op, err)
		return nil, err
	}

	return &AggregateResult{
		Op:         op,
		Partitions: results,
	}, nil
}
