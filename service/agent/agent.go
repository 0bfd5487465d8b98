// Package agent is the administrative endpoint of one organization. It keeps
// the ledger state of the nodes the organization administers and serves it
// over HTTP to organization clients.
package agent

import (
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/meidoworks/orgsync/api"
	"github.com/meidoworks/orgsync/shared/idgen"
	"github.com/meidoworks/orgsync/shared/logging"
	"github.com/meidoworks/orgsync/shared/netaddons/localswitch"
	"github.com/meidoworks/orgsync/shared/storage"
	"github.com/meidoworks/orgsync/shared/thirdpartyshared/ginshared"

	"github.com/gin-gonic/gin"
)

var _agentLogger = logging.NewLogger("Agent")

var (
	ErrAgentClosed = errors.New("agent closed")
	ErrNoMSPID     = errors.New("agent requires an msp id")
)

const DefaultCommitDelay = 200 * time.Millisecond

type Config struct {
	MSPID  string
	NodeId int16
	// Network lists every node of the consortium. The agent administers the
	// ones whose admin set contains MSPID.
	Network []api.Node
	// CommitDelay is the time between a transaction submission and its block.
	CommitDelay time.Duration
	// PollTimeout bounds one long-polling request on a transaction.
	PollTimeout time.Duration
}

type ServiceAgent struct {
	cfg    Config
	engine *gin.Engine
	store  storage.AtomicStorage
	txGen  *idgen.TxIdGen

	lock     sync.Mutex
	watchers map[string][]chan *api.CommitStatus
	pending  map[string]*time.Timer
	servers  []*http.Server
	closed   bool
}

func NewServiceAgent(cfg Config) (*ServiceAgent, error) {
	if cfg.MSPID == "" {
		return nil, ErrNoMSPID
	}
	if cfg.CommitDelay <= 0 {
		cfg.CommitDelay = DefaultCommitDelay
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 60 * time.Second
	}
	store, err := storage.NewBadgerAtomicStorageInMemory()
	if err != nil {
		return nil, err
	}
	s := &ServiceAgent{
		cfg:      cfg,
		store:    store,
		txGen:    idgen.NewTxIdGen(cfg.MSPID, cfg.NodeId),
		watchers: map[string][]chan *api.CommitStatus{},
		pending:  map[string]*time.Timer{},
	}
	s.engine = ginshared.NewEngine()
	s.registerRoutes()
	return s, nil
}

func (s *ServiceAgent) MSPID() string {
	return s.cfg.MSPID
}

// Owned returns the nodes this organization administers.
func (s *ServiceAgent) Owned() []api.Node {
	var r []api.Node
	for _, n := range s.cfg.Network {
		if n.IsAdministrableBy(s.cfg.MSPID) {
			r = append(r, n)
		}
	}
	return r
}

func (s *ServiceAgent) Handler() http.Handler {
	return s.engine
}

// Serve starts serving on l in the background.
func (s *ServiceAgent) Serve(l net.Listener) (<-chan error, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed {
		return nil, ErrAgentClosed
	}
	srv, errCh := ginshared.StartBareMetalGinServer(l, s.engine)
	s.servers = append(s.servers, srv)
	_agentLogger.Infof("agent of [%s] serving on %s", s.cfg.MSPID, l.Addr())
	return errCh, nil
}

// ServeLocalSwitch serves the agent to in-process clients dialing trafficIndex.
func (s *ServiceAgent) ServeLocalSwitch(lswitch *localswitch.LocalSwitch, trafficIndex uint8) (<-chan error, error) {
	return s.Serve(localswitch.ServeTraffic(lswitch, trafficIndex))
}

func (s *ServiceAgent) Close() error {
	s.lock.Lock()
	if s.closed {
		s.lock.Unlock()
		return nil
	}
	s.closed = true
	for txid, t := range s.pending {
		t.Stop()
		delete(s.pending, txid)
	}
	servers := s.servers
	s.lock.Unlock()

	var errs []error
	for _, srv := range servers {
		if err := srv.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
