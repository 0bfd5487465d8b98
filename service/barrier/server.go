// Package barrier implements the rendezvous server organizations use to agree
// that a setup step is complete when they cannot administer each other's nodes.
package barrier

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/meidoworks/orgsync/api"
	"github.com/meidoworks/orgsync/shared/hardware"
	"github.com/meidoworks/orgsync/shared/logging"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/netutil"
	"nhooyr.io/websocket"
)

var _barrierLogger = logging.NewLogger("Barrier")

type waiter struct {
	done chan struct{}
}

type Status struct {
	Connected  int      `json:"connected"`
	Expected   []string `json:"expected"`
	Reported   []string `json:"reported"`
	Waiting    int      `json:"waiting"`
	InProgress bool     `json:"in_progress"`
	// Rounds counts completed rounds since the server was created.
	Rounds uint64 `json:"rounds"`
}

type Server struct {
	cfg      Config
	expected map[string]struct{}

	ctx    context.Context
	cancel context.CancelFunc

	lock       sync.Mutex
	conns      map[*participant]struct{}
	reported   map[string]struct{}
	waiters    []*waiter
	inProgress bool
	rounds     uint64
	closed     bool

	listener   net.Listener
	httpServer *http.Server
}

// NewServer resolves the expected organizations and prepares the server.
// Nothing is bound until Start is called.
func NewServer(ctx context.Context, cfg Config) (*Server, error) {
	cfg.mergeDefault()
	expected, err := cfg.resolveExpected(ctx)
	if err != nil {
		return nil, err
	}
	s := &Server{
		cfg:      cfg,
		expected: expected,
		conns:    map[*participant]struct{}{},
		reported: map[string]struct{}{},
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	_barrierLogger.Infof("barrier expects organizations: %v", sortedSet(expected))
	return s, nil
}

func (s *Server) Start() error {
	l, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return &TransportError{Op: "listen", Addr: s.cfg.Listen, Err: err}
	}
	l = netutil.LimitListener(l, s.cfg.MaxParticipants)

	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.lock.Lock()
	if s.closed {
		s.lock.Unlock()
		_ = l.Close()
		return ErrServerClosed
	}
	s.listener = l
	s.httpServer = srv
	s.lock.Unlock()

	go func() {
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			_barrierLogger.Errorf("barrier serving on %s stopped: %s", l.Addr(), &TransportError{Op: "accept", Addr: l.Addr().String(), Err: err})
		}
	}()
	_barrierLogger.Infof("barrier listening on %s", l.Addr())
	if addrs, err := hardware.AdvertiseAddrs(l.Addr()); err == nil && len(addrs) > 0 {
		_barrierLogger.Infof("participants may dial %v", addrs)
	}
	return nil
}

// Addr returns the bound address, nil before Start.
func (s *Server) Addr() net.Addr {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// RequestResponses asks every participant to report and blocks until every
// expected organization has been heard from or the timeout elapses. Concurrent
// callers share the same round and are released together.
func (s *Server) RequestResponses(timeout time.Duration) error {
	if len(s.expected) == 0 {
		return nil
	}

	w := &waiter{done: make(chan struct{})}
	s.lock.Lock()
	if s.closed {
		s.lock.Unlock()
		return ErrServerClosed
	}
	s.waiters = append(s.waiters, w)
	s.inProgress = true
	conns := s.snapshotConns()
	s.lock.Unlock()

	s.broadcast(conns, api.BarrierMessageRequest)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-w.done:
		return nil
	case <-s.ctx.Done():
		return ErrServerClosed
	case <-timer.C:
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	idx := -1
	for i, v := range s.waiters {
		if v == w {
			idx = i
			break
		}
	}
	if idx < 0 {
		// released while the timer fired
		return nil
	}
	s.waiters = append(s.waiters[:idx], s.waiters[idx+1:]...)
	if len(s.waiters) == 0 {
		s.inProgress = false
	}
	return &TimeoutError{Timeout: timeout, Missing: s.missing()}
}

// SendCompleted notifies every connected participant that the current step is
// done. Delivery is best effort.
func (s *Server) SendCompleted() {
	s.lock.Lock()
	conns := s.snapshotConns()
	s.lock.Unlock()
	s.broadcast(conns, api.BarrierMessageComplete)
}

func (s *Server) Status() Status {
	s.lock.Lock()
	defer s.lock.Unlock()
	return Status{
		Connected:  len(s.conns),
		Expected:   sortedSet(s.expected),
		Reported:   sortedSet(s.reported),
		Waiting:    len(s.waiters),
		InProgress: s.inProgress,
		Rounds:     s.rounds,
	}
}

func (s *Server) Close() error {
	s.lock.Lock()
	if s.closed {
		s.lock.Unlock()
		return nil
	}
	s.closed = true
	conns := s.snapshotConns()
	srv := s.httpServer
	s.lock.Unlock()

	s.cancel()
	for _, p := range conns {
		p.close(websocket.StatusGoingAway, "barrier closing")
	}
	if srv != nil {
		return srv.Close()
	}
	return nil
}

// join registers a participant and reports whether a round is in progress.
func (s *Server) join(p *participant) (bool, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed {
		return false, ErrServerClosed
	}
	s.conns[p] = struct{}{}
	return s.inProgress, nil
}

func (s *Server) leave(p *participant) {
	s.lock.Lock()
	delete(s.conns, p)
	s.lock.Unlock()
}

// report merges the organizations found in a participant message and
// completes the round once every expected organization has reported.
func (s *Server) report(from *participant, payload string) {
	ids := s.parse(payload)

	var ignored []string
	var released []*waiter
	s.lock.Lock()
	for _, id := range ids {
		if _, ok := s.expected[id]; ok {
			s.reported[id] = struct{}{}
		} else {
			ignored = append(ignored, id)
		}
	}
	complete := len(s.reported) == len(s.expected)
	if complete {
		released = s.waiters
		s.waiters = nil
		s.reported = map[string]struct{}{}
		s.inProgress = false
		s.rounds++
	}
	s.lock.Unlock()

	if len(ignored) > 0 {
		_barrierLogger.Warnf("participant %s reported unexpected organizations %v, ignored", from, ignored)
	}
	if complete {
		_barrierLogger.Infof("barrier round complete, releasing %d waiter(s)", len(released))
		for _, w := range released {
			close(w.done)
		}
	}
}

func (s *Server) parse(payload string) []string {
	var ids []string
	for _, v := range strings.Split(payload, s.cfg.Delimiter) {
		if v = strings.TrimSpace(v); v != "" {
			ids = append(ids, v)
		}
	}
	return ids
}

func (s *Server) missing() []string {
	var r []string
	for _, v := range sortedSet(s.expected) {
		if _, ok := s.reported[v]; !ok {
			r = append(r, v)
		}
	}
	return r
}

func (s *Server) snapshotConns() []*participant {
	r := make([]*participant, 0, len(s.conns))
	for p := range s.conns {
		r = append(r, p)
	}
	return r
}

func (s *Server) broadcast(conns []*participant, message string) {
	if _barrierLogger.IsLevelEnabled(logrus.DebugLevel) {
		_barrierLogger.Debugf("broadcasting [%s] to %d participant(s)", message, len(conns))
	}
	for _, p := range conns {
		if err := p.send(s.ctx, message); err != nil {
			_barrierLogger.Warnf("sending [%s] to participant %s failed: %s", message, p, err)
		}
	}
}
