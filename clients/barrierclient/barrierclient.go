// Package barrierclient is the participant side of the rendezvous protocol:
// an organization that cannot be administered by the coordinator reports
// itself through it once its local setup step is done.
package barrierclient

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/meidoworks/orgsync/api"
	"github.com/meidoworks/orgsync/shared/logging"

	"nhooyr.io/websocket"
)

var _participantLogger = logging.NewLogger("Participant")

var (
	ErrNoOrganization = errors.New("participant requires at least one organization")
	ErrClosed         = errors.New("participant closed")
)

type Config struct {
	// Server is host:port or a ws:// URL.
	Server    string
	MSPIDs    []string
	Delimiter string
}

type Participant struct {
	cfg  Config
	conn *websocket.Conn

	lock      sync.Mutex
	ready     bool
	completed chan struct{}
	rounds    int
	closed    chan struct{}
	closeOnce sync.Once
}

func Dial(ctx context.Context, cfg Config) (*Participant, error) {
	if len(cfg.MSPIDs) == 0 {
		return nil, ErrNoOrganization
	}
	if cfg.Delimiter == "" {
		cfg.Delimiter = api.DefaultBarrierDelimiter
	}
	addr := cfg.Server
	if u, err := url.Parse(addr); err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		addr = "ws://" + addr
	}
	c, _, err := websocket.Dial(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial barrier %s: %w", cfg.Server, err)
	}
	_participantLogger.Infof("organizations %v connected to barrier %s", cfg.MSPIDs, cfg.Server)
	return &Participant{
		cfg:       cfg,
		conn:      c,
		completed: make(chan struct{}),
		closed:    make(chan struct{}),
	}, nil
}

func (p *Participant) message() string {
	return strings.Join(p.cfg.MSPIDs, p.cfg.Delimiter)
}

// Report sends the organization ids of this participant.
func (p *Participant) Report(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return p.conn.Write(ctx, websocket.MessageText, []byte(p.message()))
}

// MarkReady reports now and answers every request until the server
// announces completion.
func (p *Participant) MarkReady(ctx context.Context) error {
	p.lock.Lock()
	p.ready = true
	p.lock.Unlock()
	return p.Report(ctx)
}

func (p *Participant) Ready() bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.ready
}

// Run reads server messages until ctx is done or the connection drops.
func (p *Participant) Run(ctx context.Context) error {
	for {
		typ, data, err := p.conn.Read(ctx)
		if err != nil {
			select {
			case <-p.closed:
				return ErrClosed
			default:
			}
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			return err
		}
		if typ != websocket.MessageText {
			continue
		}
		switch msg := string(data); msg {
		case api.BarrierMessageRequest:
			if p.Ready() {
				if err := p.Report(ctx); err != nil {
					_participantLogger.Warnf("reporting %v failed: %s", p.cfg.MSPIDs, err)
				}
			} else {
				_participantLogger.Debugf("request received before local step is done")
			}
		case api.BarrierMessageComplete:
			p.lock.Lock()
			p.ready = false
			p.rounds++
			close(p.completed)
			p.completed = make(chan struct{})
			p.lock.Unlock()
			_participantLogger.Infof("barrier announced completion")
		default:
			_participantLogger.Warnf("unknown barrier message [%s]", msg)
		}
	}
}

// Completed returns a channel closed by the next completion announcement.
func (p *Participant) Completed() <-chan struct{} {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.completed
}

// WaitCompleted blocks until the next completion announcement.
func (p *Participant) WaitCompleted(ctx context.Context) error {
	ch := p.Completed()
	select {
	case <-ch:
		return nil
	case <-p.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Participant) Rounds() int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.rounds
}

func (p *Participant) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.closed)
		err = p.conn.Close(websocket.StatusNormalClosure, "")
	})
	return err
}
