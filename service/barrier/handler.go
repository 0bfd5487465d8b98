package barrier

import (
	"context"
	"net/http"
	"time"

	"github.com/meidoworks/orgsync/api"

	"nhooyr.io/websocket"
)

const writeTimeout = 5 * time.Second

type participant struct {
	conn   *websocket.Conn
	remote string
}

func (p *participant) String() string {
	return p.remote
}

func (p *participant) send(ctx context.Context, message string) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return p.conn.Write(ctx, websocket.MessageText, []byte(message))
}

func (p *participant) close(code websocket.StatusCode, reason string) {
	_ = p.conn.Close(code, reason)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		_barrierLogger.Warnf("accepting participant %s failed: %s", r.RemoteAddr, err)
		return
	}
	p := &participant{conn: c, remote: r.RemoteAddr}

	inProgress, err := s.join(p)
	if err != nil {
		p.close(websocket.StatusGoingAway, "barrier closing")
		return
	}
	_barrierLogger.Infof("participant %s connected", p)
	defer func() {
		s.leave(p)
		p.close(websocket.StatusNormalClosure, "")
		_barrierLogger.Infof("participant %s disconnected", p)
	}()

	if inProgress {
		if err := p.send(s.ctx, api.BarrierMessageRequest); err != nil {
			_barrierLogger.Warnf("sending request to late participant %s failed: %s", p, err)
		}
	}

	for {
		typ, data, err := c.Read(s.ctx)
		if err != nil {
			if status := websocket.CloseStatus(err); status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
				_barrierLogger.Debugf("reading from participant %s stopped: %s", p, err)
			}
			return
		}
		if typ != websocket.MessageText {
			_barrierLogger.Warnf("participant %s sent a non-text message, ignored", p)
			continue
		}
		s.report(p, string(data))
	}
}
