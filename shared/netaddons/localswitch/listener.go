package localswitch

import (
	"errors"
	"net"
	"sync"
)

var ErrListenerClosed = errors.New("local listener has been closed")

type emptyAddr struct {
}

func (e emptyAddr) Network() string {
	return "localswitch"
}

func (e emptyAddr) String() string {
	return "localswitch"
}

// LocalSwitchNetListener adapts connections published by a LocalSwitch consumer
// to net.Listener so an http.Server can serve them.
type LocalSwitchNetListener struct {
	connCh chan net.Conn

	closeOnce sync.Once
	closeCh   chan struct{}
}

func (l *LocalSwitchNetListener) PublishNetConn(conn net.Conn) {
	select {
	case <-l.closeCh:
		_ = conn.Close()
	case l.connCh <- conn:
	}
}

func NewLocalSwitchNetListener() *LocalSwitchNetListener {
	return &LocalSwitchNetListener{
		connCh:  make(chan net.Conn, 128),
		closeCh: make(chan struct{}),
	}
}

func (l *LocalSwitchNetListener) Accept() (net.Conn, error) {
	select {
	case conn := <-l.connCh:
		return conn, nil
	case <-l.closeCh:
		return nil, ErrListenerClosed
	}
}

func (l *LocalSwitchNetListener) Close() error {
	l.closeOnce.Do(func() {
		close(l.closeCh)
	})
	return nil
}

func (l *LocalSwitchNetListener) Addr() net.Addr {
	return emptyAddr{}
}
