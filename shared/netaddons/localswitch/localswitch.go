package localswitch

import (
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/meidoworks/orgsync/shared/logging"
	"github.com/meidoworks/orgsync/shared/netaddons/multiplexer"
	"github.com/meidoworks/orgsync/shared/utils"

	"github.com/sirupsen/logrus"
)

var _localswitchLogger = logging.NewLogger("LocalSwitch")

// LocalSwitch is a loopback listener that hands accepted connections to the
// consumer registered for the traffic index announced in the handshake.
type LocalSwitch struct {
	addr     string
	listener net.Listener

	consumerLock sync.Mutex
	mux          *multiplexer.DedicatedServerConnMultiplexer
}

func (l *LocalSwitch) Connect(trafficIndex uint8) (net.Conn, error) {
	u, err := url.Parse(l.addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.DialTimeout(u.Scheme, u.Host, 10*time.Second)
	if err != nil {
		return nil, err
	}
	if err := multiplexer.ClientConnInitialization(conn, trafficIndex); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

func (l *LocalSwitch) AddTrafficConsumer(trafficIndex uint8, consumer multiplexer.TrafficConsumer) {
	l.consumerLock.Lock()
	defer l.consumerLock.Unlock()
	// copy-on-write: ConsumeConn reads the map without locking
	l.mux = &multiplexer.DedicatedServerConnMultiplexer{
		Consumers: utils.CopyAddMap(l.mux.Consumers, int(trafficIndex), consumer),
	}
}

func (l *LocalSwitch) currentMux() *multiplexer.DedicatedServerConnMultiplexer {
	l.consumerLock.Lock()
	defer l.consumerLock.Unlock()
	return l.mux
}

func (l *LocalSwitch) SwitchAddr() string {
	return l.addr
}

func (l *LocalSwitch) Close() error {
	return l.listener.Close()
}

func (l *LocalSwitch) listenLoop() {
	for {
		conn, err := l.listener.Accept()
		if err != nil {
			_localswitchLogger.Infof("localswitch stops accepting: %s", err)
			break
		}
		mux := l.currentMux()
		go func() {
			if err := mux.ConsumeConn(conn); err != nil {
				_localswitchLogger.Errorf("localswitch connection consumption error: %s", err)
				_ = conn.Close()
			}
		}()
	}
}

func StartNewLocalSwitch() (*LocalSwitch, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	lswitch := &LocalSwitch{
		addr:     fmt.Sprintf("tcp://%s", listener.Addr().String()),
		listener: listener,
		mux:      &multiplexer.DedicatedServerConnMultiplexer{Consumers: map[int]multiplexer.TrafficConsumer{}},
	}
	go lswitch.listenLoop()
	if _localswitchLogger.IsLevelEnabled(logrus.InfoLevel) {
		_localswitchLogger.Infof("start localswitch at: %s", lswitch.SwitchAddr())
	}
	return lswitch, nil
}
