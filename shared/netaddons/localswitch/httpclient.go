package localswitch

import (
	"context"
	"net"
	"net/http"
	"net/http/cookiejar"

	"github.com/meidoworks/orgsync/shared/netaddons/multiplexer"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/publicsuffix"
)

// NewLocalSwitchHttpClient returns a client whose every dial goes through the
// switch to the consumer of trafficIndex, regardless of the URL host.
func NewLocalSwitchHttpClient(lswitch *LocalSwitch, trafficIndex uint8) *http.Client {
	newTransport := http.DefaultTransport.(*http.Transport).Clone()
	newTransport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := lswitch.Connect(trafficIndex)
		if err != nil {
			return nil, err
		}
		if _localswitchLogger.IsLevelEnabled(logrus.DebugLevel) {
			_localswitchLogger.Debugf("http localswitch dialer: convert to localswitch traffic [%d] for %s", trafficIndex, addr)
		}
		return conn, nil
	}
	cookieJar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	return &http.Client{
		Transport: newTransport,
		Jar:       cookieJar,
	}
}

// ServeTraffic registers trafficIndex on the switch and returns a listener
// receiving its connections.
func ServeTraffic(lswitch *LocalSwitch, trafficIndex uint8) *LocalSwitchNetListener {
	listener := NewLocalSwitchNetListener()
	lswitch.AddTrafficConsumer(trafficIndex, func(conn net.Conn, _ multiplexer.TrafficMeta) error {
		listener.PublishNetConn(conn)
		return nil
	})
	return listener
}
