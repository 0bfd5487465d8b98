package localswitch

import (
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/meidoworks/orgsync/shared/netaddons/multiplexer"
)

func TestSimpleSwitch(t *testing.T) {
	const data byte = 147
	rCh := make(chan bool, 1)

	lswitch, err := StartNewLocalSwitch()
	if err != nil {
		t.Fatal(err)
	}
	defer lswitch.Close()
	lswitch.AddTrafficConsumer(1, func(conn net.Conn, meta multiplexer.TrafficMeta) error {
		d := make([]byte, 1)
		_, _ = conn.Read(d)
		rCh <- d[0] == data
		return nil
	})
	conn, err := lswitch.Connect(1)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	_, _ = conn.Write([]byte{data})

	select {
	case r := <-rCh:
		if !r {
			t.Fatal("unexpected data received")
		}
	case <-time.NewTimer(5 * time.Second).C:
		t.Fatal("timeout")
	}
}

func TestLocalSwitchForHttpServer(t *testing.T) {
	lswitch, err := StartNewLocalSwitch()
	if err != nil {
		t.Fatal(err)
	}
	defer lswitch.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	l := ServeTraffic(lswitch, 7)
	server := &http.Server{Handler: mux}
	go func() {
		_ = server.Serve(l)
	}()
	defer server.Close()

	c := NewLocalSwitchHttpClient(lswitch, 7)
	resp, err := c.Get("http://Org1MSP.inproc/ping")
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusTeapot {
		t.Fatal("unexpected status:", resp.Status)
	}
}
