package coordinator_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/meidoworks/orgsync/api"
	"github.com/meidoworks/orgsync/clients/barrierclient"
	"github.com/meidoworks/orgsync/service/barrier"
	"github.com/meidoworks/orgsync/service/coordinator"
	"github.com/meidoworks/orgsync/service/facade"
	"github.com/meidoworks/orgsync/shared/testlib"

	"github.com/gin-gonic/gin"
)

var nodes = []api.Node{
	{Name: "peer0.org1", MSPID: "Org1MSP", AdminMSPs: []string{"Org1MSP"}},
	{Name: "peer0.org2", MSPID: "Org2MSP", AdminMSPs: []string{"Org2MSP"}},
	{Name: "peer0.org3", MSPID: "Org3MSP", AdminMSPs: []string{"Org3MSP"}},
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newFacade(t *testing.T) (*facade.Facade, *testlib.FakeOrgClient, *testlib.FakeOrgClient) {
	org1 := testlib.NewFakeOrgClient("Org1MSP")
	org1.Genesis = []byte("genesis")
	org1.Nodes = nodes
	org2 := testlib.NewFakeOrgClient("Org2MSP")
	f, err := facade.New(org1, org2)
	testlib.AssertError(t, err)
	return f, org1, org2
}

func newBarrier(t *testing.T, client api.LedgerClient) *barrier.Server {
	b, err := barrier.NewServer(context.Background(), barrier.Config{Listen: "127.0.0.1:0", Client: client, Channel: "mychannel"})
	testlib.AssertError(t, err)
	testlib.AssertError(t, b.Start())
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func serve(t *testing.T, c *coordinator.Coordinator) *httptest.Server {
	srv := httptest.NewServer(c.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body interface{}, out interface{}) int {
	var data []byte
	if body != nil {
		var err error
		data, err = json.Marshal(body)
		testlib.AssertError(t, err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	testlib.AssertError(t, err)
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK && out != nil {
		testlib.AssertError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestJoinThroughFacade(t *testing.T) {
	f, org1, org2 := newFacade(t)
	c := coordinator.NewCoordinator(f, nil, coordinator.Config{Channel: "mychannel", Nodes: nodes})
	srv := serve(t, c)

	v := new(coordinator.OperationView)
	if code := postJSON(t, srv.URL+"/v1/channels/mychannel/join", nil, v); code != http.StatusOK {
		t.Fatal("join failed:", code)
	}
	if len(v.Partitions) != 2 || v.Partitions[0].MSPID != "Org1MSP" || v.Partitions[1].Nodes[0] != "peer0.org2" {
		t.Fatal("unexpected partitions:", v.Partitions)
	}
	if len(org1.CallsOf("GenesisBlock")) != 1 || len(org2.CallsOf("GenesisBlock")) != 0 {
		t.Fatal("genesis block should come from the primary")
	}
	if len(f.Bound("mychannel")) != 3 {
		t.Fatal("channel nodes should be bound on the facade")
	}
}

func TestJoinWithSingleClient(t *testing.T) {
	org1 := testlib.NewFakeOrgClient("Org1MSP")
	c := coordinator.NewCoordinator(org1, nil, coordinator.Config{Channel: "mychannel", Nodes: nodes})

	v, err := c.JoinChannel(context.Background(), "mychannel", []string{"peer0.org1"}, false)
	testlib.AssertError(t, err)
	if len(v.Partitions) != 1 || v.Partitions[0].MSPID != "Org1MSP" || v.Partitions[0].Nodes[0] != "peer0.org1" {
		t.Fatal("unexpected view:", v)
	}

	if _, err := c.JoinChannel(context.Background(), "mychannel", []string{"peer9"}, false); !errors.Is(err, coordinator.ErrUnknownNode) {
		t.Fatal("expect unknown node, got", err)
	}
	if err := c.Rendezvous(time.Second); !errors.Is(err, coordinator.ErrNoBarrier) {
		t.Fatal("expect no barrier, got", err)
	}
}

func TestInstallFailure(t *testing.T) {
	f, _, org2 := newFacade(t)
	org2.OnCall = func(op string, targets []api.Node) (*api.Outcome, error) {
		return nil, errors.New("disk full")
	}
	srv := serve(t, coordinator.NewCoordinator(f, nil, coordinator.Config{Channel: "mychannel", Nodes: nodes}))

	code := postJSON(t, srv.URL+"/v1/chaincodes/install", map[string]interface{}{"chaincode_id": "mycc", "version": "1.0"}, nil)
	if code != http.StatusBadGateway {
		t.Fatal("expect 502, got", code)
	}
	if code := postJSON(t, srv.URL+"/v1/chaincodes/install", map[string]interface{}{"version": "1.0"}, nil); code != http.StatusBadRequest {
		t.Fatal("expect 400, got", code)
	}
}

func TestBarrierEndpoints(t *testing.T) {
	f, _, _ := newFacade(t)
	b := newBarrier(t, f)
	srv := serve(t, coordinator.NewCoordinator(f, b, coordinator.Config{Channel: "mychannel", Nodes: nodes}))

	resp, err := http.Get(srv.URL + "/v1/barrier/status")
	testlib.AssertError(t, err)
	st := new(barrier.Status)
	testlib.AssertError(t, json.NewDecoder(resp.Body).Decode(st))
	resp.Body.Close()
	if len(st.Expected) != 1 || st.Expected[0] != "Org3MSP" {
		t.Fatal("unexpected status:", st)
	}

	if code := postJSON(t, srv.URL+"/v1/barrier/wait?timeout_ms=50", nil, nil); code != http.StatusGatewayTimeout {
		t.Fatal("expect 504, got", code)
	}
	if code := postJSON(t, srv.URL+"/v1/barrier/wait?timeout_ms=abc", nil, nil); code != http.StatusBadRequest {
		t.Fatal("expect 400, got", code)
	}
	if code := postJSON(t, srv.URL+"/v1/barrier/complete", nil, nil); code != http.StatusNoContent {
		t.Fatal("expect 204, got", code)
	}

	noBarrier := serve(t, coordinator.NewCoordinator(f, nil, coordinator.Config{}))
	if code := postJSON(t, noBarrier.URL+"/v1/barrier/complete", nil, nil); code != http.StatusServiceUnavailable {
		t.Fatal("expect 503, got", code)
	}
}

func TestJoinWithRendezvous(t *testing.T) {
	f, _, _ := newFacade(t)
	b := newBarrier(t, f)
	srv := serve(t, coordinator.NewCoordinator(f, b, coordinator.Config{Channel: "mychannel", Nodes: nodes, WaitTimeout: 5 * time.Second}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p, err := barrierclient.Dial(ctx, barrierclient.Config{Server: b.Addr().String(), MSPIDs: []string{"Org3MSP"}})
	testlib.AssertError(t, err)
	defer p.Close()
	go func() {
		_ = p.Run(context.Background())
	}()
	completed := p.Completed()

	body, err := json.Marshal(map[string]interface{}{"nodes": []string{"peer0.org1", "peer0.org2", "peer0.org3"}})
	testlib.AssertError(t, err)
	done := make(chan int, 1)
	v := new(coordinator.OperationView)
	go func() {
		resp, err := http.Post(srv.URL+"/v1/channels/mychannel/join?rendezvous=true", "application/json", bytes.NewReader(body))
		if err != nil {
			done <- 0
			return
		}
		defer resp.Body.Close()
		_ = json.NewDecoder(resp.Body).Decode(v)
		done <- resp.StatusCode
	}()
	testlib.Eventually(t, 5*time.Second, func() bool { return b.Status().InProgress }, "rendezvous started")
	testlib.AssertError(t, p.MarkReady(ctx))

	select {
	case code := <-done:
		if code != http.StatusOK || !v.Rendezvous {
			t.Fatal("unexpected join result:", code, v)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("join did not finish")
	}
	select {
	case <-completed:
	case <-time.After(5 * time.Second):
		t.Fatal("participant was not told about completion")
	}
}
