package httpaddons

import (
	"bufio"
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLongPolling(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := SendMessage(w, []byte(`{"status":"pending"}`)); err != nil {
			t.Log(err)
		}
		time.Sleep(200 * time.Millisecond)
		if err := SendMessage(w, []byte(`{"status":"VALID"}`)); err != nil {
			t.Log(err)
		}
	}))
	defer srv.Close()

	c := &http.Client{Timeout: 5 * time.Second}
	resp, err := c.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	bReader := bufio.NewReader(resp.Body)
	for _, expected := range []string{`{"status":"pending"}`, `{"status":"VALID"}`} {
		msg, err := PollingMessage(bReader)
		if err != nil {
			t.Fatal(err)
		}
		if string(msg) != expected {
			t.Fatal("unexpected message:", string(msg))
		}
	}
}

func TestIllegalFrames(t *testing.T) {
	if err := SendMessage(new(bytes.Buffer), nil); !errors.Is(err, ErrEmptyMessage) {
		t.Fatal("expect empty message error, got", err)
	}
	if _, err := PollingMessage(bufio.NewReader(bytes.NewBufferString("garbage,10\r\n0123456789"))); !errors.Is(err, ErrIllegalHeader) {
		t.Fatal("expect illegal header, got", err)
	}
	if _, err := PollingMessage(bufio.NewReader(bytes.NewBufferString(messageStarter + "\r\n"))); !errors.Is(err, ErrIncompleteHeader) {
		t.Fatal("expect incomplete header, got", err)
	}
}
