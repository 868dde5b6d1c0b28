package trans

import (
	"context"
	"errors"
	"flag"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/findy-network/findy-cxs/agent/cxserr"
	"github.com/lainio/err2/assert"
)

func TestMain(m *testing.M) {
	_ = flag.Set("logtostderr", "true")
	_ = flag.Set("v", "0")
	os.Exit(m.Run())
}

func TestLoopback_Send(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	l := NewLoopback()
	var got atomic.Value
	l.Register("alice", func(data []byte) error {
		got.Store(string(data))
		return nil
	})

	msg := []byte("hello")
	assert.NoError(l.Send(context.Background(), "alice", msg))
	msg[0] = 'j'
	l.Wait()
	assert.Equal(got.Load().(string), "hello")

	err := l.Send(context.Background(), "bob", msg)
	assert.Error(err)
	assert.Equal(cxserr.CodeOf(err), cxserr.ConnectionError)

	l.Unregister("alice")
	assert.Error(l.Send(context.Background(), "alice", msg))
}

func TestLoopback_Canceled(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	l := NewLoopback()
	l.Register("alice", func([]byte) error { return nil })
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := l.Send(ctx, "alice", nil)
	assert.That(errors.Is(err, cxserr.ErrConnection))
}

func TestLoopback_HandlerPanics(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	l := NewLoopback()
	var m map[string]int
	l.Register("crash", func([]byte) error {
		m["x"] = 1
		return nil
	})
	l.Register("fail", func([]byte) error {
		return cxserr.New(cxserr.InvalidJSON, "bad message")
	})
	var count atomic.Int32
	l.Register("ok", func([]byte) error {
		count.Add(1)
		return nil
	})

	assert.NoError(l.Send(context.Background(), "crash", []byte("x")))
	assert.NoError(l.Send(context.Background(), "fail", []byte("x")))
	l.Wait()
	assert.NoError(l.Send(context.Background(), "ok", []byte("x")))
	l.Wait()
	assert.Equal(count.Load(), int32(1))
}

func TestServer_HandlerPanics(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	s := NewServer("cxs", "1.0")
	crashed := make(chan struct{})
	s.Register("crash", func([]byte) error {
		defer close(crashed)
		var p *struct{ n int }
		p.n++
		return nil
	})
	received := make(chan string, 1)
	s.Register("ok", func(data []byte) error {
		received <- string(data)
		return nil
	})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	h := NewHTTP(5 * time.Second)
	assert.NoError(h.Send(context.Background(), s.Endpoint(ts.URL, "crash"), []byte("x")))
	select {
	case <-crashed:
	case <-time.After(5 * time.Second):
		t.Fatal("message not delivered")
	}
	assert.NoError(h.Send(context.Background(), s.Endpoint(ts.URL, "ok"), []byte("still up")))
	select {
	case msg := <-received:
		assert.Equal(msg, "still up")
	case <-time.After(5 * time.Second):
		t.Fatal("message not delivered")
	}
}

func TestServer_Transport(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	s := NewServer("cxs", "1.0")
	received := make(chan string, 1)
	s.Register("a1", func(data []byte) error {
		received <- string(data)
		return nil
	})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	h := NewHTTP(5 * time.Second)
	assert.NoError(h.Send(context.Background(), s.Endpoint(ts.URL, "a1"), []byte("packed")))
	select {
	case msg := <-received:
		assert.Equal(msg, "packed")
	case <-time.After(5 * time.Second):
		t.Fatal("message not delivered")
	}

	err := h.Send(context.Background(), s.Endpoint(ts.URL, "nobody"), []byte("x"))
	assert.Error(err)
	assert.Equal(cxserr.CodeOf(err), cxserr.ConnectionError)
	assert.That(strings.Contains(err.Error(), "404"))

	resp, err := http.Get(ts.URL + "/version")
	assert.NoError(err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(string(body), "1.0")
}

func TestHTTP_BadEndpoint(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	h := NewHTTP(time.Second)
	err := h.Send(context.Background(), "http://127.0.0.1:1/none", []byte("x"))
	assert.Error(err)
	assert.Equal(cxserr.CodeOf(err), cxserr.ConnectionError)
}

func TestCheckHTTPStatus(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	rec := httptest.NewRecorder()
	errorResponse(rec, http.StatusInternalServerError, strings.Repeat("e", 200))
	resp := rec.Result()
	body, _ := io.ReadAll(resp.Body)
	err := checkHTTPStatus(resp, body)
	assert.Error(err)
	assert.That(len(err.Error()) < 120)

	rec = httptest.NewRecorder()
	rec.WriteHeader(http.StatusAccepted)
	assert.NoError(checkHTTPStatus(rec.Result(), nil))
}
