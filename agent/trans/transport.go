// Package trans moves packed agent messages between agents. Transport sends
// them to an endpoint, Server and Loopback deliver inbound messages to the
// Handler of the receiving agent.
package trans

import (
	"context"
	"sync"

	"github.com/findy-network/findy-cxs/agent/cxserr"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

const ContentType = "application/ssi-agent-wire"

type Transport interface {
	Send(ctx context.Context, endpoint string, data []byte) error
}

// Handler processes the inbound message of the agent.
type Handler func(data []byte) error

// Loopback is an in-process transport. Messages are delivered in their own
// goroutines, the same way as they would arrive from the network.
type Loopback struct {
	sync.RWMutex
	wg       sync.WaitGroup
	handlers map[string]Handler
}

func NewLoopback() *Loopback {
	return &Loopback{handlers: make(map[string]Handler)}
}

func (l *Loopback) Register(endpoint string, h Handler) {
	l.Lock()
	defer l.Unlock()
	l.handlers[endpoint] = h
}

func (l *Loopback) Unregister(endpoint string) {
	l.Lock()
	defer l.Unlock()
	delete(l.handlers, endpoint)
}

func (l *Loopback) Send(ctx context.Context, endpoint string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return cxserr.Wrap(cxserr.ConnectionError, err, "loopback send")
	}
	l.RLock()
	h, ok := l.handlers[endpoint]
	l.RUnlock()
	if !ok {
		return cxserr.New(cxserr.ConnectionError, "no route to %s", endpoint)
	}

	msg := append(data[:0:0], data...)
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		deliver("loopback "+endpoint, h, msg)
	}()
	return nil
}

// deliver calls the handler and logs what it returns. A panicking handler is
// logged as well, it must not take the process down.
func deliver(name string, h Handler, data []byte) {
	defer err2.Catch(err2.Err(func(err error) {
		glog.Warningf("%s handler: %v", name, err)
	}), func(p any) {
		glog.Errorf("%s handler panic: %v", name, p)
	})

	try.To(h(data))
}

// Wait blocks until all the delivered messages are handled.
func (l *Loopback) Wait() {
	l.wg.Wait()
}
