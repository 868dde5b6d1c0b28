package async

import (
	"sync/atomic"

	"github.com/findy-network/findy-cxs/agent/cxserr"
	"github.com/findy-network/findy-wrapper-go/dto"
	"github.com/golang/glog"
)

// Work is the asynchronous part of a command.
type Work func() (dto.Result, error)

// Done receives the outcome of a command. It's called exactly once.
type Done func(cmd uint32, r dto.Result, err error)

var inFlight atomic.Int64

// InFlight returns the number of commands whose callback has not returned yet.
func InFlight() int64 {
	return inFlight.Load()
}

// Run executes the work in a new goroutine and delivers the result to done.
// A panic in the work is reported as UnknownError.
func Run(cmd uint32, work Work, done Done) {
	inFlight.Add(1)
	go func() {
		defer inFlight.Add(-1)
		r := exec(work)
		deliver(cmd, r, done)
	}()
}

// Go executes the work in a new goroutine and returns a Future for its result.
func Go(work Work) *Future {
	ch := make(Channel, 1)
	go func() {
		ch <- exec(work)
	}()
	return NewFuture(ch)
}

// Pending returns a Future and the Done which completes it. It's handy for
// callers who want to wait a command synchronously.
func Pending() (*Future, Done) {
	ch := make(Channel, 1)
	var once atomic.Bool
	return NewFuture(ch), func(_ uint32, r dto.Result, err error) {
		if !once.CompareAndSwap(false, true) {
			glog.Error("result delivered twice")
			return
		}
		if err != nil {
			r = Failed(err)
		}
		ch <- r
	}
}

func exec(work Work) (r dto.Result) {
	defer func() {
		if p := recover(); p != nil {
			glog.Errorf("command panic: %v", p)
			r = Failed(cxserr.New(cxserr.UnknownError, "panic: %v", p))
		}
	}()
	r, err := work()
	if err != nil {
		return Failed(err)
	}
	return r
}

func deliver(cmd uint32, r dto.Result, done Done) {
	defer func() {
		if p := recover(); p != nil {
			glog.Errorf("callback of command %d panics: %v", cmd, p)
		}
	}()
	done(cmd, r, ErrOf(r))
}
