// Package async implements the command/callback model of the API. Every
// state-changing command runs its work in a goroutine of its own and reports
// the outcome exactly once through a callback, never from the calling
// goroutine. Results travel as findy-wrapper-go dto.Result values.
package async

import (
	"strings"
	"sync"

	"github.com/findy-network/findy-cxs/agent/cxserr"
	"github.com/findy-network/findy-wrapper-go/dto"
)

// Channel carries one result, it's the same as findy.Channel of the wrapper.
type Channel = chan dto.Result

type State uint32

const (
	empty State = iota
	triggered
	Consumed
)

// Future is a result which arrives later through the Channel.
type Future struct {
	On State
	V  dto.Result
	ch Channel
	lo sync.Mutex
}

// NewFuture changes the existing Channel to a Future.
func NewFuture(ch Channel) *Future {
	f := &Future{}
	f.SetChan(ch)
	return f
}

// SetChan sets the existing Channel to this Future. Previous unread
// result is read off first.
func (f *Future) SetChan(ch Channel) {
	f.lo.Lock()
	defer f.lo.Unlock()
	if f.On == triggered {
		f.V = <-f.ch
	}
	f.ch = ch
	f.On = triggered
}

func (f *Future) IsEmpty() bool {
	f.lo.Lock()
	defer f.lo.Unlock()
	return f.On == empty
}

// Wait blocks until the result is available. The result is read only once,
// after that Wait returns the stored value.
func (f *Future) Wait() (r dto.Result, err error) {
	f.lo.Lock()
	defer f.lo.Unlock()
	if f.On == triggered {
		f.V = <-f.ch
		f.On = Consumed
	}
	return f.V, ErrOf(f.V)
}

func (f *Future) Handle() (uint32, error) {
	r, err := f.Wait()
	return uint32(r.Handle()), err
}

func (f *Future) Str1() (string, error) {
	r, err := f.Wait()
	return r.Str1(), err
}

func (f *Future) Strs() (s1, s2, s3 string, err error) {
	r, err := f.Wait()
	return r.Str1(), r.Str2(), r.Str3(), err
}

// Failed builds an error result. The error code travels in the result.
func Failed(err error) dto.Result {
	return dto.Result{
		Er: dto.Err{
			Error: err.Error(),
			Code:  int(cxserr.CodeOf(err)),
		},
	}
}

// ErrOf returns the error of the result as *cxserr.Error or nil.
func ErrOf(r dto.Result) error {
	if r.Er.Code == 0 && r.Er.Error == "" {
		return nil
	}
	c := cxserr.Code(r.Er.Code)
	if c == cxserr.Success {
		c = cxserr.UnknownError
	}
	return &cxserr.Error{
		Code: c,
		Msg:  strings.TrimPrefix(r.Er.Error, c.String()+": "),
	}
}

func Handle(h uint32) dto.Result {
	return dto.Result{Data: dto.Data{Handle: int(h)}}
}

func Str(s string) dto.Result {
	return dto.Result{Data: dto.Data{Str1: s}}
}

func Strs(s1, s2, s3 string) dto.Result {
	return dto.Result{Data: dto.Data{Str1: s1, Str2: s2, Str3: s3}}
}
