package async

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/findy-network/findy-cxs/agent/cxserr"
	"github.com/findy-network/findy-wrapper-go/dto"
	"github.com/lainio/err2/assert"
	"github.com/lainio/err2/try"
)

func fillChannel(cmd uint32, ch Channel) {
	r := dto.Result{}
	r.SetHandle(int(cmd))
	ch <- r
}

func TestFuture_WaitAndSetChan(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	f := &Future{}
	assert.That(f.IsEmpty())

	ch := make(Channel, 1)
	f.SetChan(ch)
	fillChannel(1, ch)
	h := try.To1(f.Handle())
	assert.Equal(h, uint32(1))

	// consumed value stays
	h = try.To1(f.Handle())
	assert.Equal(h, uint32(1))

	f.SetChan(ch)
	fillChannel(2, ch)
	h = try.To1(f.Handle())
	assert.Equal(h, uint32(2))
}

func TestFuture_Error(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	ch := make(Channel, 1)
	ch <- Failed(cxserr.State("offer not sent"))
	f := NewFuture(ch)
	_, err := f.Wait()
	assert.Error(err)
	assert.Equal(cxserr.CodeOf(err), cxserr.InvalidState)
	assert.Equal(err.Error(), "InvalidState: offer not sent")

	// a second read returns the same error
	_, err = f.Wait()
	assert.That(errors.Is(err, cxserr.ErrInvalidState))
}

func TestRun_ExactlyOnce(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	var (
		mu    sync.Mutex
		calls = map[uint32]int{}
		wg    sync.WaitGroup
	)
	const n = 50
	wg.Add(n)
	for i := uint32(1); i <= n; i++ {
		i := i
		Run(i, func() (dto.Result, error) {
			if i%2 == 0 {
				return dto.Result{}, cxserr.New(cxserr.LedgerError, "even")
			}
			return Handle(i), nil
		}, func(cmd uint32, r dto.Result, err error) {
			defer wg.Done()
			mu.Lock()
			defer mu.Unlock()
			calls[cmd]++
			if cmd%2 == 0 {
				assert.Equal(cxserr.CodeOf(err), cxserr.LedgerError)
			} else {
				assert.NoError(err)
				assert.Equal(uint32(r.Handle()), cmd)
			}
		})
	}
	wg.Wait()
	for i := uint32(1); i <= n; i++ {
		assert.Equal(calls[i], 1)
	}
}

func TestRun_NotSynchronous(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	called := make(chan struct{})
	var returned sync.WaitGroup
	returned.Add(1)
	Run(1, func() (dto.Result, error) {
		return Str("ok"), nil
	}, func(uint32, dto.Result, error) {
		returned.Wait() // deadlocks if called from Run's goroutine
		close(called)
	})
	returned.Done()

	select {
	case <-called:
	case <-time.After(5 * time.Second):
		t.Fatal("callback not called")
	}
}

func TestRun_Panic(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	f, done := Pending()
	Run(3, func() (dto.Result, error) {
		panic("boom")
	}, done)
	_, err := f.Wait()
	assert.Equal(cxserr.CodeOf(err), cxserr.UnknownError)
}

func TestGo(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	f := Go(func() (dto.Result, error) {
		return Strs("a", "b", "c"), nil
	})
	s1, s2, s3 := try.To3(f.Strs())
	assert.Equal(s1+s2+s3, "abc")
}
