package handle

import (
	"errors"
	"sync"
	"testing"

	"github.com/findy-network/findy-cxs/agent/cxserr"
	"github.com/lainio/err2/assert"
	"github.com/lainio/err2/try"
)

type obj struct {
	name     string
	released bool
}

func (o *obj) Release() {
	o.released = true
}

func TestRegistry_AllocateResolve(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	r := New[*obj]("test")
	h1 := try.To1(r.Allocate(&obj{name: "one"}))
	h2 := try.To1(r.Allocate(&obj{name: "two"}))
	assert.NotEqual(h1, h2)
	assert.Equal(h1, uint32(1))
	assert.Equal(h2, uint32(2))

	o := try.To1(r.Resolve(h2))
	assert.Equal(o.name, "two")
	assert.Equal(r.Len(), 2)
	assert.DeepEqual(r.Handles(), []Handle{h1, h2})
}

func TestRegistry_Release(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	r := New[*obj]("test")
	h := try.To1(r.Allocate(&obj{name: "one"}))
	o := try.To1(r.Release(h))
	assert.That(o.released)
	assert.That(!r.Valid(h))

	_, err := r.Resolve(h)
	assert.That(errors.Is(err, cxserr.ErrInvalidHandle))
	_, err = r.Release(h)
	assert.That(errors.Is(err, cxserr.ErrInvalidHandle))

	// slot is reused but with a new generation
	h2 := try.To1(r.Allocate(&obj{name: "two"}))
	assert.NotEqual(h, h2)
	assert.Equal(h2&slotMask, h&slotMask)
	assert.That(!r.Valid(h))
	assert.That(r.Valid(h2))
}

func TestRegistry_GenerationRetired(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	r := New[int]("wrap")
	h := try.To1(r.Allocate(1))
	r.slots[0].gen = maxGen
	h = makeHandle(0, maxGen)
	try.To1(r.Release(h))

	h2 := try.To1(r.Allocate(2))
	assert.NotEqual(h2&slotMask, h&slotMask)
	assert.Equal(len(r.slots), 2)
}

func TestRegistry_Unknown(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	r := New[int]("empty")
	_, err := r.Resolve(0)
	assert.Equal(cxserr.CodeOf(err), cxserr.InvalidHandle)
	_, err = r.Resolve(99)
	assert.Equal(cxserr.CodeOf(err), cxserr.InvalidHandle)
}

func TestRegistry_Concurrent(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	r := New[int]("conc")
	const n = 100
	var wg sync.WaitGroup
	hs := make(chan Handle, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := r.Allocate(i)
			if err == nil {
				hs <- h
			}
		}(i)
	}
	wg.Wait()
	close(hs)
	seen := make(map[Handle]bool)
	for h := range hs {
		assert.That(!seen[h])
		seen[h] = true
	}
	assert.Equal(len(seen), n)
	r.Reset()
	assert.Equal(r.Len(), 0)
}
