// Package handle implements the object registry which maps opaque integer
// handles to live protocol objects. Handles are generation tagged: the low 16
// bits hold the slot index plus one and the high 16 bits the generation of the
// slot. A released handle never resolves again, and a slot whose generation
// would wrap around is retired for good.
package handle

import (
	"sync"

	"github.com/findy-network/findy-cxs/agent/cxserr"
	"github.com/golang/glog"
)

type Handle = uint32

const (
	slotBits = 16
	slotMask = 1<<slotBits - 1
	maxGen   = 1<<(32-slotBits) - 1
	maxSlots = slotMask
)

// Releaser is implemented by objects which hold resources that must be freed
// when their handle is released, e.g. session keys.
type Releaser interface {
	Release()
}

type slot[T any] struct {
	gen   uint32
	live  bool
	dead  bool // retired, generation exhausted
	value T
}

// Registry is safe for concurrent use. The zero value is not usable, use New.
type Registry[T any] struct {
	sync.Mutex
	name  string
	slots []slot[T]
	free  []int
	count int
}

func New[T any](name string) *Registry[T] {
	return &Registry[T]{name: name}
}

func (r *Registry[T]) Name() string {
	return r.name
}

func makeHandle(idx int, gen uint32) Handle {
	return gen<<slotBits | uint32(idx+1)
}

func split(h Handle) (idx int, gen uint32) {
	return int(h&slotMask) - 1, h >> slotBits
}

// Allocate stores the obj and returns a new handle for it.
func (r *Registry[T]) Allocate(obj T) (h Handle, err error) {
	r.Lock()
	defer r.Unlock()

	var idx int
	if n := len(r.free); n > 0 {
		idx = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		if len(r.slots) >= maxSlots {
			return 0, cxserr.New(cxserr.UnknownError,
				"%s registry full", r.name)
		}
		r.slots = append(r.slots, slot[T]{})
		idx = len(r.slots) - 1
	}
	s := &r.slots[idx]
	s.live = true
	s.value = obj
	r.count++
	h = makeHandle(idx, s.gen)
	glog.V(5).Infof("%s: allocate handle %d", r.name, h)
	return h, nil
}

func (r *Registry[T]) lookup(h Handle) (*slot[T], error) {
	idx, gen := split(h)
	if idx < 0 || idx >= len(r.slots) {
		return nil, cxserr.New(cxserr.InvalidHandle, "%s handle %d", r.name, h)
	}
	s := &r.slots[idx]
	if !s.live || s.gen != gen {
		return nil, cxserr.New(cxserr.InvalidHandle, "%s handle %d", r.name, h)
	}
	return s, nil
}

// Resolve returns the object of the handle or InvalidHandle error.
func (r *Registry[T]) Resolve(h Handle) (obj T, err error) {
	r.Lock()
	defer r.Unlock()

	s, err := r.lookup(h)
	if err != nil {
		return obj, err
	}
	return s.value, nil
}

func (r *Registry[T]) Valid(h Handle) bool {
	r.Lock()
	defer r.Unlock()
	_, err := r.lookup(h)
	return err == nil
}

// Release removes the object and invalidates the handle permanently. If the
// object implements Releaser its Release is called after the registry lock is
// freed.
func (r *Registry[T]) Release(h Handle) (obj T, err error) {
	r.Lock()
	s, err := r.lookup(h)
	if err != nil {
		r.Unlock()
		return obj, err
	}
	obj = r.retire(s, h)
	r.Unlock()

	if rel, ok := any(obj).(Releaser); ok {
		rel.Release()
	}
	glog.V(5).Infof("%s: released handle %d", r.name, h)
	return obj, nil
}

func (r *Registry[T]) retire(s *slot[T], h Handle) (obj T) {
	var zero T
	obj = s.value
	s.value = zero
	s.live = false
	r.count--
	if s.gen == maxGen {
		s.dead = true
		return obj
	}
	s.gen++
	idx, _ := split(h)
	r.free = append(r.free, idx)
	return obj
}

// Handles returns all live handles in slot order.
func (r *Registry[T]) Handles() []Handle {
	r.Lock()
	defer r.Unlock()

	hs := make([]Handle, 0, r.count)
	for i := range r.slots {
		if r.slots[i].live {
			hs = append(hs, makeHandle(i, r.slots[i].gen))
		}
	}
	return hs
}

func (r *Registry[T]) Len() int {
	r.Lock()
	defer r.Unlock()
	return r.count
}

// Reset releases every live object. It's used at teardown.
func (r *Registry[T]) Reset() {
	for _, h := range r.Handles() {
		_, _ = r.Release(h)
	}
}
