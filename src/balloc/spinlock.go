package balloc

import (
	"runtime"
	"sync/atomic"
)

// spinLock is a non-reentrant spinlock. A hypervisor stub has no
// scheduler to suspend on, so the allocator cannot block on a
// sync.Mutex the way a hosted Go program would; it spins, yielding the
// processor between attempts.
type spinLock struct {
	state int32
}

func (s *spinLock) Lock() {
	for !atomic.CompareAndSwapInt32(&s.state, 0, 1) {
		runtime.Gosched()
	}
}

func (s *spinLock) Unlock() {
	atomic.StoreInt32(&s.state, 0)
}
