package modbus

import (
	"fmt"
	"sync"
	"time"

	"energylogger/pkg/runtime/constant"
)

// LinkLocks admits at most one open session per physical link.
type LinkLocks struct {
	mu    sync.Mutex
	links map[string]chan struct{}
}

func NewLinkLocks() *LinkLocks {
	return &LinkLocks{links: make(map[string]chan struct{}, 0)}
}

// Acquire waits up to timeout for the link to become free. The returned
// release func is idempotent.
func (l *LinkLocks) Acquire(link string, timeout time.Duration) (func(), error) {
	ch := l.link(link)
	busy := fmt.Errorf("%w: %w: %s", constant.ErrTransport, constant.ErrLinkBusy, link)

	if timeout <= 0 {
		select {
		case ch <- struct{}{}:
		default:
			return nil, busy
		}
	} else {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		select {
		case ch <- struct{}{}:
		case <-timer.C:
			return nil, busy
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-ch })
	}, nil
}

// Held reports whether a session currently owns the link.
func (l *LinkLocks) Held(link string) bool {
	return len(l.link(link)) > 0
}

func (l *LinkLocks) link(link string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.links[link]
	if !ok {
		ch = make(chan struct{}, 1)
		l.links[link] = ch
	}
	return ch
}
