package sink

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"energylogger/pkg/runtime"
	v1 "energylogger/pkg/v1"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	mu     sync.Mutex
	name   string
	writes [][]runtime.Point
	fail   bool
	panics bool
	block  chan struct{}
	closed bool
}

func (s *fakeSink) Write(ctx context.Context, points []runtime.Point) error {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if s.panics {
		panic("sink bug")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, points)
	if s.fail {
		return errors.New("connection refused")
	}
	return nil
}

func (s *fakeSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSink) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.writes)
}

func (s *fakeSink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// fakeFactory hands out one fakeSink per build, keyed by sink name. Params
// fail and panic configure the fake.
type fakeFactory struct {
	mu    sync.Mutex
	built map[string][]*fakeSink
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{built: map[string][]*fakeSink{}}
}

func (f *fakeFactory) New(s *v1.Sink) (Sink, error) {
	if s.Params["broken"] == true {
		return nil, errors.New("bad params")
	}
	fs := &fakeSink{name: s.Name}
	fs.fail, _ = s.Params["fail"].(bool)
	fs.panics, _ = s.Params["panic"].(bool)
	f.mu.Lock()
	f.built[s.Name] = append(f.built[s.Name], fs)
	f.mu.Unlock()
	return fs, nil
}

func (f *fakeFactory) last(name string) *fakeSink {
	f.mu.Lock()
	defer f.mu.Unlock()
	built := f.built[name]
	if len(built) == 0 {
		return nil
	}
	return built[len(built)-1]
}

func (f *fakeFactory) factories() Factories {
	return Factories{"fake": f.New}
}

func writeSinks(t *testing.T, path, content string, mod time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	require.NoError(t, os.Chtimes(path, mod, mod))
}

func newTestRegistry(t *testing.T, content string, opts ...Option) (*Registry, *fakeFactory, string, time.Time) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sinks.yml")
	base := time.Now().Add(-time.Hour).Truncate(time.Second)
	writeSinks(t, path, content, base)
	f := newFakeFactory()
	r := NewRegistry(path, f.factories(), opts...)
	require.NoError(t, r.Init())
	return r, f, path, base
}

func testRecords() []*runtime.DeviceRecord {
	r := runtime.NewDeviceRecord(1, "main", 2)
	r.Set("Voltage", float32(230.5))
	r.Set("Current", nil)
	r.ReadTime = 150 * time.Millisecond
	return []*runtime.DeviceRecord{r}
}
