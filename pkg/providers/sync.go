package providers

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/stasisproject/stasis/pkg/capsule"
)

// MutexProvider captures sync.Mutex and sync.RWMutex held state. The
// probe uses TryLock so a held lock is observed without blocking; the
// rebuilt mutex is a fresh instance, re-locked when the original was
// held at capture time.
type MutexProvider struct{}

// NewMutexProvider returns the mutex provider.
func NewMutexProvider() *MutexProvider {
	return &MutexProvider{}
}

func (p *MutexProvider) Name() string  { return "sync.mutex" }
func (p *MutexProvider) Priority() int { return 100 }

func (p *MutexProvider) Match(v any) bool {
	switch v.(type) {
	case *sync.Mutex, *sync.RWMutex:
		return true
	}
	return false
}

func (p *MutexProvider) Extract(ctx context.Context, v any, opts *capsule.Options) (*capsule.StateBundle, error) {
	b := capsule.NewBundle()
	switch m := v.(type) {
	case *sync.Mutex:
		held := !m.TryLock()
		if !held {
			m.Unlock()
		}
		b.Set("kind", "mutex").Set("held", held)
	case *sync.RWMutex:
		held := !m.TryLock()
		if !held {
			m.Unlock()
		}
		// A write-held RWMutex also refuses readers; distinguish a
		// read-held one by probing the read side.
		readHeld := false
		if !held {
			readHeld = !m.TryRLock()
			if !readHeld {
				m.RUnlock()
			}
		}
		b.Set("kind", "rwmutex").Set("held", held).Set("read_held", readHeld)
	default:
		return nil, fmt.Errorf("unexpected type %T", v)
	}
	return b, nil
}

func (p *MutexProvider) Rebuild(ctx context.Context, b *capsule.StateBundle) (any, error) {
	kind, err := b.MustString("kind")
	if err != nil {
		return nil, err
	}
	held, _ := b.Bool("held")
	switch kind {
	case "mutex":
		m := &sync.Mutex{}
		if held {
			m.Lock()
		}
		return m, nil
	case "rwmutex":
		m := &sync.RWMutex{}
		if held {
			m.Lock()
		} else if readHeld, _ := b.Bool("read_held"); readHeld {
			m.RLock()
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown mutex kind %q", kind)
	}
}

// AtomicProvider captures the atomic wrapper types by loading their
// current value and rebuilding a fresh wrapper holding it.
type AtomicProvider struct{}

// NewAtomicProvider returns the atomic provider.
func NewAtomicProvider() *AtomicProvider {
	return &AtomicProvider{}
}

func (p *AtomicProvider) Name() string  { return "sync.atomic" }
func (p *AtomicProvider) Priority() int { return 100 }

func (p *AtomicProvider) Match(v any) bool {
	switch v.(type) {
	case *atomic.Bool, *atomic.Int32, *atomic.Int64, *atomic.Uint32, *atomic.Uint64:
		return true
	}
	return false
}

func (p *AtomicProvider) Extract(ctx context.Context, v any, opts *capsule.Options) (*capsule.StateBundle, error) {
	b := capsule.NewBundle()
	switch a := v.(type) {
	case *atomic.Bool:
		b.Set("kind", "bool").Set("value", a.Load())
	case *atomic.Int32:
		b.Set("kind", "int32").Set("value", int64(a.Load()))
	case *atomic.Int64:
		b.Set("kind", "int64").Set("value", a.Load())
	case *atomic.Uint32:
		b.Set("kind", "uint32").Set("value", uint64(a.Load()))
	case *atomic.Uint64:
		b.Set("kind", "uint64").Set("value", a.Load())
	default:
		return nil, fmt.Errorf("unexpected type %T", v)
	}
	return b, nil
}

func (p *AtomicProvider) Rebuild(ctx context.Context, b *capsule.StateBundle) (any, error) {
	kind, err := b.MustString("kind")
	if err != nil {
		return nil, err
	}
	switch kind {
	case "bool":
		val, _ := b.Bool("value")
		a := &atomic.Bool{}
		a.Store(val)
		return a, nil
	case "int32":
		val, _ := b.Int("value")
		a := &atomic.Int32{}
		a.Store(int32(val))
		return a, nil
	case "int64":
		val, _ := b.Int("value")
		a := &atomic.Int64{}
		a.Store(val)
		return a, nil
	case "uint32":
		val, _ := b.Int("value")
		a := &atomic.Uint32{}
		a.Store(uint32(val))
		return a, nil
	case "uint64":
		val, _ := b.Int("value")
		a := &atomic.Uint64{}
		a.Store(uint64(val))
		return a, nil
	default:
		return nil, fmt.Errorf("unknown atomic kind %q", kind)
	}
}
