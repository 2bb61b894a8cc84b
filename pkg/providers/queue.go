package providers

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/stasisproject/stasis/pkg/capsule"
)

// QueueProvider captures buffered channels. The snapshot is
// non-destructive: buffered elements are drained with a non-blocking
// receive, recorded, and immediately sent back in their original order.
// Concurrent producers or consumers racing the snapshot see a channel
// that is briefly empty; the snapshot timeout bounds how long the
// restore may retry against a racing producer.
//
// Rebuild produces a fresh `chan any` with the original capacity,
// pre-loaded with the captured elements. The element type is recorded
// but not reconstructed: a cross-process decode has no registry of
// channel element types.
type QueueProvider struct{}

// NewQueueProvider returns the buffered-channel provider.
func NewQueueProvider() *QueueProvider {
	return &QueueProvider{}
}

func (p *QueueProvider) Name() string  { return "queue.chan" }
func (p *QueueProvider) Priority() int { return 150 }

func (p *QueueProvider) Match(v any) bool {
	t := reflect.TypeOf(v)
	if t == nil || t.Kind() != reflect.Chan {
		return false
	}
	// Both directions are required: receive to drain, send to put the
	// drained elements back. Directional channels fall through to the
	// lenient placeholder instead of being silently emptied.
	return t.ChanDir() == reflect.BothDir
}

func (p *QueueProvider) Extract(ctx context.Context, v any, opts *capsule.Options) (*capsule.StateBundle, error) {
	rv := reflect.ValueOf(v)
	capacity := rv.Cap()
	if capacity == 0 {
		return nil, fmt.Errorf("unbuffered channel has no capturable state")
	}

	deadline := time.Now().Add(opts.SnapshotTimeout)

	// Drain what is buffered right now, without blocking.
	items := make([]any, 0, rv.Len())
	for len(items) < capacity {
		chosen, recv, recvOK := reflect.Select([]reflect.SelectCase{
			{Dir: reflect.SelectRecv, Chan: rv},
			{Dir: reflect.SelectDefault},
		})
		if chosen != 0 {
			break
		}
		if !recvOK {
			return nil, fmt.Errorf("channel closed during snapshot")
		}
		items = append(items, recv.Interface())
	}

	// Put everything back in order. FIFO order is preserved because the
	// channel was drained before refilling began.
	for i, item := range items {
		if err := trySendUntil(rv, reflect.ValueOf(item), deadline); err != nil {
			return nil, fmt.Errorf("restoring element %d after snapshot: %w", i, err)
		}
	}

	b := capsule.NewBundle()
	b.Set("capacity", int64(capacity))
	b.Set("elem_type", rv.Type().Elem().String())
	b.Set("items", items)
	return b, nil
}

// trySendUntil sends with a non-blocking retry loop bounded by the
// snapshot deadline.
func trySendUntil(ch, item reflect.Value, deadline time.Time) error {
	for {
		chosen, _, _ := reflect.Select([]reflect.SelectCase{
			{Dir: reflect.SelectSend, Chan: ch, Send: item},
			{Dir: reflect.SelectDefault},
		})
		if chosen == 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("channel full, restore timed out")
		}
		time.Sleep(time.Millisecond)
	}
}

func (p *QueueProvider) Rebuild(ctx context.Context, b *capsule.StateBundle) (any, error) {
	capacity, ok := b.Int("capacity")
	if !ok || capacity <= 0 {
		return nil, capsule.NewEnvelopeCorruptError("channel payload missing capacity", nil)
	}
	raw, _ := b.Get("items")
	items, ok := raw.([]any)
	if raw != nil && !ok {
		return nil, capsule.NewEnvelopeCorruptError("channel payload items are not a list", nil)
	}
	if int64(len(items)) > capacity {
		return nil, capsule.NewEnvelopeCorruptError("channel payload holds more items than its capacity", nil)
	}

	ch := make(chan any, capacity)
	for _, item := range items {
		ch <- item
	}
	return ch, nil
}
