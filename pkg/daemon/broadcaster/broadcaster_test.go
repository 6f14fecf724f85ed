package broadcaster

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/scout/pkg/scout/perf"
	"github.com/jamesainslie/scout/pkg/scout/types"
)

func receive(t *testing.T, sub *Subscriber) Envelope {
	t.Helper()
	select {
	case env := <-sub.Events:
		return env
	case <-time.After(100 * time.Millisecond):
		t.Fatal("expected event not received")
		return Envelope{}
	}
}

func assertNothing(t *testing.T, sub *Subscriber) {
	t.Helper()
	select {
	case env := <-sub.Events:
		t.Fatalf("unexpected event %s", env.Event.Kind())
	case <-time.After(20 * time.Millisecond):
	}
}

func TestBroadcaster_Subscribe(t *testing.T) {
	b := New()
	defer b.Close()

	sub := b.Subscribe("/tmp/test", KindFileChange)
	require.NotNil(t, sub)
	assert.NotEmpty(t, sub.ID)
	assert.Equal(t, "/tmp/test", sub.Root)
	assert.Equal(t, 1, b.SubscriberCount())
}

func TestBroadcaster_PublishTypedEvents(t *testing.T) {
	b := New()
	defer b.Close()

	sub := b.Subscribe("")

	b.Publish(ScanProgress{Root: "/p", Batch: []types.FileRecord{{RelativePath: "a.go"}}})
	b.Publish(ScanComplete{Root: "/p", Stats: types.ScanStats{FilesProcessed: 1}})
	b.Publish(FileChange{Root: "/p", Results: []types.ChangeResult{{Action: types.ActionCreated}}})
	b.Publish(PerformanceEvent{Root: "/p", Event: perf.Event{Kind: perf.EventEmergency}})

	var kinds []Kind
	for i := 0; i < 4; i++ {
		env := receive(t, sub)
		assert.NotEmpty(t, env.ID)
		assert.False(t, env.Time.IsZero())
		kinds = append(kinds, env.Event.Kind())

		switch ev := env.Event.(type) {
		case ScanProgress:
			assert.Equal(t, "a.go", ev.Batch[0].RelativePath)
		case ScanComplete:
			assert.Equal(t, int64(1), ev.Stats.FilesProcessed)
		case FileChange:
			assert.Equal(t, types.ActionCreated, ev.Results[0].Action)
		case PerformanceEvent:
			assert.Equal(t, perf.EventEmergency, ev.Event.Kind)
		default:
			t.Fatalf("unexpected event type %T", ev)
		}
	}
	assert.Equal(t, []Kind{KindScanProgress, KindScanComplete, KindFileChange, KindPerformance}, kinds)
	assert.Equal(t, int64(4), b.Published())
}

func TestBroadcaster_FiltersByKind(t *testing.T) {
	b := New()
	defer b.Close()

	sub := b.Subscribe("", KindScanComplete)
	b.Publish(FileChange{Root: "/p"})
	assertNothing(t, sub)

	b.Publish(ScanComplete{Root: "/p"})
	assert.Equal(t, KindScanComplete, receive(t, sub).Event.Kind())
}

func TestBroadcaster_FiltersByRoot(t *testing.T) {
	b := New()
	defer b.Close()

	sub := b.Subscribe("/tmp/test")

	b.Publish(FileChange{Root: "/other/path"})
	b.Publish(FileChange{Root: "/tmp/testing"})
	assertNothing(t, sub)

	b.Publish(FileChange{Root: "/tmp/test/sub"})
	b.Publish(FileChange{Root: "/tmp/test"})
	receive(t, sub)
	receive(t, sub)
}

func TestBroadcaster_PublishNeverBlocks(t *testing.T) {
	b := New()
	defer b.Close()

	sub := b.SubscribeBuffered("", 2)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			b.Publish(FileChange{Root: "/p"})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}

	assert.Equal(t, int64(8), sub.Dropped())
	assert.Equal(t, int64(8), b.Dropped())
}

func TestBroadcaster_Unsubscribe(t *testing.T) {
	b := New()
	defer b.Close()

	sub := b.Subscribe("/tmp/test")
	b.Unsubscribe(sub.ID)

	// Channel should be closed
	_, ok := <-sub.Events
	assert.False(t, ok, "channel should be closed after unsubscribe")
	assert.Equal(t, 0, b.SubscriberCount())
}

func TestBroadcaster_Close(t *testing.T) {
	b := New()
	sub := b.Subscribe("")
	b.Close()
	b.Close()

	_, ok := <-sub.Events
	assert.False(t, ok)
	assert.Nil(t, b.Subscribe(""))

	// Publishing after close is a no-op.
	b.Publish(FileChange{Root: "/p"})
	assert.Equal(t, int64(0), b.Published())
}
