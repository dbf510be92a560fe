package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("projection.", 10)
	defer unsub()

	b.Emit(KindChats, []int64{1, 2})

	select {
	case evt := <-ch:
		if evt.Kind != KindChats {
			t.Errorf("got kind %q, want %s", evt.Kind, KindChats)
		}
		if evt.Timestamp.IsZero() {
			t.Error("Emit should stamp the event")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("session.", 10)
	defer unsub()

	b.Emit(KindConversation, nil)
	b.Emit(KindConnection, nil)

	select {
	case evt := <-ch:
		if evt.Kind != KindConnection {
			t.Errorf("got kind %q, want %s", evt.Kind, KindConnection)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("session.", 10)
	unsub()
	unsub()

	b.Emit(KindAuthorization, nil)

	select {
	case evt, ok := <-ch:
		if ok {
			t.Errorf("received event after unsubscribe: %v", evt)
		}
	case <-time.After(50 * time.Millisecond):
		t.Fatal("channel should be closed after unsubscribe")
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("projection.", 1)
	defer unsub()

	b.Emit(KindFolders, 1)
	b.Emit(KindFolders, 2)

	evt := <-ch
	if evt.Payload != 1 {
		t.Errorf("got payload %v, want 1", evt.Payload)
	}
}

func TestNilBusPublishIsNoop(t *testing.T) {
	var b *Bus
	b.Emit(KindChats, nil)
}
