package mailbox

import (
	"context"
	"testing"
	"time"
)

func TestTrySendSingleSlot(t *testing.T) {
	m := New[int]()
	if !m.TrySend(1) {
		t.Fatal("first TrySend should succeed on an empty mailbox")
	}
	if m.TrySend(2) {
		t.Fatal("second TrySend should fail while the slot is occupied")
	}
	v, ok := m.TryReceive()
	if !ok || v != 1 {
		t.Fatalf("expected to receive 1, got %d (ok=%v)", v, ok)
	}
	if _, ok := m.TryReceive(); ok {
		t.Fatal("mailbox should be empty after receive")
	}
	if !m.TrySend(2) {
		t.Fatal("TrySend should succeed again after the slot is drained")
	}
}

func TestSendBlocksUntilDrained(t *testing.T) {
	m := New[int]()
	if !m.TrySend(1) {
		t.Fatal("TrySend failed on empty mailbox")
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := m.Send(context.Background(), 2); err != nil {
			t.Errorf("Send failed: %v", err)
		}
	}()

	select {
	case <-done:
		t.Fatal("Send completed while the slot was occupied")
	case <-time.After(20 * time.Millisecond):
	}

	v, err := m.Receive(context.Background())
	if err != nil || v != 1 {
		t.Fatalf("expected 1, got %d (err=%v)", v, err)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Send did not complete after the slot was drained")
	}
	v, err = m.Receive(context.Background())
	if err != nil || v != 2 {
		t.Fatalf("expected 2, got %d (err=%v)", v, err)
	}
}

func TestSendCancelled(t *testing.T) {
	m := New[int]()
	m.TrySend(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.Send(ctx, 2); err == nil {
		t.Fatal("Send should fail on a cancelled context")
	}
}

func TestReceiveCancelled(t *testing.T) {
	m := New[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := m.Receive(ctx); err == nil {
		t.Fatal("Receive should fail when the context expires")
	}
}
