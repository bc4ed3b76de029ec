package usbsvc

import (
	"testing"

	"github.com/periphio/hidcore/pkg/mailbox"
	"go.uber.org/zap"
)

type fakePowerStatus struct {
	detected bool
	removed  bool
	handler  func()
}

func (f *fakePowerStatus) TakeDetected() bool {
	v := f.detected
	f.detected = false
	return v
}

func (f *fakePowerStatus) TakeRemoved() bool {
	v := f.removed
	f.removed = false
	return v
}

func (f *fakePowerStatus) EnableInterrupts(handler func()) {
	f.handler = handler
}

func TestPowerBridgeDetected(t *testing.T) {
	status := &fakePowerStatus{detected: true}
	commands := mailbox.New[Command]()
	bridge := NewPowerBridge(zap.NewNop(), status, commands)
	bridge.Arm()

	status.handler()

	cmd, ok := commands.TryReceive()
	if !ok || cmd != CommandEnable {
		t.Fatalf("expected enable command, got %v (ok=%v)", cmd, ok)
	}
	if status.detected {
		t.Fatal("detected flag should be cleared on observation")
	}
	if _, ok := commands.TryReceive(); ok {
		t.Fatal("no second command expected")
	}
}

func TestPowerBridgeRemoved(t *testing.T) {
	status := &fakePowerStatus{removed: true}
	commands := mailbox.New[Command]()
	NewPowerBridge(zap.NewNop(), status, commands).HandleInterrupt()

	cmd, ok := commands.TryReceive()
	if !ok || cmd != CommandDisable {
		t.Fatalf("expected disable command, got %v (ok=%v)", cmd, ok)
	}
}

// Both flags asserted in one invocation: detected is evaluated first,
// so the enable command takes the slot and disable is dropped.
func TestPowerBridgeBothFlags(t *testing.T) {
	status := &fakePowerStatus{detected: true, removed: true}
	commands := mailbox.New[Command]()
	NewPowerBridge(zap.NewNop(), status, commands).HandleInterrupt()

	cmd, ok := commands.TryReceive()
	if !ok || cmd != CommandEnable {
		t.Fatalf("expected enable command first, got %v (ok=%v)", cmd, ok)
	}
	if _, ok := commands.TryReceive(); ok {
		t.Fatal("second command should have been dropped")
	}
	if status.removed {
		t.Fatal("removed flag must be cleared even when its command is dropped")
	}
}

func TestPowerBridgeDropDoesNotBlock(t *testing.T) {
	status := &fakePowerStatus{}
	commands := mailbox.New[Command]()
	commands.TrySend(CommandEnable)
	bridge := NewPowerBridge(zap.NewNop(), status, commands)

	// Mailbox full the whole time: every invocation must still return.
	for i := 0; i < 100; i++ {
		status.detected = true
		bridge.HandleInterrupt()
	}

	cmd, ok := commands.TryReceive()
	if !ok || cmd != CommandEnable {
		t.Fatalf("pending command lost: got %v (ok=%v)", cmd, ok)
	}
	if _, ok := commands.TryReceive(); ok {
		t.Fatal("dropped commands must not be queued")
	}
}
