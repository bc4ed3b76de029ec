package usbsvc

import (
	"testing"

	"go.uber.org/atomic"
	"go.uber.org/zap"
)

func newTestState() (*DeviceState, *atomic.Bool) {
	suspended := atomic.NewBool(false)
	return NewDeviceState(zap.NewNop(), suspended), suspended
}

func TestConfiguredTracksMostRecentCall(t *testing.T) {
	state, _ := newTestState()

	state.Configured(true)
	if !state.IsConfigured() {
		t.Fatal("configured should be set")
	}
	state.Configured(false)
	if state.IsConfigured() {
		t.Fatal("configured should be cleared")
	}
	state.Configured(true)
	if !state.IsConfigured() {
		t.Fatal("configured should follow the most recent call")
	}
}

func TestResetAndAddressedForceUnconfigured(t *testing.T) {
	state, _ := newTestState()

	state.Configured(true)
	state.Reset()
	if state.IsConfigured() {
		t.Fatal("reset must clear configured")
	}

	state.Configured(true)
	state.Addressed(7)
	if state.IsConfigured() {
		t.Fatal("addressed must clear configured")
	}

	state.Configured(true)
	state.Disabled()
	if state.IsConfigured() {
		t.Fatal("disabled must clear configured")
	}
}

func TestSuspendedRoundTrip(t *testing.T) {
	state, suspended := newTestState()

	state.Configured(true)
	state.Suspended(true)
	if !suspended.Load() {
		t.Fatal("suspended flag should be set")
	}
	// Suspend does not disturb the configured state.
	if !state.IsConfigured() {
		t.Fatal("suspend must not clear configured")
	}

	state.Suspended(false)
	if suspended.Load() {
		t.Fatal("suspended flag should be cleared on resume")
	}
	if !state.IsConfigured() {
		t.Fatal("resume must not clear configured")
	}
}

func TestSuspendedRegardlessOfConfigured(t *testing.T) {
	state, suspended := newTestState()

	state.Suspended(true)
	if !suspended.Load() {
		t.Fatal("suspend applies even before configuration")
	}
	state.Suspended(false)
	if suspended.Load() {
		t.Fatal("resume applies even before configuration")
	}
}
