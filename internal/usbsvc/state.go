package usbsvc

import (
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// DeviceState is the device lifecycle state machine. It is mutated
// exclusively through Observer callbacks invoked by the transport loop.
//
// The configured flag has a single writer and is read back only to pick
// the diagnostic branch on resume. The suspended flag crosses tasks: the
// input report producer reads it before deciding whether to request
// remote wakeup, so it lives in an explicitly shared atomic cell.
type DeviceState struct {
	log        *zap.Logger
	configured atomic.Bool
	suspended  *atomic.Bool
}

func NewDeviceState(log *zap.Logger, suspended *atomic.Bool) *DeviceState {
	return &DeviceState{
		log:       log,
		suspended: suspended,
	}
}

func (s *DeviceState) IsConfigured() bool {
	return s.configured.Load()
}

func (s *DeviceState) Reset() {
	s.configured.Store(false)
	s.log.Info("Bus reset, the Vbus current limit is 100mA")
}

func (s *DeviceState) Addressed(addr uint8) {
	s.configured.Store(false)
	s.log.Info("USB address set", zap.Uint8("addr", addr))
}

func (s *DeviceState) Configured(configured bool) {
	s.configured.Store(configured)
	if configured {
		s.log.Info("Device configured, it may now draw up to the configured current limit from Vbus")
	} else {
		s.log.Info("Device is no longer configured, the Vbus current limit is 100mA")
	}
}

func (s *DeviceState) Suspended(suspended bool) {
	if suspended {
		s.log.Info("Device suspended, the Vbus current limit is 500µA (or 2.5mA for high-power devices with remote wakeup enabled)")
		s.suspended.Store(true)
		return
	}
	s.suspended.Store(false)
	if s.configured.Load() {
		s.log.Info("Device resumed, it may now draw up to the configured current limit from Vbus")
	} else {
		s.log.Info("Device resumed, the Vbus current limit is 100mA")
	}
}

func (s *DeviceState) Disabled() {
	s.configured.Store(false)
	s.log.Info("Device disabled")
}
