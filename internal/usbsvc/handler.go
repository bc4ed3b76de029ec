package usbsvc

import (
	"time"

	"github.com/periphio/hidcore/pkg/hidreport"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"
)

// Response is the device's answer to a host set request.
type Response uint8

const (
	ResponseAccepted Response = iota
	ResponseRejected
)

func (r Response) String() string {
	if r == ResponseAccepted {
		return "accepted"
	}
	return "rejected"
}

// RequestHandler answers host-to-device report and feature requests.
// Implementations are dispatched from the output report consumer loop.
type RequestHandler interface {
	GetReport(id hidreport.ID) ([]byte, bool)
	SetReport(id hidreport.ID, data []byte) Response
	GetIdle(id hidreport.ID) (time.Duration, bool)
	SetIdle(id hidreport.ID, d time.Duration)
}

// LogHandler is the default request handler: it records every request
// and reports "not supported" for gets and "accepted" for sets.
type LogHandler struct {
	log *zap.Logger
}

func NewLogHandler(log *zap.Logger) *LogHandler {
	return &LogHandler{log: log}
}

func (h *LogHandler) GetReport(id hidreport.ID) ([]byte, bool) {
	h.log.Info("Get report", zap.Stringer("id", id))
	return nil, false
}

func (h *LogHandler) SetReport(id hidreport.ID, data []byte) Response {
	if id.Direction == hidreport.DirectionOut && len(data) == 1 {
		h.log.Info("Set report", zap.Stringer("id", id), zap.Stringer("leds", hidreport.LEDState(data[0])))
		return ResponseAccepted
	}
	h.log.Info("Set report", zap.Stringer("id", id), zap.Binary("data", data))
	return ResponseAccepted
}

func (h *LogHandler) GetIdle(id hidreport.ID) (time.Duration, bool) {
	h.log.Info("Get idle rate", zap.Stringer("id", id))
	return 0, false
}

func (h *LogHandler) SetIdle(id hidreport.ID, d time.Duration) {
	h.log.Info("Set idle rate", zap.Stringer("id", id), zap.Duration("duration", d))
}

// MemoryHandler keeps the last set report and idle rate per report ID so
// subsequent gets can answer them.
type MemoryHandler struct {
	log     *zap.Logger
	reports *xsync.MapOf[hidreport.ID, []byte]
	idle    *xsync.MapOf[hidreport.ID, time.Duration]
}

func NewMemoryHandler(log *zap.Logger) *MemoryHandler {
	return &MemoryHandler{
		log:     log,
		reports: xsync.NewMapOf[hidreport.ID, []byte](),
		idle:    xsync.NewMapOf[hidreport.ID, time.Duration](),
	}
}

func (h *MemoryHandler) GetReport(id hidreport.ID) ([]byte, bool) {
	data, ok := h.reports.Load(id)
	if !ok {
		return nil, false
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, true
}

func (h *MemoryHandler) SetReport(id hidreport.ID, data []byte) Response {
	stored := make([]byte, len(data))
	copy(stored, data)
	h.reports.Store(id, stored)
	h.log.Debug("Stored report", zap.Stringer("id", id), zap.Int("size", len(data)))
	return ResponseAccepted
}

func (h *MemoryHandler) GetIdle(id hidreport.ID) (time.Duration, bool) {
	d, ok := h.idle.Load(id)
	return d, ok
}

func (h *MemoryHandler) SetIdle(id hidreport.ID, d time.Duration) {
	h.idle.Store(id, d)
}
