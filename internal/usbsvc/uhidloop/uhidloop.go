// Package uhidloop implements the transport collaborator on the Linux
// uhid kernel module: Enable creates a virtual HID keyboard on the
// local kernel, which stands in for a USB host. Useful on machines
// without a UDC and for end-to-end testing against a real HID stack.
package uhidloop

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/periphio/hidcore/internal/usbsvc"
	"github.com/periphio/hidcore/pkg/hidreport"
	"github.com/periphio/hidcore/pkg/mailbox"
	"github.com/psanford/uhid"
	"go.uber.org/zap"
)

type Config struct {
	Name      string `json:"name"`
	VendorID  uint32 `json:"vendorId"`
	ProductID uint32 `json:"productId"`
}

type reportType uint8

const (
	reportTypeFeature reportType = 0
	reportTypeOutput  reportType = 1
	reportTypeInput   reportType = 2
)

func (r reportType) direction() hidreport.Direction {
	switch r {
	case reportTypeOutput:
		return hidreport.DirectionOut
	case reportTypeInput:
		return hidreport.DirectionIn
	default:
		return hidreport.DirectionFeature
	}
}

type getReportRequest struct {
	RequestID  uint32
	ReportID   uint8
	ReportType reportType
}

const uhidReportSize = 4096

type getReportReply struct {
	EventType uhid.EventType
	RequestID uint32
	Error     uint16
	Size      uint16
	Data      [uhidReportSize]byte
}

type setReportRequest struct {
	RequestID  uint32
	ReportID   uint8
	ReportType reportType
	Size       uint16
	Data       [uhidReportSize]byte
}

type setReportReply struct {
	EventType uhid.EventType
	RequestID uint32
	Error     uint16
}

type Transport struct {
	log *zap.Logger
	cfg Config

	requests chan usbsvc.HostRequest

	mu      sync.Mutex
	dev     *uhid.Device
	cancel  context.CancelFunc
	pending map[uint32]usbsvc.RequestType
}

func NewTransport(log *zap.Logger, cfg Config) *Transport {
	if cfg.Name == "" {
		cfg.Name = "hidcore"
	}
	return &Transport{
		log:      log,
		cfg:      cfg,
		requests: make(chan usbsvc.HostRequest, 8),
		pending:  make(map[uint32]usbsvc.RequestType),
	}
}

func (t *Transport) Run(ctx context.Context, commands *mailbox.Mailbox[usbsvc.Command], observer usbsvc.Observer) error {
	defer t.destroy(nil)
	t.log.Info("Uhid transport running")
	var events chan uhid.Event
	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-commands.C():
			switch cmd {
			case usbsvc.CommandEnable:
				if events != nil {
					continue
				}
				ch, err := t.create(observer)
				if err != nil {
					t.log.Error("Failed to create uhid device", zap.Error(err))
					continue
				}
				events = ch
			case usbsvc.CommandDisable:
				if events == nil {
					continue
				}
				t.destroy(observer)
				events = nil
			case usbsvc.CommandRemoteWakeup:
				// uhid has no link power management; the virtual host
				// never suspends the device.
				t.log.Debug("Remote wakeup requested, nothing to signal on uhid")
			}
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			t.handleEvent(event, observer)
		}
	}
}

func (t *Transport) create(observer usbsvc.Observer) (chan uhid.Event, error) {
	dev, err := uhid.NewDevice(t.cfg.Name, hidreport.BootKeyboardDescriptor())
	if err != nil {
		return nil, err
	}
	dev.Data.Bus = 0x03 // BUS_USB
	dev.Data.VendorID = t.cfg.VendorID
	dev.Data.ProductID = t.cfg.ProductID

	ctx, cancel := context.WithCancel(context.Background())
	events, err := dev.Open(ctx)
	if err != nil {
		cancel()
		return nil, err
	}
	t.mu.Lock()
	t.dev = dev
	t.cancel = cancel
	t.mu.Unlock()

	// Creation is the attach: the kernel resets and addresses the
	// device before binding a driver.
	observer.Reset()
	observer.Addressed(0)
	t.log.Info("Uhid device created", zap.String("name", t.cfg.Name))
	return events, nil
}

func (t *Transport) destroy(observer usbsvc.Observer) {
	t.mu.Lock()
	dev := t.dev
	cancel := t.cancel
	t.dev = nil
	t.cancel = nil
	t.mu.Unlock()
	if dev == nil {
		return
	}
	cancel()
	if err := dev.Close(); err != nil {
		t.log.Warn("Failed to close uhid device", zap.Error(err))
	}
	if observer != nil {
		observer.Disabled()
	}
	t.log.Info("Uhid device destroyed")
}

func (t *Transport) handleEvent(event uhid.Event, observer usbsvc.Observer) {
	switch event.Type {
	case uhid.Start:
		// A kernel driver bound: the loopback equivalent of the host
		// selecting a configuration.
		observer.Configured(true)
	case uhid.Stop:
		observer.Configured(false)
	case uhid.GetReport:
		req := getReportRequest{}
		if err := binary.Read(bytes.NewReader(event.Data), binary.LittleEndian, &req); err != nil {
			t.log.Error("Failed to decode get-report request", zap.Error(err))
			return
		}
		t.push(usbsvc.HostRequest{
			Seq:  req.RequestID,
			Type: usbsvc.RequestGetReport,
			ID:   hidreport.ID{Direction: req.ReportType.direction(), Value: req.ReportID},
		})
	case uhid.SetReport:
		req := setReportRequest{}
		if err := binary.Read(bytes.NewReader(event.Data), binary.LittleEndian, &req); err != nil {
			t.log.Error("Failed to decode set-report request", zap.Error(err))
			return
		}
		data := make([]byte, req.Size)
		copy(data, req.Data[:])
		t.push(usbsvc.HostRequest{
			Seq:  req.RequestID,
			Type: usbsvc.RequestSetReport,
			ID:   hidreport.ID{Direction: req.ReportType.direction(), Value: req.ReportID},
			Data: data,
		})
	case uhid.Output:
		// OUT reports (LED state) carry no request id and no reply.
		data := make([]byte, len(event.Data))
		copy(data, event.Data)
		t.push(usbsvc.HostRequest{
			Type: usbsvc.RequestSetReport,
			ID:   hidreport.ID{Direction: hidreport.DirectionOut},
			Data: data,
		})
	}
}

func (t *Transport) push(req usbsvc.HostRequest) {
	if req.Seq != 0 {
		t.mu.Lock()
		t.pending[req.Seq] = req.Type
		t.mu.Unlock()
	}
	select {
	case t.requests <- req:
	default:
		t.log.Warn("Dropped host request", zap.Stringer("type", req.Type))
	}
}

func (t *Transport) SendReport(ctx context.Context, report hidreport.KeyboardReport) error {
	t.mu.Lock()
	dev := t.dev
	t.mu.Unlock()
	if dev == nil {
		return usbsvc.ErrNotReady
	}
	b := report.Marshal()
	if err := dev.InjectEvent(b[:]); err != nil {
		return fmt.Errorf("failed to inject report: %w", err)
	}
	return nil
}

func (t *Transport) Requests() <-chan usbsvc.HostRequest {
	return t.requests
}

func (t *Transport) Respond(ctx context.Context, resp usbsvc.HostResponse) error {
	t.mu.Lock()
	dev := t.dev
	reqType, ok := t.pending[resp.Seq]
	delete(t.pending, resp.Seq)
	t.mu.Unlock()
	if dev == nil || !ok {
		return nil
	}
	var errCode uint16
	if resp.Status != usbsvc.ResponseAccepted {
		errCode = 1
	}
	switch reqType {
	case usbsvc.RequestGetReport:
		reply := getReportReply{
			EventType: uhid.GetReportReply,
			RequestID: resp.Seq,
			Error:     errCode,
			Size:      uint16(len(resp.Data)),
		}
		copy(reply.Data[:], resp.Data)
		return dev.WriteEvent(reply)
	case usbsvc.RequestSetReport:
		return dev.WriteEvent(setReportReply{
			EventType: uhid.SetReportReply,
			RequestID: resp.Seq,
			Error:     errCode,
		})
	default:
		return nil
	}
}
