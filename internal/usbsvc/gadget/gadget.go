// Package gadget implements the transport collaborator on the Linux
// configfs USB gadget subsystem. Enable binds a HID function gadget to
// a UDC, Disable unbinds it; device lifecycle is observed through the
// UDC state attribute. Control-plane requests (get/set report, idle
// rate) are answered in-kernel by f_hid and do not surface here; host
// OUT reports do, through the hidg endpoint.
package gadget

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	gadget "github.com/openstadia/go-usb-gadget"
	o "github.com/openstadia/go-usb-gadget/option"
	"github.com/periphio/hidcore/internal/usbsvc"
	"github.com/periphio/hidcore/pkg/hidreport"
	"github.com/periphio/hidcore/pkg/mailbox"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

const defaultPollInterval = 100 * time.Millisecond

type Config struct {
	// UDC is the UDC name under /sys/class/udc. Empty picks the first
	// available controller.
	UDC          string `json:"udc"`
	VendorID     uint16 `json:"vendorId"`
	ProductID    uint16 `json:"productId"`
	Manufacturer string `json:"manufacturer"`
	Product      string `json:"product"`
	SerialNumber string `json:"serialNumber"`
	// MaxPower is the configured current limit in 2mA units.
	MaxPower     uint8         `json:"maxPower"`
	PollInterval time.Duration `json:"pollInterval"`
}

// ListUDCs returns the available UDC controllers.
func ListUDCs() []string {
	return gadget.GetUdcs()
}

type Transport struct {
	log *zap.Logger
	cfg Config
	seq atomic.Uint32

	requests chan usbsvc.HostRequest

	mu     sync.Mutex
	handle *handle
	state  string
}

// handle owns the configfs objects of one enabled gadget session.
type handle struct {
	udc     string
	gadget  *gadget.Gadget
	config  *gadget.Config
	hid     *gadget.HidFunction
	binding *gadget.Binding
	rw      io.ReadWriter
	done    chan struct{}
}

func NewTransport(log *zap.Logger, cfg Config) *Transport {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = defaultPollInterval
	}
	return &Transport{
		log:      log,
		cfg:      cfg,
		requests: make(chan usbsvc.HostRequest, 8),
	}
}

func (t *Transport) Run(ctx context.Context, commands *mailbox.Mailbox[usbsvc.Command], observer usbsvc.Observer) error {
	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()
	defer t.teardown()
	t.log.Info("Gadget transport running")
	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-commands.C():
			switch cmd {
			case usbsvc.CommandEnable:
				if err := t.enable(observer); err != nil {
					t.log.Error("Failed to enable gadget", zap.Error(err))
				}
			case usbsvc.CommandDisable:
				t.disable(observer)
			case usbsvc.CommandRemoteWakeup:
				// The UDC issues remote wakeup itself as soon as an IN
				// report is queued on a suspended link; there is nothing
				// to pulse from here.
				t.log.Debug("Remote wakeup requested, deferring to UDC")
			}
		case <-ticker.C:
			t.pollState(observer)
		}
	}
}

func (t *Transport) enable(observer usbsvc.Observer) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.handle != nil {
		return nil
	}
	udc := t.cfg.UDC
	if udc == "" {
		udcs := gadget.GetUdcs()
		if len(udcs) == 0 {
			return fmt.Errorf("no UDC available")
		}
		udc = udcs[0]
	}

	h := &handle{udc: udc, done: make(chan struct{})}
	var err error
	defer func() {
		if err != nil {
			h.close()
		}
	}()

	h.gadget = gadget.CreateGadget("hidcore")
	h.gadget.SetAttrs(&gadget.GadgetAttrs{
		BcdUSB:          o.Some[uint16](0x0200),
		BDeviceClass:    o.None[uint8](),
		BDeviceSubClass: o.None[uint8](),
		BDeviceProtocol: o.None[uint8](),
		BMaxPacketSize0: o.Some[uint8](64),
		IdVendor:        o.Some[uint16](t.cfg.VendorID),
		IdProduct:       o.Some[uint16](t.cfg.ProductID),
		BcdDevice:       o.Some[uint16](0x0100),
	})
	h.gadget.SetStrs(&gadget.GadgetStrs{
		SerialNumber: t.cfg.SerialNumber,
		Manufacturer: t.cfg.Manufacturer,
		Product:      t.cfg.Product,
	}, gadget.LangUsEng)

	h.config = gadget.CreateConfig(h.gadget, "hidcore", 1)
	h.config.SetAttrs(&gadget.ConfigAttrs{
		// Bus powered with remote wakeup.
		BmAttributes: o.Some[uint8](0xa0),
		BMaxPower:    o.Some[uint8](t.cfg.MaxPower),
	})
	h.config.SetStrs(&gadget.ConfigStrs{
		Configuration: "Config 1: HID keyboard",
	}, gadget.LangUsEng)

	h.hid = gadget.CreateHidFunction(h.gadget, "hidcore")
	h.hid.SetAttrs(&gadget.HidFunctionAttrs{
		Subclass:     1, // boot interface
		Protocol:     1, // keyboard
		ReportLength: 8,
		ReportDesc:   hidreport.BootKeyboardDescriptor(),
	})

	h.binding = gadget.CreateBinding(h.config, h.hid, h.hid.Name())
	h.gadget.Enable(h.udc)
	h.rw, err = h.hid.GetReadWriter()
	if err != nil {
		return fmt.Errorf("failed to open hidg endpoint: %w", err)
	}

	t.handle = h
	go t.readOutput(h)
	// Attach is followed by a bus reset from the host.
	observer.Reset()
	t.log.Info("Gadget enabled", zap.String("udc", udc))
	return nil
}

func (t *Transport) disable(observer usbsvc.Observer) {
	t.mu.Lock()
	h := t.handle
	t.handle = nil
	t.state = ""
	t.mu.Unlock()
	if h == nil {
		return
	}
	h.close()
	observer.Disabled()
	t.log.Info("Gadget disabled")
}

func (t *Transport) teardown() {
	t.mu.Lock()
	h := t.handle
	t.handle = nil
	t.mu.Unlock()
	if h != nil {
		h.close()
	}
}

func (h *handle) close() {
	close(h.done)
	if h.gadget != nil {
		h.gadget.Disable()
	}
	if h.binding != nil {
		h.binding.Close()
	}
	if h.hid != nil {
		h.hid.Close()
	}
	if h.config != nil {
		h.config.Close()
	}
	if h.gadget != nil {
		h.gadget.Close()
	}
}

// pollState diffs the UDC state attribute and forwards transitions as
// lifecycle callbacks. The assigned bus address is not exposed through
// sysfs, so addressed reports zero.
func (t *Transport) pollState(observer usbsvc.Observer) {
	t.mu.Lock()
	h := t.handle
	prev := t.state
	t.mu.Unlock()
	if h == nil {
		return
	}
	raw, err := os.ReadFile(filepath.Join("/sys/class/udc", h.udc, "state"))
	if err != nil {
		t.log.Debug("Failed to read UDC state", zap.Error(err))
		return
	}
	state := strings.TrimSpace(string(raw))
	if state == prev {
		return
	}
	t.mu.Lock()
	t.state = state
	t.mu.Unlock()

	if prev == "suspended" {
		observer.Suspended(false)
	}
	switch state {
	case "default":
		observer.Reset()
	case "addressed":
		observer.Addressed(0)
	case "configured":
		observer.Configured(true)
	case "suspended":
		observer.Suspended(true)
	default:
		if prev == "configured" {
			observer.Configured(false)
		}
	}
}

// readOutput drains host OUT reports from the hidg endpoint and
// surfaces them as set-report requests.
func (t *Transport) readOutput(h *handle) {
	buf := make([]byte, 64)
	for {
		select {
		case <-h.done:
			return
		default:
		}
		n, err := h.rw.Read(buf)
		if err != nil {
			select {
			case <-h.done:
			default:
				t.log.Warn("Failed to read from hidg endpoint", zap.Error(err))
			}
			return
		}
		if n == 0 {
			continue
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		req := usbsvc.HostRequest{
			Seq:  t.seq.Inc(),
			Type: usbsvc.RequestSetReport,
			ID:   hidreport.ID{Direction: hidreport.DirectionOut},
			Data: data,
		}
		select {
		case t.requests <- req:
		default:
			t.log.Warn("Dropped host output report")
		}
	}
}

func (t *Transport) SendReport(ctx context.Context, report hidreport.KeyboardReport) error {
	t.mu.Lock()
	h := t.handle
	t.mu.Unlock()
	if h == nil {
		return usbsvc.ErrNotReady
	}
	b := report.Marshal()
	if _, err := h.rw.Write(b[:]); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func (t *Transport) Requests() <-chan usbsvc.HostRequest {
	return t.requests
}

// Respond is a no-op: f_hid answers control requests in-kernel, and OUT
// reports carry no response channel.
func (t *Transport) Respond(ctx context.Context, resp usbsvc.HostResponse) error {
	return nil
}
