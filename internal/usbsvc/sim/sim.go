// Package sim provides in-memory implementations of the hardware
// collaborators: a USB transport that fakes host-side enumeration, a
// sticky-bit power status register and an edge-triggered button. It
// backs the test suite and the "sim" backend of the agent.
package sim

import (
	"context"
	"sync"

	"github.com/periphio/hidcore/internal/usbsvc"
	"github.com/periphio/hidcore/pkg/hidreport"
	"github.com/periphio/hidcore/pkg/mailbox"
	"go.uber.org/zap"
)

const simAddress = 0x2a

// Transport simulates the USB device controller. Enable walks the
// device through a fake enumeration (reset, address, configuration);
// Disable tears it down; RemoteWakeup resumes a suspended link.
type Transport struct {
	log *zap.Logger

	mu         sync.Mutex
	observer   usbsvc.Observer
	enabled    bool
	configured bool
	suspended  bool

	requests  chan usbsvc.HostRequest
	responses chan usbsvc.HostResponse
	reports   chan hidreport.KeyboardReport
}

func NewTransport(log *zap.Logger) *Transport {
	return &Transport{
		log:       log,
		requests:  make(chan usbsvc.HostRequest, 8),
		responses: make(chan usbsvc.HostResponse, 8),
		reports:   make(chan hidreport.KeyboardReport, 8),
	}
}

func (t *Transport) Run(ctx context.Context, commands *mailbox.Mailbox[usbsvc.Command], observer usbsvc.Observer) error {
	t.mu.Lock()
	t.observer = observer
	t.mu.Unlock()
	t.log.Info("Simulated transport running")
	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-commands.C():
			t.apply(cmd)
		}
	}
}

func (t *Transport) apply(cmd usbsvc.Command) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch cmd {
	case usbsvc.CommandEnable:
		if t.enabled {
			return
		}
		t.enabled = true
		// Fake host enumeration.
		t.observer.Reset()
		t.observer.Addressed(simAddress)
		t.observer.Configured(true)
		t.configured = true
	case usbsvc.CommandDisable:
		if !t.enabled {
			return
		}
		t.enabled = false
		t.configured = false
		t.suspended = false
		t.observer.Disabled()
	case usbsvc.CommandRemoteWakeup:
		if !t.suspended {
			return
		}
		t.log.Info("Remote wakeup signalled")
		t.suspended = false
		t.observer.Suspended(false)
	}
}

func (t *Transport) SendReport(ctx context.Context, report hidreport.KeyboardReport) error {
	t.mu.Lock()
	configured := t.configured
	t.mu.Unlock()
	if !configured {
		return usbsvc.ErrNotReady
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case t.reports <- report:
		return nil
	}
}

func (t *Transport) Requests() <-chan usbsvc.HostRequest {
	return t.requests
}

func (t *Transport) Respond(ctx context.Context, resp usbsvc.HostResponse) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case t.responses <- resp:
		return nil
	}
}

// Suspend puts the simulated link into suspend, as a host would after
// three milliseconds of bus idle.
func (t *Transport) Suspend() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.suspended {
		return
	}
	t.suspended = true
	t.observer.Suspended(true)
}

// Resume is a host-initiated resume.
func (t *Transport) Resume() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.suspended {
		return
	}
	t.suspended = false
	t.observer.Suspended(false)
}

// PushRequest injects a host-to-device request.
func (t *Transport) PushRequest(req usbsvc.HostRequest) {
	t.requests <- req
}

// Responses exposes responses the device sent back to the host.
func (t *Transport) Responses() <-chan usbsvc.HostResponse {
	return t.responses
}

// Reports exposes input reports collected by the simulated host.
func (t *Transport) Reports() <-chan hidreport.KeyboardReport {
	return t.reports
}

func (t *Transport) IsEnabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *Transport) IsConfigured() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.configured
}
