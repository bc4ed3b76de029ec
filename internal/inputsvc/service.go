// Package inputsvc runs the input report producer: it watches a
// physical input line and submits one pressed and one released keyboard
// report per press/release cycle, waking the suspended link first when
// needed.
package inputsvc

import (
	"context"
	"fmt"

	"github.com/periphio/hidcore/internal/usbsvc"
	"github.com/periphio/hidcore/pkg/hidreport"
	"github.com/periphio/hidcore/pkg/mailbox"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Button is the physical stimulus collaborator. Both waits suspend
// until the corresponding edge is observed.
type Button interface {
	WaitForActive(ctx context.Context) error
	WaitForInactive(ctx context.Context) error
}

// ReportWriter is the inbound half of the report pipe.
type ReportWriter interface {
	SendReport(ctx context.Context, report hidreport.KeyboardReport) error
}

type Service struct {
	log       *zap.Logger
	button    Button
	writer    ReportWriter
	commands  *mailbox.Mailbox[usbsvc.Command]
	suspended *atomic.Bool
	key       atomic.Uint32
	ready     chan struct{}
}

func New(log *zap.Logger, button Button, writer ReportWriter, commands *mailbox.Mailbox[usbsvc.Command], suspended *atomic.Bool, key uint8) *Service {
	s := &Service{
		log:       log,
		button:    button,
		writer:    writer,
		commands:  commands,
		suspended: suspended,
		ready:     make(chan struct{}),
	}
	s.key.Store(uint32(key))
	return s
}

func (s *Service) Ready() <-chan struct{} {
	return s.ready
}

// SetKey changes the submitted keycode. Takes effect on the next press.
func (s *Service) SetKey(code uint8) {
	s.key.Store(uint32(code))
}

// Start runs the producer loop until ctx is cancelled. Per cycle it
// submits exactly one pressed report followed by one released report; a
// failed submission is logged and not retried, the next edge re-submits
// fresh state. A button failure is fatal: without a working stimulus
// device the producer cannot make progress, so the error is returned for
// the composer to surface.
func (s *Service) Start(ctx context.Context) error {
	close(s.ready)
	s.log.Info("Input report producer started")
	for {
		if err := s.button.WaitForActive(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to wait for press edge: %w", err)
		}
		s.log.Info("Pressed")

		if s.suspended.Load() {
			s.log.Info("Triggering remote wakeup")
			if err := s.commands.Send(ctx, usbsvc.CommandRemoteWakeup); err != nil {
				return nil
			}
		}
		s.submit(ctx, hidreport.Pressed(uint8(s.key.Load())))

		if err := s.button.WaitForInactive(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to wait for release edge: %w", err)
		}
		s.log.Info("Released")
		s.submit(ctx, hidreport.Released())
	}
}

func (s *Service) submit(ctx context.Context, report hidreport.KeyboardReport) {
	if err := s.writer.SendReport(ctx, report); err != nil {
		if ctx.Err() != nil {
			return
		}
		s.log.Warn("Failed to send report", zap.Error(err))
	}
}
