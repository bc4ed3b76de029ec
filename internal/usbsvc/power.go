package usbsvc

import (
	"github.com/periphio/hidcore/pkg/mailbox"
	"go.uber.org/zap"
)

// PowerStatus exposes the sticky Vbus status bits of the power
// controller. The Take methods read and clear a flag in one step with
// respect to the interrupt source.
type PowerStatus interface {
	TakeDetected() bool
	TakeRemoved() bool
	EnableInterrupts(handler func())
}

// PowerBridge turns raw power-line interrupts into lifecycle commands.
// HandleInterrupt runs in interrupt context: it never blocks, never
// retries, and completes in bounded time.
type PowerBridge struct {
	log      *zap.Logger
	status   PowerStatus
	commands *mailbox.Mailbox[Command]
}

func NewPowerBridge(log *zap.Logger, status PowerStatus, commands *mailbox.Mailbox[Command]) *PowerBridge {
	return &PowerBridge{
		log:      log,
		status:   status,
		commands: commands,
	}
}

// Arm installs the bridge as the power interrupt handler.
func (b *PowerBridge) Arm() {
	b.status.EnableInterrupts(b.HandleInterrupt)
}

// HandleInterrupt observes and clears both status flags in fixed order,
// detected before removed. A command that does not fit into the mailbox
// is dropped and reported; the device resynchronizes on the next event.
func (b *PowerBridge) HandleInterrupt() {
	if b.status.TakeDetected() {
		b.log.Info("Vbus detected, enabling USB")
		if !b.commands.TrySend(CommandEnable) {
			b.log.Warn("Command mailbox full, dropping enable command")
		}
	}
	if b.status.TakeRemoved() {
		b.log.Info("Vbus removed, disabling USB")
		if !b.commands.TrySend(CommandDisable) {
			b.log.Warn("Command mailbox full, dropping disable command")
		}
	}
}
