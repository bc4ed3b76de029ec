package sim

import (
	"sync"

	"go.uber.org/atomic"
)

// PowerStatus models the sticky Vbus status register of a power
// controller: hardware sets the bits, software reads and clears them in
// one step. Raising a flag fires the armed interrupt handler
// synchronously, like a pended interrupt.
type PowerStatus struct {
	detected atomic.Bool
	removed  atomic.Bool

	mu      sync.Mutex
	handler func()
}

func NewPowerStatus() *PowerStatus {
	return &PowerStatus{}
}

func (p *PowerStatus) TakeDetected() bool {
	return p.detected.Swap(false)
}

func (p *PowerStatus) TakeRemoved() bool {
	return p.removed.Swap(false)
}

func (p *PowerStatus) EnableInterrupts(handler func()) {
	p.mu.Lock()
	p.handler = handler
	p.mu.Unlock()
}

// Set asserts status flags without firing the interrupt. Tests use it to
// model both flags raised within one interrupt invocation.
func (p *PowerStatus) Set(detected, removed bool) {
	if detected {
		p.detected.Store(true)
	}
	if removed {
		p.removed.Store(true)
	}
}

// Interrupt invokes the armed handler once.
func (p *PowerStatus) Interrupt() {
	p.mu.Lock()
	handler := p.handler
	p.mu.Unlock()
	if handler != nil {
		handler()
	}
}

func (p *PowerStatus) RaiseDetected() {
	p.Set(true, false)
	p.Interrupt()
}

func (p *PowerStatus) RaiseRemoved() {
	p.Set(false, true)
	p.Interrupt()
}
