package usbsvc

import (
	"context"
	"errors"
	"time"

	"github.com/periphio/hidcore/pkg/hidreport"
	"github.com/periphio/hidcore/pkg/mailbox"
)

// ErrNotReady reports that the host side of the report pipe is not ready
// to accept a submission. The error is transient; the next natural input
// event re-submits fresh state.
var ErrNotReady = errors.New("host endpoint not ready")

// RequestType classifies host-to-device requests.
type RequestType uint8

const (
	RequestGetReport RequestType = iota
	RequestSetReport
	RequestGetIdle
	RequestSetIdle
)

func (t RequestType) String() string {
	switch t {
	case RequestGetReport:
		return "get-report"
	case RequestSetReport:
		return "set-report"
	case RequestGetIdle:
		return "get-idle"
	case RequestSetIdle:
		return "set-idle"
	default:
		return "unknown"
	}
}

// HostRequest is a host-to-device report or feature request surfaced by
// a transport backend. Seq correlates the response with the transport's
// in-flight request.
type HostRequest struct {
	Seq  uint32
	Type RequestType
	ID   hidreport.ID
	Data []byte
	Idle time.Duration
}

type HostResponse struct {
	Seq    uint32
	Status Response
	Data   []byte
	Idle   time.Duration
}

// Transport drives the USB device controller. Run suspends until ctx is
// cancelled, pumping bus activity and applying lifecycle commands from
// the mailbox; it is the sole caller of observer callbacks.
type Transport interface {
	Run(ctx context.Context, commands *mailbox.Mailbox[Command], observer Observer) error

	// SendReport submits an input report through the report pipe. It
	// suspends until the host endpoint accepts it or fails with a
	// transient error such as ErrNotReady.
	SendReport(ctx context.Context, report hidreport.KeyboardReport) error

	// Requests exposes host-to-device traffic; Respond answers a
	// previously surfaced request.
	Requests() <-chan HostRequest
	Respond(ctx context.Context, resp HostResponse) error
}
