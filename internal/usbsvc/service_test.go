package usbsvc

import (
	"context"
	"testing"
	"time"

	"github.com/periphio/hidcore/pkg/hidreport"
	"github.com/periphio/hidcore/pkg/mailbox"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDispatch(t *testing.T) {
	handler := NewMemoryHandler(zap.NewNop())
	svc := &Service{log: zap.NewNop(), handler: handler}

	outID := hidreport.ID{Direction: hidreport.DirectionOut, Value: 0}

	// Get before any set: rejected.
	resp := svc.dispatch(HostRequest{Seq: 1, Type: RequestGetReport, ID: outID})
	require.Equal(t, ResponseRejected, resp.Status)

	resp = svc.dispatch(HostRequest{Seq: 2, Type: RequestSetReport, ID: outID, Data: []byte{0x02}})
	require.Equal(t, ResponseAccepted, resp.Status)

	resp = svc.dispatch(HostRequest{Seq: 3, Type: RequestGetReport, ID: outID})
	require.Equal(t, ResponseAccepted, resp.Status)
	require.Equal(t, []byte{0x02}, resp.Data)

	resp = svc.dispatch(HostRequest{Seq: 4, Type: RequestGetIdle, ID: outID})
	require.Equal(t, ResponseRejected, resp.Status)

	resp = svc.dispatch(HostRequest{Seq: 5, Type: RequestSetIdle, ID: outID, Idle: 24 * time.Millisecond})
	require.Equal(t, ResponseAccepted, resp.Status)

	resp = svc.dispatch(HostRequest{Seq: 6, Type: RequestGetIdle, ID: outID})
	require.Equal(t, ResponseAccepted, resp.Status)
	require.Equal(t, 24*time.Millisecond, resp.Idle)

	// Malformed request type: rejected, never fatal.
	resp = svc.dispatch(HostRequest{Seq: 7, Type: RequestType(0xff)})
	require.Equal(t, ResponseRejected, resp.Status)
	require.Equal(t, uint32(7), resp.Seq)
}

func TestLogHandlerDefaults(t *testing.T) {
	handler := NewLogHandler(zap.NewNop())
	id := hidreport.ID{Direction: hidreport.DirectionFeature, Value: 1}

	if _, ok := handler.GetReport(id); ok {
		t.Fatal("log handler should not answer get-report")
	}
	if _, ok := handler.GetIdle(id); ok {
		t.Fatal("log handler should not answer get-idle")
	}
	if resp := handler.SetReport(id, []byte{1, 2, 3}); resp != ResponseAccepted {
		t.Fatal("log handler should accept set-report")
	}
	handler.SetIdle(id, 500*time.Millisecond)

	// LED output reports take the decoded logging path.
	out := hidreport.ID{Direction: hidreport.DirectionOut, Value: 0}
	if resp := handler.SetReport(out, []byte{byte(hidreport.LEDCapsLock)}); resp != ResponseAccepted {
		t.Fatal("log handler should accept LED output reports")
	}
}

// Mutating a returned report must not reach the handler's stored state.
func TestMemoryHandlerGetReturnsCopy(t *testing.T) {
	handler := NewMemoryHandler(zap.NewNop())
	id := hidreport.ID{Direction: hidreport.DirectionOut, Value: 0}
	require.Equal(t, ResponseAccepted, handler.SetReport(id, []byte{0x01}))

	data, ok := handler.GetReport(id)
	require.True(t, ok)
	data[0] = 0xff

	again, ok := handler.GetReport(id)
	require.True(t, ok)
	require.Equal(t, []byte{0x01}, again)
}

func TestMultiObserverOrder(t *testing.T) {
	var calls []string
	a := &recordingObserver{name: "a", calls: &calls}
	b := &recordingObserver{name: "b", calls: &calls}
	obs := MultiObserver(a, b)

	obs.Reset()
	obs.Addressed(5)
	obs.Configured(true)
	obs.Suspended(true)
	obs.Disabled()

	require.Equal(t, []string{
		"a.reset", "b.reset",
		"a.addressed(5)", "b.addressed(5)",
		"a.configured(true)", "b.configured(true)",
		"a.suspended(true)", "b.suspended(true)",
		"a.disabled", "b.disabled",
	}, calls)
}

type recordingObserver struct {
	name  string
	calls *[]string
}

func (r *recordingObserver) record(s string) {
	*r.calls = append(*r.calls, r.name+"."+s)
}

func (r *recordingObserver) Reset() { r.record("reset") }
func (r *recordingObserver) Addressed(addr uint8) {
	r.record("addressed(" + string(rune('0'+addr)) + ")")
}
func (r *recordingObserver) Configured(configured bool) {
	if configured {
		r.record("configured(true)")
	} else {
		r.record("configured(false)")
	}
}
func (r *recordingObserver) Suspended(suspended bool) {
	if suspended {
		r.record("suspended(true)")
	} else {
		r.record("suspended(false)")
	}
}
func (r *recordingObserver) Disabled() { r.record("disabled") }

func TestServiceConsumesRequests(t *testing.T) {
	transport := &stubTransport{
		requests:  make(chan HostRequest, 1),
		responses: make(chan HostResponse, 1),
	}
	svc := New(zap.NewNop(), transport, mailbox.New[Command](), MultiObserver(), NewLogHandler(zap.NewNop()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- svc.Start(ctx)
	}()
	<-svc.Ready()

	transport.requests <- HostRequest{Seq: 9, Type: RequestSetReport, ID: hidreport.ID{Direction: hidreport.DirectionOut}}
	select {
	case resp := <-transport.responses:
		require.Equal(t, uint32(9), resp.Seq)
		require.Equal(t, ResponseAccepted, resp.Status)
	case <-time.After(time.Second):
		t.Fatal("no response to host request")
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("service did not stop on cancellation")
	}
}

type stubTransport struct {
	requests  chan HostRequest
	responses chan HostResponse
}

func (s *stubTransport) Run(ctx context.Context, _ *mailbox.Mailbox[Command], _ Observer) error {
	<-ctx.Done()
	return nil
}

func (s *stubTransport) SendReport(ctx context.Context, _ hidreport.KeyboardReport) error {
	return nil
}

func (s *stubTransport) Requests() <-chan HostRequest { return s.requests }

func (s *stubTransport) Respond(ctx context.Context, resp HostResponse) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case s.responses <- resp:
		return nil
	}
}
