package sim

import (
	"context"
	"testing"
	"time"

	"github.com/periphio/hidcore/internal/inputsvc"
	"github.com/periphio/hidcore/internal/usbsvc"
	"github.com/periphio/hidcore/pkg/hidreport"
	"github.com/periphio/hidcore/pkg/mailbox"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Drives the full stack from Vbus interrupt to host-visible reports
// using the simulated hardware collaborators.
func TestKeyboardLifecycle(t *testing.T) {
	log := zap.NewNop()
	power := NewPowerStatus()
	commands := mailbox.New[usbsvc.Command]()
	bridge := usbsvc.NewPowerBridge(log, power, commands)
	bridge.Arm()

	transport := NewTransport(log)
	suspended := atomic.NewBool(false)
	state := usbsvc.NewDeviceState(log, suspended)
	svc := usbsvc.New(log, transport, commands, state, usbsvc.NewMemoryHandler(log))

	button := NewButton()
	key, ok := hidreport.KeyCode("a")
	require.True(t, ok)
	input := inputsvc.New(log, button, svc, commands, suspended, key)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return svc.Start(groupCtx)
	})
	group.Go(func() error {
		return input.Start(groupCtx)
	})
	<-svc.Ready()
	<-input.Ready()

	// Plugging in enumerates the device.
	power.RaiseDetected()
	require.Eventually(t, transport.IsConfigured, time.Second, time.Millisecond)
	require.True(t, state.IsConfigured())

	// One press/release cycle reaches the host as two reports.
	button.Press()
	report := nextReport(t, transport)
	require.Equal(t, key, report.Keycodes[0])
	button.Release()
	require.True(t, nextReport(t, transport).IsZero())

	// A press on a suspended link wakes it before the report goes out.
	transport.Suspend()
	require.Eventually(t, suspended.Load, time.Second, time.Millisecond)
	button.Press()
	report = nextReport(t, transport)
	require.Equal(t, key, report.Keycodes[0])
	require.False(t, suspended.Load())
	button.Release()
	require.True(t, nextReport(t, transport).IsZero())

	// Host writes the LED state, device accepts it.
	transport.PushRequest(usbsvc.HostRequest{
		Seq:  1,
		Type: usbsvc.RequestSetReport,
		ID:   hidreport.ID{Direction: hidreport.DirectionOut},
		Data: []byte{byte(hidreport.LEDCapsLock)},
	})
	select {
	case resp := <-transport.Responses():
		require.Equal(t, uint32(1), resp.Seq)
		require.Equal(t, usbsvc.ResponseAccepted, resp.Status)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for response")
	}

	// Unplugging tears the device down.
	power.RaiseRemoved()
	require.Eventually(t, func() bool {
		return !transport.IsEnabled()
	}, time.Second, time.Millisecond)
	require.False(t, state.IsConfigured())

	cancel()
	require.NoError(t, group.Wait())
}

func nextReport(t *testing.T, transport *Transport) hidreport.KeyboardReport {
	t.Helper()
	select {
	case report := <-transport.Reports():
		return report
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for report")
		return hidreport.KeyboardReport{}
	}
}
