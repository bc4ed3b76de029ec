package agent

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const simDeviceConfig = `transport:
  backend: sim
input:
  backend: sim
handler: log
key: a
`

// With the sim backends, plugging in runs through the power interrupt
// bridge and the device enumerates to configured.
func TestAgentSimEnumeratesThroughPowerBridge(t *testing.T) {
	dir := t.TempDir()
	deviceConfig := filepath.Join(dir, "device.yml")
	require.NoError(t, os.WriteFile(deviceConfig, []byte(simDeviceConfig), 0644))

	a, err := NewAgent(Config{
		DataDir:      filepath.Join(dir, "data"),
		DeviceConfig: deviceConfig,
	})
	require.NoError(t, err)
	require.NotNil(t, a.power)
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- a.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		entries, err := a.Journal().List()
		if err != nil {
			return false
		}
		for _, entry := range entries {
			if entry.Event == "configured" {
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("agent did not stop on cancellation")
	}
}
