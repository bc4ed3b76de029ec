package agent

import "encoding/json"

// Config points to the data directory and the user-driven device
// configuration file. Live reload only applies to the device
// configuration.
type Config struct {
	DataDir      string `json:"dataDir"`
	DeviceConfig string `json:"deviceConfig"`
}

// BackendConfig selects a registered backend by name and carries its raw
// configuration section.
type BackendConfig struct {
	Backend string          `json:"backend"`
	Config  json.RawMessage `json:"config"`
}

// DeviceConfig is loaded from device.yml.
type DeviceConfig struct {
	Transport BackendConfig `json:"transport"`
	Input     BackendConfig `json:"input"`
	// Handler selects how host control requests are answered: "log" or
	// "memory".
	Handler string `json:"handler"`
	// Key is the key name submitted on a press, e.g. "a" or "left-shift".
	Key string `json:"key"`
}

func defaultDeviceConfig() DeviceConfig {
	return DeviceConfig{
		Transport: BackendConfig{Backend: "sim"},
		Input:     BackendConfig{Backend: "sim"},
		Handler:   "log",
		Key:       "a",
	}
}
