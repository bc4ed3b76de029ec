package agent

import (
	"encoding/json"
	"fmt"

	"github.com/periphio/hidcore/internal/inputsvc"
	"github.com/periphio/hidcore/internal/inputsvc/gpio"
	"github.com/periphio/hidcore/internal/inputsvc/linux"
	"github.com/periphio/hidcore/internal/usbsvc"
	"github.com/periphio/hidcore/internal/usbsvc/gadget"
	"github.com/periphio/hidcore/internal/usbsvc/sim"
	"github.com/periphio/hidcore/internal/usbsvc/uhidloop"
	"github.com/periphio/hidcore/pkg/registry"
	"go.uber.org/zap"
)

func newTransportRegistry(log *zap.Logger) *registry.Registry[usbsvc.Transport, *zap.Logger] {
	r := registry.New[usbsvc.Transport](log)
	r.Register("sim", func(config json.RawMessage, log *zap.Logger) (usbsvc.Transport, error) {
		return sim.NewTransport(log.Named("sim")), nil
	})
	r.Register("gadget", func(config json.RawMessage, log *zap.Logger) (usbsvc.Transport, error) {
		var cfg gadget.Config
		if err := unmarshal(config, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse gadget config: %w", err)
		}
		return gadget.NewTransport(log.Named("gadget"), cfg), nil
	})
	r.Register("uhid", func(config json.RawMessage, log *zap.Logger) (usbsvc.Transport, error) {
		var cfg uhidloop.Config
		if err := unmarshal(config, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse uhid config: %w", err)
		}
		return uhidloop.NewTransport(log.Named("uhid"), cfg), nil
	})
	return r
}

type hidButtonConfig struct {
	Address linux.Address `json:"address"`
}

type gpioButtonConfig struct {
	Pin       int  `json:"pin"`
	ActiveLow bool `json:"activeLow"`
}

func newButtonRegistry(log *zap.Logger) *registry.Registry[inputsvc.Button, *zap.Logger] {
	r := registry.New[inputsvc.Button](log)
	r.Register("sim", func(config json.RawMessage, log *zap.Logger) (inputsvc.Button, error) {
		return sim.NewButton(), nil
	})
	r.Register("hid", func(config json.RawMessage, log *zap.Logger) (inputsvc.Button, error) {
		var cfg hidButtonConfig
		if err := unmarshal(config, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse hid button config: %w", err)
		}
		return linux.NewButton(log.Named("button.hid"), cfg.Address)
	})
	r.Register("gpio", func(config json.RawMessage, log *zap.Logger) (inputsvc.Button, error) {
		var cfg gpioButtonConfig
		if err := unmarshal(config, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse gpio button config: %w", err)
		}
		return gpio.Open(log.Named("button.gpio"), cfg.Pin, cfg.ActiveLow)
	})
	return r
}

func unmarshal(config json.RawMessage, v any) error {
	if len(config) == 0 {
		return nil
	}
	return json.Unmarshal(config, v)
}
