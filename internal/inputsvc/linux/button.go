// Package linux implements the button collaborator on top of an
// attached HID input device: any key held down on the source device
// counts as the line being active.
package linux

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/jochenvg/go-udev"
	"github.com/sstallion/go-hid"
	"go.uber.org/zap"
)

const readTimeout = 200 * time.Millisecond

// Address identifies a HID device by vendor, product and interface
// number, formatted as "vvvv:pppp:i".
type Address struct {
	VendorID  uint16
	ProductID uint16
	Interface int
}

func (a Address) String() string {
	return fmt.Sprintf("%04x:%04x:%d", a.VendorID, a.ProductID, a.Interface)
}

func ParseAddress(s string) (Address, error) {
	var addr Address
	_, err := fmt.Sscanf(s, "%04x:%04x:%d", &addr.VendorID, &addr.ProductID, &addr.Interface)
	if err != nil {
		return Address{}, fmt.Errorf("invalid HID address %q: %w", s, err)
	}
	return addr, nil
}

func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *Address) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseAddress(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func (a Address) MarshalYAML() ([]byte, error) {
	return yaml.Marshal(a.String())
}

func (a *Address) UnmarshalYAML(data []byte) error {
	var s string
	if err := yaml.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseAddress(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Button reads input reports from a HID device and derives the
// active/inactive edges from them.
type Button struct {
	log    *zap.Logger
	addr   Address
	dev    *hid.Device
	udev   *udev.Udev
	attach func()
	active bool
}

func NewButton(log *zap.Logger, addr Address) (*Button, error) {
	hid.Init()
	b := &Button{
		log:  log,
		addr: addr,
		udev: &udev.Udev{},
	}
	info, err := b.find()
	if err != nil {
		return nil, err
	}
	dev, err := hid.OpenPath(info.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open HID device %s: %w", addr, err)
	}
	b.dev = dev
	if err := b.acquire(info.Path); err != nil {
		log.Warn("Failed to detach kernel input handlers, key presses will also reach the host", zap.Error(err))
	}
	return b, nil
}

func (b *Button) find() (hid.DeviceInfo, error) {
	var found *hid.DeviceInfo
	err := hid.Enumerate(b.addr.VendorID, b.addr.ProductID, func(info *hid.DeviceInfo) error {
		if info.InterfaceNbr == b.addr.Interface && found == nil {
			cloned := *info
			found = &cloned
		}
		return nil
	})
	if err != nil {
		return hid.DeviceInfo{}, fmt.Errorf("failed to enumerate HID devices: %w", err)
	}
	if found == nil {
		return hid.DeviceInfo{}, fmt.Errorf("HID device not found: %s", b.addr)
	}
	return *found, nil
}

// acquire detaches the kernel input handlers of the source device so
// the stimulus key does not also type into the local session.
func (b *Button) acquire(path string) error {
	hidrawDev := b.udev.NewDeviceFromSubsystemSysname("hidraw", filepath.Base(path))
	if hidrawDev == nil {
		return fmt.Errorf("hidraw device %s not found in udev", path)
	}
	e := b.udev.NewEnumerate()
	e.AddMatchSubsystem("input")
	e.AddMatchParent(hidrawDev.Parent())
	inputs, err := e.Devices()
	if err != nil {
		return fmt.Errorf("failed to enumerate input devices: %w", err)
	}
	var detached []string
	for _, inputDev := range inputs {
		syspath := inputDev.Syspath()
		if !strings.HasPrefix(filepath.Base(syspath), "event") {
			continue
		}
		if err := os.WriteFile(syspath+"/uevent", []byte("remove"), 0644); err != nil {
			b.log.Error("Failed to detach input handler", zap.String("syspath", syspath), zap.Error(err))
			continue
		}
		detached = append(detached, syspath)
	}
	b.attach = func() {
		for _, syspath := range detached {
			if err := os.WriteFile(syspath+"/uevent", []byte("add"), 0644); err != nil {
				b.log.Error("Failed to reattach input handler", zap.String("syspath", syspath), zap.Error(err))
			}
		}
	}
	return nil
}

func (b *Button) WaitForActive(ctx context.Context) error {
	return b.wait(ctx, true)
}

func (b *Button) WaitForInactive(ctx context.Context) error {
	return b.wait(ctx, false)
}

func (b *Button) wait(ctx context.Context, active bool) error {
	buf := make([]byte, 64)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := b.dev.ReadWithTimeout(buf, readTimeout)
		if err != nil {
			return fmt.Errorf("failed to read from HID device %s: %w", b.addr, err)
		}
		if n == 0 {
			continue
		}
		b.active = anyKeyDown(buf[:n])
		if b.active == active {
			return nil
		}
	}
}

// anyKeyDown reports whether a boot keyboard input report carries a
// pressed key or modifier. The reserved byte is ignored.
func anyKeyDown(report []byte) bool {
	for i, v := range report {
		if i == 1 {
			continue
		}
		if v != 0 {
			return true
		}
	}
	return false
}

func (b *Button) Close() error {
	if b.attach != nil {
		b.attach()
	}
	return b.dev.Close()
}
