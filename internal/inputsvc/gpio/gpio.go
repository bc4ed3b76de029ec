// Package gpio implements the button collaborator on a sysfs GPIO line
// configured for edge interrupts.
package gpio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

const (
	sysfsRoot     = "/sys/class/gpio"
	pollTimeoutMs = 200
)

// Line is an input GPIO line. ActiveLow matches a button wired to pull
// the line to ground when pressed.
type Line struct {
	log       *zap.Logger
	pin       int
	activeLow bool
	value     *os.File
}

func Open(log *zap.Logger, pin int, activeLow bool) (*Line, error) {
	dir := filepath.Join(sysfsRoot, fmt.Sprintf("gpio%d", pin))
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		err := os.WriteFile(filepath.Join(sysfsRoot, "export"), []byte(strconv.Itoa(pin)), 0200)
		if err != nil {
			return nil, fmt.Errorf("failed to export gpio %d: %w", pin, err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "direction"), []byte("in"), 0644); err != nil {
		return nil, fmt.Errorf("failed to set gpio %d direction: %w", pin, err)
	}
	if err := os.WriteFile(filepath.Join(dir, "edge"), []byte("both"), 0644); err != nil {
		return nil, fmt.Errorf("failed to arm gpio %d edge interrupts: %w", pin, err)
	}
	value, err := os.Open(filepath.Join(dir, "value"))
	if err != nil {
		return nil, fmt.Errorf("failed to open gpio %d value: %w", pin, err)
	}
	return &Line{
		log:       log,
		pin:       pin,
		activeLow: activeLow,
		value:     value,
	}, nil
}

func (l *Line) WaitForActive(ctx context.Context) error {
	return l.wait(ctx, true)
}

func (l *Line) WaitForInactive(ctx context.Context) error {
	return l.wait(ctx, false)
}

func (l *Line) wait(ctx context.Context, active bool) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		level, err := l.read()
		if err != nil {
			return err
		}
		pressed := (level == 0) == l.activeLow
		if pressed == active {
			return nil
		}
		if err := l.poll(); err != nil {
			return err
		}
	}
}

// poll sleeps until the kernel signals an edge on the value attribute.
// Sysfs reports edges as exceptional conditions, not readable data.
func (l *Line) poll() error {
	fds := []unix.PollFd{{
		Fd:     int32(l.value.Fd()),
		Events: unix.POLLPRI | unix.POLLERR,
	}}
	_, err := unix.Poll(fds, pollTimeoutMs)
	if err != nil && err != unix.EINTR {
		return fmt.Errorf("failed to poll gpio %d: %w", l.pin, err)
	}
	return nil
}

func (l *Line) read() (int, error) {
	buf := make([]byte, 8)
	n, err := l.value.ReadAt(buf, 0)
	if err != nil && n == 0 {
		return 0, fmt.Errorf("failed to read gpio %d value: %w", l.pin, err)
	}
	level, err := strconv.Atoi(strings.TrimSpace(string(buf[:n])))
	if err != nil {
		return 0, fmt.Errorf("unexpected gpio %d value: %w", l.pin, err)
	}
	return level, nil
}

func (l *Line) Close() error {
	return l.value.Close()
}
