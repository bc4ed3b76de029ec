// Package hidreport contains the fixed-layout report types of a boot
// protocol USB HID keyboard.
package hidreport

import "fmt"

// KeyboardReport is the 8-byte boot keyboard input report: one modifier
// byte, one reserved byte and six keycode slots. Reports are value
// types; a new one is constructed per input transition.
type KeyboardReport struct {
	Modifier uint8
	Reserved uint8
	Keycodes [6]uint8
}

// Pressed returns a report with the given keycode in the first slot and
// all other fields zero.
func Pressed(code uint8) KeyboardReport {
	var r KeyboardReport
	r.Keycodes[0] = code
	return r
}

// Released returns the all-zero report.
func Released() KeyboardReport {
	return KeyboardReport{}
}

func (r KeyboardReport) Marshal() [8]byte {
	var b [8]byte
	b[0] = r.Modifier
	b[1] = r.Reserved
	copy(b[2:], r.Keycodes[:])
	return b
}

func (r KeyboardReport) IsZero() bool {
	return r == KeyboardReport{}
}

// Direction distinguishes the report pipe a host request targets.
type Direction uint8

const (
	DirectionIn Direction = iota
	DirectionOut
	DirectionFeature
)

func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "in"
	case DirectionOut:
		return "out"
	case DirectionFeature:
		return "feature"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

// ID identifies which report a host get/set request targets.
type ID struct {
	Direction Direction
	Value     uint8
}

func (id ID) String() string {
	return fmt.Sprintf("%s/%d", id.Direction, id.Value)
}

// LEDState is the 1-byte boot keyboard output report.
type LEDState uint8

const (
	LEDNumLock LEDState = 1 << iota
	LEDCapsLock
	LEDScrollLock
	LEDCompose
	LEDKana
)

var ledNames = []struct {
	bit  LEDState
	name string
}{
	{LEDNumLock, "num-lock"},
	{LEDCapsLock, "caps-lock"},
	{LEDScrollLock, "scroll-lock"},
	{LEDCompose, "compose"},
	{LEDKana, "kana"},
}

func (l LEDState) String() string {
	if l == 0 {
		return "none"
	}
	s := ""
	for _, led := range ledNames {
		if l&led.bit == 0 {
			continue
		}
		if s != "" {
			s += "+"
		}
		s += led.name
	}
	return s
}
