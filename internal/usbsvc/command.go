package usbsvc

import "fmt"

// Command is a device lifecycle command carried through the single-slot
// command mailbox from interrupt context to the transport loop.
type Command uint8

const (
	CommandEnable Command = iota
	CommandDisable
	CommandRemoteWakeup
)

func (c Command) String() string {
	switch c {
	case CommandEnable:
		return "enable"
	case CommandDisable:
		return "disable"
	case CommandRemoteWakeup:
		return "remote-wakeup"
	default:
		return fmt.Sprintf("command(%d)", uint8(c))
	}
}
