package hidreport

import "github.com/iancoleman/strcase"

// Keyboard/Keypad usage page subset covering the boot keyboard keys.
var keyNameMap = map[uint8]string{
	0x04: "a", 0x05: "b", 0x06: "c", 0x07: "d", 0x08: "e", 0x09: "f",
	0x0a: "g", 0x0b: "h", 0x0c: "i", 0x0d: "j", 0x0e: "k", 0x0f: "l",
	0x10: "m", 0x11: "n", 0x12: "o", 0x13: "p", 0x14: "q", 0x15: "r",
	0x16: "s", 0x17: "t", 0x18: "u", 0x19: "v", 0x1a: "w", 0x1b: "x",
	0x1c: "y", 0x1d: "z",
	0x1e: "1", 0x1f: "2", 0x20: "3", 0x21: "4", 0x22: "5", 0x23: "6",
	0x24: "7", 0x25: "8", 0x26: "9", 0x27: "0",
	0x28: "enter", 0x29: "escape", 0x2a: "backspace", 0x2b: "tab",
	0x2c: "space", 0x2d: "minus", 0x2e: "equal", 0x2f: "left-bracket",
	0x30: "right-bracket", 0x31: "backslash", 0x33: "semicolon",
	0x34: "quote", 0x35: "grave", 0x36: "comma", 0x37: "period",
	0x38: "slash", 0x39: "caps-lock",
	0x3a: "f1", 0x3b: "f2", 0x3c: "f3", 0x3d: "f4", 0x3e: "f5",
	0x3f: "f6", 0x40: "f7", 0x41: "f8", 0x42: "f9", 0x43: "f10",
	0x44: "f11", 0x45: "f12",
	0x46: "print-screen", 0x47: "scroll-lock", 0x48: "pause",
	0x49: "insert", 0x4a: "home", 0x4b: "page-up", 0x4c: "delete",
	0x4d: "end", 0x4e: "page-down",
	0x4f: "right", 0x50: "left", 0x51: "down", 0x52: "up",
	0xe0: "left-ctrl", 0xe1: "left-shift", 0xe2: "left-alt",
	0xe3: "left-gui", 0xe4: "right-ctrl", 0xe5: "right-shift",
	0xe6: "right-alt", 0xe7: "right-gui",
}

var keyCodeMap = map[string]uint8{}

func init() {
	for code, name := range keyNameMap {
		keyCodeMap[name] = code
	}
}

// KeyCode resolves a key name to its usage code. Names are normalized to
// kebab-case, so "LeftShift", "left_shift" and "left-shift" are
// equivalent.
func KeyCode(name string) (uint8, bool) {
	code, ok := keyCodeMap[strcase.ToKebab(name)]
	return code, ok
}

func KeyName(code uint8) string {
	name, ok := keyNameMap[code]
	if !ok {
		return ""
	}
	return name
}
