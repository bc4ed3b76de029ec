package hidreport

import "testing"

func TestPressedLayout(t *testing.T) {
	r := Pressed(0x04)
	b := r.Marshal()
	expected := [8]byte{0, 0, 0x04, 0, 0, 0, 0, 0}
	if b != expected {
		t.Fatalf("pressed report layout: got %v, want %v", b, expected)
	}
	if r.IsZero() {
		t.Fatal("pressed report should not be zero")
	}
}

func TestReleasedLayout(t *testing.T) {
	r := Released()
	if !r.IsZero() {
		t.Fatal("released report should be zero")
	}
	if b := r.Marshal(); b != [8]byte{} {
		t.Fatalf("released report layout: got %v, want all zero", b)
	}
}

func TestKeyCode(t *testing.T) {
	tests := []struct {
		name string
		code uint8
		ok   bool
	}{
		{"a", 0x04, true},
		{"z", 0x1d, true},
		{"enter", 0x28, true},
		{"left-shift", 0xe1, true},
		{"LeftShift", 0xe1, true},
		{"LEFT_SHIFT", 0xe1, true},
		{"no-such-key", 0, false},
	}
	for _, test := range tests {
		code, ok := KeyCode(test.name)
		if ok != test.ok || code != test.code {
			t.Errorf("KeyCode(%q) = (0x%02x, %v), want (0x%02x, %v)", test.name, code, ok, test.code, test.ok)
		}
	}
}

func TestKeyNameRoundTrip(t *testing.T) {
	for code, name := range keyNameMap {
		resolved, ok := KeyCode(name)
		if !ok || resolved != code {
			t.Errorf("KeyCode(KeyName(0x%02x)) = 0x%02x, ok=%v", code, resolved, ok)
		}
	}
	if KeyName(0x03) != "" {
		t.Error("KeyName of an unmapped code should be empty")
	}
}

func TestLEDString(t *testing.T) {
	if s := (LEDNumLock | LEDCapsLock).String(); s != "num-lock+caps-lock" {
		t.Errorf("unexpected LED string: %q", s)
	}
	if s := LEDState(0).String(); s != "none" {
		t.Errorf("unexpected empty LED string: %q", s)
	}
}
