package phone

import "testing"

func TestNormalizeE164(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		// Jamaican numbers share the +1 country code under area code 876.
		{"876-555-0143", "+18765550143"},
		{"(876) 555-0143", "+18765550143"},
		{"+1 876 555 0143", "+18765550143"},
		// Already-normalized input passes through unchanged.
		{"+18765550143", "+18765550143"},
	}

	for _, tc := range tests {
		got, err := NormalizeE164(tc.input)
		if err != nil {
			t.Errorf("NormalizeE164(%q) error = %v", tc.input, err)
			continue
		}
		if got != tc.want {
			t.Errorf("NormalizeE164(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestNormalizeE164Invalid(t *testing.T) {
	for _, input := range []string{"", "  ", "not-a-number", "123"} {
		if _, err := NormalizeE164(input); err == nil {
			t.Errorf("NormalizeE164(%q) expected an error", input)
		}
	}
}
