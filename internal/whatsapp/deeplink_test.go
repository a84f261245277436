package whatsapp

import (
	"strings"
	"testing"
)

func TestContactLink(t *testing.T) {
	tests := []struct {
		name    string
		phone   string
		message string
		want    string
	}{
		{"plain number", "+18765550143", "", "https://wa.me/18765550143"},
		{"without plus", "18765550143", "", "https://wa.me/18765550143"},
		{"empty phone", "", "hello", ""},
		{"with message", "+18765550143", "hello there", "https://wa.me/18765550143?text=hello+there"},
	}
	for _, tc := range tests {
		if got := ContactLink(tc.phone, tc.message); got != tc.want {
			t.Errorf("%s: ContactLink() = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestRequesterGreetingMentionsParish(t *testing.T) {
	msg := RequesterGreeting("Andre", "St. Ann")
	if !strings.Contains(msg, "Andre") || !strings.Contains(msg, "St. Ann") {
		t.Errorf("greeting must mention the requester and parish: %q", msg)
	}
}
