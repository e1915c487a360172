package socket

import "testing"

func TestCompatible(t *testing.T) {
	tests := []struct {
		name     string
		src, dst Kind
		want     bool
	}{
		{"identical", Event, Event, true},
		{"different", Event, Pubkey, false},
		{"any source", Any, Event, true},
		{"any dest", Event, Any, true},
		{"any both", Any, Any, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Compatible(tt.src, tt.dst); got != tt.want {
				t.Errorf("Compatible(%v, %v) = %v, want %v", tt.src, tt.dst, got, tt.want)
			}
		})
	}
}

func TestValid(t *testing.T) {
	if !Event.Valid() {
		t.Error("Event should be valid")
	}
	if Kind("bogus").Valid() {
		t.Error("bogus kind should not be valid")
	}
}

func TestCheckEdge(t *testing.T) {
	if err := CheckEdge(Event, Event); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := CheckEdge(Event, Pubkey); err == nil {
		t.Error("expected error for incompatible edge")
	}
	if err := CheckEdge(Kind("bogus"), Event); err == nil {
		t.Error("expected error for invalid source kind")
	}
	if err := CheckEdge(Event, Kind("bogus")); err == nil {
		t.Error("expected error for invalid destination kind")
	}
	if err := CheckEdge(Any, Pubkey); err != nil {
		t.Errorf("unexpected error for Any source: %v", err)
	}
}
