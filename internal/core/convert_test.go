package core

import (
	"testing"
	"time"
)

func TestToPgUUID(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantValid bool
	}{
		{"valid", "0d9f7e1c-3c1e-4b7a-9a57-3a1c8f1f0b2d", true},
		{"uppercase", "0D9F7E1C-3C1E-4B7A-9A57-3A1C8F1F0B2D", true},
		{"empty", "", false},
		{"garbage", "not-a-uuid", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToPgUUID(tt.input)
			if got.Valid != tt.wantValid {
				t.Fatalf("ToPgUUID(%q).Valid = %v, want %v", tt.input, got.Valid, tt.wantValid)
			}
			if tt.wantValid && PgUUIDToString(got) != "0d9f7e1c-3c1e-4b7a-9a57-3a1c8f1f0b2d" {
				t.Errorf("PgUUIDToString() = %q", PgUUIDToString(got))
			}
			if !tt.wantValid && PgUUIDToString(got) != "" {
				t.Errorf("PgUUIDToString(invalid) = %q, want empty", PgUUIDToString(got))
			}
		})
	}
}

func TestToPgText(t *testing.T) {
	tests := []struct {
		input     string
		wantValid bool
	}{
		{"hello", true},
		{"  padded  ", true},
		{"", false},
		{"   ", false},
	}

	for _, tt := range tests {
		got := ToPgText(tt.input)
		if got.Valid != tt.wantValid {
			t.Errorf("ToPgText(%q).Valid = %v, want %v", tt.input, got.Valid, tt.wantValid)
		}
		if tt.wantValid && PgTextToString(got) != tt.input {
			t.Errorf("PgTextToString() = %q, want %q", PgTextToString(got), tt.input)
		}
	}
}

func TestToPgTimestamptz(t *testing.T) {
	if ToPgTimestamptz(nil).Valid {
		t.Error("ToPgTimestamptz(nil) is valid")
	}
	if ToPgTimestamptz(&time.Time{}).Valid {
		t.Error("ToPgTimestamptz(zero) is valid")
	}

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	got := PgTimestamptzToTime(ToPgTimestamptz(&now))
	if got == nil || !got.Equal(now) {
		t.Errorf("round trip = %v, want %v", got, now)
	}
}
