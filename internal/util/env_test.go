package util

import (
	"testing"
	"time"
)

func TestGetEnvFloat(t *testing.T) {
	tests := []struct {
		name  string
		value string
		set   bool
		want  float64
	}{
		{"Unset", "", false, 1.5},
		{"Valid", "0.25", true, 0.25},
		{"Negative", "-300", true, -300},
		{"Invalid", "abc", true, 1.5},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.set {
				t.Setenv("TEST_FLOAT", tc.value)
			}
			if got := GetEnvFloat("TEST_FLOAT", 1.5); got != tc.want {
				t.Fatalf("GetEnvFloat = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("TEST_DURATION", "250ms")
	if got := GetEnvDuration("TEST_DURATION", time.Second); got != 250*time.Millisecond {
		t.Fatalf("expected 250ms, got %v", got)
	}
	t.Setenv("TEST_DURATION", "soon")
	if got := GetEnvDuration("TEST_DURATION", time.Second); got != time.Second {
		t.Fatalf("expected default, got %v", got)
	}
}

func TestGetEnvIntAndBool(t *testing.T) {
	t.Setenv("TEST_INT", "42.9")
	if got := GetEnvInt("TEST_INT", 1); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
	t.Setenv("TEST_BOOL", "yes")
	if got := GetEnvBool("TEST_BOOL", true); !got {
		t.Fatal("expected default for unrecognised bool")
	}
	t.Setenv("TEST_BOOL", "false")
	if got := GetEnvBool("TEST_BOOL", true); got {
		t.Fatal("expected false")
	}
}
