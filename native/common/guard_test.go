package common

import (
	"errors"
	"testing"
)

func TestGuardHonoursPauseSet(t *testing.T) {
	set := NewPauseSet(" Lending ")
	if err := Guard(set, "lending"); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
	set.Set("lending", false)
	if err := Guard(set, "lending"); err != nil {
		t.Fatalf("expected guard to pass after resume, got %v", err)
	}
	if err := Guard(nil, "lending"); err != nil {
		t.Fatalf("nil view must not block: %v", err)
	}
}
