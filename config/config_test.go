package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsStableUnderValidate(t *testing.T) {
	want := Default()
	got := Default()
	got.Validate()
	if got != want {
		t.Errorf("Validate changed the defaults:\n got  %+v\n want %+v", got, want)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "weights.yaml")
	src := `
scoring:
  hazard_adjacent: 999
  destination_multiplier: 4.5
tasks:
  return_carry: 25
comms:
  heartbeat_window: 3
`
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Scoring.HazardAdjacent != 999 {
		t.Errorf("HazardAdjacent = %d, want 999", cfg.Scoring.HazardAdjacent)
	}
	if cfg.Scoring.DestinationMultiplier != 4.5 {
		t.Errorf("DestinationMultiplier = %v, want 4.5", cfg.Scoring.DestinationMultiplier)
	}
	if cfg.Tasks.ReturnCarry != 25 {
		t.Errorf("ReturnCarry = %d, want 25", cfg.Tasks.ReturnCarry)
	}
	if cfg.Comms.HeartbeatWindow != 3 {
		t.Errorf("HeartbeatWindow = %d, want 3", cfg.Comms.HeartbeatWindow)
	}
	// Untouched fields keep defaults.
	if cfg.Scoring.HazardNear != Default().Scoring.HazardNear {
		t.Errorf("HazardNear = %d, want default %d", cfg.Scoring.HazardNear, Default().Scoring.HazardNear)
	}
	if !cfg.Comms.Relay {
		t.Error("Relay should keep its default of true")
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("scoring: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed yaml")
	}
}

func TestValidateClamps(t *testing.T) {
	cfg := Default()
	cfg.Scoring.HazardAdjacent = -5
	cfg.Tasks.ReturnCarryNearHome = 500
	cfg.Nav.ProbeSteps = 99
	cfg.Comms.HeartbeatWindow = 0
	cfg.Leader.PanicFactor = 0
	cfg.Validate()

	if cfg.Scoring.HazardAdjacent != 0 {
		t.Errorf("negative penalty should clamp to 0, got %d", cfg.Scoring.HazardAdjacent)
	}
	if cfg.Tasks.ReturnCarryNearHome != cfg.Tasks.ReturnCarry {
		t.Errorf("near-home threshold should not exceed ReturnCarry, got %d", cfg.Tasks.ReturnCarryNearHome)
	}
	if cfg.Nav.ProbeSteps != 8 {
		t.Errorf("ProbeSteps = %d, want 8", cfg.Nav.ProbeSteps)
	}
	if cfg.Comms.HeartbeatWindow != 1 {
		t.Errorf("HeartbeatWindow = %d, want 1", cfg.Comms.HeartbeatWindow)
	}
	if cfg.Leader.PanicFactor != 1 {
		t.Errorf("PanicFactor = %d, want 1", cfg.Leader.PanicFactor)
	}
}
