package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLerp(t *testing.T) {
	tests := []struct {
		from, to int
		t        float64
		want     int
	}{
		{5, 20, 0.0, 5},
		{5, 20, 1.0, 20},
		{5, 20, 0.5, 13}, // 5 + round(7.5)
		{5, 20, 0.7, 16}, // 5 + round(10.5)
		{60, 20, 0.5, 40},
		{3, 1, 0.5, 2},
	}
	for _, tc := range tests {
		if got := lerp(tc.from, tc.to, tc.t); got != tc.want {
			t.Errorf("lerp(%d, %d, %v) = %d, want %d", tc.from, tc.to, tc.t, got, tc.want)
		}
	}
}

func TestBalancedPostureKeepsDefaults(t *testing.T) {
	got := Default()
	BalancedPosture().Apply(&got)
	if got != Default() {
		t.Errorf("balanced posture moved the defaults:\n got  %+v\n want %+v", got, Default())
	}
}

func TestPostureExtremes(t *testing.T) {
	c := Default()
	Posture{Economy: 1, Aggression: 1, Expansion: 0}.Apply(&c)

	if c.Tasks.ReturnCarry != 20 {
		t.Errorf("ReturnCarry = %d, want 20", c.Tasks.ReturnCarry)
	}
	if c.Leader.SpawnReserve != 0 {
		t.Errorf("SpawnReserve = %d, want 0", c.Leader.SpawnReserve)
	}
	if c.Scoring.EnemyAdjacent != 0 || c.Scoring.AttackKingBonus != 300 {
		t.Errorf("EnemyAdjacent = %d, AttackKingBonus = %d", c.Scoring.EnemyAdjacent, c.Scoring.AttackKingBonus)
	}
	if c.Leader.AssemblePopulation != 25 {
		t.Errorf("AssemblePopulation = %d, want 25", c.Leader.AssemblePopulation)
	}
	// Fields outside the posture are untouched.
	if c.Scoring.HazardAdjacent != Default().Scoring.HazardAdjacent {
		t.Errorf("HazardAdjacent = %d", c.Scoring.HazardAdjacent)
	}
}

func TestPostureValidate(t *testing.T) {
	p := Posture{Economy: 1.5, Aggression: -0.5, Expansion: 0.25}
	p.Validate()
	if p.Economy != 1.0 {
		t.Errorf("Economy = %f, want 1.0 (clamped)", p.Economy)
	}
	if p.Aggression != 0.0 {
		t.Errorf("Aggression = %f, want 0.0 (clamped)", p.Aggression)
	}
	if p.Expansion != 0.25 {
		t.Errorf("Expansion = %f, want 0.25", p.Expansion)
	}
}

func TestLoadAppliesPosture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hive.yaml")
	src := `
tasks:
  return_carry: 55
posture:
  name: greedy
  economy: 3
`
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Posture == nil || cfg.Posture.Name != "greedy" || cfg.Posture.Economy != 1 {
		t.Fatalf("posture = %+v", cfg.Posture)
	}
	if cfg.Tasks.ReturnCarry != 20 {
		t.Errorf("ReturnCarry = %d, want the posture's 20", cfg.Tasks.ReturnCarry)
	}
	if cfg.Scoring.AttackKingBonus != 100 {
		t.Errorf("AttackKingBonus = %d, want 100 for zero aggression", cfg.Scoring.AttackKingBonus)
	}
}
