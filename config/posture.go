package config

import "math"

// Posture is a coarse strategic dial over the threshold tables. Weights are
// 0.0–1.0 and 0.5 reproduces the defaults; Apply maps them onto the concrete
// thresholds, overriding whatever the table held for those fields.
type Posture struct {
	Name       string  `yaml:"name"`
	Economy    float64 `yaml:"economy"`    // return and spawn earlier, hold bigger reserves
	Aggression float64 `yaml:"aggression"` // chase kings and ignore enemy pressure
	Expansion  float64 `yaml:"expansion"`  // ask for new leaders sooner
}

// BalancedPosture is the posture the defaults were tuned at.
func BalancedPosture() Posture {
	return Posture{Name: "balanced", Economy: 0.5, Aggression: 0.5, Expansion: 0.5}
}

// Validate clamps all weights to their valid ranges.
func (p *Posture) Validate() {
	p.Economy = clamp(p.Economy, 0, 1)
	p.Aggression = clamp(p.Aggression, 0, 1)
	p.Expansion = clamp(p.Expansion, 0, 1)
}

// Apply writes the thresholds the posture covers into c.
func (p Posture) Apply(c *Config) {
	p.Validate()

	c.Tasks.ReturnCarry = lerp(60, 20, p.Economy)
	c.Tasks.CriticalReserve = lerp(10, 50, p.Economy)
	c.Leader.SpawnReserve = lerp(40, 0, p.Economy)
	c.Leader.SpawnPerLeader = lerp(6, 18, p.Economy)

	c.Scoring.AttackKingBonus = lerp(100, 300, p.Aggression)
	c.Scoring.RatnapBonus = lerp(150, 350, p.Aggression)
	c.Scoring.EnemyAdjacent = lerp(120, 0, p.Aggression)
	c.Scoring.EnemyStronger = lerp(80, 0, p.Aggression)
	c.Tasks.DistressRangeSq = lerp(200, 0, p.Aggression)

	c.Leader.AssemblePopulation = lerp(25, 5, p.Expansion)
	c.Leader.AssembleCheese = lerp(250, 50, p.Expansion)
	c.Leader.AssembleMines = lerp(3, 1, p.Expansion)
}

// lerp linearly interpolates between from and to by t (0–1), returning an int.
func lerp(from, to int, t float64) int {
	return from + int(math.Round(float64(to-from)*t))
}
