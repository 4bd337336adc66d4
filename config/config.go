// Package config holds the tunable weight and threshold tables of the decision
// core. Every constant the scoring, task and leader logic reads lives here so it
// can be tuned from a YAML file without touching the algorithms.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full tuning table.
type Config struct {
	Scoring Scoring `yaml:"scoring"`
	Tasks   Tasks   `yaml:"tasks"`
	Leader  Leader  `yaml:"leader"`
	Nav     Nav     `yaml:"nav"`
	Comms   Comms   `yaml:"comms"`
	Budget  Budget  `yaml:"budget"`

	// Posture, when present, overrides the thresholds it covers.
	Posture *Posture `yaml:"posture,omitempty"`
}

// Scoring weights for the per-turn move evaluation. Penalties are stored as
// positive magnitudes and subtracted by the scorer.
type Scoring struct {
	DigPenalty            int     `yaml:"dig_penalty"`
	StandStill            int     `yaml:"stand_still"`
	TurnPenalty           int     `yaml:"turn_penalty"`
	HazardAdjacent        int     `yaml:"hazard_adjacent"`
	HazardNear            int     `yaml:"hazard_near"`
	HazardReach           int     `yaml:"hazard_reach"` // body distance counted as adjacent
	HazardFallback        int     `yaml:"hazard_fallback"`
	HazardMemoryRounds    int     `yaml:"hazard_memory_rounds"`
	KingMelee             int     `yaml:"king_melee"`
	KingRing              int     `yaml:"king_ring"`
	EnemyAdjacent         int     `yaml:"enemy_adjacent"`
	EnemyNear             int     `yaml:"enemy_near"`
	EnemyStronger         int     `yaml:"enemy_stronger"`
	ThrownGrace           int     `yaml:"thrown_grace"`
	ThrownGraceRounds     int     `yaml:"thrown_grace_rounds"`
	AllyAdjacent          int     `yaml:"ally_adjacent"`
	AllyNear              int     `yaml:"ally_near"`
	RatnapBonus           int     `yaml:"ratnap_bonus"`
	AttackKingBonus       int     `yaml:"attack_king_bonus"`
	FinishBonus           int     `yaml:"finish_bonus"`
	ReadyToAttack         int     `yaml:"ready_to_attack"`
	DestinationMultiplier float64 `yaml:"destination_multiplier"`
	UnvisitedTile         int     `yaml:"unvisited_tile"`
	AdjacentCheese        int     `yaml:"adjacent_cheese"`
	LowReserve            int     `yaml:"low_reserve"`
	MidReserve            int     `yaml:"mid_reserve"`
	HedgeExtra            int     `yaml:"hedge_extra"`
	KingHedgeExtra        int     `yaml:"king_hedge_extra"`
}

// Tasks are the thresholds interpolated into the task-transition rules.
type Tasks struct {
	ReturnCarry             int `yaml:"return_carry"`
	ReturnCarryNearHome     int `yaml:"return_carry_near_home"`
	NearHomeDistSq          int `yaml:"near_home_dist_sq"`
	CriticalReserve         int `yaml:"critical_reserve"`
	CarryCap                int `yaml:"carry_cap"`
	DistressRangeSq         int `yaml:"distress_range_sq"`
	AssembleTimeout         int `yaml:"assemble_timeout"`
	MineCooldownRounds      int `yaml:"mine_cooldown_rounds"`
	MineFailLimit           int `yaml:"mine_fail_limit"`
	ExplorePhaseRound       int `yaml:"explore_phase_round"`
	LandmarkExcludeRadiusSq int `yaml:"landmark_exclude_radius_sq"`
}

// Leader thresholds for spawning and expansion. Counts scale with the number of
// live leaders; inside the panic window before the population cutoff they are
// multiplied by PanicFactor.
type Leader struct {
	SpawnPerLeader     int `yaml:"spawn_per_leader"`
	SpawnReserve       int `yaml:"spawn_reserve"`
	AssemblePopulation int `yaml:"assemble_population"`
	AssembleCheese     int `yaml:"assemble_cheese"`
	AssembleMines      int `yaml:"assemble_mines"`
	AssembleMinDistSq  int `yaml:"assemble_min_dist_sq"`
	AssembleTimeout    int `yaml:"assemble_timeout"` // rounds before an unanswered request is withdrawn
	PanicWindow        int `yaml:"panic_window"`
	PanicFactor        int `yaml:"panic_factor"`
	ThreatRadiusSq     int `yaml:"threat_radius_sq"`
}

// Nav tunes the bug navigator.
type Nav struct {
	ResetDistSq int `yaml:"reset_dist_sq"`
	MaxStall    int `yaml:"max_stall"`
	ProbeSteps  int `yaml:"probe_steps"`
}

// Comms tunes the coordination protocol.
type Comms struct {
	HeartbeatWindow int  `yaml:"heartbeat_window"`
	ListenRounds    int  `yaml:"listen_rounds"`
	Relay           bool `yaml:"relay"`
}

// Budget is the minimum remaining per-round budget each optional refinement needs.
type Budget struct {
	ExtraSense      int `yaml:"extra_sense"`
	Relay           int `yaml:"relay"`
	RebroadcastMine int `yaml:"rebroadcast_mine"`
	Diagnostics     int `yaml:"diagnostics"`
}

// Default returns the tuned baseline.
func Default() Config {
	return Config{
		Scoring: Scoring{
			DigPenalty:            8,
			StandStill:            2,
			TurnPenalty:           3,
			HazardAdjacent:        400,
			HazardNear:            120,
			HazardReach:           0,
			HazardFallback:        60,
			HazardMemoryRounds:    8,
			KingMelee:             300,
			KingRing:              80,
			EnemyAdjacent:         60,
			EnemyNear:             20,
			EnemyStronger:         40,
			ThrownGrace:           25,
			ThrownGraceRounds:     2,
			AllyAdjacent:          8,
			AllyNear:              3,
			RatnapBonus:           250,
			AttackKingBonus:       200,
			FinishBonus:           150,
			ReadyToAttack:         50,
			DestinationMultiplier: 10,
			UnvisitedTile:         0,
			AdjacentCheese:        0,
			LowReserve:            100,
			MidReserve:            400,
			HedgeExtra:            3,
			KingHedgeExtra:        6,
		},
		Tasks: Tasks{
			ReturnCarry:             40,
			ReturnCarryNearHome:     15,
			NearHomeDistSq:          64,
			CriticalReserve:         30,
			CarryCap:                60,
			DistressRangeSq:         100,
			AssembleTimeout:         30,
			MineCooldownRounds:      40,
			MineFailLimit:           3,
			ExplorePhaseRound:       150,
			LandmarkExcludeRadiusSq: 36,
		},
		Leader: Leader{
			SpawnPerLeader:     12,
			SpawnReserve:       20,
			AssemblePopulation: 15,
			AssembleCheese:     150,
			AssembleMines:      2,
			AssembleMinDistSq:  100,
			AssembleTimeout:    60,
			PanicWindow:        200,
			PanicFactor:        2,
			ThreatRadiusSq:     20,
		},
		Nav: Nav{
			ResetDistSq: 8,
			MaxStall:    20,
			ProbeSteps:  8,
		},
		Comms: Comms{
			HeartbeatWindow: 1,
			ListenRounds:    2,
			Relay:           true,
		},
		Budget: Budget{
			ExtraSense:      4000,
			Relay:           1500,
			RebroadcastMine: 1000,
			Diagnostics:     500,
		},
	}
}

// Load reads a YAML file over the defaults. Fields absent from the file keep
// their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Posture != nil {
		cfg.Posture.Validate()
		cfg.Posture.Apply(&cfg)
	}
	cfg.Validate()
	return cfg, nil
}

// Validate clamps every value into the range the algorithms assume.
func (c *Config) Validate() {
	s := &c.Scoring
	for _, p := range []*int{
		&s.DigPenalty, &s.StandStill, &s.TurnPenalty, &s.HazardAdjacent, &s.HazardNear,
		&s.HazardFallback, &s.KingMelee, &s.KingRing, &s.EnemyAdjacent, &s.EnemyNear,
		&s.EnemyStronger, &s.AllyAdjacent, &s.AllyNear, &s.RatnapBonus, &s.AttackKingBonus,
		&s.FinishBonus, &s.ReadyToAttack, &s.LowReserve, &s.HedgeExtra, &s.KingHedgeExtra,
	} {
		*p = clampInt(*p, 0, maxWeight)
	}
	s.ThrownGrace = clampInt(s.ThrownGrace, -maxWeight, maxWeight)
	s.UnvisitedTile = clampInt(s.UnvisitedTile, -maxWeight, maxWeight)
	s.AdjacentCheese = clampInt(s.AdjacentCheese, -maxWeight, maxWeight)
	s.HazardReach = clampInt(s.HazardReach, 0, 2)
	s.HazardMemoryRounds = clampInt(s.HazardMemoryRounds, 0, 100)
	s.ThrownGraceRounds = clampInt(s.ThrownGraceRounds, 0, 20)
	s.MidReserve = max(s.MidReserve, s.LowReserve)
	s.DestinationMultiplier = clamp(s.DestinationMultiplier, 0, 1000)

	t := &c.Tasks
	t.ReturnCarry = clampInt(t.ReturnCarry, 1, 10000)
	t.ReturnCarryNearHome = clampInt(t.ReturnCarryNearHome, 1, t.ReturnCarry)
	t.CarryCap = clampInt(t.CarryCap, 1, 10000)
	t.AssembleTimeout = clampInt(t.AssembleTimeout, 1, 500)
	t.MineCooldownRounds = clampInt(t.MineCooldownRounds, 0, 2000)
	t.MineFailLimit = clampInt(t.MineFailLimit, 1, 100)
	t.ExplorePhaseRound = clampInt(t.ExplorePhaseRound, 0, 100000)

	l := &c.Leader
	l.SpawnPerLeader = clampInt(l.SpawnPerLeader, 1, 1000)
	l.AssemblePopulation = clampInt(l.AssemblePopulation, 1, 1000)
	l.AssembleMines = clampInt(l.AssembleMines, 0, 100)
	l.PanicFactor = clampInt(l.PanicFactor, 1, 10)
	l.PanicWindow = clampInt(l.PanicWindow, 0, 100000)
	l.AssembleTimeout = clampInt(l.AssembleTimeout, 1, 1000)

	c.Nav.MaxStall = clampInt(c.Nav.MaxStall, 1, 1000)
	c.Nav.ProbeSteps = clampInt(c.Nav.ProbeSteps, 1, 8)
	c.Nav.ResetDistSq = clampInt(c.Nav.ResetDistSq, 0, 10000)

	c.Comms.HeartbeatWindow = clampInt(c.Comms.HeartbeatWindow, 1, 10)
	c.Comms.ListenRounds = clampInt(c.Comms.ListenRounds, 1, 5)
}

const maxWeight = 1_000_000

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
