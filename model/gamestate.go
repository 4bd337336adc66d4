package model

// Team identifies an affiliation. Neutral is the hazard faction.
type Team int

const (
	TeamA Team = iota
	TeamB
	Neutral
)

// AnyTeam matches every affiliation in sensing filters.
const AnyTeam Team = -1

func (t Team) String() string {
	switch t {
	case TeamA:
		return "A"
	case TeamB:
		return "B"
	}
	return "neutral"
}

// Opponent returns the other swarm. Neutral has no opponent.
func (t Team) Opponent() Team {
	switch t {
	case TeamA:
		return TeamB
	case TeamB:
		return TeamA
	}
	return Neutral
}

// UnitType distinguishes mobile rats, leader kings and hazard cats.
type UnitType int

const (
	Rat UnitType = iota
	King
	Cat
)

func (u UnitType) String() string {
	switch u {
	case Rat:
		return "rat"
	case King:
		return "king"
	case Cat:
		return "cat"
	}
	return "unknown"
}

// BodyRadius is the Chebyshev half-extent of the unit's footprint around its location.
// Kings occupy 3×3 centred on Loc. Cats occupy 2×2 with Loc as the lower-left cell.
func (u UnitType) BodyRadius() int {
	if u == King {
		return 1
	}
	return 0
}

// UnitInfo is a sensed unit, valid for the round it was sensed in.
type UnitInfo struct {
	ID          int       `json:"id"`
	Team        Team      `json:"team"`
	Type        UnitType  `json:"type"`
	Loc         Loc       `json:"loc"`
	Facing      Direction `json:"facing"`
	Health      int       `json:"health"`
	Cheese      int       `json:"cheese"`      // raw cheese carried
	CarryingID  int       `json:"carryingId"`  // id of a unit held overhead, 0 if none
	Carried     bool      `json:"carried"`     // currently held by another unit
	ThrownRound int       `json:"thrownRound"` // last round this unit threw or displaced another, 0 if never
}

// Body lists every cell the unit occupies.
func (u UnitInfo) Body() []Loc {
	switch u.Type {
	case King:
		out := make([]Loc, 0, 9)
		for dx := -1; dx <= 1; dx++ {
			for dy := -1; dy <= 1; dy++ {
				out = append(out, u.Loc.Offset(dx, dy))
			}
		}
		return out
	case Cat:
		return []Loc{u.Loc, u.Loc.Offset(1, 0), u.Loc.Offset(0, 1), u.Loc.Offset(1, 1)}
	}
	return []Loc{u.Loc}
}

// BodyDistance is the Chebyshev distance from l to the nearest cell of the unit's body.
func (u UnitInfo) BodyDistance(l Loc) int {
	best := -1
	for _, b := range u.Body() {
		if d := b.Chebyshev(l); best < 0 || d < best {
			best = d
		}
	}
	return best
}

// Message is one received squeak.
type Message struct {
	SenderID  int `json:"senderId"`
	SenderLoc Loc `json:"senderLoc"`
	Round     int `json:"round"`
	Payload   int `json:"payload"`
}

// Constants are the read-only game parameters the host publishes.
type Constants struct {
	RatHealth          int `json:"ratHealth" yaml:"rat_health"`
	KingHealth         int `json:"kingHealth" yaml:"king_health"`
	BaseDamage         int `json:"baseDamage" yaml:"base_damage"`
	VisionRadiusSq     int `json:"visionRadiusSq" yaml:"vision_radius_sq"`
	KingVisionRadiusSq int `json:"kingVisionRadiusSq" yaml:"king_vision_radius_sq"`
	SqueakRadiusSq     int `json:"squeakRadiusSq" yaml:"squeak_radius_sq"`
	DigCost            int `json:"digCost" yaml:"dig_cost"`
	SpawnCost          int `json:"spawnCost" yaml:"spawn_cost"`
	PromoteCost        int `json:"promoteCost" yaml:"promote_cost"`
	ThrowRange         int `json:"throwRange" yaml:"throw_range"`
	CarryCap           int `json:"carryCap" yaml:"carry_cap"`
	SharedArraySize    int `json:"sharedArraySize" yaml:"shared_array_size"`
	MaxLeaders         int `json:"maxLeaders" yaml:"max_leaders"`
	RoundBudget        int `json:"roundBudget" yaml:"round_budget"`
	PopulationCutoff   int `json:"populationCutoff" yaml:"population_cutoff"` // round after which spawning stops paying off
}

// DefaultConstants mirrors the reference host.
func DefaultConstants() Constants {
	return Constants{
		RatHealth:          100,
		KingHealth:         500,
		BaseDamage:         10,
		VisionRadiusSq:     20,
		KingVisionRadiusSq: 25,
		SqueakRadiusSq:     36,
		DigCost:            10,
		SpawnCost:          10,
		PromoteCost:        50,
		ThrowRange:         4,
		CarryCap:           60,
		SharedArraySize:    64,
		MaxLeaders:         5,
		RoundBudget:        17500,
		PopulationCutoff:   1500,
	}
}
