package rules

// Env is the per-round view the rule conditions are evaluated against. The
// agent fills it from the unit's private model and the shared array; exported
// fields and methods are callable from expr.
type Env struct {
	Round int
	Task  Task

	// Mobile unit inputs.
	AssembleRequested bool
	CarryingUnit      bool
	Carried           int  // raw cheese held
	LeaderDistress    bool // some known leader has its distress bit set
	DistressDistSq    int  // squared distance to the nearest distressed leader
	SymmetryNews      bool // resolved locally but not yet in the shared array
	TeamCheese        int
	HomeDistSq        int // squared distance to the nearest known leader, -1 if none
	KnowsEnemyLeader  bool
	VisibleCheese     bool
	KnownMines        int // registry entries outside cooldown
	UnvisitedSpawns   int

	// Leader inputs.
	Leaders         int
	MaxLeaders      int
	Population      int
	NearbyEnemies   int
	SpawnCost       int
	CanSpawn        bool
	AssemblePending bool
	AssembleAge     int
	CutoffRound     int
	PanicWindow     int
	PanicFactor     int
}

// HasHome reports whether any leader location is known.
func (e Env) HasHome() bool { return e.HomeDistSq >= 0 }

// NearHome reports whether the nearest known leader is within distSq.
func (e Env) NearHome(distSq int) bool { return e.HasHome() && e.HomeDistSq <= distSq }

// Panic reports whether the round is inside the window before the population
// cutoff, where expansion thresholds tighten.
func (e Env) Panic() bool {
	return e.CutoffRound > 0 && e.Round >= e.CutoffRound-e.PanicWindow
}

// Scaled multiplies a per-leader requirement by the number of live leaders,
// and by the panic factor inside the panic window.
func (e Env) Scaled(base int) int {
	v := base * max(e.Leaders, 1)
	if e.Panic() {
		v *= max(e.PanicFactor, 1)
	}
	return v
}

// Quota is a per-leader allowance. It shrinks by the panic factor inside the
// panic window.
func (e Env) Quota(perLeader int) int {
	v := perLeader * max(e.Leaders, 1)
	if e.Panic() {
		v /= max(e.PanicFactor, 1)
	}
	return v
}
