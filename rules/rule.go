package rules

import "github.com/expr-lang/expr/vm"

// ActionFunc applies a fired rule to the round's outcome.
type ActionFunc func(env Env, out *Outcome)

// Rule is a condition → action pair. The engine evaluates rules by priority
// and uses Category + Exclusive so that only one rule decides each concern.
type Rule struct {
	Name         string      // human-readable identifier
	Priority     int         // higher = evaluated first
	Category     string      // grouping for exclusive semantics
	Exclusive    bool        // if true, blocks lower-priority rules in same category
	ConditionSrc string      // expr source over Env
	program      *vm.Program // compiled bytecode
	Action       ActionFunc
}

// Outcome collects what the fired rules decided.
type Outcome struct {
	Task Task

	Distress        bool
	Spawn           bool
	RequestAssembly bool
	ClearAssembly   bool

	Fired []string
}

func setTask(t Task) ActionFunc {
	return func(_ Env, out *Outcome) { out.Task = t }
}
