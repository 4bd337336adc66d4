package rules

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Engine runs compiled rules against a unit's environment each round.
// Rules fire in priority order; exclusive rules block lower-priority rules
// in the same category, so the first matching task rule wins.
type Engine struct {
	rules []*Rule
	log   *slog.Logger

	lastDiagRound int
}

// NewEngine compiles all rule conditions into expr bytecode and sorts by priority.
func NewEngine(rules []*Rule, log *slog.Logger) (*Engine, error) {
	compiled, err := compileRules(rules)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{rules: compiled, log: log, lastDiagRound: -diagInterval}, nil
}

// Rules returns the compiled rules in evaluation order.
func (e *Engine) Rules() []*Rule { return e.rules }

// Evaluate runs every rule against env and returns the combined outcome.
// The starting task is carried over so that a rule set with no task rules
// leaves it unchanged.
func (e *Engine) Evaluate(env Env) Outcome {
	out := Outcome{Task: env.Task}
	fired := make(map[string]bool) // category → exclusive rule already fired

	for _, r := range e.rules {
		if fired[r.Category] {
			continue
		}

		result, err := vm.Run(r.program, env)
		if err != nil {
			e.log.Warn("rule condition error", "rule", r.Name, "error", err)
			continue
		}
		match, ok := result.(bool)
		if !ok || !match {
			continue
		}

		e.log.Debug("rule fired", "rule", r.Name, "priority", r.Priority, "category", r.Category)
		out.Fired = append(out.Fired, r.Name)
		if r.Action != nil {
			r.Action(env, &out)
		}
		if r.Exclusive {
			fired[r.Category] = true
		}
	}

	if len(out.Fired) == 0 {
		e.logIdleDiagnostics(env)
	}
	return out
}

const diagInterval = 100

// logIdleDiagnostics dumps the environment when no rule fires. Throttled to
// avoid log spam.
func (e *Engine) logIdleDiagnostics(env Env) {
	if env.Round-e.lastDiagRound < diagInterval {
		return
	}
	e.lastDiagRound = env.Round
	e.log.Warn("idle diagnostics",
		"round", env.Round,
		"task", env.Task,
		"teamCheese", env.TeamCheese,
		"leaders", env.Leaders,
		"population", env.Population,
		"knownMines", env.KnownMines,
	)
}

func compileRules(rules []*Rule) ([]*Rule, error) {
	for _, r := range rules {
		prog, err := expr.Compile(r.ConditionSrc, expr.Env(Env{}), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("compile rule %q: %w", r.Name, err)
		}
		r.program = prog
	}
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Priority > rules[j].Priority
	})
	return rules, nil
}
