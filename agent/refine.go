package agent

import (
	"github.com/nstehr/hive/hive-core/comms"
	"github.com/nstehr/hive/hive-core/config"
	"github.com/nstehr/hive/hive-core/host"
)

type phase int

const (
	phaseAfterMove phase = iota
	phaseEndOfRound
)

// refinement is an optional step that only runs when the round has enough
// budget left to pay for it.
type refinement struct {
	name  string
	phase phase
	cost  func(b config.Budget) int
	run   func(c *Controller, h host.Host, s *comms.Shared, round int) error
}

// refinements run in this order within their phase.
var refinements = []refinement{
	{
		name:  "extra-sense",
		phase: phaseAfterMove,
		cost:  func(b config.Budget) int { return b.ExtraSense },
		run: func(c *Controller, h host.Host, _ *comms.Shared, round int) error {
			c.resense(h, round)
			return nil
		},
	},
	{
		name:  "relay",
		phase: phaseEndOfRound,
		cost:  func(b config.Budget) int { return b.Relay },
		run:   (*Controller).relay,
	},
	{
		name:  "rebroadcast-mine",
		phase: phaseEndOfRound,
		cost:  func(b config.Budget) int { return b.RebroadcastMine },
		run:   (*Controller).rebroadcastMine,
	},
	{
		name:  "diagnostics",
		phase: phaseEndOfRound,
		cost:  func(b config.Budget) int { return b.Diagnostics },
		run:   (*Controller).diagnostics,
	},
}

// refine runs the refinements of one phase and returns the names of those
// that ran. Skipping is normal degradation, not an error; a failing step is
// logged and the rest still get their chance.
func (c *Controller) refine(h host.Host, s *comms.Shared, round int, ph phase) []string {
	var ran []string
	for _, r := range refinements {
		if r.phase != ph {
			continue
		}
		if left := h.BudgetLeft(); left < r.cost(c.cfg.Budget) {
			c.log.Debug("refinement skipped", "step", r.name, "budgetLeft", left, "round", round)
			continue
		}
		if err := r.run(c, h, s, round); err != nil {
			c.log.Warn("refinement failed", "step", r.name, "round", round, "error", err)
			continue
		}
		ran = append(ran, r.name)
	}
	return ran
}

// relay forwards squeaks toward the point they refer to, or toward the
// nearest leader when they carry no location.
func (c *Controller) relay(_ host.Host, _ *comms.Shared, round int) error {
	if !c.cfg.Comms.Relay || c.role == RoleLeader {
		return nil
	}
	home, _, _ := c.home()
	n := 0
	for _, m := range c.heard {
		if n == maxRelays {
			break
		}
		if c.relayer.Offer(m, c.p.self.Loc, home, round) {
			c.outbox = append(c.outbox, m.Payload)
			n++
		}
	}
	return nil
}

// rebroadcastMine squeaks one known mine the shared registry still lacks, so
// it reaches a leader even if the original squeak was lost.
func (c *Controller) rebroadcastMine(_ host.Host, _ *comms.Shared, round int) error {
	if c.role == RoleLeader || c.registryFull {
		return nil
	}
	codes := c.registry.Codes()
	for i := range codes {
		code := codes[(round+i)%len(codes)]
		mirrored := c.registry.Mirror() != nil && c.sharedMines.Has(c.registry.Mirror()(code))
		if c.sharedMines.Has(code) || mirrored {
			continue
		}
		c.squeak(comms.KindMineFound, code)
		return nil
	}
	return nil
}

const diagInterval = 100

func (c *Controller) diagnostics(_ host.Host, _ *comms.Shared, round int) error {
	if round-c.lastDiagRound < diagInterval {
		return nil
	}
	c.lastDiagRound = round
	c.log.Debug("unit diagnostics",
		"round", round,
		"role", c.role,
		"task", c.task,
		"loc", c.p.self.Loc,
		"symmetry", c.world.Symmetry(),
		"mines", c.registry.Len(),
		"leaders", len(c.leaders),
		"navMode", c.nav.Mode(),
		"navResets", c.nav.Resets,
		"unexplored", c.world.Visited.Remaining(),
		"faults", c.faults,
	)
	return nil
}
