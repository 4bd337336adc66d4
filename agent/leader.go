package agent

import (
	"fmt"
	"sort"

	"github.com/nstehr/hive/hive-core/comms"
	"github.com/nstehr/hive/hive-core/host"
	"github.com/nstehr/hive/hive-core/model"
	"github.com/nstehr/hive/hive-core/rules"
)

// leaderRound keeps the leader's slot alive, persists what the team learned,
// and runs the directive rules: distress, spawning and expansion.
func (c *Controller) leaderRound(h host.Host, s *comms.Shared, round int) (Decision, error) {
	self := c.p.self
	d := Decision{Task: c.task, Loc: self.Loc, Dest: rules.NoDestination, Dir: model.Center}

	if err := c.claimSlot(s); err != nil {
		return d, err
	}
	if c.slot >= 0 {
		if err := s.SetLeaderLoc(c.slot, self.Loc); err != nil {
			return d, err
		}
		if err := s.ToggleAlive(c.slot); err != nil {
			return d, err
		}
	}
	if !c.origin.Valid() {
		if err := s.SetOrigin(self.Loc); err != nil {
			return d, err
		}
		c.origin = self.Loc
	}

	if sym := c.world.Symmetry(); sym.Valid() && !c.sharedSym.Valid() {
		if err := s.SetSymmetry(sym); err != nil {
			return d, err
		}
		if err := s.CondenseMines(c.registry.Mirror()); err != nil {
			return d, fmt.Errorf("condense mines: %w", err)
		}
		c.sharedSym = sym
		c.log.Info("symmetry persisted", "symmetry", sym, "round", round)
	}

	n, err := c.registry.Publish(s)
	if err != nil {
		return d, fmt.Errorf("publish mines: %w", err)
	}
	if n > 0 {
		c.log.Debug("mines published", "count", n, "round", round)
	}
	if count, err := s.MineCount(); err == nil {
		c.registryFull = count >= c.layout.MineCapacity()
	}

	c.trackAssembly(round)
	spawnAt, canSpawn := c.spawnCell(h)
	out := c.directives.Evaluate(c.leaderEnv(round, canSpawn))

	if c.slot >= 0 {
		if err := s.SetDistress(c.slot, out.Distress); err != nil {
			return d, err
		}
	}

	combat, err := c.fight(h, c.snapshot(h, round, model.NoLoc))
	if err != nil {
		return d, err
	}
	d.Combat = combat

	if out.Spawn && combat == "" && h.ActionReady() && h.CanSpawn(spawnAt) {
		if err := h.Spawn(spawnAt); err != nil {
			return d, fmt.Errorf("spawn at %v: %w", spawnAt, err)
		}
		c.p.teamCheese -= c.consts.SpawnCost
		d.Combat = "spawn"
	}

	switch {
	case out.ClearAssembly:
		if err := s.ClearAssemble(); err != nil {
			return d, err
		}
		c.log.Info("assembly withdrawn", "at", c.assemble, "age", round-c.assembleFrom)
		c.assemble = model.NoLoc
	case out.RequestAssembly:
		at := c.assemblySite(c.world.PickLandmark(c.homes(), c.cfg.Leader.AssembleMinDistSq, c.rng))
		if err := s.SetAssemble(at); err != nil {
			return d, err
		}
		c.assemble = at
		c.trackAssembly(round)
		c.log.Info("assembly requested", "at", at, "leaders", c.leaderCount(), "population", c.p.population)
		d.Dest = rules.Destination{Loc: at, Exact: true, Reason: rules.ReasonAssembly}
	case c.assemble.Valid() && c.leaderCount() > c.assembleLeaders:
		// Someone answered; the promoted unit normally clears it itself.
		if err := s.ClearAssemble(); err != nil {
			return d, err
		}
		c.assemble = model.NoLoc
	}
	return d, nil
}

// claimSlot takes the first empty leader slot once. Without a free slot the
// leader runs unregistered.
func (c *Controller) claimSlot(s *comms.Shared) error {
	if c.slot >= 0 {
		return nil
	}
	slot, err := s.FirstEmptyLeaderSlot()
	if err != nil {
		return err
	}
	if slot < 0 {
		if !c.slotWarned {
			c.log.Warn("no free leader slot")
			c.slotWarned = true
		}
		return nil
	}
	c.slot = slot
	c.heartbeat.Own(slot)
	return nil
}

func (c *Controller) leaderCount() int {
	n := len(c.leaders)
	if c.slot < 0 {
		return max(n, 1)
	}
	for _, e := range c.leaders {
		if e.Slot == c.slot {
			return n
		}
	}
	return n + 1
}

// trackAssembly stamps a newly seen request so its age can be judged.
func (c *Controller) trackAssembly(round int) {
	if c.assemble == c.assembleFor {
		return
	}
	c.assembleFor = c.assemble
	c.assembleFrom = round
	c.assembleLeaders = c.leaderCount()
}

func (c *Controller) leaderEnv(round int, canSpawn bool) rules.Env {
	return rules.Env{
		Round:           round,
		Task:            c.task,
		TeamCheese:      c.p.teamCheese,
		KnownMines:      c.registry.Len(),
		Leaders:         c.leaderCount(),
		MaxLeaders:      c.layout.MaxLeaders,
		Population:      c.p.population,
		NearbyEnemies:   c.threats(round),
		SpawnCost:       c.consts.SpawnCost,
		CanSpawn:        canSpawn,
		AssemblePending: c.assemble.Valid(),
		AssembleAge:     round - c.assembleFrom,
		CutoffRound:     c.consts.PopulationCutoff,
		PanicWindow:     c.cfg.Leader.PanicWindow,
		PanicFactor:     c.cfg.Leader.PanicFactor,
	}
}

// threats counts enemies and hazards near the leader, in view or reported by
// squeaks in the last few rounds.
func (c *Controller) threats(round int) int {
	r := c.cfg.Leader.ThreatRadiusSq
	n := 0
	for _, group := range [][]model.UnitInfo{c.p.enemies, c.p.hazards} {
		for _, u := range group {
			if bodyDistSq(u, c.p.self.Loc) <= r {
				n++
			}
		}
	}
	for _, s := range c.sightings {
		if round-s.Round <= sightingMemory && c.p.self.Loc.DistSq(s.Loc) <= r {
			n++
		}
	}
	return n
}

// spawnCell picks the free cell bordering the leader's body that is closest
// to the nearest known mine, or to the map centre.
func (c *Controller) spawnCell(h host.Host) (model.Loc, bool) {
	self := c.p.self.Loc
	goal := model.Loc{X: c.world.W / 2, Y: c.world.H / 2}
	bestD := -1
	for _, m := range c.registry.Locs() {
		if d := self.DistSq(m); bestD < 0 || d < bestD {
			goal, bestD = m, d
		}
	}

	var ring []model.Loc
	for dx := -2; dx <= 2; dx++ {
		for dy := -2; dy <= 2; dy++ {
			if max(abs(dx), abs(dy)) == 2 {
				ring = append(ring, self.Offset(dx, dy))
			}
		}
	}
	sort.SliceStable(ring, func(i, j int) bool {
		return ring[i].DistSq(goal) < ring[j].DistSq(goal)
	})
	if !h.ActionReady() {
		return model.NoLoc, false
	}
	for _, l := range ring {
		if c.world.OnMap(l) && !c.world.Tile(l).Blocking() && h.CanSpawn(l) {
			return l, true
		}
	}
	return model.NoLoc, false
}

// assemblySite moves a landmark to the nearest cell that can hold a leader.
func (c *Controller) assemblySite(l model.Loc) model.Loc {
	for r := 0; r <= assemblySearch; r++ {
		for dx := -r; dx <= r; dx++ {
			for dy := -r; dy <= r; dy++ {
				if max(abs(dx), abs(dy)) != r {
					continue
				}
				if p := l.Offset(dx, dy); c.world.OnMap(p) && !c.world.Tile(p).Blocking() && c.promotionSite(p) {
					return p
				}
			}
		}
	}
	return l
}

const assemblySearch = 4

// bodyDistSq is the squared distance from l to the nearest cell of u's body.
func bodyDistSq(u model.UnitInfo, l model.Loc) int {
	best := -1
	for _, b := range u.Body() {
		if d := l.DistSq(b); best < 0 || d < best {
			best = d
		}
	}
	return best
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
