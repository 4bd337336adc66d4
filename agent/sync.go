package agent

import (
	"slices"

	"github.com/nstehr/hive/hive-core/comms"
	"github.com/nstehr/hive/hive-core/host"
	"github.com/nstehr/hive/hive-core/model"
	"github.com/nstehr/hive/hive-core/world"
)

// sync folds the shared array and recent squeaks into the unit's model.
func (c *Controller) sync(h host.Host, s *comms.Shared, round int) error {
	sym, err := s.Symmetry()
	if err != nil {
		return err
	}
	c.sharedSym = sym
	if sym.Valid() {
		c.adopt(sym, "shared")
		c.symmetryNews = false
	} else if fixed, mines := c.world.Resolve(); fixed {
		c.symmetryFixed(mines, "observed")
		c.symmetryNews = true
		c.squeak(comms.KindSymmetry, int(c.world.Symmetry()))
	}

	dead, err := c.heartbeat.Observe(s, round)
	if err != nil {
		return err
	}
	for _, slot := range dead {
		c.log.Info("leader presumed dead", "slot", slot, "round", round)
	}
	leaders, err := s.Leaders()
	if err != nil {
		return err
	}
	c.leaders = slices.DeleteFunc(leaders, func(e comms.LeaderEntry) bool { return c.heartbeat.Dead(e.Slot) })

	origin, ok, err := s.Origin()
	if err != nil {
		return err
	}
	if ok {
		c.origin = origin
	}

	codes, err := s.MineCodes()
	if err != nil {
		return err
	}
	c.registry.Merge(codes)
	c.sharedMines = comms.NewIntSet(codes...)
	c.registryFull = len(codes) >= c.layout.MineCapacity()

	assemble, ok, err := s.Assemble()
	if err != nil {
		return err
	}
	if !ok {
		assemble = model.NoLoc
	}
	c.assemble = assemble

	c.listen(h, round)
	return nil
}

// adopt fixes the symmetry to a value learned from the shared array or a peer.
func (c *Controller) adopt(sym world.Symmetry, source string) bool {
	ok, mines := c.world.Adopt(sym)
	if !ok {
		return false
	}
	c.symmetryFixed(mines, source)
	return true
}

func (c *Controller) symmetryFixed(mines []model.Loc, source string) {
	sym := c.world.Symmetry()
	c.registry.SetSymmetry(sym, c.world.W, c.world.H)
	for _, l := range mines {
		c.registry.Add(l)
	}
	c.log.Info("symmetry resolved", "symmetry", sym, "source", source)
}

// listen reads the last few rounds of squeaks. Handling is idempotent, so a
// message heard in two consecutive rounds does no harm.
func (c *Controller) listen(h host.Host, round int) {
	c.heard = c.heard[:0]
	for k := 1; k <= c.cfg.Comms.ListenRounds; k++ {
		if round-k < 0 {
			break
		}
		for _, m := range h.ReadBroadcasts(round - k) {
			if m.SenderID == c.id {
				continue
			}
			c.heard = append(c.heard, m)
			c.handle(m)
		}
	}

	for l, at := range c.claims {
		if round-at > claimMemory {
			delete(c.claims, l)
		}
	}
	keep := c.sightings[:0]
	for _, s := range c.sightings {
		if round-s.Round <= sightingMemory {
			keep = append(keep, s)
		}
	}
	c.sightings = keep
}

func (c *Controller) handle(m model.Message) {
	kind, payload := comms.Decode(m.Payload)
	switch kind {
	case comms.KindLeaderClaim:
		if l, ok := c.codec.Decode(payload); ok && m.Round > c.claims[l] {
			c.claims[l] = m.Round
		}
	case comms.KindEnemyLeader:
		if m.Round >= c.enemyLeaderRound {
			c.enemyLeader, c.enemyLeaderRound = comms.DecodeExact(payload), m.Round
		}
	case comms.KindMineFound:
		c.registry.AddCode(payload)
	case comms.KindSymmetry:
		sym := world.Symmetry(payload)
		if !sym.Valid() {
			return
		}
		if c.adopt(sym, "squeak") && !c.sharedSym.Valid() {
			c.symmetryNews = true
		}
	case comms.KindEnemySighted:
		c.sightings = append(c.sightings, sighting{Loc: comms.DecodeExact(payload), Round: m.Round})
	}
}

// homes lists known leader locations: the shared slots plus fresh claims not
// yet reflected there.
func (c *Controller) homes() []model.Loc {
	out := make([]model.Loc, 0, len(c.leaders)+len(c.claims))
	for _, e := range c.leaders {
		out = append(out, e.Loc)
	}
	claims := make([]model.Loc, 0, len(c.claims))
	for l := range c.claims {
		claims = append(claims, l)
	}
	slices.SortFunc(claims, func(a, b model.Loc) int {
		if a.X != b.X {
			return a.X - b.X
		}
		return a.Y - b.Y
	})
	for _, l := range claims {
		dup := false
		for _, e := range c.leaders {
			if e.Loc.Chebyshev(l) <= 1 {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, l)
		}
	}
	return out
}

// home returns the nearest known leader.
func (c *Controller) home() (model.Loc, int, bool) {
	best, bestD := model.NoLoc, -1
	for _, l := range c.homes() {
		if d := c.p.self.Loc.DistSq(l); bestD < 0 || d < bestD {
			best, bestD = l, d
		}
	}
	return best, bestD, best.Valid()
}

// distress returns the squared distance to the nearest leader asking for help.
func (c *Controller) distress() (int, bool) {
	bestD := -1
	for _, e := range c.leaders {
		if !e.Distress {
			continue
		}
		if d := c.p.self.Loc.DistSq(e.Loc); bestD < 0 || d < bestD {
			bestD = d
		}
	}
	return bestD, bestD >= 0
}

// spawnCandidates are the unvisited guesses at the enemy's first leader: the
// team origin mirrored through every symmetry still possible.
func (c *Controller) spawnCandidates() []model.Loc {
	if !c.origin.Valid() {
		return nil
	}
	mx, my, rot := c.world.Candidates()
	var out []model.Loc
	for i, ok := range [3]bool{mx, my, rot} {
		if !ok {
			continue
		}
		l := world.SymmetricLoc(c.origin, world.AllSymmetries[i], c.world.W, c.world.H)
		if l == c.origin || c.visitedSpawns[l] {
			continue
		}
		out = append(out, l)
	}
	return out
}

func (c *Controller) preferredSpawn() model.Loc {
	sym := c.world.Symmetry()
	if !sym.Valid() || !c.origin.Valid() {
		return model.NoLoc
	}
	return world.SymmetricLoc(c.origin, sym, c.world.W, c.world.H)
}

// markSpawns records candidate spawns that are now in view.
func (c *Controller) markSpawns() {
	for _, l := range c.spawnCandidates() {
		if c.p.self.Loc.DistSq(l) <= c.visionRadiusSq() {
			c.visitedSpawns[l] = true
		}
	}
}
