package agent

import (
	"github.com/nstehr/hive/hive-core/comms"
	"github.com/nstehr/hive/hive-core/host"
	"github.com/nstehr/hive/hive-core/micro"
	"github.com/nstehr/hive/hive-core/model"
)

// perception is the transient per-round snapshot of what the unit senses.
type perception struct {
	self       model.UnitInfo
	teamCheese int
	population int

	allies  []model.UnitInfo
	enemies []model.UnitInfo
	hazards []model.UnitInfo
	cheese  []model.Loc // loose cheese in view
}

func (c *Controller) sense(h host.Host, round int) {
	c.p = perception{
		self:       h.Self(),
		teamCheese: h.GlobalCheese(),
		population: h.Population(),
	}
	c.observeTiles(h.SenseNearbyTiles(), round)
	c.observeUnits(h.SenseNearbyUnits(-1, model.AnyTeam), round)
}

// resense refreshes the snapshot after moving.
func (c *Controller) resense(h host.Host, round int) {
	c.p.self = h.Self()
	c.p.allies, c.p.enemies, c.p.hazards = nil, nil, nil
	c.observeTiles(h.SenseNearbyTiles(), round)
	c.observeUnits(h.SenseNearbyUnits(-1, model.AnyTeam), round)
}

func (c *Controller) visionRadiusSq() int {
	if c.role == RoleLeader && c.consts.KingVisionRadiusSq > 0 {
		return c.consts.KingVisionRadiusSq
	}
	return c.consts.VisionRadiusSq
}

func (c *Controller) observeTiles(tiles []model.TileInfo, round int) {
	c.p.cheese = c.p.cheese[:0]
	for _, t := range tiles {
		if t.Cheese > 0 && !t.Kind.Blocking() {
			c.p.cheese = append(c.p.cheese, t.Loc)
		}
		if c.world.Tile(t.Loc) == model.Mine && t.Kind != model.Mine {
			c.registry.Cooldown(c.codec.Encode(t.Loc), round+c.cfg.Tasks.MineCooldownRounds)
		}
	}
	for _, l := range c.world.Observe(tiles) {
		c.addMine(l)
	}
}

// addMine records a mine and, for mobile units, announces it.
func (c *Controller) addMine(l model.Loc) {
	if !c.registry.Add(l) {
		return
	}
	if c.role == RoleUnit {
		c.squeak(comms.KindMineFound, c.codec.Encode(l))
	}
}

func (c *Controller) observeUnits(units []model.UnitInfo, round int) {
	var king *model.UnitInfo
	for i, u := range units {
		switch {
		case u.Type == model.Cat || u.Team == model.Neutral:
			c.p.hazards = append(c.p.hazards, u)
			c.hazards[u.ID] = micro.Sighting{Loc: u.Loc, Round: round}
		case u.Team == c.team:
			c.p.allies = append(c.p.allies, u)
		default:
			c.p.enemies = append(c.p.enemies, u)
			if u.Type == model.King && (king == nil || c.p.self.Loc.DistSq(u.Loc) < c.p.self.Loc.DistSq(king.Loc)) {
				king = &units[i]
			}
		}
	}
	for id, s := range c.hazards {
		if round-s.Round >= c.cfg.Scoring.HazardMemoryRounds {
			delete(c.hazards, id)
		}
	}

	switch {
	case king != nil:
		if c.enemyLeader != king.Loc {
			c.squeak(comms.KindEnemyLeader, comms.EncodeExact(king.Loc))
		}
		c.enemyLeader, c.enemyLeaderRound = king.Loc, round
	case c.enemyLeader.Valid() && c.p.self.Loc.DistSq(c.enemyLeader) <= c.visionRadiusSq():
		// It should be in view and is not: dead or gone.
		c.enemyLeader = model.NoLoc
	}

	if king == nil && len(c.p.enemies) > 0 && round-c.lastContactSqk >= contactSqueakEvery {
		nearest := c.p.enemies[0]
		for _, e := range c.p.enemies[1:] {
			if c.p.self.Loc.DistSq(e.Loc) < c.p.self.Loc.DistSq(nearest.Loc) {
				nearest = e
			}
		}
		c.squeak(comms.KindEnemySighted, comms.EncodeExact(nearest.Loc))
		c.lastContactSqk = round
	}
}

// hazardMemory lists hazards remembered but not in view this round.
func (c *Controller) hazardMemory(round int) []micro.Sighting {
	var out []micro.Sighting
	for _, s := range c.hazards {
		if s.Round < round {
			out = append(out, s)
		}
	}
	return out
}
