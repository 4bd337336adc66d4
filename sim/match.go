// Package sim is an in-memory reference host: a seeded grid match between two
// swarms and a few neutral cats. Units run one at a time in spawn order, each
// through a host.Host view metered by a per-round budget.
package sim

import (
	"log/slog"
	"math/rand"
	"slices"

	"github.com/nstehr/hive/hive-core/host"
	"github.com/nstehr/hive/hive-core/model"
	"github.com/nstehr/hive/hive-core/world"
)

// Driver runs the controllers of one team.
type Driver interface {
	RunRound(h host.Host) error
	EndRound(round int)
}

// Options are the match knobs. Counts and percentages are taken literally;
// zero sizes, periods, constants and costs fall back to DefaultOptions.
type Options struct {
	Width, Height int
	Seed          int64
	Symmetry      world.Symmetry // SymUnknown picks one from the seed
	Walls         int            // percent of cells
	Dirt          int            // percent of cells
	Mines         int            // per team half
	Cats          int
	StartRats     int // per team, around the first leader
	StartCheese   int // per team
	MineYield     int // cheese dropped next to each mine every MinePeriod rounds
	MinePeriod    int
	CarryLimit    int // rounds before a carried unit wriggles free
	CatDamage     int
	CatHealth     int
	Constants     model.Constants
	Costs         Costs
}

var DefaultOptions = Options{
	Width:       30,
	Height:      30,
	Walls:       6,
	Dirt:        6,
	Mines:       3,
	Cats:        2,
	StartRats:   4,
	StartCheese: 100,
	MineYield:   5,
	MinePeriod:  10,
	CarryLimit:  10,
	CatDamage:   20,
	CatHealth:   300,
}

func (o Options) withDefaults() Options {
	d := DefaultOptions
	if o.Width <= 0 {
		o.Width = d.Width
	}
	if o.Height <= 0 {
		o.Height = d.Height
	}
	if o.MinePeriod <= 0 {
		o.MinePeriod = d.MinePeriod
	}
	if o.CarryLimit <= 0 {
		o.CarryLimit = d.CarryLimit
	}
	if o.CatDamage <= 0 {
		o.CatDamage = d.CatDamage
	}
	if o.CatHealth <= 0 {
		o.CatHealth = d.CatHealth
	}
	if o.Constants == (model.Constants{}) {
		o.Constants = model.DefaultConstants()
	}
	if o.Costs == (Costs{}) {
		o.Costs = DefaultCosts
	}
	return o
}

// Result summarises a finished match.
type Result struct {
	Rounds  int
	Winner  model.Team // Neutral on a draw
	Units   [2]int
	Leaders [2]int
	Cheese  [2]int
	Spawned [2]int
	Kills   [2]int
	Faults  [2]int
}

type unit struct {
	model.UnitInfo
	alive      bool
	nextMove   int
	nextAction int
	carriedBy  int
	carriedAt  int
}

type squeak struct {
	team model.Team
	msg  model.Message
}

// Match is the whole simulated world.
type Match struct {
	W, H int

	opts   Options
	consts model.Constants
	rng    *rand.Rand
	log    *slog.Logger
	round  int
	sym    world.Symmetry

	tiles  []model.TileKind
	cheese []int
	mines  []model.Loc
	occ    []int // id of the unit standing on each cell, 0 if none

	units  []*unit // spawn order
	byID   map[int]*unit
	nextID int

	shared  [2][]int
	bank    [2]int
	squeaks []squeak
	spawned [2]int
	kills   [2]int
	faults  [2]int
}

// New returns an empty w×h match: all ground, no units, no mines.
func New(opts Options) *Match {
	opts = opts.withDefaults()
	n := opts.Width * opts.Height
	m := &Match{
		W:      opts.Width,
		H:      opts.Height,
		opts:   opts,
		consts: opts.Constants,
		rng:    rand.New(rand.NewSource(opts.Seed)),
		log:    slog.Default().With("component", "sim"),
		sym:    opts.Symmetry,
		tiles:  make([]model.TileKind, n),
		cheese: make([]int, n),
		occ:    make([]int, n),
		byID:   make(map[int]*unit),
		nextID: 1,
	}
	for i := range m.tiles {
		m.tiles[i] = model.Empty
	}
	for t := range m.shared {
		m.shared[t] = make([]int, m.consts.SharedArraySize)
		m.bank[t] = opts.StartCheese
	}
	return m
}

func (m *Match) idx(l model.Loc) int    { return l.Y*m.W + l.X }
func (m *Match) onMap(l model.Loc) bool { return l.InBounds(m.W, m.H) }

func (m *Match) Round() int                 { return m.round }
func (m *Match) Symmetry() world.Symmetry   { return m.sym }
func (m *Match) Constants() model.Constants { return m.consts }
func (m *Match) Mines() []model.Loc         { return slices.Clone(m.mines) }

// Tile is the true terrain at l. Off-map cells read as walls.
func (m *Match) Tile(l model.Loc) model.TileKind {
	if !m.onMap(l) {
		return model.Wall
	}
	return m.tiles[m.idx(l)]
}

func (m *Match) SetTile(l model.Loc, k model.TileKind) {
	if !m.onMap(l) {
		return
	}
	if k == model.Mine && m.tiles[m.idx(l)] != model.Mine {
		m.mines = append(m.mines, l)
	}
	m.tiles[m.idx(l)] = k
}

func (m *Match) CheeseAt(l model.Loc) int {
	if !m.onMap(l) {
		return 0
	}
	return m.cheese[m.idx(l)]
}

func (m *Match) SetCheese(l model.Loc, n int) {
	if m.onMap(l) {
		m.cheese[m.idx(l)] = max(n, 0)
	}
}

// Bank is the team's spendable cheese.
func (m *Match) Bank(t model.Team) int            { return m.bank[t] }
func (m *Match) SetBank(t model.Team, n int)      { m.bank[t] = n }
func (m *Match) Shared(t model.Team) []int        { return slices.Clone(m.shared[t]) }
func (m *Match) SetShared(t model.Team, i, v int) { m.shared[t][i] = v }

// Place adds a unit at l and returns its id, or 0 when the body does not fit.
func (m *Match) Place(team model.Team, typ model.UnitType, l model.Loc) int {
	u := &unit{
		UnitInfo: model.UnitInfo{ID: m.nextID, Team: team, Type: typ, Loc: l, Facing: l.DirTo(m.centre())},
		alive:    true,
	}
	if u.Facing == model.Center {
		u.Facing = model.North
	}
	switch typ {
	case model.King:
		u.Health = m.consts.KingHealth
	case model.Cat:
		u.Team = model.Neutral
		u.Health = m.opts.CatHealth
	default:
		u.Health = m.consts.RatHealth
	}
	for _, b := range u.Body() {
		if !m.free(b, 0) {
			return 0
		}
	}
	m.nextID++
	m.units = append(m.units, u)
	m.byID[u.ID] = u
	m.occupy(u)
	return u.ID
}

// Unit returns the live unit with id.
func (m *Match) Unit(id int) (model.UnitInfo, bool) {
	u, ok := m.byID[id]
	if !ok || !u.alive {
		return model.UnitInfo{}, false
	}
	return u.UnitInfo, true
}

// Units lists the team's live units in spawn order.
func (m *Match) Units(t model.Team) []model.UnitInfo {
	var out []model.UnitInfo
	for _, u := range m.units {
		if u.alive && u.Team == t {
			out = append(out, u.UnitInfo)
		}
	}
	return out
}

// Leaders counts the team's live kings.
func (m *Match) Leaders(t model.Team) int {
	n := 0
	for _, u := range m.units {
		if u.alive && u.Team == t && u.Type == model.King {
			n++
		}
	}
	return n
}

func (m *Match) centre() model.Loc { return model.Loc{X: m.W / 2, Y: m.H / 2} }

// free reports whether a unit other than self could stand on l.
func (m *Match) free(l model.Loc, self int) bool {
	if !m.onMap(l) || m.tiles[m.idx(l)].Blocking() {
		return false
	}
	o := m.occ[m.idx(l)]
	return o == 0 || o == self
}

func (m *Match) unitAt(l model.Loc) *unit {
	if !m.onMap(l) {
		return nil
	}
	id := m.occ[m.idx(l)]
	if id == 0 {
		return nil
	}
	return m.byID[id]
}

func (m *Match) occupy(u *unit) {
	for _, b := range u.Body() {
		if m.onMap(b) {
			m.occ[m.idx(b)] = u.ID
		}
	}
}

func (m *Match) vacate(u *unit) {
	for _, b := range u.Body() {
		if m.onMap(b) && m.occ[m.idx(b)] == u.ID {
			m.occ[m.idx(b)] = 0
		}
	}
}

func (m *Match) relocate(u *unit, to model.Loc) {
	m.vacate(u)
	u.Loc = to
	m.occupy(u)
	if u.CarryingID != 0 {
		if c, ok := m.byID[u.CarryingID]; ok {
			c.Loc = to
		}
	}
}

// nearestFree finds the closest free cell to l within radius, ring by ring.
func (m *Match) nearestFree(l model.Loc, radius int, taken map[model.Loc]bool) (model.Loc, bool) {
	for r := 0; r <= radius; r++ {
		for dx := -r; dx <= r; dx++ {
			for dy := -r; dy <= r; dy++ {
				if max(abs(dx), abs(dy)) != r {
					continue
				}
				c := l.Offset(dx, dy)
				if m.free(c, 0) && !taken[c] {
					return c, true
				}
			}
		}
	}
	return model.NoLoc, false
}

func (m *Match) kill(u *unit, by model.Team) {
	if !u.alive {
		return
	}
	u.alive = false
	m.vacate(u)
	if u.Cheese > 0 && m.onMap(u.Loc) {
		m.cheese[m.idx(u.Loc)] += u.Cheese
		u.Cheese = 0
	}
	if u.CarryingID != 0 {
		if c, ok := m.byID[u.CarryingID]; ok && c.alive {
			m.release(c)
		}
		u.CarryingID = 0
	}
	if u.Carried {
		if c, ok := m.byID[u.carriedBy]; ok {
			c.CarryingID = 0
		}
		u.Carried = false
	}
	if by == model.TeamA || by == model.TeamB {
		m.kills[by]++
	}
	m.log.Debug("unit died", "unit", u.ID, "team", u.Team, "type", u.Type, "round", m.round)
}

// release drops a carried unit on the nearest free cell to where it is held.
func (m *Match) release(c *unit) {
	if carrier, ok := m.byID[c.carriedBy]; ok && carrier.CarryingID == c.ID {
		carrier.CarryingID = 0
	}
	c.Carried = false
	c.carriedBy = 0
	at, ok := m.nearestFree(c.Loc, 3, nil)
	if !ok {
		m.kill(c, model.Neutral)
		return
	}
	c.Loc = at
	m.occupy(c)
}

func (m *Match) damage(u *unit, amount int, by model.Team) {
	u.Health -= amount
	if u.Health <= 0 {
		m.kill(u, by)
	}
}

// Step runs one round: every living swarm unit in spawn order, then the cats,
// then the mines.
func (m *Match) Step(drivers [2]Driver) {
	m.round++
	keep := m.squeaks[:0]
	for _, s := range m.squeaks {
		if s.msg.Round >= m.round-2 {
			keep = append(keep, s)
		}
	}
	m.squeaks = keep

	for _, u := range slices.Clone(m.units) {
		if !u.alive || u.Type == model.Cat {
			continue
		}
		if err := drivers[u.Team].RunRound(m.hostFor(u)); err != nil {
			m.faults[u.Team]++
		}
	}
	m.stepCats()
	m.stepCarried()
	m.stepMines()

	alive := m.units[:0]
	for _, u := range m.units {
		if u.alive {
			alive = append(alive, u)
		} else {
			delete(m.byID, u.ID)
		}
	}
	m.units = alive

	for _, d := range drivers {
		d.EndRound(m.round)
	}
}

// Run steps until rounds have been played or a team has lost every leader.
func (m *Match) Run(drivers [2]Driver, rounds int) Result {
	for m.round < rounds {
		m.Step(drivers)
		if m.Leaders(model.TeamA) == 0 || m.Leaders(model.TeamB) == 0 {
			break
		}
	}
	return m.Result()
}

// RunMatch generates a match from opts and plays it out.
func RunMatch(opts Options, drivers [2]Driver, rounds int) Result {
	return Generate(opts).Run(drivers, rounds)
}

func (m *Match) Result() Result {
	r := Result{Rounds: m.round, Winner: model.Neutral, Spawned: m.spawned, Kills: m.kills, Faults: m.faults}
	for _, t := range []model.Team{model.TeamA, model.TeamB} {
		r.Units[t] = len(m.Units(t))
		r.Leaders[t] = m.Leaders(t)
		r.Cheese[t] = m.bank[t]
	}
	a, b := model.TeamA, model.TeamB
	switch {
	case r.Leaders[a] > 0 && r.Leaders[b] == 0:
		r.Winner = a
	case r.Leaders[b] > 0 && r.Leaders[a] == 0:
		r.Winner = b
	case r.Leaders[a] != r.Leaders[b]:
		r.Winner = pick(r.Leaders[a] > r.Leaders[b])
	case r.Units[a] != r.Units[b]:
		r.Winner = pick(r.Units[a] > r.Units[b])
	case r.Cheese[a] != r.Cheese[b]:
		r.Winner = pick(r.Cheese[a] > r.Cheese[b])
	}
	return r
}

func pick(aWins bool) model.Team {
	if aWins {
		return model.TeamA
	}
	return model.TeamB
}

// stepCats moves every cat: attack the lowest-id swarm unit touching its body,
// otherwise walk straight and turn at random when blocked.
func (m *Match) stepCats() {
	for _, c := range m.units {
		if !c.alive || c.Type != model.Cat {
			continue
		}
		var target *unit
		for _, u := range m.units {
			if !u.alive || u.Type == model.Cat || u.Carried {
				continue
			}
			if c.BodyDistance(u.Loc) <= 1 || u.BodyDistance(c.Loc) <= 1 {
				if target == nil || u.ID < target.ID {
					target = u
				}
			}
		}
		if target != nil {
			c.Facing = c.Loc.DirTo(target.Loc)
			m.damage(target, m.opts.CatDamage, model.Neutral)
			continue
		}
		if m.rng.Intn(8) == 0 {
			c.Facing = model.Directions[m.rng.Intn(len(model.Directions))]
		}
		next := c.Loc.Add(c.Facing)
		ok := true
		moved := model.UnitInfo{Type: model.Cat, Loc: next}
		for _, b := range moved.Body() {
			if !m.free(b, c.ID) {
				ok = false
				break
			}
		}
		if ok {
			m.relocate(c, next)
		} else {
			c.Facing = model.Directions[m.rng.Intn(len(model.Directions))]
		}
	}
}

func (m *Match) stepCarried() {
	for _, u := range m.units {
		if u.alive && u.Carried && m.round-u.carriedAt >= m.opts.CarryLimit {
			m.release(u)
		}
	}
}

func (m *Match) stepMines() {
	if m.opts.MineYield <= 0 || m.round%m.opts.MinePeriod != 0 {
		return
	}
	for _, mine := range m.mines {
		if m.Tile(mine) != model.Mine {
			continue
		}
		for range 4 {
			l := mine.Offset(m.rng.Intn(3)-1, m.rng.Intn(3)-1)
			if m.onMap(l) && !m.tiles[m.idx(l)].Blocking() {
				m.cheese[m.idx(l)] += m.opts.MineYield
				break
			}
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
