package sim

import (
	"fmt"

	"github.com/nstehr/hive/hive-core/host"
	"github.com/nstehr/hive/hive-core/micro"
	"github.com/nstehr/hive/hive-core/model"
)

// Costs is what each host call charges against the unit's round budget.
type Costs struct {
	Query      int // self, cheese, population, readiness
	SenseTiles int
	PerTile    int
	SenseUnits int
	Check      int // every CanX
	Action     int
	Shared     int
	Broadcast  int
	Listen     int
}

var DefaultCosts = Costs{
	Query:      2,
	SenseTiles: 200,
	PerTile:    15,
	SenseUnits: 300,
	Check:      10,
	Action:     50,
	Shared:     5,
	Broadcast:  50,
	Listen:     100,
}

// maxShared bounds what a shared-array slot can hold.
const maxShared = 1<<16 - 1

// unitHost is one unit's view of the match for one round.
type unitHost struct {
	m    *Match
	u    *unit
	left int
}

var _ host.Host = (*unitHost)(nil)

func (m *Match) hostFor(u *unit) *unitHost {
	return &unitHost{m: m, u: u, left: m.consts.RoundBudget}
}

// Host returns a fresh view for the live unit id, with a full budget.
func (m *Match) Host(id int) (host.Host, bool) {
	u, ok := m.byID[id]
	if !ok || !u.alive {
		return nil, false
	}
	return m.hostFor(u), true
}

// charge spends budget. Overrunning panics, the way a real host aborts the
// unit's turn.
func (h *unitHost) charge(cost int) {
	h.left -= cost
	if h.left < 0 {
		panic(fmt.Errorf("%w: unit %d round %d", host.ErrBudgetExceeded, h.u.ID, h.m.round))
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{host.ErrInvalidAction}, args...)...)
}

func (h *unitHost) ID() int                    { return h.u.ID }
func (h *unitHost) Team() model.Team           { return h.u.Team }
func (h *unitHost) Type() model.UnitType       { return h.u.Type }
func (h *unitHost) Round() int                 { return h.m.round }
func (h *unitHost) MapWidth() int              { return h.m.W }
func (h *unitHost) MapHeight() int             { return h.m.H }
func (h *unitHost) Constants() model.Constants { return h.m.consts }
func (h *unitHost) BudgetLeft() int            { return max(h.left, 0) }

func (h *unitHost) Self() model.UnitInfo {
	h.charge(h.m.opts.Costs.Query)
	return h.u.UnitInfo
}

func (h *unitHost) GlobalCheese() int {
	h.charge(h.m.opts.Costs.Query)
	return h.m.bank[h.u.Team]
}

func (h *unitHost) Population() int {
	h.charge(h.m.opts.Costs.Query)
	return len(h.m.Units(h.u.Team))
}

func (h *unitHost) vision() int {
	if h.u.Type == model.King {
		return h.m.consts.KingVisionRadiusSq
	}
	return h.m.consts.VisionRadiusSq
}

func (h *unitHost) SenseNearbyTiles() []model.TileInfo {
	h.charge(h.m.opts.Costs.SenseTiles)
	r := h.vision()
	var out []model.TileInfo
	for y := 0; y < h.m.H; y++ {
		for x := 0; x < h.m.W; x++ {
			l := model.Loc{X: x, Y: y}
			if h.u.Loc.DistSq(l) > r {
				continue
			}
			out = append(out, model.TileInfo{Loc: l, Kind: h.m.tiles[h.m.idx(l)], Cheese: h.m.cheese[h.m.idx(l)]})
		}
	}
	h.charge(h.m.opts.Costs.PerTile * len(out))
	return out
}

func (h *unitHost) SenseNearbyUnits(radiusSq int, team model.Team) []model.UnitInfo {
	h.charge(h.m.opts.Costs.SenseUnits)
	if radiusSq < 0 {
		radiusSq = h.vision()
	}
	var out []model.UnitInfo
	for _, o := range h.m.units {
		if !o.alive || o.ID == h.u.ID {
			continue
		}
		if team != model.AnyTeam && o.Team != team {
			continue
		}
		for _, b := range o.Body() {
			if h.u.Loc.DistSq(b) <= radiusSq {
				out = append(out, o.UnitInfo)
				break
			}
		}
	}
	return out
}

func (h *unitHost) SenseUnitAt(l model.Loc) (model.UnitInfo, bool) {
	h.charge(h.m.opts.Costs.Query)
	if h.u.Loc.DistSq(l) > h.vision() {
		return model.UnitInfo{}, false
	}
	o := h.m.unitAt(l)
	if o == nil {
		return model.UnitInfo{}, false
	}
	return o.UnitInfo, true
}

func (h *unitHost) MovementReady() bool {
	h.charge(h.m.opts.Costs.Query)
	return !h.u.Carried && h.u.nextMove <= h.m.round
}

func (h *unitHost) ActionReady() bool {
	h.charge(h.m.opts.Costs.Query)
	return !h.u.Carried && h.u.nextAction <= h.m.round
}

func (h *unitHost) canMove(d model.Direction) bool {
	if d == model.Center || h.u.Carried || h.u.nextMove > h.m.round {
		return false
	}
	moved := h.u.UnitInfo
	moved.Loc = h.u.Loc.Add(d)
	for _, b := range moved.Body() {
		if !h.m.free(b, h.u.ID) {
			return false
		}
	}
	return true
}

func (h *unitHost) CanMove(d model.Direction) bool {
	h.charge(h.m.opts.Costs.Check)
	return h.canMove(d)
}

func (h *unitHost) Move(d model.Direction) error {
	h.charge(h.m.opts.Costs.Action)
	if !h.canMove(d) {
		return invalid("unit %d move %v", h.u.ID, d)
	}
	h.m.relocate(h.u, h.u.Loc.Add(d))
	h.u.Facing = d
	cooldown := 1
	if h.u.Type == model.King || h.u.CarryingID != 0 {
		cooldown = 2
	}
	h.u.nextMove = h.m.round + cooldown
	return nil
}

func (h *unitHost) CanTurn(d model.Direction) bool {
	h.charge(h.m.opts.Costs.Check)
	return d != model.Center && !h.u.Carried
}

func (h *unitHost) Turn(d model.Direction) error {
	h.charge(h.m.opts.Costs.Action)
	if d == model.Center || h.u.Carried {
		return invalid("unit %d turn %v", h.u.ID, d)
	}
	h.u.Facing = d
	return nil
}

// reaches reports whether l touches the unit's body.
func (h *unitHost) reaches(l model.Loc) bool {
	return h.m.onMap(l) && h.u.BodyDistance(l) <= 1
}

func (h *unitHost) actionReady() bool {
	return !h.u.Carried && h.u.nextAction <= h.m.round
}

func (h *unitHost) spent() { h.u.nextAction = h.m.round + 1 }

func (h *unitHost) attackTarget(l model.Loc) *unit {
	if !h.actionReady() || !h.reaches(l) {
		return nil
	}
	t := h.m.unitAt(l)
	if t == nil || t.ID == h.u.ID || t.Team == h.u.Team {
		return nil
	}
	return t
}

func (h *unitHost) CanAttack(l model.Loc) bool {
	h.charge(h.m.opts.Costs.Check)
	return h.attackTarget(l) != nil
}

func (h *unitHost) Attack(l model.Loc, cheese int) error {
	h.charge(h.m.opts.Costs.Action)
	t := h.attackTarget(l)
	if t == nil {
		return invalid("unit %d attack %v", h.u.ID, l)
	}
	if cheese < 0 || cheese > h.m.bank[h.u.Team] {
		return invalid("unit %d attack spend %d of %d", h.u.ID, cheese, h.m.bank[h.u.Team])
	}
	h.m.bank[h.u.Team] -= cheese
	h.m.damage(t, h.m.consts.BaseDamage+micro.ExtraDamage(cheese), h.u.Team)
	h.spent()
	return nil
}

func (h *unitHost) canRemoveDirt(l model.Loc) bool {
	return h.actionReady() && h.reaches(l) && h.m.Tile(l) == model.Dirt && h.m.bank[h.u.Team] >= h.m.consts.DigCost
}

func (h *unitHost) CanRemoveDirt(l model.Loc) bool {
	h.charge(h.m.opts.Costs.Check)
	return h.canRemoveDirt(l)
}

func (h *unitHost) RemoveDirt(l model.Loc) error {
	h.charge(h.m.opts.Costs.Action)
	if !h.canRemoveDirt(l) {
		return invalid("unit %d remove dirt %v", h.u.ID, l)
	}
	h.m.tiles[h.m.idx(l)] = model.Empty
	h.m.bank[h.u.Team] -= h.m.consts.DigCost
	h.spent()
	return nil
}

func (h *unitHost) canPlaceDirt(l model.Loc) bool {
	return h.actionReady() && h.reaches(l) && h.m.Tile(l) == model.Empty && h.m.free(l, 0) &&
		h.m.bank[h.u.Team] >= h.m.consts.DigCost
}

func (h *unitHost) CanPlaceDirt(l model.Loc) bool {
	h.charge(h.m.opts.Costs.Check)
	return h.canPlaceDirt(l)
}

func (h *unitHost) PlaceDirt(l model.Loc) error {
	h.charge(h.m.opts.Costs.Action)
	if !h.canPlaceDirt(l) {
		return invalid("unit %d place dirt %v", h.u.ID, l)
	}
	h.m.tiles[h.m.idx(l)] = model.Dirt
	h.m.bank[h.u.Team] -= h.m.consts.DigCost
	h.spent()
	return nil
}

func (h *unitHost) canPickUp(l model.Loc) bool {
	return h.actionReady() && h.u.Type == model.Rat && h.m.onMap(l) && h.u.Loc.Chebyshev(l) <= 1 &&
		h.m.cheese[h.m.idx(l)] > 0 && h.u.Cheese < h.m.consts.CarryCap
}

func (h *unitHost) CanPickUpCheese(l model.Loc) bool {
	h.charge(h.m.opts.Costs.Check)
	return h.canPickUp(l)
}

func (h *unitHost) PickUpCheese(l model.Loc) error {
	h.charge(h.m.opts.Costs.Action)
	if !h.canPickUp(l) {
		return invalid("unit %d pick up %v", h.u.ID, l)
	}
	i := h.m.idx(l)
	take := min(h.m.cheese[i], h.m.consts.CarryCap-h.u.Cheese)
	h.m.cheese[i] -= take
	h.u.Cheese += take
	h.spent()
	return nil
}

func (h *unitHost) canTransfer(l model.Loc, amount int) bool {
	if !h.actionReady() || amount <= 0 || amount > h.u.Cheese {
		return false
	}
	t := h.m.unitAt(l)
	return t != nil && t.Team == h.u.Team && t.Type == model.King && t.BodyDistance(h.u.Loc) <= 1
}

func (h *unitHost) CanTransferCheese(l model.Loc, amount int) bool {
	h.charge(h.m.opts.Costs.Check)
	return h.canTransfer(l, amount)
}

func (h *unitHost) TransferCheese(l model.Loc, amount int) error {
	h.charge(h.m.opts.Costs.Action)
	if !h.canTransfer(l, amount) {
		return invalid("unit %d transfer %d to %v", h.u.ID, amount, l)
	}
	h.u.Cheese -= amount
	h.m.bank[h.u.Team] += amount
	h.spent()
	return nil
}

func (h *unitHost) carryTarget(l model.Loc) *unit {
	if !h.actionReady() || h.u.Type != model.Rat || h.u.CarryingID != 0 {
		return nil
	}
	t := h.m.unitAt(l)
	if t == nil || t.ID == h.u.ID || t.Type != model.Rat || t.CarryingID != 0 || !t.Loc.Adjacent(h.u.Loc) {
		return nil
	}
	// Only a weaker rat that is not looking at the grabber can be lifted.
	if t.Health >= h.u.Health || t.Facing.InCone(t.Loc.DirTo(h.u.Loc)) {
		return nil
	}
	return t
}

func (h *unitHost) CanCarry(l model.Loc) bool {
	h.charge(h.m.opts.Costs.Check)
	return h.carryTarget(l) != nil
}

func (h *unitHost) Carry(l model.Loc) error {
	h.charge(h.m.opts.Costs.Action)
	t := h.carryTarget(l)
	if t == nil {
		return invalid("unit %d carry %v", h.u.ID, l)
	}
	h.m.vacate(t)
	t.Carried = true
	t.carriedBy = h.u.ID
	t.carriedAt = h.m.round
	t.Loc = h.u.Loc
	h.u.CarryingID = t.ID
	h.u.ThrownRound = h.m.round
	h.spent()
	return nil
}

func (h *unitHost) canThrow(d model.Direction) bool {
	return h.actionReady() && h.u.CarryingID != 0 && d != model.Center && h.m.free(h.u.Loc.Add(d), 0)
}

func (h *unitHost) CanThrow(d model.Direction) bool {
	h.charge(h.m.opts.Costs.Check)
	return h.canThrow(d)
}

// Throw launches the carried unit up to ThrowRange cells. Landing short of the
// full range means it hit something, which hurts.
func (h *unitHost) Throw(d model.Direction) error {
	h.charge(h.m.opts.Costs.Action)
	if !h.canThrow(d) {
		return invalid("unit %d throw %v", h.u.ID, d)
	}
	t, ok := h.m.byID[h.u.CarryingID]
	if !ok || !t.alive {
		h.u.CarryingID = 0
		return invalid("unit %d throw without cargo", h.u.ID)
	}
	at, flight := h.u.Loc, 0
	for step := 1; step <= h.m.consts.ThrowRange; step++ {
		next := at.Add(d)
		if !h.m.free(next, 0) {
			break
		}
		at, flight = next, step
	}
	h.u.CarryingID = 0
	h.u.ThrownRound = h.m.round
	t.Carried = false
	t.carriedBy = 0
	t.Loc = at
	t.ThrownRound = h.m.round
	t.nextMove = h.m.round + 2
	t.nextAction = h.m.round + 2
	h.m.occupy(t)
	if flight < h.m.consts.ThrowRange {
		h.m.damage(t, 2*h.m.consts.BaseDamage, h.u.Team)
	}
	h.spent()
	return nil
}

// canPromote also needs room to push any rats standing in the new 3×3 body
// out to nearby free cells.
func (h *unitHost) canPromote() bool {
	u := h.u
	if !h.actionReady() || u.Type != model.Rat || u.CarryingID != 0 {
		return false
	}
	if h.m.bank[u.Team] < h.m.consts.PromoteCost || h.m.Leaders(u.Team) >= h.m.consts.MaxLeaders {
		return false
	}
	king := model.UnitInfo{Type: model.King, Loc: u.Loc}
	displaced := 0
	for _, b := range king.Body() {
		if !h.m.onMap(b) || h.m.tiles[h.m.idx(b)].Blocking() {
			return false
		}
		o := h.m.unitAt(b)
		if o == nil || o.ID == u.ID {
			continue
		}
		if o.Type != model.Rat {
			return false
		}
		displaced++
	}
	return displaced == 0 || len(h.displacements(king)) == displaced
}

// displacements assigns each foreign rat inside king's body a free cell
// outside it.
func (h *unitHost) displacements(king model.UnitInfo) map[*unit]model.Loc {
	taken := make(map[model.Loc]bool)
	for _, b := range king.Body() {
		taken[b] = true
	}
	out := make(map[*unit]model.Loc)
	for _, b := range king.Body() {
		o := h.m.unitAt(b)
		if o == nil || o.ID == h.u.ID {
			continue
		}
		to, ok := h.m.nearestFree(b, 4, taken)
		if !ok {
			continue
		}
		taken[to] = true
		out[o] = to
	}
	return out
}

func (h *unitHost) CanBecomeLeader() bool {
	h.charge(h.m.opts.Costs.Check)
	return h.canPromote()
}

func (h *unitHost) BecomeLeader() error {
	h.charge(h.m.opts.Costs.Action)
	if !h.canPromote() {
		return invalid("unit %d become leader at %v", h.u.ID, h.u.Loc)
	}
	u := h.u
	king := model.UnitInfo{Type: model.King, Loc: u.Loc}
	for o, to := range h.displacements(king) {
		h.m.relocate(o, to)
	}
	h.m.vacate(u)
	u.Type = model.King
	u.Health = h.m.consts.KingHealth
	h.m.occupy(u)
	h.m.bank[u.Team] -= h.m.consts.PromoteCost
	h.spent()
	h.m.log.Debug("leader promoted", "unit", u.ID, "team", u.Team, "loc", u.Loc, "round", h.m.round)
	return nil
}

func (h *unitHost) canSpawn(l model.Loc) bool {
	return h.actionReady() && h.u.Type == model.King && h.m.bank[h.u.Team] >= h.m.consts.SpawnCost &&
		h.u.Loc.Chebyshev(l) == 2 && h.m.free(l, 0)
}

func (h *unitHost) CanSpawn(l model.Loc) bool {
	h.charge(h.m.opts.Costs.Check)
	return h.canSpawn(l)
}

func (h *unitHost) Spawn(l model.Loc) error {
	h.charge(h.m.opts.Costs.Action)
	if !h.canSpawn(l) {
		return invalid("unit %d spawn at %v", h.u.ID, l)
	}
	id := h.m.Place(h.u.Team, model.Rat, l)
	if id == 0 {
		return invalid("unit %d spawn at %v", h.u.ID, l)
	}
	born := h.m.byID[id]
	born.Facing = h.u.Loc.DirTo(l)
	born.nextMove = h.m.round + 1
	born.nextAction = h.m.round + 1
	h.m.bank[h.u.Team] -= h.m.consts.SpawnCost
	h.m.spawned[h.u.Team]++
	h.spent()
	return nil
}

func (h *unitHost) ReadShared(index int) (int, error) {
	h.charge(h.m.opts.Costs.Shared)
	arr := h.m.shared[h.u.Team]
	if index < 0 || index >= len(arr) {
		return 0, invalid("shared index %d", index)
	}
	return arr[index], nil
}

// WriteShared is reserved to leaders.
func (h *unitHost) WriteShared(index, value int) error {
	h.charge(h.m.opts.Costs.Shared)
	arr := h.m.shared[h.u.Team]
	switch {
	case index < 0 || index >= len(arr):
		return invalid("shared index %d", index)
	case value < 0 || value > maxShared:
		return invalid("shared value %d", value)
	case h.u.Type != model.King:
		return invalid("unit %d is not a leader", h.u.ID)
	}
	arr[index] = value
	return nil
}

func (h *unitHost) Broadcast(msg int) error {
	h.charge(h.m.opts.Costs.Broadcast)
	if msg < 0 {
		return invalid("squeak %d", msg)
	}
	h.m.squeaks = append(h.m.squeaks, squeak{
		team: h.u.Team,
		msg:  model.Message{SenderID: h.u.ID, SenderLoc: h.u.Loc, Round: h.m.round, Payload: msg},
	})
	return nil
}

// ReadBroadcasts returns same-team squeaks of round sent within squeak range
// of where this unit stands now. Only the last two rounds are kept.
func (h *unitHost) ReadBroadcasts(round int) []model.Message {
	h.charge(h.m.opts.Costs.Listen)
	var out []model.Message
	for _, s := range h.m.squeaks {
		if s.team != h.u.Team || s.msg.Round != round {
			continue
		}
		if s.msg.SenderLoc.DistSq(h.u.Loc) > h.m.consts.SqueakRadiusSq {
			continue
		}
		out = append(out, s.msg)
	}
	return out
}
