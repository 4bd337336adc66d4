package ipc

import (
	"fmt"
	"slices"

	"github.com/nstehr/hive/hive-core/host"
	"github.com/nstehr/hive/hive-core/micro"
	"github.com/nstehr/hive/hive-core/model"
)

// Flat budget charges for a remote round. The simulator meters the real cost
// when it replays the commands; these only keep a runaway controller bounded.
const (
	callCost  = 10
	senseCost = 200
)

// RemoteHost answers a controller's host calls from one RoundMessage and
// records the actions taken. Checks run against the snapshot, which the
// controller's own actions update as it goes. The simulator re-validates every
// command on replay.
type RemoteHost struct {
	hello  HelloMessage
	snap   RoundMessage
	self   model.UnitInfo
	cheese int
	tiles  map[model.Loc]model.TileInfo
	units  []model.UnitInfo
	left   int

	moveReady   bool
	actionReady bool
	commands    []Command
}

var _ host.Host = (*RemoteHost)(nil)

func NewRemoteHost(hello HelloMessage, snap RoundMessage) *RemoteHost {
	h := &RemoteHost{
		hello:       hello,
		snap:        snap,
		self:        snap.Unit,
		cheese:      snap.TeamCheese,
		tiles:       make(map[model.Loc]model.TileInfo, len(snap.Tiles)),
		units:       slices.Clone(snap.Units),
		left:        snap.Budget,
		moveReady:   snap.MovementReady,
		actionReady: snap.ActionReady,
	}
	if h.left <= 0 {
		h.left = hello.Constants.RoundBudget
	}
	for _, t := range snap.Tiles {
		h.tiles[t.Loc] = t
	}
	if len(h.snap.Shared) < hello.Constants.SharedArraySize {
		shared := make([]int, hello.Constants.SharedArraySize)
		copy(shared, h.snap.Shared)
		h.snap.Shared = shared
	} else {
		h.snap.Shared = slices.Clone(h.snap.Shared)
	}
	return h
}

// Commands returns the actions recorded so far, in call order.
func (h *RemoteHost) Commands() []Command { return h.commands }

func (h *RemoteHost) charge(cost int) {
	h.left -= cost
	if h.left < 0 {
		panic(fmt.Errorf("%w: unit %d round %d", host.ErrBudgetExceeded, h.self.ID, h.snap.Round))
	}
}

func (h *RemoteHost) record(c Command) {
	h.commands = append(h.commands, c)
}

func rejected(what string, args ...any) error {
	return fmt.Errorf("%w: %s", host.ErrInvalidAction, fmt.Sprintf(what, args...))
}

func (h *RemoteHost) ID() int                    { return h.self.ID }
func (h *RemoteHost) Team() model.Team           { return h.hello.Team }
func (h *RemoteHost) Type() model.UnitType       { return h.self.Type }
func (h *RemoteHost) Round() int                 { return h.snap.Round }
func (h *RemoteHost) MapWidth() int              { return h.hello.Width }
func (h *RemoteHost) MapHeight() int             { return h.hello.Height }
func (h *RemoteHost) Constants() model.Constants { return h.hello.Constants }
func (h *RemoteHost) BudgetLeft() int            { return max(h.left, 0) }

func (h *RemoteHost) Self() model.UnitInfo {
	h.charge(callCost)
	return h.self
}

func (h *RemoteHost) GlobalCheese() int {
	h.charge(callCost)
	return h.cheese
}

func (h *RemoteHost) Population() int {
	h.charge(callCost)
	return h.snap.Population
}

func (h *RemoteHost) SenseNearbyTiles() []model.TileInfo {
	h.charge(senseCost)
	out := make([]model.TileInfo, 0, len(h.snap.Tiles))
	for _, t := range h.snap.Tiles {
		out = append(out, h.tiles[t.Loc])
	}
	return out
}

func (h *RemoteHost) vision() int {
	if h.self.Type == model.King {
		return h.hello.Constants.KingVisionRadiusSq
	}
	return h.hello.Constants.VisionRadiusSq
}

func (h *RemoteHost) SenseNearbyUnits(radiusSq int, team model.Team) []model.UnitInfo {
	h.charge(senseCost)
	if radiusSq < 0 {
		radiusSq = h.vision()
	}
	var out []model.UnitInfo
	for _, u := range h.units {
		if u.ID == h.self.ID || (team != model.AnyTeam && u.Team != team) {
			continue
		}
		for _, b := range u.Body() {
			if h.self.Loc.DistSq(b) <= radiusSq {
				out = append(out, u)
				break
			}
		}
	}
	return out
}

func (h *RemoteHost) SenseUnitAt(l model.Loc) (model.UnitInfo, bool) {
	h.charge(callCost)
	u := h.unitAt(l)
	if u == nil {
		return model.UnitInfo{}, false
	}
	return *u, true
}

func (h *RemoteHost) unitAt(l model.Loc) *model.UnitInfo {
	if slices.Contains(h.self.Body(), l) {
		return &h.self
	}
	for i := range h.units {
		if h.units[i].ID != h.self.ID && slices.Contains(h.units[i].Body(), l) {
			return &h.units[i]
		}
	}
	return nil
}

// open reports whether l is a known passable cell with nobody on it.
func (h *RemoteHost) open(l model.Loc, ignore int) bool {
	t, ok := h.tiles[l]
	if !ok || t.Kind.Blocking() || t.Kind == model.Unknown {
		return false
	}
	u := h.unitAt(l)
	return u == nil || u.ID == ignore
}

func (h *RemoteHost) MovementReady() bool {
	h.charge(callCost)
	return h.moveReady
}

func (h *RemoteHost) ActionReady() bool {
	h.charge(callCost)
	return h.actionReady
}

// canMove trusts the simulator's list for cells the unit has not changed;
// a cell this unit dug open this round is checked locally.
func (h *RemoteHost) canMove(d model.Direction) bool {
	if !h.moveReady || d == model.Center {
		return false
	}
	if slices.Contains(h.snap.Movable, d) {
		return true
	}
	moved := h.self
	moved.Loc = h.self.Loc.Add(d)
	for _, b := range moved.Body() {
		if !h.open(b, h.self.ID) {
			return false
		}
	}
	return h.dug(moved.Body())
}

func (h *RemoteHost) dug(cells []model.Loc) bool {
	for _, c := range h.commands {
		if c.Type == CmdRemoveDirt && c.Loc != nil && slices.Contains(cells, *c.Loc) {
			return true
		}
	}
	return false
}

func (h *RemoteHost) CanMove(d model.Direction) bool {
	h.charge(callCost)
	return h.canMove(d)
}

func (h *RemoteHost) Move(d model.Direction) error {
	h.charge(callCost)
	if !h.canMove(d) {
		return rejected("unit %d move %v", h.self.ID, d)
	}
	h.self.Loc = h.self.Loc.Add(d)
	h.self.Facing = d
	h.moveReady = false
	h.record(dirCommand(CmdMove, d))
	return nil
}

func (h *RemoteHost) CanTurn(d model.Direction) bool {
	h.charge(callCost)
	return d != model.Center && !h.self.Carried
}

func (h *RemoteHost) Turn(d model.Direction) error {
	h.charge(callCost)
	if d == model.Center || h.self.Carried {
		return rejected("unit %d turn %v", h.self.ID, d)
	}
	h.self.Facing = d
	h.record(dirCommand(CmdTurn, d))
	return nil
}

func (h *RemoteHost) reaches(l model.Loc) bool {
	return l.InBounds(h.hello.Width, h.hello.Height) && h.self.BodyDistance(l) <= 1
}

func (h *RemoteHost) spent() { h.actionReady = false }

func (h *RemoteHost) attackTarget(l model.Loc) *model.UnitInfo {
	if !h.actionReady || !h.reaches(l) {
		return nil
	}
	t := h.unitAt(l)
	if t == nil || t.ID == h.self.ID || t.Team == h.hello.Team {
		return nil
	}
	return t
}

func (h *RemoteHost) CanAttack(l model.Loc) bool {
	h.charge(callCost)
	return h.attackTarget(l) != nil
}

func (h *RemoteHost) Attack(l model.Loc, cheese int) error {
	h.charge(callCost)
	t := h.attackTarget(l)
	if t == nil || cheese < 0 || cheese > h.cheese {
		return rejected("unit %d attack %v spending %d", h.self.ID, l, cheese)
	}
	h.cheese -= cheese
	t.Health -= h.hello.Constants.BaseDamage + micro.ExtraDamage(cheese)
	h.spent()
	h.record(locCommand(CmdAttack, l, cheese))
	return nil
}

func (h *RemoteHost) tileKind(l model.Loc) model.TileKind {
	return h.tiles[l].Kind
}

func (h *RemoteHost) setTile(l model.Loc, k model.TileKind) {
	t := h.tiles[l]
	t.Loc, t.Kind = l, k
	h.tiles[l] = t
}

func (h *RemoteHost) canRemoveDirt(l model.Loc) bool {
	return h.actionReady && h.reaches(l) && h.tileKind(l) == model.Dirt && h.cheese >= h.hello.Constants.DigCost
}

func (h *RemoteHost) CanRemoveDirt(l model.Loc) bool {
	h.charge(callCost)
	return h.canRemoveDirt(l)
}

func (h *RemoteHost) RemoveDirt(l model.Loc) error {
	h.charge(callCost)
	if !h.canRemoveDirt(l) {
		return rejected("unit %d remove dirt %v", h.self.ID, l)
	}
	h.setTile(l, model.Empty)
	h.cheese -= h.hello.Constants.DigCost
	h.spent()
	h.record(locCommand(CmdRemoveDirt, l, 0))
	return nil
}

func (h *RemoteHost) canPlaceDirt(l model.Loc) bool {
	return h.actionReady && h.reaches(l) && h.tileKind(l) == model.Empty && h.unitAt(l) == nil &&
		h.cheese >= h.hello.Constants.DigCost
}

func (h *RemoteHost) CanPlaceDirt(l model.Loc) bool {
	h.charge(callCost)
	return h.canPlaceDirt(l)
}

func (h *RemoteHost) PlaceDirt(l model.Loc) error {
	h.charge(callCost)
	if !h.canPlaceDirt(l) {
		return rejected("unit %d place dirt %v", h.self.ID, l)
	}
	h.setTile(l, model.Dirt)
	h.cheese -= h.hello.Constants.DigCost
	h.spent()
	h.record(locCommand(CmdPlaceDirt, l, 0))
	return nil
}

func (h *RemoteHost) canPickUp(l model.Loc) bool {
	return h.actionReady && h.self.Type == model.Rat && h.self.Loc.Chebyshev(l) <= 1 &&
		h.tiles[l].Cheese > 0 && h.self.Cheese < h.hello.Constants.CarryCap
}

func (h *RemoteHost) CanPickUpCheese(l model.Loc) bool {
	h.charge(callCost)
	return h.canPickUp(l)
}

func (h *RemoteHost) PickUpCheese(l model.Loc) error {
	h.charge(callCost)
	if !h.canPickUp(l) {
		return rejected("unit %d pick up %v", h.self.ID, l)
	}
	t := h.tiles[l]
	take := min(t.Cheese, h.hello.Constants.CarryCap-h.self.Cheese)
	t.Cheese -= take
	h.tiles[l] = t
	h.self.Cheese += take
	h.spent()
	h.record(locCommand(CmdPickUp, l, 0))
	return nil
}

func (h *RemoteHost) canTransfer(l model.Loc, amount int) bool {
	if !h.actionReady || amount <= 0 || amount > h.self.Cheese {
		return false
	}
	t := h.unitAt(l)
	return t != nil && t.Team == h.hello.Team && t.Type == model.King && t.BodyDistance(h.self.Loc) <= 1
}

func (h *RemoteHost) CanTransferCheese(l model.Loc, amount int) bool {
	h.charge(callCost)
	return h.canTransfer(l, amount)
}

func (h *RemoteHost) TransferCheese(l model.Loc, amount int) error {
	h.charge(callCost)
	if !h.canTransfer(l, amount) {
		return rejected("unit %d transfer %d to %v", h.self.ID, amount, l)
	}
	h.self.Cheese -= amount
	h.cheese += amount
	h.spent()
	h.record(locCommand(CmdTransfer, l, amount))
	return nil
}

func (h *RemoteHost) carryTarget(l model.Loc) *model.UnitInfo {
	if !h.actionReady || h.self.Type != model.Rat || h.self.CarryingID != 0 {
		return nil
	}
	t := h.unitAt(l)
	if t == nil || t.ID == h.self.ID || t.Type != model.Rat || t.CarryingID != 0 || !t.Loc.Adjacent(h.self.Loc) {
		return nil
	}
	if t.Health >= h.self.Health || t.Facing.InCone(t.Loc.DirTo(h.self.Loc)) {
		return nil
	}
	return t
}

func (h *RemoteHost) CanCarry(l model.Loc) bool {
	h.charge(callCost)
	return h.carryTarget(l) != nil
}

func (h *RemoteHost) Carry(l model.Loc) error {
	h.charge(callCost)
	t := h.carryTarget(l)
	if t == nil {
		return rejected("unit %d carry %v", h.self.ID, l)
	}
	t.Carried = true
	t.Loc = h.self.Loc
	h.self.CarryingID = t.ID
	h.self.ThrownRound = h.snap.Round
	h.spent()
	h.record(locCommand(CmdCarry, l, 0))
	return nil
}

func (h *RemoteHost) canThrow(d model.Direction) bool {
	return h.actionReady && h.self.CarryingID != 0 && d != model.Center && h.open(h.self.Loc.Add(d), 0)
}

func (h *RemoteHost) CanThrow(d model.Direction) bool {
	h.charge(callCost)
	return h.canThrow(d)
}

func (h *RemoteHost) Throw(d model.Direction) error {
	h.charge(callCost)
	if !h.canThrow(d) {
		return rejected("unit %d throw %v", h.self.ID, d)
	}
	h.self.CarryingID = 0
	h.self.ThrownRound = h.snap.Round
	h.spent()
	h.record(dirCommand(CmdThrow, d))
	return nil
}

func (h *RemoteHost) canPromote() bool {
	return h.actionReady && h.snap.CanPromote && h.self.Type == model.Rat && h.cheese >= h.hello.Constants.PromoteCost
}

func (h *RemoteHost) CanBecomeLeader() bool {
	h.charge(callCost)
	return h.canPromote()
}

func (h *RemoteHost) BecomeLeader() error {
	h.charge(callCost)
	if !h.canPromote() {
		return rejected("unit %d become leader at %v", h.self.ID, h.self.Loc)
	}
	h.self.Type = model.King
	h.self.Health = h.hello.Constants.KingHealth
	h.cheese -= h.hello.Constants.PromoteCost
	h.spent()
	h.record(Command{Type: CmdBecomeLeader})
	return nil
}

func (h *RemoteHost) canSpawn(l model.Loc) bool {
	return h.actionReady && h.self.Type == model.King && h.cheese >= h.hello.Constants.SpawnCost &&
		h.self.Loc.Chebyshev(l) == 2 && h.open(l, 0)
}

func (h *RemoteHost) CanSpawn(l model.Loc) bool {
	h.charge(callCost)
	return h.canSpawn(l)
}

func (h *RemoteHost) Spawn(l model.Loc) error {
	h.charge(callCost)
	if !h.canSpawn(l) {
		return rejected("unit %d spawn at %v", h.self.ID, l)
	}
	h.cheese -= h.hello.Constants.SpawnCost
	h.units = append(h.units, model.UnitInfo{Team: h.hello.Team, Type: model.Rat, Loc: l})
	h.spent()
	h.record(locCommand(CmdSpawn, l, 0))
	return nil
}

func (h *RemoteHost) ReadShared(index int) (int, error) {
	h.charge(callCost)
	if index < 0 || index >= len(h.snap.Shared) {
		return 0, rejected("shared index %d", index)
	}
	return h.snap.Shared[index], nil
}

func (h *RemoteHost) WriteShared(index, value int) error {
	h.charge(callCost)
	switch {
	case index < 0 || index >= len(h.snap.Shared):
		return rejected("shared index %d", index)
	case value < 0 || value > 1<<16-1:
		return rejected("shared value %d", value)
	case h.self.Type != model.King:
		return rejected("unit %d is not a leader", h.self.ID)
	}
	h.snap.Shared[index] = value
	h.record(Command{Type: CmdWriteShared, Index: index, Value: value})
	return nil
}

func (h *RemoteHost) Broadcast(msg int) error {
	h.charge(callCost)
	if msg < 0 {
		return rejected("squeak %d", msg)
	}
	h.record(Command{Type: CmdSqueak, Value: msg})
	return nil
}

// ReadBroadcasts filters the squeaks the simulator already delivered.
func (h *RemoteHost) ReadBroadcasts(round int) []model.Message {
	h.charge(senseCost)
	var out []model.Message
	for _, m := range h.snap.Squeaks {
		if m.Round == round {
			out = append(out, m)
		}
	}
	return out
}
