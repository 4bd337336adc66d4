package sim

import (
	"errors"
	"testing"

	"github.com/nstehr/hive/hive-core/host"
	"github.com/nstehr/hive/hive-core/model"
	"github.com/nstehr/hive/hive-core/world"
)

type idleDriver struct{ ran, ended int }

func (d *idleDriver) RunRound(host.Host) error { d.ran++; return nil }
func (d *idleDriver) EndRound(int)             { d.ended++ }

func loc(x, y int) model.Loc { return model.Loc{X: x, Y: y} }

func open(w, h int) *Match {
	m := New(Options{Width: w, Height: h, StartCheese: 100})
	m.round = 1
	return m
}

func hostOf(t *testing.T, m *Match, id int) host.Host {
	t.Helper()
	h, ok := m.Host(id)
	if !ok {
		t.Fatalf("unit %d not alive", id)
	}
	return h
}

func TestGenerateIsSymmetric(t *testing.T) {
	for _, sym := range world.AllSymmetries {
		t.Run(sym.String(), func(t *testing.T) {
			opts := DefaultOptions
			opts.Seed = 11
			opts.Symmetry = sym
			m := Generate(opts)
			for y := 0; y < m.H; y++ {
				for x := 0; x < m.W; x++ {
					l := loc(x, y)
					if a, b := m.Tile(l), m.Tile(m.mirror(l)); a != b {
						t.Fatalf("tile %v = %v, mirror %v = %v", l, a, m.mirror(l), b)
					}
				}
			}
			a, b := m.Units(model.TeamA), m.Units(model.TeamB)
			if len(a) != 1+opts.StartRats || len(b) != len(a) {
				t.Fatalf("units = %d/%d, want %d each", len(a), len(b), 1+opts.StartRats)
			}
			if a[0].Type != model.King || m.mirror(a[0].Loc) != b[0].Loc {
				t.Errorf("leaders at %v and %v are not mirrored", a[0].Loc, b[0].Loc)
			}
			for i := 1; i < len(a); i++ {
				if m.mirror(a[i].Loc) != b[i].Loc {
					t.Errorf("rat %d at %v, mirror rat at %v", i, a[i].Loc, b[i].Loc)
				}
				if a[i].Loc.Chebyshev(a[0].Loc) != 2 || b[i].Loc.Chebyshev(b[0].Loc) != 2 {
					t.Errorf("rat %d not beside its own leader: %v / %v", i, a[i].Loc, b[i].Loc)
				}
			}
			if len(m.Mines())%2 != 0 {
				t.Errorf("mines = %d, want pairs", len(m.Mines()))
			}
		})
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	opts := DefaultOptions
	opts.Seed = 42
	a, b := Generate(opts), Generate(opts)
	if a.Symmetry() != b.Symmetry() {
		t.Fatalf("symmetry %v vs %v", a.Symmetry(), b.Symmetry())
	}
	for i := range a.tiles {
		if a.tiles[i] != b.tiles[i] {
			t.Fatalf("tile %d differs", i)
		}
	}
	ua, ub := a.Units(model.Neutral), b.Units(model.Neutral)
	if len(ua) != len(ub) {
		t.Fatalf("cats %d vs %d", len(ua), len(ub))
	}
	for i := range ua {
		if ua[i].Loc != ub[i].Loc {
			t.Errorf("cat %d at %v vs %v", i, ua[i].Loc, ub[i].Loc)
		}
	}
}

func TestBudgetOverrunPanics(t *testing.T) {
	opts := Options{Width: 10, Height: 10, Constants: model.DefaultConstants()}
	opts.Constants.RoundBudget = 100
	m := New(opts)
	id := m.Place(model.TeamA, model.Rat, loc(5, 5))
	h := hostOf(t, m, id)

	defer func() {
		r := recover()
		err, ok := r.(error)
		if !ok || !errors.Is(err, host.ErrBudgetExceeded) {
			t.Fatalf("recovered %v, want ErrBudgetExceeded", r)
		}
		if h.BudgetLeft() != 0 {
			t.Errorf("BudgetLeft = %d, want 0", h.BudgetLeft())
		}
	}()
	h.SenseNearbyTiles()
	t.Fatal("sensing should have overrun the budget")
}

func TestSqueakRangeAndHistory(t *testing.T) {
	m := open(30, 30)
	sender := m.Place(model.TeamA, model.Rat, loc(2, 2))
	near := m.Place(model.TeamA, model.Rat, loc(2, 6))
	far := m.Place(model.TeamA, model.Rat, loc(20, 20))
	enemy := m.Place(model.TeamB, model.Rat, loc(3, 3))

	if err := hostOf(t, m, sender).Broadcast(77); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		id   int
		want int
	}{
		{"in range", near, 1},
		{"out of range", far, 0},
		{"other team", enemy, 0},
	}
	for _, tc := range tests {
		got := hostOf(t, m, tc.id).ReadBroadcasts(1)
		if len(got) != tc.want {
			t.Errorf("%s: heard %d squeaks, want %d", tc.name, len(got), tc.want)
		}
	}

	d := &idleDriver{}
	drivers := [2]Driver{d, d}
	m.Step(drivers) // round 2
	m.Step(drivers) // round 3
	if got := hostOf(t, m, near).ReadBroadcasts(1); len(got) != 1 {
		t.Errorf("two rounds later heard %d, want 1", len(got))
	}
	m.Step(drivers) // round 4
	if got := hostOf(t, m, near).ReadBroadcasts(1); len(got) != 0 {
		t.Errorf("three rounds later heard %d, want 0", len(got))
	}
	if d.ended != 6 {
		t.Errorf("EndRound called %d times, want 6", d.ended)
	}
}

func TestBecomeLeaderDisplacesRats(t *testing.T) {
	m := open(12, 12)
	id := m.Place(model.TeamA, model.Rat, loc(5, 5))
	other := m.Place(model.TeamA, model.Rat, loc(5, 6))
	h := hostOf(t, m, id)

	if !h.CanBecomeLeader() {
		t.Fatal("CanBecomeLeader = false")
	}
	if err := h.BecomeLeader(); err != nil {
		t.Fatal(err)
	}
	self, _ := m.Unit(id)
	if self.Type != model.King || self.Health != m.consts.KingHealth {
		t.Errorf("promoted unit = %+v", self)
	}
	moved, _ := m.Unit(other)
	if moved.Loc.Chebyshev(self.Loc) <= 1 {
		t.Errorf("rat still inside the leader body at %v", moved.Loc)
	}
	if got := m.Bank(model.TeamA); got != 100-m.consts.PromoteCost {
		t.Errorf("bank = %d, want %d", got, 100-m.consts.PromoteCost)
	}
	if h.CanBecomeLeader() {
		t.Error("a leader cannot promote again")
	}
}

func TestBecomeLeaderNeedsRoom(t *testing.T) {
	m := open(12, 12)
	id := m.Place(model.TeamA, model.Rat, loc(5, 5))
	m.SetTile(loc(6, 6), model.Wall)
	if hostOf(t, m, id).CanBecomeLeader() {
		t.Error("promotion next to a wall should be refused")
	}
	edge := m.Place(model.TeamA, model.Rat, loc(0, 3))
	if hostOf(t, m, edge).CanBecomeLeader() {
		t.Error("promotion on the map edge should be refused")
	}
}

func TestCarryAndThrow(t *testing.T) {
	m := open(20, 20)
	grabber := m.Place(model.TeamA, model.Rat, loc(5, 5))
	victim := m.Place(model.TeamB, model.Rat, loc(5, 6))
	m.byID[victim].Health = 50
	m.byID[victim].Facing = model.North

	h := hostOf(t, m, grabber)
	if !h.CanCarry(loc(5, 6)) {
		t.Fatal("CanCarry = false")
	}
	if err := h.Carry(loc(5, 6)); err != nil {
		t.Fatal(err)
	}
	if v, _ := m.Unit(victim); !v.Carried || v.Loc != loc(5, 5) {
		t.Fatalf("victim = %+v, want carried at (5,5)", v)
	}
	if m.unitAt(loc(5, 6)) != nil {
		t.Error("carried unit still blocks its old cell")
	}

	m.round++
	h = hostOf(t, m, grabber)
	if !h.CanThrow(model.East) {
		t.Fatal("CanThrow(E) = false")
	}
	if err := h.Throw(model.East); err != nil {
		t.Fatal(err)
	}
	v, _ := m.Unit(victim)
	if v.Carried || v.Loc != loc(9, 5) {
		t.Errorf("victim landed at %v carried=%v, want (9,5)", v.Loc, v.Carried)
	}
	if v.Health != 50 {
		t.Errorf("clean landing hurt: health %d", v.Health)
	}
	if g, _ := m.Unit(grabber); g.CarryingID != 0 || g.ThrownRound != m.round {
		t.Errorf("grabber = %+v", g)
	}
}

func TestCarryRefusesWatchfulTarget(t *testing.T) {
	m := open(20, 20)
	grabber := m.Place(model.TeamA, model.Rat, loc(5, 5))
	victim := m.Place(model.TeamB, model.Rat, loc(5, 6))
	m.byID[victim].Health = 50
	m.byID[victim].Facing = model.South
	if hostOf(t, m, grabber).CanCarry(loc(5, 6)) {
		t.Error("a rat facing the grabber cannot be lifted")
	}
}

func TestAttackSpendsCheese(t *testing.T) {
	m := open(12, 12)
	m.SetBank(model.TeamA, 20)
	a := m.Place(model.TeamA, model.Rat, loc(5, 5))
	b := m.Place(model.TeamB, model.Rat, loc(6, 5))
	m.Place(model.TeamA, model.Rat, loc(4, 5))

	h := hostOf(t, m, a)
	if h.CanAttack(loc(4, 5)) {
		t.Error("attacking a teammate should be refused")
	}
	if err := h.Attack(loc(6, 5), 4); err != nil {
		t.Fatal(err)
	}
	got, _ := m.Unit(b)
	if want := m.consts.RatHealth - m.consts.BaseDamage - 2; got.Health != want {
		t.Errorf("health = %d, want %d", got.Health, want)
	}
	if m.Bank(model.TeamA) != 16 {
		t.Errorf("bank = %d, want 16", m.Bank(model.TeamA))
	}
	if h.ActionReady() {
		t.Error("action should be on cooldown")
	}
}

func TestCheeseEconomy(t *testing.T) {
	m := open(12, 12)
	m.SetBank(model.TeamA, 0)
	king := m.Place(model.TeamA, model.King, loc(5, 5))
	rat := m.Place(model.TeamA, model.Rat, loc(7, 5))
	m.SetCheese(loc(8, 5), 25)

	h := hostOf(t, m, rat)
	if err := h.PickUpCheese(loc(8, 5)); err != nil {
		t.Fatal(err)
	}
	if r, _ := m.Unit(rat); r.Cheese != 25 || m.CheeseAt(loc(8, 5)) != 0 {
		t.Fatalf("rat cheese = %d, cell = %d", r.Cheese, m.CheeseAt(loc(8, 5)))
	}

	m.round++
	h = hostOf(t, m, rat)
	if !h.CanTransferCheese(loc(6, 5), 25) {
		t.Fatal("CanTransferCheese = false")
	}
	if err := h.TransferCheese(loc(6, 5), 25); err != nil {
		t.Fatal(err)
	}
	if m.Bank(model.TeamA) != 25 {
		t.Errorf("bank = %d, want 25", m.Bank(model.TeamA))
	}

	kh := hostOf(t, m, king)
	if kh.CanSpawn(loc(6, 5)) {
		t.Error("spawning inside the leader body should be refused")
	}
	if !kh.CanSpawn(loc(5, 7)) {
		t.Fatal("CanSpawn(5,7) = false")
	}
	if err := kh.Spawn(loc(5, 7)); err != nil {
		t.Fatal(err)
	}
	if n := len(m.Units(model.TeamA)); n != 3 {
		t.Errorf("units = %d, want 3", n)
	}
	if m.Bank(model.TeamA) != 25-m.consts.SpawnCost {
		t.Errorf("bank = %d after spawn", m.Bank(model.TeamA))
	}
}

func TestWriteSharedIsLeaderOnly(t *testing.T) {
	m := open(12, 12)
	rat := m.Place(model.TeamA, model.Rat, loc(1, 1))
	king := m.Place(model.TeamA, model.King, loc(6, 6))

	if err := hostOf(t, m, rat).WriteShared(0, 1); !errors.Is(err, host.ErrInvalidAction) {
		t.Errorf("rat write err = %v, want ErrInvalidAction", err)
	}
	kh := hostOf(t, m, king)
	if err := kh.WriteShared(3, 9); err != nil {
		t.Fatal(err)
	}
	if v, _ := hostOf(t, m, rat).ReadShared(3); v != 9 {
		t.Errorf("ReadShared(3) = %d, want 9", v)
	}
	if m.Shared(model.TeamB)[3] != 0 {
		t.Error("write leaked into the other team's array")
	}
	if _, err := kh.ReadShared(m.consts.SharedArraySize); err == nil {
		t.Error("out-of-range read should fail")
	}
}

func TestDigCostsCheese(t *testing.T) {
	m := open(12, 12)
	m.SetBank(model.TeamA, 15)
	id := m.Place(model.TeamA, model.Rat, loc(5, 5))
	m.SetTile(loc(6, 5), model.Dirt)

	h := hostOf(t, m, id)
	if h.CanMove(model.East) {
		t.Fatal("dirt should block movement")
	}
	if err := h.RemoveDirt(loc(6, 5)); err != nil {
		t.Fatal(err)
	}
	if m.Tile(loc(6, 5)) != model.Empty || m.Bank(model.TeamA) != 5 {
		t.Errorf("tile %v bank %d", m.Tile(loc(6, 5)), m.Bank(model.TeamA))
	}
	if err := h.Move(model.East); err != nil {
		t.Fatal(err)
	}
	if h.MovementReady() {
		t.Error("movement should be on cooldown")
	}
}

func TestCatsBiteNeighbours(t *testing.T) {
	m := open(12, 12)
	m.Place(model.Neutral, model.Cat, loc(5, 5))
	rat := m.Place(model.TeamA, model.Rat, loc(7, 5))
	m.stepCats()
	r, _ := m.Unit(rat)
	if r.Health != m.consts.RatHealth-m.opts.CatDamage {
		t.Errorf("health = %d, want %d", r.Health, m.consts.RatHealth-m.opts.CatDamage)
	}
}

func TestRunEndsWhenLeadersFall(t *testing.T) {
	m := open(12, 12)
	king := m.Place(model.TeamA, model.King, loc(3, 3))
	m.Place(model.TeamB, model.King, loc(8, 8))
	m.kill(m.byID[king], model.TeamB)

	d := &idleDriver{}
	r := m.Run([2]Driver{d, d}, 50)
	if r.Winner != model.TeamB {
		t.Errorf("winner = %v, want B", r.Winner)
	}
	if r.Rounds != 2 {
		t.Errorf("rounds = %d, want 2", r.Rounds)
	}
	if r.Kills[model.TeamB] != 1 {
		t.Errorf("kills = %v", r.Kills)
	}
}

func TestRender(t *testing.T) {
	m := open(5, 4)
	m.SetTile(loc(0, 0), model.Wall)
	m.SetTile(loc(4, 3), model.Dirt)
	m.SetCheese(loc(4, 0), 3)
	m.Place(model.TeamA, model.Rat, loc(0, 3))
	m.Place(model.TeamB, model.King, loc(2, 1))

	want := "" +
		"a...%\n" +
		".KKK.\n" +
		".KKK.\n" +
		"#KKK*\n"
	if got := m.Render(); got != want {
		t.Errorf("Render() =\n%s\nwant\n%s", got, want)
	}
}
