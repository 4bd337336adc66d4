package ipc

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nstehr/hive/hive-core/host"
	"github.com/nstehr/hive/hive-core/model"
	"github.com/nstehr/hive/hive-core/sim"
)

func testHello() HelloMessage {
	return HelloMessage{Team: model.TeamA, Width: 20, Height: 20, Constants: model.DefaultConstants()}
}

// openRound is a ready rat at (5,5) seeing a 5×5 empty square with dirt east
// of it.
func openRound() RoundMessage {
	snap := RoundMessage{
		Round:         7,
		Unit:          model.UnitInfo{ID: 3, Team: model.TeamA, Type: model.Rat, Loc: model.Loc{X: 5, Y: 5}, Health: 100},
		TeamCheese:    40,
		Population:    4,
		MovementReady: true,
		ActionReady:   true,
		Movable:       []model.Direction{model.North, model.South},
	}
	for x := 3; x <= 7; x++ {
		for y := 3; y <= 7; y++ {
			snap.Tiles = append(snap.Tiles, model.TileInfo{Loc: model.Loc{X: x, Y: y}, Kind: model.Empty})
		}
	}
	for i, t := range snap.Tiles {
		if t.Loc == (model.Loc{X: 6, Y: 5}) {
			snap.Tiles[i].Kind = model.Dirt
		}
	}
	return snap
}

func commandTypes(cmds []Command) []string {
	var out []string
	for _, c := range cmds {
		out = append(out, c.Type)
	}
	return out
}

func TestEnvelopeOverStream(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	go func() {
		env, _ := NewEnvelope(TypeEndRound, EndRoundMessage{Round: 12})
		WriteEnvelope(a, env)
	}()

	env, err := ReadEnvelope(b)
	if err != nil {
		t.Fatal(err)
	}
	if env.Type != TypeEndRound {
		t.Fatalf("type = %q", env.Type)
	}
	var msg EndRoundMessage
	if err := env.Decode(&msg); err != nil {
		t.Fatal(err)
	}
	if msg.Round != 12 {
		t.Errorf("round = %d, want 12", msg.Round)
	}
}

func TestReadEnvelopeRejectsBadLength(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
	}{
		{"zero", []byte{0, 0, 0, 0}},
		{"oversized", []byte{0, 0, 0, 0x10}},
		{"truncated", []byte{10, 0, 0, 0, '{'}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ReadEnvelope(bytes.NewReader(tc.frame)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestRemoteHostRecordsActions(t *testing.T) {
	h := NewRemoteHost(testHello(), openRound())

	if !h.CanMove(model.North) {
		t.Fatal("north should be movable")
	}
	if h.CanMove(model.East) {
		t.Error("east is dirt")
	}
	if err := h.Move(model.North); err != nil {
		t.Fatal(err)
	}
	if h.CanMove(model.South) {
		t.Error("moved twice in one round")
	}
	if got := h.Self().Loc; got != (model.Loc{X: 5, Y: 6}) {
		t.Errorf("loc after move = %v", got)
	}

	dirt := model.Loc{X: 6, Y: 5}
	if !h.CanRemoveDirt(dirt) {
		t.Fatal("dirt within reach should be removable")
	}
	if err := h.RemoveDirt(dirt); err != nil {
		t.Fatal(err)
	}
	if h.ActionReady() {
		t.Error("action still ready after digging")
	}
	if got := h.GlobalCheese(); got != 30 {
		t.Errorf("team cheese = %d, want 30", got)
	}
	if err := h.Broadcast(9); err != nil {
		t.Fatal(err)
	}

	got := strings.Join(commandTypes(h.Commands()), ",")
	if want := "move,remove_dirt,squeak"; got != want {
		t.Errorf("commands = %s, want %s", got, want)
	}
}

func TestRemoteHostBudgetPanics(t *testing.T) {
	snap := openRound()
	snap.Budget = 15
	h := NewRemoteHost(testHello(), snap)
	h.MovementReady()

	defer func() {
		err, ok := recover().(error)
		if !ok || !errors.Is(err, host.ErrBudgetExceeded) {
			t.Errorf("recovered %v, want ErrBudgetExceeded", err)
		}
	}()
	h.MovementReady()
	t.Error("second call should have overrun the budget")
}

func TestRemoteHostWriteSharedIsLeaderOnly(t *testing.T) {
	snap := openRound()
	h := NewRemoteHost(testHello(), snap)
	if err := h.WriteShared(0, 5); !errors.Is(err, host.ErrInvalidAction) {
		t.Errorf("rat write err = %v", err)
	}

	snap.Unit.Type = model.King
	h = NewRemoteHost(testHello(), snap)
	if err := h.WriteShared(2, 5); err != nil {
		t.Fatal(err)
	}
	if v, _ := h.ReadShared(2); v != 5 {
		t.Errorf("read back %d", v)
	}
	if err := h.WriteShared(64, 1); err == nil {
		t.Error("out of range write accepted")
	}
	if len(h.Commands()) != 1 || h.Commands()[0].Type != CmdWriteShared {
		t.Errorf("commands = %+v", h.Commands())
	}
}

func TestReadBroadcastsFiltersRound(t *testing.T) {
	snap := openRound()
	snap.Squeaks = []model.Message{{SenderID: 1, Round: 6, Payload: 1}, {SenderID: 2, Round: 7, Payload: 2}}
	h := NewRemoteHost(testHello(), snap)
	got := h.ReadBroadcasts(6)
	if len(got) != 1 || got[0].Payload != 1 {
		t.Errorf("round 6 squeaks = %+v", got)
	}
}

func TestBridgeReplaysIntoSimulator(t *testing.T) {
	m := sim.New(sim.Options{Width: 20, Height: 20, StartCheese: 100})
	id := m.Place(model.TeamA, model.Rat, model.Loc{X: 5, Y: 5})
	sh, _ := m.Host(id)

	env, err := NewEnvelope(TypeRound, Snapshot(sh))
	if err != nil {
		t.Fatal(err)
	}
	var snap RoundMessage
	if err := env.Decode(&snap); err != nil {
		t.Fatal(err)
	}
	if len(snap.Movable) != 8 {
		t.Errorf("movable = %v, want all eight directions", snap.Movable)
	}

	rh := NewRemoteHost(HelloFor(sh, "bridge"), snap)
	if err := rh.Move(model.East); err != nil {
		t.Fatal(err)
	}
	if err := rh.Broadcast(77); err != nil {
		t.Fatal(err)
	}

	replay, _ := m.Host(id)
	if err := Replay(replay, rh.Commands()); err != nil {
		t.Fatal(err)
	}
	u, _ := m.Unit(id)
	if u.Loc != (model.Loc{X: 6, Y: 5}) {
		t.Errorf("replayed loc = %v, want (6,5)", u.Loc)
	}
}

func TestReplayStopsOnRejectedCommand(t *testing.T) {
	m := sim.New(sim.Options{Width: 20, Height: 20})
	id := m.Place(model.TeamA, model.Rat, model.Loc{X: 5, Y: 5})
	h, _ := m.Host(id)
	cmds := []Command{{Type: CmdWriteShared, Index: 0, Value: 1}, {Type: CmdTurn, Dir: model.West}}
	if err := Replay(h, cmds); !errors.Is(err, host.ErrInvalidAction) {
		t.Errorf("err = %v, want ErrInvalidAction", err)
	}
	if u, _ := m.Unit(id); u.Facing == model.West {
		t.Error("command after the rejected one was applied")
	}
}

func TestWebSocketHandshake(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(ServeWebSocket(func(c *Connection) {
		c.RegisterHandler(TypeHello, func(env Envelope) (*Envelope, error) {
			var hello HelloMessage
			if err := env.Decode(&hello); err != nil {
				return nil, err
			}
			ack, err := NewEnvelope(TypeAck, AckMessage{Status: "ok", Session: hello.MatchID})
			return &ack, err
		})
	}, nil, log))
	defer srv.Close()

	c, err := DialWebSocket(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	hello := testHello()
	hello.MatchID = "m-1"
	if err := c.Send(TypeHello, hello); err != nil {
		t.Fatal(err)
	}
	env, err := c.Receive()
	if err != nil {
		t.Fatal(err)
	}
	var ack AckMessage
	if err := env.Decode(&ack); err != nil {
		t.Fatal(err)
	}
	if env.Type != TypeAck || ack.Status != "ok" || ack.Session != "m-1" {
		t.Errorf("got %s %+v", env.Type, ack)
	}
}

// agentStub answers every round with a single squeak.
func agentStub(c *Connection) {
	c.RegisterHandler(TypeHello, func(env Envelope) (*Envelope, error) {
		ack, err := NewEnvelope(TypeAck, AckMessage{Status: "ok", Session: "stub"})
		return &ack, err
	})
	c.RegisterHandler(TypeRound, func(env Envelope) (*Envelope, error) {
		var snap RoundMessage
		if err := env.Decode(&snap); err != nil {
			return nil, err
		}
		out, err := NewEnvelope(TypeActions, ActionsMessage{
			Unit:     snap.Unit.ID,
			Round:    snap.Round,
			Commands: []Command{{Type: CmdSqueak, Value: 41}},
		})
		return &out, err
	})
}

func TestDriverOverStream(t *testing.T) {
	sim1, agentSide := net.Pipe()
	defer sim1.Close()
	ac := NewConnection(agentSide, nil)
	ac.SetLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	agentStub(ac)
	go ac.ReadLoop()

	m := sim.New(sim.Options{Width: 20, Height: 20})
	sender := m.Place(model.TeamA, model.Rat, model.Loc{X: 5, Y: 5})
	d := NewDriver(NewConnection(sim1, nil), "stream", slog.New(slog.NewTextHandler(io.Discard, nil)))

	h, _ := m.Host(sender)
	if err := d.RunRound(h); err != nil {
		t.Fatal(err)
	}
	listener := m.Place(model.TeamA, model.Rat, model.Loc{X: 5, Y: 7})
	lh, _ := m.Host(listener)
	got := lh.ReadBroadcasts(m.Round())
	if len(got) != 1 || got[0].Payload != 41 || got[0].SenderID != sender {
		t.Errorf("heard %+v", got)
	}
}

func TestAuthTokens(t *testing.T) {
	a := NewAuth("s3cret")
	tok, err := a.Token(model.TeamB)
	if err != nil {
		t.Fatal(err)
	}
	claims, err := a.Validate(tok)
	if err != nil {
		t.Fatal(err)
	}
	if claims.Team != model.TeamB.String() {
		t.Errorf("team = %q", claims.Team)
	}

	if _, err := NewAuth("other").Validate(tok); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("foreign secret err = %v", err)
	}
	if _, err := a.Validate(""); !errors.Is(err, ErrMissingToken) {
		t.Errorf("empty token err = %v", err)
	}
}

func TestWebSocketRequiresToken(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	auth := NewAuth("s3cret")
	bound := make(chan string, 1)
	srv := httptest.NewServer(ServeWebSocket(func(c *Connection) { bound <- c.Team }, auth, log))
	defer srv.Close()
	base := "ws" + strings.TrimPrefix(srv.URL, "http")

	if c, err := DialWebSocket(context.Background(), base); err == nil {
		c.Close()
		t.Fatal("dial without a token succeeded")
	}

	tok, err := auth.Token(model.TeamA)
	if err != nil {
		t.Fatal(err)
	}
	withToken, err := WithToken(base, tok)
	if err != nil {
		t.Fatal(err)
	}
	c, err := DialWebSocket(context.Background(), withToken)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if team := <-bound; team != model.TeamA.String() {
		t.Errorf("connection bound to %q, want %q", team, model.TeamA.String())
	}
}
