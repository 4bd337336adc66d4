package ipc

import (
	"fmt"

	"github.com/nstehr/hive/hive-core/host"
	"github.com/nstehr/hive/hive-core/model"
)

// HelloFor describes the match as seen by the unit behind h.
func HelloFor(h host.Host, matchID string) HelloMessage {
	return HelloMessage{
		Team:      h.Team(),
		Width:     h.MapWidth(),
		Height:    h.MapHeight(),
		Constants: h.Constants(),
		MatchID:   matchID,
	}
}

// Snapshot captures what a remote controller needs for one round of the unit
// behind h. The capture is charged to h's budget.
func Snapshot(h host.Host) RoundMessage {
	consts := h.Constants()
	snap := RoundMessage{
		Round:         h.Round(),
		Unit:          h.Self(),
		TeamCheese:    h.GlobalCheese(),
		Population:    h.Population(),
		Tiles:         h.SenseNearbyTiles(),
		Units:         h.SenseNearbyUnits(-1, model.AnyTeam),
		MovementReady: h.MovementReady(),
		ActionReady:   h.ActionReady(),
		CanPromote:    h.CanBecomeLeader(),
		Budget:        consts.RoundBudget,
		Shared:        make([]int, 0, consts.SharedArraySize),
	}
	for _, d := range model.Directions {
		if h.CanMove(d) {
			snap.Movable = append(snap.Movable, d)
		}
	}
	for i := 0; i < consts.SharedArraySize; i++ {
		v, err := h.ReadShared(i)
		if err != nil {
			break
		}
		snap.Shared = append(snap.Shared, v)
	}
	snap.Squeaks = append(h.ReadBroadcasts(snap.Round-1), h.ReadBroadcasts(snap.Round)...)
	return snap
}

// Replay applies recorded commands to h in order. The first rejected command
// stops the replay.
func Replay(h host.Host, cmds []Command) error {
	for i, c := range cmds {
		if err := apply(h, c); err != nil {
			return fmt.Errorf("command %d (%s): %w", i, c.Type, err)
		}
	}
	return nil
}

func apply(h host.Host, c Command) error {
	var at model.Loc
	switch c.Type {
	case CmdMove, CmdTurn, CmdThrow, CmdBecomeLeader, CmdWriteShared, CmdSqueak:
	default:
		if c.Loc == nil {
			return fmt.Errorf("%w: missing location", host.ErrInvalidAction)
		}
		at = *c.Loc
	}

	switch c.Type {
	case CmdMove:
		return h.Move(c.Dir)
	case CmdTurn:
		return h.Turn(c.Dir)
	case CmdAttack:
		return h.Attack(at, c.Amount)
	case CmdRemoveDirt:
		return h.RemoveDirt(at)
	case CmdPlaceDirt:
		return h.PlaceDirt(at)
	case CmdPickUp:
		return h.PickUpCheese(at)
	case CmdTransfer:
		return h.TransferCheese(at, c.Amount)
	case CmdCarry:
		return h.Carry(at)
	case CmdThrow:
		return h.Throw(c.Dir)
	case CmdBecomeLeader:
		return h.BecomeLeader()
	case CmdSpawn:
		return h.Spawn(at)
	case CmdWriteShared:
		return h.WriteShared(c.Index, c.Value)
	case CmdSqueak:
		return h.Broadcast(c.Value)
	}
	return fmt.Errorf("%w: unknown command %q", host.ErrInvalidAction, c.Type)
}
