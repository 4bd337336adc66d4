package ipc

import "github.com/nstehr/hive/hive-core/model"

// Command type constants; must stay in sync with the simulator's action executor.
const (
	CmdMove         = "move"
	CmdTurn         = "turn"
	CmdAttack       = "attack"
	CmdRemoveDirt   = "remove_dirt"
	CmdPlaceDirt    = "place_dirt"
	CmdPickUp       = "pick_up_cheese"
	CmdTransfer     = "transfer_cheese"
	CmdCarry        = "carry"
	CmdThrow        = "throw"
	CmdBecomeLeader = "become_leader"
	CmdSpawn        = "spawn"
	CmdWriteShared  = "write_shared"
	CmdSqueak       = "squeak"
)

// Command is one recorded host call, replayed by the simulator in order.
// Only the fields its type needs are set.
type Command struct {
	Type   string          `json:"type"`
	Dir    model.Direction `json:"dir,omitempty"`
	Loc    *model.Loc      `json:"loc,omitempty"`
	Amount int             `json:"amount,omitempty"`
	Index  int             `json:"index,omitempty"`
	Value  int             `json:"value,omitempty"`
}

func dirCommand(t string, d model.Direction) Command { return Command{Type: t, Dir: d} }

func locCommand(t string, l model.Loc, amount int) Command {
	return Command{Type: t, Loc: &l, Amount: amount}
}
