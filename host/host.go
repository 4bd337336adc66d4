// Package host declares the unit-control API a simulator exposes to a unit's
// controller. Every call is synchronous and valid only for the current round.
// Actions come in CanX/X pairs; X must only be called right after CanX
// reported true, and returns ErrInvalidAction otherwise.
package host

import (
	"errors"

	"github.com/nstehr/hive/hive-core/comms"
	"github.com/nstehr/hive/hive-core/model"
)

var (
	// ErrBudgetExceeded is the fault a host raises when a unit overruns its
	// per-round compute quota. The round is forfeit.
	ErrBudgetExceeded = errors.New("host: round budget exceeded")
	ErrInvalidAction  = errors.New("host: invalid action")
	ErrNotReady       = errors.New("host: cooldown not ready")
)

// Identity is read-only information about the unit and the match.
type Identity interface {
	ID() int
	Team() model.Team
	Type() model.UnitType
	Round() int
	MapWidth() int
	MapHeight() int
	Constants() model.Constants
}

// Sensor returns bounded snapshots of the unit's surroundings.
type Sensor interface {
	Self() model.UnitInfo
	GlobalCheese() int
	// Population is the number of living units on the caller's team.
	Population() int
	SenseNearbyTiles() []model.TileInfo
	// SenseNearbyUnits lists units within radiusSq of the caller, excluding
	// itself. A negative radius means the unit's vision radius.
	SenseNearbyUnits(radiusSq int, team model.Team) []model.UnitInfo
	SenseUnitAt(l model.Loc) (model.UnitInfo, bool)
}

// Mover covers movement and orientation.
type Mover interface {
	MovementReady() bool
	CanMove(d model.Direction) bool
	Move(d model.Direction) error
	CanTurn(d model.Direction) bool
	Turn(d model.Direction) error
}

// Actor covers the cooldown-gated, usually cheese-spending actions.
type Actor interface {
	ActionReady() bool
	CanAttack(l model.Loc) bool
	Attack(l model.Loc, cheese int) error
	CanRemoveDirt(l model.Loc) bool
	RemoveDirt(l model.Loc) error
	CanPlaceDirt(l model.Loc) bool
	PlaceDirt(l model.Loc) error
	CanPickUpCheese(l model.Loc) bool
	PickUpCheese(l model.Loc) error
	CanTransferCheese(l model.Loc, amount int) bool
	TransferCheese(l model.Loc, amount int) error
	CanCarry(l model.Loc) bool
	Carry(l model.Loc) error
	CanThrow(d model.Direction) bool
	Throw(d model.Direction) error
	CanBecomeLeader() bool
	BecomeLeader() error
	CanSpawn(l model.Loc) bool
	Spawn(l model.Loc) error
}

// Radio is the short-range squeak channel.
type Radio interface {
	Broadcast(msg int) error
	// ReadBroadcasts returns squeaks sent during round that reached this unit.
	// Only the last couple of rounds are retained.
	ReadBroadcasts(round int) []model.Message
}

// Budget reports the compute left in the current round.
type Budget interface {
	BudgetLeft() int
}

// Host is everything a controller needs from the simulator.
type Host interface {
	Identity
	Sensor
	Mover
	Actor
	comms.SharedMemory
	Radio
	Budget
}
