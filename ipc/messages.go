package ipc

import "github.com/nstehr/hive/hive-core/model"

// These constants must stay in sync with the simulator's message dispatcher.
const (
	TypeHello    = "hello"
	TypeAck      = "ack"
	TypeRound    = "round"
	TypeActions  = "actions"
	TypeEndRound = "end_round"
)

// HelloMessage opens a session for one team.
type HelloMessage struct {
	Team      model.Team      `json:"team"`
	Width     int             `json:"width"`
	Height    int             `json:"height"`
	Constants model.Constants `json:"constants"`
	MatchID   string          `json:"matchId,omitempty"`
}

type AckMessage struct {
	Status  string `json:"status"`
	Session string `json:"session,omitempty"`
}

// RoundMessage is one unit's view of the current round. The simulator
// precomputes the checks a controller cannot derive from the snapshot alone.
type RoundMessage struct {
	Round         int               `json:"round"`
	Unit          model.UnitInfo    `json:"unit"`
	TeamCheese    int               `json:"teamCheese"`
	Population    int               `json:"population"`
	Tiles         []model.TileInfo  `json:"tiles"`
	Units         []model.UnitInfo  `json:"units"`
	Shared        []int             `json:"shared"`
	Squeaks       []model.Message   `json:"squeaks"`
	Movable       []model.Direction `json:"movable"`
	MovementReady bool              `json:"movementReady"`
	ActionReady   bool              `json:"actionReady"`
	CanPromote    bool              `json:"canPromote"`
	Budget        int               `json:"budget"`
}

// ActionsMessage answers a RoundMessage with everything the unit did.
type ActionsMessage struct {
	Unit     int       `json:"unit"`
	Round    int       `json:"round"`
	Commands []Command `json:"commands"`
	Fault    string    `json:"fault,omitempty"`
}

// EndRoundMessage tells the bridge every unit of the team has run.
type EndRoundMessage struct {
	Round int `json:"round"`
}
