package ipc

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/nstehr/hive/hive-core/host"
)

// Driver is the simulator half of a connection. It forwards each unit's round
// to the agent on the other end and replays the commands that come back.
// Calls must not overlap.
type Driver struct {
	conn    *Connection
	matchID string
	greeted bool
	log     *slog.Logger
}

func NewDriver(conn *Connection, matchID string, log *slog.Logger) *Driver {
	if log == nil {
		log = slog.Default()
	}
	return &Driver{conn: conn, matchID: matchID, log: log}
}

func (d *Driver) greet(h host.Host) error {
	if err := d.conn.Send(TypeHello, HelloFor(h, d.matchID)); err != nil {
		return err
	}
	var ack AckMessage
	if err := d.expect(TypeAck, &ack); err != nil {
		return err
	}
	d.log.Info("bridge ready", "team", h.Team(), "session", ack.Session)
	d.greeted = true
	return nil
}

func (d *Driver) expect(msgType string, v any) error {
	env, err := d.conn.Receive()
	if err != nil {
		return err
	}
	if env.Type != msgType {
		return fmt.Errorf("expected %s, got %s", msgType, env.Type)
	}
	return env.Decode(v)
}

func (d *Driver) RunRound(h host.Host) (err error) {
	// Snapshot and replay both spend the unit's budget.
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok && errors.Is(e, host.ErrBudgetExceeded) {
				err = e
				return
			}
			panic(r)
		}
	}()
	if !d.greeted {
		if err := d.greet(h); err != nil {
			return fmt.Errorf("bridge hello: %w", err)
		}
	}
	if err := d.conn.Send(TypeRound, Snapshot(h)); err != nil {
		return err
	}
	var actions ActionsMessage
	if err := d.expect(TypeActions, &actions); err != nil {
		return err
	}
	if err := Replay(h, actions.Commands); err != nil {
		return err
	}
	if actions.Fault != "" {
		return fmt.Errorf("unit %d faulted remotely: %s", actions.Unit, actions.Fault)
	}
	return nil
}

func (d *Driver) EndRound(round int) {
	if !d.greeted {
		return
	}
	if err := d.conn.Send(TypeEndRound, EndRoundMessage{Round: round}); err != nil {
		d.log.Warn("end of round not delivered", "round", round, "error", err)
	}
}
