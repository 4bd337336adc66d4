package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nstehr/hive/hive-core/config"
	"github.com/nstehr/hive/hive-core/ipc"
	"github.com/nstehr/hive/hive-core/model"
	"github.com/nstehr/hive/hive-core/trace"
)

// Options are shared by every connection the bridge accepts.
type Options struct {
	Config     config.Config
	TuningPath string // watched for changes when set
	TuneEvery  int
	Recorder   *trace.Recorder
	Logger     *slog.Logger
}

// Agent serves one simulator connection for a single team.
type Agent struct {
	Conn    *ipc.Connection
	ctx     context.Context
	opts    Options
	hello   ipc.HelloMessage
	session *Session
}

func NewAgent(ctx context.Context, conn *ipc.Connection, opts Options) *Agent {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Agent{Conn: conn, ctx: ctx, opts: opts}
}

// Session is nil until the hello handshake has completed.
func (a *Agent) Session() *Session { return a.session }

// Register wires the agent's handlers into its connection.
func (a *Agent) Register() {
	a.Conn.RegisterHandler(ipc.TypeHello, a.HandleHello)
	a.Conn.RegisterHandler(ipc.TypeRound, a.HandleRound)
	a.Conn.RegisterHandler(ipc.TypeEndRound, a.HandleEndRound)
}

// HandleHello opens the team's session so the simulator knows the bridge is ready.
func (a *Agent) HandleHello(env ipc.Envelope) (*ipc.Envelope, error) {
	var hello ipc.HelloMessage
	if err := env.Decode(&hello); err != nil {
		return nil, err
	}
	if hello.Team != model.TeamA && hello.Team != model.TeamB {
		return nil, fmt.Errorf("hello for unknown team %d", hello.Team)
	}
	if a.Conn.Team != "" && a.Conn.Team != hello.Team.String() {
		return nil, fmt.Errorf("hello for team %s on a connection authorized for %s", hello.Team, a.Conn.Team)
	}
	if hello.Constants == (model.Constants{}) {
		hello.Constants = model.DefaultConstants()
	}

	a.hello = hello
	a.session = NewSession(hello.Team, a.opts.Config, a.opts.Recorder, a.opts.Logger)
	a.Conn.Team = hello.Team.String()
	if a.opts.TuningPath != "" {
		go NewTuner(a.session, a.opts.TuningPath, a.opts.TuneEvery).Start(a.ctx)
	}
	a.opts.Logger.Info("team identified",
		"team", hello.Team,
		"session", a.session.ID,
		"match", hello.MatchID,
		"map", fmt.Sprintf("%dx%d", hello.Width, hello.Height),
	)

	ack, err := ipc.NewEnvelope(ipc.TypeAck, ipc.AckMessage{Status: "ok", Session: a.session.ID})
	if err != nil {
		return nil, err
	}
	return &ack, nil
}

// HandleRound runs one unit's turn against the snapshot and replies with the
// actions it took. A faulted round still replies, with whatever was recorded
// before the fault.
func (a *Agent) HandleRound(env ipc.Envelope) (*ipc.Envelope, error) {
	if a.session == nil {
		return nil, errors.New("round received before hello")
	}
	var snap ipc.RoundMessage
	if err := env.Decode(&snap); err != nil {
		return nil, err
	}

	h := ipc.NewRemoteHost(a.hello, snap)
	reply := ipc.ActionsMessage{Unit: snap.Unit.ID, Round: snap.Round}
	if err := a.session.RunRound(h); err != nil {
		reply.Fault = err.Error()
	}
	reply.Commands = h.Commands()

	out, err := ipc.NewEnvelope(ipc.TypeActions, reply)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *Agent) HandleEndRound(env ipc.Envelope) (*ipc.Envelope, error) {
	if a.session == nil {
		return nil, errors.New("end of round received before hello")
	}
	var msg ipc.EndRoundMessage
	if err := env.Decode(&msg); err != nil {
		return nil, err
	}
	a.session.EndRound(msg.Round)
	return nil, nil
}
