package agent

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/nstehr/hive/hive-core/config"
	"github.com/nstehr/hive/hive-core/host"
	"github.com/nstehr/hive/hive-core/model"
	"github.com/nstehr/hive/hive-core/trace"
)

// Session owns one team's controllers for a match, creating a controller the
// first time a unit runs and dropping it once the unit stops appearing.
type Session struct {
	ID   string
	Team model.Team

	mu          sync.Mutex
	cfg         config.Config
	cfgVersion  int
	log         *slog.Logger
	recorder    *trace.Recorder
	tuner       *Tuner
	controllers map[int]*sessionUnit
	faults      int
}

type sessionUnit struct {
	ctrl       *Controller
	cfgVersion int
	lastRound  int
}

// NewSession starts a session. rec may be nil.
func NewSession(team model.Team, cfg config.Config, rec *trace.Recorder, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	id := uuid.NewString()
	return &Session{
		ID:          id,
		Team:        team,
		cfg:         cfg,
		log:         log.With("session", id, "team", team),
		recorder:    rec,
		controllers: make(map[int]*sessionUnit),
	}
}

// AttachTuner lets t hear about round boundaries.
func (s *Session) AttachTuner(t *Tuner) {
	s.mu.Lock()
	s.tuner = t
	s.mu.Unlock()
}

// Retune swaps the tuning table. Controllers pick it up at their next round.
func (s *Session) Retune(cfg config.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	s.cfgVersion++
	s.log.Info("session retuned", "version", s.cfgVersion)
}

// Config returns the current tuning table.
func (s *Session) Config() config.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// RunRound runs the controller for the unit behind h. A *RoundFault is
// logged and returned; the unit keeps running in later rounds.
func (s *Session) RunRound(h host.Host) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.unit(h)
	if err != nil {
		return err
	}
	u.lastRound = h.Round()

	err = u.ctrl.RunRound(h)
	var fault *RoundFault
	if errors.As(err, &fault) {
		s.faults++
		s.log.Warn("unit round faulted", "unit", fault.Unit, "round", fault.Round, "error", fault.Err,
			"budgetExceeded", errors.Is(err, host.ErrBudgetExceeded))
	}
	s.record(u.ctrl, h.Round(), err)
	return err
}

func (s *Session) unit(h host.Host) (*sessionUnit, error) {
	u, ok := s.controllers[h.ID()]
	if !ok {
		ctrl, err := New(h, s.cfg, s.log)
		if err != nil {
			return nil, err
		}
		u = &sessionUnit{ctrl: ctrl, cfgVersion: s.cfgVersion}
		s.controllers[h.ID()] = u
		s.log.Debug("controller created", "unit", h.ID(), "type", h.Type())
	}
	if u.cfgVersion != s.cfgVersion {
		if err := u.ctrl.Retune(s.cfg); err != nil {
			s.log.Error("retune failed, keeping old table", "unit", h.ID(), "error", err)
		}
		u.cfgVersion = s.cfgVersion
	}
	return u, nil
}

// EndRound drops controllers of units that did not run this round.
func (s *Session) EndRound(round int) {
	s.mu.Lock()
	for id, u := range s.controllers {
		if u.lastRound < round {
			s.log.Debug("controller dropped", "unit", id, "lastRound", u.lastRound)
			delete(s.controllers, id)
		}
	}
	t := s.tuner
	s.mu.Unlock()

	if t != nil {
		t.UpdateRound(round)
	}
}

// Controller returns the live controller for a unit.
func (s *Session) Controller(id int) (*Controller, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.controllers[id]
	if !ok {
		return nil, false
	}
	return u.ctrl, true
}

// Units returns how many controllers are live.
func (s *Session) Units() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.controllers)
}

func (s *Session) Faults() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.faults
}

func (s *Session) record(c *Controller, round int, err error) {
	if s.recorder == nil {
		return
	}
	d := c.Last()
	row := trace.Row{
		Round: int32(round),
		Unit:  int32(c.ID()),
		Team:  s.Team.String(),
	}
	if err != nil {
		row.Fault = err.Error()
	}
	if d.Round == round {
		row.Role = d.Role.String()
		row.Task = d.Task.String()
		row.X, row.Y = int32(d.Loc.X), int32(d.Loc.Y)
		row.DestX, row.DestY = int32(d.Dest.Loc.X), int32(d.Dest.Loc.Y)
		row.DestReason = d.Dest.Reason
		row.Direction = d.Dir.String()
		row.Score = int32(d.Score)
		row.Dug = d.Dug
		row.Combat = d.Combat
		row.BudgetLeft = int32(d.BudgetLeft)
		row.Refinements = int32(len(d.Refinements))
		row.Events = formatEvents(d.Events)
	}
	if err := s.recorder.Record(row); err != nil {
		s.log.Warn("trace record failed", "error", err)
	}
}
