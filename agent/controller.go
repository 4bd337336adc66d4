// Package agent drives one controller per unit. A Controller is the unit's
// whole private memory; it runs the round pipeline (sense, sync shared state,
// decide, act, publish) once per round and never shares state with other
// controllers except through the host's shared array and squeaks.
package agent

import (
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/nstehr/hive/hive-core/comms"
	"github.com/nstehr/hive/hive-core/config"
	"github.com/nstehr/hive/hive-core/host"
	"github.com/nstehr/hive/hive-core/micro"
	"github.com/nstehr/hive/hive-core/model"
	"github.com/nstehr/hive/hive-core/nav"
	"github.com/nstehr/hive/hive-core/rules"
	"github.com/nstehr/hive/hive-core/world"
)

// Role is what the unit currently is. Promotion to leader is irreversible.
type Role int

const (
	RoleUnit Role = iota
	RoleLeader
)

func (r Role) String() string {
	if r == RoleLeader {
		return "leader"
	}
	return "unit"
}

// RoundFault is a host fault or panic caught at the top of a round. The round
// is abandoned; the controller keeps everything it had committed before.
type RoundFault struct {
	Unit  int
	Round int
	Err   error
}

func (f *RoundFault) Error() string {
	return fmt.Sprintf("unit %d round %d: %v", f.Unit, f.Round, f.Err)
}

func (f *RoundFault) Unwrap() error { return f.Err }

// Decision summarises what a controller did in one round.
type Decision struct {
	Round       int
	Role        Role
	Task        rules.Task
	Loc         model.Loc
	Dest        rules.Destination
	Dir         model.Direction
	Score       int
	Dug         bool
	Combat      string
	BudgetLeft  int
	Refinements []string
	Events      []Event
}

// Controller is one unit's decision core.
type Controller struct {
	cfg    config.Config
	log    *slog.Logger
	layout comms.Layout
	codec  comms.LocCodec

	id     int
	team   model.Team
	consts model.Constants

	world      *world.Map
	registry   *comms.Registry
	heartbeat  *comms.Heartbeat
	relayer    *comms.Relayer
	nav        *nav.Navigator
	planner    *rules.Planner
	tasks      *rules.Engine
	directives *rules.Engine
	rng        *rand.Rand

	role Role
	task rules.Task
	slot int

	p           perception
	heard       []model.Message
	outbox      []int
	sharedSym   world.Symmetry
	sharedMines *comms.IntSet

	origin           model.Loc
	leaders          []comms.LeaderEntry
	claims           map[model.Loc]int // leader-claim squeaks by round heard
	assemble         model.Loc
	enemyLeader      model.Loc
	enemyLeaderRound int
	sightings        []sighting
	hazards          map[int]micro.Sighting
	visitedSpawns    map[model.Loc]bool
	symmetryNews     bool
	lastContactSqk   int
	mineGoal         int
	expiredNoted     model.Loc
	assembleFor      model.Loc
	assembleFrom     int
	assembleLeaders  int
	registryFull     bool
	slotWarned       bool
	lastDiagRound    int

	events []Event
	prev   *stateSnapshot
	last   Decision
	faults int
}

type sighting struct {
	Loc   model.Loc
	Round int
}

// New builds a controller for the unit described by id. Rule conditions are
// compiled here, so a bad table fails before the first round.
func New(id host.Identity, cfg config.Config, log *slog.Logger) (*Controller, error) {
	if log == nil {
		log = slog.Default()
	}
	consts := id.Constants()
	w, h := id.MapWidth(), id.MapHeight()
	log = log.With("unit", id.ID(), "team", id.Team())

	layout := comms.DefaultLayout
	if consts.MaxLeaders > 0 && consts.MaxLeaders < layout.MaxLeaders {
		layout.MaxLeaders = consts.MaxLeaders
	}
	if consts.SharedArraySize > layout.Mines && consts.SharedArraySize < layout.Size {
		layout.Size = consts.SharedArraySize
	}
	codec := comms.NewLocCodec(w, h)

	c := &Controller{
		cfg:            cfg,
		log:            log,
		layout:         layout,
		codec:          codec,
		id:             id.ID(),
		team:           id.Team(),
		consts:         consts,
		world:          world.New(w, h),
		registry:       comms.NewRegistry(codec),
		heartbeat:      comms.NewHeartbeat(layout.MaxLeaders, cfg.Comms.HeartbeatWindow),
		relayer:        comms.NewRelayer(codec, squeakMemory),
		nav:            nav.New(cfg.Nav),
		planner:        rules.NewPlanner(cfg.Tasks),
		rng:            rand.New(rand.NewSource(int64(id.ID())*7919 + int64(id.Team()))),
		slot:           -1,
		origin:         model.NoLoc,
		claims:         make(map[model.Loc]int),
		assemble:       model.NoLoc,
		enemyLeader:    model.NoLoc,
		hazards:        make(map[int]micro.Sighting),
		visitedSpawns:  make(map[model.Loc]bool),
		lastContactSqk: -contactSqueakEvery,
		expiredNoted:   model.NoLoc,
		sharedMines:    comms.NewIntSet(),
		assembleFor:    model.NoLoc,
		lastDiagRound:  -diagInterval,
	}

	tasks, err := rules.NewEngine(rules.CompileTasks(cfg.Tasks), log)
	if err != nil {
		return nil, fmt.Errorf("task rules: %w", err)
	}
	c.tasks = tasks
	if id.Type() == model.King {
		if err := c.promote(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

const (
	squeakMemory       = 10 // rounds a relayed payload is remembered
	claimMemory        = 5
	sightingMemory     = 3
	contactSqueakEvery = 5
	maxSqueaks         = 3
	maxRelays          = 2
)

func (c *Controller) ID() int                   { return c.id }
func (c *Controller) Role() Role                { return c.role }
func (c *Controller) Task() rules.Task          { return c.task }
func (c *Controller) Slot() int                 { return c.slot }
func (c *Controller) World() *world.Map         { return c.world }
func (c *Controller) Registry() *comms.Registry { return c.registry }
func (c *Controller) Last() Decision            { return c.last }
func (c *Controller) Faults() int               { return c.faults }

// promote switches the controller to the leader role and compiles the
// directive rules.
func (c *Controller) promote() error {
	if c.directives == nil {
		d, err := rules.NewEngine(rules.CompileLeader(c.cfg.Leader), c.log)
		if err != nil {
			return fmt.Errorf("leader rules: %w", err)
		}
		c.directives = d
	}
	c.role = RoleLeader
	c.task = rules.Idle
	c.planner.Clear()
	return nil
}

// RunRound executes one round. Host errors and panics (budget exhaustion
// included) abandon the round and come back as a *RoundFault.
func (c *Controller) RunRound(h host.Host) (err error) {
	round := h.Round()
	defer func() {
		if r := recover(); r != nil {
			perr, ok := r.(error)
			if !ok {
				perr = fmt.Errorf("panic: %v", r)
			}
			err = &RoundFault{Unit: c.id, Round: round, Err: perr}
		}
		if err != nil {
			c.faults++
			c.log.Warn("round abandoned", "round", round, "error", err)
		}
	}()

	if err := c.round(h, round); err != nil {
		return &RoundFault{Unit: c.id, Round: round, Err: err}
	}
	return nil
}

func (c *Controller) round(h host.Host, round int) error {
	c.events = c.events[:0]
	c.outbox = c.outbox[:0]
	shared := comms.NewShared(h, c.layout, c.codec)

	c.sense(h, round)
	if err := c.sync(h, shared, round); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	if h.Type() == model.King && c.role != RoleLeader {
		if err := c.promote(); err != nil {
			return err
		}
	}

	var (
		d   Decision
		err error
	)
	if c.role == RoleLeader {
		d, err = c.leaderRound(h, shared, round)
	} else {
		d, err = c.unitRound(h, shared, round)
	}
	if err != nil {
		return err
	}

	d.Refinements = append(d.Refinements, c.refine(h, shared, round, phaseEndOfRound)...)
	if err := c.publish(h, round); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	c.registry.EndRound()

	c.detect(round)
	d.Round = round
	d.Role = c.role
	d.Events = append([]Event(nil), c.events...)
	d.BudgetLeft = h.BudgetLeft()
	c.last = d
	return nil
}

// squeak queues an outgoing message; publish sends the queue at end of round.
func (c *Controller) squeak(k comms.Kind, payload int) {
	msg := comms.Encode(k, payload)
	for _, m := range c.outbox {
		if m == msg {
			return
		}
	}
	c.outbox = append(c.outbox, msg)
}

func (c *Controller) publish(h host.Host, round int) error {
	sent := 0
	for _, msg := range c.outbox {
		if sent == maxSqueaks {
			break
		}
		if err := h.Broadcast(msg); err != nil {
			return err
		}
		c.relayer.Forget(msg, round)
		sent++
	}
	c.relayer.Prune(round)
	return nil
}

// Retune swaps the tuning table. Rule conditions are recompiled first so a
// bad table leaves the controller untouched; navigation and destination
// memory restart under the new table.
func (c *Controller) Retune(cfg config.Config) error {
	tasks, err := rules.NewEngine(rules.CompileTasks(cfg.Tasks), c.log)
	if err != nil {
		return fmt.Errorf("task rules: %w", err)
	}
	var directives *rules.Engine
	if c.role == RoleLeader {
		if directives, err = rules.NewEngine(rules.CompileLeader(cfg.Leader), c.log); err != nil {
			return fmt.Errorf("leader rules: %w", err)
		}
	}
	c.cfg = cfg
	c.tasks = tasks
	c.directives = directives
	c.planner = rules.NewPlanner(cfg.Tasks)
	c.nav = nav.New(cfg.Nav)
	return nil
}
