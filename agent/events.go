package agent

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nstehr/hive/hive-core/model"
	"github.com/nstehr/hive/hive-core/world"
)

// EventKind identifies a notable change in a unit's view of the match.
type EventKind string

const (
	EventLeaderLost       EventKind = "leader_lost"
	EventLeaderJoined     EventKind = "leader_joined"
	EventSymmetryResolved EventKind = "symmetry_resolved"
	EventFirstContact     EventKind = "first_contact"
	EventEnemyLeaderFound EventKind = "enemy_leader_found"
	EventPromoted         EventKind = "promoted"
	EventRegistryFull     EventKind = "registry_full"
	EventAssemblyExpired  EventKind = "assembly_expired"
)

// Event is detected by diffing consecutive end-of-round snapshots.
type Event struct {
	Kind   EventKind
	Round  int
	Detail string
}

// stateSnapshot captures the diffable parts of a controller at end of round.
type stateSnapshot struct {
	role         Role
	leaderSlots  map[int]model.Loc
	symmetry     world.Symmetry
	contact      bool // any enemy seen so far
	enemyLeader  model.Loc
	registryFull bool
	expired      model.Loc // assembly point this unit gave up on
}

func (c *Controller) takeSnapshot() stateSnapshot {
	snap := stateSnapshot{
		role:         c.role,
		leaderSlots:  make(map[int]model.Loc, len(c.leaders)),
		symmetry:     c.world.Symmetry(),
		contact:      len(c.p.enemies) > 0 || (c.prev != nil && c.prev.contact),
		enemyLeader:  c.enemyLeader,
		registryFull: c.registryFull,
		expired:      model.NoLoc,
	}
	for _, e := range c.leaders {
		snap.leaderSlots[e.Slot] = e.Loc
	}
	if c.planner.AssemblyExpired(c.assemble) {
		snap.expired = c.assemble
	}
	return snap
}

// detect diffs this round against the last and appends events.
func (c *Controller) detect(round int) {
	cur := c.takeSnapshot()
	events := detectEvents(c.prev, &cur, round)
	for _, e := range events {
		c.log.Debug("event", "kind", e.Kind, "round", e.Round, "detail", e.Detail)
	}
	c.events = append(c.events, events...)
	c.prev = &cur
}

// detectEvents returns nil on the first round (prev == nil).
func detectEvents(prev, cur *stateSnapshot, round int) []Event {
	if prev == nil {
		return nil
	}
	var events []Event

	for slot, l := range prev.leaderSlots {
		if _, ok := cur.leaderSlots[slot]; !ok {
			events = append(events, Event{
				Kind:   EventLeaderLost,
				Round:  round,
				Detail: fmt.Sprintf("slot %d at %v cleared", slot, l),
			})
		}
	}
	for slot, l := range cur.leaderSlots {
		if _, ok := prev.leaderSlots[slot]; !ok {
			events = append(events, Event{
				Kind:   EventLeaderJoined,
				Round:  round,
				Detail: fmt.Sprintf("slot %d at %v", slot, l),
			})
		}
	}

	if !prev.symmetry.Valid() && cur.symmetry.Valid() {
		events = append(events, Event{Kind: EventSymmetryResolved, Round: round, Detail: cur.symmetry.String()})
	}

	if !prev.contact && cur.contact {
		events = append(events, Event{Kind: EventFirstContact, Round: round, Detail: "enemy in view"})
	}

	if !prev.enemyLeader.Valid() && cur.enemyLeader.Valid() {
		events = append(events, Event{Kind: EventEnemyLeaderFound, Round: round, Detail: cur.enemyLeader.String()})
	}

	if prev.role != RoleLeader && cur.role == RoleLeader {
		events = append(events, Event{Kind: EventPromoted, Round: round, Detail: "now a leader"})
	}

	if !prev.registryFull && cur.registryFull {
		events = append(events, Event{Kind: EventRegistryFull, Round: round, Detail: "mine registry at capacity"})
	}

	if cur.expired.Valid() && cur.expired != prev.expired {
		events = append(events, Event{Kind: EventAssemblyExpired, Round: round, Detail: cur.expired.String()})
	}

	// Map iteration above is random.
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Kind != events[j].Kind {
			return events[i].Kind < events[j].Kind
		}
		return events[i].Detail < events[j].Detail
	})
	return events
}

// formatEvents renders events on one line for logs and traces.
func formatEvents(events []Event) string {
	if len(events) == 0 {
		return ""
	}
	parts := make([]string, 0, len(events))
	for _, e := range events {
		parts = append(parts, fmt.Sprintf("%s: %s", e.Kind, e.Detail))
	}
	return strings.Join(parts, "; ")
}
