package comms

import "github.com/nstehr/hive/hive-core/model"

// Heartbeat turns each leader's toggling alive bit into a liveness detector.
// On first sight of an occupied slot the current bit is snapshotted; if the bit
// then stays unchanged for a full window of rounds the leader is presumed dead.
// A leader's tracker clears the slot. Everyone else only stops trusting it
// until the slot moves or its bit toggles again.
type Heartbeat struct {
	window int
	own    int
	slots  []watch
}

type watch struct {
	tracking bool
	dead     bool
	bit      bool
	loc      model.Loc
	since    int
}

func NewHeartbeat(slots, window int) *Heartbeat {
	return &Heartbeat{window: max(window, 1), own: -1, slots: make([]watch, slots)}
}

// Own marks a slot as held by this unit; it is never judged, and the tracker
// may clear the slots of dead peers.
func (h *Heartbeat) Own(slot int) { h.own = slot }

// Tracking reports whether a slot is currently being watched.
func (h *Heartbeat) Tracking(slot int) bool {
	return slot >= 0 && slot < len(h.slots) && h.slots[slot].tracking
}

// Dead reports whether an occupied slot is presumed dead but not yet cleared.
func (h *Heartbeat) Dead(slot int) bool {
	return slot >= 0 && slot < len(h.slots) && h.slots[slot].dead
}

// Observe runs one round of liveness checks and returns the slots newly
// presumed dead.
func (h *Heartbeat) Observe(s *Shared, round int) ([]int, error) {
	var dead []int
	for i := range h.slots {
		if i == h.own {
			continue
		}
		w := &h.slots[i]
		loc, occupied, err := s.LeaderLoc(i)
		if err != nil {
			return dead, err
		}
		if !occupied {
			*w = watch{}
			continue
		}
		bit, err := s.Alive(i)
		if err != nil {
			return dead, err
		}
		switch {
		case !w.tracking || loc != w.loc:
			*w = watch{tracking: true, bit: bit, loc: loc, since: round}
		case bit != w.bit:
			w.bit, w.dead, w.since = bit, false, round
		case w.dead:
		case round-w.since >= h.window:
			if h.own >= 0 {
				if err := s.ClearLeader(i); err != nil {
					return dead, err
				}
				*w = watch{}
			} else {
				w.dead = true
			}
			dead = append(dead, i)
		}
	}
	return dead, nil
}
