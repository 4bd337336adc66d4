package comms

import "github.com/nstehr/hive/hive-core/model"

// Kind is the message type carried in a squeak's top 4 bits.
type Kind int

const (
	KindLeaderClaim  Kind = 0 // payload: lossy location of the unit becoming a leader
	KindEnemyLeader  Kind = 1 // payload: exact location
	KindMineFound    Kind = 2 // payload: lossy location
	KindSymmetry     Kind = 3 // payload: symmetry ordinal 1..3
	KindEnemySighted Kind = 4 // payload: exact location
)

const (
	payloadBits = 28
	payloadMask = 1<<payloadBits - 1
)

func (k Kind) String() string {
	switch k {
	case KindLeaderClaim:
		return "leader-claim"
	case KindEnemyLeader:
		return "enemy-leader"
	case KindMineFound:
		return "mine-found"
	case KindSymmetry:
		return "symmetry"
	case KindEnemySighted:
		return "enemy-sighted"
	}
	return "unknown"
}

// Encode packs a squeak.
func Encode(k Kind, payload int) int {
	return int(k)<<payloadBits | payload&payloadMask
}

// Decode splits a squeak into its type and payload.
func Decode(msg int) (Kind, int) {
	return Kind(msg >> payloadBits & 0xf), msg & payloadMask
}

// Referenced returns the location a squeak is about. Symmetry squeaks carry
// none.
func Referenced(msg int, codec LocCodec) (model.Loc, bool) {
	kind, payload := Decode(msg)
	switch kind {
	case KindLeaderClaim, KindMineFound:
		return codec.Decode(payload)
	case KindEnemyLeader, KindEnemySighted:
		return DecodeExact(payload), true
	}
	return model.NoLoc, false
}

// Relayer decides which received squeaks this unit forwards. A squeak is
// forwarded at most once, and only by a unit strictly closer than the sender
// to the point the squeak refers to, so every relay chain shortens
// monotonically and terminates. Squeaks without a location flow toward home.
type Relayer struct {
	codec  LocCodec
	sent   map[int]int // message → round first relayed
	expiry int
}

func NewRelayer(codec LocCodec, expiry int) *Relayer {
	return &Relayer{codec: codec, sent: make(map[int]int), expiry: expiry}
}

// Offer reports whether msg should be re-broadcast by a unit at me. home may
// be NoLoc when no leader is known.
func (r *Relayer) Offer(msg model.Message, me, home model.Loc, round int) bool {
	if _, ok := r.sent[msg.Payload]; ok {
		return false
	}
	target, ok := Referenced(msg.Payload, r.codec)
	if !ok {
		target = home
	}
	if !target.Valid() || me.DistSq(target) >= msg.SenderLoc.DistSq(target) {
		return false
	}
	r.sent[msg.Payload] = round
	return true
}

// Forget marks msg as already heard (e.g. because this unit originated it).
func (r *Relayer) Forget(payload, round int) { r.sent[payload] = round }

// Prune drops bookkeeping older than the expiry window.
func (r *Relayer) Prune(round int) {
	for k, at := range r.sent {
		if round-at > r.expiry {
			delete(r.sent, k)
		}
	}
}
