package combat

import (
	"errors"
	"sync"

	"github.com/hexquarry/battle/types"
)

// ErrUnknownMatch is returned by Join for a match_id the Room does not
// recognize: a join against an unknown match_id is rejected outright.
var ErrUnknownMatch = errors.New("combat: unknown match_id")

const frameBufferSize = 4

type subscriber struct {
	ch chan types.CombatFrame
}

type matchTopic struct {
	mu          sync.Mutex
	subscribers map[*subscriber]struct{}
	lastSnapshot *types.CombatState
}

// Room is a per-process registry of live matches and their subscribers.
// Shares its dispatch shape with pipeline.ProgressHub: a mutex-guarded map
// of topics, a non-busy-spin broadcast, snapshot-on-join.
type Room struct {
	mu      sync.Mutex
	matches map[string]*matchTopic
}

// NewRoom creates an empty Room.
func NewRoom() *Room {
	return &Room{matches: make(map[string]*matchTopic)}
}

// Open registers matchID as live so it can accept joins, publishing its
// initial snapshot. Called once, when a Match starts.
func (r *Room) Open(matchID string, initial *types.CombatState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.matches[matchID] = &matchTopic{subscribers: make(map[*subscriber]struct{}), lastSnapshot: initial}
}

// Join subscribes to matchID's combat stream. The returned channel first
// receives a `joined` frame, then the current snapshot, matching the
// combat stream boundary. Returns ErrUnknownMatch if matchID was never
// opened or has already been torn down.
func (r *Room) Join(matchID string) (<-chan types.CombatFrame, func(), error) {
	r.mu.Lock()
	topic, ok := r.matches[matchID]
	r.mu.Unlock()
	if !ok {
		return nil, nil, ErrUnknownMatch
	}

	sub := &subscriber{ch: make(chan types.CombatFrame, frameBufferSize)}

	topic.mu.Lock()
	topic.subscribers[sub] = struct{}{}
	sub.ch <- types.CombatFrame{ContractVersion: types.ContractVersion, Type: types.CombatFrameJoined, MatchID: matchID}
	if topic.lastSnapshot != nil {
		sub.ch <- types.CombatFrame{ContractVersion: types.ContractVersion, Type: types.CombatFrameState, MatchID: matchID, Snapshot: topic.lastSnapshot}
	}
	topic.mu.Unlock()

	unsubscribe := func() {
		topic.mu.Lock()
		_, stillOpen := topic.subscribers[sub]
		if stillOpen {
			delete(topic.subscribers, sub)
		}
		topic.mu.Unlock()
		if stillOpen {
			r.emitLeft(matchID, sub)
		}
	}
	return sub.ch, unsubscribe, nil
}

func (r *Room) emitLeft(matchID string, sub *subscriber) {
	select {
	case sub.ch <- types.CombatFrame{ContractVersion: types.ContractVersion, Type: types.CombatFrameLeft, MatchID: matchID}:
	default:
	}
}

// Broadcast publishes a non-terminal state snapshot to every subscriber of
// matchID on every call; the caller sets the broadcast cadence (quarry
// combat calls it at simulator.broadcast_hz, independent of the simulation
// tick rate). No-op for an unknown or already-closed match.
func (r *Room) Broadcast(matchID string, snapshot *types.CombatState) {
	r.mu.Lock()
	topic, ok := r.matches[matchID]
	r.mu.Unlock()
	if !ok {
		return
	}

	frame := types.CombatFrame{ContractVersion: types.ContractVersion, Type: types.CombatFrameState, MatchID: matchID, Snapshot: snapshot}

	topic.mu.Lock()
	topic.lastSnapshot = snapshot
	for sub := range topic.subscribers {
		sendOrCoalesce(sub.ch, frame)
	}
	topic.mu.Unlock()
}

// Complete publishes the terminal result frame, then tears the match down:
// every subscriber channel is closed and the match is removed from the
// room.
func (r *Room) Complete(matchID string, result *types.MatchResult) {
	r.mu.Lock()
	topic, ok := r.matches[matchID]
	if ok {
		delete(r.matches, matchID)
	}
	r.mu.Unlock()
	if !ok {
		return
	}

	frame := types.CombatFrame{ContractVersion: types.ContractVersion, Type: types.CombatFrameCompleted, MatchID: matchID, Result: result}

	topic.mu.Lock()
	defer topic.mu.Unlock()
	for sub := range topic.subscribers {
		sendOrCoalesce(sub.ch, frame)
		close(sub.ch)
		delete(topic.subscribers, sub)
	}
}

func sendOrCoalesce(ch chan types.CombatFrame, frame types.CombatFrame) {
	select {
	case ch <- frame:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- frame:
	default:
	}
}
