package combat

import (
	"errors"
	"testing"

	"github.com/hexquarry/battle/types"
)

func TestRoom_JoinUnknownMatchIsRejected(t *testing.T) {
	r := NewRoom()
	_, _, err := r.Join("nope")
	if !errors.Is(err, ErrUnknownMatch) {
		t.Errorf("expected %v, got %v", ErrUnknownMatch, err)
	}
}

func TestRoom_JoinDeliversJoinedThenSnapshot(t *testing.T) {
	r := NewRoom()
	r.Open("m1", &types.CombatState{MatchID: "m1", Tick: 5})

	ch, unsubscribe, err := r.Join("m1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer unsubscribe()

	first := <-ch
	if first.Type != types.CombatFrameJoined {
		t.Errorf("expected frame type %v, got %v", types.CombatFrameJoined, first.Type)
	}

	second := <-ch
	if second.Type != types.CombatFrameState {
		t.Errorf("expected frame type %v, got %v", types.CombatFrameState, second.Type)
	}
	if second.Snapshot.Tick != 5 {
		t.Errorf("expected snapshot tick 5, got %d", second.Snapshot.Tick)
	}
}

func TestRoom_BroadcastReachesAllSubscribers(t *testing.T) {
	r := NewRoom()
	r.Open("m1", nil)

	ch1, unsub1, _ := r.Join("m1")
	ch2, unsub2, _ := r.Join("m1")
	defer unsub1()
	defer unsub2()
	<-ch1 // drain joined frame
	<-ch2

	r.Broadcast("m1", &types.CombatState{MatchID: "m1", Tick: 10})

	f1 := <-ch1
	f2 := <-ch2
	if f1.Snapshot.Tick != 10 {
		t.Errorf("expected subscriber 1 snapshot tick 10, got %d", f1.Snapshot.Tick)
	}
	if f2.Snapshot.Tick != 10 {
		t.Errorf("expected subscriber 2 snapshot tick 10, got %d", f2.Snapshot.Tick)
	}
}

func TestRoom_CompleteClosesChannelsAndTearsDownMatch(t *testing.T) {
	r := NewRoom()
	r.Open("m1", nil)
	ch, unsubscribe, _ := r.Join("m1")
	defer unsubscribe()
	<-ch // drain joined frame

	r.Complete("m1", &types.MatchResult{Winner: types.WinnerP1, Reason: types.ReasonElimination})

	completed := <-ch
	if completed.Type != types.CombatFrameCompleted {
		t.Errorf("expected frame type %v, got %v", types.CombatFrameCompleted, completed.Type)
	}

	if _, open := <-ch; open {
		t.Error("channel must be closed after completion")
	}

	if _, _, err := r.Join("m1"); !errors.Is(err, ErrUnknownMatch) {
		t.Errorf("room must be torn down after completion: expected %v, got %v", ErrUnknownMatch, err)
	}
}

func TestRoom_BroadcastOnUnknownMatchIsNoOp(t *testing.T) {
	r := NewRoom()
	defer func() {
		if rec := recover(); rec != nil {
			t.Fatalf("unexpected panic: %v", rec)
		}
	}()
	r.Broadcast("nope", &types.CombatState{})
}
