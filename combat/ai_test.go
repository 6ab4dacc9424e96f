package combat

import (
	"testing"

	"github.com/hexquarry/battle/types"
)

func byIDMap(units []types.Unit) (map[string]*types.Unit, []string) {
	byID := make(map[string]*types.Unit, len(units))
	ids := make([]string, 0, len(units))
	for i := range units {
		byID[units[i].UnitID] = &units[i]
		ids = append(ids, units[i].UnitID)
	}
	return byID, ids
}

func TestSelectTarget_NearestWithinRadius(t *testing.T) {
	units := []types.Unit{
		{UnitID: "a", Owner: types.OwnerP1, Position: types.Hex{Q: 0, R: 0}, Status: types.UnitAlive},
		{UnitID: "near", Owner: types.OwnerP2, Position: types.Hex{Q: 1, R: 0}, Status: types.UnitAlive},
		{UnitID: "far", Owner: types.OwnerP2, Position: types.Hex{Q: 5, R: 0}, Status: types.UnitAlive},
	}
	byID, ids := byIDMap(units)
	target := SelectTarget(byID["a"], byID, ids, 8)
	if target != "near" {
		t.Errorf("expected target %q, got %q", "near", target)
	}
}

func TestSelectTarget_TieBreaksByAscendingID(t *testing.T) {
	units := []types.Unit{
		{UnitID: "a", Owner: types.OwnerP1, Position: types.Hex{Q: 0, R: 0}, Status: types.UnitAlive},
		{UnitID: "z-enemy", Owner: types.OwnerP2, Position: types.Hex{Q: 1, R: 0}, Status: types.UnitAlive},
		{UnitID: "b-enemy", Owner: types.OwnerP2, Position: types.Hex{Q: -1, R: 0}, Status: types.UnitAlive},
	}
	byID, ids := byIDMap(units)
	target := SelectTarget(byID["a"], byID, ids, 8)
	if target != "b-enemy" {
		t.Errorf("expected target %q, got %q", "b-enemy", target)
	}
}

func TestSelectTarget_NoneInRadius(t *testing.T) {
	units := []types.Unit{
		{UnitID: "a", Owner: types.OwnerP1, Position: types.Hex{Q: 0, R: 0}, Status: types.UnitAlive},
		{UnitID: "far", Owner: types.OwnerP2, Position: types.Hex{Q: 50, R: 0}, Status: types.UnitAlive},
	}
	byID, ids := byIDMap(units)
	target := SelectTarget(byID["a"], byID, ids, 8)
	if target != "" {
		t.Errorf("expected no target, got %q", target)
	}
}

func TestSelectTarget_StickyUntilOutOfRadius(t *testing.T) {
	units := []types.Unit{
		{UnitID: "a", Owner: types.OwnerP1, Position: types.Hex{Q: 0, R: 0}, Status: types.UnitAlive, CurrentTarget: "far-but-sticky"},
		{UnitID: "far-but-sticky", Owner: types.OwnerP2, Position: types.Hex{Q: 5, R: 0}, Status: types.UnitAlive},
		{UnitID: "nearer", Owner: types.OwnerP2, Position: types.Hex{Q: 1, R: 0}, Status: types.UnitAlive},
	}
	byID, ids := byIDMap(units)
	target := SelectTarget(byID["a"], byID, ids, 8)
	if target != "far-but-sticky" {
		t.Errorf("sticky target kept even though a nearer enemy exists: expected %q, got %q", "far-but-sticky", target)
	}
}

func TestSelectTarget_DropsStickyTargetWhenDead(t *testing.T) {
	units := []types.Unit{
		{UnitID: "a", Owner: types.OwnerP1, Position: types.Hex{Q: 0, R: 0}, Status: types.UnitAlive, CurrentTarget: "dead-one"},
		{UnitID: "dead-one", Owner: types.OwnerP2, Position: types.Hex{Q: 1, R: 0}, Status: types.UnitDead},
		{UnitID: "alive-one", Owner: types.OwnerP2, Position: types.Hex{Q: 2, R: 0}, Status: types.UnitAlive},
	}
	byID, ids := byIDMap(units)
	target := SelectTarget(byID["a"], byID, ids, 8)
	if target != "alive-one" {
		t.Errorf("expected target %q, got %q", "alive-one", target)
	}
}

func TestStepToward_ReachesTargetWhenWithinRange(t *testing.T) {
	pos := stepToward(types.Hex{Q: 0, R: 0}, types.Hex{Q: 2, R: 0}, 5)
	want := types.Hex{Q: 2, R: 0}
	if pos != want {
		t.Errorf("expected %v, got %v", want, pos)
	}
}

func TestStepToward_ClampsToMaxHexes(t *testing.T) {
	pos := stepToward(types.Hex{Q: 0, R: 0}, types.Hex{Q: 10, R: 0}, 3)
	if got := (types.Hex{Q: 0, R: 0}).Distance(pos); got != 3 {
		t.Errorf("expected clamped distance 3, got %d", got)
	}
}

func TestStepToward_ZeroMovementStaysPut(t *testing.T) {
	pos := stepToward(types.Hex{Q: 0, R: 0}, types.Hex{Q: 10, R: 0}, 0)
	want := types.Hex{Q: 0, R: 0}
	if pos != want {
		t.Errorf("expected %v, got %v", want, pos)
	}
}

// TestStepOnce_EveryStepIsHexDistanceOne guards against a diagonal (+1,+1)
// move, which is hex-distance 2 and would let a unit cover two hexes of
// movement_speed*tick_duration in a single tick.
func TestStepOnce_EveryStepIsHexDistanceOne(t *testing.T) {
	from := types.Hex{Q: 0, R: 0}
	to := types.Hex{Q: 5, R: 5}
	pos := from
	for i := 0; i < 8; i++ {
		next := stepOnce(pos, to)
		if d := pos.Distance(next); d != 1 {
			t.Fatalf("step %d: moved hex-distance %d, want 1 (from %v to %v)", i, d, pos, next)
		}
		pos = next
		if pos == to {
			break
		}
	}
}
