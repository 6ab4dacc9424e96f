package combat

import "github.com/hexquarry/battle/types"

// Outcome is the result of a victory check.
type Outcome struct {
	GameOver bool
	Winner   types.Winner
	Reason   types.VictoryReason
}

// DetectVictory is a pure function over a CombatState and a tick budget,
// It never mutates state.
func DetectVictory(state *types.CombatState, maxTicks int) Outcome {
	p1Alive := state.AliveUnitsFor(types.OwnerP1)
	p2Alive := state.AliveUnitsFor(types.OwnerP2)

	if p1Alive == 0 && p2Alive == 0 {
		return Outcome{GameOver: true, Winner: types.WinnerDraw, Reason: types.ReasonSimultaneousDeath}
	}
	if p1Alive == 0 {
		return Outcome{GameOver: true, Winner: types.WinnerP2, Reason: types.ReasonElimination}
	}
	if p2Alive == 0 {
		return Outcome{GameOver: true, Winner: types.WinnerP1, Reason: types.ReasonElimination}
	}

	if state.Tick >= maxTicks {
		return Outcome{GameOver: true, Winner: winnerByAttrition(state), Reason: types.ReasonTimeout}
	}

	return Outcome{}
}

// winnerByAttrition breaks a timeout tie by total remaining health, then
// by surviving unit count, then declares a draw.
func winnerByAttrition(state *types.CombatState) types.Winner {
	p1Health := state.TotalHealthFor(types.OwnerP1)
	p2Health := state.TotalHealthFor(types.OwnerP2)
	if p1Health != p2Health {
		if p1Health > p2Health {
			return types.WinnerP1
		}
		return types.WinnerP2
	}

	p1Alive := state.AliveUnitsFor(types.OwnerP1)
	p2Alive := state.AliveUnitsFor(types.OwnerP2)
	if p1Alive != p2Alive {
		if p1Alive > p2Alive {
			return types.WinnerP1
		}
		return types.WinnerP2
	}

	return types.WinnerDraw
}
