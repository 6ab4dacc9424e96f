package combat

import "github.com/hexquarry/battle/types"

// SelectTarget returns the unit_id this unit should target this tick:
// sticky on the current target while it remains alive
// and within radius, otherwise the nearest alive enemy within radius with
// ties broken by ascending unit_id. Returns "" if no enemy is in range.
func SelectTarget(u *types.Unit, unitsByID map[string]*types.Unit, orderedIDs []string, radius int) string {
	if u.CurrentTarget != "" {
		if cur, ok := unitsByID[u.CurrentTarget]; ok && cur.Status == types.UnitAlive {
			if u.Position.Distance(cur.Position) <= radius {
				return cur.UnitID
			}
		}
	}

	var best *types.Unit
	bestDist := radius + 1
	for _, id := range orderedIDs {
		cand := unitsByID[id]
		if cand.Owner == u.Owner || cand.Status != types.UnitAlive {
			continue
		}
		dist := u.Position.Distance(cand.Position)
		if dist <= radius && (dist < bestDist || (dist == bestDist && cand.UnitID < best.UnitID)) {
			best = cand
			bestDist = dist
		}
	}
	if best == nil {
		return ""
	}
	return best.UnitID
}

// stepToward returns the position u would occupy after moving up to
// maxHexes toward target, clamped to an integer hex step per tick.
// Movement is along the axis with the greater remaining distance first,
// matching the axial-coordinate convention used throughout combat.
func stepToward(from, to types.Hex, maxHexes int) types.Hex {
	if maxHexes <= 0 || from == to {
		return from
	}
	dist := from.Distance(to)
	if dist <= maxHexes {
		return to
	}

	pos := from
	for i := 0; i < maxHexes; i++ {
		pos = stepOnce(pos, to)
	}
	return pos
}

// stepOnce moves one hex from pos toward to. Every branch changes exactly
// one of Q/R by one, since a (+1,+1)/(-1,-1) move is hex-distance 2, not a
// neighbor, in this axial convention (the six unit steps are (±1,0),
// (0,±1),(+1,-1),(-1,+1)). When dq and dr share a sign (the diagonal ds is
// the largest remaining component) the right move is still along whichever
// of q or r has the larger remaining distance, one axis at a time.
func stepOnce(pos, to types.Hex) types.Hex {
	dq := to.Q - pos.Q
	dr := to.R - pos.R
	ds := (-to.Q - to.R) - (-pos.Q - pos.R)

	switch {
	case absInt(dq) >= absInt(dr) && absInt(dq) >= absInt(ds):
		pos.Q += sign(dq)
	case absInt(dr) >= absInt(ds):
		pos.R += sign(dr)
	case absInt(dq) >= absInt(dr):
		pos.Q += sign(dq)
	default:
		pos.R += sign(dr)
	}
	return pos
}

func sign(v int) int {
	if v > 0 {
		return 1
	}
	if v < 0 {
		return -1
	}
	return 0
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
