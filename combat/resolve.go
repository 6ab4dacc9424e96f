package combat

import (
	"math"
	"math/rand"
	"sort"

	"github.com/hexquarry/battle/types"
)

// TickConfig bundles the per-tick resolution knobs from config.SimulatorConfig
// that combat needs, without combat depending on the config package directly.
type TickConfig struct {
	TickRate            int
	TickDurationMillis  float64
	SelectionRadius     int
	EventRetentionTicks int
	CriticalChance      float64
	CriticalMultiplier  float64
}

// ApplyTick performs one fixed-timestep update of state
// steps 1-5: AI decisions, attack resolution, death detection, cooldown
// decrement, and event retention pruning. state is mutated in place and
// tick is assumed to have already been incremented by the caller.
func ApplyTick(state *types.CombatState, cfg TickConfig, rng *rand.Rand) {
	byID := make(map[string]*types.Unit, len(state.Units))
	ids := make([]string, 0, len(state.Units))
	for i := range state.Units {
		u := &state.Units[i]
		byID[u.UnitID] = u
		if u.Status == types.UnitAlive {
			ids = append(ids, u.UnitID)
		}
	}
	sort.Strings(ids)

	type attack struct {
		attackerID string
		defenderID string
	}
	var attacks []attack

	for _, id := range ids {
		u := byID[id]
		targetID := SelectTarget(u, byID, ids, cfg.SelectionRadius)
		u.CurrentTarget = targetID
		if targetID == "" {
			continue
		}
		target := byID[targetID]

		if u.Position.Distance(target.Position) <= u.Stats.Range {
			if u.AttackCooldown == 0 {
				attacks = append(attacks, attack{attackerID: id, defenderID: targetID})
			}
			continue
		}

		hexesPerTick := int(math.Floor(float64(u.Stats.Speed) * cfg.TickDurationMillis / 1000.0))
		u.Position = stepToward(u.Position, target.Position, hexesPerTick)
		u.Facing = target.Position
	}

	for _, a := range attacks {
		attacker := byID[a.attackerID]
		defender := byID[a.defenderID]
		if defender.Status != types.UnitAlive {
			continue
		}

		damage := attacker.Stats.Damage - defender.Stats.Armor
		if damage < 0 {
			damage = 0
		}
		if cfg.CriticalChance > 0 && rng.Float64() < cfg.CriticalChance {
			damage = int(math.Round(float64(damage) * cfg.CriticalMultiplier))
		}

		defender.Health -= damage
		if defender.Health < 0 {
			defender.Health = 0
		}
		if attacker.Stats.AttacksPerSecond > 0 {
			attacker.AttackCooldown = int(math.Round(float64(cfg.TickRate) / attacker.Stats.AttacksPerSecond))
		}

		state.Events = append(state.Events, types.CombatEvent{
			Tick:     state.Tick,
			Type:     types.EventDamage,
			UnitID:   a.attackerID,
			VictimID: a.defenderID,
			Damage:   damage,
		})

		if defender.Health == 0 {
			defender.Status = types.UnitDead
			defender.CurrentTarget = ""
			state.Events = append(state.Events, types.CombatEvent{
				Tick:     state.Tick,
				Type:     types.EventDeath,
				VictimID: a.defenderID,
				KillerID: a.attackerID,
			})
		}
	}

	for i := range state.Units {
		u := &state.Units[i]
		if u.AttackCooldown > 0 {
			u.AttackCooldown--
		}
	}

	pruneEvents(state, cfg.EventRetentionTicks)
}

func pruneEvents(state *types.CombatState, retentionTicks int) {
	if retentionTicks <= 0 || len(state.Events) == 0 {
		return
	}
	cutoff := state.Tick - retentionTicks
	kept := state.Events[:0]
	for _, e := range state.Events {
		if e.Tick >= cutoff {
			kept = append(kept, e)
		}
	}
	state.Events = kept
}
