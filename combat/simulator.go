package combat

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/hexquarry/battle/types"
)

// OnState is invoked with a published snapshot after a non-terminal tick.
type OnState func(*types.CombatState)

// OnComplete is invoked once with the final snapshot when a match ends.
type OnComplete func(*types.CombatState)

// Config is the subset of config.SimulatorConfig a single Match needs.
type Config struct {
	TickRate            int
	MaxTicks            int
	SpeedMultiplier     float64
	SelectionRadius     int
	EventRetentionTicks int
	CriticalChance      float64
	CriticalMultiplier  float64
}

func (c Config) tickDuration() time.Duration {
	speed := c.SpeedMultiplier
	if speed <= 0 {
		speed = 1
	}
	nominal := time.Second / time.Duration(c.TickRate)
	return time.Duration(float64(nominal) / speed)
}

func (c Config) tickConfig() TickConfig {
	return TickConfig{
		TickRate:            c.TickRate,
		TickDurationMillis:  float64(c.tickDuration().Milliseconds()),
		SelectionRadius:     c.SelectionRadius,
		EventRetentionTicks: c.EventRetentionTicks,
		CriticalChance:      c.CriticalChance,
		CriticalMultiplier:  c.CriticalMultiplier,
	}
}

// Match owns one combat simulation from initialization to completion. A
// single goroutine runs its tick loop; all state access goes through its
// mutex: a single simulator task owns its match's state.
type Match struct {
	mu      sync.Mutex
	state   *types.CombatState
	cfg     Config
	rng     *rand.Rand
	running bool
	paused  bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewMatch initializes a Match with status=pending and units populated
// from deployments. seed makes the
// match's critical-hit rolls reproducible for a given match_id.
func NewMatch(matchID string, deployments []types.Deployment, cfg Config, seed int64) *Match {
	units := make([]types.Unit, len(deployments))
	for i, d := range deployments {
		units[i] = types.Unit{
			UnitID:    d.UnitID,
			Owner:     d.Owner,
			Position:  d.Position,
			Health:    d.MaxHealth,
			MaxHealth: d.MaxHealth,
			Stats:     d.Stats,
			Status:    types.UnitAlive,
		}
	}
	return &Match{
		state: &types.CombatState{
			MatchID: matchID,
			Tick:    0,
			Status:  types.MatchPending,
			Units:   units,
		},
		cfg: cfg,
		rng: rand.New(rand.NewSource(seed)),
	}
}

// Snapshot returns a deep copy of the current state, safe to hand to a
// caller outside the simulator goroutine.
func (m *Match) Snapshot() *types.CombatState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Clone()
}

// Start transitions the match to running and begins the tick loop in its
// own goroutine. Starting an already-running match is a no-op.
func (m *Match) Start(ctx context.Context, onState OnState, onComplete OnComplete) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.paused = false
	m.state.Status = types.MatchRunning
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	stopCh := m.stopCh
	doneCh := m.doneCh
	m.mu.Unlock()

	go m.run(ctx, stopCh, doneCh, onState, onComplete)
}

// Pause suspends tick advancement; the preserved tick and state are
// untouched and resume continues from them.
func (m *Match) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = true
}

// Resume clears a pause, letting the tick loop advance again.
func (m *Match) Resume() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = false
}

// Stop forces termination. Per spec, a stop before any tick has resolved
// (no progress made) is recorded with the "aborted" marker; once ticks
// have resolved, a forced stop is recorded as reason=timeout, since the
// match's own timeout path is the closest natural outcome to "ran out of
// time to finish on its own." Winner is always draw: a forced stop never
// has a natural victor.
func (m *Match) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	stopCh := m.stopCh
	doneCh := m.doneCh
	m.mu.Unlock()

	select {
	case <-stopCh:
	default:
		close(stopCh)
	}
	<-doneCh
}

func (m *Match) run(ctx context.Context, stopCh, doneCh chan struct{}, onState OnState, onComplete OnComplete) {
	defer close(doneCh)

	ticker := time.NewTicker(m.cfg.tickDuration())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.abort(onComplete)
			return
		case <-stopCh:
			m.abort(onComplete)
			return
		case <-ticker.C:
			snap, done := m.advanceTick()
			if snap == nil {
				continue // paused
			}
			if done {
				if onComplete != nil {
					onComplete(snap)
				}
				return
			}
			if onState != nil {
				onState(snap)
			}
		}
	}
}

// advanceTick resolves exactly one tick and returns the published
// snapshot plus whether the match is now complete. Returns (nil, false)
// if the match is currently paused.
func (m *Match) advanceTick() (*types.CombatState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.paused {
		return nil, false
	}

	m.state.Tick++
	ApplyTick(m.state, m.cfg.tickConfig(), m.rng)

	outcome := DetectVictory(m.state, m.cfg.MaxTicks)
	if outcome.GameOver {
		m.state.Status = types.MatchCompleted
		m.state.Result = &types.MatchResult{
			Winner:        outcome.Winner,
			Reason:        outcome.Reason,
			DurationTicks: m.state.Tick,
		}
		m.running = false
		return m.state.Clone(), true
	}
	return m.state.Clone(), false
}

func (m *Match) abort(onComplete OnComplete) {
	m.mu.Lock()
	reason := types.ReasonTimeout
	if m.state.Tick == 0 {
		reason = types.ReasonAborted
	}
	m.state.Status = types.MatchCompleted
	m.state.Result = &types.MatchResult{
		Winner:        types.WinnerDraw,
		Reason:        reason,
		DurationTicks: m.state.Tick,
	}
	m.running = false
	snap := m.state.Clone()
	m.mu.Unlock()

	if onComplete != nil {
		onComplete(snap)
	}
}
