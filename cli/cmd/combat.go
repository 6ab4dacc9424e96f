package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/urfave/cli/v2"

	"github.com/hexquarry/battle/cli/render"
	"github.com/hexquarry/battle/combat"
	"github.com/hexquarry/battle/config"
	"github.com/hexquarry/battle/types"
)

// CombatCommand runs a hex-board combat match locally and streams its
// tick-by-tick frames to stdout. Unlike stats, combat actively drives a
// simulation rather than reading published state, so it has no --tui mode.
func CombatCommand() *cli.Command {
	return &cli.Command{
		Name:  "combat",
		Usage: "Run a deterministic combat simulation and stream its frames",
		Flags: []cli.Flag{
			FormatFlag,
			NoColorFlag,
			ConfigFlag,
			&cli.StringFlag{Name: "match-id", Value: "local-match", Usage: "Match identifier"},
			&cli.StringFlag{Name: "deployments", Usage: "Path to a JSON file of []types.Deployment (default: a built-in 1v1)"},
			&cli.Int64Flag{Name: "seed", Value: 1, Usage: "RNG seed for reproducible critical-hit rolls"},
		},
		Action: combatAction,
	}
}

func combatAction(c *cli.Context) error {
	cfg, err := loadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	deployments, err := loadDeployments(c.String("deployments"))
	if err != nil {
		return err
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	room := combat.NewRoom()
	match := combat.NewMatch(c.String("match-id"), deployments, simulatorConfig(cfg.Simulator), c.Int64("seed"))
	room.Open(c.String("match-id"), match.Snapshot())

	var wg sync.WaitGroup
	wg.Add(1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Room subscribers get simulator.broadcast_hz snapshots per second,
	// independent of tick_rate; stdout still renders every tick.
	ticksPerBroadcast := 1
	if hz := cfg.Simulator.BroadcastHz; hz > 0 && cfg.Simulator.TickRate > hz {
		ticksPerBroadcast = cfg.Simulator.TickRate / hz
	}

	match.Start(ctx, func(state *types.CombatState) {
		if state.Tick%ticksPerBroadcast == 0 {
			room.Broadcast(c.String("match-id"), state)
		}
		_ = r.Render(state)
	}, func(state *types.CombatState) {
		room.Complete(c.String("match-id"), state.Result)
		_ = r.Render(state)
		wg.Done()
	})

	wg.Wait()
	return nil
}

func simulatorConfig(s config.SimulatorConfig) combat.Config {
	return combat.Config{
		TickRate:            s.TickRate,
		MaxTicks:            s.MaxTicks,
		SpeedMultiplier:     s.SpeedMultiplier,
		SelectionRadius:     s.SelectionRadius,
		EventRetentionTicks: s.EventRetentionTicks,
		CriticalChance:      s.CriticalChance,
		CriticalMultiplier:  s.CriticalMultiplier,
	}
}

// loadDeployments reads a JSON deployment file, or returns a built-in 1v1
// fixture when path is empty.
func loadDeployments(path string) ([]types.Deployment, error) {
	if path == "" {
		return defaultDeployments(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read --deployments: %w", err)
	}
	var deployments []types.Deployment
	if err := json.Unmarshal(data, &deployments); err != nil {
		return nil, fmt.Errorf("invalid --deployments JSON: %w", err)
	}
	return deployments, nil
}

func defaultDeployments() []types.Deployment {
	return []types.Deployment{
		{
			UnitID:    "p1-unit-1",
			Owner:     types.OwnerP1,
			Position:  types.Hex{Q: -3, R: 0},
			MaxHealth: 100,
			Stats:     types.UnitStats{Damage: 12, Armor: 2, Range: 2, Speed: 3, AttacksPerSecond: 1.0},
		},
		{
			UnitID:    "p2-unit-1",
			Owner:     types.OwnerP2,
			Position:  types.Hex{Q: 3, R: 0},
			MaxHealth: 100,
			Stats:     types.UnitStats{Damage: 12, Armor: 2, Range: 2, Speed: 3, AttacksPerSecond: 1.0},
		},
	}
}
