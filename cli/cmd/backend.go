package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/hexquarry/battle/config"
	"github.com/hexquarry/battle/queue"
	"github.com/hexquarry/battle/store"
	memorystore "github.com/hexquarry/battle/store/memory"
	redisstore "github.com/hexquarry/battle/store/redis"
)

// ConfigFlag is shared by every command that talks to the backing store
// directly (watch), letting it pick up the same redis/memory choice as
// the daemon.
var ConfigFlag = &cli.StringFlag{
	Name:  "config",
	Usage: "Path to YAML config file",
}

// loadConfig reads the config at path, or returns config.Defaults() when
// path is empty.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg := config.Defaults()
		return &cfg, nil
	}
	return config.Load(path)
}

// buildStore constructs a store.Store from cfg: Redis when a URL is
// configured, in-memory otherwise. In-memory storage only makes sense
// for a CLI command talking to a daemon running in the same process;
// against a separate daemon process, configure redis.
func buildStore(cfg *config.Config) (store.Store, error) {
	if cfg.Redis.URL != "" {
		s, err := redisstore.New(redisstore.Config{URL: cfg.Redis.URL})
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		return s, nil
	}
	return memorystore.New(), nil
}

// queueHandles bundles the read-only job-inspection collaborators built
// directly from a store.Store, so CLI commands can call Registry.Get
// without standing up the full daemon. Admission itself goes through the
// daemon's /submit endpoint (see SubmitCommand), not this path, so the
// admission-side cache it depends on lives exactly once per daemon process.
type queueHandles struct {
	Store    store.Store
	Registry *queue.Registry
}

func buildQueueHandles(cfg *config.Config) (*queueHandles, error) {
	s, err := buildStore(cfg)
	if err != nil {
		return nil, err
	}

	return &queueHandles{
		Store:    s,
		Registry: queue.NewRegistry(s),
	}, nil
}
