// Command lockprobe drives workloads against a lockmgr.Manager and prints
// the resulting LockAction event stream, for diagnosing lock contention or
// a suspected deadlock outside of the process that actually hit it.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/nativexml/lockmgr"
)

func main() {
	app := &cli.App{
		Name:  "lockprobe",
		Usage: "drive and inspect the collection lock manager",
		Commands: []*cli.Command{
			runCommand(),
			inspectCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "lockprobe:", err)
		os.Exit(1)
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "fire a concurrent workload against a set of collection paths",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "path to a YAML Config override file"},
			&cli.UintFlag{Name: "concurrency", Value: 100, Usage: "stripe pool size"},
			&cli.StringFlag{Name: "paths", Value: "/db/colA,/db/colA/colB,/db/colB", Usage: "comma-separated collection paths to target"},
			&cli.IntFlag{Name: "workers", Value: 8, Usage: "number of concurrent goroutines"},
			&cli.IntFlag{Name: "iterations", Value: 200, Usage: "acquisitions per worker"},
			&cli.Float64Flag{Name: "write-ratio", Value: 0.2, Usage: "fraction of acquisitions that are WRITE"},
			&cli.DurationFlag{Name: "timeout", Value: 2 * time.Second, Usage: "per-acquisition deadline"},
		},
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	runID := uuid.New().String()
	logger, err := zap.NewProduction()
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to build logger: %v", err), 1)
	}
	defer logger.Sync() //nolint:errcheck
	logger = logger.With(zap.String("run_id", runID))

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	mgr, err := lockmgr.NewIsolatedManager(cfg)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to build manager: %v", err), 1)
	}
	defer mgr.Close(context.Background()) //nolint:errcheck

	encoder := json.NewEncoder(os.Stdout)
	var mu sync.Mutex
	sink := listenerFunc(func(a lockmgr.LockAction) {
		mu.Lock()
		defer mu.Unlock()
		_ = encoder.Encode(a)
	})
	reg := mgr.Table().Register(sink)
	defer mgr.Table().Deregister(reg)

	paths := strings.Split(c.String("paths"), ",")
	workers := c.Int("workers")
	iterations := c.Int("iterations")
	writeRatio := c.Float64("write-ratio")
	timeout := c.Duration("timeout")

	var acquired, timedOut uint64
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for i := 0; i < iterations; i++ {
				path := paths[rng.Intn(len(paths))]
				ctx, cancel := context.WithTimeout(context.Background(), timeout)

				if rng.Float64() < writeRatio {
					lock, err := mgr.AcquireCollectionWriteLock(ctx, path, rng.Intn(2) == 0)
					if err != nil {
						atomic.AddUint64(&timedOut, 1)
					} else {
						atomic.AddUint64(&acquired, 1)
						lock.Release()
					}
				} else {
					lock, err := mgr.AcquireCollectionReadLock(ctx, path)
					if err != nil {
						atomic.AddUint64(&timedOut, 1)
					} else {
						atomic.AddUint64(&acquired, 1)
						lock.Release()
					}
				}
				cancel()
			}
		}(int64(w) + time.Now().UnixNano())
	}
	wg.Wait()

	logger.Info("workload complete",
		zap.Uint64("acquired", acquired),
		zap.Uint64("timed_out", timedOut),
		zap.Uint64("dropped_events", mgr.Table().DroppedEvents()),
	)
	return nil
}

func inspectCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "show which stripe a path maps to under a given concurrency level",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Required: true, Usage: "collection path to inspect"},
			&cli.UintFlag{Name: "concurrency", Value: 100, Usage: "stripe pool size to simulate"},
		},
		Action: func(c *cli.Context) error {
			cfg := lockmgr.Apply(lockmgr.WithConcurrencyLevel(uint32(c.Uint("concurrency"))))
			mgr, err := lockmgr.NewIsolatedManager(cfg)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			defer mgr.Close(context.Background()) //nolint:errcheck

			latch, err := mgr.GetCollectionLatch(c.String("path"))
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			fmt.Printf("path=%s concurrency=%d latch=%p\n", c.String("path"), c.Uint("concurrency"), latch)
			return nil
		},
	}
}

func loadConfig(c *cli.Context) (lockmgr.Config, error) {
	cfg := lockmgr.Apply(lockmgr.WithConcurrencyLevel(uint32(c.Uint("concurrency"))))

	path := c.String("config")
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %q: %w", path, err)
	}
	if cfg.Logger == nil {
		cfg.Logger = lockmgr.NewNopLogger()
	}
	return cfg, nil
}

type listenerFunc func(lockmgr.LockAction)

func (f listenerFunc) Accept(a lockmgr.LockAction) { f(a) }
