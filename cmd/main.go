// Command hopbench runs a verified insert/overwrite/remove/iterate workload
// against one of the map variants, on several independent maps at once.
//
//	go run ./cmd -config bench.toml -variant hybrid -keys 200000 -workers 8
package main

import (
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/thepudds/hopscotch"
)

var (
	configFlag  = flag.String("config", "", "TOML configuration file")
	variantFlag = flag.String("variant", "", "map variant: hopscotch or hybrid (overrides config)")
	keysFlag    = flag.Int("keys", 0, "keys per workload (overrides config)")
	workersFlag = flag.Int("workers", 0, "concurrent workloads, one map each (overrides config)")
	hashFlag    = flag.String("hash", "", "hash: int, djb2 or xxhash (overrides config)")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "hopbench:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig(*configFlag)
	if err != nil {
		return err
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "variant":
			cfg.Map.Variant = hopscotch.Variant(*variantFlag)
		case "keys":
			cfg.Keys = *keysFlag
		case "workers":
			cfg.Workers = *workersFlag
		case "hash":
			cfg.Hash = *hashFlag
		}
	})
	if err := cfg.validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	pool, err := ants.NewPool(cfg.Workers)
	if err != nil {
		return err
	}
	defer pool.Release()

	logger.Info("starting",
		zap.String("variant", string(cfg.Map.Variant)),
		zap.String("hash", cfg.Hash),
		zap.Int("keys", cfg.Keys),
		zap.Int("workers", cfg.Workers))

	start := time.Now()
	results := make([]result, cfg.Workers)
	var wg sync.WaitGroup
	for w := 0; w < cfg.Workers; w++ {
		w := w
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			results[w] = runWorkload(cfg, w, logger)
		})
		if err != nil {
			wg.Done()
			results[w] = result{worker: w, err: err}
		}
	}
	wg.Wait()

	failed := 0
	for _, r := range results {
		if r.err != nil {
			failed++
			logger.Error("workload failed", zap.Int("worker", r.worker), zap.Error(r.err))
			continue
		}
		logger.Info("workload done",
			zap.Int("worker", r.worker),
			zap.Duration("elapsed", r.elapsed),
			zap.Int("len", r.len),
			zap.Int("cap", r.cap),
			zap.Int("grows", r.stats.Grows),
			zap.Int("forced_grows", r.stats.ForcedGrows),
			zap.Int("displacements", r.stats.Displacements),
			zap.Int("overflow", r.stats.Overflow),
			zap.Int("overflow_buckets", r.stats.OverflowBuckets))
	}
	logger.Info("finished", zap.Duration("elapsed", time.Since(start)), zap.Int("failed", failed))
	if failed > 0 {
		return errors.Errorf("%d of %d workloads failed verification", failed, cfg.Workers)
	}
	return nil
}
