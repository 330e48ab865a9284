package main

import (
	"strconv"
	"time"

	"github.com/RoaringBitmap/roaring"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/thepudds/hopscotch"
)

type result struct {
	worker  int
	elapsed time.Duration
	len     int
	cap     int
	stats   hopscotch.Stats
	err     error
}

// runWorkload dispatches on the configured hash, which also decides the key
// type: "int" uses integer keys, the string hashes use decimal string keys.
func runWorkload(cfg benchConfig, worker int, logger *zap.Logger) result {
	switch cfg.Hash {
	case "djb2":
		return workload[string](cfg, worker, logger, strconv.Itoa, hopscotch.HashString)
	case "xxhash":
		return workload[string](cfg, worker, logger, strconv.Itoa, hopscotch.HashStringXX)
	default:
		return workload[int](cfg, worker, logger, func(i int) int { return i }, hopscotch.HashInt[int])
	}
}

// workload inserts cfg.Keys keys, overwrites the even ones, removes every
// third, and then checks the map against what it should hold. Values encode
// the key index, offset by cfg.Keys once overwritten.
func workload[K string | int](cfg benchConfig, worker int, logger *zap.Logger, key func(int) K, hash hopscotch.HashFunc[K]) result {
	res := result{worker: worker}
	start := time.Now()

	mcfg := cfg.Map
	mcfg.Logger = logger.With(zap.Int("worker", worker))
	m, err := hopscotch.New[K, int](mcfg, hopscotch.Compare[K], nil, nil)
	if err != nil {
		res.err = err
		return res
	}
	m.SetHashFunc(hash)

	n := cfg.Keys
	for i := 0; i < n; i++ {
		if err := m.Insert(key(i), i); err != nil {
			res.err = errors.Wrapf(err, "insert %d", i)
			return res
		}
	}
	for i := 0; i < n; i += 2 {
		if err := m.Insert(key(i), i+n); err != nil {
			res.err = errors.Wrapf(err, "overwrite %d", i)
			return res
		}
	}
	for i := 0; i < n; i += 3 {
		if !m.Remove(key(i)) {
			res.err = errors.Errorf("remove %d: not found", i)
			return res
		}
	}

	res.err = verify(m, n, key)
	res.elapsed = time.Since(start)
	res.len = m.Len()
	res.cap = m.Cap()
	res.stats = m.Stats()
	return res
}

func verify[K string | int](m hopscotch.Map[K, int], n int, key func(int) K) error {
	want := 0
	for i := 0; i < n; i++ {
		v, ok := m.Find(key(i))
		if i%3 == 0 {
			if ok {
				return errors.Errorf("key %d found after removal", i)
			}
			continue
		}
		want++
		wantV := i
		if i%2 == 0 {
			wantV = i + n
		}
		if !ok || v != wantV {
			return errors.Errorf("Find(%d) = %d, %v; want %d, true", i, v, ok, wantV)
		}
	}
	if m.Len() != want {
		return errors.Errorf("Len() = %d, want %d", m.Len(), want)
	}
	if 2*m.Len() > m.Cap() {
		return errors.Errorf("load factor %d/%d above 0.5", m.Len(), m.Cap())
	}

	seen := roaring.New()
	for node := m.First(); node != nil; node = m.Next(node) {
		if !seen.CheckedAdd(uint32(node.Value() % n)) {
			return errors.Errorf("iteration visited key %d twice", node.Value()%n)
		}
	}
	if got := int(seen.GetCardinality()); got != want {
		return errors.Errorf("iteration visited %d keys, want %d", got, want)
	}
	return nil
}
