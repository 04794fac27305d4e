package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/linkauth/internal/stores"
	"github.com/MrEthical07/linkauth/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type device struct {
	userID string
	jti    string
	token  string
}

func main() {
	var (
		users       = flag.Int("users", 20000, "number of users to seed")
		devices     = flag.Int("devices", 3, "refresh tokens per user")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "operations per phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "rt", "refresh token key prefix")
	)
	flag.Parse()

	if *users <= 0 || *devices <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "users, devices, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	client, cleanup, err := connect(*redisAddr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer cleanup()

	store := session.NewStore(client, *prefix, nil)
	states := stores.NewOAuthStateStore(client, *prefix+"-state", 0, nil)

	seeded := make([]device, 0, *users**devices)
	fmt.Printf("seeding %d users x %d devices...\n", *users, *devices)
	startSeed := time.Now()
	for u := 0; u < *users; u++ {
		for d := 0; d < *devices; d++ {
			dev := device{
				userID: fmt.Sprintf("user-%d", u),
				jti:    fmt.Sprintf("jti-%d-%d", u, d),
				token:  fmt.Sprintf("token-%d-%d", u, d),
			}
			if err := store.Save(ctx, dev.userID, dev.jti, dev.token, 24*time.Hour); err != nil {
				fmt.Fprintf(os.Stderr, "save failed: %v\n", err)
				os.Exit(1)
			}
			seeded = append(seeded, dev)
		}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	validateStats := runPhase(*ops, *concurrency, 7919, func(r *rand.Rand) error {
		dev := seeded[r.Intn(len(seeded))]
		ok, err := store.Validate(ctx, dev.userID, dev.jti, dev.token)
		if err == nil && !ok {
			return fmt.Errorf("token for %s/%s did not validate", dev.userID, dev.jti)
		}
		return err
	})

	stateStats := runPhase(*ops, *concurrency, 6151, func(r *rand.Rand) error {
		state, err := states.Generate(ctx, "google", "", "")
		if err != nil {
			return err
		}
		result, _, err := states.ValidateAndConsume(ctx, state, "google", "", "")
		if err != nil {
			return err
		}
		if result != stores.StateValid {
			return fmt.Errorf("fresh state returned %s", result)
		}
		return nil
	})

	replayStats := runPhase(*ops, *concurrency, 104729, func(r *rand.Rand) error {
		state, err := states.Generate(ctx, "github", "", "")
		if err != nil {
			return err
		}
		var wins int32
		var wg sync.WaitGroup
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if result, _, err := states.ValidateAndConsume(ctx, state, "github", "", ""); err == nil && result == stores.StateValid {
					atomic.AddInt32(&wins, 1)
				}
			}()
		}
		wg.Wait()
		if wins != 1 {
			return fmt.Errorf("state consumed %d times", wins)
		}
		return nil
	})

	fmt.Println("---- results ----")
	printStats("refresh-validate", validateStats)
	printStats("state-roundtrip", stateStats)
	printStats("state-replay", replayStats)
}

func connect(addr string) (redis.UniversalClient, func(), error) {
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to start miniredis: %w", err)
		}
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		fmt.Printf("using miniredis at %s\n", mr.Addr())
		return client, func() {
			_ = client.Close()
			mr.Close()
		}, nil
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	fmt.Printf("using redis at %s\n", addr)
	return client, func() { _ = client.Close() }, nil
}

func runPhase(ops, concurrency int, seed int64, op func(r *rand.Rand) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*seed))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	switch {
	case len(samples) == 0:
		return 0
	case p <= 0:
		return samples[0]
	case p >= 100:
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
