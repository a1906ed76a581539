package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/authflow"
	"github.com/MrEthical07/authflow/identity"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const mixedScenario = "mixed"

type runOptions struct {
	flows       int
	concurrency int
	scenario    string
	redisAddr   string
	prefix      string
	logLevel    string
	argonMemory uint32
	flowTimeout time.Duration
	metrics     bool
}

// simEnv is shared by every device of a run.
type simEnv struct {
	rdb      redis.UniversalClient
	config   authflow.Config
	identity identity.Config
	logger   *zap.Logger
}

func newRunCmd() *cobra.Command {
	opts := runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Drive scripted flows concurrently and report latencies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSim(cmd, opts)
		},
	}
	f := cmd.Flags()
	f.IntVar(&opts.flows, "flows", 120, "total flows to run")
	f.IntVar(&opts.concurrency, "concurrency", 16, "flows in flight at once")
	f.StringVar(&opts.scenario, "scenario", mixedScenario, "scenario to run: "+mixedScenario+", "+strings.Join(scenarioNames(), ", "))
	f.StringVar(&opts.redisAddr, "redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	f.StringVar(&opts.prefix, "prefix", "afsim", "redis key prefix")
	f.StringVar(&opts.logLevel, "log-level", "", "override logging.level from the config")
	f.Uint32Var(&opts.argonMemory, "argon-memory", 8*1024, "argon2id memory in KiB")
	f.DurationVar(&opts.flowTimeout, "flow-timeout", 10*time.Second, "deadline of a single flow")
	f.BoolVar(&opts.metrics, "metrics", true, "print aggregated flow metrics")
	return cmd
}

func runSim(cmd *cobra.Command, opts runOptions) error {
	if opts.flows <= 0 || opts.concurrency <= 0 {
		return fail("flows and concurrency must be > 0")
	}
	selected := scenarios
	if opts.scenario != mixedScenario {
		s, ok := scenarioByName(opts.scenario)
		if !ok {
			return fail("unknown scenario %q", opts.scenario)
		}
		selected = []scenario{s}
	}

	env, cleanup, err := newSimEnv(cmd, opts)
	if err != nil {
		return err
	}
	defer cleanup()

	runID := uuid.NewString()[:8]
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run=%s flows=%d concurrency=%d scenarios=%d\n", runID, opts.flows, opts.concurrency, len(selected))

	var (
		mu       sync.Mutex
		samples  = make(map[string][]time.Duration, len(selected))
		failures = make(map[string]*atomic.Int64, len(selected))
		snapshot authflow.MetricsSnapshot
		dropped  atomic.Uint64
	)
	for _, s := range selected {
		failures[s.name] = atomic.NewInt64(0)
	}

	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(opts.concurrency)
	start := time.Now()
	for i := 0; i < opts.flows; i++ {
		s := selected[i%len(selected)]
		identifier := fmt.Sprintf("sim-%s-%d@example.com", runID, i)
		g.Go(func() error {
			d, err := newDevice(env)
			if err != nil {
				return fmt.Errorf("device setup: %w", err)
			}

			flowCtx, cancel := context.WithTimeout(ctx, opts.flowTimeout)
			began := time.Now()
			output, err := s.run(flowCtx, d, identifier)
			elapsed := time.Since(began)
			cancel()
			d.close()

			if err == nil && output.Kind != authflow.OutputSuccess {
				err = fmt.Errorf("%w: %s", errUnexpectedOutput, output.Kind)
			}
			if err != nil {
				failures[s.name].Inc()
				env.logger.Warn("flow failed",
					zap.String("scenario", s.name),
					zap.String("identifier", identifier),
					zap.Error(err))
			}

			mu.Lock()
			if err == nil {
				samples[s.name] = append(samples[s.name], elapsed)
			}
			mergeSnapshot(&snapshot, d.host.MetricsSnapshot())
			mu.Unlock()
			dropped.Add(d.host.AuditDropped())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	total := time.Since(start)

	var failed int64
	for _, s := range selected {
		n := failures[s.name].Load()
		failed += n
		printStats(out, s.name, computeStats(total, samples[s.name], n))
	}
	if opts.metrics {
		fmt.Fprintln(out, "metrics:")
		printMetrics(out, snapshot)
		fmt.Fprintf(out, "  %-48s %d\n", "authflow_audit_dropped_total", dropped.Load())
	}
	if failed > 0 {
		return fail("%d of %d flows failed", failed, opts.flows)
	}
	return nil
}

func newSimEnv(cmd *cobra.Command, opts runOptions) (*simEnv, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	cfg.Metrics.Enabled = opts.metrics
	cfg.Metrics.EnableLatencyHistograms = opts.metrics

	logger, err := authflow.NewLogger(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generate signing key: %w", err)
	}
	idCfg := identity.DefaultConfig()
	idCfg.Prefix = opts.prefix
	idCfg.Deeplink = cfg.Deeplink.ClientConfig()
	idCfg.Password.Memory = opts.argonMemory
	idCfg.Password.Time = 1
	idCfg.Password.Parallelism = 1
	idCfg.Token.PrivateKey = priv
	idCfg.Token.Issuer = "authflow-sim"

	rdb, closeRedis, err := openRedis(opts.redisAddr)
	if err != nil {
		return nil, nil, err
	}
	if err := rdb.Ping(cmd.Context()).Err(); err != nil {
		closeRedis()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}

	cleanup := func() {
		closeRedis()
		_ = logger.Sync()
	}
	return &simEnv{rdb: rdb, config: cfg, identity: idCfg, logger: logger}, cleanup, nil
}

func openRedis(addr string) (redis.UniversalClient, func(), error) {
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("start miniredis: %w", err)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}
