package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"kmcsim/internal/config"
	"kmcsim/internal/kmc"
	"kmcsim/internal/model"
	"kmcsim/internal/network"
	"kmcsim/internal/output"
	"kmcsim/internal/rng"
	"kmcsim/internal/snapshot"
	"kmcsim/internal/telemetry"
	"kmcsim/internal/tweetbank"
)

const defaultInvariantCheckInterval = 1000

// loadConfig reads and validates path, wrapping any failure as a
// configuration error per spec.md §7.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, withExitCode(exitConfigError, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, withExitCode(exitConfigError, err)
	}
	return cfg, nil
}

// sinks holds the observation fan-out plus whatever needs closing when a
// run ends.
type sinks struct {
	multi   output.MultiSink
	writer  *output.TimeSeriesWriter
	bcast   *output.Broadcaster
	httpSrv *http.Server
}

func buildSinks(cfg *config.Config) (*sinks, error) {
	path := cfg.Output.TimeSeriesPath
	if path == "" {
		path = "kmcsim.out"
	}
	writer, err := output.NewTimeSeriesWriter(path, cfg.Output.Cadence)
	if err != nil {
		return nil, fmt.Errorf("opening time series output: %w", err)
	}

	s := &sinks{writer: writer, multi: output.MultiSink{writer}}

	if cfg.Output.EnableWebsocket {
		b := output.NewBroadcaster()
		s.bcast = b
		s.multi = append(s.multi, b)

		addr := cfg.Output.WebsocketAddr
		if addr == "" {
			addr = ":8080"
		}
		mux := http.NewServeMux()
		mux.Handle("/ws", b)
		srv := &http.Server{Addr: addr, Handler: mux}
		s.httpSrv = srv
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				fmt.Fprintln(os.Stderr, "kmcsim: websocket server:", err)
			}
		}()
	}

	return s, nil
}

func (s *sinks) Close() {
	if s.httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.httpSrv.Shutdown(ctx)
	}
	if s.bcast != nil {
		s.bcast.Close()
	}
	if s.writer != nil {
		s.writer.Close()
	}
}

func buildSnapshotStore(cfg *config.Config) (snapshot.Store, error) {
	kind := "memory"
	if cfg.Output.SnapshotPath != "" {
		kind = "sqlite"
	}
	store, err := snapshot.NewStore(kind, cfg.Output.SnapshotPath)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot store: %w", err)
	}
	if err := store.Init(context.Background()); err != nil {
		return nil, fmt.Errorf("initializing snapshot store: %w", err)
	}
	return store, nil
}

// runtime bundles the constructed simulation plus everything a run/resume
// command needs to drive it to completion and report the result.
type runtime struct {
	cfg        *config.Config
	net        *network.Network
	bank       *tweetbank.TweetBank
	loop       *kmc.Loop
	sinks      *sinks
	store      snapshot.Store
	runID      string
	configHash string
}

// execute drives r.loop to completion, fanning step observations out to
// r.sinks, periodically checking network invariants and saving
// checkpoints, and returns the process exit code for the outcome plus a
// non-nil error describing it when the code isn't exitNormal.
func (r *runtime) execute(ctx context.Context) (int, error) {
	defer r.sinks.Close()
	defer snapshot.CloseIfSupported(r.store)

	sigCh := make(chan os.Signal, 1)
	notifySignals(sigCh)
	sigDone := make(chan struct{})
	defer close(sigDone)
	go func() {
		select {
		case <-sigCh:
			r.loop.Abort().Raise()
		case <-sigDone:
		}
	}()

	checkInterval := r.cfg.Analysis.RecalcInterval
	if checkInterval <= 0 {
		checkInterval = defaultInvariantCheckInterval
	}
	snapshotCadence := r.cfg.Output.SnapshotCadence

	var invariantErr error
	hooks := kmc.Hooks{OnStep: func(res kmc.StepResult) {
		step := r.loop.StepCount()
		r.sinks.multi.Observe(output.StepSnapshot{Step: step, Time: res.Time, Stats: r.loop.Stats()})

		if invariantErr == nil && step%checkInterval == 0 {
			if err := r.net.CheckInvariants(); err != nil {
				invariantErr = err
				r.loop.Abort().Raise()
			}
		}
		if snapshotCadence > 0 && step%snapshotCadence == 0 {
			r.saveCheckpoint()
		}
	}}

	startedAt := time.Now()
	reason, err := r.loop.Run(ctx, hooks)
	if invariantErr != nil {
		return exitRuntimeError, fmt.Errorf("invariant violation: %w", invariantErr)
	}
	if err != nil {
		if errors.Is(err, kmc.ErrCapacityExhausted) {
			r.saveCheckpoint()
			return exitCapacityExhausted, err
		}
		return exitRuntimeError, err
	}

	r.saveCheckpoint()
	fmt.Print(telemetry.NewSummary(r.loop.Stats(), reason, startedAt).String())

	if reason == kmc.TerminationAbort {
		return exitUserAbort, errors.New("run aborted by signal")
	}
	return exitNormal, nil
}

func (r *runtime) saveCheckpoint() {
	if r.store == nil {
		return
	}
	snap := r.loop.Snapshot()
	snap.RunID = r.runID
	snap.ConfigHash = r.configHash
	if err := r.store.SaveRun(context.Background(), snap); err != nil {
		fmt.Fprintln(os.Stderr, "kmcsim: snapshot save failed:", err)
	}
}

// newRuntime wires a freshly built Network/TweetBank/Loop together, seeding
// InitialAgents live agents before the loop starts.
func newRuntime(cfg *config.Config, seed int64) (*runtime, error) {
	netParams, err := cfg.ToNetworkParams()
	if err != nil {
		return nil, withExitCode(exitConfigError, err)
	}
	schedule, err := cfg.BuildObservationSchedule()
	if err != nil {
		return nil, withExitCode(exitConfigError, err)
	}

	stream := rng.NewStream(seed)
	net := network.New(netParams, stream)
	bank, err := tweetbank.New(schedule)
	if err != nil {
		return nil, withExitCode(exitConfigError, err)
	}

	var loop *kmc.Loop
	now := func() model.SimTime {
		if loop == nil {
			return 0
		}
		return loop.Now()
	}
	followModel, err := cfg.BuildFollowModel(now)
	if err != nil {
		return nil, withExitCode(exitConfigError, err)
	}
	kmcParams, err := cfg.ToKMCParams(followModel)
	if err != nil {
		return nil, withExitCode(exitConfigError, err)
	}

	for i := 0; i < cfg.Analysis.InitialAgents; i++ {
		if _, err := net.CreateAgent(0); err != nil {
			return nil, fmt.Errorf("seeding initial agents: %w", err)
		}
	}

	loop = kmc.New(kmcParams, net, bank, stream, nil)

	s, err := buildSinks(cfg)
	if err != nil {
		return nil, err
	}
	store, err := buildSnapshotStore(cfg)
	if err != nil {
		return nil, err
	}
	hash, err := cfg.Hash()
	if err != nil {
		return nil, fmt.Errorf("hashing config: %w", err)
	}

	return &runtime{
		cfg:        cfg,
		net:        net,
		bank:       bank,
		loop:       loop,
		sinks:      s,
		store:      store,
		runID:      uuid.NewString(),
		configHash: hash,
	}, nil
}

// resumeRuntime rebuilds a runtime from a previously checkpointed
// model.RunSnapshot loaded from store, continuing under cfg's current
// parameters. If cfg was edited since the checkpoint, its content hash will
// no longer match the one the snapshot recorded; the caller decides whether
// that's fatal.
func resumeRuntime(cfg *config.Config, store snapshot.Store, snap model.RunSnapshot, seed int64) (*runtime, error) {
	netParams, err := cfg.ToNetworkParams()
	if err != nil {
		return nil, withExitCode(exitConfigError, err)
	}
	schedule, err := cfg.BuildObservationSchedule()
	if err != nil {
		return nil, withExitCode(exitConfigError, err)
	}

	stream := rng.NewStream(seed)
	net := network.New(netParams, stream)
	bank, err := tweetbank.New(schedule)
	if err != nil {
		return nil, withExitCode(exitConfigError, err)
	}

	var loop *kmc.Loop
	now := func() model.SimTime {
		if loop == nil {
			return 0
		}
		return loop.Now()
	}
	followModel, err := cfg.BuildFollowModel(now)
	if err != nil {
		return nil, withExitCode(exitConfigError, err)
	}
	kmcParams, err := cfg.ToKMCParams(followModel)
	if err != nil {
		return nil, withExitCode(exitConfigError, err)
	}

	loop, err = kmc.Restore(kmcParams, net, bank, snap, stream, nil)
	if err != nil {
		return nil, fmt.Errorf("restoring snapshot: %w", err)
	}

	s, err := buildSinks(cfg)
	if err != nil {
		return nil, err
	}
	hash, err := cfg.Hash()
	if err != nil {
		return nil, fmt.Errorf("hashing config: %w", err)
	}

	return &runtime{
		cfg:        cfg,
		net:        net,
		bank:       bank,
		loop:       loop,
		sinks:      s,
		store:      store,
		runID:      snap.RunID,
		configHash: hash,
	}, nil
}
