package main

import (
	"context"
	"flag"
	"os"
	"sync"
	"time"

	"github.com/grafana/pyroscope-go"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"tradeledger/internal/api"
	"tradeledger/internal/deadletter"
	"tradeledger/internal/ingest"
	"tradeledger/internal/ingest/feed"
	"tradeledger/internal/obs"
	"tradeledger/internal/ops"
	"tradeledger/internal/order"
	"tradeledger/internal/prediction"
	"tradeledger/internal/store"
	"tradeledger/internal/store/memory"
	"tradeledger/internal/store/pg"
	"tradeledger/pkg/conn"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML or JSON config")
	storeKind := flag.String("store", "", "Override store kind (memory|pg)")
	httpAddr := flag.String("http-addr", "", "Override HTTP listen address")
	feedURL := flag.String("feed-url", "", "Override websocket feed URL")
	flag.Parse()

	loaded, err := ops.Load(*configPath, func(cfg *ops.FileConfig) {
		if *storeKind != "" {
			cfg.Store.Kind = *storeKind
		}
		if *httpAddr != "" {
			cfg.HTTP.Addr = *httpAddr
		}
		if *feedURL != "" {
			cfg.Feed.URL = *feedURL
		}
	})
	if err != nil {
		logs.Errorf("config load failed, err: %+v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-sys.Shutdown()
		logs.Info("shutdown signal received")
		cancel()
	}()

	if err := run(ctx, loaded); err != nil {
		logs.Errorf("ledger stopped, err: %+v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, loaded ops.Loaded) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if loaded.Profiling.Enabled {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: loaded.Profiling.ApplicationName,
			ServerAddress:   loaded.Profiling.ServerAddress,
			Tags:            loaded.Profiling.Tags,
			Logger:          profilerLogger{},
		})
		if err != nil {
			return err
		}
		defer func() { _ = profiler.Stop() }()
	}

	st, closeStore, err := openStore(ctx, loaded)
	if err != nil {
		return err
	}
	defer closeStore()

	metrics := obs.NewMetrics()
	orders := order.NewUsecase(st, loaded.OrderMaxAttempts, metrics)
	predictions := prediction.NewUsecase(st, metrics)

	var journal ingest.Journal
	if loaded.DeadLetterPath != "" {
		j, err := deadletter.Open(loaded.DeadLetterPath)
		if err != nil {
			return err
		}
		defer func() { _ = j.Close() }()
		journal = j
	}

	dispatcher := ingest.NewDispatcher(loaded.Ingest, ingest.NewRouter(orders, predictions), journal, metrics)
	// workers outlive ctx so queued events drain after Close.
	dispatcher.Run(context.WithoutCancel(ctx))

	var wg sync.WaitGroup
	if loaded.Feed != nil {
		f := feed.New(*loaded.Feed, dispatcher.Handle)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := f.Run(ctx); err != nil {
				logs.Errorf("feed stopped, err: %+v", err)
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		logMetrics(ctx, metrics, loaded.MetricsInterval)
	}()

	server := api.NewServer(orders, predictions, metrics)
	err = server.Run(ctx, loaded.HTTPAddr, loaded.ShutdownTimeout)

	dispatcher.Close()
	cancel()
	dispatcher.Wait()
	wg.Wait()
	return err
}

func openStore(ctx context.Context, loaded ops.Loaded) (store.Store, func(), error) {
	if loaded.StoreKind != ops.StorePG {
		logs.Info("using in-memory ledger store")
		st := memory.New()
		return st, func() { _ = st.Close() }, nil
	}

	client, err := conn.New(ctx, loaded.Postgres)
	if err != nil {
		return nil, nil, err
	}
	st, err := pg.New(ctx, client.DB(), loaded.Migrate)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return st, func() {
		_ = st.Close()
		if err := client.Close(); err != nil {
			logs.Errorf("close postgres, err: %+v", err)
		}
	}, nil
}

func logMetrics(ctx context.Context, metrics *obs.Metrics, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := metrics.Snapshot()
			logs.Infof("metrics accepted=%v rejected=%v reasons=%v cas_retries=%d redeliveries=%d dead_letters=%d queue_drops=%d handle_avg=%s",
				snap.Accepted, snap.Rejected, snap.Reasons, snap.CASRetries, snap.Redeliveries,
				snap.DeadLetters, snap.QueueDrops, snap.HandleLatency.Avg)
		}
	}
}

type profilerLogger struct{}

func (profilerLogger) Infof(format string, args ...interface{})  { logs.Infof(format, args...) }
func (profilerLogger) Debugf(_ string, _ ...interface{})         {}
func (profilerLogger) Errorf(format string, args ...interface{}) { logs.Errorf(format, args...) }
