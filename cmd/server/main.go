package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/profile"

	"logisim.dev/internal/persistence/archive"
	persistlog "logisim.dev/internal/persistence/log"
	"logisim.dev/internal/persistence/snapshot"
	"logisim.dev/internal/sim/catalogs"
	"logisim.dev/internal/sim/factory"
	"logisim.dev/internal/sim/layout"
	"logisim.dev/internal/sim/tuning"
	"logisim.dev/internal/transport/observer"
)

func main() {
	var (
		addr        = flag.String("addr", ":8080", "http listen address")
		configDir   = flag.String("configs", "./configs", "config directory (items.json, recipes.json, machines.json)")
		layoutPath  = flag.String("layout", "", "path to layout.yaml (default: <configs>/layout.yaml)")
		tuningPath  = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		dataDir     = flag.String("data", "./data", "runtime data directory")
		disableDB   = flag.Bool("disable_db", false, "disable the sqlite read model (tick/audit + catalogs + snapshot metadata)")
		allowRemote = flag.Bool("allow_remote", false, "serve observer and command endpoints to non-loopback clients")
		profMode    = flag.String("profile", "", "write a cpu or mem profile to <data>/profile (cpu|mem)")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	switch strings.ToLower(strings.TrimSpace(*profMode)) {
	case "":
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(filepath.Join(*dataDir, "profile")), profile.NoShutdownHook).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile, profile.ProfilePath(filepath.Join(*dataDir, "profile")), profile.NoShutdownHook).Stop()
	default:
		logger.Fatalf("unknown -profile %q (want cpu or mem)", *profMode)
	}

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}

	factoryDir := filepath.Join(*dataDir, "factories", tune.FactoryID)
	_ = os.MkdirAll(factoryDir, 0o755)

	// Optional read model (does not affect sim determinism).
	idx, err := openRuntimeIndex(factoryDir, *disableDB)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertCatalogs(*configDir, cats, tune); err != nil {
			logger.Printf("index backend: upsert catalogs: %v", err)
		}
	}

	f := factory.New(factory.Config{
		ID:                 tune.FactoryID,
		TickRateHz:         tune.TickRateHz,
		Workers:            tune.Workers,
		SnapshotEveryTicks: tune.SnapshotEveryTicks,
		StatusEveryTicks:   tune.StatusEveryTicks,
		DT:                 tune.DTOverride,
	}, cats)
	f.SetLogger(log.New(os.Stdout, "[factory] ", log.LstdFlags|log.Lmicroseconds))

	tickLog := persistlog.NewTickLogger(factoryDir)
	auditLog := persistlog.NewAuditLogger(factoryDir)
	defer tickLog.Close()
	defer auditLog.Close()
	f.SetTickLogger(multiTickLogger{a: tickLog, b: idx})
	f.SetAuditLogger(multiAuditLogger{a: auditLog, b: idx})

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad = latestSnapshot(factoryDir)
	}
	if snapshotToLoad != "" {
		snap, err := snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		if snap.Header.FactoryID != "" && snap.Header.FactoryID != tune.FactoryID {
			logger.Fatalf("snapshot factory id mismatch: tuning=%s snap=%s", tune.FactoryID, snap.Header.FactoryID)
		}
		if err := f.ImportSnapshot(snap); err != nil {
			logger.Fatalf("import snapshot: %v", err)
		}
		logger.Printf("resumed from snapshot=%s tick=%d machines=%d", filepath.Base(snapshotToLoad), f.CurrentTick(), f.MachineCount())
	} else {
		lp := strings.TrimSpace(*layoutPath)
		if lp == "" {
			lp = filepath.Join(*configDir, "layout.yaml")
		}
		lay, err := layout.Load(lp)
		if err != nil {
			logger.Fatalf("load layout: %v", err)
		}
		ids, err := lay.Apply(f)
		if err != nil {
			logger.Fatalf("build layout: %v", err)
		}
		logger.Printf("built layout=%s machines=%d", filepath.Base(lp), len(ids))
	}

	ctx, cancel := signalContext()
	defer cancel()

	// Snapshot writer.
	snapCh := make(chan snapshot.SnapshotV1, 2)
	f.SetSnapshotSink(snapCh)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case snap := <-snapCh:
				path := filepath.Join(factoryDir, "snapshots", fmt.Sprintf("%d.snap.zst", snap.Header.Tick))
				if err := snapshot.WriteSnapshot(path, snap); err != nil {
					logger.Printf("snapshot write: %v", err)
					continue
				}
				if idx != nil {
					idx.RecordSnapshot(path, snap)
				}
				if n, dst, ok, err := archive.ArchiveMilestone(factoryDir, path, snap, tune.ArchiveEveryTicks); err != nil {
					logger.Printf("milestone archive: %v", err)
				} else if ok {
					logger.Printf("archived milestone=%d tick=%d path=%s", n, snap.Header.Tick, dst)
				}
			}
		}
	}()

	obsSrv := observer.NewServer(f, logger, observer.Options{AllowRemote: *allowRemote})
	f.SetStatusPublisher(obsSrv)

	go func() {
		if err := f.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("factory stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, f, obsSrv, idx)
	})
	mux.HandleFunc("/v1/status", func(rw http.ResponseWriter, r *http.Request) {
		ctx2, cancel2 := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel2()
		var resp struct {
			FactoryID string                  `json:"factory_id"`
			Tick      uint64                  `json:"tick"`
			Last      *factory.TickReport     `json:"last,omitempty"`
			Machines  []factory.MachineStatus `json:"machines"`
		}
		err := f.Do(ctx2, func(f *factory.Factory) {
			resp.FactoryID = f.ID()
			resp.Tick = f.CurrentTick()
			if rep, ok := f.LastReport(); ok {
				resp.Last = &rep
			}
			resp.Machines = f.Statuses()
		})
		if err != nil {
			http.Error(rw, "factory busy", http.StatusServiceUnavailable)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	})
	mux.HandleFunc("/v1/commands", obsSrv.CommandHandler())
	mux.HandleFunc("/v1/observer/bootstrap", obsSrv.BootstrapHandler())
	mux.HandleFunc("/v1/observer/ws", obsSrv.WSHandler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s factory=%s tick_rate=%dHz workers=%d", *addr, tune.FactoryID, tune.TickRateHz, tune.Workers)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func latestSnapshot(factoryDir string) string {
	dir := filepath.Join(factoryDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestTick uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		tick, err := strconv.ParseUint(strings.TrimSuffix(name, ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		if best == "" || tick > bestTick {
			bestTick = tick
			best = filepath.Join(dir, name)
		}
	}
	return best
}
