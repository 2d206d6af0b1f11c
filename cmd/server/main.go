package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"worldsmith.ai/internal/persistence/indexdb"
	passlog "worldsmith.ai/internal/persistence/log"
	"worldsmith.ai/internal/persistence/snapshot"
	"worldsmith.ai/internal/protocol"
	"worldsmith.ai/internal/sim/catalogs"
	"worldsmith.ai/internal/sim/tuning"
	"worldsmith.ai/internal/sim/world"
	"worldsmith.ai/internal/transport/ws"
)

func main() {
	var (
		addr         = flag.String("addr", ":8080", "listen address")
		worldID      = flag.String("world", "world_1", "world identifier")
		seed         = flag.Int64("seed", 1, "world seed")
		configDir    = flag.String("configs", "configs", "catalog directory (assets.json, cameras.json, spacing.json)")
		dataDir      = flag.String("data", "data", "persistent data directory")
		tuningPath   = flag.String("tuning", "configs/tuning.yaml", "tuning file")
		schemaDir    = flag.String("schemas", "schemas", "request schema directory (empty disables validation)")
		disableDB    = flag.Bool("disable_db", false, "skip the sqlite pass index")
		loadSnapshot = flag.Bool("load_latest_snapshot", false, "resume from the newest snapshot in the world dir")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}
	logger.Printf("catalogs loaded: %d assets, %d cameras (assets=%s)",
		len(cats.Assets.Defs), len(cats.Cameras.ByName), cats.Assets.Digest[:12])

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	if err := os.MkdirAll(worldDir, 0o755); err != nil {
		logger.Fatalf("create world dir: %v", err)
	}

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if !(*loadSnapshot && os.IsNotExist(err)) {
			logger.Fatalf("load tuning: %v", err)
		}
		// Resuming: the snapshot carries the effective world config, the
		// tuning file only matters for snapshot cadence.
		tune = tuning.Defaults()
		logger.Printf("no tuning file, using defaults (resume)")
	}

	var w *world.State
	if *loadSnapshot {
		path := snapshot.Latest(worldDir)
		if path == "" {
			logger.Fatalf("no snapshot found in %s", worldDir)
		}
		snap, err := snapshot.Read(path)
		if err != nil {
			logger.Fatalf("read snapshot %s: %v", path, err)
		}
		w, err = snapshot.Restore(snap, cats)
		if err != nil {
			logger.Fatalf("restore snapshot: %v", err)
		}
		logger.Printf("resumed world=%s pass=%d from %s", *worldID, w.Pass(), path)
	} else {
		w, err = world.New(world.ConfigFrom(tune, *worldID, *seed), cats)
		if err != nil {
			logger.Fatalf("create world: %v", err)
		}
		logger.Printf("world=%s seed=%d grid=%d digest=%s", *worldID, *seed, w.Config().GridN, w.StateDigest()[:12])
	}

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(worldDir, "index.db"))
		if err != nil {
			logger.Fatalf("open index db: %v", err)
		}
		defer idx.Close()
		if err := idx.UpsertCatalogs(*configDir, cats, tune); err != nil {
			logger.Fatalf("index catalogs: %v", err)
		}
	}

	journal := passlog.NewPassLogger(worldDir)
	defer journal.Close()

	srv, err := ws.NewServer(w, *schemaDir, logger)
	if err != nil {
		logger.Fatalf("ws server: %v", err)
	}

	// Snapshots are written off the request path. Captures are cheap copies
	// taken under the pass lock; encoding and fsync happen here.
	snapCh := make(chan snapshot.WorldStateV1, 4)
	snapDone := make(chan struct{})
	go func() {
		defer close(snapDone)
		for snap := range snapCh {
			path := snapshot.PathFor(worldDir, snap.Header.Pass)
			if err := snapshot.Write(path, snap); err != nil {
				logger.Printf("snapshot pass=%d failed: %v", snap.Header.Pass, err)
				continue
			}
			logger.Printf("snapshot pass=%d -> %s (%d instances)", snap.Header.Pass, path, len(snap.Instances))
			if idx != nil {
				idx.RecordSnapshot(path, snap)
			}
		}
	}()

	every := tune.SnapshotEveryPasses
	srv.SetAfterPass(func(kind string, res protocol.ResultMsg, digest string) {
		if idx != nil {
			idx.RecordPass(kind, res, digest)
		}
		if err := journal.WritePass(kind, res, digest); err != nil {
			logger.Printf("pass journal: %v", err)
		}
		if every > 0 && res.Pass%uint64(every) == 0 {
			select {
			case snapCh <- snapshot.Capture(w):
			default:
				logger.Printf("snapshot pass=%d dropped: writer busy", res.Pass)
			}
		}
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/v1/state", func(rw http.ResponseWriter, _ *http.Request) {
		type stateResp struct {
			WorldID   string `json:"world_id"`
			Pass      uint64 `json:"pass"`
			Digest    string `json:"digest"`
			Instances int    `json:"instances"`
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(stateResp{
			WorldID:   w.Config().ID,
			Pass:      w.Pass(),
			Digest:    w.StateDigest(),
			Instances: len(w.Instances()),
		})
	})
	if idx != nil {
		mux.HandleFunc("/v1/index/stats", func(rw http.ResponseWriter, _ *http.Request) {
			rw.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(rw).Encode(idx.Stats())
		})
	}
	mux.HandleFunc("/v1/ws", srv.Handler())

	httpSrv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signalContext()
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("listening on %s", *addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Printf("shutting down")
	case err := <-errCh:
		logger.Fatalf("serve: %v", err)
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutCtx); err != nil {
		logger.Printf("shutdown: %v", err)
	}

	// Final snapshot so a restart with -load_latest_snapshot resumes at the
	// last resolved pass.
	if w.Pass() > 0 {
		select {
		case snapCh <- snapshot.Capture(w):
		default:
		}
	}
	close(snapCh)
	<-snapDone
	logger.Printf("stopped at pass=%d", w.Pass())
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
