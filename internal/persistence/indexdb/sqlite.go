// Package indexdb is the read-model index: an async SQLite mirror of pass
// results and snapshot metadata for offline querying. It never feeds back
// into resolution; dropping writes under load is acceptable.
package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"worldsmith.ai/internal/persistence/snapshot"
	"worldsmith.ai/internal/protocol"
	"worldsmith.ai/internal/sim/catalogs"
	"worldsmith.ai/internal/sim/tuning"
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropPass     atomic.Uint64
	dropSnapshot atomic.Uint64
}

type reqKind int

const (
	reqPass reqKind = iota + 1
	reqSnapshot
)

type req struct {
	kind reqKind

	pass     passRow
	snapshot snapshotRow
}

type passRow struct {
	Pass      uint64
	RequestID string
	Kind      string // PLACE or TERRAIN
	Requested int
	Placed    int
	Deficit   int
	Digest    string // world state digest after the pass
	Result    protocol.ResultMsg
}

type snapshotRow struct {
	Pass      uint64
	Path      string
	Seed      int64
	GridN     int
	Instances int
}

type Stats struct {
	QueueDepth        int
	QueueCapacity     int
	DropPassTotal     uint64
	DropSnapshotTotal uint64
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL suits the append-style workload; NORMAL durability is fine for a
	// secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS passes (
			pass INTEGER PRIMARY KEY,
			request_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			requested INTEGER NOT NULL,
			placed INTEGER NOT NULL,
			deficit INTEGER NOT NULL,
			digest TEXT NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS instances (
			pass INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			instance_id TEXT NOT NULL,
			category TEXT NOT NULL,
			name TEXT,
			x REAL NOT NULL,
			y REAL NOT NULL,
			z REAL NOT NULL,
			yaw REAL NOT NULL,
			scale REAL NOT NULL,
			PRIMARY KEY (pass, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_instances_category ON instances(category, pass);`,
		`CREATE TABLE IF NOT EXISTS diagnostics (
			pass INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			code TEXT NOT NULL,
			node_id TEXT,
			message TEXT,
			PRIMARY KEY (pass, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_diagnostics_code ON diagnostics(code, pass);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			pass INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			seed INTEGER NOT NULL,
			grid_n INTEGER NOT NULL,
			instances INTEGER NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
		DropPassTotal:     s.dropPass.Load(),
		DropSnapshotTotal: s.dropSnapshot.Load(),
	}
}

// RecordPass indexes one resolved pass. Kind is PLACE or TERRAIN; digest is
// the state digest after the pass committed.
func (s *SQLiteIndex) RecordPass(kind string, res protocol.ResultMsg, digest string) {
	if s == nil || s.closed.Load() {
		return
	}
	r := passRow{
		Pass:      res.Pass,
		RequestID: res.RequestID,
		Kind:      kind,
		Requested: res.Requested,
		Placed:    res.Placed,
		Deficit:   res.Deficit,
		Digest:    digest,
		Result:    res,
	}
	select {
	case s.ch <- req{kind: reqPass, pass: r}:
	default:
		// Drop if the indexer falls behind; snapshots remain the source of truth.
		s.dropPass.Add(1)
	}
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.WorldStateV1) {
	if s == nil || s.closed.Load() {
		return
	}
	r := snapshotRow{
		Pass:      snap.Header.Pass,
		Path:      path,
		Seed:      snap.Seed,
		GridN:     snap.GridN,
		Instances: len(snap.Instances),
	}
	select {
	case s.ch <- req{kind: reqSnapshot, snapshot: r}:
	default:
		s.dropSnapshot.Add(1)
	}
}

// UpsertCatalogs stores the raw catalog files with their effective digests
// so an operator can diff what a running world was loaded with.
func (s *SQLiteIndex) UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	read := func(name, digest, path string) {
		b, err := os.ReadFile(path)
		if err != nil {
			return
		}
		rows = append(rows, kv{name: name, digest: digest, json: b})
	}
	if configDir != "" {
		read("assets", cats.Assets.Digest, filepath.Join(configDir, "assets.json"))
		read("cameras", cats.Cameras.Digest, filepath.Join(configDir, "cameras.json"))
		read("spacing", cats.Spacing.Digest, filepath.Join(configDir, "spacing.json"))
	}
	{
		// Tuning: store the values we actually apply, as canonical JSON.
		b, _ := json.Marshal(tune)
		sum := sha256.Sum256(b)
		rows = append(rows, kv{name: "tuning", digest: hex.EncodeToString(sum[:]), json: b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if r.name == "" || r.digest == "" || len(r.json) == 0 {
			continue
		}
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertPass, _ := s.db.Prepare(`INSERT OR REPLACE INTO passes(pass,request_id,kind,requested,placed,deficit,digest,raw_json) VALUES(?,?,?,?,?,?,?,?)`)
	insertInstance, _ := s.db.Prepare(`INSERT OR REPLACE INTO instances(pass,seq,instance_id,category,name,x,y,z,yaw,scale) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	insertDiagnostic, _ := s.db.Prepare(`INSERT OR REPLACE INTO diagnostics(pass,seq,code,node_id,message) VALUES(?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(pass,path,seed,grid_n,instances) VALUES(?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertPass, insertInstance, insertDiagnostic, insertSnapshot} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqPass:
			p := r.pass
			raw, _ := json.Marshal(p.Result)
			if insertPass != nil {
				if _, err := tx.Stmt(insertPass).Exec(
					int64(p.Pass),
					p.RequestID,
					p.Kind,
					p.Requested,
					p.Placed,
					p.Deficit,
					p.Digest,
					string(raw),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
			for i, inst := range p.Result.Instances {
				if insertInstance == nil {
					break
				}
				if _, err := tx.Stmt(insertInstance).Exec(
					int64(p.Pass), i,
					inst.ID, inst.Category, inst.Name,
					inst.Pos.X, inst.Pos.Y, inst.Pos.Z,
					inst.Yaw, inst.Scale,
				); err != nil {
					rollback()
					break
				}
				opCount++
			}
			for i, d := range p.Result.Diagnostics {
				if insertDiagnostic == nil {
					break
				}
				if _, err := tx.Stmt(insertDiagnostic).Exec(int64(p.Pass), i, d.Code, d.NodeID, d.Message); err != nil {
					rollback()
					break
				}
				opCount++
			}

		case reqSnapshot:
			sn := r.snapshot
			if insertSnapshot != nil {
				if _, err := tx.Stmt(insertSnapshot).Exec(
					int64(sn.Pass),
					sn.Path,
					sn.Seed,
					sn.GridN,
					sn.Instances,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}
		flushIfNeeded()
	}

	commit()
}
