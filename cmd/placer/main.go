// Command placer runs placement requests offline: it builds (or resumes) a
// world, feeds it a file of requests, and prints each result as JSON. Useful
// for authoring spacing tables and debugging deterministic layouts without a
// running server.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"worldsmith.ai/internal/persistence/snapshot"
	"worldsmith.ai/internal/protocol"
	"worldsmith.ai/internal/sim/catalogs"
	"worldsmith.ai/internal/sim/tuning"
	"worldsmith.ai/internal/sim/world"
)

func main() {
	var (
		configDir  = flag.String("configs", "configs", "catalog directory")
		tuningPath = flag.String("tuning", "configs/tuning.yaml", "tuning file")
		worldID    = flag.String("world", "offline", "world identifier")
		seed       = flag.Int64("seed", 1, "world seed")
		reqPath    = flag.String("req", "-", "request file, one JSON message per line (- for stdin)")
		snapIn     = flag.String("load_snapshot", "", "resume from this snapshot instead of generating terrain")
		snapOut    = flag.String("write_snapshot", "", "write the final state to this snapshot path")
		pretty     = flag.Bool("pretty", false, "indent result JSON")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "[placer] ", log.LstdFlags)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	var w *world.State
	if *snapIn != "" {
		snap, err := snapshot.Read(*snapIn)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		w, err = snapshot.Restore(snap, cats)
		if err != nil {
			logger.Fatalf("restore snapshot: %v", err)
		}
	} else {
		tune, err := tuning.Load(*tuningPath)
		if err != nil {
			logger.Fatalf("load tuning: %v", err)
		}
		w, err = world.New(world.ConfigFrom(tune, *worldID, *seed), cats)
		if err != nil {
			logger.Fatalf("create world: %v", err)
		}
	}

	var in io.Reader = os.Stdin
	if *reqPath != "-" {
		f, err := os.Open(*reqPath)
		if err != nil {
			logger.Fatalf("open requests: %v", err)
		}
		defer f.Close()
		in = f
	}

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		if err := runOne(w, raw, out, *pretty); err != nil {
			logger.Fatalf("line %d: %v", line, err)
		}
	}
	if err := sc.Err(); err != nil {
		logger.Fatalf("read requests: %v", err)
	}

	logger.Printf("done: pass=%d instances=%d digest=%s", w.Pass(), len(w.Instances()), w.StateDigest()[:12])

	if *snapOut != "" {
		if err := snapshot.Write(*snapOut, snapshot.Capture(w)); err != nil {
			logger.Fatalf("write snapshot: %v", err)
		}
		logger.Printf("snapshot -> %s", *snapOut)
	}
}

func runOne(w *world.State, raw []byte, out io.Writer, pretty bool) error {
	base, err := protocol.DecodeBase(raw)
	if err != nil {
		return err
	}

	var res protocol.ResultMsg
	switch base.Type {
	case protocol.TypePlace:
		var msg protocol.PlaceMsg
		if err := json.Unmarshal(raw, &msg); err != nil {
			return err
		}
		res, err = w.ResolvePlace(msg)
	case protocol.TypeTerrain:
		var msg protocol.TerrainMsg
		if err := json.Unmarshal(raw, &msg); err != nil {
			return err
		}
		res, err = w.ResolveTerrain(msg)
	default:
		return fmt.Errorf("unsupported message type %q", base.Type)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(res)
}
