// Package ws is the placement service's client transport: a JSON message
// loop over a websocket. One HELLO/WELCOME handshake, then PLACE and
// TERRAIN requests answered synchronously with RESULT or ERROR frames.
package ws

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"worldsmith.ai/internal/protocol"
	"worldsmith.ai/internal/sim/world"
)

type Server struct {
	log      *log.Logger
	upgrader websocket.Upgrader

	// Passes mutate world state; connections share one engine, so requests
	// serialize on this mutex.
	mu    sync.Mutex
	world *world.State

	placeSchema   *jsonschema.Schema
	terrainSchema *jsonschema.Schema

	afterPass func(kind string, res protocol.ResultMsg, digest string)
}

// NewServer wraps a world state. schemaDir points at the request schemas;
// empty disables schema validation (tests mostly).
func NewServer(w *world.State, schemaDir string, logger *log.Logger) (*Server, error) {
	s := &Server{
		world: w,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	if schemaDir != "" {
		var err error
		if s.placeSchema, err = jsonschema.Compile(filepath.Join(schemaDir, "place.schema.json")); err != nil {
			return nil, fmt.Errorf("compile place schema: %w", err)
		}
		if s.terrainSchema, err = jsonschema.Compile(filepath.Join(schemaDir, "terrain.schema.json")); err != nil {
			return nil, fmt.Errorf("compile terrain schema: %w", err)
		}
	}
	return s, nil
}

// SetAfterPass installs a hook run after every committed pass, in request
// order, with the post-pass state digest.
func (s *Server) SetAfterPass(fn func(kind string, res protocol.ResultMsg, digest string)) {
	s.afterPass = fn
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		if !s.handshake(conn) {
			return
		}

		for {
			_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			s.dispatch(conn, msg)
		}
	}
}

func (s *Server) handshake(conn *websocket.Conn) bool {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return false
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return false
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return false
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return false
	}

	s.mu.Lock()
	welcome := s.welcome()
	s.mu.Unlock()
	return writeJSON(conn, welcome) == nil
}

func (s *Server) welcome() protocol.WelcomeMsg {
	cfg := s.world.Config()
	cats := s.world.Catalogs()
	return protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		WorldID:         cfg.ID,
		WorldParams: protocol.WorldParams{
			GridN:      cfg.GridN,
			TileSize:   cfg.TileSize,
			HeightStep: cfg.HeightStep,
			Seed:       cfg.Seed,
		},
		Catalogs: protocol.CatalogDigests{
			AssetsDigest:  cats.Assets.Digest,
			CamerasDigest: cats.Cameras.Digest,
			SpacingDigest: cats.Spacing.Digest,
		},
	}
}

func (s *Server) dispatch(conn *websocket.Conn, msg []byte) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		s.writeError(conn, "", protocol.ErrProtoBadRequest, "malformed json")
		return
	}
	if base.ProtocolVersion != protocol.Version {
		s.writeError(conn, "", protocol.ErrProtoBadRequest, "bad protocol_version")
		return
	}

	switch base.Type {
	case protocol.TypePlace:
		if !s.validateSchema(conn, s.placeSchema, msg) {
			return
		}
		var place protocol.PlaceMsg
		if err := json.Unmarshal(msg, &place); err != nil {
			s.writeError(conn, "", protocol.ErrProtoBadRequest, "malformed PLACE")
			return
		}
		s.resolve(conn, "PLACE", place.RequestID, func() (protocol.ResultMsg, error) {
			return s.world.ResolvePlace(place)
		})

	case protocol.TypeTerrain:
		if !s.validateSchema(conn, s.terrainSchema, msg) {
			return
		}
		var ter protocol.TerrainMsg
		if err := json.Unmarshal(msg, &ter); err != nil {
			s.writeError(conn, "", protocol.ErrProtoBadRequest, "malformed TERRAIN")
			return
		}
		s.resolve(conn, "TERRAIN", ter.RequestID, func() (protocol.ResultMsg, error) {
			return s.world.ResolveTerrain(ter)
		})

	default:
		s.writeError(conn, "", protocol.ErrProtoBadRequest, fmt.Sprintf("unexpected type %q", base.Type))
	}
}

func (s *Server) resolve(conn *websocket.Conn, kind, requestID string, run func() (protocol.ResultMsg, error)) {
	s.mu.Lock()
	res, err := run()
	if err == nil {
		// The hook runs under the lock so it sees the state exactly as the
		// pass left it.
		digest := s.world.StateDigest()
		if s.afterPass != nil {
			s.afterPass(kind, res, digest)
		}
	}
	s.mu.Unlock()

	if err != nil {
		s.writeError(conn, requestID, world.ErrorCode(err), err.Error())
		return
	}
	_ = writeJSON(conn, res)
}

func (s *Server) validateSchema(conn *websocket.Conn, schema *jsonschema.Schema, msg []byte) bool {
	if schema == nil {
		return true
	}
	var v any
	if err := json.Unmarshal(msg, &v); err != nil {
		s.writeError(conn, "", protocol.ErrProtoBadRequest, "malformed json")
		return false
	}
	if err := schema.Validate(v); err != nil {
		s.writeError(conn, "", protocol.ErrProtoBadRequest, err.Error())
		return false
	}
	return true
}

func (s *Server) writeError(conn *websocket.Conn, requestID, code, message string) {
	_ = writeJSON(conn, protocol.ErrorMsg{
		Type:            protocol.TypeError,
		ProtocolVersion: protocol.Version,
		RequestID:       requestID,
		Code:            code,
		Message:         message,
	})
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
