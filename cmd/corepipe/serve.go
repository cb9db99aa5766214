package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/helixml/corepipe/pkg/config"
	"github.com/helixml/corepipe/pkg/executor"
	"github.com/helixml/corepipe/pkg/manifest"
	"github.com/helixml/corepipe/pkg/modelregistry"
	"github.com/helixml/corepipe/pkg/noderegistry"
	"github.com/helixml/corepipe/pkg/shmtensor"
	"github.com/helixml/corepipe/pkg/streamtype"
)

// newServeCmd runs the native profile: a long-running process exposing
// streaming sessions over a WebSocket transport, using the gorilla/websocket
// upgrade pattern to carry the DataChunk streaming envelope end to end.
func newServeCmd() *cobra.Command {
	var logLevel string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the native-profile streaming server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadServerConfig()
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			configureLogging(cfg.LogLevel)
			return runServe(cfg)
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "override COREPIPE_LOG_LEVEL")
	return cmd
}

func runServe(cfg config.ServerConfig) error {
	modelRegistry := modelregistry.New(modelregistry.Config{
		CapacityBytes: cfg.Registry.MaxMemoryBytes,
		IdleTTL:       cfg.Registry.TTL(),
	})
	defer modelRegistry.Close()

	allocator := shmtensor.NewAllocator(shmtensor.Config{
		TotalQuotaBytes: cfg.Allocator.MaxMemoryBytes,
		PerSessionQuota: cfg.Allocator.PerSessionQuota,
		CleanupInterval: cfg.Allocator.CleanupInterval,
	})
	defer allocator.Close()

	exec := executor.New(noderegistry.Default)

	manifestCache, err := manifest.NewCache(1024)
	if err != nil {
		return err
	}
	defer manifestCache.Close()

	server := &streamingServer{exec: exec, cfg: cfg, manifests: manifestCache}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", server.handleWebSocket)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: mux}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("starting corepipe native server")
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return httpServer.Shutdown(shutdownCtx)
}

type streamingServer struct {
	exec      *executor.Executor
	cfg       config.ServerConfig
	manifests *manifest.Cache
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsEnvelope is one WebSocket frame: the first frame on a connection
// carries a manifest, every subsequent frame carries a chunk addressed at
// one node.
type wsEnvelope struct {
	Manifest json.RawMessage        `json:"manifest,omitempty"`
	Chunk    *streamtype.DataBuffer `json:"chunk,omitempty"`
	NodeID   string                 `json:"node_id,omitempty"`
	Sequence uint64                 `json:"sequence,omitempty"`
}

func (s *streamingServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	var first wsEnvelope
	if err := conn.ReadJSON(&first); err != nil || len(first.Manifest) == 0 {
		conn.WriteJSON(map[string]string{"error": "first frame must carry a manifest"})
		return
	}
	m, err := s.manifests.ParseAndValidate(first.Manifest)
	if err != nil {
		conn.WriteJSON(map[string]string{"error": err.Error()})
		return
	}

	streamCfg := executor.StreamConfig{
		QueueCapacity: s.cfg.Streaming.QueueCapacity,
		Backpressure:  executor.BackpressurePolicy(strings.ToLower(string(s.cfg.Streaming.Backpressure))),
		IdleTimeout:   s.cfg.Streaming.IdleTimeout,
		BatchTimeout:  s.cfg.Worker.BatchTimeout(),
	}
	sess, err := executor.NewSession(s.exec, m, streamCfg)
	if err != nil {
		conn.WriteJSON(map[string]string{"error": err.Error()})
		return
	}
	defer sess.Close()

	go s.pumpOutputs(conn, sess)

	for {
		var env wsEnvelope
		if err := conn.ReadJSON(&env); err != nil {
			return
		}
		if env.Chunk == nil {
			continue
		}
		rd, err := streamtype.ToRuntime(env.Chunk)
		if err != nil {
			conn.WriteJSON(map[string]string{"error": err.Error()})
			continue
		}
		chunk := &streamtype.DataChunk{
			NodeID:      env.NodeID,
			Buffer:      rd,
			Sequence:    env.Sequence,
			TimestampMs: time.Now().UnixMilli(),
		}
		if err := sess.SendChunk(chunk); err != nil {
			conn.WriteJSON(map[string]string{"error": err.Error()})
		}
	}
}

func (s *streamingServer) pumpOutputs(conn *websocket.Conn, sess *executor.Session) {
	for {
		select {
		case chunk, ok := <-sess.Outputs():
			if !ok {
				return
			}
			buf, err := streamtype.ToProto(chunk.Buffer)
			if err != nil {
				continue
			}
			conn.WriteJSON(wsEnvelope{Chunk: buf, NodeID: chunk.NodeID, Sequence: chunk.Sequence})
		case err, ok := <-sess.Errors():
			if !ok {
				return
			}
			conn.WriteJSON(map[string]string{"error": err.Error()})
		}
	}
}
