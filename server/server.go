// Package server answers plan queries and tool calls over a websocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/xhad/planfinder/internal/models"
	"github.com/xhad/planfinder/internal/types"
	"github.com/xhad/planfinder/pkg/logger"
	"github.com/xhad/planfinder/pkg/tools"
)

const (
	TypePlan   = "plan"
	TypeTool   = "tool"
	TypeStatus = "status"
	TypeError  = "error"
)

// Message is both the request and the reply envelope. Replies carry the ID
// of the request they answer.
type Message struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Content string          `json:"content,omitempty"`
	Tool    string          `json:"tool,omitempty"`
	Args    json.RawMessage `json:"args,omitempty"`
	TopK    int             `json:"top_k,omitempty"`
	Data    any             `json:"data,omitempty"`
}

// PlanIndex is the plan finder plus the size used by the health check.
type PlanIndex interface {
	types.PlanFinder
	Size() int
}

type Config struct {
	Addr string
	// TopK is used for plan requests that do not set top_k.
	TopK int
	// ReadLimit caps the size of an incoming message in bytes.
	ReadLimit int64
	// RequestTimeout bounds the handling of a single message.
	RequestTimeout time.Duration
}

type WSServer struct {
	config   Config
	index    PlanIndex
	registry *tools.Registry
	log      *slog.Logger
	upgrader websocket.Upgrader
}

func NewWSServer(config Config, index PlanIndex, registry *tools.Registry) *WSServer {
	if config.Addr == "" {
		config.Addr = ":8080"
	}
	if config.TopK <= 0 {
		config.TopK = 1
	}
	if config.ReadLimit <= 0 {
		config.ReadLimit = 64 << 10
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 30 * time.Second
	}

	return &WSServer{
		config:   config,
		index:    index,
		registry: registry,
		log:      logger.Named("server"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (s *WSServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/tools", s.handleTools)
	return mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *WSServer) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("starting websocket server", "addr", s.config.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.log.Info("shutting down websocket server")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *WSServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.index.Size() == 0 {
		http.Error(w, "plan index not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *WSServer) handleTools(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.registry.Schemas()); err != nil {
		s.log.Error("failed to encode tool schemas", "error", err)
	}
}

type session struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
	log  *slog.Logger
}

func (c *session) send(msg Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.WriteJSON(msg); err != nil {
		c.log.Warn("error sending message", "error", err)
	}
}

func (s *WSServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(s.config.ReadLimit)

	id := uuid.NewString()
	sess := &session{id: id, conn: conn, log: s.log.With("conn", id)}
	sess.log.Info("client connected", "remote", r.RemoteAddr)
	sess.send(Message{Type: TypeStatus, Content: "connected", Data: map[string]string{"conn_id": id}})

	// In-flight handlers are cancelled and drained before the conn closes.
	ctx, cancel := context.WithCancel(r.Context())
	var wg sync.WaitGroup
	defer wg.Wait()
	defer cancel()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				sess.log.Warn("error reading message", "error", err)
			}
			sess.log.Info("client disconnected")
			return
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			sess.send(Message{Type: TypeError, Content: fmt.Sprintf("invalid message: %v", err)})
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			sess.send(s.handleMessage(ctx, msg))
		}()
	}
}

func (s *WSServer) handleMessage(ctx context.Context, msg Message) Message {
	ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	reply := Message{ID: msg.ID, Type: msg.Type}

	switch msg.Type {
	case TypePlan:
		k := msg.TopK
		if k == 0 {
			k = s.config.TopK
		}
		matches, err := s.index.FindSimilar(ctx, msg.Content, k)
		if err != nil {
			return Message{ID: msg.ID, Type: TypeError, Content: "Error finding similar plan: " + err.Error()}
		}
		if len(matches) > 0 {
			reply.Content = "Most similar plan: " + matches[0].Plan.Text
		}
		reply.Data = matchesData(matches)
	case TypeTool:
		reply.Tool = msg.Tool
		reply.Content = s.registry.Dispatch(ctx, msg.Tool, msg.Args)
	default:
		return Message{ID: msg.ID, Type: TypeError, Content: fmt.Sprintf("unknown message type %q", msg.Type)}
	}
	return reply
}

type matchData struct {
	Position int     `json:"position"`
	Text     string  `json:"text"`
	Distance float64 `json:"distance"`
}

func matchesData(matches []models.Match) []matchData {
	out := make([]matchData, len(matches))
	for i, m := range matches {
		out[i] = matchData{Position: m.Plan.Position, Text: m.Plan.Text, Distance: m.Distance}
	}
	return out
}
