// Package web exposes the live-update surface: a websocket feed of
// broadcaster topics, an SSE stream of the execution journal and a small
// JSON status API.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/copytrade/internal/domain"
	"github.com/vadiminshakov/copytrade/internal/events"
	"github.com/vadiminshakov/copytrade/internal/services/execution"
	"github.com/vadiminshakov/copytrade/internal/services/scanner"
	"github.com/vadiminshakov/copytrade/internal/services/stats"
	"github.com/vadiminshakov/copytrade/internal/storage/journal"
)

const (
	journalPollInterval = 2 * time.Second
	heartbeatInterval   = 30 * time.Second
	wsWriteTimeout      = 10 * time.Second
)

type journalReader interface {
	EntriesAfter(index uint64) ([]journal.Entry, error)
}

type scanReporter interface {
	Status() []scanner.JobStatus
	LastScan() *scanner.ScanResult
}

type statsProvider interface {
	UserStats(ctx context.Context, userID uuid.UUID) (*stats.UserStats, error)
	DailyVolumes(ctx context.Context, userID uuid.UUID, days int) ([]stats.DailyVolume, error)
}

type orderExecutor interface {
	Execute(ctx context.Context, req execution.Request) (*domain.TradeRecord, error)
}

// Server serves the live-update endpoints.
type Server struct {
	addr        string
	broadcaster *events.Broadcaster
	journal     journalReader
	scans       scanReporter
	stats       statsProvider
	orders      orderExecutor
	logger      *zap.Logger
	upgrader    websocket.Upgrader
}

// NewServer creates a web server. journal, scans, statistics and orders may
// be nil; their endpoints then answer 503.
func NewServer(addr string, broadcaster *events.Broadcaster, j journalReader, scans scanReporter, statistics statsProvider, orders orderExecutor, logger *zap.Logger) *Server {
	return &Server{
		addr:        addr,
		broadcaster: broadcaster,
		journal:     j,
		scans:       scans,
		stats:       statistics,
		orders:      orders,
		logger:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Start runs the HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/ws", s.handleWebsocket)
	mux.HandleFunc("/executions/stream", s.handleExecutionStream)
	mux.HandleFunc("/scanner/status", s.handleScannerStatus)
	mux.HandleFunc("/stats/user", s.handleUserStats)
	mux.HandleFunc("/stats/daily", s.handleDailyVolumes)
	mux.HandleFunc("/orders", s.handleCreateOrder)

	server := &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("web server listening", zap.String("addr", s.addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"status":"ok"}`)
}

// handleWebsocket subscribes the client to one broadcaster topic, given by
// the topic query parameter (default signal:new), and relays its events.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	topic := r.URL.Query().Get("topic")
	if topic == "" {
		topic = events.TopicSignalNew
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ch, cancel := s.broadcaster.Subscribe(topic)
	defer cancel()

	// drain the read side so close frames are processed
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case event, ok := <-ch:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-heartbeat.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}

// handleExecutionStream replays the execution journal over SSE and keeps
// following it.
func (s *Server) handleExecutionStream(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		http.Error(w, "execution journal not available", http.StatusServiceUnavailable)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	poll := time.NewTicker(journalPollInterval)
	defer poll.Stop()

	lastIndex := uint64(0)
	send := func() error {
		entries, err := s.journal.EntriesAfter(lastIndex)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			payload, err := json.Marshal(entry)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "event: %s\n", entry.Kind)
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
			lastIndex = entry.Index
		}
		return nil
	}

	if err := send(); err != nil {
		s.logger.Error("execution stream initial load failed", zap.Error(err))
		http.Error(w, "failed to load execution journal", http.StatusInternalServerError)
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case <-poll.C:
			if err := send(); err != nil {
				s.logger.Error("execution stream poll failed", zap.Error(err))
			}
		}
	}
}

type scannerStatusResponse struct {
	Jobs     []scanner.JobStatus `json:"jobs"`
	LastScan *scanner.ScanResult `json:"lastScan,omitempty"`
}

func (s *Server) handleScannerStatus(w http.ResponseWriter, _ *http.Request) {
	if s.scans == nil {
		http.Error(w, "scanner not available", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	resp := scannerStatusResponse{
		Jobs:     s.scans.Status(),
		LastScan: s.scans.LastScan(),
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("failed to encode scanner status", zap.Error(err))
	}
}

func (s *Server) handleUserStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		http.Error(w, "statistics not available", http.StatusServiceUnavailable)
		return
	}
	userID, err := uuid.Parse(r.URL.Query().Get("user"))
	if err != nil {
		http.Error(w, "user query parameter must be a uuid", http.StatusBadRequest)
		return
	}

	userStats, err := s.stats.UserStats(r.Context(), userID)
	if err != nil {
		s.logger.Error("failed to compute user stats", zap.Error(err))
		http.Error(w, "failed to compute user stats", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(userStats); err != nil {
		s.logger.Error("failed to encode user stats", zap.Error(err))
	}
}

type orderRequest struct {
	User       string           `json:"user"`
	Symbol     string           `json:"symbol"`
	Side       string           `json:"side"`
	Amount     decimal.Decimal  `json:"amount"`
	OrderType  string           `json:"orderType"`
	LimitPrice *decimal.Decimal `json:"limitPrice,omitempty"`
	SignalID   *string          `json:"signalId,omitempty"`
}

type riskRejectionResponse struct {
	Error string                 `json:"error"`
	Risk  domain.RiskCheckResult `json:"risk"`
}

// handleCreateOrder places an order on behalf of a user. Requests without a
// signalId run as manual trades; a signalId ties the order to its signal.
func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	if s.orders == nil {
		http.Error(w, "order execution not available", http.StatusServiceUnavailable)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body orderRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "malformed order request", http.StatusBadRequest)
		return
	}
	userID, err := uuid.Parse(body.User)
	if err != nil {
		http.Error(w, "user must be a uuid", http.StatusBadRequest)
		return
	}

	req := execution.Request{
		UserID:     userID,
		Symbol:     body.Symbol,
		Side:       domain.Side(body.Side),
		Amount:     body.Amount,
		Type:       domain.OrderType(body.OrderType),
		LimitPrice: body.LimitPrice,
	}
	if req.Type == "" {
		req.Type = domain.OrderTypeMarket
	}
	if body.SignalID != nil {
		signalID, err := uuid.Parse(*body.SignalID)
		if err != nil {
			http.Error(w, "signalId must be a uuid", http.StatusBadRequest)
			return
		}
		req.SignalID = &signalID
	}

	record, err := s.orders.Execute(r.Context(), req)
	if err != nil {
		s.writeOrderError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(record); err != nil {
		s.logger.Error("failed to encode trade record", zap.Error(err))
	}
}

func (s *Server) writeOrderError(w http.ResponseWriter, err error) {
	var riskErr *domain.RiskCheckError
	switch {
	case errors.As(err, &riskErr):
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		resp := riskRejectionResponse{Error: riskErr.Error(), Risk: riskErr.Result}
		if encErr := json.NewEncoder(w).Encode(resp); encErr != nil {
			s.logger.Error("failed to encode risk rejection", zap.Error(encErr))
		}
	case errors.Is(err, domain.ErrAlreadyProcessed):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrNoActiveCredential):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrExchange):
		s.logger.Error("order submission failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}

func (s *Server) handleDailyVolumes(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		http.Error(w, "statistics not available", http.StatusServiceUnavailable)
		return
	}
	userID, err := uuid.Parse(r.URL.Query().Get("user"))
	if err != nil {
		http.Error(w, "user query parameter must be a uuid", http.StatusBadRequest)
		return
	}
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))

	volumes, err := s.stats.DailyVolumes(r.Context(), userID, days)
	if err != nil {
		s.logger.Error("failed to compute daily volumes", zap.Error(err))
		http.Error(w, "failed to compute daily volumes", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(volumes); err != nil {
		s.logger.Error("failed to encode daily volumes", zap.Error(err))
	}
}
