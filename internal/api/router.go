// Package api provides the HTTP surface of the execution engine: triggering
// executions, reading their audit records, risk state and sizing previews,
// plus the websocket progress stream.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"execution-systemv1/internal/engine"
	"execution-systemv1/internal/gateway"
	"execution-systemv1/internal/model"
	"execution-systemv1/internal/risk"
	"execution-systemv1/internal/sizing"
)

// ExecutionReader reads back persisted execution summaries. Returns
// nil, nil for an unknown ID.
type ExecutionReader interface {
	ReadExecution(ctx context.Context, executionID string) (*model.ExecutionSummary, error)
}

// Defaults are the broker limits applied to requests that do not override
// them.
type Defaults struct {
	MaxLotsPerOrder int
	InterBatchDelay time.Duration
	OrderTimeout    time.Duration
	RiskFraction    float64
}

// Server handles the execution API. One execution runs at a time; a second
// trigger while one is in flight is rejected with 409.
type Server struct {
	engine   *engine.Engine
	gate     *risk.Gate
	hub      *gateway.Hub
	reader   ExecutionReader
	defaults Defaults
	log      *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

// NewServer creates the API server. hub and reader may be nil; the
// corresponding routes then return 404.
func NewServer(eng *engine.Engine, gate *risk.Gate, hub *gateway.Hub, reader ExecutionReader, defaults Defaults, log *slog.Logger) *Server {
	return &Server{engine: eng, gate: gate, hub: hub, reader: reader, defaults: defaults, log: log}
}

// Router sets up HTTP routes for the API server.
func (s *Server) Router() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	mux.HandleFunc("/api/v1/executions", s.handleExecutions)
	mux.HandleFunc("/api/v1/executions/", s.handleExecutionByID)
	mux.HandleFunc("/api/v1/executions/cancel", s.handleCancel)
	mux.HandleFunc("/api/v1/risk", s.handleRiskState)
	mux.HandleFunc("/api/v1/risk/reset", s.handleRiskReset)
	mux.HandleFunc("/api/v1/sizing", s.handleSizing)
	if s.hub != nil {
		mux.HandleFunc("/api/v1/stream", s.hub.ServeWS)
	}

	return mux
}

type legRequest struct {
	Kind        string  `json:"kind"`        // CALL | PUT
	Strike      float64 `json:"strike"`      // rupees
	OptionType  string  `json:"option_type"` // CE | PE
	Transaction string  `json:"transaction"` // BUY | SELL
	Product     string  `json:"product,omitempty"`
}

type executionRequest struct {
	Underlying      string       `json:"underlying"`
	Expiry          string       `json:"expiry"` // YYYY-MM-DD
	Exchange        string       `json:"exchange,omitempty"`
	Legs            []legRequest `json:"legs"`
	TotalLots       int          `json:"total_lots"`
	MaxLotsPerOrder int          `json:"max_lots_per_order,omitempty"`
	EntryPremium    float64      `json:"entry_premium,omitempty"`
	MarginUsed      float64      `json:"margin_used,omitempty"`
}

func (s *Server) handleExecutions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req executionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("malformed request body: %v", err))
		return
	}
	engReq, err := s.buildRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		writeError(w, http.StatusConflict, "an execution is already in flight")
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.running = true
	s.cancel = cancel
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.running = false
			s.cancel = nil
			s.mu.Unlock()
			cancel()
		}()
		summary, err := s.engine.Execute(ctx, engReq)
		if err != nil {
			s.log.Error("execution failed", slog.String("error", err.Error()))
			return
		}
		s.log.Info("execution accepted via api finished",
			slog.String("execution_id", summary.ExecutionID),
			slog.Bool("overall_success", summary.OverallSuccess))
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "accepted"})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel == nil {
		writeError(w, http.StatusNotFound, "no execution in flight")
		return
	}
	cancel()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "cancelling"})
}

func (s *Server) handleExecutionByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.reader == nil {
		http.NotFound(w, r)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/executions/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "execution id required")
		return
	}
	summary, err := s.reader.ReadExecution(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if summary == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, summary)
}

func (s *Server) handleRiskState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	st, err := s.gate.State(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, st)
}

func (s *Server) handleRiskReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.gate.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.log.Info("risk circuit breaker reset via api")
	writeJSON(w, map[string]string{"status": "reset"})
}

type sizingRequest struct {
	AvailableMargin float64 `json:"available_margin"`
	MarginPerLot    float64 `json:"margin_per_lot"`
	PremiumPerUnit  float64 `json:"premium_per_unit"`
	RiskFraction    float64 `json:"risk_fraction,omitempty"`
}

func (s *Server) handleSizing(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req sizingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("malformed request body: %v", err))
		return
	}
	if req.AvailableMargin <= 0 || req.MarginPerLot <= 0 {
		writeError(w, http.StatusBadRequest, "available_margin and margin_per_lot must be positive")
		return
	}
	fraction := req.RiskFraction
	if fraction == 0 {
		fraction = s.defaults.RiskFraction
	}
	plan := sizing.BuildPlan(req.AvailableMargin, req.MarginPerLot, req.PremiumPerUnit, fraction, sizing.DefaultOffsets)
	writeJSON(w, plan)
}

func (s *Server) buildRequest(req executionRequest) (engine.Request, error) {
	if req.Expiry == "" {
		return engine.Request{}, errors.New("expiry required (YYYY-MM-DD)")
	}
	expiry, err := time.Parse("2006-01-02", req.Expiry)
	if err != nil {
		return engine.Request{}, fmt.Errorf("malformed expiry %q: %w", req.Expiry, err)
	}
	exchange := req.Exchange
	if exchange == "" {
		exchange = "NFO"
	}
	maxPer := req.MaxLotsPerOrder
	if maxPer == 0 {
		maxPer = s.defaults.MaxLotsPerOrder
	}

	legs := make([]engine.LegSpec, 0, len(req.Legs))
	for i, l := range req.Legs {
		kind := model.LegKind(strings.ToUpper(l.Kind))
		if kind != model.LegCall && kind != model.LegPut {
			return engine.Request{}, fmt.Errorf("legs[%d].kind must be CALL or PUT", i)
		}
		opt := model.OptionType(strings.ToUpper(l.OptionType))
		if opt == "" {
			if kind == model.LegCall {
				opt = model.OptionCall
			} else {
				opt = model.OptionPut
			}
		}
		legs = append(legs, engine.LegSpec{
			Kind: kind,
			Spec: model.InstrumentSpec{
				Underlying: req.Underlying,
				Expiry:     expiry,
				Strike:     l.Strike,
				OptionType: opt,
				Exchange:   exchange,
			},
			TransactionType: strings.ToUpper(l.Transaction),
			ProductType:     l.Product,
		})
	}

	return engine.Request{
		Underlying:      req.Underlying,
		Legs:            legs,
		TotalLots:       req.TotalLots,
		MaxLotsPerOrder: maxPer,
		InterBatchDelay: s.defaults.InterBatchDelay,
		OrderTimeout:    s.defaults.OrderTimeout,
		EntryPremium:    req.EntryPremium,
		MarginUsed:      req.MarginUsed,
	}, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
