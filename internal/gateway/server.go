package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/akrambak/aegis-planner/internal/approval"
	"github.com/akrambak/aegis-planner/internal/audit"
	"github.com/akrambak/aegis-planner/internal/config"
	"github.com/akrambak/aegis-planner/internal/plane"
	"github.com/akrambak/aegis-planner/internal/task"
	"github.com/akrambak/aegis-planner/internal/version"
)

// Planner is the control-plane surface the gateway exposes over HTTP.
type Planner interface {
	Submit(ctx context.Context, req plane.SubmitRequest) (audit.Record, error)
	Resolve(res approval.Resolution) (approval.Ticket, bool, error)
}

// AuditReader serves the read-only endpoints.
type AuditReader interface {
	PendingTickets() ([]approval.Ticket, error)
	RecentRecords(windowDays int) ([]audit.Record, error)
}

type Server struct {
	cfg        config.GatewayConfig
	planner    Planner
	reader     AuditReader
	httpServer *http.Server
}

func New(cfg config.GatewayConfig, planner Planner, reader AuditReader) *Server {
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		host = "0.0.0.0"
	}
	port := cfg.Port
	if port <= 0 {
		port = 18590
	}

	cfg.Host = host
	cfg.Port = port
	return &Server{
		cfg:     cfg,
		planner: planner,
		reader:  reader,
	}
}

func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
}

func (s *Server) Start() error {
	mux := NewHandler(s.cfg.Token, s.planner, s.reader)
	s.httpServer = &http.Server{
		Addr:              s.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	slog.Info("gateway listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func NewHandler(token string, planner Planner, reader AuditReader) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		requestID := getRequestID(r)
		if r.Method != http.MethodGet {
			writeError(w, requestID, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":     "ok",
			"request_id": requestID,
		})
	})
	mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		requestID := getRequestID(r)
		if r.Method != http.MethodGet {
			writeError(w, requestID, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"version":    version.Version,
			"request_id": requestID,
		})
	})
	mux.HandleFunc("/submit", func(w http.ResponseWriter, r *http.Request) {
		requestID := getRequestID(r)
		if r.Method != http.MethodPost {
			writeError(w, requestID, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
			return
		}
		if !isAuthorized(r, token) {
			writeError(w, requestID, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
			return
		}

		var req struct {
			Task      string `json:"task"`
			Type      string `json:"type"`
			Payload   string `json:"payload"`
			Requester string `json:"requester"`
			DryRun    bool   `json:"dry_run"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, requestID, http.StatusBadRequest, "bad_request", "invalid json request")
			return
		}

		var t task.Task
		if typ := strings.TrimSpace(req.Type); typ != "" {
			t = task.NewStructured(task.Type(typ), req.Payload)
		} else {
			t = task.NewText(req.Task)
		}
		if t.IsEmpty() {
			writeError(w, requestID, http.StatusBadRequest, "bad_request", "task is required")
			return
		}
		requester := strings.TrimSpace(req.Requester)
		if requester == "" {
			requester = "api"
		}

		if planner == nil {
			writeError(w, requestID, http.StatusInternalServerError, "internal_error", "planner is not configured")
			return
		}

		record, err := planner.Submit(r.Context(), plane.SubmitRequest{
			Task:      t,
			Requester: requester,
			DryRun:    req.DryRun,
		})
		if err != nil {
			slog.Error("gateway submit failed", "request_id", requestID, "error", err)
			writeError(w, requestID, http.StatusInternalServerError, "internal_error", "failed to process task submission")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"record":     record,
			"request_id": requestID,
		})
	})
	mux.HandleFunc("/approvals/resolve", func(w http.ResponseWriter, r *http.Request) {
		requestID := getRequestID(r)
		if r.Method != http.MethodPost {
			writeError(w, requestID, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
			return
		}
		if !isAuthorized(r, token) {
			writeError(w, requestID, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
			return
		}

		var res approval.Resolution
		if err := json.NewDecoder(r.Body).Decode(&res); err != nil {
			writeError(w, requestID, http.StatusBadRequest, "bad_request", "invalid json request")
			return
		}
		if strings.TrimSpace(res.TicketID) == "" {
			writeError(w, requestID, http.StatusBadRequest, "bad_request", "ticket_id is required")
			return
		}
		if strings.TrimSpace(res.ResolvedBy) == "" {
			res.ResolvedBy = "api"
		}

		if planner == nil {
			writeError(w, requestID, http.StatusInternalServerError, "internal_error", "planner is not configured")
			return
		}

		ticket, applied, err := planner.Resolve(res)
		if err != nil {
			if errors.Is(err, approval.ErrNotFound) {
				writeError(w, requestID, http.StatusNotFound, "not_found", "no such ticket")
				return
			}
			slog.Error("gateway resolve failed", "request_id", requestID, "ticket_id", res.TicketID, "error", err)
			writeError(w, requestID, http.StatusInternalServerError, "internal_error", "failed to resolve ticket")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"ticket":     ticket,
			"applied":    applied,
			"request_id": requestID,
		})
	})
	mux.HandleFunc("/approvals", func(w http.ResponseWriter, r *http.Request) {
		requestID := getRequestID(r)
		if r.Method != http.MethodGet {
			writeError(w, requestID, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
			return
		}
		if !isAuthorized(r, token) {
			writeError(w, requestID, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
			return
		}
		if reader == nil {
			writeError(w, requestID, http.StatusInternalServerError, "internal_error", "audit reader is not configured")
			return
		}
		tickets, err := reader.PendingTickets()
		if err != nil {
			slog.Error("gateway list approvals failed", "request_id", requestID, "error", err)
			writeError(w, requestID, http.StatusInternalServerError, "internal_error", "failed to list pending approvals")
			return
		}
		if tickets == nil {
			tickets = []approval.Ticket{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"tickets":    tickets,
			"request_id": requestID,
		})
	})
	mux.HandleFunc("/audit/recent", func(w http.ResponseWriter, r *http.Request) {
		requestID := getRequestID(r)
		if r.Method != http.MethodGet {
			writeError(w, requestID, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
			return
		}
		if !isAuthorized(r, token) {
			writeError(w, requestID, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
			return
		}
		if reader == nil {
			writeError(w, requestID, http.StatusInternalServerError, "internal_error", "audit reader is not configured")
			return
		}
		days := 7
		if raw := strings.TrimSpace(r.URL.Query().Get("days")); raw != "" {
			if _, err := fmt.Sscanf(raw, "%d", &days); err != nil || days <= 0 {
				writeError(w, requestID, http.StatusBadRequest, "bad_request", "days must be a positive integer")
				return
			}
		}
		records, err := reader.RecentRecords(days)
		if err != nil {
			slog.Error("gateway audit query failed", "request_id", requestID, "error", err)
			writeError(w, requestID, http.StatusInternalServerError, "internal_error", "failed to read audit records")
			return
		}
		if records == nil {
			records = []audit.Record{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"records":    records,
			"request_id": requestID,
		})
	})
	return mux
}

func isAuthorized(r *http.Request, expected string) bool {
	if strings.TrimSpace(expected) == "" {
		return true
	}
	got := strings.TrimSpace(r.Header.Get("Authorization"))
	if got == "" {
		return false
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(got, prefix) {
		return false
	}
	token := strings.TrimSpace(strings.TrimPrefix(got, prefix))
	return token == expected
}

func getRequestID(r *http.Request) string {
	rid := strings.TrimSpace(r.Header.Get("X-Request-ID"))
	if rid != "" {
		return rid
	}
	return uuid.NewString()
}

func writeError(w http.ResponseWriter, requestID string, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"code":       code,
		"message":    message,
		"request_id": requestID,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
