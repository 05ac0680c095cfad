// Package api serves the opportunity report over HTTP for dashboard
// consumers, with WebSocket push when a new session is analyzed.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/seenimoa/fnopulse/internal/config"
	"github.com/seenimoa/fnopulse/pkg/models"
	"github.com/seenimoa/fnopulse/pkg/utils"
)

// Server is the dashboard HTTP server. It holds at most one report at
// a time, the latest analyzed session.
type Server struct {
	router chi.Router
	cfg    *config.Config
	wsHub  *WSHub

	mu     sync.RWMutex
	report *models.OpportunityReport
}

// NewServer creates a configured server with all routes and middleware.
func NewServer(cfg *config.Config) *Server {
	srv := &Server{
		cfg:   cfg,
		wsHub: NewWSHub(),
	}
	srv.router = srv.buildRouter()
	return srv
}

// SetReport publishes a freshly analyzed report and notifies WebSocket
// subscribers.
func (s *Server) SetReport(report *models.OpportunityReport) {
	s.mu.Lock()
	s.report = report
	s.mu.Unlock()

	if report != nil {
		s.wsHub.Broadcast(WSMessage{
			Type: "report_updated",
			Data: map[string]interface{}{
				"session_date":  report.SessionDate().Format("2006-01-02"),
				"opportunities": report.Len(),
				"warnings":      len(report.Warnings()),
			},
		})
	}
}

// Report returns the currently published report, or nil.
func (s *Server) Report() *models.OpportunityReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.report
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ListenAndServe starts the HTTP server with graceful shutdown.
func (s *Server) ListenAndServe(addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go s.wsHub.Run()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("HTTP server error")
		}
	}()

	<-done
	logrus.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	return httpSrv.Shutdown(ctx)
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/report", s.handleReport)
		r.Get("/report/top", s.handleReportTop)
		r.Get("/report/direction/{direction}", s.handleReportDirection)
		r.Get("/report/warnings", s.handleWarnings)
	})

	r.Get("/ws", s.handleWebSocket)

	return r
}

// APIResponse is the envelope for all JSON responses.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	hasReport := s.report != nil
	session := ""
	if hasReport {
		session = s.report.SessionDate().Format("2006-01-02")
	}
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"status":        "ok",
			"market_status": utils.MarketStatus(),
			"time_ist":      utils.FormatDateTimeIST(utils.NowIST()),
			"has_report":    hasReport,
			"session_date":  session,
			"ws_clients":    s.wsHub.ClientCount(),
		},
	})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	report := s.Report()
	if report == nil {
		writeError(w, http.StatusNotFound, "no report published yet")
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: report})
}

func (s *Server) handleReportTop(w http.ResponseWriter, r *http.Request) {
	report := s.Report()
	if report == nil {
		writeError(w, http.StatusNotFound, "no report published yet")
		return
	}

	n := 10
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "n must be a positive integer")
			return
		}
		n = parsed
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"session_date":  report.SessionDate().Format("2006-01-02"),
			"opportunities": report.TopN(n),
		},
	})
}

func (s *Server) handleReportDirection(w http.ResponseWriter, r *http.Request) {
	report := s.Report()
	if report == nil {
		writeError(w, http.StatusNotFound, "no report published yet")
		return
	}

	dir := models.Direction(strings.ToLower(chi.URLParam(r, "direction")))
	switch dir {
	case models.DirectionBullish, models.DirectionBearish, models.DirectionNeutral:
	default:
		writeError(w, http.StatusBadRequest, "direction must be bullish, bearish or neutral")
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"session_date":  report.SessionDate().Format("2006-01-02"),
			"direction":     dir,
			"opportunities": report.FilterByDirection(dir),
		},
	})
}

func (s *Server) handleWarnings(w http.ResponseWriter, r *http.Request) {
	report := s.Report()
	if report == nil {
		writeError(w, http.StatusNotFound, "no report published yet")
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"session_date": report.SessionDate().Format("2006-01-02"),
			"counts":       report.WarningCounts(),
			"warnings":     report.Warnings(),
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Error("failed to write JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}
