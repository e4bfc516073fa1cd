package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/vincentbai/tsmcheck/internal/logging"
	"github.com/vincentbai/tsmcheck/internal/models"
	"github.com/vincentbai/tsmcheck/internal/monitoring"
	"github.com/vincentbai/tsmcheck/internal/report"
	"github.com/vincentbai/tsmcheck/internal/validator"
	"go.uber.org/zap"
)

// HistoryStore persists finished runs. *database.Database satisfies it.
type HistoryStore interface {
	InsertRun(source string, results []validator.Result) (string, error)
}

type Config struct {
	Address      string
	Workers      int
	Isolate      bool
	MaxBodyBytes int64
}

type Server struct {
	store   HistoryStore
	config  Config
	logger  *logging.Logger
	metrics *monitoring.Metrics
	server  *http.Server
}

// NewServer accepts a nil store, in which case runs are not persisted.
func NewServer(store HistoryStore, config Config, logger *logging.Logger, metrics *monitoring.Metrics) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	if metrics == nil {
		metrics = monitoring.NewMetrics()
	}
	return &Server{
		store:   store,
		config:  config,
		logger:  logger,
		metrics: metrics,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Write([]byte("ok"))
}

func (s *Server) handleValidate(w http.ResponseWriter, request *http.Request) {
	started := time.Now()
	status := s.validate(w, request)
	s.metrics.ObserveRequest(status, time.Since(started))
}

func (s *Server) validate(w http.ResponseWriter, request *http.Request) int {
	if request.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return http.StatusMethodNotAllowed
	}

	body := request.Body
	if s.config.MaxBodyBytes > 0 {
		body = http.MaxBytesReader(w, request.Body, s.config.MaxBodyBytes)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return s.writeError(w, http.StatusRequestEntityTooLarge, "Export too large")
		}
		return s.writeError(w, http.StatusBadRequest, "Failed to read body")
	}

	outcomes, err := models.DecodeOutcomes(data, s.config.Isolate)
	if err != nil {
		s.metrics.ObserveDecodeFailure()
		s.logger.Info("Rejected export", zap.Error(err))
		return s.writeError(w, http.StatusBadRequest, err.Error())
	}

	results, err := validator.ValidateOutcomes(request.Context(), outcomes, s.config.Workers)
	if err != nil {
		s.logger.Warn("Validation interrupted", zap.Error(err))
		return s.writeError(w, http.StatusServiceUnavailable, "Validation interrupted")
	}
	s.metrics.ObserveResults(results)

	var runID string
	if s.store != nil {
		runID, err = s.store.InsertRun("http", results)
		if err != nil {
			s.logger.Error("Database error", zap.Error(err))
			return s.writeError(w, http.StatusInternalServerError, "Failed to store results")
		}
	}

	payload, err := report.JSON(runID, results)
	if err != nil {
		s.logger.Error("Encoding error", zap.Error(err))
		return s.writeError(w, http.StatusInternalServerError, "Failed to encode results")
	}

	summary := validator.Summarize(results)
	s.logger.Info("Validated export",
		zap.String("run_id", runID),
		zap.Int("sessions", summary.Total),
		zap.Int("invalid", summary.Invalid),
		zap.Int("failed", summary.Failed),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(payload)
	return http.StatusOK
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) int {
	payload, err := sonic.Marshal(errorResponse{Error: message})
	if err != nil {
		http.Error(w, message, status)
		return status
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(payload)
	return status
}

func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/sessions/validate", s.handleValidate)
	mux.Handle("/metrics", s.metrics.Handler())
	return mux
}

func (s *Server) Start() error {
	mux := s.setupRoutes()
	s.server = &http.Server{
		Addr:         s.config.Address,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// Graceful shutdown
	shutdownChannel := make(chan os.Signal, 1)
	signal.Notify(shutdownChannel, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(shutdownChannel)

	errorChannel := make(chan error, 1)
	go func() {
		s.logger.Info("tsmcheck listening", zap.String("address", s.config.Address))
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errorChannel <- err
		}
	}()

	select {
	case <-shutdownChannel:
	case err := <-errorChannel:
		return err
	}
	s.logger.Info("Shutting down server...")

	shutdownContext, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownContext); err != nil {
		return err
	}

	s.logger.Info("Server exited")
	return nil
}
