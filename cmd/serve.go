package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/discovery-engine/internal/metrics"
	"github.com/sells-group/discovery-engine/internal/model"
)

const maxRequestBody = 64 << 10

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for discovery sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEngine(ctx, metrics.Default())
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           buildRouter(env, prometheus.DefaultGatherer, cfg.Server.CORSOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSec)*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

type startRequest struct {
	BusinessSummary string `json:"business_summary"`
}

type answerRequest struct {
	Answer string `json:"answer"`
}

type errorResponse struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
}

// buildRouter wires the API onto a chi router. gatherer backs /metrics.
func buildRouter(env *appEnv, gatherer prometheus.Gatherer, origins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		body := map[string]string{"status": "ok"}
		if env.Classifier != nil {
			body["classifier_breaker"] = env.Classifier.Breaker().State().String()
		}
		writeJSON(w, http.StatusOK, body)
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Get("/catalog", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, newCatalogView(env.Catalog))
		})

		r.Post("/sessions", func(w http.ResponseWriter, r *http.Request) {
			var req startRequest
			if err := decodeBody(w, r, &req); err != nil {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
				return
			}
			res, err := env.Engine.Start(r.Context(), req.BusinessSummary)
			if err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, res)
		})

		r.Get("/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
			res, err := env.Engine.Get(r.Context(), chi.URLParam(r, "id"))
			if err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, res)
		})

		r.Post("/sessions/{id}/answers", func(w http.ResponseWriter, r *http.Request) {
			id := chi.URLParam(r, "id")
			var req answerRequest
			if err := decodeBody(w, r, &req); err != nil {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
				return
			}

			if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
				env.Engine.SubmitAsync(r.Context(), id, req.Answer, asyncOutcomeLogger(id, middleware.GetReqID(r.Context())))
				writeJSON(w, http.StatusAccepted, map[string]string{
					"status":     "accepted",
					"session_id": id,
				})
				return
			}

			res, err := env.Engine.AnswerWithRetry(r.Context(), id, req.Answer)
			if err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, res)
		})
	})

	return r
}

// asyncOutcomeLogger reports how a background answer ended, tied back to
// the request that submitted it.
func asyncOutcomeLogger(sessionID, requestID string) func(*model.TurnResult, error) {
	return func(res *model.TurnResult, err error) {
		fields := []zap.Field{
			zap.String("session_id", sessionID),
			zap.String("request_id", requestID),
		}
		if err != nil {
			status, retryable := statusFor(err)
			zap.L().Warn("async answer failed", append(fields,
				zap.Int("status", status),
				zap.Bool("retryable", retryable),
				zap.Error(err),
			)...)
			return
		}
		zap.L().Info("async answer processed", append(fields,
			zap.Int("question_count", res.QuestionCount()),
			zap.Bool("complete", res.IsComplete()),
		)...)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// statusFor maps engine errors onto HTTP statuses.
func statusFor(err error) (int, bool) {
	switch {
	case errors.Is(err, model.ErrSessionNotFound):
		return http.StatusNotFound, false
	case errors.Is(err, model.ErrPersistenceConflict):
		return http.StatusConflict, true
	case errors.Is(err, model.ErrSessionAlreadyComplete):
		return http.StatusConflict, false
	default:
		return http.StatusInternalServerError, false
	}
}

// writeError logs the internal error and answers with the public message only.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, retryable := statusFor(err)
	fields := []zap.Field{
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		zap.L().Error("request failed", fields...)
	} else {
		zap.L().Info("request rejected", fields...)
	}
	writeJSON(w, status, errorResponse{Error: model.PublicMessage(err), Retryable: retryable})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("encode response", zap.Error(err))
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
