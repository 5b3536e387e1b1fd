package main

import (
	"expvar"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/Meghdut-Mandal/WhatsappStatusHandler-sub001/cmd/server/handlers"
	"github.com/Meghdut-Mandal/WhatsappStatusHandler-sub001/internal/backup"
)

// newRouter wires the REST API, the event stream and the expvar counters.
func newRouter(svc backup.Service, hub *WSHub, logger *zap.Logger) *mux.Router {
	r := mux.NewRouter()
	r.Use(requestLogger(logger))

	handlers.NewBackupHandler(svc, logger).Register(r)
	r.HandleFunc("/ws", HandleWebSocket(hub)).Methods(http.MethodGet)
	r.Handle("/debug/vars", expvar.Handler()).Methods(http.MethodGet)
	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// requestLogger logs one line per request at debug level.
func requestLogger(logger *zap.Logger) mux.MiddlewareFunc {
	logger = logger.Named("http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// The websocket upgrade needs the raw writer to hijack
			if r.URL.Path == "/ws" {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("duration", time.Since(start)))
		})
	}
}
