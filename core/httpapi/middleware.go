package httpapi

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/m3rciful/moviebot/core/logger"
	"github.com/m3rciful/moviebot/core/metrics"
)

// statusWriter captures the response status for logging and metrics.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func wrapWriter(w http.ResponseWriter) *statusWriter {
	if sw, ok := w.(*statusWriter); ok {
		return sw
	}
	return &statusWriter{ResponseWriter: w, status: http.StatusOK}
}

func (w *statusWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.status = code
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(p)
}

// Correlate copies the chi request id into the logging context so every log line written
// while serving the request carries it as rid.
func Correlate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if rid := chimiddleware.GetReqID(ctx); rid != "" {
			ctx = logger.WithRID(ctx, rid)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Logging writes one access line per request.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := wrapWriter(w)
		next.ServeHTTP(ww, r)

		level := slog.LevelInfo
		if ww.status >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		logger.LogEvent(r.Context(), logger.HTTP, level, "http.request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("http_code", ww.status),
			slog.Duration("duration", time.Since(start)),
			slog.String("remote_addr", r.RemoteAddr),
		)
	})
}

// Metrics records request count and latency, labelled by chi route pattern.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := wrapWriter(w)
		next.ServeHTTP(ww, r)

		path := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pat := rctx.RoutePattern(); pat != "" {
				path = pat
			}
		}
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(ww.status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// PanicWriter renders the response for a recovered panic.
type PanicWriter func(w http.ResponseWriter, r *http.Request, recovered any)

// Recover converts handler panics into a response written by onPanic, or a 500 failure
// envelope when onPanic is nil.
func Recover(onPanic PanicWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.LogEvent(r.Context(), logger.HTTP, slog.LevelError, "http.panic",
					slog.String("path", r.URL.Path),
					slog.Any("err", rec),
					slog.String("stack", string(debug.Stack())),
				)
				if onPanic != nil {
					onPanic(w, r, rec)
					return
				}
				HandleError(w, ErrInternal)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
