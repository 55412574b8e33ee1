package middleware

import (
	"net/http"
	"strconv"
	"time"
)

// ProcessingTimeHeader reports handler time in microseconds.
const ProcessingTimeHeader = "X-Processing-Time-Micros"

// Timing sets ProcessingTimeHeader on every response. The value is
// measured when the status line is written, so redirects and errors
// carry it too.
func Timing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(&timingResponseWriter{ResponseWriter: w, start: time.Now()}, r)
	})
}

// Chain wraps h so that the first middleware is outermost.
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

type timingResponseWriter struct {
	http.ResponseWriter
	start       time.Time
	wroteHeader bool
}

func (w *timingResponseWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		micros := time.Since(w.start).Microseconds()
		w.Header().Set(ProcessingTimeHeader, strconv.FormatInt(micros, 10))
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *timingResponseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}
