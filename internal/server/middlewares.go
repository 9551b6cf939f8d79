package server

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"net/http"
	"time"

	"chat-api/internal/schema"
	"chat-api/internal/storage"
	"chat-api/internal/storage/zapadapter"

	"github.com/rs/xid"
	"github.com/valyala/fastjson"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// enforceJSON is a middleware pre-processing each HTTP request with body
// it checks for application/json Content-Type header and valid json body
// it also sets blank Content-Type header to application/json
func enforceJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// check "Content-Type" header
		contentType := r.Header.Get("Content-Type")
		if contentType != "" {
			mt, _, err := mime.ParseMediaType(contentType)
			if err != nil {
				writeDetail(w, http.StatusBadRequest, "Malformed Content-Type header")
				return
			}

			if mt != "application/json" {
				writeDetail(w, http.StatusUnsupportedMediaType, "Content-Type header must be application/json")
				return
			}
		} else {
			r.Header.Set("Content-Type", "application/json")
		}

		// check if provided request body is valid JSON
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeDetail(w, http.StatusRequestEntityTooLarge, "Request body too large")
				return
			}
			writeDetail(w, http.StatusBadRequest, "Can not read request body")
			return
		}

		if len(bytes.TrimSpace(body)) == 0 {
			writeJSON(w, http.StatusUnprocessableEntity, detail{Detail: []schema.FieldError{{
				Loc:  []string{"body"},
				Msg:  "field required",
				Type: "value_error.missing",
			}}})
			return
		}

		if err := fastjson.ValidateBytes(body); err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, detail{Detail: []schema.FieldError{{
				Loc:  []string{"body"},
				Msg:  "Malformed JSON",
				Type: "value_error.jsondecode",
			}}})
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))

		next.ServeHTTP(w, r)
	})
}

// requireStore answers 503 when the server runs without a configured store
func requireStore(next http.Handler, store storage.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			writeDetail(w, http.StatusServiceUnavailable, "Database is not configured")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// timeout wraps next in http.TimeoutHandler answering with JSON message msg after d.
// Content-Type is preset because TimeoutHandler writes msg without it.
func timeout(next http.Handler, d time.Duration, msg string) http.Handler {
	th := http.TimeoutHandler(next, d, msg)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		th.ServeHTTP(w, r)
	})
}

// statusRecorder remembers the status code written by the next handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func log(next http.Handler, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := xid.New().String()

		ctx := zapadapter.NewContextWithID(r.Context(), id)
		rwID := r.WithContext(ctx)

		w.Header().Set("X-Request-Id", id)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, rwID)

		logger.Info("http request",
			zap.String("id", id),
			zap.String("method", r.Method),
			zap.String("uri", r.URL.RequestURI()),
			zap.String("ip", r.RemoteAddr),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
