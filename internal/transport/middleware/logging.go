package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/middleware"

	"github.com/frahmantamala/booking-ledger/pkg/logger"
)

// maxLoggedBody caps how much of a request or response body is captured.
const maxLoggedBody = 4096

const (
	filteredValue  = "[FILTERED]"
	truncatedValue = "[TRUNCATED]"
)

// sensitiveFields are matched as substrings of header names and JSON keys.
var sensitiveFields = []string{
	"password",
	"token",
	"authorization",
	"secret",
	"api_key",
	"credential",
	"signature",
}

// LoggingOption tunes LoggingMiddleware.
type LoggingOption func(*bodyPolicy)

// WithoutBodies keeps the middleware away from the bodies of requests under
// the given path prefixes. Neither the request body nor the response body of
// a matching route is read, buffered or logged.
func WithoutBodies(prefixes ...string) LoggingOption {
	return func(p *bodyPolicy) {
		p.skip = append(p.skip, prefixes...)
	}
}

type bodyPolicy struct {
	skip []string
}

func (p bodyPolicy) capture(r *http.Request) bool {
	for _, prefix := range p.skip {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return false
		}
	}
	return true
}

// LoggingMiddleware logs each request and its response. It must run after
// RequestID so the trace id is attached to both records.
func LoggingMiddleware(base *slog.Logger, opts ...LoggingOption) func(next http.Handler) http.Handler {
	if base == nil {
		base = logger.LoggerWrapper()
	}
	var policy bodyPolicy
	for _, opt := range opts {
		opt(&policy)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			lg := base.With("request_id", middleware.GetReqID(r.Context()))
			if traceID := w.Header().Get(TraceHeader); traceID != "" {
				lg = lg.With("traceID", traceID)
			}

			capture := policy.capture(r)
			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"query", r.URL.RawQuery,
				"remote_addr", r.RemoteAddr,
				"user_agent", r.UserAgent(),
				"headers", redactHeaders(r.Header),
			}
			if capture {
				attrs = append(attrs, "body", redactBody(peekBody(r)))
			}
			lg.Info("incoming request", attrs...)

			rec := &bodyRecorder{ResponseWriter: w, status: http.StatusOK, capture: capture}
			next.ServeHTTP(rec, r)

			attrs = []any{
				"status_code", rec.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"response_size", rec.size,
			}
			if capture {
				attrs = append(attrs, "body", redactBody(rec.body.Bytes()))
			}
			lg.Log(r.Context(), levelForStatus(rec.status), "response", attrs...)
		})
	}
}

func levelForStatus(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// peekBody reads at most maxLoggedBody+1 bytes and puts them back in front of
// whatever the handler has not consumed yet.
func peekBody(r *http.Request) []byte {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	head, _ := io.ReadAll(io.LimitReader(r.Body, maxLoggedBody+1))
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(head), r.Body), r.Body}
	return head
}

// bodyRecorder keeps the status, the byte count and, when capturing, the
// first maxLoggedBody bytes of the response.
type bodyRecorder struct {
	http.ResponseWriter
	status  int
	size    int
	capture bool
	body    bytes.Buffer
}

func (rw *bodyRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *bodyRecorder) Write(b []byte) (int, error) {
	if rw.capture && rw.body.Len() <= maxLoggedBody {
		rw.body.Write(b)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.size += n
	return n, err
}

func isSensitive(name string) bool {
	name = strings.ToLower(name)
	for _, field := range sensitiveFields {
		if strings.Contains(name, field) {
			return true
		}
	}
	return false
}

func redactHeaders(headers http.Header) map[string]string {
	out := make(map[string]string, len(headers))
	for name, values := range headers {
		if isSensitive(name) {
			out[name] = filteredValue
			continue
		}
		out[name] = strings.Join(values, ", ")
	}
	return out
}

func redactBody(body []byte) string {
	switch {
	case len(body) == 0:
		return ""
	case len(body) > maxLoggedBody:
		return truncatedValue
	}

	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		if isSensitive(string(body)) {
			return filteredValue
		}
		return string(body)
	}

	out, err := json.Marshal(redactValue(doc))
	if err != nil {
		return filteredValue
	}
	return string(out)
}

func redactValue(v interface{}) interface{} {
	switch v := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, value := range v {
			if isSensitive(key) {
				out[key] = filteredValue
				continue
			}
			out[key] = redactValue(value)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = redactValue(item)
		}
		return out
	default:
		return v
	}
}
