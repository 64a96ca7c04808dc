package middleware

import (
	"bytes"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/olushako/vaulty/internal/metrics"
	"github.com/olushako/vaulty/internal/services"
)

// captureLimit bounds how much body is buffered for the activity record.
// Anything larger is recorded as truncated, so buffering past the cap plus
// one byte is wasted work.
const captureLimit = 10*1024 + 1

// capturingWriter wraps http.ResponseWriter and keeps a bounded copy of the
// response body.
type capturingWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (cw *capturingWriter) WriteHeader(code int) {
	cw.status = code
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *capturingWriter) Write(b []byte) (int, error) {
	if cw.body.Len() < captureLimit {
		n := captureLimit - cw.body.Len()
		if n > len(b) {
			n = len(b)
		}
		cw.body.Write(b[:n])
	}
	return cw.ResponseWriter.Write(b)
}

// Activity returns middleware that records every API call to the activity
// log. It buffers the request and response bodies, seeds a confidential
// tracker for the handlers, and hands the capture to the activity service
// after the response is written.
func Activity(activityService *services.ActivityService) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			var reqBody []byte
			if r.Body != nil {
				reqBody, _ = io.ReadAll(io.LimitReader(r.Body, captureLimit))
				r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(reqBody), r.Body))
			}

			tracker := services.NewConfidentialTracker()
			r = r.WithContext(services.WithTracker(r.Context(), tracker))

			cw := &capturingWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(cw, r)

			source := r.Header.Get("X-Vaulty-Source")
			if source != "ui" && source != "mcp" {
				source = "api"
			}

			var tokenType, projectID string
			if auth := GetAuth(r.Context()); auth != nil {
				tokenType = string(auth.Type)
				projectID = auth.ProjectID
			}

			activityService.Log(r.Context(), services.Record{
				Method:         r.Method,
				Path:           r.URL.Path,
				ProjectName:    projectNameFromPath(r.URL.Path),
				ProjectID:      projectID,
				TokenType:      tokenType,
				StatusCode:     cw.status,
				Duration:       time.Since(start),
				RequestHeaders: maskedHeaders(r),
				RequestBody:    reqBody,
				ResponseBody:   cw.body.Bytes(),
				Source:         source,
				ClientIP:       clientIP(r.RemoteAddr),
				Tracker:        tracker,
			})
			metrics.ActivitiesRecorded.WithLabelValues(source).Inc()
		})
	}
}

// capturedHeaders is the plain-header subset persisted with each record.
var capturedHeaders = []string{"Content-Type", "User-Agent", "X-Vaulty-Source"}

// maskedHeaders collects the headers worth keeping in the activity log. The
// bearer token is masked before it leaves the middleware; the raw value is
// never handed to the recorder.
func maskedHeaders(r *http.Request) map[string]string {
	headers := make(map[string]string)
	for _, name := range capturedHeaders {
		if v := r.Header.Get(name); v != "" {
			headers[strings.ToLower(name)] = v
		}
	}
	if v := r.Header.Get("Authorization"); v != "" {
		headers["authorization"] = services.MaskBearer(v)
	}
	if len(headers) == 0 {
		return nil
	}
	return headers
}

// clientIP strips the port RemoteAddr carries when no proxy header rewrote
// it, so per-IP breakdowns group by host.
func clientIP(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}

// projectNameFromPath pulls the project name out of project-scoped paths,
// e.g. /api/projects/backend/secrets/API_KEY.
func projectNameFromPath(path string) string {
	const prefix = "/api/projects/"
	if !strings.HasPrefix(path, prefix) {
		return ""
	}
	rest := path[len(prefix):]
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	return rest
}
