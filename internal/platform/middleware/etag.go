package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// ETagConfig controls the validators attached to read-only listings such as
// the bookable roster and the directory.
type ETagConfig struct {
	MaxAge      int
	Private     bool
	VaryHeaders []string
}

// DefaultETagConfig suits authenticated listings that change on admin writes.
func DefaultETagConfig() ETagConfig {
	return ETagConfig{
		MaxAge:      30,
		Private:     true,
		VaryHeaders: []string{"Authorization"},
	}
}

// bufferedWriter holds the body until the ETag is known.
type bufferedWriter struct {
	writer http.ResponseWriter
	buf    bytes.Buffer
	status int
}

func (w *bufferedWriter) Header() http.Header         { return w.writer.Header() }
func (w *bufferedWriter) Write(b []byte) (int, error) { return w.buf.Write(b) }
func (w *bufferedWriter) WriteHeader(code int)        { w.status = code }

func (w *bufferedWriter) flush() error {
	w.writer.WriteHeader(w.status)
	if w.buf.Len() == 0 {
		return nil
	}
	_, err := w.writer.Write(w.buf.Bytes())
	return err
}

// ETag computes a weak validator over GET responses and answers 304 when the
// client's If-None-Match still matches.
func ETag(cfg ETagConfig) echo.MiddlewareFunc {
	cacheControl := fmt.Sprintf("public, max-age=%d", cfg.MaxAge)
	if cfg.Private {
		cacheControl = fmt.Sprintf("private, max-age=%d", cfg.MaxAge)
	}
	vary := strings.Join(cfg.VaryHeaders, ", ")

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Method != http.MethodGet {
				return next(c)
			}

			res := c.Response()
			orig := res.Writer
			bw := &bufferedWriter{writer: orig, status: http.StatusOK}
			res.Writer = bw
			err := next(c)
			res.Writer = orig
			if err != nil {
				return err
			}
			if bw.status >= 400 {
				return bw.flush()
			}

			tag := computeETag(bw.buf.Bytes())
			h := res.Header()
			h.Set("ETag", tag)
			h.Set("Cache-Control", cacheControl)
			if vary != "" {
				h.Set("Vary", vary)
			}
			if inm := req.Header.Get("If-None-Match"); inm != "" && etagMatch(inm, tag) {
				orig.WriteHeader(http.StatusNotModified)
				return nil
			}
			return bw.flush()
		}
	}
}

func computeETag(body []byte) string {
	sum := sha256.Sum256(body)
	return `W/"` + hex.EncodeToString(sum[:16]) + `"`
}

// etagMatch supports comma-separated lists, "*" and weak comparison.
func etagMatch(header, tag string) bool {
	header = strings.TrimSpace(header)
	if header == "*" {
		return true
	}
	for _, candidate := range strings.Split(header, ",") {
		if strings.TrimPrefix(strings.TrimSpace(candidate), "W/") == strings.TrimPrefix(tag, "W/") {
			return true
		}
	}
	return false
}
