package cache

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *responseWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// HitFunc runs for a request answered from the cache, before the cached page
// is written.
type HitFunc func(c *gin.Context, subdomain, page string)

// Middleware serves restaurant pages (/@/<subdomain>/...) from store and
// fills it on a miss. A nil store disables caching. Handlers skipped by a hit,
// like visit tracking, get their chance through onHit.
func Middleware(store Store, log *zap.Logger, onHit ...HitFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if store == nil || c.Request.Method != http.MethodGet || c.Request.URL.RawQuery != "" {
			c.Next()
			return
		}

		subdomain, page := extractFromPath(c.Request.URL.Path)
		if subdomain == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		if cached, found := store.Get(ctx, subdomain, page); found {
			for _, hit := range onHit {
				hit(c, subdomain, page)
			}
			c.Header("X-Cache", "HIT")
			c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(cached))
			c.Abort()
			return
		}

		c.Header("X-Cache", "MISS")
		writer := &responseWriter{ResponseWriter: c.Writer, body: bytes.NewBuffer(nil)}
		c.Writer = writer

		c.Next()

		if c.Writer.Status() == http.StatusOK &&
			strings.HasPrefix(c.Writer.Header().Get("Content-Type"), "text/html") {
			if err := store.Set(ctx, subdomain, page, writer.body.String()); err != nil {
				log.Warn("page cache write failed", zap.String("subdomain", subdomain), zap.Error(err))
			}
		}
	}
}

// extractFromPath splits /@/<subdomain>/<page...>; the root page is "index".
func extractFromPath(path string) (subdomain, page string) {
	rest, ok := strings.CutPrefix(path, "/@/")
	if !ok {
		return "", ""
	}
	subdomain, page, _ = strings.Cut(rest, "/")
	page = strings.Trim(page, "/")
	if page == "" {
		page = "index"
	}
	return subdomain, page
}
