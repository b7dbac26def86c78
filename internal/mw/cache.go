package mw

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

type cacheEntry struct {
	status      int
	contentType string
	body        []byte
}

// snapshotWriter tees the response body into a buffer so a successful
// response can be stored after the handler runs.
type snapshotWriter struct {
	gin.ResponseWriter
	buf *bytes.Buffer
}

func (w *snapshotWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *snapshotWriter) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Cache serves repeated GET requests from an in-memory store. Dashboard
// reads tolerate a few seconds of staleness; the websocket channel is the
// fresh path. A Cache-Control: no-cache request header bypasses the
// store, so a viewer forcing a refresh sees current state.
func Cache(store *cache.Cache, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet || c.GetHeader("Cache-Control") == "no-cache" {
			c.Next()
			return
		}

		key := c.Request.RequestURI
		if v, found := store.Get(key); found {
			entry := v.(cacheEntry)
			c.Data(entry.status, entry.contentType, entry.body)
			c.Abort()
			return
		}

		writer := &snapshotWriter{ResponseWriter: c.Writer, buf: bytes.NewBuffer(nil)}
		c.Writer = writer

		c.Next()

		// Only successful responses are worth replaying.
		if writer.Status() >= http.StatusOK && writer.Status() < http.StatusMultipleChoices {
			store.Set(key, cacheEntry{
				status:      writer.Status(),
				contentType: writer.Header().Get("Content-Type"),
				body:        writer.buf.Bytes(),
			}, ttl)
		}
	}
}
