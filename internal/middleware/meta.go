package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-planner-api/pkg/middleware/requestid"
)

const responseMetaKey = "response_meta"

// responseMeta collects the envelope "meta" block while a handler runs.
type responseMeta struct {
	started time.Time
	entries map[string]interface{}
}

// WithResponseMeta starts the per-request meta block. Handlers add entries
// with SetMeta and SetCacheHit; ExtractMeta snapshots them for the envelope.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(responseMetaKey, &responseMeta{started: time.Now(), entries: map[string]interface{}{}})
		c.Next()
	}
}

// SetCacheHit records whether the response was served from a memoised run.
func SetCacheHit(c *gin.Context, hit bool) {
	SetMeta(c, "cache_hit", hit)
}

// SetMeta records an arbitrary metadata entry for the current response.
func SetMeta(c *gin.Context, key string, value interface{}) {
	if m := metaFor(c); m != nil {
		m.entries[key] = value
	}
}

// ExtractMeta returns a copy of the entries recorded so far together with
// the request ID and the time spent in the handler chain.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	m := metaFor(c)
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m.entries)+2)
	for k, v := range m.entries {
		out[k] = v
	}
	if id := requestid.Value(c); id != "" {
		out["request_id"] = id
	}
	out["processing_time_ms"] = time.Since(m.started).Milliseconds()
	return out
}

func metaFor(c *gin.Context) *responseMeta {
	if c == nil {
		return nil
	}
	if v, ok := c.Get(responseMetaKey); ok {
		if m, ok := v.(*responseMeta); ok {
			return m
		}
	}
	m := &responseMeta{started: time.Now(), entries: map[string]interface{}{}}
	c.Set(responseMetaKey, m)
	return m
}
