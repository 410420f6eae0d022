package cors

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	allowedHeaders = "Content-Type, X-Request-ID"
	allowedMethods = "GET, POST, OPTIONS"
)

// New allows read and trigger calls from the listed origins. An empty list allows any origin,
// which is the expected setup when the engine sits behind the suite's gateway.
func New(allowedOrigins []string) gin.HandlerFunc {
	origins := normaliseOrigins(allowedOrigins)

	return func(c *gin.Context) {
		header := c.Writer.Header()
		if origin := c.GetHeader("Origin"); origin != "" && allowed(origins, origin) {
			header.Set("Access-Control-Allow-Origin", origin)
			header.Add("Vary", "Origin")
		}
		header.Set("Access-Control-Allow-Headers", allowedHeaders)
		header.Set("Access-Control-Allow-Methods", allowedMethods)
		header.Set("Access-Control-Expose-Headers", "X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func normaliseOrigins(raw []string) map[string]struct{} {
	if len(raw) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(raw))
	for _, origin := range raw {
		set[strings.TrimRight(strings.ToLower(origin), "/")] = struct{}{}
	}
	return set
}

func allowed(origins map[string]struct{}, origin string) bool {
	if origins == nil {
		return true
	}
	_, ok := origins[strings.TrimRight(strings.ToLower(origin), "/")]
	return ok
}
