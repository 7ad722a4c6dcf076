package middlewares

import (
	"bitbucket.org/speantag/bakery_backend/utils"
	"github.com/gin-gonic/gin"
)

// ClientContextMiddleware attaches the caller's network identity to the
// request context for the activity log. The IP prefers the first hop of
// X-Forwarded-For (the proxy appends its own address after the client's).
func ClientContextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := utils.ClientIpFromForwardedFor(c.Request.Header.Get("X-Forwarded-For"), c.RemoteIP())

		ctx := utils.SetClientIpInContext(c.Request.Context(), ip)
		ctx = utils.SetUserAgentInContext(ctx, c.Request.UserAgent())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
