package middlewares

import (
	"net/http"

	"bitbucket.org/speantag/bakery_backend/config"
	"bitbucket.org/speantag/bakery_backend/models"
	"bitbucket.org/speantag/bakery_backend/utils"
	"github.com/gin-gonic/gin"
)

// SessionMiddleware resolves the "token" header minted at login into the
// user identity and session id carried on the request context. Requests
// without a token pass through anonymous; handlers that need an identity
// check for it themselves.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Request.Header.Get("token")
		if token == "" {
			c.Next()
			return
		}
		username, exists, err := config.GetRedisValue("Token:" + token)
		if err != nil || !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		ctx := utils.SetTokenInContext(c.Request.Context(), token)
		ctx = utils.SetUsernameInContext(ctx, username)

		if sessionId, ok, _ := config.GetRedisValue("Session:" + token); ok {
			ctx = utils.SetSessionIdInContext(ctx, sessionId)
		}

		var user models.User
		db := config.GetDB()
		if err := db.WithContext(ctx).Where("username = ?", username).Take(&user).Error; err == nil {
			ctx = utils.SetUserIdInContext(ctx, user.ID)
			ctx = utils.SetUserNameInContext(ctx, user.Name)
			if user.Role == models.UserRoleAdmin {
				ctx = utils.SetIsAdminInContext(ctx, true)
			}
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
