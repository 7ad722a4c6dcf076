package middlewares

import (
	"context"
	"net/http"
	"strings"

	"bitbucket.org/speantag/bakery_backend/config"
	"bitbucket.org/speantag/bakery_backend/models"
	"bitbucket.org/speantag/bakery_backend/utils"
	"github.com/gin-gonic/gin"
)

type authString string

// AuthMiddleware validates a Bearer JWT (service tokens minted by
// cmd/issue-token) and resolves its claims into the same context identity
// the session middleware sets, so handlers treat both token kinds alike.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.Request.Header.Get("Authorization")

		if auth == "" {
			c.Next()
			return
		}

		bearer := "Bearer "
		if !strings.HasPrefix(auth, bearer) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		auth = auth[len(bearer):]

		validate, err := utils.JwtValidate(auth)
		if err != nil || !validate.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		customClaim, _ := validate.Claims.(*utils.JwtCustomClaim)

		ctx := context.WithValue(c.Request.Context(), authString("auth"), customClaim)
		if customClaim != nil {
			ctx = utils.SetUserIdInContext(ctx, customClaim.ID)
			if customClaim.Role == string(models.UserRoleAdmin) {
				ctx = utils.SetIsAdminInContext(ctx, true)
			}
			var user models.User
			db := config.GetDB()
			if err := db.WithContext(ctx).First(&user, customClaim.ID).Error; err == nil {
				ctx = utils.SetUsernameInContext(ctx, user.Username)
				ctx = utils.SetUserNameInContext(ctx, user.Name)
			}
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func CtxValue(ctx context.Context) *utils.JwtCustomClaim {
	raw, _ := ctx.Value(authString("auth")).(*utils.JwtCustomClaim)
	return raw
}
