package middleware

import (
	"net/http"
	"strings"

	"github.com/clipstream/account-service/internal/adapters/transport/httpapi/dto"
	appsvc "github.com/clipstream/account-service/internal/app/account/service"
	"github.com/clipstream/account-service/internal/domain/account/model"
	"github.com/gin-gonic/gin"
)

const accountKey = "authAccount"

// RequireAuth достаёт access-токен из cookie (основной путь) или из
// заголовка Authorization: Bearer и кладёт аккаунт в контекст запроса.
func RequireAuth(svc appsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, _ := c.Cookie("accessToken")
		if raw == "" {
			if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
				raw = strings.TrimPrefix(h, "Bearer ")
			}
		}
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		acc, err := svc.Validate(c.Request.Context(), dto.ValidateDTO{AccessToken: raw})
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(accountKey, acc)
		c.Next()
	}
}

// CurrentAccount returns the account stored by RequireAuth.
func CurrentAccount(c *gin.Context) (model.Account, bool) {
	v, ok := c.Get(accountKey)
	if !ok {
		return model.Account{}, false
	}
	acc, ok := v.(model.Account)
	return acc, ok
}
