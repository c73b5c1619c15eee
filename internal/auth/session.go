package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/your-org/annotate/internal/models"
	"github.com/your-org/annotate/internal/store"
)

const (
	headerName = "Authorization"

	// Gin context keys set by SessionMiddleware.
	ContextToken = "session_token"
	ContextUser  = "session_user"
)

// SessionMiddleware resolves the bearer token from the Authorization
// header into a user. Requests without a token, or with a stale one,
// proceed anonymously; handlers that need a user call MustUser.
func SessionMiddleware(st *store.AnnotationStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimPrefix(c.GetHeader(headerName), "Bearer ")
		c.Set(ContextToken, token)

		if token != "" {
			user, err := st.GetUserBySession(c.Request.Context(), token)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": err.Error(),
				})
				return
			}
			if user != nil {
				c.Set(ContextUser, user)
			}
		}

		c.Next()
	}
}

// Token returns the session token attached to the request, or "".
func Token(c *gin.Context) string {
	return c.GetString(ContextToken)
}

// UserFrom returns the resolved user, or nil for anonymous requests.
func UserFrom(c *gin.Context) *models.User {
	v, ok := c.Get(ContextUser)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}

// MustUser returns the resolved user or aborts with 401.
func MustUser(c *gin.Context) *models.User {
	user := UserFrom(c)
	if user == nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "authentication required",
		})
	}
	return user
}
