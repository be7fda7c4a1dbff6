package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/support-desk/internal/session"
)

// RequireUser отправляет на страницу входа посетителей без подтверждённого email.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if session.Load(c).UserEmail == "" {
			c.Redirect(http.StatusFound, "/auth/login")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAdmin отправляет посетителей без флага администратора на форму пароля.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !session.Load(c).AdminAuthenticated {
			c.Redirect(http.StatusFound, "/tickets")
			c.Abort()
			return
		}
		c.Next()
	}
}
