// Package session stores the two login roles and flash messages in a signed cookie.
package session

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/support-desk/internal/model"
)

const (
	CookieName = "support_desk_session"

	keyAdmin = "admin_authenticated"
	keyEmail = "user_email"
	maxAge   = 7 * 24 * 60 * 60
)

// State is everything a session may carry besides flashes.
type State struct {
	AdminAuthenticated bool
	UserEmail          string
}

func (s State) Actor() model.Actor {
	return model.Actor{Admin: s.AdminAuthenticated, Email: s.UserEmail}
}

// Middleware подключает cookie store. secure — cookie только по HTTPS.
func Middleware(secret string, secure bool) gin.HandlerFunc {
	store := cookie.NewStore([]byte(secret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	return sessions.Sessions(CookieName, store)
}

func Load(c *gin.Context) State {
	s := sessions.Default(c)
	var st State
	if v, ok := s.Get(keyAdmin).(bool); ok {
		st.AdminAuthenticated = v
	}
	if v, ok := s.Get(keyEmail).(string); ok {
		st.UserEmail = v
	}
	return st
}

func Save(c *gin.Context, st State) error {
	s := sessions.Default(c)
	if st.AdminAuthenticated {
		s.Set(keyAdmin, true)
	} else {
		s.Delete(keyAdmin)
	}
	if st.UserEmail != "" {
		s.Set(keyEmail, st.UserEmail)
	} else {
		s.Delete(keyEmail)
	}
	return s.Save()
}

// Flash ставит сообщение в очередь до следующего вида.
func Flash(c *gin.Context, msg string) error {
	s := sessions.Default(c)
	s.AddFlash(msg)
	return s.Save()
}

// Flashes drains the queued messages.
func Flashes(c *gin.Context) []string {
	s := sessions.Default(c)
	raw := s.Flashes()
	if len(raw) == 0 {
		return []string{}
	}
	out := make([]string, 0, len(raw))
	for _, f := range raw {
		if m, ok := f.(string); ok {
			out = append(out, m)
		}
	}
	_ = s.Save()
	return out
}
