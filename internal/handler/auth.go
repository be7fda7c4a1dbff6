package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/support-desk/internal/errs"
	"github.com/psds-microservice/support-desk/internal/service"
	"github.com/psds-microservice/support-desk/internal/session"
	"github.com/psds-microservice/support-desk/internal/validation"
)

const checkEmailMessage = "If that email has tickets with us, a login code is on its way."

// AuthHandler — вход владельцев тикетов по одноразовому коду из письма.
type AuthHandler struct {
	auth service.AuthServicer
}

func NewAuthHandler(auth service.AuthServicer) *AuthHandler {
	return &AuthHandler{auth: auth}
}

func (h *AuthHandler) LoginForm(c *gin.Context) {
	if session.Load(c).UserEmail != "" {
		redirect(c, "/my-tickets")
		return
	}
	render(c, http.StatusOK, "login", nil)
}

// Login всегда отвечает видом verify: неизвестный адрес неотличим от известного.
func (h *AuthHandler) Login(c *gin.Context) {
	email := validation.NormalizeEmail(c.PostForm("email"))
	if err := h.auth.RequestLogin(c.Request.Context(), email); err != nil {
		if verr, ok := errs.IsValidation(err); ok {
			render(c, http.StatusBadRequest, "login", gin.H{"email": email, "errors": verr.Fields})
			return
		}
		slog.Error("auth: request login", "error", err)
		flash(c, genericFailure)
		render(c, http.StatusInternalServerError, "login", gin.H{"email": email})
		return
	}
	flash(c, checkEmailMessage)
	render(c, http.StatusOK, "verify", gin.H{"email": email})
}

func (h *AuthHandler) VerifyForm(c *gin.Context) {
	render(c, http.StatusOK, "verify", gin.H{"email": validation.NormalizeEmail(c.Query("email"))})
}

func (h *AuthHandler) Verify(c *gin.Context) {
	email := validation.NormalizeEmail(c.PostForm("email"))
	code := strings.TrimSpace(c.PostForm("code"))
	verified, err := h.auth.VerifyCode(c.Request.Context(), email, code)
	if err != nil {
		if errors.Is(err, errs.ErrInvalidCode) {
			flash(c, "Invalid or expired code.")
			render(c, http.StatusBadRequest, "verify", gin.H{"email": email})
			return
		}
		slog.Error("auth: verify code", "error", err)
		flash(c, genericFailure)
		render(c, http.StatusInternalServerError, "verify", gin.H{"email": email})
		return
	}
	st := session.Load(c)
	st.UserEmail = verified
	if err := session.Save(c, st); err != nil {
		slog.Error("session: save", "error", err)
		flash(c, genericFailure)
		render(c, http.StatusInternalServerError, "verify", gin.H{"email": email})
		return
	}
	flash(c, "You are now logged in.")
	redirect(c, "/my-tickets")
}

// Logout сбрасывает email пользователя; флаг администратора в той же сессии остаётся.
func (h *AuthHandler) Logout(c *gin.Context) {
	st := session.Load(c)
	st.UserEmail = ""
	if err := session.Save(c, st); err != nil {
		slog.Error("session: save", "error", err)
	}
	flash(c, "You have been logged out.")
	redirect(c, "/auth/login")
}
