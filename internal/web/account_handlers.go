package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/floroz/commerce/internal/users"
	"github.com/floroz/commerce/pkg/auth"
)

func (s *Server) loginPage(c *gin.Context) {
	s.render(c, http.StatusOK, "login", gin.H{"Title": "Login", "Username": "", "Next": c.Query("next")})
}

func (s *Server) login(c *gin.Context) {
	var form loginForm
	if err := c.ShouldBind(&form); err != nil {
		s.render(c, http.StatusUnprocessableEntity, "login", gin.H{
			"Title":    "Login",
			"Message":  "Invalid username and/or password.",
			"Username": form.Username,
			"Next":     form.Next,
		})
		return
	}

	user, err := s.users.Login(c.Request.Context(), form.Username, form.Password)
	if err != nil {
		if errors.Is(err, users.ErrInvalidCredentials) {
			s.render(c, http.StatusUnprocessableEntity, "login", gin.H{
				"Title":    "Login",
				"Message":  "Invalid username and/or password.",
				"Username": form.Username,
				"Next":     form.Next,
			})
			return
		}
		s.internalError(c, err)
		return
	}

	if err := s.startSession(c, user); err != nil {
		s.internalError(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, safeNext(form.Next))
}

func (s *Server) logout(c *gin.Context) {
	if claims, ok := auth.GetUserClaims(c.Request.Context()); ok {
		if err := s.sessions.Delete(c.Request.Context(), claims.ID); err != nil {
			s.logger.WithError(err).Warn("failed to delete session")
		}
	}
	s.clearSessionCookie(c)
	c.Redirect(http.StatusFound, "/")
}

func (s *Server) registerPage(c *gin.Context) {
	s.render(c, http.StatusOK, "register", gin.H{"Title": "Register", "Form": registerForm{}})
}

func (s *Server) register(c *gin.Context) {
	var form registerForm
	if err := c.ShouldBind(&form); err != nil {
		s.registerFailed(c, form, formMessage(err))
		return
	}

	user, err := s.users.Register(c.Request.Context(), users.RegisterCommand{
		Username:     form.Username,
		Email:        form.Email,
		Password:     form.Password,
		Confirmation: form.Confirmation,
	})
	if err != nil {
		switch {
		case errors.Is(err, users.ErrPasswordMismatch):
			s.registerFailed(c, form, "Passwords must match.")
		case errors.Is(err, users.ErrUsernameTaken):
			s.registerFailed(c, form, "Username already taken.")
		case errors.Is(err, users.ErrInvalidInput):
			detail := strings.TrimPrefix(err.Error(), users.ErrInvalidInput.Error()+": ")
			s.registerFailed(c, form, sentence(errors.New(detail)))
		default:
			s.internalError(c, err)
		}
		return
	}

	if err := s.startSession(c, user); err != nil {
		s.internalError(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) registerFailed(c *gin.Context, form registerForm, message string) {
	form.Password, form.Confirmation = "", ""
	s.render(c, http.StatusUnprocessableEntity, "register", gin.H{
		"Title":   "Register",
		"Message": message,
		"Form":    form,
	})
}

// startSession stores a new session and hands its token to the browser
func (s *Server) startSession(c *gin.Context, user *users.User) error {
	sessionID, err := s.sessions.Create(c.Request.Context(), user.ID, user.Username)
	if err != nil {
		return err
	}
	token, expiresAt, err := s.tokens.IssueToken(user.ID, user.Username, sessionID)
	if err != nil {
		return err
	}
	s.setSessionCookie(c, token, expiresAt)
	return nil
}
