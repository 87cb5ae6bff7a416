package server

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	apperrors "github.com/johann/primevista/internal/errors"
)

const flashCookie = "pv_flash"

// pageBase carries what every layout needs.
type pageBase struct {
	Title     string
	SiteTitle string
	Flash     string
	Admin     bool
}

// base builds the shared page fields and consumes any pending flash message.
func (s *Server) base(c *gin.Context, title string) pageBase {
	b := pageBase{
		Title:     title,
		SiteTitle: s.cfg.SiteTitle,
		Admin:     s.authenticate(c) == nil,
	}
	if raw, err := c.Cookie(flashCookie); err == nil && raw != "" {
		if msg, err := url.QueryUnescape(raw); err == nil {
			b.Flash = msg
		}
		s.setCookie(c, flashCookie, "", -1)
	}
	return b
}

// redirectWithFlash stores msg for the next page view and redirects with 303.
func (s *Server) redirectWithFlash(c *gin.Context, location, msg string) {
	if msg != "" {
		s.setCookie(c, flashCookie, url.QueryEscape(msg), 60)
	}
	c.Redirect(http.StatusSeeOther, location)
}

// render writes page, falling back to a plain 500 when the template fails.
func (s *Server) render(c *gin.Context, status int, page string, data any) {
	if err := s.renderer.Render(c.Writer, status, page, data); err != nil {
		if !c.Writer.Written() {
			c.String(http.StatusInternalServerError, "internal server error")
		}
		_ = c.Error(err)
	}
}

type errorPage struct {
	pageBase
	Status  int
	Message string
}

// renderError maps err onto a status code and renders the error page.
// Storage and unknown errors are logged and shown generically.
func (s *Server) renderError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)

	var title, msg string
	switch status {
	case http.StatusNotFound:
		title, msg = "Not found", "The page or record you asked for does not exist."
	case http.StatusForbidden:
		title, msg = "Forbidden", "Sign in to the admin panel to do that."
	case http.StatusUnprocessableEntity:
		title, msg = "Invalid request", err.Error()
	default:
		title, msg = "Something went wrong", "The request could not be completed. Please try again."
		s.logger.Error().Err(err).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Msg("request failed")
	}

	s.render(c, status, pageError, errorPage{
		pageBase: s.base(c, title),
		Status:   status,
		Message:  msg,
	})
}
