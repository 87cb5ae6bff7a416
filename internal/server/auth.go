package server

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	apperrors "github.com/johann/primevista/internal/errors"
)

const (
	sessionCookie = "pv_session"
	sessionTTL    = 12 * time.Hour
	sessionIssuer = "primevista"
	sessionSub    = "admin"
)

// sessions issues and verifies the signed admin session cookie.
type sessions struct {
	secret []byte
	now    func() time.Time
}

// newSessions uses secret when set and a random key otherwise; with a
// random key sessions do not survive a restart.
func newSessions(secret string) (*sessions, bool, error) {
	if secret != "" {
		return &sessions{secret: []byte(secret), now: time.Now}, false, nil
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, false, fmt.Errorf("generate session key: %w", err)
	}
	return &sessions{secret: key, now: time.Now}, true, nil
}

func (s *sessions) issue() (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Issuer:    sessionIssuer,
		Subject:   sessionSub,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(sessionTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *sessions) verify(token string) error {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithSubject(sessionSub),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return apperrors.Unauthorized("session expired or invalid")
	}
	return nil
}

// tokenMatches compares against the configured admin token in constant time.
// An unset admin token never matches.
func (s *Server) tokenMatches(token string) bool {
	want := s.cfg.AdminToken
	if want == "" || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(want)) == 1
}

// authenticate accepts either a valid session cookie or a bearer token.
func (s *Server) authenticate(c *gin.Context) error {
	if header := c.GetHeader("Authorization"); header != "" {
		token, ok := strings.CutPrefix(header, "Bearer ")
		if ok && s.tokenMatches(token) {
			return nil
		}
		return apperrors.Unauthorized("invalid bearer token")
	}

	cookie, err := c.Cookie(sessionCookie)
	if err != nil || cookie == "" {
		return apperrors.Unauthorized("not signed in")
	}
	return s.sessions.verify(cookie)
}

// requireAdmin stops the request before any store access unless the caller
// is authenticated. Browsers asking for a page are sent to the login form;
// everything else gets 403.
func (s *Server) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := GetRealIP(c)
		bearer := c.GetHeader("Authorization") != ""

		// Bearer callers share the login form's block list.
		if bearer && s.rateLimiter.IsBlocked(clientIP) {
			logFailedAuth(s.logger, clientIP, "ip temporarily blocked", true)
			s.renderTooManyAttempts(c)
			c.Abort()
			return
		}

		err := s.authenticate(c)
		if err == nil {
			c.Next()
			return
		}

		if bearer {
			s.metrics.authFailures.Inc()
			logFailedAuth(s.logger, clientIP, err.Error(), false)
			s.rateLimiter.BlockIP(clientIP)
		}

		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
			target := "/admin/login?next=" + url.QueryEscape(c.Request.URL.RequestURI())
			c.Redirect(http.StatusSeeOther, target)
			c.Abort()
			return
		}

		s.renderError(c, err)
		c.Abort()
	}
}

func (s *Server) renderTooManyAttempts(c *gin.Context) {
	s.render(c, http.StatusTooManyRequests, pageError, errorPage{
		pageBase: s.base(c, "Too many attempts"),
		Status:   http.StatusTooManyRequests,
		Message:  "Too many failed attempts. Try again in a few seconds.",
	})
}

type loginPage struct {
	pageBase
	Next  string
	Error string
}

func (s *Server) handleLoginForm(c *gin.Context) {
	if s.authenticate(c) == nil {
		c.Redirect(http.StatusSeeOther, safeNext(c.Query("next")))
		return
	}
	s.render(c, http.StatusOK, pageLogin, loginPage{
		pageBase: s.base(c, "Sign in"),
		Next:     safeNext(c.Query("next")),
	})
}

func (s *Server) handleLogin(c *gin.Context) {
	clientIP := GetRealIP(c)
	next := safeNext(c.PostForm("next"))

	if s.rateLimiter.IsBlocked(clientIP) {
		logFailedAuth(s.logger, clientIP, "ip temporarily blocked", true)
		s.render(c, http.StatusTooManyRequests, pageLogin, loginPage{
			pageBase: s.base(c, "Sign in"),
			Next:     next,
			Error:    "Too many failed attempts. Try again in a few seconds.",
		})
		return
	}

	if !s.tokenMatches(c.PostForm("token")) {
		reason := "invalid token"
		if s.cfg.AdminToken == "" {
			reason = "admin token not configured"
		}
		s.metrics.authFailures.Inc()
		logFailedAuth(s.logger, clientIP, reason, false)
		s.rateLimiter.BlockIP(clientIP)
		s.render(c, http.StatusUnauthorized, pageLogin, loginPage{
			pageBase: s.base(c, "Sign in"),
			Next:     next,
			Error:    "That token is not valid.",
		})
		return
	}

	token, err := s.sessions.issue()
	if err != nil {
		s.renderError(c, err)
		return
	}
	s.setCookie(c, sessionCookie, token, int(sessionTTL/time.Second))
	s.logger.Info().Str("ip", clientIP).Msg("admin signed in")
	s.redirectWithFlash(c, next, "Signed in.")
}

func (s *Server) handleLogout(c *gin.Context) {
	s.setCookie(c, sessionCookie, "", -1)
	s.redirectWithFlash(c, "/admin/login", "Signed out.")
}

// safeNext keeps post-login redirects on this site's admin panel.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/admin") || strings.HasPrefix(next, "/admin/login") {
		return "/admin"
	}
	u, err := url.Parse(next)
	if err != nil || u.Host != "" || u.Scheme != "" {
		return "/admin"
	}
	return next
}

func (s *Server) setCookie(c *gin.Context, name, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, value, maxAge, "/", "", c.Request.TLS != nil, true)
}
