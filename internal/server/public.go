package server

import (
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	apperrors "github.com/johann/primevista/internal/errors"
	"github.com/johann/primevista/internal/model"
	"golang.org/x/sync/errgroup"
)

type indexPage struct {
	pageBase
	Services   []model.Service
	Projects   []model.Project
	Clients    []model.Client
	Newsletter formState
	Contact    formState
}

// loadIndex reads the three public content lists concurrently.
func (s *Server) loadIndex(c *gin.Context) (indexPage, error) {
	page := indexPage{pageBase: s.base(c, s.cfg.SiteTitle)}

	g, ctx := errgroup.WithContext(c.Request.Context())
	g.Go(func() error {
		var err error
		page.Services, err = s.store.Services.List(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		page.Projects, err = s.store.Projects.List(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		page.Clients, err = s.store.Clients.List(ctx)
		return err
	})
	return page, g.Wait()
}

func (s *Server) renderIndex(c *gin.Context, status int, newsletter, contact formState) {
	page, err := s.loadIndex(c)
	if err != nil {
		s.renderError(c, err)
		return
	}
	page.Newsletter = newsletter
	page.Contact = contact
	s.render(c, status, pageIndex, page)
}

func (s *Server) handleIndex(c *gin.Context) {
	s.renderIndex(c, http.StatusOK, formState{}, formState{})
}

func (s *Server) handleSubscribe(c *gin.Context) {
	email := c.PostForm("email")

	_, inserted, err := s.store.Subscribers.CreateOrGet(c.Request.Context(), &model.Subscriber{Email: email})
	switch {
	case apperrors.IsValidation(err):
		s.metrics.formsTotal.WithLabelValues("newsletter", "invalid").Inc()
		s.renderIndex(c, http.StatusUnprocessableEntity,
			formFailure(map[string]string{"email": email}, err), formState{})
	case err != nil:
		s.renderError(c, err)
	case !inserted:
		s.metrics.formsTotal.WithLabelValues("newsletter", "duplicate").Inc()
		s.renderIndex(c, http.StatusOK,
			formState{Message: "You're already subscribed."}, formState{})
	default:
		s.metrics.formsTotal.WithLabelValues("newsletter", "accepted").Inc()
		s.redirectWithFlash(c, "/#newsletter", "Thanks for subscribing!")
	}
}

func (s *Server) handleContact(c *gin.Context) {
	values := map[string]string{
		"full_name": c.PostForm("full_name"),
		"email":     c.PostForm("email"),
		"mobile":    c.PostForm("mobile"),
		"city":      c.PostForm("city"),
	}

	_, err := s.store.Contacts.Create(c.Request.Context(), &model.ContactRequest{
		FullName: values["full_name"],
		Email:    values["email"],
		Mobile:   values["mobile"],
		City:     values["city"],
	})
	switch {
	case apperrors.IsValidation(err):
		s.metrics.formsTotal.WithLabelValues("contact", "invalid").Inc()
		s.renderIndex(c, http.StatusUnprocessableEntity, formState{}, formFailure(values, err))
	case err != nil:
		s.renderError(c, err)
	default:
		s.metrics.formsTotal.WithLabelValues("contact", "accepted").Inc()
		s.redirectWithFlash(c, "/#contact", "Thank you! Your contact details have been submitted.")
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	if err := s.store.Ready(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleStatic serves files from the configured static directory, falling
// back to the stylesheets and images built into the binary.
func (s *Server) handleStatic(c *gin.Context) {
	name := strings.TrimPrefix(path.Clean("/"+c.Param("filepath")), "/")
	if name == "" {
		s.renderError(c, apperrors.NotFoundf("static file not found"))
		return
	}

	onDisk := filepath.Join(s.cfg.StaticDir, filepath.FromSlash(name))
	if info, err := os.Stat(onDisk); err == nil && !info.IsDir() {
		http.ServeFile(c.Writer, c.Request, onDisk)
		return
	}

	if info, err := fs.Stat(s.assets, name); err == nil && !info.IsDir() {
		http.ServeFileFS(c.Writer, c.Request, s.assets, name)
		return
	}

	s.renderError(c, apperrors.NotFoundf("static file %s not found", name))
}

func (s *Server) handleNotFound(c *gin.Context) {
	s.renderError(c, apperrors.NotFoundf("no route for %s", c.Request.URL.Path))
}
