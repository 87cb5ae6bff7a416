package server

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	apperrors "github.com/johann/primevista/internal/errors"
)

// formState is the submitted values and field errors of a form.
type formState struct {
	Values  map[string]string
	Errors  map[string]string
	Message string
}

type dashboardItem struct {
	Resource resourceMeta
	Count    int
}

type dashboardPage struct {
	pageBase
	Items []dashboardItem
}

type resourcePage struct {
	pageBase
	Resource resourceMeta
	Rows     []record
	Form     formState
}

type editPage struct {
	pageBase
	Resource resourceMeta
	Record   record
	Form     formState
}

func (s *Server) handleDashboard(c *gin.Context) {
	counts, err := s.store.Counts(c.Request.Context())
	if err != nil {
		s.renderError(c, err)
		return
	}

	items := make([]dashboardItem, 0, len(s.resources))
	for _, res := range s.resources {
		m := res.meta()
		items = append(items, dashboardItem{Resource: m, Count: countFor(counts, m.Slug)})
	}
	s.render(c, http.StatusOK, pageDashboard, dashboardPage{
		pageBase: s.base(c, "Dashboard"),
		Items:    items,
	})
}

func (s *Server) handleList(res resource) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.renderList(c, res, http.StatusOK, formState{})
	}
}

func (s *Server) renderList(c *gin.Context, res resource, status int, form formState) {
	rows, err := res.list(c.Request.Context())
	if err != nil {
		s.renderError(c, err)
		return
	}
	m := res.meta()
	s.render(c, status, pageResource, resourcePage{
		pageBase: s.base(c, m.Title),
		Resource: m,
		Rows:     rows,
		Form:     form,
	})
}

func (s *Server) handleCreate(res resource) gin.HandlerFunc {
	return func(c *gin.Context) {
		m := res.meta()
		values, uploaded, err := s.readForm(c, m)
		if err != nil {
			if !apperrors.IsValidation(err) {
				s.renderError(c, err)
				return
			}
			s.renderList(c, res, http.StatusUnprocessableEntity, formFailure(values, err))
			return
		}

		rec, err := res.create(c.Request.Context(), values)
		if err != nil {
			s.uploads.Remove(c.Request.Context(), uploaded)
			if apperrors.IsValidation(err) {
				s.renderList(c, res, http.StatusUnprocessableEntity, formFailure(values, err))
				return
			}
			s.renderError(c, err)
			return
		}

		s.metrics.contentMutation.WithLabelValues(m.Slug, "create").Inc()
		s.logger.Info().Str("entity", m.Slug).Int64("id", rec.ID).Msg("created")
		s.redirectWithFlash(c, "/admin/"+m.Slug, m.Singular+" added.")
	}
}

func (s *Server) handleEditForm(res resource) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, err := s.lookup(c, res)
		if err != nil {
			s.renderError(c, err)
			return
		}
		s.renderEdit(c, res, rec, http.StatusOK, formState{Values: rec.Values})
	}
}

func (s *Server) renderEdit(c *gin.Context, res resource, rec record, status int, form formState) {
	m := res.meta()
	s.render(c, status, pageEdit, editPage{
		pageBase: s.base(c, "Edit "+m.Singular),
		Resource: m,
		Record:   rec,
		Form:     form,
	})
}

func (s *Server) handleUpdate(res resource) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		m := res.meta()

		old, err := s.lookup(c, res)
		if err != nil {
			s.renderError(c, err)
			return
		}

		values, uploaded, err := s.readForm(c, m)
		if err != nil {
			if !apperrors.IsValidation(err) {
				s.renderError(c, err)
				return
			}
			s.renderEdit(c, res, old, http.StatusUnprocessableEntity, formFailure(values, err))
			return
		}

		rec, err := res.update(ctx, old.ID, values)
		if err != nil {
			s.uploads.Remove(ctx, uploaded)
			if apperrors.IsValidation(err) {
				s.renderEdit(c, res, old, http.StatusUnprocessableEntity, formFailure(values, err))
				return
			}
			s.renderError(c, err)
			return
		}

		if m.ImageField != "" {
			if prev := old.Values[m.ImageField]; prev != rec.Values[m.ImageField] {
				s.uploads.Remove(ctx, prev)
			}
		}

		s.metrics.contentMutation.WithLabelValues(m.Slug, "update").Inc()
		s.logger.Info().Str("entity", m.Slug).Int64("id", rec.ID).Msg("updated")
		s.redirectWithFlash(c, "/admin/"+m.Slug, m.Singular+" updated.")
	}
}

func (s *Server) handleDelete(res resource) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		m := res.meta()

		id, ok := parseID(c.Param("id"))
		if !ok {
			s.renderError(c, apperrors.NotFoundf("%s %q not found", m.Singular, c.Param("id")))
			return
		}

		rec, err := res.remove(ctx, id)
		if err != nil {
			s.renderError(c, err)
			return
		}
		if m.ImageField != "" {
			s.uploads.Remove(ctx, rec.Values[m.ImageField])
		}

		s.metrics.contentMutation.WithLabelValues(m.Slug, "delete").Inc()
		s.logger.Info().Str("entity", m.Slug).Int64("id", rec.ID).Msg("deleted")
		s.redirectWithFlash(c, "/admin/"+m.Slug, m.Singular+" deleted.")
	}
}

func (s *Server) lookup(c *gin.Context, res resource) (record, error) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		return record{}, apperrors.NotFoundf("%s %q not found", res.meta().Singular, c.Param("id"))
	}
	return res.get(c.Request.Context(), id)
}

// readForm collects the resource's fields from the request. When the
// resource takes an image and a file was attached, the file is stored and
// its reference replaces the typed value; the reference is also returned so
// the caller can release it if the write fails.
func (s *Server) readForm(c *gin.Context, m resourceMeta) (map[string]string, string, error) {
	values := make(map[string]string, len(m.Fields))

	if m.ImageField == "" {
		for _, f := range m.Fields {
			values[f.Name] = c.PostForm(f.Name)
		}
		return values, "", nil
	}

	limit := s.cfg.MaxUploadBytes() + 1<<20
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

	file, err := c.FormFile(m.ImageField + "_file")
	for _, f := range m.Fields {
		values[f.Name] = c.PostForm(f.Name)
	}

	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return values, "", apperrors.ValidationField(m.ImageField,
			fmt.Sprintf("Images must be smaller than %d MB.", s.cfg.MaxUploadMB))
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		return values, "", nil
	case err != nil:
		return values, "", apperrors.ValidationField(m.ImageField, "The upload could not be read.")
	}

	ref, err := s.saveUpload(c, file)
	if err != nil {
		if apperrors.IsValidation(err) {
			return values, "", apperrors.ValidationField(m.ImageField, err.Error())
		}
		return values, "", err
	}
	values[m.ImageField] = ref
	return values, ref, nil
}

func (s *Server) saveUpload(c *gin.Context, fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	ref, err := s.uploads.Save(c.Request.Context(), f)
	if err != nil {
		return "", err
	}
	s.metrics.uploadBytes.Add(float64(fh.Size))
	return ref, nil
}

// formFailure turns a validation error into form state. Anything else is
// shown as a form-level message.
func formFailure(values map[string]string, err error) formState {
	form := formState{Values: values, Errors: apperrors.FieldErrors(err)}
	if len(form.Errors) == 0 {
		form.Message = err.Error()
	}
	return form
}
