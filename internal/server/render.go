package server

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/johann/primevista/internal/model"
	"github.com/rs/zerolog"
	"github.com/yosssi/gohtml"
)

// Page names. Each one is a file under pages/ rendered inside a layout.
const (
	pageIndex     = "index"
	pageError     = "error"
	pageLogin     = "admin_login"
	pageDashboard = "admin_dashboard"
	pageResource  = "admin_resource"
	pageEdit      = "admin_edit"
)

var allPages = []string{pageIndex, pageError, pageLogin, pageDashboard, pageResource, pageEdit}

// Renderer renders HTML pages from a template filesystem. Templates see
// only the data value passed to Render.
type Renderer struct {
	pages  map[string]*template.Template
	pretty bool
	logger zerolog.Logger
}

// NewRenderer parses every page together with the shared layouts and
// partials. pretty re-indents the output HTML.
func NewRenderer(fsys fs.FS, pretty bool, logger zerolog.Logger) (*Renderer, error) {
	r := &Renderer{
		pages:  make(map[string]*template.Template, len(allPages)),
		pretty: pretty,
		logger: logger.With().Str("component", "renderer").Logger(),
	}

	for _, page := range allPages {
		t, err := template.New(page).Funcs(templateFuncs()).ParseFS(fsys,
			"layouts/*.tmpl",
			"partials/*.tmpl",
			"pages/"+page+".tmpl",
		)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", page, err)
		}
		r.pages[page] = t
	}
	return r, nil
}

// Render executes page with data and writes it with the given status code.
// Nothing is written when the template fails.
func (r *Renderer) Render(w http.ResponseWriter, status int, page string, data any) error {
	t, ok := r.pages[page]
	if !ok {
		return fmt.Errorf("unknown page %q", page)
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, page+".tmpl", data); err != nil {
		r.logger.Error().Err(err).Str("page", page).Msg("template execution failed")
		return err
	}

	body := buf.Bytes()
	if r.pretty {
		body = gohtml.FormatBytes(body)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := w.Write(body)
	return err
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"asset":    assetURL,
		"label":    model.Label,
		"initials": initials,
		"datetime": func(ts model.Timestamp) string {
			if ts.IsZero() {
				return ""
			}
			return ts.UTC().Format("2006-01-02 15:04")
		},
		"year": func() int { return time.Now().Year() },
	}
}

// assetURL turns a stored image reference into a URL. Absolute URLs and
// root-relative paths are used unchanged; anything else is a path below the
// static root.
func assetURL(ref string) string {
	switch {
	case ref == "":
		return ""
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"),
		strings.HasPrefix(ref, "/"):
		return ref
	default:
		return "/static/" + ref
	}
}

// initials returns the first letter of up to two words of name.
func initials(name string) string {
	var letters []rune
	for _, word := range strings.Fields(name) {
		r, _ := utf8.DecodeRuneInString(word)
		letters = append(letters, r)
		if len(letters) == 2 {
			break
		}
	}
	return strings.ToUpper(string(letters))
}
