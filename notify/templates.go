package notify

import (
	"bytes"
	"embed"
	"io/fs"
	"net/http"

	"github.com/gofiber/template/django/v3"
	goerrors "github.com/goliatone/go-errors"
)

const (
	TemplateVerify        = "verify"
	TemplateWelcome       = "welcome"
	TemplatePasswordReset = "password_reset"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Templates renders mail bodies with the django engine
type Templates struct {
	engine *django.Engine
}

// NewTemplates loads the embedded mail templates
func NewTemplates() (*Templates, error) {
	sub, err := fs.Sub(templatesFS, "templates")
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open mail templates")
	}
	return NewTemplatesFromFS(sub)
}

// NewTemplatesFromFS loads *.html templates from the given filesystem, so
// deployments can override the embedded ones
func NewTemplatesFromFS(fsys fs.FS) (*Templates, error) {
	engine := django.NewFileSystem(http.FS(fsys), ".html")
	if err := engine.Load(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load mail templates")
	}
	return &Templates{engine: engine}, nil
}

// Render executes the named template with the given bindings
func (t *Templates) Render(name string, bindings map[string]any) (string, error) {
	var buf bytes.Buffer
	if err := t.engine.Render(&buf, name, bindings); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render mail template").
			WithMetadata(map[string]any{"template": name})
	}
	return buf.String(), nil
}
