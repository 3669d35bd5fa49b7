package web

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin/render"

	"github.com/floroz/commerce/internal/auction"
)

//go:embed templates/*.html
var templateFS embed.FS

const layoutTemplate = "templates/layout.html"

// pageRenderer gives each page its own template set so every page can
// define the "content" block used by the shared layout.
type pageRenderer struct {
	pages map[string]*template.Template
}

func newPageRenderer() (*pageRenderer, error) {
	files, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	r := &pageRenderer{pages: make(map[string]*template.Template)}
	for _, file := range files {
		if file == layoutTemplate {
			continue
		}
		name := strings.TrimSuffix(path.Base(file), ".html")
		tmpl, err := template.New(name).Funcs(templateFuncs).ParseFS(templateFS, layoutTemplate, file)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		r.pages[name] = tmpl
	}
	return r, nil
}

// Instance implements render.HTMLRender
func (r *pageRenderer) Instance(name string, data any) render.Render {
	tmpl, ok := r.pages[name]
	if !ok {
		panic(fmt.Sprintf("web: unknown page %q", name))
	}
	return render.HTML{Template: tmpl, Name: "layout", Data: data}
}

var templateFuncs = template.FuncMap{
	"money": func(v any) string {
		switch p := v.(type) {
		case int64:
			return "$" + auction.FormatAmount(p)
		case *int64:
			if p == nil {
				return "no bids"
			}
			return "$" + auction.FormatAmount(*p)
		default:
			return ""
		}
	},
	"date": func(t time.Time) string {
		return t.Format("Jan 2, 2006, 3:04 PM")
	},
}
