package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/giobyte8/gallerist/internal/gallery"
)

// Name of the directory holding supporting assets in the output.
const StaticDir = "static"

//go:embed templates/index.html.tmpl
var templateFiles embed.FS

//go:embed static
var staticFiles embed.FS

var indexTemplate = template.Must(
	template.ParseFS(templateFiles, "templates/index.html.tmpl"),
)

type HTMLRenderer struct {
	tmpl   *template.Template
	static fs.FS
}

func NewHTMLRenderer() *HTMLRenderer {
	static, err := fs.Sub(staticFiles, StaticDir)
	if err != nil {
		// Only fails for invalid paths
		panic(err)
	}

	return &HTMLRenderer{
		tmpl:   indexTemplate,
		static: static,
	}
}

// Render executes the index template against m.
func (r *HTMLRenderer) Render(m *gallery.Manifest) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, m); err != nil {
		return nil, fmt.Errorf("failed to render gallery index: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteAssets copies the embedded static assets to outputDir/static,
// overwriting existing files.
func (r *HTMLRenderer) WriteAssets(outputDir string) error {
	dst := filepath.Join(outputDir, StaticDir)

	return fs.WalkDir(r.static, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		target := filepath.Join(dst, filepath.FromSlash(path))
		if d.IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", target, err)
			}
			return nil
		}

		data, err := fs.ReadFile(r.static, path)
		if err != nil {
			return err
		}
		if err := os.WriteFile(target, data, 0644); err != nil {
			return fmt.Errorf("failed to write asset %s: %w", target, err)
		}
		return nil
	})
}
