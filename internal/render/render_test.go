package render

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/giobyte8/gallerist/internal/gallery"
)

func TestRender(t *testing.T) {
	m := gallery.NewManifest(gallery.ManifestParams{
		Title:       "Fish & Chips <2024>",
		Version:     "v0.3.0",
		GeneratedAt: time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC),
		ArchiveName: "Fish__Chips_2024.zip",
		ArchiveSize: 5 << 20,
		Items: []gallery.Item{
			{FilenameFull: "a.JPG", FilenameThumb: "a.thumb.jpg"},
			{FilenameFull: "b.jpg", FilenameThumb: "b.thumb.jpg"},
		},
	})

	out, err := NewHTMLRenderer().Render(m)
	if err != nil {
		t.Fatal(err)
	}
	html := string(out)

	wants := []string{
		"<title>Fish &amp; Chips &lt;2024&gt;</title>",
		`href="Fish__Chips_2024.zip"`,
		"(5 MiB)",
		`datetime="2024-06-01T10:00:00Z"`,
		`href="static/gallery.css"`,
		`src="static/gallery.js"`,
	}
	for _, want := range wants {
		if !strings.Contains(html, want) {
			t.Errorf("rendered index is missing %q", want)
		}
	}

	first := strings.Index(html, `href="a.JPG"`)
	second := strings.Index(html, `href="b.jpg"`)
	if first < 0 || second < 0 || first > second {
		t.Errorf("images missing or out of order")
	}
}

func TestRenderWithoutDownload(t *testing.T) {
	m := gallery.NewManifest(gallery.ManifestParams{
		Title:       "No Archive",
		GeneratedAt: time.Now(),
	})

	out, err := NewHTMLRenderer().Render(m)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(out), `class="download"`) {
		t.Fatal("download link rendered without archive")
	}
}

func TestWriteAssets(t *testing.T) {
	dir := t.TempDir()
	if err := NewHTMLRenderer().WriteAssets(dir); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"gallery.css", "gallery.js"} {
		got, err := os.ReadFile(filepath.Join(dir, StaticDir, name))
		if err != nil {
			t.Fatalf("asset %s not written: %v", name, err)
		}
		want, err := staticFiles.ReadFile(StaticDir + "/" + name)
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != string(want) {
			t.Errorf("asset %s not copied verbatim", name)
		}
	}
}
