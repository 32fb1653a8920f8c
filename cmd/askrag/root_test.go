package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfig sets up a source dir with about.txt and a config using the
// offline generator, returning the config path and the index path.
func writeConfig(t *testing.T, backend string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	src := filepath.Join(dir, "docs")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "about.txt"), []byte("Occam Advisory is a consulting firm."), 0o644))

	indexPath := filepath.Join(dir, "vectorstore")
	if backend == "sqlite" {
		indexPath = filepath.Join(dir, "index.db")
	}
	cfg := fmt.Sprintf(`source:
  dir: %s
index:
  backend: %s
  path: %s
generator:
  type: extractive
log:
  level: error
`, src, backend, indexPath)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path, indexPath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	out := new(bytes.Buffer)
	root.SetOut(out)
	root.SetErr(new(bytes.Buffer))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRootCommand_Help(t *testing.T) {
	out, err := run(t, "--help")
	require.NoError(t, err)
	for _, sub := range []string{"serve", "ask", "chat", "index", "scrape"} {
		assert.Contains(t, out, sub)
	}
}

func TestServeCommand_Help(t *testing.T) {
	out, err := run(t, "serve", "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "--port")
}

func TestAskCommand_DefaultQuestion(t *testing.T) {
	cfg, indexPath := writeConfig(t, "file")

	out, err := run(t, "-c", cfg, "ask")
	require.NoError(t, err)
	assert.Equal(t, "Occam Advisory is a consulting firm.\n", out)
	assert.DirExists(t, indexPath)
}

func TestAskCommand_Sources(t *testing.T) {
	cfg, _ := writeConfig(t, "file")

	out, err := run(t, "-c", cfg, "ask", "--sources", "what", "is", "occam")
	require.NoError(t, err)
	assert.Contains(t, out, "Occam Advisory is a consulting firm.")
	assert.Contains(t, out, "[1] about.txt")
}

func TestAskCommand_SQLiteBackend(t *testing.T) {
	cfg, indexPath := writeConfig(t, "sqlite")

	out, err := run(t, "-c", cfg, "ask")
	require.NoError(t, err)
	assert.Equal(t, "Occam Advisory is a consulting firm.\n", out)
	assert.FileExists(t, indexPath)
}

func TestIndexCommand(t *testing.T) {
	cfg, indexPath := writeConfig(t, "file")

	out, err := run(t, "-c", cfg, "index")
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("1 chunks indexed at %s\n", indexPath), out)

	out, err = run(t, "-c", cfg, "index", "--force")
	require.NoError(t, err)
	assert.Contains(t, out, "1 chunks indexed")
}

func TestInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("generator:\n  type: nope\n"), 0o644))

	_, err := run(t, "-c", path, "ask")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generator.type")
}

func TestScrapeCommand_FillsSourceDir(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			fmt.Fprint(w, `<html><body><a href="/services">Services</a></body></html>`)
		case "/services":
			fmt.Fprint(w, `<html><body><p>Occam offers tax advisory services.</p></body></html>`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	cfg, _ := writeConfig(t, "file")
	src := filepath.Join(filepath.Dir(cfg), "docs")

	out, err := run(t, "-c", cfg, "scrape", srv.URL)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("Saved: services.txt\n1 pages saved in %s\n", src), out)

	data, err := os.ReadFile(filepath.Join(src, "services.txt"))
	require.NoError(t, err)
	assert.Equal(t, "Occam offers tax advisory services.", string(data))

	out, err = run(t, "-c", cfg, "index")
	require.NoError(t, err)
	assert.Contains(t, out, "2 chunks indexed")
}

func TestScrapeCommand_RequiresURL(t *testing.T) {
	cfg, _ := writeConfig(t, "file")

	_, err := run(t, "-c", cfg, "scrape")
	require.Error(t, err)
}
