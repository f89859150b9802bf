package cli

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	docapp "github.com/fichesante/backend/internal/application/document"
	"github.com/fichesante/backend/internal/domain/document"
	"github.com/fichesante/backend/internal/infrastructure/config"
	"github.com/fichesante/backend/internal/infrastructure/printing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingEncoder struct{}

func (failingEncoder) Encode(context.Context, *document.Tree) ([]byte, error) {
	return nil, printing.NewEncodingError("RenderError", "font table missing", nil)
}

func (failingEncoder) Name() string { return "failing" }
func (failingEncoder) Close() error { return nil }

func testConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	cfg.Encoder.Backend = printing.BackendNative
	cfg.Content = config.ContentConfig{}
	return cfg, nil
}

// execute runs the CLI on the embedded records and returns its output
func execute(t *testing.T, enc printing.Encoder, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand(&RootOptions{loadConfig: testConfig, encoder: enc})
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRoot_InvalidFlags(t *testing.T) {
	_, _, err := execute(t, nil, "list", "--format", "xml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, _, err = execute(t, nil, "list", "--backend", "latex")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestList(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		stdout, _, err := execute(t, nil, "list")
		require.NoError(t, err)
		assert.Contains(t, stdout, "ID")
		assert.Contains(t, stdout, "gonarthrose")
		assert.Contains(t, stdout, "lombalgie-4pages.pdf")
		assert.Contains(t, stdout, "entorse-cheville")
	})

	t.Run("json", func(t *testing.T) {
		stdout, _, err := execute(t, nil, "list", "--format", "json")
		require.NoError(t, err)

		var docs []docapp.DocumentResponse
		require.NoError(t, json.Unmarshal([]byte(stdout), &docs))
		require.Len(t, docs, 3)
		assert.Equal(t, "entorse-cheville", docs[0].ID)
		assert.Len(t, docs[0].Variants, 2)
	})

	t.Run("content directory without seed", func(t *testing.T) {
		_, _, err := execute(t, nil, "list", "--content-dir", filepath.Join(t.TempDir(), "missing"))
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})
}

func TestGenerate(t *testing.T) {
	t.Run("writes the PDF", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "genou.pdf")
		stdout, _, err := execute(t, nil, "generate", "gonarthrose", "--variant", "4pages", "-o", out)
		require.NoError(t, err)

		data, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(data, []byte("%PDF-1.4")))
		assert.Contains(t, stdout, "wrote "+out)
	})

	t.Run("stdout", func(t *testing.T) {
		stdout, _, err := execute(t, nil, "generate", "lombalgie", "-o", "-")
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix([]byte(stdout), []byte("%PDF-1.4")))
		assert.NotContains(t, stdout, "wrote")
	})

	t.Run("unknown document", func(t *testing.T) {
		_, _, err := execute(t, nil, "generate", "unknown-x", "-o", filepath.Join(t.TempDir(), "x.pdf"))
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})

	t.Run("invalid variant", func(t *testing.T) {
		_, _, err := execute(t, nil, "generate", "gonarthrose", "--variant", "2pages")
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})

	t.Run("failure prints the diagnostic", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "fail.pdf")
		_, stderr, err := execute(t, failingEncoder{}, "generate", "gonarthrose", "-o", out)
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))

		assert.Contains(t, stderr, `"slug": "gonarthrose"`)
		assert.Contains(t, stderr, `"message": "font table missing"`)
		assert.Contains(t, stderr, "docgen preview gonarthrose --variant 1page --open --print")
		assert.NoFileExists(t, out)
	})
}

func TestBatch(t *testing.T) {
	readZip := func(t *testing.T, path string) []string {
		t.Helper()
		r, err := zip.OpenReader(path)
		require.NoError(t, err)
		defer r.Close()
		names := make([]string, 0, len(r.File))
		for _, f := range r.File {
			names = append(names, f.Name)
		}
		return names
	}

	t.Run("packages every document", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "lot.zip")
		stdout, _, err := execute(t, nil, "batch", "gonarthrose", "lombalgie", "--variant", "1page", "-o", out)
		require.NoError(t, err)
		assert.Contains(t, stdout, "2 of 2 documents")
		assert.Len(t, readZip(t, out), 2)
	})

	t.Run("json summary", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "lot.zip")
		stdout, _, err := execute(t, nil, "batch", "gonarthrose", "--format", "json", "-o", out)
		require.NoError(t, err)

		var summary BatchSummary
		require.NoError(t, json.Unmarshal([]byte(stdout), &summary))
		assert.Equal(t, out, summary.Archive)
		assert.Equal(t, 1, summary.Succeeded)
		assert.Len(t, summary.Entries, 1)
		assert.Empty(t, summary.Failures)
	})

	t.Run("failed positions are reported", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "lot.zip")
		_, stderr, err := execute(t, nil, "batch", "gonarthrose", "unknown-x", "-o", out)
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.Contains(t, err.Error(), "1 of 2 documents failed")
		assert.Contains(t, stderr, "position 1: unknown-x")

		assert.Len(t, readZip(t, out), 1)
	})

	t.Run("too many ids", func(t *testing.T) {
		args := []string{"batch", "-o", filepath.Join(t.TempDir(), "lot.zip")}
		for range 101 {
			args = append(args, "gonarthrose")
		}
		_, _, err := execute(t, nil, args...)
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})
}

func TestPreview(t *testing.T) {
	t.Run("writes the printable HTML", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "genou.html")
		_, _, err := execute(t, nil, "preview", "gonarthrose", "--variant", "4pages", "-o", out)
		require.NoError(t, err)

		data, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.Contains(t, string(data), `<html lang="fr">`)
		assert.NotContains(t, string(data), "window.print()")
	})

	t.Run("print adds the print script", func(t *testing.T) {
		stdout, _, err := execute(t, nil, "preview", "lombalgie", "--print", "-o", "-")
		require.NoError(t, err)
		assert.Contains(t, stdout, "window.print()")
	})

	t.Run("unknown document gets the unavailable page", func(t *testing.T) {
		stdout, _, err := execute(t, nil, "preview", "unknown-x", "-o", "-")
		require.NoError(t, err)
		assert.Contains(t, stdout, "<html")
	})
}
