package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/bsddscan/bsddscan/internal/config"
)

func runInit(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := NewInitCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestInitCmd(t *testing.T) {
	t.Parallel()

	t.Run("creates config file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), ".bsddscan")
		out, err := runInit(t, "-o", path)
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if !strings.Contains(out, "Created configuration file") {
			t.Errorf("output missing confirmation:\n%s", out)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("config file not written: %v", err)
		}

		// The template must be valid YAML in the loader's schema.
		var cf config.File
		if err := yaml.Unmarshal(data, &cf); err != nil {
			t.Fatalf("generated template is not parseable: %v", err)
		}
	})

	t.Run("refuses to overwrite without force", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), ".bsddscan")
		if err := os.WriteFile(path, []byte("keep me"), 0600); err != nil {
			t.Fatal(err)
		}

		if _, err := runInit(t, "-o", path); err == nil {
			t.Fatal("Execute() error = nil, want already-exists error")
		}
		data, _ := os.ReadFile(path)
		if string(data) != "keep me" {
			t.Error("existing file was overwritten without -f")
		}
	})

	t.Run("force overwrites", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), ".bsddscan")
		if err := os.WriteFile(path, []byte("old"), 0600); err != nil {
			t.Fatal(err)
		}

		if _, err := runInit(t, "-o", path, "-f"); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if string(data) == "old" {
			t.Error("file not overwritten with -f")
		}
	})

	t.Run("creates missing directories", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "nested", "dir", "config.yaml")
		if _, err := runInit(t, "-o", path); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("config file not created in nested directory: %v", err)
		}
	})
}
