package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bsddscan/bsddscan/internal/config"
	"github.com/bsddscan/bsddscan/internal/model"
)

func TestBuildConfig(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		cmd := NewCrawlCmd()
		if err := cmd.ParseFlags(nil); err != nil {
			t.Fatal(err)
		}

		cfg, err := buildConfig(cmd, []string{"IfcRoot"})
		if err != nil {
			t.Fatalf("buildConfig() error = %v", err)
		}
		if cfg.StartClass != "IfcRoot" {
			t.Errorf("StartClass = %q, want %q", cfg.StartClass, "IfcRoot")
		}
		if cfg.Workers != config.DefaultWorkers {
			t.Errorf("Workers = %d, want %d", cfg.Workers, config.DefaultWorkers)
		}
		if cfg.Delay != config.DefaultDelay {
			t.Errorf("Delay = %v, want %v", cfg.Delay, config.DefaultDelay)
		}
		if !cfg.SaveToDB {
			t.Error("SaveToDB = false, want true by default")
		}
		if cfg.Scrape {
			t.Error("Scrape = true, want false by default")
		}
	})

	t.Run("flags override defaults", func(t *testing.T) {
		t.Parallel()

		cmd := NewCrawlCmd()
		err := cmd.ParseFlags([]string{
			"--workers", "3",
			"--delay", "50ms",
			"--max-classes", "10",
			"--no-db",
			"--json",
		})
		if err != nil {
			t.Fatal(err)
		}

		cfg, err := buildConfig(cmd, []string{"IfcWall"})
		if err != nil {
			t.Fatalf("buildConfig() error = %v", err)
		}
		if cfg.Workers != 3 {
			t.Errorf("Workers = %d, want 3", cfg.Workers)
		}
		if cfg.Delay != 50*time.Millisecond {
			t.Errorf("Delay = %v, want 50ms", cfg.Delay)
		}
		if cfg.MaxClasses != 10 {
			t.Errorf("MaxClasses = %d, want 10", cfg.MaxClasses)
		}
		if cfg.SaveToDB {
			t.Error("SaveToDB = true with --no-db")
		}
		if !cfg.JSONReport {
			t.Error("JSONReport = false with --json")
		}
	})

	t.Run("explicit missing config file is an error", func(t *testing.T) {
		t.Parallel()

		cmd := NewCrawlCmd()
		missing := filepath.Join(t.TempDir(), "nope.yaml")
		if err := cmd.ParseFlags([]string{"--config", missing}); err != nil {
			t.Fatal(err)
		}
		if _, err := buildConfig(cmd, []string{"IfcRoot"}); err == nil {
			t.Fatal("buildConfig() error = nil, want missing config file error")
		}
	})

	t.Run("config file overrides applied for matching dictionary", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), ".bsddscan")
		content := `dictionaries:
  https://identifier.buildingsmart.org/uri/buildingsmart/ifc:
    workers: 2
`
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatal(err)
		}

		cmd := NewCrawlCmd()
		if err := cmd.ParseFlags([]string{"--config", path}); err != nil {
			t.Fatal(err)
		}
		cfg, err := buildConfig(cmd, []string{"IfcRoot"})
		if err != nil {
			t.Fatalf("buildConfig() error = %v", err)
		}
		if cfg.Dictionaries == nil {
			t.Fatal("Dictionaries not loaded")
		}

		cfg.ApplyDictionaryOverrides("https://identifier.buildingsmart.org/uri/buildingsmart/ifc/4.3/class/IfcRoot")
		if cfg.Workers != 2 {
			t.Errorf("Workers = %d after overrides, want 2", cfg.Workers)
		}
	})
}

// TestCrawlCmdEndToEnd runs the crawl command against a stub API server and
// checks the JSON document it writes.
func TestCrawlCmdEndToEnd(t *testing.T) {
	t.Parallel()

	taxonomy := map[string][]string{
		"IfcRoot":         {"IfcObject", "IfcRelationship"},
		"IfcObject":       {},
		"IfcRelationship": {},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/Class/v1", func(w http.ResponseWriter, r *http.Request) {
		uri := r.URL.Query().Get("uri")
		code := filepath.Base(uri)
		children, ok := taxonomy[code]
		if !ok {
			http.NotFound(w, r)
			return
		}
		refs := make([]map[string]string, 0, len(children))
		for _, child := range children {
			refs = append(refs, map[string]string{
				"uri":  "/uri/buildingsmart/ifc/4.3/class/" + child,
				"code": child,
				"name": child,
			})
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]any{
			"name":                 code,
			"code":                 code,
			"uri":                  uri,
			"childClassReferences": refs,
		}); err != nil {
			t.Error(err)
		}
	})
	mux.HandleFunc("/Class/Properties/v1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"classProperties":[]}`)
	})
	mux.HandleFunc("/Class/Relations/v1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"classRelations":[]}`)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	outPath := filepath.Join(t.TempDir(), "report.json")

	cmd := NewRootCmd()
	cmd.SetArgs([]string{
		"crawl", "IfcRoot",
		"--api-base", server.URL,
		"--delay", "0",
		"--no-db",
		"--json",
		"-o", outPath,
	})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("report file not written: %v", err)
	}

	var doc model.CrawlReport
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	if doc.ClassCount() != 3 {
		t.Errorf("ClassCount() = %d, want 3", doc.ClassCount())
	}
	if doc.FailedCount() != 0 {
		t.Errorf("FailedCount() = %d, want 0", doc.FailedCount())
	}
	if doc.Waves != 2 {
		t.Errorf("Waves = %d, want 2", doc.Waves)
	}
}
