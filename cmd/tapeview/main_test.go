package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/hyperjump/tapeview/internal/config"
	"github.com/hyperjump/tapeview/internal/decoder"
	"github.com/hyperjump/tapeview/internal/models"
	"github.com/hyperjump/tapeview/internal/viewer"
	"go.uber.org/zap"
)

func TestSearchArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{"flags after query are moved first", []string{"loader", "-limit", "5"}, []string{"-limit", "5", "loader"}},
		{"flags first returns unchanged", []string{"-fuzzy", "loader"}, []string{"-fuzzy", "loader"}},
		{"query only returns unchanged", []string{"LD HL"}, []string{"LD HL"}},
		{"empty args returns unchanged", []string{}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := searchArgsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("searchArgsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestBuildSearchQuery(t *testing.T) {
	if got := buildSearchQuery([]string{"LD", "HL"}); got != "LD HL" {
		t.Errorf("got %q", got)
	}
	if got := buildSearchQuery([]string{"  ", " "}); got != "" {
		t.Errorf("blank args: got %q", got)
	}
}

func TestIsRemote(t *testing.T) {
	tests := map[string]bool{
		"https://example.com/a.mzf": true,
		"http://host/pack.zip":      true,
		"GAME.mzf":                  false,
		"/tmp/GAME.mzf":             false,
		"ftp://host/a.mzf":          false,
		"https:///nohost":           false,
	}
	for arg, want := range tests {
		if got := isRemote(arg); got != want {
			t.Errorf("isRemote(%q) = %v, want %v", arg, got, want)
		}
	}
}

func TestLoaderFor(t *testing.T) {
	cfg := config.Default()
	if _, ok := loaderFor(cfg).(decoder.Builtin); !ok {
		t.Error("expected built-in decoder by default")
	}
	cfg.Decoder.Command = "mzf2txt"
	ext, ok := loaderFor(cfg).(*decoder.External)
	if !ok || ext.Command != "mzf2txt" {
		t.Errorf("expected external decoder, got %#v", loaderFor(cfg))
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
viewer:
  kind: zx
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(origWd) }()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if !cfg.Debug || cfg.Viewer.Kind != "zx" {
		t.Errorf("unexpected config %+v", cfg)
	}
}

func TestLoadConfig_missingDefaultUsesDefaults(t *testing.T) {
	origWd, _ := os.Getwd()
	defer func() { _ = os.Chdir(origWd) }()
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(defaultConfigPath); err == nil {
		t.Skip("a system config exists")
	}
	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != "" || cfg.Viewer.Kind != config.ViewerMZF {
		t.Errorf("unexpected result %q %+v", resolved, cfg.Viewer)
	}
}

func TestLoadConfig_explicitPathMustExist(t *testing.T) {
	if _, _, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for a missing explicit config")
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Viewer.Mode = "DUMP"
	cfg.Output.Directory = filepath.Join(dir, "out")
	cfg.Storage.DatabasePath = filepath.Join(dir, "history.db")
	cfg.Storage.BleveIndexPath = filepath.Join(dir, "catalog")
	return cfg
}

func TestViewOnce_localFile(t *testing.T) {
	cfg := testConfig(t)
	path := filepath.Join(t.TempDir(), "GAME.mzf")
	if err := os.WriteFile(path, []byte{0x01, 0x48, 0x49}, 0644); err != nil {
		t.Fatal(err)
	}
	v, err := newViewer(cfg, zap.NewNop(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := v.Init(context.Background()); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := viewOnce(context.Background(), v, path, &out); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(out.String(), "\n")
	if lines[0] != "; 0x01 - Machine Code (Z80)" || !strings.HasPrefix(lines[1], "0000  01 48 49") {
		t.Errorf("unexpected output:\n%s", out.String())
	}
}

func TestViewOnce_missingFile(t *testing.T) {
	cfg := testConfig(t)
	v, _ := newViewer(cfg, zap.NewNop(), nil)
	v.Init(context.Background())
	var out bytes.Buffer
	if err := viewOnce(context.Background(), v, filepath.Join(t.TempDir(), "none.mzf"), &out); err == nil {
		t.Error("expected error")
	}
	if out.Len() != 0 {
		t.Errorf("nothing should be printed, got %q", out.String())
	}
}

func TestNewViewer_unknownKind(t *testing.T) {
	cfg := testConfig(t)
	cfg.Viewer.Kind = "c64"
	if _, err := newViewer(cfg, zap.NewNop(), nil); err == nil {
		t.Error("expected error")
	}
}

func TestWriteSnapshot_failure(t *testing.T) {
	var out bytes.Buffer
	err := writeSnapshot(&out, viewer.Snapshot{Text: "Error: No .mzf file found in ZIP archive.", Failed: true})
	if err == nil {
		t.Error("expected error")
	}
	if out.String() != "Error: No .mzf file found in ZIP archive.\n" {
		t.Errorf("got %q", out.String())
	}
}

func TestSaveRecordsAndSearchDirect(t *testing.T) {
	cfg := testConfig(t)
	comps, err := initializeComponents(cfg)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "LOADER.mzf")
	os.WriteFile(path, []byte("LOADER"), 0644)

	v, _ := newViewer(cfg, zap.NewNop(), comps)
	v.Init(context.Background())
	var out bytes.Buffer
	if err := viewOnce(context.Background(), v, path, &out); err != nil {
		t.Fatal(err)
	}
	a, err := v.Save(context.Background(), "")
	if err != nil || a == nil {
		t.Fatalf("save: %v %v", a, err)
	}

	hits, err := searchDirect(comps.Catalog, searchRequest{query: "loader", limit: 5})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].ID != a.ID {
		t.Errorf("hits = %+v", hits)
	}
	comps.Close()

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := config.Save(configPath, cfg); err != nil {
		t.Fatal(err)
	}
	page, err := historyDirect(configPath, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 1 || page.Artifacts[0].Name != "LOADER.txt" {
		t.Errorf("page = %+v", page)
	}
}

func TestViaHTTP(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/history":
			if r.URL.Query().Get("limit") != "7" {
				http.Error(w, "bad limit", http.StatusBadRequest)
				return
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"artifacts": []*models.Artifact{{ID: "a-1", Name: "X.txt"}},
				"total":     1,
			})
		case "/api/v1/search":
			if r.URL.Query().Get("mode") != "Z80" {
				http.Error(w, "bad mode", http.StatusBadRequest)
				return
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"query": r.URL.Query().Get("q"),
				"hits":  []models.CatalogHit{{ID: "a-1", Name: "X", Score: 1}},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	page, err := historyViaHTTP(ts.URL, 0, 7)
	if err != nil || page.Total != 1 || page.Artifacts[0].ID != "a-1" {
		t.Errorf("history: %+v %v", page, err)
	}
	hits, err := searchViaHTTP(ts.URL, searchRequest{query: "x", limit: 3, mode: models.ModeZ80})
	if err != nil || len(hits) != 1 {
		t.Errorf("search: %+v %v", hits, err)
	}
	if _, err := searchViaHTTP(ts.URL, searchRequest{query: "x"}); err == nil || !strings.Contains(err.Error(), "400") {
		t.Errorf("expected status error, got %v", err)
	}
}

func TestModeHint(t *testing.T) {
	if got := modeHint("Z80"); got != "" {
		t.Errorf("valid mode: got %q", got)
	}
	if got := modeHint("z80"); got != `Unknown mode "z80", using DUMP. Did you mean Z80?` {
		t.Errorf("got %q", got)
	}
	if got := modeHint("bogus"); got != `Unknown mode "bogus", using DUMP.` {
		t.Errorf("got %q", got)
	}
}

func TestNewViewer_memberPattern(t *testing.T) {
	cfg := testConfig(t)
	cfg.Viewer.Member = "("
	if _, err := newViewer(cfg, zap.NewNop(), nil); err == nil {
		t.Error("expected error for invalid member pattern")
	}
	cfg.Viewer.Member = `\.m12$`
	if _, err := newViewer(cfg, zap.NewNop(), nil); err != nil {
		t.Errorf("valid member pattern: %v", err)
	}
}

func TestModeList(t *testing.T) {
	list := modeList()
	for _, m := range models.Modes() {
		if !strings.Contains(list, string(m)+" ") || !strings.Contains(list, m.Description()) {
			t.Errorf("mode list misses %s:\n%s", m, list)
		}
	}
	if !strings.Contains(list, "ZX80BASIC  ZX80 BASIC") {
		t.Errorf("unexpected layout:\n%s", list)
	}
}
