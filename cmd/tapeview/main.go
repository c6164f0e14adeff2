// Package main is the tapeview CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/tapeview/internal/acquire"
	"github.com/hyperjump/tapeview/internal/archive"
	"github.com/hyperjump/tapeview/internal/catalog"
	"github.com/hyperjump/tapeview/internal/cli"
	"github.com/hyperjump/tapeview/internal/config"
	"github.com/hyperjump/tapeview/internal/decoder"
	"github.com/hyperjump/tapeview/internal/fetch"
	"github.com/hyperjump/tapeview/internal/models"
	"github.com/hyperjump/tapeview/internal/server"
	"github.com/hyperjump/tapeview/internal/storage"
	"github.com/hyperjump/tapeview/internal/viewer"
	"github.com/hyperjump/tapeview/internal/watcher"
	"github.com/hyperjump/tapeview/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/tapeview/config.yaml"

// loadConfig loads config from path. When path is the default, config.yaml in
// the current directory wins if present; a missing default file yields the
// built-in defaults. Returns the config and the path actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			return config.Default(), "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "view":
		runView()
	case "serve", "server":
		runServe()
	case "watch":
		runWatch()
	case "history":
		runHistory()
	case "search":
		runSearch()
	case "version", "--version", "-v":
		fmt.Printf("tapeview version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// viewFlags are shared by the commands that open a viewer.
type viewFlags struct {
	configPath *string
	kind       *string
	mode       *string
	charset    *bool
	debug      *bool
}

func addViewFlags(fs *flag.FlagSet) *viewFlags {
	return &viewFlags{
		configPath: fs.String("config", defaultConfigPath, "config file path"),
		kind:       fs.String("viewer", "", "viewer variant: mzf or zx (default from config)"),
		mode:       fs.String("mode", "", "conversion mode: SA, SP, 1Z, Z80, DUMP or ZX80BASIC"),
		charset:    fs.Bool("charset", false, "use the alternate character mapping"),
		debug:      fs.Bool("debug", false, "enable debug logging"),
	}
}

// apply overrides cfg with the flags that were given.
func (f *viewFlags) apply(cfg *config.Config) {
	if *f.kind != "" {
		cfg.Viewer.Kind = *f.kind
	}
	if *f.mode != "" {
		cfg.Viewer.Mode = *f.mode
	}
	if *f.charset {
		cfg.Viewer.Charset = true
	}
	if *f.debug {
		cfg.Debug = true
	}
}

func (f *viewFlags) load() (*config.Config, string) {
	cfg, resolved, err := loadConfig(*f.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	f.apply(cfg)
	if hint := modeHint(cfg.Viewer.Mode); hint != "" {
		fmt.Fprintln(os.Stderr, hint)
	}
	return cfg, resolved
}

// modeHint warns about a mode that will fall back to DUMP.
func modeHint(mode string) string {
	if mode == "" || models.Mode(mode).Valid() {
		return ""
	}
	hint := fmt.Sprintf("Unknown mode %q, using %s.", mode, models.FallbackMode)
	if m, ok := models.SuggestMode(mode); ok {
		hint += fmt.Sprintf(" Did you mean %s?", m)
	}
	return hint
}

// isRemote reports whether arg names a URL rather than a local file.
func isRemote(arg string) bool {
	u, err := url.Parse(arg)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// loaderFor returns the configured decoder: an external command when set,
// otherwise the built-in decoder.
func loaderFor(cfg *config.Config) decoder.Loader {
	if cfg.Decoder.Command != "" {
		return &decoder.External{Command: cfg.Decoder.Command, Args: cfg.Decoder.Args, Timeout: cfg.Decoder.Timeout}
	}
	return decoder.Builtin{}
}

// newViewer builds a viewer from cfg. comps may be nil when saves are not recorded.
func newViewer(cfg *config.Config, logger *zap.Logger, comps *Components) (*viewer.Viewer, error) {
	profile, err := viewer.ProfileFor(cfg.Viewer.Kind)
	if err != nil {
		return nil, err
	}
	fetcher := fetch.New(
		fetch.WithRelay(cfg.Fetch.RelayOrDefault()),
		fetch.WithTimeout(cfg.Fetch.Timeout),
		fetch.WithLogger(logger),
	)
	opts := []viewer.Option{}
	if cfg.Viewer.Member != "" {
		pattern, err := archive.CompilePattern(cfg.Viewer.Member)
		if err != nil {
			return nil, err
		}
		opts = append(opts, viewer.WithMemberPattern(pattern))
	}
	opts = append(opts,
		viewer.WithMode(cfg.Viewer.Mode),
		viewer.WithCharset(cfg.Viewer.Charset),
		viewer.WithRemoteURL(cfg.Viewer.URL),
		viewer.WithOutputDir(cfg.Output.Directory),
		viewer.WithFetcher(fetcher),
		viewer.WithLogger(logger),
	)
	if comps != nil {
		opts = append(opts, viewer.WithHistory(comps.History), viewer.WithCatalog(comps.Catalog))
	}
	return viewer.New(profile, loaderFor(cfg), opts...), nil
}

// viewOnce loads arg into v and writes the listing to out.
func viewOnce(ctx context.Context, v *viewer.Viewer, arg string, out io.Writer) error {
	if !isRemote(arg) {
		outcome, err := v.Acquire(ctx, acquire.LocalFile{Path: arg})
		if err != nil {
			return err
		}
		var readErr *acquire.ReadError
		if errors.As(outcome.Err, &readErr) {
			return readErr
		}
	}
	return writeSnapshot(out, v.Snapshot())
}

// writeSnapshot prints the listing, preceded by the type label when present.
// Failed acquisitions and decode errors are printed and reported as an error.
func writeSnapshot(out io.Writer, snap viewer.Snapshot) error {
	if snap.TypeLabel != "" {
		fmt.Fprintf(out, "; %s\n", snap.TypeLabel)
	}
	if snap.Failed {
		fmt.Fprintln(out, snap.Text)
		return errors.New("conversion failed")
	}
	if !snap.Loaded {
		return errors.New("no input")
	}
	_, err := io.WriteString(out, snap.Text)
	return err
}

func runView() {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	vf := addViewFlags(fs)
	save := fs.Bool("save", false, "save the listing to the output directory and record it")
	name := fs.String("name", "", "file name for --save (default <name>.txt)")
	lines := fs.Int("lines", 0, "print at most this many listing lines (0 prints all)")
	_ = fs.Parse(os.Args[2:])
	if fs.NArg() != 1 {
		fmt.Println("Usage: tapeview view [flags] <file|url>")
		os.Exit(1)
	}
	arg := fs.Arg(0)

	cfg, _ := vf.load()
	cfg.Viewer.URL = ""
	if isRemote(arg) {
		cfg.Viewer.URL = arg
	}
	logger, err := utils.NewConsoleLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	var comps *Components
	if *save {
		comps, err = initializeComponents(cfg)
		if err != nil {
			logger.Fatal("Failed to initialize", zap.Error(err))
		}
		defer comps.Close()
	}
	v, err := newViewer(cfg, logger, comps)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	ctx := context.Background()
	if err := v.Init(ctx); err != nil {
		fmt.Fprintln(os.Stderr, v.Snapshot().Text)
		os.Exit(1)
	}
	var listing bytes.Buffer
	err = viewOnce(ctx, v, arg, &listing)
	fmt.Print(cli.TruncateLines(listing.String(), *lines))
	if err != nil {
		var readErr *acquire.ReadError
		if errors.As(err, &readErr) {
			fmt.Fprintln(os.Stderr, readErr)
		}
		os.Exit(1)
	}
	if *save {
		a, err := v.Save(ctx, *name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Save failed: %v\n", err)
			os.Exit(1)
		}
		if a != nil {
			fmt.Fprintf(os.Stderr, "Saved: %s\n", a.Path)
		}
	}
}

func runServe() {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	vf := addViewFlags(fs)
	remoteURL := fs.String("url", "", "fetch this URL at startup and disable uploads")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath := vf.load()
	if *remoteURL != "" {
		cfg.Viewer.URL = *remoteURL
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", cfg.Debug),
		zap.String("viewer", cfg.Viewer.Kind),
	)

	comps, err := initializeComponents(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer comps.Close()

	v, err := newViewer(cfg, logger, comps)
	if err != nil {
		logger.Fatal("Invalid viewer", zap.Error(err))
	}
	if err := v.Init(context.Background()); err != nil {
		// The viewer stays inert and reports the failure on every request.
		logger.Error("decoder unavailable", zap.Error(err))
	}

	srv := server.NewServer(v, comps.History, comps.Catalog, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runWatch() {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	vf := addViewFlags(fs)
	_ = fs.Parse(os.Args[2:])
	if fs.NArg() != 1 {
		fmt.Println("Usage: tapeview watch [flags] <file>")
		os.Exit(1)
	}
	path, err := filepath.Abs(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg, _ := vf.load()
	cfg.Viewer.URL = ""
	logger, err := utils.NewConsoleLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	v, err := newViewer(cfg, logger, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := v.Init(ctx); err != nil {
		fmt.Fprintln(os.Stderr, v.Snapshot().Text)
		os.Exit(1)
	}
	if err := viewOnce(ctx, v, path, os.Stdout); err != nil {
		logger.Warn("initial view failed", zap.Error(err))
	}

	w := watcher.NewWatcher(path,
		func(p string) {
			fmt.Printf("\n=== %s changed at %s ===\n", filepath.Base(p), time.Now().Format("15:04:05"))
			_ = viewOnce(ctx, v, p, os.Stdout)
		},
		watcher.WithDebounce(cfg.Watch.Debounce),
		watcher.WithRemoveHandler(func(p string) {
			logger.Warn("watched file removed", zap.String("path", p))
		}),
		watcher.WithLogger(logger),
	)
	if err := w.Start(ctx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	defer w.Stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
}

func runHistory() {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = read the history database directly)")
	limit := fs.Int("limit", 20, "number of entries")
	offset := fs.Int("offset", 0, "entries to skip")
	outputFormat := fs.String("output", "text", "output format: text, compact, or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	var page *cli.HistoryPage
	if *serverURL != "" {
		page, err = historyViaHTTP(*serverURL, *offset, *limit)
	} else {
		page, err = historyDirect(*configPath, *offset, *limit)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "History failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteHistory(os.Stdout, page, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func historyDirect(configPath string, offset, limit int) (*cli.HistoryPage, error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	hist, err := storage.NewSQLiteHistory(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, err
	}
	defer hist.Close()
	ctx := context.Background()
	items, err := hist.List(ctx, offset, limit)
	if err != nil {
		return nil, err
	}
	total, err := hist.Count(ctx)
	if err != nil {
		return nil, err
	}
	return &cli.HistoryPage{Artifacts: items, Total: total}, nil
}

func historyViaHTTP(serverURL string, offset, limit int) (*cli.HistoryPage, error) {
	q := url.Values{}
	q.Set("offset", fmt.Sprint(offset))
	q.Set("limit", fmt.Sprint(limit))
	var page cli.HistoryPage
	if err := getJSON(serverURL+"/api/v1/history?"+q.Encode(), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// printSearchUsage prints search subcommand usage.
func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: tapeview search [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces. Multi-word queries work with or without quotes.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Searches the names and text of saved listings. When nothing matches, the search
is retried once with typo tolerance.

Examples:
  tapeview search loader
  tapeview search --mode Z80 "LD HL"
  tapeview search --fuzzy galxy
`)
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchArgsReorder moves any flags (and their values) that appear after the query
// to the front of the slice so that flag.Parse() sees them. Go's flag package
// stops at the first non-flag argument.
func searchArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

type searchRequest struct {
	query     string
	limit     int
	fuzziness int
	mode      models.Mode
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = open the catalog directly)")
	limit := fs.Int("limit", 10, "number of results")
	fuzzy := fs.Bool("fuzzy", false, "enable fuzzy matching for typo tolerance")
	mode := fs.String("mode", "", "only listings saved in this mode")
	outputFormat := fs.String("output", "text", "output format: text, compact, or json")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))

	query := buildSearchQuery(fs.Args())
	if query == "" {
		printSearchUsage(fs)
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	req := searchRequest{query: query, limit: *limit}
	if *fuzzy {
		req.fuzziness = 1
	}
	if *mode != "" {
		req.mode = models.ParseMode(*mode, models.FallbackMode)
	}

	search := func(r searchRequest) ([]models.CatalogHit, error) {
		return searchViaHTTP(*serverURL, r)
	}
	if *serverURL == "" {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		cat, err := catalog.Open(cfg.Storage.BleveIndexPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open catalog: %v\n", err)
			os.Exit(1)
		}
		defer cat.Close()
		search = func(r searchRequest) ([]models.CatalogHit, error) {
			return searchDirect(cat, r)
		}
	}

	hits, err := search(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	res := &cli.SearchResults{Query: query, Hits: hits}
	// Auto-retry with fuzzy if no results and fuzzy not already enabled
	if len(hits) == 0 && req.fuzziness == 0 {
		req.fuzziness = 1
		if fuzzyHits, fuzzyErr := search(req); fuzzyErr == nil && len(fuzzyHits) > 0 {
			res.Hits = fuzzyHits
			res.AutoFuzzy = true
		}
	}
	if err := cli.WriteSearchResults(os.Stdout, res, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func searchDirect(cat *catalog.Catalog, r searchRequest) ([]models.CatalogHit, error) {
	return cat.Search(context.Background(), r.query, r.limit, &catalog.SearchOptions{
		NameBoost: 2.0,
		Fuzziness: r.fuzziness,
		Mode:      r.mode,
	})
}

func searchViaHTTP(serverURL string, r searchRequest) ([]models.CatalogHit, error) {
	q := url.Values{}
	q.Set("q", r.query)
	q.Set("limit", fmt.Sprint(r.limit))
	q.Set("fuzziness", fmt.Sprint(r.fuzziness))
	if r.mode != "" {
		q.Set("mode", string(r.mode))
	}
	var out cli.SearchResults
	if err := getJSON(serverURL+"/api/v1/search?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	return out.Hits, nil
}

func getJSON(target string, v interface{}) error {
	resp, err := http.Get(target)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Components holds the save history and catalog.
type Components struct {
	History *storage.SQLiteHistory
	Catalog *catalog.Catalog
}

func (c *Components) Close() {
	if c.History != nil {
		_ = c.History.Close()
	}
	if c.Catalog != nil {
		_ = c.Catalog.Close()
	}
}

func initializeComponents(cfg *config.Config) (*Components, error) {
	hist, err := storage.NewSQLiteHistory(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize history: %w", err)
	}
	cat, err := catalog.Open(cfg.Storage.BleveIndexPath)
	if err != nil {
		_ = hist.Close()
		return nil, fmt.Errorf("failed to initialize catalog: %w", err)
	}
	return &Components{History: hist, Catalog: cat}, nil
}

// modeList describes every conversion mode, one per line.
func modeList() string {
	var sb strings.Builder
	for _, m := range models.Modes() {
		fmt.Fprintf(&sb, "  %-10s %s\n", m, m.Description())
	}
	return sb.String()
}

func printUsage() {
	fmt.Printf(`tapeview - View retro computer tape and disk dumps as text

Usage:
  tapeview view [flags] <file|url>   Print the listing of a dump
  tapeview serve [flags]             Start the HTTP viewer
  tapeview watch [flags] <file>      Print the listing again whenever the file changes
  tapeview history [flags]           List saved listings
  tapeview search [flags] <query>    Search saved listings
  tapeview version                   Show version
  tapeview help                      Show this help

Viewer Flags (view, serve, watch):
  --config string    Config file path (default: /usr/local/etc/tapeview/config.yaml)
  --viewer string    mzf (Sharp MZ) or zx (Sinclair ZX)
  --mode string      Conversion mode (see Modes); unknown values select DUMP
  --charset          Use the alternate character mapping
  --debug            Enable debug logging

Modes:
%s
View Flags:
  --save             Save the listing and record it in the history
  --name string      File name for --save (default <name>.txt)
  --lines int        Print at most this many listing lines

Serve Flags:
  --url string       Fetch this URL at startup; uploads are then disabled

History and Search Flags:
  --server string    Server URL (default: http://localhost:8080). Use --server "" to open the stores directly.
  --output string    text, compact or json
  --limit int        Number of entries

Examples:
  tapeview view --mode Z80 GAME.mzf
  tapeview view --viewer zx https://example.com/tapes/pack.zip
  tapeview serve --url https://example.com/GAME.mzf
  tapeview watch --mode DUMP build/out.mzf
  tapeview search --fuzzy lodaer
`, modeList())
}
