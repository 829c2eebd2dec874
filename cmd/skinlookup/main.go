// Package main is the skin-lookup CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/p-hannemann/skin-lookup/internal/cli"
	"github.com/p-hannemann/skin-lookup/internal/config"
	"github.com/p-hannemann/skin-lookup/internal/embedding"
	"github.com/p-hannemann/skin-lookup/internal/fetch"
	"github.com/p-hannemann/skin-lookup/internal/history"
	"github.com/p-hannemann/skin-lookup/internal/imageio"
	"github.com/p-hannemann/skin-lookup/internal/match"
	"github.com/p-hannemann/skin-lookup/internal/scan"
	"github.com/p-hannemann/skin-lookup/internal/server"
	"github.com/p-hannemann/skin-lookup/internal/skin"
	"github.com/p-hannemann/skin-lookup/internal/watcher"
	"github.com/p-hannemann/skin-lookup/pkg/utils"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/skin-lookup/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// A missing file at the default path falls back to built-in defaults so the tool
// works without any setup. Returns the config and the path that was actually
// loaded ("" when defaults were used).
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
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
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
	case "search":
		runSearch()
	case "convert":
		runConvert()
	case "algorithms":
		runAlgorithms()
	case "serve":
		runServe()
	case "history":
		runHistory()
	case "version", "--version", "-v":
		fmt.Printf("skinlookup version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// printSearchUsage prints search subcommand usage and examples.
func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: skinlookup search [flags] <query-image>\n\n")
	fmt.Fprintf(fs.Output(), "The query is a local image file; use -url or -wiki to download one instead.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  skinlookup search query.png
  skinlookup search -cache ~/.minecraft/assets/skins -n 10 query.png
  skinlookup search -algorithm fast -output json query.png
  skinlookup search -weight histogram=0.9 -weight hash=0.1 -algorithm fast query.png
  skinlookup search -wiki https://wiki.hypixel.net/Minos_Hunter -save-to ./matches
`)
}

// searchArgsReorder moves any flags (and their values) that appear after the
// query path to the front of the slice so that flag.Parse() sees them. Go's
// flag package stops at the first non-flag argument, so "skinlookup search
// query.png -n 10" would otherwise leave -n unparsed.
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

// querySource picks the single query image source from the positional path and
// the -url / -wiki flags. Exactly one must be given.
func querySource(path, url, wiki string) (kind, value string, err error) {
	set := 0
	for _, v := range []string{path, url, wiki} {
		if v != "" {
			set++
		}
	}
	if set != 1 {
		return "", "", errors.New("need exactly one query source: a file argument, -url, or -wiki")
	}
	switch {
	case url != "":
		return "url", url, nil
	case wiki != "":
		return "wiki", wiki, nil
	default:
		return "file", path, nil
	}
}

// weightFlags collects repeatable -weight metric=value overrides.
type weightFlags map[match.Metric]float64

func (w weightFlags) String() string {
	parts := make([]string, 0, len(w))
	for m, v := range w {
		parts = append(parts, fmt.Sprintf("%s=%v", m, v))
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

func (w weightFlags) Set(s string) error {
	name, value, ok := strings.Cut(s, "=")
	if !ok {
		return fmt.Errorf("want metric=value, got %q", s)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fmt.Errorf("bad weight value %q", value)
	}
	w[match.Metric(strings.TrimSpace(name))] = v
	return nil
}

func runSearch() {
	searchArgs := searchArgsReorder(os.Args[2:])

	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	cacheDir := fs.String("cache", "", "skin cache directory (default from config)")
	topN := fs.Int("n", 0, "number of matches to keep, 1-20 (default from config)")
	algorithmID := fs.String("algorithm", "", "matching algorithm; see 'skinlookup algorithms' (default from config)")
	recursive := fs.Bool("recursive", true, "descend into cache subdirectories")
	workers := fs.Int("workers", 0, "scan worker count (0 = one per core)")
	outputFormat := fs.String("output", "text", "output format: text (human-readable), compact (one match per line), or json (parseable)")
	saveTo := fs.String("save-to", "", "copy the matches into this directory as numbered files")
	queryURL := fs.String("url", "", "download the query image from this URL")
	wikiURL := fs.String("wiki", "", "scrape the query image from this wiki page")
	noProgress := fs.Bool("no-progress", false, "disable the progress bar")
	overrides := weightFlags{}
	fs.Var(overrides, "weight", "override one metric weight as metric=value (repeatable; the table renormalizes)")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(searchArgs)

	queryPath := ""
	if fs.NArg() > 0 {
		queryPath = fs.Arg(0)
	}
	kind, source, err := querySource(queryPath, *queryURL, *wikiURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		printSearchUsage(fs)
		os.Exit(1)
	}

	format := cli.OutputText
	switch *outputFormat {
	case "json":
		format = cli.OutputJSON
	case "compact":
		format = cli.OutputCompact
	case "text":
		format = cli.OutputText
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text, compact, or json\n", *outputFormat)
		os.Exit(1)
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components := initializeComponents(cfg, logger)
	defer components.Close()

	algID := *algorithmID
	if algID == "" {
		algID = cfg.Search.DefaultAlgorithm
	}
	alg, err := components.Registry.Get(algID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	if len(overrides) > 0 {
		alg, err = match.Override(alg, overrides)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Bad weight override: %v\n", err)
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	query, err := loadQuery(ctx, components.Fetcher, kind, source)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load query image: %v\n", err)
		os.Exit(1)
	}

	root := *cacheDir
	if root == "" {
		root = cfg.Cache.Root
	}
	rec := cfg.Cache.RecursiveOrDefault()
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "recursive" {
			rec = *recursive
		}
	})
	n := *topN
	if n <= 0 {
		n = cfg.Search.DefaultTopN
	}
	poolSize := *workers
	if poolSize <= 0 {
		poolSize = cfg.Search.Workers
	}

	opts := scan.Options{
		Root:          root,
		Recursive:     rec,
		TopN:          n,
		Workers:       poolSize,
		ProgressEvery: cfg.Search.ProgressEvery,
	}
	var (
		barMu sync.Mutex
		bar   *progressbar.ProgressBar
	)
	if format == cli.OutputText && !*noProgress {
		opts.OnProgress = func(p scan.Progress) {
			barMu.Lock()
			defer barMu.Unlock()
			if bar == nil {
				bar = progressbar.Default(int64(p.Total), "Scanning cache")
			}
			_ = bar.Set(p.Processed)
		}
	}

	startedAt := time.Now()
	summary, err := components.Scanner.Scan(ctx, alg, query, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Scan failed: %v\n", err)
		os.Exit(1)
	}
	if bar != nil {
		if summary.Cancelled {
			_ = bar.Exit()
			fmt.Fprintln(os.Stderr)
		} else {
			_ = bar.Finish()
		}
	}

	if err := cli.WriteMatches(os.Stdout, summary, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}

	if *saveTo != "" && len(summary.Matches) > 0 {
		copied, err := copyMatches(summary.Matches, *saveTo)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Copy failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Copied %d match(es) to %s\n", copied, *saveTo)
	}

	recordScan(cfg, logger, startedAt, summary)
}

func loadQuery(ctx context.Context, fetcher *fetch.Fetcher, kind, source string) (*imageio.Image, error) {
	switch kind {
	case "url":
		return fetcher.FromURL(ctx, source)
	case "wiki":
		return fetcher.FromWikiPage(ctx, source)
	default:
		return fetcher.FromFile(source)
	}
}

// recordScan appends the finished scan to the history database. Best effort:
// the results are already on screen, so failures only warn.
func recordScan(cfg *config.Config, logger *zap.Logger, startedAt time.Time, summary *scan.Summary) {
	if cfg.Storage.HistoryPath == "" {
		return
	}
	store, err := history.Open(cfg.Storage.HistoryPath)
	if err != nil {
		logger.Warn("history open failed", zap.String("path", cfg.Storage.HistoryPath), zap.Error(err))
		return
	}
	defer store.Close()
	entry := history.FromSummary(uuid.NewString(), startedAt, summary)
	if err := store.Save(context.Background(), entry); err != nil {
		logger.Warn("history save failed", zap.Error(err))
	}
}

// matchFileName names the numbered copy of a ranked match. Extensionless cache
// files get a .png suffix; named files keep their own extension.
func matchFileName(rank int, sourcePath string) string {
	base := filepath.Base(sourcePath)
	name := fmt.Sprintf("match_%d_%s", rank, base)
	if filepath.Ext(base) == "" {
		name += ".png"
	}
	return name
}

// copyMatches copies ranked matches into dir as numbered files. Copies left
// over from a previous run (match_* names) are removed first.
func copyMatches(matches []match.Result, dir string) (int, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create output directory: %w", err)
	}
	if old, err := filepath.Glob(filepath.Join(dir, "match_*")); err == nil {
		for _, path := range old {
			_ = os.Remove(path)
		}
	}
	copied := 0
	for _, m := range matches {
		if err := copyFile(m.Path, filepath.Join(dir, matchFileName(m.Rank, m.Path))); err != nil {
			fmt.Fprintf(os.Stderr, "Copy failed for %s: %v\n", m.Path, err)
			continue
		}
		copied++
	}
	return copied, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func runConvert() {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	outPath := fs.String("o", "", "output file (default: <input>_skin.png)")
	maskPath := fs.String("mask", "", "also write the visibility mask to this file")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: skinlookup convert [flags] <render-image>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	im, err := imageio.Decode(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read image: %v\n", err)
		os.Exit(1)
	}
	tex := skin.Convert(im)

	out := *outPath
	if out == "" {
		base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		out = base + "_skin.png"
	}
	if err := imageio.SavePNG(out, tex.Pix); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write skin: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s (%d of %d pixels visible)\n", out, tex.Mask.Count(), skin.TextureSize*skin.TextureSize)

	if *maskPath != "" {
		if err := imageio.SavePNG(*maskPath, tex.Mask.Image()); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write mask: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %s\n", *maskPath)
	}
}

func runAlgorithms() {
	fs := flag.NewFlagSet("algorithms", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	components := initializeComponents(cfg, zap.NewNop())
	defer components.Close()
	infos := components.Registry.List()

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(infos); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		for _, info := range infos {
			avail := "available"
			if !info.Available {
				avail = fmt.Sprintf("unavailable (needs %s)", info.Capability)
			}
			marker := " "
			if info.ID == cfg.Search.DefaultAlgorithm {
				marker = "*"
			}
			fmt.Printf("%s %-20s %-44s %s\n", marker, info.ID, info.DisplayName, avail)
		}
		fmt.Println("\n* default algorithm")
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func runServe() {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (watcher events, per-file skips)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components := initializeComponents(cfg, logger)
	defer components.Close()

	var hist *history.Store
	if cfg.Storage.HistoryPath != "" {
		hist, err = history.Open(cfg.Storage.HistoryPath)
		if err != nil {
			logger.Fatal("Failed to open history database", zap.Error(err))
		}
		defer hist.Close()
	}

	watchOpts := []watcher.Option{}
	if debugMode {
		watchOpts = append(watchOpts, watcher.WithLogger(logger))
	}
	listing := watcher.NewListing(cfg.Cache.Root, cfg.Cache.RecursiveOrDefault(), watchOpts...)
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if err := listing.Start(watchCtx); err != nil {
		logger.Fatal("Failed to start cache watcher", zap.Error(err))
	}

	srv := server.NewServer(
		components.Registry,
		components.Scanner,
		components.Fetcher,
		hist,
		listing,
		cfg,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	listing.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runHistory() {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	limit := fs.Int("limit", 20, "number of scans to show")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Storage.HistoryPath == "" {
		fmt.Fprintln(os.Stderr, "No history database configured (storage.history_path)")
		os.Exit(1)
	}
	store, err := history.Open(cfg.Storage.HistoryPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open history database: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	entries, err := store.List(context.Background(), *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list scans: %v\n", err)
		os.Exit(1)
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(entries); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		if len(entries) == 0 {
			fmt.Println("No scans recorded.")
			return
		}
		for _, e := range entries {
			status := ""
			if e.Cancelled {
				status = "  [cancelled]"
			}
			fmt.Printf("%s  %s  %-16s %6d files %7dms%s\n",
				e.StartedAt.Format("2006-01-02 15:04:05"), e.ID, e.Algorithm, e.Processed, e.ElapsedMS, status)
			fmt.Printf("    query: %s\n", cli.Truncate(e.Query, 96))
			if len(e.Matches) > 0 {
				best := e.Matches[0]
				fmt.Printf("    best:  %s (%.4f)\n", cli.Truncate(best.Path, 96), best.Distance)
			}
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

// Components holds initialized services.
type Components struct {
	Backend  *embedding.Backend
	Registry *match.Registry
	Scanner  *scan.Scanner
	Fetcher  *fetch.Fetcher
}

func (c *Components) Close() {
	if c.Backend != nil {
		_ = c.Backend.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) *Components {
	backend := embedding.NewBackend(cfg.Embedding)
	return &Components{
		Backend:  backend,
		Registry: match.NewRegistry(backend),
		Scanner:  scan.NewScanner(logger),
		Fetcher:  fetch.NewFetcher(logger),
	}
}

func printUsage() {
	fmt.Println(`skinlookup - find the closest skins in a Minecraft skin cache

Usage:
  skinlookup search [flags] <query-image>   Scan the cache for the best matches
  skinlookup convert [flags] <render>       Reconstruct a 64x64 skin from a character render
  skinlookup algorithms [flags]             List matching algorithms and availability
  skinlookup serve [flags]                  Start the HTTP scan-job server
  skinlookup history [flags]                List recent scans
  skinlookup version                        Show version
  skinlookup help                           Show this help

Search Flags:
  -config string      Config file path (default: /usr/local/etc/skin-lookup/config.yaml)
  -cache string       Skin cache directory (default from config)
  -n int              Number of matches to keep, 1-20 (default from config)
  -algorithm string   Matching algorithm; see 'skinlookup algorithms'
  -weight m=v         Override one metric weight (repeatable; the table renormalizes)
  -recursive          Descend into cache subdirectories (default: true)
  -workers int        Scan worker count (0 = one per core)
  -output string      Output format: text, compact, or json (default: text)
  -save-to string     Copy the matches into this directory as numbered files
  -url string         Download the query image from this URL
  -wiki string        Scrape the query image from this wiki page
  -no-progress        Disable the progress bar

Serve Flags:
  -config string      Config file path
  -debug              Enable debug logging (watcher events, per-file skips)

History Flags:
  -limit int          Number of scans to show (default: 20)
  -output string      Output format: text or json (default: text)

Examples:
  skinlookup search query.png
  skinlookup search -cache ~/.minecraft/assets/skins -algorithm skin-optimized -n 10 query.png
  skinlookup search -wiki https://wiki.hypixel.net/Minos_Hunter -save-to ./matches
  skinlookup convert -o skin.png -mask mask.png render.png
  skinlookup algorithms
  skinlookup serve
  skinlookup history -limit 10`)
}
