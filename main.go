package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/lotas/filler/internal/applog"
	"github.com/lotas/filler/internal/cache"
	"github.com/lotas/filler/internal/config"
	"github.com/lotas/filler/internal/export"
	"github.com/lotas/filler/internal/pipeline"
	"github.com/lotas/filler/internal/retry"
	"github.com/lotas/filler/internal/server"
	"github.com/lotas/filler/internal/tui"
	"github.com/lotas/filler/internal/types"
	"github.com/lotas/filler/internal/wiki"
	"github.com/lotas/filler/internal/workspace"
	"github.com/robfig/cron/v3"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "fetch":
			runFetch(os.Args[2:])
			return
		case "serve":
			runServe(os.Args[2:])
			return
		case "cache":
			runCache(os.Args[2:])
			return
		case "help", "--help", "-h":
			printHelp()
			return
		}
	}

	fs := flag.NewFlagSet("filler", flag.ExitOnError)
	file := fs.String("file", "", "Topics file to open on start")
	lang := fs.String("lang", "", "Wikipedia language code (env: FILLER_LANG, default: en)")
	noCache := fs.Bool("no-cache", false, "Bypass the local lookup cache")
	fs.Parse(reorderArgs(os.Args[1:]))

	path := *file
	if path == "" && fs.NArg() > 0 {
		path = fs.Arg(0)
	}

	cfg := loadConfig(*lang)
	initLog()
	defer applog.Close()

	src, closeSrc := buildSource(cfg, *noCache)
	defer closeSrc()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	model := tui.NewModel(ctx, src, path, cfg.Lang)
	p := tea.NewProgram(model, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Print(`filler - fill a topics file with encyclopedia summaries

Usage:
  filler [topics.txt]                                  Start the TUI (default)
    --file <path>          Topics file to open on start
    --lang <code>          Wikipedia language (default: en)
    --no-cache             Bypass the local lookup cache

  filler fetch --in topics.txt                         Fetch summaries and write them out
    --out <path>           Output file, - for stdout (default: out.txt next to input)
    --format <f>           text, markdown or json (default: text)
    --skip <a,b>           Topics to leave without a summary
    --schedule "<cron>"    Re-run on a cron schedule until interrupted
    --lang <code>          Wikipedia language
    --no-cache             Bypass the local lookup cache

  filler serve                                         Serve the browser page
    --port <n>             Port (default: 19292)
    --lang <code>          Wikipedia language

  filler cache [stats|list|clear]                      Inspect or clear the lookup cache
    --lang <code>          Language to act on
    --limit <n>            Rows for list (default: 50)

Environment:
  FILLER_CONFIG          Config file (default: ~/.config/filler/config.yaml)
  FILLER_LANG            Default language (overridden by --lang flag)
  FILLER_CACHE_DB        Cache database (default: ~/.local/share/filler/cache.db)
  FILLER_LOG_DIR         Log directory (default: ~/.local/share/filler)
`)
}

// reorderArgs moves flag arguments before positional arguments so that
// flag.Parse handles them correctly (it stops at the first non-flag arg).
func reorderArgs(args []string) []string {
	var flags, positional []string
	for i := 0; i < len(args); i++ {
		if strings.HasPrefix(args[i], "-") && args[i] != "-" {
			flags = append(flags, args[i])
			if !strings.Contains(args[i], "=") && !isBoolFlag(args[i]) &&
				i+1 < len(args) && (!strings.HasPrefix(args[i+1], "-") || args[i+1] == "-") {
				flags = append(flags, args[i+1])
				i++
			}
		} else {
			positional = append(positional, args[i])
		}
	}
	return append(flags, positional...)
}

func isBoolFlag(arg string) bool {
	name := strings.TrimLeft(arg, "-")
	return name == "no-cache"
}

// loadConfig reads the config file and applies the --lang flag on top.
func loadConfig(langFlag string) *config.Config {
	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if langFlag != "" {
		cfg.Lang = langFlag
		if err := config.Validate(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	return cfg
}

func initLog() {
	if err := applog.Init(applog.DefaultDir()); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging disabled: %v\n", err)
	}
}

func openCache(cfg *config.Config) (*cache.Cache, error) {
	path := cfg.Cache.Path
	if path == "" {
		var err error
		if path, err = cache.DefaultPath(); err != nil {
			return nil, err
		}
	}
	return cache.Open(path, cfg.Lang, cfg.Cache.MaxAge())
}

// buildSource returns the wiki client, wrapped in the cache unless it is
// disabled or cannot be opened.
func buildSource(cfg *config.Config, noCache bool) (pipeline.Source, func()) {
	client := wiki.New(cfg.Lang)
	client.SearchLimit = cfg.SearchLimit
	if cfg.UserAgent != "" {
		client.UserAgent = cfg.UserAgent
	}
	client.Retry = retry.Config{MaxRetries: *cfg.Retry.MaxRetries, BaseDelay: cfg.Retry.BaseDelay}

	if noCache || !cfg.Cache.On() {
		return client, func() {}
	}
	c, err := openCache(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: cache disabled: %v\n", err)
		applog.Error("cache.open", err)
		return client, func() {}
	}
	return &cache.Source{Upstream: client, Cache: c}, func() { c.Close() }
}

type fetchOptions struct {
	in     string
	out    string
	format export.Format
	skip   []string
}

func runFetch(args []string) {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	in := fs.String("in", "", "Topics file")
	out := fs.String("out", "", "Output file, - for stdout (default: out.txt next to input)")
	format := fs.String("format", "text", "Output format: text, markdown, json")
	skip := fs.String("skip", "", "Comma-separated topics to leave without a summary")
	schedule := fs.String("schedule", "", "Cron expression; re-run until interrupted")
	lang := fs.String("lang", "", "Wikipedia language code")
	noCache := fs.Bool("no-cache", false, "Bypass the local lookup cache")
	fs.Parse(reorderArgs(args))

	opts := fetchOptions{in: *in, out: *out}
	if opts.in == "" && fs.NArg() > 0 {
		opts.in = fs.Arg(0)
	}
	if opts.in == "" {
		fmt.Fprintln(os.Stderr, "Error: --in is required")
		os.Exit(1)
	}
	if opts.out == "" {
		opts.out = tui.DefaultOutPath(opts.in)
	}
	f, err := export.ParseFormat(*format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	opts.format = f
	for _, s := range strings.Split(*skip, ",") {
		if s = strings.TrimSpace(s); s != "" {
			opts.skip = append(opts.skip, s)
		}
	}

	cfg := loadConfig(*lang)
	initLog()
	defer applog.Close()

	src, closeSrc := buildSource(cfg, *noCache)
	defer closeSrc()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *schedule == "" {
		if err := fetchOnce(ctx, src, opts); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := fetchOnce(ctx, src, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}

	c, err := newScheduler(*schedule, func() {
		applog.Info("fetch.scheduled", "in", opts.in)
		if err := fetchOnce(ctx, src, opts); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid schedule %q: %v\n", *schedule, err)
		os.Exit(1)
	}
	c.Start()
	fmt.Fprintf(os.Stderr, "Scheduled with cron expression: %s\n", *schedule)

	<-ctx.Done()
	<-c.Stop().Done()
	fmt.Fprintln(os.Stderr, "Shutdown complete")
}

// newScheduler runs job on the cron schedule. A tick that fires while the
// previous pass is still going is skipped, so passes never overlap.
func newScheduler(schedule string, job func()) (*cron.Cron, error) {
	logger := cron.PrintfLogger(log.New(os.Stderr, "cron: ", log.LstdFlags))
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(logger)))
	if _, err := c.AddFunc(schedule, job); err != nil {
		return nil, err
	}
	return c, nil
}

// fetchOnce loads the topics file, runs a full pass and writes the result.
// Nothing is written when any active topic is left without a summary.
func fetchOnce(ctx context.Context, src pipeline.Source, opts fetchOptions) error {
	data, err := os.ReadFile(opts.in)
	if err != nil {
		return fmt.Errorf("read topics: %w", err)
	}

	ws := workspace.New()
	if err := ws.Load(data); err != nil {
		return fmt.Errorf("read topics %s: %w", opts.in, err)
	}
	topics := ws.Topics()
	for _, s := range opts.skip {
		for i, t := range topics {
			if strings.EqualFold(t, s) && ws.IsActive(i) {
				ws.ToggleActive(i)
			}
		}
	}

	req, err := ws.BeginRun()
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Fetching %d of %d topics...\n", ws.Stats().Active, len(topics))

	results := pipeline.Collect(ctx, src, req)
	for n, res := range results {
		ws.Apply(res)
		printProgress(n+1, len(results), res)
	}
	ws.EndRun(req.Gen)

	st := ws.Stats()
	text, err := ws.Render(opts.format, filepath.Base(opts.in))
	if err != nil {
		if errors.Is(err, export.ErrAlignment) && st.Failed > 0 {
			return fmt.Errorf("%d topics failed, not writing %s: %w", st.Failed, opts.out, err)
		}
		return fmt.Errorf("not writing %s: %w", opts.out, err)
	}

	if opts.out == "-" {
		fmt.Print(text)
	} else if err := os.WriteFile(opts.out, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Done: %d ready, %d not found, %d skipped\n", st.Ready, st.Empty, st.Topics-st.Active-st.Empty)
	if opts.out != "-" {
		fmt.Fprintf(os.Stderr, "Wrote %s\n", opts.out)
	}
	return nil
}

func printProgress(n, total int, res types.Result) {
	switch res.Outcome {
	case types.OutcomeReady:
		if res.Title != res.Topic {
			fmt.Fprintf(os.Stderr, "  [%d/%d] %s -> %s\n", n, total, res.Topic, res.Title)
		} else {
			fmt.Fprintf(os.Stderr, "  [%d/%d] %s\n", n, total, res.Topic)
		}
	case types.OutcomeEmpty:
		fmt.Fprintf(os.Stderr, "  [%d/%d] %s: no article found, skipped\n", n, total, res.Topic)
	default:
		fmt.Fprintf(os.Stderr, "  [%d/%d] %s: %v\n", n, total, res.Topic, res.Err)
	}
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	port := fs.Int("port", 0, "Port to listen on (default: 19292)")
	lang := fs.String("lang", "", "Wikipedia language code")
	noCache := fs.Bool("no-cache", false, "Bypass the local lookup cache")
	fs.Parse(args)

	cfg := loadConfig(*lang)
	if *port == 0 {
		*port = cfg.Serve.Port
	}
	initLog()
	defer applog.Close()

	src, closeSrc := buildSource(cfg, *noCache)
	defer closeSrc()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(*port)
	go server.NewSession(srv.Messages(), srv, src).Run(ctx)

	fmt.Fprintf(os.Stderr, "Serving on http://127.0.0.1:%d\n", srv.Port())
	if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runCache(args []string) {
	action := "stats"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		action = args[0]
		args = args[1:]
	}

	fs := flag.NewFlagSet("cache", flag.ExitOnError)
	lang := fs.String("lang", "", "Language to act on")
	limit := fs.Int("limit", 50, "Rows to list")
	fs.Parse(args)

	cfg := loadConfig(*lang)
	c, err := openCache(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer c.Close()

	switch action {
	case "stats":
		st, err := c.Stats()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Language:  %s\n", cfg.Lang)
		fmt.Printf("Searches:  %d\n", st.Searches)
		fmt.Printf("Summaries: %d (%d bytes, %d stored)\n", st.Summaries, st.Size, st.Bytes)

	case "list":
		items, err := c.List(*limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if len(items) == 0 {
			fmt.Println("No cached summaries.")
			return
		}
		fmt.Printf("%-20s %8s  %s\n", "FETCHED", "SIZE", "TITLE")
		for _, it := range items {
			fmt.Printf("%-20s %8d  %s\n", it.FetchedAt.Format("2006-01-02 15:04"), it.Size, it.Title)
		}

	case "clear":
		n, err := c.Clear()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Removed %d cached entries for %s.\n", n, cfg.Lang)

	default:
		fmt.Fprintf(os.Stderr, "Unknown cache action %q (want stats, list or clear)\n", action)
		os.Exit(1)
	}
}
