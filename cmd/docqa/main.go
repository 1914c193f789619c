// Package main is the docqa CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/docqa/internal/cli"
	"github.com/hyperjump/docqa/internal/config"
	"github.com/hyperjump/docqa/internal/embedding"
	"github.com/hyperjump/docqa/internal/indexer"
	"github.com/hyperjump/docqa/internal/keyword"
	"github.com/hyperjump/docqa/internal/llm"
	"github.com/hyperjump/docqa/internal/models"
	"github.com/hyperjump/docqa/internal/rag"
	"github.com/hyperjump/docqa/internal/search"
	"github.com/hyperjump/docqa/internal/server"
	"github.com/hyperjump/docqa/internal/vector"
	"github.com/hyperjump/docqa/internal/watcher"
	"github.com/hyperjump/docqa/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/docqa/config.yaml"

// loadConfig loads config from path after reading .env. When path is the default and a
// config.yaml exists in the current directory, that file is used instead.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	config.LoadDotEnv()
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, err := os.Stat(fallback); err == nil {
				path = fallback
			}
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
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "ask":
		runAsk()
	case "status":
		runStatus()
	case "search":
		runSearch()
	case "clear":
		runClear()
	case "watch":
		runWatch()
	case "version", "--version", "-v":
		fmt.Printf("docqa version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// commonFlags are shared by every command that can run in-process or against a server.
type commonFlags struct {
	configPath *string
	serverURL  *string
	output     *string
}

func addCommonFlags(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		configPath: fs.String("config", defaultConfigPath, "config file path (in-process mode)"),
		serverURL:  fs.String("server", "", "server URL, e.g. http://localhost:3001 (empty = run in-process)"),
		output:     fs.String("output", "text", "output format: text or json"),
	}
}

func (c commonFlags) format() cli.OutputFormat {
	f, err := cli.ParseOutputFormat(*c.output)
	if err != nil {
		fatalf("%v", err)
	}
	return f
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// setup loads config and builds in-process components. The caller must Close them.
func setup(configPath string, debug bool) (*components, *config.Config, *zap.Logger) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	debugMode := cfg.Debug || debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fatalf("Failed to create logger: %v", err)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debugMode))

	comps, err := initializeComponents(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	return comps, cfg, logger
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	comps, cfg, logger := setup(*configPath, *debug)
	defer logger.Sync()
	defer comps.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.Watch.Directory != "" {
		w := newInboxWatcher(cfg, comps.indexer, logger)
		if err := w.Start(ctx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer w.Stop()
		go ingestLatest(ctx, w, comps.indexer, logger)
	}

	srv := server.NewServer(comps.engine, comps.indexer, comps.search, &cfg.Server, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	flags := addCommonFlags(fs)
	_ = fs.Parse(argsReorder(os.Args[2:]))
	if fs.NArg() < 1 {
		fmt.Println("Usage: docqa ingest [flags] <file>")
		os.Exit(1)
	}
	path := fs.Arg(0)
	format := flags.format()
	ctx := context.Background()

	var (
		res *models.IngestResult
		err error
	)
	if *flags.serverURL != "" {
		res, err = newAPIClient(*flags.serverURL).upload(ctx, path)
	} else {
		comps, _, logger := setup(*flags.configPath, false)
		defer logger.Sync()
		defer comps.Close()
		res, err = comps.indexer.ProcessFile(ctx, path)
	}
	if err != nil {
		fatalf("Ingestion failed: %v", err)
	}
	if err := cli.WriteIngestResult(os.Stdout, res, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	flags := addCommonFlags(fs)
	_ = fs.Parse(argsReorder(os.Args[2:]))
	question := buildQuery(fs.Args())
	if question == "" {
		fmt.Println("Usage: docqa ask [flags] <question>")
		os.Exit(1)
	}
	format := flags.format()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *flags.serverURL != "" {
		askViaHTTP(ctx, newAPIClient(*flags.serverURL), question, format)
		return
	}

	comps, _, logger := setup(*flags.configPath, false)
	defer logger.Sync()
	defer comps.Close()

	if format == cli.OutputJSON {
		resp, err := comps.engine.Ask(ctx, question)
		if err != nil {
			exitAskError(err)
		}
		if err := cli.WriteAnswer(os.Stdout, resp, format); err != nil {
			fatalf("Output failed: %v", err)
		}
		return
	}

	ans, err := comps.engine.AskQuestion(ctx, question)
	if err != nil {
		exitAskError(err)
	}
	defer ans.Tokens.Close()
	for {
		fragment, ok := ans.Tokens.Next()
		if !ok {
			break
		}
		fmt.Print(fragment)
	}
	fmt.Println()
	switch {
	case ans.Tokens.Cancelled():
		fatalf("Cancelled.")
	case ans.Tokens.Err() != nil:
		fatalf("Answer failed: %v", ans.Tokens.Err())
	}
	cli.WriteSources(os.Stdout, ans.SourceDocuments())
}

func askViaHTTP(ctx context.Context, client *apiClient, question string, format cli.OutputFormat) {
	if format == cli.OutputJSON {
		resp, err := client.ask(ctx, question)
		if err != nil {
			exitAskError(err)
		}
		if err := cli.WriteAnswer(os.Stdout, resp, format); err != nil {
			fatalf("Output failed: %v", err)
		}
		return
	}
	sources, err := client.askStream(ctx, question, func(fragment string) { fmt.Print(fragment) })
	fmt.Println()
	if err != nil {
		exitAskError(err)
	}
	cli.WriteSources(os.Stdout, sources.SourceDocuments)
}

func exitAskError(err error) {
	switch {
	case errors.Is(err, rag.ErrCancelled), errors.Is(err, context.Canceled):
		fatalf("Cancelled.")
	case errors.Is(err, rag.ErrEmptyKnowledgeBase):
		fatalf("No document loaded. Run `docqa ingest <file>` first.")
	default:
		fatalf("Ask failed: %v", err)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	flags := addCommonFlags(fs)
	_ = fs.Parse(os.Args[2:])
	format := flags.format()

	var status models.Status
	if *flags.serverURL != "" {
		s, err := newAPIClient(*flags.serverURL).status(context.Background())
		if err != nil {
			fatalf("Status failed: %v", err)
		}
		status = *s
	} else {
		comps, _, logger := setup(*flags.configPath, false)
		defer logger.Sync()
		defer comps.Close()
		status = comps.engine.Status()
	}
	if err := cli.WriteStatus(os.Stdout, status, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	flags := addCommonFlags(fs)
	limit := fs.Int("limit", 10, "number of passages")
	fuzzy := fs.Bool("fuzzy", false, "enable fuzzy matching for typo tolerance")
	semantic := fs.Bool("semantic", false, "fuse keyword hits with embedding similarity")
	_ = fs.Parse(argsReorder(os.Args[2:]))
	query := buildQuery(fs.Args())
	if query == "" {
		fmt.Println("Usage: docqa search [flags] <query>")
		os.Exit(1)
	}
	format := flags.format()
	ctx := context.Background()

	var run func(fuzzy bool) (*models.PassageResult, error)
	if *flags.serverURL != "" {
		client := newAPIClient(*flags.serverURL)
		run = func(f bool) (*models.PassageResult, error) {
			return client.search(ctx, query, *limit, f, *semantic)
		}
	} else {
		comps, _, logger := setup(*flags.configPath, false)
		defer logger.Sync()
		defer comps.Close()
		run = func(f bool) (*models.PassageResult, error) {
			return comps.search.Search(ctx, models.PassageQuery{Query: query, Limit: *limit},
				search.Options{Fuzzy: f, Semantic: *semantic})
		}
	}

	res, err := run(*fuzzy)
	if err != nil {
		fatalf("Search failed: %v", err)
	}
	// Retry with typo tolerance before giving up.
	if !*fuzzy && len(res.Passages) == 0 {
		if fuzzyRes, err := run(true); err == nil && len(fuzzyRes.Passages) > 0 {
			res = fuzzyRes
		}
	}
	if err := cli.WritePassages(os.Stdout, res, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runClear() {
	fs := flag.NewFlagSet("clear", flag.ExitOnError)
	flags := addCommonFlags(fs)
	_ = fs.Parse(os.Args[2:])
	ctx := context.Background()

	if *flags.serverURL != "" {
		if err := newAPIClient(*flags.serverURL).clear(ctx); err != nil {
			fatalf("Clear failed: %v", err)
		}
	} else {
		comps, _, logger := setup(*flags.configPath, false)
		defer logger.Sync()
		defer comps.Close()
		if err := comps.indexer.Clear(ctx); err != nil {
			fatalf("Clear failed: %v", err)
		}
	}
	fmt.Println("Knowledge base cleared")
}

// runWatch ingests inbox files in the foreground until interrupted.
func runWatch() {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	dir := fs.String("dir", "", "inbox directory (overrides watch.directory)")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	comps, cfg, logger := setup(*configPath, *debug)
	defer logger.Sync()
	defer comps.Close()
	if *dir != "" {
		cfg.Watch.Directory = *dir
	}
	if cfg.Watch.Directory == "" {
		fatalf("No inbox directory: set watch.directory or pass --dir")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	w := newInboxWatcher(cfg, comps.indexer, logger)
	if err := w.Start(ctx); err != nil {
		fatalf("Failed to start watcher: %v", err)
	}
	defer w.Stop()
	ingestLatest(ctx, w, comps.indexer, logger)

	fmt.Printf("Watching %s (Ctrl-C to stop)\n", w.Root())
	<-ctx.Done()
}

func newInboxWatcher(cfg *config.Config, idx *indexer.Indexer, logger *zap.Logger) *watcher.Watcher {
	return watcher.NewWatcher(cfg.Watch.Directory, cfg.Watch.Patterns, func(path string) {
		ingestPath(context.Background(), idx, path, logger)
	}, watcher.WithLogger(logger))
}

// ingestLatest loads the newest inbox file present at startup. An unchanged file is skipped.
func ingestLatest(ctx context.Context, w *watcher.Watcher, idx *indexer.Indexer, logger *zap.Logger) {
	path, err := w.Latest()
	if err != nil {
		if !errors.Is(err, watcher.ErrNoMatch) {
			logger.Warn("Failed to scan inbox", zap.Error(err))
		}
		return
	}
	ingestPath(ctx, idx, path, logger)
}

func ingestPath(ctx context.Context, idx *indexer.Indexer, path string, logger *zap.Logger) {
	res, err := idx.ProcessFile(ctx, path)
	if err != nil {
		logger.Warn("Inbox ingestion failed", zap.String("path", path), zap.Error(err))
		return
	}
	if res.Skipped {
		logger.Debug("Inbox file unchanged", zap.String("path", path))
		return
	}
	logger.Info("Inbox file ingested",
		zap.String("path", path),
		zap.Int("pages", res.PageCount),
		zap.Int("chunks", res.ChunkCount))
}

// buildQuery joins all positional args with spaces so multi-word input works the same with or
// without shell quoting.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// argsReorder moves any flags (and their values) that appear after the positional arguments
// to the front so that flag.Parse() sees them. Go's flag package stops at the first non-flag
// argument, so "docqa ask what is this --server http://x" would otherwise leave --server unparsed.
func argsReorder(args []string) []string {
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

// components holds initialized services.
type components struct {
	store    *vector.Store
	embedder embedding.Embedder
	model    llm.LanguageModel
	keywords *keyword.BleveIndex
	indexer  *indexer.Indexer
	engine   *rag.Engine
	search   *search.Engine
}

func (c *components) Close() {
	if c.embedder != nil {
		_ = c.embedder.Close()
	}
	if closer, ok := c.model.(io.Closer); ok {
		_ = closer.Close()
	}
	if c.keywords != nil {
		_ = c.keywords.Close()
	}
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*components, error) {
	embedder, err := embedding.New(cfg.Embedding, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	model, err := llm.New(cfg.LLM)
	if err != nil {
		_ = embedder.Close()
		return nil, fmt.Errorf("failed to initialize language model: %w", err)
	}

	store := vector.NewStore(cfg.Storage.SnapshotPath, vector.WithLogger(logger))
	store.Initialize()

	keywords, err := keyword.NewBleveIndex(logger)
	if err != nil {
		_ = embedder.Close()
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}

	idx := indexer.NewIndexer(store, embedder,
		indexer.WithLogger(logger),
		indexer.WithChunker(indexer.NewChunker(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)),
		indexer.WithKeywordIndex(keywords),
	)
	idx.SyncKeywords(ctx)

	engine := rag.NewEngine(store, embedder, model,
		rag.WithLogger(logger),
		rag.WithTopK(cfg.Query.TopK),
	)

	searcher := search.NewEngine(store, embedder, keywords,
		search.WithLogger(logger),
		search.WithWeights(cfg.Query.KeywordWeight, cfg.Query.SemanticWeight),
	)

	return &components{
		store:    store,
		embedder: embedder,
		model:    model,
		keywords: keywords,
		indexer:  idx,
		engine:   engine,
		search:   searcher,
	}, nil
}

func printUsage() {
	fmt.Println(`docqa - Ask questions about a document

Usage:
  docqa server [flags]            Start the HTTP server
  docqa ingest [flags] <file>     Load a document, replacing the current one
  docqa ask [flags] <question>    Ask a question (include "quiz" for a quiz)
  docqa status [flags]            Show the loaded document
  docqa search [flags] <query>    Keyword search over the loaded document
  docqa clear [flags]             Remove the loaded document
  docqa watch [flags]             Ingest files dropped into the inbox directory
  docqa version                   Show version
  docqa help                      Show this help

Common Flags (ingest, ask, status, search, clear):
  --config string    Config file path (default: /usr/local/etc/docqa/config.yaml, or ./config.yaml)
  --server string    Server URL. When set the command talks to a running server; otherwise it runs in-process.
  --output string    Output format: text or json (default: text)

Server Flags:
  --config string    Config file path
  --debug            Enable debug logging

Search Flags:
  --limit int        Number of passages (default: 10)
  --fuzzy            Enable typo tolerance (retried automatically when nothing matches)
  --semantic         Fuse keyword hits with embedding similarity

Watch Flags:
  --dir string       Inbox directory (default: watch.directory)
  --debug            Enable debug logging

Examples:
  docqa server
  docqa ingest lecture-notes.pdf
  docqa ask what is the main argument of chapter 2
  docqa ask make a quiz about photosynthesis
  docqa ask --server http://localhost:3001 "summarize the introduction"
  docqa search --output json mitochondria
  docqa status --server http://localhost:3001
  docqa watch --dir ~/inbox`)
}
