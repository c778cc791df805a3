// glotdoc — parallel AI document translator for PDF, docx, pptx, Markdown,
// and plain text.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	slogmulti "github.com/samber/slog-multi"
	"github.com/spf13/cobra"

	"github.com/glotdoc/glotdoc/budget"
	"github.com/glotdoc/glotdoc/config"
	"github.com/glotdoc/glotdoc/docxfile"
	"github.com/glotdoc/glotdoc/document"
	"github.com/glotdoc/glotdoc/engine"
	"github.com/glotdoc/glotdoc/format"
	"github.com/glotdoc/glotdoc/i18n"
	"github.com/glotdoc/glotdoc/langmeta"
	"github.com/glotdoc/glotdoc/mdfile"
	"github.com/glotdoc/glotdoc/pdffile"
	"github.com/glotdoc/glotdoc/pptxfile"
	"github.com/glotdoc/glotdoc/provider"
	"github.com/glotdoc/glotdoc/segment"
	"github.com/glotdoc/glotdoc/server"
	"github.com/glotdoc/glotdoc/transcache"
	"github.com/glotdoc/glotdoc/txtfile"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// ANSI colors
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[0;31m"
	colorGreen  = "\033[0;32m"
	colorYellow = "\033[1;33m"
	colorBlue   = "\033[0;34m"
)

func logInfo(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorBlue+"[INFO]"+colorReset+" "+format+"\n", args...)
}

func logSuccess(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorGreen+"[OK]"+colorReset+" "+format+"\n", args...)
}

func logWarning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorYellow+"[WARN]"+colorReset+" "+format+"\n", args...)
}

func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorRed+"[ERROR]"+colorReset+" "+format+"\n", args...)
}

// ---------------------------------------------------------------------------
// Global flag
// ---------------------------------------------------------------------------

var workDir string

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "glotdoc",
		Short: "Parallel AI document translator",
		Long: `glotdoc — parallel AI document translator.

Translates whole documents while preserving their structure: PDF, Word
(.docx), PowerPoint (.pptx), Markdown, and plain text. Pages are translated
concurrently under a three-level worker budget; failed fragments keep their
source text instead of breaking the document.

Commands:
  translate   Translate a document
  serve       Run the HTTP translation service
  formats     List supported document formats
  cache       Inspect or clear the translation cache
  auth        Manage provider API keys

AI Providers:
  google   Google AI (Gemini) — API key
  openai   OpenAI or compatible endpoint — API key
  ollama   Ollama local server`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global persistent flag — inherited by all subcommands
	root.PersistentFlags().StringVar(&workDir, "dir", ".", "Working directory (config and cache location)")

	root.AddCommand(
		newTranslateCmd(),
		newServeCmd(),
		newFormatsCmd(),
		newCacheCmd(),
		newAuthCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	i18n.Init("")
	if err := newRootCmd().Execute(); err != nil {
		logError("%v", err)
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// version (display version information)
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display version, commit hash, and build date.`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("glotdoc version %s\n", version)
			fmt.Printf("  commit:    %s\n", commit)
			fmt.Printf("  built:     %s\n", date)
		},
	}
}

// ---------------------------------------------------------------------------
// Shared wiring
// ---------------------------------------------------------------------------

// buildRegistry registers every format adapter.
func buildRegistry(maxUnitChars int) *format.Registry {
	if maxUnitChars <= 0 {
		maxUnitChars = segment.DefaultMaxChars
	}
	reg := format.NewRegistry()
	reg.Register(txtfile.New(maxUnitChars))
	reg.Register(mdfile.New(maxUnitChars))
	reg.Register(docxfile.New())
	reg.Register(pptxfile.New())
	reg.Register(pdffile.New(nil))
	return reg
}

// providerFlags is the provider-related flag set shared by translate and
// serve.
type providerFlags struct {
	provider string
	model    string
	apiKey   string
	baseURL  string
	proxy    string
	timeout  time.Duration
	retries  int
}

func (pf *providerFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&pf.provider, "provider", "", "AI provider: google, openai, ollama")
	cmd.Flags().StringVar(&pf.model, "model", "", "Model name (default: provider default)")
	cmd.Flags().StringVar(&pf.apiKey, "api-key", "", "API key (or GLOTDOC_API_KEY env var)")
	cmd.Flags().StringVar(&pf.baseURL, "base-url", "", "Custom API base URL")
	cmd.Flags().StringVar(&pf.proxy, "proxy", "", "HTTP/HTTPS proxy URL")
	cmd.Flags().DurationVar(&pf.timeout, "timeout", 0, "Request timeout (0 = provider default)")
	cmd.Flags().IntVar(&pf.retries, "max-retries", 0, "Attempts per fragment (0 = default 3)")

	_ = cmd.RegisterFlagCompletionFunc("provider", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{
			"google\tGoogle AI (Gemini) — API key required",
			"openai\tOpenAI or compatible endpoint — API key required",
			"ollama\tOllama local server",
		}, cobra.ShellCompDirectiveNoFileComp
	})
}

// resolveProvider merges flags, glotdoc.yaml, and the credential store into
// a provider client.
func resolveProvider(pf providerFlags, cf *config.File) (provider.Client, error) {
	id := pf.provider
	if id == "" {
		id = cf.Provider
	}
	if id == "" {
		id = provider.IDGoogle
	}

	defs := provider.DefaultConfigs()
	cfg, ok := defs[id]
	if !ok {
		known := make([]string, 0, len(defs))
		for k := range defs {
			known = append(known, k)
		}
		sort.Strings(known)
		return nil, fmt.Errorf("unknown provider %q (valid: %s)", id, strings.Join(known, ", "))
	}

	if pf.model != "" {
		cfg.Model = pf.model
	} else if cf.Model != "" {
		cfg.Model = cf.Model
	}
	if pf.baseURL != "" {
		cfg.BaseURL = pf.baseURL
	} else if cf.BaseURL != "" {
		cfg.BaseURL = cf.BaseURL
	} else if stored := config.LoadCredentials()[id]; stored != nil && stored.BaseURL != "" {
		cfg.BaseURL = stored.BaseURL
	}
	if pf.proxy != "" {
		cfg.Proxy = pf.proxy
	} else if cf.Proxy != "" {
		cfg.Proxy = cf.Proxy
	}
	if pf.timeout > 0 {
		cfg.Timeout = pf.timeout
	}
	cfg.APIKey = config.ResolveAPIKey(pf.apiKey, id)

	if cfg.APIKey == "" && id != provider.IDOllama {
		return nil, fmt.Errorf("no API key for %s: use --api-key, GLOTDOC_API_KEY, or 'glotdoc auth login --provider %s'", id, id)
	}

	retries := pf.retries
	if retries <= 0 {
		retries = cf.Retry.MaxAttempts
	}
	return provider.NewHTTP(cfg, retries), nil
}

// resolveBudget merges worker flags over glotdoc.yaml.
func resolveBudget(global, pages, perPage int, cf *config.File) budget.Budget {
	b := budget.Budget{
		Global:          cf.Budget.Global,
		PageConcurrency: cf.Budget.Pages,
		PerPage:         cf.Budget.PerPage,
	}
	if global > 0 {
		b.Global = global
	}
	if pages > 0 {
		b.PageConcurrency = pages
	}
	if perPage > 0 {
		b.PerPage = perPage
	}
	return b
}

func cacheDir(cf *config.File) string {
	if cf.CacheDir != "" {
		return cf.CacheDir
	}
	return workDir
}

// ---------------------------------------------------------------------------
// translate (one document, CLI progress)
// ---------------------------------------------------------------------------

func newTranslateCmd() *cobra.Command {
	var (
		pf providerFlags

		targetLang string
		sourceLang string
		outPath    string

		globalWorkers int
		pageWorkers   int
		unitWorkers   int
		jobTimeout    time.Duration
		maxUnitChars  int

		noCache bool
		verbose bool
		quiet   bool
	)

	cmd := &cobra.Command{
		Use:   "translate FILE",
		Short: "Translate a document",
		Long: `Translate a document while preserving its structure.

The output keeps the input format: a .docx stays a .docx with its styles,
a Markdown file keeps its code blocks and front matter. Fragments whose
translation ultimately fails keep their source text and are reported at
the end.

Examples:
  # Translate a PDF to German with Google AI
  glotdoc translate report.pdf --to de --provider google

  # Translate slides through a local Ollama server
  glotdoc translate deck.pptx --to ja --provider ollama --model qwen2.5

  # Bound the worker pools
  glotdoc translate book.docx --to fr --workers 64 --page-workers 8`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if targetLang == "" {
				return fmt.Errorf("--to is required")
			}
			return runTranslate(translateArgs{
				input: args[0], out: outPath,
				to: targetLang, from: sourceLang,
				pf:            pf,
				globalWorkers: globalWorkers, pageWorkers: pageWorkers, unitWorkers: unitWorkers,
				jobTimeout: jobTimeout, maxUnitChars: maxUnitChars,
				noCache: noCache, verbose: verbose, quiet: quiet,
			})
		},
	}

	pf.register(cmd)

	cmd.Flags().StringVar(&targetLang, "to", "", "Target language code or name (required)")
	cmd.Flags().StringVar(&sourceLang, "from", "", "Source language (default: auto-detect)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file (default: NAME_LANG.EXT next to input)")

	cmd.Flags().IntVar(&globalWorkers, "workers", 0, "Global concurrent request cap (default 256)")
	cmd.Flags().IntVar(&pageWorkers, "page-workers", 0, "Concurrently active pages (default 16)")
	cmd.Flags().IntVar(&unitWorkers, "unit-workers", 0, "Concurrent requests per page (default 64)")
	cmd.Flags().DurationVar(&jobTimeout, "job-timeout", 0, "Whole-job timeout (0 = none)")
	cmd.Flags().IntVar(&maxUnitChars, "max-unit-chars", 0, "Fragment size budget in characters (default 4000)")

	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Skip the translation cache")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "Enable detailed logging")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress the progress line")

	_ = cmd.RegisterFlagCompletionFunc("to", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		var codes []string
		for code, meta := range langmeta.Registry {
			codes = append(codes, code+"\t"+meta.Name)
		}
		sort.Strings(codes)
		return codes, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

type translateArgs struct {
	input, out string
	to, from   string
	pf         providerFlags

	globalWorkers, pageWorkers, unitWorkers int
	jobTimeout                              time.Duration
	maxUnitChars                            int

	noCache, verbose, quiet bool
}

func runTranslate(a translateArgs) error {
	cf, err := config.Load(workDir)
	if err != nil {
		return err
	}

	client, err := resolveProvider(a.pf, cf)
	if err != nil {
		return err
	}

	var cache *transcache.Cache
	if !a.noCache {
		cache, err = transcache.Load(cacheDir(cf))
		if err != nil {
			logWarning("%v", err)
			cache = nil
		}
	}

	level := slog.LevelWarn
	if a.verbose {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	jobTimeout := a.jobTimeout
	if jobTimeout == 0 {
		jobTimeout = cf.JobTimeout()
	}

	eng := engine.New(buildRegistry(a.maxUnitChars), client, engine.Options{
		Budget:      resolveBudget(a.globalWorkers, a.pageWorkers, a.unitWorkers, cf),
		Cache:       cache,
		UnitTimeout: cf.UnitTimeout(0),
		JobTimeout:  jobTimeout,
		Logger:      logger,
	})

	out := a.out
	if out == "" {
		ext := filepath.Ext(a.input)
		out = strings.TrimSuffix(a.input, ext) + "_" + a.to + ext
	}

	langName := a.to
	if meta, ok := langmeta.Resolve(a.to); ok {
		langName = meta.Name
	}
	logInfo("%s", i18n.T("Translating %s to %s...", filepath.Base(a.input), langName))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var progress func(engine.Progress)
	if !a.quiet {
		progress = func(p engine.Progress) {
			fmt.Fprintf(os.Stderr, "\r%3.0f%%  %d/%d units  %d/%d pages",
				p.Percent(), p.DoneUnits+p.FailedUnits, p.TotalUnits, p.DonePages, p.TotalPages)
		}
	}

	handle, err := eng.Submit(ctx, engine.Request{
		InputPath:  a.input,
		OutputPath: out,
		TargetLang: a.to,
		SourceLang: a.from,
		OnProgress: progress,
	})
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		if ctx.Err() != nil {
			fmt.Fprintln(os.Stderr)
			logWarning("%s", i18n.T("Cancelling..."))
			handle.Cancel()
		}
	}()

	res, err := handle.Await(context.Background())
	if err != nil {
		return err
	}
	if !a.quiet {
		fmt.Fprintln(os.Stderr)
	}

	switch res.State {
	case document.StateCompleted:
		logSuccess("%s", i18n.T("Translation complete: %s", res.OutputPath))
		return nil
	case document.StatePartialFailure:
		logWarning("%s", i18n.T("Translation finished with errors: %s", res.OutputPath))
		logWarning("%s", i18n.N("%d unit failed, source text kept",
			"%d units failed, source text kept", len(res.FailedUnits), len(res.FailedUnits)))
		if a.verbose {
			for _, anchor := range res.FailedUnits {
				logWarning("  failed: %s", anchor)
			}
		}
		return nil
	default:
		return fmt.Errorf("%s", i18n.T("Translation aborted: %v", res.Err))
	}
}

// ---------------------------------------------------------------------------
// serve (HTTP API)
// ---------------------------------------------------------------------------

func newServeCmd() *cobra.Command {
	var (
		pf      providerFlags
		addr    string
		dataDir string

		globalWorkers int
		pageWorkers   int
		unitWorkers   int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP translation service",
		Long: `Run the HTTP translation service.

Endpoints:
  POST   /api/jobs            Submit a document (multipart: file, target_lang)
  GET    /api/jobs            List jobs
  GET    /api/jobs/{id}       Job status
  GET    /api/jobs/{id}/ws    Live progress (websocket)
  GET    /api/jobs/{id}/result  Download the translated document
  DELETE /api/jobs/{id}       Cancel a running job`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(pf, addr, dataDir, globalWorkers, pageWorkers, unitWorkers)
		},
	}

	pf.register(cmd)
	cmd.Flags().StringVar(&addr, "addr", ":8090", "Listen address")
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "Data directory (default: DIR/glotdoc-data)")
	cmd.Flags().IntVar(&globalWorkers, "workers", 0, "Global concurrent request cap (default 256)")
	cmd.Flags().IntVar(&pageWorkers, "page-workers", 0, "Concurrently active pages per job (default 16)")
	cmd.Flags().IntVar(&unitWorkers, "unit-workers", 0, "Concurrent requests per page (default 64)")

	return cmd
}

func runServe(pf providerFlags, addr, dataDir string, globalWorkers, pageWorkers, unitWorkers int) error {
	cf, err := config.Load(workDir)
	if err != nil {
		return err
	}
	client, err := resolveProvider(pf, cf)
	if err != nil {
		return err
	}

	if dataDir == "" {
		dataDir = filepath.Join(workDir, "glotdoc-data")
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", dataDir, err)
	}

	// Console gets readable text, the log file gets JSON for later digging.
	logFile, err := os.OpenFile(filepath.Join(dataDir, "glotdoc.log"),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer logFile.Close()
	logger := slog.New(slogmulti.Fanout(
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewJSONHandler(logFile, &slog.HandlerOptions{Level: slog.LevelDebug}),
	))

	cache, err := transcache.Load(cacheDir(cf))
	if err != nil {
		logger.Warn("loading translation cache", "err", err)
		cache = nil
	}

	registry := buildRegistry(0)
	eng := engine.New(registry, client, engine.Options{
		Budget:      resolveBudget(globalWorkers, pageWorkers, unitWorkers, cf),
		Cache:       cache,
		UnitTimeout: cf.UnitTimeout(0),
		JobTimeout:  cf.JobTimeout(),
		Logger:      logger,
	})

	store, err := server.NewStore(filepath.Join(dataDir, "jobs.db"))
	if err != nil {
		return err
	}
	defer store.Close()

	srv, err := server.New(eng, registry, store, dataDir, logger)
	if err != nil {
		return err
	}

	httpSrv := &http.Server{Addr: addr, Handler: srv.Router()}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpSrv.Shutdown(shutdownCtx)
	}()

	logInfo("%s", i18n.T("Listening on %s", addr))
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// ---------------------------------------------------------------------------
// formats (read-only: supported adapters)
// ---------------------------------------------------------------------------

func newFormatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List supported document formats",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(i18n.T("Supported formats:"))
			descriptions := map[format.Kind]string{
				format.KindText:     ".txt — paragraph blocks",
				format.KindMarkdown: ".md — sections, code fences kept verbatim",
				format.KindDocx:     ".docx — Word, run-level with styles preserved",
				format.KindPptx:     ".pptx — PowerPoint, one slide per page",
				format.KindPDF:      ".pdf — uncompressed content streams",
			}
			for _, k := range buildRegistry(0).Kinds() {
				fmt.Printf("  %-9s %s\n", k.String(), descriptions[k])
			}
		},
	}
}

// ---------------------------------------------------------------------------
// cache (show / clear)
// ---------------------------------------------------------------------------

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the translation cache",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Show cache statistics",
			RunE: func(cmd *cobra.Command, args []string) error {
				cf, err := config.Load(workDir)
				if err != nil {
					return err
				}
				cache, err := transcache.Load(cacheDir(cf))
				if err != nil {
					return err
				}
				logInfo("%s", i18n.T("Cache: %s", cache.Summary()))
				for _, lang := range cache.Langs() {
					name := lang
					if meta, ok := langmeta.Resolve(lang); ok {
						name = meta.Name
					}
					fmt.Printf("  %-8s %s\n", lang, name)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Drop all cached translations",
			RunE: func(cmd *cobra.Command, args []string) error {
				cf, err := config.Load(workDir)
				if err != nil {
					return err
				}
				cache, err := transcache.Load(cacheDir(cf))
				if err != nil {
					return err
				}
				cache.Clear()
				if err := cache.Save(); err != nil {
					return err
				}
				logSuccess("%s", i18n.T("Cache cleared"))
				return nil
			},
		},
	)
	return cmd
}

// ---------------------------------------------------------------------------
// auth (API key management)
// ---------------------------------------------------------------------------

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage provider API keys",
		Long: fmt.Sprintf(`Manage provider API keys.

Keys are stored in %s with 0600 permissions.`, config.AuthFilePath()),
	}

	var (
		providerID string
		apiKey     string
		baseURL    string
	)
	login := &cobra.Command{
		Use:   "login",
		Short: "Store an API key for a provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			if providerID == "" || apiKey == "" {
				return fmt.Errorf("--provider and --api-key are required")
			}
			if _, ok := provider.DefaultConfigs()[providerID]; !ok {
				return fmt.Errorf("unknown provider %q", providerID)
			}
			if err := config.SetAPIKey(providerID, apiKey); err != nil {
				return err
			}
			if baseURL != "" {
				store := config.LoadCredentials()
				store[providerID].BaseURL = baseURL
				if err := config.SaveCredentials(store); err != nil {
					return err
				}
			}
			logSuccess("%s", i18n.T("API key saved for %s", providerID))
			return nil
		},
	}
	login.Flags().StringVar(&providerID, "provider", "", "Provider ID: google, openai, ollama")
	login.Flags().StringVar(&apiKey, "api-key", "", "API key to store")
	login.Flags().StringVar(&baseURL, "base-url", "", "Custom API base URL to store")

	var logoutProvider string
	logout := &cobra.Command{
		Use:   "logout",
		Short: "Remove a stored API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			if logoutProvider == "" {
				return fmt.Errorf("--provider is required")
			}
			return config.RemoveCredential(logoutProvider)
		},
	}
	logout.Flags().StringVar(&logoutProvider, "provider", "", "Provider ID")

	list := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List stored credentials (masked)",
		Run: func(cmd *cobra.Command, args []string) {
			store := config.LoadCredentials()
			if len(store) == 0 {
				fmt.Println("no stored credentials")
				return
			}
			ids := make([]string, 0, len(store))
			for id := range store {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				line := fmt.Sprintf("%-10s %s", id, config.MaskKey(store[id].Key))
				if store[id].BaseURL != "" {
					line += "  " + store[id].BaseURL
				}
				fmt.Println(line)
			}
		},
	}

	cmd.AddCommand(login, logout, list)
	return cmd
}
