// Package main is the linematch CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
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

	"github.com/procurehub/linematch/internal/alias"
	"github.com/procurehub/linematch/internal/catalog"
	"github.com/procurehub/linematch/internal/config"
	"github.com/procurehub/linematch/internal/learned"
	"github.com/procurehub/linematch/internal/ledger"
	"github.com/procurehub/linematch/internal/match"
	"github.com/procurehub/linematch/internal/models"
	"github.com/procurehub/linematch/internal/normalize"
	"github.com/procurehub/linematch/internal/semantic"
	"github.com/procurehub/linematch/internal/server"
	"github.com/procurehub/linematch/internal/storage"
	"github.com/procurehub/linematch/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/linematch/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used, so that "linematch server" from the project dir picks up the
// project's config. Returns the config and the path actually loaded.
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
	case "match":
		runMatch()
	case "decide":
		runDecide()
	case "catalog":
		runCatalog()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("linematch version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (per-query signals, decision writes, etc.)")
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

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	if err := components.Catalog.RebuildAll(context.Background()); err != nil {
		logger.Fatal("Failed to rebuild shortlist index", zap.Error(err))
	}

	stopWatch := make(chan struct{})
	defer close(stopWatch)
	if cfg.Synonyms.Path != "" {
		if err := components.Synonyms.Watch(cfg.Synonyms.Path, stopWatch); err != nil {
			logger.Warn("synonym watch failed", zap.String("path", cfg.Synonyms.Path), zap.Error(err))
		}
	}

	srv := server.NewServer(
		components.Engine,
		components.Ledger,
		components.Catalog,
		components.Storage,
		cfg,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
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

// buildQueryText joins all positional args with spaces so multi-word line
// item text works the same with or without shell quoting.
func buildQueryText(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func runMatch() {
	fs := flag.NewFlagSet("match", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use direct storage when server is not running)")
	tenant := fs.String("tenant", "", "tenant ID (required)")
	limit := fs.Int("limit", 10, "number of candidates")
	threshold := fs.Float64("threshold", 0, "minimum final score to include a candidate")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if *tenant == "" || fs.NArg() < 1 {
		fmt.Println("Usage: linematch match --tenant <tenant> [flags] <line item text>")
		os.Exit(1)
	}
	queryStr := buildQueryText(fs.Args())
	query := &models.MatchQuery{Query: queryStr, Limit: *limit, Threshold: *threshold}

	var response *models.MatchResponse
	if *serverURL != "" {
		// Use the HTTP API when the server is running (avoids an SQLite
		// lock conflict with the server process).
		res, err := matchViaHTTP(*serverURL, *tenant, query)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Match failed: %v\n", err)
			os.Exit(1)
		}
		response = res
	} else {
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

		components, err := initializeComponents(cfg, logger)
		if err != nil {
			logger.Fatal("Failed to initialize", zap.Error(err))
		}
		defer components.Close()
		if err := components.Catalog.RebuildAll(context.Background()); err != nil {
			logger.Fatal("Failed to rebuild shortlist index", zap.Error(err))
		}

		response, err = components.Engine.Match(context.Background(), *tenant, query)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Match failed: %v\n", err)
			os.Exit(1)
		}
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(response); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		if response.SemanticDegraded {
			fmt.Println("# semantic signal unavailable; scores exclude it")
		}
		if len(response.Results) == 0 {
			fmt.Println("No candidates above threshold.")
			return
		}
		for _, res := range response.Results {
			fmt.Printf("%2d. %-24s %-40s %.4f\n", res.Rank, res.EntryID, res.Name, res.FinalScore)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func matchViaHTTP(serverURL, tenant string, query *models.MatchQuery) (*models.MatchResponse, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/"+tenant+"/match", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var response models.MatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

func runDecide() {
	fs := flag.NewFlagSet("decide", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use direct storage)")
	tenant := fs.String("tenant", "", "tenant ID (required)")
	lineItem := fs.String("line-item", "", "line item ID (required)")
	status := fs.String("status", "", "decision status: pending, approved, or rejected (required)")
	entryID := fs.String("entry", "", "catalog entry ID (required for approved)")
	queryText := fs.String("query", "", "original line item text, used for training feedback")
	reviewer := fs.String("reviewer", "", "reviewer identity")
	_ = fs.Parse(os.Args[2:])

	if *tenant == "" || *lineItem == "" || *status == "" {
		fmt.Println("Usage: linematch decide --tenant <tenant> --line-item <id> --status <status> [flags]")
		os.Exit(1)
	}

	input := &models.DecisionInput{
		LineItemID: *lineItem,
		Status:     models.DecisionStatus(*status),
		EntryID:    *entryID,
		QueryText:  *queryText,
		Reviewer:   *reviewer,
	}

	var decision *models.MatchDecision
	if *serverURL != "" {
		res, err := decideViaHTTP(*serverURL, *tenant, input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Decision failed: %v\n", err)
			os.Exit(1)
		}
		decision = res
	} else {
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

		components, err := initializeComponents(cfg, logger)
		if err != nil {
			logger.Fatal("Failed to initialize", zap.Error(err))
		}
		defer components.Close()

		decision, err = components.Ledger.RecordDecision(context.Background(), *tenant, input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Decision failed: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Printf("Decision recorded: line_item=%s status=%s", decision.LineItemID, decision.Status)
	if decision.EntryID != nil {
		fmt.Printf(" entry=%s", *decision.EntryID)
	}
	fmt.Println()
}

func decideViaHTTP(serverURL, tenant string, input *models.DecisionInput) (*models.MatchDecision, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/"+tenant+"/decisions", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var decision models.MatchDecision
	if err := json.NewDecoder(resp.Body).Decode(&decision); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &decision, nil
}

func runCatalog() {
	fs := flag.NewFlagSet("catalog", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use direct storage)")
	tenant := fs.String("tenant", "", "tenant ID (required)")
	_ = fs.Parse(os.Args[2:])

	if *tenant == "" || fs.NArg() < 1 {
		fmt.Println("Usage: linematch catalog --tenant <tenant> [flags] <entries.json>")
		fmt.Println("  entries.json holds {\"entries\": [{\"id\": ..., \"name\": ..., \"sku\": ..., \"aliases\": [...]}]}")
		os.Exit(1)
	}

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read entries file: %v\n", err)
		os.Exit(1)
	}
	var payload struct {
		Entries []*models.CatalogEntryInput `json:"entries"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse entries file: %v\n", err)
		os.Exit(1)
	}
	if len(payload.Entries) == 0 {
		fmt.Fprintln(os.Stderr, "Entries file contains no entries")
		os.Exit(1)
	}

	if *serverURL != "" {
		resp, err := http.Post(*serverURL+"/api/v1/"+*tenant+"/catalog", "application/json", bytes.NewReader(data))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			b, _ := io.ReadAll(resp.Body)
			fmt.Fprintf(os.Stderr, "Upsert failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		fmt.Printf("Upserted %d entries for tenant %s\n", len(payload.Entries), *tenant)
		return
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

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	n, err := components.Catalog.PutEntries(context.Background(), *tenant, payload.Entries)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Upsert failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Upserted %d entries for tenant %s\n", n, *tenant)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use direct storage)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status map[string]interface{}
	if *serverURL != "" {
		resp, err := http.Get(*serverURL + "/status")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Fprintf(os.Stderr, "Server returned %d: %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
			fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
			os.Exit(1)
		}
	} else {
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

		components, err := initializeComponents(cfg, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
			os.Exit(1)
		}
		defer components.Close()

		ctx := context.Background()
		tenants, err := components.Storage.ListTenants(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "List tenants failed: %v\n", err)
			os.Exit(1)
		}
		perTenant := make(map[string]interface{}, len(tenants))
		for _, tenant := range tenants {
			entries, _ := components.Storage.CountEntries(ctx, tenant)
			decisions, _ := components.Storage.CountDecisions(ctx, tenant)
			training, _ := components.Storage.CountTrainingRecords(ctx, tenant)
			perTenant[tenant] = map[string]int64{
				"catalog_entries":  entries,
				"decisions":        decisions,
				"training_records": training,
			}
		}
		status = map[string]interface{}{"tenants": perTenant}
		if diskBytes, err := storage.DiskUsageBytes(cfg.Storage.DatabasePath); err == nil {
			status["disk_usage_bytes"] = diskBytes
		}
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		out, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(out))
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

// Components holds initialized services.
type Components struct {
	Storage  storage.Storage
	Synonyms *normalize.SynonymTable
	Embedder semantic.Embedder
	Catalog  *catalog.Service
	Engine   *match.Engine
	Ledger   *ledger.Ledger
	Index    *catalog.ShortlistIndex
}

func (c *Components) Close() {
	if c.Index != nil {
		_ = c.Index.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	synonyms := normalize.NewSynonymTable(nil).WithLogger(logger)
	if cfg.Synonyms.Path != "" {
		if err := synonyms.LoadFile(cfg.Synonyms.Path); err != nil {
			logger.Warn("synonym file load failed, using built-ins",
				zap.String("path", cfg.Synonyms.Path), zap.Error(err))
		}
	}
	normalizer := normalize.NewNormalizerWithSynonyms(synonyms)

	var embedder semantic.Embedder
	if cfg.Embedding.Endpoint != "" {
		timeout := time.Duration(cfg.Embedding.TimeoutMS) * time.Millisecond
		var inner semantic.Embedder = semantic.NewHTTPEmbedder(cfg.Embedding.Endpoint, cfg.Embedding.Dimensions, timeout)
		embedder = semantic.NewCachedEmbedder(inner, cfg.Embedding.CacheSize)
	}

	index := catalog.NewShortlistIndex()
	catalogSvc := catalog.NewService(store, index, normalizer, logger)
	aliases := alias.NewResolver(store)
	adjuster := learned.NewAdjuster(store, cfg.Matching.Adjuster)

	engine := match.NewEngine(
		catalogSvc,
		aliases,
		adjuster,
		embedder,
		normalizer,
		match.Options{
			TopKCandidates: cfg.Matching.TopKCandidates,
			EmbedTimeout:   time.Duration(cfg.Embedding.TimeoutMS) * time.Millisecond,
			Weights:        cfg.Matching.Weights,
		},
		logger,
	)
	ldg := ledger.NewLedger(store, normalizer, logger)

	return &Components{
		Storage:  store,
		Synonyms: synonyms,
		Embedder: embedder,
		Catalog:  catalogSvc,
		Engine:   engine,
		Ledger:   ldg,
		Index:    index,
	}, nil
}

func printUsage() {
	fmt.Println(`linematch - Tenant-scoped line item to catalog matching engine

Usage:
  linematch server [flags]                 Start the HTTP server
  linematch match [flags] <text>           Score line item text against a tenant catalog
  linematch decide [flags]                 Record a match decision for a line item
  linematch catalog [flags] <entries.json> Upsert catalog entries for a tenant
  linematch status [flags]                 Show per-tenant storage counts
  linematch version                        Show version
  linematch help                           Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/linematch/config.yaml)
  --debug            Enable debug logging (per-query signals, decision writes, etc.)

Match Flags:
  --tenant string      Tenant ID (required)
  --server string      Server URL (default: http://localhost:8080). Use empty (--server "") for direct storage.
  --limit int          Number of candidates (default: 10)
  --threshold float    Minimum final score (default: 0)
  --output string      Output format: text or json (default: text)

Decide Flags:
  --tenant string      Tenant ID (required)
  --line-item string   Line item ID (required)
  --status string      pending, approved, or rejected (required)
  --entry string       Catalog entry ID (required for approved)
  --query string       Original line item text, used for training feedback
  --reviewer string    Reviewer identity

Examples:
  linematch server
  linematch match --tenant acme "GR. 8 HX HD CAP SCR 5/16-18X2-1/2"
  linematch decide --tenant acme --line-item li-42 --status approved --entry sku-100 --query "hex head cap screw"
  linematch catalog --tenant acme entries.json
  linematch status`)
}
