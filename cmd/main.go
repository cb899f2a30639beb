package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/xhad/planfinder/internal/types"
	cfgPkg "github.com/xhad/planfinder/pkg/config"
	"github.com/xhad/planfinder/pkg/chain/ethereum"
	"github.com/xhad/planfinder/pkg/corpus"
	"github.com/xhad/planfinder/pkg/explorer"
	"github.com/xhad/planfinder/pkg/index"
	"github.com/xhad/planfinder/pkg/llm"
	"github.com/xhad/planfinder/pkg/logger"
	"github.com/xhad/planfinder/pkg/store"
	"github.com/xhad/planfinder/pkg/tools"
	"github.com/xhad/planfinder/server"
)

type Flags struct {
	ConfigPath string
	PlansPath  string
	Query      string
	TopK       int
	Serve      bool
	Addr       string
	LogLevel   string
	Quiet      bool
}

func main() {
	flags := parseFlags()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, flags); err != nil {
		log.Fatal(err)
	}
}

func parseFlags() Flags {
	var flags Flags

	flag.StringVar(&flags.ConfigPath, "config", "", "Path to config file")
	flag.StringVar(&flags.PlansPath, "plans", "", "Plan corpus file or URL (overrides corpus.path)")
	flag.StringVar(&flags.Query, "query", "", "Answer a single query and exit")
	flag.IntVar(&flags.TopK, "k", 0, "Number of plans to return (overrides index.top_k)")
	flag.BoolVar(&flags.Serve, "serve", false, "Serve plan queries over websocket")
	flag.StringVar(&flags.Addr, "addr", "", "Websocket listen address (overrides server.addr)")
	flag.StringVar(&flags.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.BoolVar(&flags.Quiet, "quiet", false, "Hide the build progress bar")
	flag.Parse()

	return flags
}

func loadConfig(flags Flags) (*cfgPkg.Config, error) {
	cfg, err := cfgPkg.LoadConfig(flags.ConfigPath)
	if err != nil {
		return nil, err
	}

	// Command line flags win over the config file
	if flags.PlansPath != "" {
		cfg.Corpus.Path = flags.PlansPath
	}
	if flags.TopK != 0 {
		cfg.Index.TopK = flags.TopK
	}
	if flags.Addr != "" {
		cfg.Server.Addr = flags.Addr
	}
	if flags.LogLevel != "" {
		cfg.Log.Level = flags.LogLevel
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return nil, fmt.Errorf("invalid configuration:\n  %s", strings.Join(msgs, "\n  "))
	}
	return cfg, nil
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("plans"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func run(ctx context.Context, flags Flags) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Outputs:    cfg.Log.Outputs,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()
	mainLog := logger.Named("main")

	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Provider:  cfg.Embedder.Provider,
		Model:     cfg.Embedder.Model,
		BaseURL:   cfg.Embedder.BaseURL,
		APIKey:    cfg.Embedder.APIKey,
		RateLimit: cfg.Embedder.RateLimit,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize embedder: %w", err)
	}

	ixConfig := index.Config{
		Concurrency: cfg.Index.Concurrency,
		Remote:      corpus.RemoteConfig{Selectors: cfg.Corpus.Selectors},
	}
	if !flags.Quiet {
		var once sync.Once
		var bar *progressbar.ProgressBar
		ixConfig.OnProgress = func(_, total int) {
			once.Do(func() { bar = getProgressBar(total, "Embedding plans...") })
			bar.Add(1)
		}
	}
	if cfg.Database.URL != "" {
		ixConfig.NewBackend = func(ctx context.Context, dim int) (types.PlanBackend, error) {
			return store.NewWithConfig(ctx, store.VectorStoreConfig{
				ConnString: cfg.Database.URL,
				TableName:  cfg.Database.TableName,
				VectorDim:  dim,
			})
		}
	}

	ix := index.New(embedder, ixConfig)
	defer ix.Close()
	color.Blue("Loading plans from %s", cfg.Corpus.Path)
	if err := ix.Load(ctx, cfg.Corpus.Path); err != nil {
		return err
	}
	color.Green("\n✓ Indexed %d plans (dimension %d)", ix.Size(), ix.Dimension())

	registry, closeDeps, err := buildRegistry(ctx, cfg, ix)
	if err != nil {
		return err
	}
	defer closeDeps()
	mainLog.Info("tools registered", "tools", registry.List())

	switch {
	case flags.Serve:
		srv := server.NewWSServer(server.Config{
			Addr:           cfg.Server.Addr,
			TopK:           cfg.Index.TopK,
			RequestTimeout: cfg.Index.RequestTimeout,
		}, ix, registry)
		return srv.ListenAndServe(ctx)
	case flags.Query != "":
		qctx, cancel := context.WithTimeout(ctx, cfg.Index.RequestTimeout)
		defer cancel()
		fmt.Println(findPlan(qctx, registry, cfg.Index.TopK, flags.Query))
		return nil
	default:
		return repl(ctx, registry, cfg.Index.TopK, cfg.Index.RequestTimeout)
	}
}

func buildRegistry(ctx context.Context, cfg *cfgPkg.Config, ix *index.Index) (*tools.Registry, func(), error) {
	deps := tools.Deps{Finder: ix}
	closeFn := func() {}

	if cfg.Advisor.Enabled {
		advisor, err := llm.NewWithConfig(llm.ChatConfig{
			Provider:    cfg.Advisor.Provider,
			Model:       cfg.Advisor.Model,
			BaseURL:     cfg.Advisor.BaseURL,
			APIKey:      cfg.Advisor.APIKey,
			MaxTokens:   cfg.Advisor.MaxTokens,
			Temperature: cfg.Advisor.Temperature,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize advisor: %w", err)
		}
		deps.Advisor = advisor
	}

	if cfg.Chain.RPCURL != "" {
		chain, err := ethereum.Dial(ctx, ethereum.Config{RPCURL: cfg.Chain.RPCURL})
		if err != nil {
			return nil, nil, err
		}
		deps.Chain = chain
		deps.Functions = chain.ERC20().Functions()
		closeFn = chain.Close
	}

	if cfg.Etherscan.APIKey != "" {
		deps.Tokens = explorer.NewEtherscan(explorer.ClientConfig{
			BaseURL:   cfg.Etherscan.BaseURL,
			APIKey:    cfg.Etherscan.APIKey,
			RateLimit: cfg.Etherscan.RateLimit,
		})
	}
	deps.Resolver = explorer.NewCoinGecko(explorer.ClientConfig{
		BaseURL:   cfg.CoinGecko.BaseURL,
		APIKey:    cfg.CoinGecko.APIKey,
		RateLimit: cfg.CoinGecko.RateLimit,
	})

	return tools.NewDefaultRegistry(deps), closeFn, nil
}

// findPlan answers a free-text query with the find_similar_plan tool.
func findPlan(ctx context.Context, registry *tools.Registry, k int, query string) string {
	args, err := json.Marshal(map[string]any{"query": query, "top_k": k})
	if err != nil {
		return "Error finding similar plan: " + err.Error()
	}
	return registry.Dispatch(ctx, "find_similar_plan", args)
}

func repl(ctx context.Context, registry *tools.Registry, k int, timeout time.Duration) error {
	color.Cyan("\nDescribe what you want to do (type 'exit' to quit, '/tools' to list tools)")

	scanner := bufio.NewScanner(os.Stdin)
	userPrompt := color.New(color.FgGreen).PrintfFunc()
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()

	for {
		userPrompt("\nYou: ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		input := strings.TrimSpace(scanner.Text())
		if strings.EqualFold(input, "exit") {
			return nil
		}

		reqCtx, cancel := context.WithTimeout(ctx, timeout)
		switch {
		case input == "":
		case input == "/tools":
			for _, name := range registry.List() {
				assistantPrompt("  %s\n", name)
			}
		case strings.HasPrefix(input, "/tool "):
			name, args, err := parseToolCall(strings.TrimPrefix(input, "/tool "))
			if err != nil {
				color.Red("Error: %v", err)
				break
			}
			assistantPrompt("Assistant: %s\n", registry.Dispatch(reqCtx, name, args))
		default:
			assistantPrompt("Assistant: %s\n", findPlan(reqCtx, registry, k, input))
		}
		cancel()
	}
}

// parseToolCall splits "name {json}" into the tool name and its arguments.
func parseToolCall(s string) (string, json.RawMessage, error) {
	name, rest, _ := strings.Cut(strings.TrimSpace(s), " ")
	if name == "" {
		return "", nil, errors.New("usage: /tool <name> {json args}")
	}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return name, nil, nil
	}
	if !json.Valid([]byte(rest)) {
		return "", nil, fmt.Errorf("tool arguments are not valid JSON: %s", rest)
	}
	return name, json.RawMessage(rest), nil
}
