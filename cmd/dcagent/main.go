package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"dcagent/internal/agent"
	"dcagent/internal/config"
	"dcagent/internal/datacommons"
	"dcagent/internal/llm"
	"dcagent/internal/logging"
	"dcagent/internal/tools"
)

var (
	// Global flags
	verbose    bool
	configPath string
	timeout    time.Duration

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "dcagent",
	Short: "dcagent - ask questions about places using Data Commons",
	Long: `dcagent answers natural language questions about public data on places.

It drives a Gemini model over the Data Commons statistics API: the model
looks up place identifiers (DCIDs), lists available statistical variables,
and fetches population counts, then explains the results in plain language.

Run without arguments to start the interactive chat interface.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Interactive chat has its own UI; skip the console logger there.
		if cmd.Use == "dcagent" && cmd.CalledAs() == "dcagent" {
			return nil
		}

		zapConfig := zap.NewProductionConfig()
		if verbose {
			zapConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapConfig.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInteractiveChat()
	},
}

// askCmd answers a single question and exits
var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single question and print the answer",
	Long: `Sends one question through the agent loop and prints the answer.

Example:
  dcagent ask "What is the population of Tokyo?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

// resolveCmd resolves a place name to its DCID, bypassing the model
var resolveCmd = &cobra.Command{
	Use:   "resolve [place]",
	Short: "Resolve a place name to its Data Commons ID",
	Long: `Looks up the DCID for a place name directly, without the model.

Example:
  dcagent resolve "Mountain View, CA"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResolve,
}

// variablesCmd lists statistical variables for place DCIDs
var variablesCmd = &cobra.Command{
	Use:   "variables [dcid...]",
	Short: "List statistical variables available for place DCIDs",
	Long: `Lists the statistical variables Data Commons has for the given
places, limited to the first 10 variables per place.

Example:
  dcagent variables geoId/06 country/FRA`,
	Args: cobra.MinimumNArgs(1),
	RunE: runVariables,
}

// populationCmd fetches population counts for place DCIDs
var populationCmd = &cobra.Command{
	Use:   "population [dcid...]",
	Short: "Fetch population counts for place DCIDs",
	Long: `Fetches the Count_Person observation for the given places.

Example:
  dcagent population country/JPN --date 2020`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPopulation,
}

var populationDate string

// statusCmd shows configuration status
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show dcagent configuration status",
	RunE:  showStatus,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: .dcagent/config.yaml)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Operation timeout")

	populationCmd.Flags().StringVar(&populationDate, "date", datacommons.LatestDate, "Observation date, e.g. 2020")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(variablesCmd)
	rootCmd.AddCommand(populationCmd)
	rootCmd.AddCommand(statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig loads .env and the YAML config file.
func loadConfig() (*config.Config, error) {
	config.LoadDotEnv()
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	return config.Load(path)
}

// commandContext returns a context with the operation timeout that is
// cancelled on SIGINT/SIGTERM.
func commandContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

func newDataCommonsClient(cfg *config.Config) *datacommons.Client {
	return datacommons.NewClientWithConfig(datacommons.Config{
		APIKey:  cfg.DataCommons.APIKey,
		BaseURL: cfg.DataCommons.BaseURL,
		Timeout: cfg.GetDataCommonsTimeout(),
	})
}

// newAgent wires the full stack: Data Commons client, tool registry,
// Gemini client, agent loop.
func newAgent(ctx context.Context, cfg *config.Config) (*agent.Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	registry := tools.NewRegistry()
	if err := tools.RegisterDataCommonsTools(registry, newDataCommonsClient(cfg)); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	gemini, err := llm.NewGeminiClient(ctx, llm.Config{
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
		Timeout: cfg.GetLLMTimeout(),
	})
	if err != nil {
		return nil, err
	}

	return agent.New(gemini, registry), nil
}

// runAsk answers a single question through the agent loop.
func runAsk(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	workspace, _ := os.Getwd()
	if err := logging.Initialize(workspace); err != nil {
		logger.Warn("Logging initialization failed", zap.Error(err))
	}
	defer logging.CloseAll()

	question := strings.Join(args, " ")
	logger.Info("Processing question", zap.String("question", question), zap.String("model", cfg.LLM.Model))

	a, err := newAgent(ctx, cfg)
	if err != nil {
		return err
	}

	answer, err := a.Ask(ctx, question)
	if err != nil {
		return err
	}

	fmt.Println(answer)
	return nil
}

// runResolve looks up a DCID directly.
func runResolve(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	place := strings.Join(args, " ")
	logger.Debug("Resolving place", zap.String("place", place))

	dcid, err := newDataCommonsClient(cfg).Resolve(ctx, place)
	if err != nil {
		return err
	}

	fmt.Printf("DCID for %s: %s\n", place, dcid)
	return nil
}

// runVariables lists available statistical variables.
func runVariables(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger.Debug("Listing variables", zap.Strings("dcids", args))

	vars, err := newDataCommonsClient(cfg).AvailableVariables(ctx, args)
	if err != nil {
		return err
	}

	fmt.Println("Available variables (limited to first 10 per place):")
	for _, dcid := range args {
		if len(vars[dcid]) == 0 {
			fmt.Printf("\nNo variables found for place %s\n", dcid)
			continue
		}
		fmt.Printf("\nFor place %s:\n", dcid)
		for _, variable := range vars[dcid] {
			fmt.Printf("  - %s\n", variable)
		}
	}
	return nil
}

// runPopulation fetches population counts.
func runPopulation(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger.Debug("Fetching population", zap.Strings("dcids", args), zap.String("date", populationDate))

	observations, err := newDataCommonsClient(cfg).PopulationCount(ctx, args, populationDate)
	if err != nil {
		return err
	}

	fmt.Println("Population counts:")
	for _, obs := range observations {
		if !obs.HasData {
			fmt.Printf("%s: no population data for the requested date\n", obs.DCID)
			continue
		}
		fmt.Printf("%s: %v (as of %s)\n", obs.DCID, obs.Value, obs.Date)
	}
	return nil
}

// showStatus prints the effective configuration.
func showStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	maskKey := func(key string) string {
		if key == "" {
			return "(not set)"
		}
		if len(key) <= 8 {
			return "****"
		}
		return key[:4] + "..." + key[len(key)-4:]
	}

	fmt.Printf("dcagent %s\n\n", cfg.Version)
	fmt.Printf("Model:                %s\n", cfg.LLM.Model)
	fmt.Printf("Gemini API key:       %s\n", maskKey(cfg.LLM.APIKey))
	fmt.Printf("Data Commons URL:     %s\n", cfg.DataCommons.BaseURL)
	fmt.Printf("Data Commons API key: %s\n", maskKey(cfg.DataCommons.APIKey))
	fmt.Printf("Debug logging:        %v\n", cfg.Logging.DebugMode)

	registry := tools.NewRegistry()
	if err := tools.RegisterDataCommonsTools(registry, newDataCommonsClient(cfg)); err != nil {
		return err
	}
	fmt.Printf("\nTools (%d):\n", registry.Count())
	for _, tool := range registry.All() {
		fmt.Printf("  %-25s %s\n", tool.Name, tool.Category)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Printf("\nStatus: not ready (%v)\n", err)
		return nil
	}
	fmt.Println("\nStatus: ready")
	return nil
}
