package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jlucaspains/roadmapboard/internal/aggregate"
	"github.com/jlucaspains/roadmapboard/internal/config"
	"github.com/jlucaspains/roadmapboard/internal/credential"
	"github.com/jlucaspains/roadmapboard/internal/redmine"
	"github.com/jlucaspains/roadmapboard/internal/server"
)

var (
	// Version information - set by build flags
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"

	// CLI flags
	configFile string
	verbose    bool
	logFormat  string
	addr       string
	force      bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "roadmapboard",
	Short: "Roadmap dashboard for a Redmine project and its subprojects",
	Long: `A web dashboard that aggregates the versions of a Redmine project and its
direct subprojects into one filterable, sortable roadmap.

The server proxies the Redmine REST API with a server-side API key, so the key
never reaches the browser, and renders the dashboard at /board.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// a missing .env is normal outside development
		_ = godotenv.Load()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard server",
	Long: `Run the HTTP server exposing the dashboard and the JSON proxy API.

The tracker base URL and API key must be configured; the server refuses to
start without them.`,
	RunE: runServe,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and connection",
	Long:  "Validate the configuration file and test the connection to Redmine.",
	RunE:  validateConfig,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long:  "Commands for managing configuration files and settings.",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new configuration file",
	Long:  "Create a new configuration file with default settings. The API key is left empty.",
	RunE:  initConfig,
}

var configSetKeyCmd = &cobra.Command{
	Use:   "set-key [api-key]",
	Short: "Store the Redmine API key in the system keyring",
	Long: `Store the Redmine API key in the system keyring. Without an argument the key
is read from standard input. Set tracker.use_keyring in the configuration to
use it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: setKey,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long:  "Display the version, commit, and build time of the application.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("roadmapboard version %s\n", Version)
		fmt.Printf("Commit: %s\n", Commit)
		fmt.Printf("Built: %s\n", BuildTime)
	},
}

func init() {
	// Root command flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file path (default: ./configs/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text or json")

	serveCmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	configInitCmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing configuration file")

	// Add subcommands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configSetKeyCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := setupLogger()
	slog.SetDefault(logger)

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if addr != "" {
		cfg.Server.Addr = addr
	}

	logger.Info("Starting roadmap dashboard",
		"tracker", cfg.Tracker.BaseURL,
		"project", cfg.Dashboard.RootProject,
		"loading", cfg.Dashboard.IssueLoading)

	client, err := redmine.NewClient(&cfg.Tracker, logger)
	if err != nil {
		return fmt.Errorf("failed to create Redmine client: %w", err)
	}

	service := aggregate.NewService(client, &cfg.Dashboard, logger)

	gin.SetMode(gin.ReleaseMode)
	srv, err := server.New(cfg, service, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return srv.Run(ctx)
}

func validateConfig(cmd *cobra.Command, args []string) error {
	logger := setupLogger()

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		printStatus(false, "Configuration is invalid")
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	printStatus(true, "Configuration file is valid")

	client, err := redmine.NewClient(&cfg.Tracker, logger)
	if err != nil {
		return fmt.Errorf("failed to create Redmine client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := client.Ping(ctx); err != nil {
		printStatus(false, "Redmine connection failed: "+client.BaseURL())
		return err
	}
	printStatus(true, "Redmine connection successful: "+client.BaseURL())

	service := aggregate.NewService(client, &cfg.Dashboard, logger)
	tree, err := service.ProjectTree(ctx, cfg.Dashboard.RootProject)
	if err != nil {
		printStatus(false, "Root project is not readable: "+cfg.Dashboard.RootProject)
		return err
	}
	printStatus(true, fmt.Sprintf("Root project %s with %d subprojects", tree.Root.Name, len(tree.Children)))

	return nil
}

func printStatus(ok bool, message string) {
	if ok {
		fmt.Println(color.GreenString("✓"), message)
		return
	}
	fmt.Println(color.RedString("✗"), message)
}

func initConfig(cmd *cobra.Command, args []string) error {
	logger := setupLogger()

	configPath := configFile
	if configPath == "" {
		configPath = config.DefaultConfigPath
	}

	if _, err := os.Stat(configPath); err == nil && !force {
		logger.Warn("Configuration file already exists", "path", configPath)
		return fmt.Errorf("%s already exists, use --force to overwrite it", configPath)
	}

	if err := config.SaveConfig(createDefaultConfig(), configPath); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}
	logger.Info("✓ Configuration file created", "path", configPath)
	logger.Info("Set tracker.base_url and provide the API key through REDMINE_API_KEY or `config set-key`")

	return nil
}

func createDefaultConfig() *config.Config {
	return &config.Config{
		Tracker: config.TrackerConfig{
			BaseURL:    "https://redmine.example.com",
			AuthScheme: config.AuthSchemeHeader,
			Timeout:    30 * time.Second,
		},
		Dashboard: config.DashboardConfig{
			RootProject:    "2024_qa_sebj",
			IssueLoading:   config.LoadingLazy,
			PageSize:       20,
			IssuePageSize:  config.MaxIssuePageSize,
			MaxConcurrency: 4,
			Locale:         "ko",
			SessionTTL:     30 * time.Minute,
			MaxSessions:    1000,
			CacheTTL:       time.Minute,
		},
		Server: config.ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"*"},
		},
	}
}

func setKey(cmd *cobra.Command, args []string) error {
	logger := setupLogger()

	var key string
	if len(args) == 1 {
		key = args[0]
	} else {
		fmt.Fprint(os.Stderr, "Redmine API key: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("failed to read input: %w", err)
		}
		key = line
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("API key must not be empty")
	}

	if err := credential.Set(credential.APIKeyName, key); err != nil {
		return fmt.Errorf("failed to store API key: %w", err)
	}

	logger.Info("✓ API key stored in the system keyring")
	return nil
}

func setupLogger() *slog.Logger {
	opts := &slog.HandlerOptions{}

	if verbose {
		opts.Level = slog.LevelDebug
	} else {
		opts.Level = slog.LevelInfo
	}

	var handler slog.Handler
	if logFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
