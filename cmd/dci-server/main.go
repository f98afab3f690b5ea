package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/therealutkarshpriyadarshi/dci/pkg/api/rest"
	"github.com/therealutkarshpriyadarshi/dci/pkg/config"
	"github.com/therealutkarshpriyadarshi/dci/pkg/observability"
)

var (
	version = "1.0.0"
	commit  = "dev"
)

func main() {
	var (
		showVersion = flag.Bool("version", false, "show version and exit")
		configFile  = flag.String("config", "", "path to YAML configuration file (optional)")
		host        = flag.String("host", "", "server host (overrides config/env)")
		port        = flag.Int("port", 0, "server port (overrides config/env)")
		logLevel    = flag.String("log-level", "", "log level: debug, info, warn, error")
	)
	flag.Usage = showUsage
	flag.Parse()

	if *showVersion {
		fmt.Printf("DCI Server v%s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	logger := observability.NewDefaultLogger()
	if *logLevel != "" {
		logger.SetLevel(observability.ParseLogLevel(*logLevel))
	} else if env := os.Getenv("DCI_LOG_LEVEL"); env != "" {
		logger.SetLevel(observability.ParseLogLevel(env))
	}
	observability.SetGlobalLogger(logger)

	cfg, err := loadConfig(*configFile)
	if err != nil {
		logger.Errorf("Failed to load configuration: %v", err)
		os.Exit(1)
	}

	// Command-line flags win over config file and environment
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	if err := cfg.Validate(); err != nil {
		logger.Errorf("Invalid configuration: %v", err)
		os.Exit(1)
	}

	printBanner()
	printStartupInfo(cfg)

	metrics := observability.NewMetrics()

	server, err := rest.NewServer(cfg, metrics)
	if err != nil {
		logger.Errorf("Failed to create server: %v", err)
		os.Exit(1)
	}

	errChan := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Server is ready. Press Ctrl+C to stop.")
	select {
	case sig := <-sigChan:
		logger.Infof("Received signal: %v", sig)
	case err := <-errChan:
		logger.Errorf("Server error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		logger.Errorf("Error stopping server: %v", err)
	}

	logger.Info("Server stopped. Goodbye!")
}

// loadConfig resolves configuration from file, environment and defaults,
// in increasing precedence of environment over file over defaults
func loadConfig(configFile string) (*config.Config, error) {
	if configFile == "" {
		return config.LoadFromEnv(), nil
	}

	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()

	return cfg, nil
}

func printBanner() {
	fmt.Printf(`
  ____   ____ ___
 |  _ \ / ___|_ _|
 | | | | |    | |
 | |_| | |___ | |
 |____/ \____|___|

 Prioritized Dynamic Continuous Indexing k-NN server
 Version: %s (commit: %s)

`, version, commit)
}

func printStartupInfo(cfg *config.Config) {
	fmt.Println("Server configuration:")
	fmt.Printf("  Address:          %s\n", cfg.Server.Address())
	fmt.Printf("  TLS:              %v\n", cfg.Server.EnableTLS)
	fmt.Printf("  Auth:             %v\n", cfg.Server.AuthEnabled)
	fmt.Printf("  Rate limiting:    %v", cfg.Server.RateLimitEnabled)
	if cfg.Server.RateLimitEnabled {
		fmt.Printf(" (%.1f req/s, burst %d)", cfg.Server.RateLimitPerSec, cfg.Server.RateLimitBurst)
	}
	fmt.Println()
	fmt.Println("Index defaults:")
	fmt.Printf("  Composite indices: %d\n", cfg.DCI.NumCompIndices)
	fmt.Printf("  Simple indices:    %d\n", cfg.DCI.NumSimpIndices)
	fmt.Printf("  Levels:            %d\n", cfg.DCI.NumLevels)
	fmt.Printf("  Field of view:     %d\n", cfg.DCI.FieldOfView)
	fmt.Printf("  Prop to visit:     %.2f\n", cfg.DCI.PropToVisit)
	fmt.Printf("  Prop to retrieve:  %.2f\n", cfg.DCI.PropToRetrieve)
	fmt.Println("Cache:")
	fmt.Printf("  Enabled:           %v\n", cfg.Cache.Enabled)
	if cfg.Cache.Enabled {
		fmt.Printf("  Capacity:          %d\n", cfg.Cache.Capacity)
		fmt.Printf("  TTL:               %s\n", cfg.Cache.TTL)
	}
	fmt.Println()
}

func showUsage() {
	fmt.Println("DCI Server - k-nearest-neighbour search over Prioritized DCI")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  dci-server [options]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -version          Show version information")
	fmt.Println("  -config PATH      Path to YAML configuration file")
	fmt.Println("  -host HOST        Server host (default: 0.0.0.0)")
	fmt.Println("  -port PORT        Server port (default: 8080)")
	fmt.Println("  -log-level LEVEL  Log level: debug, info, warn, error")
	fmt.Println()
	fmt.Println("Environment variables:")
	fmt.Println("  DCI_HOST                  Server host")
	fmt.Println("  DCI_PORT                  Server port")
	fmt.Println("  DCI_ENABLE_TLS            Enable TLS (true/false)")
	fmt.Println("  DCI_TLS_CERT              TLS certificate file")
	fmt.Println("  DCI_TLS_KEY               TLS key file")
	fmt.Println("  DCI_AUTH_ENABLED          Enable JWT authentication (true/false)")
	fmt.Println("  DCI_JWT_SECRET            JWT HMAC secret")
	fmt.Println("  DCI_RATE_LIMIT_ENABLED    Enable rate limiting (true/false)")
	fmt.Println("  DCI_NUM_COMP_INDICES      Number of composite indices")
	fmt.Println("  DCI_NUM_SIMP_INDICES      Number of simple indices per composite")
	fmt.Println("  DCI_NUM_LEVELS            Number of hierarchy levels")
	fmt.Println("  DCI_FIELD_OF_VIEW         Probes propagated between levels")
	fmt.Println("  DCI_PROP_TO_VISIT         Visit budget proportion")
	fmt.Println("  DCI_PROP_TO_RETRIEVE      Retrieve budget proportion")
	fmt.Println("  DCI_CACHE_ENABLED         Enable query cache (true/false)")
	fmt.Println("  DCI_CACHE_CAPACITY        Cache capacity")
	fmt.Println("  DCI_CACHE_TTL             Cache TTL (e.g., 5m)")
	fmt.Println("  DCI_LOG_LEVEL             Log level")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  dci-server")
	fmt.Println("  dci-server -port 9090")
	fmt.Println("  DCI_NUM_LEVELS=3 dci-server -config config.yaml")
}
