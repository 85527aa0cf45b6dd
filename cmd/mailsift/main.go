package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/dgellow/mailsift/internal"
	"github.com/dgellow/mailsift/internal/config"
	"github.com/dgellow/mailsift/internal/crypto"
	"github.com/dgellow/mailsift/internal/log"
)

var BuildVersion = "dev"

func generateDefaultConfig(path string) error {
	defaultConfig := map[string]any{
		"version": "v1",
		"server": map[string]any{
			"addr":           ":8080",
			"baseURL":        "https://mailsift.yourcompany.com",
			"allowedOrigins": []string{"https://mailsift.yourcompany.com"},
		},
		"admin": map[string]any{
			"token": map[string]string{"$env": "MAILSIFT_ADMIN_TOKEN"},
		},
		"storage": map[string]any{
			"type":      "filesystem",
			"outputDir": "outputs",
			"retention": map[string]any{
				"maxAge":     "720h",
				"maxEntries": 1000,
			},
		},
		"extract": map[string]any{
			"historyLimit": 20,
		},
		"mcp": map[string]any{
			"enabled":  true,
			"basePath": "/mcp",
		},
	}

	data, err := json.MarshalIndent(defaultConfig, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func validateConfig(path string) error {
	result, err := config.ValidateFile(path)
	if err != nil {
		return fmt.Errorf("error during validation: %w", err)
	}

	fmt.Printf("Validating: %s\n", path)

	if len(result.Errors) > 0 {
		fmt.Printf("\nErrors (%d):\n", len(result.Errors))
		for _, err := range result.Errors {
			if err.Path != "" {
				fmt.Printf("  - %s: %s\n", err.Path, err.Message)
			} else {
				fmt.Printf("  - %s\n", err.Message)
			}
		}
	}

	if len(result.Warnings) > 0 {
		fmt.Printf("\nWarnings (%d):\n", len(result.Warnings))
		for _, warn := range result.Warnings {
			if warn.Path != "" {
				fmt.Printf("  - %s: %s\n", warn.Path, warn.Message)
			} else {
				fmt.Printf("  - %s\n", warn.Message)
			}
		}
	}

	fmt.Println()
	if len(result.Errors) == 0 && len(result.Warnings) == 0 {
		fmt.Println("Result: PASS")
	} else if len(result.Errors) == 0 {
		fmt.Println("Result: FAIL (warnings present)")
	} else {
		fmt.Println("Result: FAIL")
	}

	if len(result.Errors) > 0 || len(result.Warnings) > 0 {
		return fmt.Errorf("validation failed: %d error(s), %d warning(s)", len(result.Errors), len(result.Warnings))
	}
	return nil
}

func generateAdminToken() error {
	token, err := crypto.GenerateSecureToken()
	if err != nil {
		return fmt.Errorf("failed to generate token: %w", err)
	}
	hash, err := crypto.HashToken(token)
	if err != nil {
		return fmt.Errorf("failed to hash token: %w", err)
	}

	fmt.Printf("Token: %s\n", token)
	fmt.Printf("Hash:  %s\n", hash)
	fmt.Println()
	fmt.Println("Use the hash as admin.token in your config, or export the token and")
	fmt.Println("reference it with {\"$env\": \"MAILSIFT_ADMIN_TOKEN\"}. Clients send")
	fmt.Println("the token as \"Authorization: Bearer <token>\".")
	return nil
}

func main() {
	conf := flag.String("config", "", "path to config file")
	dev := flag.Bool("dev", false, "run with in-memory storage and no config file")
	version := flag.Bool("version", false, "print version and exit")
	help := flag.Bool("help", false, "print help and exit")
	configInit := flag.String("config-init", "", "generate default config file at specified path")
	validate := flag.Bool("validate", false, "validate config file and exit")
	tokenInit := flag.Bool("generate-token", false, "generate an admin token with its bcrypt hash and exit")
	flag.Parse()
	if *help {
		flag.Usage()
		return
	}
	if *version {
		fmt.Println(BuildVersion)
		return
	}
	if *tokenInit {
		if err := generateAdminToken(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}
	if *configInit != "" {
		if err := generateDefaultConfig(*configInit); err != nil {
			log.LogError("Failed to generate config: %v", err)
			os.Exit(1)
		}
		fmt.Printf("Generated default config at: %s\n", *configInit)
		return
	}

	if *validate {
		if *conf == "" {
			fmt.Fprintf(os.Stderr, "Error: -config flag is required for validation\n")
			os.Exit(1)
		}
		if err := validateConfig(*conf); err != nil {
			os.Exit(1)
		}
		return
	}

	var cfg config.Config
	switch {
	case *dev:
		// Throwaway local instance: nothing written to disk, any origin may
		// call the API, debug logging on
		if err := log.SetLogLevel("debug"); err != nil {
			log.LogError("Failed to set log level: %v", err)
		}
		cfg = config.Default()
		cfg.Storage.Type = config.StorageTypeMemory
		cfg.MCP.Enabled = true
		cfg.MCP.BasePath = config.DefaultMCPBasePath
		log.LogInfoWithFields("main", "Starting mailsift in dev mode", map[string]any{
			"version": BuildVersion,
		})
	case *conf == "":
		fmt.Fprintf(os.Stderr, "Error: -config flag is required (or use -dev)\n")
		fmt.Fprintf(os.Stderr, "Run with -help for usage information\n")
		os.Exit(1)
	default:
		var err error
		cfg, err = config.Load(*conf)
		if err != nil {
			log.LogError("Failed to load config: %v", err)
			os.Exit(1)
		}
		log.LogInfoWithFields("main", "Starting mailsift", map[string]any{
			"version": BuildVersion,
			"config":  *conf,
		})
	}

	ctx := context.Background()
	app, err := internal.NewMailSift(ctx, cfg, BuildVersion)
	if err != nil {
		log.LogError("Failed to create application: %v", err)
		os.Exit(1)
	}

	if err := app.Run(); err != nil {
		log.LogError("Failed to start server: %v", err)
		os.Exit(1)
	}
}
