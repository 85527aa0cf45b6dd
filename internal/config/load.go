package config

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/dgellow/mailsift/internal/crypto"
	"github.com/dgellow/mailsift/internal/textenc"
)

// Load loads and processes the config with immediate env var resolution
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var rawConfig map[string]any
	if err := json.Unmarshal(data, &rawConfig); err != nil {
		return Config{}, fmt.Errorf("parsing config JSON: %w", err)
	}

	version, ok := rawConfig["version"].(string)
	if !ok {
		return Config{}, fmt.Errorf("config version is required")
	}
	if !strings.HasPrefix(version, "v1") {
		return Config{}, fmt.Errorf("unsupported config version: %s", version)
	}

	if err := validateRawConfig(rawConfig); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	// Parse directly into typed Config struct
	// The custom UnmarshalJSON methods will resolve env vars immediately
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	applyDefaults(&config)

	if err := ValidateConfig(&config); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Default returns a config with every default applied, suitable as a
// starting point for -dev mode.
func Default() Config {
	var config Config
	applyDefaults(&config)
	return config
}

// applyDefaults fills unset fields in place
func applyDefaults(config *Config) {
	if config.Server.Addr == "" {
		config.Server.Addr = DefaultAddr
	}
	if config.Server.MaxUploadBytes == 0 {
		config.Server.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if config.Storage.Type == "" {
		config.Storage.Type = StorageTypeFilesystem
	}
	if config.Storage.OutputDir == "" {
		config.Storage.OutputDir = DefaultOutputDir
	}
	if r := config.Storage.Retention; r != nil && r.SweepInterval == 0 {
		r.SweepInterval = DefaultSweepInterval
	}
	if len(config.Extract.Encodings) == 0 {
		config.Extract.Encodings = slices.Clone(textenc.DefaultAttempts)
	}
	if config.Extract.HistoryLimit == 0 {
		config.Extract.HistoryLimit = DefaultHistoryLimit
	}
	if config.MCP.Enabled && config.MCP.BasePath == "" {
		config.MCP.BasePath = DefaultMCPBasePath
	}
}

// validateRawConfig validates the config structure before environment resolution
func validateRawConfig(rawConfig map[string]any) error {
	if admin, ok := rawConfig["admin"].(map[string]any); ok {
		if token, exists := admin["token"]; exists {
			// A plaintext token in the file is a leak; a bcrypt hash is not
			if s, isString := token.(string); isString && !crypto.IsBcryptHash(s) {
				return fmt.Errorf("admin.token must use {\"$env\": \"VAR_NAME\"} or a bcrypt hash, not a plaintext token")
			}
			if refMap, isMap := token.(map[string]any); isMap {
				if _, hasEnv := refMap["$env"]; !hasEnv {
					return fmt.Errorf("admin.token must use {\"$env\": \"VAR_NAME\"} format")
				}
			}
		}
	}

	if storage, ok := rawConfig["storage"].(map[string]any); ok {
		if firestore, ok := storage["firestore"].(map[string]any); ok {
			if creds, exists := firestore["credentialsJSON"]; exists {
				if _, isString := creds.(string); isString {
					return fmt.Errorf("storage.firestore.credentialsJSON must use environment variable reference for security")
				}
				if refMap, isMap := creds.(map[string]any); isMap {
					if _, hasEnv := refMap["$env"]; !hasEnv {
						return fmt.Errorf("storage.firestore.credentialsJSON must use {\"$env\": \"VAR_NAME\"} format")
					}
				}
			}
		}
	}

	return nil
}

// ValidateConfig validates the resolved configuration
func ValidateConfig(config *Config) error {
	if config.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if config.Server.MaxUploadBytes < 0 {
		return fmt.Errorf("server.maxUploadBytes cannot be negative")
	}

	switch config.Storage.Type {
	case StorageTypeFilesystem:
		if config.Storage.OutputDir == "" {
			return fmt.Errorf("storage.outputDir is required for filesystem storage")
		}
	case StorageTypeMemory:
	case StorageTypeFirestore:
		if config.Storage.Firestore == nil || config.Storage.Firestore.ProjectID == "" {
			return fmt.Errorf("storage.firestore.projectID is required when using firestore storage")
		}
	default:
		return fmt.Errorf("unknown storage type: %s (use filesystem, memory, or firestore)", config.Storage.Type)
	}

	if r := config.Storage.Retention; r != nil {
		if r.MaxAge < 0 {
			return fmt.Errorf("storage.retention.maxAge cannot be negative")
		}
		if r.MaxEntries < 0 {
			return fmt.Errorf("storage.retention.maxEntries cannot be negative")
		}
		if r.SweepInterval < 0 {
			return fmt.Errorf("storage.retention.sweepInterval cannot be negative")
		}
	}

	if config.Extract.HistoryLimit < 0 {
		return fmt.Errorf("extract.historyLimit cannot be negative")
	}
	if len(config.Extract.Encodings) > 0 {
		if _, err := textenc.NewDecoder(config.Extract.Encodings); err != nil {
			return fmt.Errorf("extract.encodings: %w", err)
		}
	}

	if config.MCP.Enabled && !strings.HasPrefix(config.MCP.BasePath, "/") {
		return fmt.Errorf("mcp.basePath must start with /")
	}

	return nil
}
