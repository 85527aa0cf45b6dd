package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Secret is a string type that redacts itself when printed
type Secret string

// String implements fmt.Stringer to redact the secret
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "***"
}

// MarshalJSON implements json.Marshaler to prevent secrets in JSON logs
func (s Secret) MarshalJSON() ([]byte, error) {
	if s == "" {
		return json.Marshal("")
	}
	return json.Marshal("***")
}

// StorageType selects the artifact store backend
type StorageType string

const (
	StorageTypeFilesystem StorageType = "filesystem"
	StorageTypeMemory     StorageType = "memory"
	StorageTypeFirestore  StorageType = "firestore"
)

// Defaults applied by Load when the config file leaves a field unset.
const (
	DefaultAddr           = ":8080"
	DefaultMaxUploadBytes = int64(16 << 20)
	DefaultOutputDir      = "outputs"
	DefaultHistoryLimit   = 20
	DefaultMCPBasePath    = "/mcp"
	DefaultSweepInterval  = time.Hour
)

// ServerConfig represents the HTTP listener configuration with resolved values
type ServerConfig struct {
	Addr           string   `json:"addr"`
	BaseURL        string   `json:"baseURL,omitempty"`
	AllowedOrigins []string `json:"allowedOrigins,omitempty"`
	MaxUploadBytes int64    `json:"maxUploadBytes,omitempty"`
	TrustProxy     bool     `json:"trustProxy,omitempty"`
}

// AdminConfig guards the destructive endpoints with a bearer token.
//
// Environment variable references using {"$env": "VAR_NAME"} syntax are
// resolved at config load time. The explicit JSON syntax avoids accidental
// shell expansion of $VAR in startup scripts and keeps references
// validatable at parse time. The token value is never kept in plaintext: it
// is bcrypt-hashed during unmarshalling, or taken as-is when the config
// already carries a bcrypt hash.
type AdminConfig struct {
	TokenRaw json.RawMessage `json:"token,omitempty"`

	// Computed fields
	HashedToken Secret `json:"-"` // bcrypt hash of the admin token
}

// Enabled reports whether an admin token is configured
func (a *AdminConfig) Enabled() bool {
	return a != nil && a.HashedToken != ""
}

// FirestoreConfig represents the Firestore backend configuration
type FirestoreConfig struct {
	ProjectIDRaw       json.RawMessage `json:"projectID,omitempty"`
	Database           string          `json:"database,omitempty"`
	CollectionPrefix   string          `json:"collectionPrefix,omitempty"`
	CredentialsJSONRaw json.RawMessage `json:"credentialsJSON,omitempty"`

	// Computed fields
	ProjectID       string `json:"-"`
	CredentialsJSON Secret `json:"-"` // service account key material
}

// RetentionConfig bounds how long and how many extraction artifacts are kept
type RetentionConfig struct {
	MaxAge        time.Duration
	MaxEntries    int
	SweepInterval time.Duration
}

// StorageConfig represents the artifact store configuration
type StorageConfig struct {
	Type      StorageType      `json:"type,omitempty"`
	OutputDir string           `json:"outputDir,omitempty"`
	Firestore *FirestoreConfig `json:"firestore,omitempty"`
	Retention *RetentionConfig `json:"retention,omitempty"`
}

// ExtractConfig tunes the extraction pipeline
type ExtractConfig struct {
	Encodings    []string `json:"encodings,omitempty"`
	HistoryLimit int      `json:"historyLimit,omitempty"`
}

// MCPConfig represents the MCP tool server configuration
type MCPConfig struct {
	Enabled  bool   `json:"enabled,omitempty"`
	BasePath string `json:"basePath,omitempty"`
}

// Config represents the config structure with resolved values
type Config struct {
	Server  ServerConfig  `json:"server"`
	Admin   *AdminConfig  `json:"admin,omitempty"`
	Storage StorageConfig `json:"storage"`
	Extract ExtractConfig `json:"extract"`
	MCP     MCPConfig     `json:"mcp"`
}

// ParseConfigValue parses a JSON value that is either a plain string or an
// {"$env": "VAR_NAME"} reference object.
func ParseConfigValue(raw json.RawMessage) (string, error) {
	// Try plain string first
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str, nil
	}

	// Try reference object
	var ref map[string]string
	if err := json.Unmarshal(raw, &ref); err != nil {
		return "", fmt.Errorf("config value must be string or reference object")
	}

	envVar, ok := ref["$env"]
	if !ok {
		return "", fmt.Errorf("unknown reference type in config value")
	}

	value := os.Getenv(envVar)
	if value == "" {
		return "", fmt.Errorf("environment variable %s not set", envVar)
	}
	// Strip surrounding quotes if present (only matching pairs)
	if len(value) >= 2 {
		if (value[0] == '"' && value[len(value)-1] == '"') ||
			(value[0] == '\'' && value[len(value)-1] == '\'') {
			value = value[1 : len(value)-1]
		}
	}
	return value, nil
}
