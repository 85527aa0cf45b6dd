package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/dgellow/mailsift/internal/crypto"
	"github.com/dgellow/mailsift/internal/textenc"
)

// ValidationResult holds validation errors and warnings
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// ValidationError represents a validation issue
type ValidationError struct {
	Path    string
	Message string
}

// IsValid returns true if there are no errors
func (v *ValidationResult) IsValid() bool {
	return len(v.Errors) == 0
}

// ValidateFile validates a config file structure without requiring env vars
func ValidateFile(path string) (*ValidationResult, error) {
	result := &ValidationResult{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Check JSON syntax
	var rawConfig map[string]any
	if err := json.Unmarshal(data, &rawConfig); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Message: fmt.Sprintf("invalid JSON: %v", err),
		})
		return result, nil
	}

	// Check for bash-style syntax
	checkBashStyleSyntax(rawConfig, "", result)

	// Check version
	version, ok := rawConfig["version"].(string)
	if !ok {
		result.Errors = append(result.Errors, ValidationError{
			Path:    "version",
			Message: "version field is required. Hint: Add \"version\": \"v1\"",
		})
	} else if !strings.HasPrefix(version, "v1") {
		result.Errors = append(result.Errors, ValidationError{
			Path:    "version",
			Message: fmt.Sprintf("unsupported version '%s' - use 'v1' or 'v1-<variant>'", version),
		})
	}

	validateServerStructure(rawConfig, result)
	validateAdminStructure(rawConfig, result)
	validateStorageStructure(rawConfig, result)
	validateExtractStructure(rawConfig, result)
	validateMCPStructure(rawConfig, result)

	return result, nil
}

// validateServerStructure checks the server configuration structure
func validateServerStructure(rawConfig map[string]any, result *ValidationResult) {
	serverRaw, exists := rawConfig["server"]
	if !exists {
		return // every server field has a default
	}
	server, ok := serverRaw.(map[string]any)
	if !ok {
		result.Errors = append(result.Errors, ValidationError{
			Path:    "server",
			Message: "server must be an object",
		})
		return
	}

	validateStringOrEnvRef(server, "addr", "server.addr", result)
	validateStringOrEnvRef(server, "baseURL", "server.baseURL", result)

	if origins, exists := server["allowedOrigins"]; exists {
		if _, ok := origins.([]any); !ok {
			result.Errors = append(result.Errors, ValidationError{
				Path:    "server.allowedOrigins",
				Message: "allowedOrigins must be an array of origins. Example: [\"https://app.example.com\"]",
			})
		}
	}

	if size, exists := server["maxUploadBytes"]; exists {
		n, ok := size.(float64)
		if !ok {
			result.Errors = append(result.Errors, ValidationError{
				Path:    "server.maxUploadBytes",
				Message: "maxUploadBytes must be a number of bytes. Example: 16777216 for 16 MiB",
			})
		} else if n < 0 {
			result.Errors = append(result.Errors, ValidationError{
				Path:    "server.maxUploadBytes",
				Message: "maxUploadBytes cannot be negative",
			})
		}
	}
}

// validateAdminStructure checks the admin configuration structure
func validateAdminStructure(rawConfig map[string]any, result *ValidationResult) {
	adminRaw, exists := rawConfig["admin"]
	if !exists {
		return
	}
	admin, ok := adminRaw.(map[string]any)
	if !ok {
		result.Errors = append(result.Errors, ValidationError{
			Path:    "admin",
			Message: "admin must be an object",
		})
		return
	}

	token, exists := admin["token"]
	if !exists {
		result.Warnings = append(result.Warnings, ValidationError{
			Path:    "admin",
			Message: "admin section present but no token configured - clear-history stays unauthenticated",
		})
		return
	}

	switch v := token.(type) {
	case string:
		if !crypto.IsBcryptHash(v) {
			result.Errors = append(result.Errors, ValidationError{
				Path:    "admin.token",
				Message: "token must use {\"$env\": \"MAILSIFT_ADMIN_TOKEN\"} or a pre-hashed bcrypt value, not a plaintext token",
			})
		}
	case map[string]any:
		if _, hasEnv := v["$env"]; !hasEnv {
			result.Errors = append(result.Errors, ValidationError{
				Path:    "admin.token",
				Message: "token reference must use {\"$env\": \"VAR_NAME\"} format",
			})
		}
	default:
		result.Errors = append(result.Errors, ValidationError{
			Path:    "admin.token",
			Message: fmt.Sprintf("token must be a string or reference object, not %T", token),
		})
	}
}

// validateStorageStructure checks the storage configuration structure
func validateStorageStructure(rawConfig map[string]any, result *ValidationResult) {
	storageRaw, exists := rawConfig["storage"]
	if !exists {
		return // defaults to filesystem under "outputs"
	}
	storage, ok := storageRaw.(map[string]any)
	if !ok {
		result.Errors = append(result.Errors, ValidationError{
			Path:    "storage",
			Message: "storage must be an object",
		})
		return
	}

	storageType := ""
	if typeRaw, exists := storage["type"]; exists {
		storageType, ok = typeRaw.(string)
		if !ok {
			result.Errors = append(result.Errors, ValidationError{
				Path:    "storage.type",
				Message: "type must be a string. Options: filesystem, memory, firestore",
			})
		} else {
			switch StorageType(storageType) {
			case StorageTypeFilesystem, StorageTypeMemory, StorageTypeFirestore:
			default:
				result.Errors = append(result.Errors, ValidationError{
					Path:    "storage.type",
					Message: fmt.Sprintf("unknown storage type '%s' - use filesystem, memory, or firestore", storageType),
				})
			}
		}
	}

	firestore, hasFirestore := storage["firestore"].(map[string]any)
	if storageType == string(StorageTypeFirestore) {
		if !hasFirestore {
			result.Errors = append(result.Errors, ValidationError{
				Path:    "storage.firestore",
				Message: "firestore configuration is required when storage type is firestore",
			})
		} else {
			if _, ok := firestore["projectID"]; !ok {
				result.Errors = append(result.Errors, ValidationError{
					Path:    "storage.firestore.projectID",
					Message: "projectID is required for firestore storage",
				})
			}
			if creds, exists := firestore["credentialsJSON"]; exists {
				if _, isString := creds.(string); isString {
					result.Errors = append(result.Errors, ValidationError{
						Path:    "storage.firestore.credentialsJSON",
						Message: "credentialsJSON must use {\"$env\": \"VAR_NAME\"} format - never inline service account keys",
					})
				}
			}
		}
	}

	if retention, ok := storage["retention"].(map[string]any); ok {
		validateRetentionStructure(retention, result)
	}
}

// validateRetentionStructure checks retention durations parse
func validateRetentionStructure(retention map[string]any, result *ValidationResult) {
	for _, field := range []string{"maxAge", "sweepInterval"} {
		value, exists := retention[field]
		if !exists {
			continue
		}
		s, ok := value.(string)
		if !ok {
			result.Errors = append(result.Errors, ValidationError{
				Path:    "storage.retention." + field,
				Message: fmt.Sprintf("%s must be a duration string. Examples: \"720h\", \"30m\"", field),
			})
			continue
		}
		if _, err := time.ParseDuration(s); err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Path:    "storage.retention." + field,
				Message: fmt.Sprintf("invalid duration '%s'. Examples: \"720h\", \"30m\"", s),
			})
		}
	}

	if entries, exists := retention["maxEntries"]; exists {
		n, ok := entries.(float64)
		if !ok {
			result.Errors = append(result.Errors, ValidationError{
				Path:    "storage.retention.maxEntries",
				Message: "maxEntries must be a number",
			})
		} else if n < 0 {
			result.Errors = append(result.Errors, ValidationError{
				Path:    "storage.retention.maxEntries",
				Message: "maxEntries cannot be negative",
			})
		}
	}
}

// validateExtractStructure checks the extract configuration structure
func validateExtractStructure(rawConfig map[string]any, result *ValidationResult) {
	extractRaw, exists := rawConfig["extract"]
	if !exists {
		return
	}
	extract, ok := extractRaw.(map[string]any)
	if !ok {
		result.Errors = append(result.Errors, ValidationError{
			Path:    "extract",
			Message: "extract must be an object",
		})
		return
	}

	if encodingsRaw, exists := extract["encodings"]; exists {
		encodings, ok := encodingsRaw.([]any)
		if !ok {
			result.Errors = append(result.Errors, ValidationError{
				Path:    "extract.encodings",
				Message: "encodings must be an array of encoding names",
			})
		} else {
			names := make([]string, 0, len(encodings))
			for i, item := range encodings {
				name, ok := item.(string)
				if !ok {
					result.Errors = append(result.Errors, ValidationError{
						Path:    fmt.Sprintf("extract.encodings[%d]", i),
						Message: "encoding names must be strings",
					})
					continue
				}
				names = append(names, name)
			}
			if len(names) > 0 {
				if _, err := textenc.NewDecoder(names); err != nil {
					result.Errors = append(result.Errors, ValidationError{
						Path:    "extract.encodings",
						Message: fmt.Sprintf("%v. Supported: utf-8, latin-1, cp1252, iso-8859-1, windows-1252", err),
					})
				}
			}
		}
	}

	if limit, exists := extract["historyLimit"]; exists {
		n, ok := limit.(float64)
		if !ok {
			result.Errors = append(result.Errors, ValidationError{
				Path:    "extract.historyLimit",
				Message: "historyLimit must be a number",
			})
		} else if n < 0 {
			result.Errors = append(result.Errors, ValidationError{
				Path:    "extract.historyLimit",
				Message: "historyLimit cannot be negative",
			})
		}
	}
}

// validateMCPStructure checks the mcp configuration structure
func validateMCPStructure(rawConfig map[string]any, result *ValidationResult) {
	mcpRaw, exists := rawConfig["mcp"]
	if !exists {
		return
	}
	mcp, ok := mcpRaw.(map[string]any)
	if !ok {
		result.Errors = append(result.Errors, ValidationError{
			Path:    "mcp",
			Message: "mcp must be an object",
		})
		return
	}

	if enabled, exists := mcp["enabled"]; exists {
		if _, ok := enabled.(bool); !ok {
			result.Errors = append(result.Errors, ValidationError{
				Path:    "mcp.enabled",
				Message: "enabled must be a boolean",
			})
		}
	}

	if basePath, exists := mcp["basePath"]; exists {
		s, ok := basePath.(string)
		if !ok {
			result.Errors = append(result.Errors, ValidationError{
				Path:    "mcp.basePath",
				Message: "basePath must be a string",
			})
		} else if !strings.HasPrefix(s, "/") {
			result.Errors = append(result.Errors, ValidationError{
				Path:    "mcp.basePath",
				Message: fmt.Sprintf("basePath must start with /, got '%s'", s),
			})
		}
	}
}

// validateStringOrEnvRef checks that a field, when present, is a plain
// string or an {"$env": ...} reference
func validateStringOrEnvRef(section map[string]any, field, path string, result *ValidationResult) {
	value, exists := section[field]
	if !exists {
		return
	}

	switch v := value.(type) {
	case string:
	case map[string]any:
		if _, hasEnv := v["$env"]; !hasEnv {
			result.Errors = append(result.Errors, ValidationError{
				Path:    path,
				Message: fmt.Sprintf("%s reference must use {\"$env\": \"VAR_NAME\"} format", field),
			})
		}
	default:
		result.Errors = append(result.Errors, ValidationError{
			Path:    path,
			Message: fmt.Sprintf("%s must be a string or reference object, not %T", field, value),
		})
	}
}

// checkBashStyleSyntax recursively checks for bash-style env var syntax
func checkBashStyleSyntax(value any, path string, result *ValidationResult) {
	bashStyleRegex := regexp.MustCompile(`\$\{?[A-Z_][A-Z0-9_]*\}?`)

	switch v := value.(type) {
	case string:
		if matches := bashStyleRegex.FindAllString(v, -1); len(matches) > 0 {
			for _, match := range matches {
				varName := strings.Trim(match, "${}")
				result.Warnings = append(result.Warnings, ValidationError{
					Path:    path,
					Message: fmt.Sprintf("found bash-style syntax '%s' - use {\"$env\": \"%s\"} instead. Hint: JSON syntax prevents accidental shell expansion in scripts/CI and ensures unambiguous parsing", match, varName),
				})
			}
		}
	case map[string]any:
		// Skip if this is already an env ref
		if _, hasEnv := v["$env"]; hasEnv {
			return
		}

		for key, val := range v {
			newPath := path
			if newPath == "" {
				newPath = key
			} else {
				newPath = path + "." + key
			}
			checkBashStyleSyntax(val, newPath, result)
		}
	case []any:
		for i, item := range v {
			newPath := fmt.Sprintf("%s[%d]", path, i)
			checkBashStyleSyntax(item, newPath, result)
		}
	}
}
