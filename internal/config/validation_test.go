package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findIssue(issues []ValidationError, path string) *ValidationError {
	for i := range issues {
		if issues[i].Path == path {
			return &issues[i]
		}
	}
	return nil
}

func TestValidateFile_Valid(t *testing.T) {
	path := writeConfigFile(t, `{
		"version": "v1",
		"server": {
			"addr": ":8080",
			"allowedOrigins": ["https://app.example.com"]
		},
		"admin": {
			"token": {"$env": "MAILSIFT_ADMIN_TOKEN"}
		},
		"storage": {
			"type": "filesystem",
			"outputDir": "outputs",
			"retention": {"maxAge": "720h", "maxEntries": 200, "sweepInterval": "1h"}
		},
		"extract": {
			"encodings": ["utf-8", "latin-1"],
			"historyLimit": 20
		},
		"mcp": {"enabled": true, "basePath": "/mcp"}
	}`)

	result, err := ValidateFile(path)
	require.NoError(t, err)
	assert.True(t, result.IsValid(), "unexpected errors: %v", result.Errors)
	assert.Empty(t, result.Warnings)
}

func TestValidateFile_NoEnvVarsRequired(t *testing.T) {
	// Validation must not resolve references, so it works in environments
	// where the variables are not set
	path := writeConfigFile(t, `{
		"version": "v1",
		"server": {"addr": {"$env": "MAILSIFT_TEST_UNSET_ADDR"}}
	}`)

	result, err := ValidateFile(path)
	require.NoError(t, err)
	assert.True(t, result.IsValid(), "unexpected errors: %v", result.Errors)
}

func TestValidateFile_InvalidJSON(t *testing.T) {
	path := writeConfigFile(t, `{not json`)

	result, err := ValidateFile(path)
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Message, "invalid JSON")
}

func TestValidateFile_Version(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		path := writeConfigFile(t, `{"server": {"addr": ":8080"}}`)
		result, err := ValidateFile(path)
		require.NoError(t, err)

		issue := findIssue(result.Errors, "version")
		require.NotNil(t, issue)
		assert.Contains(t, issue.Message, `Add "version": "v1"`)
	})

	t.Run("unsupported", func(t *testing.T) {
		path := writeConfigFile(t, `{"version": "v0"}`)
		result, err := ValidateFile(path)
		require.NoError(t, err)

		issue := findIssue(result.Errors, "version")
		require.NotNil(t, issue)
		assert.Contains(t, issue.Message, "unsupported version 'v0'")
	})
}

func TestValidateFile_BashStyleSyntaxWarning(t *testing.T) {
	path := writeConfigFile(t, `{
		"version": "v1",
		"server": {"baseURL": "https://$MAILSIFT_HOST"}
	}`)

	result, err := ValidateFile(path)
	require.NoError(t, err)
	assert.True(t, result.IsValid())

	issue := findIssue(result.Warnings, "server.baseURL")
	require.NotNil(t, issue)
	assert.Contains(t, issue.Message, `use {"$env": "MAILSIFT_HOST"} instead`)
}

func TestValidateFile_AdminToken(t *testing.T) {
	t.Run("plaintext rejected", func(t *testing.T) {
		path := writeConfigFile(t, `{
			"version": "v1",
			"admin": {"token": "plaintext"}
		}`)
		result, err := ValidateFile(path)
		require.NoError(t, err)

		issue := findIssue(result.Errors, "admin.token")
		require.NotNil(t, issue)
		assert.Contains(t, issue.Message, "pre-hashed bcrypt value")
	})

	t.Run("bcrypt hash accepted", func(t *testing.T) {
		path := writeConfigFile(t, `{
			"version": "v1",
			"admin": {"token": "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"}
		}`)
		result, err := ValidateFile(path)
		require.NoError(t, err)
		assert.True(t, result.IsValid(), "unexpected errors: %v", result.Errors)
	})

	t.Run("empty admin section warns", func(t *testing.T) {
		path := writeConfigFile(t, `{"version": "v1", "admin": {}}`)
		result, err := ValidateFile(path)
		require.NoError(t, err)
		assert.True(t, result.IsValid())

		issue := findIssue(result.Warnings, "admin")
		require.NotNil(t, issue)
		assert.Contains(t, issue.Message, "clear-history stays unauthenticated")
	})
}

func TestValidateFile_Storage(t *testing.T) {
	t.Run("unknown type", func(t *testing.T) {
		path := writeConfigFile(t, `{"version": "v1", "storage": {"type": "s3"}}`)
		result, err := ValidateFile(path)
		require.NoError(t, err)

		issue := findIssue(result.Errors, "storage.type")
		require.NotNil(t, issue)
		assert.Contains(t, issue.Message, "unknown storage type 's3'")
	})

	t.Run("firestore requires projectID", func(t *testing.T) {
		path := writeConfigFile(t, `{
			"version": "v1",
			"storage": {"type": "firestore", "firestore": {}}
		}`)
		result, err := ValidateFile(path)
		require.NoError(t, err)

		issue := findIssue(result.Errors, "storage.firestore.projectID")
		require.NotNil(t, issue)
	})

	t.Run("inline credentials rejected", func(t *testing.T) {
		path := writeConfigFile(t, `{
			"version": "v1",
			"storage": {
				"type": "firestore",
				"firestore": {
					"projectID": "my-project",
					"credentialsJSON": "{\"type\":\"service_account\"}"
				}
			}
		}`)
		result, err := ValidateFile(path)
		require.NoError(t, err)

		issue := findIssue(result.Errors, "storage.firestore.credentialsJSON")
		require.NotNil(t, issue)
		assert.Contains(t, issue.Message, "never inline service account keys")
	})

	t.Run("bad retention duration", func(t *testing.T) {
		path := writeConfigFile(t, `{
			"version": "v1",
			"storage": {"retention": {"maxAge": "one week"}}
		}`)
		result, err := ValidateFile(path)
		require.NoError(t, err)

		issue := findIssue(result.Errors, "storage.retention.maxAge")
		require.NotNil(t, issue)
		assert.Contains(t, issue.Message, "invalid duration 'one week'")
	})
}

func TestValidateFile_Extract(t *testing.T) {
	t.Run("unknown encoding", func(t *testing.T) {
		path := writeConfigFile(t, `{
			"version": "v1",
			"extract": {"encodings": ["utf-8", "ebcdic"]}
		}`)
		result, err := ValidateFile(path)
		require.NoError(t, err)

		issue := findIssue(result.Errors, "extract.encodings")
		require.NotNil(t, issue)
		assert.Contains(t, issue.Message, "Supported: utf-8")
	})

	t.Run("negative history limit", func(t *testing.T) {
		path := writeConfigFile(t, `{
			"version": "v1",
			"extract": {"historyLimit": -5}
		}`)
		result, err := ValidateFile(path)
		require.NoError(t, err)

		issue := findIssue(result.Errors, "extract.historyLimit")
		require.NotNil(t, issue)
	})
}

func TestValidateFile_MCP(t *testing.T) {
	path := writeConfigFile(t, `{
		"version": "v1",
		"mcp": {"enabled": true, "basePath": "mcp"}
	}`)
	result, err := ValidateFile(path)
	require.NoError(t, err)

	issue := findIssue(result.Errors, "mcp.basePath")
	require.NotNil(t, issue)
	assert.Contains(t, issue.Message, "must start with /")
}
