package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgellow/mailsift/internal/crypto"
	"github.com/dgellow/mailsift/internal/log"
)

// UnmarshalJSON implements custom unmarshaling for ServerConfig
func (s *ServerConfig) UnmarshalJSON(data []byte) error {
	// Use a raw type to parse references
	type rawServer struct {
		Addr           json.RawMessage `json:"addr"`
		BaseURL        json.RawMessage `json:"baseURL"`
		AllowedOrigins []string        `json:"allowedOrigins"`
		MaxUploadBytes int64           `json:"maxUploadBytes"`
		TrustProxy     bool            `json:"trustProxy"`
	}

	var raw rawServer
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	s.AllowedOrigins = raw.AllowedOrigins
	s.MaxUploadBytes = raw.MaxUploadBytes
	s.TrustProxy = raw.TrustProxy

	if raw.Addr != nil {
		addr, err := ParseConfigValue(raw.Addr)
		if err != nil {
			return fmt.Errorf("parsing addr: %w", err)
		}
		s.Addr = addr
	}

	if raw.BaseURL != nil {
		baseURL, err := ParseConfigValue(raw.BaseURL)
		if err != nil {
			return fmt.Errorf("parsing baseURL: %w", err)
		}
		s.BaseURL = baseURL
	}

	if s.MaxUploadBytes < 0 {
		return fmt.Errorf("maxUploadBytes cannot be negative")
	}

	return nil
}

// UnmarshalJSON implements custom unmarshaling for AdminConfig
func (a *AdminConfig) UnmarshalJSON(data []byte) error {
	// Use type alias to avoid recursion
	type rawAdmin AdminConfig
	var raw rawAdmin

	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*a = AdminConfig(raw)

	if a.TokenRaw == nil {
		return nil
	}

	token, err := ParseConfigValue(a.TokenRaw)
	if err != nil {
		return fmt.Errorf("parsing token: %w", err)
	}
	if token == "" {
		return nil
	}

	// Accept a pre-hashed value; hash anything else so the plaintext never
	// outlives config loading
	if crypto.IsBcryptHash(token) {
		a.HashedToken = Secret(token)
		return nil
	}

	log.LogTraceWithFields("config", "Hashing admin token", nil)
	hashed, err := crypto.HashToken(token)
	if err != nil {
		return fmt.Errorf("hashing token: %w", err)
	}
	a.HashedToken = Secret(hashed)

	return nil
}

// UnmarshalJSON implements custom unmarshaling for FirestoreConfig
func (f *FirestoreConfig) UnmarshalJSON(data []byte) error {
	// Use type alias to avoid recursion
	type rawFirestore FirestoreConfig
	var raw rawFirestore

	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*f = FirestoreConfig(raw)

	if f.ProjectIDRaw != nil {
		projectID, err := ParseConfigValue(f.ProjectIDRaw)
		if err != nil {
			return fmt.Errorf("parsing projectID: %w", err)
		}
		f.ProjectID = projectID
	}

	if f.CredentialsJSONRaw != nil {
		creds, err := ParseConfigValue(f.CredentialsJSONRaw)
		if err != nil {
			return fmt.Errorf("parsing credentialsJSON: %w", err)
		}
		f.CredentialsJSON = Secret(creds)
	}

	return nil
}

// UnmarshalJSON implements custom unmarshaling for RetentionConfig
func (r *RetentionConfig) UnmarshalJSON(data []byte) error {
	var raw struct {
		MaxAge        string `json:"maxAge"`
		MaxEntries    *int   `json:"maxEntries"` // Pointer to detect explicit 0
		SweepInterval string `json:"sweepInterval"`
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	// Parse maxAge if present
	if raw.MaxAge != "" {
		maxAge, err := time.ParseDuration(raw.MaxAge)
		if err != nil {
			return fmt.Errorf("parsing maxAge: %w", err)
		}
		r.MaxAge = maxAge
	}

	// Parse sweepInterval if present
	if raw.SweepInterval != "" {
		interval, err := time.ParseDuration(raw.SweepInterval)
		if err != nil {
			return fmt.Errorf("parsing sweepInterval: %w", err)
		}
		r.SweepInterval = interval
	}

	// Set MaxEntries if present (0 is a valid value, means unbounded)
	if raw.MaxEntries != nil {
		r.MaxEntries = *raw.MaxEntries
	}

	return nil
}

// UnmarshalJSON implements custom unmarshaling for StorageConfig
func (s *StorageConfig) UnmarshalJSON(data []byte) error {
	// Use a raw type to parse references
	type rawStorage struct {
		Type      StorageType      `json:"type"`
		OutputDir json.RawMessage  `json:"outputDir"`
		Firestore *FirestoreConfig `json:"firestore"`
		Retention *RetentionConfig `json:"retention"`
	}

	var raw rawStorage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	s.Type = raw.Type
	s.Firestore = raw.Firestore
	s.Retention = raw.Retention

	if raw.OutputDir != nil {
		dir, err := ParseConfigValue(raw.OutputDir)
		if err != nil {
			return fmt.Errorf("parsing outputDir: %w", err)
		}
		s.OutputDir = dir
	}

	// Apply defaults for Firestore configuration
	if s.Type == StorageTypeFirestore && s.Firestore != nil {
		if s.Firestore.Database == "" {
			s.Firestore.Database = "(default)"
		}
		if s.Firestore.CollectionPrefix == "" {
			s.Firestore.CollectionPrefix = "mailsift_"
		}
	}

	return nil
}
