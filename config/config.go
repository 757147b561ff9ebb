// Package config handles application configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"
)

const (
	appName        = "prakriti"
	configFileName = "config.json"
)

// Config represents the application configuration.
type Config struct {
	Server   ServerConfig   `json:"server"`
	UserID   string         `json:"user_id"` // conversation the history is kept under
	Audio    AudioConfig    `json:"audio"`
	Speech   SpeechConfig   `json:"speech"`
	STT      STTConfig      `json:"stt"`
	Storage  StorageConfig  `json:"storage"`
	Location LocationConfig `json:"location"`

	// HistoryDir holds the message database. Defaults to <config dir>/history.
	HistoryDir string `json:"history_dir,omitempty"`

	Credentials []APICredential `json:"credentials,omitempty"`

	path string
}

// ServerConfig locates the live chat backend.
type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	Path string `json:"path"`
}

// AudioConfig tunes recording and silence detection.
//
// Encoding is "wav" or "opus" (Ogg). The MIME type travels with the audio,
// but a backend that labels every payload audio/webm only sniffs the
// container; opus is the closer match there.
type AudioConfig struct {
	SampleRate     int      `json:"sample_rate"`
	Threshold      float64  `json:"vad_threshold"`
	QuietWindowMS  int      `json:"quiet_window_ms"`
	Encoding       string   `json:"encoding"`
	PushToTalkKeys []string `json:"push_to_talk_keys,omitempty"`
}

// QuietWindow returns the silence that ends an utterance.
func (a AudioConfig) QuietWindow() time.Duration {
	return time.Duration(a.QuietWindowMS) * time.Millisecond
}

// SpeechConfig selects how replies are spoken.
type SpeechConfig struct {
	Engine       string  `json:"engine"` // "system", "openai" or "off"
	CredentialID string  `json:"credential_id,omitempty"`
	Model        string  `json:"model,omitempty"`
	Voice        string  `json:"voice,omitempty"`
	Rate         float64 `json:"rate,omitempty"`
}

// STTConfig enables captions for voice turns.
type STTConfig struct {
	CredentialID string `json:"credential_id,omitempty"`
	Model        string `json:"model,omitempty"`
}

// StorageConfig selects where image attachments go.
type StorageConfig struct {
	Backend string `json:"backend"` // "local" or "s3"
	Dir     string `json:"dir,omitempty"`

	Bucket          string `json:"bucket,omitempty"`
	Region          string `json:"region,omitempty"`
	Endpoint        string `json:"endpoint,omitempty"`
	AccessKeyID     string `json:"access_key_id,omitempty"`
	SecretAccessKey string `json:"secret_access_key,omitempty"`
	PublicBaseURL   string `json:"public_base_url,omitempty"`
}

// LocationConfig controls the position reported on connect.
type LocationConfig struct {
	Mode      string  `json:"mode"` // "ip", "static" or "off"
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
	LookupURL string  `json:"lookup_url,omitempty"`
}

// APICredential is an API key shared by the services that need one.
type APICredential struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"` // "openai" or "openai-compatible"
	BaseURL string `json:"base_url,omitempty"`
	APIKey  string `json:"api_key"`
}

// Load loads configuration from path, or from the default location when
// path is empty. Returns the default config if the file doesn't exist.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("get config path: %w", err)
		}
		path = p
	}

	cfg := defaultConfig()
	cfg.path = path

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save persists the configuration to disk.
func (c *Config) Save() error {
	path := c.path
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return fmt.Errorf("get config path: %w", err)
		}
		path = p
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// Path returns the file the configuration is loaded from and saved to.
func (c *Config) Path() string {
	return c.path
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	switch c.Audio.Encoding {
	case "wav", "opus":
	default:
		errs = append(errs, fmt.Errorf("audio.encoding %q: want wav or opus", c.Audio.Encoding))
	}
	switch c.Speech.Engine {
	case "system", "off":
	case "openai":
		if c.GetCredential(c.Speech.CredentialID) == nil {
			errs = append(errs, fmt.Errorf("speech.credential_id %q not found", c.Speech.CredentialID))
		}
	default:
		errs = append(errs, fmt.Errorf("speech.engine %q: want system, openai or off", c.Speech.Engine))
	}
	switch c.Storage.Backend {
	case "local":
	case "s3":
		if c.Storage.Bucket == "" {
			errs = append(errs, errors.New("storage.bucket required for s3"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.backend %q: want local or s3", c.Storage.Backend))
	}
	switch c.Location.Mode {
	case "ip", "off":
	case "static":
		if c.Location.Latitude < -90 || c.Location.Latitude > 90 ||
			c.Location.Longitude < -180 || c.Location.Longitude > 180 {
			errs = append(errs, errors.New("location: coordinates out of range"))
		}
	default:
		errs = append(errs, fmt.Errorf("location.mode %q: want ip, static or off", c.Location.Mode))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Helper functions

// DefaultPath returns <user config dir>/prakriti/config.json.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// Dir returns the application's configuration directory.
func Dir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, appName), nil
}

func defaultConfig() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "localhost"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Server.Path == "" {
		c.Server.Path = "/ws/live-chat"
	}
	if c.UserID == "" {
		c.UserID = "default"
	}
	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = 16000
	}
	if c.Audio.Threshold == 0 {
		c.Audio.Threshold = 8
	}
	if c.Audio.QuietWindowMS == 0 {
		c.Audio.QuietWindowMS = 2000
	}
	if c.Audio.Encoding == "" {
		c.Audio.Encoding = "wav"
	}
	if c.Speech.Engine == "" {
		c.Speech.Engine = "system"
	}
	if c.Speech.Rate == 0 {
		c.Speech.Rate = 0.9
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "local"
	}
	if c.Location.Mode == "" {
		c.Location.Mode = "ip"
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// API Credential Management
// ─────────────────────────────────────────────────────────────────────────────

// GetCredential returns a credential by ID.
func (c *Config) GetCredential(id string) *APICredential {
	if id == "" {
		return nil
	}
	for i := range c.Credentials {
		if c.Credentials[i].ID == id {
			return &c.Credentials[i]
		}
	}
	return nil
}

// AddCredential adds a new API credential and returns its ID.
func (c *Config) AddCredential(cred APICredential) (string, error) {
	if cred.Name == "" {
		return "", fmt.Errorf("credential name required")
	}
	if cred.APIKey == "" {
		return "", fmt.Errorf("api key required")
	}
	if cred.Type == "openai-compatible" && cred.BaseURL == "" {
		return "", fmt.Errorf("base url required for openai-compatible")
	}
	if cred.Type == "" {
		cred.Type = "openai"
	}

	if cred.ID == "" {
		cred.ID = uuid.New().String()
	}

	c.Credentials = append(c.Credentials, cred)
	return cred.ID, c.Save()
}

// RemoveCredential removes a credential by ID.
// Returns error if credential is in use by speech or captioning.
func (c *Config) RemoveCredential(id string) error {
	if c.Speech.CredentialID == id {
		return fmt.Errorf("credential in use by speech config")
	}
	if c.STT.CredentialID == id {
		return fmt.Errorf("credential in use by stt config")
	}

	idx := slices.IndexFunc(c.Credentials, func(x APICredential) bool {
		return x.ID == id
	})
	if idx == -1 {
		return fmt.Errorf("credential not found: %s", id)
	}

	c.Credentials = slices.Delete(c.Credentials, idx, idx+1)
	return c.Save()
}
