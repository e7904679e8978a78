package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultBaseURL is where the assistant backend listens in development.
const DefaultBaseURL = "http://localhost:8000"

type Config struct {
	APIBaseURL string `json:"api_base_url"`
	DataDir    string `json:"data_dir"`
	LogLevel   string `json:"log_level"`
	Storage    struct {
		Backend string `json:"backend"`
		Path    string `json:"path,omitempty"`
	} `json:"storage"`
}

// StoragePath returns the configured storage path, or a file under DataDir
// named for the backend.
func (c *Config) StoragePath() string {
	if c.Storage.Path != "" {
		return c.Storage.Path
	}
	name := "state.json"
	if c.Storage.Backend == "sqlite" {
		name = "state.db"
	}
	return filepath.Join(c.DataDir, name)
}

func defaults() *Config {
	cfg := &Config{
		APIBaseURL: DefaultBaseURL,
		DataDir:    filepath.Join(os.Getenv("HOME"), ".connector"),
		LogLevel:   "info",
	}
	cfg.Storage.Backend = "file"
	return cfg
}

func Load(path string) (*Config, error) {
	cfg := defaults()

	// Load from file if exists, otherwise write defaults
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if os.IsNotExist(err) {
		if err := Save(path, cfg); err != nil {
			return nil, err
		}
	}

	// Override from env (highest precedence)
	if baseURL := os.Getenv("API_BASE_URL"); baseURL != "" {
		cfg.APIBaseURL = baseURL
	}
	if dataDir := os.Getenv("CONNECTOR_DATA_DIR"); dataDir != "" {
		cfg.DataDir = dataDir
	}
	if level := os.Getenv("CONNECTOR_LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")

	return cfg, nil
}

// Save writes cfg to path atomically, creating the directory if needed.
func Save(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return writeAtomic(path, data)
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}

// ToMap converts cfg to a nested map using its JSON field names.
func ToMap(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return m, nil
}

// ListValues returns the effective configuration as dot-flattened keys.
func ListValues(cfg *Config) (map[string]any, error) {
	m, err := ToMap(cfg)
	if err != nil {
		return nil, err
	}
	return Flatten(m), nil
}

// GetValue reads a dot-separated key from the config file at path. Keys
// the Config struct does not know about are still readable.
func GetValue(path, key string) (any, error) {
	if _, err := Load(path); err != nil {
		return nil, err
	}
	raw, err := readRaw(path)
	if err != nil {
		return nil, err
	}
	v, ok := Flatten(raw)[key]
	if !ok {
		return nil, fmt.Errorf("unknown config key: %s", key)
	}
	return v, nil
}

// SetValue writes a dot-separated key into the existing config file at
// path. The value is stored as JSON when it parses as JSON and as a plain
// string otherwise.
func SetValue(path, key, value string) error {
	raw, err := readRaw(path)
	if err != nil {
		return err
	}

	var parsed any
	if err := json.Unmarshal([]byte(value), &parsed); err != nil {
		parsed = value
	}

	flat := Flatten(raw)
	flat[key] = parsed

	data, err := json.MarshalIndent(Unflatten(flat), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return writeAtomic(path, data)
}

func readRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return m, nil
}
