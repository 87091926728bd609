package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Provider defines the interface for configuration data sources
type Provider interface {
	// Load complete configuration
	LoadConfig() (*Data, error)

	// Configuration management (for future writable backends)
	IsReadOnly() bool
	Close() error
}

// NewProvider creates a configuration provider based on the file extension.
func NewProvider(path string) (Provider, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return NewYAMLProvider(path), nil
	default:
		return nil, fmt.Errorf("unsupported config file type: %s", path)
	}
}
