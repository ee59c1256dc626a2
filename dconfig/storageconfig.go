package dconfig

import (
	"os"
	"time"

	"go.dataops.dev/storagekind"
	"gopkg.in/yaml.v3"
)

// StorageConfigFile is the top-level shape of the YAML configuration
// described in spec.md §6: a named map of backend bindings plus the
// pool/performance knobs applied across them.
type StorageConfigFile struct {
	StorageConfigs map[string]BindingConfig `yaml:"storage_configs"`
	ModelDefaults  map[string]any           `yaml:"model_defaults"`
	ConnectionPools PoolLimits              `yaml:"connection_pools"`
	Performance    map[string]any           `yaml:"performance"`
}

// BindingConfig is the YAML representation of a storagekind.BackendBinding,
// decoded after LoadStorageConfigFile has expanded environment-variable
// references across the whole document text.
type BindingConfig struct {
	Kind             string         `yaml:"kind"`
	Host             string         `yaml:"host"`
	Port             int            `yaml:"port"`
	Database         string         `yaml:"database"`
	Username         string         `yaml:"username"`
	Password         string         `yaml:"password"`
	TimeoutSeconds   int            `yaml:"timeout_seconds"`
	Options          map[string]any `yaml:"options"`
	ConnectionString string         `yaml:"connection_string"`
}

// PoolLimits mirrors spec.md §5's per-adapter connection pool sizing.
type PoolLimits struct {
	RelationalMax int `yaml:"relational_max"`
	VectorMax     int `yaml:"vector_max"`
	DynamicMax    int `yaml:"relational_dynamic_max"`
	CacheMax      int `yaml:"cache_max"`
}

// DefaultPoolLimits matches spec.md §5's stated defaults.
func DefaultPoolLimits() PoolLimits {
	return PoolLimits{
		RelationalMax: 10,
		VectorMax:     10,
		DynamicMax:    20,
		CacheMax:      50,
	}
}

// LoadStorageConfigFile reads and decodes a storage configuration file,
// expanding ${VAR:-default} references in every string field before YAML
// parses the document.
func LoadStorageConfigFile(path string) (*StorageConfigFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	expanded := ExpandDefaults(string(raw))

	var cfg StorageConfigFile
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}
	if cfg.ConnectionPools == (PoolLimits{}) {
		cfg.ConnectionPools = DefaultPoolLimits()
	}
	return &cfg, nil
}

// ToBinding converts a decoded BindingConfig into a storagekind.BackendBinding,
// applying the kind's default port when none was configured.
func (bc BindingConfig) ToBinding() storagekind.BackendBinding {
	kind := storagekind.Kind(bc.Kind)
	port := bc.Port
	if port == 0 {
		port = storagekind.DefaultPort(kind)
	}
	return storagekind.BackendBinding{
		Kind:             kind,
		Host:             bc.Host,
		Port:             port,
		Database:         bc.Database,
		Username:         bc.Username,
		Password:         bc.Password,
		Timeout:          secondsOrDefault(bc.TimeoutSeconds),
		Options:          bc.Options,
		ConnectionString: bc.ConnectionString,
	}
}

func secondsOrDefault(n int) time.Duration {
	if n <= 0 {
		return 30 * time.Second
	}
	return time.Duration(n) * time.Second
}
