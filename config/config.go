package config

import (
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	tmdb "github.com/tendermint/tm-db"

	"roundabci/consensus"
)

const (
	// LogFormatPlain is a format for colored text
	LogFormatPlain = "plain"
	// LogFormatJSON is a format for json output
	LogFormatJSON = "json"

	// DefaultLogLevel defines a default log level as INFO.
	DefaultLogLevel = "info"

	DefaultDirPerm = 0700

	defaultConfigDir = "config"
	defaultDataDir   = "data"

	defaultConfigFileName = "config.toml"
	defaultKeyName        = "participant_key.json"
)

var (
	// DefaultHomeDir 可以在main里覆盖
	DefaultHomeDir = ".roundabci"

	defaultConfigFilePath = filepath.Join(defaultConfigDir, defaultConfigFileName)
	defaultKeyPath        = filepath.Join(defaultConfigDir, defaultKeyName)
)

// Config defines the top level configuration of a node.
type Config struct {
	// Top level options use an anonymous struct
	BaseConfig `mapstructure:",squash"`

	Consensus       *ConsensusConfig       `mapstructure:"consensus"`
	Instrumentation *InstrumentationConfig `mapstructure:"instrumentation"`
}

// DefaultConfig returns a default configuration for a node.
func DefaultConfig() *Config {
	return &Config{
		BaseConfig:      DefaultBaseConfig(),
		Consensus:       DefaultConsensusConfig(),
		Instrumentation: DefaultInstrumentationConfig(),
	}
}

// TestConfig returns a configuration that can be used for testing.
func TestConfig() *Config {
	return &Config{
		BaseConfig:      TestBaseConfig(),
		Consensus:       TestConsensusConfig(),
		Instrumentation: TestInstrumentationConfig(),
	}
}

// SetRoot sets the RootDir for all Config structs.
func (cfg *Config) SetRoot(root string) *Config {
	cfg.BaseConfig.RootDir = root
	return cfg
}

// ValidateBasic performs basic validation and returns an error if any check
// fails.
func (cfg *Config) ValidateBasic() error {
	if err := cfg.BaseConfig.ValidateBasic(); err != nil {
		return err
	}
	if err := cfg.Consensus.ValidateBasic(); err != nil {
		return errors.Wrap(err, "error in [consensus] section")
	}
	if err := cfg.Instrumentation.ValidateBasic(); err != nil {
		return errors.Wrap(err, "error in [instrumentation] section")
	}
	return nil
}

//-----------------------------------------------------------------------------
// BaseConfig

// BaseConfig defines the base configuration for a node.
type BaseConfig struct {
	// The root directory for all data.
	// This should be set in viper so it can unmarshal into this struct
	RootDir string `mapstructure:"home"`

	// A custom human readable name for this node
	Moniker string `mapstructure:"moniker"`

	// Address the ABCI server listens on for the consensus engine
	ProxyApp string `mapstructure:"proxy_app"`

	// Mechanism to connect to the ABCI application: socket | grpc
	ABCI string `mapstructure:"abci"`

	// Output level for logging
	LogLevel string `mapstructure:"log_level"`

	// Output format: 'plain' (colored text) or 'json'
	LogFormat string `mapstructure:"log_format"`

	// Database backend of the transition journal
	DBBackend string `mapstructure:"db_backend"`

	// Database directory
	DBPath string `mapstructure:"db_dir"`

	// Path to the JSON file containing the participant key
	KeyFile string `mapstructure:"participant_key_file"`
}

// DefaultBaseConfig returns a default base configuration for a node.
func DefaultBaseConfig() BaseConfig {
	return BaseConfig{
		Moniker:   "anonymous",
		ProxyApp:  "tcp://127.0.0.1:26658",
		ABCI:      "socket",
		LogLevel:  DefaultLogLevel,
		LogFormat: LogFormatPlain,
		DBBackend: string(tmdb.GoLevelDBBackend),
		DBPath:    defaultDataDir,
		KeyFile:   defaultKeyPath,
	}
}

// TestBaseConfig returns a base configuration for testing a node.
func TestBaseConfig() BaseConfig {
	cfg := DefaultBaseConfig()
	cfg.Moniker = "test"
	cfg.ProxyApp = "tcp://127.0.0.1:0"
	cfg.DBBackend = string(tmdb.MemDBBackend)
	return cfg
}

// DBDir returns the full path to the database directory.
func (cfg BaseConfig) DBDir() string {
	return rootify(cfg.DBPath, cfg.RootDir)
}

// KeyFilePath returns the full path to the participant key file.
func (cfg BaseConfig) KeyFilePath() string {
	return rootify(cfg.KeyFile, cfg.RootDir)
}

// ConfigFilePath returns the full path to config.toml.
func (cfg BaseConfig) ConfigFilePath() string {
	return rootify(defaultConfigFilePath, cfg.RootDir)
}

func (cfg BaseConfig) ValidateBasic() error {
	switch cfg.LogFormat {
	case LogFormatPlain, LogFormatJSON:
	default:
		return errors.New("unknown log_format (must be 'plain' or 'json')")
	}
	switch cfg.ABCI {
	case "socket", "grpc":
	default:
		return errors.Errorf("unknown abci transport %q (must be 'socket' or 'grpc')", cfg.ABCI)
	}
	switch tmdb.BackendType(cfg.DBBackend) {
	case tmdb.GoLevelDBBackend, tmdb.MemDBBackend:
	default:
		return errors.Errorf("unsupported db_backend %q", cfg.DBBackend)
	}
	if cfg.ProxyApp == "" {
		return errors.New("proxy_app can't be empty")
	}
	return nil
}

//-----------------------------------------------------------------------------
// ConsensusConfig

// ConsensusConfig holds the consensus parameters of the application and the
// round timeouts.
//
// The timeouts are not enforced by the application itself; the external
// timeout layer reads them and calls ForceTransition when one expires.
type ConsensusConfig struct {
	MaxParticipants int `mapstructure:"max_participants"`

	TimeoutRegistration       time.Duration `mapstructure:"timeout_registration"`
	TimeoutDeploySafe         time.Duration `mapstructure:"timeout_deploy_safe"`
	TimeoutCollectObservation time.Duration `mapstructure:"timeout_collect_observation"`
	TimeoutEstimateConsensus  time.Duration `mapstructure:"timeout_estimate_consensus"`
	TimeoutCollectSignature   time.Duration `mapstructure:"timeout_collect_signature"`
	TimeoutConsensusReached   time.Duration `mapstructure:"timeout_consensus_reached"`

	// Number of verified transactions remembered between CheckTx and DeliverTx
	VerifiedTxCacheSize int `mapstructure:"verified_tx_cache_size"`
}

func DefaultConsensusConfig() *ConsensusConfig {
	return &ConsensusConfig{
		MaxParticipants:           4,
		TimeoutRegistration:       30 * time.Second,
		TimeoutDeploySafe:         30 * time.Second,
		TimeoutCollectObservation: 10 * time.Second,
		TimeoutEstimateConsensus:  10 * time.Second,
		TimeoutCollectSignature:   10 * time.Second,
		TimeoutConsensusReached:   60 * time.Second,
		VerifiedTxCacheSize:       10000,
	}
}

func TestConsensusConfig() *ConsensusConfig {
	cfg := DefaultConsensusConfig()
	cfg.MaxParticipants = 3
	cfg.TimeoutRegistration = 100 * time.Millisecond
	cfg.TimeoutDeploySafe = 100 * time.Millisecond
	cfg.TimeoutCollectObservation = 40 * time.Millisecond
	cfg.TimeoutEstimateConsensus = 40 * time.Millisecond
	cfg.TimeoutCollectSignature = 40 * time.Millisecond
	cfg.TimeoutConsensusReached = 200 * time.Millisecond
	cfg.VerifiedTxCacheSize = 100
	return cfg
}

// RoundTimeout returns how long the given round may last before the
// external layer should force it out.
func (cfg *ConsensusConfig) RoundTimeout(id consensus.RoundID) (time.Duration, error) {
	switch id {
	case consensus.RoundRegistration:
		return cfg.TimeoutRegistration, nil
	case consensus.RoundDeploySafe:
		return cfg.TimeoutDeploySafe, nil
	case consensus.RoundCollectObservation:
		return cfg.TimeoutCollectObservation, nil
	case consensus.RoundEstimateConsensus:
		return cfg.TimeoutEstimateConsensus, nil
	case consensus.RoundCollectSignature:
		return cfg.TimeoutCollectSignature, nil
	case consensus.RoundConsensusReached:
		return cfg.TimeoutConsensusReached, nil
	default:
		return 0, errors.Wrapf(consensus.ErrUnknownRound, "%q", id)
	}
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *ConsensusConfig) ValidateBasic() error {
	if cfg.MaxParticipants <= 0 {
		return errors.New("max_participants must be positive")
	}
	timeouts := map[string]time.Duration{
		"timeout_registration":        cfg.TimeoutRegistration,
		"timeout_deploy_safe":         cfg.TimeoutDeploySafe,
		"timeout_collect_observation": cfg.TimeoutCollectObservation,
		"timeout_estimate_consensus":  cfg.TimeoutEstimateConsensus,
		"timeout_collect_signature":   cfg.TimeoutCollectSignature,
		"timeout_consensus_reached":   cfg.TimeoutConsensusReached,
	}
	for name, timeout := range timeouts {
		if timeout < 0 {
			return errors.Errorf("%s can't be negative", name)
		}
	}
	if cfg.VerifiedTxCacheSize <= 0 {
		return errors.New("verified_tx_cache_size must be positive")
	}
	return nil
}

//-----------------------------------------------------------------------------
// InstrumentationConfig

// InstrumentationConfig defines the configuration for metrics reporting.
type InstrumentationConfig struct {
	// When true, Prometheus metrics are served under /metrics on
	// PrometheusListenAddr.
	Prometheus bool `mapstructure:"prometheus"`

	// Address to listen for Prometheus collector(s) connections.
	PrometheusListenAddr string `mapstructure:"prometheus_listen_addr"`

	// Instrumentation namespace.
	Namespace string `mapstructure:"namespace"`
}

func DefaultInstrumentationConfig() *InstrumentationConfig {
	return &InstrumentationConfig{
		Prometheus:           false,
		PrometheusListenAddr: ":26660",
		Namespace:            "roundabci",
	}
}

func TestInstrumentationConfig() *InstrumentationConfig {
	return DefaultInstrumentationConfig()
}

func (cfg *InstrumentationConfig) ValidateBasic() error {
	if cfg.Prometheus && cfg.PrometheusListenAddr == "" {
		return errors.New("prometheus_listen_addr can't be empty when prometheus is enabled")
	}
	return nil
}

//-----------------------------------------------------------------------------
// Utils

// helper function to make config creation independent of root dir
func rootify(path, root string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}
