package config

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"text/template"

	tmos "github.com/tendermint/tendermint/libs/os"
)

var configTemplate *template.Template

func init() {
	var err error
	tmpl := template.New("configFileTemplate")
	if configTemplate, err = tmpl.Parse(defaultConfigTemplate); err != nil {
		panic(err)
	}
}

/****** these are for production settings ***********/

// EnsureRoot creates the root, config, and data directories if they don't
// exist, and panics if it fails.
func EnsureRoot(rootDir string) {
	if err := tmos.EnsureDir(rootDir, DefaultDirPerm); err != nil {
		panic(err.Error())
	}
	if err := tmos.EnsureDir(filepath.Join(rootDir, defaultConfigDir), DefaultDirPerm); err != nil {
		panic(err.Error())
	}
	if err := tmos.EnsureDir(filepath.Join(rootDir, defaultDataDir), DefaultDirPerm); err != nil {
		panic(err.Error())
	}
}

// WriteConfigFile renders config using the template and writes it to
// configFilePath.
func WriteConfigFile(configFilePath string, config *Config) {
	var buffer bytes.Buffer

	if err := configTemplate.Execute(&buffer, config); err != nil {
		panic(err)
	}

	tmos.MustWriteFile(configFilePath, buffer.Bytes(), 0644)
}

// Note: any changes to the comments/variables/mapstructure
// must be reflected in the appropriate struct in config/config.go
const defaultConfigTemplate = `# This is a TOML config file.
# For more information, see https://github.com/toml-lang/toml

#######################################################################
###                   Main Base Config Options                      ###
#######################################################################

# A custom human readable name for this node
moniker = "{{ .BaseConfig.Moniker }}"

# Address the ABCI server listens on for the consensus engine
proxy_app = "{{ .BaseConfig.ProxyApp }}"

# Mechanism to connect to the ABCI application: socket | grpc
abci = "{{ .BaseConfig.ABCI }}"

# Output level for logging, including package level options
log_level = "{{ .BaseConfig.LogLevel }}"

# Output format: 'plain' (colored text) or 'json'
log_format = "{{ .BaseConfig.LogFormat }}"

# Database backend of the transition journal: goleveldb | memdb
db_backend = "{{ .BaseConfig.DBBackend }}"

# Database directory
db_dir = "{{ js .BaseConfig.DBPath }}"

# Path to the JSON file containing the participant key
participant_key_file = "{{ js .BaseConfig.KeyFile }}"

#######################################################
###         Consensus Configuration Options         ###
#######################################################
[consensus]

# Number of participants the registration round waits for
max_participants = {{ .Consensus.MaxParticipants }}

# How long each round may last before the timeout layer forces it out
timeout_registration = "{{ .Consensus.TimeoutRegistration }}"
timeout_deploy_safe = "{{ .Consensus.TimeoutDeploySafe }}"
timeout_collect_observation = "{{ .Consensus.TimeoutCollectObservation }}"
timeout_estimate_consensus = "{{ .Consensus.TimeoutEstimateConsensus }}"
timeout_collect_signature = "{{ .Consensus.TimeoutCollectSignature }}"
timeout_consensus_reached = "{{ .Consensus.TimeoutConsensusReached }}"

# Number of verified transactions remembered between CheckTx and DeliverTx
verified_tx_cache_size = {{ .Consensus.VerifiedTxCacheSize }}

#######################################################
###       Instrumentation Configuration Options     ###
#######################################################
[instrumentation]

# When true, Prometheus metrics are served under /metrics on
# PrometheusListenAddr.
prometheus = {{ .Instrumentation.Prometheus }}

# Address to listen for Prometheus collector(s) connections
prometheus_listen_addr = "{{ .Instrumentation.PrometheusListenAddr }}"

# Instrumentation namespace
namespace = "{{ .Instrumentation.Namespace }}"
`

/****** these are for test settings ***********/

// ResetTestRoot creates a fresh root directory with a test config file and
// returns the matching config.
func ResetTestRoot(testName string) *Config {
	rootDir, err := ioutil.TempDir("", fmt.Sprintf("%s-%s_", DefaultHomeDir, testName))
	if err != nil {
		panic(err)
	}

	EnsureRoot(rootDir)

	config := TestConfig().SetRoot(rootDir)
	configFilePath := config.ConfigFilePath()
	if !tmos.FileExists(configFilePath) {
		WriteConfigFile(configFilePath, config)
	}
	return config
}

// RemoveTestRoot removes a root created by ResetTestRoot.
func RemoveTestRoot(config *Config) {
	os.RemoveAll(config.RootDir)
}
