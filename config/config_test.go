package config

import (
	"io/ioutil"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roundabci/consensus"
)

func TestDefaultConfig(t *testing.T) {
	assert := assert.New(t)

	cfg := DefaultConfig()
	assert.NoError(cfg.ValidateBasic())

	cfg.SetRoot("/foo")
	assert.Equal("/foo/data", cfg.DBDir())
	assert.Equal("/foo/config/participant_key.json", cfg.KeyFilePath())

	cfg.KeyFile = "/abs/key.json"
	assert.Equal("/abs/key.json", cfg.KeyFilePath())
}

func TestConfigValidateBasic(t *testing.T) {
	cfg := TestConfig()
	require.NoError(t, cfg.ValidateBasic())

	cfg.LogFormat = "xml"
	assert.Error(t, cfg.ValidateBasic())

	cfg = TestConfig()
	cfg.DBBackend = "rocksdb"
	assert.Error(t, cfg.ValidateBasic())

	cfg = TestConfig()
	cfg.Consensus.MaxParticipants = 0
	assert.Error(t, cfg.ValidateBasic())

	cfg = TestConfig()
	cfg.Consensus.TimeoutDeploySafe = -time.Second
	assert.Error(t, cfg.ValidateBasic())

	cfg = TestConfig()
	cfg.Instrumentation.Prometheus = true
	cfg.Instrumentation.PrometheusListenAddr = ""
	assert.Error(t, cfg.ValidateBasic())
}

func TestRoundTimeout(t *testing.T) {
	cfg := DefaultConsensusConfig()

	timeout, err := cfg.RoundTimeout(consensus.RoundCollectObservation)
	require.NoError(t, err)
	assert.Equal(t, cfg.TimeoutCollectObservation, timeout)

	timeout, err = cfg.RoundTimeout(consensus.RoundConsensusReached)
	require.NoError(t, err)
	assert.Equal(t, cfg.TimeoutConsensusReached, timeout)

	_, err = cfg.RoundTimeout(consensus.RoundID("nope"))
	assert.True(t, errors.Is(err, consensus.ErrUnknownRound))
}

// 写出去的toml能被viper重新读回来
func TestConfigFileRoundTrip(t *testing.T) {
	cfg := ResetTestRoot("config_test")
	defer RemoveTestRoot(cfg)

	bz, err := ioutil.ReadFile(cfg.ConfigFilePath())
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(bz), "max_participants = 3"))

	v := viper.New()
	v.SetConfigFile(cfg.ConfigFilePath())
	require.NoError(t, v.ReadInConfig())

	loaded := DefaultConfig()
	require.NoError(t, v.Unmarshal(loaded))
	assert.Equal(t, 3, loaded.Consensus.MaxParticipants)
	assert.Equal(t, 40*time.Millisecond, loaded.Consensus.TimeoutCollectObservation)
	assert.Equal(t, "memdb", loaded.DBBackend)
	assert.NoError(t, loaded.ValidateBasic())
}
