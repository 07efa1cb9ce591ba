package node

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	abcitypes "github.com/tendermint/tendermint/abci/types"
	"github.com/tendermint/tendermint/libs/log"
	tmproto "github.com/tendermint/tendermint/proto/tendermint/types"
	tmdb "github.com/tendermint/tm-db"

	"roundabci/app"
	cfg "roundabci/config"
	"roundabci/consensus"
	"roundabci/privval"
	"roundabci/store"
	"roundabci/types"
)

func registerAll(t *testing.T, n *Node, height int64) {
	application := n.Application()
	application.BeginBlock(abcitypes.RequestBeginBlock{Header: tmproto.Header{Height: height}})
	for i := 0; i < n.Config().Consensus.MaxParticipants; i++ {
		pv := privval.GenFilePVWithSeed("", []byte(fmt.Sprintf("node-test-%d", i)))
		tx, err := pv.SignPayload(types.NewRegistrationPayload(pv.GetAddress()))
		require.NoError(t, err)
		bz, err := types.EncodeTx(tx)
		require.NoError(t, err)
		res := application.DeliverTx(abcitypes.RequestDeliverTx{Tx: bz})
		require.Equal(t, app.CodeTypeOK, res.Code, res.Log)
	}
	application.EndBlock(abcitypes.RequestEndBlock{Height: height})
	application.Commit()
}

func TestNodeStartStop(t *testing.T) {
	defer leaktest.CheckTimeout(t, 10*time.Second)()

	config := cfg.ResetTestRoot("node_node_test")
	defer cfg.RemoveTestRoot(config)

	n, err := DefaultNewNode(config, log.TestingLogger())
	require.NoError(t, err)
	require.NoError(t, n.Start())

	registerAll(t, n, 1)
	assert.Equal(t, consensus.RoundDeploySafe, n.Driver().CurrentRoundID())

	// 切换会同步写进历史存储
	records, err := n.History().List()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "registration", records[0].From)
	assert.Equal(t, "deploy_safe", records[0].To)
	assert.EqualValues(t, 1, records[0].Height)
	assert.Equal(t, n.Driver().LatestState().Hash(), []byte(records[0].AppHash))

	require.NoError(t, n.Stop())
}

func TestNodeMetricsHandler(t *testing.T) {
	config := cfg.ResetTestRoot("node_metrics_test")
	defer cfg.RemoveTestRoot(config)

	n, err := DefaultNewNode(config, log.TestingLogger())
	require.NoError(t, err)
	require.NoError(t, n.Start())
	defer n.Stop() // nolint: errcheck

	registerAll(t, n, 2)

	rec := httptest.NewRecorder()
	n.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `roundabci_app_height 2`), body)
	assert.True(t, strings.Contains(body,
		`roundabci_app_round_transitions_total{from="registration",out_of_band="false",to="deploy_safe"} 1`), body)
	assert.True(t, strings.Contains(body, `roundabci_app_current_round{round="deploy_safe"} 1`), body)
}

func TestNodeForcedTransitionIsJournaled(t *testing.T) {
	config := cfg.ResetTestRoot("node_force_test")
	defer cfg.RemoveTestRoot(config)

	n, err := DefaultNewNode(config, log.TestingLogger())
	require.NoError(t, err)
	require.NoError(t, n.Start())
	defer n.Stop() // nolint: errcheck

	next, err := consensus.NewRound(consensus.RoundRegistration, n.Driver().LatestState(), n.Driver().Params())
	require.NoError(t, err)
	n.Driver().ForceTransition(next)

	latest, err := n.History().LoadLatest()
	require.NoError(t, err)
	assert.True(t, latest.OutOfBand)
	assert.Equal(t, "registration", latest.To)
}

func TestNewNodeRejectsInvalidConfig(t *testing.T) {
	config := cfg.TestConfig()
	config.Consensus.MaxParticipants = 0

	_, err := NewNode(config, log.TestingLogger())
	assert.Error(t, err)
}

func TestNewNodeReleasesHistoryOnMetricsError(t *testing.T) {
	config := cfg.ResetTestRoot("node_metrics_error_test")
	defer cfg.RemoveTestRoot(config)
	config.DBBackend = string(tmdb.GoLevelDBBackend)
	// not a valid prometheus metric name prefix
	config.Instrumentation.Namespace = "bad-namespace"

	_, err := NewNode(config, log.TestingLogger())
	require.Error(t, err)

	// goleveldb locks its directory, reopening only works if NewNode closed it
	history, err := store.OpenHistoryStore("history", tmdb.GoLevelDBBackend, config.DBDir())
	require.NoError(t, err)
	require.NoError(t, history.Close())
}
