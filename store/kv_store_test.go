package store

import (
	"io/ioutil"
	"os"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendermint/tendermint/libs/log"
	tmdb "github.com/tendermint/tm-db"

	"roundabci/state"
)

func newTestStore(t *testing.T) *HistoryStore {
	hs, err := NewHistoryStoreWithDB(tmdb.NewMemDB())
	require.NoError(t, err)
	hs.SetLogger(log.TestingLogger())
	return hs
}

func testRecord(height int64, from, to string) Record {
	st := state.NewPeriodState(state.WithParticipants([]string{"0xA", "0xB"}))
	return Record{
		Height:  height,
		From:    from,
		To:      to,
		AppHash: st.Hash(),
		State:   st,
	}
}

func TestEmptyHistory(t *testing.T) {
	hs := newTestStore(t)

	_, err := hs.LoadLatest()
	assert.True(t, errors.Is(err, ErrNoHistory))

	records, err := hs.List()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSaveAndLoad(t *testing.T) {
	hs := newTestStore(t)

	first, err := hs.SaveTransition(testRecord(1, "registration", "deploy_safe"))
	require.NoError(t, err)
	assert.EqualValues(t, 1, first.Seq)

	// 同一高度可以有多次切换
	forced := testRecord(1, "deploy_safe", "registration")
	forced.OutOfBand = true
	second, err := hs.SaveTransition(forced)
	require.NoError(t, err)
	assert.EqualValues(t, 2, second.Seq)

	latest, err := hs.LoadLatest()
	require.NoError(t, err)
	assert.EqualValues(t, 2, latest.Seq)
	assert.True(t, latest.OutOfBand)
	assert.Equal(t, second.AppHash, latest.AppHash)
	assert.Equal(t, forced.State.Hash(), latest.State.Hash())

	participants, err := latest.State.Participants()
	require.NoError(t, err)
	assert.Equal(t, []string{"0xA", "0xB"}, participants)
}

func TestListOrdered(t *testing.T) {
	hs := newTestStore(t)
	for i := int64(1); i <= 12; i++ {
		_, err := hs.SaveTransition(testRecord(i, "a", "b"))
		require.NoError(t, err)
	}

	records, err := hs.List()
	require.NoError(t, err)
	require.Len(t, records, 12)
	for i, rec := range records {
		assert.EqualValues(t, i+1, rec.Seq)
		assert.EqualValues(t, i+1, rec.Height)
	}
}

func TestReopenKeepsSequence(t *testing.T) {
	dir, err := ioutil.TempDir("", "history_test")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	hs, err := OpenHistoryStore("history", tmdb.GoLevelDBBackend, dir)
	require.NoError(t, err)
	_, err = hs.SaveTransition(testRecord(1, "registration", "deploy_safe"))
	require.NoError(t, err)
	require.NoError(t, hs.Close())

	reopened, err := OpenHistoryStore("history", tmdb.GoLevelDBBackend, dir)
	require.NoError(t, err)
	defer reopened.Close()

	rec, err := reopened.SaveTransition(testRecord(2, "deploy_safe", "collect_observation"))
	require.NoError(t, err)
	assert.EqualValues(t, 2, rec.Seq)
}

func TestGenKeyOrdering(t *testing.T) {
	assert.True(t, string(genKey(tableTransition, 9)) < string(genKey(tableTransition, 10)))
	assert.EqualValues(t, 42, byte2int64(int642byte(42)))
}
