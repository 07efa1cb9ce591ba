package app

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	abcitypes "github.com/tendermint/tendermint/abci/types"
	tmbytes "github.com/tendermint/tendermint/libs/bytes"
	"github.com/tendermint/tendermint/libs/log"

	"roundabci/consensus"
	"roundabci/libs/metric"
	"roundabci/libs/utils"
	"roundabci/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Return codes for the ABCI responses.
const (
	CodeTypeOK            uint32 = abcitypes.CodeTypeOK
	CodeTypeEncodingError uint32 = 1
	CodeTypeUnauthorized  uint32 = 2
	CodeTypeRejected      uint32 = 3
	CodeTypeUnknownPath   uint32 = 4
)

// Query paths served by Application.Query.
const (
	QueryRound        = "round"
	QueryState        = "state"
	QueryHistory      = "history"
	QueryMetrics      = "metrics"
	QueryObservations = "observations"
)

const (
	AppName    = "roundabci"
	AppVersion = uint64(1)
)

var _ abcitypes.Application = (*Application)(nil)

// Application adapts a Driver to the ABCI interface.
//
// Transactions that passed authentication in CheckTx are cached by hash so
// DeliverTx does not verify the same signature twice.
type Application struct {
	abcitypes.BaseApplication

	driver   *Driver
	registry *types.Registry
	verified *lru.Cache
	metrics  *metric.MetricSet

	mtx         sync.Mutex
	lastHeight  int64
	lastAppHash []byte

	logger log.Logger
}

func NewApplication(driver *Driver, registry *types.Registry, cacheSize int) (*Application, error) {
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "create verified tx cache")
	}
	metrics := metric.NewMetricSet()
	if err := metrics.SetMetrics(MetricLabel, driver.Metric()); err != nil {
		return nil, err
	}
	return &Application{
		driver:   driver,
		registry: registry,
		verified: cache,
		metrics:  metrics,
		logger:   log.NewNopLogger(),
	}, nil
}

func (app *Application) SetLogger(logger log.Logger) {
	app.logger = logger
}

func (app *Application) Driver() *Driver {
	return app.driver
}

// MetricSet returns the metric items served under the "metrics" query path.
func (app *Application) MetricSet() *metric.MetricSet {
	return app.metrics
}

func (app *Application) Info(req abcitypes.RequestInfo) abcitypes.ResponseInfo {
	app.mtx.Lock()
	defer app.mtx.Unlock()

	return abcitypes.ResponseInfo{
		Data:             fmt.Sprintf("{\"round\":%q}", app.driver.CurrentRoundID()),
		Version:          AppName,
		AppVersion:       AppVersion,
		LastBlockHeight:  app.lastHeight,
		LastBlockAppHash: app.lastAppHash,
	}
}

// decode returns the transaction and whether it was already authenticated.
func (app *Application) decode(bz []byte) (*types.Transaction, bool, error) {
	key := string(types.TxHash(bz))
	if cached, ok := app.verified.Get(key); ok {
		return cached.(*types.Transaction), true, nil
	}
	tx, err := app.registry.DecodeTx(bz)
	return tx, false, err
}

func (app *Application) CheckTx(req abcitypes.RequestCheckTx) abcitypes.ResponseCheckTx {
	tx, verified, err := app.decode(req.Tx)
	if err != nil {
		return abcitypes.ResponseCheckTx{Code: CodeTypeEncodingError, Log: err.Error()}
	}

	if !verified {
		if err := app.driver.Authenticate(tx); err != nil {
			return abcitypes.ResponseCheckTx{Code: CodeTypeUnauthorized, Log: err.Error()}
		}
		app.verified.Add(string(types.TxHash(req.Tx)), tx)
	}

	if !app.driver.Check(tx.Payload) {
		return abcitypes.ResponseCheckTx{
			Code: CodeTypeRejected,
			Log:  errors.Wrapf(ErrPayloadRejected, "%v", tx.Payload).Error(),
		}
	}
	return abcitypes.ResponseCheckTx{Code: CodeTypeOK, GasWanted: 1}
}

func (app *Application) DeliverTx(req abcitypes.RequestDeliverTx) abcitypes.ResponseDeliverTx {
	tx, verified, err := app.decode(req.Tx)
	if err != nil {
		return abcitypes.ResponseDeliverTx{Code: CodeTypeEncodingError, Log: err.Error()}
	}
	if verified {
		app.verified.Remove(string(types.TxHash(req.Tx)))
	} else if err := app.driver.Authenticate(tx); err != nil {
		return abcitypes.ResponseDeliverTx{Code: CodeTypeUnauthorized, Log: err.Error()}
	}

	if !app.driver.Deliver(tx.Payload) {
		app.logger.Debug("payload rejected", "payload", tx.Payload, "round", app.driver.CurrentRoundID())
		return abcitypes.ResponseDeliverTx{
			Code: CodeTypeRejected,
			Log:  errors.Wrapf(ErrPayloadRejected, "%v", tx.Payload).Error(),
		}
	}
	return abcitypes.ResponseDeliverTx{
		Code: CodeTypeOK,
		Events: []abcitypes.Event{{
			Type: "payload",
			Attributes: []abcitypes.EventAttribute{
				{Key: []byte("type"), Value: []byte(tx.Payload.TxType()), Index: true},
				{Key: []byte("sender"), Value: []byte(tx.Payload.Sender()), Index: true},
			},
		}},
	}
}

func (app *Application) BeginBlock(req abcitypes.RequestBeginBlock) abcitypes.ResponseBeginBlock {
	app.driver.BeginBlock(req.Header.Height)
	return abcitypes.ResponseBeginBlock{}
}

func (app *Application) EndBlock(req abcitypes.RequestEndBlock) abcitypes.ResponseEndBlock {
	app.mtx.Lock()
	app.lastHeight = req.Height
	app.mtx.Unlock()
	return abcitypes.ResponseEndBlock{}
}

func (app *Application) Commit() abcitypes.ResponseCommit {
	appHash := app.driver.Commit()

	app.mtx.Lock()
	app.lastAppHash = appHash
	app.mtx.Unlock()
	return abcitypes.ResponseCommit{Data: appHash}
}

type roundResponse struct {
	Round     consensus.RoundID `json:"round"`
	Height    int64             `json:"height"`
	StateHash tmbytes.HexBytes  `json:"state_hash"`
}

type historyEntry struct {
	Round     consensus.RoundID `json:"round"`
	StateHash tmbytes.HexBytes  `json:"state_hash"`
}

func (app *Application) Query(req abcitypes.RequestQuery) abcitypes.ResponseQuery {
	var (
		value interface{}
		round, st = app.driver.CurrentRound()
	)

	switch req.Path {
	case QueryRound:
		value = roundResponse{Round: round.RoundID(), Height: app.driver.Height(), StateHash: st.Hash()}
	case QueryState:
		value = st
	case QueryHistory:
		history := app.driver.History()
		entries := make([]historyEntry, 0, len(history))
		for _, r := range history {
			entries = append(entries, historyEntry{Round: r.RoundID(), StateHash: r.State().Hash()})
		}
		value = entries
	case QueryMetrics:
		value = app.metrics.JSONMetrics(string(req.Data))
	case QueryObservations:
		// 当前period还没收集observation时返回空统计
		var values []float64
		if observations, err := st.Observations(); err == nil {
			for _, o := range observations {
				values = append(values, o.Observation)
			}
		}
		value = utils.Summarize(values...)
	default:
		return abcitypes.ResponseQuery{
			Code: CodeTypeUnknownPath,
			Log:  fmt.Sprintf("unknown query path %q", req.Path),
		}
	}

	bz, err := json.Marshal(value)
	if err != nil {
		return abcitypes.ResponseQuery{Code: CodeTypeEncodingError, Log: err.Error()}
	}
	return abcitypes.ResponseQuery{
		Code:   CodeTypeOK,
		Key:    []byte(req.Path),
		Value:  bz,
		Height: app.driver.Height(),
	}
}
