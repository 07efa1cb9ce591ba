package store

import (
	"bytes"
	"fmt"
	"strconv"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	tmbytes "github.com/tendermint/tendermint/libs/bytes"
	"github.com/tendermint/tendermint/libs/log"
	tmdb "github.com/tendermint/tm-db"

	"roundabci/state"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	tableTransition = "transition/"
	keyLastSeq      = "meta/last_seq"
)

var (
	ErrNoHistory = errors.New("no transition recorded")
)

// Record is one committed round transition.
type Record struct {
	Seq       int64              `json:"seq"`
	Height    int64              `json:"height"`
	From      string             `json:"from"`
	To        string             `json:"to"`
	OutOfBand bool               `json:"out_of_band"`
	AppHash   tmbytes.HexBytes   `json:"app_hash"`
	State     *state.PeriodState `json:"state"`
}

func (r Record) String() string {
	return fmt.Sprintf("Record{#%d h=%d %v->%v oob=%v %v}", r.Seq, r.Height, r.From, r.To, r.OutOfBand, r.AppHash)
}

// HistoryStore 把每次round切换写进tm-db，只用于审计和回放，不参与共识
//
// Records are keyed by a monotonically increasing sequence number because a
// single height may see several transitions (forced ones included).
type HistoryStore struct {
	mtx     sync.Mutex
	db      tmdb.DB
	lastSeq int64

	logger log.Logger
}

// OpenHistoryStore opens (or creates) the journal with the given backend.
func OpenHistoryStore(name string, backend tmdb.BackendType, dir string) (*HistoryStore, error) {
	db, err := tmdb.NewDB(name, backend, dir)
	if err != nil {
		return nil, errors.Wrapf(err, "open %v db in %v", backend, dir)
	}
	return NewHistoryStoreWithDB(db)
}

func NewHistoryStoreWithDB(db tmdb.DB) (*HistoryStore, error) {
	hs := &HistoryStore{db: db, logger: log.NewNopLogger()}
	bz, err := db.Get([]byte(keyLastSeq))
	if err != nil {
		return nil, err
	}
	if bz != nil {
		hs.lastSeq = byte2int64(bz)
	}
	return hs, nil
}

func (hs *HistoryStore) SetLogger(logger log.Logger) {
	hs.logger = logger
}

// SaveTransition appends rec to the journal and returns it with its sequence
// number filled in.
func (hs *HistoryStore) SaveTransition(rec Record) (Record, error) {
	hs.mtx.Lock()
	defer hs.mtx.Unlock()

	rec.Seq = hs.lastSeq + 1
	bz, err := json.Marshal(rec)
	if err != nil {
		return rec, errors.Wrap(err, "marshal record")
	}

	batch := hs.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(genKey(tableTransition, rec.Seq), bz); err != nil {
		return rec, err
	}
	if err := batch.Set([]byte(keyLastSeq), int642byte(rec.Seq)); err != nil {
		return rec, err
	}
	if err := batch.WriteSync(); err != nil {
		return rec, err
	}

	hs.lastSeq = rec.Seq
	hs.logger.Debug("saved transition", "record", rec)
	return rec, nil
}

// LoadLatest returns the most recent record or ErrNoHistory.
func (hs *HistoryStore) LoadLatest() (Record, error) {
	hs.mtx.Lock()
	seq := hs.lastSeq
	hs.mtx.Unlock()

	if seq == 0 {
		return Record{}, ErrNoHistory
	}
	return hs.load(seq)
}

func (hs *HistoryStore) load(seq int64) (Record, error) {
	bz, err := hs.db.Get(genKey(tableTransition, seq))
	if err != nil {
		return Record{}, err
	}
	if bz == nil {
		return Record{}, errors.Wrapf(ErrNoHistory, "seq %d", seq)
	}
	var rec Record
	if err := json.Unmarshal(bz, &rec); err != nil {
		return Record{}, errors.Wrapf(err, "unmarshal record %d", seq)
	}
	return rec, nil
}

// List returns every record in sequence order.
func (hs *HistoryStore) List() ([]Record, error) {
	it, err := tmdb.IteratePrefix(hs.db, []byte(tableTransition))
	if err != nil {
		return nil, err
	}
	defer it.Close()

	records := make([]Record, 0)
	for ; it.Valid(); it.Next() {
		var rec Record
		if err := json.Unmarshal(it.Value(), &rec); err != nil {
			return nil, errors.Wrapf(err, "unmarshal record %s", it.Key())
		}
		records = append(records, rec)
	}
	return records, it.Error()
}

func (hs *HistoryStore) Close() error {
	return hs.db.Close()
}

// 序号补齐到固定宽度，保证key的字典序和数字顺序一致
func genKey(table string, seq int64) []byte {
	buffer := new(bytes.Buffer)
	buffer.WriteString(table)
	buffer.WriteString(fmt.Sprintf("%020d", seq))
	return buffer.Bytes()
}

func byte2int64(src []byte) int64 {
	v, _ := strconv.ParseInt(string(src), 10, 64)
	return v
}

func int642byte(src int64) []byte {
	return []byte(strconv.FormatInt(src, 10))
}
