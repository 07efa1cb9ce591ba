package app

import (
	"strings"
	"sync"

	jsoniter "github.com/json-iterator/go"
	metrics "github.com/rcrowley/go-metrics"
)

// MetricLabel is the label the driver metric is registered under in a
// metric.MetricSet.
const MetricLabel = "driver"

func newDriverMetric() *driverMetric {
	r := metrics.NewRegistry()
	return &driverMetric{
		registry:          r,
		CheckedTx:         metrics.NewRegisteredCounter("checked_tx", r),
		RejectedCheck:     metrics.NewRegisteredCounter("rejected_check", r),
		DeliveredTx:       metrics.NewRegisteredCounter("delivered_tx", r),
		RejectedDeliver:   metrics.NewRegisteredCounter("rejected_deliver", r),
		Unauthenticated:   metrics.NewRegisteredCounter("unauthenticated_tx", r),
		Transitions:       metrics.NewRegisteredCounter("transitions", r),
		ForcedTransitions: metrics.NewRegisteredCounter("forced_transitions", r),
		Height:            metrics.NewRegisteredGauge("height", r),
	}
}

// driverMetric 记录driver的运行情况，可以被并发读取
type driverMetric struct {
	registry metrics.Registry

	CheckedTx         metrics.Counter
	RejectedCheck     metrics.Counter
	DeliveredTx       metrics.Counter
	RejectedDeliver   metrics.Counter
	Unauthenticated   metrics.Counter
	Transitions       metrics.Counter
	ForcedTransitions metrics.Counter
	Height            metrics.Gauge

	mtx          sync.RWMutex
	currentRound string
}

type driverMetricSnapshot struct {
	CurrentRound      string `json:"current_round"`
	Height            int64  `json:"height"`
	CheckedTx         int64  `json:"checked_tx"`
	RejectedCheck     int64  `json:"rejected_check"`
	DeliveredTx       int64  `json:"delivered_tx"`
	RejectedDeliver   int64  `json:"rejected_deliver"`
	Unauthenticated   int64  `json:"unauthenticated_tx"`
	Transitions       int64  `json:"transitions"`
	ForcedTransitions int64  `json:"forced_transitions"`
	// per round counters, e.g. "round.estimate_consensus.finished"
	Rounds map[string]int64 `json:"rounds"`
}

func (dm *driverMetric) MarkRound(round string) {
	dm.mtx.Lock()
	dm.currentRound = round
	dm.mtx.Unlock()
}

// MarkRoundFinished counts how often each round was left.
func (dm *driverMetric) MarkRoundFinished(round string, outOfBand bool) {
	dm.Transitions.Inc(1)
	suffix := ".finished"
	if outOfBand {
		dm.ForcedTransitions.Inc(1)
		suffix = ".forced"
	}
	metrics.GetOrRegisterCounter("round."+round+suffix, dm.registry).Inc(1)
}

func (dm *driverMetric) snapshot() driverMetricSnapshot {
	dm.mtx.RLock()
	current := dm.currentRound
	dm.mtx.RUnlock()

	rounds := make(map[string]int64)
	dm.registry.Each(func(name string, i interface{}) {
		if c, ok := i.(metrics.Counter); ok && strings.HasPrefix(name, "round.") {
			rounds[name] = c.Count()
		}
	})

	return driverMetricSnapshot{
		CurrentRound:      current,
		Height:            dm.Height.Value(),
		CheckedTx:         dm.CheckedTx.Count(),
		RejectedCheck:     dm.RejectedCheck.Count(),
		DeliveredTx:       dm.DeliveredTx.Count(),
		RejectedDeliver:   dm.RejectedDeliver.Count(),
		Unauthenticated:   dm.Unauthenticated.Count(),
		Transitions:       dm.Transitions.Count(),
		ForcedTransitions: dm.ForcedTransitions.Count(),
		Rounds:            rounds,
	}
}

func (dm *driverMetric) JSONString() string {
	s, _ := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalToString(dm.snapshot())
	return s
}
