package node

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"roundabci/app"
	"roundabci/consensus"
)

const metricsSubsystem = "app"

var allRounds = []consensus.RoundID{
	consensus.RoundRegistration,
	consensus.RoundDeploySafe,
	consensus.RoundCollectObservation,
	consensus.RoundEstimateConsensus,
	consensus.RoundCollectSignature,
	consensus.RoundConsensusReached,
}

// Metrics used for prometheus
type Metrics struct {
	// 最近一次BeginBlock的高度，直接从driver读取
	Height prometheus.GaugeFunc
	// 当前所在的round为1，其余为0
	CurrentRound *prometheus.GaugeVec
	// round切换次数，按from/to/out_of_band区分
	Transitions *prometheus.CounterVec

	driver *app.Driver
}

func NewMetrics(namespace string, driver *app.Driver) *Metrics {
	m := &Metrics{
		driver: driver,
		Height: prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: metricsSubsystem,
				Name:      "height",
				Help:      "Height of the last block seen by the application.",
			},
			func() float64 { return float64(driver.Height()) },
		),
		CurrentRound: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: metricsSubsystem,
				Name:      "current_round",
				Help:      "1 for the round the application is in, 0 otherwise.",
			},
			[]string{"round"},
		),
		Transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: metricsSubsystem,
				Name:      "round_transitions_total",
				Help:      "How many round transitions happened since start.",
			},
			[]string{"from", "to", "out_of_band"},
		),
	}
	return m
}

// Register adds the collectors to reg and marks the round the driver is in.
// Label values are only set once registration succeeded, an invalid
// namespace surfaces here as an error.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.Height, m.CurrentRound, m.Transitions} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	m.markCurrent(m.driver.CurrentRoundID())
	return nil
}

func (m *Metrics) ObserveTransition(data app.TransitionData) {
	m.Transitions.WithLabelValues(
		data.From.String(), data.To.String(), strconv.FormatBool(data.OutOfBand),
	).Inc()
	m.markCurrent(data.To)
}

func (m *Metrics) markCurrent(current consensus.RoundID) {
	for _, id := range allRounds {
		v := 0.0
		if id == current {
			v = 1
		}
		m.CurrentRound.WithLabelValues(id.String()).Set(v)
	}
}
