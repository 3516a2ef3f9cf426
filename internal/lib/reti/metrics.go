package reti

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Updated on each full registry scan (GetAllValidators).
var (
	promNumValidators = promauto.NewGauge(prometheus.GaugeOpts{
		Subsystem: "reti",
		Name:      "validator_count",
	})
	promNumPools = promauto.NewGauge(prometheus.GaugeOpts{
		Subsystem: "reti",
		Name:      "pool_count",
	})
	promNumStakers = promauto.NewGauge(prometheus.GaugeOpts{
		Subsystem: "reti",
		Name:      "staker_count",
	})
	promTotalStaked = promauto.NewGauge(prometheus.GaugeOpts{
		Subsystem: "reti",
		Name:      "staked_total",
	})
)
