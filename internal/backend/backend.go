// Package backend defines the dual-execution contract for the risk engine.
// Two implementations exist: a table-driven native path tuned for batch
// throughput and a portable reference that calls the domain packages
// directly. Both must produce identical results; the native path proves it
// at init by probing against the reference and is silently dropped when the
// proof fails.
package backend

import (
	"os"

	"github.com/rs/zerolog/log"

	"github.com/beargallbladder/fleetapitest-sub000/internal/domain/risk"
	"github.com/beargallbladder/fleetapitest-sub000/internal/domain/stressor"
)

// PortableOnlyEnv disables the native backend when set, pinning every call
// to the reference implementation.
const PortableOnlyEnv = "FLEETSCORE_PORTABLE_ONLY"

// RiskBackend is the execution contract shared by both engines. Inputs and
// outputs are plain domain values; results for a batch are positional, one
// per input, carrying the input's VIN.
type RiskBackend interface {
	Name() string
	ScoreOne(in risk.VehicleRiskInput, w risk.WeatherConditions) risk.VehicleRiskResult
	ScoreBatch(ins []risk.VehicleRiskInput, w risk.WeatherConditions) []risk.VehicleRiskResult
	AssessStressors(in stressor.ExposureInput) stressor.Result
}

// Dispatcher owns backend selection for the process. Selection happens once
// at construction; callers read the chosen backend and never see init
// failures, which degrade to the portable engine.
type Dispatcher struct {
	backend     RiskBackend
	accelerated bool
}

// NewDispatcher probes the native backend and falls back to portable when
// it cannot initialize or disagrees with the reference.
func NewDispatcher() *Dispatcher {
	portable := NewPortable()

	if os.Getenv(PortableOnlyEnv) != "" {
		log.Debug().Str("backend", portable.Name()).
			Msgf("native backend disabled by %s", PortableOnlyEnv)
		return &Dispatcher{backend: portable}
	}

	native, err := NewNative(portable)
	if err != nil {
		log.Warn().Err(err).Msg("native backend unavailable, using portable engine")
		return &Dispatcher{backend: portable}
	}

	log.Debug().Str("backend", native.Name()).Msg("native backend selected")
	return &Dispatcher{backend: native, accelerated: true}
}

// Backend returns the selected engine.
func (d *Dispatcher) Backend() RiskBackend { return d.backend }

// Accelerated reports whether the native engine is live.
func (d *Dispatcher) Accelerated() bool { return d.accelerated }

// Name returns the selected engine's name.
func (d *Dispatcher) Name() string { return d.backend.Name() }
