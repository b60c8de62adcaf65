package backend

import (
	"github.com/beargallbladder/fleetapitest-sub000/internal/domain/risk"
	"github.com/beargallbladder/fleetapitest-sub000/internal/domain/stressor"
)

// portableBackend is the reference engine: plain calls into the domain
// packages with no specialization. It always initializes and acts as the
// acceptance oracle for the native path.
type portableBackend struct{}

// NewPortable returns the reference backend.
func NewPortable() RiskBackend { return portableBackend{} }

func (portableBackend) Name() string { return "portable" }

func (portableBackend) ScoreOne(in risk.VehicleRiskInput, w risk.WeatherConditions) risk.VehicleRiskResult {
	return risk.Score(in, w)
}

func (portableBackend) ScoreBatch(ins []risk.VehicleRiskInput, w risk.WeatherConditions) []risk.VehicleRiskResult {
	out := make([]risk.VehicleRiskResult, len(ins))
	for i := range ins {
		out[i] = risk.Score(ins[i], w)
	}
	return out
}

func (portableBackend) AssessStressors(in stressor.ExposureInput) stressor.Result {
	return stressor.Assess(in)
}
