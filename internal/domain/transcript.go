package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Provider identifies what produced a transcript.
type Provider string

const (
	ProviderLocal Provider = "local"
	ProviderAPI   Provider = "api"
)

// TranscriptRecord is one entry of the transcript history.
type TranscriptRecord struct {
	Text           string         `json:"text"`
	Model          string         `json:"model,omitempty"`
	Provider       Provider       `json:"provider"`
	OnGPU          *bool          `json:"onGPU,omitempty"`
	ProcessingTime *time.Duration `json:"processingTime,omitempty"`
	Strategy       *Strategy      `json:"strategy,omitempty"`
}

// GreedyStrategy samples the best of several candidates at a temperature.
type GreedyStrategy struct {
	BestOf      int     `json:"bestOf"`
	Temperature float64 `json:"temperature"`
}

// BeamStrategy runs beam search.
type BeamStrategy struct {
	BeamSize int     `json:"beamSize"`
	Patience float64 `json:"patience"`
}

// Strategy is the decoding strategy used for a transcript. Exactly one of
// Greedy or Beam is set.
type Strategy struct {
	Greedy *GreedyStrategy
	Beam   *BeamStrategy
}

// ErrInvalidStrategy is returned when a strategy is neither greedy nor beam, or both.
var ErrInvalidStrategy = errors.New("strategy must be exactly one of greedy or beam")

const (
	strategyGreedy = "greedy"
	strategyBeam   = "beam"
)

// Greedy builds a greedy strategy.
func Greedy(bestOf int, temperature float64) *Strategy {
	return &Strategy{Greedy: &GreedyStrategy{BestOf: bestOf, Temperature: temperature}}
}

// Beam builds a beam-search strategy.
func Beam(beamSize int, patience float64) *Strategy {
	return &Strategy{Beam: &BeamStrategy{BeamSize: beamSize, Patience: patience}}
}

// Validate reports ErrInvalidStrategy unless exactly one variant is set.
func (s Strategy) Validate() error {
	if (s.Greedy == nil) == (s.Beam == nil) {
		return ErrInvalidStrategy
	}
	return nil
}

type strategyWire struct {
	Type        string   `json:"type"`
	BestOf      *int     `json:"bestOf,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	BeamSize    *int     `json:"beamSize,omitempty"`
	Patience    *float64 `json:"patience,omitempty"`
}

// MarshalJSON encodes the strategy with a "type" tag.
func (s Strategy) MarshalJSON() ([]byte, error) {
	switch {
	case s.Greedy != nil && s.Beam == nil:
		return json.Marshal(strategyWire{
			Type:        strategyGreedy,
			BestOf:      &s.Greedy.BestOf,
			Temperature: &s.Greedy.Temperature,
		})
	case s.Beam != nil && s.Greedy == nil:
		return json.Marshal(strategyWire{
			Type:     strategyBeam,
			BeamSize: &s.Beam.BeamSize,
			Patience: &s.Beam.Patience,
		})
	default:
		return nil, ErrInvalidStrategy
	}
}

// UnmarshalJSON decodes a tagged strategy and rejects mixed variants.
func (s *Strategy) UnmarshalJSON(data []byte) error {
	var wire strategyWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	switch wire.Type {
	case strategyGreedy:
		if wire.BeamSize != nil || wire.Patience != nil {
			return fmt.Errorf("greedy strategy with beam fields: %w", ErrInvalidStrategy)
		}
		g := &GreedyStrategy{}
		if wire.BestOf != nil {
			g.BestOf = *wire.BestOf
		}
		if wire.Temperature != nil {
			g.Temperature = *wire.Temperature
		}
		*s = Strategy{Greedy: g}
	case strategyBeam:
		if wire.BestOf != nil || wire.Temperature != nil {
			return fmt.Errorf("beam strategy with greedy fields: %w", ErrInvalidStrategy)
		}
		b := &BeamStrategy{}
		if wire.BeamSize != nil {
			b.BeamSize = *wire.BeamSize
		}
		if wire.Patience != nil {
			b.Patience = *wire.Patience
		}
		*s = Strategy{Beam: b}
	default:
		return fmt.Errorf("unknown strategy type %q: %w", wire.Type, ErrInvalidStrategy)
	}
	return nil
}
