// Package threshold derives quality cutoffs from recent scoring history,
// letting the acceptance bar follow what the transduction backends are
// actually capable of instead of a fixed constant.
package threshold

import (
	"fmt"
	"math"
	"sort"

	"github.com/DesiroReboot/VideoTranslate-Rework/internal/history"
)

// Strategy selects how the accept cutoff is derived from history.
type Strategy string

const (
	// MovingAverage sets the cutoff to the mean of the last Window
	// composites minus Margin.
	MovingAverage Strategy = "moving_avg"
	// Percentile sets the cutoff to the given percentile of the last
	// Window composites.
	Percentile Strategy = "percentile"
)

// Config tunes the engine. Zero values fall back to defaults; Strategy
// must be one of the declared constants.
type Config struct {
	Strategy   Strategy `mapstructure:"strategy" json:"strategy"`
	Window     int      `mapstructure:"window" json:"window"`
	Margin     float64  `mapstructure:"margin" json:"margin"`
	Percentile float64  `mapstructure:"percentile" json:"percentile"`
	MinSamples int      `mapstructure:"min_samples" json:"min_samples"`
	RepairBand float64  `mapstructure:"repair_band" json:"repair_band"`

	// Static cutoffs used until MinSamples records exist.
	StaticAccept float64 `mapstructure:"static_accept" json:"static_accept"`
	StaticRepair float64 `mapstructure:"static_repair" json:"static_repair"`
}

func (c *Config) applyDefaults() {
	if c.Strategy == "" {
		c.Strategy = MovingAverage
	}
	if c.Window <= 0 {
		c.Window = 20
	}
	if c.Margin == 0 {
		c.Margin = 5
	}
	if c.Percentile == 0 {
		c.Percentile = 25
	}
	if c.MinSamples <= 0 {
		c.MinSamples = 5
	}
	if c.RepairBand == 0 {
		c.RepairBand = 20
	}
	if c.StaticAccept == 0 {
		c.StaticAccept = 70
	}
	if c.StaticRepair == 0 {
		c.StaticRepair = 50
	}
}

// State is a computed pair of cutoffs, valid for one request. Adaptive
// reports whether the cutoffs came from history rather than the static
// defaults.
type State struct {
	AcceptCutoff float64 `json:"accept_cutoff"`
	RepairCutoff float64 `json:"repair_cutoff"`
	Adaptive     bool    `json:"adaptive"`
}

// Engine computes threshold states from history snapshots.
type Engine struct {
	cfg Config
}

// New validates cfg and returns an engine.
func New(cfg Config) (*Engine, error) {
	cfg.applyDefaults()
	switch cfg.Strategy {
	case MovingAverage, Percentile:
	default:
		return nil, fmt.Errorf("threshold: unknown strategy %q", cfg.Strategy)
	}
	if cfg.Percentile < 0 || cfg.Percentile > 100 {
		return nil, fmt.Errorf("threshold: percentile %v out of range", cfg.Percentile)
	}
	return &Engine{cfg: cfg}, nil
}

// Compute derives the cutoffs for one request from a history snapshot.
// With fewer than MinSamples records it returns the static cutoffs; the
// repair cutoff always sits RepairBand below the accept cutoff, floored
// at zero.
func (e *Engine) Compute(snapshot []history.Record) State {
	if len(snapshot) < e.cfg.MinSamples {
		return State{
			AcceptCutoff: e.cfg.StaticAccept,
			RepairCutoff: e.cfg.StaticRepair,
		}
	}

	window := snapshot
	if len(window) > e.cfg.Window {
		window = window[len(window)-e.cfg.Window:]
	}
	scores := make([]float64, len(window))
	for i, rec := range window {
		scores[i] = rec.CompositeScore
	}

	var accept float64
	switch e.cfg.Strategy {
	case Percentile:
		accept = percentile(scores, e.cfg.Percentile)
	default:
		accept = mean(scores) - e.cfg.Margin
	}
	accept = math.Max(0, math.Min(100, accept))

	repair := math.Max(0, accept-e.cfg.RepairBand)
	return State{AcceptCutoff: accept, RepairCutoff: repair, Adaptive: true}
}

func mean(vals []float64) float64 {
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// percentile computes the p-th percentile with linear interpolation
// between the closest ranks.
func percentile(vals []float64, p float64) float64 {
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)

	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}
