// Package selection drives a transduction request through its full
// lifecycle: fan-out across nodes, consensus filtering, quality scoring
// against history-derived thresholds, and bounded repair of borderline
// outputs.
package selection

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/DesiroReboot/VideoTranslate-Rework/internal/consensus"
	"github.com/DesiroReboot/VideoTranslate-Rework/internal/dispatch"
	"github.com/DesiroReboot/VideoTranslate-Rework/internal/history"
	"github.com/DesiroReboot/VideoTranslate-Rework/internal/quality"
	"github.com/DesiroReboot/VideoTranslate-Rework/internal/repair"
	"github.com/DesiroReboot/VideoTranslate-Rework/internal/threshold"
	"github.com/DesiroReboot/VideoTranslate-Rework/internal/transducer"
)

// State names a phase of the request lifecycle.
type State int

const (
	StateFanOut State = iota
	StateFilter
	StateScore
	StateRepair
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateFanOut:
		return "fan_out"
	case StateFilter:
		return "filter"
	case StateScore:
		return "score"
	case StateRepair:
		return "repair"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// AuditTrail records everything a reviewer needs to reconstruct why a
// particular output was selected: every candidate with its consensus
// standing, the threshold state in effect, and how many repair rounds
// were spent.
type AuditTrail struct {
	Members         []consensus.Member `json:"members"`
	Unverified      bool               `json:"unverified"`
	Threshold       threshold.State    `json:"threshold"`
	RepairAttempts  int                `json:"repair_attempts"`
	RepairExhausted bool               `json:"repair_exhausted"`
}

// Result is the final outcome of a successful request.
type Result struct {
	Text      string             `json:"text"`
	Score     quality.Score      `json:"score"`
	Candidate dispatch.Candidate `json:"candidate"`
	Audit     AuditTrail         `json:"audit"`
	Repaired  bool               `json:"repaired"`
}

// QualityInsufficientError reports that the best available output scored
// below the fail floor even after repair. The audit trail is attached so
// callers can surface the full decision record.
type QualityInsufficientError struct {
	Score quality.Score
	Audit AuditTrail
}

func (e *QualityInsufficientError) Error() string {
	return fmt.Sprintf("selection: best output scored %.1f, below repair cutoff %.1f",
		e.Score.Composite, e.Audit.Threshold.RepairCutoff)
}

// Config tunes the controller.
type Config struct {
	// MaxRepairs bounds how many repair rounds a single request may
	// consume. Zero disables repair entirely.
	MaxRepairs int `mapstructure:"max_repairs" json:"max_repairs"`
	// SourceTag labels history records written by this controller.
	SourceTag string `mapstructure:"source_tag" json:"source_tag"`
}

// Controller owns the per-request state machine.
type Controller struct {
	dispatcher *dispatch.Dispatcher
	filter     *consensus.Filter
	scorer     *quality.Scorer
	engine     *threshold.Engine
	hist       *history.Store
	repairer   repair.Repairer
	cfg        Config
	log        zerolog.Logger
}

// New wires a controller. repairer may be nil, in which case borderline
// outputs are accepted as-is.
func New(dispatcher *dispatch.Dispatcher, filter *consensus.Filter, scorer *quality.Scorer,
	engine *threshold.Engine, hist *history.Store, repairer repair.Repairer,
	cfg Config, log zerolog.Logger) *Controller {
	return &Controller{
		dispatcher: dispatcher,
		filter:     filter,
		scorer:     scorer,
		engine:     engine,
		hist:       hist,
		repairer:   repairer,
		cfg:        cfg,
		log:        log,
	}
}

// Run executes one request end to end. The threshold state is computed
// once per request, before scoring, so repair rounds are judged against a
// stable bar. On a hard quality failure the composite is still recorded
// to history; a total fan-out failure records nothing, since there was no
// output to score.
func (c *Controller) Run(ctx context.Context, payload transducer.Payload) (*Result, error) {
	c.log.Debug().Str("state", StateFanOut.String()).Msg("request started")

	candidates, err := c.dispatcher.Dispatch(ctx, payload)
	if err != nil {
		var allFailed *dispatch.AllNodesFailedError
		if errors.As(err, &allFailed) {
			c.log.Error().Int("nodes", allFailed.NodeCount).Msg("all nodes failed")
		}
		return nil, fmt.Errorf("fan-out: %w", err)
	}

	c.log.Debug().Str("state", StateFilter.String()).Int("candidates", len(candidates)).Msg("filtering")
	outcome, err := c.filter.Apply(candidates)
	if err != nil {
		return nil, fmt.Errorf("consensus filter: %w", err)
	}

	thState := c.engine.Compute(c.hist.Snapshot())
	bands := quality.Bands{Accept: thState.AcceptCutoff, Repair: thState.RepairCutoff}
	audit := AuditTrail{
		Members:    outcome.Members,
		Unverified: outcome.Unverified,
		Threshold:  thState,
	}

	c.log.Debug().Str("state", StateScore.String()).
		Float64("accept_cutoff", thState.AcceptCutoff).
		Float64("repair_cutoff", thState.RepairCutoff).
		Bool("adaptive", thState.Adaptive).
		Msg("scoring best candidate")

	text := outcome.Best.Text
	score := c.scorer.Score(text, payload.Text, bands)
	repaired := false

	for score.Verdict == quality.VerdictRepairable && c.repairer != nil &&
		audit.RepairAttempts < c.cfg.MaxRepairs {
		audit.RepairAttempts++
		c.log.Info().Str("state", StateRepair.String()).
			Int("attempt", audit.RepairAttempts).
			Float64("composite", score.Composite).
			Msg("attempting repair")

		fixed, err := c.repairer.Repair(ctx, text, repair.FromScore(score, payload.TargetLang, payload.Text))
		if err != nil {
			c.log.Warn().Err(err).Msg("repair attempt failed, keeping current text")
			audit.RepairExhausted = true
			break
		}

		fixedScore := c.scorer.Score(fixed, payload.Text, bands)
		if fixedScore.Composite <= score.Composite {
			// Repair did not improve the text. Further rounds would
			// re-feed the same input, so stop here.
			audit.RepairExhausted = true
			break
		}
		text, score, repaired = fixed, fixedScore, true
	}

	switch score.Verdict {
	case quality.VerdictFail:
		c.record(score, payload)
		c.log.Error().Str("state", StateFailed.String()).
			Float64("composite", score.Composite).Msg("output below fail floor")
		return nil, &QualityInsufficientError{Score: score, Audit: audit}
	case quality.VerdictRepairable:
		// Out of repair budget but above the fail floor: accept with the
		// diagnostics on the audit trail.
		if audit.RepairAttempts >= c.cfg.MaxRepairs {
			audit.RepairExhausted = true
		}
		c.log.Warn().Float64("composite", score.Composite).
			Int("repair_attempts", audit.RepairAttempts).
			Msg("accepting borderline output")
	}

	c.record(score, payload)
	c.log.Debug().Str("state", StateDone.String()).
		Float64("composite", score.Composite).
		Bool("repaired", repaired).Msg("request done")

	return &Result{
		Text:      text,
		Score:     score,
		Candidate: outcome.Best,
		Audit:     audit,
		Repaired:  repaired,
	}, nil
}

// record appends the final composite to history. Persistence failures are
// non-fatal and only logged.
func (c *Controller) record(score quality.Score, payload transducer.Payload) {
	err := c.hist.Append(history.Record{
		Timestamp:      time.Now().UTC(),
		CompositeScore: score.Composite,
		InputSize:      utf8.RuneCountInString(payload.Text),
		SourceTag:      c.cfg.SourceTag,
	})
	if err != nil {
		c.log.Warn().Err(err).Msg("history record not persisted")
	}
}
