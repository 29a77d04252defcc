// Package dispatch issues N redundant concurrent invocations of a single
// transduction backend and collects the surviving candidates. Nodes are
// in-process fan-out tasks, not remote machines; one slow or failing node
// never blocks its siblings.
package dispatch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/DesiroReboot/VideoTranslate-Rework/internal/transducer"
)

// Candidate is the output of one successful node, immutable once created.
type Candidate struct {
	NodeID           int           `json:"node_id"`
	Text             string        `json:"text"`
	NativeConfidence float64       `json:"native_confidence"`
	Latency          time.Duration `json:"latency"`
}

// Config tunes one fan-out.
type Config struct {
	// NodeCount is the number of redundant invocations (≥ 1).
	NodeCount int
	// NodeTimeout bounds each individual invocation attempt.
	NodeTimeout time.Duration
	// GlobalTimeout bounds the whole fan-out wall-clock time. Zero means
	// no global bound beyond the caller's context.
	GlobalTimeout time.Duration
	// MaxAttempts is the per-node total attempt count including the
	// first (1 = no retries). Only transient failures are retried.
	MaxAttempts int
	// RetryDelay is the pause between a node's attempts.
	RetryDelay time.Duration
}

func (c *Config) applyDefaults() {
	if c.NodeCount < 1 {
		c.NodeCount = 3
	}
	if c.NodeTimeout <= 0 {
		c.NodeTimeout = 30 * time.Second
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 500 * time.Millisecond
	}
}

// AllNodesFailedError is returned when not a single node produced a
// candidate. It carries the terminal error of every node for diagnosis.
type AllNodesFailedError struct {
	NodeCount int
	Errs      []error
}

func (e *AllNodesFailedError) Error() string {
	msgs := make([]string, 0, len(e.Errs))
	for _, err := range e.Errs {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("all %d nodes failed: %s", e.NodeCount, strings.Join(msgs, "; "))
}

// Dispatcher runs redundant fan-outs against one transduction service.
type Dispatcher struct {
	service transducer.Service
	svcCfg  transducer.ServiceConfig
	cfg     Config
	log     zerolog.Logger
}

func New(service transducer.Service, svcCfg transducer.ServiceConfig, cfg Config, log zerolog.Logger) *Dispatcher {
	cfg.applyDefaults()
	return &Dispatcher{
		service: service,
		svcCfg:  svcCfg,
		cfg:     cfg,
		log:     log,
	}
}

// Dispatch runs the configured number of nodes concurrently and returns
// the candidates from nodes that succeeded, in completion order. It blocks
// until every node has finished or the global timeout elapses. When no
// node succeeds it returns an *AllNodesFailedError.
func (d *Dispatcher) Dispatch(ctx context.Context, payload transducer.Payload) ([]Candidate, error) {
	if d.cfg.GlobalTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.GlobalTimeout)
		defer cancel()
	}

	type nodeOutcome struct {
		cand *Candidate
		err  error
	}

	outcomes := make(chan nodeOutcome, d.cfg.NodeCount)

	var wg sync.WaitGroup
	for nodeID := 0; nodeID < d.cfg.NodeCount; nodeID++ {
		wg.Add(1)
		go func(nodeID int) {
			defer wg.Done()
			cand, err := d.runNode(ctx, nodeID, payload)
			outcomes <- nodeOutcome{cand: cand, err: err}
		}(nodeID)
	}

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	var (
		candidates []Candidate
		errs       []error
	)
	for out := range outcomes {
		if out.err != nil {
			errs = append(errs, out.err)
			continue
		}
		candidates = append(candidates, *out.cand)
	}

	if len(candidates) == 0 {
		return nil, &AllNodesFailedError{NodeCount: d.cfg.NodeCount, Errs: errs}
	}

	d.log.Debug().
		Int("succeeded", len(candidates)).
		Int("failed", len(errs)).
		Msg("fan-out complete")

	return candidates, nil
}

// runNode performs the attempts of a single node. Transient failures are
// retried up to MaxAttempts; a permanent failure or context expiry ends
// the node immediately.
func (d *Dispatcher) runNode(ctx context.Context, nodeID int, payload transducer.Payload) (*Candidate, error) {
	var lastErr error

	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			break
		}

		start := time.Now()
		nodeCtx, cancel := context.WithTimeout(ctx, d.cfg.NodeTimeout)
		res, err := d.service.Invoke(nodeCtx, d.svcCfg, payload)
		cancel()

		if err == nil {
			return &Candidate{
				NodeID:           nodeID,
				Text:             res.Text,
				NativeConfidence: clamp01(res.NativeConfidence),
				Latency:          time.Since(start),
			}, nil
		}

		lastErr = err
		if !transducer.IsTransient(err) {
			d.log.Debug().Int("node", nodeID).Err(err).Msg("node failed permanently")
			break
		}

		d.log.Debug().
			Int("node", nodeID).
			Int("attempt", attempt).
			Err(err).
			Msg("node attempt failed")

		if attempt < d.cfg.MaxAttempts {
			select {
			case <-ctx.Done():
			case <-time.After(d.cfg.RetryDelay):
			}
		}
	}

	if lastErr == nil {
		lastErr = ctx.Err()
	}
	return nil, fmt.Errorf("node %d: %w", nodeID, lastErr)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
