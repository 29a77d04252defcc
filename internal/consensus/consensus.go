// Package consensus cross-checks fan-out candidates for agreement and
// excludes outliers. Each candidate gets a consensus coefficient, the mean
// of its similarities to every other candidate; candidates far below the
// population are dropped from selection but kept in the audit trail.
package consensus

import (
	"fmt"

	"github.com/DesiroReboot/VideoTranslate-Rework/internal/dispatch"
	"github.com/DesiroReboot/VideoTranslate-Rework/internal/similarity"
)

// Config tunes the exclusion rule.
type Config struct {
	// RelativeCutoff excludes a candidate whose coefficient is below this
	// fraction of the population mean coefficient.
	RelativeCutoff float64
	// AbsoluteMargin excludes a candidate whose coefficient is more than
	// this far below the top coefficient.
	AbsoluteMargin float64
}

func (c *Config) applyDefaults() {
	if c.RelativeCutoff <= 0 {
		c.RelativeCutoff = 0.5
	}
	if c.AbsoluteMargin <= 0 {
		c.AbsoluteMargin = 0.35
	}
}

// Member is one candidate's consensus standing.
type Member struct {
	Candidate   dispatch.Candidate `json:"candidate"`
	Coefficient float64            `json:"coefficient"`
	Excluded    bool               `json:"excluded"`
}

// Outcome is the full result of one filter pass. Members preserves the
// input order and includes excluded candidates for the audit trail.
type Outcome struct {
	Members    []Member
	Best       dispatch.Candidate
	Unverified bool
}

// Survivors returns the non-excluded candidates in input order.
func (o *Outcome) Survivors() []dispatch.Candidate {
	var out []dispatch.Candidate
	for _, m := range o.Members {
		if !m.Excluded {
			out = append(out, m.Candidate)
		}
	}
	return out
}

// Filter applies the consensus rule to candidate sets.
type Filter struct {
	cfg Config
}

func New(cfg Config) *Filter {
	cfg.applyDefaults()
	return &Filter{cfg: cfg}
}

// Apply computes coefficients, excludes outliers and picks the best
// surviving candidate. An empty candidate list is a caller bug and returns
// an error; a single candidate survives with coefficient 1.0 but the
// outcome is flagged Unverified because no peer confirmed it.
func (f *Filter) Apply(candidates []dispatch.Candidate) (*Outcome, error) {
	switch len(candidates) {
	case 0:
		return nil, fmt.Errorf("no candidates to filter")
	case 1:
		return &Outcome{
			Members: []Member{{
				Candidate:   candidates[0],
				Coefficient: 1.0,
			}},
			Best:       candidates[0],
			Unverified: true,
		}, nil
	}

	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Text
	}
	matrix := similarity.NewMatrix(texts)

	members := make([]Member, len(candidates))
	mean, top := 0.0, 0.0
	for i, c := range candidates {
		coeff := matrix.MeanOthers(i)
		members[i] = Member{Candidate: c, Coefficient: coeff}
		mean += coeff
		if coeff > top {
			top = coeff
		}
	}
	mean /= float64(len(candidates))

	for i := range members {
		coeff := members[i].Coefficient
		if coeff < f.cfg.RelativeCutoff*mean || coeff < top-f.cfg.AbsoluteMargin {
			members[i].Excluded = true
		}
	}

	best := pickBest(members)
	return &Outcome{Members: members, Best: best}, nil
}

// pickBest returns the surviving candidate with the highest coefficient.
// Ties break on lower latency, then on higher native confidence. The top
// candidate is never excluded by construction, so there is always at
// least one survivor.
func pickBest(members []Member) dispatch.Candidate {
	var best *Member
	for i := range members {
		m := &members[i]
		if m.Excluded {
			continue
		}
		if best == nil || better(m, best) {
			best = m
		}
	}
	return best.Candidate
}

func better(a, b *Member) bool {
	if a.Coefficient != b.Coefficient {
		return a.Coefficient > b.Coefficient
	}
	if a.Candidate.Latency != b.Candidate.Latency {
		return a.Candidate.Latency < b.Candidate.Latency
	}
	return a.Candidate.NativeConfidence > b.Candidate.NativeConfidence
}
