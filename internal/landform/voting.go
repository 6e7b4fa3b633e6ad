package landform

import (
	"fmt"
	"sort"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/relief-data/landform.report/internal/monitoring"
)

const scoreEpsilon = 1e-12

// Vote is one classifier's contribution to a label's score.
type Vote struct {
	Classifier ClassifierID
	Weight     float64
}

// TieBreaker resolves ensemble votes where two or more labels tie on score.
// The policy is explicit and swappable because the tie-break precedence is a
// workflow decision, not a mathematical one.
type TieBreaker interface {
	Name() string
	// Break picks the winner among tied labels. votes maps each tied label
	// to its contributing (classifier, weight) pairs.
	Break(tied []ClassCode, votes map[ClassCode][]Vote) ClassCode
}

// PriorityTieBreaker resolves ties by a fixed classifier precedence: the
// winning label is the one proposed by the highest-priority classifier among
// the tied labels' voters.
type PriorityTieBreaker struct {
	Order []ClassifierID
}

func (p PriorityTieBreaker) Name() string { return "classifier-priority" }

func (p PriorityTieBreaker) Break(tied []ClassCode, votes map[ClassCode][]Vote) ClassCode {
	best := tied[0]
	bestRank := p.bestRank(votes[best])
	for _, label := range tied[1:] {
		if r := p.bestRank(votes[label]); r < bestRank || (r == bestRank && label < best) {
			best, bestRank = label, r
		}
	}
	return best
}

func (p PriorityTieBreaker) bestRank(vs []Vote) int {
	best := len(p.Order) + 1
	for _, v := range vs {
		for i, clf := range p.Order {
			if clf == v.Classifier && i < best {
				best = i
			}
		}
	}
	return best
}

// TopVoterTieBreaker prefers the tied label backed by the single strongest
// vote, falling back to classifier priority when the top votes tie as well.
// This mirrors the staged tie-break of the originating workflow.
type TopVoterTieBreaker struct {
	Order []ClassifierID
}

func (t TopVoterTieBreaker) Name() string { return "top-voter" }

func (t TopVoterTieBreaker) Break(tied []ClassCode, votes map[ClassCode][]Vote) ClassCode {
	bestWeight := -1.0
	var leaders []ClassCode
	for _, label := range tied {
		top := 0.0
		for _, v := range votes[label] {
			if v.Weight > top {
				top = v.Weight
			}
		}
		switch {
		case top > bestWeight+scoreEpsilon:
			bestWeight = top
			leaders = []ClassCode{label}
		case top >= bestWeight-scoreEpsilon:
			leaders = append(leaders, label)
		}
	}
	if len(leaders) == 1 {
		return leaders[0]
	}
	return PriorityTieBreaker{Order: t.Order}.Break(leaders, votes)
}

// WaterRule configures the low-elevation water-body override. Low-relief
// river segments are systematically under-detected by the weighted vote but
// reliably flagged by one classifier, so that classifier's WATER BODY call
// wins outright below the elevation threshold.
type WaterRule struct {
	Classifier   ClassifierID
	Class        ClassCode
	MaxElevation float64
}

// DefaultWaterRule returns the documented override: SVM_D60 water calls below
// the given elevation.
func DefaultWaterRule(maxElevation float64) *WaterRule {
	return &WaterRule{
		Classifier:   ClassifierSVMD60,
		Class:        ClassWaterBody,
		MaxElevation: maxElevation,
	}
}

// EnsembleConfig parameterises an ensemble voting run. Weights must be fully
// built (assessment of all voting classifiers complete) before the engine is
// constructed; the matrix is frozen from then on.
type EnsembleConfig struct {
	Weights  *WeightMatrix
	Priority []ClassifierID
	Tie      TieBreaker

	// Water enables the low-elevation override when non-nil.
	Water *WaterRule

	// Tau, when non-nil, enables the low-confidence fallback: a winning
	// score below tau defers to the strongest single voter's prediction.
	Tau *float64

	// Workers splits the per-segment loop across goroutines. Segments are
	// independent, so this changes throughput only, never results.
	Workers int
}

// EnsembleVote is the per-segment ensemble output.
type EnsembleVote struct {
	SegmentID string `json:"segment_id"`

	// Label is empty when no classifier produced a prediction.
	Label ClassCode `json:"label,omitempty"`

	// Sources lists the classifiers whose prediction equals the final
	// label, in priority order.
	Sources []ClassifierID `json:"sources,omitempty"`

	// Score is the sum of the source classifiers' weights for the label.
	Score float64 `json:"score"`

	// Overridden marks votes where the water-body rule replaced the
	// weighted-vote outcome.
	Overridden bool `json:"overridden,omitempty"`
}

// EnsembleOutcome is the result of one voting run.
type EnsembleOutcome struct {
	Votes   []EnsembleVote `json:"votes"`
	Voted   int            `json:"voted"`
	Unvoted int            `json:"unvoted"`
}

// EnsembleEngine combines the base classifiers' per-segment predictions into
// one label per segment using frozen per-class weights.
type EnsembleEngine struct {
	cfg EnsembleConfig
}

// NewEnsembleEngine validates the configuration and returns an engine.
// Configuration problems are surfaced here, before any segment is touched.
func NewEnsembleEngine(cfg EnsembleConfig) (*EnsembleEngine, error) {
	if cfg.Weights == nil {
		return nil, fmt.Errorf("ensemble engine requires a weight matrix")
	}
	if len(cfg.Priority) == 0 {
		cfg.Priority = DefaultPriority()
	}
	for _, clf := range cfg.Priority {
		if _, err := ParseClassifierID(string(clf)); err != nil {
			return nil, fmt.Errorf("priority order: %w", err)
		}
		if clf == ClassifierE5 {
			return nil, fmt.Errorf("priority order: the ensemble cannot vote for itself")
		}
	}
	if cfg.Tie == nil {
		cfg.Tie = PriorityTieBreaker{Order: cfg.Priority}
	}
	if cfg.Water != nil {
		if _, err := ParseClassifierID(string(cfg.Water.Classifier)); err != nil {
			return nil, fmt.Errorf("water rule: %w", err)
		}
	}
	if cfg.Tau != nil && *cfg.Tau < 0 {
		return nil, fmt.Errorf("low-confidence fallback: tau must be non-negative, got %v", *cfg.Tau)
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &EnsembleEngine{cfg: cfg}, nil
}

// VoteAll produces one EnsembleVote per segment, in input order. Segments
// with no classifier input get an empty label and are tallied as unvoted.
func (e *EnsembleEngine) VoteAll(segments []Segment) *EnsembleOutcome {
	votes := make([]EnsembleVote, len(segments))

	if e.cfg.Workers <= 1 || len(segments) < 2 {
		for i := range segments {
			votes[i] = e.voteOne(&segments[i])
		}
	} else {
		var wg sync.WaitGroup
		chunk := (len(segments) + e.cfg.Workers - 1) / e.cfg.Workers
		for start := 0; start < len(segments); start += chunk {
			end := start + chunk
			if end > len(segments) {
				end = len(segments)
			}
			wg.Add(1)
			go func(lo, hi int) {
				defer wg.Done()
				for i := lo; i < hi; i++ {
					votes[i] = e.voteOne(&segments[i])
				}
			}(start, end)
		}
		wg.Wait()
	}

	outcome := &EnsembleOutcome{Votes: votes}
	for i := range votes {
		if votes[i].Label == "" {
			outcome.Unvoted++
		} else {
			outcome.Voted++
		}
	}
	monitoring.Logf("[EnsembleEngine] voted=%d unvoted=%d workers=%d", outcome.Voted, outcome.Unvoted, e.cfg.Workers)
	return outcome
}

func (e *EnsembleEngine) voteOne(seg *Segment) EnsembleVote {
	vote := EnsembleVote{SegmentID: seg.ID}

	// Collect votes in priority order so downstream slices are deterministic.
	ballots := make(map[ClassCode][]Vote)
	for _, clf := range e.cfg.Priority {
		pred, ok := seg.Pred(clf)
		if !ok {
			continue
		}
		ballots[pred] = append(ballots[pred], Vote{
			Classifier: clf,
			Weight:     e.cfg.Weights.Weight(pred, clf),
		})
	}

	if len(ballots) > 0 {
		winner, score := e.pickWinner(ballots)

		if e.cfg.Tau != nil && score < *e.cfg.Tau {
			winner, score = e.lowConfidenceFallback(seg, ballots, winner, score)
		}

		vote.Label = winner
		vote.Score = score
		vote.Sources = e.sourcesFor(seg, winner)
	}

	if e.cfg.Water != nil {
		if pred, ok := seg.Pred(e.cfg.Water.Classifier); ok && pred == e.cfg.Water.Class {
			if seg.MeanElev != nil && *seg.MeanElev <= e.cfg.Water.MaxElevation {
				vote.Label = e.cfg.Water.Class
				vote.Sources = []ClassifierID{e.cfg.Water.Classifier}
				vote.Score = e.cfg.Weights.Weight(e.cfg.Water.Class, e.cfg.Water.Classifier)
				vote.Overridden = true
			}
		}
	}

	return vote
}

// pickWinner scores every proposed label and resolves ties via the
// configured policy.
func (e *EnsembleEngine) pickWinner(ballots map[ClassCode][]Vote) (ClassCode, float64) {
	scores := make(map[ClassCode]float64, len(ballots))
	maxScore := -1.0
	for label, vs := range ballots {
		var s float64
		for _, v := range vs {
			s += v.Weight
		}
		scores[label] = s
		if s > maxScore {
			maxScore = s
		}
	}

	var tied []ClassCode
	for label, s := range scores {
		if s >= maxScore-scoreEpsilon {
			tied = append(tied, label)
		}
	}
	if len(tied) == 1 {
		return tied[0], scores[tied[0]]
	}
	sort.Slice(tied, func(i, j int) bool { return tied[i] < tied[j] })
	winner := e.cfg.Tie.Break(tied, ballots)
	return winner, scores[winner]
}

// lowConfidenceFallback defers to the strongest single voter when the
// weighted consensus is weak, then rescores for the fallback label.
func (e *EnsembleEngine) lowConfidenceFallback(seg *Segment, ballots map[ClassCode][]Vote, winner ClassCode, score float64) (ClassCode, float64) {
	bestWeight := -1.0
	var bestClf ClassifierID
	for _, vs := range ballots {
		for _, v := range vs {
			if v.Weight > bestWeight {
				bestWeight = v.Weight
				bestClf = v.Classifier
			}
		}
	}
	if bestClf == "" {
		return winner, score
	}
	fallback, ok := seg.Pred(bestClf)
	if !ok {
		return winner, score
	}
	var newScore float64
	for _, v := range ballots[fallback] {
		newScore += v.Weight
	}
	return fallback, newScore
}

// sourcesFor lists the classifiers that predicted the winning label, in
// priority order.
func (e *EnsembleEngine) sourcesFor(seg *Segment, winner ClassCode) []ClassifierID {
	var sources []ClassifierID
	for _, clf := range e.cfg.Priority {
		if pred, ok := seg.Pred(clf); ok && pred == winner {
			sources = append(sources, clf)
		}
	}
	return sources
}

// ElevationQuantile computes the q-quantile of the segments' mean elevations,
// for configuring the water-rule threshold as a quantile instead of an
// absolute value. Segments without elevation are skipped; an empty sample is
// an error because the rule would have nothing to anchor on.
func ElevationQuantile(segments []Segment, q float64) (float64, error) {
	if q < 0 || q > 1 {
		return 0, fmt.Errorf("quantile must be in [0,1], got %v", q)
	}
	var elevs []float64
	for i := range segments {
		if segments[i].MeanElev != nil {
			elevs = append(elevs, *segments[i].MeanElev)
		}
	}
	if len(elevs) == 0 {
		return 0, fmt.Errorf("no segments carry elevation")
	}
	sort.Float64s(elevs)
	return stat.Quantile(q, stat.Empirical, elevs, nil), nil
}
