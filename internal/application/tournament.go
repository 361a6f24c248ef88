// Package application runs tournaments: it schedules matches, asks the
// judge for verdicts, and applies the resulting rating changes.
package application

import (
	"context"
	"fmt"
	"iter"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ahrav/go-tourney/internal/domain"
	"github.com/ahrav/go-tourney/internal/extract"
	"github.com/ahrav/go-tourney/internal/ports"
)

const tracerName = "github.com/ahrav/go-tourney/internal/application"

// Metric names emitted by Tournament.
const (
	MetricMatches       = "tournament_matches_total"
	MetricJudgeLatency  = "tournament_judge_duration"
	MetricTopRating     = "tournament_top_rating"
	MetricValidMatches  = "tournament_valid_matches"
	MetricRunsCompleted = "tournament_runs_total"
	MetricRunDuration   = "tournament_run_seconds"
)

// Result is the outcome of one tournament run.
type Result struct {
	// RunID identifies the run in logs, traces and metrics.
	RunID string

	// Ranked holds the candidates sorted by rating, highest first. Equal
	// ratings keep their input order.
	Ranked []domain.Candidate

	// Stats counts matches by outcome.
	Stats domain.MatchStats

	// Matches is the audit trail, in play order.
	Matches []domain.MatchRecord

	// Phase is PhaseDone for every returned result.
	Phase domain.Phase
}

// Tournament drives pairwise comparisons between candidates. A Tournament
// holds a random source and must not be used by concurrent Run calls.
type Tournament struct {
	judge        ports.Judge
	strategy     domain.Strategy
	randomRounds int
	updater      *domain.RatingUpdater
	weights      domain.DimensionWeights
	rng          *rand.Rand
	extractor    *extract.Extractor
	logger       *zap.Logger
	metrics      ports.MetricsCollector
	tracer       trace.Tracer
}

type tournamentOptions struct {
	strategy     domain.Strategy
	kFactor      int
	randomRounds int
	weights      domain.DimensionWeights
	rng          *rand.Rand
	logger       *zap.Logger
	metrics      ports.MetricsCollector
	tracer       trace.Tracer
}

// TournamentOption configures a Tournament.
type TournamentOption func(*tournamentOptions)

// WithStrategy selects the pairing strategy. The default is round robin.
func WithStrategy(s domain.Strategy) TournamentOption {
	return func(o *tournamentOptions) { o.strategy = s }
}

// WithKFactor sets the Elo K factor. The default is domain.DefaultKFactor.
func WithKFactor(k int) TournamentOption {
	return func(o *tournamentOptions) { o.kFactor = k }
}

// WithRandomRounds sets the number of random pairings. Zero selects three
// times the number of candidates.
func WithRandomRounds(n int) TournamentOption {
	return func(o *tournamentOptions) { o.randomRounds = n }
}

// WithWeights sets the dimension weights.
func WithWeights(w domain.DimensionWeights) TournamentOption {
	return func(o *tournamentOptions) { o.weights = w }
}

// WithSeed makes random pairing reproducible.
func WithSeed(seed uint64) TournamentOption {
	return func(o *tournamentOptions) { o.rng = domain.NewRand(seed) }
}

// WithRand injects the random source used for random pairing.
func WithRand(rng *rand.Rand) TournamentOption {
	return func(o *tournamentOptions) { o.rng = rng }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) TournamentOption {
	return func(o *tournamentOptions) { o.logger = l }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m ports.MetricsCollector) TournamentOption {
	return func(o *tournamentOptions) { o.metrics = m }
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(t trace.Tracer) TournamentOption {
	return func(o *tournamentOptions) { o.tracer = t }
}

// NewTournament validates the options and returns a ready Tournament.
func NewTournament(judge ports.Judge, opts ...TournamentOption) (*Tournament, error) {
	o := tournamentOptions{
		strategy: domain.StrategyRoundRobin,
		kFactor:  domain.DefaultKFactor,
	}
	for _, opt := range opts {
		opt(&o)
	}

	verr := domain.NewValidationError("Tournament")
	if judge == nil {
		verr.AddError(domain.ErrNoJudge.Error())
	}
	if _, err := domain.ParseStrategy(string(o.strategy)); err != nil {
		verr.AddError(err.Error())
	}
	if o.kFactor <= 0 {
		verr.AddErrorf("%s, got %d", domain.ErrInvalidKFactor, o.kFactor)
	}
	if o.randomRounds < 0 {
		verr.AddErrorf("random rounds must not be negative, got %d", o.randomRounds)
	}
	if verr.HasErrors() {
		return nil, verr
	}

	if o.weights.IsZero() {
		o.weights = domain.DefaultDimensionWeights()
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.metrics == nil {
		o.metrics = ports.NopMetrics{}
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(tracerName)
	}
	if o.rng == nil {
		o.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	return &Tournament{
		judge:        judge,
		strategy:     o.strategy,
		randomRounds: o.randomRounds,
		updater:      domain.NewRatingUpdater(o.kFactor, o.weights, o.logger),
		weights:      o.weights,
		rng:          o.rng,
		extractor:    extract.New(o.logger.Named("extract")),
		logger:       o.logger,
		metrics:      o.metrics,
		tracer:       o.tracer,
	}, nil
}

// RunTournament is a convenience wrapper that builds a Tournament with
// default settings and runs it once.
func RunTournament(
	ctx context.Context,
	candidates []domain.Candidate,
	judge ports.Judge,
	strategy domain.Strategy,
	weights domain.DimensionWeights,
) ([]domain.Candidate, domain.MatchStats, error) {
	t, err := NewTournament(judge, WithStrategy(strategy), WithWeights(weights))
	if err != nil {
		return nil, domain.MatchStats{}, err
	}
	res := t.Run(ctx, candidates)
	return res.Ranked, res.Stats, nil
}

// Run plays a full schedule over copies of candidates and returns them
// ranked. It never fails: judge errors and unusable verdicts are recorded
// as skipped matches and the schedule continues. The input slice is not
// modified.
func (t *Tournament) Run(ctx context.Context, candidates []domain.Candidate) Result {
	runID := uuid.NewString()
	logger := t.logger.With(zap.String("run_id", runID), zap.String("strategy", string(t.strategy)))

	ctx, span := t.tracer.Start(ctx, "Tournament.Run", trace.WithAttributes(
		attribute.String("tournament.run_id", runID),
		attribute.String("tournament.strategy", string(t.strategy)),
		attribute.Int("tournament.candidates", len(candidates)),
	))
	defer span.End()

	pool := make([]domain.Candidate, len(candidates))
	for i, c := range candidates {
		pool[i] = c.Clone()
	}

	res := Result{RunID: runID, Phase: domain.PhaseScheduled, Matches: []domain.MatchRecord{}}
	start := time.Now()

	if len(pool) < 2 {
		logger.Warn("need at least two candidates for a tournament", zap.Int("candidates", len(pool)))
	}

	res.Phase = domain.PhaseRunning
	for round, pairs := range t.schedule(pool) {
		res.Stats.Scheduled += len(pairs)
		logger.Debug("starting round", zap.Int("round", round), zap.Int("matches", len(pairs)))
		for _, p := range pairs {
			rec := t.playMatch(ctx, logger, round, p, pool)
			res.Stats.Record(rec)
			res.Matches = append(res.Matches, rec)
		}
	}
	res.Phase = domain.PhaseScored

	slices.SortStableFunc(pool, func(a, b domain.Candidate) int {
		return b.Rating - a.Rating
	})
	res.Ranked = pool
	res.Phase = domain.PhaseSorted

	t.recordRun(res, time.Since(start))
	span.SetAttributes(
		attribute.Int("tournament.matches.scheduled", res.Stats.Scheduled),
		attribute.Int("tournament.matches.valid", res.Stats.Valid),
		attribute.Int("tournament.matches.skipped", res.Stats.Skipped()),
	)
	span.SetStatus(codes.Ok, "tournament completed")

	logger.Info("tournament completed",
		zap.Int("candidates", len(pool)),
		zap.Int("scheduled", res.Stats.Scheduled),
		zap.Int("valid", res.Stats.Valid),
		zap.Int("skipped", res.Stats.Skipped()),
		zap.Duration("elapsed", time.Since(start)),
	)

	res.Phase = domain.PhaseDone
	return res
}

// schedule yields the pairs of each round, starting at round 1. Random and
// round robin schedules are a single round. Swiss pairs are generated
// lazily so every round sees the ratings produced by the previous one.
func (t *Tournament) schedule(pool []domain.Candidate) iter.Seq2[int, []domain.Pair] {
	return func(yield func(int, []domain.Pair) bool) {
		n := len(pool)
		switch t.strategy {
		case domain.StrategySwiss:
			for round := 1; round <= domain.SwissRounds(n); round++ {
				ratings := make([]int, n)
				for i, c := range pool {
					ratings[i] = c.Rating
				}
				if !yield(round, domain.SwissPairs(ratings)) {
					return
				}
			}
		case domain.StrategyRandom:
			yield(1, domain.RandomPairs(n, t.randomRounds, t.rng))
		default:
			yield(1, domain.GeneratePairs(t.strategy, n, nil, t.rng))
		}
	}
}

// playMatch resolves one pair and applies its rating change to pool.
func (t *Tournament) playMatch(
	ctx context.Context,
	logger *zap.Logger,
	round int,
	p domain.Pair,
	pool []domain.Candidate,
) domain.MatchRecord {
	ctx, span := t.tracer.Start(ctx, "Tournament.Match", trace.WithAttributes(
		attribute.Int("match.round", round),
		attribute.Int("match.a", p.A),
		attribute.Int("match.b", p.B),
	))
	defer span.End()

	a, b := &pool[p.A], &pool[p.B]
	rec := domain.MatchRecord{
		Round:         round,
		Pair:          p,
		RatingsBefore: [2]int{a.Rating, b.Rating},
		RatingsAfter:  [2]int{a.Rating, b.Rating},
	}
	logger = logger.With(zap.Int("round", round), zap.Int("a", p.A), zap.Int("b", p.B))

	finish := func(o domain.Outcome) domain.MatchRecord {
		rec.Outcome = o
		span.SetAttributes(attribute.String("match.outcome", string(o)))
		t.metrics.RecordCounter(MetricMatches, 1, map[string]string{
			"outcome":  string(o),
			"strategy": string(t.strategy),
		})
		return rec
	}

	if p.A == p.B || a.Text == b.Text {
		logger.Debug("skipping match between identical candidates")
		return finish(domain.OutcomeSkippedDuplicate)
	}

	raw, err := t.compare(ctx, a.Text, b.Text)
	if err != nil {
		rec.Err = &domain.MatchError{Round: round, Pair: p, Err: err}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Warn("judge failed, skipping match", zap.Error(err))
		return finish(domain.OutcomeSkippedJudgeError)
	}

	if strings.TrimSpace(raw) == "" {
		logger.Warn("judge returned an empty response, skipping match")
		return finish(domain.OutcomeSkippedEmpty)
	}

	parsed := t.extractor.Extract(raw)
	verdict := ResolveVerdict(raw, parsed.Value, t.weights)
	if verdict.HasScores() {
		rec.Scores = verdict.Scores
	}

	if verdict.Tie {
		logger.Info("dimension scores tied, skipping match")
		return finish(domain.OutcomeSkippedTie)
	}

	var winner, loser *domain.Candidate
	switch verdict.Winner {
	case domain.SideA:
		winner, loser = a, b
	case domain.SideB:
		winner, loser = b, a
	default:
		logger.Warn("could not determine a winner, skipping match",
			zap.String("extract_strategy", string(parsed.Strategy)),
			zap.String("snippet", extract.Truncate(raw, extract.SnippetLength)),
		)
		return finish(domain.OutcomeSkippedInvalid)
	}

	t.updater.Exchange(winner, loser)
	if verdict.HasScores() {
		t.updater.ExchangeDimensions(a, b, verdict.Scores)
	}
	winner.WinCount++
	loser.LossCount++

	rec.Winner = verdict.Winner
	rec.Method = verdict.Method
	rec.RatingsAfter = [2]int{a.Rating, b.Rating}

	logger.Debug("match decided",
		zap.String("winner", string(verdict.Winner)),
		zap.String("method", string(verdict.Method)),
		zap.Ints("before", rec.RatingsBefore[:]),
		zap.Ints("after", rec.RatingsAfter[:]),
	)
	return finish(domain.OutcomeDecided)
}

// compare calls the judge, converting a panic into an error.
func (t *Tournament) compare(ctx context.Context, textA, textB string) (raw string, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("judge panicked: %v", r)
		}
		status := "success"
		if err != nil {
			status = "error"
		}
		t.metrics.RecordLatency(MetricJudgeLatency, time.Since(start), map[string]string{
			"strategy": string(t.strategy),
			"status":   status,
		})
	}()
	return t.judge.Compare(ctx, textA, textB)
}

func (t *Tournament) recordRun(res Result, elapsed time.Duration) {
	labels := map[string]string{"strategy": string(t.strategy)}
	t.metrics.RecordCounter(MetricRunsCompleted, 1, labels)
	t.metrics.RecordGauge(MetricValidMatches, float64(res.Stats.Valid), labels)
	if len(res.Ranked) > 0 {
		t.metrics.RecordGauge(MetricTopRating, float64(res.Ranked[0].Rating), labels)
	}
	t.metrics.RecordHistogram(MetricRunDuration, elapsed.Seconds(), map[string]string{
		"strategy":   string(t.strategy),
		"candidates": strconv.Itoa(len(res.Ranked)),
	})
}
