package middleware

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-tourney/internal/application"
	"github.com/ahrav/go-tourney/internal/domain"
	"github.com/ahrav/go-tourney/internal/extract"
	"github.com/ahrav/go-tourney/internal/ports"
)

const tracerName = "github.com/ahrav/go-tourney/infrastructure/middleware"

// Keys of the combined verdict.
const (
	keyWinner             = "winner"
	keyPositionConsistent = "position_consistent"
	keyDimensionScores    = "dimension_scores"
)

// PositionSwapJudge mitigates positional bias by asking the wrapped judge
// about both orderings of a pair and only passing on a verdict they agree
// on. It is stateless and safe for concurrent use.
//
// The combined verdict is JSON. When the orderings agree it carries the
// winner and, if both replies scored dimensions, the mean scores oriented
// to the caller's A and B:
//
//	{"winner": "a", "position_consistent": true, "dimension_scores": {...}}
//
// Otherwise no winner is given:
//
//	{"winner": null, "position_consistent": false}
type PositionSwapJudge struct {
	next      ports.Judge
	weights   domain.DimensionWeights
	extractor *extract.Extractor
	tracer    trace.Tracer
	logger    *zap.Logger
}

var _ ports.Judge = (*PositionSwapJudge)(nil)

// PositionSwapOption configures a PositionSwapJudge.
type PositionSwapOption func(*PositionSwapJudge)

// WithSwapWeights sets the weights used to decide dimension-only replies.
func WithSwapWeights(w domain.DimensionWeights) PositionSwapOption {
	return func(p *PositionSwapJudge) { p.weights = w }
}

// WithSwapTracer sets the tracer used for spans.
func WithSwapTracer(t trace.Tracer) PositionSwapOption {
	return func(p *PositionSwapJudge) { p.tracer = t }
}

// WithSwapLogger sets the logger.
func WithSwapLogger(l *zap.Logger) PositionSwapOption {
	return func(p *PositionSwapJudge) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPositionSwapJudge wraps next.
func NewPositionSwapJudge(next ports.Judge, opts ...PositionSwapOption) (*PositionSwapJudge, error) {
	if next == nil {
		return nil, fmt.Errorf("position swap judge: next judge is required")
	}
	p := &PositionSwapJudge{
		next:    next,
		weights: domain.DefaultDimensionWeights(),
		tracer:  otel.Tracer(tracerName),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.extractor = extract.New(p.logger)
	return p, nil
}

// Compare implements ports.Judge. Both orderings run concurrently; if
// either fails the error is returned and no verdict is produced.
func (p *PositionSwapJudge) Compare(ctx context.Context, textA, textB string) (string, error) {
	ctx, span := p.tracer.Start(ctx, "PositionSwapJudge.Compare",
		trace.WithAttributes(attribute.String("middleware.type", "position_swap")))
	defer span.End()

	var forward, reverse string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		forward, err = p.run(gctx, 0, textA, textB)
		if err != nil {
			return fmt.Errorf("original order: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		reverse, err = p.run(gctx, 1, textB, textA)
		if err != nil {
			return fmt.Errorf("swapped order: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	verdict := p.combine(forward, reverse)
	consistent, _ := verdict[keyPositionConsistent].(bool)
	span.SetAttributes(attribute.Bool("position_consistent", consistent))
	if !consistent {
		p.logger.Debug("judge verdict depends on position")
	}

	out, err := json.Marshal(verdict)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("failed to encode combined verdict: %w", err)
	}
	span.SetStatus(codes.Ok, "")
	return string(out), nil
}

func (p *PositionSwapJudge) run(ctx context.Context, index int, first, second string) (string, error) {
	ctx, span := p.tracer.Start(ctx, fmt.Sprintf("PositionSwapJudge.Run%d", index),
		trace.WithAttributes(attribute.Int("run_index", index)))
	defer span.End()

	out, err := p.next.Compare(ctx, first, second)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	span.SetStatus(codes.Ok, "")
	return out, nil
}

// combine resolves both replies and reports the agreed verdict in the
// caller's orientation.
func (p *PositionSwapJudge) combine(forward, reverse string) map[string]any {
	fv := p.resolve(forward)
	rv := p.resolve(reverse)
	winner := flip(rv.Winner)

	if fv.Winner == domain.SideNone || fv.Winner != winner {
		return map[string]any{keyWinner: nil, keyPositionConsistent: false}
	}

	verdict := map[string]any{keyWinner: string(fv.Winner), keyPositionConsistent: true}
	if fv.HasScores() && rv.HasScores() {
		verdict[keyDimensionScores] = meanScores(fv.Scores, rv.Scores)
	}
	return verdict
}

func (p *PositionSwapJudge) resolve(raw string) application.Verdict {
	res := p.extractor.Extract(raw)
	return application.ResolveVerdict(raw, res.Value, p.weights)
}

// meanScores averages forward and swapped scores per dimension. The
// swapped reply saw B first, so its sides are exchanged before averaging.
func meanScores(forward, swapped domain.DimensionScores) map[string]map[string]float64 {
	out := map[string]map[string]float64{}
	for _, d := range domain.AllDimensions {
		f, okF := forward[d]
		s, okS := swapped[d]
		if !okF || !okS || !f.Valid || !s.Valid {
			continue
		}
		out[string(d)] = map[string]float64{
			"h_a": (f.A + s.B) / 2,
			"h_b": (f.B + s.A) / 2,
		}
	}
	return out
}

func flip(s domain.Side) domain.Side {
	switch s {
	case domain.SideA:
		return domain.SideB
	case domain.SideB:
		return domain.SideA
	}
	return domain.SideNone
}
