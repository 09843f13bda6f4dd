package model

import (
	"context"
	"fmt"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fumi-engineer/siamese/layer"
	"github.com/fumi-engineer/siamese/tensor"
)

// Siamese scores how similar two inputs are. Both inputs pass through the same
// encoder; the L1 distance of the two embeddings feeds a one-unit sigmoid head.
//
//	embed(x)  = Linear(SiLU(Linear(x)))
//	score(a,b) = sigmoid(Linear(|embed(a) - embed(b)|))
//
// Inference methods never write layer caches, so a Siamese may be shared by
// concurrent callers.
type Siamese struct {
	cfg    Config
	logger *zap.Logger

	// encAct and headAct record the graph for Save; inference applies the
	// same functions through tensor ops so no layer cache is written.
	encIn    *layer.Linear
	encAct   *layer.SiLU
	encOut   *layer.Linear
	distance *layer.Distance
	head     *layer.Linear
	headAct  *layer.Sigmoid
}

// Option configures New and Load.
type Option func(*Siamese)

// WithLogger sets the logger shared by the model and its distance layer.
func WithLogger(l *zap.Logger) Option {
	return func(m *Siamese) {
		if l != nil {
			m.logger = l
		}
	}
}

// New creates a randomly initialized model.
func New(cfg Config, opts ...Option) (*Siamese, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &Siamese{cfg: cfg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(m)
	}

	m.encIn = layer.NewLinear(cfg.InputDim, cfg.HiddenDim, true)
	m.encAct = layer.NewSiLU()
	m.encOut = layer.NewLinear(cfg.HiddenDim, cfg.EmbedDim, true)
	m.distance = layer.NewDistance(layer.WithLogger(m.logger), layer.WithStrict(cfg.Strict))
	m.head = layer.NewLinear(cfg.EmbedDim, 1, true)
	m.headAct = layer.NewSigmoid()
	return m, nil
}

// NewTiny creates a tiny model for testing.
func NewTiny() *Siamese {
	m, err := New(Tiny())
	if err != nil {
		panic(err)
	}
	return m
}

// Config returns the model configuration.
func (m *Siamese) Config() Config { return m.cfg }

// DistanceLayer returns the model's L1 distance layer.
func (m *Siamese) DistanceLayer() *layer.Distance { return m.distance }

// Layers returns the layers in graph order.
func (m *Siamese) Layers() []layer.Serializable {
	return []layer.Serializable{m.encIn, m.encAct, m.encOut, m.distance, m.head, m.headAct}
}

// Parameters returns all trainable parameters in graph order.
func (m *Siamese) Parameters() []*tensor.Tensor {
	var params []*tensor.Tensor
	for _, l := range m.Layers() {
		params = append(params, l.Parameters()...)
	}
	return params
}

// Embed encodes x of shape [..., input_dim] to [..., embed_dim].
func (m *Siamese) Embed(x *tensor.Tensor) (*tensor.Tensor, error) {
	if x == nil {
		return nil, layer.ErrNoInput
	}
	if x.Shape().NDim() == 0 || x.Shape().At(-1) != m.cfg.InputDim {
		return nil, fmt.Errorf("%w: input %v, want last dim %d", tensor.ErrShapeMismatch, x.Shape(), m.cfg.InputDim)
	}
	h := m.encIn.Infer(x).SiLU()
	return m.encOut.Infer(h), nil
}

// Distance embeds a and b and returns |embed(a) - embed(b)|.
func (m *Siamese) Distance(a, b *tensor.Tensor) (*tensor.Tensor, error) {
	ea, err := m.Embed(a)
	if err != nil {
		return nil, err
	}
	eb, err := m.Embed(b)
	if err != nil {
		return nil, err
	}
	return m.distance.Call(layer.PairOf(ea, eb))
}

// Score returns the similarity of a and b in (0, 1), shape [..., 1].
func (m *Siamese) Score(a, b *tensor.Tensor) (*tensor.Tensor, error) {
	d, err := m.Distance(a, b)
	if err != nil {
		return nil, err
	}
	return m.classify(d), nil
}

// ScoreEmbeddings scores two embeddings that were computed elsewhere. The
// second operand may be any layer.Operand, so loosely typed callers get the
// distance layer's fallback handling.
func (m *Siamese) ScoreEmbeddings(a *tensor.Tensor, b layer.Operand) (*tensor.Tensor, error) {
	if a != nil && (a.Shape().NDim() == 0 || a.Shape().At(-1) != m.cfg.EmbedDim) {
		return nil, fmt.Errorf("%w: embedding %v, want last dim %d", tensor.ErrShapeMismatch, a.Shape(), m.cfg.EmbedDim)
	}
	d, err := m.distance.Call(layer.Pair{A: a, B: b})
	if err != nil {
		return nil, err
	}
	return m.classify(d), nil
}

func (m *Siamese) classify(d *tensor.Tensor) *tensor.Tensor {
	return m.head.Infer(d).Sigmoid()
}

// ScoreBatch scores anchor against every candidate. The anchor is embedded
// once; candidates are scored concurrently and results keep candidate order.
func (m *Siamese) ScoreBatch(ctx context.Context, anchor *tensor.Tensor, candidates []*tensor.Tensor) ([]*tensor.Tensor, error) {
	ea, err := m.Embed(anchor)
	if err != nil {
		return nil, fmt.Errorf("embed anchor: %w", err)
	}

	limit := m.cfg.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	scores := make([]*tensor.Tensor, len(candidates))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, c := range candidates {
		i, c := i, c
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			ec, err := m.Embed(c)
			if err != nil {
				return fmt.Errorf("candidate %d: %w", i, err)
			}
			d, err := m.distance.Call(layer.PairOf(ea, ec))
			if err != nil {
				return fmt.Errorf("candidate %d: %w", i, err)
			}
			scores[i] = m.classify(d)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	m.logger.Debug("scored batch", zap.Int("candidates", len(candidates)), zap.Int("workers", limit))
	return scores, nil
}
