package layer

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/fumi-engineer/siamese/tensor"
)

// Distance is the L1 distance layer of a siamese network: it merges two
// embeddings into their element-wise absolute difference |a - b|.
//
// The layer holds no weights and no per-call state, so a single instance may
// be shared between goroutines.
//
// By default the layer is lenient: a call whose second operand is absent or
// is text instead of a tensor logs a warning and yields zeros shaped like the
// first operand, and a list of the wrong length yields |first|. Saved models
// from loosely typed frameworks rely on this. WithStrict turns both cases
// into errors.
type Distance struct {
	name   string
	dtype  string
	strict bool
	logger *zap.Logger
}

// NewDistance creates an L1 distance layer.
func NewDistance(opts ...Option) *Distance {
	o := applyOptions(opts)
	name := o.name
	if name == "" {
		name = uniqueName("l1_dist")
	}
	return &Distance{
		name:   name,
		dtype:  dtypeOrDefault(o.dtype),
		strict: o.strict,
		logger: o.logger,
	}
}

// Call computes the distance for any of the accepted call shapes.
//
//   - Pair{a, b} and List{a, b} return |a - b| with the broadcast shape of
//     a and b.
//   - A missing or non-tensor second operand returns zeros like a (lenient)
//     or a *MalformedInputError (strict).
//   - A List whose length is not 2 returns |first| (lenient) or
//     ErrUnrecognizedCall (strict).
//   - Single{a} returns |a|.
//
// Errors from the tensor primitives, such as non-broadcastable shapes, are
// returned unchanged.
func (d *Distance) Call(in Input) (*tensor.Tensor, error) {
	switch in := in.(type) {
	case Pair:
		return d.pair(in.A, in.B)
	case List:
		return d.list(in)
	case Single:
		if in.A == nil {
			return nil, ErrNoInput
		}
		return in.A.Abs(), nil
	default:
		return nil, ErrNoInput
	}
}

func (d *Distance) pair(a *tensor.Tensor, b Operand) (*tensor.Tensor, error) {
	if a == nil {
		return nil, ErrNoInput
	}
	if bt := tensorOf(b); bt != nil {
		return tensor.AbsDiff(a, bt)
	}

	second := describeOperand(b)
	if d.strict {
		return nil, &MalformedInputError{Layer: d.name, First: a.Shape().String(), Second: second}
	}
	d.logger.Warn("second distance operand is not a tensor, returning zeros",
		zap.String("layer", d.name),
		zap.Stringer("first", a.Shape()),
		zap.String("second", second),
	)
	return tensor.ZerosLike(a), nil
}

func (d *Distance) list(l List) (*tensor.Tensor, error) {
	if len(l) == 0 {
		return nil, fmt.Errorf("%w: empty list", ErrNoInput)
	}
	first := tensorOf(l[0])
	if first == nil {
		return nil, fmt.Errorf("%w: first operand is %s", ErrNoInput, describeOperand(l[0]))
	}
	if len(l) == 2 {
		return d.pair(first, l[1])
	}

	if d.strict {
		return nil, fmt.Errorf("%w: list of %d operands", ErrUnrecognizedCall, len(l))
	}
	d.logger.Debug("unrecognized distance call, treating first operand as a difference",
		zap.String("layer", d.name),
		zap.Int("operands", len(l)),
	)
	return first.Abs(), nil
}

// OutputShape returns the shape Call produces: the first of several input
// shapes, or the single input shape unchanged. The result never aliases the
// argument.
func (d *Distance) OutputShape(shapes ...tensor.Shape) tensor.Shape {
	if len(shapes) == 0 {
		return tensor.Shape{}
	}
	return shapes[0].Clone()
}

// Backward returns the gradients of |a - b| with respect to a and b, each
// reduced to its operand's shape:
//
//	dL/da =  grad * sign(a - b)
//	dL/db = -grad * sign(a - b)
func (d *Distance) Backward(a, b, gradOutput *tensor.Tensor) (gradA, gradB *tensor.Tensor, err error) {
	if a == nil || b == nil || gradOutput == nil {
		return nil, nil, ErrNoInput
	}
	shape, err := tensor.Broadcast(a.Shape(), b.Shape())
	if err != nil {
		return nil, nil, err
	}
	if !gradOutput.Shape().Equal(shape) {
		return nil, nil, fmt.Errorf("%w: gradient %v for output %v", tensor.ErrShapeMismatch, gradOutput.Shape(), shape)
	}
	ab, err := a.BroadcastTo(shape)
	if err != nil {
		return nil, nil, err
	}
	bb, err := b.BroadcastTo(shape)
	if err != nil {
		return nil, nil, err
	}

	g := gradOutput.Mul(ab.Sub(bb).Sign())
	if gradA, err = g.SumTo(a.Shape()); err != nil {
		return nil, nil, err
	}
	if gradB, err = g.Scale(-1).SumTo(b.Shape()); err != nil {
		return nil, nil, err
	}
	return gradA, gradB, nil
}

// Parameters returns nil; the layer has no weights.
func (d *Distance) Parameters() []*tensor.Tensor { return nil }

// Config returns the base layer fields only; the layer takes no constructor
// arguments of its own.
func (d *Distance) Config() Config {
	return Config{
		ClassName: ClassL1Dist,
		Name:      d.name,
		Trainable: true,
		DType:     d.dtype,
	}
}

// Name returns the layer name.
func (d *Distance) Name() string { return d.name }

// Strict reports whether malformed calls are rejected.
func (d *Distance) Strict() bool { return d.strict }
