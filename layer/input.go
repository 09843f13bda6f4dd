package layer

import (
	"fmt"

	"github.com/fumi-engineer/siamese/tensor"
)

// Input is the argument set of a Distance call. It is one of Pair, List or
// Single.
type Input interface {
	isInput()
}

// Pair is the two-argument call shape. B may be nil when the caller did not
// supply a second argument.
type Pair struct {
	A *tensor.Tensor
	B Operand
}

// List is the single-argument call shape carrying an ordered sequence,
// normally [a, b].
type List []Operand

// Single carries one tensor that is already a difference of embeddings.
type Single struct {
	A *tensor.Tensor
}

func (Pair) isInput()   {}
func (List) isInput()   {}
func (Single) isInput() {}

// PairOf builds the common Pair of two materialized tensors.
func PairOf(a, b *tensor.Tensor) Pair {
	return Pair{A: a, B: TensorOperand{T: b}}
}

// ListOf builds a List of materialized tensors.
func ListOf(ts ...*tensor.Tensor) List {
	l := make(List, len(ts))
	for i, t := range ts {
		l[i] = TensorOperand{T: t}
	}
	return l
}

// Operand is one positional value of a call: a TensorOperand, or Text or
// TextList when a caller passed identifiers instead of a materialized tensor.
type Operand interface {
	isOperand()
	describe() string
}

// TensorOperand is a materialized tensor.
type TensorOperand struct {
	T *tensor.Tensor
}

// Text is a string received where a tensor was expected.
type Text string

// TextList is a list of strings received where a tensor was expected.
type TextList []string

func (TensorOperand) isOperand() {}
func (Text) isOperand()          {}
func (TextList) isOperand()      {}

func (o TensorOperand) describe() string {
	if o.T == nil {
		return "tensor(nil)"
	}
	return fmt.Sprintf("tensor%v", o.T.Shape())
}

func (o Text) describe() string { return fmt.Sprintf("text(%q)", string(o)) }

func (o TextList) describe() string { return fmt.Sprintf("text_list(%q)", []string(o)) }

// tensorOf returns the tensor held by op, or nil when op is not a
// materialized tensor.
func tensorOf(op Operand) *tensor.Tensor {
	if t, ok := op.(TensorOperand); ok {
		return t.T
	}
	return nil
}

func describeOperand(op Operand) string {
	if op == nil {
		return "absent"
	}
	return op.describe()
}
