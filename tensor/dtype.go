// Package tensor provides the dense float32 tensors consumed by the distance
// layer and the siamese model.
package tensor

import "fmt"

// DType represents the data type of tensor elements.
type DType uint8

const (
	F32 DType = iota
	F16
	BF16
	I32
	I64
)

// Size returns the byte size of each element.
func (d DType) Size() int {
	switch d {
	case F32, I32:
		return 4
	case F16, BF16:
		return 2
	case I64:
		return 8
	default:
		return 4
	}
}

// String returns the string representation of the dtype.
func (d DType) String() string {
	switch d {
	case F32:
		return "f32"
	case F16:
		return "f16"
	case BF16:
		return "bf16"
	case I32:
		return "i32"
	case I64:
		return "i64"
	default:
		return "unknown"
	}
}

// ParseDType is the inverse of DType.String. It also accepts the long
// "float32" spelling written by other frameworks' layer configs.
func ParseDType(s string) (DType, error) {
	switch s {
	case "f32", "float32", "":
		return F32, nil
	case "f16", "float16":
		return F16, nil
	case "bf16", "bfloat16":
		return BF16, nil
	case "i32", "int32":
		return I32, nil
	case "i64", "int64":
		return I64, nil
	default:
		return F32, fmt.Errorf("unknown dtype %q", s)
	}
}
