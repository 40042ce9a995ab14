package sandbox

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/taintbox/abi"
	"github.com/wippyai/taintbox/errors"
)

// Invoke calls a sandbox-resident function and wraps its return value
// as a Tainted value of type R.
//
// Each argument may be a Tainted, Volatile or Ptr wrapper bound to this
// sandbox, or a raw scalar. Wrapped arguments contribute their sandbox
// representation; raw scalars are converted host to sandbox directly,
// the one place a raw value crosses the boundary without a wrapper.
// Argument conversion happens before the invocation, and the result is
// wrapped before it is handed back.
func Invoke[R abi.Scalar](ctx context.Context, s *Sandbox, name string, args ...any) (Tainted[R], error) {
	var zero Tainted[R]
	slots, err := s.marshalArgs(name, args)
	if err != nil {
		return zero, err
	}
	res, err := s.backend.Invoke(ctx, name, slots)
	if err != nil {
		return zero, errors.Wrap(errors.PhaseInvoke, errors.KindInvalidInput, err, name)
	}
	if len(res) == 0 {
		return zero, errors.InvalidInput(errors.PhaseInvoke,
			fmt.Sprintf("function %q returned no value", name))
	}
	return Tainted[R]{sbx: s, val: abi.Lift[R](s.desc, res[0])}, nil
}

// InvokePtr calls a sandbox-resident function whose return value is a
// pointer into the sandbox heap. The returned offset is bounds checked
// before wrapping; a zero return is the null pointer.
func InvokePtr[T abi.Scalar](ctx context.Context, s *Sandbox, name string, args ...any) (Ptr[T], error) {
	var zero Ptr[T]
	slots, err := s.marshalArgs(name, args)
	if err != nil {
		return zero, err
	}
	res, err := s.backend.Invoke(ctx, name, slots)
	if err != nil {
		return zero, errors.Wrap(errors.PhaseInvoke, errors.KindInvalidInput, err, name)
	}
	if len(res) == 0 {
		return zero, errors.InvalidInput(errors.PhaseInvoke,
			fmt.Sprintf("function %q returned no value", name))
	}
	offset := abi.LiftPointer(s.desc, res[0])
	if offset != 0 {
		if err := s.checkBounds(errors.PhaseInvoke, offset, 0); err != nil {
			return zero, err
		}
	}
	return Ptr[T]{sbx: s, offset: offset}, nil
}

// InvokeVoid calls a sandbox-resident function that returns nothing.
func InvokeVoid(ctx context.Context, s *Sandbox, name string, args ...any) error {
	slots, err := s.marshalArgs(name, args)
	if err != nil {
		return err
	}
	if _, err := s.backend.Invoke(ctx, name, slots); err != nil {
		return errors.Wrap(errors.PhaseInvoke, errors.KindInvalidInput, err, name)
	}
	return nil
}

func (s *Sandbox) marshalArgs(name string, args []any) ([]uint64, error) {
	if err := s.ensureActive(errors.PhaseInvoke); err != nil {
		return nil, err
	}
	slots := make([]uint64, len(args))
	for i, a := range args {
		slot, err := s.lowerArg(a)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseInvoke, errors.KindInvalidInput, err,
				fmt.Sprintf("%s argument %d", name, i))
		}
		slots[i] = slot
	}
	s.log.Debug("invoke", zap.String("func", name), zap.Int("args", len(slots)))
	return slots, nil
}

func (s *Sandbox) lowerArg(a any) (uint64, error) {
	if l, ok := a.(lowerable); ok {
		return l.lower(s)
	}
	if slot, _, ok := abi.LowerValue(s.desc, a); ok {
		return slot, nil
	}
	return 0, errors.New(errors.PhaseConvert, errors.KindUnsupported).
		HostType(fmt.Sprintf("%T", a)).
		Detail("aggregate values need a per-type conversion path").
		Build()
}

func crossSandboxErr[T abi.Scalar]() error {
	var z T
	return errors.New(errors.PhaseConvert, errors.KindInvalidInput).
		HostType(fmt.Sprintf("%T", z)).
		Detail("value belongs to a different sandbox").
		Build()
}
