package sandbox

import (
	"context"
	"encoding/binary"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/taintbox"
	"github.com/wippyai/taintbox/abi"
	"github.com/wippyai/taintbox/errors"
)

const (
	stateNew int32 = iota
	stateActive
	stateDestroyed
)

// Sandbox is one active sandboxed execution context. It owns the
// backend's heap and ABI descriptor for its lifetime and performs all
// address translation between sandbox-relative offsets and host
// addresses.
type Sandbox struct {
	backend taintbox.Backend
	desc    abi.Descriptor
	log     *zap.Logger
	state   atomic.Int32
}

// Option configures a Sandbox.
type Option func(*Sandbox)

// WithABI overrides the backend's ABI descriptor. Used by test backends
// that emulate narrower integer or pointer widths.
func WithABI(d abi.Descriptor) Option {
	return func(s *Sandbox) { s.desc = d }
}

// WithLogger sets the sandbox logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Sandbox) { s.log = l }
}

// New creates a Sandbox over a backend. The sandbox is unusable until
// Create is called.
func New(be taintbox.Backend, opts ...Option) *Sandbox {
	s := &Sandbox{
		backend: be,
		desc:    be.ABI(),
		log:     Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ABI returns the sandbox's ABI descriptor.
func (s *Sandbox) ABI() abi.Descriptor {
	return s.desc
}

// Create brings the sandbox up. Calling Create on an active or destroyed
// sandbox is an error.
func (s *Sandbox) Create(ctx context.Context) error {
	if !s.state.CompareAndSwap(stateNew, stateActive) {
		if s.state.Load() == stateDestroyed {
			return errors.Destroyed(errors.PhaseLifecycle)
		}
		return errors.InvalidInput(errors.PhaseLifecycle, "sandbox already created")
	}
	if err := s.backend.Create(ctx); err != nil {
		s.state.Store(stateNew)
		return errors.Wrap(errors.PhaseLifecycle, errors.KindInvalidInput, err, "backend create")
	}
	s.log.Debug("sandbox created",
		zap.Uint64("heap_size", s.backend.HeapSize()),
		zap.Int("pointer_width", s.desc.PointerWidth.Bits()),
		zap.Int("int_width", s.desc.IntWidth.Bits()))
	return nil
}

// Destroy tears the sandbox down. All wrappers bound to this sandbox
// become invalid; using them returns lifecycle errors.
func (s *Sandbox) Destroy(ctx context.Context) error {
	if !s.state.CompareAndSwap(stateActive, stateDestroyed) {
		if s.state.Load() == stateNew {
			return errors.NotCreated(errors.PhaseLifecycle)
		}
		return errors.Destroyed(errors.PhaseLifecycle)
	}
	err := s.backend.Destroy(ctx)
	s.log.Debug("sandbox destroyed", zap.Error(err))
	if err != nil {
		return errors.Wrap(errors.PhaseLifecycle, errors.KindInvalidInput, err, "backend destroy")
	}
	return nil
}

func (s *Sandbox) ensureActive(phase errors.Phase) error {
	switch s.state.Load() {
	case stateActive:
		return nil
	case stateNew:
		return errors.NotCreated(phase)
	default:
		return errors.Destroyed(phase)
	}
}

// checkBounds verifies that [offset, offset+length) lies inside the
// sandbox heap.
func (s *Sandbox) checkBounds(phase errors.Phase, offset uint64, length uint32) error {
	size := s.backend.HeapSize()
	if offset >= size || uint64(length) > size-offset {
		return errors.OffsetOutOfBounds(phase, offset, length, size)
	}
	return nil
}

// OffsetToAddress translates a sandbox-relative offset to a host
// address. The address is computed from the heap base as of this call;
// backends may relocate their heap, so the result must be used
// immediately and never cached. Panics with *errors.Error when the
// offset does not fall within the heap: that is a host logic error, not
// an expected runtime condition.
func (s *Sandbox) OffsetToAddress(offset uint64) uintptr {
	if err := s.checkBounds(errors.PhaseConvert, offset, 0); err != nil {
		panic(err)
	}
	return s.backend.HeapBase() + uintptr(offset)
}

// AddressToOffset translates a host address to a sandbox-relative
// offset. Panics with *errors.Error when the address does not fall
// within [base, base+size): the core never synthesizes offsets for
// memory the sandbox does not own.
func (s *Sandbox) AddressToOffset(addr uintptr) uint64 {
	base := s.backend.HeapBase()
	size := s.backend.HeapSize()
	if addr < base || uint64(addr-base) >= size {
		panic(errors.AddressOutOfBounds(addr, base, size))
	}
	return uint64(addr - base)
}

// readSlot reads a value of the given width from sandbox memory,
// little-endian, zero-extended into a slot. Each call is a fresh read.
func (s *Sandbox) readSlot(offset uint64, w abi.Width) (uint64, error) {
	if err := s.ensureActive(errors.PhaseMemory); err != nil {
		return 0, err
	}
	if err := s.checkBounds(errors.PhaseMemory, offset, uint32(w)); err != nil {
		return 0, err
	}
	buf, err := s.backend.Read(offset, uint32(w))
	if err != nil {
		return 0, errors.Wrap(errors.PhaseMemory, errors.KindOutOfBounds, err, "heap read")
	}
	var raw [8]byte
	copy(raw[:], buf)
	return binary.LittleEndian.Uint64(raw[:]), nil
}

// writeSlot writes the low bytes of a slot to sandbox memory,
// little-endian.
func (s *Sandbox) writeSlot(offset uint64, w abi.Width, slot uint64) error {
	if err := s.ensureActive(errors.PhaseMemory); err != nil {
		return err
	}
	if err := s.checkBounds(errors.PhaseMemory, offset, uint32(w)); err != nil {
		return err
	}
	var raw [8]byte
	binary.LittleEndian.PutUint64(raw[:], slot)
	if err := s.backend.Write(offset, raw[:w]); err != nil {
		return errors.Wrap(errors.PhaseMemory, errors.KindOutOfBounds, err, "heap write")
	}
	return nil
}
