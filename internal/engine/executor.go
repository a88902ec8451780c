package engine

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/fnmodels/internal/checksum"
	"github.com/roach88/fnmodels/internal/command"
	"github.com/roach88/fnmodels/internal/guest"
)

// Policy decides whether the executor handles a command or defers it.
type Policy interface {
	Handles(c command.Command) bool
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(c command.Command) bool

// Handles implements Policy.
func (f PolicyFunc) Handles(c command.Command) bool {
	return f(c)
}

// HandleAll handles every command.
func HandleAll() Policy {
	return PolicyFunc(func(command.Command) bool { return true })
}

// DeferAll declines every command.
func DeferAll() Policy {
	return PolicyFunc(func(command.Command) bool { return false })
}

// DeferOps declines the listed ops and handles the rest.
func DeferOps(ops ...command.Op) Policy {
	skip := make(map[command.Op]bool, len(ops))
	for _, op := range ops {
		skip[op] = true
	}
	return PolicyFunc(func(c command.Command) bool { return !skip[c.Op] })
}

// ParsePolicy maps a configuration name to a Policy. deferOps is only
// consulted for "defer-ops".
func ParsePolicy(name string, deferOps []string) (Policy, error) {
	switch name {
	case "", "handle-all":
		return HandleAll(), nil
	case "defer-all":
		return DeferAll(), nil
	case "defer-ops":
		ops := make([]command.Op, 0, len(deferOps))
		for _, n := range deferOps {
			op, err := command.ParseOp(n)
			if err != nil {
				return nil, fmt.Errorf("parse policy: %w", err)
			}
			ops = append(ops, op)
		}
		return DeferOps(ops...), nil
	}
	return nil, fmt.Errorf("parse policy: unknown policy %q", name)
}

// Executor handles function-model commands on concrete guest memory.
//
// For every command its Policy accepts, the executor performs the operation
// with C library semantics, stores the result and clears the defer flag.
// A command that faults is left untouched so the real routine runs and
// faults the way the program expects.
type Executor struct {
	space  *guest.Space
	policy Policy
	log    *zap.Logger
}

// NewExecutor creates an executor over space.
func NewExecutor(space *guest.Space, policy Policy, log *zap.Logger) *Executor {
	if policy == nil {
		policy = HandleAll()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{space: space, policy: policy, log: log}
}

// Handle implements Handler.
func (x *Executor) Handle(msg []byte) error {
	c, err := command.Decode(msg)
	if err != nil {
		return &Error{Code: ErrCodeBadMessage, Channel: command.Channel, Message: "decode command", Err: err}
	}
	if !x.policy.Handles(c) {
		x.log.Debug("deferring", zap.Stringer("command", c))
		return nil
	}
	if err := x.execute(&c); err != nil {
		if errors.Is(err, guest.ErrFault) {
			return &Error{Code: ErrCodeFault, Channel: command.Channel, Message: c.Op.String(), Err: err}
		}
		return err
	}
	c.Defer = false
	x.log.Debug("handled", zap.Stringer("command", c))
	return c.EncodeInto(msg)
}

// ResultSymbolic reports whether the result of a handled comparison
// depends on symbolic bytes.
func (x *Executor) ResultSymbolic(msg []byte) bool {
	c, err := command.Decode(msg)
	if err != nil || c.Defer {
		return false
	}
	switch c.Op {
	case command.OpMemcmp:
		return x.space.IsSymbolic(c.First, c.Count) || x.space.IsSymbolic(c.Second, c.Count)
	case command.OpStrcmp, command.OpStrncmp:
		w := uint64(c.CharSize)
		n1, err1 := x.space.Len(c.First, int(c.CharSize))
		n2, err2 := x.space.Len(c.Second, int(c.CharSize))
		if err1 != nil || err2 != nil {
			return false
		}
		return x.space.IsSymbolic(c.First, (n1+1)*w) || x.space.IsSymbolic(c.Second, (n2+1)*w)
	}
	return false
}

func (x *Executor) execute(c *command.Command) error {
	w := int(c.CharSize)
	switch c.Op {
	case command.OpStrcpy:
		n, err := x.space.Len(c.Second, w)
		if err != nil {
			return err
		}
		return x.space.Move(c.First, c.Second, (n+1)*uint64(w))

	case command.OpStrncpy:
		n, err := x.boundedLen(c.Second, w, c.Count)
		if err != nil {
			return err
		}
		if err := x.space.Move(c.First, c.Second, n*uint64(w)); err != nil {
			return err
		}
		if n < c.Count {
			return x.space.Fill(c.First+n*uint64(w), w, 0, c.Count-n)
		}
		return nil

	case command.OpStrlen:
		n, err := x.space.Len(c.First, w)
		if err != nil {
			return err
		}
		c.Result = n
		return nil

	case command.OpStrcmp:
		r, err := x.compareUnits(c.First, c.Second, w, ^uint64(0), true)
		c.Result = uint64(int64(r))
		return err

	case command.OpStrncmp:
		r, err := x.compareUnits(c.First, c.Second, w, c.Count, true)
		c.Result = uint64(int64(r))
		return err

	case command.OpMemcmp:
		r, err := x.compareUnits(c.First, c.Second, 1, c.Count, false)
		c.Result = uint64(int64(r))
		return err

	case command.OpMemcpy:
		return x.space.Move(c.First, c.Second, c.Count)

	case command.OpStrcat, command.OpStrncat:
		end, err := x.space.Len(c.First, w)
		if err != nil {
			return err
		}
		limit := ^uint64(0)
		if c.Op == command.OpStrncat {
			limit = c.Count
		}
		n, err := x.boundedLen(c.Second, w, limit)
		if err != nil {
			return err
		}
		dst := c.First + end*uint64(w)
		if err := x.space.Move(dst, c.Second, n*uint64(w)); err != nil {
			return err
		}
		return x.space.PutUnit(dst+n*uint64(w), w, 0)

	case command.OpCrc:
		seed, err := x.space.Uint(c.First, c.CRC.Width())
		if err != nil {
			return err
		}
		p, err := x.space.Read(c.Second, c.Count)
		if err != nil {
			return err
		}
		c.Result = checksum.Update(c.CRC, seed, p, c.Finalize)
		return nil
	}
	return fmt.Errorf("%w: %s", command.ErrUnknownOp, c.Op)
}

// boundedLen counts units before the terminator, stopping at limit.
func (x *Executor) boundedLen(addr uint64, w int, limit uint64) (uint64, error) {
	var n uint64
	for ; n < limit; n++ {
		u, err := x.space.Unit(addr+n*uint64(w), w)
		if err != nil {
			return 0, err
		}
		if u == 0 {
			break
		}
	}
	return n, nil
}

// compareUnits returns -1, 0 or 1. Units compare as unsigned for bytes and
// as signed for wide characters; stopAtNUL selects string semantics.
func (x *Executor) compareUnits(a, b uint64, w int, limit uint64, stopAtNUL bool) (int32, error) {
	for i := uint64(0); i < limit; i++ {
		ua, err := x.space.Unit(a+i*uint64(w), w)
		if err != nil {
			return 0, err
		}
		ub, err := x.space.Unit(b+i*uint64(w), w)
		if err != nil {
			return 0, err
		}
		if ua != ub {
			less := ua < ub
			if w > 1 {
				less = int32(ua) < int32(ub)
			}
			if less {
				return -1, nil
			}
			return 1, nil
		}
		if stopAtNUL && ua == 0 {
			return 0, nil
		}
	}
	return 0, nil
}
