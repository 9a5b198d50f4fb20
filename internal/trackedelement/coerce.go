package trackedelement

import (
	"fmt"
	"math"
	"net"
	"strconv"

	"github.com/google/uuid"

	"github.com/kismetcore/kismet/internal/devicekey"
)

// ErrCoerce is returned when a coercive Set or AsString fails because the
// source value cannot be represented as the element's type.
type ErrCoerce struct {
	Kind  Kind
	Value string
}

func (e *ErrCoerce) Error() string {
	return fmt.Sprintf("trackedelement: cannot coerce %q into %s", e.Value, e.Kind)
}

// SetInt sets a numeric scalar element from an int64, converting to the
// element's signedness (or to float); the value is stored in 64 bits and
// is not truncated to the kind's width.
func (e *Element) SetInt(v int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.kind {
	case KindI8, KindI16, KindI32, KindI64:
		e.i = v
	case KindU8, KindU16, KindU32, KindU64:
		e.u = uint64(v)
	case KindF32, KindF64:
		e.f = float64(v)
	default:
		return &ErrCoerce{Kind: e.kind, Value: strconv.FormatInt(v, 10)}
	}
	e.materialize()
	return nil
}

// SetUint sets an integer-scalar element from a uint64.
func (e *Element) SetUint(v uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.kind {
	case KindI8, KindI16, KindI32, KindI64:
		e.i = int64(v)
	case KindU8, KindU16, KindU32, KindU64:
		e.u = v
	case KindF32, KindF64:
		e.f = float64(v)
	default:
		return &ErrCoerce{Kind: e.kind, Value: strconv.FormatUint(v, 10)}
	}
	e.materialize()
	return nil
}

// SetFloat sets a float-scalar element from a float64.
func (e *Element) SetFloat(v float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.kind {
	case KindF32, KindF64:
		e.f = v
	case KindI8, KindI16, KindI32, KindI64:
		e.i = int64(v)
	case KindU8, KindU16, KindU32, KindU64:
		e.u = uint64(v)
	default:
		return &ErrCoerce{Kind: e.kind, Value: strconv.FormatFloat(v, 'g', -1, 64)}
	}
	e.materialize()
	return nil
}

// SetString coercively sets a scalar element from a string. mac/uuid/ipv4
// parse failures return a typed *ErrCoerce.
func (e *Element) SetString(v string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.kind {
	case KindString:
		e.s = v
	case KindByteArray:
		e.b = []byte(v)
	case KindI8, KindI16, KindI32, KindI64:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return &ErrCoerce{Kind: e.kind, Value: v}
		}
		e.i = n
	case KindU8, KindU16, KindU32, KindU64:
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return &ErrCoerce{Kind: e.kind, Value: v}
		}
		e.u = n
	case KindF32, KindF64:
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return &ErrCoerce{Kind: e.kind, Value: v}
		}
		e.f = n
	case KindMAC:
		m, err := net.ParseMAC(v)
		if err != nil {
			return &ErrCoerce{Kind: e.kind, Value: v}
		}
		e.mac = m
	case KindUUID:
		u, err := uuid.Parse(v)
		if err != nil {
			return &ErrCoerce{Kind: e.kind, Value: v}
		}
		e.uid = u
	case KindIPv4:
		ip := net.ParseIP(v)
		if ip == nil || ip.To4() == nil {
			return &ErrCoerce{Kind: e.kind, Value: v}
		}
		e.ip = ip.To4()
	case KindDeviceKey:
		k, err := devicekey.Parse(v)
		if err != nil {
			return &ErrCoerce{Kind: e.kind, Value: v}
		}
		e.dkey = k
	default:
		return &ErrCoerce{Kind: e.kind, Value: v}
	}
	e.materialize()
	return nil
}

// AsString renders any stringable scalar element's value as a string. All
// scalar kinds implement the common as_string coercion.
func (e *Element) AsString() (string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.asStringLocked()
}

// asStringLocked is AsString's body, assuming e.mu is already held (for at
// least read) by the caller. Callers that already hold the lock (Less) must
// use this instead of AsString to avoid recursively read-locking a
// sync.RWMutex, which deadlocks against a concurrent writer.
func (e *Element) asStringLocked() (string, error) {
	switch e.kind {
	case KindString:
		return e.s, nil
	case KindByteArray:
		return string(e.b), nil
	case KindI8, KindI16, KindI32, KindI64:
		return strconv.FormatInt(e.i, 10), nil
	case KindU8, KindU16, KindU32, KindU64:
		return strconv.FormatUint(e.u, 10), nil
	case KindF32, KindF64:
		return strconv.FormatFloat(e.f, 'g', -1, 64), nil
	case KindMAC:
		return e.mac.String(), nil
	case KindUUID:
		return e.uid.String(), nil
	case KindIPv4:
		return e.ip.String(), nil
	case KindDeviceKey:
		return e.dkey.String(), nil
	default:
		return "", &ErrCoerce{Kind: e.kind, Value: "<non-scalar>"}
	}
}

// Int returns the element's value as an int64. Only meaningful on integer
// and float scalar kinds.
func (e *Element) Int() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	switch e.kind {
	case KindI8, KindI16, KindI32, KindI64:
		return e.i
	case KindU8, KindU16, KindU32, KindU64:
		return int64(e.u)
	case KindF32, KindF64:
		return int64(e.f)
	default:
		return 0
	}
}

// Uint returns the element's value as a uint64.
func (e *Element) Uint() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	switch e.kind {
	case KindU8, KindU16, KindU32, KindU64:
		return e.u
	case KindI8, KindI16, KindI32, KindI64:
		return uint64(e.i)
	case KindF32, KindF64:
		return uint64(e.f)
	default:
		return 0
	}
}

// Float returns the element's value as a float64.
func (e *Element) Float() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	switch e.kind {
	case KindF32, KindF64:
		return e.f
	case KindI8, KindI16, KindI32, KindI64:
		return float64(e.i)
	case KindU8, KindU16, KindU32, KindU64:
		return float64(e.u)
	default:
		return 0
	}
}

// Less implements the alphanumeric-for-strings, numeric-for-numbers
// comparison used to sort scalar elements of the same kind.
func Less(a, b *Element) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	b.mu.RLock()
	defer b.mu.RUnlock()

	switch a.kind {
	case KindString, KindByteArray, KindMAC, KindUUID, KindIPv4, KindDeviceKey:
		as, _ := a.asStringLocked()
		bs, _ := b.asStringLocked()
		return as < bs
	case KindF32, KindF64:
		return a.f < b.f
	case KindI8, KindI16, KindI32, KindI64:
		return a.i < b.i
	case KindU8, KindU16, KindU32, KindU64:
		return a.u < b.u
	default:
		return false
	}
}

// isNaNOrInf reports whether f is NaN or +/-Inf, the condition under which
// JSON encoding substitutes 0 (see json.go).
func isNaNOrInf(f float64) bool {
	return math.IsNaN(f) || math.IsInf(f, 0)
}
