// Package procedure implements the storage engine's C-ABI-shaped bridge
// for query-engine plugins: opaque handles instead of Go pointers
// crossing the boundary, a closed error-code enum instead of Go's error
// interface, and caller-supplied memory arenas instead of ordinary heap
// allocation on the plugin side.
package procedure

import (
	"errors"

	"github.com/mimirgraph/corestore/pkg/storage"
)

// ErrorCode mirrors the fixed, versioned error-code enum a C ABI needs:
// plugins compiled against one version of this header must keep working
// against a future storage engine that only ever appends new codes.
type ErrorCode int32

const (
	ErrorSuccess ErrorCode = iota
	ErrorNonexistentObject
	ErrorDeletedObject
	ErrorSerialization
	ErrorOutOfMemory
	ErrorInvalidArgument
	ErrorOutOfRange
	ErrorLogicError
	ErrorValueConversion
	ErrorImmutableView
	ErrorUnknown ErrorCode = 255
)

// ToErrorCode maps a storage-layer error to the closed code a plugin can
// switch on without importing this module's Go types. Any error not in
// the explicit table collapses to ErrorUnknown rather than leaking an
// unbounded Go error string across the ABI boundary.
func ToErrorCode(err error) ErrorCode {
	switch {
	case err == nil:
		return ErrorSuccess
	case errors.Is(err, storage.ErrNonexistentObject):
		return ErrorNonexistentObject
	case errors.Is(err, storage.ErrDeletedObject):
		return ErrorDeletedObject
	case errors.Is(err, storage.ErrSerialization):
		return ErrorSerialization
	case errors.Is(err, storage.ErrOutOfMemory):
		return ErrorOutOfMemory
	case errors.Is(err, storage.ErrInvalidArgument):
		return ErrorInvalidArgument
	case errors.Is(err, storage.ErrOutOfRange):
		return ErrorOutOfRange
	case errors.Is(err, storage.ErrLogicError):
		return ErrorLogicError
	case errors.Is(err, storage.ErrImmutableView):
		return ErrorImmutableView
	case errors.Is(err, ErrValueConversion):
		return ErrorValueConversion
	default:
		return ErrorUnknown
	}
}

func (c ErrorCode) String() string {
	switch c {
	case ErrorSuccess:
		return "SUCCESS"
	case ErrorNonexistentObject:
		return "NONEXISTENT_OBJECT"
	case ErrorDeletedObject:
		return "DELETED_OBJECT"
	case ErrorSerialization:
		return "SERIALIZATION_ERROR"
	case ErrorOutOfMemory:
		return "OUT_OF_MEMORY"
	case ErrorInvalidArgument:
		return "INVALID_ARGUMENT"
	case ErrorOutOfRange:
		return "OUT_OF_RANGE"
	case ErrorLogicError:
		return "LOGIC_ERROR"
	case ErrorValueConversion:
		return "VALUE_CONVERSION"
	case ErrorImmutableView:
		return "IMMUTABLE_VIEW"
	default:
		return "UNKNOWN_ERROR"
	}
}
