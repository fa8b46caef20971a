package procedure

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mimirgraph/corestore/pkg/storage"
)

func TestToErrorCodeMapsKnownSentinels(t *testing.T) {
	assert.Equal(t, ErrorSuccess, ToErrorCode(nil))
	assert.Equal(t, ErrorNonexistentObject, ToErrorCode(storage.ErrNonexistentObject))
	assert.Equal(t, ErrorDeletedObject, ToErrorCode(storage.ErrDeletedObject))
	assert.Equal(t, ErrorSerialization, ToErrorCode(storage.ErrSerialization))
	assert.Equal(t, ErrorOutOfMemory, ToErrorCode(storage.ErrOutOfMemory))
	assert.Equal(t, ErrorImmutableView, ToErrorCode(storage.ErrImmutableView))
	assert.Equal(t, ErrorValueConversion, ToErrorCode(ErrValueConversion))
}

func TestToErrorCodeCollapsesUnknownErrors(t *testing.T) {
	assert.Equal(t, ErrorUnknown, ToErrorCode(assertError{}))
}

type assertError struct{}

func (assertError) Error() string { return "boom" }

func TestErrorCodeStringCoversEveryCode(t *testing.T) {
	codes := []ErrorCode{
		ErrorSuccess, ErrorNonexistentObject, ErrorDeletedObject, ErrorSerialization,
		ErrorOutOfMemory, ErrorInvalidArgument, ErrorOutOfRange, ErrorLogicError,
		ErrorValueConversion, ErrorImmutableView, ErrorUnknown,
	}
	for _, c := range codes {
		assert.NotEmpty(t, c.String())
	}
	assert.Equal(t, "UNKNOWN_ERROR", ErrorCode(123).String())
}
