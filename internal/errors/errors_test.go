package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{KindValidation, 400},
		{KindNotFound, 404},
		{KindUnauthorized, 401},
		{KindForbidden, 403},
		{KindConflict, 409},
		{KindTooEarly, 200},
		{KindServiceUnavailable, 503},
		{KindInternal, 500},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.kind.HTTPStatus(), c.kind.String())
	}
}

func TestRetryable(t *testing.T) {
	assert.True(t, KindServiceUnavailable.Retryable())
	assert.True(t, KindTooEarly.Retryable())
	assert.False(t, KindValidation.Retryable())
	assert.False(t, KindInternal.Retryable())
}

func TestWrapNilIsNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, KindInternal, "should be nil"))
}

func TestWithContextChaining(t *testing.T) {
	err := Validation("bad field").WithContext("field", "title").WithContext("tenant", "acme")
	assert.Equal(t, "title", err.Context["field"])
	assert.Equal(t, "acme", err.Context["tenant"])
}

func TestGetKindUnclassifiedIsInternal(t *testing.T) {
	assert.Equal(t, KindInternal, GetKind(nil))
	assert.Equal(t, KindInternal, GetKind(fmt.Errorf("plain error")))
}
