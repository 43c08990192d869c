package gwerrors

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteHTTPUsesTypedStatus(t *testing.T) {
	w := httptest.NewRecorder()
	WriteHTTP(w, ErrXsrfMismatch)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestWriteHTTPFallsBackForUnknownError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteHTTP(w, errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestErrorUnwrapsWrappedCause(t *testing.T) {
	cause := errors.New("dial failed")
	wrapped := &Error{Kind: UpstreamUnreachable, Status: http.StatusBadGateway, Message: "upstream unreachable", Err: cause}

	assert.ErrorIs(t, wrapped, cause)
	assert.Contains(t, wrapped.Error(), "dial failed")
}

func TestErrorsAsRecoversKind(t *testing.T) {
	var target *Error
	ok := errors.As(ErrAppNotFound, &target)
	assert.True(t, ok)
	assert.Equal(t, AppNotFound, target.Kind)
}
