package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorMessageIncludesInternal(t *testing.T) {
	wrapped := ErrStoreUnavailable.WithInternal(stderrors.New("connection refused"))
	require.Contains(t, wrapped.Error(), "connection refused")
	require.Contains(t, wrapped.Error(), ErrStoreUnavailable.Message)
}

func TestErrorIsMatchesByCode(t *testing.T) {
	wrapped := ErrLockTimeout.WithInternal(stderrors.New("gave up"))
	require.ErrorIs(t, wrapped, ErrLockTimeout)
	require.NotErrorIs(t, wrapped, ErrInvalidArgument)
}

func TestWrapProducesStoreUnavailable(t *testing.T) {
	cause := stderrors.New("dial tcp: refused")
	wrapped := Wrap(cause, "cache: get record")

	require.ErrorIs(t, wrapped, ErrStoreUnavailable)
	require.ErrorIs(t, wrapped, cause)
}

func TestFromErrorPassesThroughStructured(t *testing.T) {
	require.Nil(t, FromError(nil))

	structured := NewInvalidArgument("bad key")
	require.Same(t, structured, FromError(structured))

	generic := FromError(stderrors.New("boom"))
	require.Equal(t, ErrStoreUnavailable.Code, generic.Code)
}

func TestNilErrorBehaviour(t *testing.T) {
	var nilErr *Error
	require.Equal(t, "<nil>", nilErr.Error())
	require.Nil(t, nilErr.Unwrap())
	require.Nil(t, nilErr.WithInternal(stderrors.New("x")))
}
