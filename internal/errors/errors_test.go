package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorString(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "message only",
			err:  New(InvalidDomain, "empty range"),
			want: "empty range",
		},
		{
			name: "component and operation",
			err:  New(InvalidDegree, "degree -1").WithComponent("approx").WithOperation("FitPolynomial"),
			want: "approx.FitPolynomial: degree -1",
		},
		{
			name: "wrapped cause",
			err:  Wrap(fmt.Errorf("singular"), "solve failed").WithComponent("sqp"),
			want: "sqp: solve failed: singular",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestKindMatching(t *testing.T) {
	err := Errorf(InvalidDomain, "low %v > high %v", 2.0, 1.0)

	assert.True(t, stderrors.Is(err, ErrInvalidDomain))
	assert.False(t, stderrors.Is(err, ErrInvalidDegree))
	assert.True(t, Is(fmt.Errorf("outer: %w", err), ErrInvalidDomain))

	wrapped := Wrap(err, "grid search")
	assert.Equal(t, InvalidDomain, KindOf(wrapped))
	assert.True(t, stderrors.Is(wrapped, ErrInvalidDomain))
	assert.Equal(t, err.Stack, wrapped.Stack)

	var target *Error
	require.True(t, As(wrapped, &target))
	assert.Equal(t, InvalidDomain, target.Kind)

	assert.Nil(t, Wrap(nil, "nothing"))
	assert.Nil(t, Wrapf(nil, "nothing %d", 1))
	assert.Equal(t, Kind(""), KindOf(fmt.Errorf("plain")))
}

func TestStackTrace(t *testing.T) {
	err := New(NumericOverflow, "inf")
	assert.NotEmpty(t, err.StackTrace())
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, http.StatusOK, StatusCode(nil))
	assert.Equal(t, http.StatusBadRequest, StatusCode(ErrInvalidDomain))
	assert.Equal(t, http.StatusBadRequest, StatusCode(New(InvalidArgument, "nil function")))
	assert.Equal(t, http.StatusUnprocessableEntity, StatusCode(New(ConvergenceFailure, "max iterations")))
	assert.Equal(t, http.StatusInternalServerError, StatusCode(fmt.Errorf("boom")))
}

func TestWriteJSON(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteJSON(rr, New(InvalidDegree, "degree must be non-negative"))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"degree must be non-negative","kind":"invalid_degree"}`, rr.Body.String())
}
