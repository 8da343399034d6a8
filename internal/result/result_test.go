package result

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResultKinds(t *testing.T) {
	ok := OK(42)
	v, present := ok.Value()
	assert.True(t, present)
	assert.Equal(t, 42, v)
	assert.Equal(t, KindOK, ok.Kind())
	assert.NoError(t, ok.Err())

	empty := Empty[int]()
	assert.False(t, empty.IsOK())
	assert.Equal(t, 0, empty.OrZero())
	assert.NoError(t, empty.Err())

	cause := errors.New("boom")
	degraded := Degraded[[]string](cause)
	assert.Equal(t, KindDegraded, degraded.Kind())
	assert.ErrorIs(t, degraded.Err(), cause)
	assert.Nil(t, degraded.OrZero())
	assert.Equal(t, "degraded", degraded.Kind().String())
}
