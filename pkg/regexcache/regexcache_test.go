package regexcache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_ReturnsSameInstance(t *testing.T) {
	t.Parallel()

	a, err := Get(`itk_[a-z0-9]{12}`)
	require.NoError(t, err)
	b, err := Get(`itk_[a-z0-9]{12}`)
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.GreaterOrEqual(t, Size(), 1)
}

func TestGet_Invalid(t *testing.T) {
	t.Parallel()

	_, err := Get(`(unclosed`)
	assert.Error(t, err)
}

func TestMustGet_Panics(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { MustGet(`[`) })
	assert.NotPanics(t, func() { MustGet(`ok+`) })
}

func TestValidate(t *testing.T) {
	t.Parallel()

	idx, err := Validate(`a+`, `b*`, `(`, `c`)
	assert.Equal(t, 2, idx)
	assert.Error(t, err)

	idx, err = Validate(`a+`, `b*`)
	assert.Equal(t, -1, idx)
	assert.NoError(t, err)
}
