package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorBuilder(t *testing.T) {
	t.Parallel()

	err := Newf("analyzer timed out after %d ms", 5000).
		Component("analyzer").
		Category(CategoryTimeout).
		Context("analyzer_name", "species-call").
		Build()

	require.NotNil(t, err)
	assert.Equal(t, "analyzer timed out after 5000 ms", err.Error())
	assert.Equal(t, "analyzer", err.GetComponent())
	assert.Equal(t, string(CategoryTimeout), err.GetCategory())
	assert.Equal(t, "species-call", err.GetContext()["analyzer_name"])
	assert.False(t, err.GetTimestamp().IsZero())
}

func TestCategoryMatching(t *testing.T) {
	t.Parallel()

	a := Newf("first").Category(CategoryDatabase).Build()
	b := Newf("second").Category(CategoryDatabase).Build()
	c := Newf("third").Category(CategoryNetwork).Build()

	assert.True(t, Is(a, b), "errors of the same category should match")
	assert.False(t, Is(a, c), "errors of different categories should not match")
}

func TestUnwrap(t *testing.T) {
	t.Parallel()

	sentinel := NewStd("underlying failure")
	wrapped := New(sentinel).Component("datastore").Category(CategoryDatabase).Build()

	assert.True(t, Is(wrapped, sentinel))
}

func TestDefaultsApplied(t *testing.T) {
	t.Parallel()

	err := Newf("bare error").Build()
	assert.Equal(t, string(CategoryGeneric), err.GetCategory())
	assert.Equal(t, ComponentUnknown, err.GetComponent())
}

func TestInvalidPriorityFallsBack(t *testing.T) {
	t.Parallel()

	err := Newf("oops").Priority("urgent-ish").Build()
	assert.Equal(t, PriorityMedium, err.GetPriority())
}

func TestErrorHookReceivesBuiltErrors(t *testing.T) {
	var received *EnhancedError
	SetErrorHook(func(ee *EnhancedError) { received = ee })
	defer SetErrorHook(nil)

	err := Newf("hooked").Component("fusion").Category(CategoryFusion).Build()
	require.NotNil(t, received)
	assert.Equal(t, err, received)
}
