package core

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	reg.Register("s1",
		UppercaseVariables("A", "", ""),
		UppercaseVariables("B", "", ""),
	)
	reg.Register("s1", UppercaseVariables("C", "", ""))
	reg.Declare("s2")

	t.Run("preserves registration order", func(t *testing.T) {
		rules := reg.Get("s1")
		require.Len(t, rules, 3)
		assert.Equal(t, "A", rules[0].ID)
		assert.Equal(t, "B", rules[1].ID)
		assert.Equal(t, "C", rules[2].ID)
	})

	t.Run("unknown standard is an empty list", func(t *testing.T) {
		rules, err := reg.RulesFor(context.Background(), "nope")
		require.NoError(t, err)
		assert.Empty(t, rules)
		assert.False(t, reg.Has("nope"))
	})

	t.Run("declared standard has no rules", func(t *testing.T) {
		assert.True(t, reg.Has("s2"))
		assert.Empty(t, reg.Get("s2"))
	})

	t.Run("listing", func(t *testing.T) {
		assert.Equal(t, []string{"s1", "s2"}, reg.Standards())
		assert.Equal(t, 3, reg.RuleCount())
	})

	t.Run("returned slice is a copy", func(t *testing.T) {
		rules := reg.Get("s1")
		rules[0].ID = "Z"
		assert.Equal(t, "A", reg.Get("s1")[0].ID)
	})
}

func TestRegistryPanics(t *testing.T) {
	reg := NewRegistry()
	reg.Register("s", UppercaseVariables("A", "", ""))

	assert.Panics(t, func() { reg.Register("s", UppercaseVariables("A", "", "")) }, "duplicate id")
	assert.Panics(t, func() { reg.Register("s", Rule{ID: "NOAPPLY", Severity: SeverityError}) }, "missing apply")
	assert.Panics(t, func() { reg.Register("s", UppercaseVariables("", "", "")) }, "missing id")

	assert.NotPanics(t, func() { reg.Register("other", UppercaseVariables("A", "", "")) },
		"ids are scoped per standard")
}

func TestRegistryConcurrentReads(t *testing.T) {
	reg := NewRegistry()
	reg.Register("s", UppercaseVariables("A", "", ""))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Len(t, reg.Get("s"), 1)
		}()
	}
	wg.Wait()

	reg.Clear()
	assert.Empty(t, reg.Standards())
}
