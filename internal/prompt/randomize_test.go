package prompt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRandomizePicksFromList(t *testing.T) {
	prompts := []string{"a cat in a hat", "a dog on a log"}
	r := New(append(prompts, "  ", ""), 1)

	for i := 0; i < 20; i++ {
		assert.Contains(t, prompts, r.Randomize(context.Background()))
	}
}

func TestRandomizeFallsBackToDefaults(t *testing.T) {
	r := New(nil, 1)
	assert.Contains(t, defaultPrompts, r.Randomize(context.Background()))

	r = New([]string{" "}, 1)
	assert.Contains(t, defaultPrompts, r.Randomize(context.Background()))
}
