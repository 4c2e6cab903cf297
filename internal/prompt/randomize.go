package prompt

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/dmorgan81/imagen/internal/log"
	"github.com/samber/do"
	"github.com/samber/lo"
)

var defaultPrompts = []string{
	"An astronaut riding a horse on Mars, photorealistic, sunset",
	"A lighthouse on a cliff during a storm, oil painting",
	"A cozy reading nook in a treehouse, warm light, watercolor",
	"A red fox curled up in fresh snow, macro photography",
}

// Randomizer hands out example prompts for the form placeholder.
type Randomizer struct {
	prompts []string

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewRandomizer(i *do.Injector) (*Randomizer, error) {
	prompts, err := do.InvokeNamed[[]string](i, "prompts")
	if err != nil {
		return nil, err
	}
	return New(prompts, time.Now().UTC().Unix()), nil
}

// New builds a Randomizer over prompts. Blank entries are dropped and an
// empty list falls back to the built-in examples.
func New(prompts []string, seed int64) *Randomizer {
	prompts = lo.Filter(lo.Map(prompts, func(p string, _ int) string {
		return strings.TrimSpace(p)
	}), func(p string, _ int) bool {
		return p != ""
	})
	return &Randomizer{
		prompts: lo.Ternary(len(prompts) > 0, prompts, defaultPrompts),
		rnd:     rand.New(rand.NewSource(seed)),
	}
}

func (r *Randomizer) Randomize(ctx context.Context) string {
	r.mu.Lock()
	idx := r.rnd.Intn(len(r.prompts))
	r.mu.Unlock()

	log.FromContextOrDiscard(ctx).WithGroup("randomizer").Debug("picked example prompt", "index", idx)
	return r.prompts[idx]
}
