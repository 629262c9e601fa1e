package names

import (
	"context"
	"sync"

	"github.com/brianvoe/gofakeit/v7"
)

// FakerGenerator produces synthetic first names. Many of them are unknown
// to the age oracle, so it is meant to be wrapped by a subjects.Resolver.
type FakerGenerator struct {
	mu    sync.Mutex
	faker *gofakeit.Faker
}

// NewFakerGenerator creates a generator. Seed 0 picks a random seed.
func NewFakerGenerator(seed uint64) *FakerGenerator {
	return &FakerGenerator{faker: gofakeit.New(seed)}
}

// Next returns a first name.
func (g *FakerGenerator) Next(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.faker.FirstName(), nil
}
