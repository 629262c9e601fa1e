// Package names provides the subject name sources: a fixed embedded list, a
// synthetic first-name generator and a SQLite-backed pool.
package names

import (
	"bufio"
	"context"
	_ "embed"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strings"
	"sync"

	"github.com/okian/ageguess/internal/domain/subjects"
)

//go:embed valid_names.txt
var validNames string

// Builtin returns the embedded name list.
func Builtin() []string {
	list, _ := ParseList(strings.NewReader(validNames))
	return list
}

// ParseList reads one name per line. Blank lines and lines starting with
// '#' are skipped; names are normalized and deduplicated in order.
func ParseList(r io.Reader) ([]string, error) {
	var out []string
	seen := make(map[string]struct{})
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name := subjects.Normalize(line)
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read names: %w", err)
	}
	if len(out) == 0 {
		return nil, ErrNoNames
	}
	return out, nil
}

// LoadFile reads a name list from disk.
func LoadFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open names file: %w", err)
	}
	defer f.Close()
	return ParseList(f)
}

// StaticPool samples from a fixed list held in memory.
type StaticPool struct {
	mu    sync.Mutex
	names []string
	rng   *rand.Rand
}

// StaticOption applies a configuration option to the StaticPool.
type StaticOption func(*StaticPool)

// WithNames replaces the embedded list.
func WithNames(list []string) StaticOption {
	return func(p *StaticPool) {
		if len(list) > 0 {
			p.names = list
		}
	}
}

// WithSeed makes sampling deterministic.
func WithSeed(seed uint64) StaticOption {
	return func(p *StaticPool) {
		p.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// NewStaticPool creates a pool over the embedded list.
func NewStaticPool(opts ...StaticOption) *StaticPool {
	p := &StaticPool{
		names: Builtin(),
		rng:   rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Sample returns n distinct names chosen uniformly without replacement.
func (p *StaticPool) Sample(_ context.Context, n int) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n > len(p.names) {
		return nil, fmt.Errorf("%w: want %d, have %d", subjects.ErrEmptyPool, n, len(p.names))
	}
	out := make([]string, 0, n)
	for _, i := range p.rng.Perm(len(p.names))[:n] {
		out = append(out, p.names[i])
	}
	return out, nil
}

// Next returns one random name, so the list can also drive lazy games.
func (p *StaticPool) Next(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.names[p.rng.IntN(len(p.names))], nil
}

// Len reports the pool size.
func (p *StaticPool) Len() int { return len(p.names) }
