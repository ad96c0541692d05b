package calls

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

const (
	MinCode = 1000
	MaxCode = 9999

	DefaultCodeAttempts = 50
)

var ErrCodeExhausted = errors.New("calls: no free call code")

// CodeChecker is the slice of Store the generator needs.
type CodeChecker interface {
	CodeInUse(ctx context.Context, code int) (bool, error)
}

// CodeGenerator draws 4-digit call codes that are free among unresolved calls.
//
// The check is advisory: two dispatchers can draw the same free code
// concurrently. The store's uniqueness constraint settles that race and the
// dispatcher re-draws on ErrDuplicateCode.
type CodeGenerator struct {
	checker     CodeChecker
	maxAttempts int

	mu  sync.Mutex
	rng *rand.Rand
}

// NewCodeGenerator returns a generator; rng may be nil.
func NewCodeGenerator(checker CodeChecker, maxAttempts int, rng *rand.Rand) *CodeGenerator {
	if maxAttempts <= 0 {
		maxAttempts = DefaultCodeAttempts
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &CodeGenerator{checker: checker, maxAttempts: maxAttempts, rng: rng}
}

// Generate returns a code in [MinCode, MaxCode] not held by an unresolved call.
func (g *CodeGenerator) Generate(ctx context.Context) (int, error) {
	if g.checker == nil {
		return 0, errors.New("calls: code checker not configured")
	}
	for i := 0; i < g.maxAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		code := g.draw()
		inUse, err := g.checker.CodeInUse(ctx, code)
		if err != nil {
			return 0, fmt.Errorf("calls: check code: %w", err)
		}
		if !inUse {
			return code, nil
		}
	}
	return 0, fmt.Errorf("%w after %d attempts", ErrCodeExhausted, g.maxAttempts)
}

func (g *CodeGenerator) draw() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return MinCode + g.rng.Intn(MaxCode-MinCode+1)
}
