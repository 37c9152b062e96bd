package orders

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	pkgerrors "github.com/charmforge/charmforge-backend/pkg/errors"
)

const numberGenerationAttempts = 5

// NumberGenerator mints human-readable order numbers of the form
// PREFIX-YYYYMMDD-NNNN.
type NumberGenerator struct {
	prefix string
	now    func() time.Time
	pick   func() int
}

func NewNumberGenerator(prefix string) *NumberGenerator {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		prefix = "CF"
	}
	return &NumberGenerator{
		prefix: prefix,
		now:    time.Now,
		pick:   func() int { return rand.IntN(10000) },
	}
}

// Generate returns a candidate order number. Uniqueness is not guaranteed
// here; GenerateUnique retries against the repository.
func (g *NumberGenerator) Generate() string {
	return fmt.Sprintf("%s-%s-%04d", g.prefix, g.now().UTC().Format("20060102"), g.pick())
}

// GenerateUnique mints a number not yet present in the orders table. The
// 4-digit suffix collides rarely, so a handful of attempts is plenty.
func (g *NumberGenerator) GenerateUnique(ctx context.Context, repo Repository) (string, error) {
	for attempt := 0; attempt < numberGenerationAttempts; attempt++ {
		candidate := g.Generate()
		_, err := repo.FindByNumber(ctx, candidate)
		if err == nil {
			continue
		}
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			return candidate, nil
		}
		return "", err
	}
	return "", pkgerrors.New(pkgerrors.CodeInternal, "could not generate a unique order number")
}
