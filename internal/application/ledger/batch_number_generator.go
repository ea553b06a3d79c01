package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pcshop/backend/internal/domain/ledger"
)

// maxSequenceProbes bounds the scan for a free sequence number
const maxSequenceProbes = 1000

// BatchNumberGenerator derives PREFIX-YYYYMMDD-NNN batch codes. The sequence
// is 1 + the number of the product's codes sharing today's stem, advanced
// past any code already taken. The (product, code) unique index is the final
// guard against concurrent writers.
type BatchNumberGenerator struct {
	scope    TransactionScope
	location *time.Location
	clock    func() time.Time
}

// NewBatchNumberGenerator creates a generator that dates codes in location
func NewBatchNumberGenerator(scope TransactionScope, location *time.Location) *BatchNumberGenerator {
	if location == nil {
		location = time.UTC
	}
	return &BatchNumberGenerator{
		scope:    scope,
		location: location,
		clock:    time.Now,
	}
}

// WithClock overrides the time source
func (g *BatchNumberGenerator) WithClock(clock func() time.Time) *BatchNumberGenerator {
	g.clock = clock
	return g
}

// Generate returns the next free batch code for the product
func (g *BatchNumberGenerator) Generate(ctx context.Context, productID uuid.UUID) (string, error) {
	var code string
	err := g.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		code, err = g.generateIn(ctx, repos, productID)
		return err
	})
	return code, err
}

func (g *BatchNumberGenerator) generateIn(ctx context.Context, repos TransactionalRepositories, productID uuid.UUID) (string, error) {
	product, err := repos.Products().GetProduct(ctx, productID)
	if err != nil {
		return "", err
	}

	stem := ledger.BatchCodeStem(ledger.BatchPrefix(product.Name), g.clock().In(g.location))
	count, err := repos.BatchRepo().CountCodesWithPrefix(ctx, productID, stem)
	if err != nil {
		return "", fmt.Errorf("count batch codes: %w", err)
	}

	seq := int(count) + 1
	for i := 0; i < maxSequenceProbes; i++ {
		code := ledger.FormatBatchCode(stem, seq+i)
		exists, err := repos.BatchRepo().ExistsCode(ctx, productID, code)
		if err != nil {
			return "", fmt.Errorf("check batch code: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("no free batch code for stem %s after %d attempts", stem, maxSequenceProbes)
}
