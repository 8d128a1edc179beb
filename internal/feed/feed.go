package feed

import (
	"context"
	"fmt"

	"payment-reconciliation/internal/models"
)

// TransactionFeed supplies both transaction sequences for a (gateway,
// period) key. Implementations guarantee the sequences belong to the same
// key; they need not be pre-sorted. Retries and raw ingestion belong to the
// feed side, not to the engine.
type TransactionFeed interface {
	Fetch(ctx context.Context, key models.RunKey) ([]models.PlatformTransaction, []models.GatewayTransaction, error)
}

// Validate checks every transaction in both sequences and returns the first
// ValidationError found. A run must not be created over invalid input.
func Validate(platformTxs []models.PlatformTransaction, gatewayTxs []models.GatewayTransaction) error {
	for i := range platformTxs {
		if err := platformTxs[i].Validate(); err != nil {
			return fmt.Errorf("platform feed item %d: %w", i, err)
		}
	}
	for i := range gatewayTxs {
		if err := gatewayTxs[i].Validate(); err != nil {
			return fmt.Errorf("gateway feed item %d: %w", i, err)
		}
	}
	return nil
}

// StaticFeed serves fixed slices. Used in tests and by embedders that load
// transactions themselves.
type StaticFeed struct {
	Platform []models.PlatformTransaction
	Gateway  []models.GatewayTransaction
}

func NewStaticFeed(platform []models.PlatformTransaction, gateway []models.GatewayTransaction) *StaticFeed {
	return &StaticFeed{Platform: platform, Gateway: gateway}
}

func (f *StaticFeed) Fetch(ctx context.Context, key models.RunKey) ([]models.PlatformTransaction, []models.GatewayTransaction, error) {
	return f.Platform, f.Gateway, nil
}
