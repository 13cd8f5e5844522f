package adapter

import (
	"context"

	"github.com/kasboi/payecards-bot/internal/domain/model"
)

// PriceProvider fetches USD quotes for supported coins.
type PriceProvider interface {
	Quote(ctx context.Context, coin model.Coin) (*model.Quote, error)
	Quotes(ctx context.Context, coins []model.Coin) ([]*model.Quote, error)
}
