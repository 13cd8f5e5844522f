package usecase

import (
	"context"
	"fmt"

	"github.com/kasboi/payecards-bot/internal/domain"
	"github.com/kasboi/payecards-bot/internal/domain/model"
	"github.com/kasboi/payecards-bot/internal/domain/ports/adapter"
	"github.com/kasboi/payecards-bot/internal/infra/logging"

	"github.com/rs/zerolog"
)

var _ CryptoUseCase = (*cryptoUC)(nil)

type CryptoUseCase interface {
	Coins() []model.Coin
	// Price looks a coin up by symbol, name or id and returns its quote.
	Price(ctx context.Context, query string) (*model.Quote, error)
	Overview(ctx context.Context) ([]*model.Quote, error)
}

type cryptoUC struct {
	prices adapter.PriceProvider
	log    *zerolog.Logger
}

func NewCryptoUseCase(prices adapter.PriceProvider, logger *zerolog.Logger) *cryptoUC {
	return &cryptoUC{prices: prices, log: logger}
}

func (u *cryptoUC) Coins() []model.Coin { return model.SupportedCoins }

func (u *cryptoUC) Price(ctx context.Context, query string) (*model.Quote, error) {
	defer logging.TraceDuration(u.log, "CryptoUC.Price")()

	coin, ok := model.FindCoin(query)
	if !ok {
		return nil, domain.ErrUnsupportedCoin
	}
	q, err := u.prices.Quote(ctx, coin)
	if err != nil {
		u.log.Warn().Err(err).Str("coin", coin.ID).Msg("price lookup failed")
		return nil, fmt.Errorf("%w: %v", domain.ErrPriceUnavailable, err)
	}
	return q, nil
}

func (u *cryptoUC) Overview(ctx context.Context) ([]*model.Quote, error) {
	defer logging.TraceDuration(u.log, "CryptoUC.Overview")()

	quotes, err := u.prices.Quotes(ctx, model.SupportedCoins)
	if err != nil {
		u.log.Warn().Err(err).Msg("market overview failed")
		return nil, fmt.Errorf("%w: %v", domain.ErrPriceUnavailable, err)
	}
	return quotes, nil
}
