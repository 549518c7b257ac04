// Package clients wraps the Tinkoff Invest gRPC SDK behind the small
// interfaces the rebalancer consumes.
package clients

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/russianinvestments/invest-api-go-sdk/investgo"
	pb "github.com/russianinvestments/invest-api-go-sdk/proto"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/suenot/etf-monitor/internal/domain"
	"github.com/suenot/etf-monitor/pkg/retrier"
)

// Account selector aliases understood by ResolveAccount.
const (
	AccountSelectorIIS    = "ISS"
	AccountSelectorBroker = "BROKER"
)

const (
	defaultEndpoint = "invest-public-api.tinkoff.ru:443"
	appName         = "suenot.etf-monitor"

	catalogTTL = 15 * time.Minute
)

// TinkoffClient is the single gateway to the broker API. All monetary values
// cross this boundary as exact decimals; units and nanos never leak inward.
type TinkoffClient struct {
	conn        *investgo.Client
	users       *investgo.UsersServiceClient
	instruments *investgo.InstrumentsServiceClient
	marketData  *investgo.MarketDataServiceClient
	operations  *investgo.OperationsServiceClient
	orders      *investgo.OrdersServiceClient

	accountID string
	backoff   *retrier.Backoff
	logger    *zap.Logger

	mu         sync.Mutex
	etfCache   []domain.EtfInfo
	etfCacheAt time.Time
}

// NewTinkoffClient dials the broker API. The endpoint may be empty, in which
// case the production endpoint is used.
func NewTinkoffClient(ctx context.Context, token, endpoint string, logger *zap.Logger) (*TinkoffClient, error) {
	if token == "" {
		return nil, errors.New("broker API token is empty")
	}
	if endpoint == "" {
		endpoint = defaultEndpoint
	}

	conn, err := investgo.NewClient(ctx, investgo.Config{
		EndPoint: endpoint,
		Token:    token,
		AppName:  appName,
	}, logger.Sugar())
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to broker API")
	}

	backoff := retrier.New(retrier.WithOnRetry(func(attempt int, delay time.Duration, err error) {
		logger.Warn("broker API call failed, retrying",
			zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(err))
	}))

	return &TinkoffClient{
		conn:        conn,
		users:       conn.NewUsersServiceClient(),
		instruments: conn.NewInstrumentsServiceClient(),
		marketData:  conn.NewMarketDataServiceClient(),
		operations:  conn.NewOperationsServiceClient(),
		orders:      conn.NewOrdersServiceClient(),
		backoff:     backoff,
		logger:      logger,
	}, nil
}

// ResolveAccount selects the trading account. The selector is either an
// explicit account id, or one of the aliases: "ISS" picks the individual
// investment account, "BROKER" picks the regular brokerage account.
func (c *TinkoffClient) ResolveAccount(ctx context.Context, selector string) error {
	resp, err := retrier.RunWithData(ctx, c.backoff, func(ctx context.Context) (*investgo.GetAccountsResponse, error) {
		return c.users.GetAccounts(pb.AccountStatus_ACCOUNT_STATUS_OPEN.Enum())
	})
	if err != nil {
		return errors.Wrap(err, "failed to list accounts")
	}

	accounts := resp.GetAccounts()
	if len(accounts) == 0 {
		return errors.New("broker returned no open accounts")
	}

	switch strings.ToUpper(selector) {
	case AccountSelectorIIS:
		for _, acc := range accounts {
			if acc.GetType() == pb.AccountType_ACCOUNT_TYPE_TINKOFF_IIS {
				c.accountID = acc.GetId()
			}
		}
		if c.accountID == "" {
			return errors.New("no individual investment account found")
		}
	case AccountSelectorBroker:
		for _, acc := range accounts {
			if acc.GetType() == pb.AccountType_ACCOUNT_TYPE_TINKOFF {
				c.accountID = acc.GetId()
			}
		}
		if c.accountID == "" {
			return errors.New("no brokerage account found")
		}
	default:
		for _, acc := range accounts {
			if acc.GetId() == selector {
				c.accountID = selector
			}
		}
		if c.accountID == "" {
			return errors.Errorf("account %q not found among open accounts", selector)
		}
	}

	c.logger.Info("trading account resolved", zap.String("account_id", c.accountID))
	return nil
}

// AccountID returns the resolved trading account id.
func (c *TinkoffClient) AccountID() string {
	return c.accountID
}

// GetCurrentWallet builds the holdings snapshot from the broker portfolio.
// Currency positions collapse into the single ruble cash position.
func (c *TinkoffClient) GetCurrentWallet(ctx context.Context) (domain.Wallet, error) {
	if c.accountID == "" {
		return nil, errors.New("account is not resolved")
	}

	resp, err := retrier.RunWithData(ctx, c.backoff, func(ctx context.Context) (*investgo.PortfolioResponse, error) {
		return c.operations.GetPortfolio(c.accountID, pb.PortfolioRequest_RUB)
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch portfolio")
	}

	byFigi, err := c.metaByFigi(ctx)
	if err != nil {
		return nil, err
	}

	var wallet domain.Wallet
	cash := decimal.Zero
	for _, pos := range resp.GetPositions() {
		quantity := QuotationToDecimal(pos.GetQuantity())
		if pos.GetInstrumentType() == "currency" {
			cash = cash.Add(quantity.Mul(MoneyValueToDecimal(pos.GetCurrentPrice())))
			continue
		}

		meta, ok := byFigi[pos.GetFigi()]
		if !ok {
			c.logger.Warn("portfolio holds an instrument outside the ETF catalog, skipping",
				zap.String("figi", pos.GetFigi()))
			continue
		}
		wallet = append(wallet, domain.Position{
			Ticker:   meta.Ticker,
			Figi:     meta.Figi,
			LotSize:  meta.LotSize,
			Price:    MoneyValueToDecimal(pos.GetCurrentPrice()),
			Quantity: quantity.IntPart(),
		})
	}
	wallet = append(wallet, domain.NewCashPosition(cash.Floor().IntPart()))

	return wallet, nil
}

// ListEtfs returns the broker's base ETF catalog. The catalog changes rarely,
// so responses are cached for a short while.
func (c *TinkoffClient) ListEtfs(ctx context.Context) ([]domain.EtfInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.etfCache != nil && time.Since(c.etfCacheAt) < catalogTTL {
		return c.etfCache, nil
	}

	resp, err := retrier.RunWithData(ctx, c.backoff, func(ctx context.Context) (*investgo.EtfsResponse, error) {
		return c.instruments.Etfs(pb.InstrumentStatus_INSTRUMENT_STATUS_BASE)
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch ETF catalog")
	}

	instruments := resp.GetInstruments()
	etfs := make([]domain.EtfInfo, 0, len(instruments))
	for _, etf := range instruments {
		shares := QuotationToDecimal(etf.GetNumShares())
		if shares.Sign() <= 0 {
			// the API reports zero shares for some funds; fall back to a
			// fixed estimate so the fund still gets a weight
			shares = decimal.NewFromInt(int64(etf.GetLot())).Mul(decimal.NewFromInt(1_000_000))
			c.logger.Warn("ETF reports no shares outstanding, using fallback estimate",
				zap.String("ticker", etf.GetTicker()),
				zap.String("estimate", shares.String()))
		}
		etfs = append(etfs, domain.EtfInfo{
			Ticker:            etf.GetTicker(),
			Figi:              etf.GetFigi(),
			Name:              etf.GetName(),
			LotSize:           int64(etf.GetLot()),
			SharesOutstanding: shares,
		})
	}

	c.etfCache = etfs
	c.etfCacheAt = time.Now()
	c.logger.Info("ETF catalog loaded", zap.Int("instruments", len(etfs)))

	return etfs, nil
}

// GetInstrumentMeta resolves a ticker against the cached ETF catalog.
func (c *TinkoffClient) GetInstrumentMeta(ctx context.Context, ticker string) (domain.InstrumentMeta, error) {
	etfs, err := c.ListEtfs(ctx)
	if err != nil {
		return domain.InstrumentMeta{}, err
	}
	for _, etf := range etfs {
		if etf.Ticker == ticker {
			return domain.InstrumentMeta{Ticker: etf.Ticker, Figi: etf.Figi, LotSize: etf.LotSize}, nil
		}
	}
	return domain.InstrumentMeta{}, errors.Errorf("ticker %q not found in ETF catalog", ticker)
}

// GetLastPrice returns the latest trade price for the instrument.
func (c *TinkoffClient) GetLastPrice(ctx context.Context, figi string) (decimal.Decimal, error) {
	resp, err := retrier.RunWithData(ctx, c.backoff, func(ctx context.Context) (*investgo.GetLastPricesResponse, error) {
		return c.marketData.GetLastPrices([]string{figi})
	})
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "failed to fetch last price for %s", figi)
	}

	prices := resp.GetLastPrices()
	if len(prices) == 0 {
		return decimal.Zero, errors.Errorf("no price data received for %s", figi)
	}
	return QuotationToDecimal(prices[0].GetPrice()), nil
}

// GetHistoricalCandles returns hourly candles for the trailing window.
func (c *TinkoffClient) GetHistoricalCandles(ctx context.Context, figi string, windowDays int) ([]domain.Candle, error) {
	to := time.Now()
	from := to.AddDate(0, 0, -windowDays)

	resp, err := retrier.RunWithData(ctx, c.backoff, func(ctx context.Context) (*investgo.GetCandlesResponse, error) {
		return c.marketData.GetCandles(figi, pb.CandleInterval_CANDLE_INTERVAL_HOUR, from, to, pb.GetCandlesRequest_CANDLE_SOURCE_UNSPECIFIED, 0)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch candles for %s", figi)
	}

	raw := resp.GetCandles()
	candles := make([]domain.Candle, 0, len(raw))
	for _, candle := range raw {
		candles = append(candles, domain.Candle{
			Open:  QuotationToDecimal(candle.GetOpen()),
			High:  QuotationToDecimal(candle.GetHigh()),
			Low:   QuotationToDecimal(candle.GetLow()),
			Close: QuotationToDecimal(candle.GetClose()),
			Time:  candle.GetTime().AsTime(),
		})
	}
	return candles, nil
}

// PostMarketOrder submits a market order and returns the broker order id.
// Business rejections come back unwrapped so callers do not retry them.
func (c *TinkoffClient) PostMarketOrder(ctx context.Context, figi string, direction domain.Direction, lots int64, orderID string) (string, error) {
	if c.accountID == "" {
		return "", errors.New("account is not resolved")
	}

	order := &investgo.PostOrderRequestShort{
		InstrumentId: figi,
		Quantity:     lots,
		AccountId:    c.accountID,
		OrderType:    pb.OrderType_ORDER_TYPE_MARKET,
		OrderId:      orderID,
	}

	resp, err := retrier.RunWithData(ctx, c.backoff, func(ctx context.Context) (*investgo.PostOrderResponse, error) {
		switch direction {
		case domain.DirectionBuy:
			return c.orders.Buy(order)
		case domain.DirectionSell:
			return c.orders.Sell(order)
		default:
			return nil, retrier.Permanent(errors.Errorf("unsupported order direction %s", direction))
		}
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to post %s order for %s", direction, figi)
	}

	return resp.GetOrderId(), nil
}

// Stop closes the underlying gRPC connection.
func (c *TinkoffClient) Stop() {
	c.logger.Info("closing broker API connection")
	c.conn.Stop()
}

func (c *TinkoffClient) metaByFigi(ctx context.Context) (map[string]domain.InstrumentMeta, error) {
	etfs, err := c.ListEtfs(ctx)
	if err != nil {
		return nil, err
	}
	byFigi := make(map[string]domain.InstrumentMeta, len(etfs))
	for _, etf := range etfs {
		byFigi[etf.Figi] = domain.InstrumentMeta{Ticker: etf.Ticker, Figi: etf.Figi, LotSize: etf.LotSize}
	}
	return byFigi, nil
}
