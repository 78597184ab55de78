// Package broker adapts the Alpaca trading API to the narrow surface the
// trading loop needs. SDK types never escape this package; call failures are
// reported as the domain errors declared in errors.go.
package broker

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/shopspring/decimal"
)

type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

const (
	// StatusFilled is the only order status with a usable fill price.
	StatusFilled = "filled"

	requestTimeout = 10 * time.Second
)

type OrderRequest struct {
	Symbol        string
	Qty           int
	Side          Side
	ClientOrderID string
}

type OrderRef struct {
	ID             string
	ClientOrderID  string
	Status         string
	FilledQty      int
	FilledAvgPrice *float64
}

type Account struct {
	Equity      float64
	BuyingPower float64
}

type Client struct {
	client *alpaca.Client
}

func New(apiKey, apiSecret, baseURL string) *Client {
	opts := alpaca.ClientOpts{
		APIKey:     apiKey,
		APISecret:  apiSecret,
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: requestTimeout},
	}
	return &Client{client: alpaca.NewClient(opts)}
}

// PlaceOrder submits a market order, good till canceled. Any SDK or transport
// failure comes back wrapped in ErrOrderSubmissionFailed.
func (c *Client) PlaceOrder(ctx context.Context, req OrderRequest) (OrderRef, error) {
	qty := decimal.NewFromInt(int64(req.Qty))
	orderReq := alpaca.PlaceOrderRequest{
		Symbol:        req.Symbol,
		Qty:           &qty,
		Side:          alpaca.Side(req.Side),
		Type:          alpaca.Market,
		TimeInForce:   alpaca.GTC,
		ClientOrderID: req.ClientOrderID,
	}

	order, err := c.client.PlaceOrder(orderReq)
	if err != nil {
		slog.Error("place order failed", "side", req.Side, "symbol", req.Symbol, "qty", req.Qty, "error", err)
		return OrderRef{}, fmt.Errorf("%w: %v", ErrOrderSubmissionFailed, err)
	}

	slog.Info("place order success", "order_id", order.ID, "side", req.Side, "symbol", req.Symbol, "qty", req.Qty, "status", order.Status)
	return toOrderRef(order), nil
}

// GetOrder looks up an order by broker id.
func (c *Client) GetOrder(ctx context.Context, orderID string) (OrderRef, error) {
	order, err := c.client.GetOrder(orderID)
	if err != nil {
		slog.Error("fetch order failed", "order_id", orderID, "error", err)
		return OrderRef{}, fmt.Errorf("%w: %v", ErrBrokerUnavailable, err)
	}
	return toOrderRef(order), nil
}

func (c *Client) Account(ctx context.Context) (Account, error) {
	acct, err := c.client.GetAccount()
	if err != nil {
		slog.Error("fetch account failed", "error", err)
		return Account{}, fmt.Errorf("%w: %v", ErrBrokerUnavailable, err)
	}
	equity, _ := acct.Equity.Float64()
	buyingPower, _ := acct.BuyingPower.Float64()

	slog.Info("account fetched", "equity", equity, "buying_power", buyingPower)
	return Account{Equity: equity, BuyingPower: buyingPower}, nil
}

func toOrderRef(order *alpaca.Order) OrderRef {
	ref := OrderRef{
		ID:            order.ID,
		ClientOrderID: order.ClientOrderID,
		Status:        string(order.Status),
		FilledQty:     int(order.FilledQty.IntPart()),
	}
	if order.FilledAvgPrice != nil {
		price, _ := order.FilledAvgPrice.Float64()
		ref.FilledAvgPrice = &price
	}
	return ref
}
