// Package engine is the boundary to the external commerce engine that owns
// true cart and order state. The engine speaks a cookie-free Store API: every
// request identifies its cart session with a Cart-Token header, totals are
// reported in currency minor units, and checkout converts the cart into an
// order paid out-of-band.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ucplabs/ucp-bridge/internal/domain"
	apperrors "github.com/ucplabs/ucp-bridge/pkg/errors"
	"github.com/ucplabs/ucp-bridge/pkg/httpclient"
)

// cartTokenHeader carries the session reference on every Store API call.
const cartTokenHeader = "Cart-Token"

// Engine-side error codes the client translates into typed errors.
const (
	engineCodeCartNotFound     = "cart_not_found"
	engineCodeProductNotFound  = "product_not_found"
	engineCodeInvalidCoupon    = "invalid_coupon"
	engineCodeExpiredCoupon    = "coupon_expired"
	engineCodeCartEmpty        = "cart_empty"
	engineCodeAlreadyProcessed = "checkout_already_processed"
)

// paymentMethod is the offline method orders are placed with; payment itself
// happens in the browser via the returned payment URL.
const paymentMethod = "bacs"

// Config holds Store API client configuration.
type Config struct {
	BaseURL        string
	RequestTimeout time.Duration
}

// Client is the low-level Store API client. All calls go through the shared
// retrying HTTP client wrapped in a circuit breaker, so a dying engine is
// reported as BACKEND_UNAVAILABLE quickly instead of piling up timeouts.
type Client struct {
	http    *httpclient.CircuitBreakerClient
	baseURL string
	logger  *slog.Logger
}

// NewClient creates a Store API client for the engine at cfg.BaseURL.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("engine: base URL is required")
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	httpCfg := httpclient.DefaultConfig()
	httpCfg.Timeout = timeout

	base := httpclient.New(httpCfg)
	cb := httpclient.NewCircuitBreakerClient(base, httpclient.DefaultCircuitBreakerConfig("commerce-engine"), logger)

	return &Client{
		http:    cb,
		baseURL: cfg.BaseURL,
		logger:  logger,
	}, nil
}

// --- Wire types (engine representation, minor units) ---

type cartResponse struct {
	Items           []cartItem      `json:"items"`
	Coupons         []cartCoupon    `json:"coupons"`
	Totals          cartTotals      `json:"totals"`
	ShippingAddress *domain.Address `json:"shipping_address,omitempty"`
}

type cartItem struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Quantity int           `json:"quantity"`
	Totals   cartItemTotal `json:"totals"`
}

type cartItemTotal struct {
	LineTotal int64 `json:"line_total"`
}

type cartCoupon struct {
	Code string `json:"code"`
}

type cartTotals struct {
	CurrencyCode      string `json:"currency_code"`
	CurrencyMinorUnit int    `json:"currency_minor_unit"`
	TotalItems        int64  `json:"total_items"`
	TotalTax          int64  `json:"total_tax"`
	TotalShipping     int64  `json:"total_shipping"`
	TotalDiscount     int64  `json:"total_discount"`
	TotalPrice        int64  `json:"total_price"`
}

type checkoutResponse struct {
	OrderID    int64  `json:"order_id"`
	Status     string `json:"status"`
	PaymentURL string `json:"payment_url"`
	Currency   string `json:"currency_code"`
	MinorUnit  int    `json:"currency_minor_unit"`
	Total      int64  `json:"total_price"`
}

type productResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	SKU         string   `json:"sku"`
	Permalink   string   `json:"permalink"`
	Price       int64    `json:"price"`
	Currency    string   `json:"currency_code"`
	MinorUnit   int      `json:"currency_minor_unit"`
	Stock       int      `json:"stock_quantity"`
	InStock     bool     `json:"is_in_stock"`
	Images      []string `json:"images"`
}

type engineError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// --- Cart session operations ---

// CreateCart provisions an empty cart bound to the given reference. The call
// is idempotent on the engine side: re-ensuring an existing cart is a no-op.
func (c *Client) CreateCart(ctx context.Context, ref string) error {
	_, err := c.do(ctx, http.MethodPost, "/cart", ref, nil, nil)
	return err
}

// Cart rehydrates the session state for ref. The engine recomputes totals on
// every read, so the returned snapshot is never stale. Unknown refs yield
// SESSION_NOT_FOUND.
func (c *Client) Cart(ctx context.Context, ref string) (*domain.CheckoutSession, error) {
	var cart cartResponse
	if _, err := c.do(ctx, http.MethodGet, "/cart", ref, nil, &cart); err != nil {
		return nil, err
	}
	return projectCart(ref, &cart), nil
}

// AddItem adds a product to the cart. Unknown product ids yield
// PRODUCT_NOT_FOUND.
func (c *Client) AddItem(ctx context.Context, ref string, item domain.ItemRequest) error {
	body := map[string]any{"id": item.ProductID, "quantity": item.Quantity}
	_, err := c.do(ctx, http.MethodPost, "/cart/add-item", ref, body, nil)
	if err != nil {
		if engineCode(err) == engineCodeProductNotFound {
			return apperrors.ProductNotFound(item.ProductID)
		}
		return err
	}
	return nil
}

// ClearItems removes every item from the cart.
func (c *Client) ClearItems(ctx context.Context, ref string) error {
	_, err := c.do(ctx, http.MethodDelete, "/cart/items", ref, nil, nil)
	return err
}

// ApplyCoupon applies one discount code. Invalid or expired codes yield
// COUPON_REJECTED.
func (c *Client) ApplyCoupon(ctx context.Context, ref, code string) error {
	_, err := c.do(ctx, http.MethodPost, "/cart/apply-coupon", ref, map[string]any{"code": code}, nil)
	if err != nil {
		switch engineCode(err) {
		case engineCodeInvalidCoupon, engineCodeExpiredCoupon:
			return apperrors.CouponRejected(engineMessage(err, "the discount code was rejected"))
		}
		return err
	}
	return nil
}

// ClearCoupons removes all applied discount codes.
func (c *Client) ClearCoupons(ctx context.Context, ref string) error {
	_, err := c.do(ctx, http.MethodDelete, "/cart/coupons", ref, nil, nil)
	return err
}

// UpdateCustomer replaces the cart's shipping address. The engine recalculates
// shipping and tax as a side effect.
func (c *Client) UpdateCustomer(ctx context.Context, ref string, addr domain.Address) error {
	body := map[string]any{"shipping_address": addr}
	_, err := c.do(ctx, http.MethodPost, "/cart/update-customer", ref, body, nil)
	return err
}

// PlaceOrder converts the cart into an order pending out-of-band payment.
// Empty carts yield EMPTY_CART; a cart that was already converted yields
// ALREADY_COMPLETED. This call is deliberately NOT retried at any layer.
func (c *Client) PlaceOrder(ctx context.Context, ref string) (*domain.Order, error) {
	var out checkoutResponse
	status, err := c.do(ctx, http.MethodPost, "/checkout", ref, map[string]any{"payment_method": paymentMethod}, &out)
	if err != nil {
		switch engineCode(err) {
		case engineCodeCartEmpty:
			return nil, apperrors.EmptyCart()
		case engineCodeAlreadyProcessed:
			return nil, apperrors.AlreadyCompleted()
		}
		if status >= 400 && status < 500 {
			return nil, apperrors.OrderCreationFailed(engineMessage(err, "the engine rejected the checkout"))
		}
		return nil, err
	}

	if out.OrderID == 0 {
		return nil, apperrors.OrderCreationFailed("the engine accepted the checkout but returned no order id")
	}

	// Derive the pay URL from the order id when the engine omits it.
	if out.PaymentURL == "" {
		out.PaymentURL = c.baseURL + "/orders/" + strconv.FormatInt(out.OrderID, 10) + "/pay"
	}

	minor := out.MinorUnit
	if minor == 0 && out.Currency != "" {
		minor = 2
	}

	return &domain.Order{
		ID:         out.OrderID,
		CartRef:    ref,
		Status:     out.Status,
		Currency:   out.Currency,
		MinorUnit:  minor,
		Total:      out.Total,
		PaymentURL: out.PaymentURL,
	}, nil
}

// --- Catalog operations ---

// Product looks up a single catalog entry by id.
func (c *Client) Product(ctx context.Context, id string) (*domain.Product, error) {
	var p productResponse
	_, err := c.do(ctx, http.MethodGet, "/products/"+url.PathEscape(id), "", nil, &p)
	if err != nil {
		if engineCode(err) == engineCodeProductNotFound || apperrors.HTTPStatus(err) == http.StatusNotFound {
			return nil, apperrors.ProductNotFound(id)
		}
		return nil, err
	}
	return projectProduct(&p), nil
}

// SearchProducts queries the catalog. The engine owns matching and ranking;
// the bridge only projects the results.
func (c *Client) SearchProducts(ctx context.Context, query string, limit int) ([]*domain.Product, error) {
	q := url.Values{}
	if query != "" {
		q.Set("search", query)
	}
	if limit > 0 {
		q.Set("per_page", strconv.Itoa(limit))
	}

	path := "/products"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var results []productResponse
	if _, err := c.do(ctx, http.MethodGet, path, "", nil, &results); err != nil {
		return nil, err
	}

	products := make([]*domain.Product, 0, len(results))
	for i := range results {
		products = append(products, projectProduct(&results[i]))
	}
	return products, nil
}

// Ping performs a lightweight reachability probe for health checks.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/products?per_page=1", "", nil, nil)
	return err
}

// --- Internals ---

// do executes one Store API call and decodes the response into out (when out
// is non-nil). Engine failures come back as typed AppErrors; the raw engine
// body never crosses this boundary.
func (c *Client) do(ctx context.Context, method, path, ref string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("engine: marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("engine: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if ref != "" {
		req.Header.Set(cartTokenHeader, ref)
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil && !httpclient.IsServerStatus(err) {
		c.logger.WarnContext(ctx, "engine request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return 0, apperrors.BackendUnavailable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return resp.StatusCode, c.decodeError(ctx, resp, method, path, ref)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, apperrors.BackendUnavailable(fmt.Errorf("decode engine response: %w", err))
		}
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}

	return resp.StatusCode, nil
}

// decodeError translates an engine error body into a typed error and records
// the original code so call sites can specialize the mapping.
func (c *Client) decodeError(ctx context.Context, resp *http.Response, method, path, ref string) error {
	var engErr engineError
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(raw, &engErr)

	c.logger.WarnContext(ctx, "engine returned error",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.String("engine_code", engErr.Code),
	)

	if engErr.Code == engineCodeCartNotFound || (resp.StatusCode == http.StatusNotFound && path == "/cart") {
		return wrapEngine(engErr, apperrors.SessionNotFound(ref))
	}

	if resp.StatusCode >= 500 {
		return wrapEngine(engErr, apperrors.BackendUnavailable(fmt.Errorf("engine status %d: %s", resp.StatusCode, engErr.Code)))
	}

	return wrapEngine(engErr, apperrors.Internal(fmt.Errorf("unexpected engine error %q (%d): %s", engErr.Code, resp.StatusCode, engErr.Message)))
}

// codedError carries the engine's own error code alongside the typed error so
// call sites can refine the translation.
type codedError struct {
	code    string
	message string
	err     error
}

func (e *codedError) Error() string { return e.err.Error() }
func (e *codedError) Unwrap() error { return e.err }

func wrapEngine(engErr engineError, err error) error {
	return &codedError{code: engErr.Code, message: engErr.Message, err: err}
}

func engineCode(err error) string {
	if ce, ok := err.(*codedError); ok {
		return ce.code
	}
	return ""
}

func engineMessage(err error, fallback string) string {
	if ce, ok := err.(*codedError); ok && ce.message != "" {
		return ce.message
	}
	return fallback
}

func projectCart(ref string, cart *cartResponse) *domain.CheckoutSession {
	items := make([]domain.LineItem, 0, len(cart.Items))
	for _, it := range cart.Items {
		items = append(items, domain.LineItem{
			ProductID: it.ID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			LineTotal: it.Totals.LineTotal,
		})
	}

	coupons := make([]string, 0, len(cart.Coupons))
	for _, cp := range cart.Coupons {
		coupons = append(coupons, cp.Code)
	}

	minor := cart.Totals.CurrencyMinorUnit
	if minor == 0 && cart.Totals.CurrencyCode != "" {
		minor = 2
	}

	return &domain.CheckoutSession{
		CartRef:   ref,
		Status:    domain.StatusCart,
		Currency:  cart.Totals.CurrencyCode,
		MinorUnit: minor,
		Items:     items,
		Coupons:   coupons,
		Totals: domain.Totals{
			Subtotal: cart.Totals.TotalItems,
			Tax:      cart.Totals.TotalTax,
			Shipping: cart.Totals.TotalShipping,
			Discount: cart.Totals.TotalDiscount,
			Total:    cart.Totals.TotalPrice,
		},
		Address: cart.ShippingAddress,
	}
}

func projectProduct(p *productResponse) *domain.Product {
	minor := p.MinorUnit
	if minor == 0 && p.Currency != "" {
		minor = 2
	}
	return &domain.Product{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		SKU:         p.SKU,
		URL:         p.Permalink,
		Price:       p.Price,
		Currency:    p.Currency,
		MinorUnit:   minor,
		Stock:       p.Stock,
		InStock:     p.InStock,
		Images:      p.Images,
	}
}
