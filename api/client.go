// Package api is the client for the marketplace metadata API and the Wyvern
// orderbook.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/kaifufi/wyvern-sdk-go/internal/cache"
	"github.com/kaifufi/wyvern-sdk-go/internal/retry"
	"github.com/kaifufi/wyvern-sdk-go/types"
)

const (
	MainnetBaseURL = "https://api.opensea.io"
	RinkebyBaseURL = "https://rinkeby-api.opensea.io"

	// APIPath prefixes metadata endpoints.
	APIPath = "/api/v1"
	// OrderbookPath prefixes orderbook endpoints.
	OrderbookPath = "/wyvern/v1"

	DefaultPageSize = 20
	DefaultTimeout  = 30 * time.Second
	DefaultCacheTTL = 5 * time.Minute

	// Transport retries cover requests that never got a response.
	DefaultTransportRetries      = 3
	DefaultTransportRetryWait    = 500 * time.Millisecond
	DefaultTransportRetryMaxWait = 10 * time.Second
)

// Retry budgets for endpoints that tolerate a temporarily unavailable service.
var (
	PostOrderRetry        = statusPolicy(2, 3*time.Second)
	GetAssetRetry         = statusPolicy(1, time.Second)
	GetPaymentTokensRetry = statusPolicy(1, time.Second)
)

// Config configures a Client. Zero values take the defaults above.
type Config struct {
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
	PageSize int
	Logger   logrus.FieldLogger
	// Cache holds payment tokens and asset metadata. Nil disables caching.
	Cache    cache.Store
	CacheTTL time.Duration
	// TransportRetries is how many times a request that failed before any
	// response arrived is sent again. Negative disables transport retries.
	TransportRetries   int
	TransportRetryWait time.Duration
}

// Client talks to the metadata API and the orderbook.
type Client struct {
	http     *resty.Client
	pageSize int
	log      logrus.FieldLogger
	cache    cache.Store
	cacheTTL time.Duration
	now      func() time.Time

	postOrderRetry        retry.Policy
	getAssetRetry         retry.Policy
	getPaymentTokensRetry retry.Policy
}

// New creates a Client for cfg.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = MainnetBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	switch {
	case cfg.TransportRetries == 0:
		cfg.TransportRetries = DefaultTransportRetries
	case cfg.TransportRetries < 0:
		cfg.TransportRetries = 0
	}
	if cfg.TransportRetryWait <= 0 {
		cfg.TransportRetryWait = DefaultTransportRetryWait
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	h := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetLogger(log).
		SetRetryCount(cfg.TransportRetries).
		SetRetryWaitTime(cfg.TransportRetryWait).
		SetRetryMaxWaitTime(DefaultTransportRetryMaxWait)
	if cfg.APIKey != "" {
		h.SetHeader("X-API-KEY", cfg.APIKey)
	}

	return &Client{
		http:                  h,
		pageSize:              cfg.PageSize,
		log:                   log.WithField("component", "api"),
		cache:                 cfg.Cache,
		cacheTTL:              cfg.CacheTTL,
		now:                   time.Now,
		postOrderRetry:        PostOrderRetry,
		getAssetRetry:         GetAssetRetry,
		getPaymentTokensRetry: GetPaymentTokensRetry,
	}
}

// PageSize is the number of records requested per page.
func (c *Client) PageSize() int { return c.pageSize }

func (c *Client) page(params map[string]string, page int) {
	if page < 1 {
		page = 1
	}
	if _, ok := params["limit"]; !ok {
		params["limit"] = fmt.Sprint(c.pageSize)
	}
	if _, ok := params["offset"]; !ok {
		params["offset"] = fmt.Sprint((page - 1) * c.pageSize)
	}
}

// do sends a request and decodes a 2xx JSON body into out.
func (c *Client) do(ctx context.Context, method, path string, params map[string]string, body, out any) error {
	req := c.http.R().SetContext(ctx)
	if len(params) > 0 {
		req.SetQueryParams(params)
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	log := c.log.WithFields(logrus.Fields{"method": method, "path": path})
	log.Debug("sending request")
	resp, err := req.Execute(method, path)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	if !resp.IsSuccess() {
		apiErr := errorFromResponse(resp.StatusCode(), resp.Body())
		if resp.StatusCode() == http.StatusTooManyRequests {
			apiErr.RetryAfter = parseRetryAfter(resp.Header().Get("Retry-After"))
		}
		log.WithField("status", resp.StatusCode()).Debug(apiErr.Message)
		return apiErr
	}
	log.WithField("status", resp.StatusCode()).Debug("got success")

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return errors.Wrapf(err, "decode %s", path)
	}
	return nil
}

// PostOrder submits a signed order to the orderbook and returns the
// orderbook's view of it.
func (c *Client) PostOrder(ctx context.Context, order types.OrderJSON) (*types.Order, error) {
	return retry.DoValue(ctx, c.postOrderRetry, func(ctx context.Context) (*types.Order, error) {
		var w orderWire
		if err := c.do(ctx, http.MethodPost, OrderbookPath+"/orders/post/", nil, order, &w); err != nil {
			return nil, err
		}
		return parseOrder(&w, c.now())
	})
}

// PostAssetWhitelist allows email to buy the asset. The API key must be
// allowed to manage whitelists for the asset's contract.
func (c *Client) PostAssetWhitelist(ctx context.Context, tokenAddress common.Address, tokenID *big.Int, email string) (bool, error) {
	var out struct {
		Success bool `json:"success"`
	}
	path := fmt.Sprintf("%s/asset/%s/%s/whitelist/", APIPath, types.LowerHex(tokenAddress), idOrZero(tokenID))
	if err := c.do(ctx, http.MethodPost, path, nil, map[string]string{"email": email}, &out); err != nil {
		return false, err
	}
	return out.Success, nil
}

// GetOrder returns the first order matching q.
func (c *Client) GetOrder(ctx context.Context, q OrderQuery) (*types.Order, error) {
	params := q.params()
	params["limit"] = "1"
	var out ordersPageWire
	if err := c.do(ctx, http.MethodGet, OrderbookPath+"/orders/", params, nil, &out); err != nil {
		return nil, err
	}
	if len(out.Orders) == 0 {
		return nil, ErrOrderNotFound
	}
	return parseOrder(&out.Orders[0], c.now())
}

// OrdersPage is one page of orderbook results.
type OrdersPage struct {
	Orders []*types.Order
	Count  int
}

type ordersPageWire struct {
	Orders []orderWire `json:"orders"`
	Count  int         `json:"count"`
}

// GetOrders returns page (1-based) of the orders matching q.
func (c *Client) GetOrders(ctx context.Context, q OrderQuery, page int) (*OrdersPage, error) {
	params := q.params()
	c.page(params, page)
	var out ordersPageWire
	if err := c.do(ctx, http.MethodGet, OrderbookPath+"/orders/", params, nil, &out); err != nil {
		return nil, err
	}
	res := &OrdersPage{Count: out.Count, Orders: make([]*types.Order, 0, len(out.Orders))}
	now := c.now()
	for i := range out.Orders {
		o, err := parseOrder(&out.Orders[i], now)
		if err != nil {
			return nil, err
		}
		res.Orders = append(res.Orders, o)
	}
	return res, nil
}

// GetAsset fetches a single asset. A nil tokenID addresses a fungible
// contract as token 0.
func (c *Client) GetAsset(ctx context.Context, tokenAddress common.Address, tokenID *big.Int) (*types.AssetMetadata, error) {
	path := fmt.Sprintf("%s/asset/%s/%s/", APIPath, types.LowerHex(tokenAddress), idOrZero(tokenID))
	return cache.GetOrLoad(ctx, c.cache, "asset:"+path, c.cacheTTL, func(ctx context.Context) (*types.AssetMetadata, error) {
		return retry.DoValue(ctx, c.getAssetRetry, func(ctx context.Context) (*types.AssetMetadata, error) {
			var w assetWire
			if err := c.do(ctx, http.MethodGet, path, nil, nil, &w); err != nil {
				return nil, err
			}
			return parseAsset(&w, c.now())
		})
	})
}

// AssetsPage is one page of asset results.
type AssetsPage struct {
	Assets         []*types.AssetMetadata
	EstimatedCount int
}

// GetAssets returns page (1-based) of the assets matching q.
func (c *Client) GetAssets(ctx context.Context, q AssetQuery, page int) (*AssetsPage, error) {
	params := q.params()
	c.page(params, page)
	var out struct {
		Assets         []assetWire `json:"assets"`
		EstimatedCount int         `json:"estimated_count"`
	}
	if err := c.do(ctx, http.MethodGet, APIPath+"/assets/", params, nil, &out); err != nil {
		return nil, err
	}
	res := &AssetsPage{EstimatedCount: out.EstimatedCount}
	now := c.now()
	for i := range out.Assets {
		a, err := parseAsset(&out.Assets[i], now)
		if err != nil {
			return nil, err
		}
		res.Assets = append(res.Assets, a)
	}
	return res, nil
}

// GetPaymentTokens returns page (1-based) of the tokens matching q. Paging
// always follows page, regardless of q.
func (c *Client) GetPaymentTokens(ctx context.Context, q TokenQuery, page int) ([]types.PaymentToken, error) {
	params := q.params()
	delete(params, "limit")
	delete(params, "offset")
	c.page(params, page)
	key := "tokens:" + encodeParams(params)
	return cache.GetOrLoad(ctx, c.cache, key, c.cacheTTL, func(ctx context.Context) ([]types.PaymentToken, error) {
		return retry.DoValue(ctx, c.getPaymentTokensRetry, func(ctx context.Context) ([]types.PaymentToken, error) {
			var out []tokenWire
			if err := c.do(ctx, http.MethodGet, APIPath+"/tokens/", params, nil, &out); err != nil {
				return nil, err
			}
			tokens := make([]types.PaymentToken, 0, len(out))
			for i := range out {
				t, err := parseToken(&out[i])
				if err != nil {
					return nil, err
				}
				tokens = append(tokens, t)
			}
			return tokens, nil
		})
	})
}

// GetBundle fetches a bundle by slug. It returns nil, nil when the bundle
// does not exist.
func (c *Client) GetBundle(ctx context.Context, slug string) (*types.AssetBundle, error) {
	var w *bundleWire
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s/bundle/%s/", APIPath, slug), nil, nil, &w)
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, nil
	}
	return parseBundle(w, c.now())
}

// BundlesPage is one page of bundle results.
type BundlesPage struct {
	Bundles        []*types.AssetBundle
	EstimatedCount int
}

// GetBundles returns page (1-based) of the bundles matching q.
func (c *Client) GetBundles(ctx context.Context, q BundleQuery, page int) (*BundlesPage, error) {
	params := q.params()
	delete(params, "limit")
	delete(params, "offset")
	c.page(params, page)
	var out struct {
		Bundles        []bundleWire `json:"bundles"`
		EstimatedCount int          `json:"estimated_count"`
	}
	if err := c.do(ctx, http.MethodGet, APIPath+"/bundles/", params, nil, &out); err != nil {
		return nil, err
	}
	res := &BundlesPage{EstimatedCount: out.EstimatedCount}
	now := c.now()
	for i := range out.Bundles {
		b, err := parseBundle(&out.Bundles[i], now)
		if err != nil {
			return nil, err
		}
		res.Bundles = append(res.Bundles, b)
	}
	return res, nil
}

func idOrZero(id *big.Int) string {
	if id == nil {
		return "0"
	}
	return id.String()
}
