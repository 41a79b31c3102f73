package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"poolledger/services/lending/server"
)

// APIError is a non-2xx response from lendingd.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("lendingd: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("lendingd: %d: %s", e.Status, e.Message)
}

// IsCode reports whether err is an APIError carrying code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// Client is a thin wrapper around the lendingd HTTP API.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithToken attaches a bearer token to every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = strings.TrimSpace(token) }
}

// WithHTTPClient replaces the default traced HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// New initialises a client for the service at endpoint.
func New(endpoint string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if trimmed == "" {
		return nil, errors.New("lending client: endpoint required")
	}
	base, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("lending client: parse endpoint: %w", err)
	}
	c := &Client{
		base: base,
		http: &http.Client{
			Timeout:   15 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Pools(ctx context.Context, offset, limit uint64) ([]server.PoolView, error) {
	query := url.Values{}
	query.Set("offset", strconv.FormatUint(offset, 10))
	query.Set("limit", strconv.FormatUint(limit, 10))
	var out server.PoolsResponse
	if err := c.do(ctx, http.MethodGet, "/v1/pools?"+query.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out.Pools, nil
}

func (c *Client) Pool(ctx context.Context, id uint64) (server.PoolView, error) {
	var out server.PoolView
	err := c.do(ctx, http.MethodGet, poolPath(id, ""), nil, &out)
	return out, err
}

func (c *Client) Utilisation(ctx context.Context, id uint64, borrow string) (server.UtilisationView, error) {
	var out server.UtilisationView
	path := poolPath(id, "/utilisation")
	if borrow != "" {
		path += "?borrow=" + url.QueryEscape(borrow)
	}
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) Position(ctx context.Context, id uint64, participant string) (server.PositionView, error) {
	var out server.PositionView
	err := c.do(ctx, http.MethodGet, poolPath(id, "/positions/"+url.PathEscape(participant)), nil, &out)
	return out, err
}

func (c *Client) Events(ctx context.Context, id uint64, limit int) (server.EventsResponse, error) {
	var out server.EventsResponse
	err := c.do(ctx, http.MethodGet, poolPath(id, "/events?limit="+strconv.Itoa(limit)), nil, &out)
	return out, err
}

func (c *Client) Owner(ctx context.Context) (server.OwnerResponse, error) {
	var out server.OwnerResponse
	err := c.do(ctx, http.MethodGet, "/v1/owner", nil, &out)
	return out, err
}

func (c *Client) Balance(ctx context.Context, asset, holder string) (server.BalanceView, error) {
	var out server.BalanceView
	err := c.do(ctx, http.MethodGet, "/v1/assets/"+url.PathEscape(asset)+"/balances/"+url.PathEscape(holder), nil, &out)
	return out, err
}

// Participant operations act as the token subject.

func (c *Client) Deposit(ctx context.Context, id uint64, amount string) (server.OperationResponse, error) {
	return c.operation(ctx, id, "/deposit", server.AmountRequest{Amount: amount})
}

func (c *Client) Withdraw(ctx context.Context, id uint64, amount string) (server.OperationResponse, error) {
	return c.operation(ctx, id, "/withdraw", server.AmountRequest{Amount: amount})
}

func (c *Client) Borrow(ctx context.Context, id uint64, amount string) (server.OperationResponse, error) {
	return c.operation(ctx, id, "/borrow", server.AmountRequest{Amount: amount})
}

func (c *Client) Repay(ctx context.Context, id uint64, amount string) (server.OperationResponse, error) {
	return c.operation(ctx, id, "/repay", server.AmountRequest{Amount: amount})
}

func (c *Client) Claim(ctx context.Context, id uint64) (server.OperationResponse, error) {
	return c.operation(ctx, id, "/claim", struct{}{})
}

func (c *Client) TransferReceipt(ctx context.Context, id uint64, recipient, amount string) (server.OperationResponse, error) {
	return c.operation(ctx, id, "/receipts/transfer", server.TransferRequest{Recipient: recipient, Amount: amount})
}

func (c *Client) Approve(ctx context.Context, asset, amount string) (server.BalanceView, error) {
	var out server.BalanceView
	err := c.do(ctx, http.MethodPost, "/v1/assets/"+url.PathEscape(asset)+"/approve", server.AmountRequest{Amount: amount}, &out)
	return out, err
}

func (c *Client) operation(ctx context.Context, id uint64, suffix string, body any) (server.OperationResponse, error) {
	var out server.OperationResponse
	err := c.do(ctx, http.MethodPost, poolPath(id, suffix), body, &out)
	return out, err
}

// Admin operations require a token carrying the admin scope.

func (c *Client) CreatePool(ctx context.Context, req server.PoolConfigRequest) (uint64, error) {
	var out server.CreatedResponse
	if err := c.do(ctx, http.MethodPost, "/v1/admin/pools", req, &out); err != nil {
		return 0, err
	}
	return out.ID, nil
}

func (c *Client) EditPool(ctx context.Context, id uint64, req server.PoolConfigRequest) (server.PoolView, error) {
	var out server.PoolView
	err := c.do(ctx, http.MethodPut, adminPoolPath(id, ""), req, &out)
	return out, err
}

func (c *Client) SetPaused(ctx context.Context, id uint64, paused bool) (server.PoolView, error) {
	var out server.PoolView
	err := c.do(ctx, http.MethodPost, adminPoolPath(id, "/pause"), server.PauseRequest{Paused: paused}, &out)
	return out, err
}

func (c *Client) StartInterest(ctx context.Context, id uint64) (server.PoolView, error) {
	var out server.PoolView
	err := c.do(ctx, http.MethodPost, adminPoolPath(id, "/start-interest"), struct{}{}, &out)
	return out, err
}

func (c *Client) SetWhitelisted(ctx context.Context, id uint64, account string, status bool) (server.PositionView, error) {
	var out server.PositionView
	err := c.do(ctx, http.MethodPost, adminPoolPath(id, "/whitelist"), server.WhitelistRequest{Account: account, Status: status}, &out)
	return out, err
}

func (c *Client) FundRewards(ctx context.Context, id uint64, amount string) (server.OperationResponse, error) {
	var out server.OperationResponse
	err := c.do(ctx, http.MethodPost, adminPoolPath(id, "/fund"), server.AmountRequest{Amount: amount}, &out)
	return out, err
}

func (c *Client) Audit(ctx context.Context, id uint64) error {
	return c.do(ctx, http.MethodGet, adminPoolPath(id, "/audit"), nil, nil)
}

func (c *Client) RegisterAsset(ctx context.Context, req server.AssetRequest) error {
	return c.do(ctx, http.MethodPost, "/v1/admin/assets", req, nil)
}

func (c *Client) Mint(ctx context.Context, asset, to, amount string) (server.BalanceView, error) {
	var out server.BalanceView
	err := c.do(ctx, http.MethodPost, "/v1/admin/assets/"+url.PathEscape(asset)+"/mint", server.MintRequest{To: to, Amount: amount}, &out)
	return out, err
}

func (c *Client) TransferOwnership(ctx context.Context, owner string) (server.OwnerResponse, error) {
	var out server.OwnerResponse
	err := c.do(ctx, http.MethodPost, "/v1/admin/ownership", server.OwnershipRequest{Owner: owner}, &out)
	return out, err
}

func (c *Client) SetModulePaused(ctx context.Context, paused bool) (server.OwnerResponse, error) {
	var out server.OwnerResponse
	err := c.do(ctx, http.MethodPost, "/v1/admin/pause", server.PauseRequest{Paused: paused}, &out)
	return out, err
}

func poolPath(id uint64, suffix string) string {
	return "/v1/pools/" + strconv.FormatUint(id, 10) + suffix
}

func adminPoolPath(id uint64, suffix string) string {
	return "/v1/admin/pools/" + strconv.FormatUint(id, 10) + suffix
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		var decoded server.ErrorResponse
		if json.Unmarshal(raw, &decoded) == nil && decoded.Error != "" {
			apiErr.Code = decoded.Code
			apiErr.Message = decoded.Error
		}
		return apiErr
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
