package matrix

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// syncRequestSlack is added to the long-poll timeout so the HTTP client does not give up first.
const syncRequestSlack = 30 * time.Second

// Client talks to a homeserver with an application service token, acting as
// individual users through the user_id query parameter.
type Client struct {
	serverURL  string
	asToken    string // Application Service token for all operations
	httpClient *http.Client
	logger     Logger

	rateLimitConfig    RateLimitConfig
	accountDataLimiter *TokenBucket
	roomQueryLimiter   *TokenBucket
}

// NewClient creates a Matrix client with the default rate limits
func NewClient(serverURL, asToken string, logger Logger) *Client {
	return NewClientWithRateLimit(serverURL, asToken, logger, DefaultRateLimitConfig())
}

// NewClientWithRateLimit creates a Matrix client with custom rate limiting
func NewClientWithRateLimit(serverURL, asToken string, logger Logger, rateLimitConfig RateLimitConfig) *Client {
	return &Client{
		serverURL: serverURL,
		asToken:   asToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:             logger,
		rateLimitConfig:    rateLimitConfig,
		accountDataLimiter: NewTokenBucket(rateLimitConfig.AccountData),
		roomQueryLimiter:   NewTokenBucket(rateLimitConfig.RoomQueries),
	}
}

func (c *Client) checkConfigured() error {
	if c.serverURL == "" || c.asToken == "" {
		return errors.New("matrix client not configured")
	}
	return nil
}

func (c *Client) waitForLimiter(ctx context.Context, limiter *TokenBucket, operation string) error {
	if !c.rateLimitConfig.Enabled {
		return nil
	}
	if err := limiter.Wait(ctx); err != nil {
		return errors.Wrapf(err, "rate limit wait cancelled for %s", operation)
	}
	return nil
}

// TestConnection verifies the server URL and token by calling whoami
func (c *Client) TestConnection(ctx context.Context) error {
	_, err := c.WhoAmI(ctx)
	if err != nil {
		return errors.Wrap(err, "matrix connection test failed")
	}
	return nil
}

// WhoAmI returns the user the application service token belongs to
func (c *Client) WhoAmI(ctx context.Context) (string, error) {
	if err := c.checkConfigured(); err != nil {
		return "", err
	}

	body, err := c.doRequest(ctx, http.MethodGet, "/_matrix/client/v3/account/whoami", nil, nil, c.httpClient)
	if err != nil {
		return "", errors.Wrap(err, "failed to query whoami")
	}

	var response whoAmIResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", errors.Wrap(err, "failed to unmarshal whoami response")
	}
	if response.UserID == "" {
		return "", errors.New("whoami response did not include a user ID")
	}
	return response.UserID, nil
}

// GetAccountData fetches a global account data event for userID. A missing
// event is reported as an error for which IsNotFound returns true.
func (c *Client) GetAccountData(ctx context.Context, userID, eventType string) (json.RawMessage, error) {
	if err := c.checkConfigured(); err != nil {
		return nil, err
	}
	if err := c.waitForLimiter(ctx, c.accountDataLimiter, "account data read"); err != nil {
		return nil, err
	}

	endpoint := "/_matrix/client/v3/user/" + url.PathEscape(userID) + "/account_data/" + url.PathEscape(eventType)
	body, err := c.doRequest(ctx, http.MethodGet, endpoint, impersonate(userID), nil, c.httpClient)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get account data %s", eventType)
	}
	return json.RawMessage(body), nil
}

// SetAccountData replaces a global account data event for userID
func (c *Client) SetAccountData(ctx context.Context, userID, eventType string, content any) error {
	if err := c.checkConfigured(); err != nil {
		return err
	}
	if err := c.waitForLimiter(ctx, c.accountDataLimiter, "account data write"); err != nil {
		return err
	}

	jsonData, err := json.Marshal(content)
	if err != nil {
		return errors.Wrap(err, "failed to marshal account data content")
	}

	endpoint := "/_matrix/client/v3/user/" + url.PathEscape(userID) + "/account_data/" + url.PathEscape(eventType)
	if _, err := c.doRequest(ctx, http.MethodPut, endpoint, impersonate(userID), jsonData, c.httpClient); err != nil {
		return errors.Wrapf(err, "failed to set account data %s", eventType)
	}
	return nil
}

// GetRoomMembers returns the m.room.member state events of a room, as seen by userID
func (c *Client) GetRoomMembers(ctx context.Context, roomID, userID string) ([]Event, error) {
	if err := c.checkConfigured(); err != nil {
		return nil, err
	}
	if err := c.waitForLimiter(ctx, c.roomQueryLimiter, "room members"); err != nil {
		return nil, err
	}

	endpoint := "/_matrix/client/v3/rooms/" + url.PathEscape(roomID) + "/members"
	body, err := c.doRequest(ctx, http.MethodGet, endpoint, impersonate(userID), nil, c.httpClient)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get members of room %s", roomID)
	}

	var response roomMembersResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal room members response")
	}
	for i := range response.Chunk {
		if response.Chunk[i].RoomID == "" {
			response.Chunk[i].RoomID = roomID
		}
	}
	return response.Chunk, nil
}

// Sync performs one /sync request as userID. Long-poll requests bypass the
// client's default timeout.
func (c *Client) Sync(ctx context.Context, userID string, options SyncOptions) (*SyncResponse, error) {
	if err := c.checkConfigured(); err != nil {
		return nil, err
	}

	query := impersonate(userID)
	if options.Since != "" {
		query.Set("since", options.Since)
	}
	if options.SetTimeout || options.Timeout > 0 {
		query.Set("timeout", strconv.Itoa(options.Timeout))
	}
	if options.Filter != "" {
		query.Set("filter", options.Filter)
	}

	httpClient := &http.Client{
		Transport: c.httpClient.Transport,
		Timeout:   time.Duration(options.Timeout)*time.Millisecond + syncRequestSlack,
	}

	body, err := c.doRequest(ctx, http.MethodGet, "/_matrix/client/v3/sync", query, nil, httpClient)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sync")
	}

	var response SyncResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal sync response")
	}
	return &response, nil
}

func (c *Client) doRequest(ctx context.Context, method, endpoint string, query url.Values, payload []byte, httpClient *http.Client) ([]byte, error) {
	requestURL := c.serverURL + endpoint
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, reqBody)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.asToken)

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to send request")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		matrixErr := newError(resp.StatusCode, body)
		c.logger.LogDebug("Matrix request failed", "method", method, "endpoint", endpoint, "status", resp.StatusCode, "errcode", matrixErr.ErrCode)
		return nil, matrixErr
	}

	return body, nil
}

// impersonate returns query parameters that make an application service request act as userID
func impersonate(userID string) url.Values {
	query := url.Values{}
	if userID != "" {
		query.Set("user_id", userID)
	}
	return query
}
