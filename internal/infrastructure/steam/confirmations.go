package steam

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mih4lev/steam-bot-server/internal/domain/model"
	"github.com/mih4lev/steam-bot-server/internal/domain/useCases"
)

// ConfirmationKeyFunc produces the time-based confirmation key for a
// tag. Callers with a custom identity setup can plug in their own;
// the rest of this package treats keys as opaque strings.
type ConfirmationKeyFunc func(tag string, at time.Time) (string, error)

// KeyProviderFromSecret derives confirmation keys from the base64
// encoded identity secret of the account.
func KeyProviderFromSecret(identitySecret string) ConfirmationKeyFunc {
	return func(tag string, at time.Time) (string, error) {
		secret, err := base64.StdEncoding.DecodeString(identitySecret)
		if err != nil {
			return "", fmt.Errorf("decode identity secret: %w", err)
		}
		payload := make([]byte, 8, 8+len(tag))
		binary.BigEndian.PutUint64(payload, uint64(at.Unix()))
		payload = append(payload, tag...)
		mac := hmac.New(sha1.New, secret)
		mac.Write(payload)
		return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
	}
}

// ConfirmationQueueClient exposes the mobile confirmation queue.
type ConfirmationQueueClient struct {
	httpClient *http.Client
	baseURL    string
	steamID    string
	deviceID   string
	keyFunc    ConfirmationKeyFunc
}

func NewConfirmationQueueClient(steamID, deviceID string, keyFunc ConfirmationKeyFunc) *ConfirmationQueueClient {
	return &ConfirmationQueueClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultCommunityBaseURL,
		steamID:    steamID,
		deviceID:   deviceID,
		keyFunc:    keyFunc,
	}
}

// WithBaseURL points the client at a different host. Used by tests.
func (c *ConfirmationQueueClient) WithBaseURL(baseURL string) *ConfirmationQueueClient {
	c.baseURL = baseURL
	return c
}

var _ useCases.ConfirmationClient = (*ConfirmationQueueClient)(nil)

type confEntry struct {
	ID        string `json:"id"`
	Nonce     string `json:"nonce"`
	CreatorID string `json:"creator_id"`
	CreatedAt int64  `json:"creation_time"`
}

type confListResponse struct {
	Success       bool        `json:"success"`
	NeedsAuth     bool        `json:"needauth"`
	Confirmations []confEntry `json:"conf"`
}

// FetchPending lists the confirmations currently waiting in the queue.
func (c *ConfirmationQueueClient) FetchPending(ctx context.Context) ([]model.Confirmation, error) {
	now := time.Now()
	key, err := c.keyFunc("list", now)
	if err != nil {
		return nil, fmt.Errorf("confirmation key: %w", err)
	}
	params := c.baseParams(key, "list", now)

	var list confListResponse
	if err := c.getJSON(ctx, c.baseURL+"/mobileconf/getlist?"+params.Encode(), &list); err != nil {
		return nil, err
	}
	if list.NeedsAuth || !list.Success {
		return nil, fmt.Errorf("confirmation list rejected: %w", useCases.ErrUnauthorized)
	}

	confirmations := make([]model.Confirmation, 0, len(list.Confirmations))
	for _, entry := range list.Confirmations {
		offerID, err := strconv.ParseUint(entry.CreatorID, 10, 64)
		if err != nil {
			continue
		}
		confirmations = append(confirmations, model.Confirmation{
			ID:          entry.ID,
			Key:         entry.Nonce,
			OfferID:     offerID,
			SubmittedAt: time.Unix(entry.CreatedAt, 0),
		})
	}
	return confirmations, nil
}

// Accept resolves one confirmation as allowed.
func (c *ConfirmationQueueClient) Accept(ctx context.Context, conf model.Confirmation) error {
	now := time.Now()
	key, err := c.keyFunc("allow", now)
	if err != nil {
		return fmt.Errorf("confirmation key: %w", err)
	}
	params := c.baseParams(key, "allow", now)
	params.Set("op", "allow")
	params.Set("cid", conf.ID)
	params.Set("ck", conf.Key)

	var result struct {
		Success bool `json:"success"`
	}
	if err := c.getJSON(ctx, c.baseURL+"/mobileconf/ajaxop?"+params.Encode(), &result); err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("confirmation %s not accepted", conf.ID)
	}
	return nil
}

func (c *ConfirmationQueueClient) baseParams(key, tag string, at time.Time) url.Values {
	return url.Values{
		"p":   {c.deviceID},
		"a":   {c.steamID},
		"k":   {key},
		"t":   {strconv.FormatInt(at.Unix(), 10)},
		"m":   {"react"},
		"tag": {tag},
	}
}

func (c *ConfirmationQueueClient) getJSON(ctx context.Context, link string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("status %d: %w", resp.StatusCode, useCases.ErrUnauthorized)
	default:
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
