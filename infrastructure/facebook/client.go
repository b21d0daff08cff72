package facebook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/AzielCF/az-fbm/campaign/domain"
	"github.com/AzielCF/az-fbm/pkg/timeutils"
	"github.com/sirupsen/logrus"
)

const (
	defaultTimeout      = 15 * time.Second
	maxErrorBodyBytes   = 8192
	defaultConversLimit = 100
)

// Config holds the Graph API client settings.
type Config struct {
	BaseURL           string
	Version           string
	RequestTimeout    time.Duration
	ConversationLimit int
}

// Client talks to the Facebook Graph API. All timestamps returned are
// normalized to UTC; all errors are mapped into the delivery taxonomy.
type Client struct {
	baseURL    string
	version    string
	httpClient *http.Client
	convLimit  int
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://graph.facebook.com"
	}
	if cfg.Version == "" {
		cfg.Version = "v19.0"
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultTimeout
	}
	if cfg.ConversationLimit <= 0 {
		cfg.ConversationLimit = defaultConversLimit
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		version:    cfg.Version,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		convLimit:  cfg.ConversationLimit,
	}
}

type graphErrorBody struct {
	Error struct {
		Message   string `json:"message"`
		Type      string `json:"type"`
		Code      int    `json:"code"`
		Subcode   int    `json:"error_subcode"`
		TraceID   string `json:"fbtrace_id"`
		IsTransnt bool   `json:"is_transient"`
	} `json:"error"`
}

type conversationPayload struct {
	Data []struct {
		ID           string `json:"id"`
		UpdatedTime  string `json:"updated_time"`
		Participants struct {
			Data []struct {
				ID string `json:"id"`
			} `json:"data"`
		} `json:"participants"`
	} `json:"data"`
}

type messagesPayload struct {
	Data []struct {
		ID          string `json:"id"`
		CreatedTime string `json:"created_time"`
		From        struct {
			ID string `json:"id"`
		} `json:"from"`
	} `json:"data"`
}

// FetchConversations lists a page's conversations with participants.
func (c *Client) FetchConversations(ctx context.Context, pageID, token string) ([]domain.Conversation, error) {
	endpoint := fmt.Sprintf("%s/%s/%s/conversations", c.baseURL, c.version, url.PathEscape(pageID))
	q := url.Values{}
	q.Set("fields", "participants,updated_time")
	q.Set("limit", fmt.Sprintf("%d", c.convLimit))
	q.Set("access_token", token)

	var payload conversationPayload
	if err := c.getJSON(ctx, endpoint+"?"+q.Encode(), &payload); err != nil {
		return nil, err
	}

	conversations := make([]domain.Conversation, 0, len(payload.Data))
	for _, raw := range payload.Data {
		conv := domain.Conversation{ID: raw.ID}
		if raw.UpdatedTime != "" {
			t, err := timeutils.ParseGraphTime(raw.UpdatedTime)
			if err != nil {
				logrus.WithError(err).Warnf("[GRAPH] skipping unparseable updated_time on conversation %s", raw.ID)
				continue
			}
			conv.UpdatedTime = t
		}
		for _, p := range raw.Participants.Data {
			conv.Participants = append(conv.Participants, p.ID)
		}
		conversations = append(conversations, conv)
	}
	return conversations, nil
}

// FetchMessages lists a conversation's messages, newest first.
func (c *Client) FetchMessages(ctx context.Context, conversationID, token string, limit int) ([]domain.GraphMessage, error) {
	if limit <= 0 {
		limit = 25
	}
	endpoint := fmt.Sprintf("%s/%s/%s/messages", c.baseURL, c.version, url.PathEscape(conversationID))
	q := url.Values{}
	q.Set("fields", "from,created_time")
	q.Set("limit", fmt.Sprintf("%d", limit))
	q.Set("access_token", token)

	var payload messagesPayload
	if err := c.getJSON(ctx, endpoint+"?"+q.Encode(), &payload); err != nil {
		return nil, err
	}

	messages := make([]domain.GraphMessage, 0, len(payload.Data))
	for _, raw := range payload.Data {
		msg := domain.GraphMessage{ID: raw.ID, FromID: raw.From.ID}
		if raw.CreatedTime != "" {
			t, err := timeutils.ParseGraphTime(raw.CreatedTime)
			if err != nil {
				logrus.WithError(err).Warnf("[GRAPH] skipping unparseable created_time on message %s", raw.ID)
				continue
			}
			msg.CreatedTime = t
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// SendText delivers a text message to a PSID via the Send API.
func (c *Client) SendText(ctx context.Context, recipientID, text, token string) error {
	body := map[string]any{
		"recipient": map[string]string{"id": recipientID},
		"message":   map[string]string{"text": text},
	}
	return c.postSend(ctx, token, body)
}

// SendMedia delivers an image or video attachment by URL reference.
func (c *Client) SendMedia(ctx context.Context, recipientID string, kind domain.MessageKind, mediaURL, token string) error {
	var attachmentType string
	switch kind {
	case domain.MessageImage:
		attachmentType = "image"
	case domain.MessageVideo:
		attachmentType = "video"
	default:
		return &domain.PermanentDeliveryError{Message: fmt.Sprintf("unsupported media kind %q", kind)}
	}

	body := map[string]any{
		"recipient": map[string]string{"id": recipientID},
		"message": map[string]any{
			"attachment": map[string]any{
				"type": attachmentType,
				"payload": map[string]any{
					"url":         mediaURL,
					"is_reusable": true,
				},
			},
		},
	}
	return c.postSend(ctx, token, body)
}

// FetchProfile returns the recipient's display name, best effort.
func (c *Client) FetchProfile(ctx context.Context, recipientID, token string) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/%s", c.baseURL, c.version, url.PathEscape(recipientID))
	q := url.Values{}
	q.Set("fields", "first_name,last_name")
	q.Set("access_token", token)

	var payload struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if err := c.getJSON(ctx, endpoint+"?"+q.Encode(), &payload); err != nil {
		return "", err
	}
	name := payload.FirstName
	if payload.LastName != "" {
		if name != "" {
			name += " "
		}
		name += payload.LastName
	}
	return name, nil
}

func (c *Client) postSend(ctx context.Context, token string, body map[string]any) error {
	endpoint := fmt.Sprintf("%s/%s/me/messages?access_token=%s", c.baseURL, c.version, url.QueryEscape(token))

	raw, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return &domain.PermanentDeliveryError{Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyNetworkError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return classifyGraphError(resp.StatusCode, data)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, fullURL string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return &domain.PermanentDeliveryError{Message: err.Error()}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyNetworkError(err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= 400 {
		return classifyGraphError(resp.StatusCode, data)
	}
	return json.Unmarshal(data, dest)
}

// classifyGraphError maps a Graph API error body into the delivery
// taxonomy. Rate limits and flood controls retry; bad recipients,
// permission and policy errors do not; token failures take the whole
// page offline for the tick.
func classifyGraphError(httpStatus int, body []byte) error {
	var parsed graphErrorBody
	_ = json.Unmarshal(body, &parsed)
	code := parsed.Error.Code
	msg := parsed.Error.Message
	if msg == "" {
		msg = fmt.Sprintf("graph request failed: status=%d body=%s", httpStatus, string(body))
	}

	switch code {
	case 4, 17, 32, 613, 80006:
		// Application/user/page rate limits and messenger throttling.
		return &domain.TransientDeliveryError{Code: code, Message: msg}
	case 190, 102:
		// Expired or invalid access token.
		return &domain.CollaboratorUnavailableError{Err: &PermanentTokenError{Code: code, Message: msg}}
	case 10, 200, 551, 100:
		// Permission denied, recipient unavailable, invalid parameter.
		return &domain.PermanentDeliveryError{Code: code, Message: msg}
	}

	if parsed.Error.IsTransnt || httpStatus == http.StatusTooManyRequests || httpStatus >= 500 {
		return &domain.TransientDeliveryError{Code: code, Message: msg}
	}
	return &domain.PermanentDeliveryError{Code: code, Message: msg}
}

func classifyNetworkError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &domain.TransientDeliveryError{Message: err.Error()}
	}
	// Connection refused / DNS failures read as the collaborator being
	// down rather than a per-recipient failure.
	return &domain.CollaboratorUnavailableError{Err: err}
}

// PermanentTokenError marks an access token that will not recover
// without operator action.
type PermanentTokenError struct {
	Code    int
	Message string
}

func (e *PermanentTokenError) Error() string {
	return fmt.Sprintf("access token rejected (code %d): %s", e.Code, e.Message)
}
