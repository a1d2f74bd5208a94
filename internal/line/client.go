// Package line is a minimal client for the LINE Messaging API endpoints the
// bot needs: replying to an event and looking up a user's profile.
package line

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	replyPath   = "/v2/bot/message/reply"
	profilePath = "/v2/bot/profile/"

	defaultTimeout = 10 * time.Second
	// Maximum response body size kept for error reporting.
	maxErrorBodySize = 1024

	// MessageTypeText is the only outbound message type the bot sends.
	MessageTypeText = "text"
)

// APIError is returned when the Messaging API answers with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("line api returned status %d: %s", e.StatusCode, e.Body)
}

// Message is an outbound message object.
type Message struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// TextMessage builds a text message.
func TextMessage(text string) Message {
	return Message{Type: MessageTypeText, Text: text}
}

type replyRequest struct {
	ReplyToken string    `json:"replyToken"`
	Messages   []Message `json:"messages"`
}

// Profile is the subset of the user profile response the bot stores.
type Profile struct {
	UserID        string `json:"userId"`
	DisplayName   string `json:"displayName"`
	PictureURL    string `json:"pictureUrl,omitempty"`
	StatusMessage string `json:"statusMessage,omitempty"`
}

// Client calls the Messaging API with a channel access token.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient builds a Client. A nil httpClient gets a default with a timeout.
func NewClient(baseURL, token string, httpClient *http.Client) (*Client, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("channel access token is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    httpClient,
	}, nil
}

// Reply sends messages in response to the event identified by replyToken.
func (c *Client) Reply(ctx context.Context, replyToken string, messages ...Message) error {
	if replyToken == "" {
		return errors.New("reply token is required")
	}
	if len(messages) == 0 {
		return errors.New("at least one message is required")
	}

	body, err := json.Marshal(replyRequest{ReplyToken: replyToken, Messages: messages})
	if err != nil {
		return fmt.Errorf("marshal reply: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+replyPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build reply request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Profile fetches the display profile of a user who has added the bot.
func (c *Client) Profile(ctx context.Context, userID string) (Profile, error) {
	if userID == "" {
		return Profile{}, errors.New("user id is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+profilePath+url.PathEscape(userID), nil)
	if err != nil {
		return Profile{}, fmt.Errorf("build profile request: %w", err)
	}

	resp, err := c.do(req)
	if err != nil {
		return Profile{}, fmt.Errorf("get profile: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck

	var profile Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return Profile{}, fmt.Errorf("decode profile: %w", err)
	}

	return profile, nil
}

// do authenticates the request and converts non-2xx responses into *APIError.
// On success the caller owns the response body.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close() // nolint:errcheck
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	return resp, nil
}
