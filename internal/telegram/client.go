package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Update is one inbound event from getUpdates. Only message updates matter
// to this bot; everything else arrives with Message == nil and is skipped.
type Update struct {
	UpdateID int      `json:"update_id"`
	Message  *Message `json:"message"`
}

type Message struct {
	MessageID int    `json:"message_id"`
	From      *User  `json:"from"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text"`
}

type User struct {
	ID int64 `json:"id"`
}

type Chat struct {
	ID int64 `json:"id"`
}

// Client is a minimal Bot API client covering the three calls this bot
// makes: getUpdates, sendMessage and sendPhoto.
type Client struct {
	apiURL string
	client *http.Client
}

func NewClient(token string) *Client {
	return &Client{
		apiURL: "https://api.telegram.org/bot" + token,
		// Long polling holds the request open for up to the poll timeout,
		// so the client timeout has to exceed it.
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

// NewClientWithURL points the client at a custom API base, used by tests.
func NewClientWithURL(apiURL string) *Client {
	return &Client{
		apiURL: apiURL,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

// GetUpdates long polls for inbound updates starting at offset. timeout is
// the server-side hold in seconds.
func (c *Client) GetUpdates(ctx context.Context, offset, timeout int) ([]Update, error) {
	payload := map[string]int{
		"offset":  offset,
		"timeout": timeout,
	}
	raw, err := c.call(ctx, "getUpdates", payload)
	if err != nil {
		return nil, err
	}
	var updates []Update
	if err := json.Unmarshal(raw, &updates); err != nil {
		return nil, fmt.Errorf("telegram getUpdates: decoding result: %w", err)
	}
	return updates, nil
}

// SendMessage delivers text to a chat. parseMode may be empty for plain text.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text, parseMode string) error {
	payload := map[string]interface{}{
		"chat_id": chatID,
		"text":    text,
	}
	if parseMode != "" {
		payload["parse_mode"] = parseMode
	}
	_, err := c.call(ctx, "sendMessage", payload)
	return err
}

// SendPhoto uploads a local image with a caption via multipart form data.
func (c *Client) SendPhoto(ctx context.Context, chatID int64, photoPath, caption string) error {
	f, err := os.Open(photoPath)
	if err != nil {
		return fmt.Errorf("telegram sendPhoto: opening %s: %w", photoPath, err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("chat_id", fmt.Sprintf("%d", chatID)); err != nil {
		return fmt.Errorf("telegram sendPhoto: %w", err)
	}
	if caption != "" {
		if err := mw.WriteField("caption", caption); err != nil {
			return fmt.Errorf("telegram sendPhoto: %w", err)
		}
	}
	part, err := mw.CreateFormFile("photo", filepath.Base(photoPath))
	if err != nil {
		return fmt.Errorf("telegram sendPhoto: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("telegram sendPhoto: reading %s: %w", photoPath, err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("telegram sendPhoto: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/sendPhoto", &body)
	if err != nil {
		return fmt.Errorf("telegram sendPhoto: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram sendPhoto: %w", err)
	}
	defer resp.Body.Close()
	return checkResponse(resp, "sendPhoto", nil)
}

func (c *Client) call(ctx context.Context, method string, payload interface{}) (json.RawMessage, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("telegram %s: marshaling payload: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/"+method, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("telegram %s: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram %s: %w", method, err)
	}
	defer resp.Body.Close()

	var result json.RawMessage
	if err := checkResponse(resp, method, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func checkResponse(resp *http.Response, method string, result *json.RawMessage) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("telegram %s: reading response: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram %s: status %d: %s", method, resp.StatusCode, string(body))
	}
	var api apiResponse
	if err := json.Unmarshal(body, &api); err != nil {
		return fmt.Errorf("telegram %s: malformed response: %w", method, err)
	}
	if !api.OK {
		return fmt.Errorf("telegram %s: API error: %s", method, api.Description)
	}
	if result != nil {
		*result = api.Result
	}
	return nil
}
