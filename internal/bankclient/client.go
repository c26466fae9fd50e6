// Package bankclient talks to the issuer HTTP API.
package bankclient

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

// ErrUnauthorized is returned for a wrong login or an unknown session token.
var ErrUnauthorized = errors.New("unauthorized")

type Client struct {
	Base string
	HTTP *http.Client
}

func New(base string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{Base: strings.TrimRight(base, "/"), HTTP: hc}
}

type Card struct {
	Number  string `json:"number"`
	PIN     string `json:"pin,omitempty"`
	Balance int64  `json:"balance"`
}

// StatusError is a response the client did not expect.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s status=%d body=%s", e.Op, e.Status, e.Body)
}

func (c *Client) CreateCard(ctx context.Context) (*Card, error) {
	var card Card
	if err := c.call(ctx, "create card", http.MethodPost, "/cards", nil, http.StatusCreated, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

// Login returns a session token.
func (c *Client) Login(ctx context.Context, number, pin string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	req := map[string]string{"number": number, "pin": pin}
	if err := c.call(ctx, "login", http.MethodPost, "/sessions", req, http.StatusCreated, &out); err != nil {
		return "", err
	}
	return out.Token, nil
}

func (c *Client) Logout(ctx context.Context, token string) error {
	return c.call(ctx, "logout", http.MethodDelete, sessionPath(token, ""), nil, http.StatusNoContent, nil)
}

func (c *Client) Balance(ctx context.Context, token string) (int64, error) {
	var card Card
	if err := c.call(ctx, "balance", http.MethodGet, sessionPath(token, "/balance"), nil, http.StatusOK, &card); err != nil {
		return 0, err
	}
	return card.Balance, nil
}

func (c *Client) AddIncome(ctx context.Context, token string, amount int64) error {
	req := map[string]int64{"amount": amount}
	return c.call(ctx, "add income", http.MethodPost, sessionPath(token, "/income"), req, http.StatusNoContent, nil)
}

// Transfer returns the outcome name, e.g. "SUCCESS" or "NOT_ENOUGH_MONEY_ERROR".
// A rejected transfer is not an error.
func (c *Client) Transfer(ctx context.Context, token, target string, amount int64) (string, error) {
	resp, err := c.send(ctx, http.MethodPost, sessionPath(token, "/transfers"), map[string]any{"target": target, "amount": amount})
	if err != nil {
		return "", fmt.Errorf("transfer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusUnprocessableEntity {
		return "", statusError("transfer", resp)
	}
	var out struct {
		Result string `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode transfer: %w", err)
	}
	return out.Result, nil
}

func (c *Client) CloseAccount(ctx context.Context, token string) error {
	return c.call(ctx, "close account", http.MethodDelete, sessionPath(token, "/card"), nil, http.StatusNoContent, nil)
}

func sessionPath(token, rest string) string {
	return "/sessions/" + url.PathEscape(token) + rest
}

func (c *Client) call(ctx context.Context, op, method, path string, body any, want int, out any) error {
	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		return statusError(op, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", op, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.Base+path, r)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.HTTP.Do(req)
}

func statusError(op string, resp *http.Response) error {
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}
	return &StatusError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
}
