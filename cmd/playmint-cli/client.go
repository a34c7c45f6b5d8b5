package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"playmint/crypto"
	"playmint/gateway/middleware"
)

type client struct {
	baseURL string
	token   string
	http    *http.Client
}

type apiError struct {
	Status    int
	Message   string
	RequestID string
}

func (e *apiError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("rpc error %d: %s (request %s)", e.Status, e.Message, e.RequestID)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Status, e.Message)
}

func newClient(baseURL, token string) *client {
	return &client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   strings.TrimSpace(token),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// signed posts body to path with a request signature from key.
func (c *client) signed(key *crypto.PrivateKey, path string, body interface{}) (json.RawMessage, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if err := middleware.SignRequest(req, key, payload, time.Now()); err != nil {
		return nil, err
	}
	data, _, err := c.do(req)
	return data, err
}

func (c *client) get(path string) (json.RawMessage, error) {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	data, _, err := c.do(req)
	return data, err
}

func (c *client) download(path string) ([]byte, http.Header, error) {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return c.do(req)
}

func (c *client) do(req *http.Request) ([]byte, http.Header, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}
	if resp.StatusCode >= 300 {
		var body struct {
			Error     string `json:"error"`
			RequestID string `json:"requestId"`
		}
		_ = json.Unmarshal(data, &body)
		if body.Error == "" {
			body.Error = strings.TrimSpace(string(data))
		}
		return nil, nil, &apiError{Status: resp.StatusCode, Message: body.Error, RequestID: body.RequestID}
	}
	return data, resp.Header, nil
}
