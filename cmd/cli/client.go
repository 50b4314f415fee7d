package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/iho/ledgerengine/internal/adapter/http/dto"
)

type client struct {
	baseURL        string
	idempotencyKey string
	httpClient     http.Client
}

// apiError is a non-2xx response from the API.
type apiError struct {
	Status   int
	Response dto.ErrorResponse
	Body     string
}

func (e *apiError) Error() string {
	if e.Response.Message != "" {
		if e.Response.Code != "" {
			return fmt.Sprintf("%s (%d %s): %s", e.Response.Error, e.Status, e.Response.Code, e.Response.Message)
		}
		return fmt.Sprintf("%s (%d): %s", e.Response.Error, e.Status, e.Response.Message)
	}
	return fmt.Sprintf("request failed with status %d: %s", e.Status, strings.TrimSpace(e.Body))
}

func (c *client) get(path string, query url.Values, out any) error {
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	return c.do(http.MethodGet, path, nil, out)
}

func (c *client) post(path string, body, out any) error {
	return c.do(http.MethodPost, path, body, out)
}

func (c *client) delete(path string) error {
	return c.do(http.MethodDelete, path, nil, nil)
}

func (c *client) do(method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, strings.TrimRight(c.baseURL, "/")+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet && c.idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", c.idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &apiError{Status: resp.StatusCode, Body: string(data)}
		_ = json.Unmarshal(data, &apiErr.Response)
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
