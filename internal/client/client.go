package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	uuid "github.com/nu7hatch/gouuid"
	"go.uber.org/zap"
)

const IdempotencyHeader = "Idempotency-Key"

// APIError is a non 2xx response from marketd.
type APIError struct {
	Status  int    `json:"-"`
	Message string `json:"error"`
	Kind    string `json:"kind,omitempty"`
}

func (e APIError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("%d %s: %s", e.Status, e.Kind, e.Message)
	}
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

type Client struct {
	url        string
	httpClient *retryablehttp.Client
}

func New(url string, retries int, timeout time.Duration) *Client {
	httpClient := retryablehttp.NewClient()
	httpClient.RetryMax = retries
	httpClient.HTTPClient.Timeout = timeout
	httpClient.Logger = nil

	return &Client{
		url:        strings.TrimRight(url, "/"),
		httpClient: httpClient,
	}
}

// Get fetches path and decodes the response into out.
func (c *Client) Get(path string, out interface{}) error {
	req, err := retryablehttp.NewRequest(http.MethodGet, c.url+path, nil)
	if err != nil {
		return err
	}

	return c.do(req, out)
}

// Post sends body as JSON. Every retry of one Post carries the same
// idempotency key so the server applies the call once.
func (c *Client) Post(path string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := retryablehttp.NewRequest(http.MethodPost, c.url+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	key, err := uuid.NewV4()
	if err != nil {
		return err
	}
	req.Header.Set(IdempotencyHeader, key.String())

	return c.do(req, out)
}

func (c *Client) do(req *retryablehttp.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		zap.L().With(zap.Error(err), zap.String("url", req.URL.String())).Error("Client: Request failed")
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := APIError{Status: resp.StatusCode}
		if jsonErr := json.Unmarshal(body, &apiErr); jsonErr != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(body))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}
