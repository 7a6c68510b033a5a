package restutil

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"net/http"
	neturl "net/url"
	"time"
)

// Auth basic auth details for API
type Auth struct {
	Username string
	Password string
}

const (
	defaultRestTimeOut = 10 * time.Second
)

// Client issues JSON requests with optional basic auth and extra headers
type Client struct {
	HTTP    *http.Client
	Auth    *Auth
	Headers map[string]string
}

// NewClient returns a client with the given request timeout. TLS
// verification is skipped when insecure is set.
func NewClient(timeout time.Duration, insecure bool) *Client {
	if timeout <= 0 {
		timeout = defaultRestTimeOut
	}
	return &Client{
		HTTP: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: insecure},
			},
		},
	}
}

var defaultClient = NewClient(defaultRestTimeOut, true)

// Get rest get call
func Get(url string, auth *Auth, headers map[string]string) ([]byte, int, error) {
	return defaultClient.withAuth(auth, headers).Do(context.Background(), http.MethodGet, url, nil)
}

// POST rest post call
func POST(url string, payload interface{}, auth *Auth, headers map[string]string) ([]byte, int, error) {
	return defaultClient.withAuth(auth, headers).Do(context.Background(), http.MethodPost, url, payload)
}

// PUT rest put call
func PUT(url string, payload interface{}, auth *Auth, headers map[string]string) ([]byte, int, error) {
	return defaultClient.withAuth(auth, headers).Do(context.Background(), http.MethodPut, url, payload)
}

// DELETE rest delete call
func DELETE(url string, payload interface{}, auth *Auth, headers map[string]string) ([]byte, int, error) {
	return defaultClient.withAuth(auth, headers).Do(context.Background(), http.MethodDelete, url, payload)
}

func (c *Client) withAuth(auth *Auth, headers map[string]string) *Client {
	return &Client{HTTP: c.HTTP, Auth: auth, Headers: headers}
}

func validateURL(url string) error {
	_, err := neturl.ParseRequestURI(url)
	return err
}

// Do sends payload JSON encoded and returns the raw body and status code
func (c *Client) Do(ctx context.Context, httpMethod, url string, payload interface{}) ([]byte, int, error) {
	if err := validateURL(url); err != nil {
		return nil, 0, err
	}
	var body io.Reader
	if payload != nil {
		j, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, err
		}
		body = bytes.NewBuffer(j)
	}
	req, err := http.NewRequestWithContext(ctx, httpMethod, url, body)
	if err != nil {
		return nil, 0, err
	}
	setBasicAuthAndHeaders(req, c.Auth, c.Headers)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return respBody, resp.StatusCode, nil
}

// GetJSON decodes the response of a GET into out and returns the status code
func (c *Client) GetJSON(ctx context.Context, url string, out interface{}) (int, error) {
	return c.doJSON(ctx, http.MethodGet, url, nil, out)
}

// PostJSON posts payload and decodes the response into out when it is not nil
func (c *Client) PostJSON(ctx context.Context, url string, payload, out interface{}) (int, error) {
	return c.doJSON(ctx, http.MethodPost, url, payload, out)
}

func (c *Client) doJSON(ctx context.Context, method, url string, payload, out interface{}) (int, error) {
	respBody, code, err := c.Do(ctx, method, url, payload)
	if err != nil {
		return code, err
	}
	if out != nil && code >= 200 && code < 300 && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return code, err
		}
	}
	return code, nil
}

func setBasicAuthAndHeaders(req *http.Request, auth *Auth, headers map[string]string) *http.Request {
	//Setting basic auth
	if auth != nil {
		req.SetBasicAuth(auth.Username, auth.Password)
	}
	//Setting headers
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req
}
