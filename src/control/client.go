package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"screen-translate/src/pipeline"
)

// ErrNoResident is returned when no resident answers in the port range.
var ErrNoResident = errors.New("no running instance found")

// Client talks to a resident. BaseURL, when set, skips port detection.
type Client struct {
	PortStart, PortEnd int
	BaseURL            string
	HTTP               *http.Client
}

func NewClient(portStart, portEnd int) *Client {
	return &Client{
		PortStart: portStart,
		PortEnd:   portEnd,
		HTTP:      &http.Client{Timeout: 5 * time.Second},
	}
}

// Detect scans the port range and returns the first port whose /ping answers
// as a resident.
func (c *Client) Detect(ctx context.Context) (int, bool) {
	timeout := 300 * time.Millisecond
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 && d < timeout {
			timeout = d
		}
	}
	pinger := &http.Client{Timeout: timeout}
	for port := c.PortStart; port <= c.PortEnd; port++ {
		if ctx.Err() != nil {
			return 0, false
		}
		if ping(ctx, pinger, baseURL(port)) {
			return port, true
		}
	}
	return 0, false
}

func ping(ctx context.Context, hc *http.Client, base string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/ping", nil)
	if err != nil {
		return false
	}
	resp, err := hc.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK && resp.Header.Get(residentHeader) == residentValue
}

func baseURL(port int) string {
	return "http://" + net.JoinHostPort(residentHost, strconv.Itoa(port))
}

func (c *Client) resolve(ctx context.Context) (string, error) {
	if c.BaseURL != "" {
		return c.BaseURL, nil
	}
	port, ok := c.Detect(ctx)
	if !ok {
		return "", ErrNoResident
	}
	return baseURL(port), nil
}

// Status fetches the resident's loop status.
func (c *Client) Status(ctx context.Context) (pipeline.Status, error) {
	return c.call(ctx, http.MethodGet, "/status")
}

// Do sends an action and returns the status after it ran.
func (c *Client) Do(ctx context.Context, action Action) (pipeline.Status, error) {
	return c.call(ctx, http.MethodPost, "/"+string(action))
}

func (c *Client) call(ctx context.Context, method, path string) (pipeline.Status, error) {
	var st pipeline.Status
	base, err := c.resolve(ctx)
	if err != nil {
		return st, err
	}
	req, err := http.NewRequestWithContext(ctx, method, base+path, nil)
	if err != nil {
		return st, err
	}
	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return st, fmt.Errorf("control request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error == "" {
			e.Error = resp.Status
		}
		return st, fmt.Errorf("resident: %s", e.Error)
	}
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return st, fmt.Errorf("decode status: %w", err)
	}
	return st, nil
}
