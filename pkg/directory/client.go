package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-querystring/query"
	log "github.com/sirupsen/logrus"

	"github.com/1F47E/dermassist/pkg/models"
)

// ErrUnexpectedStatus is wrapped by errors for non-200 backend responses
var ErrUnexpectedStatus = errors.New("unexpected status")

// DefaultTimeout applies when the client is created without a timeout
const DefaultTimeout = 10 * time.Second

type doctorsResponse struct {
	Doctors []models.Doctor `json:"doctors"`
	Total   int             `json:"total"`
}

type citiesResponse struct {
	Cities []string `json:"cities"`
}

// Client reads the directory from the backend HTTP API
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *log.Entry
}

// NewClient creates a client for the backend at baseURL
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     log.WithField("prefix", "directory"),
	}
}

func (c *Client) Doctors(ctx context.Context, f Filter) ([]models.Doctor, error) {
	v, err := query.Values(f)
	if err != nil {
		return nil, fmt.Errorf("failed to encode filter: %w", err)
	}

	endpoint := c.baseURL + "/doctors"
	if q := v.Encode(); q != "" {
		endpoint += "?" + q
	}

	var resp doctorsResponse
	if err := c.get(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	if resp.Doctors == nil {
		resp.Doctors = []models.Doctor{}
	}
	return resp.Doctors, nil
}

func (c *Client) Cities(ctx context.Context) ([]string, error) {
	var resp citiesResponse
	if err := c.get(ctx, c.baseURL+"/doctors/cities", &resp); err != nil {
		return nil, err
	}
	return resp.Cities, nil
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	c.logger.WithFields(log.Fields{
		"url":      endpoint,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	}).Debug("directory request")

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w %d from %s: %s", ErrUnexpectedStatus, resp.StatusCode, endpoint, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", endpoint, err)
	}
	return nil
}
