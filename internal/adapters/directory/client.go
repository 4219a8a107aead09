package directory

// Package directory implements the DirectoryClient port against the upstream
// user-directory service. One read-only query per lookup, no retries:
// directory unavailability is non-fatal to sign-in.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/DexterMayheww/nit-portal-api/internal/ports"
)

const defaultTimeout = 5 * time.Second

// Config holds configuration for the directory client.
type Config struct {
	// BaseURL is the directory service root; lookups hit
	// {BaseURL}/users/{subjectID}.
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client queries the upstream directory for a subject's roles, phone, and
// department.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient constructs a directory client from Config.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("directory base URL is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// directoryPayload is the wire shape of a directory entry. All fields are
// optional; partial records are normal.
type directoryPayload struct {
	Roles        []string `json:"roles"`
	Phone        string   `json:"phone"`
	DepartmentID string   `json:"department_id"`
}

// Lookup fetches the directory record for the subject. Transport failures
// and non-2xx responses map to ports.ErrDirectoryUnavailable; a 404 returns
// an empty record, which is a valid (absent) directory entry.
func (c *Client) Lookup(ctx context.Context, subjectID string) (ports.DirectoryRecord, error) {
	if subjectID == "" {
		return ports.DirectoryRecord{}, errors.New("subject ID is required")
	}

	lookupURL := c.baseURL + "/users/" + url.PathEscape(subjectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, lookupURL, nil)
	if err != nil {
		return ports.DirectoryRecord{}, fmt.Errorf("build directory request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ports.DirectoryRecord{}, fmt.Errorf("%w: %v", ports.ErrDirectoryUnavailable, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.WarnContext(ctx, "close directory response body failed", "error", cerr)
		}
	}()

	if resp.StatusCode == http.StatusNotFound {
		// No entry for this subject; the resolver's heuristics take over.
		return ports.DirectoryRecord{}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return ports.DirectoryRecord{}, fmt.Errorf("%w: directory returned status %d", ports.ErrDirectoryUnavailable, resp.StatusCode)
	}

	var payload directoryPayload
	if decodeErr := json.NewDecoder(resp.Body).Decode(&payload); decodeErr != nil {
		return ports.DirectoryRecord{}, fmt.Errorf("%w: decode directory response: %v", ports.ErrDirectoryUnavailable, decodeErr)
	}

	return ports.DirectoryRecord{
		Roles:        payload.Roles,
		Phone:        payload.Phone,
		DepartmentID: payload.DepartmentID,
	}, nil
}
