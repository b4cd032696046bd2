package sections

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client is an Adapter that talks to the sections REST API of a remote
// server with a bearer token.
type Client struct {
	http *resty.Client
}

type apiError struct {
	Error string `json:"error"`
}

func NewClient(baseURL, token string) *Client {
	hc := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(token).
		SetTimeout(15*time.Second).
		SetHeader("Accept", "application/json")
	return &Client{http: hc}
}

func (c *Client) Fetch(ctx context.Context, tenantID string) (Snapshot, error) {
	var snap Snapshot
	var apiErr apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("userId", tenantID).
		SetResult(&snap).
		SetError(&apiErr).
		Get("/api/v1/sections/{userId}")
	if err != nil {
		return Snapshot{}, fmt.Errorf("fetch sections: %w", err)
	}
	if resp.IsError() {
		return Snapshot{}, fmt.Errorf("fetch sections: %s: %s", resp.Status(), apiErr.Error)
	}
	return snap, nil
}

func (c *Client) Save(ctx context.Context, tenantID string, snap Snapshot) (Snapshot, error) {
	var stored Snapshot
	var apiErr apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("userId", tenantID).
		SetBody(snap).
		SetResult(&stored).
		SetError(&apiErr).
		Post("/api/v1/sections/{userId}")
	if err != nil {
		return Snapshot{}, fmt.Errorf("save sections: %w", err)
	}
	switch {
	case resp.StatusCode() == http.StatusConflict:
		return Snapshot{}, fmt.Errorf("%w: %s", ErrStaleRevision, apiErr.Error)
	case resp.IsError():
		return Snapshot{}, fmt.Errorf("save sections: %s: %s", resp.Status(), apiErr.Error)
	}
	return stored, nil
}
