package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/zhouzirui/studio-concierge/backend/internal/model/persona"
)

// ErrCollaboratorDisabled is returned when no settings endpoint is configured.
var ErrCollaboratorDisabled = errors.New("settings collaborator not configured")

// SiteSettings is the subset of the site-settings document the widget reads.
type SiteSettings struct {
	PersonaGreetings map[string]string `json:"personaGreetings"`
}

// Client reads site settings from the content collaborator.
type Client struct {
	client   *resty.Client
	endpoint string
	logger   *slog.Logger
}

// NewClient creates a settings client. An empty endpoint yields a disabled client.
func NewClient(endpoint string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		client:   resty.New().SetTimeout(timeout).SetHeader("Accept", "application/json"),
		endpoint: endpoint,
		logger:   logger,
	}
}

// Fetch retrieves the settings document.
func (c *Client) Fetch(ctx context.Context) (SiteSettings, error) {
	if c.endpoint == "" {
		return SiteSettings{}, ErrCollaboratorDisabled
	}

	var out SiteSettings
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&out).
		Get(c.endpoint)
	if err != nil {
		return SiteSettings{}, fmt.Errorf("fetch site settings: %w", err)
	}
	if resp.IsError() {
		return SiteSettings{}, fmt.Errorf("fetch site settings: unexpected status %d", resp.StatusCode())
	}
	return out, nil
}

// ApplyGreetings returns items with greeting overrides from the collaborator. Any
// failure is logged and the catalog is returned unchanged.
func (c *Client) ApplyGreetings(ctx context.Context, items []persona.Persona) []persona.Persona {
	settings, err := c.Fetch(ctx)
	if err != nil {
		if !errors.Is(err, ErrCollaboratorDisabled) {
			c.logger.Warn("site settings unavailable, using catalog greetings", "error", err)
		}
		return persona.ApplyGreetingOverrides(items, nil)
	}
	c.logger.Info("greeting overrides loaded", "count", len(settings.PersonaGreetings))
	return persona.ApplyGreetingOverrides(items, settings.PersonaGreetings)
}
