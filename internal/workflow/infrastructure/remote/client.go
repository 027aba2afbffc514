package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	lifecycleDomain "github.com/felixgeelhaar/capstan/internal/lifecycle/domain"
	sharedDomain "github.com/felixgeelhaar/capstan/internal/shared/domain"
	"github.com/felixgeelhaar/capstan/internal/workflow/domain"
	"github.com/sony/gobreaker/v2"
)

// Config holds the remote workflow engine client settings.
type Config struct {
	BaseURL          string
	Timeout          time.Duration
	FailureThreshold uint32
	BreakerTimeout   time.Duration
}

// Client talks to the workflow engine over HTTP. All calls run through a
// circuit breaker so a dead engine fails fast instead of tying up callers.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	logger  *slog.Logger
}

// NewClient creates a workflow engine client.
func NewClient(config Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5
	}
	if config.BreakerTimeout <= 0 {
		config.BreakerTimeout = 30 * time.Second
	}

	settings := gobreaker.Settings{
		Name:    "workflow-engine",
		Timeout: config.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.FailureThreshold
		},
		// Not-found and permission responses are answers, not outages.
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, sharedDomain.ErrNotFound) ||
				errors.Is(err, sharedDomain.ErrUnauthorized)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}

	return &Client{
		baseURL: config.BaseURL,
		http:    &http.Client{Timeout: config.Timeout},
		breaker: gobreaker.NewCircuitBreaker[[]byte](settings),
		logger:  logger,
	}
}

type instancePayload struct {
	ID           string                      `json:"id"`
	EventID      string                      `json:"event_id"`
	State        string                      `json:"state"`
	MediaPackage lifecycleDomain.MediaPackage `json:"media_package"`
}

// FindWorkflow returns the workflow instance for an event.
func (c *Client) FindWorkflow(ctx context.Context, eventID string) (*domain.Instance, error) {
	body, err := c.do(ctx, http.MethodGet, "/events/"+eventID+"/workflow", nil)
	if err != nil {
		return nil, fmt.Errorf("find workflow for event %s: %w", eventID, err)
	}

	var payload instancePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode workflow for event %s: %w", eventID, err)
	}

	return &domain.Instance{
		ID:           payload.ID,
		EventID:      payload.EventID,
		State:        lifecycleDomain.WorkflowState(payload.State),
		MediaPackage: payload.MediaPackage,
	}, nil
}

// ReplaceMediaPackageAndPersist swaps the instance's media package and
// persists the instance.
func (c *Client) ReplaceMediaPackageAndPersist(ctx context.Context, workflowID string, mp lifecycleDomain.MediaPackage) error {
	payload, err := json.Marshal(mp)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, http.MethodPut, "/workflows/"+workflowID+"/mediapackage", payload)
	if err != nil {
		return fmt.Errorf("replace media package on workflow %s: %w", workflowID, err)
	}
	return nil
}

// StopAndRemove stops the instance and deletes it from the engine.
func (c *Client) StopAndRemove(ctx context.Context, workflowID string) error {
	if _, err := c.do(ctx, http.MethodDelete, "/workflows/"+workflowID, nil); err != nil {
		return fmt.Errorf("stop and remove workflow %s: %w", workflowID, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	return c.breaker.Execute(func() ([]byte, error) {
		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
		if err != nil {
			return nil, err
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return body, nil
		case resp.StatusCode == http.StatusNotFound:
			return nil, sharedDomain.ErrNotFound
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return nil, sharedDomain.ErrUnauthorized
		default:
			return nil, fmt.Errorf("workflow engine returned status %d", resp.StatusCode)
		}
	})
}
