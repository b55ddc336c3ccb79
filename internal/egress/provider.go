package egress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/genialityco/gen-live-web-sub001/internal/domain"
)

// StartRequest asks the provider to render and capture the program view.
type StartRequest struct {
	EventID    string            `json:"event_id"`
	ProgramURL string            `json:"program_url"`
	Layout     domain.LayoutMode `json:"layout"`
}

// Provider is the external egress service: it loads the program view
// headlessly, captures it and publishes the result to an ingest endpoint.
type Provider interface {
	Start(ctx context.Context, req StartRequest) (domain.EgressJob, error)
	Stop(ctx context.Context, egressID string) error
	Status(ctx context.Context, egressID string) (domain.EgressJob, error)
}

// HTTPProvider wraps the egress service HTTP API.
type HTTPProvider struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPProvider creates a new egress provider client.
func NewHTTPProvider(baseURL string) *HTTPProvider {
	return &HTTPProvider{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type egressResponse struct {
	OK   bool             `json:"ok"`
	Data domain.EgressJob `json:"data"`
	Err  struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Start begins rendering the program feed.
func (p *HTTPProvider) Start(ctx context.Context, req StartRequest) (domain.EgressJob, error) {
	return p.post(ctx, "/egress/start", req)
}

// Stop terminates the job.
func (p *HTTPProvider) Stop(ctx context.Context, egressID string) error {
	_, err := p.post(ctx, "/egress/stop", map[string]string{"egress_id": egressID})
	return err
}

// Status returns the provider's view of the job.
func (p *HTTPProvider) Status(ctx context.Context, egressID string) (domain.EgressJob, error) {
	u := fmt.Sprintf("%s/egress/status?egress_id=%s", p.baseURL, url.QueryEscape(egressID))
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return domain.EgressJob{}, fmt.Errorf("failed to create request: %w", err)
	}
	return p.do(req)
}

func (p *HTTPProvider) post(ctx context.Context, path string, body interface{}) (domain.EgressJob, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return domain.EgressJob{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return domain.EgressJob{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return p.do(req)
}

func (p *HTTPProvider) do(req *http.Request) (domain.EgressJob, error) {
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return domain.EgressJob{}, fmt.Errorf("egress provider unreachable: %w", err)
	}
	defer resp.Body.Close()

	var envelope egressResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return domain.EgressJob{}, fmt.Errorf("failed to decode provider response: %w", err)
	}

	if resp.StatusCode != http.StatusOK || !envelope.OK {
		msg := envelope.Err.Message
		if msg == "" {
			msg = fmt.Sprintf("provider returned status %d", resp.StatusCode)
		}
		return domain.EgressJob{}, fmt.Errorf("egress provider error: %s", msg)
	}

	return envelope.Data, nil
}
