package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/genialityco/gen-live-web-sub001/internal/domain"
)

// TrackSource reports the currently published tracks for an event. The
// conferencing layer owns media transport; only the track tags cross this
// boundary.
type TrackSource interface {
	LiveTracks(ctx context.Context, eventID string) ([]domain.LiveTrack, error)
}

// MediaClient wraps the conferencing service HTTP API.
type MediaClient struct {
	baseURL    string
	httpClient *http.Client
	cache      map[string]*cachedTracks
	cacheTTL   time.Duration
	mu         sync.RWMutex
	group      singleflight.Group
}

type cachedTracks struct {
	tracks    []domain.LiveTrack
	expiresAt time.Time
}

type tracksResponse struct {
	OK   bool `json:"ok"`
	Data struct {
		Tracks []domain.LiveTrack `json:"tracks"`
	} `json:"data"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// NewMediaClient creates a new conferencing service client. cacheTTL bounds
// the request rate when many compositions happen in quick succession.
func NewMediaClient(baseURL string, cacheTTL time.Duration) *MediaClient {
	return &MediaClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		cache:    make(map[string]*cachedTracks),
		cacheTTL: cacheTTL,
	}
}

// LiveTracks retrieves the published track set for an event. Concurrent
// cache misses for the same event collapse into a single upstream request.
func (c *MediaClient) LiveTracks(ctx context.Context, eventID string) ([]domain.LiveTrack, error) {
	if tracks, ok := c.getFromCache(eventID); ok {
		return tracks, nil
	}

	result, err, _ := c.group.Do(eventID, func() (interface{}, error) {
		return c.fetchTracks(ctx, eventID)
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.LiveTrack), nil
}

func (c *MediaClient) fetchTracks(ctx context.Context, eventID string) ([]domain.LiveTrack, error) {
	url := fmt.Sprintf("%s/api/v1/events/%s/tracks", c.baseURL, eventID)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tracks: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("media service returned status: %d", resp.StatusCode)
	}

	var tracksResp tracksResponse
	if err := json.NewDecoder(resp.Body).Decode(&tracksResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if !tracksResp.OK {
		return nil, fmt.Errorf("media service error: %s", tracksResp.Error.Message)
	}

	c.addToCache(eventID, tracksResp.Data.Tracks)
	return tracksResp.Data.Tracks, nil
}

func (c *MediaClient) getFromCache(eventID string) ([]domain.LiveTrack, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if cached, ok := c.cache[eventID]; ok && time.Now().Before(cached.expiresAt) {
		return cached.tracks, true
	}
	return nil, false
}

func (c *MediaClient) addToCache(eventID string, tracks []domain.LiveTrack) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache[eventID] = &cachedTracks{
		tracks:    tracks,
		expiresAt: time.Now().Add(c.cacheTTL),
	}
}
