package ranking

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/utafrali/catalog-service/pkg/httpclient"
)

const serviceName = "ranking-service"

type scoreRequest struct {
	Query      string      `json:"query"`
	Candidates []Candidate `json:"candidates"`
}

type scoreResponse struct {
	Scores []struct {
		ID    int64   `json:"id"`
		Score float64 `json:"score"`
	} `json:"scores"`
}

// Client scores candidates through the ranking service's HTTP API. Calls go
// through a circuit breaker so a failing model degrades search quickly.
type Client struct {
	baseURL string
	http    *httpclient.CircuitBreakerClient
	logger  *slog.Logger
}

// NewClient creates a ranking client for the service at baseURL.
func NewClient(baseURL string, cfg httpclient.Config, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: httpclient.NewCircuitBreakerClient(
			httpclient.New(cfg),
			httpclient.DefaultCircuitBreakerConfig(serviceName),
			logger,
		),
		logger: logger,
	}
}

// Score posts query and candidates to /v1/score.
func (c *Client) Score(ctx context.Context, query string, candidates []Candidate) (map[int64]float64, error) {
	resp, err := c.http.PostJSON(ctx, c.baseURL+"/v1/score", scoreRequest{Query: query, Candidates: candidates})
	if err != nil {
		if httpclient.IsOpen(err) {
			c.logger.WarnContext(ctx, "ranking circuit open", slog.String("error", err.Error()))
		}
		return nil, fmt.Errorf("score candidates: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, httpclient.ParseResponseError(resp, serviceName)
	}
	defer func() { _ = resp.Body.Close() }()

	var body scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", serviceName, err)
	}

	scores := make(map[int64]float64, len(body.Scores))
	for _, s := range body.Scores {
		scores[s.ID] = s.Score
	}
	return scores, nil
}
