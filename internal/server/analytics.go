package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Hyeon6492/LifeBit/internal/config"
)

// Analytics kinds, used as the path segment on the analytics service.
const (
	analyticsHealthReport     = "health-report"
	analyticsWeightTrends     = "weight-trends"
	analyticsExercisePatterns = "exercise-patterns"
	analyticsAIInsights       = "ai-insights"
)

// AnalyticsClient fetches a computed analysis for one user and period.
type AnalyticsClient interface {
	Fetch(ctx context.Context, kind string, userID int64, period string) (any, error)
}

var ErrAnalyticsNotConfigured = errors.New("ANALYTICS_BASE_URL is not configured")

// HTTPAnalyticsClient posts {user_id, period} to <base>/<kind> and returns
// the decoded JSON body.
type HTTPAnalyticsClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPAnalyticsClient(cfg config.Config) *HTTPAnalyticsClient {
	timeoutSeconds := cfg.AITimeoutSeconds
	if timeoutSeconds <= 0 {
		timeoutSeconds = 30
	}
	return &HTTPAnalyticsClient{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.AnalyticsBaseURL), "/"),
		httpClient: &http.Client{
			Timeout: time.Duration(timeoutSeconds) * time.Second,
		},
	}
}

func (h *HTTPAnalyticsClient) Fetch(ctx context.Context, kind string, userID int64, period string) (any, error) {
	if h.baseURL == "" {
		return nil, ErrAnalyticsNotConfigured
	}
	bodyRaw, err := json.Marshal(map[string]any{"user_id": userID, "period": period})
	if err != nil {
		return nil, err
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/"+kind, bytes.NewReader(bodyRaw))
	if err != nil {
		return nil, err
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := h.httpClient.Do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, err
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return nil, fmt.Errorf("analytics %s error (%d): %s", kind, response.StatusCode, truncateForLog(string(responseBody), 400))
	}

	var result any
	if err := json.Unmarshal(responseBody, &result); err != nil {
		return nil, fmt.Errorf("decode analytics %s response: %w", kind, err)
	}
	return result, nil
}
