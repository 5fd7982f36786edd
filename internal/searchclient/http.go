package searchclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yoockh/legalmatch/internal/services"
)

const SearchPath = "/functions/v1/search-lawyers"

// RemoteError is a non-2xx answer from the search endpoint.
type RemoteError struct {
	Status  int
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("search endpoint returned %d: %s", e.Status, e.Message)
}

// HTTPSearcher calls the search endpoint over HTTP.
type HTTPSearcher struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewHTTPSearcher builds a Searcher for baseURL. apiKey, when set, is sent as
// a bearer token and as the apikey header expected by the edge gateway.
func NewHTTPSearcher(baseURL, apiKey string, hc *http.Client) *HTTPSearcher {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPSearcher{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, http: hc}
}

func (h *HTTPSearcher) Search(ctx context.Context, req services.SearchRequest) (*services.SearchResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+SearchPath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if h.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+h.apiKey)
		httpReq.Header.Set("apikey", h.apiKey)
	}

	resp, err := h.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Code  string `json:"code"`
			Error string `json:"error"`
		}
		_ = json.Unmarshal(raw, &e)
		if e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return nil, &RemoteError{Status: resp.StatusCode, Code: e.Code, Message: e.Error}
	}

	var out services.SearchResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return &out, nil
}
