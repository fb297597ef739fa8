package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// ExecuteResult is the payload returned by the single-request execute
// operation exposed to the shell.
type ExecuteResult struct {
	Status     int               `json:"status"`
	StatusText string            `json:"statusText"`
	Data       interface{}       `json:"data"`
	Headers    map[string]string `json:"headers"`
	DurationMs int64             `json:"durationMs"`
	Timestamp  string            `json:"timestamp"`
}

// Execute runs one ad-hoc request and packages the response for the shell.
func Execute(ctx context.Context, client *Client, method, url string, headers map[string]string, body interface{}) (*ExecuteResult, error) {
	resp, err := client.Do(ctx, Request{
		Method:  method,
		URL:     url,
		Headers: headers,
		Body:    body,
	})
	if err != nil {
		return nil, err
	}

	return &ExecuteResult{
		Status:     resp.Status,
		StatusText: resp.StatusText,
		Data:       resp.Body,
		Headers:    resp.Headers,
		DurationMs: resp.DurationMs,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// GenerateCurl renders an equivalent curl invocation for a request.
func GenerateCurl(url, method string, body interface{}) string {
	curl := fmt.Sprintf("curl -X %s '%s'", method, url)
	if body != nil {
		if encoded, err := json.Marshal(body); err == nil {
			curl += fmt.Sprintf(" -H 'Content-Type: application/json' -d '%s'", encoded)
		}
	}
	return curl
}
