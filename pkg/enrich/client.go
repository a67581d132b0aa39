// Package enrich wraps the external knowledge-base service that extracts
// document metadata and indexes documents for retrieval.
package enrich

import (
	"context"
	"fmt"
	"time"

	"github.com/imroc/req/v3"

	"github.com/loomworks/loomspace/pkg/apperr"
)

const (
	extractPath = "/api/v1/extract-metadata"
	processPath = "/api/v1/process-document"

	defaultTimeout = 30 * time.Second
)

type Client struct {
	http *req.Client
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := req.C().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetCommonContentType("application/json")
	if token != "" {
		c.SetCommonBearerAuthToken(token)
	}
	return &Client{http: c}
}

func (c *Client) ExtractMetadata(ctx context.Context, request *ExtractRequest) (*Metadata, error) {
	var out Metadata
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(request).
		SetSuccessResult(&out).
		Post(extractPath)
	if err != nil {
		return nil, fmt.Errorf("%w: extract metadata: %v", apperr.ErrUpstream, err)
	}
	if resp.IsErrorState() {
		// Non-2xx responses surface their body text as the error detail.
		return nil, fmt.Errorf("%w: extract metadata: status %d: %s", apperr.ErrUpstream, resp.StatusCode, resp.String())
	}
	return &out, nil
}

func (c *Client) ProcessDocument(ctx context.Context, request *ProcessRequest) (*ProcessResult, error) {
	var out ProcessResult
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(request).
		SetSuccessResult(&out).
		Post(processPath)
	if err != nil {
		return nil, fmt.Errorf("%w: process document: %v", apperr.ErrUpstream, err)
	}
	if resp.IsErrorState() {
		return nil, fmt.Errorf("%w: process document: status %d: %s", apperr.ErrUpstream, resp.StatusCode, resp.String())
	}
	return &out, nil
}
