package connectivity

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
)

// HTTPProbe considers the network up when a request to URL gets any HTTP
// answer below 500 within the timeout.
type HTTPProbe struct {
	client *resty.Client
	url    string
}

// NewHTTPProbe creates a probe against url.
func NewHTTPProbe(url string, timeout time.Duration) *HTTPProbe {
	return &HTTPProbe{
		client: resty.New().SetTimeout(timeout).SetRetryCount(0),
		url:    url,
	}
}

// IsReachable issues a HEAD request.
func (p *HTTPProbe) IsReachable(ctx context.Context) bool {
	resp, err := p.client.R().SetContext(ctx).Head(p.url)
	if err != nil {
		return false
	}
	return resp.StatusCode() < 500
}
