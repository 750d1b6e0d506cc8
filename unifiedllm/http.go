package unifiedllm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
)

// httpBackend holds what every HTTP streaming adapter shares.
type httpBackend struct {
	provider string
	host     string
	apiKey   string
	model    string
	client   *http.Client
	log      *logrus.Entry
}

func newHTTPBackend(provider string, cfg AdapterConfig) httpBackend {
	client := cfg.HTTPClient
	if client == nil {
		// No client-level timeout: streams are bounded by the caller's context.
		client = &http.Client{}
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return httpBackend{
		provider: provider,
		host:     strings.TrimRight(cfg.Host, "/"),
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		client:   client,
		log:      log.WithField("provider", provider),
	}
}

// resolveModel returns the request model or the adapter default.
func (b httpBackend) resolveModel(req Request) string {
	if req.Model != "" {
		return req.Model
	}
	return b.model
}

// postStream sends a JSON body and returns the response once a 2xx status has
// been received. Errors are classified into the unified hierarchy.
func (b httpBackend) postStream(ctx context.Context, path string, headers map[string]string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &SDKError{Message: "encode request", Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.host+path, bytes.NewReader(body))
	if err != nil {
		return nil, &ConfigurationError{SDKError: SDKError{Message: fmt.Sprintf("invalid %s endpoint %q", b.provider, b.host), Cause: err}}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	b.log.WithFields(logrus.Fields{"url": b.host + path, "bytes": len(body)}).Debug("sending request")

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(ctx, b.provider, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, errorFromResponse(b.provider, resp)
	}
	return resp, nil
}

func classifyTransportError(ctx context.Context, provider string, err error) error {
	if ctxErr := ContextError(ctx, provider+" request"); ctxErr != nil {
		return ctxErr
	}
	return &NetworkError{SDKError: SDKError{Message: provider + " request failed", Cause: err}}
}

// ContextError classifies a finished context: an expired deadline becomes a
// RequestTimeoutError and a cancellation an AbortError. It returns nil while
// ctx is live.
func ContextError(ctx context.Context, what string) error {
	switch err := ctx.Err(); {
	case errors.Is(err, context.DeadlineExceeded):
		return &RequestTimeoutError{SDKError: SDKError{Message: what + " timed out", Cause: err}}
	case err != nil:
		return &AbortError{SDKError: SDKError{Message: what + " cancelled", Cause: err}}
	}
	return nil
}
