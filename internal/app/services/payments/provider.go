package payments

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/letsbefriends/platform/internal/app/metrics"
	"github.com/letsbefriends/platform/internal/httputil"
	"github.com/letsbefriends/platform/internal/resilience"
)

// CheckoutRequest is sent to the payment provider.
type CheckoutRequest struct {
	Reference   string `json:"reference"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
}

// CheckoutSession is the provider's answer.
type CheckoutSession struct {
	ID          string `json:"id"`
	CheckoutURL string `json:"checkout_url"`
}

// Provider starts checkouts.
type Provider interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (CheckoutSession, error)
}

// HTTPProvider calls POST {base}/checkout through a retrying,
// circuit-breaking client.
type HTTPProvider struct {
	client *httputil.ServiceClient
	rc     *resilience.Client
}

// NewHTTPProvider builds a provider client for baseURL.
func NewHTTPProvider(baseURL, apiKey string, timeout time.Duration) *HTTPProvider {
	var base *http.Client
	if timeout > 0 {
		base = &http.Client{Timeout: timeout}
	}
	breaker := resilience.DefaultBreakerPolicy()
	breaker.OnStateChange = func(_, to resilience.State) {
		metrics.SetProviderCircuit(to.String())
	}
	rc := resilience.NewClient(resilience.Config{
		Base:    base,
		Retry:   resilience.DefaultRetryPolicy(),
		Breaker: breaker,
	})
	return &HTTPProvider{
		client: httputil.NewServiceClient(httputil.ServiceClientConfig{
			BaseURL: baseURL,
			APIKey:  apiKey,
			Doer:    rc,
		}),
		rc: rc,
	}
}

func (p *HTTPProvider) CreateCheckout(ctx context.Context, req CheckoutRequest) (CheckoutSession, error) {
	var session CheckoutSession
	if err := p.client.PostJSON(ctx, "/checkout", req, &session); err != nil {
		return CheckoutSession{}, fmt.Errorf("create checkout: %w", err)
	}
	if strings.TrimSpace(session.ID) == "" {
		return CheckoutSession{}, fmt.Errorf("create checkout: provider returned no id")
	}
	return session, nil
}

// Stats exposes retry counters and the breaker position.
func (p *HTTPProvider) Stats() resilience.Stats {
	return p.rc.Stats()
}

// LocalProvider issues local references when no provider is configured.
// Checkouts never complete on their own; a signed webhook must be posted.
type LocalProvider struct{}

func (LocalProvider) CreateCheckout(_ context.Context, req CheckoutRequest) (CheckoutSession, error) {
	return CheckoutSession{ID: "local_" + uuid.NewString()}, nil
}
