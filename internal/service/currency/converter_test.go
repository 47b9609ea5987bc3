// internal/service/currency/converter_test.go
package currency

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"warung/internal/pkg/httpclient"

	"go.opentelemetry.io/otel"
)

type stubProvider struct {
	name string
	rate float64
	err  error
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) FetchRate(_ context.Context) (float64, error) {
	return p.rate, p.err
}

func TestGetRateUsesFirstHealthyProvider(t *testing.T) {
	c := NewConverter([]Provider{
		&stubProvider{name: "primary", err: errors.New("timeout")},
		&stubProvider{name: "secondary", rate: 103.5},
	}, nil, otel.Tracer("test"))

	rate := c.GetRate(context.Background())
	if rate.Rate != 103.5 || rate.Degraded {
		t.Fatalf("rate = %+v", rate)
	}
}

func TestGetRateFallsBackWhenAllProvidersFail(t *testing.T) {
	c := NewConverter([]Provider{
		&stubProvider{name: "primary", err: errors.New("timeout")},
		&stubProvider{name: "secondary", err: errors.New("503")},
	}, nil, otel.Tracer("test"))

	rate := c.GetRate(context.Background())
	if !rate.Degraded {
		t.Fatal("fallback rate must be flagged as degraded")
	}
	if rate.Rate != fallbackIDRPerJPY {
		t.Fatalf("fallback rate = %v, want %v", rate.Rate, fallbackIDRPerJPY)
	}
}

func TestRatesAPIProvider(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"rates": {"IDR": 103.2, "USD": 0.0067}}`))
	}))
	defer server.Close()

	p := NewRatesAPIProvider("test", server.URL, httpclient.NewClient(otel.Tracer("test")))
	rate, err := p.FetchRate(context.Background())
	if err != nil {
		t.Fatalf("FetchRate: %v", err)
	}
	if rate != 103.2 {
		t.Fatalf("rate = %v, want 103.2", rate)
	}
}

func TestRatesAPIProviderRejectsUnusableResponses(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		payload string
	}{
		{"missing IDR", http.StatusOK, `{"rates": {"USD": 0.0067}}`},
		{"zero rate", http.StatusOK, `{"rates": {"IDR": 0}}`},
		{"upstream error", http.StatusBadGateway, `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.payload))
			}))
			defer server.Close()

			p := NewRatesAPIProvider("test", server.URL, httpclient.NewClient(otel.Tracer("test")))
			if _, err := p.FetchRate(context.Background()); err == nil {
				t.Fatal("unusable response accepted")
			}
		})
	}
}
