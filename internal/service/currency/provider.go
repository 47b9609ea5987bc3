// internal/service/currency/provider.go
package currency

import (
	"context"
	"fmt"

	"warung/internal/pkg/httpclient"
)

// Provider 从一个外部汇率 API 获取 JPY→IDR 汇率
type Provider interface {
	Name() string
	FetchRate(ctx context.Context) (float64, error)
}

// RatesAPIProvider 适配 exchangerate.host 风格的 API：
// GET <endpoint> → {"rates": {"IDR": 103.2}}
type RatesAPIProvider struct {
	name     string
	endpoint string
	client   *httpclient.Client
}

func NewRatesAPIProvider(name, endpoint string, client *httpclient.Client) *RatesAPIProvider {
	return &RatesAPIProvider{name: name, endpoint: endpoint, client: client}
}

func (p *RatesAPIProvider) Name() string { return p.name }

func (p *RatesAPIProvider) FetchRate(ctx context.Context) (float64, error) {
	var body struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := p.client.GetJSON(ctx, p.endpoint, &body); err != nil {
		return 0, err
	}
	rate, ok := body.Rates["IDR"]
	if !ok || rate <= 0 {
		return 0, fmt.Errorf("provider %s returned no usable IDR rate", p.name)
	}
	return rate, nil
}
