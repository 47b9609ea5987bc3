// internal/service/affiliate/interfaces/local_attribution.go
package interfaces

import (
	"context"

	"warung/internal/service/affiliate/application"
	orderport "warung/internal/service/order/port"
)

// LocalAttributionAdapter 把推广应用服务适配成订单侧的出站端口。
// 店面服务把两个子系统部署在同一个进程里，归因走进程内调用，
// 不需要额外一跳 HTTP。
type LocalAttributionAdapter struct {
	app *application.AffiliateApplicationService
}

func NewLocalAttributionAdapter(app *application.AffiliateApplicationService) *LocalAttributionAdapter {
	return &LocalAttributionAdapter{app: app}
}

// AttributeOrder 实现 orderport.AffiliateAttribution
func (a *LocalAttributionAdapter) AttributeOrder(ctx context.Context, attribution orderport.OrderAttribution) (string, string, error) {
	result, err := a.app.AttributeOrder(ctx, &application.OrderAttributionCommand{
		OrderID:       attribution.OrderID,
		OrderTotal:    attribution.OrderTotal,
		ItemCount:     attribution.ItemCount,
		UserID:        attribution.UserID,
		ReferralCode:  attribution.ReferralCode,
		VisitorToken:  attribution.VisitorToken,
		IsNewCustomer: attribution.IsNewCustomer,
	})
	if err != nil {
		return "", "", err
	}
	return result.AffiliateID, result.VisitorID, nil
}
