// internal/service/affiliate/infrastructure/mapper.go
package infrastructure

import (
	"strings"

	"warung/internal/service/affiliate/domain"
)

// ToDomainAffiliate 将数据库模型转换为领域模型
func ToDomainAffiliate(model *AffiliateModel) *domain.AffiliateUser {
	if model == nil {
		return nil
	}
	return &domain.AffiliateUser{
		ID:                model.ID,
		UserID:            model.UserID,
		ReferralCode:      model.ReferralCode,
		TotalClicks:       model.TotalClicks,
		TotalReferrals:    model.TotalReferrals,
		TotalCommission:   model.TotalCommission,
		PendingCommission: model.PendingCommission,
		PaidCommission:    model.PaidCommission,
		BankName:          model.BankName,
		BankAccountName:   model.BankAccountName,
		BankAccountNumber: model.BankAccountNumber,
		CreatedAt:         model.CreatedAt,
		UpdatedAt:         model.UpdatedAt,
		Version:           model.Version,
	}
}

// FromDomainAffiliate 将领域模型转换为数据库模型
func FromDomainAffiliate(dmn *domain.AffiliateUser) *AffiliateModel {
	if dmn == nil {
		return nil
	}
	return &AffiliateModel{
		ID:                dmn.ID,
		UserID:            dmn.UserID,
		ReferralCode:      dmn.ReferralCode,
		TotalClicks:       dmn.TotalClicks,
		TotalReferrals:    dmn.TotalReferrals,
		TotalCommission:   dmn.TotalCommission,
		PendingCommission: dmn.PendingCommission,
		PaidCommission:    dmn.PaidCommission,
		BankName:          dmn.BankName,
		BankAccountName:   dmn.BankAccountName,
		BankAccountNumber: dmn.BankAccountNumber,
		CreatedAt:         dmn.CreatedAt,
		UpdatedAt:         dmn.UpdatedAt,
		Version:           dmn.Version,
	}
}

// ToDomainReferral 将数据库模型转换为领域模型
func ToDomainReferral(model *ReferralModel) *domain.Referral {
	if model == nil {
		return nil
	}
	return &domain.Referral{
		ID:               model.ID,
		ReferralCode:     model.ReferralCode,
		ReferrerID:       model.ReferrerID,
		ReferredUserID:   model.ReferredUserID,
		VisitorID:        model.VisitorID,
		Status:           domain.ReferralStatus(model.Status),
		OrderID:          model.OrderID,
		OrderTotal:       model.OrderTotal,
		CommissionAmount: model.CommissionAmount,
		CreatedAt:        model.CreatedAt,
		UpdatedAt:        model.UpdatedAt,
	}
}

// FromDomainReferral 将领域模型转换为数据库模型
func FromDomainReferral(dmn *domain.Referral) *ReferralModel {
	if dmn == nil {
		return nil
	}
	return &ReferralModel{
		ID:               dmn.ID,
		ReferralCode:     dmn.ReferralCode,
		VisitorID:        dmn.VisitorID,
		ReferrerID:       dmn.ReferrerID,
		ReferredUserID:   dmn.ReferredUserID,
		Status:           string(dmn.Status),
		OrderID:          dmn.OrderID,
		OrderTotal:       dmn.OrderTotal,
		CommissionAmount: dmn.CommissionAmount,
		CreatedAt:        dmn.CreatedAt,
		UpdatedAt:        dmn.UpdatedAt,
	}
}

// ToDomainCommission 将数据库模型转换为领域模型
func ToDomainCommission(model *CommissionModel) *domain.Commission {
	if model == nil {
		return nil
	}
	return &domain.Commission{
		ID:          model.ID,
		AffiliateID: model.AffiliateID,
		ReferralID:  model.ReferralID,
		OrderID:     model.OrderID,
		OrderTotal:  model.OrderTotal,
		Rate:        model.Rate,
		Amount:      model.Amount,
		Status:      domain.CommissionStatus(model.Status),
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

// FromDomainCommission 将领域模型转换为数据库模型
func FromDomainCommission(dmn *domain.Commission) *CommissionModel {
	if dmn == nil {
		return nil
	}
	return &CommissionModel{
		ID:          dmn.ID,
		AffiliateID: dmn.AffiliateID,
		ReferralID:  dmn.ReferralID,
		OrderID:     dmn.OrderID,
		OrderTotal:  dmn.OrderTotal,
		Rate:        dmn.Rate,
		Amount:      dmn.Amount,
		Status:      string(dmn.Status),
		CreatedAt:   dmn.CreatedAt,
		UpdatedAt:   dmn.UpdatedAt,
	}
}

// ToDomainPayout 将数据库模型转换为领域模型
func ToDomainPayout(model *PayoutModel) *domain.Payout {
	if model == nil {
		return nil
	}
	return &domain.Payout{
		ID:                model.ID,
		AffiliateID:       model.AffiliateID,
		Amount:            model.Amount,
		Method:            model.Method,
		Status:            domain.PayoutStatus(model.Status),
		BankName:          model.BankName,
		BankAccountName:   model.BankAccountName,
		BankAccountNumber: model.BankAccountNumber,
		CreatedAt:         model.CreatedAt,
		UpdatedAt:         model.UpdatedAt,
		ProcessedAt:       model.ProcessedAt,
	}
}

// FromDomainPayout 将领域模型转换为数据库模型
func FromDomainPayout(dmn *domain.Payout) *PayoutModel {
	if dmn == nil {
		return nil
	}
	return &PayoutModel{
		ID:                dmn.ID,
		AffiliateID:       dmn.AffiliateID,
		Amount:            dmn.Amount,
		Method:            dmn.Method,
		Status:            string(dmn.Status),
		BankName:          dmn.BankName,
		BankAccountName:   dmn.BankAccountName,
		BankAccountNumber: dmn.BankAccountNumber,
		CreatedAt:         dmn.CreatedAt,
		UpdatedAt:         dmn.UpdatedAt,
		ProcessedAt:       dmn.ProcessedAt,
	}
}

// ToDomainSettings 将数据库模型转换为领域模型
func ToDomainSettings(model *SettingsModel) *domain.Settings {
	if model == nil {
		return nil
	}
	var methods []string
	if model.PayoutMethods != "" {
		methods = strings.Split(model.PayoutMethods, ",")
	}
	return &domain.Settings{
		DefaultCommissionRate: model.DefaultCommissionRate,
		MinPayoutAmount:       model.MinPayoutAmount,
		PayoutMethods:         methods,
		CommissionRule:        model.CommissionRule,
		UpdatedAt:             model.UpdatedAt,
	}
}

// FromDomainSettings 将领域模型转换为数据库模型
func FromDomainSettings(dmn *domain.Settings) *SettingsModel {
	if dmn == nil {
		return nil
	}
	return &SettingsModel{
		ID:                    settingsSingletonID,
		DefaultCommissionRate: dmn.DefaultCommissionRate,
		MinPayoutAmount:       dmn.MinPayoutAmount,
		PayoutMethods:         strings.Join(dmn.PayoutMethods, ","),
		CommissionRule:        dmn.CommissionRule,
		UpdatedAt:             dmn.UpdatedAt,
	}
}
