// internal/service/affiliate/infrastructure/gorm_repository.go
package infrastructure

import (
	"context"
	"errors"
	"time"

	"warung/internal/service/affiliate/domain"

	"gorm.io/gorm"
)

const settingsSingletonID = 1

// GormAffiliateRepository 是 domain.AffiliateRepository 的 GORM 实现
type GormAffiliateRepository struct {
	db *gorm.DB
}

func NewGormAffiliateRepository(db *gorm.DB) *GormAffiliateRepository {
	return &GormAffiliateRepository{db: db}
}

func (r *GormAffiliateRepository) Save(ctx context.Context, affiliate *domain.AffiliateUser) error {
	return r.db.WithContext(ctx).Save(FromDomainAffiliate(affiliate)).Error
}

func (r *GormAffiliateRepository) FindByID(ctx context.Context, id string) (*domain.AffiliateUser, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *GormAffiliateRepository) FindByUserID(ctx context.Context, userID string) (*domain.AffiliateUser, error) {
	return r.findOne(ctx, "user_id = ?", userID)
}

func (r *GormAffiliateRepository) FindByReferralCode(ctx context.Context, code string) (*domain.AffiliateUser, error) {
	affiliate, err := r.findOne(ctx, "referral_code = ?", code)
	if errors.Is(err, domain.ErrAffiliateNotFound) {
		return nil, domain.ErrInvalidReferralCode
	}
	return affiliate, err
}

func (r *GormAffiliateRepository) List(ctx context.Context) ([]*domain.AffiliateUser, error) {
	var models []AffiliateModel
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	result := make([]*domain.AffiliateUser, 0, len(models))
	for i := range models {
		result = append(result, ToDomainAffiliate(&models[i]))
	}
	return result, nil
}

// UpdateCounters 以版本号为守卫写回计数器。
// 版本不匹配说明另一个写者先提交了，返回 ErrTxConflict 让调用方重读重试。
func (r *GormAffiliateRepository) UpdateCounters(ctx context.Context, affiliate *domain.AffiliateUser) error {
	res := r.db.WithContext(ctx).Model(&AffiliateModel{}).
		Where("id = ? AND version = ?", affiliate.ID, affiliate.Version).
		Updates(map[string]interface{}{
			"total_clicks":       affiliate.TotalClicks,
			"total_referrals":    affiliate.TotalReferrals,
			"total_commission":   affiliate.TotalCommission,
			"pending_commission": affiliate.PendingCommission,
			"paid_commission":    affiliate.PaidCommission,
			"updated_at":         affiliate.UpdatedAt,
			"version":            affiliate.Version + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrTxConflict
	}
	affiliate.Version++
	return nil
}

// UpdateBankDetails 只更新收款资料三列和 updated_at。
// 计数器和 version 列不在更新集里，不会覆盖并发的记账写入。
func (r *GormAffiliateRepository) UpdateBankDetails(ctx context.Context, affiliateID, bankName, accountName, accountNumber string) error {
	return r.db.WithContext(ctx).Model(&AffiliateModel{}).
		Where("id = ?", affiliateID).
		Updates(map[string]interface{}{
			"bank_name":           bankName,
			"bank_account_name":   accountName,
			"bank_account_number": accountNumber,
			"updated_at":          time.Now(),
		}).Error
}

func (r *GormAffiliateRepository) findOne(ctx context.Context, query string, arg interface{}) (*domain.AffiliateUser, error) {
	var model AffiliateModel
	err := r.db.WithContext(ctx).Where(query, arg).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAffiliateNotFound
		}
		return nil, err
	}
	return ToDomainAffiliate(&model), nil
}

// GormReferralRepository 是 domain.ReferralRepository 的 GORM 实现
type GormReferralRepository struct {
	db *gorm.DB
}

func NewGormReferralRepository(db *gorm.DB) *GormReferralRepository {
	return &GormReferralRepository{db: db}
}

func (r *GormReferralRepository) Save(ctx context.Context, referral *domain.Referral) error {
	return r.db.WithContext(ctx).Save(FromDomainReferral(referral)).Error
}

func (r *GormReferralRepository) FindByID(ctx context.Context, id string) (*domain.Referral, error) {
	var model ReferralModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrReferralNotFound
		}
		return nil, err
	}
	return ToDomainReferral(&model), nil
}

func (r *GormReferralRepository) FindByCodeAndVisitor(ctx context.Context, code, visitorID string) (*domain.Referral, error) {
	var model ReferralModel
	err := r.db.WithContext(ctx).
		Where("referral_code = ? AND visitor_id = ?", code, visitorID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrReferralNotFound
		}
		return nil, err
	}
	return ToDomainReferral(&model), nil
}

func (r *GormReferralRepository) FindLatestByVisitor(ctx context.Context, visitorID string, statuses ...domain.ReferralStatus) (*domain.Referral, error) {
	return r.findLatest(ctx, "visitor_id = ?", visitorID, statuses)
}

func (r *GormReferralRepository) FindLatestByUser(ctx context.Context, userID string, statuses ...domain.ReferralStatus) (*domain.Referral, error) {
	return r.findLatest(ctx, "referred_user_id = ?", userID, statuses)
}

func (r *GormReferralRepository) ListByReferrer(ctx context.Context, referrerID string) ([]*domain.Referral, error) {
	var models []ReferralModel
	err := r.db.WithContext(ctx).
		Where("referrer_id = ?", referrerID).
		Order("created_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	result := make([]*domain.Referral, 0, len(models))
	for i := range models {
		result = append(result, ToDomainReferral(&models[i]))
	}
	return result, nil
}

func (r *GormReferralRepository) findLatest(ctx context.Context, query string, arg interface{}, statuses []domain.ReferralStatus) (*domain.Referral, error) {
	statusStrings := make([]string, 0, len(statuses))
	for _, s := range statuses {
		statusStrings = append(statusStrings, string(s))
	}
	var model ReferralModel
	q := r.db.WithContext(ctx).Where(query, arg)
	if len(statusStrings) > 0 {
		q = q.Where("status IN ?", statusStrings)
	}
	err := q.Order("created_at DESC").First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrReferralNotFound
		}
		return nil, err
	}
	return ToDomainReferral(&model), nil
}

// GormCommissionRepository 是 domain.CommissionRepository 的 GORM 实现
type GormCommissionRepository struct {
	db *gorm.DB
}

func NewGormCommissionRepository(db *gorm.DB) *GormCommissionRepository {
	return &GormCommissionRepository{db: db}
}

func (r *GormCommissionRepository) Save(ctx context.Context, commission *domain.Commission) error {
	return r.db.WithContext(ctx).Save(FromDomainCommission(commission)).Error
}

func (r *GormCommissionRepository) FindByID(ctx context.Context, id string) (*domain.Commission, error) {
	var model CommissionModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCommissionNotFound
		}
		return nil, err
	}
	return ToDomainCommission(&model), nil
}

func (r *GormCommissionRepository) ListByAffiliate(ctx context.Context, affiliateID string) ([]*domain.Commission, error) {
	return r.list(ctx, r.db.WithContext(ctx).Where("affiliate_id = ?", affiliateID))
}

func (r *GormCommissionRepository) ListByAffiliateAndStatus(ctx context.Context, affiliateID string, status domain.CommissionStatus) ([]*domain.Commission, error) {
	return r.list(ctx, r.db.WithContext(ctx).
		Where("affiliate_id = ? AND status = ?", affiliateID, string(status)))
}

func (r *GormCommissionRepository) list(ctx context.Context, q *gorm.DB) ([]*domain.Commission, error) {
	var models []CommissionModel
	if err := q.Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	result := make([]*domain.Commission, 0, len(models))
	for i := range models {
		result = append(result, ToDomainCommission(&models[i]))
	}
	return result, nil
}

// GormPayoutRepository 是 domain.PayoutRepository 的 GORM 实现
type GormPayoutRepository struct {
	db *gorm.DB
}

func NewGormPayoutRepository(db *gorm.DB) *GormPayoutRepository {
	return &GormPayoutRepository{db: db}
}

func (r *GormPayoutRepository) Save(ctx context.Context, payout *domain.Payout) error {
	return r.db.WithContext(ctx).Save(FromDomainPayout(payout)).Error
}

func (r *GormPayoutRepository) FindByID(ctx context.Context, id string) (*domain.Payout, error) {
	var model PayoutModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrPayoutNotFound
		}
		return nil, err
	}
	return ToDomainPayout(&model), nil
}

func (r *GormPayoutRepository) ListByAffiliate(ctx context.Context, affiliateID string) ([]*domain.Payout, error) {
	return r.list(ctx, r.db.WithContext(ctx).Where("affiliate_id = ?", affiliateID))
}

func (r *GormPayoutRepository) ListPending(ctx context.Context) ([]*domain.Payout, error) {
	return r.list(ctx, r.db.WithContext(ctx).Where("status = ?", string(domain.PayoutPending)))
}

func (r *GormPayoutRepository) list(ctx context.Context, q *gorm.DB) ([]*domain.Payout, error) {
	var models []PayoutModel
	if err := q.Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	result := make([]*domain.Payout, 0, len(models))
	for i := range models {
		result = append(result, ToDomainPayout(&models[i]))
	}
	return result, nil
}

// GormSettingsRepository 是 domain.SettingsRepository 的 GORM 实现，单行单例
type GormSettingsRepository struct {
	db *gorm.DB
}

func NewGormSettingsRepository(db *gorm.DB) *GormSettingsRepository {
	return &GormSettingsRepository{db: db}
}

// Get 返回全局设置。还没有初始化过时返回 (nil, nil)，由应用层写入默认值。
func (r *GormSettingsRepository) Get(ctx context.Context) (*domain.Settings, error) {
	var model SettingsModel
	err := r.db.WithContext(ctx).Where("id = ?", settingsSingletonID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return ToDomainSettings(&model), nil
}

func (r *GormSettingsRepository) Save(ctx context.Context, settings *domain.Settings) error {
	return r.db.WithContext(ctx).Save(FromDomainSettings(settings)).Error
}

// AutoMigrate 建表。只在服务启动时调用一次。
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&AffiliateModel{},
		&ReferralModel{},
		&CommissionModel{},
		&PayoutModel{},
		&SettingsModel{},
	)
}
