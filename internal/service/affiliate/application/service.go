// internal/service/affiliate/application/service.go
package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"warung/internal/pkg/logger"
	"warung/internal/service/affiliate/domain"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// AffiliateApplicationService 编排推广漏斗的业务流程：
// 点击 → 注册 → 订单归因 → 佣金审批 → 提现。
// 计数器永远是账本（referral/commission/payout）的派生值，
// 任何账本写入成功后计数器写回失败都只记日志，账本为准。
type AffiliateApplicationService struct {
	affiliateRepo  domain.AffiliateRepository
	referralRepo   domain.ReferralRepository
	commissionRepo domain.CommissionRepository
	payoutRepo     domain.PayoutRepository
	settingsRepo   domain.SettingsRepository

	clickGate  domain.ClickGate
	ruleEngine domain.RuleEngine
	locker     domain.Locker
	producer   domain.EventProducer
	tracer     trace.Tracer
	cfg        Config
}

func NewAffiliateApplicationService(
	affiliateRepo domain.AffiliateRepository,
	referralRepo domain.ReferralRepository,
	commissionRepo domain.CommissionRepository,
	payoutRepo domain.PayoutRepository,
	settingsRepo domain.SettingsRepository,
	clickGate domain.ClickGate,
	ruleEngine domain.RuleEngine,
	locker domain.Locker,
	producer domain.EventProducer,
	tracer trace.Tracer,
	cfg Config,
) *AffiliateApplicationService {
	if cfg.CounterMaxRetries <= 0 {
		cfg.CounterMaxRetries = 3
	}
	return &AffiliateApplicationService{
		affiliateRepo:  affiliateRepo,
		referralRepo:   referralRepo,
		commissionRepo: commissionRepo,
		payoutRepo:     payoutRepo,
		settingsRepo:   settingsRepo,
		clickGate:      clickGate,
		ruleEngine:     ruleEngine,
		locker:         locker,
		producer:       producer,
		tracer:         tracer,
		cfg:            cfg,
	}
}

// RegisterAffiliate 把一个普通用户注册为推广用户并分配推广码。
// 重复注册是幂等的，直接返回已有记录。
func (s *AffiliateApplicationService) RegisterAffiliate(ctx context.Context, req *RegisterAffiliateRequest) (*domain.AffiliateUser, error) {
	ctx, span := s.tracer.Start(ctx, "app.RegisterAffiliate")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", req.UserID))

	existing, err := s.affiliateRepo.FindByUserID(ctx, req.UserID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrAffiliateNotFound) {
		span.RecordError(err)
		return nil, err
	}

	now := time.Now()
	affiliate := &domain.AffiliateUser{
		ID:                uuid.New().String(),
		UserID:            req.UserID,
		ReferralCode:      generateReferralCode(),
		BankName:          req.BankName,
		BankAccountName:   req.BankAccountName,
		BankAccountNumber: req.BankAccountNumber,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.affiliateRepo.Save(ctx, affiliate); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to save new affiliate")
		return nil, err
	}
	logger.Ctx(ctx).Info().Str("affiliate_id", affiliate.ID).Str("code", affiliate.ReferralCode).
		Msg("✅ new affiliate registered")
	return affiliate, nil
}

// UpdateBankDetails 更新推广用户的收款资料。
// 在途提现持有申请时刻的快照，不受这里影响。
// 仓储层只写收款资料三列：资料编辑和记账写入互不覆盖。
func (s *AffiliateApplicationService) UpdateBankDetails(ctx context.Context, affiliateID, bankName, accountName, accountNumber string) error {
	if _, err := s.affiliateRepo.FindByID(ctx, affiliateID); err != nil {
		return err
	}
	return s.affiliateRepo.UpdateBankDetails(ctx, affiliateID, bankName, accountName, accountNumber)
}

// TrackClick 记录一次推广链接点击。
// 同一 (推广码, 访客) 组合只计一次：Redis 挡板先短路重复点击，
// 数据库的唯一索引做最终裁决。没带令牌的访客在这里获得签发。
func (s *AffiliateApplicationService) TrackClick(ctx context.Context, code, visitorToken string) (*TrackClickResult, error) {
	ctx, span := s.tracer.Start(ctx, "app.TrackClick")
	defer span.End()
	span.SetAttributes(attribute.String("affiliate.code", code))

	affiliate, err := s.affiliateRepo.FindByReferralCode(ctx, code)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	var visitorID string
	if visitorToken == "" {
		visitorToken, visitorID, err = domain.NewVisitorToken(s.cfg.VisitorTokenSecret)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		span.AddEvent("Issued new visitor token.")
	} else {
		visitorID, err = domain.VerifyVisitorToken(s.cfg.VisitorTokenSecret, visitorToken)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
	}

	// 挡板不可用时退化为只靠数据库去重，点击功能不下线
	allowed, err := s.clickGate.Allow(ctx, code, visitorID)
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("⚠️ click gate unavailable, falling back to database dedup")
	} else if !allowed {
		span.AddEvent("Duplicate click suppressed by gate.")
		return &TrackClickResult{VisitorToken: visitorToken, Counted: false}, nil
	}

	if _, err := s.referralRepo.FindByCodeAndVisitor(ctx, code, visitorID); err == nil {
		return &TrackClickResult{VisitorToken: visitorToken, Counted: false}, nil
	} else if !errors.Is(err, domain.ErrReferralNotFound) {
		span.RecordError(err)
		return nil, err
	}

	referral := domain.NewReferral(uuid.New().String(), code, affiliate.ID, visitorID)
	if err := s.referralRepo.Save(ctx, referral); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to save referral")
		return nil, err
	}

	if err := s.updateCounters(ctx, affiliate.ID, func(a *domain.AffiliateUser) error {
		a.AddClick()
		return nil
	}); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("affiliate_id", affiliate.ID).
			Msg("click recorded but counter update failed")
	}

	s.publish(ctx, &domain.AffiliateEvent{
		Type:         domain.EventClick,
		AffiliateID:  affiliate.ID,
		ReferralCode: code,
		OccurredAt:   time.Now(),
	})
	logger.Ctx(ctx).Info().Str("affiliate_id", affiliate.ID).Str("visitor_id", visitorID).
		Msg("✅ affiliate click recorded")
	return &TrackClickResult{VisitorToken: visitorToken, Counted: true}, nil
}

// RegisterReferral 访客完成注册后把身份回填到最近的点击记录上。
// 没有可回填的记录是正常情况（自然注册），静默返回。
func (s *AffiliateApplicationService) RegisterReferral(ctx context.Context, userID, visitorToken string) error {
	ctx, span := s.tracer.Start(ctx, "app.RegisterReferral")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	visitorID, err := domain.VerifyVisitorToken(s.cfg.VisitorTokenSecret, visitorToken)
	if err != nil {
		span.RecordError(err)
		return err
	}

	referral, err := s.referralRepo.FindLatestByVisitor(ctx, visitorID, domain.ReferralClicked)
	if err != nil {
		if errors.Is(err, domain.ErrReferralNotFound) {
			span.AddEvent("No clicked referral for visitor, organic registration.")
			return nil
		}
		span.RecordError(err)
		return err
	}

	if err := referral.MarkRegistered(userID); err != nil {
		span.RecordError(err)
		return err
	}
	if err := s.referralRepo.Save(ctx, referral); err != nil {
		span.RecordError(err)
		return err
	}

	s.publish(ctx, &domain.AffiliateEvent{
		Type:         domain.EventRegistered,
		AffiliateID:  referral.ReferrerID,
		ReferralCode: referral.ReferralCode,
		OccurredAt:   time.Now(),
	})
	logger.Ctx(ctx).Info().Str("referral_id", referral.ID).Str("user_id", userID).
		Msg("referral advanced to registered")
	return nil
}

// AttributeOrder 把一笔订单归因到推广链路并按当前费率产生佣金。
// 解析优先级：显式推广码 > 下单用户的最近记录 > 访客令牌的最近记录。
// 归因失败不报错，返回空的 AttributionResult，订单流程不受影响。
func (s *AffiliateApplicationService) AttributeOrder(ctx context.Context, cmd *OrderAttributionCommand) (*AttributionResult, error) {
	ctx, span := s.tracer.Start(ctx, "app.AttributeOrder")
	defer span.End()
	span.SetAttributes(
		attribute.String("order.id", cmd.OrderID),
		attribute.Int64("order.total", cmd.OrderTotal),
	)

	var visitorID string
	if cmd.VisitorToken != "" {
		id, err := domain.VerifyVisitorToken(s.cfg.VisitorTokenSecret, cmd.VisitorToken)
		if err != nil {
			// 令牌被篡改不值得让下单失败，当作没带处理
			logger.Ctx(ctx).Warn().Err(err).Str("order_id", cmd.OrderID).
				Msg("⚠️ invalid visitor token on order, ignoring")
		} else {
			visitorID = id
		}
	}

	referral, err := s.resolveReferral(ctx, cmd, visitorID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if referral == nil {
		span.AddEvent("No referral resolved, order is organic.")
		return &AttributionResult{}, nil
	}

	affiliate, err := s.affiliateRepo.FindByID(ctx, referral.ReferrerID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	// 自推自买不产生佣金
	if cmd.UserID != "" && affiliate.UserID == cmd.UserID {
		span.AddEvent("Self-referral detected, skipping attribution.")
		logger.Ctx(ctx).Info().Str("order_id", cmd.OrderID).Str("affiliate_id", affiliate.ID).
			Msg("self-referral order, no commission")
		return &AttributionResult{}, nil
	}

	settings, err := s.GetSettings(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	eligible, err := s.ruleEngine.Evaluate(settings.CommissionRule, domain.Fact{
		OrderTotal:    cmd.OrderTotal,
		ItemCount:     cmd.ItemCount,
		IsNewCustomer: cmd.IsNewCustomer,
	})
	if err != nil {
		// 规则坏掉时保守放行，宁可多付佣金也不能静默吞掉归因
		logger.Ctx(ctx).Error().Err(err).Msg("🛑 commission rule evaluation failed, defaulting to eligible")
		eligible = true
	}

	amount := int64(0)
	if eligible {
		amount = domain.ComputeCommission(cmd.OrderTotal, settings.DefaultCommissionRate)
	}

	if err := referral.MarkOrdered(cmd.OrderID, cmd.OrderTotal, amount); err != nil {
		// 这条记录已经归因过订单，每条推荐记录只归因一次
		span.AddEvent("Referral already attributed to an order.")
		logger.Ctx(ctx).Info().Str("referral_id", referral.ID).Str("order_id", cmd.OrderID).
			Msg("referral already consumed, skipping attribution")
		return &AttributionResult{}, nil
	}
	if err := s.referralRepo.Save(ctx, referral); err != nil {
		span.RecordError(err)
		return nil, err
	}

	result := &AttributionResult{
		AffiliateID: affiliate.ID,
		VisitorID:   referral.VisitorID,
	}
	if !eligible || amount <= 0 {
		span.AddEvent("Order attributed without commission.")
		return result, nil
	}

	// OrderID 上的唯一索引保证同一订单不会产生两笔佣金
	commission := domain.NewCommission(uuid.New().String(), affiliate.ID, referral.ID, cmd.OrderID, cmd.OrderTotal, settings.DefaultCommissionRate)
	if err := s.commissionRepo.Save(ctx, commission); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to save commission")
		return nil, err
	}

	if err := s.updateCounters(ctx, affiliate.ID, func(a *domain.AffiliateUser) error {
		a.AddCommission(commission.Amount)
		return nil
	}); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("commission_id", commission.ID).
			Msg("commission recorded but counter update failed")
	}

	s.publish(ctx, &domain.AffiliateEvent{
		Type:        domain.EventCommission,
		AffiliateID: affiliate.ID,
		OrderID:     cmd.OrderID,
		Amount:      commission.Amount,
		Status:      string(commission.Status),
		OccurredAt:  time.Now(),
	})
	logger.Ctx(ctx).Info().Str("order_id", cmd.OrderID).Str("affiliate_id", affiliate.ID).
		Int64("amount", commission.Amount).Msg("✅ commission created for attributed order")

	result.CommissionID = commission.ID
	result.Amount = commission.Amount
	return result, nil
}

// resolveReferral 按优先级解析这笔订单落在哪条推荐记录上
func (s *AffiliateApplicationService) resolveReferral(ctx context.Context, cmd *OrderAttributionCommand, visitorID string) (*domain.Referral, error) {
	// 1. 显式推广码：结账时直接填码的情况，没点过链接也认
	if cmd.ReferralCode != "" {
		affiliate, err := s.affiliateRepo.FindByReferralCode(ctx, cmd.ReferralCode)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidReferralCode) {
				logger.Ctx(ctx).Warn().Str("code", cmd.ReferralCode).Str("order_id", cmd.OrderID).
					Msg("unknown referral code on order, falling back to visitor history")
			} else {
				return nil, err
			}
		} else {
			if visitorID != "" {
				if referral, err := s.referralRepo.FindByCodeAndVisitor(ctx, cmd.ReferralCode, visitorID); err == nil {
					return referral, nil
				} else if !errors.Is(err, domain.ErrReferralNotFound) {
					return nil, err
				}
			}
			// 没有既有记录就现场补一条 clicked，随后由调用方推进到 ordered
			seed := visitorID
			if seed == "" {
				seed = "checkout-" + uuid.New().String()
			}
			referral := domain.NewReferral(uuid.New().String(), cmd.ReferralCode, affiliate.ID, seed)
			if cmd.UserID != "" {
				referral.ReferredUserID = cmd.UserID
			}
			if err := s.referralRepo.Save(ctx, referral); err != nil {
				return nil, err
			}
			return referral, nil
		}
	}

	// 2. 注册用户：按用户身份找最近一条还没归因过订单的记录
	if cmd.UserID != "" {
		referral, err := s.referralRepo.FindLatestByUser(ctx, cmd.UserID, domain.ReferralRegistered, domain.ReferralClicked)
		if err == nil {
			return referral, nil
		}
		if !errors.Is(err, domain.ErrReferralNotFound) {
			return nil, err
		}
	}

	// 3. 游客：按访客令牌找
	if visitorID != "" {
		referral, err := s.referralRepo.FindLatestByVisitor(ctx, visitorID, domain.ReferralClicked, domain.ReferralRegistered)
		if err == nil {
			return referral, nil
		}
		if !errors.Is(err, domain.ErrReferralNotFound) {
			return nil, err
		}
	}
	return nil, nil
}

// GetAffiliate 查询单个推广用户
func (s *AffiliateApplicationService) GetAffiliate(ctx context.Context, affiliateID string) (*domain.AffiliateUser, error) {
	return s.affiliateRepo.FindByID(ctx, affiliateID)
}

// GetAffiliateByUser 按用户身份查询推广档案
func (s *AffiliateApplicationService) GetAffiliateByUser(ctx context.Context, userID string) (*domain.AffiliateUser, error) {
	return s.affiliateRepo.FindByUserID(ctx, userID)
}

// ListAffiliates 管理端列出所有推广用户
func (s *AffiliateApplicationService) ListAffiliates(ctx context.Context) ([]*domain.AffiliateUser, error) {
	return s.affiliateRepo.List(ctx)
}

// GetDashboard 聚合推广用户仪表盘数据
func (s *AffiliateApplicationService) GetDashboard(ctx context.Context, affiliateID string) (*Dashboard, error) {
	ctx, span := s.tracer.Start(ctx, "app.GetDashboard")
	defer span.End()
	span.SetAttributes(attribute.String("affiliate.id", affiliateID))

	affiliate, err := s.affiliateRepo.FindByID(ctx, affiliateID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	referrals, err := s.referralRepo.ListByReferrer(ctx, affiliateID)
	if err != nil {
		return nil, err
	}
	commissions, err := s.commissionRepo.ListByAffiliate(ctx, affiliateID)
	if err != nil {
		return nil, err
	}
	payouts, err := s.payoutRepo.ListByAffiliate(ctx, affiliateID)
	if err != nil {
		return nil, err
	}
	return &Dashboard{
		Affiliate:   affiliate,
		Referrals:   referrals,
		Commissions: commissions,
		Payouts:     payouts,
	}, nil
}

// ListFollowers 返回推广用户的"粉丝"派生视图：
// 漏斗走到 registered 及之后的推荐记录，按被推荐用户去重，
// 取每个用户最早的一条作为 FirstSeenAt。
func (s *AffiliateApplicationService) ListFollowers(ctx context.Context, affiliateID string) ([]*Follower, error) {
	referrals, err := s.referralRepo.ListByReferrer(ctx, affiliateID)
	if err != nil {
		return nil, err
	}

	byUser := make(map[string]*Follower)
	order := make([]string, 0)
	for _, r := range referrals {
		if !r.CountsAsFollower() {
			continue
		}
		existing, ok := byUser[r.ReferredUserID]
		if !ok {
			byUser[r.ReferredUserID] = &Follower{
				UserID:      r.ReferredUserID,
				Status:      r.Status,
				FirstSeenAt: r.CreatedAt,
			}
			order = append(order, r.ReferredUserID)
			continue
		}
		if r.CreatedAt.Before(existing.FirstSeenAt) {
			existing.FirstSeenAt = r.CreatedAt
		}
	}

	followers := make([]*Follower, 0, len(order))
	for _, userID := range order {
		followers = append(followers, byUser[userID])
	}
	return followers, nil
}

// updateCounters 对推广用户计数器执行一次带重试的乐观写回
func (s *AffiliateApplicationService) updateCounters(ctx context.Context, affiliateID string, mutate func(*domain.AffiliateUser) error) error {
	var lastErr error
	for attempt := 0; attempt < s.cfg.CounterMaxRetries; attempt++ {
		affiliate, err := s.affiliateRepo.FindByID(ctx, affiliateID)
		if err != nil {
			return err
		}
		if err := mutate(affiliate); err != nil {
			return err
		}
		err = s.affiliateRepo.UpdateCounters(ctx, affiliate)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrTxConflict) {
			return err
		}
		lastErr = err
		logger.Ctx(ctx).Debug().Int("attempt", attempt+1).Str("affiliate_id", affiliateID).
			Msg("counter version conflict, retrying")
	}
	return pkgerrors.Wrapf(lastErr, "counter update for affiliate %s did not converge after %d attempts", affiliateID, s.cfg.CounterMaxRetries)
}

func (s *AffiliateApplicationService) publish(ctx context.Context, event *domain.AffiliateEvent) {
	if s.producer == nil {
		return
	}
	if err := s.producer.Publish(ctx, event); err != nil {
		// 事件丢失只影响实时推送，账本不受影响
		logger.Ctx(ctx).Warn().Err(err).Str("type", event.Type).Msg("failed to publish affiliate event")
	}
}

func generateReferralCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
}
