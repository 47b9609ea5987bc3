// internal/service/affiliate/application/admin.go
package application

import (
	"context"
	"time"

	"warung/internal/pkg/logger"
	"warung/internal/service/affiliate/domain"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// 管理端对佣金和提现的写操作都在分布式锁的互斥区内执行，
// 防止两个管理员并发处理同一条记录时重复记账。

// ApproveCommission 审批通过一笔佣金并同步推进关联的推荐记录。
// 审批本身不挪动任何计数器：PendingCommission 在佣金创建时已计入。
func (s *AffiliateApplicationService) ApproveCommission(ctx context.Context, commissionID string) error {
	ctx, span := s.tracer.Start(ctx, "app.ApproveCommission")
	defer span.End()
	span.SetAttributes(attribute.String("commission.id", commissionID))

	return s.locker.WithLock(ctx, "affiliate-commission-"+commissionID, func() error {
		commission, err := s.commissionRepo.FindByID(ctx, commissionID)
		if err != nil {
			span.RecordError(err)
			return err
		}
		if err := commission.Approve(); err != nil {
			span.RecordError(err)
			return err
		}
		if err := s.commissionRepo.Save(ctx, commission); err != nil {
			span.RecordError(err)
			return err
		}

		s.advanceReferral(ctx, commission.ReferralID, (*domain.Referral).Approve)
		s.publish(ctx, &domain.AffiliateEvent{
			Type:        domain.EventCommission,
			AffiliateID: commission.AffiliateID,
			OrderID:     commission.OrderID,
			Amount:      commission.Amount,
			Status:      string(commission.Status),
			OccurredAt:  time.Now(),
		})
		logger.Ctx(ctx).Info().Str("commission_id", commissionID).Msg("✅ commission approved")
		return nil
	})
}

// RejectCommission 拒绝一笔佣金，对应金额从可提现余额中移除
func (s *AffiliateApplicationService) RejectCommission(ctx context.Context, commissionID string) error {
	ctx, span := s.tracer.Start(ctx, "app.RejectCommission")
	defer span.End()
	span.SetAttributes(attribute.String("commission.id", commissionID))

	return s.locker.WithLock(ctx, "affiliate-commission-"+commissionID, func() error {
		commission, err := s.commissionRepo.FindByID(ctx, commissionID)
		if err != nil {
			span.RecordError(err)
			return err
		}
		if err := commission.Reject(); err != nil {
			span.RecordError(err)
			return err
		}
		if err := s.commissionRepo.Save(ctx, commission); err != nil {
			span.RecordError(err)
			return err
		}

		if err := s.updateCounters(ctx, commission.AffiliateID, func(a *domain.AffiliateUser) error {
			a.RemoveRejectedCommission(commission.Amount)
			return nil
		}); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("commission_id", commissionID).
				Msg("commission rejected but counter update failed")
		}

		s.advanceReferral(ctx, commission.ReferralID, (*domain.Referral).Reject)
		s.publish(ctx, &domain.AffiliateEvent{
			Type:        domain.EventCommission,
			AffiliateID: commission.AffiliateID,
			OrderID:     commission.OrderID,
			Amount:      commission.Amount,
			Status:      string(commission.Status),
			OccurredAt:  time.Now(),
		})
		logger.Ctx(ctx).Info().Str("commission_id", commissionID).Msg("commission rejected")
		return nil
	})
}

// ListCommissions 管理端按状态过滤佣金列表，status 为空返回全部
func (s *AffiliateApplicationService) ListCommissions(ctx context.Context, affiliateID string, status domain.CommissionStatus) ([]*domain.Commission, error) {
	if status == "" {
		return s.commissionRepo.ListByAffiliate(ctx, affiliateID)
	}
	return s.commissionRepo.ListByAffiliateAndStatus(ctx, affiliateID, status)
}

// RequestPayout 发起一笔提现申请。申请成功立刻从可提现余额中预留金额，
// 余额不足或低于最低提现额的申请直接拒绝，不产生任何记录。
func (s *AffiliateApplicationService) RequestPayout(ctx context.Context, cmd *RequestPayoutCommand) (*domain.Payout, error) {
	ctx, span := s.tracer.Start(ctx, "app.RequestPayout")
	defer span.End()
	span.SetAttributes(
		attribute.String("affiliate.id", cmd.AffiliateID),
		attribute.Int64("payout.amount", cmd.Amount),
	)

	var payout *domain.Payout
	err := s.locker.WithLock(ctx, "affiliate-payout-"+cmd.AffiliateID, func() error {
		settings, err := s.GetSettings(ctx)
		if err != nil {
			return err
		}
		if cmd.Amount < settings.MinPayoutAmount {
			return domain.ErrBelowMinimumPayout
		}

		affiliate, err := s.affiliateRepo.FindByID(ctx, cmd.AffiliateID)
		if err != nil {
			return err
		}

		// 预留先行：余额扣减成功之后才落提现单，
		// EarmarkPayout 在 mutate 里校验余额，版本冲突时重读重试
		if err := s.updateCounters(ctx, cmd.AffiliateID, func(a *domain.AffiliateUser) error {
			return a.EarmarkPayout(cmd.Amount)
		}); err != nil {
			return err
		}

		payout = domain.NewPayout(uuid.New().String(), cmd.AffiliateID, cmd.Amount, cmd.Method,
			affiliate.BankName, affiliate.BankAccountName, affiliate.BankAccountNumber)
		if err := s.payoutRepo.Save(ctx, payout); err != nil {
			// 提现单写入失败时把预留的金额退回去
			if retErr := s.updateCounters(ctx, cmd.AffiliateID, func(a *domain.AffiliateUser) error {
				a.ReturnPayout(cmd.Amount)
				return nil
			}); retErr != nil {
				logger.Ctx(ctx).Error().Err(retErr).Str("affiliate_id", cmd.AffiliateID).
					Msg("🛑 failed to return earmarked amount after payout save failure")
			}
			return err
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Payout request rejected")
		return nil, err
	}

	s.publish(ctx, &domain.AffiliateEvent{
		Type:        domain.EventPayout,
		AffiliateID: payout.AffiliateID,
		Amount:      payout.Amount,
		Status:      string(payout.Status),
		OccurredAt:  time.Now(),
	})
	logger.Ctx(ctx).Info().Str("payout_id", payout.ID).Int64("amount", payout.Amount).
		Msg("✅ payout requested, amount earmarked")
	return payout, nil
}

// StartPayoutProcessing 管理员开始处理一笔提现，不发生余额变动
func (s *AffiliateApplicationService) StartPayoutProcessing(ctx context.Context, payoutID string) error {
	return s.payoutTransition(ctx, "app.StartPayoutProcessing", payoutID, func(p *domain.Payout) error {
		return p.StartProcessing()
	}, nil)
}

// CompletePayout 打款完成：金额计入已打款，
// 该推广用户所有已审批的佣金和推荐记录随之进入 paid 终态。
func (s *AffiliateApplicationService) CompletePayout(ctx context.Context, payoutID string) error {
	return s.payoutTransition(ctx, "app.CompletePayout", payoutID, func(p *domain.Payout) error {
		return p.Complete()
	}, func(ctx context.Context, payout *domain.Payout) {
		if err := s.updateCounters(ctx, payout.AffiliateID, func(a *domain.AffiliateUser) error {
			a.SettlePayout(payout.Amount)
			return nil
		}); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("payout_id", payout.ID).
				Msg("payout completed but counter update failed")
		}
		s.settleApprovedCommissions(ctx, payout.AffiliateID)
	})
}

// RejectPayout 拒绝提现，预留的金额退回可提现余额
func (s *AffiliateApplicationService) RejectPayout(ctx context.Context, payoutID string) error {
	return s.payoutTransition(ctx, "app.RejectPayout", payoutID, func(p *domain.Payout) error {
		return p.Reject()
	}, func(ctx context.Context, payout *domain.Payout) {
		if err := s.updateCounters(ctx, payout.AffiliateID, func(a *domain.AffiliateUser) error {
			a.ReturnPayout(payout.Amount)
			return nil
		}); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("payout_id", payout.ID).
				Msg("payout rejected but counter update failed")
		}
	})
}

// ListPendingPayouts 管理端列出所有待处理的提现申请
func (s *AffiliateApplicationService) ListPendingPayouts(ctx context.Context) ([]*domain.Payout, error) {
	return s.payoutRepo.ListPending(ctx)
}

// payoutTransition 在锁内执行一次提现状态流转，成功后执行 after 并发布事件
func (s *AffiliateApplicationService) payoutTransition(ctx context.Context, spanName, payoutID string, mutate func(*domain.Payout) error, after func(context.Context, *domain.Payout)) error {
	ctx, span := s.tracer.Start(ctx, spanName)
	defer span.End()
	span.SetAttributes(attribute.String("payout.id", payoutID))

	var payout *domain.Payout
	err := s.locker.WithLock(ctx, "affiliate-payout-mutate-"+payoutID, func() error {
		p, err := s.payoutRepo.FindByID(ctx, payoutID)
		if err != nil {
			return err
		}
		if err := mutate(p); err != nil {
			return err
		}
		if err := s.payoutRepo.Save(ctx, p); err != nil {
			return err
		}
		payout = p
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return err
	}

	if after != nil {
		after(ctx, payout)
	}
	s.publish(ctx, &domain.AffiliateEvent{
		Type:        domain.EventPayout,
		AffiliateID: payout.AffiliateID,
		Amount:      payout.Amount,
		Status:      string(payout.Status),
		OccurredAt:  time.Now(),
	})
	return nil
}

// settleApprovedCommissions 把已审批的佣金和推荐记录推进到 paid 终态
func (s *AffiliateApplicationService) settleApprovedCommissions(ctx context.Context, affiliateID string) {
	commissions, err := s.commissionRepo.ListByAffiliateAndStatus(ctx, affiliateID, domain.CommissionApproved)
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("affiliate_id", affiliateID).
			Msg("failed to list approved commissions for settlement")
		return
	}
	for _, commission := range commissions {
		if err := commission.MarkPaid(); err != nil {
			continue
		}
		if err := s.commissionRepo.Save(ctx, commission); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("commission_id", commission.ID).
				Msg("failed to settle commission")
			continue
		}
		s.advanceReferral(ctx, commission.ReferralID, (*domain.Referral).MarkPaid)
	}
}

// advanceReferral 尽力推进关联的推荐记录，状态不匹配只记日志。
// 旧版数据里存在没有推荐记录的佣金，ReferralID 为空直接跳过。
func (s *AffiliateApplicationService) advanceReferral(ctx context.Context, referralID string, mutate func(*domain.Referral) error) {
	if referralID == "" {
		return
	}
	referral, err := s.referralRepo.FindByID(ctx, referralID)
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("referral_id", referralID).Msg("referral lookup failed")
		return
	}
	if err := mutate(referral); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("referral_id", referralID).
			Str("status", string(referral.Status)).Msg("referral state transition skipped")
		return
	}
	if err := s.referralRepo.Save(ctx, referral); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("referral_id", referralID).Msg("failed to save referral")
	}
}

// GetSettings 返回全局推广设置，首次访问时写入种子默认值
func (s *AffiliateApplicationService) GetSettings(ctx context.Context) (*domain.Settings, error) {
	settings, err := s.settingsRepo.Get(ctx)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		settings = domain.DefaultSettings(s.cfg.DefaultCommissionRate, s.cfg.MinPayoutAmount)
		if err := s.settingsRepo.Save(ctx, settings); err != nil {
			return nil, err
		}
		logger.Ctx(ctx).Info().Int("rate", settings.DefaultCommissionRate).
			Msg("ℹ️ affiliate settings seeded with defaults")
	}
	return settings, nil
}

// UpdateSettings 更新全局推广设置。费率只对之后创建的佣金生效。
// 提交的 CEL 规则先试算一次，编译不过的规则直接拒绝。
func (s *AffiliateApplicationService) UpdateSettings(ctx context.Context, req *UpdateSettingsRequest) (*domain.Settings, error) {
	ctx, span := s.tracer.Start(ctx, "app.UpdateSettings")
	defer span.End()

	if req.CommissionRule != "" {
		if _, err := s.ruleEngine.Evaluate(req.CommissionRule, domain.Fact{OrderTotal: 1, ItemCount: 1}); err != nil {
			span.RecordError(err)
			return nil, err
		}
	}

	settings, err := s.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	settings.DefaultCommissionRate = req.DefaultCommissionRate
	settings.MinPayoutAmount = req.MinPayoutAmount
	if len(req.PayoutMethods) > 0 {
		settings.PayoutMethods = req.PayoutMethods
	}
	settings.CommissionRule = req.CommissionRule
	settings.UpdatedAt = time.Now()

	if err := s.settingsRepo.Save(ctx, settings); err != nil {
		span.RecordError(err)
		return nil, err
	}
	logger.Ctx(ctx).Info().Int("rate", settings.DefaultCommissionRate).
		Int64("min_payout", settings.MinPayoutAmount).Msg("affiliate settings updated")
	return settings, nil
}
