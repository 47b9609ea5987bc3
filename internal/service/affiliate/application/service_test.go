// internal/service/affiliate/application/service_test.go
package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"warung/internal/service/affiliate/domain"

	"go.opentelemetry.io/otel"
)

type fixture struct {
	affiliates  *memAffiliates
	referrals   *memReferrals
	commissions *memCommissions
	payouts     *memPayouts
	settings    *memSettings
	gate        *stubGate
	rules       *stubRuleEngine
	producer    *memAffiliateProducer
	svc         *AffiliateApplicationService
}

func newFixture() *fixture {
	f := &fixture{
		affiliates:  newMemAffiliates(),
		referrals:   newMemReferrals(),
		commissions: newMemCommissions(),
		payouts:     newMemPayouts(),
		settings:    &memSettings{},
		gate:        &stubGate{allow: true},
		rules:       &stubRuleEngine{eligible: true},
		producer:    &memAffiliateProducer{},
	}
	f.svc = NewAffiliateApplicationService(
		f.affiliates, f.referrals, f.commissions, f.payouts, f.settings,
		f.gate, f.rules, noopLocker{}, f.producer, otel.Tracer("test"),
		Config{
			DefaultCommissionRate: 5,
			MinPayoutAmount:       50000,
			VisitorTokenSecret:    "test-secret",
			CounterMaxRetries:     3,
		},
	)
	return f
}

func (f *fixture) seedAffiliate(id, userID, code string) *domain.AffiliateUser {
	a := &domain.AffiliateUser{ID: id, UserID: userID, ReferralCode: code,
		BankName: "BCA", BankAccountName: "Budi", BankAccountNumber: "1234567890"}
	f.affiliates.m[id] = a
	return a
}

func (f *fixture) seedClick(id, code, affiliateID, visitorID string, at time.Time) *domain.Referral {
	r := domain.NewReferral(id, code, affiliateID, visitorID)
	r.CreatedAt = at
	f.referrals.m[id] = r
	return r
}

func TestRegisterAffiliateIdempotent(t *testing.T) {
	f := newFixture()

	first, err := f.svc.RegisterAffiliate(context.Background(), &RegisterAffiliateRequest{UserID: "user-1"})
	if err != nil {
		t.Fatalf("RegisterAffiliate: %v", err)
	}
	if first.ReferralCode == "" {
		t.Fatal("referral code not assigned")
	}

	second, err := f.svc.RegisterAffiliate(context.Background(), &RegisterAffiliateRequest{UserID: "user-1"})
	if err != nil {
		t.Fatalf("repeat RegisterAffiliate: %v", err)
	}
	if second.ID != first.ID || second.ReferralCode != first.ReferralCode {
		t.Fatalf("repeat registration created a new affiliate: %s vs %s", second.ID, first.ID)
	}
}

func TestUpdateBankDetailsLeavesLedgerAlone(t *testing.T) {
	f := newFixture()
	a := f.seedAffiliate("aff-1", "user-1", "CODE123")
	a.PendingCommission = 5000
	a.TotalCommission = 8000
	a.Version = 7

	if err := f.svc.UpdateBankDetails(context.Background(), "aff-1", "Mandiri", "Siti", "9876543210"); err != nil {
		t.Fatalf("UpdateBankDetails: %v", err)
	}

	got := f.affiliates.m["aff-1"]
	if got.BankName != "Mandiri" || got.BankAccountName != "Siti" || got.BankAccountNumber != "9876543210" {
		t.Fatalf("bank details = %+v", got)
	}
	// 资料编辑不能覆盖计数器和版本号
	if got.PendingCommission != 5000 || got.TotalCommission != 8000 || got.Version != 7 {
		t.Fatalf("ledger touched: %+v", got)
	}

	if err := f.svc.UpdateBankDetails(context.Background(), "missing", "BCA", "Budi", "1"); !errors.Is(err, domain.ErrAffiliateNotFound) {
		t.Fatalf("missing affiliate = %v, want ErrAffiliateNotFound", err)
	}
}

func TestTrackClickCountsOnce(t *testing.T) {
	f := newFixture()
	f.seedAffiliate("aff-1", "user-1", "CODE123")

	first, err := f.svc.TrackClick(context.Background(), "CODE123", "vis-1")
	if err != nil {
		t.Fatalf("TrackClick: %v", err)
	}
	if !first.Counted {
		t.Fatal("first click should count")
	}

	// 同一访客第二次点击：数据库里已有 (code, visitor) 记录
	second, err := f.svc.TrackClick(context.Background(), "CODE123", "vis-1")
	if err != nil {
		t.Fatalf("second TrackClick: %v", err)
	}
	if second.Counted {
		t.Fatal("duplicate click must not count")
	}

	if f.affiliates.m["aff-1"].TotalClicks != 1 {
		t.Fatalf("TotalClicks = %d, want 1", f.affiliates.m["aff-1"].TotalClicks)
	}
	if len(f.producer.events) != 1 || f.producer.events[0].Type != domain.EventClick {
		t.Fatalf("events = %+v", f.producer.events)
	}
}

func TestTrackClickGateSuppression(t *testing.T) {
	f := newFixture()
	f.seedAffiliate("aff-1", "user-1", "CODE123")
	f.gate.allow = false

	result, err := f.svc.TrackClick(context.Background(), "CODE123", "vis-1")
	if err != nil {
		t.Fatalf("TrackClick: %v", err)
	}
	if result.Counted {
		t.Fatal("gate-suppressed click must not count")
	}
	if len(f.referrals.m) != 0 {
		t.Fatal("suppressed click must not touch the database")
	}
}

func TestTrackClickGateOutageFallsBack(t *testing.T) {
	f := newFixture()
	f.seedAffiliate("aff-1", "user-1", "CODE123")
	f.gate.err = errors.New("redis down")

	result, err := f.svc.TrackClick(context.Background(), "CODE123", "vis-1")
	if err != nil {
		t.Fatalf("TrackClick must survive gate outage: %v", err)
	}
	if !result.Counted {
		t.Fatal("click should count via database dedup")
	}
}

func TestTrackClickIssuesToken(t *testing.T) {
	f := newFixture()
	f.seedAffiliate("aff-1", "user-1", "CODE123")

	result, err := f.svc.TrackClick(context.Background(), "CODE123", "")
	if err != nil {
		t.Fatalf("TrackClick: %v", err)
	}
	visitorID, err := domain.VerifyVisitorToken("test-secret", result.VisitorToken)
	if err != nil {
		t.Fatalf("issued token invalid: %v", err)
	}
	if _, err := f.referrals.FindByCodeAndVisitor(context.Background(), "CODE123", visitorID); err != nil {
		t.Fatalf("referral not recorded for issued visitor: %v", err)
	}
}

func TestTrackClickUnknownCode(t *testing.T) {
	f := newFixture()
	if _, err := f.svc.TrackClick(context.Background(), "NOPE", "vis-1"); !errors.Is(err, domain.ErrInvalidReferralCode) {
		t.Fatalf("unknown code = %v, want ErrInvalidReferralCode", err)
	}
}

func TestRegisterReferral(t *testing.T) {
	f := newFixture()
	f.seedAffiliate("aff-1", "user-1", "CODE123")
	f.seedClick("r1", "CODE123", "aff-1", "vis-1", time.Now())

	if err := f.svc.RegisterReferral(context.Background(), "user-2", "vis-1"); err != nil {
		t.Fatalf("RegisterReferral: %v", err)
	}
	if f.referrals.m["r1"].Status != domain.ReferralRegistered || f.referrals.m["r1"].ReferredUserID != "user-2" {
		t.Fatalf("referral = %+v", f.referrals.m["r1"])
	}

	// 没有点击记录的自然注册是静默空操作
	if err := f.svc.RegisterReferral(context.Background(), "user-3", "vis-other"); err != nil {
		t.Fatalf("organic registration: %v", err)
	}
}

func TestAttributeOrderFromClick(t *testing.T) {
	f := newFixture()
	f.seedAffiliate("aff-1", "user-1", "CODE123")
	f.seedClick("r1", "CODE123", "aff-1", "vis-1", time.Now())

	result, err := f.svc.AttributeOrder(context.Background(), &OrderAttributionCommand{
		OrderID:      "o1",
		OrderTotal:   99999,
		ItemCount:    2,
		VisitorToken: "vis-1",
	})
	if err != nil {
		t.Fatalf("AttributeOrder: %v", err)
	}
	if result.AffiliateID != "aff-1" || result.VisitorID != "vis-1" {
		t.Fatalf("result = %+v", result)
	}
	// floor(99999 * 5 / 100) = 4999
	if result.Amount != 4999 {
		t.Fatalf("commission = %d, want 4999", result.Amount)
	}

	commission := f.commissions.m[result.CommissionID]
	if commission.Rate != 5 || commission.Status != domain.CommissionPending || commission.OrderID != "o1" {
		t.Fatalf("commission = %+v", commission)
	}
	if f.referrals.m["r1"].Status != domain.ReferralOrdered {
		t.Fatalf("referral status = %s", f.referrals.m["r1"].Status)
	}

	a := f.affiliates.m["aff-1"]
	if a.PendingCommission != 4999 || a.TotalCommission != 4999 || a.TotalReferrals != 1 {
		t.Fatalf("counters = %+v", a)
	}
}

func TestAttributeOrderExplicitCodeWithoutClick(t *testing.T) {
	// 结账时直接填推广码，之前从未点过链接
	f := newFixture()
	f.seedAffiliate("aff-1", "user-1", "CODE123")

	result, err := f.svc.AttributeOrder(context.Background(), &OrderAttributionCommand{
		OrderID:      "o1",
		OrderTotal:   100000,
		ReferralCode: "CODE123",
		UserID:       "user-9",
	})
	if err != nil {
		t.Fatalf("AttributeOrder: %v", err)
	}
	if result.AffiliateID != "aff-1" || result.Amount != 5000 {
		t.Fatalf("result = %+v", result)
	}
	if len(f.referrals.m) != 1 {
		t.Fatalf("expected one synthesized referral, got %d", len(f.referrals.m))
	}
}

func TestAttributeOrderPrefersExplicitCode(t *testing.T) {
	f := newFixture()
	f.seedAffiliate("aff-1", "user-1", "AAA111")
	f.seedAffiliate("aff-2", "user-2", "BBB222")
	// 访客的历史点击属于 aff-1，但结账时填了 aff-2 的码
	f.seedClick("r1", "AAA111", "aff-1", "vis-1", time.Now())

	result, err := f.svc.AttributeOrder(context.Background(), &OrderAttributionCommand{
		OrderID:      "o1",
		OrderTotal:   100000,
		ReferralCode: "BBB222",
		VisitorToken: "vis-1",
	})
	if err != nil {
		t.Fatalf("AttributeOrder: %v", err)
	}
	if result.AffiliateID != "aff-2" {
		t.Fatalf("attributed to %s, want aff-2", result.AffiliateID)
	}
}

func TestAttributeOrderSelfReferral(t *testing.T) {
	f := newFixture()
	f.seedAffiliate("aff-1", "user-1", "CODE123")
	f.seedClick("r1", "CODE123", "aff-1", "vis-1", time.Now())

	result, err := f.svc.AttributeOrder(context.Background(), &OrderAttributionCommand{
		OrderID:      "o1",
		OrderTotal:   100000,
		UserID:       "user-1", // 推广人自己下单
		VisitorToken: "vis-1",
	})
	if err != nil {
		t.Fatalf("AttributeOrder: %v", err)
	}
	if result.AffiliateID != "" || len(f.commissions.m) != 0 {
		t.Fatalf("self-referral must not attribute: %+v", result)
	}
}

func TestAttributeOrderRuleIneligible(t *testing.T) {
	f := newFixture()
	f.seedAffiliate("aff-1", "user-1", "CODE123")
	f.seedClick("r1", "CODE123", "aff-1", "vis-1", time.Now())
	f.rules.eligible = false

	result, err := f.svc.AttributeOrder(context.Background(), &OrderAttributionCommand{
		OrderID:      "o1",
		OrderTotal:   100000,
		VisitorToken: "vis-1",
	})
	if err != nil {
		t.Fatalf("AttributeOrder: %v", err)
	}
	// 归因记录推进，但不产生佣金
	if result.AffiliateID != "aff-1" || result.CommissionID != "" {
		t.Fatalf("result = %+v", result)
	}
	if f.referrals.m["r1"].Status != domain.ReferralOrdered || f.referrals.m["r1"].CommissionAmount != 0 {
		t.Fatalf("referral = %+v", f.referrals.m["r1"])
	}
	if len(f.commissions.m) != 0 {
		t.Fatal("ineligible order created a commission")
	}
}

func TestAttributeOrderReferralConsumedOnce(t *testing.T) {
	f := newFixture()
	f.seedAffiliate("aff-1", "user-1", "CODE123")
	f.seedClick("r1", "CODE123", "aff-1", "vis-1", time.Now())

	cmd := &OrderAttributionCommand{OrderID: "o1", OrderTotal: 100000, VisitorToken: "vis-1"}
	if _, err := f.svc.AttributeOrder(context.Background(), cmd); err != nil {
		t.Fatalf("first AttributeOrder: %v", err)
	}

	second, err := f.svc.AttributeOrder(context.Background(), &OrderAttributionCommand{
		OrderID: "o2", OrderTotal: 100000, VisitorToken: "vis-1",
	})
	if err != nil {
		t.Fatalf("second AttributeOrder: %v", err)
	}
	if second.AffiliateID != "" || len(f.commissions.m) != 1 {
		t.Fatalf("referral attributed twice: %+v", second)
	}
}

func TestAttributeOrderRetriesCounterConflicts(t *testing.T) {
	f := newFixture()
	f.seedAffiliate("aff-1", "user-1", "CODE123")
	f.seedClick("r1", "CODE123", "aff-1", "vis-1", time.Now())
	f.affiliates.conflictsLeft = 2 // 前两次写回撞版本

	if _, err := f.svc.AttributeOrder(context.Background(), &OrderAttributionCommand{
		OrderID: "o1", OrderTotal: 100000, VisitorToken: "vis-1",
	}); err != nil {
		t.Fatalf("AttributeOrder: %v", err)
	}
	if f.affiliates.m["aff-1"].PendingCommission != 5000 {
		t.Fatalf("counter not applied after retries: %+v", f.affiliates.m["aff-1"])
	}
}

func TestAttributeOrderOrganic(t *testing.T) {
	f := newFixture()
	result, err := f.svc.AttributeOrder(context.Background(), &OrderAttributionCommand{
		OrderID: "o1", OrderTotal: 100000,
	})
	if err != nil {
		t.Fatalf("AttributeOrder: %v", err)
	}
	if result.AffiliateID != "" {
		t.Fatalf("organic order attributed: %+v", result)
	}
}

func attributeOne(t *testing.T, f *fixture, orderID string) string {
	t.Helper()
	result, err := f.svc.AttributeOrder(context.Background(), &OrderAttributionCommand{
		OrderID: orderID, OrderTotal: 100000, VisitorToken: "vis-1",
	})
	if err != nil {
		t.Fatalf("AttributeOrder: %v", err)
	}
	if result.CommissionID == "" {
		t.Fatal("no commission created")
	}
	return result.CommissionID
}

func TestApproveCommissionMovesNoFunds(t *testing.T) {
	f := newFixture()
	f.seedAffiliate("aff-1", "user-1", "CODE123")
	f.seedClick("r1", "CODE123", "aff-1", "vis-1", time.Now())
	commissionID := attributeOne(t, f, "o1")

	before := f.affiliates.m["aff-1"].PendingCommission
	if err := f.svc.ApproveCommission(context.Background(), commissionID); err != nil {
		t.Fatalf("ApproveCommission: %v", err)
	}
	if f.commissions.m[commissionID].Status != domain.CommissionApproved {
		t.Fatalf("commission status = %s", f.commissions.m[commissionID].Status)
	}
	if f.referrals.m["r1"].Status != domain.ReferralApproved {
		t.Fatalf("referral status = %s", f.referrals.m["r1"].Status)
	}
	// 审批不挪动余额
	if f.affiliates.m["aff-1"].PendingCommission != before {
		t.Fatalf("approval moved funds: %d -> %d", before, f.affiliates.m["aff-1"].PendingCommission)
	}

	if err := f.svc.ApproveCommission(context.Background(), commissionID); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("double approve = %v, want ErrInvalidState", err)
	}
}

func TestRejectCommissionRemovesPending(t *testing.T) {
	f := newFixture()
	f.seedAffiliate("aff-1", "user-1", "CODE123")
	f.seedClick("r1", "CODE123", "aff-1", "vis-1", time.Now())
	commissionID := attributeOne(t, f, "o1")

	if err := f.svc.RejectCommission(context.Background(), commissionID); err != nil {
		t.Fatalf("RejectCommission: %v", err)
	}
	a := f.affiliates.m["aff-1"]
	if a.PendingCommission != 0 {
		t.Fatalf("pending after reject = %d", a.PendingCommission)
	}
	// 历史累计保留
	if a.TotalCommission != 5000 {
		t.Fatalf("total after reject = %d", a.TotalCommission)
	}
	if f.referrals.m["r1"].Status != domain.ReferralRejected {
		t.Fatalf("referral status = %s", f.referrals.m["r1"].Status)
	}
}

func TestRequestPayoutValidations(t *testing.T) {
	f := newFixture()
	f.seedAffiliate("aff-1", "user-1", "CODE123")
	f.affiliates.m["aff-1"].PendingCommission = 60000

	if _, err := f.svc.RequestPayout(context.Background(), &RequestPayoutCommand{
		AffiliateID: "aff-1", Amount: 49999, Method: "bank_transfer",
	}); !errors.Is(err, domain.ErrBelowMinimumPayout) {
		t.Fatalf("below min = %v, want ErrBelowMinimumPayout", err)
	}

	if _, err := f.svc.RequestPayout(context.Background(), &RequestPayoutCommand{
		AffiliateID: "aff-1", Amount: 70000, Method: "bank_transfer",
	}); !errors.Is(err, domain.ErrInsufficientCommission) {
		t.Fatalf("over balance = %v, want ErrInsufficientCommission", err)
	}
	if f.affiliates.m["aff-1"].PendingCommission != 60000 {
		t.Fatalf("failed request mutated balance: %d", f.affiliates.m["aff-1"].PendingCommission)
	}

	payout, err := f.svc.RequestPayout(context.Background(), &RequestPayoutCommand{
		AffiliateID: "aff-1", Amount: 60000, Method: "bank_transfer",
	})
	if err != nil {
		t.Fatalf("RequestPayout: %v", err)
	}
	// 申请成功立刻预留
	if f.affiliates.m["aff-1"].PendingCommission != 0 {
		t.Fatalf("balance after earmark = %d", f.affiliates.m["aff-1"].PendingCommission)
	}
	// 银行信息是申请时刻的快照
	if payout.BankName != "BCA" || payout.BankAccountNumber != "1234567890" {
		t.Fatalf("bank snapshot = %+v", payout)
	}
}

func TestCompletePayoutSettlesLedger(t *testing.T) {
	f := newFixture()
	f.seedAffiliate("aff-1", "user-1", "CODE123")
	f.seedClick("r1", "CODE123", "aff-1", "vis-1", time.Now())
	commissionID := attributeOne(t, f, "o1") // pending 5000
	f.svc.ApproveCommission(context.Background(), commissionID)
	f.affiliates.m["aff-1"].PendingCommission = 60000 // 再补足到可提现额度

	payout, err := f.svc.RequestPayout(context.Background(), &RequestPayoutCommand{
		AffiliateID: "aff-1", Amount: 60000, Method: "bank_transfer",
	})
	if err != nil {
		t.Fatalf("RequestPayout: %v", err)
	}

	if err := f.svc.CompletePayout(context.Background(), payout.ID); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("complete before processing = %v, want ErrInvalidState", err)
	}
	if err := f.svc.StartPayoutProcessing(context.Background(), payout.ID); err != nil {
		t.Fatalf("StartPayoutProcessing: %v", err)
	}
	if err := f.svc.CompletePayout(context.Background(), payout.ID); err != nil {
		t.Fatalf("CompletePayout: %v", err)
	}

	a := f.affiliates.m["aff-1"]
	if a.PaidCommission != 60000 {
		t.Fatalf("paid = %d, want 60000", a.PaidCommission)
	}
	// 已审批的佣金和推荐记录随提现进入终态
	if f.commissions.m[commissionID].Status != domain.CommissionPaid {
		t.Fatalf("commission status = %s", f.commissions.m[commissionID].Status)
	}
	if f.referrals.m["r1"].Status != domain.ReferralPaid {
		t.Fatalf("referral status = %s", f.referrals.m["r1"].Status)
	}
}

func TestRejectPayoutReturnsFunds(t *testing.T) {
	f := newFixture()
	f.seedAffiliate("aff-1", "user-1", "CODE123")
	f.affiliates.m["aff-1"].PendingCommission = 60000

	payout, err := f.svc.RequestPayout(context.Background(), &RequestPayoutCommand{
		AffiliateID: "aff-1", Amount: 60000, Method: "bank_transfer",
	})
	if err != nil {
		t.Fatalf("RequestPayout: %v", err)
	}
	f.svc.StartPayoutProcessing(context.Background(), payout.ID)
	if err := f.svc.RejectPayout(context.Background(), payout.ID); err != nil {
		t.Fatalf("RejectPayout: %v", err)
	}
	if f.affiliates.m["aff-1"].PendingCommission != 60000 {
		t.Fatalf("balance after reject = %d, want 60000", f.affiliates.m["aff-1"].PendingCommission)
	}
	if f.affiliates.m["aff-1"].PaidCommission != 0 {
		t.Fatal("rejected payout must not settle")
	}
}

func TestListFollowersDeduplicates(t *testing.T) {
	f := newFixture()
	f.seedAffiliate("aff-1", "user-1", "CODE123")

	base := time.Now()
	early := f.seedClick("r1", "CODE123", "aff-1", "vis-1", base.Add(-2*time.Hour))
	early.Status = domain.ReferralRegistered
	early.ReferredUserID = "user-2"
	late := f.seedClick("r2", "CODE123", "aff-1", "vis-2", base.Add(-1*time.Hour))
	late.Status = domain.ReferralOrdered
	late.ReferredUserID = "user-2" // 同一个用户从另一台设备再次走完漏斗
	f.seedClick("r3", "CODE123", "aff-1", "vis-3", base) // clicked，不算粉丝

	followers, err := f.svc.ListFollowers(context.Background(), "aff-1")
	if err != nil {
		t.Fatalf("ListFollowers: %v", err)
	}
	if len(followers) != 1 {
		t.Fatalf("followers = %d, want 1", len(followers))
	}
	if followers[0].UserID != "user-2" || !followers[0].FirstSeenAt.Equal(early.CreatedAt) {
		t.Fatalf("follower = %+v", followers[0])
	}
}

func TestSettingsSeedAndUpdate(t *testing.T) {
	f := newFixture()

	settings, err := f.svc.GetSettings(context.Background())
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if settings.DefaultCommissionRate != 5 || settings.MinPayoutAmount != 50000 {
		t.Fatalf("seeded settings = %+v", settings)
	}

	f.rules.err = errors.New("compile error")
	if _, err := f.svc.UpdateSettings(context.Background(), &UpdateSettingsRequest{
		DefaultCommissionRate: 10, MinPayoutAmount: 100000, CommissionRule: "not valid",
	}); err == nil {
		t.Fatal("invalid rule must be rejected")
	}

	f.rules.err = nil
	updated, err := f.svc.UpdateSettings(context.Background(), &UpdateSettingsRequest{
		DefaultCommissionRate: 10, MinPayoutAmount: 100000, CommissionRule: "order_total >= 50000",
	})
	if err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	if updated.DefaultCommissionRate != 10 || updated.CommissionRule != "order_total >= 50000" {
		t.Fatalf("updated settings = %+v", updated)
	}
}
