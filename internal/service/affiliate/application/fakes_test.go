// internal/service/affiliate/application/fakes_test.go
package application

import (
	"context"
	"sort"

	"warung/internal/service/affiliate/domain"
)

// 内存版端口实现，行为对齐 GORM 适配器：
// 返回副本、NotFound 哨兵错误、计数器写回的版本守卫。

type memAffiliates struct {
	m map[string]*domain.AffiliateUser

	// conflictsLeft 大于 0 时 UpdateCounters 先返回 ErrTxConflict，
	// 用于验证调用方的重读重试
	conflictsLeft int
}

func newMemAffiliates() *memAffiliates {
	return &memAffiliates{m: make(map[string]*domain.AffiliateUser)}
}

func copyAffiliate(a *domain.AffiliateUser) *domain.AffiliateUser {
	c := *a
	return &c
}

func (r *memAffiliates) Save(_ context.Context, a *domain.AffiliateUser) error {
	r.m[a.ID] = copyAffiliate(a)
	return nil
}

func (r *memAffiliates) FindByID(_ context.Context, id string) (*domain.AffiliateUser, error) {
	a, ok := r.m[id]
	if !ok {
		return nil, domain.ErrAffiliateNotFound
	}
	return copyAffiliate(a), nil
}

func (r *memAffiliates) FindByUserID(_ context.Context, userID string) (*domain.AffiliateUser, error) {
	for _, a := range r.m {
		if a.UserID == userID {
			return copyAffiliate(a), nil
		}
	}
	return nil, domain.ErrAffiliateNotFound
}

func (r *memAffiliates) FindByReferralCode(_ context.Context, code string) (*domain.AffiliateUser, error) {
	for _, a := range r.m {
		if a.ReferralCode == code {
			return copyAffiliate(a), nil
		}
	}
	return nil, domain.ErrInvalidReferralCode
}

func (r *memAffiliates) List(_ context.Context) ([]*domain.AffiliateUser, error) {
	out := make([]*domain.AffiliateUser, 0, len(r.m))
	for _, a := range r.m {
		out = append(out, copyAffiliate(a))
	}
	return out, nil
}

func (r *memAffiliates) UpdateBankDetails(_ context.Context, affiliateID, bankName, accountName, accountNumber string) error {
	a, ok := r.m[affiliateID]
	if !ok {
		return domain.ErrAffiliateNotFound
	}
	// 对齐 GORM 适配器：只动收款资料三列
	a.BankName = bankName
	a.BankAccountName = accountName
	a.BankAccountNumber = accountNumber
	return nil
}

func (r *memAffiliates) UpdateCounters(_ context.Context, a *domain.AffiliateUser) error {
	if r.conflictsLeft > 0 {
		r.conflictsLeft--
		return domain.ErrTxConflict
	}
	current, ok := r.m[a.ID]
	if !ok {
		return domain.ErrAffiliateNotFound
	}
	if current.Version != a.Version {
		return domain.ErrTxConflict
	}
	saved := copyAffiliate(a)
	saved.Version++
	r.m[a.ID] = saved
	a.Version++
	return nil
}

type memReferrals struct {
	m map[string]*domain.Referral
}

func newMemReferrals() *memReferrals {
	return &memReferrals{m: make(map[string]*domain.Referral)}
}

func copyReferral(r *domain.Referral) *domain.Referral {
	c := *r
	return &c
}

func (r *memReferrals) Save(_ context.Context, ref *domain.Referral) error {
	r.m[ref.ID] = copyReferral(ref)
	return nil
}

func (r *memReferrals) FindByID(_ context.Context, id string) (*domain.Referral, error) {
	ref, ok := r.m[id]
	if !ok {
		return nil, domain.ErrReferralNotFound
	}
	return copyReferral(ref), nil
}

func (r *memReferrals) FindByCodeAndVisitor(_ context.Context, code, visitorID string) (*domain.Referral, error) {
	for _, ref := range r.m {
		if ref.ReferralCode == code && ref.VisitorID == visitorID {
			return copyReferral(ref), nil
		}
	}
	return nil, domain.ErrReferralNotFound
}

func (r *memReferrals) FindLatestByVisitor(_ context.Context, visitorID string, statuses ...domain.ReferralStatus) (*domain.Referral, error) {
	return r.findLatest(func(ref *domain.Referral) bool { return ref.VisitorID == visitorID }, statuses)
}

func (r *memReferrals) FindLatestByUser(_ context.Context, userID string, statuses ...domain.ReferralStatus) (*domain.Referral, error) {
	return r.findLatest(func(ref *domain.Referral) bool { return ref.ReferredUserID == userID }, statuses)
}

func (r *memReferrals) ListByReferrer(_ context.Context, referrerID string) ([]*domain.Referral, error) {
	out := make([]*domain.Referral, 0)
	for _, ref := range r.m {
		if ref.ReferrerID == referrerID {
			out = append(out, copyReferral(ref))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memReferrals) findLatest(match func(*domain.Referral) bool, statuses []domain.ReferralStatus) (*domain.Referral, error) {
	var latest *domain.Referral
	for _, ref := range r.m {
		if !match(ref) {
			continue
		}
		if len(statuses) > 0 {
			ok := false
			for _, s := range statuses {
				if ref.Status == s {
					ok = true
					break
				}
			}
			if !ok {
				continue
			}
		}
		if latest == nil || ref.CreatedAt.After(latest.CreatedAt) {
			latest = ref
		}
	}
	if latest == nil {
		return nil, domain.ErrReferralNotFound
	}
	return copyReferral(latest), nil
}

type memCommissions struct {
	m map[string]*domain.Commission
}

func newMemCommissions() *memCommissions {
	return &memCommissions{m: make(map[string]*domain.Commission)}
}

func copyCommission(c *domain.Commission) *domain.Commission {
	cp := *c
	return &cp
}

func (r *memCommissions) Save(_ context.Context, c *domain.Commission) error {
	r.m[c.ID] = copyCommission(c)
	return nil
}

func (r *memCommissions) FindByID(_ context.Context, id string) (*domain.Commission, error) {
	c, ok := r.m[id]
	if !ok {
		return nil, domain.ErrCommissionNotFound
	}
	return copyCommission(c), nil
}

func (r *memCommissions) ListByAffiliate(_ context.Context, affiliateID string) ([]*domain.Commission, error) {
	out := make([]*domain.Commission, 0)
	for _, c := range r.m {
		if c.AffiliateID == affiliateID {
			out = append(out, copyCommission(c))
		}
	}
	return out, nil
}

func (r *memCommissions) ListByAffiliateAndStatus(_ context.Context, affiliateID string, status domain.CommissionStatus) ([]*domain.Commission, error) {
	out := make([]*domain.Commission, 0)
	for _, c := range r.m {
		if c.AffiliateID == affiliateID && c.Status == status {
			out = append(out, copyCommission(c))
		}
	}
	return out, nil
}

type memPayouts struct {
	m map[string]*domain.Payout
}

func newMemPayouts() *memPayouts {
	return &memPayouts{m: make(map[string]*domain.Payout)}
}

func copyPayout(p *domain.Payout) *domain.Payout {
	c := *p
	return &c
}

func (r *memPayouts) Save(_ context.Context, p *domain.Payout) error {
	r.m[p.ID] = copyPayout(p)
	return nil
}

func (r *memPayouts) FindByID(_ context.Context, id string) (*domain.Payout, error) {
	p, ok := r.m[id]
	if !ok {
		return nil, domain.ErrPayoutNotFound
	}
	return copyPayout(p), nil
}

func (r *memPayouts) ListByAffiliate(_ context.Context, affiliateID string) ([]*domain.Payout, error) {
	out := make([]*domain.Payout, 0)
	for _, p := range r.m {
		if p.AffiliateID == affiliateID {
			out = append(out, copyPayout(p))
		}
	}
	return out, nil
}

func (r *memPayouts) ListPending(_ context.Context) ([]*domain.Payout, error) {
	out := make([]*domain.Payout, 0)
	for _, p := range r.m {
		if p.Status == domain.PayoutPending {
			out = append(out, copyPayout(p))
		}
	}
	return out, nil
}

type memSettings struct {
	s *domain.Settings
}

func (r *memSettings) Get(_ context.Context) (*domain.Settings, error) {
	if r.s == nil {
		return nil, nil
	}
	c := *r.s
	return &c, nil
}

func (r *memSettings) Save(_ context.Context, s *domain.Settings) error {
	c := *s
	r.s = &c
	return nil
}

// stubGate 记录调用并按 allow 放行
type stubGate struct {
	allow bool
	err   error
	calls int
}

func (g *stubGate) Allow(_ context.Context, _, _ string) (bool, error) {
	g.calls++
	return g.allow, g.err
}

// stubRuleEngine 固定返回 eligible
type stubRuleEngine struct {
	eligible bool
	err      error
	lastRule string
	lastFact domain.Fact
}

func (e *stubRuleEngine) Evaluate(rule string, fact domain.Fact) (bool, error) {
	e.lastRule = rule
	e.lastFact = fact
	return e.eligible, e.err
}

type memAffiliateProducer struct {
	events []*domain.AffiliateEvent
}

func (p *memAffiliateProducer) Publish(_ context.Context, event *domain.AffiliateEvent) error {
	p.events = append(p.events, event)
	return nil
}

type noopLocker struct{}

func (noopLocker) WithLock(_ context.Context, _ string, fn func() error) error { return fn() }
