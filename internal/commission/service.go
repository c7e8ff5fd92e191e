package commission

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"outbound-platform/internal/audit"
	"outbound-platform/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidPeriod   = errors.New("commission: invalid period")
	ErrInvalidArgument = errors.New("commission: invalid argument")
	ErrDuplicate       = errors.New("commission: already exists")
)

// Store persists referrals, plans and payouts.
//
// CreatePayout inserts p unless a payout for (ReferrerID, PeriodMonth) exists and, in the
// same transaction, moves the listed completed referrals to credited. It reports whether
// the payout was inserted.
type Store interface {
	CreateReferral(ctx context.Context, r Referral) error
	CompleteReferral(ctx context.Context, refereeID string, at time.Time) (Referral, bool, error)
	// ListSettleable returns completed referrals with completed_at <= snapshot, plus
	// credited ones completed at or after recurringSince (none when it is zero).
	ListSettleable(ctx context.Context, snapshot, recurringSince time.Time) ([]Referral, error)

	ListPlans(ctx context.Context) ([]Plan, error)
	UpsertPlan(ctx context.Context, p Plan) error

	CreatePayout(ctx context.Context, p Payout, creditReferralIDs []string, at time.Time) (bool, error)
	MarkPaid(ctx context.Context, referrerID, method, reference string, at time.Time) (int64, error)
	ListPayouts(ctx context.Context, referrerID string) ([]Payout, error)

	// RefreshStats recomputes and stores a referrer's stats from referrals and payouts.
	RefreshStats(ctx context.Context, referrerID string, at time.Time) (Stats, error)
}

var systemActor = audit.Actor{UserID: "system", Role: "system"}

// Service is the commission engine.
type Service struct {
	store Store
	audit *audit.Service
	clock func() time.Time
}

func NewService(store Store, auditSvc *audit.Service) *Service {
	return &Service{store: store, audit: auditSvc, clock: time.Now}
}

func (s *Service) CreateReferral(ctx context.Context, referrerID, refereeID, code string, credit decimal.Decimal) (Referral, error) {
	if strings.TrimSpace(referrerID) == "" || strings.TrimSpace(refereeID) == "" || referrerID == refereeID {
		return Referral{}, ErrInvalidArgument
	}
	if credit.IsNegative() {
		return Referral{}, ErrInvalidArgument
	}
	r := Referral{
		ID:           uuid.NewString(),
		ReferrerID:   referrerID,
		RefereeID:    refereeID,
		Code:         code,
		Status:       ReferralPending,
		CreditAmount: credit.Round(2),
		CreatedAt:    s.clock().UTC(),
	}
	if err := s.store.CreateReferral(ctx, r); err != nil {
		return Referral{}, err
	}
	return r, nil
}

// CompleteReferral marks the referee's pending referral completed once their subscription
// is active. Referrals in any other state are left alone.
func (s *Service) CompleteReferral(ctx context.Context, refereeID string) (Referral, bool, error) {
	if strings.TrimSpace(refereeID) == "" {
		return Referral{}, false, ErrInvalidArgument
	}
	now := s.clock().UTC()
	r, changed, err := s.store.CompleteReferral(ctx, refereeID, now)
	if err != nil || !changed {
		return r, changed, err
	}
	if _, err := s.store.RefreshStats(ctx, r.ReferrerID, now); err != nil {
		logger.From(ctx).Warn("referrer stats refresh failed", "referrer_id", r.ReferrerID, "err", err)
	}
	return r, true, nil
}

func (s *Service) SetPlan(ctx context.Context, p Plan) error {
	if strings.TrimSpace(p.ReferrerID) == "" {
		return ErrInvalidArgument
	}
	switch p.Type {
	case PlanFlat:
		if p.FlatAmount.IsNegative() {
			return ErrInvalidArgument
		}
	case PlanRecurring:
		if p.RecurringAmount.IsNegative() || p.RecurringMonths <= 0 {
			return ErrInvalidArgument
		}
	default:
		return ErrInvalidArgument
	}
	return s.store.UpsertPlan(ctx, p)
}

// GenerateMonthly creates at most one pending payout per referrer for period (YYYY-MM).
// Running it again for the same period creates nothing.
func (s *Service) GenerateMonthly(ctx context.Context, period string) (GenerateResult, error) {
	periodStart, err := ParsePeriod(period)
	if err != nil {
		return GenerateResult{}, err
	}
	snapshot := s.clock().UTC()
	if periodStart.After(snapshot) {
		return GenerateResult{}, fmt.Errorf("%w: %s has not started", ErrInvalidPeriod, period)
	}
	res := GenerateResult{PeriodMonth: period, Created: []Payout{}}
	log := logger.From(ctx).With("period", period)

	planList, err := s.store.ListPlans(ctx)
	if err != nil {
		return res, fmt.Errorf("list plans: %w", err)
	}
	plans := make(map[string]Plan, len(planList))
	maxMonths := 0
	for _, p := range planList {
		plans[p.ReferrerID] = p
		if p.Type == PlanRecurring && p.RecurringMonths > maxMonths {
			maxMonths = p.RecurringMonths
		}
	}
	var since time.Time
	if maxMonths > 0 {
		since = periodStart.AddDate(0, -(maxMonths - 1), 0)
	}

	refs, err := s.store.ListSettleable(ctx, snapshot, since)
	if err != nil {
		return res, fmt.Errorf("list settleable referrals: %w", err)
	}
	byReferrer := map[string][]Referral{}
	for _, r := range refs {
		byReferrer[r.ReferrerID] = append(byReferrer[r.ReferrerID], r)
	}
	referrers := make([]string, 0, len(byReferrer))
	for id := range byReferrer {
		referrers = append(referrers, id)
	}
	sort.Strings(referrers)

	for _, referrerID := range referrers {
		plan, hasPlan := plans[referrerID]
		amount, credit := payoutAmount(byReferrer[referrerID], plan, hasPlan, periodStart)
		if !amount.IsPositive() {
			res.Skipped++
			continue
		}

		p := Payout{
			ID:          uuid.NewString(),
			ReferrerID:  referrerID,
			PeriodMonth: period,
			Amount:      amount,
			Status:      PayoutPending,
			CreatedAt:   snapshot,
		}
		created, err := s.store.CreatePayout(ctx, p, credit, snapshot)
		if err != nil {
			return res, fmt.Errorf("create payout for %s: %w", referrerID, err)
		}
		if !created {
			res.Skipped++
			continue
		}
		res.Created = append(res.Created, p)

		if _, err := s.store.RefreshStats(ctx, referrerID, snapshot); err != nil {
			log.Warn("referrer stats refresh failed", "referrer_id", referrerID, "err", err)
		}
		if s.audit != nil {
			s.audit.Record(ctx, referrerID, audit.EventTypeCommissionGenerate, systemActor, "commission payout generated", map[string]any{
				"payout_id": p.ID,
				"period":    period,
				"amount":    amount.StringFixed(2),
				"referrals": len(credit),
			})
		}
	}

	log.Info("commission generation finished", "created", len(res.Created), "skipped", res.Skipped)
	return res, nil
}

// payoutAmount returns what a referrer earns for the period and which completed referrals
// the payout settles.
func payoutAmount(refs []Referral, plan Plan, hasPlan bool, periodStart time.Time) (decimal.Decimal, []string) {
	amount := decimal.Zero
	credit := make([]string, 0, len(refs))
	active := 0
	for _, r := range refs {
		if r.Status == ReferralCompleted {
			credit = append(credit, r.ID)
			if !hasPlan {
				amount = amount.Add(r.CreditAmount)
			}
		}
		if r.CompletedAt != nil && activeInPeriod(*r.CompletedAt, periodStart, plan.RecurringMonths) {
			active++
		}
	}

	if hasPlan {
		switch plan.Type {
		case PlanFlat:
			amount = plan.FlatAmount.Mul(decimal.NewFromInt(int64(len(credit))))
		case PlanRecurring:
			amount = plan.RecurringAmount.Mul(decimal.NewFromInt(int64(active)))
		}
	}
	return amount.Round(2), credit
}

// MarkPaid flips every pending payout of the referrer to paid and returns how many changed.
func (s *Service) MarkPaid(ctx context.Context, referrerID, method, reference string, actor audit.Actor) (int64, error) {
	if strings.TrimSpace(referrerID) == "" || strings.TrimSpace(method) == "" {
		return 0, ErrInvalidArgument
	}
	now := s.clock().UTC()
	n, err := s.store.MarkPaid(ctx, referrerID, method, reference, now)
	if err != nil {
		return 0, fmt.Errorf("mark paid: %w", err)
	}
	if n == 0 {
		return 0, nil
	}
	if _, err := s.store.RefreshStats(ctx, referrerID, now); err != nil {
		logger.From(ctx).Warn("referrer stats refresh failed", "referrer_id", referrerID, "err", err)
	}
	if s.audit != nil {
		s.audit.Record(ctx, referrerID, audit.EventTypeCommissionPaid, actor, "commission payouts marked paid", map[string]any{
			"count":     n,
			"method":    method,
			"reference": reference,
		})
	}
	return n, nil
}

func (s *Service) Stats(ctx context.Context, referrerID string) (Stats, error) {
	if strings.TrimSpace(referrerID) == "" {
		return Stats{}, ErrInvalidArgument
	}
	return s.store.RefreshStats(ctx, referrerID, s.clock().UTC())
}

func (s *Service) ListPayouts(ctx context.Context, referrerID string) ([]Payout, error) {
	if strings.TrimSpace(referrerID) == "" {
		return nil, ErrInvalidArgument
	}
	return s.store.ListPayouts(ctx, referrerID)
}
