package reporting

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"outbound-platform/internal/ledger"

	"github.com/shopspring/decimal"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// maxRange bounds a single summary so one request cannot scan a tenant's whole history.
const maxRange = 93 * 24 * time.Hour

// TransactionSource reads the balance ledger. ledger.Repository satisfies it; a zero
// Limit must return every matching row.
type TransactionSource interface {
	ListTransactions(ctx context.Context, tenantID string, f ledger.ListFilter) ([]ledger.Transaction, error)
}

type Service struct {
	source TransactionSource
}

func NewService(source TransactionSource) *Service { return &Service{source: source} }

func (s *Service) SpendSummary(ctx context.Context, req SpendSummaryRequest) (SpendSummary, error) {
	if strings.TrimSpace(req.TenantID) == "" {
		return SpendSummary{}, ErrInvalidRequest
	}
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return SpendSummary{}, ErrInvalidRequest
	}
	if req.Range.To.Sub(req.Range.From) > maxRange {
		return SpendSummary{}, ErrInvalidRequest
	}
	loc := time.UTC
	if req.Timezone != "" {
		l, err := time.LoadLocation(req.Timezone)
		if err != nil {
			return SpendSummary{}, ErrInvalidRequest
		}
		loc = l
	}
	if s.source == nil {
		return SpendSummary{}, errors.New("reporting: transaction source not configured")
	}

	rows, err := s.source.ListTransactions(ctx, req.TenantID, ledger.ListFilter{From: req.Range.From, To: req.Range.To})
	if err != nil {
		return SpendSummary{}, err
	}
	// oldest first
	sort.Slice(rows, func(i, j int) bool { return rows[i].Seq < rows[j].Seq })

	out := SpendSummary{
		TenantID:     req.TenantID,
		From:         req.Range.From,
		To:           req.Range.To,
		CallCharges:  decimal.Zero,
		Refills:      decimal.Zero,
		AdminCredits: decimal.Zero,
		AdminDebits:  decimal.Zero,
		NetChange:    decimal.Zero,
		Daily:        []DailySpend{},
	}
	daily := map[string]*DailySpend{}
	for _, t := range rows {
		out.NetChange = out.NetChange.Add(t.Amount)
		switch t.Type {
		case ledger.TypeCallCharge:
			out.CallsBilled++
			out.CallCharges = out.CallCharges.Sub(t.Amount)

			day := t.CreatedAt.In(loc).Format("2006-01-02")
			d, ok := daily[day]
			if !ok {
				d = &DailySpend{Date: day, CallCharges: decimal.Zero}
				daily[day] = d
			}
			d.CallsBilled++
			d.CallCharges = d.CallCharges.Sub(t.Amount)
		case ledger.TypeRefill:
			out.Refills = out.Refills.Add(t.Amount)
		case ledger.TypeAdminCredit:
			out.AdminCredits = out.AdminCredits.Add(t.Amount)
		case ledger.TypeAdminDebit:
			out.AdminDebits = out.AdminDebits.Sub(t.Amount)
		}
	}
	if len(rows) > 0 {
		opening := rows[0].BalanceAfter.Sub(rows[0].Amount)
		closing := rows[len(rows)-1].BalanceAfter
		out.OpeningBalance = &opening
		out.ClosingBalance = &closing
	}

	for _, d := range daily {
		out.Daily = append(out.Daily, *d)
	}
	sort.Slice(out.Daily, func(i, j int) bool { return out.Daily[i].Date < out.Daily[j].Date })
	return out, nil
}
