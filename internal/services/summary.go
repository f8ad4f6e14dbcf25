package services

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/diewo77/invoice-tracker/internal/models"
	"github.com/diewo77/invoice-tracker/internal/scope"
)

// defaultWindowDays is the lookback applied when no explicit range is given.
const defaultWindowDays = 30

type Period struct {
	StartDate models.Date `json:"start_date"`
	EndDate   models.Date `json:"end_date"`
}

// Bucket aggregates one invoice type over the window. Total is null (not
// zero) when no rows match, mirroring a SQL SUM over an empty set.
type Bucket struct {
	Total *decimal.Decimal `json:"total"`
	Count int64            `json:"count"`
}

type Summary struct {
	Period   Period `json:"period"`
	Expenses Bucket `json:"expenses"`
	Revenue  Bucket `json:"revenue"`
}

// SummaryService recomputes date-ranged totals per request; cost is linear in
// the number of matching rows and nothing is cached.
type SummaryService struct {
	DB *gorm.DB
}

func NewSummaryService(db *gorm.DB) *SummaryService { return &SummaryService{DB: db} }

// Compute aggregates the principal's visible invoices over [start, end]
// inclusive. When either bound is nil the window defaults to the last 30 days
// ending today, both bounds computed at call time in UTC.
func (s *SummaryService) Compute(principal *models.User, start, end *models.Date) (Summary, error) {
	var from, to models.Date
	if start != nil && end != nil {
		from, to = *start, *end
	} else {
		to = models.Today()
		from = to.AddDays(-defaultWindowDays)
	}

	var rows []models.Invoice
	err := scope.Invoices(s.DB, principal).
		Select("type", "amount").
		Where("invoices.date >= ? AND invoices.date <= ?", from.Time, to.Time).
		Find(&rows).Error
	if err != nil {
		return Summary{}, err
	}

	out := Summary{Period: Period{StartDate: from, EndDate: to}}
	for _, inv := range rows {
		switch inv.Type {
		case models.TypeExpense:
			out.Expenses.add(inv.Amount)
		case models.TypeRevenue:
			out.Revenue.add(inv.Amount)
		}
	}
	return out, nil
}

func (b *Bucket) add(amount decimal.Decimal) {
	if b.Total == nil {
		zero := decimal.Zero
		b.Total = &zero
	}
	sum := b.Total.Add(amount)
	b.Total = &sum
	b.Count++
}
