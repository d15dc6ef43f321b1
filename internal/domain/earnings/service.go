package earnings

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/telehealth/internal/domain/identity"
	"github.com/ehr/telehealth/internal/platform/metrics"
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

func monthStart(t time.Time) time.Time {
	y, m, _ := t.UTC().Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

// emptySeries returns zeroed buckets for the months months ending with
// the current one, oldest first.
func emptySeries(current time.Time, months int) []MonthlyEarning {
	out := make([]MonthlyEarning, months)
	for i := range out {
		out[i].Month = current.AddDate(0, i-months+1, 0).Format(monthLayout)
	}
	return out
}

// Summary reports the calling doctor's earnings. Non-doctors and store
// failures get a zeroed summary.
func (s *Service) Summary(ctx context.Context, caller *identity.Caller, months int) *Summary {
	if months <= 0 {
		months = defaultMonths
	}
	if months > maxMonths {
		months = maxMonths
	}
	current := monthStart(s.now())
	series := emptySeries(current, months)
	sum := &Summary{Monthly: series}
	if !caller.IsDoctor() {
		return sum
	}

	totals, err := s.repo.Totals(ctx, caller.DoctorID, current, current.AddDate(0, -1, 0))
	if err != nil {
		s.logFailure(ctx, "earnings totals", err)
		return sum
	}
	sum.TotalEarnings = totals.Earned
	sum.PendingEarnings = totals.Pending
	sum.ThisMonth = totals.ThisMonth
	sum.LastMonth = totals.LastMonth
	sum.CompletedConsultations = totals.CompletedCount
	sum.AverageFee = totals.AverageFee

	buckets, err := s.repo.Monthly(ctx, caller.DoctorID, current.AddDate(0, 1-months, 0))
	if err != nil {
		s.logFailure(ctx, "earnings series", err)
		return sum
	}
	index := make(map[string]int, len(series))
	for i, m := range series {
		index[m.Month] = i
	}
	for _, b := range buckets {
		if i, ok := index[b.Month.UTC().Format(monthLayout)]; ok {
			series[i].Amount += b.Amount
			series[i].Consultations += b.Count
		}
	}
	return sum
}

// Transactions lists the doctor's most recent completed consultations.
func (s *Service) Transactions(ctx context.Context, caller *identity.Caller, limit int) []*Transaction {
	if !caller.IsDoctor() {
		return []*Transaction{}
	}
	if limit <= 0 {
		limit = defaultTransactionLimit
	}
	if limit > maxTransactionLimit {
		limit = maxTransactionLimit
	}
	out, err := s.repo.Transactions(ctx, caller.DoctorID, limit)
	if err != nil {
		s.logFailure(ctx, "earnings transactions", err)
		return []*Transaction{}
	}
	if out == nil {
		out = []*Transaction{}
	}
	return out
}

func (s *Service) logFailure(ctx context.Context, op string, err error) {
	zerolog.Ctx(ctx).Error().Err(err).Msg(op)
	metrics.StoreErrors.WithLabelValues("earnings").Inc()
}
