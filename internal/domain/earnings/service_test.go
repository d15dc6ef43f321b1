package earnings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehr/telehealth/internal/domain/identity"
)

var baseNow = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

type mockRepo struct {
	totals       *Totals
	monthly      []MonthAmount
	transactions []*Transaction
	err          error

	gotSince time.Time
	gotLimit int
}

func (m *mockRepo) Totals(context.Context, uuid.UUID, time.Time, time.Time) (*Totals, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.totals, nil
}

func (m *mockRepo) Monthly(_ context.Context, _ uuid.UUID, since time.Time) ([]MonthAmount, error) {
	m.gotSince = since
	if m.err != nil {
		return nil, m.err
	}
	return m.monthly, nil
}

func (m *mockRepo) Transactions(_ context.Context, _ uuid.UUID, limit int) ([]*Transaction, error) {
	m.gotLimit = limit
	if m.err != nil {
		return nil, m.err
	}
	return m.transactions, nil
}

func newService(repo *mockRepo) *Service {
	svc := NewService(repo)
	svc.now = func() time.Time { return baseNow }
	return svc
}

func doctorCaller() *identity.Caller {
	return &identity.Caller{UserID: uuid.New(), Role: identity.RoleDoctor, DoctorID: uuid.New()}
}

func months(series []MonthlyEarning) []string {
	out := make([]string, len(series))
	for i, m := range series {
		out[i] = m.Month
	}
	return out
}

func TestSummary_ZeroFilledSeries(t *testing.T) {
	repo := &mockRepo{
		totals: &Totals{Earned: 300, Pending: 50, ThisMonth: 100, LastMonth: 200, CompletedCount: 4, AverageFee: 87.5},
		monthly: []MonthAmount{
			{Month: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), Amount: 200, Count: 2},
			{Month: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), Amount: 100, Count: 1},
		},
	}
	sum := newService(repo).Summary(context.Background(), doctorCaller(), 0)

	assert.Equal(t, []string{"2025-10", "2025-11", "2025-12", "2026-01", "2026-02", "2026-03"}, months(sum.Monthly))
	assert.Equal(t, time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC), repo.gotSince)
	assert.Equal(t, 200.0, sum.Monthly[3].Amount)
	assert.Equal(t, 2, sum.Monthly[3].Consultations)
	assert.Zero(t, sum.Monthly[4].Amount)
	assert.Equal(t, 100.0, sum.Monthly[5].Amount)

	assert.Equal(t, 300.0, sum.TotalEarnings)
	assert.Equal(t, 50.0, sum.PendingEarnings)
	assert.Equal(t, 4, sum.CompletedConsultations)
}

func TestSummary_MonthBounds(t *testing.T) {
	svc := newService(&mockRepo{totals: &Totals{}})
	ctx := context.Background()

	assert.Len(t, svc.Summary(ctx, doctorCaller(), 3).Monthly, 3)
	assert.Len(t, svc.Summary(ctx, doctorCaller(), 100).Monthly, maxMonths)

	series := svc.Summary(ctx, doctorCaller(), 12).Monthly
	assert.Equal(t, "2025-04", series[0].Month)
	assert.Equal(t, "2026-03", series[11].Month)
}

func TestSummary_Degrades(t *testing.T) {
	svc := newService(&mockRepo{err: errors.New("connection reset")})

	sum := svc.Summary(context.Background(), doctorCaller(), 6)
	require.Len(t, sum.Monthly, 6)
	assert.Zero(t, sum.TotalEarnings)

	patient := &identity.Caller{UserID: uuid.New(), Role: identity.RolePatient, PatientID: uuid.New()}
	sum = svc.Summary(context.Background(), patient, 6)
	assert.Zero(t, sum.CompletedConsultations)
	assert.Len(t, sum.Monthly, 6)
}

func TestTransactions(t *testing.T) {
	repo := &mockRepo{transactions: []*Transaction{{ConsultationID: uuid.New(), Amount: 75}}}
	svc := newService(repo)
	ctx := context.Background()

	got := svc.Transactions(ctx, doctorCaller(), 0)
	assert.Len(t, got, 1)
	assert.Equal(t, defaultTransactionLimit, repo.gotLimit)

	svc.Transactions(ctx, doctorCaller(), 1000)
	assert.Equal(t, maxTransactionLimit, repo.gotLimit)

	assert.Empty(t, svc.Transactions(ctx, nil, 5))

	repo.err = errors.New("connection reset")
	got = svc.Transactions(ctx, doctorCaller(), 5)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
