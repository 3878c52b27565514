package analytics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/eventuais/eventuais/core"
	cachesvc "github.com/eventuais/eventuais/services/cache"
)

// stubRepo serves reports from memory; methods the tests do not need panic through the nil interface.
type stubRepo struct {
	Repository

	mu      sync.Mutex
	reports []Report
	runs    int
	touched map[string]time.Time
}

func (r *stubRepo) QueryReports(_ context.Context, filter ReportFilter, _ []core.DBOrdering, _ ...core.DBExecutor) ([]Report, error) {
	out := make([]Report, 0)
	for _, rep := range r.reports {
		if filter.ScheduleEnabled != nil && rep.ScheduleEnabled != *filter.ScheduleEnabled {
			continue
		}
		out = append(out, rep)
	}
	return out, nil
}

func (r *stubRepo) ReportData(_ context.Context, _ Report, _ ...core.DBExecutor) ([]map[string]interface{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs++
	return []map[string]interface{}{{"status": "active", "count": float64(r.runs)}}, nil
}

func (r *stubRepo) TouchReportRun(_ context.Context, id string, at time.Time, _ ...core.DBExecutor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.touched == nil {
		r.touched = make(map[string]time.Time)
	}
	r.touched[id] = at
	return nil
}

type recordingMailer struct {
	sent []*core.EmailMessage
}

func (m *recordingMailer) SendMessages(messages ...*core.EmailMessage) {
	m.sent = append(m.sent, messages...)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func newTestService(t *testing.T, repo *stubRepo) (*Service, *miniredis.Miniredis, *recordingMailer) {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := cachesvc.NewRedisCache(&redis.Options{Addr: mr.Addr()}, "test:")
	t.Cleanup(func() { _ = cache.Close() })

	conf := &core.Config{Redis: core.RedisConfig{ReportTTL: time.Minute}}
	validate := validator.New()
	core.InitValidators(validate, core.NewTranslator())
	mailer := new(recordingMailer)
	return NewService(nil, repo, cache, mailer, conf, validate, nopLogger{}), mr, mailer
}

func TestRunReportCache(t *testing.T) {
	ctx := context.Background()
	repo := new(stubRepo)
	svc, mr, _ := newTestService(t, repo)
	report := Report{ID: "8c1d2a36-8f3e-4c59-9a43-3f1f0b1f6c1e", Name: "Contacts by status", ReportType: TypeContact}

	first, err := svc.RunReport(ctx, report, false)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, 1, first.Results.Count)
	assert.Equal(t, report.Name, first.ReportName)
	assert.Contains(t, repo.touched, report.ID)
	assert.Equal(t, time.Minute, mr.TTL("test:"+reportCacheKey(report.ID)))

	t.Run("served from cache", func(t *testing.T) {
		repo.touched = nil
		second, err := svc.RunReport(ctx, report, false)
		require.NoError(t, err)
		assert.True(t, second.Cached)
		assert.Equal(t, 1, repo.runs)
		assert.Equal(t, float64(1), second.Results.Data[0]["count"])
		assert.Empty(t, repo.touched, "a cached run leaves last_run_at alone")
	})

	t.Run("refresh bypasses cache", func(t *testing.T) {
		third, err := svc.RunReport(ctx, report, true)
		require.NoError(t, err)
		assert.False(t, third.Cached)
		assert.Equal(t, 2, repo.runs)
		assert.Equal(t, float64(2), third.Results.Data[0]["count"])
	})

	t.Run("expired entry runs again", func(t *testing.T) {
		mr.FastForward(2 * time.Minute)
		fourth, err := svc.RunReport(ctx, report, false)
		require.NoError(t, err)
		assert.False(t, fourth.Cached)
		assert.Equal(t, 3, repo.runs)
	})

	t.Run("cache outage falls back to the database", func(t *testing.T) {
		mr.Close()
		fifth, err := svc.RunReport(ctx, report, false)
		require.NoError(t, err)
		assert.False(t, fifth.Cached)
		assert.Equal(t, 4, repo.runs)
	})
}

func TestSendScheduledReports(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 3, 7, 0, 0, 0, time.UTC)
	repo := &stubRepo{reports: []Report{
		{
			ID: "11111111-1111-4111-8111-111111111111", Name: "Daily sales", ReportType: TypeSales,
			ScheduleEnabled: true, ScheduleFrequency: FrequencyDaily,
			ScheduleRecipients: core.StringList{"boss@example.com", "not an email", "boss@example.com"},
			LastRunAt:          null.TimeFrom(now.Add(-25 * time.Hour)),
		},
		{
			ID: "22222222-2222-4222-8222-222222222222", Name: "Weekly support", ReportType: TypeSupport,
			ScheduleEnabled: true, ScheduleFrequency: FrequencyWeekly,
			ScheduleRecipients: core.StringList{"desk@example.com"},
			LastRunAt:          null.TimeFrom(now.Add(-2 * 24 * time.Hour)),
		},
		{
			ID: "33333333-3333-4333-8333-333333333333", Name: "No recipients", ReportType: TypeContact,
			ScheduleEnabled: true, ScheduleFrequency: FrequencyMonthly,
		},
		{
			ID: "44444444-4444-4444-8444-444444444444", Name: "Unscheduled", ReportType: TypeContact,
			ScheduleRecipients: core.StringList{"someone@example.com"},
		},
	}}
	svc, _, mailer := newTestService(t, repo)

	n, err := svc.SendScheduledReports(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, mailer.sent, 1)

	msg := mailer.sent[0]
	assert.Equal(t, "Scheduled report: Daily sales", msg.Subject)
	assert.Equal(t, scheduledReportTemplate, msg.TemplateName)
	require.Len(t, msg.To, 1)
	assert.Equal(t, "boss@example.com", msg.To[0].Address)

	data, ok := msg.TemplateData.(scheduledReportData)
	require.True(t, ok)
	assert.Equal(t, "Daily sales", data.ReportName)
	assert.Equal(t, 1, data.Count)
	assert.Len(t, data.Rows, 1)
	assert.Contains(t, repo.touched, "11111111-1111-4111-8111-111111111111")
}

func TestShareRequiresUsers(t *testing.T) {
	svc, _, _ := newTestService(t, new(stubRepo))
	owner := Actor{ID: "owner"}

	_, err := svc.ShareReport(context.Background(), owner, Report{CreatedByID: "owner"}, nil)
	assert.Equal(t, ErrUserIDsRequired, err)

	_, err = svc.ShareReport(context.Background(), Actor{ID: "other"}, Report{CreatedByID: "owner"}, []string{"x"})
	assert.Equal(t, core.ErrForbidden, err)

	_, err = svc.ShareDashboard(context.Background(), owner, Dashboard{CreatedByID: "owner"}, []string{})
	assert.Equal(t, ErrUserIDsRequired, err)
}
