package marketing

import (
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/eventuais/eventuais/core"
)

func TestApplyEvent(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	earlier := null.TimeFrom(now.Add(-time.Hour))

	tests := []struct {
		name        string
		recipient   CampaignRecipient
		event       string
		wantStatus  string
		wantCounter Counter
		wantFirst   bool
		wantErr     bool
	}{
		{"open pending", CampaignRecipient{Status: RecipientPending}, RecipientOpened, RecipientOpened, CounterOpen, true, false},
		{"open twice", CampaignRecipient{Status: RecipientOpened, OpenedAt: earlier}, RecipientOpened, RecipientOpened, CounterOpen, false, false},
		{"open after click keeps clicked", CampaignRecipient{Status: RecipientClicked}, RecipientOpened, RecipientClicked, CounterOpen, true, false},
		{"click sent", CampaignRecipient{Status: RecipientSent, SentAt: earlier}, RecipientClicked, RecipientClicked, CounterClick, true, false},
		{"sent", CampaignRecipient{Status: RecipientPending}, RecipientSent, RecipientSent, CounterSent, true, false},
		{"bounce", CampaignRecipient{Status: RecipientSent}, RecipientBounced, RecipientBounced, CounterBounce, true, false},
		{"bounce twice", CampaignRecipient{Status: RecipientBounced, BouncedAt: earlier}, RecipientBounced, RecipientBounced, CounterBounce, false, false},
		{"unsubscribe", CampaignRecipient{Status: RecipientOpened}, RecipientUnsubscribed, RecipientUnsubscribed, CounterUnsubscribe, true, false},
		{"bounce after unsubscribe", CampaignRecipient{Status: RecipientUnsubscribed, BouncedAt: earlier, UnsubscribedAt: earlier}, RecipientBounced, RecipientUnsubscribed, CounterBounce, false, false},
		{"unknown event", CampaignRecipient{Status: RecipientPending}, "forwarded", RecipientPending, "", false, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := tc.recipient
			counter, first, err := applyEvent(&r, tc.event, now)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantStatus, r.Status)
			assert.Equal(t, tc.wantCounter, counter)
			assert.Equal(t, tc.wantFirst, first)
		})
	}
}

func TestApplyEventStampsOnce(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	r := CampaignRecipient{Status: RecipientSent}

	_, _, err := applyEvent(&r, RecipientOpened, now)
	require.NoError(t, err)
	assert.Equal(t, now, r.OpenedAt.Time)

	_, _, err = applyEvent(&r, RecipientOpened, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, now, r.OpenedAt.Time)
}

func TestApplyEventCountsEachEventOnce(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	r := CampaignRecipient{Status: RecipientSent}

	bumps := map[Counter]int{}
	events := []string{RecipientBounced, RecipientUnsubscribed, RecipientBounced, RecipientUnsubscribed, RecipientBounced}
	for i, event := range events {
		counter, first, err := applyEvent(&r, event, now.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
		if first {
			bumps[counter]++
		}
	}
	assert.Equal(t, map[Counter]int{CounterBounce: 1, CounterUnsubscribe: 1}, bumps)
	assert.Equal(t, RecipientUnsubscribed, r.Status)
	assert.Equal(t, now, r.BouncedAt.Time)
	assert.Equal(t, now.Add(time.Minute), r.UnsubscribedAt.Time)
}

func TestValidUUIDs(t *testing.T) {
	ids := []string{
		"0d7bb9b8-7cf5-4ee3-9d7f-4bbdca0e9cd1",
		"not-a-uuid",
		"",
		"0d7bb9b8-7cf5-4ee3-9d7f-4bbdca0e9cd1",
		" 6a1f0d36-2a55-4bd1-8f62-0f3b7c7b9a11 ",
	}
	assert.Equal(t, []string{
		"0d7bb9b8-7cf5-4ee3-9d7f-4bbdca0e9cd1",
		"6a1f0d36-2a55-4bd1-8f62-0f3b7c7b9a11",
	}, validUUIDs(ids))
}

func TestNormalizeCriteria(t *testing.T) {
	s := Segment{}
	require.NoError(t, normalizeCriteria(&s))
	assert.JSONEq(t, `{"match": "all", "conditions": []}`, string(s.Criteria))

	s.Criteria = types.JSONText(`{"conditions": [{"field": "country", "op": "eq", "value": "Angola"}]}`)
	require.NoError(t, normalizeCriteria(&s))
	assert.JSONEq(t, `{"match": "all", "conditions": [{"field": "country", "op": "eq", "value": "Angola"}]}`, string(s.Criteria))

	s.Criteria = types.JSONText(`{"match": "some"}`)
	err := normalizeCriteria(&s)
	require.Error(t, err)
	vErr, ok := err.(*core.ValidationError)
	require.True(t, ok)
	assert.Equal(t, "criteria", vErr.Fields[0].Field)
}

func TestValidateCampaign(t *testing.T) {
	validate := validator.New()
	core.InitValidators(validate, core.NewTranslator())
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	c := Campaign{Name: "Spring", Status: StatusDraft, StartDate: null.TimeFrom(start)}

	c.EndDate = null.TimeFrom(start.Add(-time.Hour))
	err := validateCampaign(validate, c)
	require.Error(t, err)
	assert.Equal(t, "end_date", err.(*core.ValidationError).Fields[0].Field)

	c.EndDate = null.TimeFrom(start)
	assert.NoError(t, validateCampaign(validate, c))

	c.Status = "archived"
	assert.Error(t, validateCampaign(validate, c))
}

func TestCampaignSendable(t *testing.T) {
	for _, status := range []string{StatusDraft, StatusScheduled, StatusActive, StatusPaused} {
		assert.True(t, Campaign{Status: status}.Sendable(), status)
	}
	for _, status := range []string{StatusCompleted, StatusCancelled} {
		assert.False(t, Campaign{Status: status}.Sendable(), status)
	}
}
