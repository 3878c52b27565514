package support

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/volatiletech/null/v8"
)

func TestSetStatus(t *testing.T) {
	now := time.Date(2024, 3, 10, 8, 30, 0, 0, time.UTC)
	earlier := now.Add(-48 * time.Hour)

	tests := []struct {
		name           string
		ticket         SupportTicket
		status         string
		wantResolvedAt null.Time
	}{
		{"resolve open ticket", SupportTicket{Status: StatusOpen}, StatusResolved, null.TimeFrom(now)},
		{"resolve again keeps stamp", SupportTicket{Status: StatusResolved, ResolvedAt: null.TimeFrom(earlier)}, StatusResolved, null.TimeFrom(earlier)},
		{"close", SupportTicket{Status: StatusOpen}, StatusClosed, null.Time{}},
		{"reopen keeps stamp", SupportTicket{Status: StatusResolved, ResolvedAt: null.TimeFrom(earlier)}, StatusOpen, null.TimeFrom(earlier)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tk := tc.ticket
			tk.setStatus(tc.status, now)
			assert.Equal(t, tc.status, tk.Status)
			assert.Equal(t, tc.wantResolvedAt, tk.ResolvedAt)
		})
	}
}

func TestIsOpen(t *testing.T) {
	assert.True(t, SupportTicket{Status: StatusNew}.IsOpen())
	assert.True(t, SupportTicket{Status: StatusPending}.IsOpen())
	assert.False(t, SupportTicket{Status: StatusResolved}.IsOpen())
	assert.False(t, SupportTicket{Status: StatusClosed}.IsOpen())
}

func TestSenderName(t *testing.T) {
	assert.Equal(t, "Customer", TicketMessage{IsCustomer: true}.SenderName())
	assert.Equal(t, "Ana", TicketMessage{SenderUserName: null.StringFrom("Ana")}.SenderName())
	assert.Equal(t, "Unknown", TicketMessage{}.SenderName())
}
