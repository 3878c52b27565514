package tests

import (
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventuais/eventuais/core/support"
	"github.com/eventuais/eventuais/core/user"
	testutil "github.com/eventuais/eventuais/tests"
)

func Test_supportApi_tickets(t *testing.T) {
	testutil.ResetDB(t, db)

	agent := testutil.CreateUser(t, usrRepo, "Agent", "agent", "agent@test.cd", "", []string{user.RoleSupport}, true)
	token := getToken(t, agent)

	acc := create(t, "/api/crm/accounts", token, echo.Map{"name": "Acme"})
	contact := create(t, "/api/crm/contacts", token, echo.Map{"first_name": "Ada", "last_name": "L", "account": acc})

	var ticket support.SupportTicket
	rec := do(t, http.MethodPost, "/api/crm/support-tickets", token, echo.Map{
		"subject": "Broken stage lights", "description": "They flicker", "priority": "high",
		"contact": contact, "account": acc, "assigned_to": agent.ID,
	}, &ticket)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, support.StatusNew, ticket.Status)
	path := "/api/crm/support-tickets/" + ticket.ID

	tests := []httpTest{
		{
			name: "empty message", path: path + "/add_message", body: marchallObj(t, echo.Map{"content": "  "}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "Message content is required"}),
		},
		{name: "agent message", path: path + "/add_message", body: marchallObj(t, echo.Map{"content": "Looking into it"}), wantCode: http.StatusCreated},
		{
			name: "customer message", path: path + "/add_message", body: marchallObj(t, echo.Map{"content": "Thanks", "is_customer": true}),
			wantCode: http.StatusCreated,
		},
		{
			name: "missing status", path: path + "/change_status", body: marchallObj(t, echo.Map{}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "Status is required"}),
		},
		{
			name: "invalid status", path: path + "/change_status", body: marchallObj(t, echo.Map{"status": "lol"}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "Invalid status value"}),
		},
		{name: "resolve", path: path + "/change_status", body: marchallObj(t, echo.Map{"status": support.StatusResolved}), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.token = token

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("messages", func(t *testing.T) {
		var msgs []support.TicketMessage
		rec := do(t, http.MethodGet, path+"/messages", token, nil, &msgs)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, msgs, 2)
		for _, m := range msgs {
			if m.IsCustomer {
				assert.False(t, m.SenderID.Valid, "customer messages have no sender")
			} else {
				assert.Equal(t, agent.ID, m.SenderID.String)
			}
		}
	})
	t.Run("resolved tickets keep their resolution time", func(t *testing.T) {
		var got support.SupportTicket
		rec := do(t, http.MethodGet, path, token, nil, &got)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, support.StatusResolved, got.Status)
		require.True(t, got.ResolvedAt.Valid)
		resolvedAt := got.ResolvedAt.Time

		rec = do(t, http.MethodPost, path+"/change_status", token, echo.Map{"status": support.StatusResolved}, &got)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, resolvedAt.Equal(got.ResolvedAt.Time))
	})
	t.Run("my tickets", func(t *testing.T) {
		var tickets []support.SupportTicket
		rec := do(t, http.MethodGet, "/api/crm/support-tickets/my_tickets", token, nil, &tickets)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, tickets, 1)
		assert.Equal(t, ticket.ID, tickets[0].ID)

		other := testutil.CreateUser(t, usrRepo, "Other", "other", "other@test.cd", "", []string{user.RoleSupport}, true)
		rec = do(t, http.MethodGet, "/api/crm/support-tickets/my_tickets", getToken(t, other), nil, &tickets)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, tickets)
	})
}
