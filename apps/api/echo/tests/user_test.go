package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/mail"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/eventuais/eventuais/apps/api/echo"
	"github.com/eventuais/eventuais/core/user"
	testutil "github.com/eventuais/eventuais/tests"
)

func Test_userApi_userQuery(t *testing.T) {
	testutil.ResetDB(t, db)

	path := func(search, ordering string, createdFrom, createdTo time.Time, isActive *bool, roles ...string) string {
		v := make(url.Values)
		if search != "" {
			v.Add("search", search)
		}
		if ordering != "" {
			v.Add("ordering", ordering)
		}
		if isActive != nil {
			v.Add("is_active", strconv.FormatBool(*isActive))
		}
		if !createdFrom.IsZero() {
			v.Add("created_from", createdFrom.Format(time.RFC3339))
		}
		if !createdTo.IsZero() {
			v.Add("created_to", createdTo.Format(time.RFC3339))
		}
		for _, r := range roles {
			v.Add("role", r)
		}
		return "/api/users?" + v.Encode()
	}
	bPtr := func(b bool) *bool { return &b }

	base := time.Now().Truncate(time.Second)
	t1 := base.Add(1 * time.Hour)
	t2 := base.Add(2 * time.Hour)
	t3 := base.Add(3 * time.Hour)
	t4 := base.Add(4 * time.Hour)
	t5 := base.Add(5 * time.Hour)

	usr2 := testutil.CreateUser(t, usrRepo, "King", "user02", "king@test.cd", "", nil, true, base)
	sales := testutil.CreateUser(t, usrRepo, "Hero", "hero", "user3@test.cd", "", []string{user.RoleSales}, true, base.Add(10*time.Minute))
	owner := testutil.CreateUser(t, usrRepo, "Owner", "owner", "owner@test.cd", "", []string{user.RoleAdminOwner}, true, base.Add(20*time.Minute))
	naughty := testutil.CreateUser(t, usrRepo, "N Dog", "ndog", "ndog@test.cd", "", []string{user.RoleSales}, false, base.Add(30*time.Minute))
	usr1 := testutil.CreateUser(t, usrRepo, "User", "awe", "awe@test.cd", "", nil, true, t1)
	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true, t2)
	marketer := testutil.CreateUser(t, usrRepo, "Marketer", "marketer", "mark@test.cd", "", []string{user.RoleMarketing}, true, t3)

	adminToken := getToken(t, admin)
	empty := marchallList(t)

	tests := []httpTest{
		{name: "Auth required", path: "/api/users", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Admin required", path: "/api/users", token: getToken(t, sales), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "Get all", path: "/api/users", token: adminToken,
			wantData: marchallList(t, usr2, sales, owner, naughty, usr1, admin, marketer),
		},
		// filtering
		{name: "search (unknown)", path: path("lol", "", time.Time{}, time.Time{}, nil), token: adminToken, wantData: empty},
		{
			name: "search=USE", path: path("USE", "", time.Time{}, time.Time{}, nil),
			token: adminToken, wantData: marchallList(t, usr2, sales, usr1),
		},
		{name: "role (unknown)", path: path("", "", time.Time{}, time.Time{}, nil, "lol"), token: adminToken, wantData: empty},
		{
			name: "role=admin:", path: path("", "", time.Time{}, time.Time{}, nil, user.RoleAdmin),
			token: adminToken, wantData: marchallList(t, owner, admin),
		},
		{
			name: "role=sales:", path: path("", "", time.Time{}, time.Time{}, nil, user.RoleSales),
			token: adminToken, wantData: marchallList(t, sales, naughty),
		},
		{
			name: "role=sales:,marketing:", path: path("", "", time.Time{}, time.Time{}, nil, user.RoleSales, user.RoleMarketing),
			token: adminToken, wantData: marchallList(t, sales, naughty, marketer),
		},
		{
			name: "is_active=true", path: path("", "", time.Time{}, time.Time{}, bPtr(true)),
			token: adminToken, wantData: marchallList(t, usr2, sales, owner, usr1, admin, marketer),
		},
		{name: "is_active=false", path: path("", "", time.Time{}, time.Time{}, bPtr(false)), token: adminToken, wantData: marchallList(t, naughty)},
		{
			name: "created_from (UTC)", path: path("", "", t1.UTC(), time.Time{}, nil),
			token: adminToken, wantData: marchallList(t, usr1, admin, marketer),
		},
		{
			name: "created_from (curr TZ)", path: path("", "", t1, time.Time{}, nil),
			token: adminToken, wantData: marchallList(t, usr1, admin, marketer),
		},
		{
			name: "created_to (curr TZ)", path: path("", "", time.Time{}, t2, nil),
			token: adminToken, wantData: marchallList(t, usr2, sales, owner, naughty, usr1, admin),
		},
		{name: "created_from - created_to (empty)", path: path("", "", t4, t5, nil), token: adminToken, wantData: empty},
		{name: "created_from - created_to (found)", path: path("", "", t1, t2, nil), token: adminToken, wantData: marchallList(t, usr1, admin)},
		{name: "all combo (empty)", path: path("USE", "", t1, t5, bPtr(true), user.RoleAdminOwner), token: adminToken, wantData: empty},
		{
			name: "all combo (found)", path: path("mark", "", t1, t5, bPtr(true), user.RoleMarketing),
			token: adminToken, wantData: marchallList(t, marketer),
		},
		// ordering
		{
			name: "order by -created_at", path: path("", "-created_at", time.Time{}, time.Time{}, nil), token: adminToken,
			wantData: marchallList(t, marketer, admin, usr1, naughty, owner, sales, usr2),
		},
		{
			name: "order by is_active,-name", path: path("", "is_active,-name", time.Time{}, time.Time{}, nil), token: adminToken,
			wantData: marchallList(t, naughty, usr1, owner, marketer, usr2, sales, admin),
		},
		{
			name: "order by unknown field is ignored", path: path("", "password_hash", time.Time{}, time.Time{}, nil), token: adminToken,
			wantData: marchallList(t, usr2, sales, owner, naughty, usr1, admin, marketer),
		},
		// filtering & ordering
		{
			name: "filtering & ordering", path: path("", "name", time.Time{}, time.Time{}, nil, user.RoleSales, user.RoleMarketing), token: adminToken,
			wantData: marchallList(t, sales, marketer, naughty),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_userLogin(t *testing.T) {
	testutil.ResetDB(t, db)

	pwd := "LolC@t123"
	sales := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", pwd, []string{user.RoleSales}, true)
	testutil.CreateUser(t, usrRepo, "N Dog", "ndog", "ndog@test.cd", pwd, []string{user.RoleSales}, false)

	tests := []struct {
		name     string
		body     echoapi.LoginRequest
		wantCode int
		wantErr  string
	}{
		{name: "unknown user", body: echoapi.LoginRequest{Username: "lol", Password: pwd}, wantCode: http.StatusBadRequest, wantErr: "authentication failed"},
		{name: "wrong password", body: echoapi.LoginRequest{Username: "hero", Password: "lol"}, wantCode: http.StatusBadRequest, wantErr: "authentication failed"},
		{name: "inactive user", body: echoapi.LoginRequest{Username: "ndog", Password: pwd}, wantCode: http.StatusForbidden, wantErr: "account deactivated"},
		{name: "by username", body: echoapi.LoginRequest{Username: "HERO ", Password: pwd}, wantCode: http.StatusOK},
		{name: "by email", body: echoapi.LoginRequest{Username: sales.Email, Password: pwd}, wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.wantCode != http.StatusOK {
				var herr httpErr
				rec := do(t, http.MethodPost, "/api/users/login", "", tt.body, &herr)
				assert.Equal(t, tt.wantCode, rec.Code)
				assert.Equal(t, tt.wantErr, herr.Error)
				return
			}

			var resp echoapi.LoginResponse
			rec := do(t, http.MethodPost, "/api/users/login", "", tt.body, &resp)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			require.NotEmpty(t, resp.Token)

			var me user.User
			rec = do(t, http.MethodGet, "/api/users/me", resp.Token, nil, &me)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, sales.ID, me.ID)
			assert.True(t, me.LastLogin.Valid, "last_login is set on login")
		})
	}
}

func Test_userApi_userUpdate(t *testing.T) {
	testutil.ResetDB(t, db)

	sales := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleSales}, true)
	other := testutil.CreateUser(t, usrRepo, "Other", "other", "other@test.cd", "", []string{user.RoleSupport}, true)
	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	salesToken := getToken(t, sales)
	adminToken := getToken(t, admin)

	t.Run("users only see themselves", func(t *testing.T) {
		rec := do(t, http.MethodGet, "/api/users/"+other.ID, salesToken, nil, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
	t.Run("name can be changed by the user", func(t *testing.T) {
		var got user.User
		rec := do(t, http.MethodPatch, "/api/users/"+sales.ID, salesToken, user.UpdateUser{Name: "Super Hero"}, &got)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "Super Hero", got.Name)
		assert.Equal(t, sales.Roles, got.Roles)
	})
	t.Run("roles can only be changed by admins", func(t *testing.T) {
		rec := do(t, http.MethodPatch, "/api/users/"+sales.ID, salesToken, user.UpdateUser{Roles: []string{user.RoleAdmin}}, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
	t.Run("admins cannot grant roles above their own", func(t *testing.T) {
		var errs map[string]string
		rec := do(t, http.MethodPatch, "/api/users/"+sales.ID, adminToken, user.UpdateUser{Roles: []string{user.RoleAdminOwner}}, &errs)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, errs, "roles")
	})
	t.Run("admins cannot delete themselves", func(t *testing.T) {
		rec := do(t, http.MethodDelete, "/api/users/"+admin.ID, adminToken, nil, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
	t.Run("admins delete users", func(t *testing.T) {
		rec := do(t, http.MethodDelete, "/api/users/"+other.ID, adminToken, nil, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		rec = do(t, http.MethodGet, "/api/users/"+other.ID, adminToken, nil, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func Test_userApi_userRefreshToken(t *testing.T) {
	testutil.ResetDB(t, db)

	naughty := testutil.CreateUser(t, usrRepo, "N Dog", "ndog", "ndog@test.cd", "", []string{user.RoleSales}, false) // 😂
	sales := testutil.CreateUser(t, usrRepo, "Hero", "hero", "user3@test.cd", "", []string{user.RoleSales}, true)

	unrefreshableClaims := echoapi.GetUserClaims(conf, sales)
	unrefreshableClaims.OrigIssuedAt = time.Now().Add(-2 * conf.Server.JWTRefreshExpirationDelta).Unix() // older than threshold
	unrefreshableToken, err := echoapi.GenerateToken(conf, unrefreshableClaims)
	if err != nil {
		t.Fatalf("GenerateToken(): %v", err)
	}

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Inactive user not allowed", token: getToken(t, naughty), wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"})},
		{name: "Refresh period expired", token: unrefreshableToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "refresh has expired"})},
		{name: "Token refreshed", token: getToken(t, sales), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/api/users/token-refresh"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)

			// cannot guess new token.. just check that it's not empty
			if tt.wantCode == http.StatusOK {
				if rec.Code != tt.wantCode {
					t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
				}
				var respData echoapi.LoginResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
					t.Errorf("json.Unmarshal() failed! err %v", err)
				}
				if respData.Token == "" {
					t.Error("failed! empty token")
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_userResetPassword(t *testing.T) {
	testutil.ResetDB(t, db)

	sales := testutil.CreateUser(t, usrRepo, "Hero", "hero", "user3@test.cd", "", []string{user.RoleSales}, true)
	naughty := testutil.CreateUser(t, usrRepo, "N Dog", "ndog", "ndog@test.cd", "", []string{user.RoleSales}, false)
	successData := marchallObj(t, echoapi.SuccessResponse{Success: "If the email address supplied is associated with an active account on this system, " +
		"an email will arrive in your inbox shortly with instructions to reset your password."})

	pathRegex := regexp.MustCompile("/password-reset/.+/.+")

	type extraTest struct {
		emailSent bool
		to        mail.Address
	}
	tests := []httpTest{
		{name: "required fields", wantCode: http.StatusBadRequest, wantData: marchallObj(t, echoapi.PasswordResetRequest{Email: "this field is required"})},
		{
			name: "invalid email", wantCode: http.StatusBadRequest, body: marchallObj(t, echoapi.PasswordResetRequest{Email: "lol"}),
			wantData: marchallObj(t, echoapi.PasswordResetRequest{Email: "email must be a valid email address"}),
		},
		{
			name: "unknown email", wantCode: http.StatusOK, body: marchallObj(t, echoapi.PasswordResetRequest{Email: "lol@test.com"}),
			wantData: successData, extra: extraTest{emailSent: false},
		},
		{
			name: "inactive user", wantCode: http.StatusOK, body: marchallObj(t, echoapi.PasswordResetRequest{Email: naughty.Email}),
			wantData: successData, extra: extraTest{emailSent: false},
		},
		{
			name: "know email", wantCode: http.StatusOK, body: marchallObj(t, echoapi.PasswordResetRequest{Email: strings.ToUpper(sales.Email)}),
			wantData: successData, extra: extraTest{emailSent: true, to: mail.Address{Name: sales.Name, Address: sales.Email}},
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/api/users/password-reset"

		t.Run(tt.name, func(t *testing.T) {
			sentBefore := len(mailSvc.Outbox())

			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			extra, ok := tt.extra.(extraTest)
			if !ok {
				return
			}
			sent := mailSvc.Outbox()[sentBefore:]
			if !extra.emailSent {
				assert.Empty(t, sent)
				return
			}
			require.Len(t, sent, 1)
			msg := sent[0]
			assert.Equal(t, extra.to, msg.To[0])
			assert.Contains(t, msg.TextContent, extra.to.Name)
			assert.Contains(t, msg.HTMLContent, extra.to.Name)
			assert.Regexp(t, pathRegex, msg.TextContent)
			assert.Regexp(t, pathRegex, msg.HTMLContent)
		})
	}
}

func Test_userApi_userConfirmPasswordReset(t *testing.T) {
	testutil.ResetDB(t, db)

	sales := testutil.CreateUser(t, usrRepo, "Hero", "hero", "user3@test.cd", "lol", []string{user.RoleSales}, true)

	// the reset link is only ever handed out by mail
	sentBefore := len(mailSvc.Outbox())
	rec := do(t, http.MethodPost, "/api/users/password-reset", "", echoapi.PasswordResetRequest{Email: sales.Email}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sent := mailSvc.Outbox()[sentBefore:]
	require.Len(t, sent, 1)
	data, ok := sent[0].TemplateData.(map[string]interface{})
	require.True(t, ok)
	validUID, _ := data["UID"].(string)
	validToken, _ := data["Token"].(string)
	require.NotEmpty(t, validUID)
	require.NotEmpty(t, validToken)

	invalidLink := marchallObj(t, httpErr{Error: "invalid or expired password reset link"})
	reqMsg := "this field is required"
	tests := []httpTest{
		{
			name: "required fields", wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, user.ResetUserPassword{Token: reqMsg, UID: reqMsg, Password: "password must contain at least 8 characters", PasswordConfirm: reqMsg}),
		},
		{
			name: "invalid pwd: min len", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: "lol", UID: "lol", Password: "lol", PasswordConfirm: "lol"}),
			wantData: marchallObj(t, user.ResetUserPassword{Password: "password must contain at least 8 characters"}),
		},
		{
			name: "invalid pwd: no whitespace", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: "lol", UID: "lol", Password: "l o loll", PasswordConfirm: "l o loll"}),
			wantData: marchallObj(t, user.ResetUserPassword{Password: "password must not contain whitespace"}),
		},
		{
			name: "invalid pwd: not all numeric", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: "lol", UID: "lol", Password: "12345678", PasswordConfirm: "12345678"}),
			wantData: marchallObj(t, user.ResetUserPassword{Password: "password cannot be entirely numeric"}),
		},
		{
			name: "invalid pwd: complexity", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: "lol", UID: "lol", Password: "lol12345", PasswordConfirm: "lol12345"}),
			wantData: marchallObj(t, user.ResetUserPassword{Password: "password must contain at least 1 uppercase character, 1 lowercase character, 1 digit and 1 special character"}),
		},
		{
			name: "PasswordConfirm must = Password", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: "lol", UID: "lol", Password: "LolC@t123", PasswordConfirm: "lol"}),
			wantData: marchallObj(t, user.ResetUserPassword{PasswordConfirm: "password_confirm must be equal to Password"}),
		},
		{
			name: "invalid uid", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: "lol", UID: "bG9s", Password: "LolC@t123", PasswordConfirm: "LolC@t123"}),
			wantData: invalidLink,
		},
		{
			name: "invalid token", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: "HE4TS-sigsig-sig", UID: validUID, Password: "LolC@t123", PasswordConfirm: "LolC@t123"}),
			wantData: invalidLink,
		},
		{
			name: "valid token", wantCode: http.StatusOK,
			body:     marchallObj(t, user.ResetUserPassword{Token: validToken, UID: validUID, Password: "LolC@t123", PasswordConfirm: "LolC@t123"}),
			wantData: marchallObj(t, echoapi.SuccessResponse{Success: "Password has been reset with the new password."}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/api/users/password-reset-confirm"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusOK {
				refreshed, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: sales.ID})
				if err != nil {
					t.Fatalf("GetUser() failed, %v", err)
				}
				if bytes.Equal(refreshed.PasswordHash, sales.PasswordHash) {
					t.Fatalf("failed to update new password")
				}
			}
		})
	}
}
