package tests

import (
	"encoding/json"
	"net/http"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventuais/eventuais/core/user"
	testutil "github.com/eventuais/eventuais/tests"
)

type object struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Level int    `json:"level"`
}

func ids(objs []object) []string {
	res := make([]string, 0, len(objs))
	for _, o := range objs {
		res = append(res, o.ID)
	}
	return res
}

// create posts body to path and returns the id of the created object.
func create(t *testing.T, path, token string, body echo.Map) string {
	t.Helper()
	var obj object
	rec := do(t, http.MethodPost, path, token, body, &obj)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NotEmpty(t, obj.ID)
	return obj.ID
}

func Test_crmApi_accountTree(t *testing.T) {
	testutil.ResetDB(t, db)

	sales := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleSales}, true)
	token := getToken(t, sales)

	root := create(t, "/api/crm/accounts", token, echo.Map{"name": "Holding", "assigned_to": sales.ID})
	child := create(t, "/api/crm/accounts", token, echo.Map{"name": "Subsidiary", "parent": root})
	grandchild := create(t, "/api/crm/accounts", token, echo.Map{"name": "Branch", "parent": child})

	t.Run("levels", func(t *testing.T) {
		var acc object
		rec := do(t, http.MethodGet, "/api/crm/accounts/"+grandchild, token, nil, &acc)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 2, acc.Level)
	})
	t.Run("children", func(t *testing.T) {
		var accs []object
		rec := do(t, http.MethodGet, "/api/crm/accounts/"+root+"/children", token, nil, &accs)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []string{child}, ids(accs))
	})
	t.Run("ancestors", func(t *testing.T) {
		var accs []object
		rec := do(t, http.MethodGet, "/api/crm/accounts/"+grandchild+"/ancestors", token, nil, &accs)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.ElementsMatch(t, []string{root, child}, ids(accs))
	})
	t.Run("descendants", func(t *testing.T) {
		var accs []object
		rec := do(t, http.MethodGet, "/api/crm/accounts/"+root+"/descendants", token, nil, &accs)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.ElementsMatch(t, []string{child, grandchild}, ids(accs))
	})
	t.Run("cycles are rejected", func(t *testing.T) {
		var errs map[string]string
		rec := do(t, http.MethodPatch, "/api/crm/accounts/"+root, token, echo.Map{"parent": grandchild}, &errs)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "an account cannot be its own ancestor", errs["parent"])

		rec = do(t, http.MethodPatch, "/api/crm/accounts/"+root, token, echo.Map{"parent": root}, &errs)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
	t.Run("unknown parent", func(t *testing.T) {
		var errs map[string]string
		rec := do(t, http.MethodPost, "/api/crm/accounts", token, echo.Map{"name": "Orphan", "parent": sales.ID}, &errs)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, errs, "parent")
	})
	t.Run("my accounts", func(t *testing.T) {
		var accs []object
		rec := do(t, http.MethodGet, "/api/crm/accounts/my_accounts", token, nil, &accs)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []string{root}, ids(accs))
	})
	t.Run("unknown account", func(t *testing.T) {
		rec := do(t, http.MethodGet, "/api/crm/accounts/lol", token, nil, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func Test_crmApi_contacts(t *testing.T) {
	testutil.ResetDB(t, db)

	sales := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleSales}, true)
	token := getToken(t, sales)

	acc := create(t, "/api/crm/accounts", token, echo.Map{"name": "Acme"})
	boss := create(t, "/api/crm/contacts", token, echo.Map{"first_name": "Ada", "last_name": "Boss", "account": acc, "email": "ADA@acme.test"})
	create(t, "/api/crm/contacts", token, echo.Map{"first_name": "Bob", "last_name": "Clerk", "account": acc, "parent": boss})

	t.Run("invalid status", func(t *testing.T) {
		var errs map[string]string
		rec := do(t, http.MethodPost, "/api/crm/contacts", token, echo.Map{"first_name": "C", "last_name": "D", "status": "lol"}, &errs)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, errs, "status")
	})
	t.Run("account contacts", func(t *testing.T) {
		var contacts []object
		rec := do(t, http.MethodGet, "/api/crm/accounts/"+acc+"/contacts", token, nil, &contacts)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, contacts, 2)
	})
	t.Run("subordinates", func(t *testing.T) {
		var contacts []struct {
			FullName string `json:"full_name"`
			Email    string `json:"email"`
		}
		rec := do(t, http.MethodGet, "/api/crm/contacts/"+boss+"/subordinates", token, nil, &contacts)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, contacts, 1)
		assert.Equal(t, "Bob Clerk", contacts[0].FullName)
	})
	t.Run("search", func(t *testing.T) {
		var contacts []struct {
			Email string `json:"email"`
		}
		rec := do(t, http.MethodGet, "/api/crm/contacts?search=ada", token, nil, &contacts)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, contacts, 1)
		assert.Equal(t, "ada@acme.test", contacts[0].Email)
	})
	t.Run("activities on a contact", func(t *testing.T) {
		var cts []struct {
			ID    int    `json:"id"`
			Model string `json:"model"`
		}
		rec := do(t, http.MethodGet, "/api/crm/content-types/crm_models", token, nil, &cts)
		require.Equal(t, http.StatusOK, rec.Code)
		var contactType int
		for _, c := range cts {
			if c.Model == "contact" {
				contactType = c.ID
			}
		}
		require.NotZero(t, contactType)

		var ct object
		rec = do(t, http.MethodPost, "/api/crm/activities", token, echo.Map{
			"content_type": contactType, "object_id": boss, "activity_type": "call", "subject": "Intro call",
			"start_date": "2024-05-01T10:00:00Z", "performed_by": sales.ID,
		}, &ct)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var acts []object
		rec = do(t, http.MethodGet, "/api/crm/contacts/"+boss+"/activities", token, nil, &acts)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []string{ct.ID}, ids(acts))
	})
}

func Test_crmApi_customFields(t *testing.T) {
	testutil.ResetDB(t, db)

	sales := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleSales}, true)
	token := getToken(t, sales)

	const accountType, contactType = 1, 2
	acc := create(t, "/api/crm/accounts", token, echo.Map{"name": "Acme"})
	size := create(t, "/api/crm/custom-fields", token, echo.Map{"name": "Size", "field_type": "number", "content_type": accountType})
	create(t, "/api/crm/custom-fields", token, echo.Map{"name": "Nickname", "field_type": "text", "content_type": contactType})
	create(t, "/api/crm/custom-field-values", token, echo.Map{
		"field": size, "content_type": accountType, "object_id": acc, "value": "250",
	})

	t.Run("for model", func(t *testing.T) {
		tests := []httpTest{
			{
				name: "model required", path: "/api/crm/custom-fields/for_model", wantCode: http.StatusBadRequest,
				wantData: marchallObj(t, httpErr{Error: "model parameter is required"}),
			},
			{
				name: "unknown model", path: "/api/crm/custom-fields/for_model?model=invoice", wantCode: http.StatusNotFound,
				wantData: marchallObj(t, httpErr{Error: "Model invoice not found in app crm"}),
			},
			{
				name: "unknown app", path: "/api/crm/custom-fields/for_model?model=account&app_label=billing", wantCode: http.StatusNotFound,
				wantData: marchallObj(t, httpErr{Error: "Model account not found in app billing"}),
			},
			{name: "account", path: "/api/crm/custom-fields/for_model?model=account", wantCode: http.StatusOK},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				req, rec := newAuthRequest(http.MethodGet, tt.path, token)
				app.ServeHTTP(rec, req)
				checkCodeAndData(t, tt, rec)
			})
		}

		var fields []object
		rec := do(t, http.MethodGet, "/api/crm/custom-fields/for_model?model=account", token, nil, &fields)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []string{size}, ids(fields))
	})

	t.Run("values for object", func(t *testing.T) {
		missing := marchallObj(t, httpErr{Error: "object_id and content_type_id parameters are required"})
		tests := []httpTest{
			{name: "no params", path: "/api/crm/custom-field-values/for_object", wantCode: http.StatusBadRequest, wantData: missing},
			{name: "no content type", path: "/api/crm/custom-field-values/for_object?object_id=" + acc, wantCode: http.StatusBadRequest, wantData: missing},
			{name: "no object", path: "/api/crm/custom-field-values/for_object?content_type_id=1", wantCode: http.StatusBadRequest, wantData: missing},
			{
				name: "content type not a number", path: "/api/crm/custom-field-values/for_object?content_type_id=lol&object_id=" + acc,
				wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"content_type_id": "enter a whole number"}),
			},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				req, rec := newAuthRequest(http.MethodGet, tt.path, token)
				app.ServeHTTP(rec, req)
				checkCodeAndData(t, tt, rec)
			})
		}

		var vals []struct {
			Value     string `json:"value"`
			FieldName string `json:"field_name"`
		}
		rec := do(t, http.MethodGet, "/api/crm/custom-field-values/for_object?content_type_id=1&object_id="+acc, token, nil, &vals)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, vals, 1)
		assert.Equal(t, "250", vals[0].Value)
		assert.Equal(t, "Size", vals[0].FieldName)
	})
}

func Test_crmApi_socialProfiles(t *testing.T) {
	testutil.ResetDB(t, db)

	sales := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleSales}, true)
	token := getToken(t, sales)

	const accountType, contactType = 1, 2
	acc := create(t, "/api/crm/accounts", token, echo.Map{"name": "Acme"})
	ada := create(t, "/api/crm/contacts", token, echo.Map{"first_name": "Ada", "last_name": "L"})
	profile := func(ct int, objectID, platform string) echo.Map {
		return echo.Map{"content_type": ct, "object_id": objectID, "platform": platform, "url": "https://example.com/acme"}
	}

	create(t, "/api/crm/social-profiles", token, profile(accountType, acc, "linkedin"))

	tests := []struct {
		name     string
		body     echo.Map
		wantCode int
		wantErrs map[string]string
	}{
		{
			name: "same platform on same object", body: profile(accountType, acc, "linkedin"), wantCode: http.StatusBadRequest,
			wantErrs: map[string]string{"platform": "an object with this platform already exists"},
		},
		{name: "other platform", body: profile(accountType, acc, "github"), wantCode: http.StatusCreated},
		{name: "same platform on another object", body: profile(contactType, ada, "linkedin"), wantCode: http.StatusCreated},
		{
			name: "unknown platform", body: profile(accountType, acc, "myspace"), wantCode: http.StatusBadRequest,
			wantErrs: map[string]string{"platform": "myspace is not a valid choice"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var errs map[string]string
			rec := do(t, http.MethodPost, "/api/crm/social-profiles", token, tt.body, nil)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantErrs != nil {
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errs))
				assert.Equal(t, tt.wantErrs, errs)
			}
		})
	}

	var profiles []object
	rec := do(t, http.MethodGet, "/api/crm/social-profiles?object_id="+acc, token, nil, &profiles)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, profiles, 2)
}

func Test_crmApi_pipeline(t *testing.T) {
	testutil.ResetDB(t, db)

	sales := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleSales}, true)
	token := getToken(t, sales)

	acc := create(t, "/api/crm/accounts", token, echo.Map{"name": "Acme"})
	for _, o := range []struct {
		stage  string
		amount string
	}{
		{"closed_won", "500.00"}, {"negotiation", "300.00"}, {"prospecting", "100.00"}, {"prospecting", "200.00"},
	} {
		create(t, "/api/crm/opportunities", token, echo.Map{
			"name": "Deal " + o.stage, "account": acc, "stage": o.stage, "amount": o.amount, "expected_close_date": "2024-12-31",
		})
	}

	var stages []struct {
		Stage       string `json:"stage"`
		Count       int    `json:"count"`
		TotalAmount string `json:"total_amount"`
	}
	rec := do(t, http.MethodGet, "/api/crm/opportunities/pipeline", token, nil, &stages)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, stages, 3)
	assert.Equal(t, "prospecting", stages[0].Stage)
	assert.Equal(t, 2, stages[0].Count)
	assert.Equal(t, "300.00", stages[0].TotalAmount)
	assert.Equal(t, "negotiation", stages[1].Stage)
	assert.Equal(t, "closed_won", stages[2].Stage)
}

func Test_crmApi_concurrentReparenting(t *testing.T) {
	testutil.ResetDB(t, db)

	sales := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleSales}, true)
	token := getToken(t, sales)

	for i := 0; i < 5; i++ {
		a := create(t, "/api/crm/accounts", token, echo.Map{"name": "A"})
		b := create(t, "/api/crm/accounts", token, echo.Map{"name": "B"})

		var wg sync.WaitGroup
		codes := make([]int, 2)
		for j, move := range [][2]string{{a, b}, {b, a}} {
			body := marchallObj(t, echo.Map{"parent": move[1]})
			wg.Add(1)
			go func(j int, id string, body []byte) {
				defer wg.Done()
				req, rec := newAuthRequest(http.MethodPatch, "/api/crm/accounts/"+id, token, body)
				app.ServeHTTP(rec, req)
				codes[j] = rec.Code
			}(j, move[0], body)
		}
		wg.Wait()

		assert.ElementsMatch(t, []int{http.StatusOK, http.StatusBadRequest}, codes)

		var accA, accB struct {
			Parent *string `json:"parent"`
		}
		do(t, http.MethodGet, "/api/crm/accounts/"+a, token, nil, &accA)
		do(t, http.MethodGet, "/api/crm/accounts/"+b, token, nil, &accB)
		assert.False(t, accA.Parent != nil && accB.Parent != nil, "accounts %s and %s are each other's parent", a, b)
	}
}
