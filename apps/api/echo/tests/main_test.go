package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	echoapi "github.com/eventuais/eventuais/apps/api/echo"
	"github.com/eventuais/eventuais/core"
	"github.com/eventuais/eventuais/core/analytics"
	"github.com/eventuais/eventuais/core/crm"
	"github.com/eventuais/eventuais/core/marketing"
	"github.com/eventuais/eventuais/core/project"
	"github.com/eventuais/eventuais/core/support"
	"github.com/eventuais/eventuais/core/user"
	cachesvc "github.com/eventuais/eventuais/services/cache"
	emailsvc "github.com/eventuais/eventuais/services/email"
	logsvc "github.com/eventuais/eventuais/services/logger"
	sqlxrepos "github.com/eventuais/eventuais/storage/database/sqlx"
	testutil "github.com/eventuais/eventuais/tests"
)

type outbox interface {
	core.EmailService
	Outbox() []core.EmailMessage
}

var (
	conf    *core.Config
	db      *sqlx.DB
	app     echoapi.Server
	usrRepo user.Repository
	mailSvc outbox

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
)

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		fmt.Println("skipping API integration tests in short mode")
		os.Exit(0)
	}
	os.Exit(run(m))
}

func run(m *testing.M) int {
	ctx := context.Background()

	var (
		terminate func()
		err       error
	)
	conf, terminate, err = testutil.StartPostgres(ctx)
	if err != nil {
		fmt.Printf("testutil.StartPostgres(): %v\n", err)
		return 1
	}
	defer terminate()

	if db, err = testutil.PrepareDB(ctx, conf); err != nil {
		fmt.Printf("testutil.PrepareDB(): %v\n", err)
		return 1
	}
	defer db.Close()

	mr, err := miniredis.Run()
	if err != nil {
		fmt.Printf("miniredis.Run(): %v\n", err)
		return 1
	}
	defer mr.Close()
	cache := cachesvc.NewRedisCache(&redis.Options{Addr: mr.Addr()}, conf.AppName)
	defer cache.Close()

	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	logger.Enable(false)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	core.ParseEmailTemplates(logger, conf)

	// set up repos
	usrRepo = sqlxrepos.NewUserRepository(db)
	crmRepo := sqlxrepos.NewCRMRepository(db)
	marketingRepo := sqlxrepos.NewMarketingRepository(db)
	supportRepo := sqlxrepos.NewSupportRepository(db)
	analyticsRepo := sqlxrepos.NewAnalyticsRepository(db)
	projectRepo := sqlxrepos.NewProjectRepository(db)

	// set up services
	mailSvc = emailsvc.NewConsoleServiceMock(conf, logger)
	crmSvc := crm.NewService(db, crmRepo, validate)

	app = echoapi.NewServer(echoapi.Deps{
		Conf:         conf,
		Logger:       logger,
		DB:           db,
		Cache:        cache,
		UserSvc:      user.NewService(usrRepo, mailSvc, validate, conf),
		CRMSvc:       crmSvc,
		MarketingSvc: marketing.NewService(db, marketingRepo, crmSvc, mailSvc, validate, logger),
		SupportSvc:   support.NewService(db, supportRepo, validate),
		AnalyticsSvc: analytics.NewService(db, analyticsRepo, cache, mailSvc, conf, validate, logger),
		ProjectSvc:   project.NewService(db, projectRepo, validate),
		Validate:     validate,
		Translator:   translator,
	})

	return m.Run()
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

// do serves a request and decodes the JSON response into out, when given.
func do(t *testing.T, method, path, token string, body interface{}, out interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var data []byte
	if body != nil {
		data = marchallObj(t, body)
	}
	req, rec := newAuthRequest(method, path, token, data)
	app.ServeHTTP(rec, req)
	if out != nil && rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("json.Unmarshal(%s): %v", rec.Body.String(), err)
		}
	}
	return rec
}

func getToken(t *testing.T, usr user.User) string {
	claims := echoapi.GetUserClaims(conf, usr)
	token, err := echoapi.GenerateToken(conf, claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, tt.wantCode, rec.Code, "code")
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func TestServer_homeAndHealth(t *testing.T) {
	req, rec := newRequest(http.MethodGet, "/")
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to "+conf.AppName+" API!", rec.Body.String())

	var got echoapi.HealthResponse
	rec = do(t, http.MethodGet, "/api/health", "", nil, &got)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, echoapi.HealthResponse{Status: "ok", DB: "ok", Cache: "ok"}, got)
}
