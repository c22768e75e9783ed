package echoapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/trezcool/masomo-curriculum/apps/api/echo"
	"github.com/trezcool/masomo-curriculum/core"
	"github.com/trezcool/masomo-curriculum/core/access"
	"github.com/trezcool/masomo-curriculum/core/revision"
	"github.com/trezcool/masomo-curriculum/services/email"
	"github.com/trezcool/masomo-curriculum/storage/database/inmem"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testApp struct {
	server  *echoapi.Server
	conf    *core.Config
	repo    revision.Repository
	mailSvc *emailsvc.ConsoleServiceMock
}

func setup(t *testing.T) testApp {
	conf := core.NewTestConfig()

	// set up DB & repos
	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open() failed: %v", err)
	}
	repo := inmemdb.NewRevisionRepository(db)

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	policy := access.NewDefaultPolicy()
	revisionSvc := revision.NewService(repo, policy, mailSvc, core.NopLogger{}, conf)

	// set up server
	return testApp{
		server:  echoapi.NewServer(conf, core.NopLogger{}, policy, revisionSvc),
		conf:    conf,
		repo:    repo,
		mailSvc: mailSvc,
	}
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

func (app testApp) getToken(t *testing.T, subject string, role access.Role) string {
	claims := echoapi.NewClaims(core.Identity{Subject: subject}, role, app.conf)
	token, err := echoapi.GenerateToken(claims, app.conf)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

// getRawToken signs role as is, the way a token minted outside NewClaims would carry it.
func (app testApp) getRawToken(t *testing.T, subject string, role access.Role) string {
	claims := echoapi.NewClaims(core.Identity{Subject: subject}, "", app.conf)
	claims.Role = role
	token, err := echoapi.GenerateToken(claims, app.conf)
	if err != nil {
		t.Fatalf("getRawToken() failed: %v", err)
	}
	return token
}

func (app testApp) run(t *testing.T, tt httpTest) *httptest.ResponseRecorder {
	method := tt.method
	if method == "" {
		method = http.MethodGet
	}
	req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
	app.server.ServeHTTP(rec, req)
	return rec
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj() failed: %v", err)
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
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
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
