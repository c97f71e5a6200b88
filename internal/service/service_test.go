package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"edziennik-backend/internal/components/telemetry"
	"edziennik-backend/internal/db"
	"edziennik-backend/internal/scrapers/edziennik"
	"edziennik-backend/lib/testutil"

	"github.com/stretchr/testify/require"
)

const testPassMd5 = "5f4dcc3b5aa765d61d8327deb882cf99"

type fakePortal struct {
	err   error
	login edziennik.LoginResult
	seen  []edziennik.Identity
}

func (f *fakePortal) Authenticate(_ context.Context, id edziennik.Identity) (edziennik.LoginResult, error) {
	f.seen = append(f.seen, id)
	return f.login, f.err
}

func (f *fakePortal) Grades(_ context.Context, id edziennik.Identity) ([]edziennik.Lesson, error) {
	f.seen = append(f.seen, id)
	if f.err != nil {
		return nil, f.err
	}
	return []edziennik.Lesson{{Name: "Matematyka", PrimePeriod: []edziennik.Grade{}, LatterPeriod: []edziennik.Grade{}}}, nil
}

func (f *fakePortal) Exams(context.Context, edziennik.Identity) ([]edziennik.Exam, error) {
	return []edziennik.Exam{}, f.err
}

func (f *fakePortal) Homeworks(context.Context, edziennik.Identity) ([]edziennik.Homework, error) {
	return []edziennik.Homework{}, f.err
}

func (f *fakePortal) Subjects(context.Context, edziennik.Identity) ([]edziennik.Subject, error) {
	return []edziennik.Subject{}, f.err
}

func (f *fakePortal) LessonPlan(context.Context, edziennik.Identity) (edziennik.WeeklyPlan, error) {
	return edziennik.WeeklyPlan{}, f.err
}

type fakeDetector struct {
	anyCalls  int
	deepCalls int
}

func (f *fakeDetector) AnyChanges(context.Context) (bool, error) {
	f.anyCalls++
	return true, nil
}

func (f *fakeDetector) DeepChanges(context.Context) (bool, error) {
	f.deepCalls++
	return false, nil
}

type fixture struct {
	qry      *db.Queries
	portal   *fakePortal
	detector *fakeDetector
	handler  http.Handler
}

func setup(t *testing.T) fixture {
	sqlDB := testutil.SetupDB(t)
	f := fixture{
		qry:      db.New(sqlDB),
		portal:   &fakePortal{},
		detector: &fakeDetector{},
	}
	f.handler = NewService(
		f.qry,
		db.NewMakeTx(sqlDB),
		f.portal,
		f.detector,
		"s3cret",
		WithCustomTelemetryAPI(telemetry.NewRecorderAPI()),
	).Handler()
	return f
}

type response struct {
	StatusCode int             `json:"statusCode"`
	Data       json.RawMessage `json:"data"`
	Error      *errorBody      `json:"error"`
}

func (f fixture) post(t *testing.T, path, body string, headers ...string) response {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	var res response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Equal(t, rec.Code, res.StatusCode)
	return res
}

func TestChangeChecksRequireSecret(t *testing.T) {
	f := setup(t)

	res := f.post(t, "/anyChangesCheck", `{"secret":"wrong"}`)
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
	require.Equal(t, 0, f.detector.anyCalls)

	res = f.post(t, "/anyChangesCheck", `{"secret":"s3cret"}`)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.JSONEq(t, `{"anyChanges":true}`, string(res.Data))

	res = f.post(t, "/deepChangesCheck", ``, "Authorization", "Bearer s3cret")
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.JSONEq(t, `{"deepChanges":false}`, string(res.Data))
	require.Equal(t, 1, f.detector.deepCalls)

	res = f.post(t, "/deepChangesCheck", `{"secret":"s3cret","extra":1}`)
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestPortalEndpoints(t *testing.T) {
	f := setup(t)

	res := f.post(t, "/grades", `{"login":"rodzic","password_md5":"`+testPassMd5+`","child":"dziecko"}`)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.JSONEq(t, `[{"name":"Matematyka","primePeriod":[],"latterPeriod":[]}]`, string(res.Data))
	require.Equal(t, edziennik.Identity{Login: "rodzic", PassMd5: testPassMd5, ChildLogin: "dziecko"}, f.portal.seen[0])

	for _, path := range []string{"/exams", "/homeworks", "/subjects", "/lessonPlan", "/login"} {
		res := f.post(t, path, `{"login":"rodzic","password_md5":"`+testPassMd5+`"}`)
		require.Equal(t, http.StatusOK, res.StatusCode, path)
	}
}

func TestRequestValidation(t *testing.T) {
	f := setup(t)

	cases := []struct {
		name string
		body string
	}{
		{name: "malformed", body: `{"login":`},
		{name: "unknown field", body: `{"login":"a","password_md5":"` + testPassMd5 + `","admin":true}`},
		{name: "missing password", body: `{"login":"a"}`},
		{name: "password not md5", body: `{"login":"a","password_md5":"hunter2"}`},
		{name: "empty", body: ``},
	}
	for _, test := range cases {
		t.Run(test.name, func(t *testing.T) {
			res := f.post(t, "/grades", test.body)
			require.Equal(t, http.StatusBadRequest, res.StatusCode)
			require.Equal(t, errTypeBadRequest, res.Error.Type)
		})
	}
	require.Empty(t, f.portal.seen)

	res := f.post(t, "/grades", `{"login":"a"}`)
	require.Contains(t, res.Error.Description, "password_md5")
}

func TestPortalErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{err: edziennik.ErrInvalidCredentials, status: http.StatusUnauthorized},
		{err: &edziennik.ParseError{Element: "#userinfo"}, status: http.StatusBadGateway},
		{err: edziennik.ErrTimeout, status: http.StatusGatewayTimeout},
		{err: edziennik.ErrNetwork, status: http.StatusBadGateway},
		{err: context.Canceled, status: http.StatusInternalServerError},
	}
	for _, test := range cases {
		f := setup(t)
		f.portal.err = test.err
		res := f.post(t, "/grades", `{"login":"a","password_md5":"`+testPassMd5+`"}`)
		require.Equal(t, test.status, res.StatusCode, test.err.Error())
		require.NotNil(t, res.Error)
	}
}

func TestSubscribe(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	body := `{"login":"jkowalski","password_md5":"` + testPassMd5 + `","subscription":{"endpoint":"https://fcm.googleapis.com/fcm/send/abc", "keys":{"auth":"x"}}}`

	res := f.post(t, "/subscribe", body)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.JSONEq(t, `{"credentialsSaved":true,"pushSaved":true}`, string(res.Data))

	res = f.post(t, "/subscribe", body)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.JSONEq(t, `{"credentialsSaved":false,"pushSaved":false}`, string(res.Data))

	user, err := f.qry.GetUser(ctx, "jkowalski")
	require.NoError(t, err)
	require.Equal(t, testPassMd5, user.PassMd5)
	subs, err := f.qry.GetUserPush(ctx, "jkowalski")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	require.Equal(t, `{"endpoint":"https://fcm.googleapis.com/fcm/send/abc","keys":{"auth":"x"}}`, subs[0].Subscription)

	res = f.post(t, "/subscribe", `{"login":"jkowalski","password_md5":"`+testPassMd5+`"}`)
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestSubscribeStoresSid(t *testing.T) {
	f := setup(t)
	f.portal.login = edziennik.LoginResult{UserName: "Jan Kowalski", Sid: "sid1"}
	body := `{"login":"jkowalski","password_md5":"` + testPassMd5 + `","subscription":{"token":"t"}}`

	res := f.post(t, "/subscribe", body)
	require.Equal(t, http.StatusOK, res.StatusCode)
	user, err := f.qry.GetUser(context.Background(), "jkowalski")
	require.NoError(t, err)
	require.Equal(t, "sid1", user.Sid.String)

	f.portal.login.Sid = "sid2"
	res = f.post(t, "/subscribe", body)
	require.Equal(t, http.StatusOK, res.StatusCode)
	user, err = f.qry.GetUser(context.Background(), "jkowalski")
	require.NoError(t, err)
	require.Equal(t, "sid2", user.Sid.String)
}

func TestSubscribeRejectedCredentials(t *testing.T) {
	f := setup(t)
	f.portal.err = edziennik.ErrInvalidCredentials

	res := f.post(t, "/subscribe", `{"login":"jkowalski","password_md5":"`+testPassMd5+`","subscription":{"token":"t"}}`)
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)

	_, err := f.qry.GetUser(context.Background(), "jkowalski")
	require.Error(t, err)
}

func TestSessionRecorder(t *testing.T) {
	qry := db.New(testutil.SetupDB(t))
	ctx := context.Background()
	_, err := qry.CreateUser(ctx, db.CreateUserParams{Login: "jkowalski", PassMd5: testPassMd5})
	require.NoError(t, err)

	NewSessionRecorder(qry, telemetry.NewRecorderAPI()).SessionRefreshed(ctx, "jkowalski", "sid42")

	user, err := qry.GetUser(ctx, "jkowalski")
	require.NoError(t, err)
	require.Equal(t, "sid42", user.Sid.String)
}
