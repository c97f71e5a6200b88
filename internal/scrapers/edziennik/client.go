// client.go contains the session handling for the portal: logging in,
// keeping cookies per user and renewing a session that the portal expired.

package edziennik

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"edziennik-backend/internal/components/assert"
	"edziennik-backend/internal/components/chrono"
	"edziennik-backend/internal/components/telemetry"
	"edziennik-backend/lib/util/restyutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

const (
	report_portal_authenticate = "portal.authenticate"
	report_portal_login        = "portal.login"
	report_portal_fetch        = "portal.fetch"
	report_portal_session      = "portal.session"
	report_portal_grades       = "portal.grades"
)

const (
	DefaultBaseUrl   = "https://nasze.miasto.gdynia.pl/ed_miej"
	DefaultTimeout   = 3 * time.Second
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
)

const (
	endpointLogin        = "login.pl"
	endpointLoginCheck   = "login_check.pl"
	endpointAjax         = "action_ajax.pl"
	endpointStart        = "zest_start.pl"
	endpointDisplay      = "display.pl"
	endpointGrades       = "zest_ed_oceny_ucznia.pl"
	endpointGradeDetails = "zest_ed_oceny_ucznia_szczegoly.pl"
	endpointExams        = "zest_ed_planowane_zadania.pl"
	endpointHomeworks    = "zest_ed_prace_domowe_ucznia.pl"
	endpointSubjects     = "zest_ed_tematy_zajec.pl"
	endpointPlan         = "zest_ed_plan_zajec.pl"
)

// SessionObserver is told whenever a user's session token changes.
type SessionObserver interface {
	SessionRefreshed(ctx context.Context, login, sid string)
}

type Options struct {
	BaseUrl   string
	Timeout   time.Duration
	UserAgent string
	// RequestsPerSecond is shared by all users, 0 means 2.
	RequestsPerSecond float64
	CloudflareBypass  bool

	Sessions SessionStore
	Observer SessionObserver
	// Dump receives every exchange with the portal when set, credentials
	// and session tokens are masked.
	Dump restyutil.Output
}

// Portal is the session aware client of the e-diary portal, it is safe
// for concurrent use, requests of a single user are serialized.
type Portal struct {
	baseUrl   *url.URL
	cookieUrl *url.URL
	opts      Options

	limiter  *rate.Limiter
	clients  *expirable.LRU[string, *session]
	sessions SessionStore
	observer SessionObserver
	dumper   *restyutil.Dumper

	time chrono.TimeAPI
	tel  telemetry.API
}

type session struct {
	mutex sync.Mutex
	key   string
	http  *resty.Client
	jar   http.CookieJar
	state SessionState
}

func NewPortal(opts Options, timeAPI chrono.TimeAPI, tel telemetry.API) (*Portal, error) {
	assert.NotNil(timeAPI, "time")
	assert.NotNil(tel, "telemetry")

	if opts.BaseUrl == "" {
		opts.BaseUrl = DefaultBaseUrl
	}
	opts.BaseUrl = strings.TrimRight(opts.BaseUrl, "/")
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 2
	}
	if opts.Sessions == nil {
		opts.Sessions = NewMemorySessionStore()
	}

	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, fmt.Errorf("parse portal base url: %w", err)
	}
	cookieUrl, err := url.Parse(opts.BaseUrl + "/")
	if err != nil {
		return nil, fmt.Errorf("parse portal base url: %w", err)
	}

	burst := int(opts.RequestsPerSecond)
	if burst < 1 {
		burst = 1
	}

	var dumper *restyutil.Dumper
	if opts.Dump != nil {
		dumper = restyutil.NewDumper(opts.Dump, "pass_md5", "sid")
	}

	return &Portal{
		baseUrl:   baseUrl,
		cookieUrl: cookieUrl,
		opts:      opts,
		limiter:   rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst),
		clients:   expirable.NewLRU[string, *session](2048, nil, time.Minute*15),
		sessions:  opts.Sessions,
		observer:  opts.Observer,
		dumper:    dumper,
		time:      timeAPI,
		tel:       telemetry.NewScopedAPI("edziennik", tel),
	}, nil
}

func (p *Portal) newSession(key string) (*session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(p.opts.BaseUrl)
	httpClient.SetCookieJar(jar)
	if p.opts.CloudflareBypass {
		httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	}
	httpClient.SetHeader("user-agent", p.opts.UserAgent)
	httpClient.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(p.baseUrl.Hostname()))
	httpClient.SetTimeout(p.opts.Timeout)

	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return p.limiter.Wait(req.Context())
	})
	telemetry.InstrumentResty(httpClient, p.tel)
	if p.dumper != nil {
		p.dumper.Attach(httpClient)
	}

	return &session{key: key, http: httpClient, jar: jar}, nil
}

// session returns the live client of a user, restoring it from the
// session store when it isn't cached.
func (p *Portal) session(ctx context.Context, id Identity) (*session, error) {
	key := LoginKey(id.Login)
	if cached, hit := p.clients.Get(key); hit {
		return cached, nil
	}

	s, err := p.newSession(key)
	if err != nil {
		return nil, err
	}

	state, err := p.sessions.Load(ctx, key)
	switch {
	case err == nil:
		s.state = state
		cookies := make([]*http.Cookie, len(state.Cookies))
		for i, c := range state.Cookies {
			cookies[i] = &http.Cookie{Name: c.Name, Value: c.Value}
		}
		s.jar.SetCookies(p.cookieUrl, cookies)
	case errors.Is(err, ErrSessionNotFound):
	default:
		p.tel.ReportWarning(report_portal_session, fmt.Errorf("load: %w", err), key)
	}

	p.clients.Add(key, s)
	return s, nil
}

func (p *Portal) saveSession(ctx context.Context, s *session) {
	cookies := s.jar.Cookies(p.cookieUrl)
	s.state.Cookies = make([]StoredCookie, len(cookies))
	for i, c := range cookies {
		s.state.Cookies[i] = StoredCookie{Name: c.Name, Value: c.Value}
	}
	err := p.sessions.Save(ctx, s.key, s.state)
	if err != nil {
		p.tel.ReportWarning(report_portal_session, fmt.Errorf("save: %w", err), s.key)
	}
}

// Forget drops everything stored about a user's session.
func (p *Portal) Forget(ctx context.Context, login string) error {
	key := LoginKey(login)
	p.clients.Remove(key)
	return p.sessions.Delete(ctx, key)
}

func (p *Portal) url(endpoint string, params url.Values) string {
	u := *p.baseUrl
	u.Path = strings.TrimRight(u.Path, "/") + "/" + endpoint
	u.RawQuery = params.Encode()
	return u.String()
}

func parseDocument(res *resty.Response) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", res.Request.URL, err)
	}
	return doc, nil
}

func checkResponse(res *resty.Response, err error) error {
	if err != nil {
		return classifyTransportError(err)
	}
	if res.IsError() {
		return fmt.Errorf("%w: %s responded %s", ErrNetwork, res.Request.URL, res.Status())
	}
	return nil
}

func (p *Portal) get(ctx context.Context, s *session, endpoint string, params url.Values) (*goquery.Document, error) {
	res, err := s.http.R().
		SetContext(ctx).
		SetQueryParamsFromValues(params).
		Get(endpoint)
	if err := checkResponse(res, err); err != nil {
		return nil, err
	}
	p.saveSession(ctx, s)
	return parseDocument(res)
}

type authResult struct {
	sid      string
	info     UserInfo
	ajaxHash string
}

// login submits the credentials and confirms the session, the
// confirmation redirects to urlBack whose document is also returned.
func (p *Portal) login(ctx context.Context, s *session, id Identity, urlBack string) (authResult, *goquery.Document, error) {
	res, err := s.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"user":     id.Login,
			"pass_md5": id.PassMd5,
			"action":   "set",
		}).
		Post(endpointLogin)
	if err := checkResponse(res, err); err != nil {
		return authResult{}, nil, fmt.Errorf("submit credentials: %w", err)
	}
	if strings.Contains(res.String(), rejectedLoginMarker) {
		return authResult{}, nil, ErrInvalidCredentials
	}
	doc, err := parseDocument(res)
	if err != nil {
		return authResult{}, nil, err
	}
	sid, err := ExtractSid(doc)
	if err != nil {
		return authResult{}, nil, err
	}

	confirmed, err := p.get(ctx, s, endpointLoginCheck, url.Values{
		"sid":      {sid},
		"url_back": {urlBack},
	})
	if err != nil {
		return authResult{}, nil, fmt.Errorf("confirm session: %w", err)
	}
	// the password was already accepted, a prompt here is the portal
	// misbehaving and not a rejection
	if SessionExpired(confirmed) {
		return authResult{}, nil, parseError("#userinfo on login confirmation")
	}
	info, err := ExtractUserInfo(confirmed)
	if err != nil {
		return authResult{}, nil, err
	}

	result := authResult{sid: sid, info: info}
	// the hash only shows up on pages with the student picker
	result.ajaxHash, _ = ExtractAjaxHash(confirmed)

	s.state.Sid = sid
	if result.ajaxHash != "" {
		s.state.AjaxHash = result.ajaxHash
	}
	p.saveSession(ctx, s)
	if p.observer != nil {
		p.observer.SessionRefreshed(ctx, id.Login, sid)
	}

	return result, confirmed, nil
}

func (p *Portal) startPage() string {
	return p.url(endpointStart, nil)
}

// Authenticate logs in as the user and works out whether the account
// belongs to the student or to a parent of the linked student.
func (p *Portal) Authenticate(ctx context.Context, id Identity) (LoginResult, error) {
	s, err := p.session(ctx, id)
	if err != nil {
		return LoginResult{}, err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()

	urlBack := p.url(endpointDisplay, url.Values{
		"form": {"ed_plan_zajec"},
		"user": {id.Login},
	})
	auth, _, err := p.login(ctx, s, id, urlBack)
	if err != nil {
		p.reportAuthError(report_portal_authenticate, id, err)
		return LoginResult{}, err
	}
	if auth.ajaxHash == "" {
		err := parseError("#f_uczen_value_div[hash]")
		p.tel.ReportBroken(report_portal_authenticate, err, id.Login)
		return LoginResult{}, err
	}
	if auth.info.UserName == "" {
		err := parseError("user name in #userinfo")
		p.tel.ReportBroken(report_portal_authenticate, err, id.Login)
		return LoginResult{}, err
	}

	picker, err := p.get(ctx, s, endpointAjax, url.Values{
		"filter":       {""},
		"extra_filter": {"{}"},
		"value_sets":   {"{}"},
		"page":         {"0"},
		"name":         {"uczen"},
		"hash":         {auth.ajaxHash},
	})
	if err != nil {
		p.tel.ReportBroken(report_portal_authenticate, fmt.Errorf("student picker: %w", err), id.Login)
		return LoginResult{}, err
	}
	child, err := ExtractChild(picker)
	if err != nil {
		p.tel.ReportBroken(report_portal_authenticate, err, id.Login)
		return LoginResult{}, err
	}

	result := LoginResult{
		UserName:   auth.info.UserName,
		LastUpdate: auth.info.LastUpdate.Format(JSLayout),
		Sid:        auth.sid,
	}
	if auth.info.UserName == child.Name+" "+child.Surname {
		result.AccountType = AccountChild
		result.School = child.School
		result.Name = child.Name
		result.Surname = child.Surname
		result.Login = child.Login
	} else {
		result.AccountType = AccountParent
		result.Child = &child
	}

	p.tel.ReportDebug("authenticated", id.Login, result.AccountType)
	return result, nil
}

// LastUpdate logs in and returns when the portal last updated the user's
// data, formatted with JSLayout.
func (p *Portal) LastUpdate(ctx context.Context, id Identity) (string, error) {
	s, err := p.session(ctx, id)
	if err != nil {
		return "", err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()

	auth, _, err := p.login(ctx, s, id, p.startPage())
	if err != nil {
		p.reportAuthError(report_portal_login, id, err)
		return "", err
	}
	return auth.info.LastUpdate.Format(JSLayout), nil
}

func (p *Portal) reportAuthError(reportId string, id Identity, err error) {
	if errors.Is(err, ErrInvalidCredentials) {
		p.tel.ReportDebug("credentials rejected", id.Login)
		return
	}
	p.tel.ReportBroken(reportId, err, id.Login)
}

// fetch requests a page and renews the session once if the portal answers
// with its login prompt. s must be locked.
func (p *Portal) fetch(ctx context.Context, s *session, id Identity, endpoint string, params url.Values) (*goquery.Document, error) {
	doc, err := p.get(ctx, s, endpoint, params)
	if err != nil {
		p.tel.ReportBroken(report_portal_fetch, err, endpoint)
		return nil, err
	}
	if !SessionExpired(doc) {
		return doc, nil
	}

	p.tel.ReportDebug("session expired, renewing", id.Login, endpoint)
	_, _, err = p.login(ctx, s, id, p.startPage())
	if err != nil {
		p.reportAuthError(report_portal_fetch, id, err)
		return nil, err
	}

	doc, err = p.get(ctx, s, endpoint, params)
	if err != nil {
		p.tel.ReportBroken(report_portal_fetch, err, endpoint)
		return nil, err
	}
	if SessionExpired(doc) {
		err := fmt.Errorf("session rejected right after renewal: %w", ErrInvalidCredentials)
		p.tel.ReportWarning(report_portal_fetch, err, id.Login, endpoint)
		return nil, err
	}
	return doc, nil
}

func printVersion() url.Values {
	return url.Values{"print_version": {"1"}}
}

// Grades returns every lesson of the student along with its grades.
func (p *Portal) Grades(ctx context.Context, id Identity) ([]Lesson, error) {
	s, err := p.session(ctx, id)
	if err != nil {
		return nil, err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()

	params := printVersion()
	params.Set("uczen_login", id.student())
	overview, err := p.fetch(ctx, s, id, endpointGrades, params)
	if err != nil {
		return nil, err
	}
	names, err := ExtractLessonNames(overview)
	if err != nil {
		p.tel.ReportBroken(report_portal_grades, err)
		return nil, err
	}

	lessons := make([]Lesson, 0, len(names))
	for i, name := range names {
		params := printVersion()
		params.Set("zajecia", name)
		params.Set("login_ucznia", id.student())

		if i == 0 {
			// the first details page comes back in a different order until
			// it has been requested once
			_, err := p.fetch(ctx, s, id, endpointGradeDetails, params)
			if err != nil {
				return nil, err
			}
		}

		details, err := p.fetch(ctx, s, id, endpointGradeDetails, params)
		if err != nil {
			return nil, err
		}
		grades, err := ExtractGrades(details)
		if err != nil {
			p.tel.ReportBroken(report_portal_grades, err, name)
			return nil, err
		}
		lessons = append(lessons, NewLesson(name, grades))
	}

	return lessons, nil
}

func (p *Portal) Exams(ctx context.Context, id Identity) ([]Exam, error) {
	return fetchAndExtract(ctx, p, id, endpointExams, printVersion(), ExtractExams)
}

func (p *Portal) Homeworks(ctx context.Context, id Identity) ([]Homework, error) {
	return fetchAndExtract(ctx, p, id, endpointHomeworks, printVersion(), ExtractHomeworks)
}

func (p *Portal) Subjects(ctx context.Context, id Identity) ([]Subject, error) {
	params := printVersion()
	params.Set("f_g_start", "0")
	params.Set("f_g_page_size_value", "9999")
	return fetchAndExtract(ctx, p, id, endpointSubjects, params, ExtractSubjects)
}

func fetchAndExtract[T any](
	ctx context.Context,
	p *Portal,
	id Identity,
	endpoint string,
	params url.Values,
	extract func(*goquery.Document) ([]T, error),
) ([]T, error) {
	s, err := p.session(ctx, id)
	if err != nil {
		return nil, err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()

	doc, err := p.fetch(ctx, s, id, endpoint, params)
	if err != nil {
		return nil, err
	}
	records, err := extract(doc)
	if err != nil {
		p.tel.ReportBroken(report_portal_fetch, err, endpoint)
		return nil, err
	}
	return records, nil
}

// LessonPlan returns the plan of the school week, days that have already
// passed come from next week.
func (p *Portal) LessonPlan(ctx context.Context, id Identity) (WeeklyPlan, error) {
	s, err := p.session(ctx, id)
	if err != nil {
		return WeeklyPlan{}, err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := p.time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, chrono.Warsaw())
	monday := today.AddDate(0, 0, 1-int(now.Weekday()))

	params := printVersion()
	if id.ChildLogin == "" {
		params.Set("uczen", id.Login)
	} else {
		params.Set("user", id.Login)
		params.Set("uczen", id.ChildLogin)
	}

	params.Set("daty", monday.Format(time.DateOnly))
	thisWeek, err := p.fetch(ctx, s, id, endpointPlan, params)
	if err != nil {
		return WeeklyPlan{}, err
	}
	params.Set("daty", monday.AddDate(0, 0, 7).Format(time.DateOnly))
	nextWeek, err := p.fetch(ctx, s, id, endpointPlan, params)
	if err != nil {
		return WeeklyPlan{}, err
	}

	plan, err := ExtractPlan(thisWeek, nextWeek, monday, now.Weekday())
	if err != nil {
		p.tel.ReportBroken(report_portal_fetch, err, endpointPlan)
		return WeeklyPlan{}, err
	}
	return plan, nil
}
