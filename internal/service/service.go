package service

import (
	"context"
	"net/http"
	"reflect"
	"strings"

	"edziennik-backend/internal/components/assert"
	"edziennik-backend/internal/components/telemetry"
	"edziennik-backend/internal/db"
	"edziennik-backend/internal/scrapers/edziennik"

	"github.com/go-playground/validator/v10"
)

const (
	report_db_query      = "db.query"
	report_service_check = "service.check"
)

// PortalAPI is what the user facing endpoints read from.
//
// note: fault injection point
type PortalAPI interface {
	Authenticate(ctx context.Context, id edziennik.Identity) (edziennik.LoginResult, error)
	Grades(ctx context.Context, id edziennik.Identity) ([]edziennik.Lesson, error)
	Exams(ctx context.Context, id edziennik.Identity) ([]edziennik.Exam, error)
	Homeworks(ctx context.Context, id edziennik.Identity) ([]edziennik.Homework, error)
	Subjects(ctx context.Context, id edziennik.Identity) ([]edziennik.Subject, error)
	LessonPlan(ctx context.Context, id edziennik.Identity) (edziennik.WeeklyPlan, error)
}

// DetectorAPI runs the two change detection phases.
type DetectorAPI interface {
	AnyChanges(ctx context.Context) (bool, error)
	DeepChanges(ctx context.Context) (bool, error)
}

type coreAPIs struct {
	db       *db.Queries
	makeTx   db.MakeTx
	validate *validator.Validate
	tel      telemetry.API
}

type serviceConfig struct {
	tel telemetry.API
}

type ServiceOption func(cfg *serviceConfig)

func WithCustomTelemetryAPI(tel telemetry.API) ServiceOption {
	return func(cfg *serviceConfig) {
		cfg.tel = tel
	}
}

// Service serves the JSON api of the web app and the change check
// triggers.
type Service struct {
	coreAPIs

	portal   PortalAPI
	detector DetectorAPI
	secret   string
}

func NewService(
	qry *db.Queries,
	makeTx db.MakeTx,
	portal PortalAPI,
	detector DetectorAPI,
	secret string,
	options ...ServiceOption,
) Service {
	assert.NotNil(qry, "db")
	assert.NotNil(makeTx, "makeTx")
	assert.NotNil(portal, "portal")
	assert.NotNil(detector, "detector")

	cfg := serviceConfig{}
	for _, opt := range options {
		opt(&cfg)
	}
	tel := cfg.tel
	if tel == nil {
		tel = telemetry.SlogAPI{}
	}

	return Service{
		coreAPIs: coreAPIs{
			db:       qry,
			makeTx:   makeTx,
			validate: newValidator(),
			tel:      telemetry.NewScopedAPI("service", tel),
		},
		portal:   portal,
		detector: detector,
		secret:   secret,
	}
}

// newValidator reports fields by their json names.
func newValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return validate
}

func (s Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /anyChangesCheck", s.anyChangesCheck)
	mux.HandleFunc("POST /deepChangesCheck", s.deepChangesCheck)
	mux.HandleFunc("POST /login", portalEndpoint(s, s.portal.Authenticate))
	mux.HandleFunc("POST /grades", portalEndpoint(s, s.portal.Grades))
	mux.HandleFunc("POST /exams", portalEndpoint(s, s.portal.Exams))
	mux.HandleFunc("POST /homeworks", portalEndpoint(s, s.portal.Homeworks))
	mux.HandleFunc("POST /subjects", portalEndpoint(s, s.portal.Subjects))
	mux.HandleFunc("POST /lessonPlan", portalEndpoint(s, s.portal.LessonPlan))
	mux.HandleFunc("POST /subscribe", s.subscribe)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, errTypeNotFound, r.Method+" "+r.URL.Path)
	})
	return mux
}

// SessionRecorder keeps the session token of registered users up to date.
type SessionRecorder struct {
	db  *db.Queries
	tel telemetry.API
}

func NewSessionRecorder(qry *db.Queries, tel telemetry.API) SessionRecorder {
	assert.NotNil(qry, "db")
	return SessionRecorder{db: qry, tel: tel}
}

func (r SessionRecorder) SessionRefreshed(ctx context.Context, login, sid string) {
	param := db.UpdateUserSidParams{
		Sid:   nullString(sid),
		Login: login,
	}
	err := r.db.UpdateUserSid(ctx, param)
	if err != nil {
		r.tel.ReportBroken(report_db_query, err, "UpdateUserSid", login)
	}
}
