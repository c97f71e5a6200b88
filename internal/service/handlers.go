package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"

	"edziennik-backend/internal/db"
	"edziennik-backend/internal/scrapers/edziennik"
	"edziennik-backend/lib/util/serviceutil"
)

type checkRequest struct {
	Secret string `json:"secret"`
}

type credentials struct {
	Login      string `json:"login" validate:"required,max=128"`
	PassMd5    string `json:"password_md5" validate:"required,len=32,hexadecimal"`
	ChildLogin string `json:"child" validate:"omitempty,max=128"`
}

func (c credentials) identity() edziennik.Identity {
	return edziennik.Identity{
		Login:      c.Login,
		PassMd5:    c.PassMd5,
		ChildLogin: c.ChildLogin,
	}
}

type subscribeRequest struct {
	credentials
	Subscription json.RawMessage `json:"subscription" validate:"required"`
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// authorized accepts the secret from the body or as a bearer token.
func (s Service) authorized(w http.ResponseWriter, r *http.Request) bool {
	secret := serviceutil.BearerToken(r)
	if secret == "" {
		req, ok := decode[checkRequest](s, w, r)
		if !ok {
			return false
		}
		secret = req.Secret
	}
	if !serviceutil.SecretMatches(s.secret, secret) {
		writeError(w, http.StatusUnauthorized, errTypeUnauthenticated, "invalid secret")
		return false
	}
	return true
}

func (s Service) anyChangesCheck(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}
	anyChanges, err := s.detector.AnyChanges(r.Context())
	if err != nil {
		s.tel.ReportBroken(report_service_check, fmt.Errorf("any changes: %w", err))
		writeError(w, http.StatusInternalServerError, errTypeServerError, "could not check for changes")
		return
	}
	writeData(w, map[string]bool{"anyChanges": anyChanges})
}

func (s Service) deepChangesCheck(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}
	deepChanges, err := s.detector.DeepChanges(r.Context())
	if err != nil {
		s.tel.ReportBroken(report_service_check, fmt.Errorf("deep changes: %w", err))
		writeError(w, http.StatusInternalServerError, errTypeServerError, "could not check for changes")
		return
	}
	writeData(w, map[string]bool{"deepChanges": deepChanges})
}

func portalEndpoint[T any](s Service, fetch func(context.Context, edziennik.Identity) (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decode[credentials](s, w, r)
		if !ok {
			return
		}
		data, err := fetch(r.Context(), req.identity())
		if err != nil {
			s.tel.ReportDebug("portal request failed", r.URL.Path, req.Login, err)
			writePortalError(w, err)
			return
		}
		writeData(w, data)
	}
}

type subscribeResponse struct {
	CredentialsSaved bool `json:"credentialsSaved"`
	PushSaved        bool `json:"pushSaved"`
}

// subscribe registers the user for change detection after checking the
// credentials against the portal, calling it again is harmless.
func (s Service) subscribe(w http.ResponseWriter, r *http.Request) {
	req, ok := decode[subscribeRequest](s, w, r)
	if !ok {
		return
	}
	subscription := bytes.NewBuffer(nil)
	err := json.Compact(subscription, req.Subscription)
	if err != nil || bytes.Equal(subscription.Bytes(), []byte("null")) {
		writeError(w, http.StatusBadRequest, errTypeBadRequest, "argument 'subscription' is not a push subscription")
		return
	}

	login, err := s.portal.Authenticate(r.Context(), req.identity())
	if err != nil {
		s.tel.ReportDebug("subscribe rejected", req.Login, err)
		writePortalError(w, err)
		return
	}

	res, err := s.saveSubscription(r.Context(), req.credentials, login.Sid, subscription.String())
	if err != nil {
		writeError(w, http.StatusInternalServerError, errTypeServerError, "could not save the subscription")
		return
	}
	writeData(w, res)
}

// saveSubscription also stores the sid, the session recorder could not
// while the user row did not exist yet.
func (s Service) saveSubscription(ctx context.Context, creds credentials, sid, subscription string) (subscribeResponse, error) {
	tx, discard, commit, err := s.makeTx(ctx)
	if err != nil {
		s.tel.ReportBroken(report_db_query, fmt.Errorf("make tx: %w", err))
		return subscribeResponse{}, err
	}
	defer discard()

	created, err := tx.CreateUser(ctx, db.CreateUserParams{
		Login:      creds.Login,
		PassMd5:    creds.PassMd5,
		ChildLogin: nullString(creds.ChildLogin),
		Sid:        nullString(sid),
	})
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "CreateUser", creds.Login)
		return subscribeResponse{}, err
	}
	// the password may have changed since the first registration
	err = tx.UpdateUserCredentials(ctx, db.UpdateUserCredentialsParams{
		PassMd5:    creds.PassMd5,
		ChildLogin: nullString(creds.ChildLogin),
		Login:      creds.Login,
	})
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "UpdateUserCredentials", creds.Login)
		return subscribeResponse{}, err
	}
	if sid != "" {
		err = tx.UpdateUserSid(ctx, db.UpdateUserSidParams{
			Sid:   nullString(sid),
			Login: creds.Login,
		})
		if err != nil {
			s.tel.ReportBroken(report_db_query, err, "UpdateUserSid", creds.Login)
			return subscribeResponse{}, err
		}
	}

	pushCreated, err := tx.CreatePush(ctx, db.CreatePushParams{
		Login:        creds.Login,
		Subscription: subscription,
	})
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "CreatePush", creds.Login)
		return subscribeResponse{}, err
	}

	err = commit()
	if err != nil {
		s.tel.ReportBroken(report_db_query, fmt.Errorf("commit: %w", err), creds.Login)
		return subscribeResponse{}, err
	}

	s.tel.ReportDebug("subscribed", creds.Login, created > 0, pushCreated > 0)
	return subscribeResponse{
		CredentialsSaved: created > 0,
		PushSaved:        pushCreated > 0,
	}, nil
}
