package changes

import (
	"context"
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"edziennik-backend/internal/components/assert"
	"edziennik-backend/internal/components/chrono"
	"edziennik-backend/internal/components/telemetry"
	"edziennik-backend/internal/db"
	"edziennik-backend/internal/push"
	"edziennik-backend/internal/scrapers/edziennik"
	"edziennik-backend/internal/translation"
)

const (
	report_db_query        = "db.query"
	report_detector_any    = "detector.any-changes"
	report_detector_deep   = "detector.deep-changes"
	report_detector_users  = "detector.users"
	report_detector_notify = "detector.notify"
)

const DefaultLease = 5 * time.Minute

// PortalAPI is the part of the portal client change detection needs.
//
// note: fault injection point
type PortalAPI interface {
	LastUpdate(ctx context.Context, id edziennik.Identity) (string, error)
	Grades(ctx context.Context, id edziennik.Identity) ([]edziennik.Lesson, error)
	Forget(ctx context.Context, login string) error
}

type Notifier interface {
	SendToUser(ctx context.Context, login, title, body string, actions []push.Action, data any) bool
}

type Options struct {
	// Lease is how long a claimed task stays invisible to other deep
	// checks, defaults to DefaultLease.
	Lease time.Duration
}

// Detector finds out which users have new or changed grades. AnyChanges
// cheaply compares fingerprints and queues users whose data changed,
// DeepChanges processes one queued user at a time.
type Detector struct {
	db       *db.Queries
	makeTx   db.MakeTx
	portal   PortalAPI
	notifier Notifier
	tr       translation.Manager
	lease    time.Duration
	time     chrono.TimeAPI
	tel      telemetry.API
}

func NewDetector(
	qry *db.Queries,
	makeTx db.MakeTx,
	portal PortalAPI,
	notifier Notifier,
	opts Options,
	timeAPI chrono.TimeAPI,
	tel telemetry.API,
) Detector {
	assert.NotNil(qry, "db")
	assert.NotNil(makeTx, "makeTx")
	assert.NotNil(portal, "portal")
	assert.NotNil(notifier, "notifier")
	assert.NotNil(timeAPI, "time")
	assert.NotNil(tel, "telemetry")

	if opts.Lease <= 0 {
		opts.Lease = DefaultLease
	}

	return Detector{
		db:       qry,
		makeTx:   makeTx,
		portal:   portal,
		notifier: notifier,
		tr:       translation.NewManager(),
		lease:    opts.Lease,
		time:     timeAPI,
		tel:      telemetry.NewScopedAPI("changes", tel),
	}
}

// Fingerprint is what AnyChanges compares to tell whether a user's data
// changed since the last check.
func Fingerprint(lastUpdate string) string {
	sum := md5.Sum([]byte(lastUpdate))
	return hex.EncodeToString(sum[:])
}

func identity(user db.User) edziennik.Identity {
	return edziennik.Identity{
		Login:      user.Login,
		PassMd5:    user.PassMd5,
		ChildLogin: user.ChildLogin.String,
	}
}

// AnyChanges checks every registered user and queues a deep check for
// those whose data changed. Failures only skip the user they happened
// for, users the portal rejects are removed for good.
func (d Detector) AnyChanges(ctx context.Context) (bool, error) {
	users, err := d.db.GetUsers(ctx)
	if err != nil {
		d.tel.ReportBroken(report_db_query, err, "GetUsers")
		return false, err
	}
	d.tel.ReportCount(report_detector_users, int64(len(users)))

	anyChanges := false
	for _, user := range users {
		changed, err := d.checkUser(ctx, user)
		if err != nil {
			continue
		}
		anyChanges = anyChanges || changed
	}
	return anyChanges, nil
}

func (d Detector) checkUser(ctx context.Context, user db.User) (bool, error) {
	lastUpdate, err := d.portal.LastUpdate(ctx, identity(user))
	if errors.Is(err, edziennik.ErrInvalidCredentials) {
		return false, d.Deregister(ctx, user.Login)
	}
	if err != nil {
		d.tel.ReportWarning(report_detector_any, err, user.Login)
		return false, err
	}
	fingerprint := Fingerprint(lastUpdate)

	stored, err := d.db.GetChange(ctx, user.Login)
	notFound := errors.Is(err, sql.ErrNoRows)
	if err != nil && !notFound {
		d.tel.ReportBroken(report_db_query, err, "GetChange", user.Login)
		return false, err
	}
	if !notFound && stored.LastUpdate == fingerprint {
		return false, nil
	}

	tx, discard, commit, err := d.makeTx(ctx)
	if err != nil {
		d.tel.ReportBroken(report_db_query, fmt.Errorf("make tx: %w", err))
		return false, err
	}
	defer discard()

	if notFound {
		err = tx.CreateChange(ctx, db.CreateChangeParams{
			Login:      user.Login,
			LastUpdate: fingerprint,
		})
	} else {
		err = tx.UpdateChangeFingerprint(ctx, db.UpdateChangeFingerprintParams{
			LastUpdate: fingerprint,
			Login:      user.Login,
		})
	}
	if err != nil {
		d.tel.ReportBroken(report_db_query, err, "store fingerprint", user.Login)
		return false, err
	}

	_, err = tx.EnqueueTask(ctx, db.EnqueueTaskParams{
		Login:     user.Login,
		CreatedAt: d.time.Now().Unix(),
	})
	if err != nil {
		d.tel.ReportBroken(report_db_query, err, "EnqueueTask", user.Login)
		return false, err
	}

	err = commit()
	if err != nil {
		d.tel.ReportBroken(report_db_query, fmt.Errorf("commit: %w", err), user.Login)
		return false, err
	}
	d.tel.ReportDebug("change detected", user.Login)
	return true, nil
}

// Deregister forgets everything stored about a user, it is used when the
// portal no longer accepts their credentials.
func (d Detector) Deregister(ctx context.Context, login string) error {
	tx, discard, commit, err := d.makeTx(ctx)
	if err != nil {
		d.tel.ReportBroken(report_db_query, fmt.Errorf("make tx: %w", err))
		return err
	}
	defer discard()

	steps := []struct {
		name string
		fn   func(context.Context, string) error
	}{
		{"DeleteUser", tx.DeleteUser},
		{"DeleteChange", tx.DeleteChange},
		{"DeleteUserTasks", tx.DeleteUserTasks},
		{"DeleteUserPush", tx.DeleteUserPush},
	}
	for _, step := range steps {
		if err := step.fn(ctx, login); err != nil {
			d.tel.ReportBroken(report_db_query, err, step.name, login)
			return err
		}
	}
	if err := commit(); err != nil {
		d.tel.ReportBroken(report_db_query, fmt.Errorf("commit: %w", err), login)
		return err
	}

	if err := d.portal.Forget(ctx, login); err != nil {
		d.tel.ReportWarning(report_detector_any, fmt.Errorf("forget session: %w", err), login)
	}
	d.tel.ReportDebug("deregistered user", login)
	return nil
}

func (d Detector) release(ctx context.Context, task db.Task) {
	err := d.db.ReleaseTask(ctx, task.ID)
	if err != nil {
		d.tel.ReportBroken(report_db_query, err, "ReleaseTask", task.ID)
	}
}

// DeepChanges claims the oldest queued task, notifies the user of every new
// or changed grade and stores the grades for the next comparison. It
// reports whether any grade changed, the task is left for a later run if
// the grades could not be retrieved.
func (d Detector) DeepChanges(ctx context.Context) (bool, error) {
	now := d.time.Now()
	task, err := d.db.ClaimTask(ctx, db.ClaimTaskParams{
		LeasedUntil: now.Add(d.lease).Unix(),
		Now:         now.Unix(),
	})
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		d.tel.ReportBroken(report_db_query, err, "ClaimTask")
		return false, err
	}

	user, err := d.db.GetUser(ctx, task.Login)
	if err != nil || user.PassMd5 == "" {
		if err == nil {
			err = fmt.Errorf("empty credential")
		}
		d.tel.ReportWarning(report_detector_deep, fmt.Errorf("credential missing: %w", err), task.Login)
		d.release(ctx, task)
		return false, nil
	}

	lessons, err := d.portal.Grades(ctx, identity(user))
	if err != nil {
		d.tel.ReportWarning(report_detector_deep, fmt.Errorf("retrieve grades: %w", err), task.Login)
		d.release(ctx, task)
		return false, nil
	}

	previous, hasSnapshot, err := d.previousGrades(ctx, task.Login)
	if err != nil {
		d.release(ctx, task)
		return false, err
	}

	found := DiffLessons(previous, lessons)
	for _, change := range found {
		msg := RenderMessage(d.tr, task.Login, change)
		delivered := d.notifier.SendToUser(ctx, task.Login, msg.Title, msg.Body, msg.Actions, msg.Data)
		if !delivered {
			d.tel.ReportDebug("notification not delivered", task.Login, msg.Title)
		}
	}
	d.tel.ReportCount(report_detector_notify, int64(len(found)))

	err = d.persist(ctx, task, lessons, hasSnapshot)
	return len(found) > 0, err
}

func (d Detector) previousGrades(ctx context.Context, login string) (lessons []edziennik.Lesson, exists bool, err error) {
	stored, err := d.db.GetChange(ctx, login)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		d.tel.ReportBroken(report_db_query, err, "GetChange", login)
		return nil, false, err
	}
	if !stored.LastGrades.Valid || stored.LastGrades.String == "" {
		return nil, true, nil
	}

	err = json.Unmarshal([]byte(stored.LastGrades.String), &lessons)
	if err != nil {
		// treated as no snapshot
		d.tel.ReportWarning(report_detector_deep, fmt.Errorf("decode snapshot: %w", err), login)
		return nil, true, nil
	}
	return lessons, true, nil
}

func (d Detector) persist(ctx context.Context, task db.Task, lessons []edziennik.Lesson, hasSnapshot bool) error {
	encoded, err := json.Marshal(lessons)
	if err != nil {
		d.tel.ReportBroken(report_detector_deep, fmt.Errorf("encode snapshot: %w", err), task.Login)
		return err
	}

	tx, discard, commit, err := d.makeTx(ctx)
	if err != nil {
		d.tel.ReportBroken(report_db_query, fmt.Errorf("make tx: %w", err))
		return err
	}
	defer discard()

	if !hasSnapshot {
		err = tx.CreateChange(ctx, db.CreateChangeParams{Login: task.Login})
		if err != nil {
			d.tel.ReportBroken(report_db_query, err, "CreateChange", task.Login)
			return err
		}
	}
	err = tx.UpdateChangeGrades(ctx, db.UpdateChangeGradesParams{
		LastGrades: sql.NullString{String: string(encoded), Valid: true},
		Login:      task.Login,
	})
	if err != nil {
		d.tel.ReportBroken(report_db_query, err, "UpdateChangeGrades", task.Login)
		return err
	}
	err = tx.DeleteTask(ctx, task.ID)
	if err != nil {
		d.tel.ReportBroken(report_db_query, err, "DeleteTask", task.ID)
		return err
	}

	err = commit()
	if err != nil {
		d.tel.ReportBroken(report_db_query, fmt.Errorf("commit: %w", err), task.Login)
		return err
	}
	return nil
}
