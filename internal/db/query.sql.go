package db

import (
	"context"
	"database/sql"
)

const getUsers = `select login, pass_md5, child_login, sid from users order by login`

func (q *Queries) GetUsers(ctx context.Context) ([]User, error) {
	rows, err := q.db.QueryContext(ctx, getUsers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []User
	for rows.Next() {
		var i User
		if err := rows.Scan(&i.Login, &i.PassMd5, &i.ChildLogin, &i.Sid); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getUser = `select login, pass_md5, child_login, sid from users where login = ?`

func (q *Queries) GetUser(ctx context.Context, login string) (User, error) {
	row := q.db.QueryRowContext(ctx, getUser, login)
	var i User
	err := row.Scan(&i.Login, &i.PassMd5, &i.ChildLogin, &i.Sid)
	return i, err
}

const createUser = `insert or ignore into users (login, pass_md5, child_login, sid) values (?, ?, ?, ?)`

type CreateUserParams struct {
	Login      string
	PassMd5    string
	ChildLogin sql.NullString
	Sid        sql.NullString
}

// CreateUser returns the number of inserted rows, 0 means the user already existed.
func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, createUser,
		arg.Login,
		arg.PassMd5,
		arg.ChildLogin,
		arg.Sid,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const updateUserCredentials = `update users set pass_md5 = ?, child_login = ? where login = ?`

type UpdateUserCredentialsParams struct {
	PassMd5    string
	ChildLogin sql.NullString
	Login      string
}

func (q *Queries) UpdateUserCredentials(ctx context.Context, arg UpdateUserCredentialsParams) error {
	_, err := q.db.ExecContext(ctx, updateUserCredentials, arg.PassMd5, arg.ChildLogin, arg.Login)
	return err
}

const updateUserSid = `update users set sid = ? where login = ?`

type UpdateUserSidParams struct {
	Sid   sql.NullString
	Login string
}

func (q *Queries) UpdateUserSid(ctx context.Context, arg UpdateUserSidParams) error {
	_, err := q.db.ExecContext(ctx, updateUserSid, arg.Sid, arg.Login)
	return err
}

const deleteUser = `delete from users where login = ?`

func (q *Queries) DeleteUser(ctx context.Context, login string) error {
	_, err := q.db.ExecContext(ctx, deleteUser, login)
	return err
}

const getChange = `select login, last_update, last_grades from changes where login = ?`

func (q *Queries) GetChange(ctx context.Context, login string) (Change, error) {
	row := q.db.QueryRowContext(ctx, getChange, login)
	var i Change
	err := row.Scan(&i.Login, &i.LastUpdate, &i.LastGrades)
	return i, err
}

const createChange = `insert into changes (login, last_update) values (?, ?)`

type CreateChangeParams struct {
	Login      string
	LastUpdate string
}

func (q *Queries) CreateChange(ctx context.Context, arg CreateChangeParams) error {
	_, err := q.db.ExecContext(ctx, createChange, arg.Login, arg.LastUpdate)
	return err
}

const updateChangeFingerprint = `update changes set last_update = ? where login = ?`

type UpdateChangeFingerprintParams struct {
	LastUpdate string
	Login      string
}

func (q *Queries) UpdateChangeFingerprint(ctx context.Context, arg UpdateChangeFingerprintParams) error {
	_, err := q.db.ExecContext(ctx, updateChangeFingerprint, arg.LastUpdate, arg.Login)
	return err
}

const updateChangeGrades = `update changes set last_grades = ? where login = ?`

type UpdateChangeGradesParams struct {
	LastGrades sql.NullString
	Login      string
}

func (q *Queries) UpdateChangeGrades(ctx context.Context, arg UpdateChangeGradesParams) error {
	_, err := q.db.ExecContext(ctx, updateChangeGrades, arg.LastGrades, arg.Login)
	return err
}

const deleteChange = `delete from changes where login = ?`

func (q *Queries) DeleteChange(ctx context.Context, login string) error {
	_, err := q.db.ExecContext(ctx, deleteChange, login)
	return err
}

const enqueueTask = `insert into tasks (login, created_at)
select ?1, ?2
where not exists (
    select 1 from tasks where login = ?1 and leased_until is null
)`

type EnqueueTaskParams struct {
	Login     string
	CreatedAt int64
}

// EnqueueTask adds a task for the login unless one is already waiting to
// be claimed, it returns the number of inserted rows.
func (q *Queries) EnqueueTask(ctx context.Context, arg EnqueueTaskParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, enqueueTask, arg.Login, arg.CreatedAt)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const claimTask = `update tasks set leased_until = ?1
where id = (
    select id from tasks
    where leased_until is null or leased_until <= ?2
    order by id
    limit 1
)
returning id, login, created_at, leased_until`

type ClaimTaskParams struct {
	LeasedUntil int64
	Now         int64
}

// ClaimTask leases the oldest claimable task, it returns sql.ErrNoRows when
// there is nothing to claim.
func (q *Queries) ClaimTask(ctx context.Context, arg ClaimTaskParams) (Task, error) {
	row := q.db.QueryRowContext(ctx, claimTask, arg.LeasedUntil, arg.Now)
	var i Task
	err := row.Scan(&i.ID, &i.Login, &i.CreatedAt, &i.LeasedUntil)
	return i, err
}

const releaseTask = `update tasks set leased_until = null where id = ?`

func (q *Queries) ReleaseTask(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, releaseTask, id)
	return err
}

const deleteTask = `delete from tasks where id = ?`

func (q *Queries) DeleteTask(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, deleteTask, id)
	return err
}

const deleteUserTasks = `delete from tasks where login = ?`

func (q *Queries) DeleteUserTasks(ctx context.Context, login string) error {
	_, err := q.db.ExecContext(ctx, deleteUserTasks, login)
	return err
}

const getTasks = `select id, login, created_at, leased_until from tasks order by id`

func (q *Queries) GetTasks(ctx context.Context) ([]Task, error) {
	rows, err := q.db.QueryContext(ctx, getTasks)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Task
	for rows.Next() {
		var i Task
		if err := rows.Scan(&i.ID, &i.Login, &i.CreatedAt, &i.LeasedUntil); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getUserPush = `select id, login, subscription from push where login = ? order by id`

func (q *Queries) GetUserPush(ctx context.Context, login string) ([]Push, error) {
	rows, err := q.db.QueryContext(ctx, getUserPush, login)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Push
	for rows.Next() {
		var i Push
		if err := rows.Scan(&i.ID, &i.Login, &i.Subscription); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createPush = `insert or ignore into push (login, subscription) values (?, ?)`

type CreatePushParams struct {
	Login        string
	Subscription string
}

// CreatePush returns the number of inserted rows, 0 means the subscription
// was already on file.
func (q *Queries) CreatePush(ctx context.Context, arg CreatePushParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, createPush, arg.Login, arg.Subscription)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deletePush = `delete from push where id = ?`

func (q *Queries) DeletePush(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, deletePush, id)
	return err
}

const deleteUserPush = `delete from push where login = ?`

func (q *Queries) DeleteUserPush(ctx context.Context, login string) error {
	_, err := q.db.ExecContext(ctx, deleteUserPush, login)
	return err
}
