package db

import "database/sql"

type User struct {
	Login      string
	PassMd5    string
	ChildLogin sql.NullString
	Sid        sql.NullString
}

type Change struct {
	Login      string
	LastUpdate string
	LastGrades sql.NullString
}

type Task struct {
	ID          int64
	Login       string
	CreatedAt   int64
	LeasedUntil sql.NullInt64
}

type Push struct {
	ID           int64
	Login        string
	Subscription string
}
