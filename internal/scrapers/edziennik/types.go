package edziennik

import (
	"crypto/sha1"
	"encoding/hex"
)

// Identity is what the portal needs to act as a user.
type Identity struct {
	Login      string
	PassMd5    string
	ChildLogin string
}

// student is the login whose data is requested, parents act on behalf of
// their child.
func (i Identity) student() string {
	if i.ChildLogin != "" {
		return i.ChildLogin
	}
	return i.Login
}

// LoginKey is the stable key a user's session is stored under.
func LoginKey(login string) string {
	sum := sha1.Sum([]byte(login))
	return hex.EncodeToString(sum[:])
}

const (
	AccountChild  = "child"
	AccountParent = "parent"
)

type Child struct {
	Login   string `json:"login"`
	Name    string `json:"name"`
	Surname string `json:"surname"`
	School  string `json:"school"`
}

type LoginResult struct {
	UserName    string `json:"userName"`
	LastUpdate  string `json:"lastUpdate"`
	AccountType string `json:"accountType"`

	// set for child accounts
	School  string `json:"school,omitempty"`
	Name    string `json:"name,omitempty"`
	Surname string `json:"surname,omitempty"`
	Login   string `json:"login,omitempty"`

	// set for parent accounts
	Child *Child `json:"child,omitempty"`

	// Sid is the session token the login produced.
	Sid string `json:"-"`
}

// Grade is a single grade row. The json names are the ones stored in
// snapshots, changing them breaks diffs against existing rows.
type Grade struct {
	Category    string `json:"category"`
	Grade       string `json:"grade"`
	Value       string `json:"value"`
	Weight      int    `json:"weight"`
	Period      int    `json:"period"`
	Average     bool   `json:"average"`
	Individual  bool   `json:"individual"`
	Description string `json:"description"`
	Date        string `json:"date"`
	Issuer      string `json:"issuer"`
}

type Lesson struct {
	Name         string  `json:"name"`
	PrimePeriod  []Grade `json:"primePeriod"`
	LatterPeriod []Grade `json:"latterPeriod"`
}

type Exam struct {
	School    string `json:"school"`
	Group     string `json:"group"`
	Category  string `json:"category"`
	Type      string `json:"type"`
	Location  string `json:"location"`
	Lesson    string `json:"lesson"`
	Subject   string `json:"subject"`
	Target    string `json:"target"`
	Info      string `json:"info"`
	DateStart string `json:"dateStart"`
	DateEnd   string `json:"dateEnd"`
	DateAdded string `json:"dateAdded"`
	Issuer    string `json:"issuer"`
}

type Homework struct {
	School  string `json:"school"`
	Group   string `json:"group"`
	Lesson  string `json:"lesson"`
	Info    string `json:"info"`
	DateEnd string `json:"dateEnd"`
}

const (
	CycleWeekly = "weekly"
	CycleDaily  = "daily"
)

type Subject struct {
	School        string `json:"school"`
	Group         string `json:"group"`
	Season        string `json:"season"`
	Lesson        string `json:"lesson"`
	Cycle         string `json:"cycle"`
	Date          string `json:"date"`
	DateStart     string `json:"dateStart"`
	DateEnd       string `json:"dateEnd"`
	DayInWeekName string `json:"dayInWeekName"`
	LessonNumber  int    `json:"lessonNumber,omitempty"`
	LessonNumbers []int  `json:"lessonNumbers,omitempty"`
	Value         string `json:"value"`
}

type PlanEntry struct {
	Time    string `json:"time"`
	Date    string `json:"date"`
	Empty   bool   `json:"empty,omitempty"`
	Name    string `json:"name,omitempty"`
	Teacher string `json:"teacher,omitempty"`
}

type WeeklyPlan struct {
	Monday    []PlanEntry `json:"monday"`
	Tuesday   []PlanEntry `json:"tuesday"`
	Wednesday []PlanEntry `json:"wednesday"`
	Thursday  []PlanEntry `json:"thursday"`
	Friday    []PlanEntry `json:"friday"`
}

// Day returns the entries of the i-th school day, 1 being monday.
func (w *WeeklyPlan) Day(i int) *[]PlanEntry {
	switch i {
	case 1:
		return &w.Monday
	case 2:
		return &w.Tuesday
	case 3:
		return &w.Wednesday
	case 4:
		return &w.Thursday
	case 5:
		return &w.Friday
	}
	return nil
}
