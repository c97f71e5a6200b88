package edziennik

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"edziennik-backend/internal/components/chrono"
	"edziennik-backend/lib/htmlutil"
	"edziennik-backend/lib/textutil"

	"github.com/PuerkitoBio/goquery"
)

const (
	// JSLayout is how every date leaves this package, it matches what
	// javascript's Date.toString() produces without the zone name.
	JSLayout = "Mon Jan 02 2006 15:04:05 -0700"

	lastUpdateLayout     = "2006-01-02 15:04:05"
	portalDateTimeLayout = "02/01/06 15:04:05"
	portalDateLayout     = "02/01/06"
)

const dataRowSelector = "tr.dataRowExport"

var lastUpdateRegex = regexp.MustCompile(`\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}`)

// rejectedLoginMarker is present in the login response when the credentials
// are wrong.
const rejectedLoginMarker = "Niepoprawna"

// SessionExpired reports whether the portal answered with its login prompt
// instead of the requested page.
func SessionExpired(doc *goquery.Document) bool {
	return doc.Find("#pass").Length() > 0
}

// ExtractSid reads the session token from the meta refresh directive the
// portal answers a login with.
func ExtractSid(doc *goquery.Document) (string, error) {
	var sid string
	doc.Find("meta[content]").EachWithBreak(func(_ int, meta *goquery.Selection) bool {
		content := meta.AttrOr("content", "")
		idx := strings.Index(strings.ToLower(content), "url=")
		if idx < 0 {
			return true
		}
		target := strings.Trim(strings.TrimSpace(content[idx+len("url="):]), `'"`)
		parsed, err := url.Parse(target)
		if err != nil {
			return true
		}
		sid = parsed.Query().Get("sid")
		return sid == ""
	})
	if sid == "" {
		return "", parseError("session token in meta refresh")
	}
	return sid, nil
}

type UserInfo struct {
	LastUpdate time.Time
	UserName   string
}

// ExtractUserInfo reads the last update timestamp and the display name out
// of the #userinfo element, the name lives in a nested #userinfo.
func ExtractUserInfo(doc *goquery.Document) (UserInfo, error) {
	outer := doc.Find("#userinfo").First()
	if outer.Length() == 0 {
		return UserInfo{}, parseError("#userinfo")
	}

	raw := lastUpdateRegex.FindString(outer.Text())
	if raw == "" {
		return UserInfo{}, parseError("last update timestamp in #userinfo")
	}
	lastUpdate, err := time.ParseInLocation(lastUpdateLayout, raw, chrono.Warsaw())
	if err != nil {
		return UserInfo{}, parseError("valid last update timestamp (%q)", raw)
	}

	info := UserInfo{LastUpdate: lastUpdate}
	nested := outer.Find("#userinfo").First()
	if nested.Length() > 0 {
		name := nested.Text()
		if _, after, found := strings.Cut(name, ":"); found {
			name = after
		}
		info.UserName = strings.TrimRight(textutil.Clean(name), ")] ")
	}
	return info, nil
}

// ExtractAjaxHash reads the token the portal requires on action_ajax.pl.
func ExtractAjaxHash(doc *goquery.Document) (string, error) {
	hash := doc.Find("#f_uczen_value_div").AttrOr("hash", "")
	if hash == "" {
		return "", parseError("#f_uczen_value_div[hash]")
	}
	return hash, nil
}

// ExtractChild reads the student linked to the account out of the
// student picker response.
func ExtractChild(doc *goquery.Document) (Child, error) {
	attr := func(selector, name string) (string, error) {
		value, ok := doc.Find(selector).First().Attr(name)
		if !ok {
			return "", parseError("%s[%s]", selector, name)
		}
		return strings.TrimSpace(value), nil
	}

	var child Child
	var err error
	if child.Login, err = attr(".link_list_element", "key"); err != nil {
		return Child{}, err
	}
	if child.Name, err = attr(`[key="p.imie"]`, "val"); err != nil {
		return Child{}, err
	}
	if child.Surname, err = attr(`[key="p.nazwisko"]`, "val"); err != nil {
		return Child{}, err
	}
	if child.School, err = attr(`[key="s.nazwa"]`, "val"); err != nil {
		return Child{}, err
	}
	return child, nil
}

// dataRows returns the cells of every data row, failing if any row has
// fewer than `columns` cells.
func dataRows(doc *goquery.Document, kind string, columns int) ([][]*goquery.Selection, error) {
	var rows [][]*goquery.Selection
	var err error
	doc.Find(dataRowSelector).EachWithBreak(func(i int, row *goquery.Selection) bool {
		tds := row.ChildrenFiltered("td")
		if tds.Length() < columns {
			err = parseError("%s row %d: %d of %d cells", kind, i, tds.Length(), columns)
			return false
		}
		cells := make([]*goquery.Selection, tds.Length())
		tds.Each(func(j int, td *goquery.Selection) {
			cells[j] = td
		})
		rows = append(rows, cells)
		return true
	})
	return rows, err
}

func cellText(cell *goquery.Selection) string {
	return textutil.Clean(cell.Text())
}

func cellDate(cell *goquery.Selection) string {
	return textutil.Clean(htmlutil.WrappedText(cell, "nobr"))
}

func reformatDate(raw, layout, what string) (string, error) {
	parsed, err := time.ParseInLocation(layout, raw, chrono.Warsaw())
	if err != nil {
		return "", parseError("%s in %q format (got %q)", what, layout, raw)
	}
	return parsed.Format(JSLayout), nil
}

// ExtractLessonNames returns the raw lesson names of the grade overview,
// they are needed verbatim to request the per lesson details.
func ExtractLessonNames(doc *goquery.Document) ([]string, error) {
	rows, err := dataRows(doc, "lesson", 1)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(rows))
	for i, cells := range rows {
		names[i] = strings.TrimSpace(cells[0].Text())
	}
	return names, nil
}

// ExtractGrades parses the grade details of a single lesson.
func ExtractGrades(doc *goquery.Document) ([]Grade, error) {
	rows, err := dataRows(doc, "grade", 11)
	if err != nil {
		return nil, err
	}

	grades := make([]Grade, 0, len(rows))
	for _, cells := range rows {
		category := textutil.UcFirst(cells[0].Text())
		if suffix := textutil.UcFirst(cells[1].Text()); suffix != "" {
			category += " " + suffix
		}
		weight, _ := strconv.Atoi(cellText(cells[4]))
		period, _ := strconv.Atoi(cellText(cells[5]))

		grades = append(grades, Grade{
			Category:    category,
			Grade:       cellText(cells[2]),
			Value:       cellText(cells[3]),
			Weight:      weight,
			Period:      period,
			Average:     textutil.IsAffirmative(cells[6].Text()),
			Individual:  textutil.IsAffirmative(cells[7].Text()),
			Description: cellText(cells[8]),
			Date:        cellDate(cells[9]),
			Issuer:      textutil.TitleCase(cells[10].Text()),
		})
	}
	return grades, nil
}

// NewLesson sorts grades into their halves of the school year, the
// lists are never nil so they serialize as empty arrays.
func NewLesson(rawName string, grades []Grade) Lesson {
	lesson := Lesson{
		Name:         textutil.UcFirst(rawName),
		PrimePeriod:  []Grade{},
		LatterPeriod: []Grade{},
	}
	for _, g := range grades {
		if g.Period == 1 {
			lesson.PrimePeriod = append(lesson.PrimePeriod, g)
		} else {
			lesson.LatterPeriod = append(lesson.LatterPeriod, g)
		}
	}
	return lesson
}

func ExtractExams(doc *goquery.Document) ([]Exam, error) {
	rows, err := dataRows(doc, "exam", 13)
	if err != nil {
		return nil, err
	}

	exams := make([]Exam, 0, len(rows))
	for _, cells := range rows {
		dateStart, err := reformatDate(cellDate(cells[9]), portalDateTimeLayout, "exam start")
		if err != nil {
			return nil, err
		}
		dateEnd, err := reformatDate(cellDate(cells[10]), portalDateTimeLayout, "exam end")
		if err != nil {
			return nil, err
		}
		exams = append(exams, Exam{
			School:    textutil.TitleCase(cells[0].Text()),
			Group:     textutil.TitleCase(cells[1].Text()),
			Category:  textutil.UcFirst(cells[2].Text()),
			Type:      textutil.UcFirst(cells[3].Text()),
			Location:  textutil.UcFirst(cells[4].Text()),
			Lesson:    textutil.UcFirst(cells[5].Text()),
			Subject:   textutil.UcFirst(cells[6].Text()),
			Target:    textutil.UcFirst(cells[7].Text()),
			Info:      textutil.UcFirst(cells[8].Text()),
			DateStart: dateStart,
			DateEnd:   dateEnd,
			DateAdded: cellDate(cells[11]),
			Issuer:    textutil.TitleCase(cells[12].Text()),
		})
	}
	return exams, nil
}

func ExtractHomeworks(doc *goquery.Document) ([]Homework, error) {
	rows, err := dataRows(doc, "homework", 5)
	if err != nil {
		return nil, err
	}

	homeworks := make([]Homework, 0, len(rows))
	for _, cells := range rows {
		dateEnd, err := reformatDate(cellDate(cells[4]), portalDateTimeLayout, "homework deadline")
		if err != nil {
			return nil, err
		}
		homeworks = append(homeworks, Homework{
			School:  textutil.TitleCase(cells[0].Text()),
			Group:   textutil.TitleCase(cells[1].Text()),
			Lesson:  textutil.UcFirst(cells[2].Text()),
			Info:    textutil.UcFirst(cells[3].Text()),
			DateEnd: dateEnd,
		})
	}
	return homeworks, nil
}

func ExtractSubjects(doc *goquery.Document) ([]Subject, error) {
	rows, err := dataRows(doc, "subject", 11)
	if err != nil {
		return nil, err
	}

	subjects := make([]Subject, 0, len(rows))
	for _, cells := range rows {
		subject := Subject{
			School: textutil.TitleCase(cells[0].Text()),
			Group:  textutil.TitleCase(cells[1].Text()),
			Season: textutil.TitleCase(cells[2].Text()),
			Lesson: textutil.UcFirst(cells[3].Text()),
			// cells[4] is the lesson name in another language
			Cycle:         CycleDaily,
			DayInWeekName: textutil.UcFirst(cells[9].Text()),
		}
		if textutil.Lower(cellText(cells[5])) == "tygodniowy" {
			subject.Cycle = CycleWeekly
		}

		dates := []*string{&subject.Date, &subject.DateStart, &subject.DateEnd}
		for i, target := range dates {
			*target, err = reformatDate(cellDate(cells[6+i]), portalDateLayout, "subject date")
			if err != nil {
				return nil, err
			}
		}

		subject.LessonNumber, subject.LessonNumbers, subject.Value = parseLessonNumbers(cellText(cells[10]))
		subjects = append(subjects, subject)
	}
	return subjects, nil
}

const maxLessonSpan = 24

// parseLessonNumbers splits cells shaped like "3, topic" or "3-4, topic".
func parseLessonNumbers(cell string) (number int, numbers []int, value string) {
	numberPart, valuePart, found := strings.Cut(cell, ",")
	if !found {
		return 0, nil, textutil.UcFirst(cell)
	}
	value = textutil.UcFirst(valuePart)

	startRaw, stopRaw, isRange := strings.Cut(strings.TrimSpace(numberPart), "-")
	start, _ := strconv.Atoi(strings.TrimSpace(startRaw))
	if !isRange {
		return start, nil, value
	}
	stop, _ := strconv.Atoi(strings.TrimSpace(stopRaw))
	// a school day never has more than a couple dozen lessons
	if stop <= start || stop-start > maxLessonSpan {
		return start, nil, value
	}
	for i := start; i <= stop; i++ {
		numbers = append(numbers, i)
	}
	return 0, numbers, value
}

func planRows(doc *goquery.Document, which string) ([]*goquery.Selection, error) {
	table := doc.Find("#printContent > table").First()
	if table.Length() == 0 {
		return nil, parseError("#printContent > table (%s)", which)
	}

	var rows []*goquery.Selection
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		if !tr.Closest("table").IsSelection(table) {
			// rows of the tables nested inside lesson cells
			return
		}
		isLessonRow := tr.Find("tr").Length() > 0 || tr.Find("b").Length() > 0
		isHeader := tr.Find("b > a[href]").Length() > 0
		if isLessonRow && !isHeader {
			rows = append(rows, tr)
		}
	})
	return rows, nil
}

func planEntry(cell *goquery.Selection, rowTime string, date time.Time) PlanEntry {
	entry := PlanEntry{
		Time: rowTime,
		Date: date.Format(JSLayout),
	}
	if strings.TrimSpace(cell.Text()) == "" {
		entry.Empty = true
		return entry
	}

	inner := cell.Find("td").First()
	if inner.Length() == 0 {
		inner = cell
	}
	lines := htmlutil.SplitBreaks(inner)
	entry.Name = textutil.UcFirst(lines[0])
	if len(lines) > 1 && strings.TrimSpace(lines[1]) != "" {
		entry.Time = textutil.Clean(lines[1])
	}
	if len(lines) > 2 {
		entry.Teacher = textutil.TitleCase(lines[2])
	}
	return entry
}

// ExtractPlan merges this and next week's plan pages, days of this week
// that have already passed are taken from next week. monday is the monday
// of the current week and weekday is today's time.Weekday.
func ExtractPlan(thisWeek, nextWeek *goquery.Document, monday time.Time, weekday time.Weekday) (WeeklyPlan, error) {
	plan := WeeklyPlan{
		Monday:    []PlanEntry{},
		Tuesday:   []PlanEntry{},
		Wednesday: []PlanEntry{},
		Thursday:  []PlanEntry{},
		Friday:    []PlanEntry{},
	}

	current, err := planRows(thisWeek, "this week")
	if err != nil {
		return WeeklyPlan{}, err
	}
	next, err := planRows(nextWeek, "next week")
	if err != nil {
		return WeeklyPlan{}, err
	}

	for r, row := range current {
		firstCell := row.ChildrenFiltered("td").First()
		rowTime := htmlutil.TimeRange.FindString(firstCell.Text())
		if rowTime == "" {
			rowTime = textutil.Clean(firstCell.Text())
		}

		for day := 1; day <= 5; day++ {
			source := row
			date := monday.AddDate(0, 0, day-1)
			if int(weekday) > day {
				if r >= len(next) {
					return WeeklyPlan{}, parseError("next week plan row %d", r)
				}
				source = next[r]
				date = date.AddDate(0, 0, 7)
			}

			cells := source.ChildrenFiltered("td")
			if cells.Length() <= day {
				// rows without a cell for the day are lesson hours that don't exist on that day
				continue
			}
			entries := plan.Day(day)
			*entries = append(*entries, planEntry(cells.Eq(day), rowTime, date))
		}
	}

	return plan, nil
}
