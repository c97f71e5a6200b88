package changes

import (
	"fmt"
	"strconv"

	"edziennik-backend/internal/scrapers/edziennik"
	"edziennik-backend/internal/translation"
)

// FieldChange is a single differing field of a grade, values are already
// rendered as text.
type FieldChange struct {
	Field string
	Was   string
	Is    string
	// WasEmpty follows the portal's notion of empty: "", 0 or false.
	WasEmpty bool
}

type gradeField struct {
	name   string
	render func(edziennik.Grade) (value string, empty bool)
}

func stringField(name string, get func(edziennik.Grade) string) gradeField {
	return gradeField{name: name, render: func(g edziennik.Grade) (string, bool) {
		v := get(g)
		return v, v == ""
	}}
}

func intField(name string, get func(edziennik.Grade) int) gradeField {
	return gradeField{name: name, render: func(g edziennik.Grade) (string, bool) {
		v := get(g)
		return strconv.Itoa(v), v == 0
	}}
}

func boolField(name string, get func(edziennik.Grade) bool) gradeField {
	return gradeField{name: name, render: func(g edziennik.Grade) (string, bool) {
		if get(g) {
			return "Tak", false
		}
		return "Nie", true
	}}
}

// gradeFields is in the order fields are mentioned in a notification.
var gradeFields = []gradeField{
	stringField("category", func(g edziennik.Grade) string { return g.Category }),
	stringField("grade", func(g edziennik.Grade) string { return g.Grade }),
	stringField("value", func(g edziennik.Grade) string { return g.Value }),
	intField("weight", func(g edziennik.Grade) int { return g.Weight }),
	intField("period", func(g edziennik.Grade) int { return g.Period }),
	boolField("average", func(g edziennik.Grade) bool { return g.Average }),
	boolField("individual", func(g edziennik.Grade) bool { return g.Individual }),
	stringField("description", func(g edziennik.Grade) string { return g.Description }),
	stringField("date", func(g edziennik.Grade) string { return g.Date }),
	stringField("issuer", func(g edziennik.Grade) string { return g.Issuer }),
}

// DiffGrade lists the fields that differ between two versions of a grade.
func DiffGrade(was, is edziennik.Grade) []FieldChange {
	var changes []FieldChange
	for _, f := range gradeFields {
		wasValue, wasEmpty := f.render(was)
		isValue, _ := f.render(is)
		if wasValue == isValue {
			continue
		}
		changes = append(changes, FieldChange{
			Field:    f.name,
			Was:      wasValue,
			Is:       isValue,
			WasEmpty: wasEmpty,
		})
	}
	return changes
}

// Phrase describes a field change in a sentence.
func Phrase(tr translation.Manager, change FieldChange) string {
	if change.WasEmpty {
		return fmt.Sprintf(`Nowa %s: "%s".`, tr.Translate(change.Field, translation.Nominative), change.Is)
	}
	return fmt.Sprintf(
		`Zmiana %s, z "%s", na "%s".`,
		tr.Translate(change.Field, translation.Genitive),
		change.Was,
		change.Is,
	)
}

type Kind int

const (
	KindNew Kind = iota
	KindChanged
)

// GradeChange is a grade that is either new or differs from its previous
// version at the same position.
type GradeChange struct {
	Kind   Kind
	Lesson string
	Was    *edziennik.Grade
	Is     edziennik.Grade
	Fields []FieldChange
}

func lessonGrades(l edziennik.Lesson) []edziennik.Grade {
	grades := make([]edziennik.Grade, 0, len(l.PrimePeriod)+len(l.LatterPeriod))
	grades = append(grades, l.PrimePeriod...)
	return append(grades, l.LatterPeriod...)
}

// DiffLessons compares two snapshots position by position, the n-th lesson
// (and the n-th grade within it) of current is compared against the n-th
// of previous.
func DiffLessons(previous, current []edziennik.Lesson) []GradeChange {
	var changes []GradeChange
	for i, lesson := range current {
		var was []edziennik.Grade
		if i < len(previous) {
			was = lessonGrades(previous[i])
		}

		for j, is := range lessonGrades(lesson) {
			if j >= len(was) {
				changes = append(changes, GradeChange{
					Kind:   KindNew,
					Lesson: lesson.Name,
					Is:     is,
				})
				continue
			}

			fields := DiffGrade(was[j], is)
			if len(fields) == 0 {
				continue
			}
			old := was[j]
			changes = append(changes, GradeChange{
				Kind:   KindChanged,
				Lesson: lesson.Name,
				Was:    &old,
				Is:     is,
				Fields: fields,
			})
		}
	}
	return changes
}
