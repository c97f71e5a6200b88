package changes

import (
	"testing"

	"edziennik-backend/internal/scrapers/edziennik"
	"edziennik-backend/internal/translation"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func testGrade() edziennik.Grade {
	return edziennik.Grade{
		Category: "Test",
		Grade:    "5",
		Value:    "Bardzo dobry",
		Weight:   3,
		Period:   1,
		Average:  true,
		Date:     "12/03/24",
		Issuer:   "Jan Kowalski",
	}
}

func lesson(name string, prime []edziennik.Grade, latter ...edziennik.Grade) edziennik.Lesson {
	if prime == nil {
		prime = []edziennik.Grade{}
	}
	if latter == nil {
		latter = []edziennik.Grade{}
	}
	return edziennik.Lesson{Name: name, PrimePeriod: prime, LatterPeriod: latter}
}

func TestDiffGrade(t *testing.T) {
	was := testGrade()
	is := testGrade()
	require.Empty(t, DiffGrade(was, is))

	is.Grade = "6"
	is.Description = "Poprawa"
	is.Average = false
	expected := []FieldChange{
		{Field: "grade", Was: "5", Is: "6"},
		{Field: "average", Was: "Tak", Is: "Nie"},
		{Field: "description", Was: "", Is: "Poprawa", WasEmpty: true},
	}
	if diff := cmp.Diff(expected, DiffGrade(was, is)); diff != "" {
		t.Fatal(diff)
	}
}

func TestPhrase(t *testing.T) {
	tr := translation.NewManager()

	cases := []struct {
		change   FieldChange
		expected string
	}{
		{
			change:   FieldChange{Field: "grade", Was: "5", Is: "6"},
			expected: `Zmiana oceny, z "5", na "6".`,
		},
		{
			change:   FieldChange{Field: "description", Is: "Poprawa", WasEmpty: true},
			expected: `Nowa opis: "Poprawa".`,
		},
		{
			change:   FieldChange{Field: "weight", Was: "0", Is: "2", WasEmpty: true},
			expected: `Nowa waga: "2".`,
		},
		{
			change:   FieldChange{Field: "individual", Was: "Nie", Is: "Tak", WasEmpty: true},
			expected: `Nowa stan toku nauczania indywidualnego: "Tak".`,
		},
		{
			change:   FieldChange{Field: "issuer", Was: "Jan Kowalski", Is: "Anna Nowak"},
			expected: `Zmiana nauczyciela oceniającego, z "Jan Kowalski", na "Anna Nowak".`,
		},
	}
	for _, test := range cases {
		require.Equal(t, test.expected, Phrase(tr, test.change))
	}
}

func TestDiffLessonsChangedGrade(t *testing.T) {
	previous := []edziennik.Lesson{lesson("Math", []edziennik.Grade{testGrade()})}
	changed := testGrade()
	changed.Grade = "6"
	current := []edziennik.Lesson{lesson("Math", []edziennik.Grade{changed})}

	found := DiffLessons(previous, current)
	require.Len(t, found, 1)
	require.Equal(t, KindChanged, found[0].Kind)
	require.Equal(t, []FieldChange{{Field: "grade", Was: "5", Is: "6"}}, found[0].Fields)
	require.Equal(t, "5", found[0].Was.Grade)

	msg := RenderMessage(translation.NewManager(), "jkowalski", found[0])
	require.Equal(t, "Math - zmiana oceny", msg.Title)
	require.Equal(t, `Nauczyciel Jan Kowalski wprowadził następujące zmiany do Twojej oceny: Zmiana oceny, z "5", na "6". `, msg.Body)
	require.Equal(t, "/grades", msg.Data.Url)
	require.Equal(t, "jkowalski", msg.Data.Login)
	require.Equal(t, "6", msg.Data.NewGrade.Grade)
	require.Len(t, msg.Actions, 2)
}

func TestDiffLessonsNewGrade(t *testing.T) {
	extra := edziennik.Grade{Category: "Kartkówka", Grade: "4", Period: 2, Date: "20/03/24", Issuer: "Anna Nowak"}
	previous := []edziennik.Lesson{lesson("Math", []edziennik.Grade{testGrade()})}
	current := []edziennik.Lesson{lesson("Math", []edziennik.Grade{testGrade()}, extra)}

	found := DiffLessons(previous, current)
	require.Len(t, found, 1)
	require.Equal(t, KindNew, found[0].Kind)
	require.Nil(t, found[0].Was)

	msg := RenderMessage(translation.NewManager(), "jkowalski", found[0])
	require.Equal(t, "Math - nowa ocena", msg.Title)
	require.Equal(t, "4 - Kartkówka, wystawiona 20/03/24 przez Anna Nowak.", msg.Body)

	extra.Description = "Ułamki"
	msg = RenderMessage(translation.NewManager(), "jkowalski", GradeChange{Kind: KindNew, Lesson: "Math", Is: extra})
	require.Equal(t, "4 - Ułamki, wystawiona 20/03/24 przez Anna Nowak.", msg.Body)
}

func TestDiffLessonsIsPositional(t *testing.T) {
	first := testGrade()
	second := testGrade()
	second.Grade = "3"

	// the same grades in another order are all reported as changed
	previous := []edziennik.Lesson{lesson("Math", []edziennik.Grade{first, second})}
	current := []edziennik.Lesson{lesson("Math", []edziennik.Grade{second, first})}
	require.Len(t, DiffLessons(previous, current), 2)

	// lessons without a counterpart are compared against nothing
	current = append(current, lesson("Physics", []edziennik.Grade{first}))
	found := DiffLessons(previous, current)
	require.Len(t, found, 3)
	require.Equal(t, "Physics", found[2].Lesson)
	require.Equal(t, KindNew, found[2].Kind)

	require.Empty(t, DiffLessons(current, current))
	require.Empty(t, DiffLessons(current, nil))
}

func FuzzDiffGradeIdentity(f *testing.F) {
	f.Add("Sprawdzian", "5", 3, 1, true, "12/03/24")
	f.Add("", "", 0, 0, false, "")
	f.Fuzz(func(t *testing.T, category, grade string, weight, period int, average bool, date string) {
		g := edziennik.Grade{
			Category: category,
			Grade:    grade,
			Weight:   weight,
			Period:   period,
			Average:  average,
			Date:     date,
		}
		require.Empty(t, DiffGrade(g, g))

		changed := g
		changed.Weight++
		fields := DiffGrade(g, changed)
		require.Len(t, fields, 1)
		require.Equal(t, "weight", fields[0].Field)
	})
}
