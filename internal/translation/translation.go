package translation

import (
	"regexp"
)

const (
	Nominative = 0
	Genitive   = 1
)

type entry struct {
	pattern *regexp.Regexp
	forms   [2]string
}

func newEntry(field, nominative, genitive string) entry {
	return entry{
		pattern: regexp.MustCompile("(?i)" + regexp.QuoteMeta(field)),
		forms:   [2]string{nominative, genitive},
	}
}

// Manager names grade fields in polish. The entries are applied in
// order, so a longer field must come before any field it contains.
type Manager struct {
	entries []entry
}

func NewManager() Manager {
	return Manager{entries: []entry{
		newEntry("category", "kategoria", "kategorii"),
		newEntry("grade", "ocena", "oceny"),
		newEntry("value", "wartość", "wartości"),
		newEntry("weight", "waga", "wagi"),
		newEntry("period", "semestr", "semestru"),
		newEntry("average", "stan liczenia do średniej", "stanu liczenia do średniej"),
		newEntry("individual", "stan toku nauczania indywidualnego", "stanu toku nauczania indywidualnego"),
		newEntry("description", "opis", "opisu"),
		newEntry("date", "data", "daty"),
		newEntry("issuer", "nauczyciel oceniający", "nauczyciela oceniającego"),
	}}
}

// Translate replaces every known field name inside field with its
// Nominative or Genitive form, other forms fall back to Nominative.
func (m Manager) Translate(field string, form int) string {
	if form != Nominative && form != Genitive {
		form = Nominative
	}
	for _, e := range m.entries {
		field = e.pattern.ReplaceAllLiteralString(field, e.forms[form])
	}
	return field
}
