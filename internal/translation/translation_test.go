package translation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTranslate(t *testing.T) {
	m := NewManager()

	cases := []struct {
		field    string
		form     int
		expected string
	}{
		{field: "grade", form: Nominative, expected: "ocena"},
		{field: "grade", form: Genitive, expected: "oceny"},
		{field: "Issuer", form: Genitive, expected: "nauczyciela oceniającego"},
		{field: "DESCRIPTION", form: Nominative, expected: "opis"},
		{field: "average", form: Genitive, expected: "stanu liczenia do średniej"},
		{field: "weight", form: 7, expected: "waga"},
		{field: "period", form: -1, expected: "semestr"},
		{field: "unknown", form: Genitive, expected: "unknown"},
	}

	for _, test := range cases {
		t.Run(test.field, func(t *testing.T) {
			require.Equal(t, test.expected, m.Translate(test.field, test.form))
		})
	}
}
