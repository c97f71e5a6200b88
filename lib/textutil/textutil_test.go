package textutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCasing(t *testing.T) {
	testCases := []struct {
		in    string
		ucfst string
		title string
	}{
		{in: "  JĘZYK POLSKI ", ucfst: "Język polski", title: "Język Polski"},
		{in: "żaneta  ŁUCZAK", ucfst: "Żaneta łuczak", title: "Żaneta Łuczak"},
		{in: "sprawdzian\n\tz   działu", ucfst: "Sprawdzian z działu", title: "Sprawdzian Z Działu"},
		{in: "", ucfst: "", title: ""},
	}

	for _, test := range testCases {
		require.Equal(t, test.ucfst, UcFirst(test.in), test.in)
		require.Equal(t, test.title, TitleCase(test.in), test.in)
	}
}

func TestIsAffirmative(t *testing.T) {
	require.True(t, IsAffirmative(" Tak "))
	require.False(t, IsAffirmative("Nie"))
	require.False(t, IsAffirmative("tak"))
	require.False(t, IsAffirmative(""))
}
