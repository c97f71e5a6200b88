package commands

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIdentityFlags(t *testing.T) {
	flags := identityFlags{login: "rodzic", password: "haslo", child: "dziecko"}
	id, err := flags.identity()
	require.NoError(t, err)
	require.Equal(t, "rodzic", id.Login)
	require.Equal(t, "dziecko", id.ChildLogin)
	require.Len(t, id.PassMd5, 32)

	flags = identityFlags{login: "a", passwordMd5: "5F4DCC3B5AA765D61D8327DEB882CF99"}
	id, err = flags.identity()
	require.NoError(t, err)
	require.Equal(t, "5f4dcc3b5aa765d61d8327deb882cf99", id.PassMd5)

	flags = identityFlags{login: "a", passwordMd5: "abc"}
	_, err = flags.identity()
	require.Error(t, err)
}
