package crawler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveURL(t *testing.T) {
	t.Parallel()

	got, err := ResolveURL(" /en/about ", "https://www.standardbank.co.mz/pt/")
	require.NoError(t, err)
	require.Equal(t, "https://www.standardbank.co.mz/en/about", got)

	got, err = ResolveURL("https://standardbank.co.mz/x?y=1#z", "")
	require.NoError(t, err)
	require.Equal(t, "https://standardbank.co.mz/x?y=1#z", got)

	_, err = ResolveURL("relative", "")
	require.ErrorIs(t, err, ErrMalformedURL)

	_, err = ResolveURL("http://[::1", testBase)
	require.ErrorIs(t, err, ErrMalformedURL)
}

func TestHostContains(t *testing.T) {
	t.Parallel()

	require.True(t, HostContains("https://WWW.STANDARDBANK.CO.MZ/", "standardbank.co.mz"))
	require.False(t, HostContains("https://example.com/standardbank.co.mz", "standardbank.co.mz"))
	require.False(t, HostContains("mailto:a@standardbank.co.mz", "standardbank.co.mz"))
	require.False(t, HostContains("https://standardbank.co.mz/", ""))
}
