package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrontierScope(t *testing.T) {
	t.Parallel()

	cases := []struct {
		url  string
		want bool
	}{
		{"https://www.standardbank.co.mz/x", true},
		{"https://standardbank.co.mz/x", true},
		{"https://evil.example.com/standardbank.co.mz", false},
		{"https://standardbank.co.mz.attacker.net/", true},
		{"mailto:info@standardbank.co.mz", false},
		{"javascript:void(0)", false},
	}
	for _, tc := range cases {
		t.Run(tc.url, func(t *testing.T) {
			t.Parallel()
			f := NewFrontier("standardbank.co.mz")
			require.Equal(t, tc.want, f.EnqueueIfInScope(tc.url, testBase))
		})
	}
}

func TestFrontierResolvesRelativeLinks(t *testing.T) {
	t.Parallel()

	f := NewFrontier("standardbank.co.mz")
	require.True(t, f.EnqueueIfInScope("../contas", "https://www.standardbank.co.mz/pt/pessoal/"))
	batch := f.DequeueBatch(5)
	require.Equal(t, []string{"https://www.standardbank.co.mz/pt/contas"}, batch)
}

func TestFrontierDedup(t *testing.T) {
	t.Parallel()

	f := NewFrontier("standardbank.co.mz")
	require.True(t, f.Seed(testBase))
	require.False(t, f.EnqueueIfInScope(testBase, testBase), "already queued")
	require.Equal(t, []string{testBase}, f.DequeueBatch(5))
	require.True(t, f.Visited(testBase))
	require.False(t, f.EnqueueIfInScope(testBase, testBase), "already visited")
	require.False(t, f.EnqueueIfInScope("/", testBase), "relative form of a visited URL")
	require.True(t, f.IsExhausted())
}

func TestFrontierFragmentsAreDistinct(t *testing.T) {
	t.Parallel()

	f := NewFrontier("standardbank.co.mz")
	require.True(t, f.EnqueueIfInScope("/a", testBase))
	require.True(t, f.EnqueueIfInScope("/a#top", testBase))
	require.Equal(t, 2, f.Pending())
}

func TestFrontierDequeueBatchFIFO(t *testing.T) {
	t.Parallel()

	f := NewFrontier("standardbank.co.mz")
	for _, p := range []string{"/1", "/2", "/3", "/4", "/5", "/6", "/7"} {
		require.True(t, f.EnqueueIfInScope(p, testBase))
	}
	first := f.DequeueBatch(5)
	assert.Equal(t, []string{
		testBase + "1", testBase + "2", testBase + "3", testBase + "4", testBase + "5",
	}, first)
	assert.Equal(t, 2, f.Pending())
	assert.Equal(t, 5, f.VisitedCount())

	second := f.DequeueBatch(5)
	assert.Equal(t, []string{testBase + "6", testBase + "7"}, second)
	assert.True(t, f.IsExhausted())
	assert.Nil(t, f.DequeueBatch(5))
	assert.Nil(t, f.DequeueBatch(0))
}

func TestFrontierDropsMalformed(t *testing.T) {
	t.Parallel()

	f := NewFrontier("standardbank.co.mz")
	require.False(t, f.EnqueueIfInScope("http://[::1", testBase))
	require.False(t, f.Seed("/relative-only"))
	require.True(t, f.IsExhausted())
}
