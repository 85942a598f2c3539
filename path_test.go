package lockmgr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalize(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"root", "/db", "/db", false},
		{"root trailing slash", "/db/", "/db", false},
		{"nested", "/db/colA/colB", "/db/colA/colB", false},
		{"nested trailing slashes", "/db/colA/colB///", "/db/colA/colB", false},
		{"empty", "", "", true},
		{"missing root prefix", "/other/colA", "", true},
		{"not rooted at all", "colA", "", true},
		{"empty segment", "/db/colA//colB", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Canonicalize(tc.in)
			if tc.wantErr {
				assert.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidPath)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestAncestors(t *testing.T) {
	chain, err := Ancestors("/db/colA/colB")
	require.NoError(t, err)
	assert.Equal(t, []string{"/db", "/db/colA", "/db/colA/colB"}, chain)

	chain, err = Ancestors("/db")
	require.NoError(t, err)
	assert.Equal(t, []string{"/db"}, chain)
}

func TestParent(t *testing.T) {
	parent, ok, err := Parent("/db/colA/colB")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "/db/colA", parent)

	_, ok, err = Parent("/db")
	require.NoError(t, err)
	assert.False(t, ok)
}
