package textutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStripTags(t *testing.T) {
	testCases := []struct {
		in       string
		expected string
	}{
		{`ООО <em>РОМАШКА</em>`, "ООО РОМАШКА"},
		{`<b>77</b>00000000`, "7700000000"},
		{"no markup at all", "no markup at all"},
		{`a &amp; b`, "a & b"},
		{"", ""},
	}

	for _, test := range testCases {
		require.Equal(t, test.expected, StripTags(test.in))
	}
}

func TestSanitizeName(t *testing.T) {
	require.Equal(t, "ООО_Ромашка", SanitizeName(`ООО "Ромашка"`))
	require.Equal(t, "a_b_c", SanitizeName("a  b//c"))
	require.Equal(t, "name", SanitizeName("(name)"))
}
