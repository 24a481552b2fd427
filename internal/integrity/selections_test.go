package integrity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSelections(t *testing.T) {
	cases := []struct {
		name        string
		description string
		want        map[string]string
	}{
		{"no separator", "Interior Paint 10L", map[string]string{}},
		{"single pair", "Paint : Color: Red", map[string]string{"Color": "Red"}},
		{"multiple pairs", "Paint : Color: Red | Finish: Matte", map[string]string{"Color": "Red", "Finish": "Matte"}},
		{"malformed segments skipped", "Paint : Color: Red | garbage | : Blue | Size: ", map[string]string{"Color": "Red"}},
		{"value keeps later colons", "Paint : Note: ships: Monday", map[string]string{"Note": "ships: Monday"}},
		{"empty remainder", "Paint : ", map[string]string{}},
		{"last duplicate wins", "Paint : Color: Red | Color: Blue", map[string]string{"Color": "Blue"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ParseSelections(tc.description))
		})
	}
}

func TestBaseSKU(t *testing.T) {
	require.Equal(t, "P-200", BaseSKU("P-200 - Red"))
	require.Equal(t, "P-200", BaseSKU("P-200"))
	require.Equal(t, "TRACK", BaseSKU("TRACK - 3M - Galvanized"))
	require.Equal(t, "", BaseSKU(" - Red"))
}
