package jsvar

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractObject(t *testing.T) {
	var v map[string][]int
	err := ExtractInto("x", `x = {"a": [1,2]} `, &v)
	require.NoError(t, err)
	require.Equal(t, map[string][]int{"a": {1, 2}}, v)
}

func TestExtractInsideLargerScript(t *testing.T) {
	script := `
		var config = load();
		PXP.NavigationData = {"items": [{"description": "Grade Book", "url": "PXP2_Gradebook.aspx"}]};
		PXP.init(config);
	`
	var v struct {
		Items []struct {
			Description string `json:"description"`
			Url         string `json:"url"`
		} `json:"items"`
	}
	err := ExtractInto("PXP.NavigationData", script, &v)
	require.NoError(t, err)
	require.Len(t, v.Items, 1)
	require.Equal(t, "Grade Book", v.Items[0].Description)
}

func TestExtractBracketsInsideStrings(t *testing.T) {
	raw, err := Extract("x", `x = {"label": "a } b [ c"}`)
	require.NoError(t, err)
	require.Equal(t, `{"label": "a } b [ c"}`, string(raw))
}

func TestExtractWhitespaceTolerant(t *testing.T) {
	raw, err := Extract("nav", "nav   =\n\t[1, 2, 3]")
	require.NoError(t, err)
	require.Equal(t, "[1, 2, 3]", string(raw))
}

func TestExtractFailures(t *testing.T) {
	for _, tc := range []struct {
		name   string
		script string
	}{
		{"missing assignment", `y = {}`},
		{"not an opener", `x = 12`},
		{"mismatched brackets", `x = (]`},
		{"unclosed brace", `x = {"a": [1,2]`},
		{"eof after equals", `x = `},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Extract("x", tc.script)
			require.Error(t, err)
			var syntaxErr *SyntaxError
			require.ErrorAs(t, err, &syntaxErr)
		})
	}
}
