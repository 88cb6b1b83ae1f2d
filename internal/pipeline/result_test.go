package pipeline

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"mapagov/internal/catalog"
)

func TestResultJSONShape(t *testing.T) {
	entry := catalog.Entry{
		Area: "CGBEN", Macroprocess: "M", Process: "P", Subprocess: "S",
		Activity: "Analisar requerimento", Code: "CGBEN.01.01.001",
	}
	res := newResult(OriginMatchExact)
	res.Score = 1.0
	res.Success = true
	res.Activity = &entry
	res.Actions = []Action{ActionConfirm, ActionSelectManually}

	data, err := json.Marshal(res)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, "match_exact", decoded["origin"])
	require.Equal(t, true, decoded["success"])
	require.Equal(t, []interface{}{"confirm", "select_manually"}, decoded["actions"])

	activity, ok := decoded["activity"].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "CGBEN.01.01.001", activity["code"])

	// Candidates serialize as an array even when empty.
	require.Equal(t, []interface{}{}, decoded["candidates"])
}

func TestEmptyEnvelopeHasArrays(t *testing.T) {
	data, err := json.Marshal(newResult(OriginDropdownRequired))
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.NotNil(t, decoded["candidates"])
	require.NotNil(t, decoded["actions"])
	require.Contains(t, decoded, "inherited_hierarchy")
}
