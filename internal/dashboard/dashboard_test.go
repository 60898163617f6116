package dashboard

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	body := Build("us-east-2", []Function{
		{Label: "Transform", Name: "ComputeStack-ApiTransform"},
		{Label: "Progress", Name: "ComputeStack-UserProgress"},
	})

	require.Len(t, body.Widgets, 4)

	invocations := body.Widgets[0]
	assert.Equal(t, "metric", invocations.Type)
	assert.Equal(t, 0, invocations.X)
	assert.Equal(t, 0, invocations.Y)
	assert.Equal(t, "Transform Invocations", invocations.Properties.Title)
	assert.Equal(t, "Sum", invocations.Properties.Stat)
	assert.Equal(t, 60, invocations.Properties.Period)
	assert.Equal(t, [][]any{{"AWS/Lambda", "Invocations", "FunctionName", "ComputeStack-ApiTransform"}}, invocations.Properties.Metrics)

	errors := body.Widgets[1]
	assert.Equal(t, 12, errors.X)
	assert.Equal(t, 0, errors.Y)
	assert.Equal(t, "Errors", errors.Properties.Metrics[0][1])

	assert.Equal(t, 6, body.Widgets[2].Y)
	assert.Equal(t, 6, body.Widgets[3].Y)
	assert.Equal(t, "Progress Invocation Errors", body.Widgets[3].Properties.Title)
}

func TestJSONIsStable(t *testing.T) {
	functions := []Function{{Label: "Auth", Name: "ComputeStack-Auth"}}

	first, err := Build("us-east-2", functions).JSON()
	require.NoError(t, err)
	second, err := Build("us-east-2", functions).JSON()
	require.NoError(t, err)
	assert.Equal(t, first, second)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(first), &decoded))
	widgets := decoded["widgets"].([]any)
	require.Len(t, widgets, 2)
	props := widgets[0].(map[string]any)["properties"].(map[string]any)
	assert.Equal(t, "us-east-2", props["region"])
}

func TestBuildEmpty(t *testing.T) {
	out, err := Build("us-east-2", nil).JSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"widgets": []}`, out)
}
