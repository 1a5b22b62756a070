package knowledge

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResponse(t *testing.T) {
	t.Run("valid envelope", func(t *testing.T) {
		resp, err := ParseResponse(LegPrimary, []byte(`{"code":0,"message":"success","request_id":"r-1","data":{"result_list":[]}}`))
		require.NoError(t, err)
		assert.True(t, resp.OK())
		assert.Equal(t, "success", resp.Message)
		assert.Equal(t, "r-1", resp.RequestID)
	})

	malformed := map[string]string{
		"not json":     `<html>502 Bad Gateway</html>`,
		"empty body":   ``,
		"array":        `[1,2]`,
		"null":         `null`,
		"missing code": `{"data":{}}`,
	}
	for name, body := range malformed {
		t.Run(name, func(t *testing.T) {
			_, err := ParseResponse(LegChip, []byte(body))
			require.Error(t, err)

			var formatErr *BackendFormatError
			require.ErrorAs(t, err, &formatErr)
			assert.Equal(t, LegChip, formatErr.Leg)
			assert.True(t, IsBackendFormatError(err))
		})
	}
}

func TestResultsNonZeroCode(t *testing.T) {
	resp, err := ParseResponse(LegPrimary, []byte(`{"code":1000001,"message":"unauthorized","data":null}`))
	require.NoError(t, err)

	_, err = resp.Results(LegPrimary)
	var degraded *LegDegradedError
	require.ErrorAs(t, err, &degraded)
	assert.Equal(t, ReasonStatusCode, degraded.Reason)

	var status *StatusError
	require.ErrorAs(t, err, &status)
	assert.Equal(t, "1000001", status.Code)
	assert.Contains(t, status.Error(), "unauthorized")
}

func TestResultsCodeValues(t *testing.T) {
	tests := []struct {
		name string
		code string
		ok   bool
	}{
		{"integer zero", `0`, true},
		{"float zero", `0.0`, true},
		{"exponent zero", `0e3`, true},
		{"negative zero", `-0`, true},
		{"integer error", `1001`, false},
		{"fractional", `1.5`, false},
		{"numeric string", `"1001"`, false},
		{"zero string", `"0"`, false},
		{"word", `"zero"`, false},
		{"null", `null`, false},
		{"bool", `false`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := `{"code":` + tt.code + `,"data":{"result_list":[{"content":"A"}]}}`
			resp, err := ParseResponse(LegPrimary, []byte(body))
			require.NoError(t, err)
			assert.Equal(t, tt.ok, resp.OK())

			data, err := resp.Results(LegPrimary)
			if tt.ok {
				require.NoError(t, err)
				assert.Equal(t, "A\n---\n", FormatSnippets(data))
				return
			}
			var degraded *LegDegradedError
			require.ErrorAs(t, err, &degraded)
			assert.Equal(t, ReasonStatusCode, degraded.Reason)
			var status *StatusError
			require.ErrorAs(t, err, &status)
			assert.Equal(t, tt.code, status.Code)
		})
	}
}

func TestNormalizeDataStringMatchesObject(t *testing.T) {
	object := `{"result_list":[{"content":"M5Stack Core2","doc_info":{"doc_name":"core2.md"}},{"doc_info":{}},{"content":"ESP32"}]}`
	encoded, err := json.Marshal(object)
	require.NoError(t, err)

	fromObject, err := NormalizeData(LegPrimary, json.RawMessage(object))
	require.NoError(t, err)
	fromString, err := NormalizeData(LegPrimary, json.RawMessage(encoded))
	require.NoError(t, err)

	assert.Equal(t, fromObject, fromString)
	assert.Equal(t, FormatSnippets(fromObject), FormatSnippets(fromString))
}

func TestNormalizeDataFailures(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		reason string
	}{
		{"string that is not json", `"not json"`, ReasonNestedData},
		{"missing", ``, ReasonInvalidData},
		{"null", `null`, ReasonInvalidData},
		{"number", `42`, ReasonInvalidData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NormalizeData(LegPrimary, json.RawMessage(tt.raw))
			var degraded *LegDegradedError
			require.ErrorAs(t, err, &degraded)
			assert.Equal(t, tt.reason, degraded.Reason)
		})
	}
}

func TestNormalizeDataWithoutResultList(t *testing.T) {
	data, err := NormalizeData(LegPrimary, json.RawMessage(`{"count":0}`))
	require.NoError(t, err)
	assert.Empty(t, data.ResultList)
	assert.Equal(t, "", FormatSnippets(data))
}

func TestFormatSnippets(t *testing.T) {
	data, err := NormalizeData(LegPrimary, json.RawMessage(`{"result_list":[
		{"content":"first"},
		{"doc_info":{"doc_id":"x"}},
		{"content":null},
		{"content":{"table":[1,2]}}
	]}`))
	require.NoError(t, err)

	assert.Equal(t, "first\n---\n---\n---\n{\"table\":[1,2]}\n---\n", FormatSnippets(data))
	assert.Equal(t, "", FormatSnippets(nil))
}
