package knowledge

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/m5stack/m5doc/internal/logger"
)

var errMissingCode = errors.New("response has no code field")

// SearchResponse is the top-level backend envelope
type SearchResponse struct {
	Code      json.RawMessage
	Message   string
	RequestID string
	Data      json.RawMessage
}

// ResultData is the normalised data field of a successful response
type ResultData struct {
	ResultList []ResultItem `json:"result_list"`
}

// ResultItem is one matched chunk. Fields other than content are kept raw.
type ResultItem map[string]json.RawMessage

// Content returns the chunk text and whether the item carries one
func (i ResultItem) Content() (string, bool) {
	raw, ok := i["content"]
	if !ok {
		return "", false
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", false
	}

	var text string
	if err := json.Unmarshal(trimmed, &text); err == nil {
		return text, true
	}

	// Non-string content is rendered as compact JSON
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return string(trimmed), true
	}
	return buf.String(), true
}

// ParseResponse decodes the top-level envelope. A body that is not a JSON
// object, or an object without code, is a BackendFormatError. The code value
// itself is judged later by Results.
func ParseResponse(leg Leg, body []byte) (*SearchResponse, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &BackendFormatError{Leg: leg, Body: snippet(body), Err: err}
	}
	if envelope == nil {
		return nil, &BackendFormatError{Leg: leg, Body: snippet(body), Err: errors.New("response is null")}
	}

	rawCode, ok := envelope["code"]
	if !ok {
		return nil, &BackendFormatError{Leg: leg, Body: snippet(body), Err: errMissingCode}
	}

	resp := &SearchResponse{Code: rawCode, Data: envelope["data"]}
	if raw, ok := envelope["message"]; ok {
		_ = json.Unmarshal(raw, &resp.Message)
	}
	if raw, ok := envelope["request_id"]; ok {
		_ = json.Unmarshal(raw, &resp.RequestID)
	}

	return resp, nil
}

// OK reports whether code is a number equal to zero. 0, 0.0 and -0 all
// count; strings, null and any other value do not.
func (r *SearchResponse) OK() bool {
	var code float64
	if err := json.Unmarshal(r.Code, &code); err != nil {
		return false
	}
	return code == 0
}

// Results extracts the result list of a parsed response. A code other than
// zero or an undecodable data field yields a LegDegradedError.
func (r *SearchResponse) Results(leg Leg) (*ResultData, error) {
	if !r.OK() {
		return nil, &LegDegradedError{
			Leg:    leg,
			Reason: ReasonStatusCode,
			Err:    &StatusError{Code: compactCode(r.Code), Message: r.Message, RequestID: r.RequestID},
		}
	}
	return NormalizeData(leg, r.Data)
}

// NormalizeData accepts data either as an object or as a string holding the
// JSON-encoded object
func NormalizeData(leg Leg, raw json.RawMessage) (*ResultData, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, &LegDegradedError{Leg: leg, Reason: ReasonInvalidData, Err: errors.New("data field is empty")}
	}

	if trimmed[0] == '"' {
		var encoded string
		if err := json.Unmarshal(trimmed, &encoded); err != nil {
			return nil, &LegDegradedError{Leg: leg, Reason: ReasonNestedData, Err: err}
		}
		var data ResultData
		if err := json.Unmarshal([]byte(strings.TrimSpace(encoded)), &data); err != nil {
			return nil, &LegDegradedError{Leg: leg, Reason: ReasonNestedData, Err: err}
		}
		return &data, nil
	}

	var data ResultData
	if err := json.Unmarshal(trimmed, &data); err != nil {
		return nil, &LegDegradedError{Leg: leg, Reason: ReasonInvalidData, Err: err}
	}
	return &data, nil
}

// FormatSnippets renders each item as its content line followed by a separator
func FormatSnippets(data *ResultData) string {
	if data == nil {
		return ""
	}
	var b strings.Builder
	for _, item := range data.ResultList {
		if content, ok := item.Content(); ok {
			b.WriteString(content)
			b.WriteString("\n")
		}
		b.WriteString(Separator)
	}
	return b.String()
}

func compactCode(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

const snippetLimit = 200

func snippet(body []byte) string {
	return logger.Truncate(string(body), snippetLimit)
}
