// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package answer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	// NoPapersText is the answer when the service found no rows.
	NoPapersText = "Currently I can't help you with this query😔."

	// UnexpectedPapersText is the answer when the papers endpoint returned
	// nothing usable.
	UnexpectedPapersText = "Unexpected error occurred. Please try again later."
)

// Row column positions in a past-paper tuple.
const (
	colSubject = 2
	colYear    = 3
	colExam    = 4
	colMonth   = 5
	colBranch  = 6
	colURL     = 7
)

// decodeAnswer turns the raw "response" value into markdown for format.
func decodeAnswer(raw json.RawMessage, format Format) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		if format == FormatPapers {
			return UnexpectedPapersText, nil
		}
		return "", nil
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", invalid("response is not a valid string", err)
		}
		if format != FormatPapers {
			return s, nil
		}
		if rows, ok := parseRows([]byte(s)); ok {
			return PapersTable(rows), nil
		}
		if strings.TrimSpace(s) == "" {
			return UnexpectedPapersText, nil
		}
		return s, nil

	case '[':
		if format == FormatPapers {
			rows, ok := parseRows(raw)
			if !ok {
				return "", invalid("response rows are malformed", nil)
			}
			return PapersTable(rows), nil
		}
		var items []any
		if err := json.Unmarshal(raw, &items); err != nil {
			return "", invalid("response list is malformed", err)
		}
		lines := make([]string, len(items))
		for i, item := range items {
			lines[i] = cellString(item)
		}
		return strings.Join(lines, "\n"), nil
	}

	return "", invalid("response has unexpected type", nil)
}

func invalid(msg string, cause error) error {
	return &ServiceError{Type: ErrTypeInvalidResponse, Message: msg, Cause: cause}
}

// parseRows decodes a JSON array of arrays.
func parseRows(data []byte) ([][]any, bool) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '[' {
		return nil, false
	}
	var rows [][]any
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, false
	}
	return rows, true
}

// =============================================================================
// PAPERS TABLE
// =============================================================================

// PapersTable renders past-paper rows as a markdown table with one
// [View Paper](url) link per row. Missing columns render empty.
func PapersTable(rows [][]any) string {
	if len(rows) == 0 {
		return NoPapersText
	}

	var b strings.Builder
	b.WriteString("| Subject Code | Year | Sem | Month | Branch | Link |\n")
	b.WriteString("| --- | --- | --- | --- | --- | --- |\n")
	for i, row := range rows {
		link := fmt.Sprintf("[View Paper](%s)", encodeURI(column(row, colURL)))
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |",
			column(row, colSubject),
			column(row, colYear),
			column(row, colExam),
			column(row, colMonth),
			column(row, colBranch),
			link,
		)
		if i < len(rows)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func column(row []any, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.ReplaceAll(cellString(row[i]), "|", `\|`)
}

func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		data, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(data)
	}
}

// encodeURI percent-encodes characters that are not valid in a URL, such as
// spaces, while leaving the URL's structure intact.
func encodeURI(raw string) string {
	raw = strings.TrimSpace(raw)
	if u, err := url.Parse(raw); err == nil {
		return u.String()
	}
	return strings.ReplaceAll(raw, " ", "%20")
}
