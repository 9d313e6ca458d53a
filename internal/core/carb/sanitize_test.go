package carb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain object",
			input: `{"totalCarbGrams": 12}`,
			want:  `{"totalCarbGrams": 12}`,
		},
		{
			name:  "json fence",
			input: "```json\n{\"totalCarbGrams\": 49}\n```",
			want:  `{"totalCarbGrams": 49}`,
		},
		{
			name:  "bare fence",
			input: "```\n{\"a\": 1}\n```",
			want:  `{"a": 1}`,
		},
		{
			name:  "surrounding whitespace and commentary",
			input: "  Here is the analysis: {\"a\": {\"b\": 2}} Let me know!  ",
			want:  `{"a": {"b": 2}}`,
		},
		{
			name:  "fence after commentary is cut by braces",
			input: "Result:\n```json\n{\"a\": 1}\n```",
			want:  `{"a": 1}`,
		},
		{
			name:  "no braces returns trimmed text",
			input: "  Sorry, I cannot process this request.  ",
			want:  "Sorry, I cannot process this request.",
		},
		{
			name:  "closing brace before opening brace",
			input: "} nothing {",
			want:  "} nothing {",
		},
		{
			name:  "widest span over two objects",
			input: `{"a":1} and {"b":2}`,
			want:  `{"a":1} and {"b":2}`,
		},
		{
			name:  "empty",
			input: "   ",
			want:  "",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, Sanitize(tt.input))
		})
	}
}

func TestSanitizeIdempotent(t *testing.T) {
	inputs := []string{
		`{"a":1}`,
		"```json\n{\"components\": [], \"confidence\": 8}\n```",
		"prefix {\"nested\": {\"x\": [1, 2]}} suffix",
		"no json here",
	}
	for _, in := range inputs {
		once := Sanitize(in)
		require.Equal(t, once, Sanitize(once), "input %q", in)
	}
}

func TestFirstBalancedObject(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{
			name:   "two siblings",
			input:  `{"a":1} {"b":2}`,
			want:   `{"a":1}`,
			wantOK: true,
		},
		{
			name:   "brace inside string",
			input:  `{"a":"}"} {"b":2}`,
			want:   `{"a":"}"}`,
			wantOK: true,
		},
		{
			name:   "escaped quote inside string",
			input:  `{"a":"x\"}"}tail`,
			want:   `{"a":"x\"}"}`,
			wantOK: true,
		},
		{
			name:   "nested",
			input:  `xx{"a":{"b":{}}}yy`,
			want:   `{"a":{"b":{}}}`,
			wantOK: true,
		},
		{
			name:  "unbalanced",
			input: `{"a":{"b":1}`,
		},
		{
			name:  "no object",
			input: "plain text",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := firstBalancedObject(tt.input)
			require.Equal(t, tt.wantOK, ok)
			require.Equal(t, tt.want, got)
		})
	}
}
