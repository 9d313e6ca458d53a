package carb

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractNumber(t *testing.T) {
	aliases := []string{"totalCarbGrams", "totalCarbs", "netCarbs"}
	tests := []struct {
		name   string
		obj    object
		want   float64
		wantOK bool
	}{
		{
			name:   "first alias wins",
			obj:    object{"totalCarbGrams": json.Number("49"), "totalCarbs": json.Number("12")},
			want:   49,
			wantOK: true,
		},
		{
			name:   "later alias used when earlier absent",
			obj:    object{"netCarbs": json.Number("7.5")},
			want:   7.5,
			wantOK: true,
		},
		{
			name:   "numeric string is not coerced",
			obj:    object{"totalCarbGrams": "50", "totalCarbs": json.Number("30")},
			want:   30,
			wantOK: true,
		},
		{
			name: "only numeric string",
			obj:  object{"totalCarbGrams": "50"},
		},
		{
			name: "null value",
			obj:  object{"totalCarbGrams": nil},
		},
		{
			name: "out of range number",
			obj:  object{"totalCarbGrams": json.Number("1e999")},
		},
		{
			name: "absent",
			obj:  object{"other": json.Number("1")},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := extractNumber(tt.obj, aliases)
			require.Equal(t, tt.wantOK, ok)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestExtractStringAndBool(t *testing.T) {
	obj := object{
		"summary":     json.Number("3"),
		"description": "Rice bowl",
		"noContent":   "true",
		"flag":        true,
	}

	s, ok := extractString(obj, []string{"mealSummary", "summary", "description"})
	require.True(t, ok)
	require.Equal(t, "Rice bowl", s)

	_, ok = extractString(obj, []string{"missing"})
	require.False(t, ok)

	_, ok = extractBool(obj, []string{"noContent"})
	require.False(t, ok, "string booleans are not coerced")

	b, ok := extractBool(obj, []string{"noContent", "flag"})
	require.True(t, ok)
	require.True(t, b)
}

func TestExtractList(t *testing.T) {
	obj := object{
		"components": "none",
		"items":      []any{object{"description": "Bread"}},
		"ingredients": []any{
			object{"description": "Flour"},
		},
	}

	list, ok := extractList(obj, componentListAliases)
	require.True(t, ok)
	require.Len(t, list, 1)
	require.Equal(t, "Bread", list[0].(object)["description"])

	_, ok = extractList(object{"components": nil}, componentListAliases)
	require.False(t, ok)
}

func TestRoundHalfAway(t *testing.T) {
	tests := map[float64]int{
		41.4:  41,
		41.5:  42,
		12.5:  13,
		2.49:  2,
		-2.5:  -3,
		0:     0,
		179.9: 180,
		1e30:  maxMagnitude,
		-1e30: -maxMagnitude,
	}
	for in, want := range tests {
		require.Equal(t, want, roundHalfAway(in), "input %v", in)
	}
}

func TestAsNumberBounds(t *testing.T) {
	tests := []struct {
		in     any
		want   float64
		wantOK bool
	}{
		{in: json.Number("9007199254740992"), want: maxMagnitude, wantOK: true},
		{in: json.Number("-9007199254740992"), want: -maxMagnitude, wantOK: true},
		{in: json.Number("9007199254740994")},
		{in: json.Number("1e300")},
		{in: json.Number("1e400")},
		{in: 1e19},
		{in: "12"},
	}
	for _, tt := range tests {
		got, ok := asNumber(tt.in)
		require.Equal(t, tt.wantOK, ok, "input %v", tt.in)
		require.Equal(t, tt.want, got, "input %v", tt.in)
	}
}

func TestAddSaturating(t *testing.T) {
	require.Equal(t, 30, addSaturating(10, 20))
	require.Equal(t, maxMagnitude, addSaturating(maxMagnitude, maxMagnitude))
	require.Equal(t, -maxMagnitude, addSaturating(-maxMagnitude, -1))
	require.Equal(t, maxMagnitude-1, addSaturating(maxMagnitude, -1))
}
