package claim

import "testing"

func TestExtractField(t *testing.T) {
	cases := []struct {
		name    string
		context string
		marker  string
		want    string
	}{
		{
			name:    "simple field",
			context: `{"a":"","KYC_status":"ADVANCED","b":1}`,
			marker:  `"KYC_status":"`,
			want:    "ADVANCED",
		},
		{
			name:    "empty value",
			context: `{"a":"","KYC_status":"ADVANCED","b":1}`,
			marker:  `"a":"`,
			want:    "",
		},
		{
			name:    "missing marker",
			context: `{"a":"x"}`,
			marker:  `"KYC_status":"`,
			want:    "",
		},
		{
			name:    "empty context",
			context: "",
			marker:  `"a":"`,
			want:    "",
		},
		{
			name:    "unterminated value runs to end",
			context: `"x":"abc`,
			marker:  `"x":"`,
			want:    "abc",
		},
		{
			name:    "escaped quote inside value",
			context: `{"m":"a\"b","n":"c"}`,
			marker:  `"m":"`,
			want:    `a\"b`,
		},
		{
			name:    "first occurrence wins",
			context: `{"k":"one","k":"two"}`,
			marker:  `"k":"`,
			want:    "one",
		},
		{
			name:    "marker at end of context",
			context: `{"k":"`,
			marker:  `"k":"`,
			want:    "",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExtractField(tc.context, tc.marker); got != tc.want {
				t.Fatalf("ExtractField(%q, %q) = %q, want %q", tc.context, tc.marker, got, tc.want)
			}
		})
	}
}
