package sheetstore

import "testing"

func TestSpreadsheetID(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{
			name: "sharing url",
			in:   "https://docs.google.com/spreadsheets/d/1AbC-dEf_123/edit#gid=0",
			want: "1AbC-dEf_123",
		},
		{
			name: "bare id",
			in:   "1AbC-dEf_123",
			want: "1AbC-dEf_123",
		},
		{
			name: "surrounding whitespace",
			in:   "  1AbC-dEf_123\n",
			want: "1AbC-dEf_123",
		},
		{
			name:    "empty",
			in:      "",
			wantErr: true,
		},
		{
			name:    "unrelated url",
			in:      "https://example.com/some/path",
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := SpreadsheetID(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestCellOutOfRange(t *testing.T) {
	row := []interface{}{"a", "b"}
	if got := cell(row, 5); got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
	if got := cell(row, 1); got != "b" {
		t.Fatalf("got %q", got)
	}
}
