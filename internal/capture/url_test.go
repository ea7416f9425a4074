package capture

import (
	"errors"
	"testing"
)

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "bare host", input: "example.com", want: "https://example.com"},
		{name: "surrounding whitespace", input: "  example.com/path \n", want: "https://example.com/path"},
		{name: "https kept", input: "https://example.com", want: "https://example.com"},
		{name: "http kept", input: "http://example.com", want: "http://example.com"},
		{name: "other scheme kept", input: "ftp://files.example.com", want: "ftp://files.example.com"},
		{name: "mixed case scheme", input: "HTTPS://Example.com", want: "HTTPS://Example.com"},
		{name: "scheme with digits is not a scheme", input: "h2c://example.com", want: "https://h2c://example.com"},
		{name: "empty", input: "", wantErr: true},
		{name: "whitespace only", input: " \t\n", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := NormalizeURL(tc.input)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidURL) {
					t.Fatalf("NormalizeURL(%q) error = %v, want ErrInvalidURL", tc.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeURL(%q) unexpected error: %v", tc.input, err)
			}
			if got != tc.want {
				t.Fatalf("NormalizeURL(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}
