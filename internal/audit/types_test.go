package audit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseCategories(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		input   string
		want    []Category
		wantErr bool
	}{
		{
			name:  "empty selects all",
			input: "",
			want:  AllCategories(),
		},
		{
			name:  "single",
			input: "seo",
			want:  []Category{CategorySEO},
		},
		{
			name:  "sorted and deduplicated",
			input: "seo,performance,seo",
			want:  []Category{CategoryPerformance, CategorySEO},
		},
		{
			name:  "whitespace and case tolerated",
			input: " SEO , Performance ",
			want:  []Category{CategoryPerformance, CategorySEO},
		},
		{
			name:    "unknown category",
			input:   "seo,pwa",
			wantErr: true,
		},
		{
			name:    "only separators",
			input:   ",,",
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseCategories(tc.input)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestRequestValidate(t *testing.T) {
	t.Parallel()

	valid := Request{URL: "https://example.com", Categories: []Category{CategorySEO}}
	require.NoError(t, valid.Validate())

	missingURL := Request{Categories: []Category{CategorySEO}}
	require.Error(t, missingURL.Validate())

	badScheme := Request{URL: "ftp://example.com", Categories: []Category{CategorySEO}}
	require.Error(t, badScheme.Validate())

	noCategories := Request{URL: "https://example.com"}
	require.Error(t, noCategories.Validate())

	badCategory := Request{URL: "https://example.com", Categories: []Category{"pwa"}}
	require.Error(t, badCategory.Validate())
}
