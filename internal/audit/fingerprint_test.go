package audit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFingerprintPermutationInsensitive(t *testing.T) {
	t.Parallel()

	a := Request{
		URL:        "https://example.com",
		Categories: []Category{CategorySEO, CategoryPerformance},
	}
	b := Request{
		URL:        "https://example.com",
		Categories: []Category{CategoryPerformance, CategorySEO},
	}
	require.Equal(t, Fingerprint(a), Fingerprint(b))
}

func TestFingerprintIgnoresDuplicateCategories(t *testing.T) {
	t.Parallel()

	a := Request{
		URL:        "https://example.com",
		Categories: []Category{CategorySEO, CategorySEO, CategoryPerformance},
	}
	b := Request{
		URL:        "https://example.com",
		Categories: []Category{CategoryPerformance, CategorySEO},
	}
	require.Equal(t, Fingerprint(a), Fingerprint(b))
}

func TestFingerprintDistinguishesRequests(t *testing.T) {
	t.Parallel()

	base := Request{
		URL:        "https://example.com",
		Categories: []Category{CategorySEO},
	}
	otherURL := Request{
		URL:        "https://example.org",
		Categories: []Category{CategorySEO},
	}
	otherCats := Request{
		URL:        "https://example.com",
		Categories: []Category{CategorySEO, CategoryPerformance},
	}
	require.NotEqual(t, Fingerprint(base), Fingerprint(otherURL))
	require.NotEqual(t, Fingerprint(base), Fingerprint(otherCats))
}

func TestFingerprintStable(t *testing.T) {
	t.Parallel()

	req := Request{
		URL:        "https://example.com",
		Categories: []Category{CategoryAccessibility, CategoryBestPractices},
	}
	require.Equal(t, Fingerprint(req), Fingerprint(req))
	require.Len(t, Fingerprint(req), 64)
}
