// Package audit defines core types shared across subsystems.
package audit

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Category identifies one group of checks a client can request.
type Category string

// Categories a request may ask for.
const (
	CategoryPerformance   Category = "performance"
	CategoryAccessibility Category = "accessibility"
	CategoryBestPractices Category = "best-practices"
	CategorySEO           Category = "seo"
)

// AllCategories lists every supported category in canonical order.
func AllCategories() []Category {
	return []Category{
		CategoryAccessibility,
		CategoryBestPractices,
		CategoryPerformance,
		CategorySEO,
	}
}

// ParseCategory validates a raw category string.
func ParseCategory(raw string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(raw)))
	switch c {
	case CategoryPerformance, CategoryAccessibility, CategoryBestPractices, CategorySEO:
		return c, nil
	default:
		return "", fmt.Errorf("unknown category %q", raw)
	}
}

// ParseCategories parses a comma-separated category list. An empty input
// selects every category.
func ParseCategories(raw string) ([]Category, error) {
	if strings.TrimSpace(raw) == "" {
		return AllCategories(), nil
	}
	var out []Category
	for _, part := range strings.Split(raw, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		c, err := ParseCategory(part)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, errors.New("at least one category required")
	}
	return NormalizeCategories(out), nil
}

// NormalizeCategories sorts lexicographically and drops duplicates. Requests
// that are permutations of each other normalize to the same slice.
func NormalizeCategories(cats []Category) []Category {
	seen := make(map[Category]struct{}, len(cats))
	out := make([]Category, 0, len(cats))
	for _, c := range cats {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Request captures everything needed to audit a page. It is immutable once
// admitted and is the sole identity used for caching and de-duplication.
type Request struct {
	URL        string     `json:"url"`
	Categories []Category `json:"categories"`
}

// Validate enforces the request invariants before admission.
func (r Request) Validate() error {
	if strings.TrimSpace(r.URL) == "" {
		return errors.New("url is required")
	}
	if !strings.HasPrefix(r.URL, "http://") && !strings.HasPrefix(r.URL, "https://") {
		return fmt.Errorf("url must be http(s): %q", r.URL)
	}
	if len(r.Categories) == 0 {
		return errors.New("at least one category required")
	}
	for _, c := range r.Categories {
		if _, err := ParseCategory(string(c)); err != nil {
			return err
		}
	}
	return nil
}

// Check is one individual audit finding within a category.
type Check struct {
	ID     string  `json:"id"`
	Title  string  `json:"title"`
	Passed bool    `json:"passed"`
	Detail string  `json:"detail,omitempty"`
	Weight float64 `json:"weight"`
}

// CategoryResult aggregates the checks for one requested category.
type CategoryResult struct {
	Category Category `json:"category"`
	Score    float64  `json:"score"`
	Checks   []Check  `json:"checks"`
}

// PageFacts is the raw evidence the engine collects from a page. Scoring
// functions turn facts into CategoryResults.
type PageFacts struct {
	FinalURL         string        `json:"final_url"`
	StatusCode       int           `json:"status_code"`
	HTTPS            bool          `json:"https"`
	RobotsTxtFound   bool          `json:"robots_txt_found"`
	Title            string        `json:"title"`
	MetaDescription  string        `json:"meta_description"`
	MetaViewport     bool          `json:"meta_viewport"`
	Lang             string        `json:"lang"`
	H1Count          int           `json:"h1_count"`
	ImgCount         int           `json:"img_count"`
	ImgMissingAlt    int           `json:"img_missing_alt"`
	LinkCount        int           `json:"link_count"`
	EmptyLinkCount   int           `json:"empty_link_count"`
	ConsoleErrors    int           `json:"console_errors"`
	DocumentBytes    int           `json:"document_bytes"`
	DOMContentLoaded time.Duration `json:"dom_content_loaded"`
	PageLoad         time.Duration `json:"page_load"`
	FirstPaint       time.Duration `json:"first_paint"`
}

// Report is the structured result returned for one audit.
type Report struct {
	URL        string           `json:"url"`
	FinalURL   string           `json:"final_url"`
	Facts      PageFacts        `json:"facts"`
	Categories []CategoryResult `json:"categories"`
	Duration   time.Duration    `json:"duration"`
	FetchedAt  time.Time        `json:"fetched_at"`
}
