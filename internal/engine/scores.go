package engine

import (
	"fmt"
	"net/http"
	"time"

	"github.com/pageaudit/pageaudit/internal/audit"
)

// Score turns collected page facts into the result for one category. Pure
// function; exercised directly by tests without a browser.
func Score(category audit.Category, facts audit.PageFacts) audit.CategoryResult {
	var checks []audit.Check
	switch category {
	case audit.CategoryPerformance:
		checks = performanceChecks(facts)
	case audit.CategoryAccessibility:
		checks = accessibilityChecks(facts)
	case audit.CategoryBestPractices:
		checks = bestPracticeChecks(facts)
	case audit.CategorySEO:
		checks = seoChecks(facts)
	}
	return audit.CategoryResult{
		Category: category,
		Score:    weightedScore(checks),
		Checks:   checks,
	}
}

func weightedScore(checks []audit.Check) float64 {
	var total, passed float64
	for _, c := range checks {
		total += c.Weight
		if c.Passed {
			passed += c.Weight
		}
	}
	if total == 0 {
		return 0
	}
	return passed / total
}

func performanceChecks(facts audit.PageFacts) []audit.Check {
	return []audit.Check{
		timingCheck("first-paint", "First contentful paint under 2s", facts.FirstPaint, 2*time.Second, 3),
		timingCheck("dom-content-loaded", "DOMContentLoaded under 3s", facts.DOMContentLoaded, 3*time.Second, 2),
		timingCheck("page-load", "Full load under 5s", facts.PageLoad, 5*time.Second, 2),
		{
			ID:     "document-size",
			Title:  "Document under 1.5 MB",
			Passed: facts.DocumentBytes < 1_500_000,
			Detail: fmt.Sprintf("%d bytes", facts.DocumentBytes),
			Weight: 1,
		},
	}
}

func timingCheck(id, title string, got, budget time.Duration, weight float64) audit.Check {
	return audit.Check{
		ID:     id,
		Title:  title,
		Passed: got > 0 && got <= budget,
		Detail: got.String(),
		Weight: weight,
	}
}

func accessibilityChecks(facts audit.PageFacts) []audit.Check {
	return []audit.Check{
		{
			ID:     "img-alt",
			Title:  "Images have alt attributes",
			Passed: facts.ImgMissingAlt == 0,
			Detail: fmt.Sprintf("%d of %d images missing alt", facts.ImgMissingAlt, facts.ImgCount),
			Weight: 3,
		},
		{
			ID:     "html-lang",
			Title:  "Document has a lang attribute",
			Passed: facts.Lang != "",
			Weight: 2,
		},
		{
			ID:     "link-text",
			Title:  "Links have discernible text",
			Passed: facts.EmptyLinkCount == 0,
			Detail: fmt.Sprintf("%d of %d links empty", facts.EmptyLinkCount, facts.LinkCount),
			Weight: 2,
		},
		{
			ID:     "viewport",
			Title:  "Page has a viewport meta tag",
			Passed: facts.MetaViewport,
			Weight: 1,
		},
	}
}

func bestPracticeChecks(facts audit.PageFacts) []audit.Check {
	return []audit.Check{
		{
			ID:     "uses-https",
			Title:  "Page is served over HTTPS",
			Passed: facts.HTTPS,
			Weight: 3,
		},
		{
			ID:     "no-console-errors",
			Title:  "No browser errors logged to the console",
			Passed: facts.ConsoleErrors == 0,
			Detail: fmt.Sprintf("%d console errors", facts.ConsoleErrors),
			Weight: 2,
		},
		{
			ID:     "status-ok",
			Title:  "Page responds with a success status",
			Passed: facts.StatusCode >= http.StatusOK && facts.StatusCode < http.StatusBadRequest,
			Detail: fmt.Sprintf("status %d", facts.StatusCode),
			Weight: 2,
		},
	}
}

func seoChecks(facts audit.PageFacts) []audit.Check {
	return []audit.Check{
		{
			ID:     "document-title",
			Title:  "Document has a title",
			Passed: facts.Title != "",
			Weight: 3,
		},
		{
			ID:     "meta-description",
			Title:  "Document has a meta description",
			Passed: facts.MetaDescription != "",
			Weight: 3,
		},
		{
			ID:     "single-h1",
			Title:  "Page has exactly one top-level heading",
			Passed: facts.H1Count == 1,
			Detail: fmt.Sprintf("%d h1 elements", facts.H1Count),
			Weight: 1,
		},
		{
			ID:     "robots-txt",
			Title:  "Site serves a robots.txt",
			Passed: facts.RobotsTxtFound,
			Weight: 1,
		},
	}
}
