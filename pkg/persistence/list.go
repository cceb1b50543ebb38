package persistence

import (
	"sort"

	"github.com/dukex/casegate/pkg/models"
)

// Page filters, sorts and paginates cases in memory for the backends that
// cannot push the query down. opts must be normalized.
func Page(cases []*models.Case, opts ListCasesOptions) *CaseListResult {
	filtered := make([]*models.Case, 0, len(cases))

	for _, c := range cases {
		if opts.Matches(c) {
			filtered = append(filtered, c)
		}
	}

	sortCases(filtered, opts.SortBy, opts.SortOrder)

	totalCount := int64(len(filtered))

	if opts.Offset >= len(filtered) {
		return &CaseListResult{Cases: make([]*models.Case, 0), TotalCount: totalCount}
	}

	end := min(opts.Offset+opts.Limit, len(filtered))

	return &CaseListResult{
		Cases:       filtered[opts.Offset:end],
		TotalCount:  totalCount,
		HasNextPage: end < len(filtered),
	}
}

func sortCases(cases []*models.Case, sortBy, sortOrder string) {
	sort.SliceStable(cases, func(i, j int) bool {
		var less bool

		switch sortBy {
		case "updated_at":
			less = cases[i].UpdatedAt.Before(cases[j].UpdatedAt)
		case "title":
			less = cases[i].Title < cases[j].Title
		default:
			less = cases[i].CreatedAt.Before(cases[j].CreatedAt)
		}

		if sortOrder == "desc" {
			return !less
		}

		return less
	})
}
