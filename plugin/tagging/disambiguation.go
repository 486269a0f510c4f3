package tagging

import "strings"

const (
	minDisambiguationResults = 2
	maxDisambiguationResults = 5
)

// Disambiguation holds same-named matches the user has to choose between.
type Disambiguation struct {
	Query   string         `json:"query"`
	Matches []TagCandidate `json:"matches"`
}

// Disambiguate returns the exact matches for query when a response needs an explicit choice.
// That is the case for responses of 2 to 5 candidates containing at least two candidates
// whose name or slug equals the query, ignoring case. It returns nil otherwise.
func Disambiguate(query string, candidates []TagCandidate) *Disambiguation {
	if len(candidates) < minDisambiguationResults || len(candidates) > maxDisambiguationResults {
		return nil
	}

	var exact []TagCandidate
	for _, c := range candidates {
		if strings.EqualFold(c.Name, query) || strings.EqualFold(c.Slug, query) {
			exact = append(exact, c)
		}
	}
	if len(exact) < minDisambiguationResults {
		return nil
	}
	return &Disambiguation{Query: query, Matches: exact}
}
