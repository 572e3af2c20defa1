// Package search builds an in-memory fuzzy index over users.
//
// Matching is approximate and location-agnostic: the query may match any
// part of a field, with a bounded number of typos. Scores are the best edit
// distance between the query and any substring of the field, divided by the
// query length, so 0 is an exact substring and 1 shares nothing.
package search

import (
	"sort"
	"strings"

	"github.com/nourabuild/user-directory/internal/sdk/models"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Threshold is the highest score still treated as a match.
const Threshold = 0.4

type entry struct {
	user   models.User
	fields [][]rune
}

// Index holds normalized name and occupation values for a fixed list.
type Index struct {
	entries []entry
	fold    cases.Caser
}

// New indexes users. The slice is not copied; callers must not mutate it
// while the index is in use.
func New(users []models.User) *Index {
	idx := &Index{
		entries: make([]entry, len(users)),
		fold:    cases.Fold(),
	}
	for i, u := range users {
		idx.entries[i] = entry{
			user: u,
			fields: [][]rune{
				idx.normalize(u.Name),
				idx.normalize(string(u.Occupation)),
			},
		}
	}
	return idx
}

// Result is a matched user with its score.
type Result struct {
	User  models.User
	Score float64
}

// Search returns matching users best first. A blank query returns every
// user in index order.
func (idx *Index) Search(query string) []models.User {
	results := idx.Rank(query)
	users := make([]models.User, len(results))
	for i, r := range results {
		users[i] = r.User
	}
	return users
}

// Rank is Search with scores.
func (idx *Index) Rank(query string) []Result {
	if strings.TrimSpace(query) == "" {
		results := make([]Result, len(idx.entries))
		for i, e := range idx.entries {
			results[i] = Result{User: e.user}
		}
		return results
	}

	pattern := idx.normalize(strings.TrimSpace(query))
	results := make([]Result, 0)
	for _, e := range idx.entries {
		best := 1.0
		for _, f := range e.fields {
			if s := score(pattern, f); s < best {
				best = s
			}
		}
		if best <= Threshold {
			results = append(results, Result{User: e.user, Score: best})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score < results[j].Score
	})
	return results
}

func (idx *Index) normalize(s string) []rune {
	return []rune(idx.fold.String(norm.NFKC.String(s)))
}

func score(pattern, text []rune) float64 {
	if len(pattern) == 0 {
		return 0
	}
	d := substringDistance(pattern, text)
	s := float64(d) / float64(len(pattern))
	if s > 1 {
		return 1
	}
	return s
}

// substringDistance is the smallest edit distance between pattern and any
// substring of text (Sellers' algorithm: free start and end in text).
func substringDistance(pattern, text []rune) int {
	prev := make([]int, len(pattern)+1)
	cur := make([]int, len(pattern)+1)
	for i := range prev {
		prev[i] = i
	}
	best := prev[len(pattern)]

	for _, tc := range text {
		cur[0] = 0
		for i, pc := range pattern {
			cost := 1
			if pc == tc {
				cost = 0
			}
			cur[i+1] = min(prev[i]+cost, prev[i+1]+1, cur[i]+1)
		}
		if cur[len(pattern)] < best {
			best = cur[len(pattern)]
		}
		prev, cur = cur, prev
	}
	return best
}
