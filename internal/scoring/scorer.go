package scoring

import (
	"sort"

	"github.com/forblgac/nijisanji-vtuber-recommend/internal/profile"
)

// DefaultLimit is the shortlist size returned by Recommend.
const DefaultLimit = 10

// Weights per matched query field.
const (
	WeightStreamingGenre = 3
	WeightGameGenre      = 2
	WeightStreamingTime  = 5
	WeightGender         = 2
	WeightVoiceType      = 3
	WeightPersonality    = 2
)

// Match holds a profile and its preference score
type Match struct {
	Profile profile.Profile
	Score   int
}

// Score computes the weighted match of one profile. Each term is added only
// when the matching query field is set.
func Score(q Query, p profile.Profile) int {
	return score(q.normalized(), p)
}

func score(q Query, p profile.Profile) int {
	total := 0

	if len(q.StreamingGenres) > 0 {
		total += WeightStreamingGenre * overlap(q.StreamingGenres, p.StreamingGenres)
	}
	if len(q.GameGenres) > 0 {
		total += WeightGameGenre * overlap(q.GameGenres, p.GameGenres)
	}
	if q.StreamingTime != "" && q.StreamingTime == p.MainStreamingTime {
		total += WeightStreamingTime
	}
	if q.Gender != "" && q.Gender == p.Gender {
		total += WeightGender
	}
	if q.VoiceType != "" && q.VoiceType == p.VoiceType {
		total += WeightVoiceType
	}
	if len(q.PersonalityTraits) > 0 {
		total += WeightPersonality * overlap(q.PersonalityTraits, p.PersonalityTraits)
	}

	return total
}

// Rank scores every profile and returns up to limit matches, highest score
// first. Equal scores keep catalog order. The limit is capped at DefaultLimit;
// a non-positive limit means DefaultLimit.
func Rank(q Query, catalog []profile.Profile, limit int) []Match {
	if limit <= 0 || limit > DefaultLimit {
		limit = DefaultLimit
	}
	q = q.normalized()

	results := make([]Match, len(catalog))
	for i, p := range catalog {
		results[i] = Match{Profile: p, Score: score(q, p)}
	}

	// Sort by descending score; stability is part of the contract
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > limit {
		return results[:limit]
	}
	return results
}

// Recommend returns the default-size shortlist.
func Recommend(q Query, catalog []profile.Profile) []Match {
	return Rank(q, catalog, DefaultLimit)
}

// overlap counts the query values present in values.
func overlap(query, values []string) int {
	if len(values) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	n := 0
	for _, v := range query {
		if _, ok := set[v]; ok {
			n++
		}
	}
	return n
}
