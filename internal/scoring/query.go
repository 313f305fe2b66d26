package scoring

import "strings"

// Query holds a viewer's preferences. Empty fields place no constraint.
type Query struct {
	StreamingGenres   []string `json:"streaming_genre" validate:"omitempty,dive,max=64"`
	GameGenres        []string `json:"game_genre" validate:"omitempty,dive,max=64"`
	StreamingTime     string   `json:"streaming_time" validate:"omitempty,oneof=昼 夕方 夜"`
	Gender            string   `json:"gender" validate:"omitempty,oneof=女性 男性"`
	VoiceType         string   `json:"voice_type" validate:"omitempty,oneof=高音 中音 低音 特殊"`
	PersonalityTraits []string `json:"personality" validate:"omitempty,dive,max=64"`
}

// IsEmpty reports whether the query constrains nothing.
func (q Query) IsEmpty() bool {
	return len(q.StreamingGenres) == 0 && len(q.GameGenres) == 0 &&
		q.StreamingTime == "" && q.Gender == "" && q.VoiceType == "" &&
		len(q.PersonalityTraits) == 0
}

// normalized trims every value and removes repeated set entries so overlaps
// count each value once.
func (q Query) normalized() Query {
	return Query{
		StreamingGenres:   uniq(q.StreamingGenres),
		GameGenres:        uniq(q.GameGenres),
		StreamingTime:     strings.TrimSpace(q.StreamingTime),
		Gender:            strings.TrimSpace(q.Gender),
		VoiceType:         strings.TrimSpace(q.VoiceType),
		PersonalityTraits: uniq(q.PersonalityTraits),
	}
}

func uniq(values []string) []string {
	var out []string
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
