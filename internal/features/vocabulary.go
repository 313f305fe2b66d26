package features

import (
	"github.com/forblgac/nijisanji-vtuber-recommend/internal/profile"
)

// SetField names a multi-valued profile attribute.
type SetField string

const (
	FieldStreamingGenres   SetField = "streaming_genres"
	FieldGameGenres        SetField = "game_genres"
	FieldPersonalityTraits SetField = "personality_traits"
)

// SetFields lists the multi-valued fields in column order.
var SetFields = []SetField{FieldStreamingGenres, FieldGameGenres, FieldPersonalityTraits}

// Values returns the profile's set for field f.
func (f SetField) Values(p profile.Profile) []string {
	switch f {
	case FieldStreamingGenres:
		return p.StreamingGenres
	case FieldGameGenres:
		return p.GameGenres
	case FieldPersonalityTraits:
		return p.PersonalityTraits
	}
	return nil
}

// Vocabulary holds the distinct values of each multi-valued field in the order
// they were first seen in a catalog. It is built once per catalog and never patched.
type Vocabulary struct {
	terms map[SetField][]string
	index map[SetField]map[string]int
}

// BuildVocabulary scans the catalog once and records first-seen value order.
func BuildVocabulary(profiles []profile.Profile) *Vocabulary {
	v := &Vocabulary{
		terms: make(map[SetField][]string, len(SetFields)),
		index: make(map[SetField]map[string]int, len(SetFields)),
	}
	for _, f := range SetFields {
		v.index[f] = make(map[string]int)
		v.terms[f] = make([]string, 0)
	}

	for _, p := range profiles {
		for _, f := range SetFields {
			idx := v.index[f]
			for _, value := range f.Values(p) {
				if _, exists := idx[value]; !exists {
					idx[value] = len(v.terms[f])
					v.terms[f] = append(v.terms[f], value)
				}
			}
		}
	}

	return v
}

// Terms returns the ordered values discovered for f.
func (v *Vocabulary) Terms(f SetField) []string {
	return append([]string(nil), v.terms[f]...)
}

// Index returns the position of value within f's terms.
func (v *Vocabulary) Index(f SetField, value string) (int, bool) {
	i, ok := v.index[f][value]
	return i, ok
}

// Size is the number of multi-hot columns the vocabulary defines.
func (v *Vocabulary) Size() int {
	n := 0
	for _, f := range SetFields {
		n += len(v.terms[f])
	}
	return n
}

// Equal reports whether both vocabularies define the same columns in the same order.
func (v *Vocabulary) Equal(other *Vocabulary) bool {
	if v == nil || other == nil {
		return v == other
	}
	for _, f := range SetFields {
		a, b := v.terms[f], other.terms[f]
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if a[i] != b[i] {
				return false
			}
		}
	}
	return true
}
