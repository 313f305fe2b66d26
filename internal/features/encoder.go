package features

import (
	"gonum.org/v1/gonum/mat"

	"github.com/forblgac/nijisanji-vtuber-recommend/internal/profile"
)

// Fixed ordinal tables. These do not depend on catalog content.
var (
	GenderCodes = map[string]float64{
		profile.GenderFemale: 0,
		profile.GenderMale:   1,
	}
	VoiceTypeCodes = map[string]float64{
		profile.VoiceHigh:    0,
		profile.VoiceMid:     1,
		profile.VoiceLow:     2,
		profile.VoiceSpecial: 3,
	}
	StreamingTimeCodes = map[string]float64{
		profile.TimeDay:     0,
		profile.TimeEvening: 1,
		profile.TimeNight:   2,
	}
)

type fixedColumn struct {
	name  string
	value func(p profile.Profile) float64
}

// fixedColumns come first in every matrix, in this order.
var fixedColumns = []fixedColumn{
	{"subscriber_count", func(p profile.Profile) float64 { return float64(p.SubscriberCount) }},
	{"average_viewers", func(p profile.Profile) float64 { return float64(p.AverageViewers) }},
	{"streaming_frequency", func(p profile.Profile) float64 { return float64(p.StreamingFreq) }},
	{"collab_frequency", func(p profile.Profile) float64 { return float64(p.CollabFreq) }},
	{"singing_skill", func(p profile.Profile) float64 { return float64(p.SingingSkill) }},
	{"gaming_skill", func(p profile.Profile) float64 { return float64(p.GamingSkill) }},
	{"talk_skill", func(p profile.Profile) float64 { return float64(p.TalkSkill) }},
	{"gender", func(p profile.Profile) float64 { return GenderCodes[p.Gender] }},
	{"voice_type", func(p profile.Profile) float64 { return VoiceTypeCodes[p.VoiceType] }},
	{"main_streaming_time", func(p profile.Profile) float64 { return StreamingTimeCodes[p.MainStreamingTime] }},
}

// FixedColumnCount is the number of columns that precede the multi-hot block.
var FixedColumnCount = len(fixedColumns)

// Matrix is the numeric form of one catalog. Row i belongs to profile i.
type Matrix struct {
	Columns []string
	// Data is nil when the catalog is empty.
	Data *mat.Dense
}

// Rows returns the number of encoded profiles.
func (m *Matrix) Rows() int {
	if m.Data == nil {
		return 0
	}
	r, _ := m.Data.Dims()
	return r
}

// Row returns a copy of row i.
func (m *Matrix) Row(i int) []float64 {
	return mat.Row(nil, i, m.Data)
}

// Equal reports whether both matrices have the same columns and values.
func (m *Matrix) Equal(other *Matrix) bool {
	if len(m.Columns) != len(other.Columns) {
		return false
	}
	for i := range m.Columns {
		if m.Columns[i] != other.Columns[i] {
			return false
		}
	}
	if m.Data == nil || other.Data == nil {
		return m.Data == nil && other.Data == nil
	}
	return mat.Equal(m.Data, other.Data)
}

// Encoder maps profiles to feature rows under a fixed vocabulary.
type Encoder struct {
	Vocabulary *Vocabulary
	columns    []string
}

// NewEncoder fits an encoder to the catalog.
func NewEncoder(profiles []profile.Profile) *Encoder {
	vocab := BuildVocabulary(profiles)
	columns := make([]string, 0, len(fixedColumns)+vocab.Size())
	for _, c := range fixedColumns {
		columns = append(columns, c.name)
	}
	for _, f := range SetFields {
		for _, term := range vocab.terms[f] {
			columns = append(columns, string(f)+":"+term)
		}
	}
	return &Encoder{Vocabulary: vocab, columns: columns}
}

// Columns returns the column names in matrix order.
func (e *Encoder) Columns() []string {
	return append([]string(nil), e.columns...)
}

// Transform encodes one profile. Values outside the vocabulary are ignored.
func (e *Encoder) Transform(p profile.Profile) []float64 {
	row := make([]float64, len(e.columns))
	for i, c := range fixedColumns {
		row[i] = c.value(p)
	}

	offset := len(fixedColumns)
	for _, f := range SetFields {
		for _, value := range f.Values(p) {
			if idx, ok := e.Vocabulary.Index(f, value); ok {
				row[offset+idx] = 1
			}
		}
		offset += len(e.Vocabulary.terms[f])
	}
	return row
}

// Encode builds the matrix for the profiles the encoder was fitted on.
func (e *Encoder) Encode(profiles []profile.Profile) *Matrix {
	m := &Matrix{Columns: e.Columns()}
	if len(profiles) == 0 {
		return m
	}

	data := make([]float64, 0, len(profiles)*len(e.columns))
	for _, p := range profiles {
		data = append(data, e.Transform(p)...)
	}
	m.Data = mat.NewDense(len(profiles), len(e.columns), data)
	return m
}

// Encode fits a fresh vocabulary and encodes the catalog in one pass.
func Encode(profiles []profile.Profile) (*Vocabulary, *Matrix) {
	enc := NewEncoder(profiles)
	return enc.Vocabulary, enc.Encode(profiles)
}
