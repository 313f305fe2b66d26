package profile

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/sirupsen/logrus"
)

// ErrMalformedProfile is returned for records that cannot become a Profile.
var ErrMalformedProfile = errors.New("malformed profile")

// Normalizer turns raw records into complete profiles using the default table.
type Normalizer struct {
	logger *logrus.Entry
}

// NewNormalizer creates a normalizer. A nil logger falls back to the standard logger.
func NewNormalizer(logger *logrus.Entry) *Normalizer {
	if logger == nil {
		logger = logrus.WithField("component", "normalizer")
	}
	return &Normalizer{logger: logger}
}

// Normalize fills every missing or invalid field of rec. Each field is decided
// on its own; nothing is inferred from other profiles.
func (n *Normalizer) Normalize(rec Record) (Profile, error) {
	name := strings.TrimSpace(rec.Name)
	if name == "" {
		return Profile{}, fmt.Errorf("%w: missing name", ErrMalformedProfile)
	}

	p := Profile{
		Name:              name,
		PersonalityTraits: cleanSet(rec.PersonalityTraits),
		StreamingGenres:   cleanSet(rec.StreamingGenres),
		GameGenres:        cleanSet(rec.GameGenres),
		Description:       strings.TrimSpace(rec.Description),
		WikiURL:           strings.TrimSpace(rec.WikiURL),
	}

	p.Gender = strings.TrimSpace(rec.Gender)
	if !IsGender(p.Gender) {
		p.Gender = DefaultGender
	}

	p.VoiceType = strings.TrimSpace(rec.VoiceType)
	if !IsVoiceType(p.VoiceType) {
		if p.Gender == GenderFemale {
			p.VoiceType = DefaultFemaleVoice
		} else {
			p.VoiceType = DefaultVoice
		}
	}

	p.MainStreamingTime = strings.TrimSpace(rec.MainStreamingTime)
	if !IsStreamingTime(p.MainStreamingTime) {
		p.MainStreamingTime = DefaultStreamingTime
	}

	p.SubscriberCount = rec.SubscriberCount
	if p.SubscriberCount <= 0 {
		p.SubscriberCount = DefaultSubscriberCount
	}

	p.AverageViewers = orDefault(rec.AverageViewers, int(float64(p.SubscriberCount)*DefaultViewerRatio))
	if p.AverageViewers > p.SubscriberCount {
		n.logger.WithFields(logrus.Fields{
			"name":             name,
			"average_viewers":  p.AverageViewers,
			"subscriber_count": p.SubscriberCount,
		}).Debug("Clamping average viewers to subscriber count")
		p.AverageViewers = p.SubscriberCount
	}

	p.StreamingFreq = orDefault(rec.StreamingFreq, DefaultStreamingFreq)
	p.CollabFreq = orDefault(rec.CollabFreq, DefaultCollabFreq)

	p.SingingSkill = skill(rec.SingingSkill, p.HasStreamingGenre(GenreSinging), BoostedSingingSkill)
	p.GamingSkill = skill(rec.GamingSkill, p.HasStreamingGenre(GenreGaming), BoostedGamingSkill)
	p.TalkSkill = skill(rec.TalkSkill, p.HasStreamingGenre(GenreTalk), BoostedTalkSkill)

	p.AvatarColorTheme = strings.TrimSpace(rec.AvatarColorTheme)
	if p.AvatarColorTheme == "" {
		p.AvatarColorTheme = PaletteColor(name)
	}

	p.DebutDate = parseDebutDate(rec.DebutDate)

	return p, nil
}

// NormalizeAll normalizes a batch. Malformed records and repeated names are
// dropped; the number dropped is returned alongside the profiles.
func (n *Normalizer) NormalizeAll(records []Record) ([]Profile, int) {
	profiles := make([]Profile, 0, len(records))
	seen := make(map[string]bool, len(records))
	rejected := 0

	for i, rec := range records {
		p, err := n.Normalize(rec)
		if err != nil {
			n.logger.WithError(err).WithField("index", i).Warn("Rejecting record")
			rejected++
			continue
		}
		if seen[p.Name] {
			n.logger.WithField("name", p.Name).Warn("Rejecting duplicate profile name")
			rejected++
			continue
		}
		seen[p.Name] = true
		profiles = append(profiles, p)
	}

	return profiles, rejected
}

// PaletteColor picks a stable palette entry for name.
func PaletteColor(name string) string {
	return ColorPalette[xxhash.Sum64String(name)%uint64(len(ColorPalette))]
}

// orDefault returns def when v is absent or negative. An explicit 0 is kept.
func orDefault(v *int, def int) int {
	if v == nil || *v < 0 {
		return def
	}
	return *v
}

func skill(v int, boosted bool, boostValue int) int {
	if v == 0 {
		if boosted {
			return boostValue
		}
		return DefaultSkill
	}
	if v < MinSkill {
		return MinSkill
	}
	if v > MaxSkill {
		return MaxSkill
	}
	return v
}

func parseDebutDate(raw string) string {
	raw = strings.TrimSpace(raw)
	for _, layout := range debutDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format(debutDateLayout)
		}
	}
	return DefaultDebutDate
}

// cleanSet trims values and drops blanks and repeats, keeping first-seen order.
func cleanSet(values []string) []string {
	out := make([]string, 0, len(values))
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
