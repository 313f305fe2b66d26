package profile_test

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forblgac/nijisanji-vtuber-recommend/internal/profile"
)

func newNormalizer() *profile.Normalizer {
	return profile.NewNormalizer(logrus.New().WithField("test", "profile"))
}

func TestNormalizeAppliesDefaults(t *testing.T) {
	p, err := newNormalizer().Normalize(profile.Record{Name: "テスト"})
	require.NoError(t, err)

	assert.Equal(t, "テスト", p.Name)
	assert.Equal(t, profile.GenderMale, p.Gender)
	assert.Equal(t, profile.VoiceLow, p.VoiceType)
	assert.Equal(t, profile.TimeNight, p.MainStreamingTime)
	assert.Equal(t, 500000, p.SubscriberCount)
	assert.Equal(t, 35000, p.AverageViewers)
	assert.Equal(t, 4, p.StreamingFreq)
	assert.Equal(t, 3, p.CollabFreq)
	assert.Equal(t, 5, p.SingingSkill)
	assert.Equal(t, 5, p.GamingSkill)
	assert.Equal(t, 5, p.TalkSkill)
	assert.Equal(t, "2018-01-01", p.DebutDate)
	assert.Contains(t, profile.ColorPalette, p.AvatarColorTheme)
	assert.Nil(t, p.ClusterID)
	assert.Empty(t, p.StreamingGenres)
}

func TestNormalizeFemaleVoiceDefault(t *testing.T) {
	p, err := newNormalizer().Normalize(profile.Record{Name: "a", Gender: profile.GenderFemale})
	require.NoError(t, err)
	assert.Equal(t, profile.VoiceHigh, p.VoiceType)
}

func TestNormalizeInvalidEnumerantsFallBack(t *testing.T) {
	p, err := newNormalizer().Normalize(profile.Record{
		Name:              "a",
		Gender:            "unknown",
		VoiceType:         "whisper",
		MainStreamingTime: "morning",
	})
	require.NoError(t, err)
	assert.Equal(t, profile.GenderMale, p.Gender)
	assert.Equal(t, profile.VoiceLow, p.VoiceType)
	assert.Equal(t, profile.TimeNight, p.MainStreamingTime)
}

func TestNormalizeSkillBoostFromGenres(t *testing.T) {
	p, err := newNormalizer().Normalize(profile.Record{
		Name:            "a",
		StreamingGenres: []string{profile.GenreSinging, profile.GenreGaming, profile.GenreTalk},
	})
	require.NoError(t, err)
	assert.Equal(t, 8, p.SingingSkill)
	assert.Equal(t, 8, p.GamingSkill)
	assert.Equal(t, 9, p.TalkSkill)
}

func TestNormalizeClampsSkills(t *testing.T) {
	p, err := newNormalizer().Normalize(profile.Record{
		Name:         "a",
		SingingSkill: 15,
		GamingSkill:  -2,
		TalkSkill:    7,
	})
	require.NoError(t, err)
	assert.Equal(t, 10, p.SingingSkill)
	assert.Equal(t, 1, p.GamingSkill)
	assert.Equal(t, 7, p.TalkSkill)
}

func TestNormalizeClampsViewersToSubscribers(t *testing.T) {
	p, err := newNormalizer().Normalize(profile.Record{
		Name:            "a",
		SubscriberCount: 1000,
		AverageViewers:  intPtr(5000),
	})
	require.NoError(t, err)
	assert.Equal(t, 1000, p.AverageViewers)
}

func intPtr(v int) *int {
	return &v
}

func TestNormalizeKeepsExplicitZeroCounts(t *testing.T) {
	p, err := newNormalizer().Normalize(profile.Record{
		Name:            "a",
		SubscriberCount: 1000,
		AverageViewers:  intPtr(0),
		StreamingFreq:   intPtr(0),
		CollabFreq:      intPtr(0),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, p.AverageViewers)
	assert.Equal(t, 0, p.StreamingFreq)
	assert.Equal(t, 0, p.CollabFreq)

	p, err = newNormalizer().Normalize(profile.Record{
		Name:            "a",
		SubscriberCount: 1000,
		AverageViewers:  intPtr(-5),
		CollabFreq:      intPtr(-1),
	})
	require.NoError(t, err)
	assert.Equal(t, 70, p.AverageViewers)
	assert.Equal(t, 4, p.StreamingFreq)
	assert.Equal(t, 3, p.CollabFreq)
}

func TestNormalizeViewersFromSubscribers(t *testing.T) {
	p, err := newNormalizer().Normalize(profile.Record{Name: "a", SubscriberCount: 100000})
	require.NoError(t, err)
	assert.Equal(t, 7000, p.AverageViewers)
}

func TestNormalizeDebutDate(t *testing.T) {
	tests := []struct {
		raw      string
		expected string
	}{
		{"2019-02-16", "2019-02-16"},
		{"2019/2/16", "2019-02-16"},
		{"2019年2月16日", "2019-02-16"},
		{"sometime", "2018-01-01"},
		{"", "2018-01-01"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			p, err := newNormalizer().Normalize(profile.Record{Name: "a", DebutDate: tt.raw})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, p.DebutDate)
		})
	}
}

func TestNormalizeCleansSets(t *testing.T) {
	p, err := newNormalizer().Normalize(profile.Record{
		Name:            "a",
		StreamingGenres: []string{" 雑談", "ゲーム", "雑談", ""},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"雑談", "ゲーム"}, p.StreamingGenres)
}

func TestNormalizeRejectsMissingName(t *testing.T) {
	_, err := newNormalizer().Normalize(profile.Record{Name: "  ", Gender: profile.GenderFemale})
	require.Error(t, err)
	assert.True(t, errors.Is(err, profile.ErrMalformedProfile))
}

func TestNormalizeAllDropsMalformedAndDuplicates(t *testing.T) {
	profiles, rejected := newNormalizer().NormalizeAll([]profile.Record{
		{Name: "a"},
		{Name: ""},
		{Name: "b"},
		{Name: "a", Gender: profile.GenderFemale},
	})

	assert.Equal(t, 2, rejected)
	require.Len(t, profiles, 2)
	assert.Equal(t, "a", profiles[0].Name)
	assert.Equal(t, profile.GenderMale, profiles[0].Gender)
	assert.Equal(t, "b", profiles[1].Name)
}

func TestPaletteColorIsStable(t *testing.T) {
	assert.Equal(t, profile.PaletteColor("月ノ美兎"), profile.PaletteColor("月ノ美兎"))
}

func TestCloneDoesNotShareSlices(t *testing.T) {
	id := 2
	p := profile.Profile{Name: "a", StreamingGenres: []string{"歌"}, ClusterID: &id}
	c := p.Clone()
	c.StreamingGenres[0] = "ゲーム"
	*c.ClusterID = 3

	assert.Equal(t, "歌", p.StreamingGenres[0])
	assert.Equal(t, 2, *p.ClusterID)
}
