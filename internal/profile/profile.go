package profile

// Gender enumerants as they appear in the catalog.
const (
	GenderFemale = "女性"
	GenderMale   = "男性"
)

// Voice type enumerants.
const (
	VoiceHigh    = "高音"
	VoiceMid     = "中音"
	VoiceLow     = "低音"
	VoiceSpecial = "特殊"
)

// Main streaming time enumerants.
const (
	TimeDay     = "昼"
	TimeEvening = "夕方"
	TimeNight   = "夜"
)

// Genre keywords that raise the matching skill default.
const (
	GenreSinging = "歌"
	GenreGaming  = "ゲーム"
	GenreTalk    = "雑談"
)

// Profile is one normalized creator record
type Profile struct {
	Name              string   `json:"name" yaml:"name"`
	DebutDate         string   `json:"debut_date" yaml:"debut_date"`
	Gender            string   `json:"gender" yaml:"gender"`
	VoiceType         string   `json:"voice_type" yaml:"voice_type"`
	PersonalityTraits []string `json:"personality_traits" yaml:"personality_traits"`
	StreamingGenres   []string `json:"streaming_genres" yaml:"streaming_genres"`
	GameGenres        []string `json:"game_genres" yaml:"game_genres"`
	MainStreamingTime string   `json:"main_streaming_time" yaml:"main_streaming_time"`
	SubscriberCount   int      `json:"subscriber_count" yaml:"subscriber_count"`
	AverageViewers    int      `json:"average_viewers" yaml:"average_viewers"`
	StreamingFreq     int      `json:"streaming_frequency" yaml:"streaming_frequency"`
	CollabFreq        int      `json:"collab_frequency" yaml:"collab_frequency"`
	SingingSkill      int      `json:"singing_skill" yaml:"singing_skill"`
	GamingSkill       int      `json:"gaming_skill" yaml:"gaming_skill"`
	TalkSkill         int      `json:"talk_skill" yaml:"talk_skill"`
	AvatarColorTheme  string   `json:"avatar_color_theme" yaml:"avatar_color_theme"`
	Description       string   `json:"description,omitempty" yaml:"description,omitempty"`
	WikiURL           string   `json:"wiki_url,omitempty" yaml:"wiki_url,omitempty"`

	// ClusterID is set once the snapshot holding this profile has been clustered.
	ClusterID *int `json:"cluster_id,omitempty" yaml:"cluster_id,omitempty"`
}

// Record is a raw profile as supplied by a catalog source. Zero values mean
// the field was not provided, except for the pointer counts where nil means
// absent and 0 is a real value.
type Record struct {
	Name              string   `json:"name" yaml:"name"`
	DebutDate         string   `json:"debut_date,omitempty" yaml:"debut_date,omitempty"`
	Gender            string   `json:"gender,omitempty" yaml:"gender,omitempty"`
	VoiceType         string   `json:"voice_type,omitempty" yaml:"voice_type,omitempty"`
	PersonalityTraits []string `json:"personality_traits,omitempty" yaml:"personality_traits,omitempty"`
	StreamingGenres   []string `json:"streaming_genres,omitempty" yaml:"streaming_genres,omitempty"`
	GameGenres        []string `json:"game_genres,omitempty" yaml:"game_genres,omitempty"`
	MainStreamingTime string   `json:"main_streaming_time,omitempty" yaml:"main_streaming_time,omitempty"`
	SubscriberCount   int      `json:"subscriber_count,omitempty" yaml:"subscriber_count,omitempty"`
	AverageViewers    *int     `json:"average_viewers,omitempty" yaml:"average_viewers,omitempty"`
	StreamingFreq     *int     `json:"streaming_frequency,omitempty" yaml:"streaming_frequency,omitempty"`
	CollabFreq        *int     `json:"collab_frequency,omitempty" yaml:"collab_frequency,omitempty"`
	SingingSkill      int      `json:"singing_skill,omitempty" yaml:"singing_skill,omitempty"`
	GamingSkill       int      `json:"gaming_skill,omitempty" yaml:"gaming_skill,omitempty"`
	TalkSkill         int      `json:"talk_skill,omitempty" yaml:"talk_skill,omitempty"`
	AvatarColorTheme  string   `json:"avatar_color_theme,omitempty" yaml:"avatar_color_theme,omitempty"`
	Description       string   `json:"description,omitempty" yaml:"description,omitempty"`
	WikiURL           string   `json:"wiki_url,omitempty" yaml:"wiki_url,omitempty"`
}

// Clone returns a copy that shares no slices with p.
func (p Profile) Clone() Profile {
	c := p
	c.PersonalityTraits = append([]string(nil), p.PersonalityTraits...)
	c.StreamingGenres = append([]string(nil), p.StreamingGenres...)
	c.GameGenres = append([]string(nil), p.GameGenres...)
	if p.ClusterID != nil {
		id := *p.ClusterID
		c.ClusterID = &id
	}
	return c
}

// HasStreamingGenre reports whether genre is one of the profile's streaming genres.
func (p Profile) HasStreamingGenre(genre string) bool {
	return contains(p.StreamingGenres, genre)
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

// IsGender reports whether v is a known gender enumerant.
func IsGender(v string) bool {
	return v == GenderFemale || v == GenderMale
}

// IsVoiceType reports whether v is a known voice type enumerant.
func IsVoiceType(v string) bool {
	switch v {
	case VoiceHigh, VoiceMid, VoiceLow, VoiceSpecial:
		return true
	}
	return false
}

// IsStreamingTime reports whether v is a known streaming time enumerant.
func IsStreamingTime(v string) bool {
	switch v {
	case TimeDay, TimeEvening, TimeNight:
		return true
	}
	return false
}
