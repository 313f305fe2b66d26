package profile

// Defaults applied by the Normalizer when a field is absent or invalid.
// Every fallback value used anywhere in the pipeline lives here.
const (
	DefaultGender          = GenderMale
	DefaultFemaleVoice     = VoiceHigh
	DefaultVoice           = VoiceLow
	DefaultStreamingTime   = TimeNight
	DefaultSubscriberCount = 500000
	DefaultViewerRatio     = 0.07
	DefaultStreamingFreq   = 4
	DefaultCollabFreq      = 3
	DefaultSkill           = 5
	BoostedSingingSkill    = 8
	BoostedGamingSkill     = 8
	BoostedTalkSkill       = 9
	DefaultDebutDate       = "2018-01-01"
	MinSkill               = 1
	MaxSkill               = 10
	debutDateLayout        = "2006-01-02"
)

// ColorPalette is the cosmetic avatar theme palette used when a record has none.
var ColorPalette = []string{
	"白・青",
	"緑・茶",
	"黒・青",
	"紫・白",
	"ピンク・白",
	"青・白",
	"白・水色",
	"オレンジ・白",
	"赤・黒",
	"灰・黒",
}

var debutDateLayouts = []string{
	debutDateLayout,
	"2006/01/02",
	"2006/1/2",
	"2006-1-2",
	"2006年1月2日",
}
