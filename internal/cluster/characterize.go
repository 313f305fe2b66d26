package cluster

import (
	"sort"

	"github.com/forblgac/nijisanji-vtuber-recommend/internal/profile"
)

const topN = 3

// ValueCount is one value and how many members of a cluster carry it.
type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Summary describes one cluster.
type Summary struct {
	ClusterID         int          `json:"cluster_id"`
	Size              int          `json:"size"`
	AvgSubscribers    float64      `json:"avg_subscribers"`
	AvgViewers        float64      `json:"avg_viewers"`
	MainGender        string       `json:"main_gender"`
	MainVoiceType     string       `json:"main_voice_type"`
	MainStreamingTime string       `json:"main_streaming_time"`
	CommonGenres      []ValueCount `json:"common_genres"`
	CommonGameGenres  []ValueCount `json:"common_game_genres"`
	CommonPersonality []ValueCount `json:"common_personality"`
}

// Characterize summarizes every non-empty cluster in ascending id order.
// profiles must be the catalog the state was fitted on, in the same order.
func Characterize(state *State, profiles []profile.Profile) []Summary {
	if state == nil || len(profiles) != len(state.Labels) {
		return nil
	}

	members := make([][]profile.Profile, state.EffectiveK)
	for i, p := range profiles {
		l := state.Labels[i]
		members[l] = append(members[l], p)
	}

	summaries := make([]Summary, 0, state.EffectiveK)
	for id, group := range members {
		if len(group) == 0 {
			continue
		}
		summaries = append(summaries, summarize(id, group))
	}
	return summaries
}

func summarize(id int, group []profile.Profile) Summary {
	var subs, viewers float64
	gender := newTally()
	voice := newTally()
	timeSlot := newTally()
	genres := newTally()
	games := newTally()
	traits := newTally()

	for _, p := range group {
		subs += float64(p.SubscriberCount)
		viewers += float64(p.AverageViewers)
		gender.add(p.Gender)
		voice.add(p.VoiceType)
		timeSlot.add(p.MainStreamingTime)
		for _, g := range p.StreamingGenres {
			genres.add(g)
		}
		for _, g := range p.GameGenres {
			games.add(g)
		}
		for _, t := range p.PersonalityTraits {
			traits.add(t)
		}
	}

	n := float64(len(group))
	return Summary{
		ClusterID:         id,
		Size:              len(group),
		AvgSubscribers:    subs / n,
		AvgViewers:        viewers / n,
		MainGender:        gender.mode(),
		MainVoiceType:     voice.mode(),
		MainStreamingTime: timeSlot.mode(),
		CommonGenres:      genres.top(topN),
		CommonGameGenres:  games.top(topN),
		CommonPersonality: traits.top(topN),
	}
}

// tally counts values and remembers the order they were first seen in.
type tally struct {
	order  []string
	counts map[string]int
}

func newTally() *tally {
	return &tally{counts: make(map[string]int)}
}

func (t *tally) add(v string) {
	if _, ok := t.counts[v]; !ok {
		t.order = append(t.order, v)
	}
	t.counts[v]++
}

// mode returns the most frequent value; ties go to the first seen.
func (t *tally) mode() string {
	best, bestCount := "", 0
	for _, v := range t.order {
		if t.counts[v] > bestCount {
			best, bestCount = v, t.counts[v]
		}
	}
	return best
}

// top returns up to n values by count; ties keep first-seen order.
func (t *tally) top(n int) []ValueCount {
	out := make([]ValueCount, 0, len(t.order))
	for _, v := range t.order {
		out = append(out, ValueCount{Value: v, Count: t.counts[v]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
