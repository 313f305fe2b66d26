package cluster_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/forblgac/nijisanji-vtuber-recommend/internal/cluster"
	"github.com/forblgac/nijisanji-vtuber-recommend/internal/features"
	"github.com/forblgac/nijisanji-vtuber-recommend/internal/profile"
)

func tenProfiles() []profile.Profile {
	genders := []string{profile.GenderFemale, profile.GenderMale}
	voices := []string{profile.VoiceHigh, profile.VoiceMid, profile.VoiceLow, profile.VoiceSpecial}
	times := []string{profile.TimeDay, profile.TimeEvening, profile.TimeNight}
	genres := []string{"雑談", "ゲーム", "歌", "ASMR", "企画"}

	var out []profile.Profile
	for i := 0; i < 10; i++ {
		out = append(out, profile.Profile{
			Name:              fmt.Sprintf("creator-%d", i),
			Gender:            genders[i%2],
			VoiceType:         voices[i%4],
			MainStreamingTime: times[i%3],
			StreamingGenres:   []string{genres[i%5], genres[(i+2)%5]},
			GameGenres:        []string{"FPS"},
			SubscriberCount:   400000 + i*50000,
			AverageViewers:    7000 + i*900,
			StreamingFreq:     3 + i%4,
			CollabFreq:        2 + i%5,
			SingingSkill:      1 + i,
			GamingSkill:       10 - i,
			TalkSkill:         5,
		})
	}
	return out
}

func encode(t *testing.T, profiles []profile.Profile) *features.Matrix {
	t.Helper()
	_, m := features.Encode(profiles)
	return m
}

func TestFitLabelsEveryProfile(t *testing.T) {
	m := encode(t, tenProfiles())

	state, err := cluster.Fit(context.Background(), m, cluster.DefaultConfig())
	require.NoError(t, err)

	require.Len(t, state.Labels, 10)
	for _, l := range state.Labels {
		assert.GreaterOrEqual(t, l, 0)
		assert.Less(t, l, 4)
	}
	total := 0
	for _, s := range state.Sizes() {
		total += s
	}
	assert.Equal(t, 10, total)
	assert.Equal(t, 4, state.EffectiveK)
	assert.False(t, state.Reduced())
}

func TestFitIsDeterministic(t *testing.T) {
	m := encode(t, tenProfiles())
	cfg := cluster.DefaultConfig()

	first, err := cluster.Fit(context.Background(), m, cfg)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := cluster.Fit(context.Background(), m, cfg)
		require.NoError(t, err)
		assert.Equal(t, first.Labels, again.Labels)
		assert.True(t, mat.Equal(first.Centroids, again.Centroids))
	}
}

func TestFitSeparatesObviousGroups(t *testing.T) {
	data := mat.NewDense(6, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		100, 100,
		100, 101,
		101, 100,
	})
	m := &features.Matrix{Columns: []string{"x", "y"}, Data: data}

	state, err := cluster.Fit(context.Background(), m, cluster.Config{K: 2, Seed: 7, NInit: 3})
	require.NoError(t, err)

	assert.Equal(t, state.Labels[0], state.Labels[1])
	assert.Equal(t, state.Labels[0], state.Labels[2])
	assert.Equal(t, state.Labels[3], state.Labels[4])
	assert.Equal(t, state.Labels[3], state.Labels[5])
	assert.NotEqual(t, state.Labels[0], state.Labels[3])

	assert.Equal(t, state.Labels[0], state.Predict([]float64{0.5, 0.5}))
	assert.Equal(t, state.Labels[3], state.Predict([]float64{99, 99}))
}

func TestFitReducesKForSmallCatalog(t *testing.T) {
	m := encode(t, tenProfiles()[:3])

	state, err := cluster.Fit(context.Background(), m, cluster.DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, 4, state.RequestedK)
	assert.Equal(t, 3, state.EffectiveK)
	assert.True(t, state.Reduced())
	assert.ElementsMatch(t, []int{0, 1, 2}, state.Labels)
}

func TestFitReducesKForIdenticalRows(t *testing.T) {
	p := tenProfiles()[0]
	catalog := []profile.Profile{p, p, p, p, p}
	for i := range catalog {
		catalog[i].Name = fmt.Sprintf("copy-%d", i)
	}

	state, err := cluster.Fit(context.Background(), encode(t, catalog), cluster.DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, 1, state.EffectiveK)
	assert.Equal(t, []int{0, 0, 0, 0, 0}, state.Labels)
	assert.Equal(t, 0.0, state.Inertia)
}

func TestFitEmptyMatrixIsDegenerate(t *testing.T) {
	_, err := cluster.Fit(context.Background(), encode(t, nil), cluster.DefaultConfig())
	require.Error(t, err)
	assert.True(t, errors.Is(err, cluster.ErrClusteringDegenerate))
}

func TestFitRejectsNonPositiveK(t *testing.T) {
	_, err := cluster.Fit(context.Background(), encode(t, tenProfiles()), cluster.Config{K: 0})
	assert.True(t, errors.Is(err, cluster.ErrClusteringDegenerate))
}

func TestFitHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := cluster.Fit(ctx, encode(t, tenProfiles()), cluster.DefaultConfig())
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestScalerZeroVarianceColumn(t *testing.T) {
	data := mat.NewDense(3, 2, []float64{
		5, 1,
		5, 2,
		5, 3,
	})
	s := cluster.FitScaler(data)

	assert.Equal(t, []int{0}, s.ConstantColumns())
	row := s.Transform([]float64{5, 2})
	assert.Equal(t, 0.0, row[0])
	assert.InDelta(t, 0.0, row[1], 1e-12)

	// population std of {1,2,3} is sqrt(2/3)
	assert.InDelta(t, 1.224744871, s.Transform([]float64{5, 3})[1], 1e-6)
}
