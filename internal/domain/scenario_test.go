package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func ptr(f float64) *float64 { return &f }

func TestScenario_ValidateForAPI(t *testing.T) {
	t.Run("empty timeline rejected", func(t *testing.T) {
		s := Scenario{}
		require.Error(t, s.ValidateForAPI())
	})

	t.Run("missing id rejected", func(t *testing.T) {
		s := Scenario{Timeline: []TimelineItem{{Kind: SceneKindBanner}}}
		require.Error(t, s.ValidateForAPI())
	})

	t.Run("missing kind rejected", func(t *testing.T) {
		s := Scenario{Timeline: []TimelineItem{{ID: "s1"}}}
		require.Error(t, s.ValidateForAPI())
	})

	t.Run("duplicate id rejected", func(t *testing.T) {
		s := Scenario{Timeline: []TimelineItem{
			{ID: "s1", Kind: SceneKindBanner},
			{ID: "s1", Kind: SceneKindBanner},
		}}
		require.Error(t, s.ValidateForAPI())
	})

	t.Run("minimal valid shape accepted even without duration", func(t *testing.T) {
		s := Scenario{Timeline: []TimelineItem{{ID: "s1", Kind: SceneKindBanner}}}
		require.NoError(t, s.ValidateForAPI())
	})
}

func TestScenario_ValidateForPhase2(t *testing.T) {
	t.Run("video kind requires source video and trim range", func(t *testing.T) {
		s := Scenario{Timeline: []TimelineItem{{ID: "s1", Kind: SceneKindVideo}}}
		require.Error(t, s.ValidateForPhase2())
	})

	t.Run("fromSeconds == toSeconds is invalid", func(t *testing.T) {
		s := Scenario{Timeline: []TimelineItem{{
			ID: "s1", Kind: SceneKindVideo, SourceVideoID: "v1",
			FromSeconds: ptr(2), ToSeconds: ptr(2),
		}}}
		require.Error(t, s.ValidateForPhase2())
	})

	t.Run("negative fromSeconds is invalid", func(t *testing.T) {
		s := Scenario{Timeline: []TimelineItem{{
			ID: "s1", Kind: SceneKindOverlay, SourceVideoID: "v1",
			FromSeconds: ptr(-1), ToSeconds: ptr(2),
		}}}
		require.Error(t, s.ValidateForPhase2())
	})

	t.Run("valid trim range accepted", func(t *testing.T) {
		s := Scenario{Timeline: []TimelineItem{{
			ID: "s1", Kind: SceneKindPIP, SourceVideoID: "v1",
			FromSeconds: ptr(1), ToSeconds: ptr(4),
		}}}
		require.NoError(t, s.ValidateForPhase2())
	})

	t.Run("banner requires positive duration", func(t *testing.T) {
		s := Scenario{Timeline: []TimelineItem{{ID: "s1", Kind: SceneKindBanner, DurationSeconds: 0}}}
		require.Error(t, s.ValidateForPhase2())

		s.Timeline[0].DurationSeconds = 2
		require.NoError(t, s.ValidateForPhase2())
	})
}

func TestEvenHeight(t *testing.T) {
	cases := []struct {
		in   float64
		want int
	}{
		{1080, 1080},
		{1081, 1082},
		{1920.0 / 5.83, 330}, // round(329.3...) -> 329 -> bumped to even 330
	}
	for _, tc := range cases {
		got := EvenHeight(tc.in)
		require.Zero(t, got%2, "EvenHeight(%v) = %v must be even", tc.in, got)
		require.Equal(t, tc.want, got)
	}
}
