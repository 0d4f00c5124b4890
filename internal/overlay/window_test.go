package overlay

import (
	"math"
	"testing"

	"github.com/MeKo-Tech/ucrop/internal/geometry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ratioMatches(b geometry.Box, r float64) bool {
	return math.Abs(b.Width()/b.Height()-r) <= 1e-9*math.Max(1, r)
}

func viewport(w, h float64) geometry.Size { return geometry.Size{Width: w, Height: h} }

func TestParseAspectRatio(t *testing.T) {
	cases := []struct {
		in   string
		want AspectRatio
	}{
		{"", None()},
		{"none", None()},
		{"Source", Source()},
		{"freeform", Freeform()},
		{"16:9", AspectRatio{Mode: ModeFixed, Num: 16, Den: 9}},
		{"3/4", AspectRatio{Mode: ModeFixed, Num: 3, Den: 4}},
		{"1x1", AspectRatio{Mode: ModeFixed, Num: 1, Den: 1}},
	}
	for _, c := range cases {
		got, err := ParseAspectRatio(c.in)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, got, c.in)
	}
	for _, bad := range []string{"0:1", "1:0", "abc", ":3", "4:", "-1:2"} {
		_, err := ParseAspectRatio(bad)
		assert.ErrorIs(t, err, ErrInvalidRatio, bad)
	}
	assert.Equal(t, "16:9", AspectRatio{Mode: ModeFixed, Num: 16, Den: 9}.String())
}

func TestNew_FixedRatioFitsViewport(t *testing.T) {
	r, err := Fixed(1, 1)
	require.NoError(t, err)
	w, err := New(viewport(1000, 800), geometry.Size{}, r, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, geometry.NewBox(100, 0, 900, 800), w.Rect())

	_, err = New(viewport(0, 800), geometry.Size{}, r, DefaultConfig())
	assert.ErrorIs(t, err, ErrDegenerateViewport)
}

func TestNew_NoneUsesFraction(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Fraction = 0.5
	w, err := New(viewport(400, 200), geometry.Size{}, None(), cfg)
	require.NoError(t, err)
	assert.Equal(t, geometry.NewBox(100, 50, 300, 150), w.Rect())
}

func TestSetAspectRatio_PreservesCenterAndEmits(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Fraction = 0.5
	w, err := New(viewport(1000, 1000), geometry.Size{}, Freeform(), cfg)
	require.NoError(t, err)
	require.True(t, w.Drag(HandleLeft, geometry.Point{X: 100}, geometry.NewBox(0, 0, 1000, 1000)))
	center := w.Rect().Center()
	assert.Equal(t, geometry.Point{X: 550, Y: 500}, center)

	var events []Event
	w.Subscribe(func(e Event) { events = append(events, e) })

	r, err := Fixed(2, 1)
	require.NoError(t, err)
	require.NoError(t, w.SetAspectRatio(r))

	require.Len(t, events, 1)
	assert.Equal(t, EventRatioChanged, events[0].Kind)
	assert.Equal(t, w.Rect(), events[0].Rect)
	assert.True(t, ratioMatches(w.Rect(), 2))
	assert.Equal(t, geometry.NewBox(300, 375, 800, 625), w.Rect())
}

func TestSetAspectRatio_ShiftsBackInsideViewport(t *testing.T) {
	w, err := New(viewport(1000, 1000), geometry.Size{}, Freeform(), DefaultConfig())
	require.NoError(t, err)
	require.True(t, w.Drag(HandleLeft, geometry.Point{X: 400}, geometry.NewBox(0, 0, 1000, 1000)))

	r, err := Fixed(1, 1)
	require.NoError(t, err)
	require.NoError(t, w.SetAspectRatio(r))
	assert.Equal(t, geometry.NewBox(0, 0, 1000, 1000), w.Rect())
}

func TestSetAspectRatio_Errors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FreestyleEnabled = false
	w, err := New(viewport(100, 100), geometry.Size{}, None(), cfg)
	require.NoError(t, err)
	assert.ErrorIs(t, w.SetAspectRatio(Freeform()), ErrFreeformDisabled)
	assert.ErrorIs(t, w.SetAspectRatio(AspectRatio{Mode: ModeFixed}), ErrInvalidRatio)
	assert.Equal(t, ModeNone, w.AspectRatio().Mode)
}

func TestSourceRatioFollowsImage(t *testing.T) {
	w, err := New(viewport(1000, 1000), geometry.Size{}, Source(), DefaultConfig())
	require.NoError(t, err)
	_, ok := w.TargetRatio()
	assert.False(t, ok)

	w.SetSourceSize(geometry.Size{Width: 4000, Height: 3000})
	r, ok := w.TargetRatio()
	require.True(t, ok)
	assert.InDelta(t, 4.0/3.0, r, 1e-12)
	assert.Equal(t, geometry.NewBox(0, 125, 1000, 875), w.Rect())
}

func TestOnViewportResized(t *testing.T) {
	r, err := Fixed(1, 1)
	require.NoError(t, err)
	w, err := New(viewport(1000, 800), geometry.Size{}, r, DefaultConfig())
	require.NoError(t, err)
	fired := 0
	w.Subscribe(func(Event) { fired++ })

	require.NoError(t, w.OnViewportResized(viewport(300, 600)))
	assert.Equal(t, geometry.NewBox(0, 150, 300, 450), w.Rect())
	assert.Equal(t, 1, fired)

	require.NoError(t, w.SetAspectRatio(Freeform()))
	require.True(t, w.Drag(HandleRight, geometry.Point{X: -100}, geometry.NewBox(0, 0, 300, 600)))
	require.NoError(t, w.OnViewportResized(viewport(500, 500)))
	assert.Equal(t, geometry.NewBox(0, 0, 500, 500), w.Rect(), "freeform resets to the default window")

	assert.ErrorIs(t, w.OnViewportResized(viewport(10, 0)), ErrDegenerateViewport)
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	w, err := New(viewport(100, 100), geometry.Size{}, None(), DefaultConfig())
	require.NoError(t, err)
	n := 0
	stop := w.Subscribe(func(Event) { n++ })
	require.NoError(t, w.OnViewportResized(viewport(50, 50)))
	stop()
	require.NoError(t, w.OnViewportResized(viewport(60, 60)))
	assert.Equal(t, 1, n)
}
