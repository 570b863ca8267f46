package postprocess

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/nvr-ai/cacao-scan/images"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cand(class int, conf float32, x, y, w, h float64) Candidate {
	return Candidate{
		ClassIndex: class,
		Label:      cacaoClasses[class],
		Confidence: conf,
		Box:        images.Rect{X: x, Y: y, W: w, H: h},
	}
}

func TestApplyNMS_SameClassSuppression(t *testing.T) {
	strong := cand(0, 0.9, 0.1, 0.1, 0.3, 0.3)
	weak := cand(0, 0.6, 0.15, 0.1, 0.3, 0.3)
	far := cand(0, 0.5, 0.6, 0.6, 0.2, 0.2)

	kept := ApplyNMS([]Candidate{weak, far, strong}, nil)
	require.Len(t, kept, 2)
	assert.Equal(t, strong, kept[0])
	assert.Equal(t, far, kept[1])
}

func TestApplyNMS_CrossClassTolerance(t *testing.T) {
	config := DefaultNMSConfig()

	t.Run("moderate overlap keeps both", func(t *testing.T) {
		// Shifting a 0.3 box by a third of its width gives IoU 0.5.
		a := cand(0, 0.9, 0.1, 0.1, 0.3, 0.3)
		b := cand(1, 0.8, 0.2, 0.1, 0.3, 0.3)
		require.InDelta(t, 0.5, IoU(a, b), 1e-6)

		kept := ApplyNMS([]Candidate{a, b}, &config)
		assert.Len(t, kept, 2)
	})

	t.Run("near duplicate is suppressed", func(t *testing.T) {
		a := cand(0, 0.9, 0.1, 0.1, 0.3, 0.3)
		b := cand(1, 0.8, 0.105, 0.1, 0.3, 0.3)
		require.Greater(t, IoU(a, b), 0.95)

		kept := ApplyNMS([]Candidate{b, a}, &config)
		require.Len(t, kept, 1)
		assert.Equal(t, a, kept[0])
	})

	t.Run("class agnostic uses one threshold", func(t *testing.T) {
		a := cand(0, 0.9, 0.1, 0.1, 0.3, 0.3)
		b := cand(1, 0.8, 0.2, 0.1, 0.3, 0.3)
		agnostic := NMSConfig{IoUThreshold: 0.45}

		assert.Len(t, ApplyNMS([]Candidate{a, b}, &agnostic), 1)
	})
}

func TestApplyNMS_OrientedGeometry(t *testing.T) {
	// Two crossing bars share the same unrotated box, but barely overlap once rotated.
	bar := func(conf float32, angle float64) Candidate {
		c := cand(2, conf, 0.3, 0.45, 0.4, 0.1)
		c.Oriented = &images.OrientedRect{CX: 0.5, CY: 0.5, W: 0.4, H: 0.1, Angle: angle}
		return c
	}
	a, b := bar(0.9, 0), bar(0.8, math.Pi/2)

	require.InDelta(t, 1.0, images.CalculateIoU(a.Box, b.Box), 1e-6)
	assert.InDelta(t, 1.0/7.0, IoU(a, b), 1e-6)
	assert.Len(t, ApplyNMS([]Candidate{a, b}, nil), 2)
}

func TestApplyNMS_OrientedOnWideImage(t *testing.T) {
	// A 2000x1000 photo letterboxed to 1024: scale 0.512, 256 px of padding above and below.
	// The same 100x50 px box is emitted once flat and once as a 50x100 box turned a quarter.
	lb := Letterbox{InputWidth: 1024, InputHeight: 1024, OriginalWidth: 2000, OriginalHeight: 1000}
	anchors := []anchor{
		{cx: 512, cy: 512, w: 51.2, h: 25.6, scores: []float32{0.9, 0, 0}},
		{cx: 512, cy: 512, w: 25.6, h: 51.2, scores: []float32{0.8, 0, 0}, angle: math.Pi / 2},
	}
	got, err := Decode(buildRaw(anchors, 3, true, false), lb,
		DecodeOptions{ClassNames: cacaoClasses, ScoreFloor: 0.01, Encoding: ScoreEncodingProbability})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.InDelta(t, 2.0, got[0].Aspect, 1e-12)
	assert.InDelta(t, 1.0, IoU(got[0], got[1]), 1e-4)
	assert.InDelta(t, 1.0, IoU(got[1], got[0]), 1e-4)

	kept := ApplyNMS(got, nil)
	require.Len(t, kept, 1)
	assert.Equal(t, float32(0.9), kept[0].Confidence)
}

func TestCandidate_BoundsOnWideImage(t *testing.T) {
	// 100x50 px turned a quarter on a 2000x1000 image covers 50x100 px.
	c := cand(0, 0.9, 0.475, 0.475, 0.05, 0.05)
	c.Oriented = &images.OrientedRect{CX: 0.5, CY: 0.5, W: 0.05, H: 0.05, Angle: math.Pi / 2}
	c.Aspect = 2

	b := c.Bounds()
	assert.InDelta(t, 0.4875, b.X, 1e-9)
	assert.InDelta(t, 0.45, b.Y, 1e-9)
	assert.InDelta(t, 0.025, b.W, 1e-9)
	assert.InDelta(t, 0.1, b.H, 1e-9)
}

func TestApplyNMS_Idempotent(t *testing.T) {
	candidates := randomCandidates(rand.New(rand.NewSource(7)), 300)
	config := DefaultNMSConfig()

	once := ApplyNMS(candidates, &config)
	twice := ApplyNMS(once, &config)
	assert.Equal(t, once, twice)
}

func TestApplyNMS_StableTies(t *testing.T) {
	a := cand(0, 0.7, 0.1, 0.1, 0.2, 0.2)
	b := cand(0, 0.7, 0.11, 0.1, 0.2, 0.2)

	kept := ApplyNMS([]Candidate{a, b}, nil)
	require.Len(t, kept, 1)
	assert.Equal(t, a, kept[0])
}

func TestApplyNMS_DoesNotModifyInput(t *testing.T) {
	input := []Candidate{
		cand(0, 0.2, 0.1, 0.1, 0.2, 0.2),
		cand(1, 0.9, 0.5, 0.5, 0.2, 0.2),
	}
	snapshot := append([]Candidate(nil), input...)

	ApplyNMS(input, nil)
	assert.Equal(t, snapshot, input)
}

func TestApplyNMS_Empty(t *testing.T) {
	kept := ApplyNMS(nil, nil)
	assert.NotNil(t, kept)
	assert.Empty(t, kept)
}

func TestApplyNMS_ParallelMatchesSerial(t *testing.T) {
	candidates := randomCandidates(rand.New(rand.NewSource(11)), 2000)

	serial := DefaultNMSConfig()
	parallel := DefaultNMSConfig()
	parallel.NumWorkers = 4

	assert.Equal(t, ApplyNMS(candidates, &serial), ApplyNMS(candidates, &parallel))
}

func randomCandidates(r *rand.Rand, n int) []Candidate {
	out := make([]Candidate, n)
	for i := range out {
		w := 0.02 + r.Float64()*0.2
		h := 0.02 + r.Float64()*0.2
		out[i] = cand(r.Intn(3), r.Float32(), r.Float64()*(1-w), r.Float64()*(1-h), w, h)
	}
	return out
}

func BenchmarkApplyNMS(b *testing.B) {
	for _, n := range []int{100, 1000, 5000} {
		candidates := randomCandidates(rand.New(rand.NewSource(1)), n)
		for _, workers := range []int{1, 4} {
			config := DefaultNMSConfig()
			config.NumWorkers = workers
			b.Run(fmt.Sprintf("n=%d/workers=%d", n, workers), func(b *testing.B) {
				b.ReportAllocs()
				for i := 0; i < b.N; i++ {
					_ = ApplyNMS(candidates, &config)
				}
			})
		}
	}
}
