package ui

import (
	"math"
	"time"

	"github.com/litescript/ls-orrery/internal/ephem"
)

// Scrub increments, in frames.
const (
	fineStep   = 0.1
	coarseStep = 1.0
)

// Timeline is the scrubber state. In index mode it addresses a fractional
// frame inside the fetched window; in date mode it holds a free-running
// instant that may leave the window.
type Timeline struct {
	window ephem.Window
	frames int

	frame    float64
	date     time.Time
	dateMode bool
	playing  bool
	speed    float64 // frames per animation tick
}

// NewTimeline returns a paused timeline at frame 0.
func NewTimeline() Timeline {
	return Timeline{speed: fineStep}
}

// SetWindow installs a new window and frame count, keeping the current
// frame where it still fits.
func (t Timeline) SetWindow(w ephem.Window, frames int) Timeline {
	t.window = w
	t.frames = max(frames, 0)
	t.frame = t.clampFrame(t.frame)
	if t.date.IsZero() {
		t.date = w.Start
	}
	return t
}

// Step moves by df frames. Index mode clamps to the window; date mode
// moves the date by df window steps without bound.
func (t Timeline) Step(df float64) Timeline {
	if math.IsNaN(df) || math.IsInf(df, 0) {
		return t
	}
	if t.dateMode {
		t.date = t.date.Add(time.Duration(df * float64(t.step())))
		return t
	}
	t.frame = t.clampFrame(t.frame + df)
	return t
}

// Advance moves one animation tick forward when playing. Index mode loops
// back to the first frame after the last.
func (t Timeline) Advance() Timeline {
	if !t.playing {
		return t
	}
	if !t.dateMode && t.frames > 0 && t.frame >= float64(t.frames-1) {
		t.frame = 0
		return t
	}
	return t.Step(t.speed)
}

// Rewind returns to the first frame, or to the window start in date mode.
func (t Timeline) Rewind() Timeline {
	t.frame = 0
	if t.dateMode && !t.window.Start.IsZero() {
		t.date = t.window.Start
	}
	return t
}

// TogglePlay starts or pauses playback.
func (t Timeline) TogglePlay() Timeline {
	t.playing = !t.playing
	return t
}

// ToggleDateMode switches between index and date addressing. Entering date
// mode starts from the instant the current frame maps to, or now when no
// window is known. Leaving it snaps back to the nearest frame.
func (t Timeline) ToggleDateMode(now time.Time) Timeline {
	if !t.dateMode {
		t.date = t.FrameTime()
		if t.date.IsZero() {
			t.date = now.UTC()
		}
		t.dateMode = true
		return t
	}

	t.dateMode = false
	if t.frames > 0 && t.window.Step > 0 {
		f := float64(t.date.Sub(t.window.Start)) / float64(t.window.Step)
		t.frame = t.clampFrame(f)
	}
	return t
}

// FrameTime is the instant the current frame maps to, zero without a window.
func (t Timeline) FrameTime() time.Time {
	if t.window.Start.IsZero() {
		return time.Time{}
	}
	return t.window.Start.Add(time.Duration(t.frame * float64(t.step())))
}

// Time is the instant being displayed in either mode.
func (t Timeline) Time() time.Time {
	if t.dateMode {
		return t.date
	}
	return t.FrameTime()
}

// Frame returns the fractional frame index.
func (t Timeline) Frame() float64 { return t.frame }

// Frames returns the number of frames in the window.
func (t Timeline) Frames() int { return t.frames }

// Window returns the addressed window.
func (t Timeline) Window() ephem.Window { return t.window }

// DateMode reports whether the timeline is in date mode.
func (t Timeline) DateMode() bool { return t.dateMode }

// Playing reports whether playback is running.
func (t Timeline) Playing() bool { return t.playing }

// Outside reports whether the displayed instant lies outside the window.
func (t Timeline) Outside() bool {
	if !t.dateMode || t.window.Start.IsZero() {
		return false
	}
	return t.date.Before(t.window.Start) || t.date.After(t.window.Stop)
}

func (t Timeline) step() time.Duration {
	if t.window.Step > 0 {
		return t.window.Step
	}
	return time.Hour
}

func (t Timeline) clampFrame(f float64) float64 {
	if t.frames <= 1 || math.IsNaN(f) {
		return 0
	}
	return math.Max(0, math.Min(float64(t.frames-1), f))
}
