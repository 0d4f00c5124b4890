package overlay

import (
	"math"

	"github.com/MeKo-Tech/ucrop/internal/geometry"
)

// Handle identifies the part of the window a freeform drag grabs.
type Handle int

const (
	HandleNone Handle = iota
	HandleTopLeft
	HandleTop
	HandleTopRight
	HandleRight
	HandleBottomRight
	HandleBottom
	HandleBottomLeft
	HandleLeft
	HandleMove
)

var handleNames = map[Handle]string{
	HandleNone:        "none",
	HandleTopLeft:     "top-left",
	HandleTop:         "top",
	HandleTopRight:    "top-right",
	HandleRight:       "right",
	HandleBottomRight: "bottom-right",
	HandleBottom:      "bottom",
	HandleBottomLeft:  "bottom-left",
	HandleLeft:        "left",
	HandleMove:        "move",
}

func (h Handle) String() string {
	if n, ok := handleNames[h]; ok {
		return n
	}
	return "unknown"
}

// ParseHandle returns the handle named s, or HandleNone.
func ParseHandle(s string) Handle {
	for h, n := range handleNames {
		if n == s {
			return h
		}
	}
	return HandleNone
}

type edges struct{ left, top, right, bottom bool }

func (h Handle) edges() edges {
	switch h {
	case HandleTopLeft:
		return edges{left: true, top: true}
	case HandleTop:
		return edges{top: true}
	case HandleTopRight:
		return edges{top: true, right: true}
	case HandleRight:
		return edges{right: true}
	case HandleBottomRight:
		return edges{right: true, bottom: true}
	case HandleBottom:
		return edges{bottom: true}
	case HandleBottomLeft:
		return edges{bottom: true, left: true}
	case HandleLeft:
		return edges{left: true}
	}
	return edges{}
}

// CanDrag reports whether the window currently accepts freeform drags.
func (w *Window) CanDrag() bool {
	return w.ratio.Mode == ModeFreeform && w.cfg.FreestyleEnabled
}

// HitTest returns the handle under p, preferring corners over edges and edges
// over the interior. threshold is the touch radius in viewport units.
func (w *Window) HitTest(p geometry.Point, threshold float64) Handle {
	r := w.rect
	near := func(a, b float64) bool { return math.Abs(a-b) <= threshold }
	inX := p.X >= r.MinX-threshold && p.X <= r.MaxX+threshold
	inY := p.Y >= r.MinY-threshold && p.Y <= r.MaxY+threshold

	switch {
	case near(p.X, r.MinX) && near(p.Y, r.MinY):
		return HandleTopLeft
	case near(p.X, r.MaxX) && near(p.Y, r.MinY):
		return HandleTopRight
	case near(p.X, r.MaxX) && near(p.Y, r.MaxY):
		return HandleBottomRight
	case near(p.X, r.MinX) && near(p.Y, r.MaxY):
		return HandleBottomLeft
	case near(p.Y, r.MinY) && inX:
		return HandleTop
	case near(p.X, r.MaxX) && inY:
		return HandleRight
	case near(p.Y, r.MaxY) && inX:
		return HandleBottom
	case near(p.X, r.MinX) && inY:
		return HandleLeft
	case p.X > r.MinX && p.X < r.MaxX && p.Y > r.MinY && p.Y < r.MaxY:
		return HandleMove
	}
	return HandleNone
}

// Drag moves the edges grabbed by h by delta. Each edge moves only if the
// result keeps the minimum size and stays inside imageBox; otherwise that edge
// is left where it is. HandleMove translates the whole window per axis under
// the same containment rule. It reports whether the rectangle changed.
func (w *Window) Drag(h Handle, delta geometry.Point, imageBox geometry.Box) bool {
	if !w.CanDrag() || h == HandleNone {
		return false
	}
	next := w.rect
	if h == HandleMove {
		next = moveAxis(next, delta, imageBox)
	} else {
		e := h.edges()
		minSize := w.cfg.MinSize
		if e.left {
			if x := next.MinX + delta.X; x >= imageBox.MinX && next.MaxX-x >= minSize {
				next.MinX = x
			}
		}
		if e.right {
			if x := next.MaxX + delta.X; x <= imageBox.MaxX && x-next.MinX >= minSize {
				next.MaxX = x
			}
		}
		if e.top {
			if y := next.MinY + delta.Y; y >= imageBox.MinY && next.MaxY-y >= minSize {
				next.MinY = y
			}
		}
		if e.bottom {
			if y := next.MaxY + delta.Y; y <= imageBox.MaxY && y-next.MinY >= minSize {
				next.MaxY = y
			}
		}
	}
	if next == w.rect {
		return false
	}
	w.rect = next
	w.emit(EventRectUpdated)
	return true
}

func moveAxis(b geometry.Box, delta geometry.Point, imageBox geometry.Box) geometry.Box {
	if lo, hi := b.MinX+delta.X, b.MaxX+delta.X; lo >= imageBox.MinX && hi <= imageBox.MaxX {
		b.MinX, b.MaxX = lo, hi
	}
	if lo, hi := b.MinY+delta.Y, b.MaxY+delta.Y; lo >= imageBox.MinY && hi <= imageBox.MaxY {
		b.MinY, b.MaxY = lo, hi
	}
	return b
}
