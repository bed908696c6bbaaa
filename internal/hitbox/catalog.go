package hitbox

import (
	"sort"

	"github.com/pkg/errors"
)

// MaxBoxesPerList caps boxes of one kind on one animation frame.
const MaxBoxesPerList = 8

var (
	ErrTooManyBoxes = errors.New("too many boxes in one list")
	ErrBadBox       = errors.New("box has non-positive size")
	ErrBadFrame     = errors.New("frame outside animation")
)

// FrameBoxes holds every box active on one animation frame, grouped by kind.
type FrameBoxes [kindCount][]Hitbox

// Animation is a named sequence of frames. Looping animations wrap the
// state frame; one-shot animations hold their last frame.
type Animation struct {
	Name   string
	Length int
	Loop   bool
	frames []FrameBoxes
}

// Frame returns the boxes on a 1-indexed frame, nil when out of range.
func (a *Animation) Frame(frame int) *FrameBoxes {
	if frame < 1 || frame > len(a.frames) {
		return nil
	}
	return &a.frames[frame-1]
}

// Catalog maps animation names to frame boxes. It is read-only once built
// and may be shared between characters using the same definition.
type Catalog struct {
	animations map[string]*Animation
}

// Get returns the boxes of kind on a 1-indexed animation frame. Missing
// animations or frames yield an empty list.
func (c *Catalog) Get(animation string, frame int, kind Kind) []Hitbox {
	if c == nil || kind >= kindCount {
		return nil
	}
	a, ok := c.animations[animation]
	if !ok {
		return nil
	}
	fb := a.Frame(frame)
	if fb == nil {
		return nil
	}
	return fb[kind]
}

// Animation returns an animation by name.
func (c *Catalog) Animation(name string) (*Animation, bool) {
	if c == nil {
		return nil, false
	}
	a, ok := c.animations[name]
	return a, ok
}

// Names lists all animation names in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.animations))
	for n := range c.animations {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// FrameFor maps a 1-indexed state frame onto an animation frame.
func (c *Catalog) FrameFor(animation string, stateFrame int) int {
	a, ok := c.Animation(animation)
	if !ok || a.Length == 0 {
		return stateFrame
	}
	if stateFrame < 1 {
		return 1
	}
	if a.Loop {
		return (stateFrame-1)%a.Length + 1
	}
	if stateFrame > a.Length {
		return a.Length
	}
	return stateFrame
}

// Builder accumulates animations before producing an immutable Catalog.
type Builder struct {
	animations map[string]*Animation
	order      []string
	err        error
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{animations: make(map[string]*Animation)}
}

// Animation declares or replaces an animation.
func (b *Builder) Animation(name string, length int, loop bool) *Builder {
	if length < 1 {
		length = 1
	}
	if _, exists := b.animations[name]; !exists {
		b.order = append(b.order, name)
	}
	b.animations[name] = &Animation{
		Name:   name,
		Length: length,
		Loop:   loop,
		frames: make([]FrameBoxes, length),
	}
	return b
}

// Add places box on frames [from, to] of an existing animation.
func (b *Builder) Add(animation string, from, to int, kind Kind, box Hitbox) *Builder {
	if b.err != nil {
		return b
	}
	a, ok := b.animations[animation]
	if !ok {
		b.err = errors.Errorf("animation %q not declared", animation)
		return b
	}
	if box.Width <= 0 || box.Height <= 0 {
		b.err = errors.Wrapf(ErrBadBox, "%s %s", animation, kind)
		return b
	}
	if from < 1 || to > a.Length || from > to {
		b.err = errors.Wrapf(ErrBadFrame, "%s frames %d-%d of %d", animation, from, to, a.Length)
		return b
	}
	for f := from; f <= to; f++ {
		list := a.frames[f-1][kind]
		if len(list) >= MaxBoxesPerList {
			b.err = errors.Wrapf(ErrTooManyBoxes, "%s frame %d %s", animation, f, kind)
			return b
		}
		a.frames[f-1][kind] = append(list, box)
	}
	return b
}

// Build validates and freezes the catalog. Attack boxes on each frame are
// ordered by descending priority.
func (b *Builder) Build() (*Catalog, error) {
	if b.err != nil {
		return nil, b.err
	}
	out := &Catalog{animations: make(map[string]*Animation, len(b.animations))}
	for _, name := range b.order {
		a := b.animations[name]
		for i := range a.frames {
			for _, k := range []Kind{Attack, Projectile} {
				boxes := a.frames[i][k]
				sort.SliceStable(boxes, func(x, y int) bool {
					return boxes[x].Priority > boxes[y].Priority
				})
			}
		}
		out.animations[name] = a
	}
	return out, nil
}
