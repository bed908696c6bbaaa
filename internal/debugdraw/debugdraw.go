// Package debugdraw renders a character's collision boxes for one
// animation frame. It backs the hitbox overlay endpoint and the
// hitboxdump tool; nothing in the simulation depends on it.
package debugdraw

import (
	"fmt"
	"image/color"

	"github.com/fogleman/gg"
	"github.com/pkg/errors"

	"third-strike/internal/chardef"
	"third-strike/internal/hitbox"
)

var (
	ErrUnknownAnimation = errors.New("unknown animation")
	ErrFrameRange       = errors.New("frame outside animation")
)

// Options controls the canvas. Boxes are drawn in world units times Scale,
// with the character's feet at (OriginX, OriginY).
type Options struct {
	Width, Height    int
	Scale            float64
	OriginX, OriginY float64
	Caption          bool
}

// DefaultOptions fits every shoto move at 2x.
func DefaultOptions() Options {
	return Options{
		Width:   400,
		Height:  300,
		Scale:   2,
		OriginX: 120,
		OriginY: 270,
		Caption: true,
	}
}

// Box colors by kind. Fills are translucent so overlaps stay readable.
var kindColors = map[hitbox.Kind]color.RGBA{
	hitbox.Body:       {40, 200, 80, 255},
	hitbox.Hand:       {60, 140, 255, 255},
	hitbox.Grab:       {240, 200, 40, 255},
	hitbox.Attack:     {235, 40, 40, 255},
	hitbox.Projectile: {255, 130, 0, 255},
}

// Hurtboxes first so attack boxes land on top.
var drawOrder = []hitbox.Kind{hitbox.Body, hitbox.Hand, hitbox.Grab, hitbox.Attack, hitbox.Projectile}

var (
	backgroundColor = color.RGBA{18, 18, 30, 255}
	gridColor       = color.RGBA{34, 34, 52, 255}
	floorColor      = color.RGBA{120, 120, 140, 255}
	textColor       = color.RGBA{230, 230, 240, 255}
)

// Render draws one 1-indexed frame of an animation. Move names are
// animations, as are stance names such as "standing".
func Render(c *chardef.Character, animation string, frame int, opts Options) (*gg.Context, error) {
	anim, ok := c.Catalog.Animation(animation)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownAnimation, "%s/%s", c.Name, animation)
	}
	if frame < 1 || frame > anim.Length {
		return nil, errors.Wrapf(ErrFrameRange, "%s/%s frame %d of %d", c.Name, animation, frame, anim.Length)
	}

	dc := gg.NewContext(opts.Width, opts.Height)
	drawBackground(dc, opts)

	boxes := anim.Frame(frame)
	for _, kind := range drawOrder {
		for _, h := range boxes[kind] {
			drawBox(dc, opts, hitbox.Resolve(h, 0, 0, 1), kindColors[kind])
		}
	}

	move, isMove := c.Move(animation)
	if isMove && move.Projectile != nil && frame == move.Window.FirstActive() {
		drawBox(dc, opts, hitbox.Resolve(move.Projectile.Box, 0, 0, 1), kindColors[hitbox.Projectile])
	}

	// Feet marker
	dc.SetColor(textColor)
	dc.DrawCircle(opts.OriginX, opts.OriginY, 3)
	dc.Fill()

	if opts.Caption {
		label := fmt.Sprintf("%s %s %d/%d", c.Name, animation, frame, anim.Length)
		if isMove {
			label += " " + phaseName(move.Window.PhaseAt(frame))
		}
		dc.SetColor(textColor)
		dc.DrawString(label, 8, 16)
	}

	return dc, nil
}

// RenderAll draws every frame of an animation in order.
func RenderAll(c *chardef.Character, animation string, opts Options) ([]*gg.Context, error) {
	anim, ok := c.Catalog.Animation(animation)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownAnimation, "%s/%s", c.Name, animation)
	}
	frames := make([]*gg.Context, 0, anim.Length)
	for f := 1; f <= anim.Length; f++ {
		dc, err := Render(c, animation, f, opts)
		if err != nil {
			return nil, err
		}
		frames = append(frames, dc)
	}
	return frames, nil
}

func drawBackground(dc *gg.Context, opts Options) {
	w, h := float64(opts.Width), float64(opts.Height)
	dc.SetColor(backgroundColor)
	dc.DrawRectangle(0, 0, w, h)
	dc.Fill()

	// 10 world units per cell
	step := 10 * opts.Scale
	dc.SetColor(gridColor)
	dc.SetLineWidth(1)
	for x := opts.OriginX; x < w; x += step {
		dc.DrawLine(x, 0, x, h)
	}
	for x := opts.OriginX - step; x > 0; x -= step {
		dc.DrawLine(x, 0, x, h)
	}
	for y := opts.OriginY; y > 0; y -= step {
		dc.DrawLine(0, y, w, y)
	}
	dc.Stroke()

	dc.SetColor(floorColor)
	dc.SetLineWidth(2)
	dc.DrawLine(0, opts.OriginY, w, opts.OriginY)
	dc.Stroke()
}

func drawBox(dc *gg.Context, opts Options, box hitbox.AABB, c color.RGBA) {
	x := opts.OriginX + box.Left*opts.Scale
	y := opts.OriginY + box.Top*opts.Scale
	w := (box.Right - box.Left) * opts.Scale
	h := (box.Bottom - box.Top) * opts.Scale

	dc.SetColor(color.RGBA{c.R, c.G, c.B, 90})
	dc.DrawRectangle(x, y, w, h)
	dc.Fill()

	dc.SetColor(c)
	dc.SetLineWidth(1.5)
	dc.DrawRectangle(x, y, w, h)
	dc.Stroke()
}

func phaseName(p chardef.Phase) string {
	switch p {
	case chardef.PhaseStartup:
		return "startup"
	case chardef.PhaseActive:
		return "active"
	case chardef.PhaseRecovery:
		return "recovery"
	default:
		return "done"
	}
}
