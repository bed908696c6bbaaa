// Command hitboxdump renders the hitbox overlay of character animations to
// PNG files, one per frame, for checking definition files by eye.
//
//	go run ./cmd/hitboxdump -char ryu -move st_mp -out frames
//	go run ./cmd/hitboxdump -dir ./characters -char ken -scale 3
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"third-strike/internal/chardef"
	"third-strike/internal/config"
	"third-strike/internal/debugdraw"
	"third-strike/internal/logger"
)

func main() {
	var (
		char  = flag.String("char", "ryu", "character to render")
		move  = flag.String("move", "", "move to render (default: every move)")
		out   = flag.String("out", "hitboxes", "output directory")
		dir   = flag.String("dir", "", "character definition directory (default: embedded)")
		scale = flag.Float64("scale", 2, "pixels per world unit")
		level = flag.String("log", "info", "log level")
	)
	flag.Parse()

	log := logger.New(config.LogConfig{Level: *level, Format: "text"})
	if err := run(*char, *move, *out, *dir, *scale, log); err != nil {
		log.WithError(err).Fatal("hitbox dump failed")
	}
}

func run(charName, moveName, out, dir string, scale float64, log logrus.FieldLogger) error {
	lib, err := load(dir)
	if err != nil {
		return err
	}
	c, ok := lib.Get(charName)
	if !ok {
		return errors.Errorf("unknown character %q (have %v)", charName, lib.Names())
	}

	var animations []string
	if moveName != "" {
		m, ok := c.Move(moveName)
		if !ok {
			return errors.Errorf("%s has no move %q", charName, moveName)
		}
		animations = append(animations, m.Animation())
	} else {
		for _, m := range c.Moves() {
			animations = append(animations, m.Animation())
		}
	}

	opts := debugdraw.DefaultOptions()
	opts.Scale = scale
	opts.Width = int(200 * scale)
	opts.Height = int(150 * scale)
	opts.OriginX = 60 * scale
	opts.OriginY = 135 * scale

	target := filepath.Join(out, c.Name)
	if err := os.MkdirAll(target, 0o755); err != nil {
		return errors.Wrap(err, "create output directory")
	}

	total := 0
	for _, anim := range animations {
		frames, err := debugdraw.RenderAll(c, anim, opts)
		if err != nil {
			return err
		}
		for i, dc := range frames {
			path := filepath.Join(target, fmt.Sprintf("%s_%02d.png", anim, i+1))
			if err := dc.SavePNG(path); err != nil {
				return errors.Wrapf(err, "write %s", path)
			}
		}
		total += len(frames)
		log.WithFields(logrus.Fields{"animation": anim, "frames": len(frames)}).Debug("rendered")
	}

	log.WithFields(logrus.Fields{
		"character":  c.Name,
		"animations": len(animations),
		"frames":     total,
		"dir":        target,
	}).Info("hitbox frames written")
	return nil
}

func load(dir string) (*chardef.Library, error) {
	if dir == "" {
		return chardef.LoadEmbedded()
	}
	return chardef.LoadDir(dir)
}
