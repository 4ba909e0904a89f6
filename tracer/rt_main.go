package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"

	raytrace "github.com/gekko3d/raytrace"
	"github.com/gekko3d/raytrace/tracer/rt/app"
	"github.com/gekko3d/raytrace/tracer/rt/core"
	"github.com/gekko3d/raytrace/tracer/rt/gpu"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	presetPath := flag.String("preset", "", "Scene preset (.json, .yaml or .toml); empty uses the built-in box")
	width := flag.Int("width", raytrace.DefaultWidth, "Window width")
	height := flag.Int("height", raytrace.DefaultHeight, "Window height")
	debug := flag.Bool("debug", false, "Enable debug logging and profiler output")
	tile := flag.String("tile", "", "Fallback workgroup tile, e.g. 8x8")
	flag.Parse()

	logger := core.NewDefaultLogger("raytrace", *debug)
	if err := run(logger, *presetPath, *width, *height, *tile); err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}

func run(logger core.Logger, presetPath string, width, height int, tile string) error {
	preset := raytrace.DefaultPreset()
	if presetPath != "" {
		var err error
		if preset, err = raytrace.LoadPreset(presetPath); err != nil {
			return err
		}
	}
	if tile != "" {
		if _, err := fmt.Sscanf(tile, "%dx%d", &preset.Tile[0], &preset.Tile[1]); err != nil || preset.Tile[0] == 0 || preset.Tile[1] == 0 {
			return fmt.Errorf("invalid -tile %q: want WxH", tile)
		}
	}

	window, err := raytrace.NewWindow(width, height, raytrace.DefaultTitle+" - "+preset.Name)
	if err != nil {
		return err
	}
	defer window.Destroy()

	cfg := gpu.DefaultConfig()
	cfg.Tile = preset.Tile
	a := app.New(gpu.NewResourceSet(logger, cfg), preset, raytrace.NewAssetServer(logger), logger)
	defer a.Close()

	fw, fh := window.FramebufferSize()
	if err := a.Init(context.Background(), window, fw, fh); err != nil {
		return err
	}

	var in raytrace.Input
	clock := raytrace.NewClock()
	for !window.ShouldClose() {
		window.Poll(&in)
		if in.EscapePressed {
			window.Close()
			continue
		}
		samples, err := a.Frame(&in, clock.Elapsed())
		if err != nil {
			return err
		}
		if clock.Tick() {
			window.SetTitleSuffix(fmt.Sprintf("| %.0f FPS | %d spp", clock.FPS, samples))
			if logger.DebugEnabled() {
				logger.Debugf("frame stats\n%s", a.Stats)
			}
		}
	}
	return nil
}
