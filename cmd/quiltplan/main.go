package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/holoquilt/internal/camera"
	"github.com/coreman2200/holoquilt/internal/device"
	"github.com/coreman2200/holoquilt/internal/layout"
	"github.com/coreman2200/holoquilt/internal/pages"
	"github.com/coreman2200/holoquilt/internal/sequence"
	"github.com/coreman2200/holoquilt/internal/tiling"
)

type viewRow struct {
	Index     int             `json:"index"`
	Page      int             `json:"page"`
	Local     int             `json:"local"`
	PageRect  image.Rectangle `json:"pageRect"`
	Placement image.Rectangle `json:"placement"`
	OffsetX   float64         `json:"offsetX"`
	ProjOffX  float64         `json:"projOffsetX"`
}

type planOut struct {
	Preset  tiling.Preset  `json:"preset"`
	Quality tiling.Quality `json:"quality"`
	Aspect  float64        `json:"aspect"`
	Order   layout.Order   `json:"order"`
	Pages   []pages.Page   `json:"pages"`
	Views   []viewRow      `json:"views"`
}

func main() {
	var (
		presetName = flag.String("preset", "automatic", "tiling preset")
		serial     = flag.String("serial", device.DefaultCalibration().Serial, "device serial for automatic")
		orderName  = flag.String("order", layout.DefaultOrder.String(), "view scan order")
		custom     = flag.String("custom", "", "custom tiling as tilesX,tilesY,quiltW,quiltH")
		displayAR  = flag.Float64("display-aspect", device.DefaultCalibration().Aspect, "display aspect used when the quality has none")
		maxViews   = flag.Int("max-views", pages.DefaultMaxViewsPerPage, "views per page")
		maxDim     = flag.Int("max-dim", pages.DefaultMaxTextureDimension, "max texture dimension")
		asJSON     = flag.Bool("json", false, "print JSON")
		tourPath   = flag.String("tour", "", "dry-run a tour program (.yaml or .json) instead")
		fps        = flag.Int("fps", 30, "tour simulation frames per second")
	)
	flag.Parse()
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	if *tourPath != "" {
		if err := dryRun(*tourPath, *fps); err != nil {
			log.Fatal().Err(err).Msg("tour")
		}
		return
	}

	p, err := tiling.ParsePreset(*presetName)
	if err != nil {
		log.Fatal().Err(err).Msg("bad -preset")
	}
	o, err := layout.ParseOrder(*orderName)
	if err != nil {
		log.Fatal().Err(err).Msg("bad -order")
	}
	cq, _ := tiling.DefaultTable().For(tiling.Custom)
	if *custom != "" {
		if _, err := fmt.Sscanf(*custom, "%d,%d,%d,%d", &cq.TilesX, &cq.TilesY, &cq.QuiltW, &cq.QuiltH); err != nil {
			log.Fatal().Err(err).Msg("bad -custom")
		}
		cq.Setup()
		p = tiling.Custom
	}

	res := tiling.NewResolver(nil)
	q, _, err := res.Resolve(p, cq, *serial)
	if err != nil {
		log.Fatal().Err(err).Msg("resolve")
	}
	ps, err := pages.Build(q.NumTiles(), *maxViews, q.TileSizeX, q.TileSizeY, *maxDim)
	if err != nil {
		log.Fatal().Err(err).Msg("pages")
	}

	rig := camera.DefaultRig()
	rig.Aspect = q.CameraAspect(*displayAR)
	grid := layout.GridFor(q)
	out := planOut{Preset: res.Effective(p, *serial), Quality: q, Aspect: rig.Aspect, Order: o, Pages: ps}
	dist := rig.CameraDistance()
	for i := 0; i < q.NumTiles(); i++ {
		pi, local, ok := pages.Locate(ps, i)
		if !ok {
			log.Fatal().Int("view", i).Msg("view not in any page")
		}
		off, proj := camera.Params(i, q.NumTiles(), device.DefaultCalibration().ViewCone, dist, rig.Size, rig.FOV, rig.Aspect)
		out.Views = append(out.Views, viewRow{
			Index: i, Page: pi, Local: local,
			PageRect:  ps[pi].ViewRects[local],
			Placement: grid.Placement(i, o),
			OffsetX:   off,
			ProjOffX:  float64(proj.At(2, 0)),
		})
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			log.Fatal().Err(err).Msg("encode")
		}
		return
	}

	fmt.Printf("%s (%s): %dx%d tiles of %dx%d in %dx%d, padding %d, aspect %.4f, order %s\n",
		out.Preset, q.Name, q.TilesX, q.TilesY, q.TileSizeX, q.TileSizeY, q.QuiltW, q.QuiltH, q.PaddingY(), rig.Aspect, o)
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PAGE\tVIEWS\tGRID\tSIZE")
	for i, pg := range ps {
		fmt.Fprintf(tw, "%d\t%d-%d\t%dx%d\t%dx%d\n", i, pg.FirstView, pg.LastView, pg.ViewColumns, pg.ViewRows, pg.Width, pg.Height)
	}
	tw.Flush()
	fmt.Println()
	fmt.Fprintln(tw, "VIEW\tPAGE\tPAGE RECT\tQUILT RECT\tOFFSET X\tPROJ OFF X")
	for _, v := range out.Views {
		fmt.Fprintf(tw, "%d\t%d/%d\t%v\t%v\t%.2f\t%.4f\n", v.Index, v.Page, v.Local, v.PageRect, v.Placement, v.OffsetX, v.ProjOffX)
	}
	tw.Flush()
}

// dryRun plays a tour against logging hooks at fps until it ends.
func dryRun(path string, fps int) error {
	prog, err := sequence.LoadProgram(path)
	if err != nil {
		return err
	}
	if prog.Loop {
		log.Warn().Msg("looping tour; playing one pass")
		prog.Loop = false
	}
	var t float64
	h := sequence.Hooks{
		SetOverride:   func(p tiling.Preset) { fmt.Printf("[%7.3fs] override %s\n", t, p) },
		ClearOverride: func() { fmt.Printf("[%7.3fs] clear override\n", t) },
		SetOrder:      func(o layout.Order) { fmt.Printf("[%7.3fs] order %s\n", t, o) },
		SetParam:      func(string, float64) {},
	}
	player := sequence.NewPlayer(h)
	if err := player.Load(prog); err != nil {
		return err
	}
	player.Start()
	dt := 1 / float64(max(1, fps))
	for player.State == sequence.Running {
		t += dt
		player.Tick(dt)
	}
	fmt.Printf("Done at t=%.3fs\n", t)
	return nil
}
