package main

import (
	"flag"
	"fmt"
	"image"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"volview/internal/models"
	"volview/pkg/annotation"
	"volview/pkg/config"
	"volview/pkg/export"
	"volview/pkg/loader"
	"volview/pkg/logging"
	"volview/pkg/persist"
	"volview/pkg/session"
	"volview/pkg/view"
	"volview/pkg/volume"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "volview.yaml", "Configuration file (YAML or TOML)")
	inputs := flag.String("input", "", "Comma-separated image files or series directories")
	channels := flag.Int("channels", 1, "Number of channels in each series")
	orderName := flag.String("order", "alternating", "Channel order of series files: alternating or blocks")
	lazy := flag.Bool("lazy", false, "Decode series slices on demand")
	stitchTiles := flag.Bool("stitch", false, "Stitch the inputs instead of overlaying them")
	positions := flag.String("positions", "", "Saved stitch positions to apply")
	axisName := flag.String("axis", "z", "Depth axis: x, y or z")
	project := flag.Bool("projection", false, "Show a maximum projection over the view range")
	index := flag.Int("index", -1, "Depth index (default: middle)")
	rangeFile := flag.String("range", "", "Saved view range to apply")
	downsample := flag.Int("downsample", 1, "Plane fetch stride")
	atlasDir := flag.String("atlas", "", "Label series directory of an annotation volume")
	regionsFile := flag.String("regions-file", "", "YAML file mapping region names to labels")
	regions := flag.String("regions", "", "Comma-separated regions to outline")
	output := flag.String("output", "frame.png", "Output image (.png, .tif, .jpg or .bmp)")
	scale := flag.Float64("scale", 1, "Scale factor applied to exported images")
	exportDir := flag.String("export-dir", "", "Export one frame per depth index to this directory")
	reference := flag.String("reference", "", "Register the first input to this file or series")
	threshold := flag.Float64("threshold", 0, "Silhouette threshold for registration (0: slice mean)")
	transformOut := flag.String("transform", "", "Save the estimated transform to this file")
	flag.Parse()

	if *inputs == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := logging.Setup(cfg.Log); err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logging.Shutdown()

	fmt.Println("================================")
	fmt.Println("VOLVIEW - MULTI-CHANNEL VOLUME VIEWER")
	fmt.Println("================================")

	order, err := loader.ParseOrder(*orderName)
	if err != nil {
		fatalf("%v", err)
	}
	opts := loader.Options{Lazy: *lazy || cfg.Loader.Lazy, CacheSlices: cfg.Loader.CacheSlices}

	// Load every input
	startTime := time.Now()
	var vols []*volume.Volume
	for _, in := range strings.Split(*inputs, ",") {
		v, err := load(strings.TrimSpace(in), *channels, order, opts)
		if err != nil {
			fatalf("Failed to load %s: %v", in, err)
		}
		fmt.Printf("Loaded %s\n", v)
		vols = append(vols, v)
	}

	s := session.New(cfg)
	if *stitchTiles {
		w, err := s.OpenStitched(vols...)
		if err != nil {
			fatalf("Stitching failed: %v", err)
		}
		if *positions != "" {
			offsets, err := persist.Load(*positions, persist.ReadPositions)
			if err != nil {
				fatalf("%v", err)
			}
			if err := s.SetTileOffsets(offsets); err != nil {
				fatalf("%v", err)
			}
		}
		fmt.Printf("Stitched %d tiles: %v\n", len(vols), w.Placement)
	} else if _, err := s.OpenWindow(vols...); err != nil {
		fatalf("%v", err)
	}

	// Configure the view
	axis, err := view.ParseDepthAxis(*axisName)
	if err != nil {
		fatalf("%v", err)
	}
	must(s.SetDepthAxis(axis))
	if *project {
		must(s.SetMode(view.Projection))
	}
	if *rangeFile != "" {
		r, err := persist.Load(*rangeFile, persist.ReadRange)
		if err != nil {
			fatalf("%v", err)
		}
		must(s.SetRange(r))
	}
	w := s.ActiveWindow()
	if *index >= 0 {
		p := w.View.Index
		p[w.View.Perm.Depth()] = *index
		must(s.SetIndex(p))
	}
	must(s.SetDownsample(*downsample))

	if *atlasDir != "" {
		if err := loadAtlas(s, *atlasDir, *regionsFile); err != nil {
			fatalf("Failed to load atlas: %v", err)
		}
		if *regions != "" {
			must(s.SetRegions(strings.Split(*regions, ",")))
		}
	}

	// Render the current frame
	raster, err := s.Render(s.Active)
	if err != nil {
		fatalf("Rendering failed: %v", err)
	}
	if err := export.SaveRaster(*output, raster, w.View.Range, *scale); err != nil {
		fatalf("%v", err)
	}
	fmt.Printf("Rendered %s to %s\n", w.View, *output)
	if len(raster.Skipped) > 0 {
		fmt.Printf("- tiles without data at this index: %v\n", raster.Skipped)
	}

	// Export every depth index if requested
	if *exportDir != "" {
		fmt.Printf("\nExporting frames to %s...\n", *exportDir)
		name := strings.TrimSuffix(vols[0].Name, filepath.Ext(vols[0].Name))
		paths, err := export.SaveSequence(*exportDir, name, filepath.Ext(*output), w.View.DepthRange(), *scale,
			func(i int) (image.Image, error) {
				w.View.SetDepthIndex(i)
				r, err := s.Render(s.Active)
				if err != nil {
					return nil, err
				}
				return r.Crop(w.View.Range), nil
			})
		if err != nil {
			fatalf("Export failed: %v", err)
		}
		fmt.Printf("Exported %d frames\n", len(paths))
	}

	// Register to a reference if requested
	if *reference != "" {
		fmt.Println("\nRegistering to reference...")
		ref, err := load(*reference, *channels, order, opts)
		if err != nil {
			fatalf("Failed to load reference: %v", err)
		}
		mov := s.Active
		if _, err := s.OpenWindow(ref); err != nil {
			fatalf("%v", err)
		}
		t, err := s.EstimateAffine(s.Active, mov, *threshold)
		if err != nil {
			fatalf("Registration failed: %v", err)
		}
		if *transformOut != "" {
			if err := persist.Save(*transformOut, func(out io.Writer) error { return persist.WriteTransform(out, t) }); err != nil {
				fatalf("%v", err)
			}
			fmt.Printf("Saved transform to %s\n", *transformOut)
		}
		rw, err := s.ApplyTransform(mov, t)
		if err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("Registered volume: %s\n", rw.Volumes[0])
	}

	fmt.Printf("\nCompleted in %.2f seconds\n", time.Since(startTime).Seconds())
}

func must(err error) {
	if err != nil {
		fatalf("%v", err)
	}
}

// fatalf logs a failure, closes the log file and exits.
func fatalf(format string, args ...interface{}) {
	logging.Errorf(format, args...)
	logging.Shutdown()
	os.Exit(1)
}

// load reads a single image file or an image series directory.
func load(path string, channels int, order loader.Order, opts loader.Options) (*volume.Volume, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return loader.FromFile(path)
	}
	paths, err := loader.ListImages(path)
	if err != nil {
		return nil, err
	}
	return loader.FromSeries(paths, channels, order, opts)
}

// loadAtlas reads a label series and its region table into the session.
func loadAtlas(s *session.Session, dir, regionsFile string) error {
	paths, err := loader.ListImages(dir)
	if err != nil {
		return err
	}
	v, err := loader.FromSeries(paths, 1, loader.Alternating, loader.Options{})
	if err != nil {
		return err
	}
	shape := v.Shape()
	labels := make([]int32, 0, shape.Voxels())
	for z := 0; z < shape.D; z++ {
		p, err := v.Slice(models.PermZ, z, []int{0})
		if err != nil {
			return err
		}
		for _, l := range p[0].Pix {
			labels = append(labels, int32(l))
		}
	}
	atlas, err := annotation.New(shape.Spatial(), labels)
	if err != nil {
		return err
	}
	if regionsFile != "" {
		if err := atlas.LoadRegions(regionsFile); err != nil {
			return err
		}
	}
	s.Atlas = atlas
	fmt.Printf("Loaded atlas %v with %d regions\n", shape, len(atlas.RegionNames()))
	return nil
}
