package osmsource

import (
	"context"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"runtime"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/cheggaaa/pb/v3/termutil"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/royalcat/chorographer/geoparser"
	"golang.org/x/exp/mmap"
)

type Config struct {
	// Threads is the number of parallel block decoders per scan.
	Threads int
	// Progress draws a progress bar on stderr for every pass.
	Progress bool
}

func ConfigDefault() Config {
	return Config{
		Threads:  runtime.GOMAXPROCS(-1),
		Progress: false,
	}
}

// File is a geoparser.Source over an OSM PBF file. Each stream call opens
// an independent section reader, so passes may run concurrently.
type File struct {
	r      io.ReaderAt
	size   int64
	cfg    Config
	closer io.Closer
	log    *slog.Logger
}

var _ geoparser.Source = (*File)(nil)

func New(r io.ReaderAt, size int64, cfg Config) *File {
	if cfg.Threads <= 0 {
		cfg.Threads = runtime.GOMAXPROCS(-1)
	}
	return &File{
		r:    r,
		size: size,
		cfg:  cfg,
		log:  slog.Default().With("component", "osmsource"),
	}
}

// Open memory maps the PBF file at path.
func Open(path string, cfg Config) (*File, error) {
	m, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open osm file: %w", err)
	}
	f := New(m, int64(m.Len()), cfg)
	f.closer = m
	f.log = f.log.With("input", path)
	return f, nil
}

func (f *File) Close() error {
	if f.closer == nil {
		return nil
	}
	return f.closer.Close()
}

func (f *File) Points(ctx context.Context) iter.Seq2[geoparser.RawPoint, error] {
	return func(yield func(geoparser.RawPoint, error) bool) {
		err := f.scan(ctx, "points", func(s *osmpbf.Scanner) {
			s.SkipWays = true
			s.SkipRelations = true
		}, func(o osm.Object) bool {
			node, ok := o.(*osm.Node)
			if !ok {
				return true
			}
			return yield(rawPoint(node), nil)
		})
		if err != nil {
			yield(geoparser.RawPoint{}, err)
		}
	}
}

func (f *File) Ways(ctx context.Context) iter.Seq2[geoparser.RawWay, error] {
	return func(yield func(geoparser.RawWay, error) bool) {
		err := f.scan(ctx, "ways", func(s *osmpbf.Scanner) {
			s.SkipNodes = true
			s.SkipRelations = true
		}, func(o osm.Object) bool {
			way, ok := o.(*osm.Way)
			if !ok {
				return true
			}
			return yield(rawWay(way), nil)
		})
		if err != nil {
			yield(geoparser.RawWay{}, err)
		}
	}
}

func (f *File) Relations(ctx context.Context) iter.Seq2[geoparser.RawRelation, error] {
	return func(yield func(geoparser.RawRelation, error) bool) {
		err := f.scan(ctx, "relations", func(s *osmpbf.Scanner) {
			s.SkipNodes = true
			s.SkipWays = true
		}, func(o osm.Object) bool {
			rel, ok := o.(*osm.Relation)
			if !ok {
				return true
			}
			return yield(rawRelation(rel), nil)
		})
		if err != nil {
			yield(geoparser.RawRelation{}, err)
		}
	}
}

func (f *File) scan(ctx context.Context, name string, setup func(*osmpbf.Scanner), it func(osm.Object) bool) error {
	// The third parameter is the number of parallel decoders to use.
	scanner := osmpbf.New(ctx, io.NewSectionReader(f.r, 0, f.size), f.cfg.Threads)
	defer scanner.Close()
	setup(scanner)

	start := time.Now()
	var bar *pb.ProgressBar
	if f.cfg.Progress {
		bar = startProgress(f.size, "scanning "+name)
		defer bar.Finish()
	}

	for scanner.Scan() {
		if bar != nil {
			bar.SetCurrent(scanner.FullyScannedBytes())
		}
		if !it(scanner.Object()) {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan %s: %w", name, err)
	}

	f.log.DebugContext(ctx, "pass finished", "pass", name, "elapsed", time.Since(start))
	return nil
}

func startProgress(size int64, name string) *pb.ProgressBar {
	bar := pb.Start64(size)
	bar.Set("prefix", name)
	bar.Set(pb.Bytes, true)
	bar.SetRefreshRate(time.Second * 5)
	if w, err := termutil.TerminalWidth(); w == 0 || err != nil {
		bar.SetTemplateString(`{{with string . "prefix"}}{{.}} {{end}}{{counters . }} {{bar . }} {{percent . }} {{speed . }} {{rtime . "ETA %s"}}{{with string . "suffix"}} {{.}}{{end}}` + "\n")
	}
	return bar
}
