// Package pipeline sequences the structure, geometric, and vision
// detectors, the ensemble merger, and the text-overlap filter into a single
// document-level scan, isolating failures in any one stage the way the
// teacher's engine isolates per-element extraction failures (spec §4.8).
package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/docfields/hybriddetect/internal/bbox"
	"github.com/docfields/hybriddetect/internal/config"
	"github.com/docfields/hybriddetect/internal/detect/geometric"
	"github.com/docfields/hybriddetect/internal/detect/structure"
	"github.com/docfields/hybriddetect/internal/detect/vision"
	"github.com/docfields/hybriddetect/internal/merge"
	"github.com/docfields/hybriddetect/internal/overlap"
	"github.com/docfields/hybriddetect/internal/render"
)

// Pipeline runs the full hybrid detection flow for one document.
type Pipeline struct {
	cfg       *config.Config
	log       *zap.SugaredLogger
	structure *structure.Detector
	geometric *geometric.Detector
	renderer  *render.Renderer
	vision    *vision.Detector
}

// New wires up a Pipeline from cfg. The page renderer and, when configured,
// the vision detector are constructed eagerly so their setup errors surface
// at startup rather than mid-scan.
func New(cfg *config.Config, log *zap.SugaredLogger) (*Pipeline, error) {
	renderer, err := render.New(cfg.RenderDPI, log)
	if err != nil {
		return nil, err
	}

	visionDetector, err := vision.New(cfg, log)
	if err != nil {
		renderer.Close()
		return nil, err
	}

	return &Pipeline{
		cfg:       cfg,
		log:       log,
		structure: structure.New(),
		geometric: geometric.New(),
		renderer:  renderer,
		vision:    visionDetector,
	}, nil
}

// Close releases the pipeline's renderer and vision detector resources.
func (p *Pipeline) Close() error {
	var firstErr error
	if err := p.renderer.Close(); err != nil {
		firstErr = err
	}
	if err := p.vision.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Run executes the full pipeline against path and returns the merged,
// filtered field list. No single detector's failure aborts the scan; each
// is wrapped so its error degrades to an empty list and is logged.
func (p *Pipeline) Run(ctx context.Context, path string) []bbox.FieldDetection {
	structureFields := p.runStructure(path)
	geometricFields := p.runGeometric(path)
	visionFields := p.runVision(ctx, path)

	merged := merge.MergeWithThreshold(p.cfg.IoUThreshold, structureFields, geometricFields, visionFields)
	return overlap.Filter(path, merged, p.cfg.TextOverlapThreshold)
}

func (p *Pipeline) runStructure(path string) []bbox.FieldDetection {
	fields, err := p.structure.Detect(path)
	if err != nil {
		p.warn("structure detector failed", err)
		return nil
	}
	return fields
}

func (p *Pipeline) runGeometric(path string) []bbox.FieldDetection {
	pages, err := p.renderer.RenderPages(path)
	if err != nil {
		p.warn("render pages for geometric detector failed", err)
		return nil
	}

	var all []bbox.FieldDetection
	for _, page := range pages {
		all = append(all, p.detectPageSafely(page)...)
	}
	return all
}

// detectPageSafely isolates a single page's geometric detection from the
// rest; a panic (e.g. a malformed raster) degrades that page to an empty
// list instead of aborting the document.
func (p *Pipeline) detectPageSafely(page render.Page) (fields []bbox.FieldDetection) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Warnw("geometric detector panicked on page", "page_index", page.Index, "panic", r)
			fields = nil
		}
	}()
	return p.geometric.DetectPage(page)
}

func (p *Pipeline) runVision(ctx context.Context, path string) []bbox.FieldDetection {
	if p.vision == nil {
		return nil
	}
	return p.vision.Detect(ctx, path)
}

func (p *Pipeline) warn(msg string, err error) {
	if p.log == nil {
		return
	}
	p.log.Warnw(msg, "error", err)
}
