// Package overlap implements the text-overlap filter (spec §4.7): it drops
// field candidates that sit mostly on top of existing printed text, using
// the same positioned text-block extraction the structure detector's label
// inference relies on (internal/pdftext).
package overlap

import (
	"github.com/docfields/hybriddetect/internal/bbox"
	"github.com/docfields/hybriddetect/internal/pdftext"
)

// DefaultThreshold is the overlap ratio at or above which a field is dropped.
const DefaultThreshold = 0.30

const minRegionSize = 0.001

// Filter removes detections whose bbox overlaps existing text on their page
// by at least threshold (clamped to [0, 1]). If text extraction fails for a
// page, it fails open and returns the input fields for that page
// unfiltered.
func Filter(path string, detections []bbox.FieldDetection, threshold float64) []bbox.FieldDetection {
	threshold = clamp01(threshold)
	if len(detections) == 0 {
		return detections
	}

	textByPage := map[int][]bbox.BBox{}
	failedPages := map[int]bool{}

	var out []bbox.FieldDetection
	for _, d := range detections {
		regions, ok := textByPage[d.PageIndex]
		if !ok && !failedPages[d.PageIndex] {
			regions, ok = pageTextRegions(path, d.PageIndex)
			if !ok {
				failedPages[d.PageIndex] = true
			} else {
				textByPage[d.PageIndex] = regions
			}
		}

		if failedPages[d.PageIndex] {
			out = append(out, d)
			continue
		}

		if overlapRatio(d.BBox, regions) < threshold {
			out = append(out, d)
		}
	}
	return out
}

func pageTextRegions(path string, pageIndex int) ([]bbox.BBox, bool) {
	blocks, pageWidth, pageHeight, err := pdftext.PageBlocks(path, pageIndex)
	if err != nil || pageWidth <= 0 || pageHeight <= 0 {
		return nil, false
	}

	var regions []bbox.BBox
	for _, b := range blocks {
		box, err := bbox.FromRect(b.XMin/pageWidth, b.YMin/pageHeight, b.XMax/pageWidth, b.YMax/pageHeight)
		if err != nil {
			continue
		}
		if box.Width < minRegionSize || box.Height < minRegionSize {
			continue
		}
		regions = append(regions, box)
	}
	return regions, true
}

func overlapRatio(field bbox.BBox, textRegions []bbox.BBox) float64 {
	area := field.Area()
	if area <= 0 {
		return 0
	}
	var covered float64
	for _, t := range textRegions {
		covered += field.IntersectionArea(t)
	}
	ratio := covered / area
	if ratio > 1 {
		ratio = 1
	}
	return ratio
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
