// Package structure implements the native-PDF structure detector: it reads
// AcroForm widgets, drawn rectangles, and form XObjects directly from the
// PDF's object graph via pdfcpu, without rasterizing the page. Grounded on
// the teacher's forms_pdfcpu.go, generalized from FormField extraction to
// bbox.FieldDetection candidates.
package structure

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/docfields/hybriddetect/internal/bbox"
	"github.com/docfields/hybriddetect/internal/classify"
	"github.com/docfields/hybriddetect/internal/pdferr"
	"github.com/docfields/hybriddetect/internal/pdftext"
)

// Geometry bounds for drawn rectangles and form XObjects (spec §4.3).
const (
	minWidthRatio   = 0.02
	minHeightRatio  = 0.005
	maxHeightRatio  = 0.15
	minAspectRatio  = 0.1
	maxAspectRatio  = 50.0
	rectConfidence  = 0.75
	xObjConfidence  = 0.70
	widgetConfidence = 0.95

	// intraSourceIoU is the dedup threshold applied within this detector
	// before candidates are handed to the ensemble merger (§4.3.4).
	intraSourceIoU = 0.5

	// labelBandFraction is how far left/above of a field's bbox the label
	// inference scans for nearby text (§4.3.3).
	labelBandFraction = 0.15

	// minDetectionSize discards a converted bbox whose width or height
	// drops below this fraction of the page (§4.3.1).
	minDetectionSize = 0.001
)

// Detector extracts field candidates from a PDF's native object structure.
type Detector struct{}

// New constructs a structure Detector.
func New() *Detector {
	return &Detector{}
}

// Detect opens path and returns field candidates across every page, sourced
// from AcroForm widgets, drawn rectangle annotations, and form XObjects.
// Per-page failures in label inference degrade to candidates with generic
// numbered labels rather than aborting the page.
func (d *Detector) Detect(path string) ([]bbox.FieldDetection, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, pdferr.Wrap(pdferr.KindInvalidInput, "open pdf for structure detection", err)
	}
	defer file.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(file, conf)
	if err != nil {
		return nil, pdferr.Wrap(pdferr.KindDetectorFailure, "read pdf context", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, pdferr.Wrap(pdferr.KindDetectorFailure, "ensure page count", err)
	}

	var all []bbox.FieldDetection
	for pageNum := 1; pageNum <= ctx.PageCount; pageNum++ {
		pageIndex := pageNum - 1
		pageDict, _, _, err := ctx.PageDict(pageNum, false)
		if err != nil || pageDict == nil {
			continue
		}

		pageWidth, pageHeight := pageDimensions(ctx, pageDict)
		if pageWidth <= 0 || pageHeight <= 0 {
			continue
		}

		// inferLabel works in page fractions, so the raw PDF-point text
		// blocks are normalized by the page size pdftext reports.
		rawBlocks, textWidth, textHeight, err := pdftext.PageBlocks(path, pageIndex)
		var blocks []pdftext.Block
		if err == nil && textWidth > 0 && textHeight > 0 {
			for _, b := range rawBlocks {
				blocks = append(blocks, pdftext.Block{
					Text: b.Text,
					XMin: b.XMin / textWidth, YMin: b.YMin / textHeight,
					XMax: b.XMax / textWidth, YMax: b.YMax / textHeight,
				})
			}
		}

		var pageDetections []bbox.FieldDetection
		pageDetections = append(pageDetections, d.annotationCandidates(ctx, pageDict, pageIndex, pageWidth, pageHeight, blocks)...)
		pageDetections = append(pageDetections, d.xObjectCandidates(ctx, pageDict, pageIndex, pageWidth, pageHeight)...)

		all = append(all, dedup(pageDetections)...)
	}

	return all, nil
}

// pageDimensions reads the page's effective MediaBox in points.
func pageDimensions(ctx *model.Context, pageDict types.Dict) (width, height float64) {
	mediaBoxObj, found := pageDict.Find("MediaBox")
	if !found {
		return 612, 792
	}
	arr, err := ctx.DereferenceArray(mediaBoxObj)
	if err != nil || len(arr) != 4 {
		return 612, 792
	}
	coords := make([]float64, 4)
	for i, v := range arr {
		n, err := ctx.DereferenceNumber(v)
		if err != nil {
			return 612, 792
		}
		coords[i] = n
	}
	w := coords[2] - coords[0]
	h := coords[3] - coords[1]
	if w <= 0 || h <= 0 {
		return 612, 792
	}
	return w, h
}

// annotationCandidates walks the page's Annots array, producing a widget
// candidate for each Widget annotation and a drawn-rectangle candidate for
// each Square annotation that passes the geometry filter.
func (d *Detector) annotationCandidates(ctx *model.Context, pageDict types.Dict, pageIndex int, pageWidth, pageHeight float64, blocks []pdftext.Block) []bbox.FieldDetection {
	annotsObj, found := pageDict.Find("Annots")
	if !found {
		return nil
	}
	annotsArray, err := ctx.DereferenceArray(annotsObj)
	if err != nil {
		return nil
	}

	var out []bbox.FieldDetection
	widgetSeq := 0
	rectSeq := 0
	for _, annotObj := range annotsArray {
		annotDict, err := ctx.DereferenceDict(annotObj)
		if err != nil || annotDict == nil {
			continue
		}
		subtypeObj, found := annotDict.Find("Subtype")
		if !found {
			continue
		}
		subtype, err := ctx.DereferenceName(subtypeObj, model.V10, nil)
		if err != nil {
			continue
		}

		box, ok := d.rectBBox(ctx, annotDict, pageWidth, pageHeight)
		if !ok {
			continue
		}

		switch subtype {
		case "Widget":
			widgetSeq++
			if fd, ok := d.widgetCandidate(ctx, annotDict, pageIndex, box, blocks, widgetSeq); ok {
				out = append(out, fd)
			}
		case "Square":
			rectSeq++
			if fd, ok := rectangleCandidate(pageIndex, box, blocks, rectSeq); ok {
				out = append(out, fd)
			}
		}
	}
	return out
}

// rectBBox dereferences annotDict's Rect and converts it to a normalized
// bbox. pdfcpu's Rect array is already native PDF bottom-left origin, the
// same convention bbox.BBox uses, so no vertical flip is applied here; a
// flip is only needed when the source library has already reprojected the
// rect into a top-left convention (as the reference Python implementation's
// PyMuPDF does).
func (d *Detector) rectBBox(ctx *model.Context, dict types.Dict, pageWidth, pageHeight float64) (bbox.BBox, bool) {
	rectObj, found := dict.Find("Rect")
	if !found {
		return bbox.BBox{}, false
	}
	rectArray, err := ctx.DereferenceArray(rectObj)
	if err != nil || len(rectArray) != 4 {
		return bbox.BBox{}, false
	}
	coords := make([]float64, 4)
	for i, v := range rectArray {
		n, err := ctx.DereferenceNumber(v)
		if err != nil {
			return bbox.BBox{}, false
		}
		coords[i] = n
	}
	xMin, yMin, xMax, yMax := coords[0], coords[1], coords[2], coords[3]
	if xMax < xMin {
		xMin, xMax = xMax, xMin
	}
	if yMax < yMin {
		yMin, yMax = yMax, yMin
	}

	box, err := bbox.FromRect(xMin/pageWidth, yMin/pageHeight, xMax/pageWidth, yMax/pageHeight)
	if err != nil {
		box = bbox.BBox{X: xMin / pageWidth, Y: yMin / pageHeight, Width: (xMax - xMin) / pageWidth, Height: (yMax - yMin) / pageHeight}.Clamp()
	}
	if box.Width < minDetectionSize || box.Height < minDetectionSize {
		return bbox.BBox{}, false
	}
	return box, true
}

// widgetCandidate builds a field detection from a Widget annotation dict,
// following inherited FT/T up the Parent chain the way the teacher's
// recursiveFieldTypeSearch does, capped the same depth.
func (d *Detector) widgetCandidate(ctx *model.Context, widgetDict types.Dict, pageIndex int, box bbox.BBox, blocks []pdftext.Block, seq int) (bbox.FieldDetection, bool) {
	fieldType := fieldTypeFromDict(ctx, widgetDict, 0)
	if fieldType == "" {
		widthRatio, heightRatio := box.Width, box.Height
		fieldType = string(classify.ByVectorGeometry(widthRatio, heightRatio))
	}

	label := fieldNameFromDict(ctx, widgetDict, 0)
	if label == "" {
		label = inferLabel(box, blocks)
	}
	if label == "" {
		// No field name and no inferable nearby text: fall back to a
		// generic numbered label rather than dropping the candidate, so
		// the merger's generic-label inheritance (merge.go) can still
		// replace it with a real GEOMETRIC/VISION label on overlap.
		label = fmt.Sprintf("Widget %d", seq)
	}

	fd, err := bbox.NewDetection(pageIndex, box, bbox.FieldType(fieldType), label, widgetConfidence, bbox.SourceStructure, label)
	if err != nil {
		return bbox.FieldDetection{}, false
	}
	return fd, true
}

const maxInheritanceDepth = 5

// fieldTypeFromDict maps the PDF FT entry (Btn/Tx/Ch/Sig) to a FieldType,
// walking Parent for inherited FT, mirroring extractFieldTypeWithInheritance.
func fieldTypeFromDict(ctx *model.Context, dict types.Dict, depth int) string {
	if depth > maxInheritanceDepth {
		return ""
	}
	if ftObj, found := dict.Find("FT"); found {
		ft, err := ctx.DereferenceName(ftObj, model.V10, nil)
		if err == nil {
			return mapFieldType(ctx, dict, ft)
		}
	}
	if parentObj, found := dict.Find("Parent"); found {
		if parentDict, err := ctx.DereferenceDict(parentObj); err == nil && parentDict != nil {
			return fieldTypeFromDict(ctx, parentDict, depth+1)
		}
	}
	return ""
}

func mapFieldType(ctx *model.Context, dict types.Dict, ft string) string {
	switch ft {
	case "Btn":
		flags := fieldFlags(ctx, dict)
		if flags&(1<<16) != 0 { // bit 17: pushbutton
			return string(bbox.FieldTypeUnknown)
		}
		return string(bbox.FieldTypeCheckbox) // plain checkbox or radio (bit 16)
	case "Tx":
		if isMultiline(fieldFlags(ctx, dict)) {
			return string(bbox.FieldTypeMultiline)
		}
		return string(bbox.FieldTypeText)
	case "Ch":
		return string(bbox.FieldTypeText)
	case "Sig":
		return string(bbox.FieldTypeSignature)
	default:
		return ""
	}
}

// isMultiline reports bit 13 of a text field's Ff flags (§4.3 pass 1).
func isMultiline(flags int64) bool {
	return flags&(1<<12) != 0
}

func fieldFlags(ctx *model.Context, dict types.Dict) int64 {
	flagsObj, found := dict.Find("Ff")
	if !found {
		return 0
	}
	flags, err := ctx.DereferenceInteger(flagsObj)
	if err != nil || flags == nil {
		return 0
	}
	return int64(*flags)
}

// fieldNameFromDict reads the partial field name (T), walking Parent when
// absent on the widget itself.
func fieldNameFromDict(ctx *model.Context, dict types.Dict, depth int) string {
	if depth > maxInheritanceDepth {
		return ""
	}
	if tObj, found := dict.Find("T"); found {
		if name, err := ctx.DereferenceStringOrHexLiteral(tObj, model.V10, nil); err == nil && strings.TrimSpace(name) != "" {
			return bbox.CleanLabel(humanizeFieldName(name))
		}
	}
	if parentObj, found := dict.Find("Parent"); found {
		if parentDict, err := ctx.DereferenceDict(parentObj); err == nil && parentDict != nil {
			return fieldNameFromDict(ctx, parentDict, depth+1)
		}
	}
	return ""
}

// humanizeFieldName turns a raw PDF field name like "name_field" or
// "applicant.ssn" into a label-like string.
func humanizeFieldName(name string) string {
	replaced := strings.NewReplacer("_", " ", ".", " ", "-", " ").Replace(name)
	return strings.TrimSpace(replaced)
}

// rectangleCandidate builds a drawn-rectangle detection from a Square
// annotation that already passed the rect geometry filter.
func rectangleCandidate(pageIndex int, box bbox.BBox, blocks []pdftext.Block, seq int) (bbox.FieldDetection, bool) {
	if !passesGeometryFilter(box) {
		return bbox.FieldDetection{}, false
	}
	label := inferLabel(box, blocks)
	if label == "" {
		// Mirror the widget fallback: a drawn rectangle with no nearby
		// label text still gets reported, as a numbered placeholder.
		label = fmt.Sprintf("Field %d", seq)
	}
	fieldType := classify.ByVectorGeometry(box.Width, box.Height)
	fd, err := bbox.NewDetection(pageIndex, box, fieldType, label, rectConfidence, bbox.SourceStructure, label)
	if err != nil {
		return bbox.FieldDetection{}, false
	}
	return fd, true
}

// xObjectCandidates traverses the page's Resources/XObject dictionary,
// treating each Form XObject's own BBox entry as a page-relative candidate
// rectangle (§4.3's fourth pass). This is an approximation: without
// composing the content stream's placement matrix we cannot recover the
// XObject's true position when it is scaled or translated by a `cm`
// operator, so only XObjects whose BBox already sits within page bounds
// after the geometry filter are kept.
func (d *Detector) xObjectCandidates(ctx *model.Context, pageDict types.Dict, pageIndex int, pageWidth, pageHeight float64) []bbox.FieldDetection {
	resourcesObj, found := pageDict.Find("Resources")
	if !found {
		return nil
	}
	resourcesDict, err := ctx.DereferenceDict(resourcesObj)
	if err != nil || resourcesDict == nil {
		return nil
	}
	xObjectObj, found := resourcesDict.Find("XObject")
	if !found {
		return nil
	}
	xObjectDict, err := ctx.DereferenceDict(xObjectObj)
	if err != nil || xObjectDict == nil {
		return nil
	}

	var out []bbox.FieldDetection
	seq := 0
	for name, ref := range xObjectDict {
		sd, _, err := ctx.DereferenceStreamDict(ref)
		if err != nil || sd == nil {
			continue
		}
		if subtype, found := sd.Dict.Find("Subtype"); !found || !isFormSubtype(ctx, subtype) {
			continue
		}
		bboxObj, found := sd.Dict.Find("BBox")
		if !found {
			continue
		}
		arr, err := ctx.DereferenceArray(bboxObj)
		if err != nil || len(arr) != 4 {
			continue
		}
		coords := make([]float64, 4)
		ok := true
		for i, v := range arr {
			n, err := ctx.DereferenceNumber(v)
			if err != nil {
				ok = false
				break
			}
			coords[i] = n
		}
		if !ok {
			continue
		}
		box, err := bbox.FromRect(coords[0]/pageWidth, coords[1]/pageHeight, coords[2]/pageWidth, coords[3]/pageHeight)
		if err != nil {
			continue
		}
		if !passesGeometryFilter(box) {
			continue
		}
		seq++
		fieldType := classify.ByVectorGeometry(box.Width, box.Height)
		// A numeric-suffixed label (not the raw resource key, e.g. "Fm0")
		// so it matches the merger's generic-label regex and can be
		// overridden by a non-generic GEOMETRIC/VISION label on overlap.
		label := fmt.Sprintf("XObject Field %d", seq)
		fd, err := bbox.NewDetection(pageIndex, box, fieldType, label, xObjConfidence, bbox.SourceStructure, name)
		if err != nil {
			continue
		}
		out = append(out, fd)
	}
	return out
}

func isFormSubtype(ctx *model.Context, obj types.Object) bool {
	name, err := ctx.DereferenceName(obj, model.V10, nil)
	return err == nil && name == "Form"
}

// passesGeometryFilter applies the §4.3 width/height/aspect bounds shared
// by the drawn-rectangle and XObject passes.
func passesGeometryFilter(box bbox.BBox) bool {
	if box.Width < minWidthRatio {
		return false
	}
	if box.Height < minHeightRatio || box.Height > maxHeightRatio {
		return false
	}
	aspect := box.AspectRatio()
	return aspect >= minAspectRatio && aspect <= maxAspectRatio
}

// inferLabel scans for the nearest text block to the left of, then above,
// the field's bbox within a 15% page-width/height band (§4.3.3).
func inferLabel(box bbox.BBox, blocks []pdftext.Block) string {
	if len(blocks) == 0 {
		return ""
	}

	var best string
	var bestDist = -1.0

	for _, blk := range blocks {
		text := strings.TrimSpace(blk.Text)
		if usefulCharCount(text) < 2 {
			continue
		}
		blkCenterY := (blk.YMin + blk.YMax) / 2
		fieldCenterY := box.Y + box.Height/2

		// Left-of: same row band, text ends at or before the field's left edge.
		if blk.XMax <= box.X+0.01 {
			rowBand := box.Height/2 + labelBandFraction
			if absFloat(blkCenterY-fieldCenterY) <= rowBand {
				dist := box.X - blk.XMax
				if dist <= labelBandFraction && (bestDist < 0 || dist < bestDist) {
					bestDist = dist
					best = text
				}
			}
		}
	}
	if best != "" {
		return bbox.CleanLabel(best)
	}

	// Above: same column band, text bottom at or below the field's top edge.
	fieldTop := box.Y + box.Height
	for _, blk := range blocks {
		text := strings.TrimSpace(blk.Text)
		if usefulCharCount(text) < 2 {
			continue
		}
		if blk.YMin >= fieldTop-0.01 {
			blkCenterX := (blk.XMin + blk.XMax) / 2
			fieldCenterX := box.X + box.Width/2
			colBand := box.Width/2 + labelBandFraction
			if absFloat(blkCenterX-fieldCenterX) <= colBand {
				dist := blk.YMin - fieldTop
				if dist <= labelBandFraction && (bestDist < 0 || dist < bestDist) {
					bestDist = dist
					best = text
				}
			}
		}
	}
	return bbox.CleanLabel(best)
}

func usefulCharCount(s string) int {
	n := 0
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' {
			n++
		}
	}
	return n
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// dedup sorts by confidence descending and drops any candidate whose IoU
// with an already-kept candidate on the same page exceeds intraSourceIoU
// (§4.3.4).
func dedup(detections []bbox.FieldDetection) []bbox.FieldDetection {
	sorted := make([]bbox.FieldDetection, len(detections))
	copy(sorted, detections)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	var kept []bbox.FieldDetection
	for _, cand := range sorted {
		dup := false
		for _, k := range kept {
			if cand.BBox.IoU(k.BBox) > intraSourceIoU {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, cand)
		}
	}
	return kept
}
