// Package geometric implements the raster-geometry field detector: it takes
// each page raster (rendered by internal/render), thresholds it to a binary
// mask, finds connected components of box-like runs, and classifies the
// survivors by shape. Grounded on the teacher's image preprocessing style in
// disintegration/imaging (Grayscale/Resize), generalized from OCR
// pre-processing to field-shape detection.
package geometric

import (
	"image"

	"github.com/disintegration/imaging"

	"github.com/docfields/hybriddetect/internal/bbox"
	"github.com/docfields/hybriddetect/internal/classify"
	"github.com/docfields/hybriddetect/internal/render"
)

// Geometry bounds, expressed in page-fraction units (spec §4.4).
const (
	minRectWidthRatio  = 0.05
	minRectHeightRatio = 0.005
	maxRectHeightRatio = 0.08

	minLineWidthRatio  = 0.10
	maxLineHeightRatio = 0.01
	minLineAspectRatio = 8.0

	lineConfidence = 0.85
	baseConfidence = 0.6
	maxConfidence  = 0.9

	// thresholdOffset darkens the adaptive threshold relative to the page
	// mean, so that only strokes/borders (not paper grain) survive.
	thresholdOffset = 28

	// minComponentPixels discards noise specks before they reach the
	// geometry filter.
	minComponentPixels = 12
)

// Detector finds field-shaped regions in a page raster.
type Detector struct{}

// New constructs a geometric Detector.
func New() *Detector {
	return &Detector{}
}

// DetectPage returns field candidates found in a single rendered page.
func (d *Detector) DetectPage(page render.Page) []bbox.FieldDetection {
	if page.WidthPx <= 1 || page.HeightPx <= 1 {
		return nil
	}

	gray := imaging.Grayscale(page.Image)
	mask := threshold(gray)
	components := connectedComponents(mask)

	var out []bbox.FieldDetection
	counters := map[bbox.FieldType]int{}

	for _, c := range components {
		if c.pixelCount < minComponentPixels {
			continue
		}
		wPx := float64(c.maxX - c.minX + 1)
		hPx := float64(c.maxY - c.minY + 1)

		box, err := bbox.FromPixels(float64(c.minX), float64(c.minY), wPx, hPx, float64(page.WidthPx), float64(page.HeightPx))
		if err != nil {
			continue
		}

		conf, ok := classifyPass(box, wPx, hPx, float64(c.pixelCount))
		if !ok {
			continue
		}

		fieldType := classify.ByRasterGeometry(box.Width, box.Height)
		counters[fieldType]++
		label := genericLabel(fieldType, counters[fieldType])

		fd, err := bbox.NewDetection(page.Index, box, fieldType, label, conf, bbox.SourceGeometric, "")
		if err != nil {
			continue
		}
		out = append(out, fd)
	}
	return out
}

// classifyPass decides whether a component survives the rectangle pass or
// the horizontal-line pass, returning its confidence when it does.
func classifyPass(box bbox.BBox, wPx, hPx, pixelCount float64) (float64, bool) {
	aspect := box.AspectRatio()

	if box.Width >= minLineWidthRatio && box.Height <= maxLineHeightRatio && aspect >= minLineAspectRatio {
		return lineConfidence, true
	}

	if box.Width >= minRectWidthRatio && box.Height >= minRectHeightRatio && box.Height <= maxRectHeightRatio {
		boundingArea := wPx * hPx
		fill := 0.0
		if boundingArea > 0 {
			fill = pixelCount / boundingArea
		}
		conf := baseConfidence + 0.3*fill
		if conf > maxConfidence {
			conf = maxConfidence
		}
		return conf, true
	}
	return 0, false
}

// Detect runs DetectPage over every rendered page.
func (d *Detector) Detect(pages []render.Page) []bbox.FieldDetection {
	var all []bbox.FieldDetection
	for _, p := range pages {
		all = append(all, d.DetectPage(p)...)
	}
	return all
}

func genericLabel(ft bbox.FieldType, n int) string {
	switch ft {
	case bbox.FieldTypeCheckbox:
		return fmtLabel("Checkbox", n)
	case bbox.FieldTypeSignature:
		return fmtLabel("Signature", n)
	default:
		return fmtLabel("Text Field", n)
	}
}

func fmtLabel(noun string, n int) string {
	return noun + " " + itoa(n)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// threshold converts a grayscale image to a binary mask where true marks a
// dark (ink/border) pixel, using a single global mean-offset threshold. This
// is a coarser stand-in for true adaptive (local-window) thresholding, an
// acceptable approximation since form field borders are high-contrast
// strokes against a near-white background.
func threshold(gray *image.NRGBA) [][]bool {
	bounds := gray.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	var sum, count int
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sum += int(gray.NRGBAAt(bounds.Min.X+x, bounds.Min.Y+y).R)
			count++
		}
	}
	mean := 255
	if count > 0 {
		mean = sum / count
	}
	cutoff := mean - thresholdOffset
	if cutoff < 0 {
		cutoff = 0
	}

	mask := make([][]bool, h)
	for y := 0; y < h; y++ {
		mask[y] = make([]bool, w)
		for x := 0; x < w; x++ {
			v := int(gray.NRGBAAt(bounds.Min.X+x, bounds.Min.Y+y).R)
			mask[y][x] = v <= cutoff
		}
	}
	return erode(dilate(mask))
}

// dilate followed by erode is a single-pass 4-neighborhood close operation
// that fills small gaps in drawn borders; isolated pixels survive it.
func dilate(mask [][]bool) [][]bool {
	h := len(mask)
	if h == 0 {
		return mask
	}
	w := len(mask[0])
	out := make([][]bool, h)
	for y := 0; y < h; y++ {
		out[y] = make([]bool, w)
		for x := 0; x < w; x++ {
			if mask[y][x] {
				out[y][x] = true
				continue
			}
			out[y][x] = neighborSet(mask, x, y, w, h)
		}
	}
	return out
}

func erode(mask [][]bool) [][]bool {
	h := len(mask)
	if h == 0 {
		return mask
	}
	w := len(mask[0])
	out := make([][]bool, h)
	for y := 0; y < h; y++ {
		out[y] = make([]bool, w)
		for x := 0; x < w; x++ {
			if !mask[y][x] {
				continue
			}
			out[y][x] = allNeighborsSet(mask, x, y, w, h)
		}
	}
	return out
}

func neighborSet(mask [][]bool, x, y, w, h int) bool {
	for _, d := range [][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
		nx, ny := x+d[0], y+d[1]
		if nx >= 0 && nx < w && ny >= 0 && ny < h && mask[ny][nx] {
			return true
		}
	}
	return false
}

func allNeighborsSet(mask [][]bool, x, y, w, h int) bool {
	for _, d := range [][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
		nx, ny := x+d[0], y+d[1]
		if nx < 0 || nx >= w || ny < 0 || ny >= h || !mask[ny][nx] {
			return false
		}
	}
	return true
}

// component is a connected run of set pixels and its bounding box.
type component struct {
	minX, minY, maxX, maxY int
	pixelCount              int
}

// connectedComponents labels 4-connected regions of mask via iterative BFS,
// avoiding recursion depth issues on large pages.
func connectedComponents(mask [][]bool) []component {
	h := len(mask)
	if h == 0 {
		return nil
	}
	w := len(mask[0])
	visited := make([][]bool, h)
	for y := range visited {
		visited[y] = make([]bool, w)
	}

	var components []component
	queue := make([][2]int, 0, 1024)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !mask[y][x] || visited[y][x] {
				continue
			}
			c := component{minX: x, minY: y, maxX: x, maxY: y}
			queue = queue[:0]
			queue = append(queue, [2]int{x, y})
			visited[y][x] = true

			for len(queue) > 0 {
				p := queue[len(queue)-1]
				queue = queue[:len(queue)-1]
				px, py := p[0], p[1]
				c.pixelCount++
				if px < c.minX {
					c.minX = px
				}
				if px > c.maxX {
					c.maxX = px
				}
				if py < c.minY {
					c.minY = py
				}
				if py > c.maxY {
					c.maxY = py
				}

				for _, d := range [][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
					nx, ny := px+d[0], py+d[1]
					if nx >= 0 && nx < w && ny >= 0 && ny < h && mask[ny][nx] && !visited[ny][nx] {
						visited[ny][nx] = true
						queue = append(queue, [2]int{nx, ny})
					}
				}
			}
			components = append(components, c)
		}
	}
	return components
}
