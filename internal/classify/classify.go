// Package classify implements the geometric field-type classification
// shared by the structure and geometric detectors (spec §4.3.2/§4.4),
// in the same small-pure-function style as the teacher's
// intelligence/classifier.go rule checks.
package classify

import "github.com/docfields/hybriddetect/internal/bbox"

// ByVectorGeometry classifies a candidate extracted from PDF vector
// structure (widgets, drawn rectangles, XObjects) using the §4.3.2
// thresholds.
func ByVectorGeometry(widthRatio, heightRatio float64) bbox.FieldType {
	aspect := aspectRatio(widthRatio, heightRatio)
	switch {
	case widthRatio < 0.03 && heightRatio < 0.03 && aspect >= 0.5 && aspect <= 2.0:
		return bbox.FieldTypeCheckbox
	case aspect >= 4.0 && heightRatio <= 0.05:
		return bbox.FieldTypeSignature
	default:
		return bbox.FieldTypeText
	}
}

// ByRasterGeometry classifies a candidate extracted from a page raster
// (geometric detector), which uses stricter signature thresholds than
// the vector variant (§4.3.2's "4.4 raster variant").
func ByRasterGeometry(widthRatio, heightRatio float64) bbox.FieldType {
	aspect := aspectRatio(widthRatio, heightRatio)
	switch {
	case widthRatio < 0.03 && heightRatio < 0.03 && aspect >= 0.5 && aspect <= 2.0:
		return bbox.FieldTypeCheckbox
	case aspect >= 8.0 && heightRatio <= 0.02:
		return bbox.FieldTypeSignature
	default:
		return bbox.FieldTypeText
	}
}

func aspectRatio(widthRatio, heightRatio float64) float64 {
	if heightRatio == 0 {
		return 0
	}
	return widthRatio / heightRatio
}
