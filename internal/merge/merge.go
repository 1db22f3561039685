// Package merge implements the ensemble merger: it combines the structure,
// geometric, and vision detectors' candidate lists into one deduplicated,
// sorted list per spec §4.6, resolving overlaps by source priority and a
// small set of label/type conflict-resolution rules.
package merge

import (
	"regexp"
	"sort"
	"strings"

	"github.com/docfields/hybriddetect/internal/bbox"
)

// DefaultIoUThreshold is the overlap fraction above which two candidates on
// the same page are considered the same field.
const DefaultIoUThreshold = 0.30

// PriorityTable assigns a merge rank to each DetectionSource; lower wins.
// The zero value is the default STRUCTURE > GEOMETRIC > VISION > ACROFORM
// > MERGED table from bbox.DetectionSource.Priority.
type PriorityTable map[bbox.DetectionSource]int

// Priority returns s's rank, falling back to bbox.DetectionSource.Priority
// when t is nil or doesn't mention s.
func (t PriorityTable) Priority(s bbox.DetectionSource) int {
	if t == nil {
		return s.Priority()
	}
	if p, ok := t[s]; ok {
		return p
	}
	return s.Priority()
}

// acroformFirst ranks ACROFORM highest, used by MergeWithAcroform.
var acroformFirst = PriorityTable{
	bbox.SourceAcroForm:  0,
	bbox.SourceStructure: 1,
	bbox.SourceGeometric: 2,
	bbox.SourceVision:    3,
	bbox.SourceMerged:    4,
}

var genericLabelPattern = regexp.MustCompile(`^(Field|Text Field|Checkbox|Signature|Widget|XObject Field) \d+$`)

// IsGenericLabel reports whether label is an auto-numbered placeholder
// rather than a real field name inferred from the document.
func IsGenericLabel(label string) bool {
	trimmed := strings.TrimSpace(label)
	if trimmed == "" {
		return true
	}
	return genericLabelPattern.MatchString(trimmed)
}

// Merge runs the default (STRUCTURE-first) ensemble merge over lists,
// concatenating and deduplicating them per spec §4.6.
func Merge(lists ...[]bbox.FieldDetection) []bbox.FieldDetection {
	return mergeWithPriority(nil, DefaultIoUThreshold, lists...)
}

// MergeWithThreshold is Merge with an explicit IoU threshold.
func MergeWithThreshold(iouThreshold float64, lists ...[]bbox.FieldDetection) []bbox.FieldDetection {
	return mergeWithPriority(nil, iouThreshold, lists...)
}

// MergeWithAcroform runs the same algorithm but treats ACROFORM detections
// as the highest priority, so overlaps resolve in favor of the AcroForm
// reader whenever it produced a candidate.
func MergeWithAcroform(acroformList, otherList []bbox.FieldDetection) []bbox.FieldDetection {
	return mergeWithPriority(acroformFirst, DefaultIoUThreshold, acroformList, otherList)
}

func mergeWithPriority(priorities PriorityTable, iouThreshold float64, lists ...[]bbox.FieldDetection) []bbox.FieldDetection {
	var all []bbox.FieldDetection
	for _, l := range lists {
		all = append(all, l...)
	}
	if len(all) == 0 {
		return nil
	}

	sort.SliceStable(all, func(i, j int) bool {
		return priorities.Priority(all[i].Source) < priorities.Priority(all[j].Source)
	})

	var kept []bbox.FieldDetection
	for _, cand := range all {
		idx := findOverlap(kept, cand, iouThreshold)
		if idx < 0 {
			kept = append(kept, cand)
			continue
		}
		kept[idx] = resolve(kept[idx], cand)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		a, b := kept[i], kept[j]
		if a.PageIndex != b.PageIndex {
			return a.PageIndex < b.PageIndex
		}
		aTop := a.BBox.Y + a.BBox.Height
		bTop := b.BBox.Y + b.BBox.Height
		if aTop != bTop {
			return aTop > bTop
		}
		return a.BBox.X < b.BBox.X
	})
	return kept
}

// findOverlap returns the index of the first kept detection on the same
// page as cand with iou > threshold, or -1 when none overlaps.
func findOverlap(kept []bbox.FieldDetection, cand bbox.FieldDetection, threshold float64) int {
	for i, k := range kept {
		if k.PageIndex != cand.PageIndex {
			continue
		}
		if k.BBox.IoU(cand.BBox) > threshold {
			return i
		}
	}
	return -1
}

// resolve applies the §4.6 conflict-resolution rules when cand overlaps the
// already-kept detection, returning the updated kept detection.
func resolve(kept, cand bbox.FieldDetection) bbox.FieldDetection {
	if IsGenericLabel(kept.Label) && !IsGenericLabel(cand.Label) {
		kept.Label = cand.Label
	}

	if cand.FieldType == bbox.FieldTypeCheckbox && kept.FieldType == bbox.FieldTypeText && isCheckboxSized(kept.BBox) {
		kept.FieldType = bbox.FieldTypeCheckbox
	} else if cand.Source == bbox.SourceGeometric && cand.FieldType == bbox.FieldTypeSignature && kept.FieldType == bbox.FieldTypeText {
		kept.FieldType = bbox.FieldTypeSignature
	}

	if cand.Confidence > kept.Confidence {
		kept.Confidence = cand.Confidence
	}
	return kept
}

func isCheckboxSized(box bbox.BBox) bool {
	if box.Width > 0.05 || box.Height > 0.05 {
		return false
	}
	aspect := box.AspectRatio()
	return aspect >= 0.5 && aspect <= 2.0
}
