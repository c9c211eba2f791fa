package patterns

import (
	"sort"

	"notaria/pkg/models"
)

// Deduplicate collapses fields sharing (FieldName, Value) into the entry with
// the highest confidence, then sorts by confidence descending. Ties keep
// first-seen order.
func Deduplicate(fields []models.ExtractedField) []models.ExtractedField {
	type key struct{ name, value string }

	index := make(map[key]int, len(fields))
	out := make([]models.ExtractedField, 0, len(fields))
	for _, f := range fields {
		k := key{f.FieldName, f.Value}
		if i, seen := index[k]; seen {
			if f.Confidence > out[i].Confidence {
				out[i] = f
			}
			continue
		}
		index[k] = len(out)
		out = append(out, f)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	return out
}

// FilterMinConfidence drops fields scoring below min. The input is not modified.
func FilterMinConfidence(fields []models.ExtractedField, min float64) []models.ExtractedField {
	out := make([]models.ExtractedField, 0, len(fields))
	for _, f := range fields {
		if f.Confidence >= min {
			out = append(out, f)
		}
	}
	return out
}

// OverallConfidence is the mean field confidence plus a capped bonus for each
// critical field that is present and not invalid, clamped to [0,1].
// An empty field list scores 0.
func (l *Library) OverallConfidence(fields []models.ExtractedField) float64 {
	if len(fields) == 0 {
		return 0
	}

	var sum float64
	for _, f := range fields {
		sum += f.Confidence
	}
	mean := sum / float64(len(fields))

	critical := make(map[string]bool)
	for _, f := range fields {
		if f.ValidationStatus == models.ValidationInvalid {
			continue
		}
		for _, t := range l.cfg.CriticalTypes {
			if f.Type == t {
				critical["type:"+string(t)] = true
			}
		}
		for _, n := range l.cfg.CriticalNames {
			if f.FieldName == n {
				critical["name:"+n] = true
			}
		}
	}

	bonus := float64(len(critical)) * l.cfg.CriticalBonus
	if bonus > l.cfg.CriticalBonusCap {
		bonus = l.cfg.CriticalBonusCap
	}
	return clamp01(mean + bonus)
}
