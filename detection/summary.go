// Package detection - Whole-image summaries.
package detection

// SeverityCounts counts findings per tier.
type SeverityCounts struct {
	Mild     int `json:"mild" yaml:"mild"`
	Moderate int `json:"moderate" yaml:"moderate"`
	Severe   int `json:"severe" yaml:"severe"`
}

// Summary is derived from a Detection list and recomputed whenever it changes.
type Summary struct {
	Total             int            `json:"total" yaml:"total"`
	Counts            SeverityCounts `json:"counts" yaml:"counts"`
	MostSevere        Severity       `json:"most_severe" yaml:"most_severe"`
	AverageConfidence float32        `json:"average_confidence" yaml:"average_confidence"`
	Urgency           Urgency        `json:"urgency" yaml:"urgency"`
}

// Summarize derives the summary of a detection list.
//
// An empty list has no most severe tier, zero average confidence and routine urgency.
func Summarize(detections []Detection) Summary {
	s := Summary{Total: len(detections)}
	if len(detections) == 0 {
		return s
	}

	var sum float64
	for _, d := range detections {
		sum += float64(d.Confidence)
		if d.Severity > s.MostSevere {
			s.MostSevere = d.Severity
		}
		switch d.Severity {
		case SeverityMild:
			s.Counts.Mild++
		case SeverityModerate:
			s.Counts.Moderate++
		case SeveritySevere:
			s.Counts.Severe++
		}
	}

	s.AverageConfidence = float32(sum / float64(len(detections)))
	s.Urgency = UrgencyFor(s.MostSevere)
	return s
}
