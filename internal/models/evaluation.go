// internal/models/evaluation.go
package models

// Evaluation is the scored outcome of one interview. Scores are keyed by
// criterion id; encoding/json writes the keys as strings.
type Evaluation struct {
	Scores     map[int]float64 `json:"scores"`
	Notes      string          `json:"notes"`
	FinalScore *float64        `json:"finalScore,omitempty"`
}

// Total sums all criterion scores.
func (e Evaluation) Total() float64 {
	var total float64
	for _, s := range e.Scores {
		total += s
	}
	return total
}

// WithFinalScore fills FinalScore from Total when the caller did not set it.
func (e Evaluation) WithFinalScore() Evaluation {
	if e.FinalScore != nil {
		return e
	}
	total := e.Total()
	e.FinalScore = &total
	return e
}

func (e Evaluation) Clone() Evaluation {
	out := Evaluation{Notes: e.Notes}
	if e.Scores != nil {
		out.Scores = make(map[int]float64, len(e.Scores))
		for k, v := range e.Scores {
			out.Scores[k] = v
		}
	}
	if e.FinalScore != nil {
		fs := *e.FinalScore
		out.FinalScore = &fs
	}
	return out
}
