// internal/models/committee.go
package models

type Committee struct {
	ID        int      `json:"id"`
	Name      string   `json:"name"`
	Specialty string   `json:"specialty"`
	Members   []string `json:"members"`
}

// Criterion is one scored dimension of the rubric shared by all committees.
type Criterion struct {
	ID       int     `json:"id"`
	Name     string  `json:"name"`
	MaxScore float64 `json:"maxScore"`
}

// Dataset groups the three collections that are always loaded together.
type Dataset struct {
	Students   []Student   `json:"students"`
	Committees []Committee `json:"committees"`
	Criteria   []Criterion `json:"criteria"`
}

// Clone returns a deep copy of the dataset.
func (d Dataset) Clone() Dataset {
	out := Dataset{Students: CloneStudents(d.Students)}
	if d.Committees != nil {
		out.Committees = make([]Committee, len(d.Committees))
		for i, c := range d.Committees {
			c.Members = append([]string(nil), c.Members...)
			out.Committees[i] = c
		}
	}
	if d.Criteria != nil {
		out.Criteria = append([]Criterion(nil), d.Criteria...)
	}
	return out
}
