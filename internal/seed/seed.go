// internal/seed/seed.go

// Package seed provides the fixed dataset used when neither the remote API
// nor the local cache can supply data.
package seed

import "exam-queue/internal/models"

const (
	specialtyCS   = "Computer Science"
	specialtyMath = "Mathematics"
)

// Students returns a fresh copy of the seed students on every call.
func Students() []models.Student {
	return []models.Student{
		{ID: 101, Name: "Ahmed Mahmoud", Specialty: specialtyCS, CommitteeID: 1, Status: models.StatusInProgress, QueuePosition: 1},
		{ID: 102, Name: "Fatima Alzahraa", Specialty: specialtyCS, CommitteeID: 1, Status: models.StatusWaiting, QueuePosition: 2},
		{ID: 103, Name: "Ali Hassan", Specialty: specialtyCS, CommitteeID: 1, Status: models.StatusWaiting, QueuePosition: 3},
		{ID: 104, Name: "Maryam Khaled", Specialty: specialtyCS, CommitteeID: 1, Status: models.StatusWaiting, QueuePosition: 4},
		{ID: 105, Name: "Youssef Abdullah", Specialty: specialtyCS, CommitteeID: 1, Status: models.StatusCompleted, QueuePosition: 0,
			Evaluation: &models.Evaluation{Scores: map[int]float64{1: 18, 2: 15, 3: 17}, Notes: "Excellent performance"}},
		{ID: 106, Name: "Sara Ibrahim", Specialty: specialtyCS, CommitteeID: 1, Status: models.StatusWaiting, QueuePosition: 5},
		{ID: 201, Name: "Khaled Walid", Specialty: specialtyMath, CommitteeID: 2, Status: models.StatusInProgress, QueuePosition: 1},
		{ID: 202, Name: "Nour Alhuda", Specialty: specialtyMath, CommitteeID: 2, Status: models.StatusWaiting, QueuePosition: 2},
		{ID: 203, Name: "Omar Farouk", Specialty: specialtyMath, CommitteeID: 2, Status: models.StatusWaiting, QueuePosition: 3},
		{ID: 204, Name: "Zainab Mostafa", Specialty: specialtyMath, CommitteeID: 2, Status: models.StatusCompleted, QueuePosition: 0,
			Evaluation: &models.Evaluation{Scores: map[int]float64{1: 14, 2: 16, 3: 15}, Notes: "Needs more focus"}},
		{ID: 205, Name: "Abdulrahman Saeed", Specialty: specialtyMath, CommitteeID: 2, Status: models.StatusWaiting, QueuePosition: 4},
	}
}

func Committees() []models.Committee {
	return []models.Committee{
		{ID: 1, Name: "Computer Science Committee", Specialty: specialtyCS, Members: []string{"Dr. Mohammed Saleh", "Dr. Aisha Bakr", "Eng. Hind Reda"}},
		{ID: 2, Name: "Mathematics Committee", Specialty: specialtyMath, Members: []string{"Dr. Jamal Fathi", "Dr. Layla Murad"}},
	}
}

func Criteria() []models.Criterion {
	return []models.Criterion{
		{ID: 1, Name: "Scientific content and knowledge", MaxScore: 20},
		{ID: 2, Name: "Fluency and pronunciation", MaxScore: 20},
		{ID: 3, Name: "Confidence and body language", MaxScore: 20},
		{ID: 4, Name: "Analysis and reasoning", MaxScore: 20},
	}
}

// Dataset bundles the three seed collections.
func Dataset() models.Dataset {
	return models.Dataset{
		Students:   Students(),
		Committees: Committees(),
		Criteria:   Criteria(),
	}
}
