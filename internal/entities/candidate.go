package entities

import "slices"

type Candidate struct {
	ID             string
	Name           string
	Phone          string
	Skills         []string
	Certifications []string
	// History maps client id to the number of visits already served for that client.
	History        map[string]int
	Location       *GeoPoint
	CommittedHours float64
	Schedule       []TimeWindow
	Attributes     map[string]string
}

func (c Candidate) HasCertification(name string) bool {
	return slices.Contains(c.Certifications, name) || slices.Contains(c.Skills, name)
}

func (c Candidate) VisitsWith(clientID string) int {
	return c.History[clientID]
}

func (c Candidate) IsBusyDuring(window TimeWindow) bool {
	for _, committed := range c.Schedule {
		if committed.Overlaps(window) {
			return true
		}
	}
	return false
}
