package domain

// Course is a single entry of the dashboard course list.
type Course struct {
	Code       string
	Title      string
	Instructor string
	Credits    int
	Schedule   string
}

// SampleCourses returns the fixed course list shown on every dashboard.
func SampleCourses() []Course {
	return []Course{
		{
			Code:       "CSE101",
			Title:      "Introduction to Computer Science",
			Instructor: "Dr. Smith",
			Credits:    3,
			Schedule:   "Mon/Wed 10:00–11:30",
		},
		{
			Code:       "MAT102",
			Title:      "Calculus I",
			Instructor: "Prof. Johnson",
			Credits:    4,
			Schedule:   "Tue/Thu 09:00–10:30",
		},
		{
			Code:       "PHY103",
			Title:      "Physics I",
			Instructor: "Dr. Williams",
			Credits:    3,
			Schedule:   "Mon/Wed 14:00–15:30",
		},
	}
}
