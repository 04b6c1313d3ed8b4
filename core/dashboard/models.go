package dashboard

import "encoding/json"

type (
	// Stats feeds the admin dashboard cards.
	Stats struct {
		UserCount              int     `json:"userCount" validate:"min=0"`
		CourseCount            int     `json:"courseCount" validate:"min=0"`
		AttendanceRate         float64 `json:"attendanceRate" validate:"finite"`
		HomeworkSubmissionRate float64 `json:"homeworkSubmissionRate" validate:"finite"`
		NotificationCount      int     `json:"notificationCount" validate:"min=0"`
	}

	GrowthPoint struct {
		Date  string `json:"date"`
		Count int    `json:"count" validate:"min=0"`
	}

	DistributionItem struct {
		Name  string `json:"name"`
		Value int    `json:"value" validate:"min=0"`
	}

	ActivityUser struct {
		ID       int64  `json:"id" validate:"gt=0"`
		RealName string `json:"realName"`
	}

	Activity struct {
		ID          int64         `json:"id" validate:"gt=0"`
		Type        string        `json:"type"`
		Title       string        `json:"title"`
		Description string        `json:"description"`
		Timestamp   string        `json:"timestamp"`
		User        *ActivityUser `json:"user,omitempty" validate:"omitempty"`
	}

	// Meta is only present when at least one upstream call failed.
	Meta struct {
		Error string `json:"error" validate:"required"`
	}

	// AdminOverview is the composed admin dashboard.
	AdminOverview struct {
		Stats              Stats              `json:"stats"`
		UserGrowth         []GrowthPoint      `json:"userGrowth" validate:"required,dive"`
		CourseDistribution []DistributionItem `json:"courseDistribution" validate:"required,dive"`
		RecentActivities   []Activity         `json:"recentActivities" validate:"required,dive"`
		Meta               *Meta              `json:"meta,omitempty" validate:"omitempty"`
	}

	// StudentDashboard is the composed student portal home.
	// Entities are relayed from the domain backends with camelCase keys.
	StudentDashboard struct {
		Courses         []json.RawMessage `json:"courses" validate:"required"`
		AttendanceStats json.RawMessage   `json:"attendanceStats" validate:"jsonobject"`
		PendingHomework []json.RawMessage `json:"pendingHomework" validate:"required"`
		Notifications   []json.RawMessage `json:"notifications" validate:"required"`
		Meta            *Meta             `json:"meta,omitempty" validate:"omitempty"`
	}
)

// DefaultAdminOverview is the all-zero shape returned when nothing could be fetched.
func DefaultAdminOverview() AdminOverview {
	return AdminOverview{
		UserGrowth:         []GrowthPoint{},
		CourseDistribution: []DistributionItem{},
		RecentActivities:   []Activity{},
	}
}

func DefaultStudentDashboard() StudentDashboard {
	return StudentDashboard{
		Courses:         []json.RawMessage{},
		AttendanceStats: json.RawMessage(`{}`),
		PendingHomework: []json.RawMessage{},
		Notifications:   []json.RawMessage{},
	}
}
