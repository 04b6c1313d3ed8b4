package dashboard

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-bff/core"
	"github.com/trezcool/masomo-bff/tests"
)

// fakeClient serves canned bodies by path; unknown paths fail like a 503.
type fakeClient struct {
	mu      sync.Mutex
	base    string
	headers http.Header
	bodies  map[string]string
	calls   []string
}

func (c *fakeClient) Get(_ context.Context, path string) (*http.Response, error) {
	c.mu.Lock()
	c.calls = append(c.calls, path)
	c.mu.Unlock()

	body, ok := c.bodies[path]
	if !ok {
		return nil, errors.New("Upstream Error 503")
	}
	u, _ := url.Parse(c.base + path)
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    &http.Request{URL: u},
	}, nil
}

func (c *fakeClient) JSON(res *http.Response, err error) (core.Payload, error) {
	if err != nil {
		return core.Payload{}, err
	}
	defer res.Body.Close()
	raw, _ := io.ReadAll(res.Body)
	return core.ParsePayload(raw)
}

func (c *fakeClient) called(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.calls {
		if p == path {
			return true
		}
	}
	return false
}

type fakeBackends map[string]*fakeClient // base url -> client

func (b fakeBackends) newClient(baseURL string, headers http.Header) UpstreamClient {
	c, ok := b[baseURL]
	if !ok {
		c = &fakeClient{bodies: map[string]string{}}
		b[baseURL] = c
	}
	c.base = baseURL
	c.headers = headers
	return c
}

const (
	integratedURL = "http://integrated"

	statsPath        = "/api/dashboard/stats"
	growthPath       = "/api/dashboard/user-growth?days=30"
	distributionPath = "/api/dashboard/course-distribution"
	activitiesPath   = "/api/dashboard/recent-activities?limit=10"
	usersPath        = "/api/users?page=1&size=1"
	coursesPath      = "/api/courses?page=1&size=1"
)

func healthyBodies() map[string]string {
	return map[string]string{
		statsPath: `{"code":0,"message":"OK","data":{"userCount":120,"courseCount":14,"attendanceRate":0.92,` +
			`"homeworkSubmissionRate":0.81,"notificationCount":5}}`,
		growthPath:       `{"data":[{"date":"2024-05-01","count":3},{"date":"2024-05-02","count":4}]}`,
		distributionPath: `[{"name":"Math","value":6},{"name":"Physics","value":8}]`,
		activitiesPath: `{"data":[{"id":1,"type":"homework","title":"HW 1","description":"d","timestamp":"2024-05-02T10:00:00Z",` +
			`"user":{"id":9,"realName":"Ada"}}]}`,
	}
}

func newTestService(backends fakeBackends) Service {
	logger, _ := testutil.NewLogger()
	conf := core.UpstreamConfig{
		IntegratedURL:   integratedURL,
		CourseURL:       "http://course",
		AttendanceURL:   "http://attendance",
		HomeworkURL:     "http://homework",
		NotificationURL: "http://notification",
	}
	return NewService(conf, backends.newClient, logger)
}

func overviewParams() OverviewParams {
	return OverviewParams{Days: 30, Limit: 10, TraceID: "abc123", Authorization: "Bearer tkn"}
}

func TestService_AdminOverview(t *testing.T) {
	backends := fakeBackends{integratedURL: {bodies: healthyBodies()}}
	svc := newTestService(backends)

	got := svc.AdminOverview(context.Background(), overviewParams())

	assert.Nil(t, got.Meta)
	assert.Equal(t, Stats{
		UserCount:              120,
		CourseCount:            14,
		AttendanceRate:         0.92,
		HomeworkSubmissionRate: 0.81,
		NotificationCount:      5,
	}, got.Stats)
	assert.Equal(t, []GrowthPoint{{"2024-05-01", 3}, {"2024-05-02", 4}}, got.UserGrowth)
	assert.Equal(t, []DistributionItem{{"Math", 6}, {"Physics", 8}}, got.CourseDistribution)
	assert.Equal(t, []Activity{{
		ID:          1,
		Type:        "homework",
		Title:       "HW 1",
		Description: "d",
		Timestamp:   "2024-05-02T10:00:00Z",
		User:        &ActivityUser{ID: 9, RealName: "Ada"},
	}}, got.RecentActivities)

	client := backends[integratedURL]
	assert.Equal(t, "abc123", client.headers.Get("X-Trace-Id"))
	assert.Equal(t, "Bearer tkn", client.headers.Get("Authorization"))
	assert.False(t, client.called(usersPath))
	assert.False(t, client.called(coursesPath))
}

func TestService_AdminOverview_OneFailure(t *testing.T) {
	tests := []struct {
		name  string
		path  string
		label string
	}{
		{name: "stats", path: statsPath, label: LabelStats},
		{name: "user growth", path: growthPath, label: LabelUserGrowth},
		{name: "course distribution", path: distributionPath, label: LabelCourseDistribution},
		{name: "recent activities", path: activitiesPath, label: LabelRecentActivities},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bodies := healthyBodies()
			delete(bodies, tt.path)
			svc := newTestService(fakeBackends{integratedURL: {bodies: bodies}})

			got := svc.AdminOverview(context.Background(), overviewParams())

			require.NotNil(t, got.Meta)
			assert.True(t, strings.HasPrefix(got.Meta.Error, tt.label+":"), got.Meta.Error)
			assert.NotContains(t, got.Meta.Error, errorSeparator)
			assert.NotNil(t, got.UserGrowth)
			assert.NotNil(t, got.CourseDistribution)
			assert.NotNil(t, got.RecentActivities)
		})
	}
}

func TestService_AdminOverview_AllFail(t *testing.T) {
	backends := fakeBackends{integratedURL: {bodies: map[string]string{}}}
	svc := newTestService(backends)

	got := svc.AdminOverview(context.Background(), overviewParams())

	want := DefaultAdminOverview()
	assert.Equal(t, want.Stats, got.Stats)
	assert.Equal(t, want.UserGrowth, got.UserGrowth)
	assert.Equal(t, want.CourseDistribution, got.CourseDistribution)
	assert.Equal(t, want.RecentActivities, got.RecentActivities)
	require.NotNil(t, got.Meta)
	parts := strings.Split(got.Meta.Error, errorSeparator)
	require.Len(t, parts, 4)
	for i, label := range []string{LabelStats, LabelUserGrowth, LabelCourseDistribution, LabelRecentActivities} {
		assert.Equal(t, label+":Upstream Error 503", parts[i])
	}
	// fallback was attempted and its failure ignored
	assert.True(t, backends[integratedURL].called(usersPath))
	assert.True(t, backends[integratedURL].called(coursesPath))
}

func TestService_AdminOverview_StatsFallback(t *testing.T) {
	tests := []struct {
		name           string
		stats          string // "" means the stats call fails
		users          string
		courses        string
		wantUsers      int
		wantCourses    int
		wantUsersCall  bool
		wantCourseCall bool
	}{
		{
			name:           "primary failed, totals at top level and under data",
			users:          `{"total":42,"items":[]}`,
			courses:        `{"code":0,"data":{"total":7,"list":[]}}`,
			wantUsers:      42,
			wantCourses:    7,
			wantUsersCall:  true,
			wantCourseCall: true,
		},
		{
			name:           "primary failed, totals under pagination and meta",
			users:          `{"data":[],"pagination":{"total":11}}`,
			courses:        `{"rows":[],"meta":{"total":3}}`,
			wantUsers:      11,
			wantCourses:    3,
			wantUsersCall:  true,
			wantCourseCall: true,
		},
		{
			name:           "primary failed, fallback failed too",
			wantUsersCall:  true,
			wantCourseCall: true,
		},
		{
			name:           "primary without courseCount",
			stats:          `{"data":{"userCount":5}}`,
			courses:        `{"page":{"total":9}}`,
			wantUsers:      5,
			wantCourses:    9,
			wantCourseCall: true,
		},
		{
			name:        "primary complete",
			stats:       `{"data":{"userCount":5,"courseCount":0}}`,
			users:       `{"total":100}`,
			courses:     `{"total":100}`,
			wantUsers:   5,
			wantCourses: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bodies := healthyBodies()
			delete(bodies, statsPath)
			if tt.stats != "" {
				bodies[statsPath] = tt.stats
			}
			if tt.users != "" {
				bodies[usersPath] = tt.users
			}
			if tt.courses != "" {
				bodies[coursesPath] = tt.courses
			}
			backends := fakeBackends{integratedURL: {bodies: bodies}}
			svc := newTestService(backends)

			got := svc.AdminOverview(context.Background(), overviewParams())

			assert.Equal(t, tt.wantUsers, got.Stats.UserCount)
			assert.Equal(t, tt.wantCourses, got.Stats.CourseCount)
			assert.Equal(t, tt.wantUsersCall, backends[integratedURL].called(usersPath))
			assert.Equal(t, tt.wantCourseCall, backends[integratedURL].called(coursesPath))
		})
	}
}

func TestService_AdminOverview_Normalization(t *testing.T) {
	bodies := map[string]string{
		statsPath: `{"data":{"user_count":"12","course_count":3.7,"attendance_rate":0.5,"homework_submission_rate":null,` +
			`"notification_count":-4}}`,
		growthPath:       `{"data":[{"date":"2024-05-01","count":"x"},{"date":"","count":4},{"count":1},{"date":20240503,"count":2},"junk"]}`,
		distributionPath: `{"data":{"not":"an array"}}`,
		activitiesPath: `[
			{"id":1,"title":"kept","timestamp":"t1","user":{"id":0,"realName":"ghost"}},
			{"id":2,"title":"","timestamp":"t2"},
			{"id":3,"title":"no timestamp"},
			{"title":"no id","timestamp":"t4"},
			{"id":-5,"title":"negative id","timestamp":"t5"},
			{"id":6,"title":"kept too","timestamp":"t6","type":"notice","user":{"id":2,"real_name":"Grace"}}
		]`,
	}
	svc := newTestService(fakeBackends{integratedURL: {bodies: bodies}})

	got := svc.AdminOverview(context.Background(), overviewParams())

	assert.Nil(t, got.Meta)
	assert.Equal(t, 0, got.Stats.UserCount, "strings are not numbers")
	assert.Equal(t, 3, got.Stats.CourseCount)
	assert.Equal(t, 0.5, got.Stats.AttendanceRate)
	assert.Equal(t, 0.0, got.Stats.HomeworkSubmissionRate)
	assert.Equal(t, 0, got.Stats.NotificationCount)

	assert.Equal(t, []GrowthPoint{{"2024-05-01", 0}, {"20240503", 2}}, got.UserGrowth)
	assert.Equal(t, []DistributionItem{}, got.CourseDistribution)

	require.Len(t, got.RecentActivities, 2)
	assert.Equal(t, int64(1), got.RecentActivities[0].ID)
	assert.Nil(t, got.RecentActivities[0].User)
	assert.Equal(t, int64(6), got.RecentActivities[1].ID)
	assert.Equal(t, "notice", got.RecentActivities[1].Type)
	assert.Equal(t, &ActivityUser{ID: 2, RealName: "Grace"}, got.RecentActivities[1].User)
}

func TestService_AdminOverview_NotConfigured(t *testing.T) {
	logger, _ := testutil.NewLogger()
	svc := NewService(core.UpstreamConfig{}, fakeBackends{}.newClient, logger)

	got := svc.AdminOverview(context.Background(), overviewParams())

	require.NotNil(t, got.Meta)
	assert.Equal(t, "BACKEND_INTEGRATED_URL is not configured", got.Meta.Error)
	assert.Equal(t, []GrowthPoint{}, got.UserGrowth)
}

func TestService_AdminOverview_Panic(t *testing.T) {
	logger, _ := testutil.NewLogger()
	conf := core.UpstreamConfig{IntegratedURL: integratedURL}
	svc := NewService(conf, func(string, http.Header) UpstreamClient { panic("boom") }, logger)

	got := svc.AdminOverview(context.Background(), overviewParams())

	require.NotNil(t, got.Meta)
	assert.Equal(t, "boom", got.Meta.Error)
	assert.Equal(t, DefaultAdminOverview().Stats, got.Stats)
	assert.NotNil(t, got.RecentActivities)
}

func TestService_StudentDashboard(t *testing.T) {
	backends := fakeBackends{
		"http://course": {bodies: map[string]string{
			"/api/course/enrolled?userId=7": `{"code":0,"data":[{"course_id":1,"course_name":"Math"}]}`,
		}},
		"http://attendance": {bodies: map[string]string{
			"/api/attendance/summary?userId=7": `{"data":{"present_days":10,"absent_days":1}}`,
		}},
		"http://homework": {bodies: map[string]string{
			"/api/homework/pending?userId=7": `[{"id":3,"title":"Essay"}]`,
		}},
		// notification backend has no route: fails
	}
	svc := newTestService(backends)

	got := svc.StudentDashboard(context.Background(), StudentParams{UserID: 7, TraceID: "t-1"})

	require.Len(t, got.Courses, 1)
	assert.JSONEq(t, `{"courseId":1,"courseName":"Math"}`, string(got.Courses[0]))
	assert.JSONEq(t, `{"presentDays":10,"absentDays":1}`, string(got.AttendanceStats))
	require.Len(t, got.PendingHomework, 1)
	assert.JSONEq(t, `{"id":3,"title":"Essay"}`, string(got.PendingHomework[0]))
	assert.Equal(t, []json.RawMessage{}, got.Notifications)
	require.NotNil(t, got.Meta)
	assert.Equal(t, LabelNotifications+":Upstream Error 503", got.Meta.Error)
	assert.Equal(t, "t-1", backends["http://course"].headers.Get("X-Trace-Id"))
}

func TestService_StudentDashboard_NotConfigured(t *testing.T) {
	logger, _ := testutil.NewLogger()
	svc := NewService(core.UpstreamConfig{}, fakeBackends{}.newClient, logger)

	got := svc.StudentDashboard(context.Background(), StudentParams{UserID: 1})

	assert.Equal(t, DefaultStudentDashboard().AttendanceStats, got.AttendanceStats)
	require.NotNil(t, got.Meta)
	assert.Equal(t,
		"course.enrolled:BE_COURSE_URL is not configured | attendance.summary:BE_ATT_URL is not configured | "+
			"homework.pending:BE_HW_URL is not configured | notification.list:BE_NOTIFY_URL is not configured",
		got.Meta.Error,
	)
}
