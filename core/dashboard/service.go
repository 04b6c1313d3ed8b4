// Package dashboard composes dashboard views from several domain backends.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/masomo-bff/core"
)

const (
	LabelStats              = "dashboard.stats"
	LabelUserGrowth         = "dashboard.userGrowth"
	LabelCourseDistribution = "dashboard.courseDistribution"
	LabelRecentActivities   = "dashboard.recentActivities"

	LabelCourses         = "course.enrolled"
	LabelAttendance      = "attendance.summary"
	LabelHomework        = "homework.pending"
	LabelNotifications   = "notification.list"
	labelUserTotal       = "users.total"
	labelCourseTotal     = "courses.total"
	errorSeparator       = " | "
	headerTraceID        = "X-Trace-Id"
	headerAuthorization  = "Authorization"
	defaultUpstreamError = "Upstream error"
)

type (
	// UpstreamClient is the part of upstream.Client the aggregation needs.
	UpstreamClient interface {
		Get(ctx context.Context, path string) (*http.Response, error)
		JSON(res *http.Response, err error) (core.Payload, error)
	}

	// NewClientFunc binds a client to one base URL and header set.
	NewClientFunc func(baseURL string, headers http.Header) UpstreamClient

	OverviewParams struct {
		Days          int
		Limit         int
		TraceID       string
		Authorization string
	}

	StudentParams struct {
		UserID        int64
		TraceID       string
		Authorization string
	}

	// Service never fails: upstream failures degrade the result and are reported in Meta.
	Service interface {
		AdminOverview(ctx context.Context, p OverviewParams) AdminOverview
		StudentDashboard(ctx context.Context, p StudentParams) StudentDashboard
	}

	service struct {
		conf      core.UpstreamConfig
		newClient NewClientFunc
		logger    core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(conf core.UpstreamConfig, newClient NewClientFunc, logger core.Logger) Service {
	return &service{conf: conf, newClient: newClient, logger: logger}
}

// call is one member of a fan-out.
type call struct {
	label  string
	client UpstreamClient
	path   string
	err    error // set when the call cannot be made at all
}

// callResult holds either a payload or an error.
type callResult struct {
	label   string
	payload *core.Payload
	err     error
}

func (r callResult) data() json.RawMessage {
	if r.payload == nil {
		return nil
	}
	return core.CamelizeKeys(r.payload.Data)
}

// fanOut issues all calls concurrently and waits for every one of them.
// A failing call never cancels its siblings.
func fanOut(ctx context.Context, calls []call) []callResult {
	results := make([]callResult, len(calls))
	var g errgroup.Group
	for i, c := range calls {
		i, c := i, c
		g.Go(func() error {
			results[i] = safeCall(ctx, c)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func safeCall(ctx context.Context, c call) (res callResult) {
	res.label = c.label
	defer func() {
		if r := recover(); r != nil {
			res = callResult{label: c.label, err: errors.Errorf("panic: %v", r)}
		}
	}()

	if c.err != nil {
		res.err = c.err
		return res
	}
	payload, err := c.client.JSON(c.client.Get(ctx, c.path))
	if err != nil {
		res.err = err
		return res
	}
	res.payload = &payload
	return res
}

// failures lists "<label>:<reason>" for every failed result, in call order.
func failures(results []callResult) []string {
	var errs []string
	for _, r := range results {
		if r.err == nil {
			continue
		}
		reason := errors.Cause(r.err).Error()
		if reason == "" {
			reason = defaultUpstreamError
		}
		errs = append(errs, r.label+":"+reason)
	}
	return errs
}

func metaFor(errs []string) *Meta {
	if len(errs) == 0 {
		return nil
	}
	return &Meta{Error: strings.Join(errs, errorSeparator)}
}

func forwardHeaders(traceID, authorization string) http.Header {
	h := make(http.Header)
	if traceID != "" {
		h.Set(headerTraceID, traceID)
	}
	if authorization != "" {
		h.Set(headerAuthorization, authorization)
	}
	return h
}

func (svc *service) AdminOverview(ctx context.Context, p OverviewParams) (out AdminOverview) {
	defer func() {
		if r := recover(); r != nil {
			svc.logger.Error(fmt.Sprintf("admin overview aggregation panicked: %v", r))
			out = DefaultAdminOverview()
			out.Meta = &Meta{Error: fmt.Sprint(r)}
		}
	}()

	if svc.conf.IntegratedURL == "" {
		out = DefaultAdminOverview()
		out.Meta = &Meta{Error: "BACKEND_INTEGRATED_URL is not configured"}
		return out
	}

	client := svc.newClient(svc.conf.IntegratedURL, forwardHeaders(p.TraceID, p.Authorization))
	results := fanOut(ctx, []call{
		{label: LabelStats, client: client, path: "/api/dashboard/stats"},
		{label: LabelUserGrowth, client: client, path: fmt.Sprintf("/api/dashboard/user-growth?days=%d", p.Days)},
		{label: LabelCourseDistribution, client: client, path: "/api/dashboard/course-distribution"},
		{label: LabelRecentActivities, client: client, path: fmt.Sprintf("/api/dashboard/recent-activities?limit=%d", p.Limit)},
	})

	stats := core.Fields(results[0].data())
	out = AdminOverview{
		Stats:              buildStats(stats),
		UserGrowth:         buildUserGrowth(results[1].data()),
		CourseDistribution: buildCourseDistribution(results[2].data()),
		RecentActivities:   buildRecentActivities(results[3].data()),
		Meta:               metaFor(failures(results)),
	}
	svc.fillMissingCounts(ctx, client, stats, &out.Stats)
	return out
}

// fillMissingCounts queries the entity listings for counts the stats endpoint did not provide
// (all of them when it failed). Failures are ignored.
func (svc *service) fillMissingCounts(ctx context.Context, client UpstreamClient, stats map[string]json.RawMessage, dst *Stats) {
	var calls []call
	var targets []*int
	if _, ok := stats["userCount"]; !ok {
		calls = append(calls, call{label: labelUserTotal, client: client, path: "/api/users?page=1&size=1"})
		targets = append(targets, &dst.UserCount)
	}
	if _, ok := stats["courseCount"]; !ok {
		calls = append(calls, call{label: labelCourseTotal, client: client, path: "/api/courses?page=1&size=1"})
		targets = append(targets, &dst.CourseCount)
	}
	if len(calls) == 0 {
		return
	}

	for i, res := range fanOut(ctx, calls) {
		if res.payload == nil {
			svc.logger.Debug(fmt.Sprintf("fallback %s failed", res.label), res.err)
			continue
		}
		if total, ok := res.payload.Total(); ok && total > 0 {
			*targets[i] = total
		}
	}
}

func buildStats(f map[string]json.RawMessage) Stats {
	return Stats{
		UserCount:              core.ToCount(f["userCount"]),
		CourseCount:            core.ToCount(f["courseCount"]),
		AttendanceRate:         core.ToNum(f["attendanceRate"]),
		HomeworkSubmissionRate: core.ToNum(f["homeworkSubmissionRate"]),
		NotificationCount:      core.ToCount(f["notificationCount"]),
	}
}

func buildUserGrowth(data json.RawMessage) []GrowthPoint {
	points := make([]GrowthPoint, 0)
	for _, item := range core.Items(data) {
		f := core.Fields(item)
		p := GrowthPoint{Date: core.ToStr(f["date"]), Count: core.ToCount(f["count"])}
		if p.Date != "" {
			points = append(points, p)
		}
	}
	return points
}

func buildCourseDistribution(data json.RawMessage) []DistributionItem {
	items := make([]DistributionItem, 0)
	for _, item := range core.Items(data) {
		f := core.Fields(item)
		i := DistributionItem{Name: core.ToStr(f["name"]), Value: core.ToCount(f["value"])}
		if i.Name != "" {
			items = append(items, i)
		}
	}
	return items
}

// buildRecentActivities drops entries without a positive id, a title or a timestamp.
func buildRecentActivities(data json.RawMessage) []Activity {
	activities := make([]Activity, 0)
	for _, item := range core.Items(data) {
		f := core.Fields(item)
		a := Activity{
			ID:          core.ToID(f["id"]),
			Type:        core.ToStr(f["type"]),
			Title:       core.ToStr(f["title"]),
			Description: core.ToStr(f["description"]),
			Timestamp:   core.ToStr(f["timestamp"]),
		}
		if a.ID <= 0 || a.Title == "" || a.Timestamp == "" {
			continue
		}
		if uf := core.Fields(f["user"]); uf != nil {
			if uid := core.ToID(uf["id"]); uid > 0 {
				a.User = &ActivityUser{ID: uid, RealName: core.ToStr(uf["realName"])}
			}
		}
		activities = append(activities, a)
	}
	return activities
}

func (svc *service) StudentDashboard(ctx context.Context, p StudentParams) (out StudentDashboard) {
	defer func() {
		if r := recover(); r != nil {
			svc.logger.Error(fmt.Sprintf("student dashboard aggregation panicked: %v", r))
			out = DefaultStudentDashboard()
			out.Meta = &Meta{Error: fmt.Sprint(r)}
		}
	}()

	headers := forwardHeaders(p.TraceID, p.Authorization)
	target := func(label, baseURL, env, path string) call {
		if baseURL == "" {
			return call{label: label, err: errors.Errorf("%s is not configured", env)}
		}
		return call{label: label, client: svc.newClient(baseURL, headers), path: fmt.Sprintf(path, p.UserID)}
	}
	results := fanOut(ctx, []call{
		target(LabelCourses, svc.conf.CourseURL, "BE_COURSE_URL", "/api/course/enrolled?userId=%d"),
		target(LabelAttendance, svc.conf.AttendanceURL, "BE_ATT_URL", "/api/attendance/summary?userId=%d"),
		target(LabelHomework, svc.conf.HomeworkURL, "BE_HW_URL", "/api/homework/pending?userId=%d"),
		target(LabelNotifications, svc.conf.NotificationURL, "BE_NOTIFY_URL", "/api/notification/list?userId=%d"),
	})

	out = DefaultStudentDashboard()
	out.Courses = core.Items(results[0].data())
	if stats := results[1].data(); core.Fields(stats) != nil {
		out.AttendanceStats = stats
	}
	out.PendingHomework = core.Items(results[2].data())
	out.Notifications = core.Items(results[3].data())
	out.Meta = metaFor(failures(results))
	return out
}
