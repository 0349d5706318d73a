package jenkins

import (
	"log/slog"
	"regexp"
	"slices"
	"strconv"
	"time"

	"github.com/huangsam/pra/schema"
)

// BuildColumns is the schema of the jenkins_builds dataset.
var BuildColumns = []schema.Column{
	{Name: "job", Type: schema.StringColumn},
	{Name: "build_number", Type: schema.IntColumn},
	{Name: "result", Type: schema.StringColumn},
	{Name: "duration", Type: schema.IntColumn},
	{Name: "estimated_duration", Type: schema.IntColumn},
	{Name: "timestamp", Type: schema.TimestampColumn},
	{Name: "revision", Type: schema.StringColumn},
	{Name: "commit_id", Type: schema.StringColumn},
	{Name: "commit_date", Type: schema.StringColumn},
	{Name: "commit_count", Type: schema.IntColumn},
	{Name: "fail_count", Type: schema.IntColumn},
	{Name: "pass_count", Type: schema.IntColumn},
	{Name: "skip_count", Type: schema.IntColumn},
	{Name: "total_test_duration", Type: schema.FloatColumn},
}

// TestColumns is the schema of the jenkins_tests dataset.
var TestColumns = []schema.Column{
	{Name: "job", Type: schema.StringColumn},
	{Name: "build_number", Type: schema.IntColumn},
	{Name: "package", Type: schema.StringColumn},
	{Name: "class", Type: schema.StringColumn},
	{Name: "case_name", Type: schema.StringColumn},
	{Name: "duration", Type: schema.FloatColumn},
	{Name: "status", Type: schema.StringColumn},
}

var skippedJobClasses = []string{"Folder", "OrganizationFolder", "WorkflowMultiBranchProject"}

var skippedSCMClasses = []string{"SubversionSCM", "NullSCM"}

// SkipReason returns why a job is not collected, or "" when it is.
func SkipReason(job *Job) string {
	if slices.Contains(skippedJobClasses, className(job.Class)) {
		return "folder job " + className(job.Class)
	}
	if job.SCM != nil && slices.Contains(skippedSCMClasses, className(job.SCM.Class)) {
		return "unsupported scm " + className(job.SCM.Class)
	}
	return ""
}

// MatchJobs keeps the jobs whose name matches ^.*<project>.*$ ignoring case.
// A project that is not a valid pattern is matched literally.
func MatchJobs(jobs []JobRef, project string) []JobRef {
	re, err := regexp.Compile("(?i)^.*" + project + ".*$")
	if err != nil {
		re = regexp.MustCompile("(?i)^.*" + regexp.QuoteMeta(project) + ".*$")
	}
	var matched []JobRef
	for _, j := range jobs {
		if re.MatchString(j.Name) {
			matched = append(matched, j)
		}
	}
	return matched
}

// BuildNumber returns the build number, falling back to the id.
func BuildNumber(b Build) (int, bool) {
	if b.Number > 0 {
		return b.Number, true
	}
	n, err := strconv.Atoi(b.ID)
	if err != nil {
		return 0, false
	}
	return n, true
}

// BuildRow flattens a build and its (possibly nil) test report into a row
// matching BuildColumns.
func BuildRow(job string, b Build, report *TestReport) schema.Row {
	number, _ := BuildNumber(b)

	var revision any
	for _, a := range b.Actions {
		if className(a.Class) == "BuildData" && a.LastBuiltRevision != nil && a.LastBuiltRevision.SHA1 != nil {
			revision = *a.LastBuiltRevision.SHA1
		}
	}

	ids, dates := commits(b)
	if len(ids) != 1 {
		slog.Warn("ambiguous commit ids for build", "job", job, "build", number, "commits", len(ids))
	}
	var commitID, commitDate any
	if len(ids) > 0 {
		commitID = ids[0]
		if dates[0] != nil {
			commitDate = *dates[0]
		}
	}

	var timestamp any
	if b.Timestamp != nil {
		timestamp = time.UnixMilli(*b.Timestamp).UTC()
	}

	var failCount, passCount, skipCount, totalDuration any
	if report == nil {
		slog.Warn("no test report", "job", job, "build", number)
	} else {
		failCount = intOrNil(report.FailCount)
		skipCount = intOrNil(report.SkipCount)
		passCount = intOrNil(report.PassCount)
		if report.TotalCount != nil && report.FailCount != nil && report.SkipCount != nil {
			passCount = int64(*report.TotalCount - *report.FailCount - *report.SkipCount)
		}
		if d, _ := ExtractTestData(report); d != nil {
			totalDuration = *d
		}
	}

	return schema.Row{
		job,
		int64(number),
		strOrNil(b.Result),
		int64OrNil(b.Duration),
		int64OrNil(b.EstimatedDuration),
		timestamp,
		revision,
		commitID,
		commitDate,
		int64(len(ids)),
		failCount,
		passCount,
		skipCount,
		totalDuration,
	}
}

// TestRows flattens the test cases of a report into rows matching TestColumns.
func TestRows(job string, number int, report *TestReport) []schema.Row {
	_, cases := ExtractTestData(report)
	rows := make([]schema.Row, 0, len(cases))
	for _, c := range cases {
		var duration any
		if c.Duration != nil {
			duration = *c.Duration
		}
		rows = append(rows, schema.Row{
			job, int64(number), c.Package, c.Class, c.Case, duration, strOrNil(c.Status),
		})
	}
	return rows
}

// commits returns the distinct commit ids of a build in change set order with
// their dates.
func commits(b Build) ([]string, []*string) {
	sets := slices.Clone(b.ChangeSets)
	if b.ChangeSet != nil {
		sets = append([]ChangeSet{*b.ChangeSet}, sets...)
	}
	var ids []string
	var dates []*string
	seen := make(map[string]bool)
	for _, set := range sets {
		for _, item := range set.Items {
			if item.CommitID == nil || seen[*item.CommitID] {
				continue
			}
			seen[*item.CommitID] = true
			ids = append(ids, *item.CommitID)
			dates = append(dates, item.Date)
		}
	}
	return ids, dates
}

func strOrNil(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func intOrNil(p *int) any {
	if p == nil {
		return nil
	}
	return int64(*p)
}

func int64OrNil(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}
