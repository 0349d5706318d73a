// Package jenkins collects build and test telemetry from a Jenkins server and
// writes per-job staging tables.
package jenkins

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/huangsam/pra/internal/upstream"
)

// JobRef is one entry of the top-level job listing.
type JobRef struct {
	Name     string `json:"name"`
	FullName string `json:"fullName"`
	URL      string `json:"url"`
	Class    string `json:"_class"`
}

// Job is the job info returned with depth=2.
type Job struct {
	Class    string  `json:"_class"`
	Name     string  `json:"name"`
	FullName string  `json:"fullName"`
	SCM      *SCM    `json:"scm"`
	Builds   []Build `json:"builds"`
}

// SCM identifies the source control plugin of a job.
type SCM struct {
	Class string `json:"_class"`
}

// Build is one build of a job. Absent fields are nil.
type Build struct {
	ID                string      `json:"id"`
	Number            int         `json:"number"`
	FullDisplayName   string      `json:"fullDisplayName"`
	Result            *string     `json:"result"`
	Duration          *int64      `json:"duration"`
	EstimatedDuration *int64      `json:"estimatedDuration"`
	Timestamp         *int64      `json:"timestamp"`
	Actions           []Action    `json:"actions"`
	ChangeSet         *ChangeSet  `json:"changeSet"`
	ChangeSets        []ChangeSet `json:"changeSets"`
}

// Action is the union of the build actions that carry data we read.
type Action struct {
	Class             string    `json:"_class"`
	FailCount         *int      `json:"failCount"`
	SkipCount         *int      `json:"skipCount"`
	TotalCount        *int      `json:"totalCount"`
	LastBuiltRevision *Revision `json:"lastBuiltRevision"`
}

// Revision is the git revision recorded by the BuildData action.
type Revision struct {
	SHA1 *string `json:"SHA1"`
}

// ChangeSet lists the commits of a build.
type ChangeSet struct {
	Items []ChangeItem `json:"items"`
}

// ChangeItem is one commit of a change set.
type ChangeItem struct {
	CommitID *string `json:"commitId"`
	Date     *string `json:"date"`
}

// Source is the upstream CI API.
type Source interface {
	Jobs(ctx context.Context) ([]JobRef, error)
	JobInfo(ctx context.Context, fullName string) (*Job, error)
	// TestReport returns nil, nil when the build has no test report.
	TestReport(ctx context.Context, fullName string, number int) (*TestReport, error)
}

// Client is the Jenkins implementation of Source.
type Client struct {
	http *upstream.Client
}

// NewClient wraps an upstream client.
func NewClient(hc *upstream.Client) *Client {
	return &Client{http: hc}
}

// Jobs lists the top-level jobs of the server.
func (c *Client) Jobs(ctx context.Context) ([]JobRef, error) {
	var resp struct {
		Jobs []JobRef `json:"jobs"`
	}
	query := url.Values{"tree": {"jobs[name,fullName,url,_class]"}}
	if err := c.http.GetJSON(ctx, "api/json", query, &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

// JobInfo fetches a job with its builds (depth=2).
func (c *Client) JobInfo(ctx context.Context, fullName string) (*Job, error) {
	var job Job
	if err := c.http.GetJSON(ctx, JobPath(fullName)+"/api/json", url.Values{"depth": {"2"}}, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// TestReport fetches the test report of a build (depth=0).
func (c *Client) TestReport(ctx context.Context, fullName string, number int) (*TestReport, error) {
	var report TestReport
	path := JobPath(fullName) + "/" + strconv.Itoa(number) + "/testReport/api/json"
	found, err := c.http.GetJSONOptional(ctx, path, url.Values{"depth": {"0"}}, &report)
	if err != nil || !found {
		return nil, err
	}
	return &report, nil
}

// JobPath turns a folder/job full name into job/folder/job/name.
func JobPath(fullName string) string {
	parts := strings.Split(strings.Trim(fullName, "/"), "/")
	var b strings.Builder
	for i, p := range parts {
		if i > 0 {
			b.WriteByte('/')
		}
		b.WriteString("job/")
		b.WriteString(p)
	}
	return b.String()
}
