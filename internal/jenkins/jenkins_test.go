package jenkins

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/huangsam/pra/internal/contract"
	"github.com/huangsam/pra/internal/upstream"
	"github.com/huangsam/pra/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestExtractTestDataNil(t *testing.T) {
	d, rows := ExtractTestData(nil)
	assert.Nil(t, d)
	assert.Nil(t, rows)
}

func TestExtractTestDataFlat(t *testing.T) {
	report := &TestReport{
		Class:    "hudson.tasks.junit.TestResult",
		Duration: ptr(1.5),
		Suites: []Suite{
			{Name: "org.apache.foo.BarTest", Cases: []Case{
				{Name: "testA", Duration: ptr(0.5), Status: ptr("PASSED")},
				{Name: "testB", Status: ptr("FAILED")},
			}},
			{Name: "NoPackage", Cases: []Case{{Name: "testC"}}},
		},
	}

	d, rows := ExtractTestData(report)
	require.NotNil(t, d)
	assert.Equal(t, 1.5, *d)
	require.Len(t, rows, 3)
	assert.Equal(t, TestRow{Package: "org.apache.foo", Class: "BarTest", Case: "testA", Duration: ptr(0.5), Status: ptr("PASSED")}, rows[0])
	assert.Equal(t, "", rows[2].Package)
	assert.Equal(t, "NoPackage", rows[2].Class)
}

func TestExtractTestDataAggregate(t *testing.T) {
	child := func(d *float64, cases int) ChildReport {
		suite := Suite{Name: "a.B"}
		for i := range cases {
			suite.Cases = append(suite.Cases, Case{Name: fmt.Sprintf("t%d", i)})
		}
		return ChildReport{Result: &TestReport{Class: "hudson.tasks.junit.TestResult", Duration: d, Suites: []Suite{suite}}}
	}
	report := &TestReport{
		Class:        "hudson.maven.reporters.SurefireAggregatedReport",
		ChildReports: []ChildReport{child(ptr(3.0), 2), child(nil, 1)},
	}

	d, rows := ExtractTestData(report)
	require.NotNil(t, d)
	assert.Equal(t, 3.0, *d)
	assert.Len(t, rows, 3)
}

func TestExtractTestDataUnrecognized(t *testing.T) {
	d, rows := ExtractTestData(&TestReport{Class: "com.example.Weird"})
	assert.Nil(t, d)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestReportKind(t *testing.T) {
	assert.Equal(t, Flat, (&TestReport{Class: "hudson.tasks.junit.TestResult"}).Kind())
	assert.Equal(t, Aggregate, (&TestReport{Class: "SurefireAggregatedReport"}).Kind())
	assert.Equal(t, Unrecognized, (&TestReport{}).Kind())
	assert.Equal(t, "aggregate", Aggregate.String())
}

func TestBuildRow(t *testing.T) {
	build := Build{
		ID: "42", Number: 42,
		Result:            ptr("SUCCESS"),
		Duration:          ptr(int64(1000)),
		EstimatedDuration: ptr(int64(900)),
		Timestamp:         ptr(int64(1577872800000)),
		Actions: []Action{
			{},
			{Class: "hudson.plugins.git.util.BuildData", LastBuiltRevision: &Revision{SHA1: ptr("deadbeef")}},
		},
		ChangeSet: &ChangeSet{Items: []ChangeItem{{CommitID: ptr("c1"), Date: ptr("2020-01-01 10:00:00 +0000")}}},
	}
	report := &TestReport{
		Class:      "hudson.tasks.junit.TestResult",
		Duration:   ptr(2.5),
		FailCount:  ptr(1),
		SkipCount:  ptr(2),
		TotalCount: ptr(10),
	}

	row := BuildRow("job-a", build, report)
	require.Len(t, row, len(BuildColumns))
	assert.Equal(t, schema.Row{
		"job-a", int64(42), "SUCCESS", int64(1000), int64(900),
		time.Date(2020, 1, 1, 10, 0, 0, 0, time.UTC),
		"deadbeef", "c1", "2020-01-01 10:00:00 +0000", int64(1),
		int64(1), int64(7), int64(2), 2.5,
	}, row)
}

func TestBuildRowWithoutReportOrCommits(t *testing.T) {
	row := BuildRow("job-a", Build{ID: "7"}, nil)
	require.Len(t, row, len(BuildColumns))
	assert.Equal(t, int64(7), row[1])
	assert.Nil(t, row[2])
	assert.Nil(t, row[7])
	assert.Equal(t, int64(0), row[9])
	for _, i := range []int{10, 11, 12, 13} {
		assert.Nil(t, row[i], "column %s", BuildColumns[i].Name)
	}
}

func TestBuildRowPassCountAndMultipleCommits(t *testing.T) {
	build := Build{
		Number: 3,
		ChangeSets: []ChangeSet{
			{Items: []ChangeItem{{CommitID: ptr("x")}, {CommitID: ptr("y")}, {CommitID: ptr("x")}}},
		},
	}
	report := &TestReport{Class: "TestResult", FailCount: ptr(0), SkipCount: ptr(0), PassCount: ptr(5)}

	row := BuildRow("j", build, report)
	assert.Equal(t, "x", row[7])
	assert.Nil(t, row[8])
	assert.Equal(t, int64(2), row[9])
	assert.Equal(t, int64(5), row[11])
}

func TestTestRows(t *testing.T) {
	report := &TestReport{Class: "TestResult", Suites: []Suite{{Name: "p.C", Cases: []Case{{Name: "t", Duration: ptr(0.1), Status: ptr("PASSED")}}}}}
	rows := TestRows("j", 9, report)
	assert.Equal(t, []schema.Row{{"j", int64(9), "p", "C", "t", 0.1, "PASSED"}}, rows)
	assert.Empty(t, TestRows("j", 9, nil))
}

func TestMatchJobs(t *testing.T) {
	jobs := []JobRef{{Name: "Commons-Lang"}, {Name: "commons-io"}, {Name: "hadoop"}, {Name: "lang-tools"}}

	assert.Equal(t, []JobRef{{Name: "Commons-Lang"}, {Name: "lang-tools"}}, MatchJobs(jobs, "lang"))
	assert.Len(t, MatchJobs(jobs, "COMMONS"), 2)
	assert.Empty(t, MatchJobs(jobs, "[bad"))
}

func TestSkipReason(t *testing.T) {
	assert.NotEmpty(t, SkipReason(&Job{Class: "com.cloudbees.hudson.plugins.folder.Folder"}))
	assert.NotEmpty(t, SkipReason(&Job{Class: "org.jenkinsci.plugins.workflow.multibranch.WorkflowMultiBranchProject"}))
	assert.NotEmpty(t, SkipReason(&Job{Class: "hudson.model.FreeStyleProject", SCM: &SCM{Class: "hudson.scm.NullSCM"}}))
	assert.Empty(t, SkipReason(&Job{Class: "hudson.model.FreeStyleProject", SCM: &SCM{Class: "hudson.plugins.git.GitSCM"}}))
}

func TestJobPath(t *testing.T) {
	assert.Equal(t, "job/a", JobPath("a"))
	assert.Equal(t, "job/a/job/b", JobPath("a/b"))
}

func TestReadProjects(t *testing.T) {
	path := filepath.Join(t.TempDir(), "projects.txt")
	require.NoError(t, os.WriteFile(path, []byte("commons-lang\n\n  hadoop  \n"), 0o644))

	projects, err := ReadProjects(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"commons-lang", "hadoop"}, projects)

	_, err = ReadProjects(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func newJenkinsServer(t *testing.T) *Client {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/json", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "jobs[name,fullName,url,_class]", r.URL.Query().Get("tree"))
		_, _ = fmt.Fprint(w, `{"jobs":[{"name":"lang-build","fullName":"lang-build","_class":"hudson.model.FreeStyleProject"},
			{"name":"other","fullName":"other"}]}`)
	})
	mux.HandleFunc("/job/lang-build/api/json", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("depth"))
		job := Job{
			Class: "hudson.model.FreeStyleProject", Name: "lang-build", FullName: "lang-build",
			Builds: []Build{
				{ID: "2", Number: 2, Result: ptr("FAILURE")},
				{ID: "1", Number: 1, Result: ptr("SUCCESS")},
			},
		}
		_ = json.NewEncoder(w).Encode(job)
	})
	mux.HandleFunc("/job/lang-build/2/testReport/api/json", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "0", r.URL.Query().Get("depth"))
		_, _ = fmt.Fprint(w, `{"_class":"hudson.tasks.junit.TestResult","duration":1.0,"failCount":1,"skipCount":0,"passCount":1,
			"suites":[{"name":"org.x.T","cases":[{"name":"a","duration":0.5,"status":"PASSED"},{"name":"b","duration":0.5,"status":"FAILED"}]}]}`)
	})
	mux.HandleFunc("/job/lang-build/1/testReport/api/json", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	hc, err := upstream.New("jenkins", srv.URL, 5*time.Second, 0)
	require.NoError(t, err)
	return NewClient(hc)
}

func TestFetchJobEndToEnd(t *testing.T) {
	f := &Fetcher{Source: newJenkinsServer(t), OutputDir: t.TempDir()}
	ctx := context.Background()

	refs, err := f.Discover(ctx, "LANG")
	require.NoError(t, err)
	require.Len(t, refs, 1)

	outcomes, err := f.FetchJob(ctx, refs[0])
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.Equal(t, 2, outcomes[0].RowsOut)
	assert.Equal(t, 2, outcomes[1].RowsOut)

	builds, err := os.ReadFile(f.StagingPath(BuildsDataset, "lang-build"))
	require.NoError(t, err)
	assert.Equal(t,
		"job,build_number,result,duration,estimated_duration,timestamp,revision,commit_id,commit_date,commit_count,fail_count,pass_count,skip_count,total_test_duration\n"+
			"lang-build,2,FAILURE,,,,,,,0,1,1,0,1\n"+
			"lang-build,1,SUCCESS,,,,,,,0,,,,\n", string(builds))

	tests, err := os.ReadFile(filepath.Join(f.OutputDir, "jenkins_tests", "lang-build_staging.csv"))
	require.NoError(t, err)
	assert.Equal(t,
		"job,build_number,package,class,case_name,duration,status\n"+
			"lang-build,2,org.x,T,a,0.5,PASSED\n"+
			"lang-build,2,org.x,T,b,0.5,FAILED\n", string(tests))
}

type folderSource struct{}

func (folderSource) Jobs(context.Context) ([]JobRef, error) { return nil, nil }
func (folderSource) JobInfo(_ context.Context, name string) (*Job, error) {
	return &Job{Class: "com.cloudbees.hudson.plugins.folder.Folder", FullName: name}, nil
}
func (folderSource) TestReport(context.Context, string, int) (*TestReport, error) { return nil, nil }

func TestFetchJobSkipsFolders(t *testing.T) {
	f := &Fetcher{Source: folderSource{}, OutputDir: t.TempDir()}
	outcomes, err := f.FetchJob(context.Background(), JobRef{Name: "folder"})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, schema.ActionSkip, outcomes[0].Action)
}

type failingSource struct{ folderSource }

func (failingSource) JobInfo(context.Context, string) (*Job, error) {
	return nil, &contract.SourceError{Source: "jenkins", Path: "/job/x/api/json", Status: 500}
}

func TestFetchJobPropagatesSourceError(t *testing.T) {
	f := &Fetcher{Source: failingSource{}, OutputDir: t.TempDir()}
	_, err := f.FetchJob(context.Background(), JobRef{Name: "x"})
	assert.ErrorIs(t, err, contract.ErrSourceUnavailable)
}
