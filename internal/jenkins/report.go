package jenkins

import (
	"log/slog"
	"strings"
)

// TestReport is the raw test report resource. Flat reports carry suites;
// aggregated Maven reports carry child reports.
type TestReport struct {
	Class        string        `json:"_class"`
	Duration     *float64      `json:"duration"`
	FailCount    *int          `json:"failCount"`
	SkipCount    *int          `json:"skipCount"`
	PassCount    *int          `json:"passCount"`
	TotalCount   *int          `json:"totalCount"`
	Suites       []Suite       `json:"suites"`
	ChildReports []ChildReport `json:"childReports"`
}

// ChildReport wraps the flat result of one module.
type ChildReport struct {
	Result *TestReport `json:"result"`
}

// Suite is one test class.
type Suite struct {
	Name  string `json:"name"`
	Cases []Case `json:"cases"`
}

// Case is one test case.
type Case struct {
	Name     string   `json:"name"`
	Duration *float64 `json:"duration"`
	Status   *string  `json:"status"`
}

// TestRow is one extracted test case.
type TestRow struct {
	Package  string
	Class    string
	Case     string
	Duration *float64
	Status   *string
}

// ReportKind is the shape of a test report, decided once when it is parsed.
type ReportKind int

// Report shapes.
const (
	Unrecognized ReportKind = iota
	Flat
	Aggregate
)

func (k ReportKind) String() string {
	switch k {
	case Flat:
		return "flat"
	case Aggregate:
		return "aggregate"
	default:
		return "unrecognized"
	}
}

// Kind classifies a report by the last segment of its _class.
func (r *TestReport) Kind() ReportKind {
	switch className(r.Class) {
	case "TestResult":
		return Flat
	case "SurefireAggregatedReport":
		return Aggregate
	default:
		return Unrecognized
	}
}

// className returns the simple name of a fully qualified Java class.
func className(class string) string {
	if i := strings.LastIndexByte(class, '.'); i >= 0 {
		return class[i+1:]
	}
	return class
}

// ExtractTestData returns the total duration and test rows of a report.
// A nil report yields (nil, nil), meaning no report is available. An
// unrecognized shape logs a warning and yields (nil, empty rows).
func ExtractTestData(r *TestReport) (*float64, []TestRow) {
	if r == nil {
		return nil, nil
	}

	switch r.Kind() {
	case Flat:
		return r.Duration, flatRows(r)

	case Aggregate:
		var total *float64
		rows := []TestRow{}
		for _, child := range r.ChildReports {
			if child.Result == nil {
				continue
			}
			d := child.Result.Duration
			if d != nil {
				if total == nil {
					total = new(float64)
				}
				*total += *d
			}
			rows = append(rows, flatRows(child.Result)...)
		}
		return total, rows

	default:
		slog.Warn("unrecognized test report class", "class", r.Class)
		return nil, []TestRow{}
	}
}

// flatRows extracts one row per case. The suite name is split at its last
// "." into package and class.
func flatRows(r *TestReport) []TestRow {
	rows := []TestRow{}
	for _, suite := range r.Suites {
		pkg, class := "", suite.Name
		if i := strings.LastIndexByte(suite.Name, '.'); i >= 0 {
			pkg, class = suite.Name[:i], suite.Name[i+1:]
		}
		for _, c := range suite.Cases {
			rows = append(rows, TestRow{
				Package:  pkg,
				Class:    class,
				Case:     c.Name,
				Duration: c.Duration,
				Status:   c.Status,
			})
		}
	}
	return rows
}
