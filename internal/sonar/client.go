// Package sonar collects code-quality metric histories from a SonarCloud
// server and turns them into per-project staging tables.
package sonar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/huangsam/pra/internal/catalog"
	"github.com/huangsam/pra/internal/contract"
	"github.com/huangsam/pra/internal/upstream"
	"github.com/huangsam/pra/schema"
)

// Kind selects one of the paginated query endpoints.
type Kind string

// Query kinds.
const (
	KindProjects Kind = "projects"
	KindMetrics  Kind = "metrics"
	KindAnalyses Kind = "analyses"
	KindMeasures Kind = "measures"
)

var endpoints = map[Kind]string{
	KindProjects: "api/components/search",
	KindMetrics:  "api/metrics/search",
	KindAnalyses: "api/project_analyses/search",
	KindMeasures: "api/measures/search_history",
}

// Project is one element of the projects listing.
type Project struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// Analysis is one project analysis. Absent fields are nil.
type Analysis struct {
	Date           *string `json:"date"`
	Revision       *string `json:"revision"`
	ProjectVersion *string `json:"projectVersion"`
}

// HistoryPoint is one dated value of a metric history.
type HistoryPoint struct {
	Date  *string `json:"date"`
	Value *string `json:"value"`
}

// Measure is the history of one metric for a project.
type Measure struct {
	Metric  string         `json:"metric"`
	History []HistoryPoint `json:"history"`
}

// Source is the upstream metrics API.
type Source interface {
	Projects(ctx context.Context) ([]Project, error)
	Metrics(ctx context.Context) ([]catalog.Metric, error)
	Analyses(ctx context.Context, projectKey string) ([]Analysis, error)
	Measures(ctx context.Context, projectKey string, metricKeys []string) ([]Measure, error)
}

// Client is the SonarCloud implementation of Source.
type Client struct {
	http         *upstream.Client
	organization string
}

// NewClient wraps an upstream client. organization scopes the projects query.
func NewClient(hc *upstream.Client, organization string) *Client {
	return &Client{http: hc, organization: organization}
}

// Projects lists all projects of the organization.
func (c *Client) Projects(ctx context.Context) ([]Project, error) {
	params := url.Values{"organization": {c.organization}, "qualifiers": {"TRK"}}
	return collect(ctx, c.http, KindProjects, params, appendAll[Project])
}

// Metrics lists the metric definitions known to the server.
func (c *Client) Metrics(ctx context.Context) ([]catalog.Metric, error) {
	return collect(ctx, c.http, KindMetrics, url.Values{}, appendAll[catalog.Metric])
}

// Analyses lists the analyses of a project.
func (c *Client) Analyses(ctx context.Context, projectKey string) ([]Analysis, error) {
	return collect(ctx, c.http, KindAnalyses, url.Values{"project": {projectKey}}, appendAll[Analysis])
}

// Measures fetches the histories of metricKeys for a project. Histories of the
// same metric on later pages are appended to the first page's entry.
func (c *Client) Measures(ctx context.Context, projectKey string, metricKeys []string) ([]Measure, error) {
	params := url.Values{"component": {projectKey}, "metrics": {strings.Join(metricKeys, ",")}}
	return collect(ctx, c.http, KindMeasures, params, MergeMeasures)
}

// envelope covers the four response shapes.
type envelope struct {
	Paging *struct {
		Total int `json:"total"`
	} `json:"paging"`
	Total      *int            `json:"total"`
	Components json.RawMessage `json:"components"`
	Metrics    json.RawMessage `json:"metrics"`
	Analyses   json.RawMessage `json:"analyses"`
	Measures   json.RawMessage `json:"measures"`
}

func (e *envelope) elements(kind Kind) json.RawMessage {
	switch kind {
	case KindProjects:
		return e.Components
	case KindMetrics:
		return e.Metrics
	case KindAnalyses:
		return e.Analyses
	default:
		return e.Measures
	}
}

// total reads the element count: top-level for metrics, paging for the rest.
func (e *envelope) total(kind Kind) int {
	if kind == KindMetrics {
		if e.Total != nil {
			return *e.Total
		}
		return 0
	}
	if e.Paging != nil {
		return e.Paging.Total
	}
	return 0
}

// collect walks pages p=1,2,... of size schema.PageSize while
// p*PageSize < total, folding each page into the result with merge.
func collect[T any](ctx context.Context, client *upstream.Client, kind Kind, params url.Values, merge func(acc, page []T) []T) ([]T, error) {
	endpoint, ok := endpoints[kind]
	if !ok {
		return nil, fmt.Errorf("illegal info type %q", kind)
	}

	var result []T
	for page := 1; ; page++ {
		query := url.Values{}
		for k, v := range params {
			query[k] = v
		}
		query.Set("p", strconv.Itoa(page))
		query.Set("ps", strconv.Itoa(schema.PageSize))

		var env envelope
		if err := client.GetJSON(ctx, endpoint, query, &env); err != nil {
			return nil, err
		}

		var elems []T
		if raw := env.elements(kind); len(raw) > 0 {
			if err := json.Unmarshal(raw, &elems); err != nil {
				return nil, &contract.SourceError{
					Source: client.Source(), Path: endpoint,
					Err: fmt.Errorf("unexpected %s payload: %w", kind, err),
				}
			}
		}
		result = merge(result, elems)

		if page*schema.PageSize >= env.total(kind) || len(elems) == 0 {
			return result, nil
		}
	}
}

func appendAll[T any](acc, page []T) []T {
	return append(acc, page...)
}

// MergeMeasures folds a page of measures into acc. Each metric's history is
// concatenated in page order; metrics first seen on a later page are appended.
func MergeMeasures(acc, page []Measure) []Measure {
	index := make(map[string]int, len(acc))
	for i, m := range acc {
		index[m.Metric] = i
	}
	for _, m := range page {
		if i, ok := index[m.Metric]; ok {
			acc[i].History = append(acc[i].History, m.History...)
			continue
		}
		index[m.Metric] = len(acc)
		acc = append(acc, Measure{Metric: m.Metric, History: append([]HistoryPoint(nil), m.History...)})
	}
	return acc
}
