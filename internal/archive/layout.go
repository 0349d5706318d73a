// Package archive merges staging tables into cumulative, deduplicated archive
// tables and reports the on-disk state of each dataset.
package archive

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"github.com/huangsam/pra/internal/catalog"
	"github.com/huangsam/pra/internal/jenkins"
	"github.com/huangsam/pra/internal/sonar"
	"github.com/huangsam/pra/schema"
	"gopkg.in/yaml.v3"
)

// Layout is the set of data subdirectories the merger walks.
type Layout struct {
	Datasets []schema.Dataset `yaml:"datasets"`
}

// DefaultLayout returns the three built-in datasets with directories relative
// to the data directory. The measures schema holds only the leading columns
// until WithCatalog is applied.
func DefaultLayout() Layout {
	return Layout{Datasets: []schema.Dataset{
		{
			Name:    sonar.Dataset,
			Dir:     "sonar_data/csv",
			Kind:    schema.SonarMeasuresKind,
			Columns: slices.Clone(sonar.LeadingColumns),
		},
		{
			Name:    jenkins.BuildsDataset,
			Dir:     "jenkins_data/" + jenkins.BuildsDataset,
			Kind:    schema.JenkinsBuildsKind,
			Columns: slices.Clone(jenkins.BuildColumns),
		},
		{
			Name:    jenkins.TestsDataset,
			Dir:     "jenkins_data/" + jenkins.TestsDataset,
			Kind:    schema.JenkinsTestsKind,
			Columns: slices.Clone(jenkins.TestColumns),
		},
	}}
}

// LoadLayout reads a YAML layout file. Datasets that omit columns inherit
// the built-in schema of their kind.
func LoadLayout(path string) (Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Layout{}, fmt.Errorf("failed to read layout file: %w", err)
	}

	var layout Layout
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&layout); err != nil {
		return Layout{}, fmt.Errorf("failed to parse layout file %s: %w", path, err)
	}

	defaults := DefaultLayout()
	for i, ds := range layout.Datasets {
		if len(ds.Columns) > 0 {
			continue
		}
		for _, d := range defaults.Datasets {
			if d.Kind == ds.Kind {
				layout.Datasets[i].Columns = slices.Clone(d.Columns)
			}
		}
	}

	if err := layout.Validate(); err != nil {
		return Layout{}, fmt.Errorf("invalid layout file %s: %w", path, err)
	}
	return layout, nil
}

// Validate checks names, directories, kinds and column types.
func (l Layout) Validate() error {
	if len(l.Datasets) == 0 {
		return fmt.Errorf("no datasets configured")
	}
	seen := make(map[string]bool, len(l.Datasets))
	for _, ds := range l.Datasets {
		if ds.Name == "" {
			return fmt.Errorf("dataset without name")
		}
		if seen[ds.Name] {
			return fmt.Errorf("duplicate dataset %q", ds.Name)
		}
		seen[ds.Name] = true
		if ds.Dir == "" {
			return fmt.Errorf("dataset %q has no dir", ds.Name)
		}
		switch ds.Kind {
		case schema.SonarMeasuresKind, schema.JenkinsBuildsKind, schema.JenkinsTestsKind:
		default:
			return fmt.Errorf("dataset %q has unknown kind %q", ds.Name, ds.Kind)
		}
		for _, c := range ds.Columns {
			if _, ok := schema.ValidColumnTypes[c.Type]; !ok {
				return fmt.Errorf("dataset %q column %q has unknown type %q", ds.Name, c.Name, c.Type)
			}
		}
	}
	return nil
}

// WithCatalog appends the catalog columns to every measures dataset that only
// declares the leading columns.
func (l Layout) WithCatalog(cat *catalog.Catalog) Layout {
	out := Layout{Datasets: make([]schema.Dataset, len(l.Datasets))}
	for i, ds := range l.Datasets {
		ds.Columns = slices.Clone(ds.Columns)
		if ds.Kind == schema.SonarMeasuresKind && cat != nil && len(ds.Columns) <= len(sonar.LeadingColumns) {
			ds.Columns = sonar.Columns(cat)
		}
		out.Datasets[i] = ds
	}
	return out
}

// Find returns the dataset with the given name.
func (l Layout) Find(name string) (schema.Dataset, bool) {
	for _, ds := range l.Datasets {
		if ds.Name == name {
			return ds, true
		}
	}
	return schema.Dataset{}, false
}

// Select returns the layout restricted to the named datasets. An empty list
// keeps every dataset.
func (l Layout) Select(names ...string) (Layout, error) {
	if len(names) == 0 {
		return l, nil
	}
	var out Layout
	for _, n := range names {
		ds, ok := l.Find(n)
		if !ok {
			return Layout{}, fmt.Errorf("unknown dataset %q", n)
		}
		out.Datasets = append(out.Datasets, ds)
	}
	return out, nil
}
