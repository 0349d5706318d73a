package archive

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/huangsam/pra/internal/table"
	"github.com/huangsam/pra/schema"
)

// Status scans every dataset directory and reports archive and pending
// staging files per entity. Unreadable files are reported with zero rows.
func Status(dataDir string, layout Layout) []schema.DatasetStatus {
	result := make([]schema.DatasetStatus, 0, len(layout.Datasets))
	for _, ds := range layout.Datasets {
		dir := DatasetDir(dataDir, ds)
		status := schema.DatasetStatus{Dataset: ds.Name, Dir: dir, Entities: []schema.ArchiveStatus{}}

		entries, err := os.ReadDir(dir)
		if err != nil {
			result = append(result, status)
			continue
		}
		status.Exists = true

		byEntity := map[string]*schema.ArchiveStatus{}
		get := func(entity string) *schema.ArchiveStatus {
			if s, ok := byEntity[entity]; ok {
				return s
			}
			s := &schema.ArchiveStatus{Dataset: ds.Name, Entity: entity}
			byEntity[entity] = s
			return s
		}

		for _, e := range entries {
			name := e.Name()
			if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, schema.CSVExt) {
				continue
			}
			path := filepath.Join(dir, name)
			info, err := e.Info()
			if err != nil {
				continue
			}
			rows, _ := table.CountCSVRows(path)
			s := get(EntityName(name))

			if strings.HasSuffix(name, schema.StagingSuffix+schema.CSVExt) {
				s.Pending = true
				s.StagingRows = rows
				continue
			}
			s.ArchiveRows = rows
			s.ArchiveBytes = info.Size()
			s.ModifiedAt = info.ModTime().UTC()
		}

		names := make([]string, 0, len(byEntity))
		for name := range byEntity {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			status.Entities = append(status.Entities, *byEntity[name])
		}
		result = append(result, status)
	}
	return result
}
