// Package source 在本地目录中发现带日期的快照文件。
package source

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"invhistory/internal/model"
	"invhistory/internal/parser"
)

// Discover 列出 dir 下文件名匹配 pattern 的快照，按日期升序（同日按文件名）返回。
// 不匹配的文件与子目录被忽略。
func Discover(dir, pattern string) ([]model.SnapshotSource, error) {
	re, err := parser.CompileSnapshotPattern(pattern)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshot directory %s: %w", dir, err)
	}

	var sources []model.SnapshotSource
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		date, found, err := parser.ExtractSnapshotDate(entry.Name(), re)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		sources = append(sources, model.SnapshotSource{
			Location: filepath.Join(dir, entry.Name()),
			Date:     date,
		})
	}

	// ReadDir 已按文件名排序，稳定排序保持同日的文件名顺序
	sort.SliceStable(sources, func(i, j int) bool {
		return sources[i].Date.Before(sources[j].Date)
	})
	return sources, nil
}
