package parser

import (
	"fmt"
	"path/filepath"
	"regexp"
	"time"
)

// DefaultSnapshotPattern 默认快照文件名格式: 2024-01-31_Raw_Data.xlsx
const DefaultSnapshotPattern = `^(\d{4}-\d{2}-\d{2})_Raw_Data\.xlsx$`

const snapshotDateLayout = "2006-01-02"

// CompileSnapshotPattern 编译文件名正则，要求至少一个捕获组（日期）
func CompileSnapshotPattern(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		pattern = DefaultSnapshotPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid snapshot pattern %q: %w", pattern, err)
	}
	if re.NumSubexp() < 1 {
		return nil, fmt.Errorf("snapshot pattern %q must capture the date in a group", pattern)
	}
	return re, nil
}

// ExtractSnapshotDate 从文件名提取快照日期
// 只匹配 base name；不匹配时 found 为 false
func ExtractSnapshotDate(name string, re *regexp.Regexp) (date time.Time, found bool, err error) {
	matches := re.FindStringSubmatch(filepath.Base(name))
	if len(matches) < 2 {
		return time.Time{}, false, nil
	}
	date, err = time.Parse(snapshotDateLayout, matches[1])
	if err != nil {
		return time.Time{}, true, fmt.Errorf("invalid snapshot date %q in %s: %w", matches[1], name, err)
	}
	return date, true, nil
}

// ParseSnapshotDate 解析 YYYY-MM-DD
func ParseSnapshotDate(text string) (time.Time, error) {
	date, err := time.Parse(snapshotDateLayout, text)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid snapshot date %q: %w", text, err)
	}
	return date, nil
}
