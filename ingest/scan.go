package ingest

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// DefaultExtension is the document extension imported when none is configured.
const DefaultExtension = ".pdf"

// MonthFolderInfo describes one immediate child of a year folder.
// Month is 1..12, or 0 when no month could be inferred from the name.
type MonthFolderInfo struct {
	Name     string
	Path     string
	Month    int
	DocCount int
}

// YearFolderPreview is the result of scanning a year folder prior to import.
type YearFolderPreview struct {
	FolderName string
	Path       string
	Year       int // 0 when the folder name carries no year
	RootDocs   int
	Folders    []MonthFolderInfo
	TotalDocs  int
}

var yearPattern = regexp.MustCompile(`\b(20\d{2})\b`)

// Leading month token: an optional year-plus-separator prefix, then a 1-2 digit
// number bounded by a separator, a letter or the end of the name.
var leadingMonthPattern = regexp.MustCompile(`^(?:20\d{2}[\s._-])?(\d{1,2})(?:[^0-9]|$)`)

// DetectYear finds the first four-digit 20xx token anywhere in a folder name.
func DetectYear(folderName string) (int, bool) {
	m := yearPattern.FindString(folderName)
	if m == "" {
		return 0, false
	}
	y, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return y, true
}

// DetectMonth infers a month number from a folder name. A leading numeric token
// wins when it parses into 1..12; otherwise the lower-cased name is probed for
// month names in fixed calendar order (see monthNames).
func DetectMonth(folderName string) (int, bool) {
	if m := leadingMonthPattern.FindStringSubmatch(folderName); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n >= 1 && n <= 12 {
			return n, true
		}
	}
	lower := strings.ToLower(folderName)
	for i, mn := range monthNames {
		if strings.Contains(lower, mn.full) || strings.Contains(lower, mn.abbr) {
			return i + 1, true
		}
	}
	return 0, false
}

// ScanYearFolder inspects a year folder and previews what an import would
// cover: the detected year, per-child-folder month and document counts, and
// documents lying directly in the root. Only immediate children are listed.
// Unreadable sub-folders degrade their count to 0 instead of failing the scan.
func ScanYearFolder(path string, ext string) (*YearFolderPreview, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	ext = normalizeExt(ext)

	p := &YearFolderPreview{FolderName: filepath.Base(path), Path: path}
	if y, ok := DetectYear(p.FolderName); ok {
		p.Year = y
	}
	for _, e := range entries {
		if e.IsDir() {
			sub := filepath.Join(path, e.Name())
			info := MonthFolderInfo{Name: e.Name(), Path: sub, DocCount: countDocuments(sub, ext)}
			if m, ok := DetectMonth(e.Name()); ok {
				info.Month = m
			}
			p.Folders = append(p.Folders, info)
			continue
		}
		if hasExt(e.Name(), ext) {
			p.RootDocs++
		}
	}

	// Month order, folders without a month last, ties by encounter order.
	sort.SliceStable(p.Folders, func(i, j int) bool {
		return monthSortKey(p.Folders[i].Month) < monthSortKey(p.Folders[j].Month)
	})

	p.TotalDocs = p.RootDocs
	for _, f := range p.Folders {
		p.TotalDocs += f.DocCount
	}
	return p, nil
}

func monthSortKey(m int) int {
	if m == 0 {
		return 13
	}
	return m
}

func countDocuments(dir string, ext string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() && hasExt(e.Name(), ext) {
			n++
		}
	}
	return n
}

func hasExt(name string, ext string) bool {
	return strings.EqualFold(filepath.Ext(name), ext)
}

func normalizeExt(ext string) string {
	ext = strings.TrimSpace(ext)
	if ext == "" {
		return DefaultExtension
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
