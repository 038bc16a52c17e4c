package duckdb

import (
	"os"
	"strconv"
	"time"
)

// FileFingerprint identifies an input file by size and modification time,
// so a cached tiling is rebuilt when the annotation changes on disk.
type FileFingerprint struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// StatFile fingerprints the file at path.
func StatFile(path string) (FileFingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileFingerprint{}, err
	}
	return FileFingerprint{Path: path, Size: info.Size(), ModTime: info.ModTime()}, nil
}

// metaFields renders the fingerprint as key=value pairs under prefix.
// The path is informational and not compared.
func (fp FileFingerprint) metaFields(prefix string) [][2]string {
	return [][2]string{
		{prefix + "_path", fp.Path},
		{prefix + "_size", strconv.FormatInt(fp.Size, 10)},
		{prefix + "_modtime", fp.ModTime.UTC().Format(time.RFC3339Nano)},
	}
}

// matches reports whether meta was written for the same file content.
func (fp FileFingerprint) matches(meta map[string]string, prefix string) bool {
	for _, kv := range fp.metaFields(prefix)[1:] {
		if meta[kv[0]] != kv[1] {
			return false
		}
	}
	return true
}
