package duckdb

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/inodb/regionmap/internal/region"
)

// TilingCache manages gob-serialized tilings on disk:
//
//	{dir}/tilings.gob       (tilings by chromosome label)
//	{dir}/tilings.gob.meta  (the TilingKey the tilings were built for)
type TilingCache struct {
	dir string
}

// NewTilingCache creates a tiling cache for the given directory.
func NewTilingCache(dir string) *TilingCache {
	return &TilingCache{dir: dir}
}

func (tc *TilingCache) gobPath() string {
	return filepath.Join(tc.dir, "tilings.gob")
}

func (tc *TilingCache) metaPath() string {
	return filepath.Join(tc.dir, "tilings.gob.meta")
}

// TilingKey holds every input that shapes a cached tiling. Tilings are
// stored by chromosome label, and the labels come from the assembly table.
type TilingKey struct {
	Annotation FileFingerprint
	Precedence region.Precedence
	Assembly   string
	Strict     bool // annotation loaded in strict mode
}

func (k TilingKey) fields() [][2]string {
	return [][2]string{
		{"precedence", k.Precedence.String()},
		{"assembly", strings.ToUpper(k.Assembly)},
		{"strict", strconv.FormatBool(k.Strict)},
	}
}

// Valid checks whether the cached tilings were built for key.
func (tc *TilingCache) Valid(key TilingKey) bool {
	meta, err := tc.readMeta()
	if err != nil {
		return false
	}
	if !key.Annotation.matches(meta, "annotation") {
		return false
	}
	for _, kv := range key.fields() {
		if meta[kv[0]] != kv[1] {
			return false
		}
	}

	_, err = os.Stat(tc.gobPath())
	return err == nil
}

// Load reads the cached tilings keyed by chromosome label.
func (tc *TilingCache) Load() (map[string]region.Tiling, error) {
	f, err := os.Open(tc.gobPath())
	if err != nil {
		return nil, fmt.Errorf("open tiling cache: %w", err)
	}
	defer f.Close()

	var data map[string]region.Tiling
	if err := gob.NewDecoder(f).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode tiling cache: %w", err)
	}
	return data, nil
}

// Write serializes the tilings to disk.
func (tc *TilingCache) Write(tilings map[string]region.Tiling, key TilingKey) error {
	if err := os.MkdirAll(tc.dir, 0755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	f, err := os.Create(tc.gobPath())
	if err != nil {
		return fmt.Errorf("create tiling cache: %w", err)
	}

	if err := gob.NewEncoder(f).Encode(tilings); err != nil {
		f.Close()
		os.Remove(tc.gobPath())
		return fmt.Errorf("encode tiling cache: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close tiling cache: %w", err)
	}

	return tc.writeMeta(key)
}

// Clear removes the cached tiling files.
func (tc *TilingCache) Clear() {
	os.Remove(tc.gobPath())
	os.Remove(tc.metaPath())
}

func (tc *TilingCache) writeMeta(key TilingKey) error {
	var b strings.Builder
	for _, kv := range append(key.Annotation.metaFields("annotation"), key.fields()...) {
		fmt.Fprintf(&b, "%s=%s\n", kv[0], kv[1])
	}
	fmt.Fprintf(&b, "created_at=%s\n", time.Now().UTC().Format(time.RFC3339))
	return os.WriteFile(tc.metaPath(), []byte(b.String()), 0644)
}

func (tc *TilingCache) readMeta() (map[string]string, error) {
	data, err := os.ReadFile(tc.metaPath())
	if err != nil {
		return nil, err
	}

	meta := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		if k, v, ok := strings.Cut(line, "="); ok {
			meta[k] = v
		}
	}
	return meta, nil
}
