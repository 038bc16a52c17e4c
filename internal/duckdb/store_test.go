package duckdb

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/regionmap/internal/classify"
	"github.com/inodb/regionmap/internal/region"
)

func openInMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func counts(pairs map[region.Category]int) classify.Counts {
	c := classify.NewCounts()
	for cat, n := range pairs {
		c[cat] = n
	}
	return c
}

// --- Result store tests (DuckDB) ---

func TestOpen_ReopensExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "runs.duckdb")

	s, err := Open(path)
	require.NoError(t, err)
	r, err := s.RecordRun(Run{Assembly: "GRCh38", Precedence: "feature"}, nil, nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	runs, err := s.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, r.ID, runs[0].ID)
}

func TestRecordRun(t *testing.T) {
	s := openInMemory(t)

	r, err := s.RecordRun(Run{Annotation: "GRCh38.gff", Variants: "clinvar.vcf", Assembly: "GRCh38", Precedence: "feature"}, nil, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, r.ID)
	assert.False(t, r.CreatedAt.IsZero())

	runs, err := s.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, r.ID, runs[0].ID)
	assert.Equal(t, "clinvar.vcf", runs[0].Variants)
	assert.Equal(t, "feature", runs[0].Precedence)
}

func TestRecordRun_CountsAndTotals(t *testing.T) {
	s := openInMemory(t)

	written := []ChromosomeCounts{
		{Label: "21", Accession: "NC_000021.9", Counts: counts(map[region.Category]int{region.CDS: 2, region.Intron: 1, region.Unmapped: 2})},
		{Label: "22", Accession: "NC_000022.11", Counts: counts(map[region.Category]int{region.Intergenic: 4})},
	}
	r, err := s.RecordRun(Run{Assembly: "GRCh38"}, written, nil)
	require.NoError(t, err)

	got, err := s.LookupCounts(r.ID)
	require.NoError(t, err)
	assert.Equal(t, written, got)

	totals, err := s.CategoryTotals(r.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, totals[region.CDS])
	assert.Equal(t, 4, totals[region.Intergenic])
	assert.Equal(t, 9, totals.Total())

	other, err := s.LookupCounts("no-such-run")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestRecordRun_Classifications(t *testing.T) {
	s := openInMemory(t)

	cls := []Classifications{{
		Label:      "1",
		Positions:  []int64{500, 1050, 1300, 4900, 6000},
		Categories: []region.Category{region.Unmapped, region.CDS, region.Intron, region.CDS, region.Unmapped},
	}}
	r, err := s.RecordRun(Run{Assembly: "GRCh38"}, nil, cls)
	require.NoError(t, err)

	cds, err := s.PositionsIn(r.ID, "1", region.CDS)
	require.NoError(t, err)
	assert.Equal(t, []int64{1050, 4900}, cds)

	exon, err := s.PositionsIn(r.ID, "1", region.Exon)
	require.NoError(t, err)
	assert.Empty(t, exon)
}

func rowCount(t *testing.T, s *Store, table string) int {
	t.Helper()
	var n int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM `+table).Scan(&n))
	return n
}

func TestRecordRun_FailureLeavesNothing(t *testing.T) {
	s := openInMemory(t)

	written := []ChromosomeCounts{{Label: "1", Accession: "NC_000001.11", Counts: counts(map[region.Category]int{region.CDS: 1})}}
	cls := []Classifications{
		{Label: "1", Positions: []int64{1050}, Categories: []region.Category{region.CDS}},
		{Label: "2", Positions: []int64{250, 300}, Categories: []region.Category{region.Gene}},
	}
	_, err := s.RecordRun(Run{Assembly: "GRCh38"}, written, cls)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chromosome 2")

	runs, err := s.Runs()
	require.NoError(t, err)
	assert.Empty(t, runs)
	assert.Zero(t, rowCount(t, s, "chromosome_counts"))
	assert.Zero(t, rowCount(t, s, "variant_regions"))
}

func TestDeleteRun(t *testing.T) {
	s := openInMemory(t)

	written := []ChromosomeCounts{{Label: "1", Accession: "NC_000001.11", Counts: counts(map[region.Category]int{region.CDS: 1})}}
	cls := []Classifications{{Label: "1", Positions: []int64{1050}, Categories: []region.Category{region.CDS}}}
	keep, err := s.RecordRun(Run{Assembly: "GRCh38"}, written, cls)
	require.NoError(t, err)
	drop, err := s.RecordRun(Run{Assembly: "GRCh38"}, written, cls)
	require.NoError(t, err)

	require.NoError(t, s.DeleteRun(drop.ID))
	require.NoError(t, s.DeleteRun("no-such-run"))

	runs, err := s.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, keep.ID, runs[0].ID)
	assert.Equal(t, 6, rowCount(t, s, "chromosome_counts"))
	assert.Equal(t, 1, rowCount(t, s, "variant_regions"))
}

// --- Tiling cache tests (gob) ---

func TestTilingCacheWriteAndLoad(t *testing.T) {
	tc := NewTilingCache(t.TempDir())

	tilings := map[string]region.Tiling{
		"21": {
			{Chrom: "NC_000021.9", Category: region.CDS, Start: 1000, End: 1150},
			{Chrom: "NC_000021.9", Category: region.Intron, Start: 1151, End: 4799},
		},
		"22": {},
	}
	key := TilingKey{Annotation: FileFingerprint{Size: 1000, ModTime: time.Now()}, Assembly: "GRCh38"}
	require.NoError(t, tc.Write(tilings, key))

	got, err := tc.Load()
	require.NoError(t, err)
	require.Len(t, got["21"], 2)
	assert.Equal(t, tilings["21"], got["21"])
}

func TestTilingCacheValidation(t *testing.T) {
	tc := NewTilingCache(t.TempDir())

	now := time.Now()
	key := TilingKey{
		Annotation: FileFingerprint{Size: 1000, ModTime: now},
		Precedence: region.PrecedenceFeature,
		Assembly:   "GRCh38",
	}

	// No cache yet → invalid
	assert.False(t, tc.Valid(key))

	require.NoError(t, tc.Write(map[string]region.Tiling{}, key))
	assert.True(t, tc.Valid(key))

	sameAssembly := key
	sameAssembly.Assembly = "grch38"
	assert.True(t, tc.Valid(sameAssembly), "assembly names are case-insensitive")

	stale := map[string]func(*TilingKey){
		"precedence": func(k *TilingKey) { k.Precedence = region.PrecedenceProbe },
		"size":       func(k *TilingKey) { k.Annotation.Size = 9999 },
		"modtime":    func(k *TilingKey) { k.Annotation.ModTime = now.Add(time.Hour) },
		"assembly":   func(k *TilingKey) { k.Assembly = "GRCh37" },
		"strict":     func(k *TilingKey) { k.Strict = true },
	}
	for name, change := range stale {
		changed := key
		change(&changed)
		assert.False(t, tc.Valid(changed), name)
	}

	tc.Clear()
	assert.False(t, tc.Valid(key))
}

func TestStatFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "annotation.gff")
	require.NoError(t, os.WriteFile(path, []byte("##gff-version 3\n"), 0644))

	fp, err := StatFile(path)
	require.NoError(t, err)
	assert.Equal(t, int64(16), fp.Size)
	assert.Equal(t, path, fp.Path)

	_, err = StatFile(filepath.Join(t.TempDir(), "missing.gff"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestTilingCacheValid_IgnoresPath(t *testing.T) {
	tc := NewTilingCache(t.TempDir())
	key := TilingKey{Annotation: FileFingerprint{Path: "/data/a.gff", Size: 10, ModTime: time.Now()}, Assembly: "GRCh38"}
	require.NoError(t, tc.Write(map[string]region.Tiling{}, key))

	moved := key
	moved.Annotation.Path = "/archive/a.gff"
	assert.True(t, tc.Valid(moved))
}
