package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAnnotation = "# seqnames\tfeature\tstarts\tends\n" +
	"NC_000001.11\tgene\t1000\t5000\n" +
	"NC_000001.11\texon\t1000\t1200\n" +
	"NC_000001.11\tCDS\t1000\t1150\n" +
	"NC_000001.11\texon\t4800\t5000\n" +
	"NC_000001.11\tCDS\t4850\t5000\n" +
	"NC_000002.12\tgene\t200\t300\n"

const testVariants = "##fileformat=VCFv4.2\n" +
	"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n" +
	"chr1\t6000\t.\tA\tG\t.\tPASS\t.\n" +
	"chr1\t1050\t.\tC\tT\t.\tPASS\t.\n" +
	"chr1\t500\t.\tG\tA\t.\tPASS\t.\n" +
	"chr1\t1300\t.\tT\tC\t.\tPASS\t.\n" +
	"chr1\t4900\t.\tA\tT\t.\tPASS\t.\n" +
	"chr2\t250\t.\tA\tT\t.\tPASS\t.\n"

const countsHeader = "#Chromosome\tAccession\tCDS\texon\tgene\tintron\tintergenic\tunmapped\tTotal\n"

// fixtures writes the annotation and variant files and isolates the home
// directory so no user config is read.
func fixtures(t *testing.T) (annotation, variants string) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	dir := t.TempDir()
	annotation = filepath.Join(dir, "annotation.tsv")
	variants = filepath.Join(dir, "variants.vcf")
	require.NoError(t, os.WriteFile(annotation, []byte(testAnnotation), 0644))
	require.NoError(t, os.WriteFile(variants, []byte(testVariants), 0644))
	return annotation, variants
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestClassify_EndToEnd(t *testing.T) {
	annotation, variants := fixtures(t)

	out, err := execute(t, "classify", "-a", annotation, "--chrom", "1", variants)
	require.NoError(t, err)
	assert.Equal(t, countsHeader+"1\tNC_000001.11\t2\t0\t0\t1\t0\t2\t5\n", out)
}

func TestClassify_AllChromosomes(t *testing.T) {
	annotation, variants := fixtures(t)

	out, err := execute(t, "classify", "--annotation", annotation, "--workers", "2", variants)
	require.NoError(t, err)
	assert.Equal(t, countsHeader+
		"1\tNC_000001.11\t2\t0\t0\t1\t0\t2\t5\n"+
		"2\tNC_000002.12\t0\t0\t1\t0\t0\t0\t1\n"+
		"all\t-\t2\t0\t1\t1\t0\t2\t6\n", out)
}

func TestClassify_ProbePrecedence(t *testing.T) {
	annotation, variants := fixtures(t)

	out, err := execute(t, "classify", "-a", annotation, "--chrom", "chr1", "--precedence", "probe", variants)
	require.NoError(t, err)
	assert.Equal(t, countsHeader+"1\tNC_000001.11\t0\t0\t3\t0\t0\t2\t5\n", out)
}

func TestClassify_MaxVariants(t *testing.T) {
	annotation, variants := fixtures(t)

	out, err := execute(t, "classify", "-a", annotation, "--chrom", "1", "--max-variants", "2", variants)
	require.NoError(t, err)
	// the two lowest positions, 500 and 1050
	assert.Equal(t, countsHeader+"1\tNC_000001.11\t1\t0\t0\t0\t0\t1\t2\n", out)
}

func TestClassify_ConfigFile(t *testing.T) {
	annotation, variants := fixtures(t)

	cfg := filepath.Join(t.TempDir(), "regionmap.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("annotation: "+annotation+"\nprecedence: probe\n"), 0644))

	out, err := execute(t, "--config", cfg, "classify", "--chrom", "1", variants)
	require.NoError(t, err)
	assert.Contains(t, out, "1\tNC_000001.11\t0\t0\t3\t0\t0\t2\t5\n")
}

func TestClassify_OutputFiles(t *testing.T) {
	annotation, variants := fixtures(t)
	dir := t.TempDir()
	countsPath := filepath.Join(dir, "counts.tsv")
	perVariant := filepath.Join(dir, "regions.tsv")

	out, err := execute(t, "classify", "-a", annotation, "--chrom", "1",
		"-o", countsPath, "--per-variant", perVariant, variants)
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(countsPath)
	require.NoError(t, err)
	assert.Equal(t, countsHeader+"1\tNC_000001.11\t2\t0\t0\t1\t0\t2\t5\n", string(data))

	data, err = os.ReadFile(perVariant)
	require.NoError(t, err)
	assert.Equal(t, "#Chromosome\tPosition\tCategory\n"+
		"1\t500\tunmapped\n"+
		"1\t1050\tCDS\n"+
		"1\t1300\tintron\n"+
		"1\t4900\tCDS\n"+
		"1\t6000\tunmapped\n", string(data))
}

func TestClassify_TilingCache(t *testing.T) {
	annotation, variants := fixtures(t)
	cacheDir := t.TempDir()

	first, err := execute(t, "classify", "-a", annotation, "--cache-dir", cacheDir, variants)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(cacheDir, "tilings.gob"))
	assert.FileExists(t, filepath.Join(cacheDir, "tilings.gob.meta"))

	second, err := execute(t, "classify", "-a", annotation, "--cache-dir", cacheDir, variants)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	rebuilt, err := execute(t, "classify", "-a", annotation, "--cache-dir", cacheDir, "--rebuild-cache", variants)
	require.NoError(t, err)
	assert.Equal(t, first, rebuilt)
	assert.FileExists(t, filepath.Join(cacheDir, "tilings.gob"))

	restricted, err := execute(t, "classify", "-a", annotation, "--cache-dir", cacheDir, "--chrom", "1", variants)
	require.NoError(t, err)
	assert.Equal(t, countsHeader+"1\tNC_000001.11\t2\t0\t0\t1\t0\t2\t5\n", restricted)
}

func TestClassify_TilingCacheKeyedByAssembly(t *testing.T) {
	annotation, variants := fixtures(t)
	cacheDir := t.TempDir()

	fresh, err := execute(t, "classify", "-a", annotation, "--assembly", "GRCh37", variants)
	require.NoError(t, err)

	_, err = execute(t, "classify", "-a", annotation, "--cache-dir", cacheDir, variants)
	require.NoError(t, err)

	cached, err := execute(t, "classify", "-a", annotation, "--assembly", "GRCh37", "--cache-dir", cacheDir, variants)
	require.NoError(t, err)
	assert.Equal(t, fresh, cached)
}

func TestClassify_TilingCacheKeyedByStrict(t *testing.T) {
	annotation, variants := fixtures(t)
	cacheDir := t.TempDir()

	f, err := os.OpenFile(annotation, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("NC_000001.11\tgene\tabc\t9000\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = execute(t, "classify", "-a", annotation, "--cache-dir", cacheDir, variants)
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(cacheDir, "tilings.gob"))

	_, err = execute(t, "classify", "-a", annotation, "--cache-dir", cacheDir, "--strict", variants)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "annotation parse error")
}

func TestClassify_PassOnly(t *testing.T) {
	annotation, variants := fixtures(t)

	filtered := strings.Replace(testVariants, "chr1\t1050\t.\tC\tT\t.\tPASS", "chr1\t1050\t.\tC\tT\t.\tLowQual", 1)
	require.NoError(t, os.WriteFile(variants, []byte(filtered), 0644))

	all, err := execute(t, "classify", "-a", annotation, "--chrom", "1", variants)
	require.NoError(t, err)
	assert.Equal(t, countsHeader+"1\tNC_000001.11\t2\t0\t0\t1\t0\t2\t5\n", all)

	passed, err := execute(t, "classify", "-a", annotation, "--chrom", "1", "--pass-only", variants)
	require.NoError(t, err)
	assert.Equal(t, countsHeader+"1\tNC_000001.11\t1\t0\t0\t1\t0\t2\t4\n", passed)
}

func TestClassify_MAF(t *testing.T) {
	annotation, _ := fixtures(t)

	mafPath := filepath.Join(t.TempDir(), "variants.maf")
	content := "#version 2.4\n" +
		"Hugo_Symbol\tNCBI_Build\tChromosome\tStart_Position\tReference_Allele\tTumor_Seq_Allele2\n" +
		"GENE1\tGRCh38\t1\t1050\tC\tT\n" +
		"GENE1\tGRCh38\t1\t1300\tT\t-\n" +
		"GENE1\tGRCh38\t1\t6000\tA\tG\n"
	require.NoError(t, os.WriteFile(mafPath, []byte(content), 0644))

	out, err := execute(t, "classify", "-a", annotation, "--chrom", "1", mafPath)
	require.NoError(t, err)
	assert.Equal(t, countsHeader+"1\tNC_000001.11\t1\t0\t0\t1\t0\t1\t3\n", out)

	_, err = execute(t, "classify", "-a", annotation, "--format", "bcf", mafPath)
	var uerr *usageError
	assert.ErrorAs(t, err, &uerr)
}

func TestClassify_RecordsRun(t *testing.T) {
	annotation, variants := fixtures(t)
	db := filepath.Join(t.TempDir(), "results.duckdb")

	_, err := execute(t, "classify", "-a", annotation, "--db", db, variants)
	require.NoError(t, err)

	out, err := execute(t, "runs", "--db", db)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	fields := strings.Split(lines[1], "\t")
	require.Len(t, fields, 7)
	runID := fields[0]
	assert.Equal(t, "GRCh38", fields[2])
	assert.Equal(t, "feature", fields[3])
	assert.Equal(t, "6", fields[6])

	out, err = execute(t, "runs", "show", "--db", db, runID)
	require.NoError(t, err)
	assert.Equal(t, countsHeader+
		"1\tNC_000001.11\t2\t0\t0\t1\t0\t2\t5\n"+
		"2\tNC_000002.12\t0\t0\t1\t0\t0\t0\t1\n"+
		"all\t-\t2\t0\t1\t1\t0\t2\t6\n", out)

	out, err = execute(t, "runs", "positions", "--db", db, runID, "chr1", "cds")
	require.NoError(t, err)
	assert.Equal(t, "#Chromosome\tPosition\tCategory\n1\t1050\tCDS\n1\t4900\tCDS\n", out)
}

func TestRunsDelete(t *testing.T) {
	annotation, variants := fixtures(t)
	db := filepath.Join(t.TempDir(), "results.duckdb")

	_, err := execute(t, "classify", "-a", annotation, "--db", db, variants)
	require.NoError(t, err)
	out, err := execute(t, "runs", "--db", db)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	runID := strings.Split(lines[1], "\t")[0]

	_, err = execute(t, "runs", "delete", "--db", db, runID)
	require.NoError(t, err)

	out, err = execute(t, "runs", "--db", db)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 1)

	_, err = execute(t, "runs", "delete", "--db", db)
	var uerr *usageError
	assert.ErrorAs(t, err, &uerr)
}

func TestClassify_Errors(t *testing.T) {
	annotation, variants := fixtures(t)

	tests := []struct {
		name string
		args []string
		code int
	}{
		{"missing variants argument", []string{"classify", "-a", annotation}, ExitUsage},
		{"unknown flag", []string{"classify", "--bogus", variants}, ExitUsage},
		{"bad precedence", []string{"classify", "-a", annotation, "--precedence", "first", variants}, ExitUsage},
		{"bad assembly", []string{"classify", "-a", annotation, "--assembly", "hg17", variants}, ExitUsage},
		{"unknown chromosome", []string{"classify", "-a", annotation, "--chrom", "chr99", variants}, ExitUsage},
		{"no annotation", []string{"classify", variants}, ExitUsage},
		{"missing variants file", []string{"classify", "-a", annotation, filepath.Join(t.TempDir(), "none.vcf")}, ExitError},
		{"missing annotation file", []string{"classify", "-a", filepath.Join(t.TempDir(), "none.gff"), variants}, ExitError},
		{"success", []string{"classify", "-a", annotation, "-o", filepath.Join(t.TempDir(), "out.tsv"), variants}, ExitSuccess},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Reset()
			t.Cleanup(viper.Reset)
			assert.Equal(t, tt.code, run(tt.args))
		})
	}
}

func TestClassify_MixedSequenceNames(t *testing.T) {
	annotation, variants := fixtures(t)

	// chr1 and NC_000001.11 both resolve to chromosome 1
	f, err := os.OpenFile(annotation, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("chr1\tgene\t8000\t9000\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = execute(t, "classify", "-a", annotation, "--chrom", "1", variants)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chromosome 1")
}

func TestTiling(t *testing.T) {
	annotation, _ := fixtures(t)

	out, err := execute(t, "tiling", "-a", annotation, "--chrom", "1")
	require.NoError(t, err)
	assert.Equal(t, "#Chromosome\tStart\tEnd\tCategory\n"+
		"1\t1000\t1150\tCDS\n"+
		"1\t1151\t1200\texon\n"+
		"1\t1201\t4799\tintron\n"+
		"1\t4800\t4849\texon\n"+
		"1\t4850\t5000\tCDS\n", out)
}

func TestTiling_Probe(t *testing.T) {
	annotation, _ := fixtures(t)

	out, err := execute(t, "tiling", "-a", annotation, "--chrom", "1", "--precedence", "probe", "--overlaps")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 7)
	assert.Equal(t, "1\t1000\t1150\tCDS", lines[1])
	assert.Equal(t, "1\t1000\t5000\tgene", lines[3])
}

func TestChroms(t *testing.T) {
	fixtures(t)

	out, err := execute(t, "chroms")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 26)
	assert.Equal(t, "#Chromosome\tAccession", lines[0])
	assert.Equal(t, "1\tNC_000001.11", lines[1])
	assert.Contains(t, lines, "21\tNC_000021.9")
	assert.Equal(t, "MT\tNC_012920.1", lines[25])

	out, err = execute(t, "chroms", "--assembly", "GRCh37")
	require.NoError(t, err)
	assert.Contains(t, out, "21\tNC_000021.8\n")
}

func TestConfigSetGet(t *testing.T) {
	fixtures(t)

	out, err := execute(t, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "No configuration set")

	_, err = execute(t, "config", "set", "workers", "4")
	require.NoError(t, err)
	_, err = execute(t, "config", "set", "precedence", "probe")
	require.NoError(t, err)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(home, ".regionmap.yaml"))

	out, err = execute(t, "config", "get", "workers")
	require.NoError(t, err)
	assert.Equal(t, "4\n", out)

	out, err = execute(t, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "precedence: probe")
	assert.Contains(t, out, "workers: 4")

	_, err = execute(t, "config", "set", "colour", "blue")
	var uerr *usageError
	assert.ErrorAs(t, err, &uerr)

	_, err = execute(t, "config", "set", "workers", "-1")
	assert.ErrorAs(t, err, &uerr)

	_, err = execute(t, "config", "get", "db")
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "regionmap version dev (none) built unknown\n", out)
}

func TestAnnotationURLs(t *testing.T) {
	gff, clinvar, err := annotationURLs("GRCh38")
	require.NoError(t, err)
	assert.Equal(t, "https://ftp.ncbi.nlm.nih.gov/genomes/all/GCF/000/001/405/GCF_000001405.40_GRCh38.p14/GCF_000001405.40_GRCh38.p14_genomic.gff.gz", gff)
	assert.Equal(t, "https://ftp.ncbi.nlm.nih.gov/pub/clinvar/vcf_GRCh38/clinvar.vcf.gz", clinvar)

	gff, _, err = annotationURLs("grch37")
	require.NoError(t, err)
	assert.Contains(t, gff, "GCF_000001405.25_GRCh37.p13")

	_, _, err = annotationURLs("hg19")
	assert.Error(t, err)
}

func TestFindAnnotation(t *testing.T) {
	dir := t.TempDir()
	_, ok := findAnnotation(dir, "GRCh38")
	assert.False(t, ok)

	sub := filepath.Join(dir, "grch38")
	require.NoError(t, os.MkdirAll(sub, 0755))
	want := filepath.Join(sub, "GCF_000001405.40_GRCh38.p14_genomic.gff.gz")
	require.NoError(t, os.WriteFile(want, nil, 0644))

	got, ok := findAnnotation(dir, "GRCh38")
	assert.True(t, ok)
	assert.Equal(t, want, got)

	_, ok = findAnnotation("", "GRCh38")
	assert.False(t, ok)
}
