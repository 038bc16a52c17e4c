package main

import (
	"bufio"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// NCBI RefSeq FTP locations
const (
	ncbiBaseURL    = "https://ftp.ncbi.nlm.nih.gov"
	refseqGRCh38   = "GCF_000001405.40_GRCh38.p14"
	refseqGRCh37   = "GCF_000001405.25_GRCh37.p13"
	annotationGlob = "GCF_*_genomic.gff.gz"
)

// annotationURLs returns the RefSeq GFF and ClinVar VCF URLs for the given
// assembly.
func annotationURLs(assembly string) (gffURL, clinvarURL string, err error) {
	var release, clinvarDir string
	switch strings.ToUpper(assembly) {
	case "GRCH37":
		release, clinvarDir = refseqGRCh37, "vcf_GRCh37"
	case "GRCH38":
		release, clinvarDir = refseqGRCh38, "vcf_GRCh38"
	default:
		return "", "", fmt.Errorf("unsupported assembly %q (want GRCh37 or GRCh38)", assembly)
	}
	gffURL = fmt.Sprintf("%s/genomes/all/GCF/000/001/405/%s/%s_genomic.gff.gz", ncbiBaseURL, release, release)
	clinvarURL = fmt.Sprintf("%s/pub/clinvar/%s/clinvar.vcf.gz", ncbiBaseURL, clinvarDir)
	return gffURL, clinvarURL, nil
}

func newDownloadCmd() *cobra.Command {
	var (
		outputDir string
		gffOnly   bool
	)

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download the RefSeq annotation and ClinVar variants",
		Long: `Download the NCBI RefSeq GFF3 annotation (and the ClinVar VCF) for an
assembly into ~/.regionmap/<assembly>/. classify and tiling use the downloaded
annotation when no --annotation is given.`,
		Example: `  regionmap download
  regionmap download --assembly GRCh37 --gff-only
  regionmap download --output /data/refseq`,
		Args:    cobra.NoArgs,
		PreRunE: bindPreRun("assembly"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDownload(cmd.OutOrStdout(), viper.GetString("assembly"), outputDir, gffOnly)
		},
	}

	cmd.Flags().String("assembly", "GRCh38", "Genome assembly: GRCh37 or GRCh38")
	cmd.Flags().StringVar(&outputDir, "output", "", "Output directory (default: ~/.regionmap/)")
	cmd.Flags().BoolVar(&gffOnly, "gff-only", false, "Only download the annotation (skip ClinVar)")

	return cmd
}

func runDownload(stdout io.Writer, assembly, outputDir string, gffOnly bool) error {
	gffURL, clinvarURL, err := annotationURLs(assembly)
	if err != nil {
		return &usageError{err: err}
	}

	if outputDir == "" {
		outputDir = defaultDataDir()
		if outputDir == "" {
			return fmt.Errorf("cannot determine home directory")
		}
	}
	destDir := filepath.Join(outputDir, strings.ToLower(assembly))
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("create directory %s: %w", destDir, err)
	}

	fmt.Fprintf(stdout, "Downloading RefSeq annotation for %s into %s\n", assembly, destDir)

	f := newFetcher(stdout)
	gffName := path.Base(gffURL)
	sums, err := f.checksums(strings.TrimSuffix(gffURL, gffName) + checksumFile)
	if err != nil {
		logger.Warn("could not fetch checksums, annotation will not be verified", zap.Error(err))
	}
	if err := f.fetch(gffURL, filepath.Join(destDir, gffName), sums[gffName]); err != nil {
		return fmt.Errorf("download annotation: %w", err)
	}

	if !gffOnly {
		if err := f.fetch(clinvarURL, filepath.Join(destDir, path.Base(clinvarURL)), ""); err != nil {
			// Any VCF can be classified, so ClinVar is optional.
			logger.Warn("could not download ClinVar variants", zap.Error(err))
		}
	}

	fmt.Fprintf(stdout, "Done. Classify with:\n  regionmap classify --assembly %s input.vcf\n", assembly)
	return nil
}

// checksumFile is published next to every NCBI assembly's files.
const checksumFile = "md5checksums.txt"

// fetcher downloads files over HTTP, reporting progress to out.
type fetcher struct {
	client *http.Client
	out    io.Writer
}

func newFetcher(out io.Writer) *fetcher {
	// The RefSeq GFF is about 60 MB compressed.
	return &fetcher{client: &http.Client{Timeout: 30 * time.Minute}, out: out}
}

func (f *fetcher) get(url string) (*http.Response, error) {
	resp, err := f.client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: %s", url, resp.Status)
	}
	return resp, nil
}

// checksums fetches an NCBI md5checksums.txt and returns the MD5 per file
// name.
func (f *fetcher) checksums(url string) (map[string]string, error) {
	resp, err := f.get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return parseChecksums(resp.Body)
}

// parseChecksums reads "<md5>  ./<name>" lines.
func parseChecksums(r io.Reader) (map[string]string, error) {
	sums := make(map[string]string)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) != 2 {
			continue
		}
		sums[path.Base(fields[1])] = strings.ToLower(fields[0])
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read checksums: %w", err)
	}
	return sums, nil
}

// fetch downloads url to dest through a temporary file. An existing dest is
// kept. When wantMD5 is set the download must match it.
func (f *fetcher) fetch(url, dest, wantMD5 string) error {
	name := filepath.Base(dest)
	if info, err := os.Stat(dest); err == nil {
		fmt.Fprintf(f.out, "  %s already exists (%s), skipping\n", name, formatSize(info.Size()))
		return nil
	}

	resp, err := f.get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	tmp := dest + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer os.Remove(tmp)

	fmt.Fprintf(f.out, "  %s\n", name)
	sum := md5.New()
	prog := &progress{out: f.out, total: resp.ContentLength}
	_, err = io.Copy(io.MultiWriter(file, sum, prog), resp.Body)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("download %s: %w", name, err)
	}
	prog.finish()

	if got := hex.EncodeToString(sum.Sum(nil)); wantMD5 != "" && got != wantMD5 {
		return fmt.Errorf("%s: md5 %s does not match published %s", name, got, wantMD5)
	}
	if err := os.Rename(tmp, dest); err != nil {
		return fmt.Errorf("rename file: %w", err)
	}
	return nil
}

// progress prints the bytes written to it at most once a second.
type progress struct {
	out     io.Writer
	total   int64
	written int64
	printed time.Time
}

func (p *progress) Write(b []byte) (int, error) {
	p.written += int64(len(b))
	if time.Since(p.printed) < time.Second {
		return len(b), nil
	}
	p.printed = time.Now()
	if p.total > 0 {
		fmt.Fprintf(p.out, "\r    %s / %s (%.1f%%)  ", formatSize(p.written), formatSize(p.total),
			100*float64(p.written)/float64(p.total))
	} else {
		fmt.Fprintf(p.out, "\r    %s  ", formatSize(p.written))
	}
	return len(b), nil
}

func (p *progress) finish() {
	fmt.Fprintf(p.out, "\r    %s done\n", formatSize(p.written))
}

// formatSize formats a byte count with binary units.
func formatSize(n int64) string {
	if n < 1024 {
		return fmt.Sprintf("%d B", n)
	}
	v, units := float64(n)/1024, "KMGTPE"
	i := 0
	for v >= 1024 && i < len(units)-1 {
		v /= 1024
		i++
	}
	return fmt.Sprintf("%.1f %cB", v, units[i])
}

// defaultDataDir returns ~/.regionmap, or "" when there is no home directory.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".regionmap")
}

// findAnnotation looks for a downloaded RefSeq annotation of the assembly
// under dataDir.
func findAnnotation(dataDir, assembly string) (string, bool) {
	if dataDir == "" {
		return "", false
	}
	matches, err := filepath.Glob(filepath.Join(dataDir, strings.ToLower(assembly), annotationGlob))
	if err != nil || len(matches) == 0 {
		return "", false
	}
	return matches[len(matches)-1], true
}

// resolveAnnotation returns file, or the downloaded annotation of the
// assembly when file is empty.
func resolveAnnotation(file, assembly string) (string, error) {
	if file != "" {
		return file, nil
	}
	if found, ok := findAnnotation(defaultDataDir(), assembly); ok {
		logger.Info("using downloaded annotation", zap.String("path", found))
		return found, nil
	}
	return "", usageErrorf("no annotation file: pass --annotation, run 'regionmap download' or 'regionmap config set annotation <path>'")
}
