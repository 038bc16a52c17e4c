// Package refseq maps short chromosome labels to RefSeq sequence accessions.
package refseq

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownChromosome is returned for labels without an accession.
var ErrUnknownChromosome = errors.New("unknown chromosome")

// Labels in canonical report order.
var labels = []string{
	"1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11", "12",
	"13", "14", "15", "16", "17", "18", "19", "20", "21", "22",
	"X", "Y", "MT",
}

var grch38 = map[string]string{
	"1":  "NC_000001.11",
	"2":  "NC_000002.12",
	"3":  "NC_000003.12",
	"4":  "NC_000004.12",
	"5":  "NC_000005.10",
	"6":  "NC_000006.12",
	"7":  "NC_000007.14",
	"8":  "NC_000008.11",
	"9":  "NC_000009.12",
	"10": "NC_000010.11",
	"11": "NC_000011.10",
	"12": "NC_000012.12",
	"13": "NC_000013.11",
	"14": "NC_000014.9",
	"15": "NC_000015.10",
	"16": "NC_000016.10",
	"17": "NC_000017.11",
	"18": "NC_000018.10",
	"19": "NC_000019.10",
	"20": "NC_000020.11",
	"21": "NC_000021.9",
	"22": "NC_000022.11",
	"X":  "NC_000023.11",
	"Y":  "NC_000024.10",
	"MT": "NC_012920.1",
}

var grch37 = map[string]string{
	"1":  "NC_000001.10",
	"2":  "NC_000002.11",
	"3":  "NC_000003.11",
	"4":  "NC_000004.11",
	"5":  "NC_000005.9",
	"6":  "NC_000006.11",
	"7":  "NC_000007.13",
	"8":  "NC_000008.10",
	"9":  "NC_000009.11",
	"10": "NC_000010.10",
	"11": "NC_000011.9",
	"12": "NC_000012.11",
	"13": "NC_000013.10",
	"14": "NC_000014.8",
	"15": "NC_000015.9",
	"16": "NC_000016.9",
	"17": "NC_000017.10",
	"18": "NC_000018.9",
	"19": "NC_000019.9",
	"20": "NC_000020.10",
	"21": "NC_000021.8",
	"22": "NC_000022.10",
	"X":  "NC_000023.10",
	"Y":  "NC_000024.9",
	"MT": "NC_012920.1",
}

// Table maps chromosome labels to accessions for one assembly.
type Table struct {
	assembly   string
	accessions map[string]string
	labels     map[string]string // accession -> label
}

// ForAssembly returns the table for GRCh37 or GRCh38 (case-insensitive).
func ForAssembly(assembly string) (*Table, error) {
	var m map[string]string
	switch strings.ToUpper(assembly) {
	case "GRCH38":
		m = grch38
	case "GRCH37":
		m = grch37
	default:
		return nil, fmt.Errorf("unsupported assembly %q (want GRCh37 or GRCh38)", assembly)
	}

	t := &Table{assembly: assembly, accessions: m, labels: make(map[string]string, len(m))}
	for label, acc := range m {
		t.labels[acc] = label
	}
	return t, nil
}

// Assembly returns the assembly name the table was built for.
func (t *Table) Assembly() string {
	return t.assembly
}

// Labels returns the chromosome labels in canonical order.
func (t *Table) Labels() []string {
	out := make([]string, len(labels))
	copy(out, labels)
	return out
}

// Lookup returns the accession for a label such as "21", "chr21" or "chrM".
func (t *Table) Lookup(label string) (string, error) {
	norm := NormalizeLabel(label)
	acc, ok := t.accessions[norm]
	if !ok {
		return "", fmt.Errorf("%s %q: %w", t.assembly, label, ErrUnknownChromosome)
	}
	return acc, nil
}

// Label returns the short label for an accession, or false if unknown.
func (t *Table) Label(accession string) (string, bool) {
	l, ok := t.labels[accession]
	return l, ok
}

// Resolve maps an annotation sequence identifier to its short label. Known
// accessions map through the table; anything else is normalized as a label
// (GENCODE and Ensembl files name sequences "chr21" or "21").
func (t *Table) Resolve(seqid string) string {
	if l, ok := t.labels[seqid]; ok {
		return l
	}
	return NormalizeLabel(seqid)
}

// AssemblyOf names the assembly a build string refers to: "GRCh37" for
// GRCh37, hg19, b37 or 37, "GRCh38" for GRCh38, hg38 or 38, and "" when it
// names neither. Builds may be paths such as file:///ref/GRCh38.fa.
func AssemblyOf(build string) string {
	b := strings.ToLower(strings.TrimSpace(build))
	switch {
	case b == "38" || strings.Contains(b, "grch38") || strings.Contains(b, "hg38"):
		return "GRCh38"
	case b == "37" || strings.Contains(b, "grch37") || strings.Contains(b, "hg19") || strings.Contains(b, "b37"):
		return "GRCh37"
	}
	return ""
}

// Matches reports whether build, as written in a variant file, is
// consistent with the table's assembly. Builds that name no known assembly
// match.
func (t *Table) Matches(build string) bool {
	a := AssemblyOf(build)
	return a == "" || a == AssemblyOf(t.assembly)
}

// NormalizeLabel removes a "chr" prefix and maps "M" to "MT".
func NormalizeLabel(label string) string {
	if len(label) > 3 && strings.EqualFold(label[:3], "chr") {
		label = label[3:]
	}
	switch strings.ToUpper(label) {
	case "M", "MT":
		return "MT"
	case "X":
		return "X"
	case "Y":
		return "Y"
	}
	return label
}
