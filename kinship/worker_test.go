package kinship

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/raffi/geneticmap"
	"github.com/grailbio/raffi/sampleorder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeChrMap writes a plain-text (uncompressed) genetic map file with one
// cM per site, matching the format geneticmap.Load expects.
func writeChrMap(t *testing.T, dir string, chr, sites int) {
	t.Helper()
	var sb strings.Builder
	for s := 0; s < sites; s++ {
		sb.WriteString(strconv.Itoa(s))
		sb.WriteByte('\t')
		sb.WriteString(strconv.Itoa(s))
		sb.WriteByte('\n')
	}
	path := filepath.Join(dir, "chr"+strconv.Itoa(chr)+".rMap")
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0o644))
}

func TestWorkerIngestsDisjointHapPairsOnly(t *testing.T) {
	rapidDir := t.TempDir()
	mapDir := t.TempDir()
	for c := 1; c <= geneticmap.NumChromosomes; c++ {
		writeChrMap(t, mapDir, c, 101)
	}
	writeGzipLines(t, filepath.Join(rapidDir, "1", "results.max.gz"),
		tabRow("A", "B", 0, 0, 0, 30),
		tabRow("A", "B", 0, 1, 40, 70),
	)

	mapTable, err := geneticmap.Load(mapDir)
	require.NoError(t, err)
	order := sampleorder.New([]string{"A", "B"})
	barrier := NewBarrier(1)
	w := NewWorker(0, []int{1}, order, mapTable, barrier, rapidDir)

	done := make(chan error, 1)
	go func() { done <- w.Run(vcontext.Background()) }()
	allFinished := barrier.RunMaster(func() {})
	require.NoError(t, <-done)
	assert.True(t, allFinished)

	row := w.Matrix.Row(0)
	require.NotNil(t, row)
	stats := row[1]
	require.NotNil(t, stats)
	assert.Equal(t, 60.0, stats.TotalIBD1) // union of [0,30] and [40,70], disjoint.
	assert.Equal(t, 0.0, stats.TotalIBD2)  // no complementary hap-pair observed.
}

func tabRow(id1, id2 string, hap1, hap2, start, end int) string {
	fields := make([]string, 10)
	fields[1], fields[2] = id1, id2
	fields[3], fields[4] = strconv.Itoa(hap1), strconv.Itoa(hap2)
	fields[8], fields[9] = strconv.Itoa(start), strconv.Itoa(end)
	return strings.Join(fields, "\t")
}
