package kinship

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/raffi/geneticmap"
	"github.com/grailbio/raffi/sampleorder"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeGzipLines writes lines, appending a newline to each, as a
// gzip-compressed file at path.
func writeGzipLines(t *testing.T, path string, lines ...string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	for _, l := range lines {
		_, err := gz.Write([]byte(l + "\n"))
		require.NoError(t, err)
	}
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())
}

// buildSmallGenome sets up a rapidOutputDir with one chromosome carrying the
// S2 half-overlap scenario between A and B (see the package-level
// half-overlap test for the expected numbers) and 21 empty chromosomes, plus
// a matching 22-chromosome genetic map directory (100 cM on chromosome 1,
// zero-length on the rest) and a 2-sample Ordering built directly from IDs.
func buildSmallGenome(t *testing.T) (rapidDir, mapDir string, order *sampleorder.Ordering) {
	t.Helper()
	rapidDir = t.TempDir()
	mapDir = t.TempDir()

	// Matcher row columns (1-indexed): 2=id1 3=id2 4=hap1 5=hap2 9=start 10=end.
	row := func(id1, id2 string, hap1, hap2, start, end int) string {
		fields := make([]string, 10)
		fields[1], fields[2] = id1, id2
		fields[3], fields[4] = fmt.Sprint(hap1), fmt.Sprint(hap2)
		fields[8], fields[9] = fmt.Sprint(start), fmt.Sprint(end)
		return strings.Join(fields, "\t")
	}
	writeGzipLines(t, filepath.Join(rapidDir, "1", "results.max.gz"),
		row("A", "B", 0, 0, 0, 50),
		row("A", "B", 1, 1, 25, 75),
	)
	for c := 2; c <= geneticmap.NumChromosomes; c++ {
		writeGzipLines(t, filepath.Join(rapidDir, fmt.Sprint(c), "results.max.gz"))
	}

	writeMap := func(chr int, sites int, cMPerSite float64) {
		path := filepath.Join(mapDir, fmt.Sprintf("chr%d.rMap", chr))
		f, err := os.Create(path)
		require.NoError(t, err)
		w := bufio.NewWriter(f)
		for s := 0; s < sites; s++ {
			fmt.Fprintf(w, "%d\t%v\n", s, float64(s)*cMPerSite)
		}
		require.NoError(t, w.Flush())
		require.NoError(t, f.Close())
	}
	writeMap(1, 101, 1.0) // site index == cM, 0..100 cM total.
	for c := 2; c <= geneticmap.NumChromosomes; c++ {
		writeMap(c, 2, 0)
	}

	order = sampleorder.New([]string{"A", "B"})
	return rapidDir, mapDir, order
}

func TestPipelineRunHalfOverlapScenario(t *testing.T) {
	rapidDir, mapDir, order := buildSmallGenome(t)
	mapTable, err := geneticmap.Load(mapDir)
	require.NoError(t, err)

	outDir := t.TempDir()
	ctx := vcontext.Background()
	err = Run(ctx, order, mapTable, Options{
		RapidOutputDir: rapidDir,
		OutputDir:      outDir,
		MaxDegree:      4,
		NumThreads:     1,
	})
	require.NoError(t, err)

	out, err := os.ReadFile(filepath.Join(outDir, "predictions.txt"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(out), "\n"), "\n")
	require.Len(t, lines, 2, "expected header + one emitted pair, got: %q", out)
	assert.Equal(t, "ID1\tID2\tKINSHIP\tIBD0\tIBD1\tIBD2\tTYPE", lines[0])

	fields := strings.Split(lines[1], "\t")
	require.Len(t, fields, 7)
	assert.Equal(t, "A", fields[0])
	assert.Equal(t, "B", fields[1])
	assert.Equal(t, "0.2500", fields[2], "kinship")
	assert.Equal(t, "0.2500", fields[3], "ibd0")
	assert.Equal(t, "0.5000", fields[4], "ibd1")
	assert.Equal(t, "0.2500", fields[5], "ibd2")
	assert.Equal(t, "FS", fields[6], "type")
}

func TestClampNumThreads(t *testing.T) {
	assert.Equal(t, 1, ClampNumThreads(0))
	assert.Equal(t, 1, ClampNumThreads(-5))
	assert.Equal(t, geneticmap.NumChromosomes, ClampNumThreads(1000))
	assert.Equal(t, 5, ClampNumThreads(5))
}

func TestAssignChromosomesCoversAllExactlyOnce(t *testing.T) {
	for _, numWorkers := range []int{1, 2, 5, 22} {
		slices := assignChromosomes(numWorkers)
		seen := make(map[int]bool)
		for _, s := range slices {
			for _, c := range s {
				assert.False(t, seen[c], "chromosome %d assigned twice", c)
				seen[c] = true
			}
		}
		assert.Len(t, seen, geneticmap.NumChromosomes)
	}
}
