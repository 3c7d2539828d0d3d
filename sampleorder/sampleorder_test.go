package sampleorder

import (
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeVCF(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "panel.vcf.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	for _, l := range lines {
		_, err := gz.Write([]byte(l + "\n"))
		require.NoError(t, err)
	}
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())
	return path
}

func TestLoadOrdering(t *testing.T) {
	path := writeVCF(t,
		"##fileformat=VCFv4.2",
		"##contig=<ID=1>",
		"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tsampleA\tsampleB\tsampleC",
		"1\t100\t.\tA\tG\t.\t.\t.\tGT\t0|0\t0|1\t1|1",
	)

	o, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 3, o.Size())
	idxA, ok := o.Index("sampleA")
	require.True(t, ok)
	assert.Equal(t, 0, idxA)
	idxC, ok := o.Index("sampleC")
	require.True(t, ok)
	assert.Equal(t, 2, idxC)
	assert.Equal(t, "sampleB", o.ID(1))
	assert.Equal(t, 2, o.LastIndex())

	_, ok = o.Index("unknown")
	assert.False(t, ok)
}

func TestLoadOrderingNoSamples(t *testing.T) {
	path := writeVCF(t,
		"##fileformat=VCFv4.2",
		"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO",
	)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadOrderingNoHeader(t *testing.T) {
	path := writeVCF(t, "##fileformat=VCFv4.2")
	_, err := Load(path)
	assert.Error(t, err)
}
