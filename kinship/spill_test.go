package kinship

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpillWriteRead(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	path := filepath.Join(dir, "spill.gz")
	ctx := vcontext.Background()

	w, err := CreateSpillWriter(ctx, path)
	require.NoError(t, err)

	records := []SpillRecord{
		{ID1Index: 1, ID2Index: 2, Kinship: 0.25, IBD2Frac: 0.1},
		{ID1Index: 3, ID2Index: 9, Kinship: 0.125, IBD2Frac: 0.0},
	}
	for _, r := range records {
		require.NoError(t, w.Write(r))
	}
	assert.EqualValues(t, len(records), w.Count())
	require.NoError(t, w.Close(ctx))

	r, err := OpenSpillReader(ctx, path)
	require.NoError(t, err)
	defer r.Close()

	var got []SpillRecord
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, rec)
	}
	assert.Equal(t, records, got)
}

func TestSpillReaderEmptyFile(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	path := filepath.Join(dir, "spill.gz")
	ctx := vcontext.Background()

	w, err := CreateSpillWriter(ctx, path)
	require.NoError(t, err)
	require.NoError(t, w.Close(ctx))

	r, err := OpenSpillReader(ctx, path)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
}
