package ntfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDataRunBijection checks EncodeDataRuns/DecodeDataRuns round-trip for
// a representative mix of contiguous, sparse, and negative-delta runs.
func TestDataRunBijection(t *testing.T) {
	tests := []struct {
		name string
		runs []DataRun
	}{
		{"single contiguous run", []DataRun{{LengthVCN: 10, StartLCN: 1000}}},
		{"multiple ascending runs", []DataRun{
			{LengthVCN: 10, StartLCN: 1000},
			{LengthVCN: 20, StartLCN: 2000},
			{LengthVCN: 5, StartLCN: 2100},
		}},
		{"run with negative delta (fragmented backward)", []DataRun{
			{LengthVCN: 10, StartLCN: 5000},
			{LengthVCN: 10, StartLCN: 100},
		}},
		{"sparse run", []DataRun{
			{LengthVCN: 100, Sparse: true},
			{LengthVCN: 10, StartLCN: 500},
		}},
		{"large cluster numbers", []DataRun{
			{LengthVCN: 1 << 20, StartLCN: 1 << 40},
		}},
		{"zero length vcn", []DataRun{
			{LengthVCN: 0, StartLCN: 1},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := EncodeDataRuns(tt.runs)
			decoded, err := DecodeDataRuns(encoded, 0)
			require.NoError(t, err)
			require.Len(t, decoded, len(tt.runs))
			for i, want := range tt.runs {
				assert.Equal(t, want.LengthVCN, decoded[i].LengthVCN)
				assert.Equal(t, want.Sparse, decoded[i].Sparse)
				if !want.Sparse {
					assert.Equal(t, want.StartLCN, decoded[i].StartLCN)
				}
			}
		})
	}
}

func TestDecodeDataRunsStopsAtTerminator(t *testing.T) {
	encoded := EncodeDataRuns([]DataRun{{LengthVCN: 1, StartLCN: 1}})
	trailingGarbage := append(append([]byte{}, encoded...), 0xFF, 0xFF)
	decoded, err := DecodeDataRuns(trailingGarbage, 0)
	require.NoError(t, err)
	assert.Len(t, decoded, 1)
}

func TestDecodeDataRunsRejectsTruncatedLength(t *testing.T) {
	_, err := DecodeDataRuns([]byte{0x11}, 0) // claims 1 length byte, 1 offset byte, none present
	assert.Error(t, err)
}

func TestDecodeDataRunsAtNonZeroOffset(t *testing.T) {
	prefix := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	encoded := EncodeDataRuns([]DataRun{{LengthVCN: 5, StartLCN: 42}})
	buf := append(append([]byte{}, prefix...), encoded...)

	decoded, err := DecodeDataRuns(buf, len(prefix))
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	assert.Equal(t, uint64(5), decoded[0].LengthVCN)
	assert.Equal(t, int64(42), decoded[0].StartLCN)
}
