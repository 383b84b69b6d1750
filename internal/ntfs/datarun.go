package ntfs

import (
	"fmt"

	"github.com/deploymenttheory/go-ntfs/internal/scanerr"
)

// DataRun is one decoded run from a non-resident attribute's mapping pairs
// array: LengthVCN consecutive clusters starting at StartLCN, or a sparse
// run (Sparse true, StartLCN meaningless) when the offset field was absent.
type DataRun struct {
	LengthVCN uint64
	StartLCN  int64
	Sparse    bool
}

// DecodeDataRuns parses the mapping pairs array starting at data[offset:]
// until it encounters the terminating zero byte or runs out of input.
// Offsets are delta-encoded relative to the previous run's LCN (signed,
// two's-complement, variable width); a run with a zero-length offset field
// is sparse.
func DecodeDataRuns(data []byte, offset int) ([]DataRun, error) {
	var runs []DataRun
	lcn := int64(0)
	i := offset

	for i < len(data) {
		header := data[i]
		if header == 0 {
			break
		}
		lengthBytes := int(header & 0x0F)
		offsetBytes := int(header >> 4)
		i++

		if i+lengthBytes > len(data) {
			return nil, fmt.Errorf("%w: run length field out of bounds", scanerr.ErrDataRunError)
		}
		length := decodeUnsigned(data[i : i+lengthBytes])
		i += lengthBytes

		run := DataRun{LengthVCN: length}

		if offsetBytes == 0 {
			run.Sparse = true
		} else {
			if i+offsetBytes > len(data) {
				return nil, fmt.Errorf("%w: run offset field out of bounds", scanerr.ErrDataRunError)
			}
			delta := decodeSigned(data[i : i+offsetBytes])
			i += offsetBytes
			lcn += delta
			run.StartLCN = lcn
		}

		runs = append(runs, run)
	}

	return runs, nil
}

// EncodeDataRuns is the inverse of DecodeDataRuns: it produces a mapping
// pairs array (including the terminating zero byte) for runs. It always
// picks the smallest byte width that can represent each length/offset,
// which is not necessarily the width an original NTFS driver chose, but
// round-trips correctly through DecodeDataRuns.
func EncodeDataRuns(runs []DataRun) []byte {
	var out []byte
	lcn := int64(0)

	for _, r := range runs {
		lengthBytes := encodeUnsigned(r.LengthVCN)

		var offsetBytes []byte
		if !r.Sparse {
			delta := r.StartLCN - lcn
			offsetBytes = encodeSigned(delta)
			lcn = r.StartLCN
		}

		header := byte(len(lengthBytes)) | byte(len(offsetBytes))<<4
		out = append(out, header)
		out = append(out, lengthBytes...)
		out = append(out, offsetBytes...)
	}

	out = append(out, 0)
	return out
}

func decodeUnsigned(b []byte) uint64 {
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func decodeSigned(b []byte) int64 {
	v := decodeUnsigned(b)
	bits := uint(len(b) * 8)
	if bits < 64 && v&(1<<(bits-1)) != 0 {
		v |= ^uint64(0) << bits // sign-extend
	}
	return int64(v)
}

func encodeUnsigned(v uint64) []byte {
	if v == 0 {
		return nil
	}
	var b []byte
	for v > 0 {
		b = append(b, byte(v))
		v >>= 8
	}
	return b
}

// encodeSigned returns the fewest little-endian bytes such that sign-
// extending them reproduces v (two's complement, matching the NTFS
// mapping-pairs offset field encoding).
func encodeSigned(v int64) []byte {
	if v == 0 {
		return nil
	}
	var b []byte
	for {
		b = append(b, byte(v))
		if v >= -128 && v <= 127 {
			break
		}
		v >>= 8
	}
	return b
}
