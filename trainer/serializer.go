package trainer

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/lox/tossem/abstraction"
	"github.com/lox/tossem/cfr"
)

// Binary format V2: a 24-byte header followed by one 75-byte row per node.
// All integers are little-endian.
const (
	magicV2   = 0x544F5353 // stored little-endian as bytes 'S','S','O','T'
	version2  = 2
	headerLen = 24
	rowLen    = 75
)

// flags byte layout within a row: bit7 bb_discarded, bit6 sb_discarded,
// bits5..0 legal_mask. Only the 4 betting actions ever appear in a
// persisted legal_mask (discard nodes are never stored), so the 6-bit
// field never truncates a real mask even though InfoKey.LegalMask is
// carried as 7 bits in memory.
const legalMaskFileBits = 0x3F

// WriteTable writes table to path in binary V2 format via a temp file plus
// rename, so a reader never observes a partially written file.
func WriteTable(path string, iterations int64, table cfr.Table) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("trainer: create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("trainer: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if err := writeTableTo(tmp, iterations, table); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("trainer: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("trainer: rename temp file into place: %w", err)
	}
	return nil
}

func writeTableTo(w io.Writer, iterations int64, table cfr.Table) error {
	bw := bufio.NewWriter(w)

	header := make([]byte, headerLen)
	binary.LittleEndian.PutUint32(header[0:4], magicV2)
	binary.LittleEndian.PutUint32(header[4:8], version2)
	binary.LittleEndian.PutUint64(header[8:16], uint64(iterations))
	binary.LittleEndian.PutUint64(header[16:24], uint64(len(table)))
	if _, err := bw.Write(header); err != nil {
		return fmt.Errorf("trainer: write header: %w", err)
	}

	row := make([]byte, rowLen)
	for key, node := range table {
		encodeRow(row, key, node)
		if _, err := bw.Write(row); err != nil {
			return fmt.Errorf("trainer: write row: %w", err)
		}
	}
	return bw.Flush()
}

func encodeRow(row []byte, key abstraction.InfoKey, node *cfr.Node) {
	row[0] = key.Player
	row[1] = key.Street
	binary.LittleEndian.PutUint16(row[2:4], key.HoleBucket)
	binary.LittleEndian.PutUint16(row[4:6], key.BoardBucket)
	row[6] = key.PotBucket
	row[7] = key.HistBucket

	var flags byte
	if key.BBDiscarded {
		flags |= 0x80
	}
	if key.SBDiscarded {
		flags |= 0x40
	}
	flags |= key.LegalMask & legalMaskFileBits
	row[8] = flags

	off := 9
	for _, r := range node.Regret {
		binary.LittleEndian.PutUint64(row[off:off+8], math.Float64bits(r))
		off += 8
	}
	for _, s := range node.StratSum {
		binary.LittleEndian.PutUint64(row[off:off+8], math.Float64bits(s))
		off += 8
	}
	// Reserved trailing 2 bytes, always zero.
	row[off] = 0
	row[off+1] = 0
}

// Row is one decoded record from a V2 file: the InfoKey reconstructed from
// its packed fields, plus the accumulated regret and strategy sums.
type Row struct {
	Key      abstraction.InfoKey
	Regret   [abstraction.NumActions]float64
	StratSum [abstraction.NumActions]float64
}

// ReadTable reads a binary V2 file written by WriteTable, returning the
// iteration count recorded in the header and the decoded rows.
func ReadTable(path string) (iterations int64, rows []Row, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, nil, fmt.Errorf("trainer: open input: %w", err)
	}
	defer f.Close()
	return readTableFrom(f)
}

func readTableFrom(r io.Reader) (int64, []Row, error) {
	br := bufio.NewReader(r)

	header := make([]byte, headerLen)
	if _, err := io.ReadFull(br, header); err != nil {
		return 0, nil, fmt.Errorf("trainer: read header: %w", err)
	}
	magic := binary.LittleEndian.Uint32(header[0:4])
	if magic != magicV2 {
		return 0, nil, fmt.Errorf("trainer: bad magic %#x, want %#x", magic, magicV2)
	}
	ver := binary.LittleEndian.Uint32(header[4:8])
	if ver != version2 {
		return 0, nil, fmt.Errorf("trainer: unsupported version %d, want %d", ver, version2)
	}
	iterations := int64(binary.LittleEndian.Uint64(header[8:16]))
	numNodes := binary.LittleEndian.Uint64(header[16:24])

	rows := make([]Row, 0, numNodes)
	row := make([]byte, rowLen)
	for i := uint64(0); i < numNodes; i++ {
		if _, err := io.ReadFull(br, row); err != nil {
			return 0, nil, fmt.Errorf("trainer: read row %d: %w", i, err)
		}
		rows = append(rows, decodeRow(row))
	}
	return iterations, rows, nil
}

func decodeRow(row []byte) Row {
	flags := row[8]
	key := abstraction.InfoKey{
		Player:      row[0],
		Street:      row[1],
		HoleBucket:  binary.LittleEndian.Uint16(row[2:4]),
		BoardBucket: binary.LittleEndian.Uint16(row[4:6]),
		PotBucket:   row[6],
		HistBucket:  row[7],
		BBDiscarded: flags&0x80 != 0,
		SBDiscarded: flags&0x40 != 0,
		LegalMask:   flags & legalMaskFileBits,
	}

	var out Row
	out.Key = key
	off := 9
	for i := range out.Regret {
		out.Regret[i] = math.Float64frombits(binary.LittleEndian.Uint64(row[off : off+8]))
		off += 8
	}
	for i := range out.StratSum {
		out.StratSum[i] = math.Float64frombits(binary.LittleEndian.Uint64(row[off : off+8]))
		off += 8
	}
	return out
}
