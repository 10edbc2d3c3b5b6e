package formats

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/edsrzf/mmap-go"
)

const recordSize = RecordFields * 8

// MmapRecordDecoder reads raw event logs stored as consecutive little-endian
// int64 records and maps them read-only instead of copying them into memory.
type MmapRecordDecoder struct{}

type mappedRecords struct {
	data mmap.MMap
	n    int
}

func (m *mappedRecords) Len() int { return m.n }

func (m *mappedRecords) Record(i int) Record {
	var r Record
	b := m.data[i*recordSize : (i+1)*recordSize]
	for k := range r {
		r[k] = int64(binary.LittleEndian.Uint64(b[k*8:]))
	}
	return r
}

func (m *mappedRecords) Close() error {
	if m.data == nil {
		return nil
	}
	err := m.data.Unmap()
	m.data = nil
	return err
}

func (MmapRecordDecoder) Load(path string) (RecordSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := info.Size()
	if size%recordSize != 0 {
		return nil, fmt.Errorf("file size %d is not a multiple of the %d byte record size", size, recordSize)
	}
	if size == 0 {
		return Records{}, nil
	}

	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("error mapping file: %w", err)
	}
	return &mappedRecords{data: data, n: int(size / recordSize)}, nil
}

// WriteRecords writes records in the layout MmapRecordDecoder reads.
func WriteRecords(w io.Writer, records []Record) error {
	buf := make([]byte, recordSize)
	for _, r := range records {
		for k, v := range r {
			binary.LittleEndian.PutUint64(buf[k*8:], uint64(v))
		}
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	return nil
}
