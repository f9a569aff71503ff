package batch

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/segmentio/parquet-go"
)

// RecordReader yields records in file order. Next returns io.EOF once the
// input is exhausted.
type RecordReader interface {
	Next(limit int) ([]Record, error)
	Close() error
}

// Columns names the id and text fields of an input
type Columns struct {
	ID   string
	Text string
}

// OpenReader opens path with the reader matching its extension
func OpenReader(path string, cols Columns) (RecordReader, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}

	var r RecordReader
	switch format {
	case FormatCSV:
		r, err = NewCSVReader(f, cols)
	case FormatParquet:
		r = NewParquetReader(f)
	case FormatJSONL:
		r = NewJSONLReader(f, cols)
	}
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

type csvReader struct {
	r       *csv.Reader
	c       io.Closer
	idCol   int
	textCol int
	row     int64
}

// NewCSVReader reads a CSV with a header row. The text column is required;
// without an id column the 1-based row number is used.
func NewCSVReader(rc io.ReadCloser, cols Columns) (RecordReader, error) {
	r := csv.NewReader(rc)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	cr := &csvReader{r: r, c: rc, idCol: -1, textCol: -1}
	for i, h := range header {
		switch h {
		case cols.ID:
			cr.idCol = i
		case cols.Text:
			cr.textCol = i
		}
	}
	if cr.textCol < 0 {
		return nil, fmt.Errorf("CSV header has no %q column", cols.Text)
	}
	return cr, nil
}

func (cr *csvReader) Next(limit int) ([]Record, error) {
	var batch []Record
	for len(batch) < limit {
		row, err := cr.r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return batch, fmt.Errorf("failed to read CSV record: %w", err)
		}
		cr.row++

		rec := Record{ID: strconv.FormatInt(cr.row, 10)}
		if cr.idCol >= 0 && cr.idCol < len(row) {
			rec.ID = row[cr.idCol]
		}
		if cr.textCol < len(row) {
			rec.Text = row[cr.textCol]
		}
		batch = append(batch, rec)
	}
	if len(batch) == 0 {
		return nil, io.EOF
	}
	return batch, nil
}

func (cr *csvReader) Close() error { return cr.c.Close() }

type jsonlReader struct {
	dec  *json.Decoder
	c    io.Closer
	cols Columns
	row  int64
}

// NewJSONLReader reads one JSON object per line. Non-string ids are
// formatted with their JSON text.
func NewJSONLReader(rc io.ReadCloser, cols Columns) RecordReader {
	return &jsonlReader{dec: json.NewDecoder(rc), c: rc, cols: cols}
}

func (jr *jsonlReader) Next(limit int) ([]Record, error) {
	var batch []Record
	for len(batch) < limit {
		var obj map[string]json.RawMessage
		err := jr.dec.Decode(&obj)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return batch, fmt.Errorf("failed to read JSON record %d: %w", jr.row+1, err)
		}
		jr.row++

		rec := Record{ID: strconv.FormatInt(jr.row, 10)}
		if raw, ok := obj[jr.cols.ID]; ok {
			rec.ID = rawString(raw)
		}
		if raw, ok := obj[jr.cols.Text]; ok {
			rec.Text = rawString(raw)
		}
		batch = append(batch, rec)
	}
	if len(batch) == 0 {
		return nil, io.EOF
	}
	return batch, nil
}

func (jr *jsonlReader) Close() error { return jr.c.Close() }

func rawString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

type parquetReader struct {
	r *parquet.GenericReader[Record]
	c io.Closer
}

// NewParquetReader reads rows with string columns id and text
func NewParquetReader(f *os.File) RecordReader {
	return &parquetReader{r: parquet.NewGenericReader[Record](f), c: f}
}

func (pr *parquetReader) Next(limit int) ([]Record, error) {
	buf := make([]Record, limit)
	n, err := pr.r.Read(buf)
	if n > 0 {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		return buf[:n], err
	}
	if err == nil {
		err = io.EOF
	}
	return nil, err
}

func (pr *parquetReader) Close() error {
	err := pr.r.Close()
	if cerr := pr.c.Close(); err == nil {
		err = cerr
	}
	return err
}
