package batch

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/segmentio/parquet-go"
)

// RecordWriter appends records to an output
type RecordWriter interface {
	Write(records []RedactedRecord) error
	Close() error
}

// CreateWriter creates path with the writer matching its extension
func CreateWriter(path string) (RecordWriter, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output: %w", err)
	}

	switch format {
	case FormatCSV:
		return NewCSVWriter(f)
	case FormatParquet:
		return NewParquetWriter(f), nil
	default:
		return NewJSONLWriter(f), nil
	}
}

var csvHeader = []string{"id", "text", "label_matches", "pattern_matches"}

type csvWriter struct {
	w *csv.Writer
	c io.Closer
}

// NewCSVWriter writes a header row followed by one row per record
func NewCSVWriter(wc io.WriteCloser) (RecordWriter, error) {
	w := csv.NewWriter(wc)
	if err := w.Write(csvHeader); err != nil {
		wc.Close()
		return nil, err
	}
	return &csvWriter{w: w, c: wc}, nil
}

func (cw *csvWriter) Write(records []RedactedRecord) error {
	for _, r := range records {
		row := []string{
			r.ID,
			r.Text,
			strconv.FormatInt(r.LabelMatches, 10),
			strconv.FormatInt(r.PatternMatches, 10),
		}
		if err := cw.w.Write(row); err != nil {
			return err
		}
	}
	cw.w.Flush()
	return cw.w.Error()
}

func (cw *csvWriter) Close() error {
	cw.w.Flush()
	err := cw.w.Error()
	if cerr := cw.c.Close(); err == nil {
		err = cerr
	}
	return err
}

type jsonlWriter struct {
	buf *bufio.Writer
	enc *json.Encoder
	c   io.Closer
}

// NewJSONLWriter writes one JSON object per line
func NewJSONLWriter(wc io.WriteCloser) RecordWriter {
	buf := bufio.NewWriter(wc)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	return &jsonlWriter{buf: buf, enc: enc, c: wc}
}

func (jw *jsonlWriter) Write(records []RedactedRecord) error {
	for i := range records {
		if err := jw.enc.Encode(&records[i]); err != nil {
			return err
		}
	}
	return nil
}

func (jw *jsonlWriter) Close() error {
	err := jw.buf.Flush()
	if cerr := jw.c.Close(); err == nil {
		err = cerr
	}
	return err
}

type parquetWriter struct {
	w *parquet.GenericWriter[RedactedRecord]
	c io.Closer
}

// NewParquetWriter writes RedactedRecord rows
func NewParquetWriter(wc io.WriteCloser) RecordWriter {
	return &parquetWriter{w: parquet.NewGenericWriter[RedactedRecord](wc), c: wc}
}

func (pw *parquetWriter) Write(records []RedactedRecord) error {
	_, err := pw.w.Write(records)
	return err
}

func (pw *parquetWriter) Close() error {
	err := pw.w.Close()
	if cerr := pw.c.Close(); err == nil {
		err = cerr
	}
	return err
}
