package table

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/parquet-go/parquet-go"
)

// columnsMetadataKey records the original column order; parquet groups keep
// their fields sorted by name.
const columnsMetadataKey = "tradeetl.columns"

const readBatchSize = 256

// EncodeParquet writes t as a parquet file whose columns are all required
// UTF-8 strings.
func EncodeParquet(t *Table) ([]byte, error) {
	if len(t.Columns) == 0 {
		return nil, errors.New("parquet: table has no columns")
	}

	group := make(parquet.Group, len(t.Columns))
	for _, c := range t.Columns {
		if _, dup := group[c]; dup {
			return nil, fmt.Errorf("parquet: duplicate column %q", c)
		}
		group[c] = parquet.String()
	}
	schema := parquet.NewSchema("table", group)

	// Map each leaf (sorted) to its position in t.Columns.
	fields := schema.Fields()
	source := make([]int, len(fields))
	for i, f := range fields {
		source[i] = t.Index(f.Name())
	}

	var buf bytes.Buffer
	w := parquet.NewWriter(&buf, schema,
		parquet.KeyValueMetadata(columnsMetadataKey, strings.Join(t.Columns, "\x1f")))

	rows := make([]parquet.Row, 0, len(t.Rows))
	for _, r := range t.Rows {
		row := make(parquet.Row, len(fields))
		for leaf, col := range source {
			row[leaf] = parquet.ValueOf(r[col]).Level(0, 0, leaf)
		}
		rows = append(rows, row)
	}
	if _, err := w.WriteRows(rows); err != nil {
		return nil, fmt.Errorf("parquet: writing rows: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("parquet: closing writer: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeParquet reads a flat parquet file into a table. Values are rendered
// as strings; null values become empty strings.
func DecodeParquet(data []byte) (*Table, error) {
	input := bytes.NewReader(data)
	f, err := parquet.OpenFile(input, int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("parquet: opening file: %w", err)
	}

	fields := f.Schema().Fields()
	leafNames := make([]string, len(fields))
	for i, field := range fields {
		leafNames[i] = field.Name()
	}

	columns := leafNames
	if v, ok := f.Lookup(columnsMetadataKey); ok && v != "" {
		columns = strings.Split(v, "\x1f")
	}
	t := New(columns...)

	// dest[leaf] is the table column that leaf feeds.
	dest := make([]int, len(leafNames))
	for i, name := range leafNames {
		dest[i] = t.Index(name)
		if dest[i] < 0 {
			return nil, fmt.Errorf("parquet: column %q missing from metadata", name)
		}
	}

	r := parquet.NewReader(input)
	defer r.Close()

	buf := make([]parquet.Row, readBatchSize)
	for {
		n, err := r.ReadRows(buf)
		for _, row := range buf[:n] {
			out := make([]string, len(columns))
			for _, v := range row {
				leaf := v.Column()
				if leaf < 0 || leaf >= len(dest) || v.IsNull() {
					continue
				}
				out[dest[leaf]] = valueString(v)
			}
			t.Rows = append(t.Rows, out)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parquet: reading rows: %w", err)
		}
		if n == 0 {
			break
		}
	}
	return t, nil
}

func valueString(v parquet.Value) string {
	if v.Kind() == parquet.ByteArray || v.Kind() == parquet.FixedLenByteArray {
		return string(v.ByteArray())
	}
	return v.String()
}
