package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/sells-group/procurement-signals/internal/model"
)

// EncodeRecords writes records as CSV with a header derived from the csv
// struct tags of T. The header is written even when records is empty.
func EncodeRecords[T any](w io.Writer, records []T) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)
	enc.WithMarshalers(csvutil.NewMarshalers(csvutil.MarshalFunc(formatFloat)))

	var zero T
	if err := enc.EncodeHeader(zero); err != nil {
		return eris.Wrap(err, "tabular: encode header")
	}
	for i := range records {
		if err := enc.Encode(records[i]); err != nil {
			return eris.Wrapf(err, "tabular: encode record %d", i)
		}
	}

	cw.Flush()
	return eris.Wrap(cw.Error(), "tabular: flush csv")
}

// formatFloat renders floats without exponents so that reruns over the same
// inputs produce byte-identical files.
func formatFloat(f float64) ([]byte, error) {
	return strconv.AppendFloat(nil, f, 'f', -1, 64), nil
}

// DecodeRecords reads every record of T from r. Columns named by T's csv tags
// must all be present, otherwise a *model.SchemaError is returned.
func DecodeRecords[T any](r io.Reader, path string) ([]T, error) {
	dec, err := csvutil.NewDecoder(csv.NewReader(r))
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &model.SchemaError{Path: path, Err: eris.New("file is empty")}
		}
		return nil, &model.SchemaError{Path: path, Err: err}
	}
	dec.DisallowMissingColumns = true

	var out []T
	for {
		var rec T
		err := dec.Decode(&rec)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			var missing *csvutil.MissingColumnsError
			if errors.As(err, &missing) {
				return nil, &model.SchemaError{Path: path, Missing: missing.Columns}
			}
			// Header is line 1.
			return nil, &model.SchemaError{Path: path, Err: eris.Wrapf(err, "decode line %d", len(out)+2)}
		}
		out = append(out, rec)
	}
}

// WriteRecords publishes records to path atomically.
func WriteRecords[T any](path string, records []T) error {
	var buf bytes.Buffer
	if err := EncodeRecords(&buf, records); err != nil {
		return eris.Wrapf(err, "tabular: encode %s", filepath.Base(path))
	}
	return WriteFileAtomic(path, buf.Bytes())
}

// ReadRecords loads a dataset previously published with WriteRecords.
func ReadRecords[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &model.SchemaError{Path: path, Err: err}
	}
	defer f.Close() //nolint:errcheck
	return DecodeRecords[T](f, path)
}

// WriteFileAtomic writes data to a temporary file in the target directory,
// syncs it, and renames it over path. Readers never observe a partial file.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "tabular: create directory %s", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return eris.Wrapf(err, "tabular: create temp file for %s", path)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck
		cleanup()
		return eris.Wrapf(err, "tabular: write %s", tmpName)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close() //nolint:errcheck
		cleanup()
		return eris.Wrapf(err, "tabular: sync %s", tmpName)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return eris.Wrapf(err, "tabular: close %s", tmpName)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return eris.Wrapf(err, "tabular: chmod %s", tmpName)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return eris.Wrapf(err, "tabular: publish %s", path)
	}
	return nil
}
