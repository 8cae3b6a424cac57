package projection

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"

	"github.com/klauspost/compress/gzip"

	lenserr "github.com/pacsuite/dicomlens/internal/errors"
)

// The persisted record format is a codec boundary: cached bytes are
// base64(gzip(compact JSON)) and every record embeds its schema version.
// Changing the format without bumping SchemaVersion corrupts reuse; the
// cache treats any undecodable payload as a miss and purges it.

// Encode serializes a record into its persisted form.
func Encode(record Record) ([]byte, error) {
	plain, err := json.Marshal(record)
	if err != nil {
		return nil, lenserr.Wrap(lenserr.ErrCategoryProjection, lenserr.CodeUnexpected, "record marshal failed", err)
	}

	var compressed bytes.Buffer
	zw := gzip.NewWriter(&compressed)
	if _, err := zw.Write(plain); err != nil {
		zw.Close()
		return nil, lenserr.Wrap(lenserr.ErrCategoryProjection, lenserr.CodeUnexpected, "record compression failed", err)
	}
	if err := zw.Close(); err != nil {
		return nil, lenserr.Wrap(lenserr.ErrCategoryProjection, lenserr.CodeUnexpected, "record compression failed", err)
	}

	encoded := make([]byte, base64.StdEncoding.EncodedLen(compressed.Len()))
	base64.StdEncoding.Encode(encoded, compressed.Bytes())
	return encoded, nil
}

// Decode parses a persisted record. Any decode failure yields a
// RECORD_CORRUPT skip error; the caller purges and recomputes.
func Decode(data []byte) (Record, error) {
	compressed, err := base64.StdEncoding.DecodeString(string(data))
	if err != nil {
		return nil, lenserr.Wrap(lenserr.ErrCategoryCache, lenserr.CodeRecordCorrupt, "base64 decode failed", err)
	}

	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, lenserr.Wrap(lenserr.ErrCategoryCache, lenserr.CodeRecordCorrupt, "gzip header invalid", err)
	}
	plain, err := io.ReadAll(zr)
	if cerr := zr.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, lenserr.Wrap(lenserr.ErrCategoryCache, lenserr.CodeRecordCorrupt, "gzip decompression failed", err)
	}

	var record Record
	if err := json.Unmarshal(plain, &record); err != nil {
		return nil, lenserr.Wrap(lenserr.ErrCategoryCache, lenserr.CodeRecordCorrupt, "record parse failed", err)
	}
	return record, nil
}

// ValidateVersion checks the embedded schema version of a decoded record.
func ValidateVersion(record Record) error {
	v, ok := record.Version()
	if !ok {
		return lenserr.New(lenserr.ErrCategoryCache, lenserr.CodeRecordCorrupt, "record version missing")
	}
	if v != SchemaVersion {
		return lenserr.New(lenserr.ErrCategoryCache, lenserr.CodeStaleVersion, "record written by another schema version")
	}
	return nil
}
