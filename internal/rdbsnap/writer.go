package rdbsnap

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc64"
	"os"
	"path/filepath"
)

// Write serializes entries into the on-disk snapshot format and writes them
// atomically (temp file + rename) to path.
func Write(path string, entries []Entry) error {
	buf, err := Encode(entries)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp snapshot file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(buf); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp snapshot file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp snapshot file: %w", err)
	}
	return os.Rename(tmpName, path)
}

// Encode renders entries into the complete in-memory snapshot image used
// both for Write and for the PSYNC FULLRESYNC payload.
func Encode(entries []Entry) ([]byte, error) {
	var body bytes.Buffer
	body.WriteString(magic)

	body.WriteByte(opAux)
	if err := writeString(&body, "kvserver-version"); err != nil {
		return nil, err
	}
	if err := writeString(&body, "1.0"); err != nil {
		return nil, err
	}

	body.WriteByte(opSelectDB)
	body.WriteByte(0)
	body.WriteByte(opResizeDB)
	if err := writeLength(&body, int64(len(entries))); err != nil {
		return nil, err
	}
	expiring := 0
	for _, e := range entries {
		if e.ExpiresAt != nil {
			expiring++
		}
	}
	if err := writeLength(&body, int64(expiring)); err != nil {
		return nil, err
	}

	for _, e := range entries {
		if err := writeEntry(&body, e); err != nil {
			return nil, err
		}
	}

	body.WriteByte(opEOF)

	checksum := crc64.Checksum(body.Bytes(), crcTable)
	var trailer [8]byte
	binary.LittleEndian.PutUint64(trailer[:], checksum)
	body.Write(trailer[:])

	return body.Bytes(), nil
}

func writeEntry(bw *bytes.Buffer, e Entry) error {
	switch {
	case e.ExpiresAt == nil:
		bw.WriteByte(entryNoExpiry)
	default:
		bw.WriteByte(opExpiryMs)
		var ms [8]byte
		binary.LittleEndian.PutUint64(ms[:], uint64(e.ExpiresAt.UnixMilli()))
		bw.Write(ms[:])
		bw.WriteByte(entryNoExpiry)
	}
	if err := writeString(bw, e.Key); err != nil {
		return err
	}
	return writeString(bw, e.Value)
}

func writeLength(w *bytes.Buffer, n int64) error {
	switch {
	case n < 1<<6:
		w.WriteByte(byte(n))
	case n < 1<<14:
		w.WriteByte(0b0100_0000 | byte(n>>8))
		w.WriteByte(byte(n))
	default:
		w.WriteByte(0b1000_0000)
		var v [4]byte
		binary.LittleEndian.PutUint32(v[:], uint32(n))
		w.Write(v[:])
	}
	return nil
}

func writeString(w *bytes.Buffer, s string) error {
	if err := writeLength(w, int64(len(s))); err != nil {
		return err
	}
	w.WriteString(s)
	return nil
}
