package util

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func LastNonEmptyLine(out []byte) string {
	lines := strings.Split(string(out), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if len(strings.TrimSpace(lines[i])) > 0 {
			return lines[i]
		}
	}
	return ""
}

// Marshals v as JSON indented by four spaces and writes it to path. The data is written to a temporary file in the
// same directory first and then renamed over path, so readers never observe a partially written file. The file
// is left with mode 0644.
func WriteJSONAtomic(path string, v any) error {
	var buf []byte
	var err error
	if raw, ok := v.(json.RawMessage); ok {
		buf, err = indentRaw(raw)
	} else {
		buf, err = json.MarshalIndent(v, "", "    ")
	}
	if err != nil {
		return fmt.Errorf("encoding %s failed: %w", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	_, err = tmp.Write(buf)
	if err == nil {
		err = tmp.Chmod(0o644)
	}
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("writing %s failed: %w", path, err)
	}
	return os.Rename(tmpName, path)
}

func indentRaw(raw json.RawMessage) ([]byte, error) {
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "    "); err != nil {
		return nil, err
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}
