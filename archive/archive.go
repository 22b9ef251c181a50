// Package archive uploads the invocation and metrics stores, and a summary, to S3.
package archive

import (
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"
)

// ObjectSpec is one object to upload. Body, when set, is uploaded instead of the file at Path.
type ObjectSpec struct {
	Key  string
	Path string
	Body []byte
}

// CollectDir lists every regular file under dir as an object keyed prefix/<dir name>/<relative path>. Hidden
// files, which include partially written records, are left out.
func CollectDir(prefix, dir string) ([]*ObjectSpec, error) {
	base := filepath.Base(filepath.Clean(dir))
	out := []*ObjectSpec{}
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if strings.HasPrefix(d.Name(), ".") && p != dir {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		out = append(out, &ObjectSpec{Key: path.Join(prefix, base, filepath.ToSlash(rel)), Path: p})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing %s failed: %w", dir, err)
	}
	return out, nil
}
