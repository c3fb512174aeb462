// pkg/archive/archive.go
package archive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/blakesmith/ar"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"
	"github.com/ulikunitz/xz"
)

// Archive is an opened source archive
type Archive interface {
	// Names lists every member in archive order
	Names() ([]string, error)

	// Extract writes the members accepted by keep (or all, if keep is nil)
	// under dest
	Extract(fs afero.Fs, dest string, keep func(name string) bool) error
}

var (
	magicGzip  = []byte{0x1f, 0x8b}
	magicBzip2 = []byte("BZh")
	magicXz    = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
	magicZstd  = []byte{0x28, 0xb5, 0x2f, 0xfd}
	magicZip   = []byte("PK\x03\x04")
	magicAr    = []byte("!<arch>\n")
)

// Open detects the format of an in-memory archive
func Open(data []byte) (Archive, error) {
	switch {
	case bytes.HasPrefix(data, magicZip):
		r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return nil, fmt.Errorf("opening zip archive: %w", err)
		}
		return &zipArchive{r: r}, nil
	case bytes.HasPrefix(data, magicAr):
		return openDeb(data)
	case bytes.HasPrefix(data, magicGzip):
		return &tarArchive{data: data, decompress: func(r io.Reader) (io.Reader, error) {
			return gzip.NewReader(r)
		}}, nil
	case bytes.HasPrefix(data, magicBzip2):
		return &tarArchive{data: data, decompress: func(r io.Reader) (io.Reader, error) {
			return bzip2.NewReader(r), nil
		}}, nil
	case bytes.HasPrefix(data, magicXz):
		return &tarArchive{data: data, decompress: func(r io.Reader) (io.Reader, error) {
			return xz.NewReader(r)
		}}, nil
	case bytes.HasPrefix(data, magicZstd):
		return &tarArchive{data: data, decompress: func(r io.Reader) (io.Reader, error) {
			return zstd.NewReader(r)
		}}, nil
	}
	// Assume uncompressed tar
	return &tarArchive{data: data}, nil
}

// openDeb finds the data.tar.* member of a .deb package, which is an ar
// archive, and opens it.
func openDeb(data []byte) (Archive, error) {
	arReader := ar.NewReader(bytes.NewReader(data))
	for {
		header, err := arReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading ar entry: %w", err)
		}

		// Look for data.tar.* (data.tar.xz, data.tar.gz, data.tar.zst, etc.)
		if strings.HasPrefix(header.Name, "data.tar") {
			payload, err := io.ReadAll(arReader)
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", header.Name, err)
			}
			return Open(payload)
		}
	}
	return nil, fmt.Errorf("no data.tar.* found in .deb package")
}

type tarArchive struct {
	data       []byte
	decompress func(io.Reader) (io.Reader, error)
}

func (a *tarArchive) reader() (*tar.Reader, error) {
	var r io.Reader = bytes.NewReader(a.data)
	if a.decompress != nil {
		var err error
		if r, err = a.decompress(r); err != nil {
			return nil, fmt.Errorf("decompressing archive: %w", err)
		}
	}
	return tar.NewReader(r), nil
}

func (a *tarArchive) Names() ([]string, error) {
	tr, err := a.reader()
	if err != nil {
		return nil, err
	}
	var names []string
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return names, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading tar entry: %w", err)
		}
		names = append(names, cleanName(header.Name))
	}
}

func (a *tarArchive) Extract(fs afero.Fs, dest string, keep func(string) bool) error {
	tr, err := a.reader()
	if err != nil {
		return err
	}

	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tar entry: %w", err)
		}

		name := cleanName(header.Name)
		if name == "" || (keep != nil && !keep(name)) {
			continue
		}
		target, err := targetPath(dest, name)
		if err != nil {
			return err
		}

		// Handle different file types
		switch header.Typeflag {
		case tar.TypeDir:
			if err := fs.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("creating directory %s: %w", target, err)
			}
		case tar.TypeSymlink:
			if err := symlink(fs, header.Linkname, target); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeFile(fs, target, tr, os.FileMode(header.Mode)); err != nil {
				return err
			}
		}
	}
}

type zipArchive struct {
	r *zip.Reader
}

func (a *zipArchive) Names() ([]string, error) {
	names := make([]string, 0, len(a.r.File))
	for _, f := range a.r.File {
		names = append(names, cleanName(f.Name))
	}
	return names, nil
}

func (a *zipArchive) Extract(fs afero.Fs, dest string, keep func(string) bool) error {
	for _, f := range a.r.File {
		name := cleanName(f.Name)
		if name == "" || (keep != nil && !keep(name)) {
			continue
		}
		target, err := targetPath(dest, name)
		if err != nil {
			return err
		}

		if f.FileInfo().IsDir() {
			if err := fs.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("creating directory %s: %w", target, err)
			}
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("opening %s: %w", f.Name, err)
		}
		err = writeFile(fs, target, rc, f.Mode())
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// cleanName removes leading ./ and trailing slashes
func cleanName(name string) string {
	name = strings.TrimPrefix(filepath.ToSlash(name), "./")
	return strings.TrimSuffix(name, "/")
}

func targetPath(dest, name string) (string, error) {
	target := filepath.Join(dest, filepath.FromSlash(name))
	rel, err := filepath.Rel(dest, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("archive member %q escapes destination", name)
	}
	return target, nil
}

func writeFile(fs afero.Fs, target string, r io.Reader, mode os.FileMode) error {
	if err := fs.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("creating parent directory: %w", err)
	}
	if mode.Perm() == 0 {
		mode = 0644
	}
	out, err := fs.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode.Perm())
	if err != nil {
		return fmt.Errorf("creating file %s: %w", target, err)
	}
	_, err = io.Copy(out, r)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("writing file %s: %w", target, err)
	}
	return nil
}

func symlink(fs afero.Fs, oldname, target string) error {
	linker, ok := fs.(afero.Linker)
	if !ok {
		return nil
	}
	if err := fs.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("creating parent directory for symlink: %w", err)
	}
	// Remove existing symlink if it exists
	_ = fs.Remove(target)
	if err := linker.SymlinkIfPossible(oldname, target); err != nil {
		return fmt.Errorf("creating symlink %s -> %s: %w", target, oldname, err)
	}
	return nil
}

// Matcher returns a predicate accepting names matched by any of patterns.
// Patterns use doublestar syntax (e.g. "*/include/**").
func Matcher(patterns []string) (func(string) bool, error) {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid glob %q", p)
		}
	}
	return func(name string) bool {
		for _, p := range patterns {
			if ok, _ := doublestar.Match(strings.TrimSuffix(p, "/"), name); ok {
				return true
			}
		}
		return false
	}, nil
}

// TopLevel returns the first path component of the first member, which is
// usually the directory a source archive unpacks into.
func TopLevel(names []string) string {
	for _, n := range names {
		if n == "" {
			continue
		}
		top, _, _ := strings.Cut(n, "/")
		return top
	}
	return ""
}
