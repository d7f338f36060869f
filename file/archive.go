package file

import (
	"archive/tar"
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mholt/archiver/v3"
	"github.com/pkg/errors"

	"github.com/mensylisir/xmbuild/common"
)

// IsArchive reports whether name has an extension Extract understands.
func IsArchive(name string) bool {
	return archiveKind(name) != ""
}

// LooksLikeArchive reports whether name is a compressed file or archive, whether or not
// Extract can unpack it.
func LooksLikeArchive(name string) bool {
	if IsArchive(name) {
		return true
	}
	lower := strings.ToLower(name)
	if strings.Contains(filepath.Base(lower), ".tar.") {
		return true
	}
	for _, ext := range []string{".gz", ".bz2", ".xz", ".zst", ".lz4", ".7z", ".rar", ".z"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

func archiveKind(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return "tar.gz"
	case strings.HasSuffix(lower, ".tar.bz2"), strings.HasSuffix(lower, ".tbz2"):
		return "tar.bz2"
	case strings.HasSuffix(lower, ".tar.xz"), strings.HasSuffix(lower, ".txz"):
		return "tar.xz"
	case strings.HasSuffix(lower, ".tar.zst"), strings.HasSuffix(lower, ".tzst"):
		return "tar.zst"
	case strings.HasSuffix(lower, ".tar.lz4"):
		return "tar.lz4"
	case strings.HasSuffix(lower, ".tar"):
		return "tar"
	case strings.HasSuffix(lower, ".zip"):
		return "zip"
	}
	return ""
}

// Extract unpacks the archive at src into dstDir and returns the directory builds should start in:
// the single top-level directory of the archive when there is one, dstDir otherwise.
func Extract(src, dstDir string) (string, error) {
	if err := CreateDir(dstDir); err != nil {
		return "", err
	}
	var err error
	switch archiveKind(src) {
	case "tar.gz", "tar.bz2", "tar":
		err = Untar(src, dstDir)
	case "tar.xz":
		err = archiver.NewTarXz().Unarchive(src, dstDir)
	case "tar.zst":
		err = archiver.NewTarZstd().Unarchive(src, dstDir)
	case "tar.lz4":
		err = archiver.NewTarLz4().Unarchive(src, dstDir)
	case "zip":
		err = Unzip(src, dstDir)
	default:
		return "", fmt.Errorf("unsupported archive format for %s", src)
	}
	if err != nil {
		return "", errors.Wrapf(err, "failed to unpack %s", filepath.Base(src))
	}
	return TopLevelDir(dstDir)
}

// TopLevelDir returns dir/<entry> if dir holds exactly one entry and it is a directory.
func TopLevelDir(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to list %s: %w", dir, err)
	}
	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(dir, entries[0].Name()), nil
	}
	return dir, nil
}

func openTarStream(src string) (io.Reader, func() error, error) {
	fr, err := os.Open(src)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open source tarball %s: %w", src, err)
	}
	switch archiveKind(src) {
	case "tar.gz":
		gr, err := gzip.NewReader(fr)
		if err != nil {
			fr.Close()
			return nil, nil, fmt.Errorf("failed to create gzip reader for %s: %w", src, err)
		}
		return gr, func() error { gr.Close(); return fr.Close() }, nil
	case "tar.bz2":
		return bzip2.NewReader(fr), fr.Close, nil
	default:
		return fr, fr.Close, nil
	}
}

// safeJoin joins name onto root and rejects entries escaping root.
func safeJoin(root, name string) (string, error) {
	target := filepath.Join(root, name)
	cleanRoot := filepath.Clean(root)
	if target != cleanRoot && !strings.HasPrefix(target, cleanRoot+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid archive entry path: %s (escapes %s)", name, root)
	}
	return target, nil
}

// Untar extracts a tarball (plain, gzip or bzip2 compressed) into dstDir.
func Untar(srcTarball, dstDir string) error {
	stream, closeFn, err := openTarStream(srcTarball)
	if err != nil {
		return err
	}
	defer closeFn()

	tr := tar.NewReader(stream)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("error reading tar header from %s: %w", srcTarball, err)
		}
		targetPath, err := safeJoin(dstDir, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(targetPath, fs.FileMode(hdr.Mode)|0700); err != nil {
				return fmt.Errorf("failed to create directory %s from tar: %w", targetPath, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(targetPath), common.FileMode0755); err != nil {
				return fmt.Errorf("failed to create parent directory for %s: %w", targetPath, err)
			}
			f, err := os.OpenFile(targetPath, os.O_CREATE|os.O_RDWR|os.O_TRUNC, fs.FileMode(hdr.Mode))
			if err != nil {
				return fmt.Errorf("failed to create file %s from tar: %w", targetPath, err)
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return fmt.Errorf("failed to write content to file %s from tar: %w", targetPath, err)
			}
			f.Close()
		case tar.TypeSymlink:
			if err := Symlink(hdr.Linkname, targetPath); err != nil {
				return err
			}
		case tar.TypeLink:
			linkSrc, err := safeJoin(dstDir, hdr.Linkname)
			if err != nil {
				return err
			}
			if err := os.Link(linkSrc, targetPath); err != nil {
				return fmt.Errorf("failed to create hard link %s -> %s: %w", targetPath, linkSrc, err)
			}
		}
	}
	return nil
}

// Unzip extracts a zip archive into dstDir.
func Unzip(src, dstDir string) error {
	z := archiver.NewZip()
	z.OverwriteExisting = true
	return z.Unarchive(src, dstDir)
}

// TarGz archives the contents of srcDir into a gzipped tarball, with entries relative to srcDir.
func TarGz(srcDir, dstTarball string) error {
	fw, err := os.Create(dstTarball)
	if err != nil {
		return fmt.Errorf("failed to create destination tarball %s: %w", dstTarball, err)
	}
	defer fw.Close()
	gw := gzip.NewWriter(fw)
	defer gw.Close()
	tw := tar.NewWriter(gw)
	defer tw.Close()

	srcDir = filepath.Clean(srcDir)
	return filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == srcDir {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		link := ""
		if d.Type()&os.ModeSymlink != 0 {
			if link, err = os.Readlink(path); err != nil {
				return err
			}
		}
		hdr, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if d.Type().IsRegular() {
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			_, err = io.Copy(tw, f)
			f.Close()
			return err
		}
		return nil
	})
}
