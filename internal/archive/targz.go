package archive

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/igoyetche/plex-update-script/internal/plexup"
)

// TarGz implements plexup.Archiver with gzip-compressed tar files.
// Archives created here place the source directory under its own
// basename, so extracting into the source's parent recreates the tree
// in place.
type TarGz struct{}

var _ plexup.Archiver = (*TarGz)(nil)

// NewTarGz creates a tar.gz archiver.
func NewTarGz() *TarGz { return &TarGz{} }

// Create archives srcDir into destFile. Only directories and regular
// files are included; sockets, devices, and symlinks are skipped.
func (a *TarGz) Create(srcDir, destFile string) error {
	root := filepath.Base(filepath.Clean(srcDir))

	file, err := os.Create(destFile)
	if err != nil {
		return fmt.Errorf("creating archive file: %w", err)
	}
	defer file.Close()

	gzw := gzip.NewWriter(file)
	defer gzw.Close()

	tw := tar.NewWriter(gzw)
	defer tw.Close()

	err = filepath.WalkDir(srcDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}
		if !info.IsDir() && !info.Mode().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		name := root
		if rel != "." {
			name = root + "/" + filepath.ToSlash(rel)
		}

		header := &tar.Header{
			Name:    name,
			Mode:    int64(info.Mode().Perm()),
			ModTime: info.ModTime(),
		}
		if info.IsDir() {
			header.Typeflag = tar.TypeDir
			header.Name += "/"
			return tw.WriteHeader(header)
		}

		header.Typeflag = tar.TypeReg
		header.Size = info.Size()
		if err := tw.WriteHeader(header); err != nil {
			return err
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		if _, err := io.Copy(tw, f); err != nil {
			return fmt.Errorf("archiving %s: %w", path, err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("walking %s: %w", srcDir, err)
	}

	// Flush tar and gzip trailers before Create returns so a crash right
	// after leaves a readable archive.
	if err := tw.Close(); err != nil {
		return fmt.Errorf("finalizing tar stream: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return fmt.Errorf("finalizing gzip stream: %w", err)
	}
	return file.Close()
}

// Extract unpacks srcFile into destDir. Entry names are sanitized so an
// archive cannot write outside destDir.
func (a *TarGz) Extract(srcFile, destDir string) error {
	file, err := os.Open(srcFile)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer file.Close()

	gzr, err := gzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("reading gzip stream: %w", err)
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading archive: %w", err)
		}

		target, err := safeJoin(destDir, header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(header.Mode).Perm()); err != nil {
				return fmt.Errorf("creating %s: %w", target, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return fmt.Errorf("creating %s: %w", filepath.Dir(target), err)
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(header.Mode).Perm())
			if err != nil {
				return fmt.Errorf("creating %s: %w", target, err)
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return fmt.Errorf("extracting %s: %w", header.Name, err)
			}
			if err := out.Close(); err != nil {
				return fmt.Errorf("closing %s: %w", target, err)
			}
		default:
			// Archives we create only contain dirs and regular files.
		}
	}
}

// Validate reads every entry in the archive to the end. A truncated or
// corrupt file fails here without touching the filesystem.
func (a *TarGz) Validate(srcFile string) error {
	file, err := os.Open(srcFile)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer file.Close()

	gzr, err := gzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("reading gzip stream: %w", err)
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	for {
		_, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading archive: %w", err)
		}
		if _, err := io.Copy(io.Discard, tr); err != nil {
			return fmt.Errorf("reading archive entry: %w", err)
		}
	}
}

// safeJoin joins an archive entry name onto destDir, rejecting names
// that would escape it.
func safeJoin(destDir, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("unsafe archive entry name %q", name)
	}
	return filepath.Join(destDir, clean), nil
}
