package backup

import (
	"archive/zip"
	"bytes"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	apperrors "github.com/Meghdut-Mandal/WhatsappStatusHandler-sub001/internal/errors"
)

const (
	// documentName is the zip member holding the backup document.
	documentName = "backup.json"
	// filesPrefix is the zip directory holding raw temp files.
	filesPrefix = "files/"
)

var zipMagic = []byte("PK\x03\x04")

func isZip(data []byte) bool {
	return bytes.HasPrefix(data, zipMagic)
}

// collectFiles lists regular files under root no larger than maxSize, as
// slash-separated paths relative to root. Walk errors become warnings.
func collectFiles(root string, maxSize int64) (files []string, warnings []string) {
	if root == "" {
		return nil, nil
	}
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == root && errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipAll
			}
			warnings = append(warnings, "Failed to read "+p+": "+err.Error())
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			warnings = append(warnings, "Failed to stat "+p+": "+err.Error())
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}
		if info.Size() > maxSize {
			warnings = append(warnings, "Skipped "+filepath.ToSlash(rel)+": file exceeds size limit")
			return nil
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		warnings = append(warnings, "Failed to walk "+root+": "+err.Error())
	}
	sort.Strings(files)
	return files, warnings
}

// encodeZip builds a zip holding document as backup.json plus each file
// from root under files/. Unreadable files are skipped with a warning.
func encodeZip(document []byte, modTime time.Time, root string, files []string) ([]byte, []string, error) {
	var buf bytes.Buffer
	writer := zip.NewWriter(&buf)
	var warnings []string

	header := &zip.FileHeader{
		Name:   documentName,
		Method: zip.Deflate,
	}
	header.Modified = modTime
	w, err := writer.CreateHeader(header)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to create document entry")
	}
	if _, err := w.Write(document); err != nil {
		return nil, nil, errors.Wrap(err, "failed to write document entry")
	}

	for _, rel := range files {
		if err := addFile(writer, root, rel); err != nil {
			warnings = append(warnings, "Skipped "+rel+": "+err.Error())
		}
	}

	if err := writer.Close(); err != nil {
		return nil, nil, errors.Wrap(err, "failed to finalize zip")
	}
	return buf.Bytes(), warnings, nil
}

func addFile(writer *zip.Writer, root, rel string) error {
	absPath := filepath.Join(root, filepath.FromSlash(rel))
	file, err := os.Open(absPath)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = path.Join(strings.TrimSuffix(filesPrefix, "/"), rel)
	header.Method = zip.Deflate

	entry, err := writer.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(entry, file)
	return err
}

// readDocument returns the document bytes of a plaintext archive: the
// backup.json member of a zip, or the bytes themselves otherwise.
func readDocument(data []byte) ([]byte, error) {
	if !isZip(data) {
		return data, nil
	}

	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCorruptedArchive, "Failed to open backup archive", err)
	}
	for _, file := range reader.File {
		if file.Name != documentName {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrCorruptedArchive, "Failed to open "+documentName, err)
		}
		defer rc.Close()
		doc, err := io.ReadAll(rc)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrCorruptedArchive, "Failed to read "+documentName, err)
		}
		return doc, nil
	}
	return nil, apperrors.New(apperrors.ErrCorruptedArchive, msgMissingMember)
}

// countFiles returns the number of raw files stored in a zip archive.
func countFiles(data []byte) int {
	if !isZip(data) {
		return 0
	}
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0
	}
	n := 0
	for _, file := range reader.File {
		if strings.HasPrefix(file.Name, filesPrefix) && !file.FileInfo().IsDir() {
			n++
		}
	}
	return n
}

// extractFiles writes the files/ members of a zip archive under dest.
// Members escaping dest are rejected.
func extractFiles(data []byte, dest string) (int, error) {
	if !isZip(data) {
		return 0, nil
	}
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrCorruptedArchive, "Failed to open backup archive", err)
	}

	count := 0
	for _, file := range reader.File {
		if !strings.HasPrefix(file.Name, filesPrefix) || file.FileInfo().IsDir() {
			continue
		}
		rel := path.Clean(strings.TrimPrefix(file.Name, filesPrefix))
		if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") || path.IsAbs(rel) {
			return count, errors.Newf("archive contains invalid file path: %s", file.Name)
		}
		target := filepath.Join(dest, filepath.FromSlash(rel))

		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return count, errors.Wrap(err, "failed to prepare file destination")
		}
		if err := extractFile(file, target); err != nil {
			return count, errors.Wrapf(err, "failed to extract %s", rel)
		}
		count++
	}
	return count, nil
}

func extractFile(file *zip.File, target string) error {
	rc, err := file.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	mode := file.Mode().Perm()
	if mode == 0 {
		mode = 0644
	}
	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, rc); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}
