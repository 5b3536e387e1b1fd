package backup

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/Meghdut-Mandal/WhatsappStatusHandler-sub001/internal/fsutil"
)

const (
	infoSuffix = ".info.json"
	dateLayout = "2006-01-02"
	extZip     = ".zip"
	extJSON    = ".json"
)

// archiveNameRegex matches backup_<id>_<yyyy-mm-dd>.{zip|json}.
var archiveNameRegex = regexp.MustCompile(`^backup_([A-Za-z0-9-]+)_(\d{4}-\d{2}-\d{2})\.(zip|json)$`)

// BackupInfo describes one archive. It is persisted as the archive's sidecar.
type BackupInfo struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Size      int64     `json:"size"`
	Filename  string    `json:"filename"`
	Options   Options   `json:"options"`
	Checksum  string    `json:"checksum,omitempty"`
	Version   string    `json:"version,omitempty"`
	Encrypted bool      `json:"encrypted"`
}

// archiveName returns the archive filename for a backup.
func archiveName(id string, ts time.Time, compressed bool) string {
	ext := extJSON
	if compressed {
		ext = extZip
	}
	return "backup_" + id + "_" + ts.UTC().Format(dateLayout) + ext
}

// infoPath returns the sidecar path of an archive path.
func infoPath(archivePath string) string {
	return strings.TrimSuffix(archivePath, filepath.Ext(archivePath)) + infoSuffix
}

// isArchiveName reports whether name looks like a backup archive.
func isArchiveName(name string) bool {
	return archiveNameRegex.MatchString(name)
}

// infoFromFilename reconstructs minimal info from an archive name.
// Checksum and version stay unknown.
func infoFromFilename(name string) (*BackupInfo, bool) {
	m := archiveNameRegex.FindStringSubmatch(name)
	if m == nil {
		return nil, false
	}
	ts, err := time.Parse(dateLayout, m[2])
	if err != nil {
		return nil, false
	}
	return &BackupInfo{
		ID:        m[1],
		Timestamp: ts,
		Filename:  name,
		Options:   Options{Compression: m[3] == "zip"},
	}, true
}

func readInfo(path string) (*BackupInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var info BackupInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, errors.Wrap(err, "decode backup info")
	}
	if info.ID == "" || info.Filename == "" {
		return nil, errors.New("backup info is incomplete")
	}
	return &info, nil
}

func writeInfo(path string, info *BackupInfo) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode backup info")
	}
	return fsutil.WriteFileAtomic(path, data, 0600)
}

// fileChecksum streams the file at path through SHA-256.
func fileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
