package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Meghdut-Mandal/WhatsappStatusHandler-sub001/internal/backup"
)

func fprintf(w io.Writer, format string, args ...interface{}) {
	_, _ = fmt.Fprintf(w, format, args...)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func printInfo(w io.Writer, title string, info *backup.BackupInfo, path string) {
	fprintf(w, "%s\n", title)
	fprintf(w, "  ID:        %s\n", info.ID)
	fprintf(w, "  File:      %s\n", path)
	fprintf(w, "  Created:   %s\n", formatTime(info.Timestamp))
	fprintf(w, "  Size:      %s\n", humanize.IBytes(uint64(info.Size)))
	fprintf(w, "  Encrypted: %s\n", yesNo(info.Encrypted))
	fprintf(w, "  Checksum:  %s\n", info.Checksum)
}

func printBackupTable(w io.Writer, backups []*backup.BackupInfo) {
	if len(backups) == 0 {
		fprintf(w, "No backups found\n")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fprintf(tw, "ID\tCREATED\tSIZE\tENCRYPTED\tFILENAME\n")
	for _, b := range backups {
		fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			b.ID,
			formatTime(b.Timestamp),
			humanize.IBytes(uint64(b.Size)),
			yesNo(b.Encrypted),
			b.Filename)
	}
	_ = tw.Flush()
}

func printRestoreResult(w io.Writer, res *backup.RestoreResult) {
	if res.Success {
		fprintf(w, "Restore completed\n")
	} else {
		fprintf(w, "Restore finished with errors\n")
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fprintf(tw, "  settings\t%s\n", yesNo(res.Restored.Settings))
	fprintf(tw, "  sessions\t%d\n", res.Restored.Sessions)
	fprintf(tw, "  send history\t%d\n", res.Restored.SendHistory)
	fprintf(tw, "  media metadata\t%d\n", res.Restored.MediaMeta)
	if res.Restored.Files > 0 {
		fprintf(tw, "  files\t%d\n", res.Restored.Files)
	}
	_ = tw.Flush()

	for _, msg := range res.Warnings {
		fprintf(w, "Warning: %s\n", msg)
	}
	for _, msg := range res.Errors {
		fprintf(w, "Error: %s\n", msg)
	}
}

func printVerifyResult(w io.Writer, path string, res *backup.VerifyResult) {
	status := "valid"
	if !res.Valid {
		status = "INVALID"
	}
	fprintf(w, "%s: %s\n", path, status)
	for _, msg := range res.Warnings {
		fprintf(w, "Warning: %s\n", msg)
	}
	for _, msg := range res.Errors {
		fprintf(w, "Error: %s\n", msg)
	}
}
