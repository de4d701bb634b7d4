package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"raybox-panel/internal/job"
)

var columns = []string{
	"ID", "NAME", "MACHINE", "STATUS", "MATERIAL", "THICKNESS", "COPIES",
	"UPLOADED", "ASSIGNED", "START", "END", "DURATION", "PROGRESS", "NOTES",
}

const timeLayout = "2006-01-02 15:04:05"

// WriteCSV renders the job table as CSV, one row per record.
func WriteCSV(w io.Writer, records []*job.Record) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(columns); err != nil {
		return err
	}
	for _, r := range records {
		if err := writer.Write(recordRow(r)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func recordRow(r *job.Record) []string {
	return []string{
		r.ID,
		r.Name,
		r.MachineIP,
		string(r.Status),
		r.Material,
		r.Thickness,
		strconv.Itoa(r.Copies),
		formatTime(&r.UploadedAt),
		formatTime(r.AssignedAt),
		formatTime(r.StartedAt),
		formatTime(r.EndedAt),
		r.Duration,
		strconv.Itoa(r.Progress),
		r.Notes,
	}
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(timeLayout)
}
