// Package export renders week snapshots into downloadable documents.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"github.com/edtsync/edt-sync-api/pkg/timetable"
)

var csvHeaders = []string{"day", "start", "end", "subject", "class", "teacher", "room", "status"}

// WeekCSV renders a snapshot's lessons as CSV, one row per occurrence.
func WeekCSV(snap timetable.Snapshot) ([]byte, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(csvHeaders); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for _, day := range timetable.TeachingDays {
		for _, entry := range snap.ScheduleEntries {
			if entry.Day != day {
				continue
			}
			record := []string{day, entry.StartTime, entry.EndTime, entry.Subject, entry.ClassName, entry.TeacherID, entry.Room, entryStatus(entry)}
			if err := writer.Write(record); err != nil {
				return nil, fmt.Errorf("write csv row: %w", err)
			}
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// WeekPDF renders a snapshot as a landscape week grid, one column per
// teaching day.
func WeekPDF(snap timetable.Snapshot, title string) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	header := fmt.Sprintf("%s - week %d/%d", title, snap.Week, snap.Year)
	pdf.CellFormat(0, 10, header, "", 1, "C", false, 0, "")
	pdf.Ln(3)

	colWidth := 277.0 / float64(len(timetable.TeachingDays))

	pdf.SetFont("Arial", "B", 10)
	for _, day := range timetable.TeachingDays {
		pdf.CellFormat(colWidth, 8, day, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	byDay := make(map[string][]timetable.ScheduleEntry, len(timetable.TeachingDays))
	maxRows := 0
	for _, day := range timetable.TeachingDays {
		for _, entry := range snap.ScheduleEntries {
			if entry.Day == day {
				byDay[day] = append(byDay[day], entry)
			}
		}
		if len(byDay[day]) > maxRows {
			maxRows = len(byDay[day])
		}
	}

	pdf.SetFont("Arial", "", 8)
	for row := 0; row < maxRows; row++ {
		for _, day := range timetable.TeachingDays {
			cell := ""
			if entries := byDay[day]; row < len(entries) {
				entry := entries[row]
				cell = fmt.Sprintf("%s-%s %s %s", entry.StartTime, entry.EndTime, entry.Subject, entry.Room)
				if status := entryStatus(entry); status != "" {
					cell += " [" + status + "]"
				}
			}
			pdf.CellFormat(colWidth, 7, cell, "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func entryStatus(entry timetable.ScheduleEntry) string {
	switch {
	case entry.Cancelled:
		return "cancelled"
	case entry.Replaced:
		return "replaced"
	}
	return ""
}
