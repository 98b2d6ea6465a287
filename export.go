package main

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
)

var exportHeader = []string{
	"ID",
	"Title",
	"Description",
	"Date",
	"Time",
	"Location",
	"Applicants count",
	"Applicants",
}

// buildExportCSV renders the chat's events and applicants as CSV with a UTF-8 BOM
// for better Excel compatibility.
func buildExportCSV(events []EventWithApplicants) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("\xEF\xBB\xBF")

	writer := csv.NewWriter(&buf)
	if err := writer.Write(exportHeader); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for _, ev := range events {
		row := []string{
			strconv.FormatInt(ev.ID, 10),
			ev.Title,
			ev.Description,
			ev.Date.Format(displayDateLayout),
			ev.Time,
			ev.Location,
			strconv.Itoa(len(ev.Applicants)),
			strings.Join(ev.Applicants, ", "),
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("write event %d: %w", ev.ID, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// exportEvents handles the /export command.
// Sends the chat's events with their applicants as a CSV document.
func (b *Bot) exportEvents(req *request, _ string) {
	events, err := b.repo.ListApplications(req.ctx, req.chatID)
	if err != nil {
		req.log.Error("failed to load applications", "error", err)
		b.reply(req, "Failed to load events")
		return
	}
	if len(events) == 0 {
		b.reply(req, "No events found")
		return
	}

	data, err := buildExportCSV(events)
	if err != nil {
		req.log.Error("failed to build export", "error", err)
		b.reply(req, "Failed to build the export")
		return
	}

	doc := tgbotapi.NewDocumentUpload(req.chatID, tgbotapi.FileBytes{
		Name:  "events_export_" + b.clock.Now().Format("20060102_150405") + ".csv",
		Bytes: data,
	})
	doc.Caption = fmt.Sprintf("Events export (%d events)", len(events))
	b.send(req, doc)
}
