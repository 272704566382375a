// Package common contains shared functionality for command handlers
package common

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"fjacquet/stmt-import/internal/models"
	"fjacquet/stmt-import/internal/session"

	"github.com/fatih/color"
)

// PollInterval is how often WaitForSession refreshes progress.
var PollInterval = 250 * time.Millisecond

// ProgressSource is the polling side of the session manager.
type ProgressSource interface {
	GetImportProgress(ctx context.Context, sessionID string) (*models.ImportSession, error)
}

// WaitForSession polls until the session is terminal, calling onProgress
// whenever the processed count changes.
func WaitForSession(ctx context.Context, src ProgressSource, id string, onProgress func(*models.ImportSession)) (*models.ImportSession, error) {
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	last := -1
	for {
		s, err := src.GetImportProgress(ctx, id)
		if err != nil {
			return nil, err
		}
		if s.ProcessedCount != last && onProgress != nil {
			onProgress(s)
			last = s.ProcessedCount
		}
		if s.Status.IsTerminal() {
			return s, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// PrintProgress writes a one-line progress indicator.
func PrintProgress(w io.Writer, s *models.ImportSession) {
	color.New(color.BgBlue, color.FgWhite).Fprintf(w, " [%4d of %4d] ", s.ProcessedCount, s.Total)
	fmt.Fprintf(w, " %s\r", s.Status)
}

var bucketColors = map[models.Bucket]*color.Color{
	models.BucketMatched:   color.New(color.BgGreen, color.FgBlack),
	models.BucketUncertain: color.New(color.BgYellow, color.FgBlack),
	models.BucketFailed:    color.New(color.BgRed, color.FgWhite),
	models.BucketSkipped:   color.New(color.BgWhite, color.FgBlack),
}

// PrintSession writes a human summary of a terminal session.
func PrintSession(w io.Writer, s *models.ImportSession, verbose bool) {
	fmt.Fprintln(w)
	color.New(color.FgCyan).Fprintf(w, "Session %s", s.SessionID)
	fmt.Fprintf(w, " (%s) %s, %d of %d processed\n", s.Kind, s.Status, s.ProcessedCount, s.Total)
	if s.Error != "" {
		color.New(color.FgRed).Fprintf(w, "Error: %s\n", s.Error)
	}

	if s.Result != nil {
		buckets := []struct {
			name  models.Bucket
			items []models.BucketItem
		}{
			{models.BucketMatched, s.Result.Matched},
			{models.BucketUncertain, s.Result.Uncertain},
			{models.BucketFailed, s.Result.Failed},
			{models.BucketSkipped, s.Result.Skipped},
		}
		for _, b := range buckets {
			bucketColors[b.name].Fprintf(w, " %-9s ", b.name)
			fmt.Fprintf(w, " %d\n", len(b.items))
			if verbose {
				for _, item := range b.items {
					printItem(w, item)
				}
			}
		}
	}

	if r := s.ExecuteResult; r != nil {
		bucketColors[models.BucketMatched].Fprintf(w, " %-9s ", "imported")
		fmt.Fprintf(w, " %d\n", r.Imported)
		bucketColors[models.BucketFailed].Fprintf(w, " %-9s ", "failed")
		fmt.Fprintf(w, " %d\n", len(r.Failed))
		for _, f := range r.Failed {
			fmt.Fprintf(w, "   %s %-40s %s\n", f.Item.Date, f.Item.Description, f.Error)
		}
		bucketColors[models.BucketSkipped].Fprintf(w, " %-9s ", "skipped")
		fmt.Fprintf(w, " %d\n", len(r.Skipped))
	}
}

func printItem(w io.Writer, item models.BucketItem) {
	t := item.Transaction
	color.New(color.BgYellow, color.FgBlack).Fprintf(w, " %10s ", t.Date)
	fmt.Fprintf(w, " %-40s %10s", truncate(t.Description, 40), t.Amount.StringFixed(2))
	switch {
	case item.Match != nil:
		fmt.Fprintf(w, "  -> %s [%s]", item.Match.EntityName, item.Match.MatchType)
	case item.Error != "":
		fmt.Fprintf(w, "  %s", item.Error)
	case item.Reason != "":
		fmt.Fprintf(w, "  %s", item.Reason)
	}
	fmt.Fprintln(w)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// WriteJSON writes v as indented JSON to path, or to w when path is empty.
func WriteJSON(w io.Writer, path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	data = append(data, '\n')
	if path == "" {
		_, err = w.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// ReadExecuteRequest reads confirmed transactions from a JSON file holding
// either {"transactions": [...]} or a bare array.
func ReadExecuteRequest(path string) (session.ExecuteRequest, error) {
	var req session.ExecuteRequest
	data, err := os.ReadFile(path)
	if err != nil {
		return req, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &req.Transactions); err == nil {
		return req, nil
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return req, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return req, nil
}
