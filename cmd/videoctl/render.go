package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"sorastudio/internal/domain"
	"sorastudio/internal/lifecycle"
	"sorastudio/internal/pricing"
)

const (
	ansiReset  = "\x1b[0m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiRed    = "\x1b[31m"
	ansiBlue   = "\x1b[34m"
)

var jobHeaders = []string{"ID", "Name", "Model", "Size", "Secs", "Status", "Cost", "Created"}

var jobAligns = []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignLeft}

func buildJobRows(jobs []*domain.Job, now time.Time, colorize bool) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		rows = append(rows, []string{
			shortID(job.ID),
			job.Name,
			string(job.Model),
			string(job.Resolution),
			strconv.Itoa(job.DurationSeconds),
			statusLabel(job.Status, colorize),
			pricing.FormatCost(job.Cost),
			humanize.RelTime(job.CreatedAt, now, "ago", "from now"),
		})
	}
	return rows
}

func renderJobs(w io.Writer, jobs []*domain.Job, now time.Time, colorize bool) {
	if len(jobs) == 0 {
		fmt.Fprintln(w, "No videos yet")
		return
	}
	fmt.Fprint(w, renderTable(jobHeaders, buildJobRows(jobs, now, colorize), jobAligns))
}

func renderJob(w io.Writer, job *domain.Job, colorize bool) {
	rows := [][]string{
		{"ID", job.ID},
		{"External ID", job.ExternalID},
		{"Name", job.Name},
		{"Prompt", job.Prompt},
		{"Model", string(job.Model)},
		{"Resolution", string(job.Resolution)},
		{"Duration", strconv.Itoa(job.DurationSeconds) + "s"},
		{"Status", statusLabel(job.Status, colorize)},
		{"Cost", pricing.FormatCost(job.Cost)},
		{"Created", job.CreatedAt.Format(time.RFC3339)},
		{"Updated", job.UpdatedAt.Format(time.RFC3339)},
	}
	if job.OutputURL != "" {
		rows = append(rows, []string{"Output", job.OutputURL})
	}
	if job.ThumbnailURL != "" {
		rows = append(rows, []string{"Thumbnail", job.ThumbnailURL})
	}
	fmt.Fprint(w, renderTable([]string{"Field", "Value"}, rows, nil))
}

func renderQuote(w io.Writer, q *lifecycle.Quote) {
	if !q.Supported {
		fmt.Fprintf(w, "%s at %s for %ds is not offered\n", q.Model, q.Resolution, q.DurationSeconds)
		return
	}
	fmt.Fprintf(w, "%s at %s for %ds: %s %s (%s/s)\n",
		q.Model, q.Resolution, q.DurationSeconds,
		pricing.FormatCost(q.Cost), q.Currency, pricing.FormatCost(q.RatePerSecond))
}

func renderRates(w io.Writer, t *pricing.Table) {
	models := make([]string, 0, len(t.Rates))
	for model := range t.Rates {
		models = append(models, model)
	}
	sort.Strings(models)

	var rows [][]string
	for _, model := range models {
		sizes := make([]string, 0, len(t.Rates[model]))
		for size := range t.Rates[model] {
			sizes = append(sizes, size)
		}
		sort.Strings(sizes)
		for _, size := range sizes {
			rows = append(rows, []string{model, size, pricing.FormatCost(t.Rates[model][size])})
		}
	}
	fmt.Fprint(w, renderTable([]string{"Model", "Size", "Per second ("+t.Currency+")"}, rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight}))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func statusLabel(status domain.JobStatus, colorize bool) string {
	label := string(status)
	if !colorize {
		return label
	}
	switch status {
	case domain.JobStatusCompleted:
		return ansiGreen + label + ansiReset
	case domain.JobStatusFailed:
		return ansiRed + label + ansiReset
	case domain.JobStatusProcessing:
		return ansiBlue + label + ansiReset
	default:
		return ansiYellow + label + ansiReset
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
