package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/AI-Team-Dev/jobportal/internal/domain/model"
	"github.com/AI-Team-Dev/jobportal/internal/observability/statsd"
	"github.com/AI-Team-Dev/jobportal/internal/util"
)

// printer handles formatted output to the terminal. Status lines go to the
// data stream unless JSON output is on, in which case they move to stderr.
type printer struct {
	mu        sync.Mutex
	out       io.Writer
	status    io.Writer
	err       io.Writer
	useColors bool
}

func newPrinter(out, errOut io.Writer, colors, jsonOut bool) *printer {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		colors = false
	}
	status := out
	if jsonOut {
		status = errOut
	}
	return &printer{out: out, status: status, err: errOut, useColors: colors}
}

func (p *printer) line(w io.Writer, c *color.Color, prefix, format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	msg := fmt.Sprintf(format, args...)
	if p.useColors && c != nil {
		_, _ = c.Fprintln(w, prefix+msg)
		return
	}
	_, _ = fmt.Fprintln(w, prefix+msg)
}

// Info prints an informational message.
func (p *printer) Info(format string, args ...any) {
	p.line(p.status, color.New(color.FgCyan), "", format, args...)
}

// Success prints a success message.
func (p *printer) Success(format string, args ...any) {
	prefix := "[OK] "
	if p.useColors {
		prefix = "✓ "
	}
	p.line(p.status, color.New(color.FgGreen), prefix, format, args...)
}

// Warning prints a warning message.
func (p *printer) Warning(format string, args ...any) {
	prefix := "[WARN] "
	if p.useColors {
		prefix = "⚠ "
	}
	p.line(p.err, color.New(color.FgYellow), prefix, format, args...)
}

// Error prints an error message.
func (p *printer) Error(format string, args ...any) {
	prefix := "[ERROR] "
	if p.useColors {
		prefix = "✗ "
	}
	p.line(p.err, color.New(color.FgRed), prefix, format, args...)
}

// Print prints a plain line on the data stream.
func (p *printer) Print(format string, args ...any) {
	p.line(p.out, nil, "", format, args...)
}

// Header prints a section header.
func (p *printer) Header(title string) {
	p.line(p.status, color.New(color.Bold), "", "\n%s\n%s", title, strings.Repeat("-", len(title)))
}

func (p *printer) badge(text string, attrs ...color.Attribute) string {
	if !p.useColors {
		return text
	}
	return color.New(attrs...).Sprint(text)
}

// JSON writes v indented on the data stream.
func (p *printer) JSON(v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Table renders rows under headers on the data stream.
func (p *printer) Table(headers []string, rows [][]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	table := tablewriter.NewTable(p.out,
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoWrap: tw.WrapNone},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
			Header: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoFormat: tw.On},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Separators: tw.Separators{ShowHeader: tw.Off},
			},
		}),
	)
	table.Header(headers)
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

// jobRow flags a job with the viewer's relationship to it.
type jobRow struct {
	model.Job
	Applied bool `json:"applied"`
	Saved   bool `json:"saved"`
}

func (a *app) printJobs(rows []jobRow) error {
	p := a.console()
	if a.flags.jsonOut {
		if rows == nil {
			rows = []jobRow{}
		}
		return p.JSON(rows)
	}
	if len(rows) == 0 {
		p.Info("No jobs found.")
		return nil
	}
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, []string{
			r.ID.String(),
			r.Title,
			r.Company,
			r.Location,
			r.Salary,
			experience(r.Job),
			a.jobStatus(r),
		})
	}
	return p.Table([]string{"ID", "TITLE", "COMPANY", "LOCATION", "SALARY", "EXPERIENCE", "STATUS"}, out)
}

func (a *app) jobStatus(r jobRow) string {
	p := a.console()
	var parts []string
	if !r.IsEnabled() {
		parts = append(parts, p.badge("disabled", color.FgRed))
	}
	if r.Applied {
		parts = append(parts, p.badge("applied", color.FgGreen))
	}
	if r.Saved {
		parts = append(parts, p.badge("saved", color.FgYellow))
	}
	return strings.Join(parts, ",")
}

func experience(j model.Job) string {
	switch {
	case j.ExperienceFrom != "" && j.ExperienceTo != "":
		return j.ExperienceFrom + "-" + j.ExperienceTo + " yrs"
	case j.ExperienceFrom != "":
		return j.ExperienceFrom + "+ yrs"
	default:
		return ""
	}
}

func (a *app) printMetrics(metrics []statsd.Metric) {
	p := a.console()
	rows := make([][]string, 0, len(metrics))
	for _, m := range metrics {
		value := fmt.Sprintf("%g", m.Value)
		if m.Kind == "timing" {
			value = util.FormatDuration(m.Timing)
		}
		rows = append(rows, []string{m.Kind, m.Name, value, formatTags(m.Tags)})
	}
	p.line(p.err, color.New(color.Bold), "", "\nMetrics\n-------")
	saved := p.out
	p.out = p.err
	if err := p.Table([]string{"KIND", "NAME", "VALUE", "TAGS"}, rows); err != nil {
		p.Warning("render metrics: %v", err)
	}
	p.out = saved
}

func formatTags(tags map[string]string) string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+tags[k])
	}
	return strings.Join(parts, " ")
}
