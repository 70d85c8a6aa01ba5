// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-manta.
//
// go-manta is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jeremyhahn/go-manta/pkg/common"
	"github.com/jeremyhahn/go-manta/pkg/jobs"
)

// OutputFormat defines the output format type.
type OutputFormat string

const (
	FormatText  OutputFormat = "text"
	FormatJSON  OutputFormat = "json"
	FormatTable OutputFormat = "table"
)

// ObjectInfo holds information about a listing entry for output formatting.
type ObjectInfo struct {
	Path         string    `json:"path"`
	Type         string    `json:"type"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
	ContentType  string    `json:"content_type,omitempty"`
}

// OperationResult holds the result of an operation.
type OperationResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// FormatOperationResult formats an operation result in the specified format.
func FormatOperationResult(result *OperationResult, format OutputFormat) string {
	switch format {
	case FormatJSON:
		return formatJSON(result)
	case FormatTable:
		return formatResultTable(result)
	default:
		return formatResultText(result)
	}
}

// FormatListResult formats a directory listing in the specified format.
func FormatListResult(objects []ObjectInfo, format OutputFormat) string {
	switch format {
	case FormatJSON:
		return formatJSON(map[string]any{
			"count":   len(objects),
			"objects": objects,
		})
	case FormatTable:
		return formatListTable(objects)
	default:
		return formatListText(objects)
	}
}

// FormatError formats an error message in the specified format.
func FormatError(err error, format OutputFormat) string {
	result := &OperationResult{
		Success: false,
		Error:   err.Error(),
	}
	return FormatOperationResult(result, format)
}

func formatResultText(result *OperationResult) string {
	if result.Success {
		if result.Message != "" {
			return result.Message + "\n"
		}
		return "Operation completed successfully\n"
	}
	return fmt.Sprintf("Error: %s\n", result.Error)
}

func formatResultTable(result *OperationResult) string {
	status, text := "SUCCESS", result.Message
	if !result.Success {
		status, text = "FAILED", result.Error
	}
	output := "┌────────────────────────────────────────────────────────┐\n"
	output += "│ Operation Result                                       │\n"
	output += "├────────────────────────────────────────────────────────┤\n"
	output += fmt.Sprintf("│ Status: %-46s │\n", status)
	if text != "" {
		for _, line := range wrapText(text, 54) {
			output += fmt.Sprintf("│ %-54s │\n", line)
		}
	}
	output += "└────────────────────────────────────────────────────────┘\n"
	return output
}

func formatJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("{\"error\": \"failed to marshal JSON: %s\"}\n", err)
	}
	return string(data) + "\n"
}

func formatListText(objects []ObjectInfo) string {
	if len(objects) == 0 {
		return "No entries found\n"
	}

	var output string
	for _, obj := range objects {
		name := common.LastSegment(obj.Path)
		if obj.Type == string(common.TypeDirectory) {
			name += "/"
		}
		output += name + "\n"
	}
	return output
}

func formatListTable(objects []ObjectInfo) string {
	if len(objects) == 0 {
		return "No entries found\n"
	}

	var output string
	output += "┌────────────────────────────────────┬───────────┬──────────────┬──────────────────────┐\n"
	output += "│ Name                               │ Type      │ Size         │ Last Modified        │\n"
	output += "├────────────────────────────────────┼───────────┼──────────────┼──────────────────────┤\n"

	for _, obj := range objects {
		name := truncate(common.LastSegment(obj.Path), 34)
		size := formatSize(obj.Size)
		if obj.Type == string(common.TypeDirectory) {
			size = "-"
		}
		modified := obj.LastModified.Format("2006-01-02 15:04:05")
		output += fmt.Sprintf("│ %-34s │ %-9s │ %-12s │ %-20s │\n", name, obj.Type, size, modified)
	}

	output += "└────────────────────────────────────┴───────────┴──────────────┴──────────────────────┘\n"
	output += fmt.Sprintf("Total: %d entr(ies)\n", len(objects))
	return output
}

// ToObjectInfo converts listing entries for output.
func ToObjectInfo(entries []*common.ObjectMetadata) []ObjectInfo {
	objects := make([]ObjectInfo, len(entries))
	for i, e := range entries {
		objects[i] = ObjectInfo{
			Path:         e.Path,
			Type:         string(e.Type),
			Size:         e.Size,
			LastModified: e.LastModified,
			ContentType:  e.ContentType,
		}
	}
	return objects
}

// FormatMetadataResult formats object metadata in the specified format.
func FormatMetadataResult(md *common.ObjectMetadata, format OutputFormat) string {
	if md == nil {
		return FormatError(fmt.Errorf("metadata not found"), format)
	}
	switch format {
	case FormatJSON:
		return formatJSON(md)
	case FormatTable:
		return formatMetadataTable(md)
	default:
		return formatMetadataText(md)
	}
}

func formatMetadataText(md *common.ObjectMetadata) string {
	var output string
	output += fmt.Sprintf("Path: %s\n", md.Path)
	output += fmt.Sprintf("  Type: %s\n", md.Type)
	if md.IsDirectory() {
		output += fmt.Sprintf("  Entries: %d\n", md.Size)
	} else {
		output += fmt.Sprintf("  Size: %s\n", formatSize(md.Size))
	}
	if !md.LastModified.IsZero() {
		output += fmt.Sprintf("  Last Modified: %s\n", md.LastModified.Format(time.RFC3339))
	}
	if md.ContentType != "" {
		output += fmt.Sprintf("  Content Type: %s\n", md.ContentType)
	}
	if md.ETag != "" {
		output += fmt.Sprintf("  ETag: %s\n", md.ETag)
	}
	if md.MD5 != "" {
		output += fmt.Sprintf("  Content MD5: %s\n", md.MD5)
	}
	if md.Durability > 0 {
		output += fmt.Sprintf("  Durability: %d\n", md.Durability)
	}
	if len(md.Metadata) > 0 {
		output += "  Metadata:\n"
		for _, k := range md.Metadata.Keys() {
			output += fmt.Sprintf("    %s: %s\n", k, md.Metadata[k])
		}
	}
	return output
}

func formatMetadataTable(md *common.ObjectMetadata) string {
	rows := [][2]string{
		{"Path", md.Path},
		{"Type", string(md.Type)},
		{"Size", formatSize(md.Size)},
		{"Content Type", md.ContentType},
		{"ETag", md.ETag},
	}
	if !md.LastModified.IsZero() {
		rows = append(rows, [2]string{"Last Modified", md.LastModified.Format("2006-01-02 15:04:05")})
	}
	for _, k := range md.Metadata.Keys() {
		rows = append(rows, [2]string{k, md.Metadata[k]})
	}

	output := "┌──────────────────┬────────────────────────────────────────┐\n"
	output += "│ Field            │ Value                                  │\n"
	output += "├──────────────────┼────────────────────────────────────────┤\n"
	for _, r := range rows {
		output += fmt.Sprintf("│ %-16s │ %-38s │\n", truncate(r[0], 16), truncate(r[1], 38))
	}
	output += "└──────────────────┴────────────────────────────────────────┘\n"
	return output
}

// FormatJobResult formats a job in the specified format.
func FormatJobResult(job *jobs.Job, format OutputFormat) string {
	switch format {
	case FormatJSON:
		return formatJSON(job)
	case FormatTable:
		return FormatJobsResult([]*jobs.Job{job}, format)
	default:
		var output string
		output += fmt.Sprintf("Job: %s\n", job.ID)
		if job.Name != "" {
			output += fmt.Sprintf("  Name: %s\n", job.Name)
		}
		output += fmt.Sprintf("  State: %s\n", job.Lifecycle())
		for i, p := range job.Phases {
			output += fmt.Sprintf("  Phase %d: %s %q\n", i, p.Type, p.Exec)
		}
		if job.Stats != nil {
			output += fmt.Sprintf("  Tasks: %d/%d done, %d outputs, %d errors\n",
				job.Stats.TasksDone, job.Stats.Tasks, job.Stats.Outputs, job.Stats.Errors)
		}
		return output
	}
}

// FormatJobsResult formats several jobs in the specified format.
func FormatJobsResult(list []*jobs.Job, format OutputFormat) string {
	switch format {
	case FormatJSON:
		return formatJSON(map[string]any{
			"count": len(list),
			"jobs":  list,
		})
	case FormatTable:
		if len(list) == 0 {
			return "No jobs found\n"
		}
		output := "┌──────────────────────────────────────┬──────────────────┬──────────────┐\n"
		output += "│ ID                                   │ Name             │ State        │\n"
		output += "├──────────────────────────────────────┼──────────────────┼──────────────┤\n"
		for _, j := range list {
			output += fmt.Sprintf("│ %-36s │ %-16s │ %-12s │\n", j.ID, truncate(j.Name, 16), j.Lifecycle())
		}
		output += "└──────────────────────────────────────┴──────────────────┴──────────────┘\n"
		return output
	default:
		if len(list) == 0 {
			return "No jobs found\n"
		}
		var output string
		for _, j := range list {
			output += fmt.Sprintf("%s %s %s\n", j.ID, j.Lifecycle(), j.Name)
		}
		return output
	}
}

// FormatLines formats a list of plain values, such as job outputs.
func FormatLines(lines []string, format OutputFormat) string {
	if format == FormatJSON {
		if lines == nil {
			lines = []string{}
		}
		return formatJSON(lines)
	}
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

// FormatJobErrors formats job task errors in the specified format.
func FormatJobErrors(errs []*jobs.JobError, format OutputFormat) string {
	if format == FormatJSON {
		if errs == nil {
			errs = []*jobs.JobError{}
		}
		return formatJSON(errs)
	}
	var output string
	for _, e := range errs {
		output += fmt.Sprintf("%s: %s\n", e.Input, e.Error())
	}
	return output
}

// formatSize formats a byte size into a human-readable string.
func formatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(size)/float64(div), "KMGTPE"[exp])
}

// truncate truncates a string to maxLen characters.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// wrapText wraps text to fit within maxWidth characters.
func wrapText(text string, maxWidth int) []string {
	if len(text) <= maxWidth {
		return []string{text}
	}

	if !strings.Contains(text, " ") {
		var lines []string
		for len(text) > maxWidth {
			lines = append(lines, text[:maxWidth])
			text = text[maxWidth:]
		}
		if len(text) > 0 {
			lines = append(lines, text)
		}
		return lines
	}

	var lines []string
	var currentLine string
	for _, word := range strings.Fields(text) {
		switch {
		case currentLine == "":
			currentLine = word
		case len(currentLine)+1+len(word) <= maxWidth:
			currentLine += " " + word
		default:
			lines = append(lines, currentLine)
			currentLine = word
		}
	}
	if currentLine != "" {
		lines = append(lines, currentLine)
	}
	return lines
}
