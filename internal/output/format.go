// Package output provides formatters for CLI output.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"geotask/internal/task"
)

// Output formats accepted by --format.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// TaskView is the display form of one task.
type TaskView struct {
	Number      int               `json:"number" yaml:"number"`
	ID          string            `json:"id" yaml:"id"`
	Title       string            `json:"title" yaml:"title"`
	Completed   bool              `json:"completed" yaml:"completed"`
	Address     string            `json:"address,omitempty" yaml:"address,omitempty"`
	Coordinates *task.Coordinates `json:"coordinates,omitempty" yaml:"coordinates,omitempty"`
	Photo       string            `json:"photo,omitempty" yaml:"photo,omitempty"`
	State       string            `json:"state" yaml:"state"`
}

// NewTaskView extracts the displayed fields from rec. imageProp names the photo property.
func NewTaskView(num int, id string, rec task.Record, state, imageProp string) TaskView {
	v := TaskView{
		Number:    num,
		ID:        id,
		Title:     rec.Title(),
		Completed: rec.Completed(),
		State:     state,
	}
	v.Address, _ = task.AddressOf(rec)
	if c, ok := task.CoordinatesOf(rec); ok {
		v.Coordinates = &c
	}
	v.Photo, _ = task.ImageURLOf(rec, imageProp)
	return v
}

// Write renders views in the given format.
func Write(w io.Writer, format string, views []TaskView) error {
	switch format {
	case FormatText, "":
		for _, v := range views {
			FormatTask(w, v)
		}
		return nil
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if views == nil {
			views = []TaskView{}
		}
		return enc.Encode(views)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(views); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown format: %s", format)
}

// FormatTask formats a task for text output.
// Format: "{N:>4}  [x] {TITLE}\n", then "      {ADDRESS} ({LAT},{LON})\n" when known.
func FormatTask(w io.Writer, v TaskView) {
	box := "[ ]"
	if v.Completed {
		box = "[x]"
	}
	fmt.Fprintf(w, "%4d  %s %s\n", v.Number, box, normalizeTitle(v.Title))

	var where []string
	if v.Address != "" {
		where = append(where, oneLine(v.Address))
	}
	if v.Coordinates != nil {
		where = append(where, "("+v.Coordinates.String()+")")
	}
	if len(where) > 0 {
		fmt.Fprintf(w, "      %s\n", strings.Join(where, " "))
	}
}

// normalizeTitle normalizes a task title for display.
// - Empty or whitespace-only titles become "(untitled)"
// - Newlines are replaced with spaces
func normalizeTitle(title string) string {
	title = oneLine(title)
	if strings.TrimSpace(title) == "" {
		return "(untitled)"
	}
	return title
}

func oneLine(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	return strings.ReplaceAll(s, "\n", " ")
}
