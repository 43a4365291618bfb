package executor

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/goccy/go-json"
)

var (
	okColor   = color.New(color.FgGreen)
	failColor = color.New(color.FgRed, color.Bold)
	skipColor = color.New(color.FgYellow)
)

// Render writes the human-readable run summary.
func (s *Summary) Render(w io.Writer) {
	for _, res := range s.Results {
		switch res.Status {
		case StatusRun:
			okColor.Fprintf(w, "  ok  ")
			fmt.Fprintf(w, "%s%s\n", res.Task, timing(&res))
		case StatusSkipped:
			skipColor.Fprintf(w, "  --  ")
			fmt.Fprintf(w, "%s (skipped)\n", res.Task)
		case StatusTimeout:
			failColor.Fprintf(w, "  !!  ")
			fmt.Fprintf(w, "%s timed out%s\n", res.Task, timing(&res))
		default:
			failColor.Fprintf(w, "  !!  ")
			fmt.Fprintf(w, "%s exit %d%s\n", res.Task, res.ExitCode, timing(&res))
		}

		if res.Tail != "" && res.Status != StatusRun {
			for _, line := range strings.Split(res.Tail, "\n") {
				fmt.Fprintf(w, "      | %s\n", line)
			}
		}
	}
}

func timing(res *Result) string {
	if res.DurationMS <= 0 {
		return ""
	}
	out := fmt.Sprintf(" (%s", res.Duration().Round(time.Millisecond))
	if res.Attempts > 1 {
		out += fmt.Sprintf(", %d attempts", res.Attempts)
	}
	return out + ")"
}

// RenderJSON writes the machine-readable summary as a single JSON
// document.
func (s *Summary) RenderJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
