package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"go.yaml.in/yaml/v3"
)

// ProgramReport is the outcome of one catalog program.
type ProgramReport struct {
	Name        string `json:"name" yaml:"name"`
	Summary     string `json:"summary" yaml:"summary"`
	Term        string `json:"term" yaml:"term"`
	Outcome     string `json:"outcome" yaml:"outcome"`
	Result      string `json:"result,omitempty" yaml:"result,omitempty"`
	Error       string `json:"error,omitempty" yaml:"error,omitempty"`
	Steps       uint64 `json:"steps" yaml:"steps"`
	Collections uint64 `json:"collections" yaml:"collections"`
	Swept       int    `json:"swept" yaml:"swept"`
	MaxLive     int    `json:"max_live" yaml:"max_live"`
	RunID       string `json:"run_id,omitempty" yaml:"run_id,omitempty"`
}

// RunReport is the full report for one CLI invocation.
type RunReport struct {
	Programs []ProgramReport `json:"programs" yaml:"programs"`
	Passed   int             `json:"passed" yaml:"passed"`
	Failed   int             `json:"failed" yaml:"failed"`
}

// writeReport renders the report in the requested format.
func writeReport(w io.Writer, format string, rep *RunReport) error {
	switch format {
	case "text":
		return writeTextReport(w, rep)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case "yaml":
		data, err := yaml.Marshal(rep)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	default:
		return fmt.Errorf("unknown format %q (use text, json, or yaml)", format)
	}
}

func writeTextReport(w io.Writer, rep *RunReport) error {
	color := false
	if f, ok := w.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}

	for _, p := range rep.Programs {
		detail := p.Result
		if detail == "" {
			detail = p.Error
		}
		fmt.Fprintf(w, "%s %-18s %s\n", statusLabel(p.Outcome == "pass", color), p.Name, detail)
		fmt.Fprintf(w, "     steps=%d collections=%d swept=%d max-live=%d\n",
			p.Steps, p.Collections, p.Swept, p.MaxLive)
	}
	fmt.Fprintf(w, "\n%d passed, %d failed\n", rep.Passed, rep.Failed)
	return nil
}

func statusLabel(pass, color bool) string {
	switch {
	case pass && color:
		return "\x1b[32mPASS\x1b[0m"
	case pass:
		return "PASS"
	case color:
		return "\x1b[31mFAIL\x1b[0m"
	default:
		return "FAIL"
	}
}
