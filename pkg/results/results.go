// Package results exports a finished search: a CSV table in the layout of
// the classic results.txt, and a JSON report of the whole run.
package results

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/runningwild/timerbench/pkg/config"
	"github.com/runningwild/timerbench/pkg/rank"
	"github.com/runningwild/timerbench/pkg/search"
	"github.com/runningwild/timerbench/pkg/stats"
)

var csvHeader = []string{
	"Resolution_ms", "P50_Delta", "P95_Delta", "P99_Delta", "Mean_Delta", "StdDev", "MAD",
	"Outliers_Removed", "CI_Lower", "CI_Upper", "TOPSIS_Score", "Rank",
}

func f4(v float64) string { return strconv.FormatFloat(v, 'f', 4, 64) }

// WriteCSV writes ranked entries best first, framed by comment lines. The
// trailer names the optimal setting, which is the first entry.
func WriteCSV(w io.Writer, ranked []rank.Ranked, generated time.Time) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "# Timer Resolution Optimization Results")
	fmt.Fprintf(bw, "# Generated: %s\n", generated.Format(time.RFC3339))
	fmt.Fprintln(bw)

	cw := csv.NewWriter(bw)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range ranked {
		s := r.Stats
		rec := []string{
			f4(r.Setting), f4(s.Median), f4(s.P95), f4(s.P99), f4(s.Mean), f4(s.StdDev), f4(s.MAD),
			strconv.Itoa(s.OutliersRemoved), f4(s.CILow), f4(s.CIHigh), f4(r.Closeness), strconv.Itoa(r.Rank),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}

	if len(ranked) > 0 {
		fmt.Fprintln(bw)
		fmt.Fprintf(bw, "# Optimal Resolution: %s ms\n", f4(ranked[0].Setting))
		fmt.Fprintf(bw, "# TOPSIS Score: %s\n", f4(ranked[0].Closeness))
	}
	return bw.Flush()
}

type CandidateRecord struct {
	Index    int              `json:"index"`
	Setting  float64          `json:"setting_ms"`
	Attempts int              `json:"attempts"`
	Stats    stats.Statistics `json:"stats"`
	Samples  []float64        `json:"samples,omitempty"`
}

type SkipRecord struct {
	Index    int     `json:"index"`
	Setting  float64 `json:"setting_ms"`
	Attempts int     `json:"attempts"`
	Error    string  `json:"error"`
}

type RankRecord struct {
	Rank      int              `json:"rank"`
	Setting   float64          `json:"setting_ms"`
	Closeness float64          `json:"closeness"`
	Sources   int              `json:"sources"`
	Stats     stats.Statistics `json:"stats"`
}

// Report is the JSON document of one run.
type Report struct {
	RunID      string            `json:"run_id"`
	Generated  time.Time         `json:"generated"`
	Elapsed    string            `json:"elapsed"`
	Cancelled  bool              `json:"cancelled"`
	Config     *config.Config    `json:"config,omitempty"`
	Best       *search.Best      `json:"best,omitempty"`
	Candidates []CandidateRecord `json:"candidates"`
	Skipped    []SkipRecord      `json:"skipped"`
	Ranking    []RankRecord      `json:"ranking"`
}

// NewReport builds a report with a fresh run id.
func NewReport(cfg *config.Config, st search.State, ranked []rank.Ranked, elapsed time.Duration, generated time.Time) Report {
	r := Report{
		RunID:      uuid.NewString(),
		Generated:  generated,
		Elapsed:    elapsed.Round(time.Millisecond).String(),
		Cancelled:  st.Cancelled,
		Config:     cfg,
		Best:       st.Best,
		Candidates: make([]CandidateRecord, 0, len(st.Completed)),
		Skipped:    make([]SkipRecord, 0, len(st.Skipped)),
		Ranking:    make([]RankRecord, 0, len(ranked)),
	}
	for _, c := range st.Completed {
		r.Candidates = append(r.Candidates, CandidateRecord{
			Index:    c.Index,
			Setting:  c.Setting,
			Attempts: c.Attempts,
			Stats:    c.Stats,
			Samples:  c.Samples,
		})
	}
	for _, s := range st.Skipped {
		msg := ""
		if s.Err != nil {
			msg = s.Err.Error()
		}
		r.Skipped = append(r.Skipped, SkipRecord{Index: s.Index, Setting: s.Setting, Attempts: s.Attempts, Error: msg})
	}
	for _, e := range ranked {
		r.Ranking = append(r.Ranking, RankRecord{
			Rank:      e.Rank,
			Setting:   e.Setting,
			Closeness: e.Closeness,
			Sources:   e.Sources,
			Stats:     e.Stats,
		})
	}
	return r
}

func WriteJSON(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// SaveCSV writes the CSV table to path.
func SaveCSV(path string, ranked []rank.Ranked, generated time.Time) error {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, ranked, generated); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	return nil
}

// SaveJSON writes the report to path.
func SaveJSON(path string, r Report) error {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, r); err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
