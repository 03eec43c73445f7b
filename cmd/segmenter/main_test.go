package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// b passes a along x at 1 km/s and is within 100 km of it over [400, 600].
const flybyQuery = `bodies:
  - name: a
  - name: b
    linear:
      position: [-500, 0, 0]
      velocity: [1, 0, 0]
window: {start: 0, end: 1000}
properties:
  d: {quantity: distance, observer: a, target: b}
solver: {step: 50}
constraint: {property: d, op: "<=", value: 100, unit: km}
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfg := writeFile(t, "segmenter.yaml", "log:\n  level: error\n")

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--config", cfg}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestSolveCSV(t *testing.T) {
	query := writeFile(t, "flyby.yaml", flybyQuery)

	out, err := execute(t, "solve", query, "-o", "csv", "--time-format", "et")
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	if err != nil {
		t.Fatalf("parse csv %q: %v", out, err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %v, want header plus one row", records)
	}
	if got := strings.Join(records[0], ","); got != "start,end,duration_s" {
		t.Fatalf("header = %q", got)
	}
	for i, want := range []float64{400, 600, 200} {
		got, err := strconv.ParseFloat(records[1][i], 64)
		if err != nil {
			t.Fatalf("column %d: %v", i, err)
		}
		if math.Abs(got-want) > 2e-2 {
			t.Fatalf("column %d = %v, want %v", i, got, want)
		}
	}
}

func TestSolveJSONAndTable(t *testing.T) {
	query := writeFile(t, "flyby.yaml", flybyQuery)

	out, err := execute(t, "solve", query, "--output", "json")
	if err != nil {
		t.Fatalf("solve json: %v", err)
	}
	var res jsonResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if res.Count != 1 || len(res.Intervals) != 1 {
		t.Fatalf("result = %+v, want one interval", res)
	}
	if !strings.HasPrefix(res.Intervals[0].Start, "2000-01-01T") {
		t.Fatalf("start = %q, want an ISO time on 2000-01-01", res.Intervals[0].Start)
	}

	out, err = execute(t, "solve", query)
	if err != nil {
		t.Fatalf("solve table: %v", err)
	}
	// go-pretty upper-cases headers and footers
	if lower := strings.ToLower(out); !strings.Contains(lower, "1 intervals") || !strings.Contains(lower, "duration (s)") {
		t.Fatalf("unexpected table:\n%s", out)
	}
}

func TestSolveRejectsBadInput(t *testing.T) {
	query := writeFile(t, "flyby.yaml", flybyQuery)
	noConstraint := writeFile(t, "bare.yaml", strings.Split(flybyQuery, "constraint:")[0])

	if _, err := execute(t, "solve", query, "-o", "xml"); err == nil {
		t.Fatal("expected an error for an unknown output format")
	}
	if _, err := execute(t, "solve", query, "--time-format", "julian"); err == nil {
		t.Fatal("expected an error for an unknown time format")
	}
	if _, err := execute(t, "solve", noConstraint); !errors.Is(err, errNoConstraint) {
		t.Fatalf("err = %v, want errNoConstraint", err)
	}
	if _, err := execute(t, "solve", filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected an error for a missing query file")
	}
	if _, err := execute(t, "solve", query, "--step=-1"); err == nil {
		t.Fatal("expected an error for a negative step flag")
	}
}

func TestTreeNotesDegradedOperators(t *testing.T) {
	query := writeFile(t, "flyby.yaml", flybyQuery)

	out, err := execute(t, "tree", query)
	if err != nil {
		t.Fatalf("tree: %v", err)
	}
	if !strings.Contains(out, "distance(b from a) <=") {
		t.Fatalf("tree output missing the leaf:\n%s", out)
	}
	if !strings.Contains(out, "note:") {
		t.Fatalf("tree output missing the degraded operator note:\n%s", out)
	}
}

func TestEvalPrintsPropertiesAndConstraint(t *testing.T) {
	query := writeFile(t, "flyby.yaml", flybyQuery)

	out, err := execute(t, "eval", query, "--at", "500", "--at", "0")
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	for _, want := range []string{"constraint", "true", "false", "km"} {
		if !strings.Contains(out, want) {
			t.Fatalf("eval output missing %q:\n%s", want, out)
		}
	}

	if _, err := execute(t, "eval", query); err == nil {
		t.Fatal("expected an error without --at")
	}
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if strings.TrimSpace(out) != "segmenter "+version {
		t.Fatalf("version output = %q", out)
	}
}
