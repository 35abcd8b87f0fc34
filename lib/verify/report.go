package verify

import (
	"bufio"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/xoviat/capsynth/lib/geom"
)

/*
	Every backend answers with the same line-oriented report:

		# free text, kept verbatim
		VIOLATION rule=min_width layer=M1 index=4 role=finger box=0,0,0.05,2 value=0.05 limit=0.1
		RESULT FAIL 1

		CAP PLUS GND 12.34567
		RESULT OK

	Lines the parser does not know are ignored but stay in Text.
*/

// Rule names reported by the checkers.
const (
	RuleMinWidth     = "min_width"
	RuleMinSpacing   = "min_spacing"
	RuleMinArea      = "min_area"
	RuleViaEnclosure = "via_enclosure"
)

var (
	ErrMalformedReport = errors.New("verify: malformed report")
	ErrNoUsable        = errors.New("verify: no usable capacitance for terminal")
)

// Violation is one rule violation. Index points into the primitive list
// that was checked (after flattening), Role is that primitive's role.
type Violation struct {
	Rule  string
	Layer string
	Index int
	Role  geom.Role
	Box   geom.Rect
	Value float64
	Limit float64
}

func (v Violation) String() string {
	return fmt.Sprintf("VIOLATION rule=%s layer=%s index=%d role=%s box=%s,%s,%s,%s value=%s limit=%s",
		v.Rule, v.Layer, v.Index, v.Role,
		num(v.Box.X0), num(v.Box.Y0), num(v.Box.X1), num(v.Box.Y1),
		num(v.Value), num(v.Limit))
}

// RuleReport is the complete answer of a rule check.
type RuleReport struct {
	Pass       bool
	Violations []Violation
	Text       string
}

// Capacitance is the extracted value between two nets, in fF.
type Capacitance struct {
	A, B  string
	Value float64
}

func (c Capacitance) String() string {
	return fmt.Sprintf("CAP %s %s %s", c.A, c.B, num(c.Value))
}

// ParasiticReport is the complete answer of an extraction.
type ParasiticReport struct {
	Entries []Capacitance
	Text    string
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func fields(line string) map[string]string {
	out := map[string]string{}
	for _, f := range strings.Fields(line) {
		if k, v, ok := strings.Cut(f, "="); ok {
			out[k] = v
		}
	}
	return out
}

// ParseRuleReport reads a rule report. A report without a RESULT line is
// malformed.
func ParseRuleReport(text string) (*RuleReport, error) {
	report := &RuleReport{Text: text}
	seen := false

	scanner := bufio.NewScanner(strings.NewReader(text))
	for line := 1; scanner.Scan(); line++ {
		row := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(row, "VIOLATION "):
			v, err := parseViolation(row)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d", line)
			}
			report.Violations = append(report.Violations, v)
		case strings.HasPrefix(row, "RESULT "):
			parts := strings.Fields(row)
			switch parts[1] {
			case "PASS":
				report.Pass = true
			case "FAIL":
				report.Pass = false
			default:
				return nil, errors.Wrapf(ErrMalformedReport, "line %d: result %q", line, parts[1])
			}
			seen = true
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "scan rule report")
	}

	if !seen {
		return nil, errors.Wrap(ErrMalformedReport, "missing RESULT line")
	}
	if report.Pass && len(report.Violations) > 0 {
		report.Pass = false
	}
	return report, nil
}

func parseViolation(row string) (Violation, error) {
	f := fields(row)
	v := Violation{
		Rule:  f["rule"],
		Layer: f["layer"],
		Role:  geom.Role(f["role"]),
	}
	if v.Rule == "" {
		return v, errors.Wrap(ErrMalformedReport, "violation without rule")
	}

	var err error
	if s, ok := f["index"]; ok {
		if v.Index, err = strconv.Atoi(s); err != nil {
			return v, errors.Wrap(ErrMalformedReport, "index")
		}
	} else {
		v.Index = -1
	}
	if s, ok := f["box"]; ok {
		parts := strings.Split(s, ",")
		if len(parts) != 4 {
			return v, errors.Wrap(ErrMalformedReport, "box")
		}
		var c [4]float64
		for i, p := range parts {
			if c[i], err = strconv.ParseFloat(p, 64); err != nil {
				return v, errors.Wrap(ErrMalformedReport, "box")
			}
		}
		v.Box = geom.R(c[0], c[1], c[2], c[3])
	}
	if s, ok := f["value"]; ok {
		if v.Value, err = strconv.ParseFloat(s, 64); err != nil {
			return v, errors.Wrap(ErrMalformedReport, "value")
		}
	}
	if s, ok := f["limit"]; ok {
		if v.Limit, err = strconv.ParseFloat(s, 64); err != nil {
			return v, errors.Wrap(ErrMalformedReport, "limit")
		}
	}
	return v, nil
}

// ParseParasiticReport reads an extraction report.
func ParseParasiticReport(text string) (*ParasiticReport, error) {
	report := &ParasiticReport{Text: text}
	seen := false

	scanner := bufio.NewScanner(strings.NewReader(text))
	for line := 1; scanner.Scan(); line++ {
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		switch parts[0] {
		case "CAP":
			if len(parts) != 4 {
				return nil, errors.Wrapf(ErrMalformedReport, "line %d: want CAP a b value", line)
			}
			value, err := strconv.ParseFloat(parts[3], 64)
			if err != nil {
				return nil, errors.Wrapf(ErrMalformedReport, "line %d: value %q", line, parts[3])
			}
			report.Entries = append(report.Entries, Capacitance{A: parts[1], B: parts[2], Value: value})
		case "RESULT":
			seen = true
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "scan parasitic report")
	}
	if !seen {
		return nil, errors.Wrap(ErrMalformedReport, "missing RESULT line")
	}
	return report, nil
}

// matchAny reports whether name matches one of the glob patterns.
func matchAny(name string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := path.Match(p, name); ok {
			return true
		}
	}
	return false
}

// Usable is the capacitance between terminal and ground: the sum of every
// entry that joins terminal to a net matching one of the ground patterns.
// Entries between two non-ground terminals are parasitic and never count.
func (r *ParasiticReport) Usable(terminal string, ground []string) (float64, error) {
	total, found := 0.0, false
	for _, e := range r.Entries {
		switch {
		case e.A == terminal && matchAny(e.B, ground) && !matchAny(e.A, ground):
		case e.B == terminal && matchAny(e.A, ground) && !matchAny(e.B, ground):
		default:
			continue
		}
		total += e.Value
		found = true
	}
	if !found {
		return 0, errors.Wrapf(ErrNoUsable, "%q", terminal)
	}
	return total, nil
}

// Parasitic lists the entries between two non-ground nets.
func (r *ParasiticReport) Parasitic(ground []string) []Capacitance {
	var out []Capacitance
	for _, e := range r.Entries {
		if !matchAny(e.A, ground) && !matchAny(e.B, ground) {
			out = append(out, e)
		}
	}
	return out
}

// Rules lists the distinct violated rules in sorted order.
func (r *RuleReport) Rules() []string {
	seen := map[string]bool{}
	var out []string
	for _, v := range r.Violations {
		if !seen[v.Rule] {
			seen[v.Rule] = true
			out = append(out, v.Rule)
		}
	}
	sort.Strings(out)
	return out
}
