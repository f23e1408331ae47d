package verify

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"time"

	"github.com/cmdmox/cmdmox/internal/types"
)

// Report is a serialization-friendly projection of Result, generalized
// from the teacher's VerifyResult (scenario step consumption) to
// expectation match/order/count outcomes, for CI report output.
type Report struct {
	Passed     bool              `json:"passed"`
	Unexpected []UnexpectedEntry `json:"unexpected,omitempty"`
	Order      []OrderSummary    `json:"order_violations,omitempty"`
	Count      []CountSummary    `json:"count_violations,omitempty"`
}

// OrderSummary is the JSON-friendly projection of an OrderViolation.
type OrderSummary struct {
	Expected []string `json:"expected"`
	Observed []string `json:"observed"`
}

// CountSummary is the JSON-friendly projection of a CountViolation.
type CountSummary struct {
	Command string `json:"command"`
	Args    string `json:"args"`
	Want    int    `json:"want"`
	Got     int    `json:"got"`
}

// BuildReport projects r into a Report suitable for JSON/JUnit rendering.
func BuildReport(r Result) Report {
	rep := Report{Passed: r.Empty()}
	rep.Unexpected = r.Unexpected
	for _, o := range r.Order {
		rep.Order = append(rep.Order, OrderSummary{
			Expected: exportNames(o.Expected),
			Observed: exportNames(o.Observed),
		})
	}
	for _, c := range r.Count {
		rep.Count = append(rep.Count, CountSummary{
			Command: c.Expectation.Command,
			Args:    c.Expectation.ArgsRepr(),
			Want:    c.Want,
			Got:     c.Got,
		})
	}
	return rep
}

func exportNames(exps []*types.Expectation) []string {
	names := make([]string, len(exps))
	for i, e := range exps {
		names[i] = e.Command + e.ArgsRepr()
	}
	return names
}

// FormatJSON writes report as compact JSON, grounded on the teacher's
// internal/verify.FormatJSON.
func FormatJSON(w io.Writer, report Report) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(report)
}

// JUnit XML shape, grounded on the teacher's internal/verify/junit.go.

type junitSuites struct {
	XMLName  xml.Name     `xml:"testsuites"`
	Name     string       `xml:"name,attr"`
	Tests    int          `xml:"tests,attr"`
	Failures int          `xml:"failures,attr"`
	Suites   []junitSuite `xml:"testsuite"`
}

type junitSuite struct {
	Name      string      `xml:"name,attr"`
	Tests     int         `xml:"tests,attr"`
	Failures  int         `xml:"failures,attr"`
	Timestamp string      `xml:"timestamp,attr"`
	Cases     []junitCase `xml:"testcase"`
}

type junitCase struct {
	Name    string        `xml:"name,attr"`
	Failure *junitFailure `xml:"failure,omitempty"`
}

type junitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Content string `xml:",chardata"`
}

// FormatJUnit writes report as JUnit XML, grounded on the teacher's
// internal/verify.FormatJUnit.
func FormatJUnit(w io.Writer, report Report, suiteName string, timestamp time.Time) error {
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	var cases []junitCase
	failures := 0

	for _, u := range report.Unexpected {
		failures++
		cases = append(cases, junitCase{
			Name: fmt.Sprintf("unexpected: %s", u.Invocation.Command),
			Failure: &junitFailure{
				Message: "unexpected invocation",
				Type:    "UnexpectedCommandError",
				Content: fmt.Sprintf("%s %v", u.Invocation.Command, u.Invocation.Args),
			},
		})
	}
	for i, o := range report.Order {
		failures++
		cases = append(cases, junitCase{
			Name: fmt.Sprintf("order violation %d", i+1),
			Failure: &junitFailure{
				Message: "order violation",
				Type:    "VerificationError",
				Content: fmt.Sprintf("expected %v, observed %v", o.Expected, o.Observed),
			},
		})
	}
	for _, c := range report.Count {
		failures++
		cases = append(cases, junitCase{
			Name: fmt.Sprintf("count: %s%s", c.Command, c.Args),
			Failure: &junitFailure{
				Message: "count violation",
				Type:    "UnfulfilledExpectationError",
				Content: fmt.Sprintf("want %d, got %d", c.Want, c.Got),
			},
		})
	}

	suites := junitSuites{
		Name:     "cmdmox",
		Tests:    len(cases),
		Failures: failures,
		Suites: []junitSuite{{
			Name:      suiteName,
			Tests:     len(cases),
			Failures:  failures,
			Timestamp: timestamp.Format(time.RFC3339),
			Cases:     cases,
		}},
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(suites); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}
