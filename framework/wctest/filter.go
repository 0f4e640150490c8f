package wctest

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// Filter is a function that can determine whether to run a specific test or not.
type Filter func(TestID) bool

type RegexFilters struct {
	MustMatch    TestIDPatternList
	MustNotMatch TestIDPatternList
}

func (r RegexFilters) Match(id TestID) bool {
	return (!r.MustMatch.IsDefined() || r.MustMatch.AnyMatch(id, true)) &&
		!r.MustNotMatch.AnyMatch(id, false)
}

// TestIDPattern matches a TestID component by component: "a/b" matches any ID whose first
// component matches "a" and whose second matches "b".
type TestIDPattern []*regexp.Regexp

func (p TestIDPattern) Match(id TestID, includeParents bool) bool {
	n := len(p)
	if n > len(id) {
		if !includeParents {
			return false
		}
		n = len(id)
	}
	for i := 0; i < n; i++ {
		if !p[i].MatchString(id[i]) {
			return false
		}
	}
	return true
}

func (p TestIDPattern) String() string {
	ss := make([]string, 0, len(p))
	for _, c := range p {
		ss = append(ss, c.String())
	}
	return strings.Join(ss, "/")
}

func ParseTestIDPattern(s string) (TestIDPattern, error) {
	parts := strings.Split(s, "/")
	ret := make(TestIDPattern, 0, len(parts))
	for _, part := range parts {
		rx, err := regexp.Compile(part)
		if err != nil {
			return nil, fmt.Errorf("invalid regex: %w", err)
		}
		ret = append(ret, rx)
	}
	return ret, nil
}

// TestIDPatternList implements pflag.Value, so it can be given as a repeatable flag.
type TestIDPatternList []TestIDPattern

func (l TestIDPatternList) String() string {
	ss := make([]string, 0, len(l))
	for _, p := range l {
		ss = append(ss, `"`+p.String()+`"`)
	}
	return strings.Join(ss, " or ")
}

// Set is called by the command line parser
func (l *TestIDPatternList) Set(value string) error {
	p, err := ParseTestIDPattern(value)
	if err != nil {
		return err
	}
	*l = append(*l, p)
	return nil
}

func (l *TestIDPatternList) Type() string { return "pattern" }

func (l TestIDPatternList) IsDefined() bool {
	return len(l) != 0
}

func (l TestIDPatternList) AnyMatch(id TestID, includeParents bool) bool {
	for _, p := range l {
		if p.Match(id, includeParents) {
			return true
		}
	}
	return false
}

// AddLiterals reads test IDs, one per line, and adds a pattern matching each of them literally.
// Blank lines are ignored. This is the format written by --record-failures.
func (l *TestIDPatternList) AddLiterals(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		components := strings.Split(line, "/")
		pattern := make(TestIDPattern, 0, len(components))
		for _, c := range components {
			pattern = append(pattern, regexp.MustCompile("^"+regexp.QuoteMeta(c)+"$"))
		}
		*l = append(*l, pattern)
	}
	return scanner.Err()
}

func PrintFilterDescription(w io.Writer, filters RegexFilters) {
	if filters.MustMatch.IsDefined() || filters.MustNotMatch.IsDefined() {
		fmt.Fprintln(w, "Some tests will be skipped based on the filter criteria for this test run:")
		if filters.MustMatch.IsDefined() {
			fmt.Fprintf(w, "  skip any not matching %s\n", filters.MustMatch)
		}
		if filters.MustNotMatch.IsDefined() {
			fmt.Fprintf(w, "  skip any matching %s\n", filters.MustNotMatch)
		}
		fmt.Fprintln(w)
	}
}
