package wctest

import (
	"encoding/xml"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/webcompat/interventions-harness/framework"
	o "github.com/webcompat/interventions-harness/framework/opt"
)

// JUnitProperty is written into every test suite of a JUnit report.
type JUnitProperty struct {
	Name  string
	Value string
}

type JUnitTestLogger struct {
	filePath   string
	suiteName  string
	properties []JUnitProperty
	testIDs    []TestID // preserves the order that the tests were started in
	tests      map[string]jUnitTestStatus
	lock       sync.Mutex
}

type jUnitTestStatus struct {
	errors   []error
	outcome  Outcome
	skipped  o.Maybe[string]
	output   string
	duration time.Duration
}

// Struct definitions for the JUnit XML schema - see https://github.com/jstemmer/go-junit-report

type jUnitXMLDocument struct {
	XMLName xml.Name            `xml:"testsuites"`
	Suites  []jUnitXMLTestSuite `xml:"testsuite"`
}

type jUnitXMLTestSuite struct {
	XMLName    xml.Name           `xml:"testsuite"`
	Tests      int                `xml:"tests,attr"`
	Failures   int                `xml:"failures,attr"`
	Errors     int                `xml:"errors,attr"`
	Skipped    int                `xml:"skipped,attr"`
	Time       string             `xml:"time,attr"`
	Name       string             `xml:"name,attr"`
	Properties []jUnitXMLProperty `xml:"properties>property,omitempty"`
	TestCases  []jUnitXMLTestCase `xml:"testcase"`
}

type jUnitXMLTestCase struct {
	XMLName     xml.Name             `xml:"testcase"`
	Classname   string               `xml:"classname,attr"`
	Name        string               `xml:"name,attr"`
	Time        string               `xml:"time,attr"`
	SkipMessage *jUnitXMLSkipMessage `xml:"skipped,omitempty"`
	Failure     *jUnitXMLFailure     `xml:"failure,omitempty"`
	Error       *jUnitXMLFailure     `xml:"error,omitempty"`
	SystemOut   string               `xml:"system-out,omitempty"`
}

type jUnitXMLSkipMessage struct {
	Message string `xml:"message,attr"`
}

type jUnitXMLProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type jUnitXMLFailure struct {
	Message  string `xml:"message,attr"`
	Type     string `xml:"type,attr,omitempty"`
	Contents string `xml:",chardata"`
}

// NewJUnitTestLogger creates a logger that writes a JUnit XML report to filePath when EndLog is
// called. There is one test suite per top-level test ID.
func NewJUnitTestLogger(filePath, suiteName string, properties []JUnitProperty) *JUnitTestLogger {
	return &JUnitTestLogger{
		filePath:   filePath,
		suiteName:  suiteName,
		properties: properties,
		tests:      make(map[string]jUnitTestStatus),
	}
}

// FilterProperties describes filters as JUnit properties.
func FilterProperties(filters RegexFilters) []JUnitProperty {
	return []JUnitProperty{
		{Name: "tests.filter.mustMatch", Value: filters.MustMatch.String()},
		{Name: "tests.filter.mustNotMatch", Value: filters.MustNotMatch.String()},
	}
}

// AddProperty adds a property to every suite. Properties known only once the run is over, such
// as its run ID, can be added before EndLog.
func (j *JUnitTestLogger) AddProperty(name, value string) {
	j.lock.Lock()
	defer j.lock.Unlock()
	j.properties = append(j.properties, JUnitProperty{Name: name, Value: value})
}

func (j *JUnitTestLogger) TestStarted(id TestID) {
	j.lock.Lock()
	defer j.lock.Unlock()
	j.testIDs = append(j.testIDs, id)
	j.tests[id.String()] = jUnitTestStatus{}
}

func (j *JUnitTestLogger) TestError(id TestID, err error) {
	j.lock.Lock()
	defer j.lock.Unlock()
	status := j.tests[id.String()]
	status.errors = append(status.errors, err)
	j.tests[id.String()] = status
}

func (j *JUnitTestLogger) TestFinished(id TestID, result TestResult, debugOutput framework.CapturedOutput) {
	j.lock.Lock()
	defer j.lock.Unlock()
	status := j.tests[id.String()]
	status.output = debugOutput.Format("")
	status.duration = result.Duration
	status.outcome = result.Outcome
	j.tests[id.String()] = status
}

func (j *JUnitTestLogger) TestSkipped(id TestID, reason string) {
	j.lock.Lock()
	defer j.lock.Unlock()
	if _, started := j.tests[id.String()]; !started {
		j.testIDs = append(j.testIDs, id)
	}
	status := j.tests[id.String()]
	status.skipped = o.Some(reason)
	j.tests[id.String()] = status
}

func (j *JUnitTestLogger) EndLog(Results) error {
	fmt.Printf("Writing JUnit data to %s\n", j.filePath)
	data, err := j.document()
	if err != nil {
		return err
	}
	return os.WriteFile(j.filePath, data, 0644) //nolint:gosec
}

func (j *JUnitTestLogger) document() ([]byte, error) {
	j.lock.Lock()
	defer j.lock.Unlock()

	properties := make([]jUnitXMLProperty, 0, len(j.properties))
	for _, p := range j.properties {
		properties = append(properties, jUnitXMLProperty(p))
	}

	var doc jUnitXMLDocument
	for _, topLevelID := range getTopLevelIDs(j.testIDs) {
		suite := jUnitXMLTestSuite{
			Name:       fmt.Sprintf("%s: %s", j.suiteName, topLevelID),
			Properties: properties,
		}
		suiteTotalDuration := time.Duration(0)
		for _, testID := range j.testIDs {
			if len(testID) < 2 || testID[0] != topLevelID {
				continue // the top-level scope itself is not a test case
			}
			status := j.tests[testID.String()]

			suite.Tests++
			suiteTotalDuration += status.duration

			testCase := jUnitXMLTestCase{
				Classname: topLevelID,
				Name:      TestID(testID[1:]).String(),
				Time:      jUnitDurationString(status.duration),
			}
			switch {
			case status.skipped.IsDefined():
				suite.Skipped++
				testCase.SkipMessage = &jUnitXMLSkipMessage{Message: status.skipped.Value()}
			case status.outcome == OutcomeFail:
				suite.Failures++
				testCase.Failure = &jUnitXMLFailure{Message: jUnitMessage(status.errors), Type: "fail",
					Contents: status.output}
			case status.outcome == OutcomeError:
				suite.Errors++
				testCase.Error = &jUnitXMLFailure{Message: jUnitMessage(status.errors), Type: "error",
					Contents: status.output}
			}

			suite.TestCases = append(suite.TestCases, testCase)
		}
		suite.Time = jUnitDurationString(suiteTotalDuration)
		doc.Suites = append(doc.Suites, suite)
	}

	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func jUnitMessage(errs []error) string {
	var messages []string
	for _, e := range errs {
		message := e.Error()
		if te, ok := e.(TracedError); ok {
			message += "\n  Stacktrace:"
			for _, f := range te.Frames {
				message += "\n    " + f.String()
			}
		}
		messages = append(messages, message)
	}
	return strings.Join(messages, "\n")
}

func getTopLevelIDs(allIDs []TestID) []string {
	var ret []string
	seen := make(map[string]bool)
	for _, testID := range allIDs {
		if len(testID) != 0 && !seen[testID[0]] {
			ret = append(ret, testID[0])
			seen[testID[0]] = true
		}
	}
	return ret
}

func jUnitDurationString(d time.Duration) string {
	return fmt.Sprintf("%.3f", d.Seconds())
}
