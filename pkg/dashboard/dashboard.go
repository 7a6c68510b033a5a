package dashboard

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/portworx/jobharness/pkg/restutil"
	"github.com/sirupsen/logrus"
)

const (
	//PASS status for testset/testcase
	PASS = "PASS"
	//FAIL status for testset/testcase
	FAIL = "FAIL"
	//SKIPPED status for testcase
	SKIPPED = "SKIPPED"
	//ERROR status for testset/testcase
	ERROR = "ERROR"
	// INPROGRESS  status for testset/testcase
	INPROGRESS = "IN_PROGRESS"
)

//Dashboard result dashboard for one harness run
type Dashboard struct {
	//IsEnabled enable/disable posting to the remote dashboard
	IsEnabled bool
	//BaseURL of the dashboard service
	BaseURL string
	//TestSetID test set ID to post the test logs and results
	TestSetID int
	Log       *logrus.Logger

	client *restutil.Client

	mu                sync.Mutex
	testcaseID        int
	testCase          TestCase
	testCaseStartTime time.Time
	verifications     []Verification
	comments          []Comment
}

//TestSet struct
type TestSet struct {
	CommitID    string            `json:"commitId"`
	User        string            `json:"user"`
	Product     string            `json:"product"`
	Description string            `json:"description"`
	HostOs      string            `json:"hostOs"`
	Branch      string            `json:"branch"`
	TestType    string            `json:"testType"`
	Tags        map[string]string `json:"nTags"`
	Status      string            `json:"status"`
}

//TestCase struct
type TestCase struct {
	Name        string            `json:"name"`
	ShortName   string            `json:"shortName"`
	ModuleName  string            `json:"moduleName"`
	Status      string            `json:"status"`
	Errors      []string          `json:"errors"`
	LogFile     string            `json:"logFile"`
	Description string            `json:"description"`
	HostOs      string            `json:"hostOs"`
	Tags        map[string]string `json:"nTags"`
	TestSetID   int               `json:"testSetID"`
	TestRailID  string            `json:"testRepoID"`
	Duration    string            `json:"duration"`
}

// Verification is one actual/expected comparison made by a scenario
type Verification struct {
	TestCaseID   int    `json:"testCaseID"`
	Description  string `json:"description"`
	Actual       string `json:"actual"`
	Expected     string `json:"expected"`
	ResultType   string `json:"type"`
	ResultStatus bool   `json:"result"`
}

// Comment is a free text message attached to the running test case
type Comment struct {
	TestCaseID  int    `json:"testCaseID"`
	Description string `json:"description"`
	ResultType  string `json:"type"`
}

// New returns a dashboard. Nothing is posted unless enabled is set.
func New(baseURL string, enabled bool, logger *logrus.Logger) *Dashboard {
	if logger == nil {
		logger = logrus.New()
	}
	return &Dashboard{
		IsEnabled: enabled && baseURL != "",
		BaseURL:   baseURL,
		Log:       logger,
		client:    restutil.NewClient(10*time.Second, true),
	}
}

// SetClient replaces the REST client. Used by tests.
func (d *Dashboard) SetClient(c *restutil.Client) {
	d.client = c
}

func (d *Dashboard) post(method, path string, payload interface{}) ([]byte, error) {
	url := fmt.Sprintf("%s/%s", d.BaseURL, path)
	resp, code, err := d.client.Do(context.Background(), method, url, payload)
	if err != nil {
		return nil, err
	}
	if code != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d, resp: %s", code, string(resp))
	}
	return resp, nil
}

// TestSetBegin start testset and push data to dashboard DB
func (d *Dashboard) TestSetBegin(testSet *TestSet) {
	if !d.IsEnabled || d.TestSetID != 0 {
		return
	}
	if testSet.Description == "" {
		testSet.Description = "Job harness scenarios"
	}
	if testSet.User == "" {
		testSet.User = "nouser"
	}
	if testSet.TestType == "" {
		testSet.TestType = "SystemTest"
	}
	if testSet.HostOs == "" {
		testSet.HostOs = runtime.GOOS
	}

	resp, err := d.post(http.MethodPost, "testset", testSet)
	if err != nil {
		d.Log.Errorf("Failed to create TestSet, Cause: %v", err)
		return
	}
	d.TestSetID, err = strconv.Atoi(string(resp))
	if err != nil {
		d.Log.Errorf("TestSetId creation failed. Cause : %v", err)
		return
	}
	d.Log.Infof("TestSetId created : %d", d.TestSetID)
}

// TestSetEnd end testset and update to dashboard DB
func (d *Dashboard) TestSetEnd() {
	if !d.IsEnabled {
		return
	}
	if d.TestSetID == 0 {
		d.Log.Errorf("TestSetID is empty")
		return
	}
	if _, err := d.post(http.MethodPut, fmt.Sprintf("testset/%d/end", d.TestSetID), nil); err != nil {
		d.Log.Errorf("Failed to end TestSet, Cause: %v", err)
		return
	}
	d.Log.Infof("TestSetId %d update successfully", d.TestSetID)
}

// TestCaseBegin start the test case and push data to dashboard DB
func (d *Dashboard) TestCaseBegin(testName, description, testRailID string, tags map[string]string) {
	d.Log.Info("--------Test Start------")
	d.Log.Infof("#Test: %s ", testName)
	d.Log.Infof("#Description: %s ", description)
	d.Log.Info("------------------------")

	d.mu.Lock()
	d.testCase = TestCase{
		Name:        testName,
		ShortName:   testName,
		Status:      INPROGRESS,
		Description: description,
		HostOs:      runtime.GOOS,
		TestSetID:   d.TestSetID,
		TestRailID:  testRailID,
		Tags:        tags,
	}
	d.testcaseID = 0
	d.testCaseStartTime = time.Now()
	d.verifications = nil
	d.comments = nil
	tc := d.testCase
	d.mu.Unlock()

	if !d.IsEnabled {
		return
	}
	if d.TestSetID == 0 {
		d.Log.Errorf("TestSetID is empty, skipping begin testcase")
		return
	}
	resp, err := d.post(http.MethodPost, "testcase", tc)
	if err != nil {
		d.Log.Errorf("Error creating test case, Cause: %v", err)
		return
	}
	id, err := strconv.Atoi(string(resp))
	if err != nil {
		d.Log.Errorf("TestCase creation failed. Cause : %v", err)
		return
	}
	d.mu.Lock()
	d.testcaseID = id
	d.mu.Unlock()
	d.Log.Infof("TestCaseID created : %d", id)
}

// TestCaseEnd closes the running test case and returns its status. A
// failed verification makes the case FAIL.
func (d *Dashboard) TestCaseEnd() string {
	d.mu.Lock()
	result := PASS
	for _, v := range d.verifications {
		if !v.ResultStatus {
			result = FAIL
			break
		}
	}
	tc := d.testCase
	id := d.testcaseID
	d.mu.Unlock()

	if d.IsEnabled && id != 0 {
		if _, err := d.post(http.MethodPut, fmt.Sprintf("testcase/%d/end", id), nil); err != nil {
			d.Log.Errorf("Failed to end TestCase, Cause: %v", err)
		} else {
			d.Log.Infof("TestCase %d ended successfully", id)
		}
	}

	d.Log.Info("--------Test End------")
	d.Log.Infof("#Test: %s ", tc.ShortName)
	d.Log.Infof("#Description: %s ", tc.Description)
	d.Log.Infof("#Result: %s ", result)
	d.Log.Info("------------------------")
	return result
}

//VerifySafely records a verification without aborting the execution
func (d *Dashboard) VerifySafely(actual, expected interface{}, description string) bool {
	actualVal := fmt.Sprintf("%v", actual)
	expectedVal := fmt.Sprintf("%v", expected)

	d.mu.Lock()
	res := Verification{
		TestCaseID:  d.testcaseID,
		Description: description,
		Actual:      actualVal,
		Expected:    expectedVal,
	}
	d.mu.Unlock()

	d.Log.Infof("Verifying : Description : %s", description)
	if actualVal == expectedVal {
		res.ResultType = "info"
		res.ResultStatus = true
		d.Log.Infof("Actual:%v, Expected: %v, Description: %v", actualVal, expectedVal, description)
	} else {
		res.ResultType = "error"
		d.Log.Errorf("Actual:%v, Expected: %v, Description: %v", actualVal, expectedVal, description)
	}

	d.mu.Lock()
	d.verifications = append(d.verifications, res)
	d.mu.Unlock()

	if d.IsEnabled && res.TestCaseID != 0 {
		if _, err := d.post(http.MethodPost, "result", res); err != nil {
			d.Log.Errorf("Error in updating verification to dashboard, Cause: %v", err)
		}
	}
	return res.ResultStatus
}

//VerifyFatal records a verification and returns an error on mismatch so the
//caller can stop the scenario
func (d *Dashboard) VerifyFatal(actual, expected interface{}, description string) error {
	if d.VerifySafely(actual, expected, description) {
		return nil
	}
	return fmt.Errorf("Actual:%v, Expected: %v, Description: %v", actual, expected, description)
}

// Verifications returns the verifications of the running test case
func (d *Dashboard) Verifications() []Verification {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Verification, len(d.verifications))
	copy(out, d.verifications)
	return out
}

// Comments returns the comments of the running test case
func (d *Dashboard) Comments() []Comment {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Comment, len(d.comments))
	copy(out, d.comments)
	return out
}

// Infof attaches an info comment to the running test case
func (d *Dashboard) Infof(message string, args ...interface{}) {
	d.addComment("info", fmt.Sprintf(message, args...))
}

// Warnf attaches a warning comment to the running test case
func (d *Dashboard) Warnf(message string, args ...interface{}) {
	d.addComment("warning", fmt.Sprintf(message, args...))
}

// Errorf attaches an error comment to the running test case
func (d *Dashboard) Errorf(message string, args ...interface{}) {
	d.addComment("error", fmt.Sprintf(message, args...))
}

func (d *Dashboard) addComment(resultType, msg string) {
	d.mu.Lock()
	c := Comment{TestCaseID: d.testcaseID, Description: msg, ResultType: resultType}
	d.comments = append(d.comments, c)
	d.mu.Unlock()

	if !d.IsEnabled || c.TestCaseID == 0 {
		return
	}
	if _, err := d.post(http.MethodPost, "result", c); err != nil {
		d.Log.Errorf("Error in adding log message to dashboard, Cause: %v", err)
	}
}
