package testrailutils

import (
	"fmt"

	"github.com/educlos/testrail"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultProjectID is the TestRail project scenario cases live in
	DefaultProjectID       = 1
	testRailPassStatusCode = 1
	testRailFailStatusCode = 5
)

// api is the part of the TestRail client used here
type api interface {
	GetProjects(isCompleted ...bool) ([]testrail.Project, error)
	GetMilestones(projectID int, isCompleted ...bool) ([]testrail.Milestone, error)
	AddMilestone(projectID int, newMilestone testrail.SendableMilestone) (testrail.Milestone, error)
	GetRuns(projectID int, filters ...testrail.RequestFilterForRun) ([]testrail.Run, error)
	AddRun(projectID int, newRun testrail.SendableRun) (testrail.Run, error)
	UpdateRun(runID int, update testrail.UpdatableRun) (testrail.Run, error)
	GetTests(runID int, statusID ...[]int) ([]testrail.Test, error)
	AddResult(testID int, newResult testrail.SendableResult) (testrail.Result, error)
}

// Testrail object
type Testrail struct {
	Status        string
	TestID        int
	RunID         int
	DriverVersion string
	Comment       string
}

// TestRail files scenario results into a run of a milestone
type TestRail struct {
	client    api
	ProjectID int
	// MilestoneName for testrail
	MilestoneName string
	// RunName for testrail, should be the CI job name
	RunName string
	// JobRunID for testrail
	JobRunID string
	// BuildURL to be passed to store in testrail
	BuildURL string

	milestoneID int
	runID       int
}

// Init connects to the TestRail server at hostname
func Init(hostname, username, password string) (*TestRail, error) {
	client := testrail.NewClient(hostname, username, password, true)
	if _, err := client.GetProjects(); err != nil {
		logrus.Errorf("Testrail connection not successful")
		return nil, err
	}
	return NewWithClient(client), nil
}

// NewWithClient returns a TestRail using client
func NewWithClient(client api) *TestRail {
	return &TestRail{client: client, ProjectID: DefaultProjectID}
}

// SetRunID makes results go to an existing run instead of one found by name
func (t *TestRail) SetRunID(runID int) {
	t.runID = runID
}

// CreateMilestone creates the milestone if it does not exist
func (t *TestRail) CreateMilestone() error {
	logrus.Infof("Create Testrail milestone")
	t.milestoneID = t.getMilestoneByProjectID(t.MilestoneName)
	if t.milestoneID != 0 {
		logrus.Debugf("Milestone %s already exists", t.MilestoneName)
		return nil
	}
	logrus.Debugf("Creating milestone, since it does not exist")
	msCreated, err := t.client.AddMilestone(t.ProjectID, testrail.SendableMilestone{
		Name:        t.MilestoneName,
		Description: "Created from Automation",
	})
	if err != nil {
		return fmt.Errorf("error in creating milestone %s: %v", t.MilestoneName, err)
	}
	t.milestoneID = msCreated.ID
	logrus.Debugf("Milestone %s created successfully", t.MilestoneName)
	return nil
}

func (t *TestRail) getMilestoneByProjectID(name string) int {
	logrus.Infof("Getting the milestone ID for projectID: %d", t.ProjectID)
	milestones, err := t.client.GetMilestones(t.ProjectID)
	if err != nil {
		logrus.Warningf("Error in getting milestone: %s", err)
		return 0
	}
	for _, ms := range milestones {
		if ms.Name == name {
			return ms.ID
		}
	}
	return 0
}

// AddRunsToMilestone makes sure the run exists in the milestone and has
// the case caseID. It returns the run id.
func (t *TestRail) AddRunsToMilestone(caseID int) (int, error) {
	if t.runID == 0 {
		t.runID = t.getRunID()
	}
	if t.runID == 0 {
		logrus.Debugf("Creating run %s for milestone", t.RunName)
		includeAll := false
		createdRun, err := t.client.AddRun(t.ProjectID, testrail.SendableRun{
			SuiteID:     t.ProjectID,
			Name:        t.RunName,
			Description: "Test run created from the job harness",
			MilestoneID: t.milestoneID,
			CaseIDs:     []int{caseID},
			IncludeAll:  &includeAll,
		})
		if err != nil {
			return 0, fmt.Errorf("unable to add the run %s: %v", t.RunName, err)
		}
		t.runID = createdRun.ID
		return t.runID, nil
	}

	tests, err := t.client.GetTests(t.runID)
	if err != nil {
		return 0, fmt.Errorf("error in getting tests for run %d: %v", t.runID, err)
	}
	existingCases := make([]int, 0, len(tests)+1)
	for _, test := range tests {
		if test.CaseID == caseID {
			logrus.Debugf("Test already exists in the run, reusing the test")
			return t.runID, nil
		}
		existingCases = append(existingCases, test.CaseID)
	}
	logrus.Debugf("Adding case %d to the test run %d", caseID, t.runID)
	existingCases = append(existingCases, caseID)
	if _, err := t.client.UpdateRun(t.runID, testrail.UpdatableRun{CaseIDs: existingCases}); err != nil {
		return 0, fmt.Errorf("error updating the run with new case: %v", err)
	}
	return t.runID, nil
}

func (t *TestRail) getRunID() int {
	logrus.Infof("Getting the run details for project Id %d", t.ProjectID)
	filter := testrail.RequestFilterForRun{}
	if t.milestoneID != 0 {
		filter.MilestoneID = []int{t.milestoneID}
	}
	allRuns, err := t.client.GetRuns(t.ProjectID, filter)
	if err != nil {
		logrus.Warningf("Error in getting all runs from milestone %s", err)
		return 0
	}
	for _, run := range allRuns {
		if run.Name == t.RunName {
			return run.ID
		}
	}
	return 0
}

// AddTestEntry adds a result for the case in entry
func (t *TestRail) AddTestEntry(entry Testrail) error {
	runID := entry.RunID
	if runID == 0 {
		runID = t.runID
	}
	logrus.Infof("Adding test entry testID %d, run Id is %d, status %s", entry.TestID, runID, entry.Status)
	tests, err := t.client.GetTests(runID)
	if err != nil {
		return fmt.Errorf("error getting tests for run %d: %v", runID, err)
	}
	for _, test := range tests {
		if test.CaseID != entry.TestID {
			continue
		}
		statusID := testRailFailStatusCode
		if entry.Status == "Pass" {
			statusID = testRailPassStatusCode
		}
		comment := fmt.Sprintf("Updated from run %s of job %s\nBuild URL: %s\nBackend version: %s",
			t.JobRunID, t.RunName, t.BuildURL, entry.DriverVersion)
		if entry.Comment != "" {
			comment += "\n" + entry.Comment
		}
		if _, err := t.client.AddResult(test.ID, testrail.SendableResult{StatusID: statusID, Comment: comment}); err != nil {
			return fmt.Errorf("error in adding result to %d: %v", entry.TestID, err)
		}
		logrus.Debugf("testrail update successful")
		return nil
	}
	return fmt.Errorf("case %d is not part of run %d", entry.TestID, runID)
}
