// Package jirautils files defects for failed scenarios.
package jirautils

import (
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	jira "github.com/andygrunwald/go-jira"
	"github.com/portworx/jobharness/pkg/log"
)

// DefaultIssueType is used when the config names none
const DefaultIssueType = "Bug"

// summaryLimit is counted in characters
const summaryLimit = 250

// Jira creates issues in one project
type Jira struct {
	client    *jira.Client
	Project   string
	IssueType string
	// AccountID for issue assignment
	AccountID string
	Labels    []string
}

// Init returns a client for the Jira server at url authenticating with an
// API token
func Init(url, username, token, project string) (*Jira, error) {
	tp := jira.BasicAuthTransport{Username: username, Password: token}
	return newJira(tp.Client(), url, project)
}

func newJira(httpClient *http.Client, url, project string) (*Jira, error) {
	client, err := jira.NewClient(httpClient, url)
	if err != nil {
		return nil, fmt.Errorf("failed to create jira client for %s: %v", url, err)
	}
	return &Jira{client: client, Project: project, IssueType: DefaultIssueType, Labels: []string{"jobharness"}}, nil
}

// CreateIssue files an issue and returns its key
func (j *Jira) CreateIssue(summary, description string) (string, error) {
	fields := &jira.IssueFields{
		Summary:     summary,
		Description: description,
		Type:        jira.IssueType{Name: j.IssueType},
		Project:     jira.Project{Key: j.Project},
		Labels:      j.Labels,
	}
	if j.AccountID != "" {
		fields.Assignee = &jira.User{AccountID: j.AccountID}
	}
	issue, resp, err := j.client.Issue.Create(&jira.Issue{Fields: fields})
	if err != nil {
		if resp != nil {
			return "", fmt.Errorf("failed to create issue in %s: %v (status %d)", j.Project, err, resp.StatusCode)
		}
		return "", fmt.Errorf("failed to create issue in %s: %v", j.Project, err)
	}
	log.Infof("Created jira issue %s: %s", issue.Key, summary)
	return issue.Key, nil
}

// Summary is a one line issue title, trimmed to what Jira accepts
func Summary(format string, args ...interface{}) string {
	s := strings.ReplaceAll(fmt.Sprintf(format, args...), "\n", " ")
	if utf8.RuneCountInString(s) > summaryLimit {
		s = string([]rune(s)[:summaryLimit-3]) + "..."
	}
	return s
}
