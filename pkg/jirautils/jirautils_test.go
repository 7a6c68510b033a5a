package jirautils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateIssue(t *testing.T) {
	var got map[string]interface{}
	var user string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/rest/api/2/issue" {
			http.NotFound(w, r)
			return
		}
		user, _, _ = r.BasicAuth()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"10001","key":"QA-12","self":"x"}`))
	}))
	defer srv.Close()

	j, err := Init(srv.URL, "qa-bot", "token", "QA")
	require.NoError(t, err)
	j.AccountID = "abc123"
	key, err := j.CreateIssue("InterruptResumeFullBackup failed", "job 1001 stayed pending")
	require.NoError(t, err)
	assert.Equal(t, "QA-12", key)
	assert.Equal(t, "qa-bot", user)

	fields := got["fields"].(map[string]interface{})
	assert.Equal(t, "InterruptResumeFullBackup failed", fields["summary"])
	assert.Equal(t, "QA", fields["project"].(map[string]interface{})["key"])
	assert.Equal(t, DefaultIssueType, fields["issuetype"].(map[string]interface{})["name"])
	assert.Equal(t, "abc123", fields["assignee"].(map[string]interface{})["accountId"])
}

func TestCreateIssueError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errorMessages":[],"errors":{"project":"project is required"}}`))
	}))
	defer srv.Close()

	j, err := Init(srv.URL, "qa-bot", "token", "")
	require.NoError(t, err)
	_, err = j.CreateIssue("x", "y")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestSummary(t *testing.T) {
	assert.Equal(t, "a b", Summary("a\n%s", "b"))
	long := Summary("%s", strings.Repeat("x", 300))
	assert.Len(t, long, 250)
	assert.True(t, strings.HasSuffix(long, "..."))

	wide := Summary("%s", strings.Repeat("ü", 300))
	assert.True(t, utf8.ValidString(wide))
	assert.Equal(t, 250, utf8.RuneCountInString(wide))
	assert.Equal(t, strings.Repeat("ü", 247)+"...", wide)
	assert.Equal(t, strings.Repeat("ü", 250), Summary("%s", strings.Repeat("ü", 250)))
}
