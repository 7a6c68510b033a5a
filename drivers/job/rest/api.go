package rest

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/portworx/jobharness/drivers/job"
)

// Routes of the backend job API, relative to the endpoint
const (
	JobsPath       = "/jobs"
	JobPath        = "/jobs/:id"
	JobActionPath  = "/jobs/:id/action/:action"
	BulkActionPath = "/actions/:action"
	VersionPath    = "/version"
)

// ErrorResponse is the body the backend sends with a non 2xx status
type ErrorResponse struct {
	Error string `json:"error"`
}

// VersionResponse is the body of the version route
type VersionResponse struct {
	Version string `json:"version"`
}

// FilterQuery encodes a filter as query parameters
func FilterQuery(f job.Filter) url.Values {
	q := url.Values{}
	if f.Client != "" {
		q.Set("client", f.Client)
	}
	if f.Type != "" {
		q.Set("type", string(f.Type))
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, 0, len(f.Statuses))
		for _, s := range f.Statuses {
			statuses = append(statuses, string(s))
		}
		q.Set("status", strings.Join(statuses, ","))
	}
	return q
}

// ParseFilterQuery is the inverse of FilterQuery
func ParseFilterQuery(q url.Values) job.Filter {
	f := job.Filter{
		Client: q.Get("client"),
		Type:   job.Type(q.Get("type")),
	}
	if s := q.Get("status"); s != "" {
		for _, status := range strings.Split(s, ",") {
			f.Statuses = append(f.Statuses, job.ParseStatus(status))
		}
	}
	return f
}

func jobURL(endpoint, id string) string {
	return fmt.Sprintf("%s%s/%s", endpoint, JobsPath, url.PathEscape(id))
}

func actionURL(endpoint, id string, action job.Action) string {
	return fmt.Sprintf("%s/action/%s", jobURL(endpoint, id), action)
}

func bulkActionURL(endpoint string, action job.Action, f job.Filter) string {
	u := fmt.Sprintf("%s/actions/%s", endpoint, action)
	if q := FilterQuery(f).Encode(); q != "" {
		u += "?" + q
	}
	return u
}

func listURL(endpoint string, f job.Filter) string {
	u := endpoint + JobsPath
	if q := FilterQuery(f).Encode(); q != "" {
		u += "?" + q
	}
	return u
}
