package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/portworx/jobharness/drivers/job"
	"github.com/portworx/jobharness/pkg/errors"
	"github.com/portworx/jobharness/pkg/log"
	"github.com/portworx/jobharness/pkg/restutil"
)

const (
	// DriverName is the name of the REST job driver
	DriverName = "rest"
	// DefaultTimeout of a single request
	DefaultTimeout = 30 * time.Second
)

type rest struct {
	job.Driver
	endpoint string
	client   *restutil.Client
}

// New returns an uninitialized REST job driver
func New() job.Driver {
	return &rest{Driver: job.NotSupportedDriver}
}

func (r *rest) String() string {
	return DriverName
}

func (r *rest) Init(options job.InitOptions) error {
	if options.Endpoint == "" {
		return fmt.Errorf("backend endpoint is empty")
	}
	timeout := options.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	r.endpoint = strings.TrimRight(options.Endpoint, "/")
	r.client = restutil.NewClient(timeout, options.Insecure)
	if options.Username != "" {
		r.client.Auth = &restutil.Auth{Username: options.Username, Password: options.Password}
	}
	log.Infof("Initialized %s job driver for %s", DriverName, r.endpoint)
	return nil
}

// HTTPClient exposes the underlying http client. Used by tests.
func (r *rest) HTTPClient() *http.Client {
	return r.client.HTTP
}

func (r *rest) ready() error {
	if r.client == nil {
		return fmt.Errorf("%s job driver is not initialized", DriverName)
	}
	return nil
}

// responseError turns a non 2xx response into an error carrying the backend message
func responseError(code int, body []byte) string {
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return fmt.Sprintf("status %d: %s", code, errResp.Error)
	}
	return fmt.Sprintf("status %d: %s", code, strings.TrimSpace(string(body)))
}

func (r *rest) Submit(ctx context.Context, req job.SubmitRequest) (*job.Info, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, &job.ErrFailedToSubmitJob{Type: req.Type, Client: req.Client, Cause: err.Error()}
	}

	body, code, err := r.client.Do(ctx, http.MethodPost, r.endpoint+JobsPath, req)
	if err != nil {
		return nil, &job.ErrFailedToSubmitJob{Type: req.Type, Client: req.Client, Cause: err.Error()}
	}
	if code != http.StatusOK && code != http.StatusCreated {
		return nil, &job.ErrFailedToSubmitJob{Type: req.Type, Client: req.Client, Cause: responseError(code, body)}
	}
	info := &job.Info{}
	if err := json.Unmarshal(body, info); err != nil {
		return nil, &job.ErrFailedToSubmitJob{Type: req.Type, Client: req.Client, Cause: err.Error()}
	}
	info.Status = job.ParseStatus(string(info.Status))
	log.Infof("Submitted %s job %s for client %s", req.Type, info.ID, req.Client)
	return info, nil
}

func (r *rest) Inspect(ctx context.Context, id string) (*job.Info, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	body, code, err := r.client.Do(ctx, http.MethodGet, jobURL(r.endpoint, id), nil)
	if err != nil {
		return nil, &job.ErrFailedToInspectJob{ID: id, Cause: err.Error()}
	}
	if code == http.StatusNotFound {
		return nil, &errors.ErrNotFound{ID: id, Type: "Job"}
	}
	if code != http.StatusOK {
		return nil, &job.ErrFailedToInspectJob{ID: id, Cause: responseError(code, body)}
	}
	info := &job.Info{}
	if err := json.Unmarshal(body, info); err != nil {
		return nil, &job.ErrFailedToInspectJob{ID: id, Cause: err.Error()}
	}
	info.Status = job.ParseStatus(string(info.Status))
	return info, nil
}

func (r *rest) modify(ctx context.Context, id string, action job.Action) error {
	if err := r.ready(); err != nil {
		return err
	}
	body, code, err := r.client.Do(ctx, http.MethodPost, actionURL(r.endpoint, id, action), nil)
	if err != nil {
		return &job.ErrFailedToModifyJob{ID: id, Action: action, Cause: err.Error()}
	}
	switch code {
	case http.StatusOK, http.StatusAccepted, http.StatusNoContent:
		log.Infof("Issued %s on job %s", action, id)
		return nil
	case http.StatusNotFound:
		return &errors.ErrNotFound{ID: id, Type: "Job"}
	case http.StatusConflict:
		transition := &job.ErrInvalidTransition{ID: id, Reason: responseError(code, body)}
		if to := job.ExpectedStatusAfter(action); len(to) > 0 {
			transition.To = to[0]
		}
		return transition
	}
	return &job.ErrFailedToModifyJob{ID: id, Action: action, Cause: responseError(code, body)}
}

func (r *rest) Suspend(ctx context.Context, id string) error {
	return r.modify(ctx, id, job.ActionSuspend)
}

func (r *rest) Resume(ctx context.Context, id string) error {
	return r.modify(ctx, id, job.ActionResume)
}

func (r *rest) Kill(ctx context.Context, id string) error {
	return r.modify(ctx, id, job.ActionKill)
}

func (r *rest) ActiveJobs(ctx context.Context, filter job.Filter) ([]job.Info, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	body, code, err := r.client.Do(ctx, http.MethodGet, listURL(r.endpoint, filter), nil)
	if err != nil {
		return nil, err
	}
	if code != http.StatusOK {
		return nil, fmt.Errorf("failed to list active jobs: %s", responseError(code, body))
	}
	var jobs []job.Info
	if err := json.Unmarshal(body, &jobs); err != nil {
		return nil, err
	}
	active := jobs[:0]
	for _, j := range jobs {
		j.Status = job.ParseStatus(string(j.Status))
		if !j.Status.IsTerminal() && filter.Match(j) {
			active = append(active, j)
		}
	}
	return active, nil
}

func (r *rest) ModifyAll(ctx context.Context, action job.Action, filter job.Filter) error {
	if err := r.ready(); err != nil {
		return err
	}
	body, code, err := r.client.Do(ctx, http.MethodPost, bulkActionURL(r.endpoint, action, filter), nil)
	if err != nil {
		return &job.ErrFailedToModifyJob{ID: "*", Action: action, Cause: err.Error()}
	}
	if code != http.StatusOK && code != http.StatusAccepted && code != http.StatusNoContent {
		return &job.ErrFailedToModifyJob{ID: "*", Action: action, Cause: responseError(code, body)}
	}
	log.Infof("Issued %s on all jobs matching %+v", action, filter)
	return nil
}

func (r *rest) Version(ctx context.Context) (string, error) {
	if err := r.ready(); err != nil {
		return "", err
	}
	var v VersionResponse
	code, err := r.client.GetJSON(ctx, r.endpoint+VersionPath, &v)
	if err != nil {
		return "", err
	}
	if code != http.StatusOK {
		return "", fmt.Errorf("failed to get backend version, status %d", code)
	}
	return v.Version, nil
}

func init() {
	if err := job.Register(DriverName, New()); err != nil {
		log.Errorf("Failed to register job driver %s: %v", DriverName, err)
	}
}
