package simulator

import (
	"context"
	goerrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/portworx/jobharness/drivers/job"
	"github.com/portworx/jobharness/drivers/job/rest"
	"github.com/portworx/jobharness/pkg/errors"
)

// Handler serves the backend job API over b. Basic auth is enforced when
// the backend was created with a username.
func (b *Backend) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if b.opts.Username != "" {
		router.Use(gin.BasicAuth(gin.Accounts{b.opts.Username: b.opts.Password}))
	}
	router.POST(rest.JobsPath, b.submitJob)
	router.GET(rest.JobsPath, b.listJobs)
	router.GET(rest.JobPath, b.inspectJob)
	router.POST(rest.JobActionPath, b.modifyJob)
	router.POST(rest.BulkActionPath, b.modifyAllJobs)
	router.GET(rest.VersionPath, b.version)
	return router
}

func statusOf(err error) int {
	var notFound *errors.ErrNotFound
	var transition *job.ErrInvalidTransition
	var submit *job.ErrFailedToSubmitJob
	switch {
	case goerrors.As(err, &notFound):
		return http.StatusNotFound
	case goerrors.As(err, &transition):
		return http.StatusConflict
	case goerrors.As(err, &submit):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func abort(c *gin.Context, err error) {
	c.JSON(statusOf(err), rest.ErrorResponse{Error: err.Error()})
}

func (b *Backend) submitJob(c *gin.Context) {
	var req job.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, rest.ErrorResponse{Error: err.Error()})
		return
	}
	info, err := b.Submit(c.Request.Context(), req)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, info)
}

func (b *Backend) listJobs(c *gin.Context) {
	jobs := b.List(rest.ParseFilterQuery(c.Request.URL.Query()))
	if jobs == nil {
		jobs = []job.Info{}
	}
	c.JSON(http.StatusOK, jobs)
}

func (b *Backend) inspectJob(c *gin.Context) {
	info, err := b.Inspect(c.Request.Context(), c.Param("id"))
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (b *Backend) modifyJob(c *gin.Context) {
	action, err := job.ParseAction(c.Param("action"))
	if err != nil {
		c.JSON(http.StatusBadRequest, rest.ErrorResponse{Error: err.Error()})
		return
	}
	if err := b.modify(c.Param("id"), action); err != nil {
		abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (b *Backend) modifyAllJobs(c *gin.Context) {
	action, err := job.ParseAction(c.Param("action"))
	if err != nil {
		c.JSON(http.StatusBadRequest, rest.ErrorResponse{Error: err.Error()})
		return
	}
	filter := rest.ParseFilterQuery(c.Request.URL.Query())
	if err := b.ModifyAll(c.Request.Context(), action, filter); err != nil {
		abort(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

func (b *Backend) version(c *gin.Context) {
	v, _ := b.Version(context.Background())
	c.JSON(http.StatusOK, rest.VersionResponse{Version: v})
}
