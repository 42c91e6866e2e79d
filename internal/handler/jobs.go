package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"zone-mapper/internal/calculator"
	"zone-mapper/internal/jobs"
	"zone-mapper/internal/pipeline"
	"zone-mapper/internal/tabular"
)

// Runner executes one assignment run.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request, onProgress calculator.ProgressCallback, logger calculator.LoggerCallback) (*pipeline.Output, error)
}

// JobHandler accepts uploads and runs them as background jobs.
type JobHandler struct {
	runner    Runner
	store     *jobs.Store
	uploadDir string
	outputDir string
}

// NewJobHandler creates a new job handler
func NewJobHandler(runner Runner, store *jobs.Store, uploadDir, outputDir string) *JobHandler {
	return &JobHandler{runner: runner, store: store, uploadDir: uploadDir, outputDir: outputDir}
}

// Run handles POST /run: saves the uploaded registry and starts a job.
func (h *JobHandler) Run(c *gin.Context) {
	file, err := c.FormFile("input_file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "missing required file 'input_file'"})
		return
	}
	if _, err := tabular.FormatOf(file.Filename); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "input file must be .csv or .xlsx"})
		return
	}

	owners := [2]pipeline.Owner{
		{Name: c.PostForm("owner1_name"), Address: c.PostForm("owner1_address")},
		{Name: c.PostForm("owner2_name"), Address: c.PostForm("owner2_address")},
	}
	for i, o := range owners {
		if strings.TrimSpace(o.Address) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": fmt.Sprintf("missing address for owner %d", i+1)})
			return
		}
	}

	job := jobs.NewJob()

	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		log.Error().Err(err).Msg("cannot create upload dir")
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "internal server error"})
		return
	}
	inputPath := filepath.Join(h.uploadDir, fmt.Sprintf("%s_%s", uuid.New().String(), filepath.Base(file.Filename)))
	if err := c.SaveUploadedFile(file, inputPath); err != nil {
		log.Error().Err(err).Msg("cannot save upload")
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "upload failed"})
		return
	}

	req := pipeline.Request{
		InputPath: inputPath,
		OutputDir: filepath.Join(h.outputDir, job.ID),
		Owners:    owners,
	}

	job.InputPath = inputPath
	ctx, cancel := context.WithCancel(context.Background())
	job.Bind(cancel)
	h.store.Add(job)

	go h.process(ctx, cancel, job, req)

	c.JSON(http.StatusAccepted, gin.H{"ok": true, "job_id": job.ID})
}

func (h *JobHandler) process(ctx context.Context, cancel context.CancelFunc, job *jobs.Job, req pipeline.Request) {
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("job", job.ID).Interface("panic", r).Msg("job panicked")
			job.Fail(fmt.Sprintf("Panic: %v", r))
		}
	}()

	job.Log(fmt.Sprintf("Processing file: %s", filepath.Base(req.InputPath)))
	start := time.Now()

	out, err := h.runner.Run(ctx, req, job.SetProgress, job.Log)
	switch {
	case errors.Is(err, context.Canceled):
		job.Cancelled()
		return
	case err != nil:
		log.Error().Err(err).Str("job", job.ID).Msg("job failed")
		job.Fail(err.Error())
		return
	}

	job.Log(fmt.Sprintf("Done in %s", time.Since(start).Round(time.Millisecond)))

	kinds := make([]string, 0, len(out.Files))
	for kind := range out.Files {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	res := &jobs.Result{
		Files:    out.Files,
		Kinds:    kinds,
		Families: out.Families,
		Geocoded: out.Geocoded,
		Summary:  out.Result.Summary,
	}
	for _, w := range out.Result.Warnings {
		res.Warnings = append(res.Warnings, w.Error())
	}
	job.Finish(res)
}

// Prune drops finished jobs created before cutoff together with their upload
// and output directory. It returns how many jobs were removed.
func (h *JobHandler) Prune(cutoff time.Time) int {
	removed := h.store.Prune(cutoff)
	for _, job := range removed {
		if job.InputPath != "" {
			if err := os.Remove(job.InputPath); err != nil && !errors.Is(err, os.ErrNotExist) {
				log.Warn().Err(err).Str("job", job.ID).Msg("cannot remove job input")
			}
		}
		if err := os.RemoveAll(filepath.Join(h.outputDir, job.ID)); err != nil {
			log.Warn().Err(err).Str("job", job.ID).Msg("cannot remove job output")
		}
	}
	return len(removed)
}

func (h *JobHandler) lookup(c *gin.Context, id string) (*jobs.Job, bool) {
	job, err := h.store.Get(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "job not found"})
		return nil, false
	}
	return job, true
}

// Logs handles GET /logs?job_id=
func (h *JobHandler) Logs(c *gin.Context) {
	job, ok := h.lookup(c, c.Query("job_id"))
	if !ok {
		return
	}
	snap := job.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"ok":       true,
		"logs":     snap.Logs,
		"status":   snap.Status,
		"progress": snap.Progress,
	})
}

// Status handles GET /status?job_id=
func (h *JobHandler) Status(c *gin.Context) {
	job, ok := h.lookup(c, c.Query("job_id"))
	if !ok {
		return
	}
	snap := job.Snapshot()
	res := gin.H{
		"ok":     true,
		"status": snap.Status,
		"error":  snap.Error,
	}
	if snap.Result != nil {
		res["result"] = snap.Result
	}
	c.JSON(http.StatusOK, res)
}

// Cancel handles POST /cancel?job_id=
func (h *JobHandler) Cancel(c *gin.Context) {
	job, ok := h.lookup(c, c.Query("job_id"))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": job.Cancel()})
}

// Download handles GET /download/:job_id/:kind
func (h *JobHandler) Download(c *gin.Context) {
	job, ok := h.lookup(c, c.Param("job_id"))
	if !ok {
		return
	}
	path, ok := job.File(c.Param("kind"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "file not available"})
		return
	}
	c.FileAttachment(path, filepath.Base(path))
}
