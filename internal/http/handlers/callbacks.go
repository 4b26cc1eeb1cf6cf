package handlers

import (
	"io"
	"net/http"

	"newscast/internal/domain/jsoncfg"
	"newscast/internal/jobs"
	"newscast/internal/providers/video"
)

// FalCallback receives lip-sync results. The job_id and sig query
// parameters come from the URL handed to the provider at submission.
func (a *App) FalCallback(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Query().Get("job_id")
	if !a.Signer.Verify(jobID, r.URL.Query().Get("sig")) {
		a.error(w, http.StatusUnauthorized, "unauthorized", "invalid callback signature")
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "unreadable body")
		return
	}
	hook, err := video.ParseFalWebhook(body)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	cb := jobs.Callback{ExternalRef: hook.RequestID, JobID: jobID}
	if hook.Status == "OK" {
		asset, err := hook.Asset()
		if err != nil {
			cb.Error = err.Error()
		} else {
			cb.Result = jsoncfg.MustMarshal(jsoncfg.VideoResult{URL: asset.URL})
		}
	} else {
		cb.Error = hook.FailureMessage()
	}

	job, err := a.Jobs.HandleCallback(r.Context(), cb)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.Logger.Info().Str("job_id", job.ID).Str("status", string(job.Status)).Str("external_ref", hook.RequestID).Msg("http: callback applied")
	w.WriteHeader(http.StatusNoContent)
}
