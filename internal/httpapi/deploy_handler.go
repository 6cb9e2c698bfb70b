package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"ops_gateway/internal/dispatch"
	"ops_gateway/internal/models"
	"ops_gateway/internal/ops"
	"ops_gateway/internal/utils"
)

// deployRequest is the payload for POST /v1/deploy and /v1/deploy/rollback
type deployRequest struct {
	Service     string `json:"service"`
	Environment string `json:"environment"`
	Ref         string `json:"ref,omitempty"`
	Model       string `json:"model,omitempty"`
}

// deployResponse pairs the simulated build outcome with the model's summary
type deployResponse struct {
	Service     string           `json:"service"`
	Environment string           `json:"environment"`
	Build       ops.BuildOutcome `json:"build"`
	Summary     string           `json:"summary"`
	Model       string           `json:"model"`
	Provider    string           `json:"provider"`
}

// rollbackResponse carries the generated rollback plan
type rollbackResponse struct {
	Service     string `json:"service"`
	Environment string `json:"environment"`
	Plan        string `json:"plan"`
	Model       string `json:"model"`
	Provider    string `json:"provider"`
}

func (req *deployRequest) validate() error {
	if strings.TrimSpace(req.Service) == "" {
		return fmt.Errorf("missing 'service' field")
	}
	if strings.TrimSpace(req.Environment) == "" {
		return fmt.Errorf("missing 'environment' field")
	}
	return nil
}

// handleDeploy runs a simulated build and deploy, asks the model to
// summarize the outcome, and notifies operators on failure.
func (d *Dependencies) handleDeploy(w http.ResponseWriter, r *http.Request) {
	handlerStart := time.Now()

	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if _, ok := d.requireAction(w, r, models.ActionDeploy); !ok {
		return
	}

	var req deployRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := req.validate(); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	build := d.Sim.BuildOutcome(req.Environment)

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "A deploy of service %q to environment %q just finished.\n", req.Service, req.Environment)
	if req.Ref != "" {
		fmt.Fprintf(&prompt, "Deployed ref: %s\n", req.Ref)
	}
	fmt.Fprintf(&prompt, "Build ID: %s\nImage tag: %s\nDuration: %.0f seconds\nSuccess: %v\n",
		build.BuildID, build.ImageTag, build.DurationS, build.Success)
	if !build.Success {
		fmt.Fprintf(&prompt, "Failure reason: %s\n", build.FailReason)
	}
	prompt.WriteString("Write a short deployment summary for the team channel. Mention next steps if the deploy failed.")

	providerStart := time.Now()
	result, err := d.Dispatcher.Generate(r.Context(), dispatch.GenerationRequest{
		Prompt: prompt.String(),
		Model:  req.Model,
	})
	providerMS := int(time.Since(providerStart).Milliseconds())

	if err != nil {
		d.recordRun(r, runOutcome{
			action:     models.ActionDeploy,
			model:      req.Model,
			providerMS: providerMS,
			gatewayMS:  int(time.Since(handlerStart).Milliseconds()),
			err:        err,
		})
		writeDispatchError(w, err)
		return
	}

	d.recordRun(r, runOutcome{
		action:     models.ActionDeploy,
		provider:   string(result.Provider),
		model:      result.Model,
		usage:      result.Usage,
		providerMS: providerMS,
		gatewayMS:  int(time.Since(handlerStart).Milliseconds()),
	})

	severity := models.SeverityInfo
	subject := fmt.Sprintf("Deploy of %s to %s succeeded", req.Service, req.Environment)
	if !build.Success {
		severity = models.SeverityWarning
		subject = fmt.Sprintf("Deploy of %s to %s failed: %s", req.Service, req.Environment, build.FailReason)
	}
	d.sendNotification(r, models.ActionDeploy, severity, subject, result.Content, map[string]any{
		"service":     req.Service,
		"environment": req.Environment,
		"build_id":    build.BuildID,
		"image_tag":   build.ImageTag,
		"success":     build.Success,
	})

	_ = utils.RespondWithJSON(w, http.StatusOK, deployResponse{
		Service:     req.Service,
		Environment: req.Environment,
		Build:       build,
		Summary:     result.Content,
		Model:       result.Model,
		Provider:    string(result.Provider),
	})
}

// handleRollback asks the model for a rollback plan for the given service
func (d *Dependencies) handleRollback(w http.ResponseWriter, r *http.Request) {
	handlerStart := time.Now()

	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if _, ok := d.requireAction(w, r, models.ActionRollback); !ok {
		return
	}

	var req deployRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := req.validate(); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Service %q in environment %q needs to be rolled back.\n", req.Service, req.Environment)
	if req.Ref != "" {
		fmt.Fprintf(&prompt, "The currently deployed ref is %s.\n", req.Ref)
	}
	prompt.WriteString("Produce a step-by-step rollback plan, including verification steps after each stage.")

	providerStart := time.Now()
	result, err := d.Dispatcher.Generate(r.Context(), dispatch.GenerationRequest{
		Prompt: prompt.String(),
		Model:  req.Model,
	})
	providerMS := int(time.Since(providerStart).Milliseconds())

	if err != nil {
		d.recordRun(r, runOutcome{
			action:     models.ActionRollback,
			model:      req.Model,
			providerMS: providerMS,
			gatewayMS:  int(time.Since(handlerStart).Milliseconds()),
			err:        err,
		})
		writeDispatchError(w, err)
		return
	}

	d.recordRun(r, runOutcome{
		action:     models.ActionRollback,
		provider:   string(result.Provider),
		model:      result.Model,
		usage:      result.Usage,
		providerMS: providerMS,
		gatewayMS:  int(time.Since(handlerStart).Milliseconds()),
	})

	d.sendNotification(r, models.ActionRollback, models.SeverityWarning,
		fmt.Sprintf("Rollback initiated for %s in %s", req.Service, req.Environment),
		result.Content, map[string]any{
			"service":     req.Service,
			"environment": req.Environment,
		})

	_ = utils.RespondWithJSON(w, http.StatusOK, rollbackResponse{
		Service:     req.Service,
		Environment: req.Environment,
		Plan:        result.Content,
		Model:       result.Model,
		Provider:    string(result.Provider),
	})
}
