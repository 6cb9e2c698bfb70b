package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"ops_gateway/internal/dispatch"
	"ops_gateway/internal/models"
	"ops_gateway/internal/utils"
)

const reviewSystemPrompt = "You are a senior engineer reviewing a pull request. " +
	"Point out correctness issues, security problems, and style concerns. " +
	"Be specific and reference the changed lines."

// codeReviewRequest is the payload for POST /v1/code/review
type codeReviewRequest struct {
	Repository string `json:"repository"`
	Diff       string `json:"diff"`
	Language   string `json:"language,omitempty"`
	Model      string `json:"model,omitempty"`
}

// codeReviewResponse reshapes the generation result for review consumers
type codeReviewResponse struct {
	Repository string         `json:"repository"`
	Review     string         `json:"review"`
	Model      string         `json:"model"`
	Provider   string         `json:"provider"`
	Usage      map[string]int `json:"usage,omitempty"`
}

// handleCodeReview formats a review prompt from the submitted diff and
// returns the model's review text.
func (d *Dependencies) handleCodeReview(w http.ResponseWriter, r *http.Request) {
	handlerStart := time.Now()

	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if _, ok := d.requireAction(w, r, models.ActionCodeReview); !ok {
		return
	}

	var req codeReviewRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Diff) == "" {
		writeJSONError(w, http.StatusBadRequest, "missing 'diff' field")
		return
	}

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Review the following changes to %s.\n", valueOr(req.Repository, "the repository"))
	if req.Language != "" {
		fmt.Fprintf(&prompt, "The code is written in %s.\n", req.Language)
	}
	fmt.Fprintf(&prompt, "\n```diff\n%s\n```\n", req.Diff)

	providerStart := time.Now()
	result, err := d.Dispatcher.Generate(r.Context(), dispatch.GenerationRequest{
		Prompt:       prompt.String(),
		Model:        req.Model,
		SystemPrompt: reviewSystemPrompt,
	})
	providerMS := int(time.Since(providerStart).Milliseconds())

	if err != nil {
		d.recordRun(r, runOutcome{
			action:     models.ActionCodeReview,
			model:      req.Model,
			providerMS: providerMS,
			gatewayMS:  int(time.Since(handlerStart).Milliseconds()),
			err:        err,
		})
		writeDispatchError(w, err)
		return
	}

	d.recordRun(r, runOutcome{
		action:     models.ActionCodeReview,
		provider:   string(result.Provider),
		model:      result.Model,
		usage:      result.Usage,
		providerMS: providerMS,
		gatewayMS:  int(time.Since(handlerStart).Milliseconds()),
	})

	_ = utils.RespondWithJSON(w, http.StatusOK, codeReviewResponse{
		Repository: req.Repository,
		Review:     result.Content,
		Model:      result.Model,
		Provider:   string(result.Provider),
		Usage:      result.Usage,
	})
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
