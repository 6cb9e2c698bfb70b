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

// scanRequest is the payload for POST /v1/security/scan
type scanRequest struct {
	Target string `json:"target"`
	Model  string `json:"model,omitempty"`
}

// scanResponse pairs the simulated compliance score with model findings
type scanResponse struct {
	Target     string              `json:"target"`
	Compliance ops.ComplianceScore `json:"compliance"`
	Findings   string              `json:"findings"`
	Model      string              `json:"model"`
	Provider   string              `json:"provider"`
}

// handleSecurityScan runs a simulated compliance scan and asks the model
// to prioritize remediation. Failing scans page operators.
func (d *Dependencies) handleSecurityScan(w http.ResponseWriter, r *http.Request) {
	handlerStart := time.Now()

	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if _, ok := d.requireAction(w, r, models.ActionSecurityScan); !ok {
		return
	}

	var req scanRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Target) == "" {
		writeJSONError(w, http.StatusBadRequest, "missing 'target' field")
		return
	}

	compliance := d.Sim.ComplianceScore()

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "A compliance scan of %q finished with score %.1f/100 (pass threshold 75).\n",
		req.Target, compliance.Score)
	fmt.Fprintf(&prompt, "Findings: %d critical, %d high, %d medium.\n",
		compliance.CriticalCount, compliance.HighCount, compliance.MediumCount)
	fmt.Fprintf(&prompt, "Frameworks evaluated: %s.\n", strings.Join(compliance.Frameworks, ", "))
	prompt.WriteString("Summarize the security posture and list remediation steps in priority order.")

	providerStart := time.Now()
	result, err := d.Dispatcher.Generate(r.Context(), dispatch.GenerationRequest{
		Prompt: prompt.String(),
		Model:  req.Model,
	})
	providerMS := int(time.Since(providerStart).Milliseconds())

	if err != nil {
		d.recordRun(r, runOutcome{
			action:     models.ActionSecurityScan,
			model:      req.Model,
			providerMS: providerMS,
			gatewayMS:  int(time.Since(handlerStart).Milliseconds()),
			err:        err,
		})
		writeDispatchError(w, err)
		return
	}

	d.recordRun(r, runOutcome{
		action:     models.ActionSecurityScan,
		provider:   string(result.Provider),
		model:      result.Model,
		usage:      result.Usage,
		providerMS: providerMS,
		gatewayMS:  int(time.Since(handlerStart).Milliseconds()),
	})

	if !compliance.Passed {
		d.sendNotification(r, models.ActionSecurityScan, models.SeverityCritical,
			fmt.Sprintf("Compliance scan failed for %s (score %.1f)", req.Target, compliance.Score),
			result.Content, map[string]any{
				"target":         req.Target,
				"score":          compliance.Score,
				"critical_count": compliance.CriticalCount,
				"high_count":     compliance.HighCount,
			})
	}

	_ = utils.RespondWithJSON(w, http.StatusOK, scanResponse{
		Target:     req.Target,
		Compliance: compliance,
		Findings:   result.Content,
		Model:      result.Model,
		Provider:   string(result.Provider),
	})
}
