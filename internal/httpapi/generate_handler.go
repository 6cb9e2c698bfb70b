package httpapi

import (
	"net/http"
	"time"

	"ops_gateway/internal/dispatch"
	"ops_gateway/internal/models"
	"ops_gateway/internal/utils"
)

// handleGenerate is the direct dispatcher pass-through.
//
// Flow:
//  1. Validate method
//  2. Check key permissions for the generate action
//  3. Decode JSON body
//  4. Dispatch to a provider
//  5. Record the run (async)
//  6. Return the normalized result
func (d *Dependencies) handleGenerate(w http.ResponseWriter, r *http.Request) {
	handlerStart := time.Now()

	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if _, ok := d.requireAction(w, r, models.ActionGenerate); !ok {
		return
	}

	var req dispatch.GenerationRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	providerStart := time.Now()
	result, err := d.Dispatcher.Generate(r.Context(), req)
	providerMS := int(time.Since(providerStart).Milliseconds())

	if err != nil {
		d.recordRun(r, runOutcome{
			action:     models.ActionGenerate,
			provider:   string(req.Provider),
			model:      req.Model,
			providerMS: providerMS,
			gatewayMS:  int(time.Since(handlerStart).Milliseconds()),
			err:        err,
		})
		writeDispatchError(w, err)
		return
	}

	d.recordRun(r, runOutcome{
		action:     models.ActionGenerate,
		provider:   string(result.Provider),
		model:      result.Model,
		usage:      result.Usage,
		providerMS: providerMS,
		gatewayMS:  int(time.Since(handlerStart).Milliseconds()),
	})

	_ = utils.RespondWithJSON(w, http.StatusOK, result)
}
