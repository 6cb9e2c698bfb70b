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

// monitorRequest is the payload for POST /v1/monitor/analyze
type monitorRequest struct {
	Cluster string `json:"cluster"`
	Model   string `json:"model,omitempty"`
}

// monitorResponse pairs simulated metrics with the model's assessment
type monitorResponse struct {
	Cluster    string            `json:"cluster"`
	Health     ops.HealthMetrics `json:"health"`
	Cost       ops.CostAnalysis  `json:"cost"`
	Assessment string            `json:"assessment"`
	Model      string            `json:"model"`
	Provider   string            `json:"provider"`
}

// handleMonitorAnalyze samples cluster health and cost figures and asks
// the model for an operational assessment.
func (d *Dependencies) handleMonitorAnalyze(w http.ResponseWriter, r *http.Request) {
	handlerStart := time.Now()

	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if _, ok := d.requireAction(w, r, models.ActionMonitor); !ok {
		return
	}

	var req monitorRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Cluster) == "" {
		writeJSONError(w, http.StatusBadRequest, "missing 'cluster' field")
		return
	}

	health := d.Sim.HealthMetrics()
	cost := d.Sim.CostAnalysis()

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Current snapshot for cluster %q:\n", req.Cluster)
	fmt.Fprintf(&prompt, "CPU %.1f%%, memory %.1f%%, error rate %.3f%%, p99 latency %.0fms\n",
		health.CPUPercent, health.MemoryPercent, health.ErrorRate*100, health.P99LatencyMS)
	fmt.Fprintf(&prompt, "Pods: %d healthy, %d unhealthy. Throughput: %.0f req/s\n",
		health.HealthyPods, health.UnhealthyPods, health.RequestsPerSec)
	fmt.Fprintf(&prompt, "Monthly cost: $%.0f (compute $%.0f, storage $%.0f, network $%.0f), trending %+.1f%%\n",
		cost.MonthlyUSD, cost.ComputeUSD, cost.StorageUSD, cost.NetworkUSD, cost.TrendPercent)
	prompt.WriteString("Assess the operational health of this cluster and flag any cost or reliability concerns.")

	providerStart := time.Now()
	result, err := d.Dispatcher.Generate(r.Context(), dispatch.GenerationRequest{
		Prompt: prompt.String(),
		Model:  req.Model,
	})
	providerMS := int(time.Since(providerStart).Milliseconds())

	if err != nil {
		d.recordRun(r, runOutcome{
			action:     models.ActionMonitor,
			model:      req.Model,
			providerMS: providerMS,
			gatewayMS:  int(time.Since(handlerStart).Milliseconds()),
			err:        err,
		})
		writeDispatchError(w, err)
		return
	}

	d.recordRun(r, runOutcome{
		action:     models.ActionMonitor,
		provider:   string(result.Provider),
		model:      result.Model,
		usage:      result.Usage,
		providerMS: providerMS,
		gatewayMS:  int(time.Since(handlerStart).Milliseconds()),
	})

	if health.UnhealthyPods > 0 {
		d.sendNotification(r, models.ActionMonitor, models.SeverityWarning,
			fmt.Sprintf("%d unhealthy pods in cluster %s", health.UnhealthyPods, req.Cluster),
			result.Content, map[string]any{
				"cluster":        req.Cluster,
				"unhealthy_pods": health.UnhealthyPods,
				"error_rate":     health.ErrorRate,
			})
	}

	_ = utils.RespondWithJSON(w, http.StatusOK, monitorResponse{
		Cluster:    req.Cluster,
		Health:     health,
		Cost:       cost,
		Assessment: result.Content,
		Model:      result.Model,
		Provider:   string(result.Provider),
	})
}
