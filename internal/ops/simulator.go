// Package ops hosts the simulated DevOps integrations. Real source
// control, build, and orchestration backends are stubbed with seedable
// pseudo-random outcomes so the gateway pipeline can run end to end
// without external infrastructure.
package ops

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// BuildOutcome is the simulated result of a container build and deploy
type BuildOutcome struct {
	Success    bool    `json:"success"`
	BuildID    string  `json:"build_id"`
	DurationS  float64 `json:"duration_s"`
	ImageTag   string  `json:"image_tag"`
	FailReason string  `json:"fail_reason,omitempty"`
}

// ComplianceScore is the simulated result of a security scan
type ComplianceScore struct {
	Score         float64  `json:"score"`
	CriticalCount int      `json:"critical_count"`
	HighCount     int      `json:"high_count"`
	MediumCount   int      `json:"medium_count"`
	Passed        bool     `json:"passed"`
	Frameworks    []string `json:"frameworks"`
}

// CostAnalysis is the simulated infrastructure cost breakdown
type CostAnalysis struct {
	MonthlyUSD   float64 `json:"monthly_usd"`
	ComputeUSD   float64 `json:"compute_usd"`
	StorageUSD   float64 `json:"storage_usd"`
	NetworkUSD   float64 `json:"network_usd"`
	TrendPercent float64 `json:"trend_percent"`
}

// HealthMetrics is the simulated cluster health snapshot
type HealthMetrics struct {
	CPUPercent     float64 `json:"cpu_percent"`
	MemoryPercent  float64 `json:"memory_percent"`
	ErrorRate      float64 `json:"error_rate"`
	P99LatencyMS   float64 `json:"p99_latency_ms"`
	HealthyPods    int     `json:"healthy_pods"`
	UnhealthyPods  int     `json:"unhealthy_pods"`
	RequestsPerSec float64 `json:"requests_per_sec"`
}

// Simulator produces pseudo-random DevOps outcomes. A fixed seed gives
// reproducible sequences for tests; production uses a time-based seed.
type Simulator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulator creates a simulator with the given seed
func NewSimulator(seed int64) *Simulator {
	return &Simulator{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// NewDefaultSimulator creates a simulator seeded from the clock
func NewDefaultSimulator() *Simulator {
	return NewSimulator(time.Now().UnixNano())
}

// BuildOutcome simulates a container build and deploy for the given environment.
// Builds succeed roughly 9 times out of 10.
func (s *Simulator) BuildOutcome(environment string) BuildOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	outcome := BuildOutcome{
		Success:   s.rng.Float64() < 0.9,
		BuildID:   fmt.Sprintf("build-%08x", s.rng.Uint32()),
		DurationS: 30 + s.rng.Float64()*270,
		ImageTag:  fmt.Sprintf("%s-%06x", environment, s.rng.Uint32()&0xffffff),
	}
	if !outcome.Success {
		reasons := []string{
			"image build failed",
			"registry push timed out",
			"readiness probe failed",
			"insufficient cluster capacity",
		}
		outcome.FailReason = reasons[s.rng.Intn(len(reasons))]
	}
	return outcome
}

// ComplianceScore simulates a compliance scan across common frameworks
func (s *Simulator) ComplianceScore() ComplianceScore {
	s.mu.Lock()
	defer s.mu.Unlock()

	score := 60 + s.rng.Float64()*40
	return ComplianceScore{
		Score:         score,
		CriticalCount: s.rng.Intn(3),
		HighCount:     s.rng.Intn(8),
		MediumCount:   s.rng.Intn(20),
		Passed:        score >= 75,
		Frameworks:    []string{"CIS", "SOC2", "PCI-DSS"},
	}
}

// CostAnalysis simulates a monthly infrastructure cost breakdown
func (s *Simulator) CostAnalysis() CostAnalysis {
	s.mu.Lock()
	defer s.mu.Unlock()

	compute := 500 + s.rng.Float64()*4500
	storage := 50 + s.rng.Float64()*950
	network := 20 + s.rng.Float64()*480
	return CostAnalysis{
		MonthlyUSD:   compute + storage + network,
		ComputeUSD:   compute,
		StorageUSD:   storage,
		NetworkUSD:   network,
		TrendPercent: -10 + s.rng.Float64()*30,
	}
}

// HealthMetrics simulates a current cluster health snapshot
func (s *Simulator) HealthMetrics() HealthMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 3 + s.rng.Intn(20)
	unhealthy := 0
	if s.rng.Float64() < 0.3 {
		unhealthy = 1 + s.rng.Intn(2)
		if unhealthy > total {
			unhealthy = total
		}
	}

	return HealthMetrics{
		CPUPercent:     10 + s.rng.Float64()*80,
		MemoryPercent:  20 + s.rng.Float64()*70,
		ErrorRate:      s.rng.Float64() * 0.05,
		P99LatencyMS:   50 + s.rng.Float64()*950,
		HealthyPods:    total - unhealthy,
		UnhealthyPods:  unhealthy,
		RequestsPerSec: 10 + s.rng.Float64()*990,
	}
}
