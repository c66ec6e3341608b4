package trail

import "time"

// Metrics receives sync instrumentation.
type Metrics interface {
	UploadFinished(result, step string, d time.Duration)
	SetPending(n int)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func NewNopMetrics() *NopMetrics { return &NopMetrics{} }

func (NopMetrics) UploadFinished(string, string, time.Duration) {}
func (NopMetrics) SetPending(int)                               {}
