package observer

import (
	"time"

	"github.com/pagelens/pagelens/pkg/domains"
	"github.com/pagelens/pagelens/pkg/endpoints"
	"github.com/pagelens/pagelens/pkg/secrets"
	"github.com/pagelens/pagelens/pkg/snapshot"
)

// Report summarizes a capture. It can be taken while Run is active.
type Report struct {
	PageURL       string                     `json:"page_url"`
	SnapshotID    string                     `json:"snapshot_id,omitempty"`
	State         State                      `json:"state"`
	EndReason     string                     `json:"end_reason,omitempty"`
	StartedAt     time.Time                  `json:"started_at"`
	FinishedAt    time.Time                  `json:"finished_at"`
	Observations  int                        `json:"observations"`
	JSFiles       int                        `json:"js_files"`
	FetchErrors   int                        `json:"fetch_errors"`
	Endpoints     map[endpoints.Category]int `json:"endpoints"`
	EndpointTotal int                        `json:"endpoint_total"`
	Secrets       secrets.Stats              `json:"secrets"`
	Domains       domains.Stats              `json:"domains"`
	Suspicious    []domains.Record           `json:"suspicious"`
	Assets        int                        `json:"assets"`
	Performance   snapshot.Performance       `json:"performance"`
	SinkDisabled  bool                       `json:"sink_disabled"`
}

// Report returns the current summary of the capture.
func (o *Observer) Report() Report {
	o.mu.Lock()
	r := o.report
	o.mu.Unlock()

	r.Endpoints = o.extractor.Totals()
	for _, n := range r.Endpoints {
		r.EndpointTotal += n
	}
	r.Secrets = o.scanner.Stats()
	r.Domains = o.categories.Stats()
	r.Suspicious = o.categories.Suspicious()
	if snap, ok := o.snapshots.Get(r.SnapshotID); ok {
		r.Assets = len(snap.Assets)
		r.Performance = snap.Performance
	}
	return r
}

func (o *Observer) update(fn func(*Report)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fn(&o.report)
}
