package watcher

import "time"

// Status is what happened to one alert during a tick.
type Status string

const (
	StatusPending      Status = "pending"       // price outside threshold, alert kept
	StatusSkipped      Status = "skipped"       // price fetch failed, alert untouched
	StatusResolved     Status = "resolved"      // notified and deleted
	StatusNotifyFailed Status = "notify_failed" // delivery failed, alert deleted anyway
	StatusDeleteFailed Status = "delete_failed" // delete failed, alert kept for next tick
	StatusFailed       Status = "failed"
)

// AlertOutcome is the per-alert result of a tick.
type AlertOutcome struct {
	AlertID  uint    `json:"alert_id"`
	Ticker   string  `json:"ticker"`
	Status   Status  `json:"status"`
	Price    float64 `json:"price,omitempty"`
	Target   float64 `json:"target,omitempty"`
	Distance float64 `json:"distance,omitempty"`
	Notified bool    `json:"notified"`
	Deleted  bool    `json:"deleted"`
	Err      error   `json:"-"`
	Error    string  `json:"error,omitempty"`
}

// TickReport collects the outcomes of one tick.
type TickReport struct {
	ID         string         `json:"id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Checked    int            `json:"checked"`
	Resolved   int            `json:"resolved"`
	Pending    int            `json:"pending"`
	Skipped    int            `json:"skipped"`
	Failed     int            `json:"failed"`
	Outcomes   []AlertOutcome `json:"outcomes"`
}

func (r *TickReport) tally() {
	r.Checked = len(r.Outcomes)
	for i := range r.Outcomes {
		o := &r.Outcomes[i]
		if o.Err != nil {
			o.Error = o.Err.Error()
		}
		switch o.Status {
		case StatusResolved, StatusNotifyFailed:
			r.Resolved++
			if o.Status == StatusNotifyFailed {
				r.Failed++
			}
		case StatusPending:
			r.Pending++
		case StatusSkipped:
			r.Skipped++
		default:
			r.Failed++
		}
	}
}

// Outcome returns the outcome for an alert id.
func (r *TickReport) Outcome(alertID uint) (AlertOutcome, bool) {
	for _, o := range r.Outcomes {
		if o.AlertID == alertID {
			return o, true
		}
	}
	return AlertOutcome{}, false
}
