package ops

// RunSweepReq optionally pins the sweep's clock reading, mainly for
// rehearsing a sweep against a future instant.
type RunSweepReq struct {
	AsOf string `json:"as_of" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}
