package backup

// RestoredCounts reports what a restore applied, per category.
type RestoredCounts struct {
	Settings    bool `json:"settings"`
	Sessions    int  `json:"sessions"`
	SendHistory int  `json:"sendHistory"`
	MediaMeta   int  `json:"mediaMeta"`
	Files       int  `json:"files,omitempty"`
}

// RestoreResult is built incrementally during a restore. Counts reflect
// everything that succeeded, even when Success is false.
type RestoreResult struct {
	Success  bool           `json:"success"`
	Restored RestoredCounts `json:"restored"`
	Errors   []string       `json:"errors"`
	Warnings []string       `json:"warnings"`
}

func newRestoreResult() *RestoreResult {
	return &RestoreResult{Errors: []string{}, Warnings: []string{}}
}

func (r *RestoreResult) addError(msg string) {
	r.Errors = append(r.Errors, msg)
}

func (r *RestoreResult) addWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// VerifyResult reports archive integrity. Warnings do not affect Valid.
type VerifyResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func newVerifyResult() *VerifyResult {
	return &VerifyResult{Valid: true, Errors: []string{}, Warnings: []string{}}
}

func (r *VerifyResult) invalidate(msg string) {
	r.Valid = false
	r.Errors = append(r.Errors, msg)
}

func (r *VerifyResult) addWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}
