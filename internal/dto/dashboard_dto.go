package dto

// PeriodicSummary counts completed entries for one record kind.
type PeriodicSummary struct {
	Done  int `json:"done"`
	Total int `json:"total"`
}

// DashboardResponse is the derived per-student dashboard view.
type DashboardResponse struct {
	Identifier      string              `json:"identifier"`
	CompletionRatio float64             `json:"completion_ratio"`
	Milestones      []MilestoneStatus   `json:"milestones"`
	RPRSummary      PeriodicSummary     `json:"rpr_summary"`
	APSSummary      PeriodicSummary     `json:"aps_summary"`
	UpcomingRPR     []PeriodicEntryView `json:"upcoming_rpr"`
	UpcomingAPS     []PeriodicEntryView `json:"upcoming_aps"`
	Remarks         string              `json:"remarks"`
}

// UploadResponse describes one stored document.
type UploadResponse struct {
	FileName  string `json:"file_name"`
	SizeBytes int64  `json:"size_bytes"`
	MimeType  string `json:"mime_type"`
	BackedUp  bool   `json:"backed_up"`
	BackupURL string `json:"backup_url,omitempty"`
}

// ExportResult is a rendered spreadsheet for one student.
type ExportResult struct {
	FileName string `json:"file_name"`
	Content  []byte `json:"-"`
}
