package http

type commitRefRequest struct {
	Commit     string `json:"commit" validate:"required,min=1,max=64"`
	Repository string `json:"repository" validate:"required,min=1,max=200"`
}

type statusDetailsRequest struct {
	InNextRelease bool              `json:"inNextRelease"`
	InRelease     string            `json:"inRelease" validate:"omitempty,max=250"`
	InCommit      *commitRefRequest `json:"inCommit" validate:"omitempty"`

	IgnoreDuration   *int `json:"ignoreDuration" validate:"omitempty,min=1"`
	IgnoreCount      *int `json:"ignoreCount" validate:"omitempty,min=1"`
	IgnoreWindow     *int `json:"ignoreWindow" validate:"omitempty,min=1,max=10080"`
	IgnoreUserCount  *int `json:"ignoreUserCount" validate:"omitempty,min=1"`
	IgnoreUserWindow *int `json:"ignoreUserWindow" validate:"omitempty,min=1,max=10080"`
}

type mutateIssuesRequest struct {
	Status        *string               `json:"status" validate:"omitempty,oneof=resolved unresolved ignored"`
	StatusDetails *statusDetailsRequest `json:"statusDetails" validate:"omitempty"`

	IsBookmarked *bool   `json:"isBookmarked"`
	IsSubscribed *bool   `json:"isSubscribed"`
	IsPublic     *bool   `json:"isPublic"`
	HasSeen      *bool   `json:"hasSeen"`
	AssignedTo   *string `json:"assignedTo" validate:"omitempty,assignee_ref"`

	Merge   bool `json:"merge"`
	Discard bool `json:"discard"`
}
