package media

type ListMediaQuery struct {
	Limit          int      `query:"limit" json:"limit,omitempty" default:"24" validate:"min=1,max=100"`
	Offset         int      `query:"offset" json:"offset,omitempty" validate:"min=0"`
	Statuses       []string `query:"statuses" json:"statuses,omitempty" validate:"omitempty,dive,oneof=pending synced error"`
	Folder         *string  `query:"folder" json:"folder,omitempty" validate:"omitempty,max=255"`
	ResourceType   *string  `query:"resource_type" json:"resource_type,omitempty" validate:"omitempty,oneof=image video raw"`
	IncludeDeleted bool     `query:"include_deleted" json:"include_deleted,omitempty"`
}
