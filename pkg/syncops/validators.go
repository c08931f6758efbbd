package syncops

type ListOperationsQuery struct {
	Limit  int      `query:"limit" json:"limit,omitempty" default:"10" validate:"min=1,max=100"`
	Offset int      `query:"offset" json:"offset,omitempty" validate:"min=0"`
	Status []string `query:"status" json:"status,omitempty" validate:"dive,oneof=pending in_progress completed failed cancelled"`
	Type   *string  `query:"type" json:"type,omitempty" validate:"omitempty,oneof=upload delete update full_sync webhook"`
	Source *string  `query:"source" json:"source,omitempty" validate:"omitempty,oneof=manual webhook api scheduled"`
}
