package uploads

import "mime/multipart"

type SubmitUploadPayload struct {
	Folder    string                           `form:"folder" json:"folder,omitempty" validate:"omitempty,max=255"`
	FormFiles map[string]*multipart.FileHeader `json:"-"`
}
