package webhooks

const (
	NotificationUpload = "upload"
	NotificationDelete = "delete"
	NotificationUpdate = "update"
)

// Notification is the provider's change payload. Unknown
// notification_type values are accepted and logged so new provider
// event kinds don't bounce until we ship a handler for them.
type Notification struct {
	NotificationType string `json:"notification_type"`
	ExternalID       string `json:"public_id"`
	Filename         string `json:"filename"`
	Folder           string `json:"folder"`
	ResourceType     string `json:"resource_type"`
	MimeType         string `json:"mime_type"`
	SizeBytes        int64  `json:"bytes"`
	Checksum         string `json:"etag"`
	Version          int64  `json:"version"`
	CorrelationID    *string `json:"correlation_id,omitempty"`
}
