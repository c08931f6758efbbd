// Package assetstore wraps the external asset provider's REST API. The
// provider holds the actual media bytes; the catalog database only
// mirrors its metadata.
package assetstore

import (
	"context"
	"time"
)

// RemoteAsset is the provider's view of one stored asset.
type RemoteAsset struct {
	ExternalID   string    `json:"public_id"`
	Filename     string    `json:"filename"`
	Folder       string    `json:"folder"`
	ResourceType string    `json:"resource_type"`
	MimeType     string    `json:"mime_type"`
	SizeBytes    int64     `json:"bytes"`
	Checksum     string    `json:"etag"`
	Version      int64     `json:"version"`
	CreatedAt    time.Time `json:"created_at"`
}

// UploadParams describes one asset to push to the provider.
type UploadParams struct {
	Filename string
	Folder   string
	MimeType string
	Data     []byte
}

// ListPage is one page of the provider's asset listing.
type ListPage struct {
	Assets     []*RemoteAsset `json:"resources"`
	NextCursor string         `json:"next_cursor"`
}

// Client is the minimal surface the sync engine needs from the provider.
type Client interface {
	Upload(ctx context.Context, params UploadParams) (*RemoteAsset, error)
	Delete(ctx context.Context, externalID string) error
	List(ctx context.Context, cursor string, maxResults int) (*ListPage, error)
}

// ListAll drains the provider's paginated listing. On a mid-listing
// failure it returns whatever was retrieved so far along with the error,
// so callers can report partial results instead of failing outright.
func ListAll(ctx context.Context, client Client) ([]*RemoteAsset, error) {
	assets := []*RemoteAsset{}
	cursor := ""

	for {
		page, err := client.List(ctx, cursor, 500)
		if err != nil {
			return assets, err
		}
		assets = append(assets, page.Assets...)
		if page.NextCursor == "" {
			return assets, nil
		}
		cursor = page.NextCursor
	}
}
