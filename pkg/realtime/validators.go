package realtime

// ListConnectionsQuery represents the query parameters for listing
// realtime connections.
type ListConnectionsQuery struct {
	Status []string `query:"status" json:"status,omitempty" validate:"dive,oneof=connected disconnected reconnecting error"`
}
