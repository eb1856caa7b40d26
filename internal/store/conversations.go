package store

import (
	"context"
	"fmt"
)

// EndpointsForChat returns the endpoints already associated with chatID.
func (s *Store) EndpointsForChat(ctx context.Context, chatID int64) ([]Endpoint, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT endpoint_id, endpoint
	FROM endpoints
	WHERE endpoint_id IN (
		SELECT endpoint_id FROM conversations WHERE chat_id = ?
	)
	ORDER BY endpoint_id`, chatID)
	if err != nil {
		s.log.Error("Failed to select chat endpoints", "chat_id", chatID, "error", err)
		return nil, fmt.Errorf("failed to select chat endpoints: %w", err)
	}
	endpoints, err := scanEndpoints(rows)
	if err != nil {
		s.log.Error("Failed to scan chat endpoints", "chat_id", chatID, "error", err)
		return nil, fmt.Errorf("failed to scan chat endpoints: %w", err)
	}
	return endpoints, nil
}

// UnassignedEndpointsForChat returns the endpoints with no association to chatID.
func (s *Store) UnassignedEndpointsForChat(ctx context.Context, chatID int64) ([]Endpoint, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT e.endpoint_id, e.endpoint
	FROM endpoints e
	LEFT JOIN conversations c ON e.endpoint_id = c.endpoint_id AND c.chat_id = ?
	WHERE c.endpoint_id IS NULL
	ORDER BY e.endpoint_id`, chatID)
	if err != nil {
		s.log.Error("Failed to select unassigned endpoints", "chat_id", chatID, "error", err)
		return nil, fmt.Errorf("failed to select unassigned endpoints: %w", err)
	}
	endpoints, err := scanEndpoints(rows)
	if err != nil {
		s.log.Error("Failed to scan unassigned endpoints", "chat_id", chatID, "error", err)
		return nil, fmt.Errorf("failed to scan unassigned endpoints: %w", err)
	}
	return endpoints, nil
}

// AssignEndpoint associates endpointID with chatID. Assigning twice is a no-op.
func (s *Store) AssignEndpoint(ctx context.Context, chatID, endpointID int64) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO conversations (chat_id, endpoint_id) VALUES (?, ?)", chatID, endpointID)
	if err != nil {
		s.log.Error("Failed to assign endpoint", "chat_id", chatID, "endpoint_id", endpointID, "error", err)
		return fmt.Errorf("failed to assign endpoint: %w", err)
	}
	return nil
}

// UnassignEndpoint removes the association between endpointID and chatID.
func (s *Store) UnassignEndpoint(ctx context.Context, chatID, endpointID int64) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM conversations WHERE chat_id = ? AND endpoint_id = ?", chatID, endpointID)
	if err != nil {
		s.log.Error("Failed to unassign endpoint", "chat_id", chatID, "endpoint_id", endpointID, "error", err)
		return fmt.Errorf("failed to unassign endpoint: %w", err)
	}
	return nil
}
