package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
	"github.com/samber/lo"
)

var (
	ErrDuplicateEndpoint = errors.New("endpoint already exists")
	ErrEndpointNotFound  = errors.New("endpoint not found")
)

// Endpoint is an addressable compute backend.
type Endpoint struct {
	ID      int64  `json:"endpoint_id"`
	Address string `json:"endpoint"`
}

// Create inserts a new endpoint and returns its id.
// It fails with ErrDuplicateEndpoint when the address is already registered.
func (s *Store) Create(ctx context.Context, address string) (int64, error) {
	res, err := s.db.ExecContext(ctx, "INSERT INTO endpoints (endpoint) VALUES (?)", address)
	if err != nil {
		if isUniqueViolation(err) {
			s.log.Warn("Endpoint already registered", "endpoint", address)
			return 0, fmt.Errorf("%w: %s", ErrDuplicateEndpoint, address)
		}
		s.log.Error("Failed to insert endpoint", "endpoint", address, "error", err)
		return 0, fmt.Errorf("failed to insert endpoint: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		s.log.Error("Failed to read endpoint id", "endpoint", address, "error", err)
		return 0, fmt.Errorf("failed to read endpoint id: %w", err)
	}
	return id, nil
}

// Get looks up an endpoint by address.
func (s *Store) Get(ctx context.Context, address string) (Endpoint, error) {
	var e Endpoint
	err := s.db.QueryRowContext(ctx,
		"SELECT endpoint_id, endpoint FROM endpoints WHERE endpoint = ?", address,
	).Scan(&e.ID, &e.Address)
	if errors.Is(err, sql.ErrNoRows) {
		return Endpoint{}, fmt.Errorf("%w: %s", ErrEndpointNotFound, address)
	}
	if err != nil {
		s.log.Error("Failed to select endpoint", "endpoint", address, "error", err)
		return Endpoint{}, fmt.Errorf("failed to select endpoint: %w", err)
	}
	return e, nil
}

// Ensure returns the endpoint for address, creating it when missing.
func (s *Store) Ensure(ctx context.Context, address string) (Endpoint, error) {
	e, err := s.Get(ctx, address)
	if err == nil {
		return e, nil
	}
	if !errors.Is(err, ErrEndpointNotFound) {
		return Endpoint{}, err
	}

	id, err := s.Create(ctx, address)
	if errors.Is(err, ErrDuplicateEndpoint) {
		return s.Get(ctx, address)
	}
	if err != nil {
		return Endpoint{}, err
	}
	return Endpoint{ID: id, Address: address}, nil
}

// List returns every endpoint in insertion order.
func (s *Store) List(ctx context.Context) ([]Endpoint, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT endpoint_id, endpoint FROM endpoints ORDER BY endpoint_id")
	if err != nil {
		s.log.Error("Failed to list endpoints", "error", err)
		return nil, fmt.Errorf("failed to list endpoints: %w", err)
	}
	endpoints, err := scanEndpoints(rows)
	if err != nil {
		s.log.Error("Failed to scan endpoints", "error", err)
		return nil, fmt.Errorf("failed to scan endpoints: %w", err)
	}
	return endpoints, nil
}

// Addresses returns the address of every endpoint in insertion order.
func (s *Store) Addresses(ctx context.Context) ([]string, error) {
	endpoints, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return lo.Map(endpoints, func(e Endpoint, _ int) string { return e.Address }), nil
}

// Remove deletes the endpoint with the given address.
// Removing an unknown address is not an error.
func (s *Store) Remove(ctx context.Context, address string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM endpoints WHERE endpoint = ?", address); err != nil {
		s.log.Error("Failed to delete endpoint", "endpoint", address, "error", err)
		return fmt.Errorf("failed to delete endpoint: %w", err)
	}
	return nil
}

// RemoveAll deletes every endpoint.
func (s *Store) RemoveAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM endpoints"); err != nil {
		s.log.Error("Failed to delete endpoints", "error", err)
		return fmt.Errorf("failed to delete endpoints: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
