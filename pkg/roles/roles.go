// Package roles resolves which roles a user holds within a tenant.
package roles

import (
	"context"
	"fmt"
	"os"
	"slices"
	"sync"

	"github.com/goccy/go-json"
)

// Resolver answers role membership questions for the decision and listing paths.
type Resolver interface {
	Roles(ctx context.Context, tenantID, userID string) ([]string, error)
}

// Directory maps tenant -> user -> roles.
type Directory map[string]map[string][]string

// Static is an in-memory Resolver, typically loaded from a JSON file of the form
// {"acme": {"manager-1": ["manager"], "hr-1": ["hr", "manager"]}}.
type Static struct {
	mu        sync.RWMutex
	directory Directory
}

// NewStatic copies directory into a new resolver.
func NewStatic(directory Directory) *Static {
	s := &Static{directory: make(Directory, len(directory))}

	for tenant, users := range directory {
		for user, roles := range users {
			s.Grant(tenant, user, roles...)
		}
	}

	return s
}

// LoadFile reads a JSON role directory. An empty path yields an empty resolver.
func LoadFile(path string) (*Static, error) {
	if path == "" {
		return NewStatic(nil), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read roles file %s: %w", path, err)
	}

	var directory Directory
	if err := json.Unmarshal(data, &directory); err != nil {
		return nil, fmt.Errorf("failed to parse roles file %s: %w", path, err)
	}

	return NewStatic(directory), nil
}

// Roles returns a copy of the user's roles in the tenant; unknown users have none.
func (s *Static) Roles(_ context.Context, tenantID, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.directory[tenantID][userID]), nil
}

// Grant adds roles to a user, ignoring ones already held.
func (s *Static) Grant(tenantID, userID string, roles ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, ok := s.directory[tenantID]
	if !ok {
		users = make(map[string][]string)
		s.directory[tenantID] = users
	}

	for _, role := range roles {
		if !slices.Contains(users[userID], role) {
			users[userID] = append(users[userID], role)
		}
	}
}
