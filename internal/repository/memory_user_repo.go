package repository

import (
	"context"
	"sync"
	"time"

	"campus-gateway/internal/model"
)

// MemoryUserRepository keeps user records in process memory. It backs
// USER_STORE=memory for local runs and is not shared between replicas.
type MemoryUserRepository struct {
	mu      sync.RWMutex
	byEmail map[string]model.User
	emailOf map[string]string
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		byEmail: map[string]model.User{},
		emailOf: map[string]string{},
	}
}

func (r *MemoryUserRepository) FindByEmail(_ context.Context, email string) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byEmail[normalizeEmail(email)]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	return user, nil
}

func (r *MemoryUserRepository) Create(_ context.Context, u model.User) error {
	key := normalizeEmail(u.Email)
	u.Email = key

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[key]; exists {
		return model.ErrUserAlreadyExists
	}
	r.byEmail[key] = u
	r.emailOf[u.ID] = key
	return nil
}

func (r *MemoryUserRepository) UpdateLastLogin(_ context.Context, userID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key, ok := r.emailOf[userID]
	if !ok {
		return model.ErrUserNotFound
	}
	user := r.byEmail[key]
	user.LastLogin = &at
	user.UpdatedAt = at
	r.byEmail[key] = user
	return nil
}

// SetActive flips the active flag of an existing account.
func (r *MemoryUserRepository) SetActive(userID string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key, ok := r.emailOf[userID]
	if !ok {
		return model.ErrUserNotFound
	}
	user := r.byEmail[key]
	user.IsActive = active
	r.byEmail[key] = user
	return nil
}
