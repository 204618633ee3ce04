package identity

import (
	"context"
	"sync"
)

type memoryRepository struct {
	mu    sync.RWMutex
	users map[string]User // keyed by id
}

// NewMemoryRepository builds an in-memory user store for testing.
func NewMemoryRepository() Repository {
	return &memoryRepository{users: make(map[string]User)}
}

func (r *memoryRepository) Create(_ context.Context, user User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = user
	return nil
}

func (r *memoryRepository) FindByID(_ context.Context, id string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

func (r *memoryRepository) FindByPhone(_ context.Context, phone string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.users {
		if user.Phone == phone {
			return user, nil
		}
	}
	return User{}, ErrNotFound
}

func (r *memoryRepository) UpdateToken(_ context.Context, id, token string) error {
	return r.mutate(id, func(u *User) { u.Token = token })
}

func (r *memoryRepository) MarkPhoneVerified(_ context.Context, id string) error {
	return r.mutate(id, func(u *User) { u.PhoneVerified = true })
}

func (r *memoryRepository) UpdatePassword(_ context.Context, id string, hash []byte) error {
	return r.mutate(id, func(u *User) { u.PasswordHash = hash })
}

func (r *memoryRepository) StageNewPhone(_ context.Context, id, phone string) error {
	return r.mutate(id, func(u *User) { u.NewPhone = phone })
}

func (r *memoryRepository) CommitNewPhone(_ context.Context, id string) error {
	return r.mutate(id, func(u *User) {
		if u.NewPhone == "" {
			return
		}
		u.Phone = u.NewPhone
		u.NewPhone = ""
		u.PhoneVerified = true
	})
}

func (r *memoryRepository) UpdateRole(_ context.Context, id, roleID string) error {
	return r.mutate(id, func(u *User) { u.RoleID = roleID })
}

func (r *memoryRepository) mutate(id string, fn func(*User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	fn(&user)
	r.users[id] = user
	return nil
}
