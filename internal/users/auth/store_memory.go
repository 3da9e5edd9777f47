// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/taibuivan/giftlist/internal/platform/apperr"
	"github.com/taibuivan/giftlist/internal/platform/dberr"
)

// # Memory Store

// memoryState is the full data set of a [MemoryStore]. Values are stored by
// value so a shallow map copy is a complete snapshot.
type memoryState struct {
	users         map[string]User
	sessions      map[string]Session
	resets        map[string]PasswordResetSession
	verifications map[string]EmailVerificationRequest // keyed by user id
}

func newMemoryState() *memoryState {
	return &memoryState{
		users:         map[string]User{},
		sessions:      map[string]Session{},
		resets:        map[string]PasswordResetSession{},
		verifications: map[string]EmailVerificationRequest{},
	}
}

func (state *memoryState) clone() *memoryState {
	return &memoryState{
		users:         maps.Clone(state.users),
		sessions:      maps.Clone(state.sessions),
		resets:        maps.Clone(state.resets),
		verifications: maps.Clone(state.verifications),
	}
}

// faults maps operation names to the error they must return.
type faults struct {
	mu  sync.Mutex
	set map[string]error
}

func (f *faults) get(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.set[op]
}

/*
MemoryStore is an in-process [Store] used by tests and local development.

Transactions snapshot the state, run against the copy and publish it only
when fn succeeds, so a failing step leaves no partial writes behind.
*/
type MemoryStore struct {
	mu     sync.Mutex
	state  *memoryState
	faults *faults
	inTx   bool
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state:  newMemoryState(),
		faults: &faults{set: map[string]error{}},
	}
}

// FailOn makes every later call of op (e.g. "sessions.delete_by_user") return
// err. A nil err clears the fault.
func (store *MemoryStore) FailOn(op string, err error) {
	store.faults.mu.Lock()
	defer store.faults.mu.Unlock()

	if err == nil {
		delete(store.faults.set, op)
		return
	}
	store.faults.set[op] = err
}

func (store *MemoryStore) Users() UserRepository { return memoryUsers{store} }

func (store *MemoryStore) Sessions() SessionRepository { return memorySessions{store} }

func (store *MemoryStore) PasswordResets() PasswordResetRepository { return memoryResets{store} }

func (store *MemoryStore) EmailVerifications() EmailVerificationRepository {
	return memoryVerifications{store}
}

// WithinTx implements [Store].
func (store *MemoryStore) WithinTx(ctx context.Context, fn func(context.Context, Store) error) error {
	if store.inTx {
		return fn(ctx, store)
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	child := &MemoryStore{state: store.state.clone(), faults: store.faults, inTx: true}
	if err := fn(ctx, child); err != nil {
		return err
	}

	store.state = child.state
	return nil
}

// do runs fn under the store lock after consulting the fault table.
func (store *MemoryStore) do(op string, fn func(state *memoryState) error) error {
	if err := store.faults.get(op); err != nil {
		return err
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	return fn(store.state)
}

// # Users

type memoryUsers struct{ store *MemoryStore }

func (repository memoryUsers) Create(_ context.Context, user *User) error {
	return repository.store.do("users.create", func(state *memoryState) error {
		for _, existing := range state.users {
			if existing.Email == user.Email {
				return apperr.Conflict("Resource already exists")
			}
		}

		now := time.Now().UTC()
		if user.CreatedAt.IsZero() {
			user.CreatedAt = now
		}
		user.UpdatedAt = now

		state.users[user.ID] = *user
		return nil
	})
}

func (repository memoryUsers) FindByID(_ context.Context, id string) (*User, error) {
	var found *User
	err := repository.store.do("users.find_by_id", func(state *memoryState) error {
		user, ok := state.users[id]
		if !ok {
			return dberr.ErrNotFound
		}
		found = &user
		return nil
	})
	return found, err
}

func (repository memoryUsers) FindByEmail(_ context.Context, email string) (*User, error) {
	var found *User
	err := repository.store.do("users.find_by_email", func(state *memoryState) error {
		for _, user := range state.users {
			if user.Email == email {
				found = &user
				return nil
			}
		}
		return dberr.ErrNotFound
	})
	return found, err
}

func (repository memoryUsers) EmailExists(_ context.Context, email string) (bool, error) {
	var exists bool
	err := repository.store.do("users.email_exists", func(state *memoryState) error {
		for _, user := range state.users {
			if user.Email == email {
				exists = true
				break
			}
		}
		return nil
	})
	return exists, err
}

// mutate applies fn to an existing user; missing users are a no-op, as an
// UPDATE matching zero rows would be.
func (repository memoryUsers) mutate(op, userID string, fn func(user *User)) error {
	return repository.store.do(op, func(state *memoryState) error {
		user, ok := state.users[userID]
		if !ok {
			return nil
		}
		fn(&user)
		user.UpdatedAt = time.Now().UTC()
		state.users[userID] = user
		return nil
	})
}

func (repository memoryUsers) UpdatePassword(_ context.Context, userID, passwordHash string) error {
	return repository.mutate("users.update_password", userID, func(user *User) {
		user.PasswordHash = passwordHash
	})
}

func (repository memoryUsers) UpdateEmailAndSetVerified(_ context.Context, userID, email, username string) error {
	return repository.mutate("users.update_email", userID, func(user *User) {
		user.Email = email
		user.EmailVerified = true
		if username != "" {
			user.Username = username
		}
	})
}

func (repository memoryUsers) UpdateRecoveryCode(_ context.Context, userID string, sealed []byte) error {
	return repository.mutate("users.update_recovery_code", userID, func(user *User) {
		user.RecoveryCode = sealed
	})
}

func (repository memoryUsers) ClearTOTP(_ context.Context, userID string) error {
	return repository.mutate("users.clear_totp", userID, func(user *User) {
		user.RegisteredTOTP = false
	})
}

// # Sessions

type memorySessions struct{ store *MemoryStore }

func (repository memorySessions) Create(_ context.Context, session *Session) error {
	return repository.store.do("sessions.create", func(state *memoryState) error {
		state.sessions[session.ID] = *session
		return nil
	})
}

func (repository memorySessions) FindWithUser(_ context.Context, id string) (*Session, *UserView, error) {
	var (
		session *Session
		view    *UserView
	)
	err := repository.store.do("sessions.find", func(state *memoryState) error {
		record, ok := state.sessions[id]
		if !ok {
			return dberr.ErrNotFound
		}
		user, ok := state.users[record.UserID]
		if !ok {
			return dberr.ErrNotFound
		}
		projected := user.View()
		session, view = &record, &projected
		return nil
	})
	return session, view, err
}

func (repository memorySessions) UpdateExpiry(_ context.Context, id string, expiresAt time.Time) error {
	return repository.store.do("sessions.update_expiry", func(state *memoryState) error {
		if record, ok := state.sessions[id]; ok {
			record.ExpiresAt = expiresAt
			state.sessions[id] = record
		}
		return nil
	})
}

func (repository memorySessions) SetTwoFactorVerified(_ context.Context, id string) error {
	return repository.store.do("sessions.set_2fa", func(state *memoryState) error {
		if record, ok := state.sessions[id]; ok {
			record.TwoFactorVerified = true
			state.sessions[id] = record
		}
		return nil
	})
}

func (repository memorySessions) Delete(_ context.Context, id string) error {
	return repository.store.do("sessions.delete", func(state *memoryState) error {
		delete(state.sessions, id)
		return nil
	})
}

func (repository memorySessions) DeleteByUser(_ context.Context, userID string) error {
	return repository.store.do("sessions.delete_by_user", func(state *memoryState) error {
		maps.DeleteFunc(state.sessions, func(_ string, record Session) bool {
			return record.UserID == userID
		})
		return nil
	})
}

// # Password Resets

type memoryResets struct{ store *MemoryStore }

func (repository memoryResets) Replace(_ context.Context, reset *PasswordResetSession) error {
	return repository.store.do("resets.replace", func(state *memoryState) error {
		maps.DeleteFunc(state.resets, func(_ string, record PasswordResetSession) bool {
			return record.UserID == reset.UserID
		})
		state.resets[reset.ID] = *reset
		return nil
	})
}

func (repository memoryResets) FindWithUser(_ context.Context, id string) (*PasswordResetSession, *UserView, error) {
	var (
		reset *PasswordResetSession
		view  *UserView
	)
	err := repository.store.do("resets.find", func(state *memoryState) error {
		record, ok := state.resets[id]
		if !ok {
			return dberr.ErrNotFound
		}
		user, ok := state.users[record.UserID]
		if !ok {
			return dberr.ErrNotFound
		}
		projected := user.View()
		reset, view = &record, &projected
		return nil
	})
	return reset, view, err
}

func (repository memoryResets) SetEmailVerified(_ context.Context, id string) error {
	return repository.store.do("resets.set_verified", func(state *memoryState) error {
		if record, ok := state.resets[id]; ok {
			record.EmailVerified = true
			state.resets[id] = record
		}
		return nil
	})
}

func (repository memoryResets) Delete(_ context.Context, id string) error {
	return repository.store.do("resets.delete", func(state *memoryState) error {
		delete(state.resets, id)
		return nil
	})
}

func (repository memoryResets) DeleteByUser(_ context.Context, userID string) error {
	return repository.store.do("resets.delete_by_user", func(state *memoryState) error {
		maps.DeleteFunc(state.resets, func(_ string, record PasswordResetSession) bool {
			return record.UserID == userID
		})
		return nil
	})
}

// # Email Verifications

type memoryVerifications struct{ store *MemoryStore }

func (repository memoryVerifications) Replace(_ context.Context, request *EmailVerificationRequest) error {
	return repository.store.do("verifications.replace", func(state *memoryState) error {
		state.verifications[request.UserID] = *request
		return nil
	})
}

func (repository memoryVerifications) FindForUser(_ context.Context, userID, id string) (*EmailVerificationRequest, error) {
	var found *EmailVerificationRequest
	err := repository.store.do("verifications.find", func(state *memoryState) error {
		request, ok := state.verifications[userID]
		if !ok || request.ID != id {
			return dberr.ErrNotFound
		}
		found = &request
		return nil
	})
	return found, err
}

func (repository memoryVerifications) DeleteByUser(_ context.Context, userID string) error {
	return repository.store.do("verifications.delete", func(state *memoryState) error {
		delete(state.verifications, userID)
		return nil
	})
}
