// Copyright 2026 The Gatehouse Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package identity

import (
	"context"
	"errors"
	"time"
)

// Domain errors
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrInvalidEmail      = errors.New("invalid email address")
)

// User represents a user known to the decision core. Authentication is the
// concern of an upstream identity provider; the core only tracks who the user
// is and which profile they are currently acting as.
//
// ActiveProfile is empty until the user explicitly switches into a profile.
// Assigning a role never sets it.
type User struct {
	ID            string
	Email         string
	DisplayName   string
	ActiveProfile string // empty means unset
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Repository defines the interface for user persistence
type Repository interface {
	// Create creates a new user
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id string) (*User, error)

	// GetByEmail retrieves a user by email
	GetByEmail(ctx context.Context, email string) (*User, error)

	// List retrieves users with pagination
	List(ctx context.Context, limit, offset int) ([]*User, error)

	// SetActiveProfile updates the user's active profile. An empty profile
	// clears it to unset.
	SetActiveProfile(ctx context.Context, userID, profile string) error
}
