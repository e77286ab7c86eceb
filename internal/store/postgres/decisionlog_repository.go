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

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/gatehouse/gatehouse/internal/decisionlog"
)

// DecisionLogRepository implements decisionlog.Sink
type DecisionLogRepository struct {
	db *DB
}

// NewDecisionLogRepository creates a new decision log repository
func NewDecisionLogRepository(db *DB) *DecisionLogRepository {
	return &DecisionLogRepository{db: db}
}

// Write appends a decision record
func (r *DecisionLogRepository) Write(ctx context.Context, rec *decisionlog.Record) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO decision_log (
			id, user_id, profile, operation, object, organization_id,
			allowed, reason, checked_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		rec.ID, rec.UserID, rec.Profile, rec.Operation, rec.Object, rec.OrganizationID,
		rec.Allowed, rec.Reason, rec.CheckedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert decision record: %w", err)
	}
	return nil
}

// Prune removes records checked before the cutoff
func (r *DecisionLogRepository) Prune(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.pool.Exec(ctx, `
		DELETE FROM decision_log WHERE checked_at < $1
	`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune decision log: %w", err)
	}
	return result.RowsAffected(), nil
}
