// Package sink implements ports.ResultSink (§6.6) against PostgreSQL: the
// canonical outcome and raw state are upserted as JSONB, progress updates
// both write a row and publish a pg_notify so a monitor stream (cmd/investigator's
// websocket handler) can push live progress without polling.
// Grounded on the teacher's sqlx/sqlmock repository pattern
// (test/unit/datastorage/workflow_repository_test.go's sqlx.NewDb(mockDB, "sqlmock")
// wiring and JSONB-column upserts) and its direct-PostgreSQL audit client
// (test/unit/audit/internal_client_test.go's ExpectPrepare/ExpectExec style).
package sink

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	apperrors "github.com/olorin-ai/hybrid-investigator/internal/errors"
	"github.com/olorin-ai/hybrid-investigator/investigation/outcome"
	"github.com/olorin-ai/hybrid-investigator/investigation/ports"
	"github.com/olorin-ai/hybrid-investigator/investigation/state"
)

// progressChannel is the pg_notify channel cmd/investigator's websocket
// handler subscribes to via a pq.Listener.
const progressChannel = "hybrid_investigator_progress"

// Sink is the PostgreSQL-backed ports.ResultSink implementation.
type Sink struct {
	db     *sqlx.DB
	logger logrus.FieldLogger
}

// New builds a Sink over an already-connected *sqlx.DB (driverName
// "postgres", per lib/pq).
func New(db *sqlx.DB, logger logrus.FieldLogger) *Sink {
	return &Sink{db: db, logger: logger}
}

// Persist upserts the canonical outcome and a JSONB snapshot of raw state
// (§6.6). out must be an outcome.CanonicalFinalOutcome value or pointer;
// any other type returns an internal error.
func (s *Sink) Persist(ctx context.Context, investigationID string, out interface{}, rawState *state.InvestigationState) error {
	canonical, ok := out.(outcome.CanonicalFinalOutcome)
	if !ok {
		if ptr, okPtr := out.(*outcome.CanonicalFinalOutcome); okPtr {
			canonical = *ptr
		} else {
			return apperrors.New(apperrors.ErrorTypeInternal, "sink.Persist: outcome is not a CanonicalFinalOutcome")
		}
	}

	outcomeJSON, err := json.Marshal(canonical)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeInternal, "failed to marshal canonical outcome")
	}
	stateJSON, err := json.Marshal(rawState)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeInternal, "failed to marshal raw state")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO investigation_outcomes (investigation_id, entity_id, status, success, outcome, raw_state, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (investigation_id) DO UPDATE SET
			status = EXCLUDED.status,
			success = EXCLUDED.success,
			outcome = EXCLUDED.outcome,
			raw_state = EXCLUDED.raw_state,
			completed_at = EXCLUDED.completed_at
	`, investigationID, canonical.EntityID, string(canonical.Status), canonical.Success, outcomeJSON, stateJSON, canonical.CompletionTimestamp)
	if err != nil {
		return apperrors.NewDatabaseError("persist_outcome", err)
	}

	s.logger.WithField("investigation_id", investigationID).Info("persisted canonical outcome")
	return nil
}

// UpdateProgress writes the current progress projection and publishes it
// over pg_notify so live subscribers need not poll.
func (s *Sink) UpdateProgress(ctx context.Context, investigationID string, update ports.ProgressUpdate) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO investigation_progress (investigation_id, risk_score, overall_risk_score, status, current_phase, progress_percentage)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (investigation_id) DO UPDATE SET
			risk_score = EXCLUDED.risk_score,
			overall_risk_score = EXCLUDED.overall_risk_score,
			status = EXCLUDED.status,
			current_phase = EXCLUDED.current_phase,
			progress_percentage = EXCLUDED.progress_percentage
	`, investigationID, update.RiskScore, update.OverallRiskScore, update.Status, string(update.CurrentPhase), update.ProgressPercentage)
	if err != nil {
		return apperrors.NewDatabaseError("update_progress", err)
	}

	payload, err := json.Marshal(struct {
		InvestigationID string  `json:"investigation_id"`
		Status          string  `json:"status"`
		Phase           string  `json:"current_phase"`
		Progress        float64 `json:"progress_percentage"`
	}{investigationID, update.Status, string(update.CurrentPhase), update.ProgressPercentage})
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeInternal, "failed to marshal progress notification")
	}

	if _, err := s.db.ExecContext(ctx, "SELECT pg_notify($1, $2)", progressChannel, string(payload)); err != nil {
		s.logger.WithError(err).WithField("investigation_id", investigationID).Warn("progress notify failed")
	}
	return nil
}

// StoreTransactionScores persists the per-transaction risk scores already
// filtered to [0,1] by the executor.
func (s *Sink) StoreTransactionScores(ctx context.Context, investigationID string, scores map[string]float64) error {
	if len(scores) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperrors.NewDatabaseError("store_transaction_scores_begin", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO investigation_transaction_scores (investigation_id, transaction_id, score)
		VALUES ($1, $2, $3)
		ON CONFLICT (investigation_id, transaction_id) DO UPDATE SET score = EXCLUDED.score
	`)
	if err != nil {
		return apperrors.NewDatabaseError("store_transaction_scores_prepare", err)
	}
	defer stmt.Close()

	for txnID, score := range scores {
		if _, err := stmt.ExecContext(ctx, investigationID, txnID, score); err != nil {
			return apperrors.NewDatabaseError("store_transaction_scores_exec", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewDatabaseError("store_transaction_scores_commit", err)
	}
	return nil
}

// NewListener builds a pq.Listener subscribed to the progress channel, for
// cmd/investigator's websocket handler to relay onward.
func NewListener(dataSourceName string, eventCallback pq.EventCallbackType) (*pq.Listener, error) {
	listener := pq.NewListener(dataSourceName, 10*time.Second, 90*time.Second, eventCallback)
	if err := listener.Listen(progressChannel); err != nil {
		return nil, apperrors.NewDatabaseError("listen_progress_channel", err)
	}
	return listener, nil
}
