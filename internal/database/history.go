// internal/database/history.go
package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/unolabs/uno-service/internal/cache"
)

// InsertGameActions persists a batch of action records in one transaction.
// Records are append-only; (game_id, action_index) conflicts are ignored so a
// redelivered queue entry cannot duplicate history.
func InsertGameActions(ctx context.Context, records []cache.GameActionRecord) error {
	if len(records) == 0 {
		return nil
	}
	return beginTxFunc(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range records {
			if err := insertGameActionTx(ctx, tx, rec); err != nil {
				return fmt.Errorf("insertGameActionTx: %w", err)
			}
		}
		return nil
	})
}

// beginTxFunc runs f inside a transaction on the global pool, rolling back if
// f fails and committing otherwise.
func beginTxFunc(ctx context.Context, txOptions pgx.TxOptions, f func(tx pgx.Tx) error) error {
	tx, err := DB.BeginTx(ctx, txOptions)
	if err != nil {
		return err
	}
	if err := f(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("tx rollback error: %v; original error: %w", rbErr, err)
		}
		return err
	}
	return tx.Commit(ctx)
}

func insertGameActionTx(ctx context.Context, tx pgx.Tx, rec cache.GameActionRecord) error {
	payload, err := json.Marshal(rec.ActionPayload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	q := `
		INSERT INTO game_actions (game_id, room_code, action_index, actor_player_id, action_type, action_payload, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, to_timestamp($7 / 1000.0))
		ON CONFLICT (game_id, action_index) DO NOTHING
	`
	_, err = tx.Exec(ctx, q,
		rec.GameID, rec.RoomCode, rec.ActionIndex, rec.ActorPlayerID, rec.ActionType, payload, rec.Timestamp)
	return err
}
