package repository

import (
	"context"
	"database/sql"

	"github.com/kalvora/accounts-auth/app/entity"
)

type OneTimeTokenRepository struct {
	db DBTX
}

func NewOneTimeTokenRepository(db DBTX) *OneTimeTokenRepository {
	return &OneTimeTokenRepository{db: db}
}

func (r *OneTimeTokenRepository) WithTx(tx *sql.Tx) *OneTimeTokenRepository {
	return &OneTimeTokenRepository{db: tx}
}

func (r *OneTimeTokenRepository) Create(ctx context.Context, token *entity.OneTimeToken) error {
	query := `
		INSERT INTO one_time_tokens (user_id, kind, token, expires_at, used, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		token.UserID,
		token.Kind,
		token.Token,
		token.ExpiresAt,
		token.Used,
		token.CreatedAt,
	)
	if err != nil {
		return mapError(err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	token.ID = uint64(id)
	return nil
}

func (r *OneTimeTokenRepository) FindByToken(ctx context.Context, kind entity.TokenKind, token string) (*entity.OneTimeToken, error) {
	query := `
		SELECT id, user_id, kind, token, expires_at, used, created_at
		FROM one_time_tokens WHERE kind = ? AND token = ?
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, kind, token))
}

func (r *OneTimeTokenRepository) FindByTokenForUpdate(ctx context.Context, kind entity.TokenKind, token string) (*entity.OneTimeToken, error) {
	query := `
		SELECT id, user_id, kind, token, expires_at, used, created_at
		FROM one_time_tokens WHERE kind = ? AND token = ? FOR UPDATE
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, kind, token))
}

// DeleteByUserID enforces the at-most-one-live-token rule: issuing a new
// token of a kind destroys any previous one for that user.
func (r *OneTimeTokenRepository) DeleteByUserID(ctx context.Context, kind entity.TokenKind, userID uint64) error {
	query := `DELETE FROM one_time_tokens WHERE kind = ? AND user_id = ?`
	_, err := r.db.ExecContext(ctx, query, kind, userID)
	return err
}

// MarkUsed consumes the token only if it has not been consumed already.
func (r *OneTimeTokenRepository) MarkUsed(ctx context.Context, id uint64) (int64, error) {
	query := `UPDATE one_time_tokens SET used = 1 WHERE id = ? AND used = 0`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *OneTimeTokenRepository) scanOne(row *sql.Row) (*entity.OneTimeToken, error) {
	t := &entity.OneTimeToken{}
	err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.Kind,
		&t.Token,
		&t.ExpiresAt,
		&t.Used,
		&t.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}
