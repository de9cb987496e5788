package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/safe-solver/internal/models"
)

// AccountRepository reads accounts, addresses and delegations
type AccountRepository struct {
	q Querier
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(q Querier) *AccountRepository {
	return &AccountRepository{q: q}
}

// GetAddress returns the address row or nil when the address is unknown
func (r *AccountRepository) GetAddress(ctx context.Context, address string) (*models.Address, error) {
	var a models.Address
	err := r.q.QueryRow(ctx, `
		SELECT address, address_type, account_id
		FROM addresses
		WHERE address = $1
	`, address).Scan(&a.Address, &a.AddressType, &a.AccountID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get address: %w", err)
	}
	return &a, nil
}

// GetAccount returns the account or nil when no account has that id
func (r *AccountRepository) GetAccount(ctx context.Context, id int64) (*models.Account, error) {
	var a models.Account
	err := r.q.QueryRow(ctx, `
		SELECT id, primary_address, created_at
		FROM accounts
		WHERE id = $1
	`, id).Scan(&a.ID, &a.PrimaryAddress, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &a, nil
}

// ListAddresses returns every address linked to the account
func (r *AccountRepository) ListAddresses(ctx context.Context, accountID int64) ([]*models.Address, error) {
	rows, err := r.q.Query(ctx, `
		SELECT address, address_type, account_id
		FROM addresses
		WHERE account_id = $1
		ORDER BY address
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list addresses: %w", err)
	}
	defer rows.Close()

	addresses := []*models.Address{}
	for rows.Next() {
		var a models.Address
		if err := rows.Scan(&a.Address, &a.AddressType, &a.AccountID); err != nil {
			return nil, fmt.Errorf("failed to scan address: %w", err)
		}
		addresses = append(addresses, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating addresses: %w", err)
	}
	return addresses, nil
}

// ResolveIdentity finds the account that owns address, either as its primary
// address or as a linked one, and returns its public address. The public
// address is the delegate if one is set. Returns nil when nothing matches.
func (r *AccountRepository) ResolveIdentity(ctx context.Context, address string) (*models.ResolvedIdentity, error) {
	var id models.ResolvedIdentity
	err := r.q.QueryRow(ctx, `
		SELECT a.id,
		       COALESCE(d.delegate_to_address, a.primary_address, $1) AS resolved_address,
		       u.name
		FROM accounts a
		LEFT JOIN delegations d ON d.account_id = a.id
		LEFT JOIN user_game_state u ON u.account_id = a.id
		WHERE a.primary_address = $1
		   OR EXISTS (SELECT 1 FROM addresses ad WHERE ad.account_id = a.id AND ad.address = $1)
		ORDER BY a.id
		LIMIT 1
	`, address).Scan(&id.AccountID, &id.ResolvedAddress, &id.DisplayName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve identity: %w", err)
	}
	return &id, nil
}

// GetDelegation returns the account's delegation or nil
func (r *AccountRepository) GetDelegation(ctx context.Context, accountID int64) (*models.Delegation, error) {
	var d models.Delegation
	err := r.q.QueryRow(ctx, `
		SELECT account_id, delegate_to_address, delegated_at
		FROM delegations
		WHERE account_id = $1
	`, accountID).Scan(&d.AccountID, &d.DelegateToAddress, &d.DelegatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get delegation: %w", err)
	}
	return &d, nil
}
