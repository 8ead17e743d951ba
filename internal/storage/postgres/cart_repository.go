package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type cartRepository struct {
	db *sql.DB
}

// NewCartRepository создаёт PostgreSQL-реализацию CartRepository.
func NewCartRepository(store *Store) domain.CartRepository {
	return &cartRepository{db: store.DB()}
}

func (r *cartRepository) Get(ctx context.Context, userID string) (domain.Cart, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	cart := domain.Cart{UserID: userID}
	err := r.db.QueryRowContext(ctx, `
		SELECT version, created_at, updated_at
		FROM carts
		WHERE user_id = $1
	`, userID).Scan(&cart.Version, &cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Cart{}, domain.ErrCartNotFound
		}
		return domain.Cart{}, fmt.Errorf("select cart: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id, quantity
		FROM cart_items
		WHERE user_id = $1
		ORDER BY product_id
	`, userID)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("load cart items: %w", err)
	}
	defer rows.Close()

	cart.Items = make([]domain.CartItem, 0)
	for rows.Next() {
		var item domain.CartItem
		if err := rows.Scan(&item.ProductID, &item.Quantity); err != nil {
			return domain.Cart{}, fmt.Errorf("scan cart item: %w", err)
		}
		cart.Items = append(cart.Items, item)
	}
	if err := rows.Err(); err != nil {
		return domain.Cart{}, fmt.Errorf("iterate cart items: %w", err)
	}

	return cart, nil
}

func (r *cartRepository) Save(ctx context.Context, cart domain.Cart, events []domain.OutboxMessage) error {
	return withTx(ctx, r.db, func(ctx context.Context, tx *sql.Tx) error {
		now := time.Now().UTC()

		if cart.Version == 0 {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO carts (user_id, version, created_at, updated_at)
				VALUES ($1, 1, $2, $2)
			`, cart.UserID, now); err != nil {
				if isUniqueViolation(err) {
					return domain.ErrCartVersionConflict
				}
				return fmt.Errorf("insert cart: %w", err)
			}
		} else {
			res, err := tx.ExecContext(ctx, `
				UPDATE carts
				SET version = version + 1,
				    updated_at = $1
				WHERE user_id = $2
				  AND version = $3
			`, now, cart.UserID, cart.Version)
			if err != nil {
				return fmt.Errorf("update cart: %w", err)
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			if affected == 0 {
				return domain.ErrCartVersionConflict
			}
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = $1`, cart.UserID); err != nil {
			return fmt.Errorf("delete cart items: %w", err)
		}
		for _, item := range cart.Items {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO cart_items (user_id, product_id, quantity)
				VALUES ($1, $2, $3)
			`, cart.UserID, item.ProductID, item.Quantity); err != nil {
				return fmt.Errorf("insert cart item: %w", err)
			}
		}

		return insertOutboxTx(ctx, tx, events)
	})
}

var _ domain.CartRepository = (*cartRepository)(nil)
