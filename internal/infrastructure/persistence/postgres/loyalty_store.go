package postgres

import (
	"context"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/bikemart-ng/loyalty-hub/internal/domain/loyalty"
	"github.com/bikemart-ng/loyalty-hub/internal/domain/shared"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ══════════════════════════════════════════════════════════════════════════════
// LOYALTY STORE
// Implements loyalty.Store and loyalty.CatalogWriter over pgx.
// ══════════════════════════════════════════════════════════════════════════════

// LoyaltyStore is the PostgreSQL implementation of the loyalty store.
type LoyaltyStore struct {
	conn *Connection
}

// NewLoyaltyStore creates a new PostgreSQL loyalty store.
func NewLoyaltyStore(conn *Connection) *LoyaltyStore {
	return &LoyaltyStore{conn: conn}
}

// Compile-time interface checks.
var (
	_ loyalty.Store         = (*LoyaltyStore)(nil)
	_ loyalty.CatalogWriter = (*LoyaltyStore)(nil)
)

// ──────────────────────────────────────────────────────────────────────────────
// Purchases
// ──────────────────────────────────────────────────────────────────────────────

// RecordPurchase stores a purchase row.
func (s *LoyaltyStore) RecordPurchase(ctx context.Context, purchase *loyalty.Purchase) error {
	var metadata []byte
	if len(purchase.Metadata) > 0 {
		var err error
		metadata, err = json.Marshal(purchase.Metadata)
		if err != nil {
			return fmt.Errorf("marshal purchase metadata: %w", err)
		}
	}

	query := `
		INSERT INTO purchases (id, user_id, amount_minor, currency, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.conn.Exec(ctx, query,
		purchase.ID,
		purchase.UserID.Int64(),
		purchase.Amount.Minor(),
		purchase.Currency.String(),
		metadata,
		purchase.CreatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrPurchaseExists
		}
		return fmt.Errorf("insert purchase: %w", err)
	}

	return nil
}

// GetUserSnapshot aggregates the user's counters in a single round trip.
func (s *LoyaltyStore) GetUserSnapshot(ctx context.Context, userID shared.UserID) (loyalty.UserSnapshot, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM purchases WHERE user_id = $1),
			(SELECT COALESCE(SUM(amount_minor), 0) FROM purchases WHERE user_id = $1),
			(SELECT COALESCE(SUM(a.points), 0)
				FROM user_achievements ua
				JOIN achievements a ON a.id = ua.achievement_id
				WHERE ua.user_id = $1)
	`

	var (
		purchaseCount int
		totalSpent    int64
		totalPoints   int
	)
	err := s.conn.QueryRow(ctx, query, userID.Int64()).Scan(&purchaseCount, &totalSpent, &totalPoints)
	if err != nil {
		return loyalty.UserSnapshot{}, fmt.Errorf("query user snapshot: %w", err)
	}

	return loyalty.UserSnapshot{
		UserID:        userID,
		PurchaseCount: purchaseCount,
		TotalSpent:    shared.Money(totalSpent),
		TotalPoints:   shared.Points(totalPoints),
	}, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Catalog
// ──────────────────────────────────────────────────────────────────────────────

// ListActiveAchievements returns active achievements in catalog order.
func (s *LoyaltyStore) ListActiveAchievements(ctx context.Context) ([]*loyalty.Achievement, error) {
	query := `
		SELECT id, name, description, rule_type, required_count,
		       required_spend_minor, points, active, sort_order, created_at
		FROM achievements
		WHERE active
		ORDER BY sort_order, id
	`

	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query achievements: %w", err)
	}
	defer rows.Close()

	var result []*loyalty.Achievement
	for rows.Next() {
		a, err := scanAchievement(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}

	return result, rows.Err()
}

// ListActiveBadges returns active badges in catalog order.
func (s *LoyaltyStore) ListActiveBadges(ctx context.Context) ([]*loyalty.Badge, error) {
	query := `
		SELECT id, name, description, required_points, cashback_minor,
		       active, sort_order, created_at
		FROM badges
		WHERE active
		ORDER BY sort_order, id
	`

	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query badges: %w", err)
	}
	defer rows.Close()

	var result []*loyalty.Badge
	for rows.Next() {
		b, err := scanBadge(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, b)
	}

	return result, rows.Err()
}

// ──────────────────────────────────────────────────────────────────────────────
// Unlocks
// ──────────────────────────────────────────────────────────────────────────────

// ListUnlockedAchievements returns the user's achievement unlocks.
func (s *LoyaltyStore) ListUnlockedAchievements(ctx context.Context, userID shared.UserID) ([]*loyalty.AchievementUnlock, error) {
	query := `
		SELECT user_id, achievement_id, unlocked_at
		FROM user_achievements
		WHERE user_id = $1
		ORDER BY unlocked_at, achievement_id
	`

	rows, err := s.conn.Query(ctx, query, userID.Int64())
	if err != nil {
		return nil, fmt.Errorf("query achievement unlocks: %w", err)
	}
	defer rows.Close()

	var result []*loyalty.AchievementUnlock
	for rows.Next() {
		var (
			uid        int64
			aid        int64
			unlockedAt time.Time
		)
		if err := rows.Scan(&uid, &aid, &unlockedAt); err != nil {
			return nil, fmt.Errorf("scan achievement unlock: %w", err)
		}
		result = append(result, &loyalty.AchievementUnlock{
			UserID:        shared.UserID(uid),
			AchievementID: shared.CatalogID(aid),
			UnlockedAt:    unlockedAt,
		})
	}

	return result, rows.Err()
}

// ListUnlockedBadges returns the user's badge unlocks.
func (s *LoyaltyStore) ListUnlockedBadges(ctx context.Context, userID shared.UserID) ([]*loyalty.BadgeUnlock, error) {
	query := `
		SELECT user_id, badge_id, cashback_awarded_minor, transaction_ref, unlocked_at, awarded_at
		FROM user_badges
		WHERE user_id = $1
		ORDER BY unlocked_at, badge_id
	`

	rows, err := s.conn.Query(ctx, query, userID.Int64())
	if err != nil {
		return nil, fmt.Errorf("query badge unlocks: %w", err)
	}
	defer rows.Close()

	var result []*loyalty.BadgeUnlock
	for rows.Next() {
		u, err := scanBadgeUnlock(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, u)
	}

	return result, rows.Err()
}

// TryUnlockAchievement inserts an unlock row, ignoring duplicates.
// The composite primary key makes this safe under concurrency: of two
// racing inserts exactly one reports rows affected.
func (s *LoyaltyStore) TryUnlockAchievement(ctx context.Context, userID shared.UserID, achievementID shared.CatalogID) (bool, error) {
	query := `
		INSERT INTO user_achievements (user_id, achievement_id, unlocked_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id, achievement_id) DO NOTHING
	`

	tag, err := s.conn.Exec(ctx, query, userID.Int64(), achievementID.Int64())
	if err != nil {
		return false, fmt.Errorf("insert achievement unlock: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// TryUnlockBadge inserts a badge unlock row with zero cashback.
func (s *LoyaltyStore) TryUnlockBadge(ctx context.Context, userID shared.UserID, badgeID shared.CatalogID) (bool, error) {
	query := `
		INSERT INTO user_badges (user_id, badge_id, cashback_awarded_minor, unlocked_at)
		VALUES ($1, $2, 0, NOW())
		ON CONFLICT (user_id, badge_id) DO NOTHING
	`

	tag, err := s.conn.Exec(ctx, query, userID.Int64(), badgeID.Int64())
	if err != nil {
		return false, fmt.Errorf("insert badge unlock: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// GetBadgeUnlock returns one badge unlock row.
func (s *LoyaltyStore) GetBadgeUnlock(ctx context.Context, userID shared.UserID, badgeID shared.CatalogID) (*loyalty.BadgeUnlock, error) {
	query := `
		SELECT user_id, badge_id, cashback_awarded_minor, transaction_ref, unlocked_at, awarded_at
		FROM user_badges
		WHERE user_id = $1 AND badge_id = $2
	`

	row := s.conn.QueryRow(ctx, query, userID.Int64(), badgeID.Int64())
	u, err := scanBadgeUnlock(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrBadgeUnlockNotFound
		}
		return nil, err
	}

	return u, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Cashback
// ──────────────────────────────────────────────────────────────────────────────

// SetCashbackAwarded conditionally marks a badge unlock as paid.
// The WHERE clause only matches unpaid rows, so a repeat marking (or a
// racing one) affects zero rows and reports false.
func (s *LoyaltyStore) SetCashbackAwarded(
	ctx context.Context,
	userID shared.UserID,
	badgeID shared.CatalogID,
	amount shared.Money,
	txRef string,
	awardedAt time.Time,
) (bool, error) {
	query := `
		UPDATE user_badges
		SET cashback_awarded_minor = $3,
		    transaction_ref = $4,
		    awarded_at = $5
		WHERE user_id = $1 AND badge_id = $2 AND cashback_awarded_minor = 0
	`

	tag, err := s.conn.Exec(ctx, query,
		userID.Int64(), badgeID.Int64(), amount.Minor(), txRef, awardedAt)
	if err != nil {
		return false, fmt.Errorf("mark cashback awarded: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// ListPendingCashbackUsers returns users holding unpaid badge unlocks.
func (s *LoyaltyStore) ListPendingCashbackUsers(ctx context.Context, limit int) ([]shared.UserID, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT DISTINCT user_id
		FROM user_badges
		WHERE cashback_awarded_minor = 0
		ORDER BY user_id
		LIMIT $1
	`

	rows, err := s.conn.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending cashback users: %w", err)
	}
	defer rows.Close()

	var result []shared.UserID
	for rows.Next() {
		var uid int64
		if err := rows.Scan(&uid); err != nil {
			return nil, fmt.Errorf("scan pending cashback user: %w", err)
		}
		result = append(result, shared.UserID(uid))
	}

	return result, rows.Err()
}

// ──────────────────────────────────────────────────────────────────────────────
// Catalog administration
// ──────────────────────────────────────────────────────────────────────────────

// UpsertAchievement creates or updates an achievement keyed by name.
func (s *LoyaltyStore) UpsertAchievement(ctx context.Context, a *loyalty.Achievement) error {
	if a.Name == "" {
		return shared.NewDomainError("loyalty", "UpsertAchievement", shared.ErrEmptyValue, "achievement name is required")
	}

	query := `
		INSERT INTO achievements (name, description, rule_type, required_count,
		                          required_spend_minor, points, active, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (name) DO UPDATE SET
			description = EXCLUDED.description,
			rule_type = EXCLUDED.rule_type,
			required_count = EXCLUDED.required_count,
			required_spend_minor = EXCLUDED.required_spend_minor,
			points = EXCLUDED.points,
			active = EXCLUDED.active,
			sort_order = EXCLUDED.sort_order
	`

	_, err := s.conn.Exec(ctx, query,
		a.Name,
		a.Description,
		a.Rule.String(),
		a.RequiredCount,
		a.RequiredSpend.Minor(),
		a.Points.Int(),
		a.Active,
		a.SortOrder,
	)
	if err != nil {
		return fmt.Errorf("upsert achievement %q: %w", a.Name, err)
	}

	return nil
}

// UpsertBadge creates or updates a badge keyed by name.
func (s *LoyaltyStore) UpsertBadge(ctx context.Context, b *loyalty.Badge) error {
	query := `
		INSERT INTO badges (name, description, required_points, cashback_minor, active, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (name) DO UPDATE SET
			description = EXCLUDED.description,
			required_points = EXCLUDED.required_points,
			cashback_minor = EXCLUDED.cashback_minor,
			active = EXCLUDED.active,
			sort_order = EXCLUDED.sort_order
	`

	_, err := s.conn.Exec(ctx, query,
		b.Name,
		b.Description,
		b.RequiredPoints.Int(),
		b.Cashback.Minor(),
		b.Active,
		b.SortOrder,
	)
	if err != nil {
		return fmt.Errorf("upsert badge %q: %w", b.Name, err)
	}

	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Row scanning
// ──────────────────────────────────────────────────────────────────────────────

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAchievement(row rowScanner) (*loyalty.Achievement, error) {
	var (
		a             loyalty.Achievement
		id            int64
		ruleType      string
		requiredSpend int64
		points        int
	)
	err := row.Scan(&id, &a.Name, &a.Description, &ruleType, &a.RequiredCount,
		&requiredSpend, &points, &a.Active, &a.SortOrder, &a.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan achievement: %w", err)
	}

	a.ID = shared.CatalogID(id)
	a.Rule = loyalty.RuleType(ruleType)
	a.RequiredSpend = shared.Money(requiredSpend)
	a.Points = shared.Points(points)
	return &a, nil
}

func scanBadge(row rowScanner) (*loyalty.Badge, error) {
	var (
		b              loyalty.Badge
		id             int64
		requiredPoints int
		cashback       int64
	)
	err := row.Scan(&id, &b.Name, &b.Description, &requiredPoints, &cashback,
		&b.Active, &b.SortOrder, &b.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan badge: %w", err)
	}

	b.ID = shared.CatalogID(id)
	b.RequiredPoints = shared.Points(requiredPoints)
	b.Cashback = shared.Money(cashback)
	return &b, nil
}

func scanBadgeUnlock(row rowScanner) (*loyalty.BadgeUnlock, error) {
	var (
		uid       int64
		bid       int64
		awarded   int64
		txRef     string
		unlocked  time.Time
		awardedAt *time.Time
	)
	if err := row.Scan(&uid, &bid, &awarded, &txRef, &unlocked, &awardedAt); err != nil {
		return nil, err
	}

	return &loyalty.BadgeUnlock{
		UserID:          shared.UserID(uid),
		BadgeID:         shared.CatalogID(bid),
		CashbackAwarded: shared.Money(awarded),
		TransactionRef:  txRef,
		UnlockedAt:      unlocked,
		AwardedAt:       awardedAt,
	}, nil
}
