package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/lib/pq"
)

// Store provides database operations for the subscription catalog
type Store struct {
	db *sql.DB
}

// NewStore creates a new catalog store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const subscriptionColumns = `id, name, slug, category_id, price, support_email,
	support_reply_number, support_postal_code, support_city,
	correspondence_address, correspondence_postal_code, correspondence_city,
	support_phone_number, cancellation_number, amount_used,
	letter_template, email_template_text, can_letter, can_email,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSubscription(row rowScanner) (*Subscription, error) {
	s := &Subscription{}
	err := row.Scan(&s.ID, &s.Name, &s.Slug, &s.CategoryID, &s.Price,
		&s.SupportEmail, &s.SupportReplyNumber, &s.SupportPostalCode, &s.SupportCity,
		&s.CorrespondenceAddress, &s.CorrespondencePostalCode, &s.CorrespondenceCity,
		&s.SupportPhoneNumber, &s.CancellationNumber, &s.AmountUsed,
		&s.LetterTemplate, &s.EmailTemplateText, &s.CanLetter, &s.CanEmail,
		&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// CreateSubscription inserts a new subscription. The slug is derived from
// the name when empty, and capability flags are recomputed.
func (s *Store) CreateSubscription(ctx context.Context, sub *Subscription) error {
	sub.ID = uuid.New()
	if sub.Slug == "" {
		sub.Slug = slug.Make(sub.Name)
	}
	if sub.AmountUsed == 0 {
		sub.AmountUsed = 1
	}
	sub.RefreshFlags()
	sub.CreatedAt = time.Now()
	sub.UpdatedAt = sub.CreatedAt

	query := `INSERT INTO subscriptions (` + subscriptionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`

	_, err := s.db.ExecContext(ctx, query, sub.ID, sub.Name, sub.Slug, sub.CategoryID,
		sub.Price, sub.SupportEmail, sub.SupportReplyNumber, sub.SupportPostalCode,
		sub.SupportCity, sub.CorrespondenceAddress, sub.CorrespondencePostalCode,
		sub.CorrespondenceCity, sub.SupportPhoneNumber, sub.CancellationNumber,
		sub.AmountUsed, sub.LetterTemplate, sub.EmailTemplateText,
		sub.CanLetter, sub.CanEmail, sub.CreatedAt, sub.UpdatedAt)
	return err
}

// UpdateSubscription saves an edited subscription, recomputing flags
func (s *Store) UpdateSubscription(ctx context.Context, sub *Subscription) error {
	sub.RefreshFlags()
	sub.UpdatedAt = time.Now()

	query := `UPDATE subscriptions SET name = $2, slug = $3, category_id = $4,
		price = $5, support_email = $6, support_reply_number = $7,
		support_postal_code = $8, support_city = $9, correspondence_address = $10,
		correspondence_postal_code = $11, correspondence_city = $12,
		support_phone_number = $13, cancellation_number = $14,
		letter_template = $15, email_template_text = $16,
		can_letter = $17, can_email = $18, updated_at = $19
		WHERE id = $1`

	_, err := s.db.ExecContext(ctx, query, sub.ID, sub.Name, sub.Slug, sub.CategoryID,
		sub.Price, sub.SupportEmail, sub.SupportReplyNumber, sub.SupportPostalCode,
		sub.SupportCity, sub.CorrespondenceAddress, sub.CorrespondencePostalCode,
		sub.CorrespondenceCity, sub.SupportPhoneNumber, sub.CancellationNumber,
		sub.LetterTemplate, sub.EmailTemplateText, sub.CanLetter, sub.CanEmail,
		sub.UpdatedAt)
	return err
}

// GetSubscription retrieves a subscription by ID; nil when not found
func (s *Store) GetSubscription(ctx context.Context, id uuid.UUID) (*Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1`
	sub, err := scanSubscription(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return sub, err
}

// GetSubscriptionBySlug retrieves a subscription by slug; nil when not found
func (s *Store) GetSubscriptionBySlug(ctx context.Context, slugVal string) (*Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE slug = $1`
	sub, err := scanSubscription(s.db.QueryRowContext(ctx, query, slugVal))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return sub, err
}

func (s *Store) querySubscriptions(ctx context.Context, query string, args ...interface{}) ([]*Subscription, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []*Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// ListSubscriptions returns a page of subscriptions ordered by name
func (s *Store) ListSubscriptions(ctx context.Context, limit, offset int) ([]*Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions
		ORDER BY name LIMIT $1 OFFSET $2`
	return s.querySubscriptions(ctx, query, limit, offset)
}

// TopSubscriptions returns the most-used subscriptions
func (s *Store) TopSubscriptions(ctx context.Context, limit int) ([]*Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions
		ORDER BY amount_used DESC, name LIMIT $1`
	return s.querySubscriptions(ctx, query, limit)
}

// SearchSubscriptions matches names and registered search terms
func (s *Store) SearchSubscriptions(ctx context.Context, term string, limit int) ([]*Subscription, error) {
	pattern := "%" + strings.TrimSpace(term) + "%"
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions
		WHERE name ILIKE $1 OR id IN (
			SELECT subscription_id FROM subscription_search_terms WHERE name ILIKE $1)
		ORDER BY name LIMIT $2`
	return s.querySubscriptions(ctx, query, pattern, limit)
}

// ResolveSubscriptionIDs loads the subscriptions for the given ids,
// silently discarding unknown ones.
func (s *Store) ResolveSubscriptionIDs(ctx context.Context, ids []uuid.UUID) ([]*Subscription, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = id.String()
	}
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions
		WHERE id = ANY($1) ORDER BY name`
	return s.querySubscriptions(ctx, query, pq.Array(strIDs))
}

// IncrementUsage bumps a subscription's usage counter by exactly one
func (s *Store) IncrementUsage(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE subscriptions SET amount_used = amount_used + 1, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("subscription %s not found", id)
	}
	return nil
}

// AddSearchTerm registers an additional search term for a subscription
func (s *Store) AddSearchTerm(ctx context.Context, subscriptionID uuid.UUID, term string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subscription_search_terms (id, subscription_id, name) VALUES ($1, $2, $3)`,
		uuid.New(), subscriptionID, term)
	return err
}

const categoryColumns = `id, name, slug, parent_id, ordering,
	letter_template, email_template_text, created_at, updated_at`

func scanCategory(row rowScanner) (*Category, error) {
	c := &Category{}
	err := row.Scan(&c.ID, &c.Name, &c.Slug, &c.ParentID, &c.Ordering,
		&c.LetterTemplate, &c.EmailTemplateText, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// CreateCategory inserts a new category
func (s *Store) CreateCategory(ctx context.Context, c *Category) error {
	c.ID = uuid.New()
	if c.Slug == "" {
		c.Slug = slug.Make(c.Name)
	}
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt

	query := `INSERT INTO subscription_categories (` + categoryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := s.db.ExecContext(ctx, query, c.ID, c.Name, c.Slug, c.ParentID,
		c.Ordering, c.LetterTemplate, c.EmailTemplateText, c.CreatedAt, c.UpdatedAt)
	return err
}

// GetCategory retrieves a category by ID; nil when not found
func (s *Store) GetCategory(ctx context.Context, id uuid.UUID) (*Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM subscription_categories WHERE id = $1`
	c, err := scanCategory(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

// GetCategoryBySlug retrieves a category by slug; nil when not found
func (s *Store) GetCategoryBySlug(ctx context.Context, slugVal string) (*Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM subscription_categories WHERE slug = $1`
	c, err := scanCategory(s.db.QueryRowContext(ctx, query, slugVal))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

func (s *Store) queryCategories(ctx context.Context, query string, args ...interface{}) ([]*Category, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cats []*Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

// TopLevelCategories returns categories without a parent, sibling-ordered
func (s *Store) TopLevelCategories(ctx context.Context) ([]*Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM subscription_categories
		WHERE parent_id IS NULL ORDER BY ordering, name`
	return s.queryCategories(ctx, query)
}

// Subcategories returns the direct children of a category, sibling-ordered
func (s *Store) Subcategories(ctx context.Context, parentID uuid.UUID) ([]*Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM subscription_categories
		WHERE parent_id = $1 ORDER BY ordering, name`
	return s.queryCategories(ctx, query, parentID)
}

// SubscriptionsInCategories returns subscriptions belonging to any of the
// given categories, most used first.
func (s *Store) SubscriptionsInCategories(ctx context.Context, categoryIDs []uuid.UUID, limit int) ([]*Subscription, error) {
	if len(categoryIDs) == 0 {
		return nil, nil
	}
	strIDs := make([]string, len(categoryIDs))
	for i, id := range categoryIDs {
		strIDs[i] = id.String()
	}
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions
		WHERE category_id = ANY($1) ORDER BY amount_used DESC, name LIMIT $2`
	return s.querySubscriptions(ctx, query, pq.Array(strIDs), limit)
}
