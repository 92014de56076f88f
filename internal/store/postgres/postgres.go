package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/KairamCabral/terravik-sub002/internal/domain"
	"github.com/KairamCabral/terravik-sub002/internal/store"
	"github.com/KairamCabral/terravik-sub002/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// NewWithDB wraps an already opened handle.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

const productColumns = `
	p.id, p.sku, p.name, p.formula, p.description, p.active,
	pk.variant_id, pk.grams, pk.price
`

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products p
		JOIN product_packages pk ON pk.product_id = p.id
		WHERE p.active = true
		ORDER BY p.sku, pk.grams
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanProducts(rows)
}

func (s *Store) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products p
		JOIN product_packages pk ON pk.product_id = p.id
		WHERE p.id = $1
		ORDER BY pk.grams
	`, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products, err := scanProducts(rows)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, store.ErrNotFound
	}
	return &products[0], nil
}

// scanProducts folds one row per package into products, keeping query order.
func scanProducts(rows *sql.Rows) ([]domain.Product, error) {
	products := make([]domain.Product, 0, 4)
	index := make(map[string]int, 4)
	for rows.Next() {
		var p domain.Product
		var pkg domain.Package
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.Formula, &p.Description, &p.Active, &pkg.VariantID, &pkg.Grams, &pkg.Price); err != nil {
			return nil, err
		}
		idx, seen := index[p.ID]
		if !seen {
			idx = len(products)
			index[p.ID] = idx
			products = append(products, p)
		}
		products[idx].Packages = append(products[idx].Packages, pkg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

const couponColumns = `id, code, type, value, min_subtotal, active, expires_at, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCoupon(row rowScanner) (*domain.Coupon, error) {
	var coupon domain.Coupon
	var expiresAt sql.NullTime
	if err := row.Scan(&coupon.ID, &coupon.Code, &coupon.Type, &coupon.Value, &coupon.MinSubtotal, &coupon.Active, &expiresAt, &coupon.CreatedAt); err != nil {
		return nil, err
	}
	if expiresAt.Valid {
		at := expiresAt.Time.UTC()
		coupon.ExpiresAt = &at
	}
	coupon.CreatedAt = coupon.CreatedAt.UTC()
	return &coupon, nil
}

func (s *Store) CreateCoupon(ctx context.Context, coupon domain.Coupon) (*domain.Coupon, error) {
	coupon.Code = strings.ToUpper(strings.TrimSpace(coupon.Code))
	if coupon.Code == "" {
		return nil, store.ErrInvalidInput
	}
	if coupon.ID == "" {
		coupon.ID = xid.New("coupon")
	}
	if coupon.CreatedAt.IsZero() {
		coupon.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO coupons (id, code, type, value, min_subtotal, active, expires_at, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,now())
	`, coupon.ID, coupon.Code, coupon.Type, coupon.Value, coupon.MinSubtotal, coupon.Active, nullTime(coupon.ExpiresAt), coupon.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	saved := coupon
	return &saved, nil
}

func (s *Store) GetCouponByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	coupon, err := scanCoupon(s.db.QueryRowContext(ctx, `
		SELECT `+couponColumns+`
		FROM coupons
		WHERE code = $1
	`, strings.ToUpper(strings.TrimSpace(code))))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return coupon, nil
}

func (s *Store) ListCoupons(ctx context.Context) ([]domain.Coupon, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+couponColumns+`
		FROM coupons
		ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	coupons := make([]domain.Coupon, 0, 16)
	for rows.Next() {
		coupon, err := scanCoupon(rows)
		if err != nil {
			return nil, err
		}
		coupons = append(coupons, *coupon)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return coupons, nil
}

func (s *Store) UpdateCouponActive(ctx context.Context, couponID string, active bool) (*domain.Coupon, error) {
	coupon, err := scanCoupon(s.db.QueryRowContext(ctx, `
		UPDATE coupons
		SET active = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+couponColumns,
		couponID, active))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return coupon, nil
}

func (s *Store) SaveSnapshot(ctx context.Context, sessionKey string, kind string, payload []byte, savedAt time.Time) error {
	if strings.TrimSpace(sessionKey) == "" || kind == "" {
		return store.ErrInvalidInput
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO calculator_snapshots (session_key, kind, payload, saved_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (session_key, kind)
		DO UPDATE SET payload = EXCLUDED.payload, saved_at = EXCLUDED.saved_at
	`, sessionKey, kind, string(payload), savedAt)
	return err
}

func (s *Store) GetSnapshot(ctx context.Context, sessionKey string, kind string) ([]byte, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT payload
		FROM calculator_snapshots
		WHERE session_key = $1 AND kind = $2
	`, sessionKey, kind).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return payload, nil
}

func (s *Store) DeleteSnapshot(ctx context.Context, sessionKey string, kind string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM calculator_snapshots
		WHERE session_key = $1 AND kind = $2
	`, sessionKey, kind)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CreateBumpEvent(ctx context.Context, event domain.BumpEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO order_bump_events (id, session_key, product_id, action, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, xid.New("bump"), event.SessionKey, event.ProductID, event.Action, event.CreatedAt)
	return err
}

func (s *Store) GetBumpMetrics(ctx context.Context, from time.Time, to time.Time) (domain.BumpMetrics, error) {
	var metrics domain.BumpMetrics
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN action = 'shown' THEN 1 ELSE 0 END),0)::bigint,
			COALESCE(SUM(CASE WHEN action = 'accepted' THEN 1 ELSE 0 END),0)::bigint,
			COALESCE(SUM(CASE WHEN action = 'rejected' THEN 1 ELSE 0 END),0)::bigint
		FROM order_bump_events
		WHERE created_at >= $1 AND created_at < $2
	`, from, to).Scan(&metrics.Shown, &metrics.Accepted, &metrics.Rejected)
	if err != nil {
		return metrics, err
	}

	metrics.AttachRate = store.AttachRate(metrics)
	return metrics, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (
			id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE created_at >= $1
			AND created_at < $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorUsername, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if user.Role == "" {
		user.Role = domain.RoleStaff
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (username, password, role, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,now())
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM app_users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET password = $2, updated_at = now()
		WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullTime(val *time.Time) any {
	if val == nil {
		return nil
	}
	return *val
}
