package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/xela07ax/manday-assess/internal/domain"
	"github.com/xela07ax/manday-assess/internal/infra"
)

// ErrUserMissing возвращается из операций изменения, если строка пользователя не найдена.
var ErrUserMissing = errors.New("postgres: user not found")

const userColumns = `
	id, username, password_hash, real_name, email,
	COALESCE(phone, ''), COALESCE(employee_id, ''), COALESCE(department, ''), COALESCE(position, ''),
	status, failed_login_attempts, locked_at, last_login_at, COALESCE(last_login_ip, ''),
	password_expires_at, created_at, updated_at`

type UserRepo struct {
	pool  *pgxpool.Pool
	guard *infra.Guard
}

func NewUserRepo(pool *pgxpool.Pool, guard *infra.Guard) *UserRepo {
	return &UserRepo{pool: pool, guard: guard}
}

// FindByIdentifier ищет пользователя по логину, затем по email, затем по табельному номеру.
// Все выборки идут в одной read-only транзакции, чтобы роли и права соответствовали строке пользователя.
// Если пользователь не найден, возвращает nil, nil.
func (r *UserRepo) FindByIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	return infra.Execute(ctx, r.guard, func(ctx context.Context) (*domain.User, error) {
		var found *domain.User
		err := pgx.BeginTxFunc(ctx, r.pool, readOnly, func(tx pgx.Tx) error {
			for _, column := range []string{"username", "email", "employee_id"} {
				u, err := scanUser(tx.QueryRow(ctx,
					`SELECT `+userColumns+` FROM users WHERE `+column+` = $1`, identifier))
				if errors.Is(err, pgx.ErrNoRows) {
					continue
				}
				if err != nil {
					return err
				}
				found = u
				break
			}
			if found == nil {
				return nil
			}
			roles, err := loadRoles(ctx, tx, found.ID)
			if err != nil {
				return err
			}
			found.Roles = roles
			return nil
		})
		return found, permanentOnly(err)
	})
}

func (r *UserRepo) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	return infra.Execute(ctx, r.guard, func(ctx context.Context) (*domain.User, error) {
		var found *domain.User
		err := pgx.BeginTxFunc(ctx, r.pool, readOnly, func(tx pgx.Tx) error {
			u, err := scanUser(tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			if err != nil {
				return err
			}
			if u.Roles, err = loadRoles(ctx, tx, u.ID); err != nil {
				return err
			}
			found = u
			return nil
		})
		return found, permanentOnly(err)
	})
}

// Create сохраняет нового пользователя и назначает ему роль roleCode.
func (r *UserRepo) Create(ctx context.Context, u *domain.User, roleCode string) (int64, error) {
	return infra.Execute(ctx, r.guard, func(ctx context.Context) (int64, error) {
		var id int64
		err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
			err := tx.QueryRow(ctx, `
				INSERT INTO users (username, password_hash, real_name, email, phone, employee_id,
					department, position, status, failed_login_attempts, password_expires_at, created_at, updated_at)
				VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''), $9, 0, $10, NOW(), NOW())
				RETURNING id`,
				u.Username, u.PasswordHash, u.RealName, u.Email, u.Phone, u.EmployeeID,
				u.Department, u.Position, string(u.Status), u.PasswordExpiresAt,
			).Scan(&id)
			if err != nil {
				return err
			}
			_, err = tx.Exec(ctx, `
				INSERT INTO user_roles (user_id, role_id)
				SELECT $1, id FROM roles WHERE code = $2 AND is_active`, id, roleCode)
			return err
		})
		if err != nil {
			return 0, permanentOnly(fmt.Errorf("postgres: create user: %w", err))
		}
		return id, nil
	})
}

// RecordLoginSuccess сбрасывает счётчик неудач и фиксирует время и адрес входа.
func (r *UserRepo) RecordLoginSuccess(ctx context.Context, id int64, ip string, at time.Time) error {
	return r.guard.Do(ctx, func(ctx context.Context) error {
		return r.execOne(ctx, `
			UPDATE users SET failed_login_attempts = 0, last_login_at = $2, last_login_ip = NULLIF($3, ''), updated_at = NOW()
			WHERE id = $1`, id, at, ip)
	})
}

// RecordLoginFailure увеличивает счётчик неудач и блокирует учётную запись при достижении порога.
// Возвращает новое значение счётчика и признак блокировки.
func (r *UserRepo) RecordLoginFailure(ctx context.Context, id int64, maxAttempts int) (int, bool, error) {
	type result struct {
		attempts int
		locked   bool
	}
	res, err := infra.Execute(ctx, r.guard, func(ctx context.Context) (result, error) {
		var (
			out    result
			status string
		)
		err := r.pool.QueryRow(ctx, `
			UPDATE users SET
				failed_login_attempts = failed_login_attempts + 1,
				status = CASE WHEN failed_login_attempts + 1 >= $2 THEN 'LOCKED' ELSE status END,
				locked_at = CASE WHEN failed_login_attempts + 1 >= $2 AND status <> 'LOCKED' THEN NOW() ELSE locked_at END,
				updated_at = NOW()
			WHERE id = $1
			RETURNING failed_login_attempts, status`, id, maxAttempts).Scan(&out.attempts, &status)
		if errors.Is(err, pgx.ErrNoRows) {
			return out, infra.Permanent(ErrUserMissing)
		}
		out.locked = domain.AccountStatus(status) == domain.StatusLocked
		return out, err
	})
	return res.attempts, res.locked, err
}

// SetLocked блокирует или разблокирует учётную запись. Разблокировка обнуляет счётчик неудач.
func (r *UserRepo) SetLocked(ctx context.Context, id int64, locked bool) error {
	query := `UPDATE users SET status = 'ACTIVE', failed_login_attempts = 0, locked_at = NULL, updated_at = NOW() WHERE id = $1`
	if locked {
		query = `UPDATE users SET status = 'LOCKED', locked_at = NOW(), updated_at = NOW() WHERE id = $1`
	}
	return r.guard.Do(ctx, func(ctx context.Context) error {
		return r.execOne(ctx, query, id)
	})
}

func (r *UserRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`, username)
}

func (r *UserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email)
}

func (r *UserRepo) ExistsByEmployeeID(ctx context.Context, employeeID string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE employee_id = $1)`, employeeID)
}

func (r *UserRepo) exists(ctx context.Context, query string, arg string) (bool, error) {
	return infra.Execute(ctx, r.guard, func(ctx context.Context) (bool, error) {
		var ok bool
		err := r.pool.QueryRow(ctx, query, arg).Scan(&ok)
		return ok, err
	})
}

func (r *UserRepo) execOne(ctx context.Context, query string, args ...any) error {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return permanentOnly(err)
	}
	if tag.RowsAffected() == 0 {
		return infra.Permanent(ErrUserMissing)
	}
	return nil
}

var readOnly = pgx.TxOptions{AccessMode: pgx.ReadOnly, IsoLevel: pgx.RepeatableRead}

func scanUser(row pgx.Row) (*domain.User, error) {
	u := &domain.User{}
	var status string
	err := row.Scan(
		&u.ID, &u.Username, &u.PasswordHash, &u.RealName, &u.Email,
		&u.Phone, &u.EmployeeID, &u.Department, &u.Position,
		&status, &u.FailedLoginAttempts, &u.LockedAt, &u.LastLoginAt, &u.LastLoginIP,
		&u.PasswordExpiresAt, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.Status = domain.AccountStatus(status)
	return u, nil
}

// loadRoles поднимает роли пользователя вместе с правами. Роль без прав тоже попадает в результат.
func loadRoles(ctx context.Context, tx pgx.Tx, userID int64) ([]domain.Role, error) {
	rows, err := tx.Query(ctx, `
		SELECT r.id, r.code, r.name, r.is_active, p.id, p.code, p.name, p.module, p.is_active
		FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id
		LEFT JOIN role_permissions rp ON rp.role_id = r.id
		LEFT JOIN permissions p ON p.id = rp.permission_id
		WHERE ur.user_id = $1
		ORDER BY r.id, p.id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []domain.Role
	for rows.Next() {
		var (
			role     domain.Role
			permID   *int64
			permCode *string
			permName *string
			module   *string
			active   *bool
		)
		if err := rows.Scan(&role.ID, &role.Code, &role.Name, &role.Active,
			&permID, &permCode, &permName, &module, &active); err != nil {
			return nil, err
		}
		if n := len(roles); n == 0 || roles[n-1].ID != role.ID {
			roles = append(roles, role)
		}
		if permID == nil {
			continue
		}
		p := domain.Permission{ID: *permID, Code: deref(permCode), Name: deref(permName), Module: deref(module)}
		p.Active = active != nil && *active
		last := &roles[len(roles)-1]
		last.Permissions = append(last.Permissions, p)
	}
	return roles, rows.Err()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
