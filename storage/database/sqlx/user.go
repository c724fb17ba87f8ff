package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/sathyagomani/academy/core/user"
)

type userRow struct {
	ID              string       `db:"id"`
	FirstName       string       `db:"first_name"`
	LastName        string       `db:"last_name"`
	Email           string       `db:"email"`
	PhoneNumber     string       `db:"phone_number"`
	Role            string       `db:"role"`
	IsActive        bool         `db:"is_active"`
	PasswordHash    []byte       `db:"password_hash"`
	OneTimePassword string       `db:"one_time_password"`
	CreatedAt       time.Time    `db:"created_at"`
	UpdatedAt       time.Time    `db:"updated_at"`
	LastLogin       sql.NullTime `db:"last_login"`
}

type subscriptionRow struct {
	UserID       string    `db:"user_id"`
	CourseID     string    `db:"course_id"`
	SubscribedAt time.Time `db:"subscribed_at"`
	ExpiresAt    time.Time `db:"expires_at"`
}

func (r userRow) toUser() user.User {
	usr := user.User{
		ID:              r.ID,
		FirstName:       r.FirstName,
		LastName:        r.LastName,
		Email:           r.Email,
		PhoneNumber:     r.PhoneNumber,
		Role:            r.Role,
		IsActive:        r.IsActive,
		PasswordHash:    r.PasswordHash,
		OneTimePassword: r.OneTimePassword,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if r.LastLogin.Valid {
		usr.LastLogin = r.LastLogin.Time
	}
	return usr
}

func toUserRow(usr user.User) userRow {
	r := userRow{
		ID:              usr.ID,
		FirstName:       usr.FirstName,
		LastName:        usr.LastName,
		Email:           usr.Email,
		PhoneNumber:     usr.PhoneNumber,
		Role:            usr.Role,
		IsActive:        usr.IsActive,
		PasswordHash:    usr.PasswordHash,
		OneTimePassword: usr.OneTimePassword,
		CreatedAt:       usr.CreatedAt,
		UpdatedAt:       usr.UpdatedAt,
	}
	if !usr.LastLogin.IsZero() {
		r.LastLogin = sql.NullTime{Time: usr.LastLogin, Valid: true}
	}
	return r
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *sql.DB) user.Repository {
	return &userRepository{db: sqlx.NewDb(db, "postgres")}
}

func (repo *userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...user.User) error {
	query := `SELECT COUNT(*) FROM "user" WHERE email = $1`
	args := []interface{}{email}
	if len(excludedUsers) > 0 {
		excl := make([]string, 0, len(excludedUsers))
		for _, usr := range excludedUsers {
			excl = append(excl, usr.ID)
		}
		var err error
		query, args, err = sqlx.In(`SELECT COUNT(*) FROM "user" WHERE email = ? AND id NOT IN (?)`, email, excl)
		if err != nil {
			return errors.Wrap(err, "building uniqueness query")
		}
		query = repo.db.Rebind(query)
	}

	var count int
	if err := repo.db.GetContext(ctx, &count, query, args...); err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if count > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	row := toUserRow(usr)
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO "user" (id, first_name, last_name, email, phone_number, role, is_active,
		                    password_hash, one_time_password, created_at, updated_at, last_login)
		VALUES (:id, :first_name, :last_name, :email, :phone_number, :role, :is_active,
		        :password_hash, :one_time_password, :created_at, :updated_at, :last_login)`, row)
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo *userRepository) QueryAllUsers(ctx context.Context) ([]user.User, error) {
	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM "user" ORDER BY created_at`); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.toUser())
	}
	return repo.loadSubscriptions(ctx, users)
}

func (repo *userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	return repo.getUser(ctx, `SELECT * FROM "user" WHERE id = $1`, id)
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return repo.getUser(ctx, `SELECT * FROM "user" WHERE email = $1`, email)
}

func (repo *userRepository) getUser(ctx context.Context, query string, arg interface{}) (user.User, error) {
	var row userRow
	if err := repo.db.GetContext(ctx, &row, query, arg); err != nil {
		if err == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "getting user")
	}
	users, err := repo.loadSubscriptions(ctx, []user.User{row.toUser()})
	if err != nil {
		return user.User{}, err
	}
	return users[0], nil
}

func (repo *userRepository) GetStudentsByID(ctx context.Context, ids ...string) ([]user.User, error) {
	if len(ids) == 0 {
		return []user.User{}, nil
	}
	query, args, err := sqlx.In(`SELECT * FROM "user" WHERE role = ? AND id IN (?)`, user.RoleStudent, ids)
	if err != nil {
		return nil, errors.Wrap(err, "building students query")
	}
	var rows []userRow
	if err = repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.toUser())
	}
	return repo.loadSubscriptions(ctx, users)
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User, isActive *bool) (user.User, error) {
	// only save set fields
	orig, err := repo.GetUserByID(ctx, usr.ID)
	if err != nil {
		return user.User{}, err
	}
	if usr.FirstName != "" {
		orig.FirstName = usr.FirstName
	}
	if usr.LastName != "" {
		orig.LastName = usr.LastName
	}
	if usr.PhoneNumber != "" {
		orig.PhoneNumber = usr.PhoneNumber
	}
	if usr.PasswordHash != nil {
		orig.PasswordHash = usr.PasswordHash
	}
	if isActive != nil {
		orig.IsActive = *isActive
	}
	orig.UpdatedAt = usr.UpdatedAt

	row := toUserRow(orig)
	_, err = repo.db.NamedExecContext(ctx, `
		UPDATE "user"
		SET first_name = :first_name, last_name = :last_name, phone_number = :phone_number,
		    is_active = :is_active, password_hash = :password_hash, updated_at = :updated_at
		WHERE id = :id`, row)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	return orig, nil
}

func (repo *userRepository) SetLastLogin(ctx context.Context, usr user.User) (user.User, error) {
	_, err := repo.db.ExecContext(ctx, `UPDATE "user" SET last_login = $1 WHERE id = $2`, usr.LastLogin, usr.ID)
	if err != nil {
		return user.User{}, errors.Wrap(err, "setting last login")
	}
	return usr, nil
}

func (repo *userRepository) SaveSubscriptions(ctx context.Context, usr user.User) (user.User, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return user.User{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err = tx.ExecContext(ctx, `DELETE FROM subscription WHERE user_id = $1`, usr.ID); err != nil {
		return user.User{}, errors.Wrap(err, "clearing subscriptions")
	}
	for _, sub := range usr.Subscriptions {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO subscription (user_id, course_id, subscribed_at, expires_at)
			VALUES ($1, $2, $3, $4)`, usr.ID, sub.CourseID, sub.SubscribedAt, sub.ExpiresAt)
		if err != nil {
			return user.User{}, errors.Wrap(err, "inserting subscription")
		}
	}
	if err = tx.Commit(); err != nil {
		return user.User{}, errors.Wrap(err, "committing subscriptions")
	}
	return usr, nil
}

func (repo *userRepository) ClearOneTimePassword(ctx context.Context, id string) error {
	_, err := repo.db.ExecContext(ctx, `UPDATE "user" SET one_time_password = '' WHERE id = $1`, id)
	return errors.Wrap(err, "clearing one-time password")
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`DELETE FROM "user" WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	_, err = repo.db.ExecContext(ctx, repo.db.Rebind(query), args...)
	return errors.Wrap(err, "deleting users")
}

func (repo *userRepository) loadSubscriptions(ctx context.Context, users []user.User) ([]user.User, error) {
	if len(users) == 0 {
		return users, nil
	}
	ids := make([]string, 0, len(users))
	for _, usr := range users {
		ids = append(ids, usr.ID)
	}
	query, args, err := sqlx.In(`SELECT * FROM subscription WHERE user_id IN (?)`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "building subscriptions query")
	}
	var rows []subscriptionRow
	if err = repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "querying subscriptions")
	}

	byUser := make(map[string][]user.Subscription, len(users))
	for _, r := range rows {
		byUser[r.UserID] = append(byUser[r.UserID], user.Subscription{
			CourseID:     r.CourseID,
			SubscribedAt: r.SubscribedAt,
			ExpiresAt:    r.ExpiresAt,
		})
	}
	for i := range users {
		users[i].Subscriptions = byUser[users[i].ID]
	}
	return users, nil
}
