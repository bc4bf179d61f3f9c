package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrUserNotFound = errors.New("user not found")

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func (s *Store) FindActiveUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.DB.QueryRow(ctx, `
    SELECT id, company_id, name, email, password_hash, role, status, created_at
    FROM users
    WHERE lower(email) = lower($1) AND status = 'active'
  `, strings.TrimSpace(email)).Scan(
		&user.ID, &user.CompanyID, &user.Name, &user.Email, &user.PasswordHash, &user.Role, &user.Status, &user.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *Store) FindUserByID(ctx context.Context, companyID, userID string) (User, error) {
	var user User
	err := s.DB.QueryRow(ctx, `
    SELECT id, company_id, name, email, password_hash, role, status, created_at
    FROM users
    WHERE company_id = $1 AND id = $2
  `, companyID, userID).Scan(
		&user.ID, &user.CompanyID, &user.Name, &user.Email, &user.PasswordHash, &user.Role, &user.Status, &user.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *Store) CreateUser(ctx context.Context, companyID, name, email, passwordHash, role string) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO users (company_id, name, email, password_hash, role, status)
    VALUES ($1,$2,$3,$4,$5,'active')
    RETURNING id
  `, companyID, name, strings.ToLower(strings.TrimSpace(email)), passwordHash, role).Scan(&id)
	return id, err
}

func (s *Store) UpdateLastLogin(ctx context.Context, userID string) error {
	_, err := s.DB.Exec(ctx, "UPDATE users SET last_login_at = now() WHERE id = $1", userID)
	return err
}

func (s *Store) UpdateUserRole(ctx context.Context, companyID, userID, role string) error {
	tag, err := s.DB.Exec(ctx, "UPDATE users SET role = $3 WHERE company_id = $1 AND id = $2", companyID, userID, role)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
