// Package auth autentica os administradores do back-office com bcrypt e tokens JWT.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/domrealce/storefront/internal/apperrors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

// RoleAdmin é o único papel com acesso ao back-office
const RoleAdmin = "admin"

// TokenTTL é a validade de um token de sessão
const TokenTTL = 12 * time.Hour

var (
	// ErrInvalidCredentials não distingue utilizador inexistente de senha errada
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// User representa um utilizador do back-office
type User struct {
	ID           string
	Username     string
	PasswordHash string
	Role         string
}

// UserRepository define a leitura de utilizadores
type UserRepository interface {
	GetByUsername(ctx context.Context, username string) (*User, error)
}

// PostgresUserRepository implementa UserRepository usando PostgreSQL
type PostgresUserRepository struct {
	db *pgxpool.Pool
}

// NewPostgresUserRepository cria uma nova instância de PostgresUserRepository
func NewPostgresUserRepository(db *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	var u User
	err := r.db.QueryRow(ctx, `
		SELECT id, username, password_hash, role FROM users WHERE username = $1
	`, username).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", username, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read user: %w", err)
	}
	return &u, nil
}

// CreateIfMissing insere o utilizador se o username ainda não existir; devolve true quando inseriu
func (r *PostgresUserRepository) CreateIfMissing(ctx context.Context, u User) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO users (id, username, password_hash, role)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (username) DO NOTHING
	`, u.ID, u.Username, u.PasswordHash, u.Role)
	if err != nil {
		return false, fmt.Errorf("failed to create user: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Claims são as claims dos tokens emitidos pelo login
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
	Role     string `json:"role"`
}

// dummyHash é comparado quando o utilizador não existe, para que o login demore
// o mesmo que com uma senha errada
var dummyHash = sync.OnceValue(func() []byte {
	hash, err := bcrypt.GenerateFromPassword([]byte("domrealce-unknown-user"), bcrypt.DefaultCost)
	if err != nil {
		panic(fmt.Sprintf("failed to generate dummy password hash: %v", err))
	}
	return hash
})

// Service emite e valida tokens HS256
type Service struct {
	users   UserRepository
	secret  []byte
	now     func() time.Time
	compare func(hash, password []byte) error
}

// NewService cria uma nova instância de Service
func NewService(users UserRepository, secret []byte) *Service {
	return &Service{users: users, secret: secret, now: time.Now, compare: bcrypt.CompareHashAndPassword}
}

// Login verifica a senha e devolve um token assinado e a sua expiração
func (s *Service) Login(ctx context.Context, username, password string) (string, time.Time, error) {
	if username == "" || password == "" {
		return "", time.Time{}, apperrors.NewValidationError("username", "username and password are required")
	}

	user, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, apperrors.ErrNotFound) {
		_ = s.compare(dummyHash(), []byte(password))
		return "", time.Time{}, ErrInvalidCredentials
	}
	if err != nil {
		return "", time.Time{}, err
	}
	if err := s.compare([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", time.Time{}, ErrInvalidCredentials
	}

	now := s.now()
	expires := now.Add(TokenTTL)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			Issuer:    "domrealce",
		},
		Username: user.Username,
		Role:     user.Role,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expires, nil
}

// Validate verifica a assinatura e a expiração de um token
func (s *Service) Validate(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithIssuer("domrealce"),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// HashPassword gera o hash bcrypt usado na tabela users
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
