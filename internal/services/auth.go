package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/yungbote/bonusfinder-backend/internal/data/db"
	"github.com/yungbote/bonusfinder-backend/internal/data/repos"
	types "github.com/yungbote/bonusfinder-backend/internal/domain"
	userdomain "github.com/yungbote/bonusfinder-backend/internal/domain/user"
	apperr "github.com/yungbote/bonusfinder-backend/internal/pkg/errors"
	"github.com/yungbote/bonusfinder-backend/internal/pkg/validate"
	"github.com/yungbote/bonusfinder-backend/internal/platform/dbctx"
	"github.com/yungbote/bonusfinder-backend/internal/platform/logger"
)

type JWTClaims struct {
	Username string `json:"username,omitempty"`
	Role     string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

type LoginResult struct {
	AccessToken string      `json:"access_token"`
	ExpiresAt   time.Time   `json:"expires_at"`
	User        *types.User `json:"user"`
}

type AuthService interface {
	Register(dbc dbctx.Context, username, password, role string) (*types.User, error)
	Login(dbc dbctx.Context, username, password string) (*LoginResult, error)
	// ParseToken verifies an access token and loads its active user.
	ParseToken(dbc dbctx.Context, tokenString string) (*types.User, error)
	AccessTTL() time.Duration
}

type authService struct {
	db           *gorm.DB
	log          *logger.Logger
	users        repos.UserRepo
	jwtSecretKey []byte
	accessTTL    time.Duration
	now          func() time.Time
}

func NewAuthService(db *gorm.DB, baseLog *logger.Logger, users repos.UserRepo, jwtSecretKey string, accessTTL time.Duration) AuthService {
	if accessTTL <= 0 {
		accessTTL = 24 * time.Hour
	}
	return &authService{
		db:           db,
		log:          baseLog.With("service", "AuthService"),
		users:        users,
		jwtSecretKey: []byte(jwtSecretKey),
		accessTTL:    accessTTL,
		now:          time.Now,
	}
}

func (s *authService) AccessTTL() time.Duration { return s.accessTTL }

func (s *authService) Register(dbc dbctx.Context, username, password, role string) (*types.User, error) {
	username = strings.TrimSpace(username)
	if err := validate.Var(username, "required,min=3,max=64"); err != nil {
		return nil, apperr.Invalid("username must be 3-64 characters")
	}
	if len(password) < 8 {
		return nil, apperr.Invalid("password must be at least 8 characters")
	}
	if role == "" {
		role = userdomain.RoleUser
	}
	if err := validate.Var(role, "oneof=viewer user contributor admin"); err != nil {
		return nil, apperr.Invalid("unknown role " + role)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &types.User{
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
		Status:       userdomain.StatusActive,
	}
	err = inTx(dbc, s.db, func(txc dbctx.Context) error {
		_, err := s.users.Create(txc, []*types.User{u})
		return err
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, apperr.Conflict("username already taken")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.log.Info("User registered", "user_id", u.ID, "role", u.Role)
	return u, nil
}

func (s *authService) Login(dbc dbctx.Context, username, password string) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperr.Invalid("username and password are required")
	}
	u, err := s.users.GetByUsername(dbc, username)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if u == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if u.Status != userdomain.StatusActive {
		return nil, apperr.Forbidden("account is " + u.Status)
	}
	tok, exp, err := s.generateAccessToken(u)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}
	return &LoginResult{AccessToken: tok, ExpiresAt: exp, User: u}, nil
}

func (s *authService) generateAccessToken(u *types.User) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.accessTTL)
	claims := JWTClaims{
		Username: u.Username,
		Role:     u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.String(),
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecretKey)
	return signed, exp, err
}

func (s *authService) ParseToken(dbc dbctx.Context, tokenString string) (*types.User, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, apperr.ErrUnauthorized
	}
	claims := &JWTClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.jwtSecretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperr.Unauthorized("token expired")
		}
		return nil, apperr.Unauthorized("invalid token")
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, apperr.Unauthorized("invalid token subject")
	}
	u, err := s.users.GetByID(dbc, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if u == nil || u.Status != userdomain.StatusActive {
		return nil, apperr.Unauthorized("user not active")
	}
	return u, nil
}
