package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/graficapro/backend/internal/auth"
	"github.com/graficapro/backend/internal/shop"
)

const (
	minPasswordLength    = 8
	defaultMaxAttempts   = 5
	defaultAttemptWindow = time.Minute
)

var (
	errMissingDatabase   = errors.New("users: database connection required")
	errMissingIDProvider = errors.New("users: id provider required")
	// ErrWeakPassword indicates the password did not meet the minimum length.
	ErrWeakPassword = errors.New("users: password too short")
	// ErrInvalidIdentity indicates the claims or fields did not contain a usable identity.
	ErrInvalidIdentity = errors.New("users: invalid identity")
)

// ServiceConfig describes the dependencies of the account service.
type ServiceConfig struct {
	Database      *gorm.DB
	Clock         func() time.Time
	IDProvider    shop.IDProvider
	Logger        *zap.Logger
	MaxAttempts   int
	AttemptWindow time.Duration
}

// Service manages registered accounts. It is the credential side of the
// session lifecycle: sign-up, sign-in, and Google identity resolution.
// Failed sign-ins are throttled per email.
type Service struct {
	db            *gorm.DB
	now           func() time.Time
	idProvider    shop.IDProvider
	logger        *zap.Logger
	maxAttempts   int
	attemptWindow time.Duration

	mu       sync.Mutex
	attempts map[string][]time.Time
}

// NewService constructs the account service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.IDProvider == nil {
		return nil, errMissingIDProvider
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	window := cfg.AttemptWindow
	if window <= 0 {
		window = defaultAttemptWindow
	}
	return &Service{
		db:            cfg.Database,
		now:           clock,
		idProvider:    cfg.IDProvider,
		logger:        logger,
		maxAttempts:   maxAttempts,
		attemptWindow: window,
		attempts:      make(map[string][]time.Time),
	}, nil
}

// SignUp registers a password account. A collision on the email surfaces as
// shop.ErrDuplicateIdentity so the caller can render the dedicated message.
func (s *Service) SignUp(ctx context.Context, name, email, password string) (shop.User, error) {
	name = normalize(name)
	email = normalizeEmail(email)
	if name == "" || email == "" || !strings.Contains(email, "@") {
		return shop.User{}, ErrInvalidIdentity
	}
	if len(password) < minPasswordLength {
		return shop.User{}, fmt.Errorf("%w: need at least %d characters", ErrWeakPassword, minPasswordLength)
	}

	var existing Account
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&existing).Error
	if err == nil {
		return shop.User{}, fmt.Errorf("%w: %s", shop.ErrDuplicateIdentity, email)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return shop.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return shop.User{}, fmt.Errorf("hash password: %w", err)
	}
	id, err := s.idProvider.NewID()
	if err != nil {
		return shop.User{}, fmt.Errorf("generate account id: %w", err)
	}

	account := Account{
		ID:           id,
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		Provider:     ProviderPassword,
		LastSeenAt:   s.now(),
	}
	if err := s.db.WithContext(ctx).Create(&account).Error; err != nil {
		if isUniqueViolation(err) {
			return shop.User{}, fmt.Errorf("%w: %s", shop.ErrDuplicateIdentity, email)
		}
		return shop.User{}, err
	}

	s.logger.Info("account registered", zap.String("account_id", account.ID))
	return asUser(account), nil
}

// SignIn confirms a password credential. Unknown emails and wrong passwords
// both surface as shop.ErrInvalidCredentials; repeated failures on one email
// surface as shop.ErrRateLimited until the window passes.
func (s *Service) SignIn(ctx context.Context, email, password string) (shop.User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return shop.User{}, shop.ErrInvalidCredentials
	}
	if s.throttled(email) {
		return shop.User{}, fmt.Errorf("%w: retry after %s", shop.ErrRateLimited, s.attemptWindow)
	}

	var account Account
	err := s.db.WithContext(ctx).
		Where("email = ? AND provider = ?", email, ProviderPassword).
		First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.recordFailure(email)
		return shop.User{}, shop.ErrInvalidCredentials
	}
	if err != nil {
		return shop.User{}, err
	}

	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		s.recordFailure(email)
		return shop.User{}, shop.ErrInvalidCredentials
	}

	s.clearFailures(email)
	s.touch(ctx, account.ID)
	return asUser(account), nil
}

// ResolveGoogle maps verified Google claims onto an account, creating it on
// first sight and refreshing the profile fields afterwards.
func (s *Service) ResolveGoogle(ctx context.Context, claims auth.GoogleClaims) (shop.User, error) {
	subject := normalize(claims.Subject)
	if subject == "" {
		return shop.User{}, ErrInvalidIdentity
	}

	var account Account
	err := s.db.WithContext(ctx).
		Where("google_subject = ? AND provider = ?", subject, ProviderGoogle).
		First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		id, idErr := s.idProvider.NewID()
		if idErr != nil {
			return shop.User{}, fmt.Errorf("generate account id: %w", idErr)
		}
		account = Account{
			ID:            id,
			Email:         normalizeEmail(claims.Email),
			Name:          normalize(claims.Name),
			Provider:      ProviderGoogle,
			GoogleSubject: subject,
			AvatarURL:     normalize(claims.Picture),
			LastSeenAt:    s.now(),
		}
		if account.Name == "" {
			account.Name = account.Email
		}
		if createErr := s.db.WithContext(ctx).Create(&account).Error; createErr != nil {
			return shop.User{}, createErr
		}
		s.logger.Info("google account linked", zap.String("account_id", account.ID))
		return asUser(account), nil
	}
	if err != nil {
		return shop.User{}, err
	}

	updates := map[string]interface{}{"last_seen_at": s.now()}
	if email := normalizeEmail(claims.Email); email != "" && email != account.Email {
		updates["email"] = email
		account.Email = email
	}
	if name := normalize(claims.Name); name != "" && name != account.Name {
		updates["display_name"] = name
		account.Name = name
	}
	if avatar := normalize(claims.Picture); avatar != "" && avatar != account.AvatarURL {
		updates["avatar_url"] = avatar
		account.AvatarURL = avatar
	}
	if updateErr := s.db.WithContext(ctx).Model(&Account{}).
		Where("account_id = ?", account.ID).
		Updates(updates).Error; updateErr != nil {
		s.logger.Warn("google profile refresh failed",
			zap.String("account_id", account.ID), zap.Error(updateErr))
	}
	return asUser(account), nil
}

// ByID loads an account for a validated session token subject.
func (s *Service) ByID(ctx context.Context, accountID string) (shop.User, error) {
	var account Account
	err := s.db.WithContext(ctx).Where("account_id = ?", accountID).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shop.User{}, fmt.Errorf("%w: account %s", shop.ErrEntityNotFound, accountID)
	}
	if err != nil {
		return shop.User{}, err
	}
	return asUser(account), nil
}

func asUser(account Account) shop.User {
	return shop.User{
		ID:        account.ID,
		Name:      account.Name,
		Email:     account.Email,
		Provider:  account.Provider,
		AvatarURL: account.AvatarURL,
	}
}

func (s *Service) throttled(email string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-s.attemptWindow)
	recent := s.attempts[email][:0]
	for _, at := range s.attempts[email] {
		if at.After(cutoff) {
			recent = append(recent, at)
		}
	}
	s.attempts[email] = recent
	return len(recent) >= s.maxAttempts
}

func (s *Service) recordFailure(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[email] = append(s.attempts[email], s.now())
}

func (s *Service) clearFailures(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.attempts, email)
}

func (s *Service) touch(ctx context.Context, accountID string) {
	err := s.db.WithContext(ctx).Model(&Account{}).
		Where("account_id = ?", accountID).
		Update("last_seen_at", s.now()).Error
	if err != nil {
		s.logger.Warn("last seen update failed", zap.String("account_id", accountID), zap.Error(err))
	}
}

func isUniqueViolation(err error) bool {
	message := err.Error()
	return strings.Contains(message, "UNIQUE constraint failed") ||
		strings.Contains(message, "duplicate key value") ||
		strings.Contains(message, "23505")
}
