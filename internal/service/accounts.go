package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bcnelson/free-api/internal/auth"
	"github.com/bcnelson/free-api/internal/domain"
	"github.com/bcnelson/free-api/internal/storage"
	"github.com/bcnelson/free-api/internal/validation"
)

const defaultUserName = "User"

var (
	errInvalidCredentials = domain.NewError(domain.ErrUnauthorized, "Invalid email or password")
	errEmailTaken         = domain.NewError(domain.ErrAlreadyExists, "Email already registered")
)

// AccountService registers and authenticates dashboard users.
type AccountService struct {
	store      storage.Storage
	tokens     *auth.TokenIssuer
	verifier   auth.IdentityVerifier
	bcryptCost int
	logger     *zap.Logger
	now        func() time.Time
}

// NewAccountService creates a new AccountService. verifier may be nil, in
// which case the Firebase exchange reports the service as unavailable.
func NewAccountService(
	store storage.Storage,
	tokens *auth.TokenIssuer,
	verifier auth.IdentityVerifier,
	bcryptCost int,
	logger *zap.Logger,
) *AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountService{
		store:      store,
		tokens:     tokens,
		verifier:   verifier,
		bcryptCost: bcryptCost,
		logger:     logger,
		now:        time.Now,
	}
}

// Register creates a password account and signs a token for it.
func (s *AccountService) Register(ctx context.Context, req domain.RegisterRequest) (*domain.AuthResponse, error) {
	email := validation.NormalizeEmail(req.Email)

	var errs validation.ValidationErrors
	errs.AddError(validation.ValidateEmail(email))
	errs.AddError(validation.ValidatePassword(req.Password))
	errs.AddError(validation.ValidateName("name", req.Name))
	if err := errs.Err(); err != nil {
		return nil, err
	}

	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return nil, errEmailTaken
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	hash, err := auth.HashPassword(req.Password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &domain.User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return nil, errEmailTaken
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID))
	return s.authResponse(user)
}

// Login checks an email and password. Unknown emails, accounts without a
// password and wrong passwords all fail the same way.
func (s *AccountService) Login(ctx context.Context, req domain.LoginRequest) (*domain.AuthResponse, error) {
	email := validation.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, domain.NewError(domain.ErrInvalidInput, "email and password are required")
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, errInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	if !auth.VerifyPassword(user.PasswordHash, req.Password) {
		return nil, errInvalidCredentials
	}
	return s.authResponse(user)
}

// ExchangeFirebase verifies a Firebase ID token, finds or provisions the
// matching user and signs a token for it.
func (s *AccountService) ExchangeFirebase(ctx context.Context, idToken string) (*domain.AuthResponse, error) {
	if strings.TrimSpace(idToken) == "" {
		return nil, domain.NewError(domain.ErrInvalidInput, "idToken required")
	}
	if s.verifier == nil {
		return nil, domain.NewError(domain.ErrUnavailable, "Firebase authentication is not configured")
	}

	identity, err := s.verifier.VerifyIDToken(ctx, idToken)
	if err != nil {
		s.logger.Debug("firebase token rejected", zap.Error(err))
		return nil, domain.NewError(domain.ErrUnauthorized, "Invalid Firebase token")
	}

	user, err := s.store.GetUserByFirebaseUID(ctx, identity.UID)
	if errors.Is(err, domain.ErrNotFound) {
		user, err = s.provisionFirebaseUser(ctx, identity)
	}
	if err != nil {
		return nil, err
	}

	if user.Email == "" {
		user.Email = validation.NormalizeEmail(identity.Email)
	}
	return s.authResponse(user)
}

func (s *AccountService) provisionFirebaseUser(ctx context.Context, identity *auth.Identity) (*domain.User, error) {
	name := strings.TrimSpace(identity.Name)
	if name == "" {
		name = defaultUserName
	}

	user := &domain.User{
		ID:          uuid.New().String(),
		Email:       validation.NormalizeEmail(identity.Email),
		FirebaseUID: identity.UID,
		Name:        name,
		CreatedAt:   s.now().UTC(),
	}

	err := s.store.CreateUser(ctx, user)
	if err == nil {
		s.logger.Info("user provisioned from firebase", zap.String("user_id", user.ID))
		return user, nil
	}
	if !errors.Is(err, domain.ErrAlreadyExists) {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	// Lost a race with a concurrent exchange for the same UID.
	existing, lookupErr := s.store.GetUserByFirebaseUID(ctx, identity.UID)
	if lookupErr == nil {
		return existing, nil
	}
	if !errors.Is(lookupErr, domain.ErrNotFound) {
		return nil, fmt.Errorf("looking up user: %w", lookupErr)
	}
	// The email belongs to a different account.
	return nil, errEmailTaken
}

// Me returns the profile of userID.
func (s *AccountService) Me(ctx context.Context, userID string) (*domain.MeResponse, error) {
	user, err := s.store.GetUser(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NewError(domain.ErrNotFound, "User not found")
	}
	if err != nil {
		return nil, fmt.Errorf("looking up user: %w", err)
	}
	return &domain.MeResponse{User: user.Profile()}, nil
}

func (s *AccountService) authResponse(user *domain.User) (*domain.AuthResponse, error) {
	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	return &domain.AuthResponse{User: user.Profile(), Token: token}, nil
}
