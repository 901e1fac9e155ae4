package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"sitter-link/internal/domain"
	"sitter-link/internal/email"
	"sitter-link/internal/phone"
	"sitter-link/internal/repository"
)

// UserService coordina reglas de negocio para cuentas de padres.
type UserService struct {
	logger        *zap.Logger
	users         repository.UserRepository
	emailSender   email.Sender
	jwt           *JWTService
	publicBaseURL string
}

func NewUserService(logger *zap.Logger, users repository.UserRepository, emailSender email.Sender, jwt *JWTService, publicBaseURL string) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		logger:        logger,
		users:         users,
		emailSender:   emailSender,
		jwt:           jwt,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

type SignupInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Mobile    string
}

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidEmail        = errors.New("invalid email")
	ErrEmailTaken          = errors.New("email already registered")
	ErrWeakPassword        = errors.New("password must be at least 8 characters")
	ErrMobileInvalid       = errors.New("invalid mobile number format")
	ErrAlreadyPremium      = errors.New("family is already on the premium plan")
	ErrUpgradeTokenInvalid = errors.New("upgrade link is invalid or expired")
)

const minPasswordLength = 8

func (s *UserService) Signup(ctx context.Context, input SignupInput) (domain.User, error) {
	if s.users == nil {
		return domain.User{}, errors.New("user service not configured")
	}

	emailAddr := normalizeEmail(input.Email)
	if !isPlausibleEmail(emailAddr) {
		return domain.User{}, ErrInvalidEmail
	}
	password := strings.TrimSpace(input.Password)
	if len(password) < minPasswordLength {
		return domain.User{}, ErrWeakPassword
	}
	mobile, err := normalizeOptionalMobile(input.Mobile)
	if err != nil {
		return domain.User{}, err
	}

	if _, err := s.users.GetByEmail(ctx, emailAddr); err == nil {
		return domain.User{}, ErrEmailTaken
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, err
	}

	hashBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, err
	}

	user := domain.User{
		ID:           uuid.NewString(),
		Email:        emailAddr,
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		Mobile:       mobile,
		PasswordHash: string(hashBytes),
		Plan:         domain.PlanFree,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.User{}, ErrEmailTaken
		}
		return domain.User{}, err
	}
	return user, nil
}

func (s *UserService) Authenticate(ctx context.Context, emailAddr, password string) (domain.User, error) {
	if s.users == nil {
		return domain.User{}, errors.New("user service not configured")
	}

	emailAddr = normalizeEmail(emailAddr)
	password = strings.TrimSpace(password)
	if emailAddr == "" || password == "" {
		return domain.User{}, ErrInvalidCredentials
	}
	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, err
	}
	if user.PasswordHash == "" {
		return domain.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return domain.User{}, ErrInvalidCredentials
	}
	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, id string) (domain.User, error) {
	if s.users == nil {
		return domain.User{}, errors.New("user service not configured")
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	return user, nil
}

func (s *UserService) GetFamily(ctx context.Context, userID string) (domain.Family, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return domain.Family{}, err
	}
	return domain.Family{
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Mobile:    user.Mobile,
		Notes:     user.FamilyNotes,
	}, nil
}

// UpdateFamily guarda el perfil familiar con el móvil en forma canónica.
func (s *UserService) UpdateFamily(ctx context.Context, userID string, family domain.Family) (domain.Family, error) {
	if s.users == nil {
		return domain.Family{}, errors.New("user service not configured")
	}
	mobile, err := normalizeOptionalMobile(family.Mobile)
	if err != nil {
		return domain.Family{}, err
	}
	family = domain.Family{
		FirstName: strings.TrimSpace(family.FirstName),
		LastName:  strings.TrimSpace(family.LastName),
		Mobile:    mobile,
		Notes:     strings.TrimSpace(family.Notes),
	}
	if err := s.users.UpdateFamily(ctx, userID, family); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Family{}, ErrUserNotFound
		}
		return domain.Family{}, err
	}
	return family, nil
}

// RequestUpgrade emite el enlace de confirmación del plan premium y lo envía
// por correo. El envío es best effort: el enlace se devuelve igualmente.
func (s *UserService) RequestUpgrade(ctx context.Context, userID string) (string, error) {
	if s.jwt == nil {
		return "", errors.New("user service not configured")
	}
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.Plan == domain.PlanPremium {
		return "", ErrAlreadyPremium
	}
	token, err := s.jwt.IssueUpgradeToken(user.ID)
	if err != nil {
		return "", err
	}
	link := s.publicBaseURL + "/confirm_upgrade?token=" + url.QueryEscape(token)

	if s.emailSender != nil {
		if err := s.emailSender.SendUpgradeLink(ctx, user.Email, link); err != nil {
			s.logger.Warn("send upgrade link failed", zap.Error(err), zap.String("user_id", user.ID))
		}
	}
	return link, nil
}

func (s *UserService) ConfirmUpgrade(ctx context.Context, token string) (domain.User, error) {
	if s.jwt == nil || s.users == nil {
		return domain.User{}, errors.New("user service not configured")
	}
	claims, err := s.jwt.ParseUpgradeToken(token)
	if err != nil {
		return domain.User{}, ErrUpgradeTokenInvalid
	}
	user, err := s.GetByID(ctx, claims.UserID)
	if err != nil {
		return domain.User{}, err
	}
	if user.Plan == domain.PlanPremium {
		return user, nil
	}
	if err := s.users.UpdatePlan(ctx, user.ID, domain.PlanPremium); err != nil {
		return domain.User{}, err
	}
	user.Plan = domain.PlanPremium
	s.logger.Info("family upgraded", zap.String("user_id", user.ID))
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isPlausibleEmail(email string) bool {
	at := strings.Index(email, "@")
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t")
}

func normalizeOptionalMobile(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	mobile := phone.Normalize(raw)
	if !phone.Valid(mobile) {
		return "", ErrMobileInvalid
	}
	return mobile, nil
}
