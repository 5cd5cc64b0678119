package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/kenha/kenhavate/internal/config"
	"github.com/kenha/kenhavate/internal/dto"
	"github.com/kenha/kenhavate/internal/metrics"
	"github.com/kenha/kenhavate/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired refresh token")
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailNotVerified   = errors.New("email address has not been verified")
	ErrEmailVerified      = errors.New("email address is already verified")
	ErrAccountBanned      = errors.New("account is banned")
	ErrAccountSuspended   = errors.New("account is suspended")
	ErrInvalidOTP         = errors.New("invalid verification code")
	ErrOTPExpired         = errors.New("verification code has expired")
	ErrOTPAttempts        = errors.New("too many attempts for this verification code")
	ErrOTPThrottled       = errors.New("a verification code was sent recently, please wait before requesting another")
)

const (
	otpMaxAttempts   = 5
	otpResendBackoff = 60 * time.Second
)

type AuthService struct {
	db     *gorm.DB
	cfg    *config.Config
	mailer Mailer
	events *Dispatcher
	audit  *AuditService
	now    func() time.Time
}

func NewAuthService(db *gorm.DB, cfg *config.Config, mailer Mailer, events *Dispatcher, audit *AuditService) *AuthService {
	return &AuthService{
		db:     db,
		cfg:    cfg,
		mailer: mailer,
		events: events,
		audit:  audit,
		now:    time.Now,
	}
}

// Register creates an unverified account and mails a registration code.
func (s *AuthService) Register(ctx context.Context, req *dto.RegisterRequest, ip string) (*dto.OTPSentResponse, error) {
	email := normalizeEmail(req.Email)

	var count int64
	if err := s.db.Model(&models.User{}).Unscoped().Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if count > 0 {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	primary := models.RoleUser
	if s.isAdminEmail(email) {
		primary = models.RoleAdministrator
	}

	user := models.User{
		ID:            uuid.New(),
		Name:          strings.TrimSpace(req.Name),
		Email:         email,
		Password:      string(hash),
		Role:          primary,
		AccountStatus: models.AccountActive,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		var role models.Role
		if err := tx.Where("name = ?", primary).First(&role).Error; err != nil {
			return fmt.Errorf("failed to load role %s: %w", primary, err)
		}
		user.Roles = []models.Role{role}
		if err := tx.Create(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrEmailTaken
			}
			return fmt.Errorf("failed to create user: %w", err)
		}
		return s.audit.Record(tx, Actor{UserID: user.ID, IP: ip}, "user.registered", EntityUser, user.ID.String(), nil, ToUserResponse(&user))
	})
	if err != nil {
		return nil, err
	}

	return s.issueOTP(ctx, email, models.OTPPurposeRegistration)
}

// Login checks the password and mails a login code. Tokens are only issued
// once the code is verified.
func (s *AuthService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.OTPSentResponse, error) {
	var user models.User
	if err := s.db.Where("email = ?", normalizeEmail(req.Email)).First(&user).Error; err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := accountUsable(&user); err != nil {
		return nil, err
	}
	if user.EmailVerifiedAt == nil {
		return nil, ErrEmailNotVerified
	}

	return s.issueOTP(ctx, user.Email, models.OTPPurposeLogin)
}

// ResendOTP replaces the outstanding code for (email, purpose). Requests
// closer together than a minute are refused.
func (s *AuthService) ResendOTP(ctx context.Context, req *dto.ResendOTPRequest) (*dto.OTPSentResponse, error) {
	email := normalizeEmail(req.Email)

	var user models.User
	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, ErrUserNotFound
	}
	switch req.Purpose {
	case models.OTPPurposeRegistration:
		if user.EmailVerifiedAt != nil {
			return nil, ErrEmailVerified
		}
	case models.OTPPurposeLogin:
		if err := accountUsable(&user); err != nil {
			return nil, err
		}
		if user.EmailVerifiedAt == nil {
			return nil, ErrEmailNotVerified
		}
	}

	var last models.OTP
	err := s.db.Where("email = ? AND purpose = ?", email, req.Purpose).Order("created_at DESC").First(&last).Error
	if err == nil && s.now().Sub(last.CreatedAt) < otpResendBackoff {
		return nil, ErrOTPThrottled
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load last code: %w", err)
	}

	return s.issueOTP(ctx, email, req.Purpose)
}

// VerifyOTP consumes a code and returns a token pair. A registration code
// also marks the email verified.
func (s *AuthService) VerifyOTP(ctx context.Context, req *dto.VerifyOTPRequest) (*dto.AuthResponse, error) {
	email := normalizeEmail(req.Email)
	now := s.now()

	var otp models.OTP
	err := s.db.Where("email = ? AND purpose = ? AND used_at IS NULL", email, req.Purpose).
		Order("created_at DESC").
		First(&otp).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidOTP
		}
		return nil, fmt.Errorf("failed to load code: %w", err)
	}

	if now.After(otp.ExpiresAt) {
		return nil, ErrOTPExpired
	}
	if otp.Attempts >= otpMaxAttempts {
		return nil, ErrOTPAttempts
	}

	if subtle.ConstantTimeCompare([]byte(hashToken(req.Code)), []byte(otp.CodeHash)) != 1 {
		if err := s.db.Model(&otp).UpdateColumn("attempts", gorm.Expr("attempts + 1")).Error; err != nil {
			return nil, fmt.Errorf("failed to count attempt: %w", err)
		}
		if otp.Attempts+1 >= otpMaxAttempts {
			return nil, ErrOTPAttempts
		}
		return nil, ErrInvalidOTP
	}

	// Conditional update so two concurrent verifications cannot both win.
	res := s.db.Model(&models.OTP{}).Where("id = ? AND used_at IS NULL", otp.ID).Update("used_at", now)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to consume code: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrInvalidOTP
	}

	user, err := s.LoadUser(emailLookup(email))
	if err != nil {
		return nil, err
	}
	if err := accountUsable(user); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{"last_login_at": now}
	firstVerification := req.Purpose == models.OTPPurposeRegistration && user.EmailVerifiedAt == nil
	if firstVerification {
		updates["email_verified_at"] = now
	}
	if err := s.db.Model(user).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	if firstVerification {
		s.events.Dispatch(Event{Type: EventUserRegistered, UserID: user.ID, At: now})
	}
	s.events.Dispatch(Event{Type: EventUserLoggedIn, UserID: user.ID, At: now})

	return s.generateTokenPair(user)
}

func (s *AuthService) Refresh(req *dto.RefreshRequest) (*dto.AuthResponse, error) {
	tokenHash := hashToken(req.RefreshToken)

	var stored models.RefreshToken
	if err := s.db.Where("token_hash = ? AND revoked = ?", tokenHash, false).First(&stored).Error; err != nil {
		return nil, ErrInvalidToken
	}

	res := s.db.Model(&models.RefreshToken{}).Where("id = ? AND revoked = ?", stored.ID, false).Update("revoked", true)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to rotate refresh token: %w", res.Error)
	}
	if res.RowsAffected == 0 || s.now().After(stored.ExpiresAt) {
		return nil, ErrInvalidToken
	}

	user, err := s.LoadUser(idLookup(stored.UserID))
	if err != nil {
		return nil, err
	}
	if err := accountUsable(user); err != nil {
		return nil, err
	}

	return s.generateTokenPair(user)
}

func (s *AuthService) Logout(req *dto.LogoutRequest) error {
	tokenHash := hashToken(req.RefreshToken)
	return s.db.Model(&models.RefreshToken{}).
		Where("token_hash = ?", tokenHash).
		Update("revoked", true).Error
}

// LoadActiveUser loads the account behind a token and refuses accounts that
// are not active.
func (s *AuthService) LoadActiveUser(id uuid.UUID) (*models.User, error) {
	user, err := s.LoadUser(idLookup(id))
	if err != nil {
		return nil, err
	}
	if err := accountUsable(user); err != nil {
		return nil, err
	}
	return user, nil
}

type userLookup func(*gorm.DB) *gorm.DB

func idLookup(id uuid.UUID) userLookup {
	return func(db *gorm.DB) *gorm.DB { return db.Where("id = ?", id) }
}

func emailLookup(email string) userLookup {
	return func(db *gorm.DB) *gorm.DB { return db.Where("email = ?", email) }
}

// LoadUser fetches a user with their roles.
func (s *AuthService) LoadUser(lookup userLookup) (*models.User, error) {
	var user models.User
	if err := s.db.Scopes(lookup).Preload("Roles").First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}

func (s *AuthService) issueOTP(ctx context.Context, email, purpose string) (*dto.OTPSentResponse, error) {
	code, err := generateOTPCode()
	if err != nil {
		return nil, err
	}
	now := s.now()
	otp := models.OTP{
		ID:        uuid.New(),
		Email:     email,
		Purpose:   purpose,
		CodeHash:  hashToken(code),
		ExpiresAt: now.Add(s.cfg.OTPTTL),
		CreatedAt: now,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		// Only the newest code for (email, purpose) stays usable.
		if err := tx.Model(&models.OTP{}).
			Where("email = ? AND purpose = ? AND used_at IS NULL", email, purpose).
			Update("used_at", now).Error; err != nil {
			return err
		}
		return tx.Create(&otp).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store verification code: %w", err)
	}

	subject := "Your KeNHAVATE verification code"
	body := fmt.Sprintf("Your KeNHAVATE %s code is %s. It expires in %d minutes.", purpose, code, int(s.cfg.OTPTTL.Minutes()))
	if err := s.mailer.Send(ctx, email, subject, body); err != nil {
		slog.Error("failed to send verification code", "email", email, "purpose", purpose, "error", err)
		return nil, fmt.Errorf("failed to send verification code: %w", err)
	}
	metrics.OTPIssuedTotal.WithLabelValues(purpose).Inc()

	return &dto.OTPSentResponse{
		Message:   "Verification code sent.",
		Email:     email,
		Purpose:   purpose,
		ExpiresAt: otp.ExpiresAt,
	}, nil
}

func (s *AuthService) generateTokenPair(user *models.User) (*dto.AuthResponse, error) {
	accessToken, err := s.generateAccessToken(user)
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.generateRefreshToken(user)
	if err != nil {
		return nil, err
	}

	return &dto.AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         ToUserResponse(user),
	}, nil
}

func (s *AuthService) generateAccessToken(user *models.User) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub":   user.ID.String(),
		"email": user.Email,
		"role":  user.Role,
		"iat":   now.Unix(),
		"exp":   now.Add(s.cfg.JWTAccessExpiry).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

func (s *AuthService) generateRefreshToken(user *models.User) (string, error) {
	rawBytes := make([]byte, 32)
	if _, err := rand.Read(rawBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	rawToken := base64.URLEncoding.EncodeToString(rawBytes)

	record := models.RefreshToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		TokenHash: hashToken(rawToken),
		ExpiresAt: s.now().Add(s.cfg.JWTRefreshExpiry),
	}

	if err := s.db.Create(&record).Error; err != nil {
		return "", fmt.Errorf("failed to store refresh token: %w", err)
	}

	return rawToken, nil
}

func (s *AuthService) isAdminEmail(email string) bool {
	for _, e := range strings.Split(s.cfg.AdminEmails, ",") {
		if normalizeEmail(e) == email && email != "" {
			return true
		}
	}
	return false
}

// ToUserResponse is the public view of an account.
func ToUserResponse(u *models.User) dto.UserResponse {
	return dto.UserResponse{
		ID:            u.ID,
		Name:          u.Name,
		Email:         u.Email,
		Role:          u.Role,
		Roles:         u.RoleNames(),
		AccountStatus: u.AccountStatus,
		Dashboard:     models.DashboardFor(u.Role),
	}
}

func accountUsable(u *models.User) error {
	switch u.AccountStatus {
	case models.AccountBanned:
		return ErrAccountBanned
	case models.AccountSuspended:
		return ErrAccountSuspended
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func generateOTPCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("failed to generate verification code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return fmt.Sprintf("%x", h)
}
