package usecase

import (
	"context"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const RoleAdmin = "ADMIN"

// JWTを発行する約束
type AccessTokenIssuer interface {
	Issue(storeID string, role string, now time.Time) (token string, expiresAt time.Time, err error)
}

// 入力パスワードと保存したハッシュを比べる約束
type PasswordVerifier interface {
	Verify(plain string, hashed string) bool
}

type AdminLoginInput struct {
	Password string `json:"password"`
}

type AdminLoginOutput struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	ExpiresIn   int       `json:"expires_in"`
}

// 分析画面は店舗共通のパスワード1つで入る
type AdminAuthUsecase struct {
	passwordHash string
	verifier     PasswordVerifier
	issuer       AccessTokenIssuer
	clock        Clock
}

func NewAdminAuthUsecase(passwordHash string, verifier PasswordVerifier, issuer AccessTokenIssuer, clock Clock) *AdminAuthUsecase {
	return &AdminAuthUsecase{
		passwordHash: passwordHash,
		verifier:     verifier,
		issuer:       issuer,
		clock:        clock,
	}
}

func (u *AdminAuthUsecase) Login(ctx context.Context, storeID string, in AdminLoginInput) (AdminLoginOutput, error) {
	if strings.TrimSpace(storeID) == "" {
		return AdminLoginOutput{}, NewHTTPError(http.StatusBadRequest, "invalid store id")
	}
	if in.Password == "" {
		return AdminLoginOutput{}, NewHTTPError(http.StatusBadRequest, "password is required")
	}

	//パスワード照合
	if !u.verifier.Verify(in.Password, u.passwordHash) {
		return AdminLoginOutput{}, NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}

	now := u.clock.Now()
	token, exp, err := u.issuer.Issue(storeID, RoleAdmin, now)
	if err != nil {
		return AdminLoginOutput{}, NewHTTPError(http.StatusInternalServerError, "token error")
	}

	return AdminLoginOutput{
		AccessToken: token,
		ExpiresAt:   exp,
		ExpiresIn:   int(exp.Sub(now).Seconds()),
	}, nil
}

// bcryptハッシュ化
type BcryptPasswordHasher struct {
	cost int
}

func NewBcryptPasswordHasher(cost int) *BcryptPasswordHasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &BcryptPasswordHasher{cost}
}

func (h *BcryptPasswordHasher) Hash(plain string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

// bcryptハッシュと平文を比較
type BcryptPasswordVerifier struct{}

func NewBcryptPasswordVerifier() *BcryptPasswordVerifier {
	return &BcryptPasswordVerifier{}
}

func (v *BcryptPasswordVerifier) Verify(plain string, hashed string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
	return err == nil
}
