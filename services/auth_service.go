package services

import (
	stderrors "errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/leebenson/conform"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/shashank8536/Campus-MarketPlace/config"
	"github.com/shashank8536/Campus-MarketPlace/db"
	errs "github.com/shashank8536/Campus-MarketPlace/errors"
	"github.com/shashank8536/Campus-MarketPlace/models"
	jwtPackage "github.com/shashank8536/Campus-MarketPlace/services/jwt"
)

// AuthService issues and revokes the session tokens the messaging core
// authenticates with. Account registration lives in the accounts service.
type AuthService interface {
	Login(request *models.LoginRequest) (*models.LoginResponse, error)
	Logout(accessToken, email string) error
	RegisterDeviceToken(userID uuid.UUID, deviceToken string) error
}

type authService struct {
	Config   *config.Config
	authRepo db.AuthRepository
}

func NewAuthService(authRepo db.AuthRepository, conf *config.Config) AuthService {
	return &authService{
		Config:   conf,
		authRepo: authRepo,
	}
}

func (a *authService) Login(request *models.LoginRequest) (*models.LoginResponse, error) {
	if err := conform.Strings(request); err != nil {
		return nil, errs.New("invalid login request", http.StatusBadRequest)
	}

	foundUser, err := a.authRepo.FindUserByEmail(request.Email)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.New("invalid email or password", http.StatusUnauthorized)
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(foundUser.HashedPassword), []byte(request.Password)); err != nil {
		return nil, errs.New("invalid email or password", http.StatusUnauthorized)
	}

	accessToken, refreshToken, err := jwtPackage.GenerateTokenPair(foundUser.Email, a.Config.JWTSecret, foundUser.ID)
	if err != nil {
		return nil, err
	}

	return &models.LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         *foundUser,
	}, nil
}

func (a *authService) Logout(accessToken, email string) error {
	blacklist := &models.Blacklist{
		Email: email,
		Token: accessToken,
	}
	return a.authRepo.AddToBlackList(blacklist)
}

func (a *authService) RegisterDeviceToken(userID uuid.UUID, deviceToken string) error {
	if deviceToken == "" {
		return errs.New("device token is required", http.StatusBadRequest)
	}
	return a.authRepo.UpdateDeviceToken(userID, deviceToken)
}
