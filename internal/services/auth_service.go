package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/woven-app/server/internal/models"
	"github.com/woven-app/server/internal/repository"
)

// AuthService определяет интерфейс для сервиса аутентификации.
type AuthService interface {
	Register(req *models.SignUpRequest) (*models.AuthResponse, error)
	Login(req *models.LoginRequest) (*models.AuthResponse, error)
}

// Длина инвайт-кода в байтах (в hex-представлении — вдвое длиннее).
const inviteCodeBytes = 4

// Структура для пользовательских данных в JWT (claims).
type jwtClaims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

// Убедимся, что authService удовлетворяет интерфейсу AuthService.
var _ AuthService = (*authService)(nil)

type authService struct {
	userRepo  repository.UserRepository
	jwtSecret []byte
	tokenTTL  time.Duration
}

// NewAuthService создает новый экземпляр сервиса аутентификации.
func NewAuthService(userRepo repository.UserRepository, jwtSecret string, tokenTTL time.Duration) AuthService {
	return &authService{
		userRepo:  userRepo,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
	}
}

// Register регистрирует нового пользователя и сразу выдает ему токен.
func (s *authService) Register(req *models.SignUpRequest) (*models.AuthResponse, error) {
	ctx := context.Background() // Используем фоновый контекст для операций сервиса

	// Хешируем пароль
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("[AuthService] Ошибка хеширования пароля для '%s': %v", req.Username, err)
		return nil, errors.New("внутренняя ошибка сервера при хешировании пароля")
	}

	// Генерируем публичный инвайт-код пользователя
	inviteCode, err := generateInviteCode()
	if err != nil {
		log.Printf("[AuthService] Ошибка генерации инвайт-кода для '%s': %v", req.Username, err)
		return nil, errors.New("внутренняя ошибка сервера при генерации инвайт-кода")
	}

	user := &models.User{
		Username:     req.Username,
		Email:        strings.ToLower(req.Email),
		PasswordHash: string(hashedPassword),
		FullName:     req.FullName,
		InviteCode:   &inviteCode,
	}

	// Создаем пользователя через репозиторий
	userID, err := s.userRepo.CreateUser(ctx, user)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrUsernameTaken):
			log.Printf("[AuthService] Попытка регистрации с занятым именем: %s", req.Username)
			return nil, ErrUsernameTaken // Возвращаем ошибку слоя сервиса
		case errors.Is(err, repository.ErrEmailTaken):
			log.Printf("[AuthService] Попытка регистрации с занятым email: %s", req.Email)
			return nil, ErrEmailTaken
		}
		log.Printf("[AuthService] Непредвиденная ошибка репозитория при регистрации '%s': %v", req.Username, err)
		return nil, errors.New("внутренняя ошибка сервера при создании пользователя")
	}
	user.ID = userID

	token, err := s.generateJWT(userID)
	if err != nil {
		log.Printf("[AuthService] Ошибка генерации JWT для '%s': %v", req.Username, err)
		return nil, errors.New("внутренняя ошибка сервера при генерации токена")
	}

	log.Printf("[AuthService] Пользователь '%s' успешно зарегистрирован (id=%d)", req.Username, userID)
	return authResponse(user, token), nil
}

// Login аутентифицирует пользователя по email или имени пользователя
// и возвращает JWT токен.
func (s *authService) Login(req *models.LoginRequest) (*models.AuthResponse, error) {
	ctx := context.Background()

	user, err := s.userRepo.GetUserByIdentifier(ctx, req.Identifier)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			log.Printf("[AuthService] Попытка входа несуществующего пользователя: %s", req.Identifier)
			return nil, ErrInvalidCredentials // Общая ошибка для несуществующего пользователя и неверного пароля
		}
		log.Printf("[AuthService] Ошибка репозитория при поиске '%s': %v", req.Identifier, err)
		return nil, errors.New("внутренняя ошибка сервера при поиске пользователя")
	}

	// Сравниваем предоставленный пароль с хешем из базы данных
	if err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		log.Printf("[AuthService] Неверный пароль для пользователя: %s", req.Identifier)
		return nil, ErrInvalidCredentials // Общая ошибка
	}

	token, err := s.generateJWT(user.ID)
	if err != nil {
		log.Printf("[AuthService] Ошибка генерации JWT для '%s': %v", req.Identifier, err)
		return nil, errors.New("внутренняя ошибка сервера при генерации токена")
	}

	log.Printf("[AuthService] Пользователь '%s' успешно аутентифицирован", user.Username)
	return authResponse(user, token), nil
}

// generateJWT создает и подписывает JWT токен для пользователя.
func (s *authService) generateJWT(userID int64) (string, error) {
	claims := jwtClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    "woven-server",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedToken, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("ошибка подписи JWT: %w", err)
	}

	return signedToken, nil
}

// generateInviteCode генерирует публичный инвайт-код пользователя:
// случайные байты в верхнем hex-регистре (например, "A1B2C3D4").
func generateInviteCode() (string, error) {
	buf := make([]byte, inviteCodeBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("ошибка чтения случайных байт: %w", err)
	}
	return strings.ToUpper(hex.EncodeToString(buf)), nil
}

func authResponse(user *models.User, token string) *models.AuthResponse {
	return &models.AuthResponse{
		AccessToken: token,
		UserID:      user.ID,
		Username:    user.Username,
		Email:       user.Email,
		FullName:    user.FullName,
		InviteCode:  user.InviteCode,
	}
}

// Кастомные ошибки сервиса.
var (
	ErrInvalidCredentials = errors.New("неверный логин или пароль")
	ErrUsernameTaken      = errors.New("имя пользователя уже занято")
	ErrEmailTaken         = errors.New("email уже зарегистрирован")
)
