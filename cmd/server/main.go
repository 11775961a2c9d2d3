package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // Драйвер PostgreSQL

	"github.com/woven-app/server/internal/apns"
	"github.com/woven-app/server/internal/config"
	"github.com/woven-app/server/internal/discovery"
	"github.com/woven-app/server/internal/handlers"
	appmiddleware "github.com/woven-app/server/internal/middleware"
	"github.com/woven-app/server/internal/repository"
	"github.com/woven-app/server/internal/services"
	"github.com/woven-app/server/internal/storage"
)

const (
	defaultReadTimeout  = 30 * time.Second
	defaultWriteTimeout = 30 * time.Second
	defaultIdleTimeout  = 60 * time.Second
	shutdownTimeout     = 10 * time.Second
)

// Структура для хранения инициализированных зависимостей.
type dependencies struct {
	db          *sqlx.DB
	fileStorage storage.FileStorage

	authHandler          *handlers.AuthHandler
	userHandler          *handlers.UserHandler
	vaultHandler         *handlers.VaultHandler
	friendshipHandler    *handlers.FriendshipHandler
	accessRequestHandler *handlers.AccessRequestHandler
	mediaHandler         *handlers.MediaHandler
	deviceHandler        *handlers.DeviceHandler
}

// main - точка входа. Вызывает run и обрабатывает ошибку.
func main() {
	if err := run(); err != nil {
		log.Printf("Ошибка выполнения сервера: %v", err)
		os.Exit(1)
	}
}

// run содержит основную логику запуска сервера и возвращает ошибку.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}
	log.Printf("Запуск сервера %s...", cfg.AppName)

	// Инициализация зависимостей
	deps, err := setupDependencies(cfg)
	if err != nil {
		return fmt.Errorf("ошибка инициализации зависимостей: %w", err)
	}
	defer func() {
		if deps.db != nil {
			if closeErr := deps.db.Close(); closeErr != nil {
				log.Printf("Ошибка закрытия соединения с БД: %v", closeErr)
			}
		}
	}()

	// Настройка роутера
	r := setupRouter(cfg, deps)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:      r,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		IdleTimeout:  defaultIdleTimeout,
	}

	// mDNS-анонс для обнаружения сервера в локальной сети.
	// Ошибка анонса не мешает работе самого API.
	if cfg.MDNSEnabled {
		advertiser, mdnsErr := discovery.Start(cfg.ServerPort)
		if mdnsErr != nil {
			log.Printf("Ошибка запуска mDNS-анонса: %v", mdnsErr)
		} else {
			defer advertiser.Stop()
		}
	}

	// Запускаем сервер в отдельной горутине, чтобы дождаться сигнала завершения
	errCh := make(chan error, 1)
	go func() {
		var serveErr error
		if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
			log.Printf("Запуск HTTPS-сервера на порту %s...", cfg.ServerPort)
			serveErr = server.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			log.Printf("Запуск HTTP-сервера на порту %s (TLS не сконфигурирован)...", cfg.ServerPort)
			serveErr = server.ListenAndServe()
		}
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- serveErr
		}
	}()

	// Ожидание сигнала завершения
	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err = <-errCh:
		return fmt.Errorf("ошибка запуска сервера: %w", err)
	case sig := <-stopCh:
		log.Printf("Получен сигнал %v, завершение работы...", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err = server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ошибка остановки сервера: %w", err)
	}

	log.Println("Сервер остановлен.")
	return nil
}

// setupDependencies инициализирует и возвращает все необходимые зависимости сервера.
func setupDependencies(cfg *config.Config) (*dependencies, error) {
	deps := &dependencies{}
	var err error

	// 1. Подключение к БД и миграции
	deps.db, err = repository.NewPostgresDB(cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации БД: %w", err)
	}
	log.Println("Соединение с БД успешно установлено.")

	if err = repository.RunMigrations(context.Background(), deps.db); err != nil {
		closeDB(deps.db)
		return nil, fmt.Errorf("ошибка применения миграций: %w", err)
	}

	// 2. Инициализация клиента MinIO
	deps.fileStorage, err = storage.NewMinioClient(storage.MinioConfig{
		Endpoint:        cfg.MinioEndpoint,
		AccessKeyID:     cfg.MinioUser,
		SecretAccessKey: cfg.MinioPassword,
		UseSSL:          cfg.MinioUseSSL,
		BucketName:      cfg.MinioBucket,
	})
	if err != nil {
		closeDB(deps.db)
		return nil, fmt.Errorf("ошибка инициализации клиента MinIO: %w", err)
	}

	// 3. Создание репозиториев
	userRepo := repository.NewPostgresUserRepository(deps.db)
	vaultRepo := repository.NewPostgresVaultRepository(deps.db)
	friendRepo := repository.NewPostgresFriendshipRepository(deps.db)
	accessRepo := repository.NewPostgresAccessRequestRepository(deps.db)
	mediaRepo := repository.NewPostgresMediaRepository(deps.db)
	deviceRepo := repository.NewPostgresDeviceRepository(deps.db)

	// 4. Уведомления: APNs включается только при наличии ключа
	notifier := setupNotifier(cfg, deviceRepo)

	// 5. Создание сервисов
	tokenTTL := time.Duration(cfg.AccessTokenTTLMinutes) * time.Minute
	authService := services.NewAuthService(userRepo, cfg.JWTSecret, tokenTTL)
	userService := services.NewUserService(userRepo)
	vaultService := services.NewVaultService(vaultRepo, userRepo, friendRepo, mediaRepo, deps.fileStorage, notifier)
	friendshipService := services.NewFriendshipService(friendRepo, userRepo, notifier)
	accessRequestService := services.NewAccessRequestService(accessRepo, vaultRepo, userRepo, notifier)
	mediaService := services.NewMediaService(mediaRepo, vaultRepo, userRepo, deps.fileStorage)
	deviceService := services.NewDeviceService(deviceRepo)

	// 6. Создание обработчиков
	deps.authHandler = handlers.NewAuthHandler(authService)
	deps.userHandler = handlers.NewUserHandler(userService)
	deps.vaultHandler = handlers.NewVaultHandler(vaultService)
	deps.friendshipHandler = handlers.NewFriendshipHandler(friendshipService)
	deps.accessRequestHandler = handlers.NewAccessRequestHandler(accessRequestService)
	deps.mediaHandler = handlers.NewMediaHandler(mediaService)
	deps.deviceHandler = handlers.NewDeviceHandler(deviceService)

	return deps, nil
}

// setupNotifier создает рассыльщик уведомлений: APNs при наличии ключа,
// иначе заглушку.
func setupNotifier(cfg *config.Config, deviceRepo repository.DeviceRepository) services.Notifier {
	if cfg.APNSKeyPath == "" {
		log.Println("APNs не сконфигурирован, push-уведомления отключены.")
		return services.NewNoopNotifier()
	}

	client, err := apns.NewClient(apns.Config{
		KeyPath:  cfg.APNSKeyPath,
		KeyID:    cfg.APNSKeyID,
		TeamID:   cfg.APNSTeamID,
		BundleID: cfg.APNSBundleID,
	})
	if err != nil {
		log.Printf("Ошибка инициализации клиента APNs: %v (push-уведомления отключены)", err)
		return services.NewNoopNotifier()
	}

	log.Println("Клиент APNs успешно инициализирован.")
	return services.NewNotifier(deviceRepo, client)
}

// setupRouter настраивает и возвращает роутер chi.
func setupRouter(cfg *config.Config, deps *dependencies) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("pong\n"))
	})

	r.Route("/api", func(r chi.Router) {
		// Публичные маршруты (регистрация, вход)
		r.Post("/auth/signup", deps.authHandler.Register)
		r.Post("/auth/login", deps.authHandler.Login)

		// Приватные маршруты (требуют аутентификации)
		r.Group(func(r chi.Router) {
			r.Use(appmiddleware.NewAuthenticator(cfg.JWTSecret))

			r.Route("/users", func(r chi.Router) {
				r.Get("/me", deps.userHandler.Me)
				r.Patch("/me", deps.userHandler.UpdateMe)
				r.Get("/{inviteCode}", deps.userHandler.ByInviteCode)
			})

			r.Route("/vaults", func(r chi.Router) {
				r.Post("/", deps.vaultHandler.Create)
				r.Get("/", deps.vaultHandler.List)
				r.Get("/invites", deps.vaultHandler.PendingInvites)
				r.Route("/{vaultID}", func(r chi.Router) {
					r.Get("/", deps.vaultHandler.Get)
					r.Patch("/", deps.vaultHandler.Update)
					r.Delete("/", deps.vaultHandler.Delete)
					r.Post("/invite", deps.vaultHandler.Invite)
					r.Post("/accept", deps.vaultHandler.AcceptInvite)
					r.Post("/decline", deps.vaultHandler.DeclineInvite)
					r.Post("/leave", deps.vaultHandler.Leave)
					r.Get("/access-requests", deps.accessRequestHandler.PendingForVault)
				})
			})

			r.Route("/friends", func(r chi.Router) {
				r.Post("/request", deps.friendshipHandler.SendRequest)
				r.Get("/", deps.friendshipHandler.List)
				r.Get("/pending", deps.friendshipHandler.Pending)
				r.Get("/sent", deps.friendshipHandler.Sent)
				r.Post("/{friendshipID}/accept", deps.friendshipHandler.Accept)
				r.Post("/{friendshipID}/decline", deps.friendshipHandler.Decline)
				r.Delete("/{friendID}", deps.friendshipHandler.Remove)
			})

			r.Route("/access-requests", func(r chi.Router) {
				r.Post("/", deps.accessRequestHandler.Create)
				r.Get("/{requestID}", deps.accessRequestHandler.Get)
				r.Post("/{requestID}/approve", deps.accessRequestHandler.Approve)
				r.Post("/{requestID}/deny", deps.accessRequestHandler.Deny)
			})

			r.Route("/media", func(r chi.Router) {
				r.Post("/", deps.mediaHandler.Upload)
				r.Get("/vault/{vaultID}", deps.mediaHandler.ListByVault)
				r.Get("/{mediaID}/view", deps.mediaHandler.View)
				r.Delete("/{mediaID}", deps.mediaHandler.Delete)
			})

			r.Route("/devices", func(r chi.Router) {
				r.Post("/register", deps.deviceHandler.Register)
				r.Get("/", deps.deviceHandler.List)
				r.Delete("/{deviceID}", deps.deviceHandler.Unregister)
			})
		})
	})
	return r
}

// closeDB закрывает соединение с БД при ошибке инициализации.
func closeDB(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("Ошибка закрытия соединения с БД: %v", err)
	}
}
