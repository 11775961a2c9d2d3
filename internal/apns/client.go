// Package apns отправляет push-уведомления через Apple Push Notification service.
package apns

import (
	"fmt"
	"log"

	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"
)

// Окружения APNs.
const (
	EnvironmentSandbox    = "sandbox"
	EnvironmentProduction = "production"
)

// Config содержит параметры подключения к APNs (token-based аутентификация .p8).
type Config struct {
	KeyPath  string // Путь к ключу AuthKey_XXXXXXXXXX.p8
	KeyID    string // ID ключа из Apple Developer Portal
	TeamID   string // ID команды
	BundleID string // Bundle ID приложения (apns-topic)
}

// Client отправляет уведомления в APNs. Для каждого устройства выбирается
// sandbox- или production-эндпоинт в зависимости от его окружения.
type Client struct {
	sandbox    *apns2.Client
	production *apns2.Client
	bundleID   string
}

// NewClient создает клиент APNs из .p8-ключа.
func NewClient(cfg Config) (*Client, error) {
	authKey, err := token.AuthKeyFromFile(cfg.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения ключа APNs '%s': %w", cfg.KeyPath, err)
	}

	t := &token.Token{
		AuthKey: authKey,
		KeyID:   cfg.KeyID,
		TeamID:  cfg.TeamID,
	}

	log.Printf("[APNs] Клиент инициализирован (KeyID %s, топик %s)", cfg.KeyID, cfg.BundleID)
	return &Client{
		sandbox:    apns2.NewTokenClient(t).Development(),
		production: apns2.NewTokenClient(t).Production(),
		bundleID:   cfg.BundleID,
	}, nil
}

// Send отправляет alert-уведомление на устройство.
// Дополнительные данные (data) попадают в корень полезной нагрузки и
// доступны приложению при обработке уведомления.
func (c *Client) Send(deviceToken, title, body string, data map[string]interface{}, environment string) error {
	p := payload.NewPayload().
		AlertTitle(title).
		AlertBody(body).
		Sound("default").
		Badge(1)
	for key, value := range data {
		p = p.Custom(key, value)
	}

	notification := &apns2.Notification{
		DeviceToken: deviceToken,
		Topic:       c.bundleID,
		Payload:     p,
		Priority:    apns2.PriorityHigh,
		PushType:    apns2.PushTypeAlert,
	}

	client := c.sandbox
	if environment == EnvironmentProduction {
		client = c.production
	}

	res, err := client.Push(notification)
	if err != nil {
		return fmt.Errorf("ошибка отправки уведомления: %w", err)
	}
	if !res.Sent() {
		// 410 Unregistered — токен устарел, подчистка остается на совести клиента
		return fmt.Errorf("уведомление отклонено APNs: %d %s", res.StatusCode, res.Reason)
	}

	log.Printf("[APNs] Уведомление отправлено на устройство %.8s... (%s)", deviceToken, environment)
	return nil
}
