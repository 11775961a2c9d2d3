package services

import (
	"context"
	"log"
	"time"

	"github.com/woven-app/server/internal/repository"
)

// PushSender отправляет push-уведомление на конкретное устройство.
// Реализуется клиентом APNs; в тестах подменяется заглушкой.
type PushSender interface {
	Send(deviceToken, title, body string, data map[string]interface{}, environment string) error
}

// Notifier рассылает push-уведомления на все устройства пользователя.
// Отправка асинхронная (fire-and-forget): ошибки доставки логируются,
// но не влияют на результат вызвавшей операции.
type Notifier interface {
	NotifyUser(userID int64, title, body string, data map[string]interface{})
}

// Таймаут на поиск устройств и отправку уведомлений одному пользователю.
const notifyTimeout = 10 * time.Second

// Убедимся, что pushNotifier удовлетворяет интерфейсу Notifier.
var _ Notifier = (*pushNotifier)(nil)

type pushNotifier struct {
	deviceRepo repository.DeviceRepository
	sender     PushSender
}

// NewNotifier создает новый экземпляр рассыльщика уведомлений.
func NewNotifier(deviceRepo repository.DeviceRepository, sender PushSender) Notifier {
	return &pushNotifier{deviceRepo: deviceRepo, sender: sender}
}

// NotifyUser отправляет уведомление на все зарегистрированные устройства
// пользователя в фоновой горутине.
func (n *pushNotifier) NotifyUser(userID int64, title, body string, data map[string]interface{}) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		devices, err := n.deviceRepo.GetUserDevices(ctx, userID)
		if err != nil {
			log.Printf("[Notifier] Ошибка получения устройств пользователя %d: %v", userID, err)
			return
		}
		if len(devices) == 0 {
			log.Printf("[Notifier] У пользователя %d нет зарегистрированных устройств, уведомление пропущено", userID)
			return
		}

		for _, device := range devices {
			if sendErr := n.sender.Send(device.Token, title, body, data, device.APNSEnvironment); sendErr != nil {
				log.Printf("[Notifier] Ошибка отправки уведомления на устройство '%s' пользователя %d: %v",
					device.DeviceID, userID, sendErr)
				continue
			}
			log.Printf("[Notifier] Уведомление '%s' отправлено пользователю %d на устройство '%s'",
				title, userID, device.DeviceID)
		}
	}()
}

// noopNotifier используется, когда APNs не сконфигурирован:
// уведомления не отправляются, факт пропуска логируется.
type noopNotifier struct{}

// NewNoopNotifier создает рассыльщик-заглушку.
func NewNoopNotifier() Notifier {
	return noopNotifier{}
}

func (noopNotifier) NotifyUser(userID int64, title, _ string, _ map[string]interface{}) {
	log.Printf("[Notifier] APNs не сконфигурирован, уведомление '%s' пользователю %d пропущено", title, userID)
}
