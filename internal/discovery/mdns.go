// Package discovery анонсирует API-сервер в локальной сети через mDNS/Bonjour,
// чтобы мобильный клиент находил бэкенд без ручной настройки адреса.
package discovery

import (
	"fmt"
	"log"
	"strconv"

	"github.com/grandcat/zeroconf"
)

const (
	serviceName = "Woven API"
	serviceType = "_woven-api._tcp"
	domain      = "local."
)

// MDNSAdvertiser анонсирует сервис в локальной сети.
type MDNSAdvertiser struct {
	server *zeroconf.Server
}

// Start начинает анонсирование на указанном порту.
func Start(port string) (*MDNSAdvertiser, error) {
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return nil, fmt.Errorf("некорректный порт '%s' для mDNS: %w", port, err)
	}

	server, err := zeroconf.Register(
		serviceName,
		serviceType,
		domain,
		portNum,
		[]string{"version=1.0"},
		nil, // Все сетевые интерфейсы
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка регистрации mDNS-сервиса: %w", err)
	}

	log.Printf("[mDNS] Сервис '%s' анонсирован (%s, порт %d)", serviceName, serviceType, portNum)
	return &MDNSAdvertiser{server: server}, nil
}

// Stop прекращает анонсирование.
func (a *MDNSAdvertiser) Stop() {
	if a.server != nil {
		a.server.Shutdown()
		log.Println("[mDNS] Анонсирование остановлено")
	}
}
