package cluster

import (
	"errors"
	"fmt"
	"math/rand/v2"

	consul "github.com/hashicorp/consul/api"
)

var ErrNoHealthyService = errors.New("no healthy instance")

// Discover returns host:port of a random healthy instance of serviceName.
func Discover(client *consul.Client, serviceName string) (string, error) {
	services, _, err := client.Health().Service(serviceName, "", true, nil)
	if err != nil {
		return "", fmt.Errorf("query %s in consul: %w", serviceName, err)
	}
	if len(services) == 0 {
		return "", fmt.Errorf("%s: %w", serviceName, ErrNoHealthyService)
	}
	s := services[rand.IntN(len(services))]
	addr := s.Service.Address
	if addr == "" && s.Node != nil {
		addr = s.Node.Address
	}
	return fmt.Sprintf("%s:%d", addr, s.Service.Port), nil
}
