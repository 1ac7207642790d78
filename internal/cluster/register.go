package cluster

import (
	"fmt"
	"log"

	consul "github.com/hashicorp/consul/api"
)

// Registration describes this server instance to consul.
type Registration struct {
	ServiceName string
	Host        string
	Port        int
	Tags        []string
}

// ID is unique per host so replicas do not overwrite each other.
func (r Registration) ID() string {
	return fmt.Sprintf("%s-%s", r.ServiceName, r.Host)
}

// Register adds the service with an HTTP check on /health. Consul drops the
// instance by itself after a minute of failing checks.
func Register(client *consul.Client, r Registration) (string, error) {
	id := r.ID()
	registration := &consul.AgentServiceRegistration{
		ID:      id,
		Name:    r.ServiceName,
		Address: r.Host,
		Port:    r.Port,
		Tags:    r.Tags,
		Check: &consul.AgentServiceCheck{
			HTTP:                           fmt.Sprintf("http://%s:%d/health", r.Host, r.Port),
			Timeout:                        "5s",
			Interval:                       "10s",
			DeregisterCriticalServiceAfter: "1m",
		},
	}
	if err := client.Agent().ServiceRegister(registration); err != nil {
		return "", fmt.Errorf("register %s in consul: %w", id, err)
	}
	log.Printf("[Consul] service %q registered as %s", r.ServiceName, id)
	return id, nil
}

func Deregister(client *consul.Client, serviceID string) error {
	if err := client.Agent().ServiceDeregister(serviceID); err != nil {
		return fmt.Errorf("deregister %s from consul: %w", serviceID, err)
	}
	log.Printf("[Consul] service %s deregistered", serviceID)
	return nil
}
