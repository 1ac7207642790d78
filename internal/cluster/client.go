// Package cluster registers the server in consul, finds servers for clients
// and aggregates the health checks consul polls.
package cluster

import (
	"fmt"
	"log"
	"strings"

	consul "github.com/hashicorp/consul/api"
)

// NewConsulClient tries each comma separated agent address in turn and
// returns a client for the first one that reports a raft leader.
func NewConsulClient(addrs string) (*consul.Client, error) {
	for _, node := range strings.Split(addrs, ",") {
		node = strings.TrimSpace(node)
		if node == "" {
			continue
		}
		cfg := consul.DefaultConfig()
		cfg.Address = node

		client, err := consul.NewClient(cfg)
		if err != nil {
			log.Printf("WARN: [Consul] cannot build client for %s: %v", node, err)
			continue
		}
		if _, err := client.Status().Leader(); err != nil {
			log.Printf("WARN: [Consul] %s did not answer: %v", node, err)
			continue
		}

		log.Printf("[Consul] connected to %s", node)
		return client, nil
	}
	return nil, fmt.Errorf("no consul agent available in %q", addrs)
}
