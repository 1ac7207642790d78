package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	consul "github.com/hashicorp/consul/api"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"orderup/internal/cluster"
	"orderup/internal/config"
	"orderup/internal/dispatch"
	"orderup/internal/engine"
	"orderup/internal/events"
	"orderup/internal/lobby"
	"orderup/internal/metrics"
	"orderup/internal/network"
	"orderup/internal/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("ERROR: invalid configuration: %v", err)
	}
	log.Printf("[Main] starting %s on port %d", cfg.ServiceName, cfg.ServicePort)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	health := cluster.NewHealthAggregator()

	// Storage: redis when configured, process memory otherwise.
	var scores store.Store = store.NewMemory()
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		redisClient, err = store.NewRedisClient(ctx, cfg.RedisURL)
		cancel()
		if err != nil {
			log.Fatalf("ERROR: connecting to redis: %v", err)
		}
		scores = store.NewRedis(redisClient)
		health.AddCheck("redis", func() error { return store.HealthCheck(redisClient) })
		log.Printf("[Main] using redis store at %s", cfg.RedisURL)
	} else {
		log.Println("[Main] REDIS_URL not set, scores are kept in memory")
	}

	var publisher events.Publisher = events.Nop{}
	var nc *nats.Conn
	if cfg.NatsURL != "" {
		nc, err = events.Connect(cfg.NatsURL, cfg.ServiceName)
		if err != nil {
			log.Fatalf("ERROR: connecting to nats: %v", err)
		}
		publisher = events.NewNATS(nc)
		health.AddCheck("nats", func() error { return events.HealthCheck(nc) })
		log.Printf("[Main] publishing events to %s", cfg.NatsURL)
	}

	conns := dispatch.NewConnections(m)
	sessions := engine.NewManager(cfg.Game, engine.Deps{
		Sender:  conns,
		Store:   scores,
		Events:  publisher,
		Metrics: m,
	})
	rooms := lobby.NewRegistry(sessions, conns, lobby.Options{
		Capacity:   cfg.RoomCapacity,
		MinPlayers: cfg.MinPlayers,
		Metrics:    m,
	})
	dispatcher := dispatch.New(conns, rooms, sessions, dispatch.Options{
		Store:           scores,
		Events:          publisher,
		LeaderboardSize: cfg.LeaderboardSize,
	})

	server := network.NewServer(dispatcher)
	server.Handle("/health", health.Handler())
	server.Handle("/metrics", metrics.Handler(reg))

	var consulClient *consul.Client
	var serviceID string
	if cfg.ConsulAddr != "" {
		consulClient, err = cluster.NewConsulClient(cfg.ConsulAddr)
		if err != nil {
			log.Fatalf("ERROR: %v", err)
		}
		serviceID, err = cluster.Register(consulClient, cluster.Registration{
			ServiceName: cfg.ServiceName,
			Host:        cfg.AdvertiseHost,
			Port:        cfg.ServicePort,
			Tags:        []string{"websocket"},
		})
		if err != nil {
			log.Fatalf("ERROR: %v", err)
		}
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Listen(fmt.Sprintf(":%d", cfg.ServicePort))
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		log.Printf("[Main] received %s, shutting down", sig)
	case err := <-errCh:
		if err != nil {
			log.Printf("ERROR: server stopped: %v", err)
		}
	}

	if consulClient != nil {
		if err := cluster.Deregister(consulClient, serviceID); err != nil {
			log.Printf("WARN: %v", err)
		}
	}

	// Players still in a session get a session-ended before their socket closes.
	sessions.StopAll(engine.Stopped("server shutting down"))

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("WARN: graceful shutdown: %v", err)
	}
	dispatcher.Wait()

	if nc != nil {
		if err := nc.Drain(); err != nil {
			log.Printf("WARN: draining nats: %v", err)
		}
	}
	if redisClient != nil {
		redisClient.Close()
	}
	log.Println("[Main] server stopped")
}
