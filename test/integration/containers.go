//go:build integration

// Package integration runs the Postgres and Kafka adapters against real
// containers.
package integration

import (
	"context"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

type Env struct {
	PG    *postgres.PostgresContainer
	Kafka *kafka.KafkaContainer
	PGURL string
	KAddr []string
}

// Setup starts both containers; startup is bounded, container lifetime is not.
func Setup(ctx context.Context) (*Env, error) {
	startCtx, cancel := context.WithTimeout(ctx, 3*time.Minute)
	defer cancel()

	pgC, err := postgres.Run(startCtx,
		"postgres:16-alpine",
		postgres.WithDatabase("inventory"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		return nil, err
	}
	env := &Env{PG: pgC}

	env.PGURL, err = pgC.ConnectionString(startCtx, "sslmode=disable")
	if err != nil {
		env.Teardown(ctx)
		return nil, err
	}

	env.Kafka, err = kafka.Run(startCtx,
		"confluentinc/confluent-local:7.5.0",
		kafka.WithClusterID("inventory-hub-test"),
	)
	if err != nil {
		env.Teardown(ctx)
		return nil, err
	}

	env.KAddr, err = env.Kafka.Brokers(startCtx)
	if err != nil {
		env.Teardown(ctx)
		return nil, err
	}
	return env, nil
}

func (e *Env) Teardown(ctx context.Context) {
	opt := testcontainers.StopContext(ctx)
	if e.Kafka != nil {
		_ = testcontainers.TerminateContainer(e.Kafka, opt)
	}
	if e.PG != nil {
		_ = testcontainers.TerminateContainer(e.PG, opt)
	}
}
