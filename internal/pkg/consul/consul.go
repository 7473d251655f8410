// Package consul registers the API of a running crawl in Consul.
package consul

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/consul/api"
	"github.com/sirupsen/logrus"
)

const serviceName = "frontier"

type Options struct {
	Address  string
	ACLToken string
	Job      string
	// APIPort is the port of the registered service
	APIPort int
	Tags    []string
	// TTL of the health check, the service is deregistered when it stays
	// critical that long. Defaults to 30s.
	TTL    time.Duration
	Logger logrus.FieldLogger
}

// Registration is a service registered by Register
type Registration struct {
	ID   string
	done chan struct{}
}

// Done is closed once the service is deregistered
func (r *Registration) Done() <-chan struct{} {
	return r.done
}

// Register creates a Consul client and registers the service along with a TTL health check.
// The TTL is updated until ctx is done, then the service is deregistered.
func Register(ctx context.Context, opts Options) (*Registration, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	logger = logger.WithField("component", "consul.Register")

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	client, err := api.NewClient(&api.Config{
		Address: opts.Address,
		Token:   opts.ACLToken,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Consul client: %w", err)
	}

	hostname, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("error getting hostname: %w", err)
	}

	reg := &Registration{
		ID:   fmt.Sprintf("%s-%s-%s-%s", serviceName, hostname, opts.Job, uuid.New().String()[:5]),
		done: make(chan struct{}),
	}

	registration := &api.AgentServiceRegistration{
		ID:   reg.ID,
		Name: serviceName,
		Port: opts.APIPort,
		Tags: opts.Tags,
		Check: &api.AgentServiceCheck{
			TTL:                            ttl.String(),
			DeregisterCriticalServiceAfter: ttl.String(),
		},
	}

	if err := client.Agent().ServiceRegister(registration); err != nil {
		return nil, fmt.Errorf("failed to register service: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"serviceID":   reg.ID,
		"serviceName": serviceName,
		"serviceTags": opts.Tags,
	}).Info("registered service")

	go func() {
		defer close(reg.done)

		ticker := time.NewTicker(ttl / 3)
		defer ticker.Stop()

		for {
			if err := client.Agent().UpdateTTL("service:"+reg.ID, "passing", api.HealthPassing); err != nil {
				logger.WithFields(logrus.Fields{
					"serviceID": reg.ID,
					"error":     err,
				}).Error("failed to update TTL")
			}

			select {
			case <-ticker.C:
			case <-ctx.Done():
				if err := client.Agent().ServiceDeregister(reg.ID); err != nil {
					logger.WithFields(logrus.Fields{
						"serviceID": reg.ID,
						"error":     err,
					}).Error("failed to deregister service")
				}
				return
			}
		}
	}()

	return reg, nil
}
