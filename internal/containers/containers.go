// Package containers runs the backing services store tests need.
package containers

import (
	"context"
	"net"

	"github.com/docker/go-connections/nat"
	"github.com/rs/zerolog/log"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

type Service struct {
	Image string
	Port  string
	Env   map[string]string
	Cmd   []string
}

// Start runs service and returns the host:port its port is published on along
// with a function that stops the container.
func Start(ctx context.Context, service Service) (string, func(), error) {
	exposed := nat.Port(service.Port + "/tcp")

	container, err := testcontainers.GenericContainer(
		ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        service.Image,
				Env:          service.Env,
				Cmd:          service.Cmd,
				ExposedPorts: []string{string(exposed)},
				WaitingFor:   wait.ForListeningPort(exposed),
			},
			Started: true,
		},
	)
	if err != nil {
		return "", nil, err
	}

	stop := func() {
		if err := container.Terminate(ctx); err != nil {
			log.Warn().Err(err).Str("image", service.Image).Msg("failed to terminate container")
		}
	}

	host, err := container.Host(ctx)
	if err != nil {
		stop()
		return "", nil, err
	}

	port, err := container.MappedPort(ctx, exposed)
	if err != nil {
		stop()
		return "", nil, err
	}

	return net.JoinHostPort(host, port.Port()), stop, nil
}
