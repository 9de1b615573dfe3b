package oracle

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/testcontainers/testcontainers-go"

	"github.com/governedloop/core/pkg/ports"
)

// ContainerSandbox runs an oracle's OCI image as a disposable
// testcontainers-go container: read-only workspace bind mount,
// writable scratch bind mount, network disabled unless the oracle
// declares otherwise, terminated unconditionally when Run returns —
// the same container-lifecycle discipline (start, use, Terminate in a
// defer) the teacher applies to its ephemeral test postgres containers
// in test/util/database.go, generalized from test fixtures to a
// production execution port.
type ContainerSandbox struct {
	PollInterval time.Duration
}

// NewContainerSandbox constructs a ContainerSandbox with a sane default
// poll interval for detecting container exit.
func NewContainerSandbox() *ContainerSandbox {
	return &ContainerSandbox{PollInterval: 200 * time.Millisecond}
}

func (s *ContainerSandbox) Run(ctx context.Context, req ports.SandboxRunRequest) (ports.SandboxRunResult, error) {
	runCtx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	networkMode := container.NetworkMode("none")
	if req.AllowNetwork {
		networkMode = container.NetworkMode("bridge")
	}

	workspaceMount := testcontainers.BindMount(req.WorkspaceDir, testcontainers.ContainerMountTarget("/workspace"))
	workspaceMount.ReadOnly = true

	containerReq := testcontainers.ContainerRequest{
		Image: req.ImageDigest,
		Env:   req.Env,
		Mounts: testcontainers.ContainerMounts{
			workspaceMount,
			testcontainers.BindMount(req.ScratchDir, testcontainers.ContainerMountTarget("/scratch")),
		},
		NetworkMode: networkMode,
	}

	c, err := testcontainers.GenericContainer(runCtx, testcontainers.GenericContainerRequest{
		ContainerRequest: containerReq,
		Started:          true,
	})
	if err != nil {
		return ports.SandboxRunResult{}, err
	}
	defer func() { _ = c.Terminate(context.Background()) }()

	exitCode, timedOut := s.waitForExit(runCtx, c)

	var stdout, stderr bytes.Buffer
	if logs, logErr := c.Logs(context.Background()); logErr == nil {
		_, _ = io.Copy(&stdout, logs)
		_ = logs.Close()
	}

	return ports.SandboxRunResult{
		ExitCode: exitCode,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		TimedOut: timedOut,
		Fingerprint: ports.EnvironmentFingerprint{
			ImageDigest:   req.ImageDigest,
			SandboxRuntime: "testcontainers-docker",
			OSKernelClass:  "linux",
			Timezone:       "UTC",
		},
	}, nil
}

// waitForExit polls container state until it stops running or ctx is
// done, returning the exit code (0 if it timed out without exiting).
func (s *ContainerSandbox) waitForExit(ctx context.Context, c testcontainers.Container) (exitCode int, timedOut bool) {
	ticker := time.NewTicker(s.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return 0, true
		case <-ticker.C:
			state, err := c.State(ctx)
			if err != nil {
				continue
			}
			if !state.Running {
				return state.ExitCode, false
			}
		}
	}
}
