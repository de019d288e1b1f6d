package main_test

import (
	"os"
	"strings"
	"testing"
)

func readBuildFile(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(name)
	if err != nil {
		t.Fatalf("%s should exist and be readable: %v", name, err)
	}
	return string(data)
}

// TestDockerfile はマルチステージビルドとランタイム構成を検証する。
func TestDockerfile(t *testing.T) {
	content := readBuildFile(t, "Dockerfile")

	if !strings.Contains(content, "FROM golang:") {
		t.Error("Dockerfile should contain a Go builder stage (FROM golang:)")
	}

	// 最終ステージは軽量イメージであること
	var lastFrom string
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "FROM ") {
			lastFrom = trimmed
		}
	}
	minimal := strings.Contains(lastFrom, "gcr.io/distroless") ||
		strings.Contains(lastFrom, "alpine") ||
		strings.Contains(lastFrom, "scratch")
	if !minimal {
		t.Errorf("final stage should use a minimal base image (distroless/alpine/scratch), got: %s", lastFrom)
	}

	checks := []struct {
		want string
		desc string
	}{
		{"campushub", "binary name"},
		{"ENTRYPOINT", "entrypoint"},
		{"HEALTHCHECK", "container healthcheck"},
		{"CGO_ENABLED=0", "static build for distroless"},
	}
	for _, c := range checks {
		if !strings.Contains(content, c.want) {
			t.Errorf("Dockerfile should contain %q (%s)", c.want, c.desc)
		}
	}
}

// TestDockerCompose はapi/worker/dbの3コンテナ構成と
// egress制限用のネットワーク分離を検証する。
func TestDockerCompose(t *testing.T) {
	content := readBuildFile(t, "docker-compose.yml")

	for _, svc := range []string{"api:", "worker:", "db:"} {
		if !strings.Contains(content, svc) {
			t.Errorf("docker-compose.yml should contain service %q", svc)
		}
	}

	if !strings.Contains(content, "postgres:") {
		t.Error("docker-compose.yml should use a PostgreSQL image")
	}
	if !strings.Contains(content, `command: ["worker"]`) {
		t.Error("worker service should start with the 'worker' subcommand")
	}

	// DBへの経路は内部ネットワークに閉じ、外部通信はexternalネットワーク経由に限る
	if !strings.Contains(content, "networks:") {
		t.Error("docker-compose.yml should define networks for egress control")
	}
	if !strings.Contains(content, "internal: true") {
		t.Error("docker-compose.yml should define an internal network (internal: true)")
	}
	if !strings.Contains(content, "external") {
		t.Error("docker-compose.yml should define an external network for outbound fetches")
	}
	if !strings.Contains(content, "pg_isready") {
		t.Error("db service should have a pg_isready healthcheck")
	}
}
