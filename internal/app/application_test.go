package app

import (
	"context"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freshershub/internal/config"
	"freshershub/internal/session"
	"freshershub/pkg/types"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Database.DatabasePath = filepath.Join(dir, "data", "hub.db")
	return cfg
}

func TestNewApplication_RequiresConfig(t *testing.T) {
	_, err := NewApplication(nil, nil)
	assert.Error(t, err)

	cfg := testConfig(t)
	cfg.HTTP.Port = 0
	_, err = NewApplication(cfg, nil)
	assert.Error(t, err)
}

func TestApplication_ServeAndShutdown(t *testing.T) {
	application, err := NewApplication(testConfig(t), nil)
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- application.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestNewVerifier(t *testing.T) {
	static := newVerifier(config.AuthConfig{Tokens: map[string]types.Identity{"t": {ID: "u", Name: "U"}}})
	assert.IsType(t, &session.StaticVerifier{}, static)

	remote := newVerifier(config.AuthConfig{VerifyURL: "http://auth.local/verify"})
	assert.IsType(t, &session.HTTPVerifier{}, remote)
}
