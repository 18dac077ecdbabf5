package main

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freshershub/pkg/interfaces"
)

func TestParseRooms(t *testing.T) {
	assert.Equal(t, []string{"freshers", "post:12"}, parseRooms(" freshers, ,post:12,"))
	assert.Nil(t, parseRooms(""))
}

type stubStore struct {
	token string
	err   error
}

func (s stubStore) Token(context.Context) (string, error)  { return s.token, s.err }
func (s stubStore) SetToken(context.Context, string) error { return nil }
func (s stubStore) ClearToken(context.Context) error       { return nil }

func TestCachedToken(t *testing.T) {
	ctx := context.Background()

	token, err := cachedToken(ctx, stubStore{token: "tok"})
	require.NoError(t, err)
	assert.Equal(t, "tok", token)

	token, err = cachedToken(ctx, stubStore{err: interfaces.ErrNotFound})
	require.NoError(t, err)
	assert.Empty(t, token)

	_, err = cachedToken(ctx, stubStore{err: errors.New("database is locked")})
	assert.ErrorContains(t, err, "database is locked")
}

func TestReadLines(t *testing.T) {
	lines := readLines(context.Background(), strings.NewReader("hello\n/quit\n"))
	var got []string
	for l := range lines {
		got = append(got, l)
	}
	assert.Equal(t, []string{"hello", "/quit"}, got)
}

func TestReadLines_StopsOnCancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pr.Close()
	ctx, cancel := context.WithCancel(context.Background())
	lines := readLines(ctx, pr)

	// nobody receives this line; cancelling must still release the sender
	go func() { _, _ = pw.Write([]byte("unread\n")) }()
	time.Sleep(20 * time.Millisecond)
	cancel()
	time.Sleep(50 * time.Millisecond)

	select {
	case _, ok := <-lines:
		assert.False(t, ok, "channel closed without delivering after cancel")
	case <-time.After(2 * time.Second):
		t.Fatal("reader goroutine did not exit after cancel")
	}
}
