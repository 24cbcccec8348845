package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSend(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.True(t, strings.HasSuffix(r.URL.Path, "/sendMessage"), r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"}}}`))
	}))
	defer srv.Close()

	c, err := New("123:abc", bot.WithServerURL(srv.URL))
	require.NoError(t, err)
	require.NoError(t, c.Send(context.Background(), 42, "Left a safe zone"))
	assert.Equal(t, 1, calls)
}

func TestSend_MissingChat(t *testing.T) {
	c, err := New("123:abc", bot.WithServerURL("http://127.0.0.1:1"))
	require.NoError(t, err)
	assert.Error(t, c.Send(context.Background(), 0, "hi"))
}
