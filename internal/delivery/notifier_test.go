package delivery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/vidkeeper/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type botCall struct {
	method string
	chatID string
	text   string
	files  []string
}

type fakeBotAPI struct {
	mu    sync.Mutex
	calls []botCall
}

func (f *fakeBotAPI) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		c := botCall{method: method}
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
			if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
				return
			}
			for name := range r.MultipartForm.File {
				c.files = append(c.files, name)
			}
		}
		c.chatID = r.FormValue("chat_id")
		c.text = r.FormValue("text")

		f.mu.Lock()
		f.calls = append(f.calls, c)
		f.mu.Unlock()

		var result any
		if method == "getMe" {
			result = map[string]any{"id": 1, "is_bot": true, "first_name": "vidkeeper", "username": "vidkeeper_bot"}
		} else {
			result = map[string]any{"message_id": 1, "date": 0, "chat": map[string]any{"id": 42, "type": "private"}}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": result})
	}
}

func newTelegram(t *testing.T) (*Telegram, *fakeBotAPI) {
	t.Helper()
	api := &fakeBotAPI{}
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)

	tg, err := NewTelegram("123:abc", srv.URL+"/bot%s/%s", 5*time.Second, time.Second)
	require.NoError(t, err)
	return tg, api
}

func TestNewTelegram_NoTokenIsDisabled(t *testing.T) {
	_, err := NewTelegram("", "", time.Second, time.Second)
	assert.ErrorIs(t, err, common.ErrDeliveryDisabled)
}

func TestTelegram_Notify(t *testing.T) {
	tg, api := newTelegram(t)

	require.NoError(t, tg.Notify(context.Background(), 42, "hello"))

	require.Len(t, api.calls, 2)
	assert.Equal(t, "getMe", api.calls[0].method)
	assert.Equal(t, botCall{method: "sendMessage", chatID: "42", text: "hello"}, api.calls[1])
}

func TestTelegram_SendVideoUploadsThumbnail(t *testing.T) {
	tg, api := newTelegram(t)
	dir := t.TempDir()
	video := filepath.Join(dir, "v.mp4")
	thumb := filepath.Join(dir, "v.jpg")
	require.NoError(t, os.WriteFile(video, []byte("video"), 0o644))
	require.NoError(t, os.WriteFile(thumb, []byte("jpeg"), 0o644))

	require.NoError(t, tg.SendVideo(context.Background(), 42, video, thumb))

	last := api.calls[len(api.calls)-1]
	assert.Equal(t, "sendVideo", last.method)
	assert.Equal(t, "42", last.chatID)
	assert.ElementsMatch(t, []string{"video", "thumb"}, last.files)
}

func TestTelegram_SendAudio(t *testing.T) {
	tg, api := newTelegram(t)
	audio := filepath.Join(t.TempDir(), "a.mp3")
	require.NoError(t, os.WriteFile(audio, []byte("id3"), 0o644))

	require.NoError(t, tg.SendAudio(context.Background(), 42, audio))

	last := api.calls[len(api.calls)-1]
	assert.Equal(t, "sendAudio", last.method)
	assert.Equal(t, []string{"audio"}, last.files)
}
