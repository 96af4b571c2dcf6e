package engine

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brainzmonster/os/internal/config"
)

// streamServer 模拟OpenAI兼容的流式接口：先吐N个增量，然后挂起不返回
func streamServer(t *testing.T, chunks int) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, ok := w.(http.Flusher)
		require.True(t, ok)

		for i := 0; i < chunks; i++ {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":\"chunk-%d\"}}]}\n\n", i)
			flusher.Flush()
		}

		// 不发[DONE]，等客户端断开
		<-r.Context().Done()
	}))
}

func newStreamTestEngine(baseURL string) *Engine {
	return New(config.LLMConfig{
		APIKey:        "test-key",
		BaseURL:       baseURL + "/v1",
		Model:         "gpt-3.5-turbo",
		StreamEnabled: true,
	})
}

func TestQueryStreamDeliversChunks(t *testing.T) {
	srv := streamServer(t, 3)
	defer srv.Close()

	e := newStreamTestEngine(srv.URL)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chunks, err := e.QueryStream(ctx, "hello", QueryOptions{})
	require.NoError(t, err)

	var got []string
	for i := 0; i < 3; i++ {
		select {
		case chunk := <-chunks:
			require.NoError(t, chunk.Err)
			got = append(got, chunk.Content)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for stream chunk")
		}
	}
	assert.Equal(t, []string{"chunk-0", "chunk-1", "chunk-2"}, got)
}

// 消费方中途放弃时生产者必须随context退出并关闭通道，
// 即使缓冲已满、上游随后报错也不能卡在收尾写入上
func TestQueryStreamProducerExitsOnAbandon(t *testing.T) {
	srv := streamServer(t, 17)
	defer srv.Close()

	e := newStreamTestEngine(srv.URL)
	ctx, cancel := context.WithCancel(context.Background())

	chunks, err := e.QueryStream(ctx, "hello", QueryOptions{})
	require.NoError(t, err)

	// 只读一条就放弃，留时间让生产者填满缓冲并阻塞在上游读取
	select {
	case chunk := <-chunks:
		require.NoError(t, chunk.Err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for first chunk")
	}
	time.Sleep(300 * time.Millisecond)

	cancel()
	time.Sleep(300 * time.Millisecond)

	// 此时上游读取已因取消报错，缓冲仍是满的，
	// 错误增量不允许入队，通道应当已关闭
	var drained int
	for {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				assert.Equal(t, 16, drained)
				return
			}
			require.NoError(t, chunk.Err)
			assert.False(t, chunk.Done)
			drained++
		case <-time.After(2 * time.Second):
			t.Fatal("stream channel never closed after cancel")
		}
	}
}
