package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/23skdu/longbow-quill/internal/cache"
	"github.com/23skdu/longbow-quill/internal/client"
	"github.com/23skdu/longbow-quill/internal/dict"
	"github.com/23skdu/longbow-quill/internal/postprocess"
	"github.com/23skdu/longbow-quill/internal/segment"
)

type mockForwarder struct {
	mock.Mock
}

func (m *mockForwarder) Forward(ctx context.Context, offset int64, sentences []segment.Sentence) error {
	args := m.Called(ctx, offset, sentences)
	return args.Error(0)
}

func newTestProcessor(t *testing.T, sentenceCache cache.SentenceCache) *Processor {
	t.Helper()
	trie, err := dict.Build([]string{"……", "——", "。"})
	require.NoError(t, err)
	return NewProcessor(postprocess.NewPunctuationPass(trie), sentenceCache, '_', 4)
}

func textBatch(t *testing.T, lines ...string) arrow.RecordBatch {
	t.Helper()
	b := array.NewStringBuilder(memory.NewGoAllocator())
	defer b.Release()
	b.AppendValues(lines, nil)
	arr := b.NewArray()
	defer arr.Release()

	schema := arrow.NewSchema([]arrow.Field{{Name: client.TextColumn, Type: arrow.BinaryTypes.String}}, nil)
	return array.NewRecordBatch(schema, []arrow.Array{arr}, int64(len(lines)))
}

func TestServer_Full(t *testing.T) {
	mf := &mockForwarder{}
	srv := NewServer(newTestProcessor(t, nil), mf, 64, true)

	t.Run("HandleProcess with Forwarding", func(t *testing.T) {
		data, err := cbor.Marshal([]string{"他_r 说_v …_w …_w", "好_a"})
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/process", bytes.NewReader(data))
		rr := httptest.NewRecorder()

		mf.On("Forward", mock.Anything, int64(0), mock.MatchedBy(func(s []segment.Sentence) bool {
			return len(s) == 2
		})).Return(nil).Once()

		srv.Handler().ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "application/cbor", rr.Header().Get("Content-Type"))
		var got []string
		require.NoError(t, cbor.Unmarshal(rr.Body.Bytes(), &got))
		assert.Equal(t, []string{"他_r 说_v ……_w", "好_a"}, got)
		mf.AssertExpectations(t)
	})

	t.Run("Forward failure still answers", func(t *testing.T) {
		data, _ := cbor.Marshal([]string{"——_w"})
		req := httptest.NewRequest(http.MethodPost, "/process", bytes.NewReader(data))
		rr := httptest.NewRecorder()

		mf.On("Forward", mock.Anything, int64(0), mock.Anything).Return(errors.New("down")).Once()

		srv.Handler().ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("Method not allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/process", nil)
		rr := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rr, req)
		assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	})

	t.Run("Bad CBOR", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/process", bytes.NewReader([]byte{0xff, 0x00}))
		rr := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("Health Check", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rr := httptest.NewRecorder()

		srv.handleHealth(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "OK", rr.Body.String())
	})

	t.Run("Metrics", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		rr := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "quill_sentences_served_total")
	})
}

func TestServer_ProcessArrow(t *testing.T) {
	srv := NewServer(newTestProcessor(t, nil), nil, 64, true)

	rec := textBatch(t, "他_r 说_v …_w …_w", "——_w 好_a")
	defer rec.Release()

	var body bytes.Buffer
	w := ipc.NewWriter(&body, ipc.WithSchema(rec.Schema()))
	require.NoError(t, w.Write(rec))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/process/arrow", &body)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	reader, err := ipc.NewReader(bytes.NewReader(rr.Body.Bytes()))
	require.NoError(t, err)
	defer reader.Release()
	require.True(t, reader.Next())

	sentences, err := client.DecodeTokenBatch(reader.Record())
	require.NoError(t, err)
	require.Len(t, sentences, 2)
	assert.Equal(t, []string{"他", "说", "……"}, sentences[0].Words())
	assert.Equal(t, []string{"——", "好"}, sentences[1].Words())
	assert.Equal(t, []string{"w", "a"}, sentences[1].Tags())
	assert.False(t, reader.Next())
}

func TestServer_Busy(t *testing.T) {
	srv := NewServer(newTestProcessor(t, nil), nil, 2, true)
	require.NoError(t, srv.sem.Acquire(context.Background(), 2))
	defer srv.sem.Release(2)

	data, _ := cbor.Marshal([]string{"a_n"})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodPost, "/process", bytes.NewReader(data)).WithContext(ctx)
	rr := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestServer_TooLarge(t *testing.T) {
	srv := NewServer(newTestProcessor(t, nil), nil, 2, true)
	lines := []string{"a_n", "b_n", "c_n"}

	t.Run("CBOR", func(t *testing.T) {
		data, _ := cbor.Marshal(lines)
		req := httptest.NewRequest(http.MethodPost, "/process", bytes.NewReader(data))
		rr := httptest.NewRecorder()

		start := time.Now()
		srv.Handler().ServeHTTP(rr, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
		assert.Less(t, time.Since(start), time.Second)
	})

	t.Run("Arrow", func(t *testing.T) {
		rec := textBatch(t, lines...)
		defer rec.Release()
		var body bytes.Buffer
		w := ipc.NewWriter(&body, ipc.WithSchema(rec.Schema()))
		require.NoError(t, w.Write(rec))
		require.NoError(t, w.Close())

		req := httptest.NewRequest(http.MethodPost, "/process/arrow", &body)
		rr := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rr, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	})

	t.Run("At capacity", func(t *testing.T) {
		data, _ := cbor.Marshal(lines[:2])
		req := httptest.NewRequest(http.MethodPost, "/process", bytes.NewReader(data))
		rr := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
	})
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, statusFor(postprocess.ErrNilToken))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(context.Canceled))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
}
