package main

import (
	"context"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/23skdu/longbow-quill/internal/client"
	"github.com/23skdu/longbow-quill/internal/segment"
)

func TestFlightServer_DoExchange(t *testing.T) {
	server := flight.NewServerWithMiddleware(nil)
	server.RegisterFlightService(NewQuillFlightServer(newTestProcessor(t, nil)))
	require.NoError(t, server.Init("localhost:0"))
	go func() {
		_ = server.Serve()
	}()
	defer server.Shutdown()

	conn, err := grpc.NewClient(server.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()
	fc := flight.NewClientFromConn(conn, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	stream, err := fc.DoExchange(ctx)
	require.NoError(t, err)

	first := textBatch(t, "他_r 说_v …_w …_w", "好_a")
	defer first.Release()
	second := textBatch(t, "——_w")
	defer second.Release()

	writer := flight.NewRecordWriter(stream, ipc.WithSchema(first.Schema()))
	require.NoError(t, writer.Write(first))
	require.NoError(t, writer.Write(second))
	require.NoError(t, writer.Close())
	require.NoError(t, stream.CloseSend())

	reader, err := flight.NewRecordReader(stream)
	require.NoError(t, err)
	defer reader.Release()

	var (
		sentences []segment.Sentence
		firstIDs  []int64
	)
	for reader.Next() {
		batch, err := client.DecodeTokenBatch(reader.Record())
		require.NoError(t, err)
		firstIDs = append(firstIDs, reader.Record().Column(0).(*array.Int64).Value(0))
		sentences = append(sentences, batch...)
	}
	require.NoError(t, reader.Err())

	require.Len(t, sentences, 3)
	assert.Equal(t, "他_r 说_v ……_w", sentences[0].Format('_'))
	assert.Equal(t, "好_a", sentences[1].Format('_'))
	assert.Equal(t, "——_w", sentences[2].Format('_'))
	// Sentence numbering continues across batches.
	assert.Equal(t, []int64{0, 2}, firstIDs)
}
