package client

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// FlightClient ships processed sentences to a Longbow server via Apache
// Flight. Each put carries one TokenSchema batch: one row per token, keyed by
// sentence number and position. It satisfies Putter for the Forwarder.
type FlightClient struct {
	client flight.Client
	conn   *grpc.ClientConn
}

var _ Putter = (*FlightClient)(nil)

// NewFlightClient creates a new Flight client connected to the given address.
func NewFlightClient(addr string) (*FlightClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}

	client := flight.NewClientFromConn(conn, nil)
	return &FlightClient{
		client: client,
		conn:   conn,
	}, nil
}

// DoPut sends record, normally built by RecordBatchBuilder.BuildTokenBatch,
// to datasetName. The call returns once the whole stream has been handed to
// gRPC; Longbow appends the rows to the dataset as they arrive.
func (c *FlightClient) DoPut(ctx context.Context, datasetName string, record arrow.RecordBatch) error {
	desc := &flight.FlightDescriptor{
		Type: flight.DescriptorPATH,
		Path: []string{datasetName},
	}

	stream, err := c.client.DoPut(ctx)
	if err != nil {
		return err
	}

	// The descriptor rides on the first message of the stream.
	writer := flight.NewRecordWriter(stream)
	writer.SetFlightDescriptor(desc)

	if err := writer.Write(record); err != nil {
		_ = writer.Close()
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}
	return stream.CloseSend()
}

// Close closes the client connection.
func (c *FlightClient) Close() error {
	return c.conn.Close()
}
