package grpcattr

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/trustring/storage"
	"xdao.co/trustring/storage/localfs"
	"xdao.co/trustring/storage/testkit"
)

func serve(t *testing.T, backend storage.Store) *Client {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer()
	RegisterAttributesServer(srv, &Server{Store: backend})

	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)

	dialer := func(ctx context.Context, s string) (net.Conn, error) { return lis.Dial() }
	cc, err := grpc.DialContext(
		context.Background(),
		"bufnet",
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("DialContext: %v", err)
	}
	client := NewClient(cc)
	client.Timeout = 2 * time.Second
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestGRPCAttr_LocalFS_Conformance(t *testing.T) {
	testkit.RunStoreConformance(t, func(t *testing.T) storage.Store {
		backend, err := localfs.New(t.TempDir())
		if err != nil {
			t.Fatalf("localfs.New: %v", err)
		}
		return serve(t, backend)
	})
}

func TestGRPCAttr_WritesLandInBackend(t *testing.T) {
	backend, err := localfs.New(t.TempDir())
	if err != nil {
		t.Fatalf("localfs.New: %v", err)
	}
	client := serve(t, backend)
	ctx := context.Background()

	if err := client.Set(ctx, "alice", "identity.signing.public", []byte("pub")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := backend.Get(ctx, "alice", "identity.signing.public")
	if err != nil {
		t.Fatalf("backend Get: %v", err)
	}
	if string(got) != "pub" {
		t.Fatalf("payload mismatch: %q", got)
	}
}

func TestGRPCAttr_ServerRejectsMissingMetadata(t *testing.T) {
	backend, err := localfs.New(t.TempDir())
	if err != nil {
		t.Fatalf("localfs.New: %v", err)
	}
	client := serve(t, backend)

	// Bypass Client so no owner metadata is attached.
	_, err = client.client.Get(context.Background(), wrapperspb.String("trust.rsa"))
	if err == nil {
		t.Fatalf("expected error without owner metadata")
	}
	if mapped := mapRPC(err); !errors.Is(mapped, storage.ErrInvalidName) {
		t.Fatalf("expected invalid name mapping, got %v", mapped)
	}
}
