package grpcattr

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/trustring/storage"
)

// Server exposes a storage.Store over the Attributes gRPC service.
type Server struct {
	UnimplementedAttributesServer
	Store storage.Store

	// Logger receives one DEBUG line per request. Nil uses slog.Default().
	Logger *slog.Logger
}

func (s *Server) Get(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	if s == nil || s.Store == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing store")
	}
	owner, err := fromMetadata(ctx, mdOwner)
	if err != nil {
		return nil, err
	}
	slot := in.GetValue()
	b, err := s.Store.Get(ctx, owner, slot)
	s.logger().DebugContext(ctx, "attribute get", "owner", owner, "slot", slot, "error", err)
	if err != nil {
		return nil, mapErr(err)
	}
	return wrapperspb.Bytes(b), nil
}

func (s *Server) Set(ctx context.Context, in *wrapperspb.BytesValue) (*emptypb.Empty, error) {
	if s == nil || s.Store == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing store")
	}
	owner, err := fromMetadata(ctx, mdOwner)
	if err != nil {
		return nil, err
	}
	slot, err := fromMetadata(ctx, mdSlot)
	if err != nil {
		return nil, err
	}
	value := in.GetValue()
	if value == nil {
		value = []byte{}
	}
	err = s.Store.Set(ctx, owner, slot, value)
	s.logger().DebugContext(ctx, "attribute set", "owner", owner, "slot", slot, "bytes", len(value), "error", err)
	if err != nil {
		return nil, mapErr(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func fromMetadata(ctx context.Context, key string) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", status.Errorf(codes.InvalidArgument, "missing metadata %q", key)
	}
	vals := md.Get(key)
	if len(vals) != 1 {
		return "", status.Errorf(codes.InvalidArgument, "expected exactly one %q", key)
	}
	return vals[0], nil
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return status.Error(codes.NotFound, storage.ErrNotFound.Error())
	case errors.Is(err, storage.ErrInvalidName):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
