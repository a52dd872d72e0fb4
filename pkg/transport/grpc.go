package transport

import (
	"context"
	"fmt"
	"io"

	"google.golang.org/grpc"
)

// blobChunkSize bounds how much of a blob one FetchBlob stream frame
// carries, so a multi-gigabyte blob does not have to sit fully buffered
// in one gRPC message.
const blobChunkSize = 1 << 20

const serviceName = "jaxbucket.Transport"

// ServiceDesc is the hand-authored grpc.ServiceDesc for Handler: there
// is no .proto source for this protocol to generate one from (spec.md
// treats the wire RPC shape, not the transport's dialing, as in
// scope), so the method table below plays that role directly, using
// cborCodec (registered in codec.go) instead of protobuf framing.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*Handler)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Head", Handler: headHandler},
		{MethodName: "FetchManifest", Handler: fetchManifestHandler},
		{MethodName: "Announce", Handler: announceHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "FetchBlob", Handler: fetchBlobHandler, ServerStreams: true},
	},
	Metadata: "jaxbucket/transport",
}

func headHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(headRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	run := func(ctx context.Context, req interface{}) (interface{}, error) {
		r := req.(*headRequest)
		reply, err := srv.(Handler).HandleHead(ctx, r.BucketID)
		if err != nil {
			return nil, err
		}
		return &headResponse{Link: reply.Link, Present: reply.Present}, nil
	}
	if interceptor == nil {
		return run(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Head"}
	return interceptor(ctx, in, info, run)
}

func fetchManifestHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(fetchManifestRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	run := func(ctx context.Context, req interface{}) (interface{}, error) {
		r := req.(*fetchManifestRequest)
		data, err := srv.(Handler).HandleFetchManifest(ctx, r.Link)
		if err != nil {
			return nil, err
		}
		return &fetchManifestResponse{Data: data}, nil
	}
	if interceptor == nil {
		return run(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/FetchManifest"}
	return interceptor(ctx, in, info, run)
}

func announceHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(announceRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	run := func(ctx context.Context, req interface{}) (interface{}, error) {
		r := req.(*announceRequest)
		if err := srv.(Handler).HandleAnnounce(ctx, r.FromPub, r.BucketID, r.NewHead); err != nil {
			return nil, err
		}
		return &announceResponse{}, nil
	}
	if interceptor == nil {
		return run(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Announce"}
	return interceptor(ctx, in, info, run)
}

func fetchBlobHandler(srv interface{}, stream grpc.ServerStream) error {
	req := new(fetchBlobRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	r, err := srv.(Handler).HandleFetchBlob(stream.Context(), req.Hash)
	if err != nil {
		return err
	}
	defer r.Close()

	buf := make([]byte, blobChunkSize)
	for {
		n, readErr := r.Read(buf)
		if n > 0 {
			chunk := &fetchBlobChunk{Data: append([]byte(nil), buf[:n]...)}
			if err := stream.SendMsg(chunk); err != nil {
				return err
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("transport: stream blob: %w", readErr)
		}
	}
}

// RegisterServer wires h into srv as the jaxbucket.Transport service.
func RegisterServer(srv *grpc.Server, h Handler) {
	srv.RegisterService(&ServiceDesc, h)
}
