package api

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "telesync.v1.SessionService"

// SessionServer is the daemon's gRPC surface.
type SessionServer interface {
	GetStatus(context.Context, *GetStatusRequest) (*GetStatusResponse, error)
	ListChats(context.Context, *ListChatsRequest) (*ListChatsResponse, error)
	OpenChat(context.Context, *OpenChatRequest) (*Empty, error)
	CloseChat(context.Context, *Empty) (*Empty, error)
	ListMessages(context.Context, *ListMessagesRequest) (*ListMessagesResponse, error)
	LoadMore(context.Context, *Empty) (*LoadMoreResponse, error)
	SendText(context.Context, *SendTextRequest) (*SendTextResponse, error)
	MarkRead(context.Context, *MarkReadRequest) (*Empty, error)
	DeleteMessage(context.Context, *DeleteMessageRequest) (*Empty, error)
	SearchPublicChats(context.Context, *SearchRequest) (*ListChatsResponse, error)
	JoinChat(context.Context, *JoinChatRequest) (*Empty, error)
	ListContacts(context.Context, *ListContactsRequest) (*ListContactsResponse, error)
	LoadChats(context.Context, *LoadChatsRequest) (*LoadChatsResponse, error)
	GetMe(context.Context, *Empty) (*User, error)
	Download(context.Context, *DownloadRequest) (*DownloadResponse, error)
	Logout(context.Context, *Empty) (*Empty, error)
	Watch(*WatchRequest, EventStream) error
}

// EventStream is the server side of a Watch call.
type EventStream interface {
	Send(*Event) error
	Context() context.Context
}

type eventStream struct {
	grpc.ServerStream
}

func (s eventStream) Send(e *Event) error { return s.SendMsg(e) }

// Register attaches srv to a gRPC server.
func Register(s grpc.ServiceRegistrar, srv SessionServer) {
	s.RegisterService(&serviceDesc, srv)
}

func method(name string) string { return "/" + ServiceName + "/" + name }

// unary adapts a typed method to a grpc.MethodHandler.
func unary[Req, Resp any](name string, call func(SessionServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(SessionServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*Req))
			})
		},
	}
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	in := new(WatchRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(SessionServer).Watch(in, eventStream{stream})
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SessionServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("GetStatus", SessionServer.GetStatus),
		unary("ListChats", SessionServer.ListChats),
		unary("OpenChat", SessionServer.OpenChat),
		unary("CloseChat", SessionServer.CloseChat),
		unary("ListMessages", SessionServer.ListMessages),
		unary("LoadMore", SessionServer.LoadMore),
		unary("SendText", SessionServer.SendText),
		unary("MarkRead", SessionServer.MarkRead),
		unary("DeleteMessage", SessionServer.DeleteMessage),
		unary("SearchPublicChats", SessionServer.SearchPublicChats),
		unary("JoinChat", SessionServer.JoinChat),
		unary("ListContacts", SessionServer.ListContacts),
		unary("LoadChats", SessionServer.LoadChats),
		unary("GetMe", SessionServer.GetMe),
		unary("Download", SessionServer.Download),
		unary("Logout", SessionServer.Logout),
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Watch", Handler: watchHandler, ServerStreams: true},
	},
	Metadata: "telesync/v1/session.cbor",
}
