package api

import (
	"context"
	"errors"
	"io"

	"github.com/matheus3301/telesync/internal/codec"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client talks to a session daemon over its unix socket.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to the daemon listening on socketPath. The connection is
// established lazily on the first call.
func Dial(socketPath string) (*Client, error) {
	conn, err := grpc.NewClient("unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codec.Name)),
	)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

// Close closes the connection.
func (c *Client) Close() error { return c.conn.Close() }

func invoke[Resp any](ctx context.Context, c *Client, name string, req any) (*Resp, error) {
	out := new(Resp)
	if err := c.conn.Invoke(ctx, method(name), req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetStatus(ctx context.Context) (*GetStatusResponse, error) {
	return invoke[GetStatusResponse](ctx, c, "GetStatus", &GetStatusRequest{})
}

func (c *Client) ListChats(ctx context.Context, limit, offset int32) (*ListChatsResponse, error) {
	return invoke[ListChatsResponse](ctx, c, "ListChats", &ListChatsRequest{Limit: limit, Offset: offset})
}

func (c *Client) OpenChat(ctx context.Context, chatID int64) error {
	_, err := invoke[Empty](ctx, c, "OpenChat", &OpenChatRequest{ChatID: chatID})
	return err
}

func (c *Client) CloseChat(ctx context.Context) error {
	_, err := invoke[Empty](ctx, c, "CloseChat", &Empty{})
	return err
}

func (c *Client) ListMessages(ctx context.Context, limit int32) (*ListMessagesResponse, error) {
	return invoke[ListMessagesResponse](ctx, c, "ListMessages", &ListMessagesRequest{Limit: limit})
}

func (c *Client) LoadMore(ctx context.Context) (int32, error) {
	resp, err := invoke[LoadMoreResponse](ctx, c, "LoadMore", &Empty{})
	if err != nil {
		return 0, err
	}
	return resp.Loaded, nil
}

func (c *Client) SendText(ctx context.Context, chatID int64, text string) (*Message, error) {
	resp, err := invoke[SendTextResponse](ctx, c, "SendText", &SendTextRequest{ChatID: chatID, Text: text})
	if err != nil {
		return nil, err
	}
	return &resp.Message, nil
}

func (c *Client) MarkRead(ctx context.Context, messageIDs ...int64) error {
	_, err := invoke[Empty](ctx, c, "MarkRead", &MarkReadRequest{MessageIDs: messageIDs})
	return err
}

func (c *Client) DeleteMessage(ctx context.Context, messageID int64) error {
	_, err := invoke[Empty](ctx, c, "DeleteMessage", &DeleteMessageRequest{MessageID: messageID})
	return err
}

func (c *Client) SearchPublicChats(ctx context.Context, query string) (*ListChatsResponse, error) {
	return invoke[ListChatsResponse](ctx, c, "SearchPublicChats", &SearchRequest{Query: query})
}

func (c *Client) JoinChat(ctx context.Context, chatID int64) error {
	_, err := invoke[Empty](ctx, c, "JoinChat", &JoinChatRequest{ChatID: chatID})
	return err
}

func (c *Client) ListContacts(ctx context.Context, refresh bool) (*ListContactsResponse, error) {
	return invoke[ListContactsResponse](ctx, c, "ListContacts", &ListContactsRequest{Refresh: refresh})
}

func (c *Client) LoadChats(ctx context.Context, limit int32) (done bool, err error) {
	resp, err := invoke[LoadChatsResponse](ctx, c, "LoadChats", &LoadChatsRequest{Limit: limit})
	if err != nil {
		return false, err
	}
	return resp.Done, nil
}

func (c *Client) GetMe(ctx context.Context) (*User, error) {
	return invoke[User](ctx, c, "GetMe", &Empty{})
}

func (c *Client) Download(ctx context.Context, chatID, messageID int64) (*DownloadResponse, error) {
	return invoke[DownloadResponse](ctx, c, "Download", &DownloadRequest{ChatID: chatID, MessageID: messageID})
}

func (c *Client) Logout(ctx context.Context) error {
	_, err := invoke[Empty](ctx, c, "Logout", &Empty{})
	return err
}

// Watch streams events whose kind starts with prefix to fn until ctx ends,
// the daemon goes away or fn returns an error.
func (c *Client) Watch(ctx context.Context, prefix string, fn func(*Event) error) error {
	stream, err := c.conn.NewStream(ctx, &serviceDesc.Streams[0], method("Watch"))
	if err != nil {
		return err
	}
	if err := stream.SendMsg(&WatchRequest{Prefix: prefix}); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}
	for {
		evt := new(Event)
		if err := stream.RecvMsg(evt); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if err := fn(evt); err != nil {
			return err
		}
	}
}
