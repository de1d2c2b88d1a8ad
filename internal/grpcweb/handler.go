package grpcweb

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"clinic-booking-api/internal/rpc"
)

const maxBody = 4 << 20

// forwarded request headers
var passHeaders = []string{"authorization", "x-request-id"}

// Bridge translates gRPC-Web (browser HTTP/1.1) → native gRPC. Payloads
// are forwarded as raw bytes.
type Bridge struct {
	conn   grpc.ClientConnInterface
	closer io.Closer
	logger *slog.Logger
}

// New dials the gRPC server at addr (e.g. "localhost:50051").
func New(addr string, logger *slog.Logger) (*Bridge, error) {
	conn, err := grpc.NewClient(
		addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("grpcweb dial: %w", err)
	}
	b := NewWithConn(conn, logger)
	b.closer = conn
	return b, nil
}

// NewWithConn forwards over an existing connection, which the caller owns.
func NewWithConn(conn grpc.ClientConnInterface, logger *slog.Logger) *Bridge {
	return &Bridge{conn: conn, logger: logger}
}

func (b *Bridge) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer.Close()
}

// Handler returns an http.Handler that translates gRPC-Web → gRPC.
func (b *Bridge) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers",
			"Content-Type, X-Grpc-Web, X-User-Agent, Authorization, X-Request-Id")
		w.Header().Set("Access-Control-Expose-Headers",
			"Grpc-Status, Grpc-Message, Error-Kind, X-Request-Id")
		w.Header().Set("Access-Control-Max-Age", "86400")
		w.Header().Add("Vary", "Origin")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		ct := r.Header.Get("Content-Type")
		if !strings.HasPrefix(ct, "application/grpc-web") {
			http.Error(w, "not grpc-web", http.StatusUnsupportedMediaType)
			return
		}

		b.forward(w, r, strings.HasPrefix(ct, "application/grpc-web-text"))
	})
}

func (b *Bridge) forward(w http.ResponseWriter, r *http.Request, text bool) {
	out := &frameWriter{w: w, text: text}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		out.trailer(codes.InvalidArgument, "read body failed", nil)
		return
	}
	if text {
		if body, err = base64.StdEncoding.DecodeString(string(body)); err != nil {
			out.trailer(codes.InvalidArgument, "bad base64 body", nil)
			return
		}
	}
	// grpc-web frame: 1-byte flag + 4-byte big-endian length + protobuf
	if len(body) < 5 {
		out.trailer(codes.InvalidArgument, "body too short", nil)
		return
	}
	if body[0] != 0 {
		out.trailer(codes.Unimplemented, "compressed frames are not supported", nil)
		return
	}
	msgLen := binary.BigEndian.Uint32(body[1:5])
	if uint64(msgLen)+5 > uint64(len(body)) {
		out.trailer(codes.InvalidArgument, "incomplete frame", nil)
		return
	}
	payload := body[5 : 5+msgLen]

	md := metadata.MD{}
	for _, h := range passHeaders {
		if vals := r.Header.Values(h); len(vals) > 0 {
			md.Set(h, vals...)
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		md.Set("x-forwarded-for", host)
	}
	ctx := metadata.NewOutgoingContext(r.Context(), md)

	// invoke gRPC method using raw codec (pass-through bytes)
	var header, trailer metadata.MD
	resp := &rawMsg{}
	err = b.conn.Invoke(ctx, r.URL.Path, &rawMsg{data: payload}, resp,
		grpc.ForceCodec(rawCodec{}), grpc.Header(&header), grpc.Trailer(&trailer))

	if v := header.Get("x-request-id"); len(v) > 0 {
		w.Header().Set("X-Request-Id", v[0])
	}
	if err != nil {
		st := status.Convert(err)
		b.logger.Debug("grpc-web call failed", "method", r.URL.Path, "code", st.Code().String())
		out.trailer(st.Code(), st.Message(), trailer)
		return
	}
	out.data(resp.data)
	out.trailer(codes.OK, "", trailer)
}

// rawMsg wraps raw protobuf bytes.
type rawMsg struct{ data []byte }

// rawCodec passes bytes through without marshal/unmarshal.
type rawCodec struct{}

func (rawCodec) Marshal(v any) ([]byte, error) {
	return v.(*rawMsg).data, nil
}

func (rawCodec) Unmarshal(data []byte, v any) error {
	m := v.(*rawMsg)
	m.data = append([]byte(nil), data...)
	return nil
}

func (rawCodec) Name() string { return "proto" }

// frameWriter writes grpc-web frames. In grpc-web-text mode the frames are
// held back and sent as one base64 body with the trailer.
type frameWriter struct {
	w       http.ResponseWriter
	text    bool
	started bool
	pending []byte
}

func (f *frameWriter) start() {
	if f.started {
		return
	}
	f.started = true
	ct := "application/grpc-web+proto"
	if f.text {
		ct = "application/grpc-web-text+proto"
	}
	f.w.Header().Set("Content-Type", ct)
	f.w.WriteHeader(http.StatusOK)
}

func (f *frameWriter) frame(flag byte, data []byte) {
	f.start()
	buf := make([]byte, 5+len(data))
	buf[0] = flag
	binary.BigEndian.PutUint32(buf[1:5], uint32(len(data)))
	copy(buf[5:], data)
	if f.text {
		f.pending = append(f.pending, buf...)
		return
	}
	f.w.Write(buf)
}

func (f *frameWriter) data(b []byte) { f.frame(0x00, b) }

func (f *frameWriter) trailer(code codes.Code, msg string, md metadata.MD) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "grpc-status:%d\r\n", code)
	if msg != "" {
		fmt.Fprintf(&sb, "grpc-message:%s\r\n", encodeMessage(msg))
	}
	if v := md.Get(rpc.KindTrailer); len(v) > 0 {
		fmt.Fprintf(&sb, "%s:%s\r\n", rpc.KindTrailer, v[0])
	}
	f.frame(0x80, []byte(sb.String()))
	if f.text {
		io.WriteString(f.w, base64.StdEncoding.EncodeToString(f.pending))
	}
}

// encodeMessage percent-encodes grpc-message as the gRPC HTTP/2 mapping
// requires.
func encodeMessage(msg string) string {
	const hex = "0123456789ABCDEF"
	var sb strings.Builder
	for i := 0; i < len(msg); i++ {
		c := msg[i]
		if c >= 0x20 && c <= 0x7e && c != '%' {
			sb.WriteByte(c)
			continue
		}
		sb.WriteByte('%')
		sb.WriteByte(hex[c>>4])
		sb.WriteByte(hex[c&0xf])
	}
	return sb.String()
}
