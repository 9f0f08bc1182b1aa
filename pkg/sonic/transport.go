package sonic

import (
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Transport is the raw bidirectional byte stream the engine speaks over.
// One JSON event per Send/Receive call.
type Transport interface {
	// Send writes one outbound event. Safe for concurrent use.
	Send(data []byte) error

	// Receive blocks until the next inbound event arrives. Not safe for
	// concurrent use; there is exactly one receive loop.
	Receive() ([]byte, error)

	// Close tears down the stream. Unblocks a pending Receive.
	Close() error
}

// wsTransport carries events over a websocket connection.
type wsTransport struct {
	conn *websocket.Conn

	// writeMu serializes writes; gorilla permits one concurrent writer.
	writeMu sync.Mutex
}

// dialWebSocket connects the bidirectional event stream. Credentials are
// taken from the environment (the loader that populates them is outside
// this package). A missing credential or an unreachable endpoint is a
// ConnectionError and is fatal.
func dialWebSocket(endpoint string) (Transport, error) {
	accessKey := os.Getenv("AWS_ACCESS_KEY_ID")
	secretKey := os.Getenv("AWS_SECRET_ACCESS_KEY")
	if accessKey == "" || secretKey == "" {
		return nil, &ConnectionError{Err: ErrMissingCreds}
	}

	header := http.Header{}
	header.Set("Authorization", fmt.Sprintf("AWS4 %s", accessKey))
	if token := os.Getenv("AWS_SESSION_TOKEN"); token != "" {
		header.Set("X-Amz-Security-Token", token)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.Dial(endpoint, header)
	if err != nil {
		return nil, &ConnectionError{Err: err}
	}

	return &wsTransport{conn: conn}, nil
}

func (t *wsTransport) Send(data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	t.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *wsTransport) Receive() ([]byte, error) {
	_, data, err := t.conn.ReadMessage()
	return data, err
}

func (t *wsTransport) Close() error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	t.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return t.conn.Close()
}
