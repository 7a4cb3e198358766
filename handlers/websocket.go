package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mapleleafu/cardarena/arena-backend/models"
	pkgmodels "github.com/mapleleafu/cardarena/arena-backend/pkg/models"
	"github.com/mapleleafu/cardarena/arena-backend/pkg/responses"
	"github.com/mapleleafu/cardarena/arena-backend/session"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 25 * time.Second
	maxMessageSize = 1 << 16
	sendBuffer     = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

var errPeerClosed = errors.New("peer closed")

// wsPeer adapts a websocket to session.Peer. Outgoing messages are queued on
// send and written by writePump, so Send never blocks the caller.
type wsPeer struct {
	ws  *websocket.Conn
	log *zap.Logger

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func newWsPeer(ws *websocket.Conn, log *zap.Logger) *wsPeer {
	return &wsPeer{
		ws:   ws,
		log:  log,
		send: make(chan []byte, sendBuffer),
	}
}

func (p *wsPeer) Send(resp pkgmodels.ApiResponse) error {
	message, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errPeerClosed
	}
	select {
	case p.send <- message:
		return nil
	default:
		// A peer that stops reading is cut off rather than stalling the server.
		p.log.Warn("send buffer full, closing connection", zap.String("remote", p.RemoteAddr()))
		p.closeLocked()
		return errPeerClosed
	}
}

func (p *wsPeer) Receive() (models.Inbound, error) {
	for {
		kind, message, err := p.ws.ReadMessage()
		if err != nil {
			return models.Inbound{}, err
		}
		_ = p.ws.SetReadDeadline(time.Now().Add(pongWait))
		if kind != websocket.TextMessage {
			continue
		}
		if !json.Valid(message) {
			return models.Inbound{}, responses.ProtocolError{Msg: "invalid json frame"}
		}
		return models.Inbound{Raw: message}, nil
	}
}

// Close stops the write pump, which flushes what is queued and then closes
// the socket.
func (p *wsPeer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
	return nil
}

func (p *wsPeer) closeLocked() {
	if p.closed {
		return
	}
	p.closed = true
	close(p.send)
}

func (p *wsPeer) RemoteAddr() string { return p.ws.RemoteAddr().String() }

func (p *wsPeer) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		p.ws.Close()
	}()

	for {
		select {
		case message, ok := <-p.send:
			_ = p.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = p.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := p.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				p.log.Debug("error writing message", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = p.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// WsHandler upgrades the request and hands the connection to srv for its
// whole lifetime.
func WsHandler(srv *session.Server, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("upgrade error", zap.Error(err))
			return
		}

		conn.SetReadLimit(maxMessageSize)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})

		peer := newWsPeer(conn, log)
		go peer.writePump()
		srv.Serve(peer)
	}
}
