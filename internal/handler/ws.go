package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tetsu-is/crate-digger/internal/domain"
	"github.com/Tetsu-is/crate-digger/internal/log"
	"github.com/Tetsu-is/crate-digger/internal/realtime"
	"github.com/Tetsu-is/crate-digger/internal/relationship"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are enforced by the CORS layer and the token.
	CheckOrigin: func(*http.Request) bool { return true },
}

// topicFilter builds the filter for one topic as seen by userID:
//
//	feed                 posts by the user and by accounts they follow
//	notifications        the user's notifications
//	follows              edges pointing at the user
//	collection|wishlist  the user's shelves
//	comments:<post id>   the thread under one post
func (h *Handler) topicFilter(ctx context.Context, userID, topic string) (realtime.Filter, error) {
	switch topic {
	case "feed":
		return relationship.FeedFilter(ctx, h.relations, userID), nil
	case "notifications":
		return realtime.Match(realtime.TableNotifications, map[string]string{realtime.ScopeUserID: userID}), nil
	case "follows":
		return realtime.Match(realtime.TableFollows, map[string]string{realtime.ScopeFollowingID: userID}), nil
	case string(domain.KindCollection), string(domain.KindWishlist):
		return realtime.Match(realtime.TableCollection, map[string]string{
			realtime.ScopeUserID: userID,
			realtime.ScopeKind:   topic,
		}), nil
	}
	if postID, ok := strings.CutPrefix(topic, "comments:"); ok && postID != "" {
		// Same visibility as listing the thread.
		if err := h.social.CanSeePost(ctx, userID, postID); err != nil {
			return nil, err
		}
		return realtime.Match(realtime.TableComments, map[string]string{realtime.ScopePostID: postID}), nil
	}
	return nil, domain.ErrEmptyQuery
}

func (h *Handler) streamFilter(ctx context.Context, userID string, topics []string) (realtime.Filter, error) {
	if len(topics) == 0 {
		return nil, domain.ErrEmptyQuery
	}
	filters := make([]realtime.Filter, 0, len(topics))
	for _, topic := range topics {
		f, err := h.topicFilter(ctx, userID, topic)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	return func(c realtime.Change) bool {
		for _, f := range filters {
			if f(c) {
				return true
			}
		}
		return false
	}, nil
}

// changeStream upgrades to a websocket and pushes every change matching
// the requested topics as a JSON text message. A client that falls behind
// is disconnected.
func (h *Handler) changeStream(w http.ResponseWriter, r *http.Request) {
	userID := viewer(r)
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	topics := r.URL.Query()["topic"]
	filter, err := h.streamFilter(ctx, userID, topics)
	if err != nil {
		writeError(w, r, err)
		return
	}

	logger := log.Ctx(ctx).With().Strs(log.FieldTopic, topics).Logger()
	send := make(chan realtime.Change, sendBuffer)
	forward := func(c realtime.Change) {
		select {
		case send <- c:
		default:
			logger.Warn().Msg("websocket client too slow, closing")
			cancel()
		}
	}

	// Subscribe before the upgrade so nothing published after the
	// handshake is missed.
	lst, err := realtime.Listen(ctx, h.changes, realtime.ListenOptions{
		Filter: filter,
		Handlers: realtime.Handlers{
			OnInsert: forward,
			OnUpdate: forward,
			OnDelete: forward,
			OnError: func(err error) {
				logger.Warn().Err(err).Msg("change stream subscription ended")
				cancel()
			},
		},
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer lst.Unsubscribe()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	go readPump(conn, cancel)
	logger.Info().Msg("change stream opened")
	writePump(ctx, conn, send)
	logger.Info().Msg("change stream closed")
}

// readPump discards client messages and cancels once the peer goes away.
func readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writePump(ctx context.Context, conn *websocket.Conn, send <-chan realtime.Change) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case c := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(c); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
