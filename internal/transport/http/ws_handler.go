package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"en-words-service/internal/app"
	"en-words-service/internal/domain"
)

// WSHandler drives an interactive quiz run over a WebSocket. Each connection
// owns one session state machine wired straight to the word service, so the
// play protocol exercises the same start/choose/next/stop semantics as the
// HTTP clients.
type WSHandler struct {
	service  *app.WordService
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.WordService, log *zap.Logger) *WSHandler {
	return &WSHandler{
		service: service,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// serviceBridge adapts the server-side word service to the session's
// client-side ports, skipping the HTTP hop for in-process runs.
type serviceBridge struct {
	service *app.WordService
}

func (b serviceBridge) FetchWords(ctx context.Context) ([]domain.Word, error) {
	return b.service.ListWords(ctx)
}

func (b serviceBridge) SubmitAttempts(ctx context.Context, attempts []domain.Attempt) (int, error) {
	return b.service.RecordAttempts(ctx, attempts)
}

func (b serviceBridge) SubmitChecks(ctx context.Context, ids []string) (domain.CheckSync, error) {
	return b.service.ReplaceChecks(ctx, ids)
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type sessionPayload struct {
	SessionID string         `json:"sessionId"`
	Groups    []domain.Group `json:"groups"`
	WordCount int            `json:"wordCount"`
}

type startPayload struct {
	GroupID string `json:"groupId"`
}

type choosePayload struct {
	ID string `json:"id"`
}

type togglePayload struct {
	WordID  string `json:"wordId"`
	Checked bool   `json:"checked"`
}

type stopPayload struct {
	Record bool `json:"record"`
}

type wsOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type questionPayload struct {
	Term     string          `json:"term"`
	Options  []wsOption      `json:"options"`
	Progress domain.Progress `json:"progress"`
}

type answerPayload struct {
	Status     domain.QuestionStatus `json:"status"`
	SelectedID string                `json:"selectedId"`
	CorrectID  string                `json:"correctId"`
}

type finishedPayload struct {
	Status string `json:"status"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and runs the play protocol until the client
// disconnects. All writes happen on the read loop, satisfying gorilla's
// single-writer requirement without a writer goroutine.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	sessionID := uuid.NewString()
	log := h.log.With(zap.String("wsSession", sessionID))

	bridge := serviceBridge{service: h.service}
	session := app.NewSession(bridge, bridge, log, app.WithConfirm(func(message string) bool {
		// No interactive prompt on this transport: warn and accept the loss.
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "warning", Payload: errorPayload{Message: message}})
		return true
	}))

	if err := session.LoadWords(r.Context()); err != nil {
		log.Warn("loading words failed", zap.Error(err))
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: "failed to load words"}})
		return
	}

	_ = conn.WriteJSON(outboundMessage[sessionPayload]{Type: "session", Payload: sessionPayload{
		SessionID: sessionID,
		Groups:    session.Groups(),
		WordCount: len(session.Words()),
	}})

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			// Drop an unfinished run without recording; the client went away.
			_ = session.Stop(context.Background(), false)
			return
		}

		switch inbound.Type {
		case "start":
			var payload startPayload
			_ = json.Unmarshal(inbound.Payload, &payload)
			session.SelectGroup(payload.GroupID)
			if err := session.Start(); err != nil {
				h.writeError(conn, err.Error())
				continue
			}
			if session.Status() == app.StatusCompleted {
				_ = conn.WriteJSON(outboundMessage[finishedPayload]{Type: "finished", Payload: finishedPayload{Status: string(app.StatusCompleted)}})
				continue
			}
			h.writeQuestion(conn, session)

		case "choose":
			var payload choosePayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				h.writeError(conn, "invalid choose payload")
				continue
			}
			session.Choose(domain.Option{ID: payload.ID})
			question := session.Question()
			if question == nil || question.Status == domain.QuestionIdle {
				// Guarded no-op: stale option or repeated click.
				continue
			}
			correctID := ""
			for _, opt := range question.Options {
				if opt.IsCorrect {
					correctID = opt.ID
				}
			}
			_ = conn.WriteJSON(outboundMessage[answerPayload]{Type: "answer", Payload: answerPayload{
				Status:     question.Status,
				SelectedID: question.SelectedID,
				CorrectID:  correctID,
			}})

		case "next":
			if err := session.Next(r.Context()); err != nil {
				h.writeError(conn, err.Error())
				continue
			}
			if session.Status() == app.StatusInProgress {
				h.writeQuestion(conn, session)
				continue
			}
			_ = conn.WriteJSON(outboundMessage[finishedPayload]{Type: "finished", Payload: finishedPayload{Status: string(session.Status())}})

		case "toggleCheck":
			var payload togglePayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				h.writeError(conn, "invalid toggleCheck payload")
				continue
			}
			session.ToggleCheck(payload.WordID, payload.Checked)

		case "stop":
			var payload stopPayload
			_ = json.Unmarshal(inbound.Payload, &payload)
			if err := session.Stop(r.Context(), payload.Record); err != nil {
				h.writeError(conn, err.Error())
				continue
			}
			_ = conn.WriteJSON(outboundMessage[finishedPayload]{Type: "finished", Payload: finishedPayload{Status: string(session.Status())}})

		default:
			h.writeError(conn, "unsupported message type")
		}
	}
}

func (h *WSHandler) writeQuestion(conn *websocket.Conn, session *app.Session) {
	question := session.Question()
	if question == nil {
		return
	}
	options := make([]wsOption, 0, len(question.Options))
	for _, opt := range question.Options {
		options = append(options, wsOption{ID: opt.ID, Text: opt.Text})
	}
	progress, _ := session.Progress()
	_ = conn.WriteJSON(outboundMessage[questionPayload]{Type: "question", Payload: questionPayload{
		Term:     question.Word.Term,
		Options:  options,
		Progress: progress,
	}})
}

func (h *WSHandler) writeError(conn *websocket.Conn, message string) {
	_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: message}})
}
