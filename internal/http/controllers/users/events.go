package users

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dropDatabas3/userdal/internal/domain/repository"
	httperrors "github.com/dropDatabas3/userdal/internal/http/errors"
	"github.com/dropDatabas3/userdal/internal/observability/logger"
)

// changePayload es el cuerpo data: de cada evento SSE.
type changePayload struct {
	Kind string          `json:"kind"`
	ID   string          `json:"id"`
	User json.RawMessage `json:"user,omitempty"`
}

// Events maneja GET /v1/users/events: expone el change stream del
// store como Server-Sent Events. El id de cada evento es su resume
// token, así que el reconnect estándar de SSE (Last-Event-ID) continúa
// el stream sin re-entregar lo ya visto.
func (c *Controller) Events(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx)

	flusher, ok := w.(http.Flusher)
	if !ok {
		httperrors.WriteError(w, http.StatusInternalServerError, "internal", "streaming no soportado")
		return
	}

	opts := repository.WatchOptions{}
	if last := strings.TrimSpace(r.Header.Get("Last-Event-ID")); last != "" {
		opts.Resume = repository.ResumeToken(last)
	}

	stream, err := c.service.Watch(ctx, opts)
	if err != nil {
		httperrors.WriteStoreError(w, err)
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		ev, err := stream.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return // cliente desconectado
			}
			// El stream murió tras agotar el resume del adapter. Avisar
			// al cliente para que reconecte con su Last-Event-ID.
			log.Warn("event stream terminated", logger.Err(err))
			writeSSE(w, "", "error", []byte(`{"error":"stream_interrupted"}`))
			flusher.Flush()
			return
		}

		payload := changePayload{Kind: string(ev.Kind), ID: ev.ID}
		if ev.User != nil {
			if b, err := json.Marshal(userPayload(ev.User)); err == nil {
				payload.User = b
			}
		}
		data, err := json.Marshal(payload)
		if err != nil {
			continue
		}

		writeSSE(w, string(ev.Token), string(ev.Kind), data)
		flusher.Flush()
	}
}

func userPayload(u *repository.User) map[string]any {
	return map[string]any{
		"id":      u.ID,
		"name":    u.Name,
		"age":     u.Age,
		"email":   u.Email,
		"gender":  string(u.Gender),
		"version": u.Version,
	}
}

func writeSSE(w http.ResponseWriter, id, event string, data []byte) {
	if id != "" {
		_, _ = w.Write([]byte("id: " + id + "\n"))
	}
	_, _ = w.Write([]byte("event: " + event + "\n"))
	_, _ = w.Write([]byte("data: "))
	_, _ = w.Write(data)
	_, _ = w.Write([]byte("\n\n"))
}
