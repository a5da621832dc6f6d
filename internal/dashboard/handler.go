package dashboard

import (
	"encoding/json"
	"log"
	"time"

	"github.com/universalyoga/studiosync/internal/autosync"
)

// Handler formats catalog and sync events as dashboard messages. It
// bridges between the scheduler's event hooks and the WebSocket server.
type Handler struct {
	server *Server
	logger *log.Logger
}

// NewHandler creates an event handler connected to a dashboard server
func NewHandler(server *Server, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{server: server, logger: logger}
}

// OnSyncEvent satisfies the scheduler's OnEvent hook.
func (h *Handler) OnSyncEvent(kind string, result *autosync.Result) {
	var msgType MessageType
	switch kind {
	case "sync_started":
		msgType = MessageTypeSyncStarted
	case "sync_complete", "sync_failed":
		msgType = MessageTypeSyncComplete
	default:
		h.logger.Printf("Unknown sync event %q", kind)
		return
	}

	data := SyncEventData{}
	if result != nil {
		data.Status = result.Status
		data.Type = result.Type
		data.Duration = result.Duration.Milliseconds()
		data.DataSize = result.DataSize
	}

	h.broadcast(msgType, data)
}

// OnRecordChange announces a catalog mutation to connected clients.
func (h *Handler) OnRecordChange(kind string, id int, action, name string) {
	h.broadcast(MessageTypeRecordUpdate, RecordUpdateData{
		Kind:   kind,
		ID:     id,
		Action: action,
		Name:   name,
	})
}

func (h *Handler) broadcast(msgType MessageType, data any) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		h.logger.Printf("Failed to marshal %s data: %v", msgType, err)
		return
	}

	h.server.Broadcast(Message{
		Type:      msgType,
		Timestamp: time.Now(),
		Data:      dataJSON,
	})
}
