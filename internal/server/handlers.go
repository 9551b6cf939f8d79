package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"time"

	"chat-api/internal/schema"
	"chat-api/internal/serialize"
	"chat-api/internal/storage"
	"chat-api/internal/storage/zapadapter"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const (
	defaultMessagesLimit = 50
	maxCollections       = 10
	probeTimeout         = 5 * time.Second
	maxStatusErrLen      = 50
)

// Diagnostic statuses reported by GET /test
const (
	statusRunning      = "✅ Running"
	statusSet          = "✅ Set"
	statusNotSet       = "❌ Not Set"
	statusAvailable    = "✅ Available"
	statusNotAvailable = "❌ Not Available"
	statusWorking      = "✅ Connected & Working"
	statusStoreError   = "⚠️  Connected but Error: "
	statusPanic        = "❌ Error: "
	connected          = "Connected"
	notConnected       = "Not Connected"
)

type handler struct {
	logger      *zap.SugaredLogger
	store       storage.Store
	storeConfig storage.Config
}

// detail is the body of every error response
type detail struct {
	Detail interface{} `json:"detail"`
}

type diagnostics struct {
	Backend          string   `json:"backend"`
	Database         string   `json:"database"`
	DatabaseURL      string   `json:"database_url"`
	DatabaseName     string   `json:"database_name"`
	ConnectionStatus string   `json:"connection_status"`
	Collections      []string `json:"collections"`
}

// routes maps ServeMux patterns to handlers
func (h *handler) routes() map[string]http.Handler {
	return map[string]http.Handler{
		"GET /{$}":                      http.HandlerFunc(h.root),
		"GET /test":                     http.HandlerFunc(h.diagnostics),
		"POST /api/users":               http.HandlerFunc(h.createUser),
		"GET /api/users":                http.HandlerFunc(h.listUsers),
		"GET /api/users/{id}":           http.HandlerFunc(h.getUser),
		"GET /api/rooms":                http.HandlerFunc(h.listRooms),
		"POST /api/rooms":               http.HandlerFunc(h.createRoom),
		"POST /api/rooms/{id}/join":     http.HandlerFunc(h.joinRoom),
		"GET /api/rooms/{id}/messages":  http.HandlerFunc(h.listMessages),
		"POST /api/rooms/{id}/messages": http.HandlerFunc(h.sendMessage),
	}
}

// root handles HTTP requests on "/" endpoint
func (h *handler) root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Chat API is running"})
}

// diagnostics handles HTTP requests on "/test" endpoint. It always answers 200.
func (h *handler) diagnostics(w http.ResponseWriter, r *http.Request) {
	d := diagnostics{
		Backend:          statusRunning,
		Database:         statusNotAvailable,
		DatabaseURL:      presence(h.storeConfig.URL),
		DatabaseName:     presence(h.storeConfig.Name),
		ConnectionStatus: notConnected,
		Collections:      []string{},
	}

	if h.store != nil {
		d.Database = statusAvailable
		h.probe(r.Context(), &d)
	}

	writeJSON(w, http.StatusOK, d)
}

// probe lists collections to check that the store answers
func (h *handler) probe(ctx context.Context, d *diagnostics) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Errorf("store probe panicked: %v", rec)
			d.Database = statusPanic + truncate(fmt.Sprint(rec), maxStatusErrLen)
			d.ConnectionStatus = notConnected
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	names, err := h.store.CollectionNames(ctx)
	if err != nil {
		h.logger.Warnf("store probe failed: %v", err)
		d.Database = statusStoreError + truncate(err.Error(), maxStatusErrLen)
		return
	}

	if len(names) > maxCollections {
		names = names[:maxCollections]
	}
	if names != nil {
		d.Collections = names
	}
	d.Database = statusWorking
	d.ConnectionStatus = connected
}

// createUser handles HTTP requests on "POST /api/users" endpoint
func (h *handler) createUser(w http.ResponseWriter, r *http.Request) {
	var in schema.CreateUser
	if !h.bind(w, r, &in) {
		return
	}

	h.create(w, r, schema.UserCollection, in.User())
}

// listUsers handles HTTP requests on "GET /api/users" endpoint
func (h *handler) listUsers(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, schema.UserCollection)
}

// getUser handles HTTP requests on "GET /api/users/{id}" endpoint
func (h *handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r.PathValue("id"), "Invalid user ID")
	if !ok {
		return
	}

	user, err := h.store.FindOne(r.Context(), schema.UserCollection, storage.Filter{storage.IDField: id})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeDetail(w, http.StatusNotFound, "User not found")
			return
		}
		h.internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, serialize.Doc(user))
}

// listRooms handles HTTP requests on "GET /api/rooms" endpoint
func (h *handler) listRooms(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, schema.RoomCollection)
}

// createRoom handles HTTP requests on "POST /api/rooms" endpoint
func (h *handler) createRoom(w http.ResponseWriter, r *http.Request) {
	var in schema.CreateRoom
	if !h.bind(w, r, &in) {
		return
	}

	h.create(w, r, schema.RoomCollection, in.Room())
}

// joinRoom handles HTTP requests on "POST /api/rooms/{id}/join" endpoint
func (h *handler) joinRoom(w http.ResponseWriter, r *http.Request) {
	var in schema.JoinRoom
	if !h.bind(w, r, &in) {
		return
	}

	roomID, ok := h.parseID(w, r.PathValue("id"), "Invalid room ID")
	if !ok {
		return
	}
	userID, ok := h.parseID(w, *in.UserID, "Invalid user ID")
	if !ok {
		return
	}

	if !h.exists(w, r, schema.UserCollection, userID, "User not found") {
		return
	}

	roomFilter := storage.Filter{storage.IDField: roomID}
	err := h.store.AddToSet(r.Context(), schema.RoomCollection, roomFilter, schema.RoomMembersField, userID.Hex())
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		h.internalError(w, r, err)
		return
	}

	room, err := h.store.FindOne(r.Context(), schema.RoomCollection, roomFilter)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeDetail(w, http.StatusNotFound, "Room not found")
			return
		}
		h.internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, serialize.Doc(room))
}

// listMessages handles HTTP requests on "GET /api/rooms/{id}/messages" endpoint
func (h *handler) listMessages(w http.ResponseWriter, r *http.Request) {
	roomID, ok := h.parseID(w, r.PathValue("id"), "Invalid room ID")
	if !ok {
		return
	}

	limit, err := queryLimit(r)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, detail{Detail: []schema.FieldError{{
			Loc:  []string{"query", "limit"},
			Msg:  "value is not a valid integer",
			Type: "type_error.integer",
		}}})
		return
	}

	messages, err := h.store.GetDocuments(r.Context(), schema.MessageCollection,
		storage.Filter{schema.MessageRoomField: roomID.Hex()}, limit)
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	sortByCreatedAt(messages)

	writeJSON(w, http.StatusOK, serialize.List(messages))
}

// sendMessage handles HTTP requests on "POST /api/rooms/{id}/messages" endpoint
func (h *handler) sendMessage(w http.ResponseWriter, r *http.Request) {
	var in schema.SendMessage
	if !h.bind(w, r, &in) {
		return
	}

	roomID, ok := h.parseID(w, r.PathValue("id"), "Invalid room ID")
	if !ok {
		return
	}
	if !h.exists(w, r, schema.RoomCollection, roomID, "Room not found") {
		return
	}

	senderID, ok := h.parseID(w, *in.SenderID, "Invalid user ID")
	if !ok {
		return
	}
	if !h.exists(w, r, schema.UserCollection, senderID, "User not found") {
		return
	}

	h.create(w, r, schema.MessageCollection, in.Message(roomID.Hex()))
}

// bind reads request body into dst, answering 422 when it does not fit
func (h *handler) bind(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Can not read request body")
		return false
	}

	if err := schema.Bind(body, dst); err != nil {
		var verr *schema.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusUnprocessableEntity, detail{Detail: verr.Fields})
			return false
		}
		h.internalError(w, r, err)
		return false
	}

	return true
}

// parseID answers 400 with msg when raw is not a valid identifier
func (h *handler) parseID(w http.ResponseWriter, raw, msg string) (primitive.ObjectID, bool) {
	id, err := storage.ParseID(raw)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, msg)
		return primitive.NilObjectID, false
	}
	return id, true
}

// exists answers 404 with msg when collection has no document with id
func (h *handler) exists(w http.ResponseWriter, r *http.Request, collection string, id primitive.ObjectID, msg string) bool {
	_, err := h.store.FindOne(r.Context(), collection, storage.Filter{storage.IDField: id})
	if err == nil {
		return true
	}
	if errors.Is(err, storage.ErrNotFound) {
		writeDetail(w, http.StatusNotFound, msg)
		return false
	}
	h.internalError(w, r, err)
	return false
}

// create inserts doc and answers with the stored record
func (h *handler) create(w http.ResponseWriter, r *http.Request, collection string, doc storage.Document) {
	if _, err := h.store.CreateDocument(r.Context(), collection, doc); err != nil {
		h.internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, serialize.Doc(doc))
}

// list answers with every document of collection
func (h *handler) list(w http.ResponseWriter, r *http.Request, collection string) {
	docs, err := h.store.GetDocuments(r.Context(), collection, nil, 0)
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, serialize.List(docs))
}

func (h *handler) internalError(w http.ResponseWriter, r *http.Request, err error) {
	if id, ok := zapadapter.IDFromContext(r.Context()); ok {
		h.logger.Errorw(err.Error(), "id", id)
	} else {
		h.logger.Error(err)
	}
	writeDetail(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
}

// queryLimit parses "limit" query parameter, zero means no limit
func queryLimit(r *http.Request) (int64, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultMessagesLimit, nil
	}

	limit, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	if limit < 0 {
		limit = 0
	}
	return limit, nil
}

// sortByCreatedAt orders docs by creation time keeping documents without it first
func sortByCreatedAt(docs []storage.Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		ti, iok := createdAt(docs[i])
		tj, jok := createdAt(docs[j])
		if !iok || !jok {
			return !iok && jok
		}
		return ti.Before(tj)
	})
}

func createdAt(doc storage.Document) (time.Time, bool) {
	switch t := doc[storage.CreatedAtField].(type) {
	case time.Time:
		return t, true
	case primitive.DateTime:
		return t.Time(), true
	default:
		return time.Time{}, false
	}
}

func presence(v string) string {
	if v == "" {
		return statusNotSet
	}
	return statusSet
}

// truncate cuts s to at most n characters
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(payload)
}

func writeDetail(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, detail{Detail: msg})
}
