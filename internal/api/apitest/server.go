// Package apitest hosts an in-process fake of the chat backend for the
// test suite. It speaks the same endpoint table and error shapes as the
// real service: JSON entities on success, {"detail": ...} bodies on
// failure, bearer-token auth on protected routes.
package apitest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/capitalize-ai/chat-client/internal/model"
)

type contextKey string

const userIDKey contextKey = "user_id"

// Fault is a scripted failure for one operation.
type Fault struct {
	Status int
	Body   string // raw response body, may be malformed JSON on purpose
}

// Operation names accepted by Fail.
const (
	OpLogin   = "login"
	OpMe      = "me"
	OpList    = "list"
	OpCreate  = "create"
	OpDetail  = "detail"
	OpDelete  = "delete"
	OpSend    = "send"
	OpRestart = "restart"
	OpResume  = "resume"
)

type userRecord struct {
	model.User
	password string
}

type sessionRecord struct {
	model.SessionSummary
	userID   string
	messages []model.Message
}

// Server is the fake backend. Seed users and sessions through the
// helpers, point the client at URL, script failures with Fail.
type Server struct {
	URL string

	hs     *httptest.Server
	secret []byte

	mu       sync.Mutex
	users    map[string]*userRecord // by email
	sessions map[string]*sessionRecord
	order    []string // session ids, insertion order
	resumed  map[string]int // resume calls per session id
	faults   map[string]Fault

	// Reply builds the assistant response for a sent message. The
	// default echoes the input.
	Reply func(sessionID, message string) string

	// BeforeDetail, when set, runs before a session detail response is
	// written. Tests use it to hold a response in flight.
	BeforeDetail func(id string)
}

// NewServer starts the fake backend.
func NewServer() *Server {
	s := &Server{
		secret:   []byte("apitest-secret"),
		users:    make(map[string]*userRecord),
		sessions: make(map[string]*sessionRecord),
		resumed:  make(map[string]int),
		faults:   make(map[string]Fault),
		Reply: func(_, message string) string {
			return "echo: " + message
		},
	}

	r := chi.NewRouter()
	r.Post("/auth/register", s.handleRegister)
	r.Post("/auth/jwt/login", s.handleLogin)
	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Post("/auth/jwt/logout", s.handleLogout)
		r.Get("/users/me", s.handleMe)
		r.Get("/chat/sessions/", s.handleList)
		r.Post("/chat/create_session/", s.handleCreate)
		r.Get("/chat/sessions/{id}", s.handleDetail)
		r.Delete("/chat/sessions/{id}", s.handleDelete)
		r.Post("/chat/message/{id}", s.handleMessage)
		r.Post("/chat/restart_session/{id}", s.handleRestart)
		r.Post("/chat/sessions/{id}/resume", s.handleResume)
	})

	s.hs = httptest.NewServer(r)
	s.URL = s.hs.URL
	return s
}

// Close shuts the backend down.
func (s *Server) Close() {
	s.hs.Close()
}

// Fail scripts a failure for an operation. An empty body sends a
// {"detail": <status text>} payload.
func (s *Server) Fail(op string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = Fault{Status: status, Body: body}
}

// ClearFault removes a scripted failure.
func (s *Server) ClearFault(op string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.faults, op)
}

// AddUser seeds an account and returns its id.
func (s *Server) AddUser(email, password, fullName string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New().String()
	s.users[email] = &userRecord{
		User: model.User{
			ID:       id,
			Email:    email,
			FullName: fullName,
			IsActive: true,
		},
		password: password,
	}
	return id
}

// AddSession seeds a session with messages for a user id.
func (s *Server) AddSession(userID, llmModel, title string, messages []model.Message) model.SessionSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	summary := model.SessionSummary{
		ID:        uuid.New().String(),
		LLMModel:  llmModel,
		CreatedAt: time.Now().UTC(),
		Title:     title,
	}
	s.sessions[summary.ID] = &sessionRecord{
		SessionSummary: summary,
		userID:         userID,
		messages:       messages,
	}
	s.order = append(s.order, summary.ID)
	return summary
}

// Token mints a bearer token for a user id, signed the way the backend
// signs them.
func (s *Server) Token(userID string) string {
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		panic(fmt.Sprintf("apitest: sign token: %v", err))
	}
	return signed
}

func (s *Server) fault(w http.ResponseWriter, op string) bool {
	s.mu.Lock()
	f, ok := s.faults[op]
	s.mu.Unlock()
	if !ok {
		return false
	}

	if f.Body == "" {
		writeDetail(w, f.Status, http.StatusText(f.Status))
		return true
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(f.Status)
	w.Write([]byte(f.Body))
	return true
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			writeDetail(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		claims := &jwt.RegisteredClaims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return s.secret, nil
		})
		if err != nil || !token.Valid {
			writeDetail(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func currentUserID(r *http.Request) string {
	if v := r.Context().Value(userIDKey); v != nil {
		return v.(string)
	}
	return ""
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[req.Email]; exists {
		writeDetail(w, http.StatusBadRequest, "REGISTER_USER_ALREADY_EXISTS")
		return
	}

	rec := &userRecord{
		User: model.User{
			ID:       uuid.New().String(),
			Email:    req.Email,
			FullName: req.FullName,
			IsActive: true,
		},
		password: req.Password,
	}
	s.users[req.Email] = rec
	writeJSON(w, http.StatusCreated, rec.User)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.fault(w, OpLogin) {
		return
	}
	if err := r.ParseForm(); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid form")
		return
	}

	email := r.PostFormValue("username")
	password := r.PostFormValue("password")

	s.mu.Lock()
	rec, ok := s.users[email]
	s.mu.Unlock()
	if !ok || rec.password != password {
		writeDetail(w, http.StatusBadRequest, "LOGIN_BAD_CREDENTIALS")
		return
	}

	writeJSON(w, http.StatusOK, model.Token{
		AccessToken: s.Token(rec.ID),
		TokenType:   "bearer",
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	if s.fault(w, OpMe) {
		return
	}

	userID := currentUserID(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.users {
		if rec.ID == userID {
			writeJSON(w, http.StatusOK, rec.User)
			return
		}
	}
	writeDetail(w, http.StatusUnauthorized, "Unauthorized")
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	if s.fault(w, OpList) {
		return
	}

	userID := currentUserID(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	summaries := []model.SessionSummary{}
	for _, id := range s.order {
		rec := s.sessions[id]
		if rec != nil && rec.userID == userID {
			summaries = append(summaries, rec.SessionSummary)
		}
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	if s.fault(w, OpCreate) {
		return
	}

	var req model.CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	summary := model.SessionSummary{
		ID:        uuid.New().String(),
		LLMModel:  req.LLMModel,
		CreatedAt: time.Now().UTC(),
	}
	s.sessions[summary.ID] = &sessionRecord{
		SessionSummary: summary,
		userID:         currentUserID(r),
	}
	s.order = append(s.order, summary.ID)
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) session(r *http.Request) *sessionRecord {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[id]
	if !ok || rec.userID != currentUserID(r) {
		return nil
	}
	return rec
}

func (s *Server) handleDetail(w http.ResponseWriter, r *http.Request) {
	if s.fault(w, OpDetail) {
		return
	}

	if s.BeforeDetail != nil {
		s.BeforeDetail(chi.URLParam(r, "id"))
	}

	rec := s.session(r)
	if rec == nil {
		writeDetail(w, http.StatusNotFound, "Session not found")
		return
	}

	s.mu.Lock()
	detail := model.ChatSession{
		ID:        rec.ID,
		LLMModel:  rec.LLMModel,
		CreatedAt: rec.CreatedAt,
		UserID:    rec.userID,
		Title:     rec.Title,
		Messages:  append([]model.Message{}, rec.messages...),
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if s.fault(w, OpDelete) {
		return
	}

	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[id]
	if !ok || rec.userID != currentUserID(r) {
		writeDetail(w, http.StatusNotFound, "Session not found")
		return
	}

	delete(s.sessions, id)
	kept := s.order[:0]
	for _, sid := range s.order {
		if sid != id {
			kept = append(kept, sid)
		}
	}
	s.order = kept
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	if s.fault(w, OpSend) {
		return
	}

	rec := s.session(r)
	if rec == nil {
		writeDetail(w, http.StatusNotFound, "Session not found")
		return
	}

	content := r.URL.Query().Get("message")
	now := time.Now().UTC()

	s.mu.Lock()
	rec.messages = append(rec.messages,
		model.Message{
			ID:        uuid.New().String(),
			Role:      model.RoleUser,
			Content:   content,
			Timestamp: now,
			SessionID: rec.ID,
		},
	)
	assistant := model.Message{
		ID:        uuid.New().String(),
		Role:      model.RoleAssistant,
		Content:   s.Reply(rec.ID, content),
		Timestamp: now.Add(time.Millisecond),
		SessionID: rec.ID,
	}
	rec.messages = append(rec.messages, assistant)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, assistant)
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	if s.fault(w, OpRestart) {
		return
	}

	rec := s.session(r)
	if rec == nil {
		writeDetail(w, http.StatusNotFound, "Session not found")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	replacement := model.SessionSummary{
		ID:        uuid.New().String(),
		LLMModel:  rec.LLMModel,
		CreatedAt: time.Now().UTC(),
	}
	s.sessions[replacement.ID] = &sessionRecord{
		SessionSummary: replacement,
		userID:         rec.userID,
	}
	s.order = append(s.order, replacement.ID)

	writeJSON(w, http.StatusOK, map[string]string{"new_session_id": replacement.ID})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	if s.fault(w, OpResume) {
		return
	}

	rec := s.session(r)
	if rec == nil {
		writeDetail(w, http.StatusNotFound, "Session not found")
		return
	}

	s.mu.Lock()
	s.resumed[rec.ID]++
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"message": "Session resumed successfully"})
}

// ResumeCount reports how many times a session has been resumed.
func (s *Server) ResumeCount(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resumed[id]
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeDetail writes the backend's {"detail": ...} error shape.
func writeDetail(w http.ResponseWriter, status int, detail any) {
	writeJSON(w, status, map[string]any{"detail": detail})
}
