package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "driftchat/internal/errors"
	"driftchat/internal/interfaces"
	"driftchat/internal/llm"
	"driftchat/internal/model"
	"driftchat/internal/service"
)

// ThreadHandler serves thread pages and thread-scoped actions: viewing,
// posting messages, creating, sharing, summarizing, and logout.
type ThreadHandler struct {
	chat     interfaces.ChatService
	sessions interfaces.SessionService
	summary  interfaces.SummaryService
	hostURL  string
}

func NewThreadHandler(chat interfaces.ChatService, sessions interfaces.SessionService, summary interfaces.SummaryService, hostURL string) *ThreadHandler {
	return &ThreadHandler{chat: chat, sessions: sessions, summary: summary, hostURL: strings.TrimRight(hostURL, "/")}
}

// ThreadListItem is one sidebar entry.
type ThreadListItem struct {
	UUID      string    `json:"uuid"`
	Title     string    `json:"title"`
	Provider  string    `json:"llm_provider"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ThreadPageResponse is the page data for a thread view: the thread itself
// with its decoded message log, the viewer's relation to it, the viewer's
// sidebar and the session's quota state.
type ThreadPageResponse struct {
	Thread   *model.Thread          `json:"thread"`
	Messages []model.Message        `json:"messages"`
	IsOwner  bool                   `json:"isOwner"`
	Threads  []ThreadListItem       `json:"threads"`
	Session  *model.ExtendedSession `json:"session"`
}

// HomeResponse is the page data for the thread index.
type HomeResponse struct {
	Threads []ThreadListItem       `json:"threads"`
	Session *model.ExtendedSession `json:"session"`
}

// ShareRequest is the body of POST /api/share.
type ShareRequest struct {
	ThreadID string `json:"threadId" validate:"required"`
}

// ShareResponse carries the public URL of a shared thread.
type ShareResponse struct {
	ShareURL string `json:"shareUrl"`
}

// SummarizeRequest is the body of POST /api/summarize.
type SummarizeRequest struct {
	ThreadID string `json:"threadId" validate:"required"`
}

// SummarizeResponse reports the outcome of one summarization pass: the count
// of generated summaries, the updated thread, and the provider's token usage
// when the pass actually called the model.
type SummarizeResponse struct {
	Success            bool          `json:"success"`
	SummariesGenerated int           `json:"summariesGenerated"`
	Thread             *model.Thread `json:"thread"`
	Usage              *llm.Usage    `json:"usage,omitempty"`
}

func (h *ThreadHandler) sessionPage(r *http.Request) (model.SessionData, *model.ExtendedSession, []ThreadListItem, error) {
	session, ok := SessionFromContext(r.Context())
	if !ok {
		return model.SessionData{}, nil, nil, apperrors.ErrUnauthorized
	}

	extended, err := h.sessions.Extend(r.Context(), session)
	if err != nil {
		return session, nil, nil, err
	}

	threads, err := h.chat.ListThreads(r.Context(), session.UserID)
	if err != nil {
		return session, nil, nil, err
	}
	items := make([]ThreadListItem, 0, len(threads))
	for _, t := range threads {
		items = append(items, ThreadListItem{UUID: t.UUID, Title: t.Title, Provider: t.Provider, UpdatedAt: t.UpdatedAt})
	}
	return session, extended, items, nil
}

// HandleHome godoc
// @Summary      Thread index page data
// @Tags         threads
// @Produce      json
// @Success      200  {object}  HomeResponse
// @Router       / [get]
func (h *ThreadHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	_, extended, items, err := h.sessionPage(r)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, HomeResponse{Threads: items, Session: extended})
}

// HandleGetThread godoc
// @Summary      Thread page data
// @Description  Returns the thread with its decoded message log. The owner always may read; other sessions only when the thread is public.
// @Tags         threads
// @Produce      json
// @Param        threadID  path  string  true  "Thread UUID"
// @Success      200  {object}  ThreadPageResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /chat/{threadID} [get]
func (h *ThreadHandler) HandleGetThread(w http.ResponseWriter, r *http.Request) {
	session, extended, items, err := h.sessionPage(r)
	if err != nil {
		respondWithError(w, err)
		return
	}

	threadUUID := chi.URLParam(r, "threadID")
	thread, isOwner, err := h.chat.GetThreadForUser(r.Context(), threadUUID, session.UserID)
	if err != nil {
		respondWithError(w, err)
		return
	}
	messages, err := model.DecodeMessages(thread.Messages)
	if err != nil {
		respondWithError(w, fmt.Errorf("%w: %v", apperrors.ErrInternal, err))
		return
	}

	respondWithJSON(w, http.StatusOK, ThreadPageResponse{
		Thread:   thread,
		Messages: messages,
		IsOwner:  isOwner,
		Threads:  items,
		Session:  extended,
	})
}

// HandlePostMessage godoc
// @Summary      Append an exchange to a thread
// @Description  Accepts a form submission with the user's message. When the reply was already streamed client-side it is persisted as submitted (ai_response + is_streamed=true); otherwise a blocking provider call produces it. Rate-limited guests get 429 with the page data so the UI can render the limit state.
// @Tags         threads
// @Accept       x-www-form-urlencoded
// @Produce      json
// @Param        threadID  path      string  true   "Thread UUID"
// @Param        message   formData  string  true   "User message"
// @Success      200  {object}  ThreadPageResponse
// @Failure      429  {object}  ThreadPageResponse
// @Router       /chat/{threadID} [post]
func (h *ThreadHandler) HandlePostMessage(w http.ResponseWriter, r *http.Request) {
	session, extended, items, err := h.sessionPage(r)
	if err != nil {
		respondWithError(w, err)
		return
	}

	threadUUID := chi.URLParam(r, "threadID")
	thread, isOwner, err := h.chat.GetThreadForUser(r.Context(), threadUUID, session.UserID)
	if err != nil {
		respondWithError(w, err)
		return
	}
	if !isOwner {
		respondWithError(w, fmt.Errorf("%w: thread %s", apperrors.ErrPermission, threadUUID))
		return
	}

	if err := r.ParseForm(); err != nil {
		respondWithError(w, fmt.Errorf("%w: invalid form body", apperrors.ErrValidation))
		return
	}
	message := strings.TrimSpace(r.FormValue("message"))
	if message == "" {
		respondWithError(w, fmt.Errorf("%w: message is required", apperrors.ErrValidation))
		return
	}

	if extended.IsRateLimited {
		// The page data still goes out so the client can render the thread
		// read-only with the limit banner; nothing was appended.
		messages, derr := model.DecodeMessages(thread.Messages)
		if derr != nil {
			respondWithError(w, fmt.Errorf("%w: %v", apperrors.ErrInternal, derr))
			return
		}
		respondWithJSON(w, http.StatusTooManyRequests, ThreadPageResponse{
			Thread:   thread,
			Messages: messages,
			IsOwner:  isOwner,
			Threads:  items,
			Session:  extended,
		})
		return
	}

	updated, err := h.chat.PostMessage(r.Context(), thread, message,
		r.FormValue("provider"), r.FormValue("ai_response"), r.FormValue("is_streamed") == "true")
	if err != nil {
		respondWithError(w, err)
		return
	}

	messages, err := model.DecodeMessages(updated.Messages)
	if err != nil {
		respondWithError(w, fmt.Errorf("%w: %v", apperrors.ErrInternal, err))
		return
	}
	// Quota changed by the append; re-derive instead of serving the stale view.
	extended, err = h.sessions.Extend(r.Context(), session)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, ThreadPageResponse{
		Thread:   updated,
		Messages: messages,
		IsOwner:  true,
		Threads:  items,
		Session:  extended,
	})
}

// HandleNewThread godoc
// @Summary      Create a thread and redirect into it
// @Description  Creates an empty thread and 302-redirects to its page, carrying the submitted first message as the ?message= query parameter for the client to auto-submit.
// @Tags         threads
// @Accept       x-www-form-urlencoded
// @Param        message   formData  string  false  "First message to carry into the new thread"
// @Param        provider  formData  string  false  "Provider id"
// @Success      302
// @Router       /chat/new [post]
func (h *ThreadHandler) HandleNewThread(w http.ResponseWriter, r *http.Request) {
	session, ok := SessionFromContext(r.Context())
	if !ok {
		respondWithError(w, apperrors.ErrUnauthorized)
		return
	}

	allowed, err := h.sessions.CanSendMessage(r.Context(), session)
	if err != nil {
		respondWithError(w, err)
		return
	}
	if !allowed {
		respondWithError(w, apperrors.ErrRateLimited)
		return
	}

	if err := r.ParseForm(); err != nil {
		respondWithError(w, fmt.Errorf("%w: invalid form body", apperrors.ErrValidation))
		return
	}

	thread, err := h.chat.CreateThread(r.Context(), session.UserID, r.FormValue("provider"))
	if err != nil {
		respondWithError(w, err)
		return
	}

	target := "/chat/" + thread.UUID
	if message := strings.TrimSpace(r.FormValue("message")); message != "" {
		target += "?message=" + url.QueryEscape(message)
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// HandleShare godoc
// @Summary      Share a thread publicly
// @Description  Marks the thread public and returns its share URL. Owner only; repeated calls are idempotent.
// @Tags         threads
// @Accept       json
// @Produce      json
// @Param        request  body  ShareRequest  true  "Thread to share"
// @Success      200  {object}  ShareResponse
// @Failure      403  {object}  ErrorResponse
// @Router       /api/share [post]
func (h *ThreadHandler) HandleShare(w http.ResponseWriter, r *http.Request) {
	session, ok := SessionFromContext(r.Context())
	if !ok {
		respondWithError(w, apperrors.ErrUnauthorized)
		return
	}

	var req ShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, fmt.Errorf("%w: invalid request body", apperrors.ErrValidation))
		return
	}
	if err := validateRequest(req); err != nil {
		respondWithError(w, err)
		return
	}

	thread, err := h.chat.ShareThread(r.Context(), req.ThreadID, session.UserID)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, ShareResponse{ShareURL: h.hostURL + "/chat/" + thread.UUID})
}

// HandleSummarize godoc
// @Summary      Summarize a thread's long messages
// @Description  Runs one summarization pass: long messages without a summary are condensed by the support model, short ones take their content as summary. No partial writes happen on failure.
// @Tags         threads
// @Accept       json
// @Produce      json
// @Param        request  body  SummarizeRequest  true  "Thread to summarize"
// @Success      200  {object}  SummarizeResponse
// @Failure      403  {object}  ErrorResponse
// @Router       /api/summarize [post]
func (h *ThreadHandler) HandleSummarize(w http.ResponseWriter, r *http.Request) {
	session, ok := SessionFromContext(r.Context())
	if !ok {
		respondWithError(w, apperrors.ErrUnauthorized)
		return
	}

	var req SummarizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, fmt.Errorf("%w: invalid request body", apperrors.ErrValidation))
		return
	}
	if err := validateRequest(req); err != nil {
		respondWithError(w, err)
		return
	}

	thread, summarized, usage, err := h.summary.Summarize(r.Context(), req.ThreadID, session.UserID)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, SummarizeResponse{
		Success:            true,
		SummariesGenerated: summarized,
		Thread:             thread,
		Usage:              usage,
	})
}

// HandleLogout godoc
// @Summary      Log out
// @Description  Destroys the server-side session, clears the cookie and redirects home.
// @Tags         auth
// @Success      302
// @Router       /auth/logout [get]
func (h *ThreadHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(service.SessionCookieName); err == nil && cookie.Value != "" {
		h.sessions.DestroySession(cookie.Value)
	}
	h.sessions.ClearSessionCookie(w)
	http.Redirect(w, r, "/", http.StatusFound)
}
