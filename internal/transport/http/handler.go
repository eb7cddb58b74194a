package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"en-words-service/internal/app"
	"en-words-service/internal/domain"
)

// Handler exposes the en-words REST API. Response shapes match what the quiz
// and admin clients expect; see the client package for the consuming side.
type Handler struct {
	service *app.WordService
	log     *zap.Logger
}

func NewHandler(service *app.WordService, log *zap.Logger) *Handler {
	return &Handler{service: service, log: log}
}

// Register mounts all REST routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/words", h.handleWords)
	mux.HandleFunc("/quiz-logs", h.handleQuizLogs)
	mux.HandleFunc("/word-checks", h.handleWordChecks)
	mux.HandleFunc("/quiz-stats", h.handleQuizStats)
	mux.HandleFunc("/health", h.handleHealth)
}

// flexID tolerates clients sending ids as either strings or numbers.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

type wireTranslation struct {
	WordJp string `json:"wordJp"`
}

type wireGroup struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type wireWord struct {
	ID             string            `json:"id"`
	WordEn         string            `json:"wordEn"`
	JpTranslations []wireTranslation `json:"jpTranslations"`
	WordGroup      *wireGroup        `json:"wordGroup"`
	Checked        bool              `json:"checked"`
}

type messagePayload struct {
	Message string `json:"message"`
}

func (h *Handler) handleWords(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	words, err := h.service.ListWords(r.Context())
	if err != nil {
		h.log.Error("listing words failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, messagePayload{Message: "Failed to load words"})
		return
	}

	out := make([]wireWord, 0, len(words))
	for _, word := range words {
		entry := wireWord{
			ID:             word.ID,
			WordEn:         word.Term,
			JpTranslations: []wireTranslation{},
			Checked:        word.Checked,
		}
		if word.Meaning != "" {
			entry.JpTranslations = append(entry.JpTranslations, wireTranslation{WordJp: word.Meaning})
		}
		if word.GroupID != "" {
			entry.WordGroup = &wireGroup{ID: word.GroupID, Name: word.GroupName}
		}
		out = append(out, entry)
	}
	writeJSON(w, http.StatusOK, struct {
		Words []wireWord `json:"words"`
	}{Words: out})
}

func (h *Handler) handleQuizLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body struct {
		Results []struct {
			WordID    flexID `json:"wordId"`
			IsCorrect *bool  `json:"isCorrect"`
		} `json:"results"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Results == nil {
		writeJSON(w, http.StatusBadRequest, messagePayload{Message: "Invalid payload"})
		return
	}

	attempts := make([]domain.Attempt, 0, len(body.Results))
	for _, entry := range body.Results {
		if entry.WordID == "" || entry.IsCorrect == nil {
			continue
		}
		attempts = append(attempts, domain.Attempt{WordID: string(entry.WordID), IsCorrect: *entry.IsCorrect})
	}

	recorded, err := h.service.RecordAttempts(r.Context(), attempts)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyBatch) {
			writeJSON(w, http.StatusBadRequest, messagePayload{Message: "No valid quiz results to record."})
			return
		}
		h.log.Error("recording quiz results failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, messagePayload{Message: "Failed to record results"})
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		Recorded int `json:"recorded"`
	}{Recorded: recorded})
}

func (h *Handler) handleWordChecks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body struct {
		CheckedWordIDs []flexID `json:"checkedWordIds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.CheckedWordIDs == nil {
		writeJSON(w, http.StatusBadRequest, messagePayload{Message: "Invalid payload"})
		return
	}

	ids := make([]string, 0, len(body.CheckedWordIDs))
	for _, id := range body.CheckedWordIDs {
		if id != "" {
			ids = append(ids, string(id))
		}
	}

	sync, err := h.service.ReplaceChecks(r.Context(), ids)
	if err != nil {
		h.log.Error("replacing word checks failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, messagePayload{Message: "Failed to save word checks"})
		return
	}
	writeJSON(w, http.StatusOK, sync)
}

func (h *Handler) handleQuizStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats, err := h.service.QuizStats(r.Context())
	if err != nil {
		h.log.Error("loading quiz stats failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, messagePayload{Message: "Failed to load quiz stats"})
		return
	}
	if stats == nil {
		stats = []domain.WordStat{}
	}
	writeJSON(w, http.StatusOK, struct {
		Stats []domain.WordStat `json:"stats"`
	}{Stats: stats})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Status    string `json:"status"`
		Timestamp string `json:"timestamp"`
	}{Status: "ok", Timestamp: time.Now().UTC().Format(time.RFC3339)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
