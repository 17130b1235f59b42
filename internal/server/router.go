package server

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/daylogapp/daylog/internal/diary"
	"github.com/daylogapp/daylog/internal/goals"
	"github.com/daylogapp/daylog/internal/notify"
	"github.com/daylogapp/daylog/internal/transfer"
	"github.com/daylogapp/daylog/internal/users"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const userIDContextKey = "daylog_user_id"

var (
	errMissingTokenManager    = errors.New("token manager dependency required")
	errMissingUsersService    = errors.New("users service dependency required")
	errMissingDiaryService    = errors.New("diary service dependency required")
	errMissingTransferService = errors.New("transfer service dependency required")
	errMissingGoalsService    = errors.New("goals service dependency required")
	errInvalidAuthorization   = errors.New("authorization header missing or invalid")
)

// TokenManager issues and validates bearer tokens.
type TokenManager interface {
	Issue(userID string) (string, int64, error)
	Validate(token string) (string, error)
}

// Dependencies wires the HTTP layer to the domain services. Cache,
// Debounce, Notifier and Dispatcher are optional; without them the
// router simply skips the corresponding behavior.
type Dependencies struct {
	TokenManager    TokenManager
	UsersService    *users.Service
	DiaryService    *diary.Service
	TransferService *transfer.Service
	GoalsService    *goals.Service
	Cache           *transfer.SnapshotCache
	Debounce        *transfer.DebounceGuard
	Notifier        *notify.Queue
	Dispatcher      *RealtimeDispatcher
	Clock           func() time.Time
	Logger          *zap.Logger
}

// NewHTTPHandler assembles the gin router.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.TokenManager == nil {
		return nil, errMissingTokenManager
	}
	if deps.UsersService == nil {
		return nil, errMissingUsersService
	}
	if deps.DiaryService == nil {
		return nil, errMissingDiaryService
	}
	if deps.TransferService == nil {
		return nil, errMissingTransferService
	}
	if deps.GoalsService == nil {
		return nil, errMissingGoalsService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		tokens:     deps.TokenManager,
		users:      deps.UsersService,
		diary:      deps.DiaryService,
		transfers:  deps.TransferService,
		goals:      deps.GoalsService,
		cache:      deps.Cache,
		debounce:   deps.Debounce,
		notifier:   deps.Notifier,
		dispatcher: deps.Dispatcher,
		clock:      clock,
		logger:     logger,
	}

	router.POST("/auth/register", handler.handleRegister)
	router.POST("/auth/login", handler.handleLogin)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.GET("/days/:date", handler.handleGetDay)
	protected.POST("/days/:date/entries", handler.handleAddEntry)
	protected.DELETE("/days/:date/entries/:id", handler.handleDeleteEntry)
	protected.PUT("/days/:date/meals/:mealtype/note", handler.handleSaveNote)
	protected.POST("/transfers", handler.handleTransfer)
	protected.GET("/goals", handler.handleGetGoal)
	protected.PUT("/goals", handler.handlePutGoal)
	protected.GET("/notifications", handler.handleNotifications)
	protected.GET("/events", handler.handleEvents)

	return router, nil
}

type httpHandler struct {
	tokens     TokenManager
	users      *users.Service
	diary      *diary.Service
	transfers  *transfer.Service
	goals      *goals.Service
	cache      *transfer.SnapshotCache
	debounce   *transfer.DebounceGuard
	notifier   *notify.Queue
	dispatcher *RealtimeDispatcher
	clock      func() time.Time
	logger     *zap.Logger
}

type registerRequestPayload struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

func (h *httpHandler) handleRegister(c *gin.Context) {
	var request registerRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	user, err := h.users.Register(c.Request.Context(), request.Email, request.DisplayName, request.Password)
	switch {
	case errors.Is(err, users.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "email_taken"})
		return
	case errors.Is(err, users.ErrInvalidEmail), errors.Is(err, users.ErrWeakPassword):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	case err != nil:
		h.logger.Error("registration failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration_failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"user_id":      user.UserID,
		"email":        user.Email,
		"display_name": user.DisplayName,
	})
}

type loginRequestPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponsePayload struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var request loginRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), request.Email, request.Password)
	if err != nil {
		if errors.Is(err, users.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		h.logger.Error("login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login_failed"})
		return
	}

	token, expiresIn, err := h.tokens.Issue(user.UserID)
	if err != nil {
		h.logger.Error("failed to issue token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}

	c.JSON(http.StatusOK, loginResponsePayload{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
	})
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	subject, err := h.tokens.Validate(token)
	if err != nil {
		h.logger.Warn("token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(userIDContextKey, subject)
	c.Next()
}

type mealGroupPayload struct {
	MealType      string                 `json:"meal_type"`
	Entries       []diary.Entry          `json:"entries"`
	TotalCalories float64                `json:"total_calories"`
	Display       diary.DisplayNutrients `json:"display"`
	Note          string                 `json:"note,omitempty"`
}

type dayResponsePayload struct {
	Date       string                 `json:"date"`
	Order      []string               `json:"order"`
	Groups     []mealGroupPayload     `json:"groups"`
	Totals     diary.Nutrients        `json:"totals"`
	Display    diary.DisplayNutrients `json:"display"`
	EntryCount int                    `json:"entry_count"`
	Progress   goals.Progress         `json:"progress"`
}

func (h *httpHandler) handleGetDay(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	date, ok := h.parseDate(c)
	if !ok {
		return
	}

	day, err := h.diary.ListDay(c.Request.Context(), userID, date)
	if err != nil {
		h.logger.Error("failed to load day", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "day_load_failed"})
		return
	}
	if h.cache != nil {
		h.cache.StoreDay(userID, day)
	}

	goal, err := h.goals.GetGoal(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("failed to load goal", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "goal_load_failed"})
		return
	}

	grouped := day.Grouped()
	totals := day.Totals()

	response := dayResponsePayload{
		Date:       date.String(),
		Order:      make([]string, 0, len(grouped.Order)),
		Groups:     make([]mealGroupPayload, 0, len(grouped.Order)),
		Totals:     totals.Totals,
		Display:    totals.Totals.Display(),
		EntryCount: totals.EntryCount,
		Progress:   goals.ComputeProgress(goal, totals),
	}
	for _, bucket := range grouped.Order {
		group := grouped.Groups[bucket]
		entries := group.Entries
		if entries == nil {
			entries = []diary.Entry{}
		}
		response.Order = append(response.Order, bucket.String())
		response.Groups = append(response.Groups, mealGroupPayload{
			MealType:      bucket.String(),
			Entries:       entries,
			TotalCalories: group.TotalCalories(),
			Display:       group.Totals.Display(),
			Note:          group.Note,
		})
	}

	c.JSON(http.StatusOK, response)
}

type addEntryPayload struct {
	MealType  string              `json:"meal_type"`
	FoodID    *string             `json:"food_id"`
	ItemName  string              `json:"item_name"`
	Quantity  float64             `json:"quantity"`
	Unit      string              `json:"unit"`
	Nutrients diary.NutrientInput `json:"nutrients"`
}

func (h *httpHandler) handleAddEntry(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	date, ok := h.parseDate(c)
	if !ok {
		return
	}

	var request addEntryPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	entry, err := h.diary.AddEntry(c.Request.Context(), userID, diary.AddEntryRequest{
		Date:      date,
		MealType:  request.MealType,
		FoodID:    request.FoodID,
		ItemName:  request.ItemName,
		Quantity:  request.Quantity,
		Unit:      request.Unit,
		Nutrients: request.Nutrients,
	})
	if err != nil {
		if errors.Is(err, diary.ErrInvalidItemName) || errors.Is(err, diary.ErrInvalidQuantity) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
			return
		}
		h.logger.Error("failed to add entry", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "entry_add_failed"})
		return
	}

	h.dayMutated(userID, date)
	c.JSON(http.StatusCreated, entry)
}

func (h *httpHandler) handleDeleteEntry(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	date, ok := h.parseDate(c)
	if !ok {
		return
	}

	entryID, err := diary.NewEntryID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	if err := h.diary.DeleteEntry(c.Request.Context(), userID, date, entryID); err != nil {
		if errors.Is(err, diary.ErrEntryNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "entry_not_found"})
			return
		}
		h.logger.Error("failed to delete entry", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "entry_delete_failed"})
		return
	}

	h.dayMutated(userID, date)
	c.Status(http.StatusNoContent)
}

type saveNotePayload struct {
	Note string `json:"note"`
}

func (h *httpHandler) handleSaveNote(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	date, ok := h.parseDate(c)
	if !ok {
		return
	}

	var request saveNotePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	if err := h.diary.SaveMealNote(c.Request.Context(), userID, date, c.Param("mealtype"), request.Note); err != nil {
		h.logger.Error("failed to save note", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "note_save_failed"})
		return
	}

	h.dayMutated(userID, date)
	c.Status(http.StatusNoContent)
}

type transferRequestPayload struct {
	SourceDate     string `json:"source_date"`
	SourceMealType string `json:"source_meal_type"`
	TargetDate     string `json:"target_date"`
	TargetMealType string `json:"target_meal_type"`
	Mode           string `json:"mode"`
	NotesMode      string `json:"notes_mode"`
}

func (h *httpHandler) handleTransfer(c *gin.Context) {
	userID := c.GetString(userIDContextKey)

	var request transferRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	sourceDate, err := diary.NewDateKey(request.SourceDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	targetDate, err := diary.NewDateKey(request.TargetDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	mode, err := transfer.ParseMode(request.Mode)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	notesMode, err := transfer.ParseNotesMode(request.NotesMode)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	if h.debounce != nil {
		key := strings.Join([]string{userID, sourceDate.String(), request.SourceMealType, targetDate.String(), request.TargetMealType}, "|")
		if !h.debounce.Allow(key) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "transfer_in_flight"})
			return
		}
	}

	result, err := h.transfers.Execute(c.Request.Context(), userID, transfer.Request{
		SourceDate:     sourceDate,
		SourceMealType: request.SourceMealType,
		TargetDate:     targetDate,
		TargetMealType: request.TargetMealType,
		Mode:           mode,
		NotesMode:      notesMode,
	})
	if err != nil {
		if h.notifier != nil {
			h.notifier.PushTransferError(err)
		}
		switch {
		case errors.Is(err, transfer.ErrSameCell):
			c.JSON(http.StatusBadRequest, gin.H{"error": transfer.TokenSameDate})
		case errors.Is(err, transfer.ErrNothingToCopy):
			c.JSON(http.StatusConflict, gin.H{"error": transfer.TokenNothingToCopy})
		default:
			h.logger.Error("transfer failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "transfer_failed"})
		}
		return
	}

	if h.notifier != nil {
		h.notifier.PushTransferResult(result)
	}
	h.dayMutated(userID, sourceDate, targetDate)
	c.JSON(http.StatusOK, result)
}

func (h *httpHandler) handleGetGoal(c *gin.Context) {
	userID := c.GetString(userIDContextKey)

	goal, err := h.goals.GetGoal(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("failed to load goal", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "goal_load_failed"})
		return
	}
	c.JSON(http.StatusOK, goal)
}

func (h *httpHandler) handlePutGoal(c *gin.Context) {
	userID := c.GetString(userIDContextKey)

	var request goals.Goal
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	goal, err := h.goals.SetGoal(c.Request.Context(), userID, request)
	if err != nil {
		h.logger.Error("failed to save goal", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "goal_save_failed"})
		return
	}
	c.JSON(http.StatusOK, goal)
}

func (h *httpHandler) handleNotifications(c *gin.Context) {
	if h.notifier == nil {
		c.JSON(http.StatusOK, gin.H{"notifications": []notify.Notification{}})
		return
	}
	drained := h.notifier.Drain()
	if drained == nil {
		drained = []notify.Notification{}
	}
	c.JSON(http.StatusOK, gin.H{"notifications": drained})
}

func (h *httpHandler) handleEvents(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	if h.dispatcher == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "events_disabled"})
		return
	}

	stream, cleanup := h.dispatcher.Subscribe(c.Request.Context(), userID)
	defer cleanup()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case message, ok := <-stream:
			if !ok {
				return false
			}
			c.SSEvent(message.EventType, message)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func (h *httpHandler) parseDate(c *gin.Context) (diary.DateKey, bool) {
	date, err := diary.NewDateKey(c.Param("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_date"})
		return "", false
	}
	return date, true
}

// dayMutated invalidates cached snapshots and announces the change.
func (h *httpHandler) dayMutated(userID string, dates ...diary.DateKey) {
	rendered := make([]string, 0, len(dates))
	for _, date := range dates {
		if h.cache != nil {
			h.cache.Invalidate(userID, date)
		}
		rendered = append(rendered, date.String())
	}
	if h.dispatcher != nil {
		h.dispatcher.PublishDayChanged(userID, h.clock().UTC(), rendered...)
	}
}
