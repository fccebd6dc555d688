package core

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/amongais/amongais-server/logic"
	"github.com/amongais/amongais-server/model"
	"github.com/amongais/amongais-server/service"
	"github.com/amongais/amongais-server/util"
)

type Server struct {
	config      model.Config
	setting     *model.Setting
	upgrader    websocket.Upgrader
	registry    *Registry
	bus         *service.EventBus
	auditLogger *service.AuditLogger
	broadcaster *service.Broadcaster
	signaled    bool
}

func NewServer(config model.Config) (*Server, error) {
	setting, err := model.NewSetting(config)
	if err != nil {
		return nil, errors.New("ゲーム設定の作成に失敗しました")
	}
	server := &Server{
		config:  config,
		setting: setting,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		bus: service.NewEventBus(),
	}
	if config.AuditLogger.Enable {
		server.auditLogger = service.NewAuditLogger(config)
	}
	if config.Broadcaster.Enable {
		server.broadcaster = service.NewBroadcaster()
	}
	server.registry = NewRegistry(setting, server.bus)
	return server, nil
}

func (s *Server) Run() {
	ctx := context.Background()

	// 再起動時に進行中のまま残ったマッチはフェーズ途中から再開せず、一律に強制終了する
	if s.auditLogger != nil {
		s.auditLogger.TerminateInProgress("Server restarted — match ended prematurely")
		go s.auditLogger.Run(ctx, s.bus)
	}
	if s.broadcaster != nil {
		go s.broadcaster.Run(ctx, s.bus)
	}
	go s.registry.WatchEndings(ctx)

	router := gin.Default()
	router.Use(func(c *gin.Context) {
		c.Header("Server", "amongais-server/"+Version.Version+" "+runtime.Version()+" ("+runtime.GOOS+"; "+runtime.GOARCH+")")

		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Player-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	router.POST("/matches", s.handleCreateMatch)
	router.GET("/matches", s.handleListMatches)
	router.GET("/matches/:id/state", s.handleState)
	router.GET("/matches/:id/role", s.handleRole)
	router.POST("/matches/:id/night/message", s.handleNightDiscuss)
	router.GET("/matches/:id/night/messages", s.handleNightMessages)
	router.POST("/matches/:id/night/kill", s.handleNightKill)
	router.POST("/matches/:id/day/message", s.handleDayDiscuss)
	router.GET("/matches/:id/day/messages", s.handleDayMessages)
	router.POST("/matches/:id/day/accuse", s.handleAccuse)
	router.POST("/matches/:id/day/defend", s.handleDefend)
	router.POST("/matches/:id/day/vote", s.handleVote)
	router.GET("/matches/:id/ws", s.handleSpectator)

	go func() {
		trap := make(chan os.Signal, 1)
		signal.Notify(trap, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGINT)
		sig := <-trap
		slog.Info("シグナルを受信しました", "signal", sig)
		s.signaled = true
		s.gracefullyShutdown()
		os.Exit(0)
	}()

	slog.Info("サーバを起動しました", "host", s.config.Server.Web.Host, "port", s.config.Server.Web.Port)
	err := router.Run(s.config.Server.Web.Host + ":" + strconv.Itoa(s.config.Server.Web.Port))
	if err != nil {
		slog.Error("サーバの起動に失敗しました", "error", err)
		return
	}
}

func (s *Server) gracefullyShutdown() {
	for !s.registry.AllFinished() {
		time.Sleep(15 * time.Second)
	}
	slog.Info("全てのマッチが終了しました")
}

func (s *Server) findMatch(c *gin.Context) (*logic.Game, bool) {
	game, exists := s.registry.Get(c.Param("id"))
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": model.NewRejection(
			model.REJ_MATCH_NOT_ACTIVE, "No active match with this ID.", http.StatusNotFound)})
		return nil, false
	}
	return game, true
}

func (s *Server) playerID(c *gin.Context) (string, bool) {
	playerID := c.GetHeader("X-Player-ID")
	if playerID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "X-Player-ID header is required"})
		return "", false
	}
	if s.config.Server.Authentication.Enable {
		token := c.Query("token")
		if token == "" {
			token = strings.ReplaceAll(c.GetHeader("Authorization"), "Bearer ", "")
		}
		if !util.IsValidPlayerToken(os.Getenv("SECRET_KEY"), token, playerID) {
			slog.Warn("トークンが無効です", "player_id", playerID)
			c.AbortWithStatus(http.StatusUnauthorized)
			return "", false
		}
	}
	return playerID, true
}

func writeRejection(c *gin.Context, rejection *model.Rejection) {
	c.JSON(rejection.Status, gin.H{"error": rejection})
}

func (s *Server) handleCreateMatch(c *gin.Context) {
	if s.signaled {
		c.AbortWithStatus(http.StatusServiceUnavailable)
		return
	}
	var body struct {
		MatchID string              `json:"match_id"`
		Players []model.RosterEntry `json:"players"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	for i := range body.Players {
		if body.Players[i].ID == "" {
			body.Players[i].ID = uuid.New().String()
		}
	}
	var game *logic.Game
	var err error
	if body.MatchID != "" {
		game, err = s.registry.StartMatch(body.MatchID, body.Players)
	} else {
		game, err = s.registry.CreateMatch(body.Players)
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"match_id": game.ID, "players": body.Players})
}

func (s *Server) handleListMatches(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"count":   s.registry.Count(),
		"matches": s.registry.Summaries(),
	})
}

func (s *Server) handleState(c *gin.Context) {
	game, found := s.findMatch(c)
	if !found {
		return
	}
	c.JSON(http.StatusOK, game.Snapshot(c.GetHeader("X-Player-ID")))
}

func (s *Server) handleRole(c *gin.Context) {
	game, found := s.findMatch(c)
	if !found {
		return
	}
	playerID, ok := s.playerID(c)
	if !ok {
		return
	}
	briefing, rejection := game.RoleView(playerID)
	if rejection != nil {
		writeRejection(c, rejection)
		return
	}
	c.JSON(http.StatusOK, briefing)
}

func (s *Server) handleNightDiscuss(c *gin.Context) {
	game, found := s.findMatch(c)
	if !found {
		return
	}
	playerID, ok := s.playerID(c)
	if !ok {
		return
	}
	var body struct {
		Message string `json:"message" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, rejection := game.HandleNightDiscuss(playerID, body.Message)
	if rejection != nil {
		writeRejection(c, rejection)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleNightMessages(c *gin.Context) {
	game, found := s.findMatch(c)
	if !found {
		return
	}
	playerID, ok := s.playerID(c)
	if !ok {
		return
	}
	messages, rejection := game.NightMessages(playerID)
	if rejection != nil {
		writeRejection(c, rejection)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func (s *Server) handleNightKill(c *gin.Context) {
	game, found := s.findMatch(c)
	if !found {
		return
	}
	playerID, ok := s.playerID(c)
	if !ok {
		return
	}
	var body struct {
		Target string `json:"target" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, rejection := game.HandleNightKill(playerID, body.Target)
	if rejection != nil {
		writeRejection(c, rejection)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleDayDiscuss(c *gin.Context) {
	game, found := s.findMatch(c)
	if !found {
		return
	}
	playerID, ok := s.playerID(c)
	if !ok {
		return
	}
	var body struct {
		Message string `json:"message" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, rejection := game.HandleDayDiscuss(playerID, body.Message)
	if rejection != nil {
		writeRejection(c, rejection)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleDayMessages(c *gin.Context) {
	game, found := s.findMatch(c)
	if !found {
		return
	}
	var round *int
	if value := c.Query("round"); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			round = &parsed
		}
	}
	var phase *model.Phase
	if value := c.Query("phase"); value != "" {
		parsed := model.Phase(value)
		phase = &parsed
	}
	c.JSON(http.StatusOK, gin.H{"messages": game.DayMessages(round, phase)})
}

func (s *Server) handleAccuse(c *gin.Context) {
	game, found := s.findMatch(c)
	if !found {
		return
	}
	playerID, ok := s.playerID(c)
	if !ok {
		return
	}
	var body struct {
		Target string `json:"target" binding:"required"`
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, rejection := game.HandleAccuse(playerID, body.Target, body.Reason)
	if rejection != nil {
		writeRejection(c, rejection)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleDefend(c *gin.Context) {
	game, found := s.findMatch(c)
	if !found {
		return
	}
	playerID, ok := s.playerID(c)
	if !ok {
		return
	}
	var body struct {
		Message string `json:"message" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, rejection := game.HandleDefend(playerID, body.Message)
	if rejection != nil {
		writeRejection(c, rejection)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleVote(c *gin.Context) {
	game, found := s.findMatch(c)
	if !found {
		return
	}
	playerID, ok := s.playerID(c)
	if !ok {
		return
	}
	var body struct {
		Target string `json:"target" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, rejection := game.HandleVote(playerID, body.Target)
	if rejection != nil {
		writeRejection(c, rejection)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleSpectator(c *gin.Context) {
	if s.broadcaster == nil {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}
	matchID := c.Param("id")
	if _, exists := s.registry.Get(matchID); !exists {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}
	if s.config.Server.Authentication.Enable {
		token := c.Query("token")
		if token == "" {
			token = strings.ReplaceAll(c.GetHeader("Authorization"), "Bearer ", "")
		}
		if !util.IsValidReceiver(os.Getenv("SECRET_KEY"), token) {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
	}

	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("クライアントのアップグレードに失敗しました", "error", err)
		return
	}
	listenerID, packets := s.broadcaster.AddListener(matchID)

	go func() {
		defer ws.Close()
		defer s.broadcaster.RemoveListener(matchID, listenerID)
		for packet := range packets {
			data, err := json.Marshal(packet)
			if err != nil {
				continue
			}
			if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
				slog.Info("観戦者の接続を切断しました", "match_id", matchID, "listener", listenerID)
				return
			}
		}
	}()
}
