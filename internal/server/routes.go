package server

import (
	"context"
	"encoding/json"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"go.uber.org/zap"

	"craps/internal/apperr"
	"craps/internal/game"
	"craps/internal/rules"
)

// CallerHeader names the caller the table authorizes against.
const CallerHeader = "X-Caller"

func (s *FiberServer) RegisterFiberRoutes() {
	// Apply CORS middleware
	s.App.Use(cors.New(cors.Config{
		AllowOrigins:     "*",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH",
		AllowHeaders:     "Accept,Authorization,Content-Type," + CallerHeader,
		AllowCredentials: false, // credentials require explicit origins
		MaxAge:           300,
	}))

	// Basic routes
	s.App.Get("/health", s.healthHandler)

	api := s.App.Group("/api/v1")

	table := api.Group("/table")
	table.Get("/state", s.getTableStateHandler)
	table.Post("/series", s.startSeriesHandler)
	table.Post("/roll", s.requestRollHandler)
	table.Post("/abort", s.abortSeriesHandler)
	table.Post("/retry", s.retrySettlementHandler)
	table.Get("/series/:seriesId/rolls", s.rollHistoryHandler)
	table.Get("/bet-types/:type", s.betTypeHandler)

	bets := api.Group("/bets")
	bets.Post("/", s.placeBetHandler)
	bets.Delete("/:type", s.removeBetHandler)
	api.Get("/limits", s.getLimitsHandler)
	api.Put("/limits", s.setLimitsHandler)

	api.Get("/players/:player", s.getPlayerHandler)
	api.Get("/players/:player/balance", s.getBalanceHandler)
	api.Post("/players/:player/balance", s.creditBalanceHandler)

	v := api.Group("/vault")
	v.Get("/", s.getVaultHandler)
	v.Post("/deposit", s.depositHandler)
	v.Post("/mint", s.mintHandler)
	v.Post("/withdraw", s.withdrawHandler)
	v.Post("/redeem", s.redeemHandler)
	v.Get("/preview/:op", s.previewHandler)
	v.Get("/holders/:holder", s.getHolderHandler)
	v.Put("/fee", s.setFeeHandler)
	v.Post("/fees/collect", s.collectFeesHandler)

	if s.oracle != nil {
		oracle := api.Group("/oracle")
		oracle.Get("/commitment", s.commitmentHandler)
		oracle.Get("/proofs/:requestId", s.proofHandler)
		oracle.Post("/rotate", s.rotateSeedHandler)
	}

	// WebSocket route
	s.App.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.App.Get("/ws", websocket.New(s.tableWebSocketHandler))
}

func (s *FiberServer) healthHandler(c *fiber.Ctx) error {
	health := fiber.Map{
		"game": fiber.Map{
			"status":            "running",
			"connected_clients": s.gameHub.GetClientCount(),
		},
	}
	if s.db != nil {
		health["database"] = s.db.Health()
	}
	if s.cache != nil {
		health["cache"] = s.cache.Health()
	}
	return c.JSON(health)
}

// caller returns the X-Caller identity or fails with 403.
func caller(c *fiber.Ctx) (string, error) {
	id := c.Get(CallerHeader)
	if id == "" {
		return "", apperr.ErrUnauthorized
	}
	return id, nil
}

// fail writes err with the status its code maps to.
func (s *FiberServer) fail(c *fiber.Ctx, err error) error {
	status := apperr.HTTPStatus(err)
	if status >= fiber.StatusInternalServerError {
		s.log.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	}
	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
		"code":  apperr.GetCode(err),
	})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": msg,
	})
}

type wsRequest struct {
	Type   string        `json:"type"`
	Bet    rules.BetType `json:"bet"`
	Amount int64         `json:"amount"`
	Target int           `json:"target"`
}

// tableWebSocketHandler streams table events and accepts bets from the player
// named in the "player" query parameter.
func (s *FiberServer) tableWebSocketHandler(conn *websocket.Conn) {
	player := conn.Query("player", "anonymous")
	s.log.Debug("ws connected", zap.String("player", player))

	client := s.gameHub.RegisterClient(conn, player, s.gameManager.State())
	defer s.gameHub.UnregisterClient(conn)
	ctx := context.Background()

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			s.log.Debug("ws read", zap.String("player", player), zap.Error(err))
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var req wsRequest
		if err := json.Unmarshal(message, &req); err != nil {
			client.Send(game.WSMessage{Type: "error", Data: err.Error()})
			continue
		}

		switch req.Type {
		case "ping":
			client.Send(game.WSMessage{Type: "pong"})

		case "place_bet", "remove_bet":
			if player == "anonymous" {
				client.Send(game.WSMessage{Type: "error", Data: apperr.ErrUnauthorized.Error()})
				continue
			}
			var b any
			if req.Type == "place_bet" {
				b, err = s.gameManager.PlaceBet(ctx, player, req.Bet, req.Amount, req.Target)
			} else {
				b, err = s.gameManager.RemoveBet(ctx, player, req.Bet)
			}
			if err != nil {
				client.Send(game.WSMessage{Type: "error", Data: fiber.Map{"error": err.Error(), "code": apperr.GetCode(err)}})
				continue
			}
			client.Send(game.WSMessage{Type: req.Type + "_ok", Data: b})
		}
	}
}
