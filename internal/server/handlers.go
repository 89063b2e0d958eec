package server

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"craps/internal/access"
	"craps/internal/apperr"
	"craps/internal/bets"
	"craps/internal/rules"
)

// Table handlers

func (s *FiberServer) getTableStateHandler(c *fiber.Ctx) error {
	return c.JSON(s.gameManager.State())
}

func (s *FiberServer) startSeriesHandler(c *fiber.Ctx) error {
	var req struct {
		Shooter string `json:"shooter"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Shooter == "" {
		return badRequest(c, "Shooter is required")
	}

	series, err := s.gameManager.StartNewSeries(c.UserContext(), req.Shooter)
	if err != nil {
		return s.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(series)
}

func (s *FiberServer) requestRollHandler(c *fiber.Ctx) error {
	who, err := caller(c)
	if err != nil {
		return s.fail(c, err)
	}
	requestID, err := s.gameManager.RequestRoll(c.UserContext(), who)
	if err != nil {
		return s.fail(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"request_id": requestID,
	})
}

func (s *FiberServer) abortSeriesHandler(c *fiber.Ctx) error {
	who, err := caller(c)
	if err != nil {
		return s.fail(c, err)
	}
	series, err := s.gameManager.AbortSeries(c.UserContext(), who)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(series)
}

func (s *FiberServer) retrySettlementHandler(c *fiber.Ctx) error {
	who, err := caller(c)
	if err != nil {
		return s.fail(c, err)
	}
	res, err := s.gameManager.RetrySettlement(c.UserContext(), who)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(res)
}

// rollHistoryHandler serves the table's own history, falling back to the
// mirror for series it no longer keeps.
func (s *FiberServer) rollHistoryHandler(c *fiber.Ctx) error {
	seriesID := c.Params("seriesId")
	rolls := s.gameManager.Table().RollHistory(seriesID)
	if len(rolls) == 0 && s.history != nil {
		mirrored, err := s.history.Recent(c.UserContext(), seriesID)
		if err != nil {
			s.log.Warn("roll mirror unavailable", zap.String("series_id", seriesID), zap.Error(err))
		} else {
			rolls = mirrored
		}
	}
	if rolls == nil {
		rolls = []rules.Roll{}
	}
	return c.JSON(fiber.Map{
		"series_id": seriesID,
		"rolls":     rolls,
	})
}

func (s *FiberServer) betTypeHandler(c *fiber.Ctx) error {
	tag, err := rules.ParseBetType(c.Params("type"))
	if err != nil {
		return s.fail(c, err)
	}
	table := s.gameManager.Table()
	return c.JSON(fiber.Map{
		"type":      tag,
		"category":  tag.Category().String(),
		"valid":     table.IsBetTypeValid(tag),
		"can_place": table.CanPlaceBet(tag),
	})
}

// Bet handlers

type placeBetRequest struct {
	Type   rules.BetType `json:"type"`
	Amount int64         `json:"amount"`
	Target int           `json:"target"`
}

func (s *FiberServer) placeBetHandler(c *fiber.Ctx) error {
	player, err := caller(c)
	if err != nil {
		return s.fail(c, err)
	}
	var req placeBetRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	bet, err := s.gameManager.PlaceBet(c.UserContext(), player, req.Type, req.Amount, req.Target)
	if err != nil {
		return s.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(bet)
}

func (s *FiberServer) removeBetHandler(c *fiber.Ctx) error {
	player, err := caller(c)
	if err != nil {
		return s.fail(c, err)
	}
	tag, err := rules.ParseBetType(c.Params("type"))
	if err != nil {
		return s.fail(c, err)
	}

	bet, err := s.gameManager.RemoveBet(c.UserContext(), player, tag)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(bet)
}

func (s *FiberServer) getLimitsHandler(c *fiber.Ctx) error {
	return c.JSON(s.gameManager.Ledger().Limits())
}

func (s *FiberServer) setLimitsHandler(c *fiber.Ctx) error {
	who, err := caller(c)
	if err != nil {
		return s.fail(c, err)
	}
	var limits bets.Limits
	if err := c.BodyParser(&limits); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := s.gameManager.Ledger().SetLimits(who, limits); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(s.gameManager.Ledger().Limits())
}

// Player handlers

func (s *FiberServer) getPlayerHandler(c *fiber.Ctx) error {
	player := c.Params("player")
	ledger := s.gameManager.Ledger()

	open := ledger.Bets(player)
	if open == nil {
		open = []bets.Bet{}
	}
	return c.JSON(fiber.Map{
		"player":  player,
		"bets":    open,
		"summary": ledger.Summary(player),
		"shares":  s.gameManager.Vault().SharesOf(player),
	})
}

func (s *FiberServer) getBalanceHandler(c *fiber.Ctx) error {
	player := c.Params("player")
	balance, err := s.assets.BalanceOf(c.UserContext(), player)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"player":  player,
		"balance": balance,
	})
}

// creditBalanceHandler mints test funds. Admin only.
func (s *FiberServer) creditBalanceHandler(c *fiber.Ctx) error {
	if s.faucet == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Faucet is disabled",
		})
	}
	who, err := caller(c)
	if err != nil {
		return s.fail(c, err)
	}
	if err := s.acl.Require(who, access.RoleAdmin); err != nil {
		return s.fail(c, err)
	}

	var body struct {
		Amount int64 `json:"amount"`
	}
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if body.Amount <= 0 {
		return s.fail(c, apperr.ErrZeroAmount)
	}

	player := c.Params("player")
	balance, err := s.faucet.Credit(c.UserContext(), player, body.Amount)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"player":  player,
		"balance": balance,
		"message": "Balance credited",
	})
}
