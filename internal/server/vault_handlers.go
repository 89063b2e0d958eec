package server

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"craps/internal/access"
)

type amountRequest struct {
	Amount int64 `json:"amount"`
}

func (s *FiberServer) getVaultHandler(c *fiber.Ctx) error {
	v := s.gameManager.Vault()
	st := v.State()
	return c.JSON(fiber.Map{
		"account": v.Account(),
		"state":   st,
		"free":    st.Free(),
	})
}

// vaultOp runs one share operation for the caller with the posted amount.
func (s *FiberServer) vaultOp(c *fiber.Ctx, result string, op func(ctx context.Context, holder string, amount int64) (int64, error)) error {
	holder, err := caller(c)
	if err != nil {
		return s.fail(c, err)
	}
	var req amountRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	n, err := op(c.UserContext(), holder, req.Amount)
	if err != nil {
		return s.fail(c, err)
	}
	v := s.gameManager.Vault()
	return c.JSON(fiber.Map{
		"holder": holder,
		result:   n,
		"shares": v.SharesOf(holder),
		"state":  v.State(),
	})
}

func (s *FiberServer) depositHandler(c *fiber.Ctx) error {
	return s.vaultOp(c, "shares_minted", s.gameManager.Vault().Deposit)
}

func (s *FiberServer) mintHandler(c *fiber.Ctx) error {
	return s.vaultOp(c, "assets_paid", s.gameManager.Vault().Mint)
}

func (s *FiberServer) withdrawHandler(c *fiber.Ctx) error {
	return s.vaultOp(c, "shares_burned", s.gameManager.Vault().Withdraw)
}

func (s *FiberServer) redeemHandler(c *fiber.Ctx) error {
	return s.vaultOp(c, "assets_returned", s.gameManager.Vault().Redeem)
}

func (s *FiberServer) previewHandler(c *fiber.Ctx) error {
	v := s.gameManager.Vault()
	amount := int64(c.QueryInt("amount"))

	var preview func(int64) (int64, error)
	switch op := c.Params("op"); op {
	case "deposit":
		preview = v.PreviewDeposit
	case "mint":
		preview = v.PreviewMint
	case "withdraw":
		preview = v.PreviewWithdraw
	case "redeem":
		preview = v.PreviewRedeem
	default:
		return badRequest(c, "Unknown preview "+op)
	}

	n, err := preview(amount)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"op":     c.Params("op"),
		"amount": amount,
		"result": n,
	})
}

func (s *FiberServer) getHolderHandler(c *fiber.Ctx) error {
	v := s.gameManager.Vault()
	holder := c.Params("holder")
	return c.JSON(fiber.Map{
		"holder":       holder,
		"shares":       v.SharesOf(holder),
		"max_deposit":  v.MaxDeposit(holder),
		"max_mint":     v.MaxMint(holder),
		"max_withdraw": v.MaxWithdraw(holder),
		"max_redeem":   v.MaxRedeem(holder),
	})
}

func (s *FiberServer) setFeeHandler(c *fiber.Ctx) error {
	who, err := caller(c)
	if err != nil {
		return s.fail(c, err)
	}
	var req struct {
		Bps int64 `json:"bps"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	v := s.gameManager.Vault()
	if err := v.SetFeeBps(who, req.Bps); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(v.State())
}

func (s *FiberServer) collectFeesHandler(c *fiber.Ctx) error {
	who, err := caller(c)
	if err != nil {
		return s.fail(c, err)
	}
	paid, err := s.gameManager.Vault().CollectFees(c.UserContext(), who)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"collected": paid,
	})
}

// Oracle handlers

func (s *FiberServer) commitmentHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"server_seed_hash": s.oracle.Commitment(),
	})
}

func (s *FiberServer) proofHandler(c *fiber.Ctx) error {
	proof, ok := s.oracle.Proof(c.Params("requestId"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No proof for this request",
		})
	}
	return c.JSON(proof)
}

// rotateSeedHandler reveals the current server seed and commits to a new one.
// Admin only.
func (s *FiberServer) rotateSeedHandler(c *fiber.Ctx) error {
	who, err := caller(c)
	if err != nil {
		return s.fail(c, err)
	}
	if err := s.acl.Require(who, access.RoleAdmin); err != nil {
		return s.fail(c, err)
	}
	var req struct {
		ClientSeed string `json:"client_seed"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}
	}

	revealed, commitment, err := s.oracle.Rotate(req.ClientSeed)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"revealed_server_seed": revealed,
		"server_seed_hash":     commitment,
	})
}
