package game

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RandomnessPort produces two dice for a series, later, through a Fulfiller.
type RandomnessPort interface {
	RequestRoll(ctx context.Context, seriesID string) (requestID string, err error)
}

// Fulfiller receives the dice for a request. *Manager implements it.
type Fulfiller interface {
	Fulfil(requestID string, die1, die2 int)
}

// Proof is what a player needs to recompute a roll once the server seed is
// revealed.
type Proof struct {
	RequestID      string `json:"request_id"`
	SeriesID       string `json:"series_id"`
	ServerSeedHash string `json:"server_seed_hash"`
	ClientSeed     string `json:"client_seed"`
	Nonce          int    `json:"nonce"`
	Die1           int    `json:"die1"`
	Die2           int    `json:"die2"`
}

// ProvablyFairOracle derives dice from HMAC-SHA256(serverSeed, clientSeed:nonce).
// The server seed is committed by its SHA-256 hash and revealed on rotation.
type ProvablyFairOracle struct {
	mu         sync.Mutex
	serverSeed string
	clientSeed string
	nonce      int
	proofs     map[string]Proof
	fulfiller  Fulfiller
	delay      time.Duration
	log        *zap.Logger
}

func NewProvablyFairOracle(delay time.Duration, log *zap.Logger) *ProvablyFairOracle {
	if log == nil {
		log = zap.NewNop()
	}
	return &ProvablyFairOracle{
		serverSeed: mustSeed(),
		clientSeed: mustSeed(),
		proofs:     make(map[string]Proof),
		delay:      delay,
		log:        log.Named("oracle"),
	}
}

// SetFulfiller wires the callback. Requests made before it is set fail.
func (o *ProvablyFairOracle) SetFulfiller(f Fulfiller) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fulfiller = f
}

func (o *ProvablyFairOracle) RequestRoll(ctx context.Context, seriesID string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.fulfiller == nil {
		return "", fmt.Errorf("roll for %s: oracle has no fulfiller", seriesID)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	o.nonce++
	d1, d2 := DiceFromSeeds(o.serverSeed, o.clientSeed, o.nonce)
	id := uuid.NewString()
	o.proofs[id] = Proof{
		RequestID:      id,
		SeriesID:       seriesID,
		ServerSeedHash: HashCommitment(o.serverSeed),
		ClientSeed:     o.clientSeed,
		Nonce:          o.nonce,
		Die1:           d1,
		Die2:           d2,
	}

	f := o.fulfiller
	time.AfterFunc(o.delay, func() { f.Fulfil(id, d1, d2) })

	o.log.Debug("roll requested", zap.String("series_id", seriesID), zap.String("request_id", id), zap.Int("nonce", o.nonce))
	return id, nil
}

// Commitment is the hash of the server seed in use.
func (o *ProvablyFairOracle) Commitment() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return HashCommitment(o.serverSeed)
}

func (o *ProvablyFairOracle) Proof(requestID string) (Proof, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	p, ok := o.proofs[requestID]
	return p, ok
}

// Rotate reveals the current server seed and commits to a fresh one. Proofs
// issued under the revealed seed are dropped.
func (o *ProvablyFairOracle) Rotate(clientSeed string) (revealed, commitment string, err error) {
	next, err := GenerateSeed()
	if err != nil {
		return "", "", err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	revealed = o.serverSeed
	o.serverSeed = next
	if clientSeed != "" {
		o.clientSeed = clientSeed
	}
	o.nonce = 0
	o.proofs = make(map[string]Proof)

	o.log.Info("server seed rotated", zap.String("revealed_hash", HashCommitment(revealed)))
	return revealed, HashCommitment(o.serverSeed), nil
}

// DiceFromSeeds maps the HMAC stream onto two fair dice. Bytes of 252 and
// above are skipped so every face has the same weight.
func DiceFromSeeds(serverSeed, clientSeed string, nonce int) (int, int) {
	var dice [2]int
	n := 0
	for round := 0; n < 2; round++ {
		data := fmt.Sprintf("%s:%d", clientSeed, nonce)
		if round > 0 {
			data = fmt.Sprintf("%s:%d", data, round)
		}
		h := hmac.New(sha256.New, []byte(serverSeed))
		h.Write([]byte(data))
		for _, b := range h.Sum(nil) {
			if b >= 252 {
				continue
			}
			dice[n] = int(b%6) + 1
			n++
			if n == 2 {
				break
			}
		}
	}
	return dice[0], dice[1]
}

// VerifyRoll recomputes a roll from its revealed seed.
func VerifyRoll(serverSeed, clientSeed string, nonce, die1, die2 int) bool {
	d1, d2 := DiceFromSeeds(serverSeed, clientSeed, nonce)
	return d1 == die1 && d2 == die2
}

// GenerateSeed returns 32 random bytes from crypto/rand, hex encoded.
func GenerateSeed() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate seed: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func mustSeed() string {
	seed, err := GenerateSeed()
	if err != nil {
		panic(err)
	}
	return seed
}

// HashCommitment is the hex SHA-256 of seed, published before the seed is revealed.
func HashCommitment(seed string) string {
	h := sha256.New()
	h.Write([]byte(seed))
	return hex.EncodeToString(h.Sum(nil))
}
