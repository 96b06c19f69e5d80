package kcommon

import (
	"context"
	crypto_rand "crypto/rand"
	"encoding/binary"
	"math/rand"
	"strconv"
	"sync"

	"github.com/xinkaiwang/volunteerplanner/libs/xklib/klogging"
)

const defaultCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var (
	safeRandMu sync.Mutex
	safeRand   *rand.Rand // process wide, lazily seeded from crypto/rand
)

type OpGetRand func(*rand.Rand)

// GetRandom gives op exclusive access to the process wide generator.
func GetRandom(ctx context.Context, op OpGetRand) {
	safeRandMu.Lock()
	defer safeRandMu.Unlock()
	if safeRand == nil {
		safeRand = rand.New(rand.NewSource(CryptoSeed(ctx)))
	}
	op(safeRand)
}

// CryptoSeed returns a seed read from crypto/rand, falls back to 1 (and logs) if that fails.
func CryptoSeed(ctx context.Context) int64 {
	buf := make([]byte, 8)
	if _, err := crypto_rand.Read(buf); err != nil {
		klogging.Warning(ctx).WithError(err).Log("CryptoRandSeedFailed", "")
		return 1
	}
	seed := int64(binary.BigEndian.Uint64(buf))
	if seed == 0 {
		seed = 1
	}
	klogging.Verbose(ctx).With("seed", strconv.FormatInt(seed, 16)).Log("CryptoRandSeedSucc", "")
	return seed
}

// NewSeededRand returns a generator owned by the caller (not goroutine safe).
// seed == 0 means "pick one": a fresh crypto seed is used. The seed actually used is returned.
func NewSeededRand(ctx context.Context, seed int64) (*rand.Rand, int64) {
	if seed == 0 {
		seed = CryptoSeed(ctx)
	}
	return rand.New(rand.NewSource(seed)), seed
}

func RandomString(ctx context.Context, length int) string {
	b := make([]byte, length)
	GetRandom(ctx, func(r *rand.Rand) {
		for i := range b {
			b[i] = defaultCharset[r.Intn(len(defaultCharset))]
		}
	})
	return string(b)
}

// pseudo-random number in [0,n)
func RandomInt(ctx context.Context, max int) (ret int) {
	GetRandom(ctx, func(r *rand.Rand) {
		ret = r.Intn(max)
	})
	return
}
