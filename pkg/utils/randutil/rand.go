package randutil

import (
	"math/rand"
	"sync"
	"time"
)

const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var (
	mu  sync.Mutex
	rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// Int63n returns a non-negative pseudo-random int64.
func Int63n() int64 {
	mu.Lock()
	defer mu.Unlock()
	return rnd.Int63()
}

// Uint64n returns a pseudo-random uint64 used as an initial entity version.
func Uint64n() uint64 {
	mu.Lock()
	defer mu.Unlock()
	return rnd.Uint64()
}

func StringN(n int) string {
	mu.Lock()
	defer mu.Unlock()
	b := make([]byte, n)
	for i := range b {
		b[i] = letters[rnd.Intn(len(letters))]
	}
	return string(b)
}
