// internal/game/ids.go
package game

import (
	"crypto/rand"
)

const (
	roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	playerIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

	roomCodeLength = 6
	playerIDLength = 9
)

// randomToken draws n characters uniformly from alphabet using crypto/rand.
// Rejection sampling keeps the distribution unbiased for alphabets whose size
// does not divide 256.
func randomToken(alphabet string, n int) string {
	out := make([]byte, 0, n)
	buf := make([]byte, n)
	max := byte(256 - 256%len(alphabet))
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			// crypto/rand never fails on supported platforms
			panic(err)
		}
		for _, b := range buf {
			if b >= max {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out)
}

// NewRoomCode returns a 6-character room code of uppercase letters and digits.
// Uniqueness against live rooms is the registry's job.
func NewRoomCode() string {
	return randomToken(roomCodeAlphabet, roomCodeLength)
}

// NewPlayerID returns an opaque short token identifying one player for the
// lifetime of their connection.
func NewPlayerID() string {
	return randomToken(playerIDAlphabet, playerIDLength)
}
