package vactor

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// newRuntimeIdentity renders the runtime identity token
// "Name[<22-char base64 of 16 random bytes>]". 16 random bytes base64-encode
// (unpadded, standard alphabet) to exactly 22 characters.
func newRuntimeIdentity(name string) string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic(fmt.Sprintf("vactor: reading runtime identity entropy: %v", err))
	}

	token := base64.RawStdEncoding.EncodeToString(buf[:])

	return fmt.Sprintf("%s[%s]", name, token)
}
